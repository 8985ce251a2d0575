package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/mitchellh/go-homedir"

	"github.com/starford/postjournal/internal/generate"
	"github.com/starford/postjournal/internal/planner"
	"github.com/starford/postjournal/internal/session"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeJWT      = "jwt"
)

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverLibSQL   = "libsql"
	DriverPostgres = "postgres"
)

func absoluteURL(v any) error {
	s, _ := v.(string)
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("must be an absolute URL")
	}
	return nil
}

// Config represents the application configuration.
type Config struct {
	App        ApplicationConfig `yaml:"app"`
	Store      StoreConfig       `yaml:"store"`
	Auth       AuthConfig        `yaml:"auth"`
	CORS       CORSConfig        `yaml:"cors"`
	Generation GenerationConfig  `yaml:"generation"`
	Sync       SyncConfig        `yaml:"sync"`
	Client     ClientConfig      `yaml:"client"`
}

// Validate validates every section.
func (c *Config) Validate() error {
	for _, v := range []validation.Validatable{&c.App, &c.Store, &c.Auth, &c.Generation, &c.Sync, &c.Client} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// StoreConfig selects the database behind the API server.
//
// DSN is a file path for sqlite, a libsql:// or https:// URL (with
// ?authToken=...) for libsql, and a connection string for postgres.
type StoreConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// Validate validates the store configuration.
func (c *StoreConfig) Validate() error {
	if c.Driver == "" {
		c.Driver = DriverSQLite
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Driver, validation.Required, validation.In(DriverSQLite, DriverLibSQL, DriverPostgres)),
		validation.Field(&c.DSN, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how requests are attributed to an owner:
//   - "disabled" (default): every request acts as DefaultOwner.
//   - "jwt": requests carry a Bearer token signed with JWTSecret.
type AuthConfig struct {
	Mode         string        `yaml:"mode"`
	JWTSecret    string        `yaml:"jwt_secret"`
	DefaultOwner string        `yaml:"default_owner"`
	TokenTTL     time.Duration `yaml:"token_ttl"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeJWT)),
		validation.Field(&c.TokenTTL, validation.Min(time.Duration(0))),
	); err != nil {
		return err
	}
	switch {
	case c.Mode == AuthModeJWT && len(c.JWTSecret) < 16:
		return fmt.Errorf("auth: mode is %q but jwt_secret is shorter than 16 bytes", AuthModeJWT)
	case c.Mode == AuthModeDisabled && c.DefaultOwner == "":
		return fmt.Errorf("auth: mode is %q but default_owner is empty", AuthModeDisabled)
	}
	return nil
}

// AuthEnabled returns true when tokens are checked.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeJWT
}

// CORSConfig lists the origins allowed to call the API from a browser.
type CORSConfig struct {
	Origins []string `yaml:"origins"`
}

// GenerationConfig selects the model endpoint used for drafts.
type GenerationConfig struct {
	BaseURL string        `yaml:"base_url"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// Validate validates the generation configuration.
func (c *GenerationConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, validation.Required, validation.By(absoluteURL)),
		validation.Field(&c.Model, validation.Required),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
	)
}

// Generate converts the section for the generate client.
func (c *GenerationConfig) Generate() generate.Config {
	return generate.Config{BaseURL: c.BaseURL, Model: c.Model, Timeout: c.Timeout}
}

// SyncConfig tunes the quiet periods of debounced writes and the
// calendar.changed throttle.
type SyncConfig struct {
	JournalDelay     time.Duration `yaml:"journal_delay"`
	IdeaDelay        time.Duration `yaml:"idea_delay"`
	SettingsDelay    time.Duration `yaml:"settings_delay"`
	CalendarThrottle time.Duration `yaml:"calendar_throttle"`
}

// Validate validates the sync configuration.
func (c *SyncConfig) Validate() error {
	positive := []validation.Rule{validation.Required, validation.Min(time.Millisecond)}
	return validation.ValidateStruct(c,
		validation.Field(&c.JournalDelay, positive...),
		validation.Field(&c.IdeaDelay, positive...),
		validation.Field(&c.SettingsDelay, positive...),
		validation.Field(&c.CalendarThrottle, positive...),
	)
}

// Delays returns the planner quiet periods.
func (c *SyncConfig) Delays() planner.Delays {
	return planner.Delays{Journal: c.JournalDelay, Ideas: c.IdeaDelay}
}

// ClientConfig is used by the mcp and calendar commands, which run the
// client core against a remote API server.
type ClientConfig struct {
	APIURL          string `yaml:"api_url"`
	CredentialsPath string `yaml:"credentials_path"`
	PrefsDir        string `yaml:"prefs_dir"`
}

// Validate validates the client configuration and expands ~ in paths.
func (c *ClientConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.APIURL, validation.Required, validation.By(absoluteURL)),
		validation.Field(&c.CredentialsPath, validation.Required),
		validation.Field(&c.PrefsDir, validation.Required),
	); err != nil {
		return err
	}
	for _, p := range []*string{&c.CredentialsPath, &c.PrefsDir} {
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("client: expand %s: %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Store: StoreConfig{
			Driver: DriverSQLite,
			DSN:    "./postjournal.db",
		},
		Auth: AuthConfig{
			Mode:         AuthModeDisabled,
			DefaultOwner: "local",
			TokenTTL:     30 * 24 * time.Hour,
		},
		Generation: GenerationConfig{
			BaseURL: generate.DefaultBaseURL,
			Model:   generate.DefaultModel,
			Timeout: 60 * time.Second,
		},
		Sync: SyncConfig{
			JournalDelay:     planner.DefaultJournalDelay,
			IdeaDelay:        planner.DefaultIdeaDelay,
			SettingsDelay:    session.DefaultSettingsDelay,
			CalendarThrottle: 2 * time.Second,
		},
		Client: ClientConfig{
			APIURL:          "http://localhost:8080/api",
			CredentialsPath: "~/.postjournal/credentials",
			PrefsDir:        "~/.postjournal/prefs",
		},
	}
}
