package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/postjournal/internal"
	"github.com/starford/postjournal/internal/auth"
	"github.com/starford/postjournal/internal/session"
	pkgconfig "github.com/starford/postjournal/pkg/config"
)

func configFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:        "config",
		Aliases:     []string{"c"},
		Usage:       "Path to config file",
		DefaultText: "config/config.yaml",
		Value:       "config/config.yaml",
		Sources:     cli.EnvVars("APP_CONFIG_FILE"),
	}
}

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func mcp(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, internal.WithConfig(cfg))
}

func calendar(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunCalendar(ctx, int(cmd.Int("year")), int(cmd.Int("month")), internal.WithConfig(cfg))
}

func token(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if !cfg.Auth.AuthEnabled() {
		return errors.New("auth mode is disabled: set auth.mode to jwt to issue tokens")
	}

	ttl := cfg.Auth.TokenTTL
	if cmd.IsSet("ttl") {
		ttl = cmd.Duration("ttl")
	}
	signed, err := auth.Mint([]byte(cfg.Auth.JWTSecret), cmd.String("owner"), ttl, time.Now())
	if err != nil {
		return err
	}

	if !cmd.Bool("save") {
		_, err = fmt.Fprintln(os.Stdout, signed)
		return err
	}
	if err := session.SaveToken(cfg.Client.CredentialsPath, signed); err != nil {
		return err
	}
	slog.Info("token saved", slog.String("path", cfg.Client.CredentialsPath))
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:   "postjournal",
		Usage:  "Content planner: daily journal, idea bank and posting calendar",
		Action: serve,
		Flags:  []cli.Flag{configFlag()},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API server",
				Action: serve,
				Flags:  []cli.Flag{configFlag()},
			},
			{
				Name:   "mcp",
				Usage:  "Serve the planner as MCP tools over stdio",
				Action: mcp,
				Flags:  []cli.Flag{configFlag()},
			},
			{
				Name:   "calendar",
				Usage:  "Print the posts scheduled in a month",
				Action: calendar,
				Flags: []cli.Flag{
					configFlag(),
					&cli.IntFlag{Name: "year", Aliases: []string{"y"}, Usage: "Year (default: current)"},
					&cli.IntFlag{Name: "month", Aliases: []string{"m"}, Usage: "Month 1-12 (default: current)"},
				},
			},
			{
				Name:   "token",
				Usage:  "Issue an owner token signed with auth.jwt_secret",
				Action: token,
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{Name: "owner", Aliases: []string{"o"}, Usage: "Owner id", Required: true},
					&cli.DurationFlag{Name: "ttl", Usage: "Lifetime; 0 never expires (default: auth.token_ttl)"},
					&cli.BoolFlag{Name: "save", Usage: "Write the token to client.credentials_path instead of stdout"},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
