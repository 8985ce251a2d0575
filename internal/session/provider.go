// Package session resolves which owner the client acts for and holds that
// owner's profile.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/postjournal/internal/apperr"
	"github.com/starford/postjournal/internal/debounce"
	"github.com/starford/postjournal/internal/models"
	"github.com/starford/postjournal/internal/store"
)

// DefaultSettingsDelay is the quiet period before settings edits are written.
const DefaultSettingsDelay = 800 * time.Millisecond

const settingsKey = "profile"

// Provider tracks identity and profile for the client core.
//
// Start resolves the session exactly once. Auth events that arrive before it
// completes are dropped.
type Provider struct {
	auth     Authenticator
	profiles store.ProfileRepo
	logger   *slog.Logger
	delay    time.Duration
	settings *debounce.Queue

	startOnce sync.Once

	mu       sync.RWMutex
	identity Identity
	profile  ProfileState
	ready    bool
	lastErr  error
	gen      uint64
	pending  models.ProfilePatch
}

// Option configures a Provider.
type Option func(*Provider)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) { p.logger = l }
}

// WithSettingsDelay overrides DefaultSettingsDelay.
func WithSettingsDelay(d time.Duration) Option {
	return func(p *Provider) { p.delay = d }
}

// NewProvider creates a Provider. Call Start before using it.
func NewProvider(auth Authenticator, profiles store.ProfileRepo, opts ...Option) *Provider {
	p := &Provider{
		auth:     auth,
		profiles: profiles,
		logger:   slog.Default(),
		delay:    DefaultSettingsDelay,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.settings = debounce.New(p.delay, debounce.WithLogger(p.logger))
	return p
}

// Start resolves the current session and then follows auth events until ctx
// is done. Calls after the first are no-ops.
func (p *Provider) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		go p.listen(ctx)
		p.resolve(ctx)
	})
}

func (p *Provider) resolve(ctx context.Context) {
	owner, err := p.auth.Current(ctx)
	if err != nil {
		p.logger.Warn("session: resolve failed", slog.String("error", err.Error()))
		owner = ""
	}

	if owner != "" {
		p.mu.Lock()
		gen := p.gen
		p.mu.Unlock()
		p.loadProfile(ctx, owner, gen)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if owner == "" {
		p.identity = Identity{Status: StatusUnauthenticated}
		p.profile = LoadedNone()
	} else {
		p.identity = Identity{Status: StatusResolved, Owner: owner}
	}
	p.ready = true
	p.logger.Info("session: resolved",
		slog.String("status", p.identity.Status.String()),
		slog.String("profile", p.profile.String()))
}

func (p *Provider) listen(ctx context.Context) {
	events := p.auth.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			p.handle(ctx, ev)
		}
	}
}

func (p *Provider) handle(ctx context.Context, ev AuthEvent) {
	p.mu.Lock()
	if !p.ready {
		p.mu.Unlock()
		p.logger.Debug("session: event before resolve dropped", slog.String("event", string(ev.Kind)))
		return
	}

	switch ev.Kind {
	case EventSignedOut:
		p.signedOutLocked()
		p.mu.Unlock()
		return

	case EventSignedIn:
		if ev.Owner == "" {
			p.mu.Unlock()
			return
		}
		_, hasProfile := p.profile.Profile()
		if p.identity.Owner != ev.Owner || !hasProfile {
			p.profile = NotLoaded()
			p.lastErr = nil
			p.gen++
		}
		p.identity = Identity{Status: StatusResolved, Owner: ev.Owner}
		gen := p.gen
		p.mu.Unlock()
		p.loadProfile(ctx, ev.Owner, gen)

	default:
		// TOKEN_REFRESHED changes nothing the client cares about.
		p.mu.Unlock()
	}
}

func (p *Provider) signedOutLocked() {
	p.identity = Identity{Status: StatusUnauthenticated}
	p.profile = LoadedNone()
	p.lastErr = nil
	p.pending = models.ProfilePatch{}
	p.gen++
}

// loadProfile fetches the owner's profile. Results for a superseded owner
// (gen changed meanwhile) are discarded.
func (p *Provider) loadProfile(ctx context.Context, owner string, gen uint64) {
	pr, err := p.profiles.GetProfile(ctx, owner)

	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.gen {
		return
	}
	switch {
	case err == nil:
		p.profile = LoadedProfile(pr)
		p.lastErr = nil
	case errors.Is(err, apperr.ErrNotFound):
		p.profile = LoadedNone()
		p.lastErr = nil
	default:
		p.lastErr = err
		p.logger.Error("session: load profile failed",
			slog.String("owner", owner), slog.String("error", err.Error()))
	}
}

// Identity returns the current identity.
func (p *Provider) Identity() Identity {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.ready {
		return Identity{Status: StatusLoading}
	}
	return p.identity
}

// Owner returns the resolved owner id or "".
func (p *Provider) Owner() string {
	return p.Identity().Owner
}

// Profile returns the profile state.
func (p *Provider) Profile() ProfileState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.profile
}

// LastError returns the failure of the last profile fetch.
func (p *Provider) LastError() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastErr
}

// View returns the gate decision for the current state.
func (p *Provider) View() View {
	p.mu.RLock()
	defer p.mu.RUnlock()
	id := p.identity
	if !p.ready {
		id = Identity{Status: StatusLoading}
	}
	return Gate(id, p.profile, p.lastErr)
}

// Retry fetches the profile again after a failed load.
func (p *Provider) Retry(ctx context.Context) error {
	owner := p.Owner()
	if owner == "" {
		return apperr.ErrUnauthenticated
	}
	p.mu.RLock()
	gen := p.gen
	p.mu.RUnlock()
	p.loadProfile(ctx, owner, gen)
	return p.LastError()
}

// UpdateProfile upserts patch for the current owner and reflects the stored row.
func (p *Provider) UpdateProfile(ctx context.Context, patch models.ProfilePatch) (*models.Profile, error) {
	owner := p.Owner()
	if owner == "" {
		return nil, apperr.ErrUnauthenticated
	}
	pr, err := p.profiles.UpsertProfile(ctx, owner, patch)
	if err != nil {
		return nil, fmt.Errorf("session: update profile: %w", err)
	}
	p.mu.Lock()
	if p.identity.Owner == owner {
		p.profile = LoadedProfile(pr)
		p.lastErr = nil
	}
	p.mu.Unlock()
	return pr, nil
}

// EditSettings applies patch locally right away and writes it after the
// settings quiet period. Edits made within one period are merged.
func (p *Provider) EditSettings(patch models.ProfilePatch) error {
	p.mu.Lock()
	owner := p.identity.Owner
	if !p.ready || owner == "" {
		p.mu.Unlock()
		return apperr.ErrUnauthenticated
	}
	pr, ok := p.profile.Profile()
	if !ok {
		pr = &models.Profile{OwnerID: owner, Topics: []string{}}
	}
	patch.Apply(pr)
	p.profile = LoadedProfile(pr)
	p.pending = p.pending.Merge(patch)
	p.mu.Unlock()

	p.settings.Schedule(settingsKey, func(ctx context.Context) error {
		p.mu.Lock()
		next := p.pending
		p.pending = models.ProfilePatch{}
		p.mu.Unlock()
		_, err := p.profiles.UpsertProfile(ctx, owner, next)
		return err
	})
	return nil
}

// AddTopic commits raw to the topic list through the settings path.
func (p *Provider) AddTopic(raw string) error {
	topics := p.topics()
	next := models.AddTopic(topics, raw)
	if len(next) == len(topics) {
		return nil
	}
	return p.EditSettings(models.ProfilePatch{Topics: &next})
}

// RemoveTopic drops t from the topic list through the settings path.
func (p *Provider) RemoveTopic(t string) error {
	next := models.RemoveTopic(p.topics(), t)
	return p.EditSettings(models.ProfilePatch{Topics: &next})
}

func (p *Provider) topics() []string {
	if pr, ok := p.Profile().Profile(); ok {
		return pr.Topics
	}
	return nil
}

// CompleteOnboarding validates in and stores it with onboarding_complete set.
func (p *Provider) CompleteOnboarding(ctx context.Context, in Onboarding) (*models.Profile, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	return p.UpdateProfile(ctx, in.Patch())
}

// SignOut writes pending settings, ends the session and clears local state.
func (p *Provider) SignOut(ctx context.Context) error {
	if err := p.settings.Flush(ctx); err != nil {
		p.logger.Warn("session: flush settings failed", slog.String("error", err.Error()))
	}
	if err := p.auth.SignOut(ctx); err != nil {
		return fmt.Errorf("session: sign out: %w", err)
	}
	p.mu.Lock()
	p.signedOutLocked()
	p.mu.Unlock()
	return nil
}

// SyncState reports the settings write state.
func (p *Provider) SyncState() debounce.State {
	return p.settings.State(settingsKey)
}

// Close writes pending settings.
func (p *Provider) Close(ctx context.Context) error {
	return p.settings.Close(ctx)
}
