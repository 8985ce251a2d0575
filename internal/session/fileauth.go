package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/postjournal/internal/apperr"
	"github.com/starford/postjournal/internal/auth"
)

const reloadDelay = 100 * time.Millisecond

// FileAuth is an Authenticator backed by a credentials file holding one owner
// token. Watch turns changes to the file into auth events: a new subject is
// SIGNED_IN, the same subject rewritten is TOKEN_REFRESHED, and a removed or
// empty file is SIGNED_OUT.
type FileAuth struct {
	path   string
	logger *slog.Logger
	events chan AuthEvent

	mu    sync.Mutex
	owner string
}

var _ Authenticator = (*FileAuth)(nil)

// NewFileAuth creates a FileAuth for path.
func NewFileAuth(path string, logger *slog.Logger) *FileAuth {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileAuth{
		path:   filepath.Clean(path),
		logger: logger,
		events: make(chan AuthEvent, 16),
	}
}

// Current returns the owner of the stored token, or "" without one.
func (f *FileAuth) Current(context.Context) (string, error) {
	owner, err := f.readOwner()
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	f.owner = owner
	f.mu.Unlock()
	return owner, nil
}

// Events implements Authenticator.
func (f *FileAuth) Events() <-chan AuthEvent {
	return f.events
}

// Token returns the raw stored token for API calls.
func (f *FileAuth) Token(context.Context) (string, error) {
	tok, err := f.readToken()
	if err != nil {
		return "", err
	}
	if tok == "" {
		return "", apperr.ErrUnauthenticated
	}
	return tok, nil
}

// SignOut removes the credentials file.
func (f *FileAuth) SignOut(context.Context) error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("session: remove credentials: %w", err)
	}
	return nil
}

func (f *FileAuth) readToken() (string, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("session: read credentials: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func (f *FileAuth) readOwner() (string, error) {
	tok, err := f.readToken()
	if err != nil || tok == "" {
		return "", err
	}
	return auth.Subject(tok)
}

// Watch follows the credentials file until ctx is cancelled. Bursts of file
// events are collapsed into one reload.
func (f *FileAuth) Watch(ctx context.Context) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("session: create credentials dir: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	// Watch the directory: editors and SaveToken replace the file by rename.
	if err := w.Add(dir); err != nil {
		return err
	}
	f.logger.Info("credentials: watching", slog.String("path", f.path))

	var (
		timer    *time.Timer
		reloadCh <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case <-reloadCh:
			f.reload()

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != f.path {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDelay)
				reloadCh = timer.C
			} else {
				timer.Reset(reloadDelay)
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			f.logger.Error("credentials: watch error", slog.String("error", watchErr.Error()))
		}
	}
}

func (f *FileAuth) reload() {
	owner, err := f.readOwner()
	if err != nil {
		f.logger.Warn("credentials: unreadable, treating as signed out", slog.String("error", err.Error()))
		owner = ""
	}

	f.mu.Lock()
	prev := f.owner
	f.owner = owner
	f.mu.Unlock()

	var ev AuthEvent
	switch {
	case owner == "" && prev == "":
		return
	case owner == "":
		ev = AuthEvent{Kind: EventSignedOut}
	case owner == prev:
		ev = AuthEvent{Kind: EventTokenRefreshed, Owner: owner}
	default:
		ev = AuthEvent{Kind: EventSignedIn, Owner: owner}
	}

	select {
	case f.events <- ev:
	default:
		f.logger.Warn("credentials: event dropped", slog.String("event", string(ev.Kind)))
	}
}

// SaveToken writes token to path, readable by the current user only.
func SaveToken(path, token string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("session: create credentials dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".credentials-*")
	if err != nil {
		return fmt.Errorf("session: write credentials: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.WriteString(token + "\n"); err != nil {
		tmp.Close()
		return fmt.Errorf("session: write credentials: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("session: write credentials: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("session: write credentials: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("session: write credentials: %w", err)
	}
	return nil
}
