package session

import "context"

// EventKind names an auth notification.
type EventKind string

const (
	EventSignedIn       EventKind = "SIGNED_IN"
	EventSignedOut      EventKind = "SIGNED_OUT"
	EventTokenRefreshed EventKind = "TOKEN_REFRESHED"
)

// AuthEvent is a change reported by an Authenticator.
type AuthEvent struct {
	Kind  EventKind
	Owner string
}

// Authenticator is the identity backend behind a Provider.
type Authenticator interface {
	// Current returns the signed-in owner, or "" when signed out.
	Current(ctx context.Context) (string, error)
	// Events delivers notifications until the authenticator stops.
	Events() <-chan AuthEvent
	SignOut(ctx context.Context) error
}
