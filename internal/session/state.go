package session

import "github.com/starford/postjournal/internal/models"

// Status is the identity resolution state.
type Status int

const (
	StatusLoading Status = iota
	StatusUnauthenticated
	StatusResolved
)

func (s Status) String() string {
	switch s {
	case StatusUnauthenticated:
		return "unauthenticated"
	case StatusResolved:
		return "resolved"
	default:
		return "loading"
	}
}

// Identity is who the client acts for. Owner is set only when Status is
// StatusResolved.
type Identity struct {
	Status Status `json:"status"`
	Owner  string `json:"owner,omitempty"`
}

// ProfileState is one of NotLoaded, Loaded with no profile row, or Loaded with
// a profile.
type ProfileState struct {
	loaded  bool
	profile *models.Profile
}

// NotLoaded is the state before the first fetch for the current owner.
func NotLoaded() ProfileState { return ProfileState{} }

// LoadedNone records that the owner has no profile row yet.
func LoadedNone() ProfileState { return ProfileState{loaded: true} }

// LoadedProfile wraps a fetched profile.
func LoadedProfile(p *models.Profile) ProfileState {
	if p == nil {
		return LoadedNone()
	}
	cp := *p
	cp.Topics = append([]string{}, p.Topics...)
	return ProfileState{loaded: true, profile: &cp}
}

// Loaded reports whether a fetch has completed.
func (s ProfileState) Loaded() bool { return s.loaded }

// Profile returns a copy of the profile when one is loaded.
func (s ProfileState) Profile() (*models.Profile, bool) {
	if s.profile == nil {
		return nil, false
	}
	cp := *s.profile
	cp.Topics = append([]string{}, s.profile.Topics...)
	return &cp, true
}

func (s ProfileState) String() string {
	switch {
	case !s.loaded:
		return "not_loaded"
	case s.profile == nil:
		return "none"
	default:
		return "loaded"
	}
}

// View is the top-level screen the gate selects.
type View string

const (
	ViewLoading    View = "loading"
	ViewError      View = "error"
	ViewLogin      View = "login"
	ViewOnboarding View = "onboarding"
	ViewApp        View = "app"
)

// Gate picks the view for an identity and profile state. lastErr is the
// failure of the most recent profile fetch, if any.
func Gate(id Identity, ps ProfileState, lastErr error) View {
	switch id.Status {
	case StatusLoading:
		return ViewLoading
	case StatusUnauthenticated:
		return ViewLogin
	}
	if !ps.Loaded() {
		if lastErr != nil {
			return ViewError
		}
		return ViewLoading
	}
	p, ok := ps.Profile()
	if !ok || !p.OnboardingComplete {
		return ViewOnboarding
	}
	return ViewApp
}
