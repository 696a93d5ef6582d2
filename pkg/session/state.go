package session

import "github.com/stockly-app/sessionkit/pkg/identity"

// Phase is the coarse session state.
type Phase string

const (
	// PhaseHydrating lasts from construction until Hydrate finishes.
	PhaseHydrating Phase = "hydrating"
	// PhaseAnonymous means no user is signed in.
	PhaseAnonymous Phase = "anonymous"
	// PhaseAuthenticated means a user is signed in.
	PhaseAuthenticated Phase = "authenticated"
)

// State is an immutable snapshot of the session.
type State struct {
	User           *identity.User
	Hydrating      bool
	Authenticating bool
}

// IsAuthenticated reports whether a user is present.
func (s State) IsAuthenticated() bool {
	return s.User != nil
}

// IsLoading reports whether the initial hydration is still running.
func (s State) IsLoading() bool {
	return s.Hydrating
}

// Phase derives the coarse state. An authenticated user wins over a still
// running hydration, since a login may complete first.
func (s State) Phase() Phase {
	switch {
	case s.User != nil:
		return PhaseAuthenticated
	case s.Hydrating:
		return PhaseHydrating
	default:
		return PhaseAnonymous
	}
}
