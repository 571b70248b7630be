package goSession

import "time"

// Session is a read-only snapshot of the authenticated principal's credentials.
//
// The zero value is the Anonymous session. AccessToken and IssuedAt are always set
// and cleared together.
type Session struct {
	AccessToken  string
	RefreshToken string
	Role         string
	SubjectID    string
	IssuedAt     time.Time
	IsLoading    bool
}

// Authenticated reports whether the snapshot carries an access token.
func (s Session) Authenticated() bool {
	return s.AccessToken != ""
}

// Age returns how long ago the access token was issued, relative to now.
func (s Session) Age(now time.Time) time.Duration {
	if s.IssuedAt.IsZero() {
		return 0
	}
	return now.Sub(s.IssuedAt)
}

// State is the session-level state machine position.
type State uint8

const (
	// StateAnonymous means no credentials are held.
	StateAnonymous State = iota
	// StateAuthenticating means a Login call is in flight.
	StateAuthenticating
	// StateAuthenticated means an access token is held and live.
	StateAuthenticated
	// StateRefreshing means an access token is held and a RefreshToken call is in flight.
	StateRefreshing
)

func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateRefreshing:
		return "refreshing"
	default:
		return "unknown"
	}
}

// State derives the state machine position of the snapshot.
func (s Session) State() State {
	return stateOf(s)
}

// stateOf derives the State for a snapshot.
func stateOf(s Session) State {
	switch {
	case s.AccessToken != "" && s.IsLoading:
		return StateRefreshing
	case s.AccessToken != "":
		return StateAuthenticated
	case s.IsLoading:
		return StateAuthenticating
	default:
		return StateAnonymous
	}
}
