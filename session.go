package authgate

import (
	"fmt"
	"strings"
)

// User is the identity reported by the identity collaborator.
type User struct {
	UID           string `json:"uid"`
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified,omitempty"`
	DisplayName   string `json:"display_name,omitempty"`
}

// ID returns the opaque user id.
func (u *User) ID() string {
	if u == nil {
		return ""
	}
	return u.UID
}

func (u *User) clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

// SessionState is the local view of whether somebody is signed in.
type SessionState string

const (
	// StateUnknown is the initializing state, before the first notification.
	StateUnknown       SessionState = "unknown"
	StateAnonymous     SessionState = "anonymous"
	StateAuthenticated SessionState = "authenticated"
)

// Session is the current authentication status of the app.
type Session struct {
	State SessionState `json:"state"`
	User  *User        `json:"user,omitempty"`
}

// NewSession returns the initial session.
func NewSession() Session {
	return Session{State: StateUnknown}
}

// Initializing reports whether no auth notification has been received yet.
func (s Session) Initializing() bool {
	return s.State == "" || s.State == StateUnknown
}

// Authenticated reports whether a user is signed in.
func (s Session) Authenticated() bool {
	return s.State == StateAuthenticated && s.User != nil
}

func (s Session) String() string {
	if s.Authenticated() {
		return fmt.Sprintf("state=%s uid=%s email=%s", s.State, s.User.UID, s.User.Email)
	}
	return fmt.Sprintf("state=%s", s.State)
}

// AuthStateEvent is one auth changed notification. A nil User means signed out.
type AuthStateEvent struct {
	User *User
}

// NextSession applies an auth changed event. The resulting session only
// depends on the event payload.
func NextSession(_ Session, event AuthStateEvent) Session {
	if event.User == nil {
		return Session{State: StateAnonymous}
	}
	return Session{State: StateAuthenticated, User: event.User.clone()}
}

// Route is a navigation path.
type Route string

// RouteGroup partitions routes by access requirement.
type RouteGroup string

const (
	RouteGroupPublic    RouteGroup = "public"
	RouteGroupProtected RouteGroup = "protected"

	// ProtectedSegment is the first path segment of protected routes.
	ProtectedSegment = "(auth)"

	// RoutePublicEntry is where anonymous users land.
	RoutePublicEntry Route = "/"
	// RouteProtectedEntry is where authenticated users land.
	RouteProtectedEntry Route = "/(auth)/home"
)

// Segments splits the route path.
func (r Route) Segments() []string {
	trimmed := strings.Trim(string(r), "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// Group returns the route group of r.
func (r Route) Group() RouteGroup {
	segments := r.Segments()
	if len(segments) > 0 && segments[0] == ProtectedSegment {
		return RouteGroupProtected
	}
	return RouteGroupPublic
}

// Decide returns the redirect needed for the session to agree with the
// current route group. It never redirects while initializing.
func Decide(s Session, group RouteGroup) (Route, bool) {
	if s.Initializing() {
		return "", false
	}

	inProtected := group == RouteGroupProtected
	switch {
	case s.Authenticated() && !inProtected:
		return RouteProtectedEntry, true
	case !s.Authenticated() && inProtected:
		return RoutePublicEntry, true
	default:
		return "", false
	}
}
