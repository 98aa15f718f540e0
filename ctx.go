package authgate

import "context"

var userCtxKey = &contextKey{"user"}
var sessionCtxKey = &contextKey{"session"}

type contextKey struct {
	name string
}

// WithContext sets the User in the given context
func WithContext(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, userCtxKey, user)
}

// FromContext finds the user from the context.
func FromContext(ctx context.Context) (*User, bool) {
	if ctx == nil {
		return nil, false
	}
	raw, ok := ctx.Value(userCtxKey).(*User)
	return raw, ok && raw != nil
}

// WithSessionContext stores a session snapshot in ctx.
func WithSessionContext(ctx context.Context, session Session) context.Context {
	return context.WithValue(ctx, sessionCtxKey, session)
}

// SessionFromContext returns the session snapshot stored in ctx.
func SessionFromContext(ctx context.Context) (Session, bool) {
	if ctx == nil {
		return Session{}, false
	}
	raw, ok := ctx.Value(sessionCtxKey).(Session)
	return raw, ok
}

// withCurrentUser attaches the identity's current user unless ctx already has one.
func withCurrentUser(ctx context.Context, identity IdentityClient) context.Context {
	if identity == nil {
		return ctx
	}
	if _, ok := FromContext(ctx); ok {
		return ctx
	}
	if user := identity.CurrentUser(); user != nil {
		return WithContext(ctx, user.clone())
	}
	return ctx
}
