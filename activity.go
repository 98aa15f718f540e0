package authgate

import (
	"context"
	stderrors "errors"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventSessionChanged        ActivityEventType = "session.changed"
	ActivityEventSignInSuccess         ActivityEventType = "auth.signin.success"
	ActivityEventSignInFailure         ActivityEventType = "auth.signin.failure"
	ActivityEventSignUpSuccess         ActivityEventType = "auth.signup.success"
	ActivityEventSignUpFailure         ActivityEventType = "auth.signup.failure"
	ActivityEventSignOut               ActivityEventType = "auth.signout"
	ActivityEventPasswordResetRequest  ActivityEventType = "auth.password.reset.requested"
	ActivityEventPushTokenRegistered   ActivityEventType = "push.token.registered"
	ActivityEventPushPermissionChanged ActivityEventType = "push.permission.changed"
)

// ActorRef identifies who/what triggered an action.
type ActorRef struct {
	ID   string
	Type string
}

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	Actor      ActorRef
	UserID     string
	FromState  SessionState
	ToState    SessionState
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

// ActivitySinks fans an event out to every non nil sink. All sinks are
// called; their errors are joined.
func ActivitySinks(sinks ...ActivitySink) ActivitySink {
	filtered := make([]ActivitySink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			filtered = append(filtered, s)
		}
	}
	return ActivitySinkFunc(func(ctx context.Context, event ActivityEvent) error {
		var errs []error
		for _, s := range filtered {
			if err := s.Record(ctx, event); err != nil {
				errs = append(errs, err)
			}
		}
		return stderrors.Join(errs...)
	})
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

// recordActivity fills defaults and records event, logging sink failures.
func recordActivity(ctx context.Context, sink ActivitySink, logger Logger, now func() time.Time, event ActivityEvent) {
	if event.Actor == (ActorRef{}) {
		event.Actor = ActorRef{Type: "system"}
		if event.UserID != "" {
			event.Actor = ActorRef{ID: event.UserID, Type: "user"}
		}
	}

	if event.OccurredAt.IsZero() {
		if now == nil {
			now = time.Now
		}
		event.OccurredAt = now()
	}

	if err := normalizeActivitySink(sink).Record(ctx, event); err != nil && logger != nil {
		logger.Warn("activity sink error", "event", event.EventType, "error", err)
	}
}
