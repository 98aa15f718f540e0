package authgate

import (
	"context"
	"sync"
	"time"
)

// TransitionContext is passed into hooks after every applied auth event.
type TransitionContext struct {
	From     Session
	To       Session
	Route    Route
	Redirect Route
}

// Redirected reports whether the transition issued a navigation command.
func (tc TransitionContext) Redirected() bool {
	return tc.Redirect != ""
}

// TransitionHook is executed after a session transition has been applied.
type TransitionHook func(ctx context.Context, tc TransitionContext)

// GateOption customizes SessionGate construction.
type GateOption func(*SessionGate)

// WithGateClock injects a custom clock (useful for tests).
func WithGateClock(clock func() time.Time) GateOption {
	return func(g *SessionGate) {
		if clock != nil {
			g.now = clock
		}
	}
}

// WithGateActivitySink sets the ActivitySink used to publish session changes.
func WithGateActivitySink(sink ActivitySink) GateOption {
	return func(g *SessionGate) {
		g.activitySink = normalizeActivitySink(sink)
	}
}

// WithGateLogger overrides the gate logger.
func WithGateLogger(logger Logger) GateOption {
	return func(g *SessionGate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithGateInitialRoute sets the route the app is showing before the first event.
func WithGateInitialRoute(route Route) GateOption {
	return func(g *SessionGate) {
		if route != "" {
			g.route = route
		}
	}
}

// WithGateTransitionHook adds a hook executed after each applied transition.
func WithGateTransitionHook(h TransitionHook) GateOption {
	return func(g *SessionGate) {
		if h != nil {
			g.hooks = append(g.hooks, h)
		}
	}
}

// SessionGate observes auth state changes and keeps the navigation route
// group in agreement with the session.
type SessionGate struct {
	identity  IdentityClient
	navigator Navigator

	mu          sync.Mutex
	session     Session
	route       Route
	mounted     bool
	generation  uint64
	unsubscribe func()

	now          func() time.Time
	activitySink ActivitySink
	logger       Logger
	hooks        []TransitionHook
}

// NewSessionGate returns a gate in the initializing state.
func NewSessionGate(identity IdentityClient, navigator Navigator, opts ...GateOption) *SessionGate {
	g := &SessionGate{
		identity:     identity,
		navigator:    navigator,
		session:      NewSession(),
		route:        RoutePublicEntry,
		now:          time.Now,
		activitySink: noopActivitySink{},
		logger:       defaultLogger(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}

	return g
}

// Mount subscribes to auth state changes. Mounting twice is a no-op.
func (g *SessionGate) Mount(ctx context.Context) error {
	if g.identity == nil {
		return missingCollaborator("identity")
	}

	g.mu.Lock()
	if g.mounted {
		g.mu.Unlock()
		return nil
	}
	g.mounted = true
	g.generation++
	gen := g.generation
	g.mu.Unlock()

	// the identity client may deliver the current user synchronously
	unsubscribe := g.identity.OnAuthStateChanged(func(user *User) {
		g.handle(ctx, gen, AuthStateEvent{User: user})
	})

	g.mu.Lock()
	if !g.mounted || g.generation != gen {
		g.mu.Unlock()
		if unsubscribe != nil {
			unsubscribe()
		}
		return nil
	}
	g.unsubscribe = unsubscribe
	g.mu.Unlock()

	g.logger.Debug("session gate mounted")
	return nil
}

// Unmount releases the subscription. Events delivered afterwards are dropped.
func (g *SessionGate) Unmount() {
	g.mu.Lock()
	if !g.mounted {
		g.mu.Unlock()
		return
	}
	g.mounted = false
	g.generation++
	unsubscribe := g.unsubscribe
	g.unsubscribe = nil
	g.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	g.logger.Debug("session gate unmounted")
}

// Session returns a snapshot of the current session.
func (g *SessionGate) Session() Session {
	g.mu.Lock()
	defer g.mu.Unlock()
	s := g.session
	s.User = s.User.clone()
	return s
}

// Loading is true until the first auth notification arrives.
func (g *SessionGate) Loading() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.session.Initializing()
}

// Route returns the route the gate believes is on screen.
func (g *SessionGate) Route() Route {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.route
}

// SetRoute records user driven navigation. It does not trigger a redirect;
// the next auth event is evaluated against it.
func (g *SessionGate) SetRoute(route Route) {
	if route == "" {
		return
	}
	g.mu.Lock()
	g.route = route
	g.mu.Unlock()
}

func (g *SessionGate) handle(ctx context.Context, gen uint64, event AuthStateEvent) {
	g.mu.Lock()
	if !g.mounted || g.generation != gen {
		g.mu.Unlock()
		g.logger.Debug("auth event dropped, gate not mounted", "uid", event.User.ID())
		return
	}

	from := g.session
	to := NextSession(from, event)
	g.session = to

	current := g.route
	redirect, ok := Decide(to, current.Group())
	if ok {
		g.route = redirect
	}
	g.mu.Unlock()

	g.logger.Debug("session changed",
		"from", from.State,
		"to", to.State,
		"uid", to.User.ID(),
		"route", current,
		"redirect", redirect,
	)

	if ok && g.navigator != nil {
		g.navigator.Replace(redirect)
	}

	var metadata map[string]any
	if ok {
		metadata = map[string]any{"route": string(current), "redirect": string(redirect)}
	}

	recordActivity(ctx, g.activitySink, g.logger, g.now, ActivityEvent{
		EventType: ActivityEventSessionChanged,
		UserID:    to.User.ID(),
		FromState: from.State,
		ToState:   to.State,
		Metadata:  metadata,
	})

	if len(g.hooks) == 0 {
		return
	}
	hookCtx := WithSessionContext(ctx, to)
	if to.User != nil {
		hookCtx = WithContext(hookCtx, to.User.clone())
	}
	tc := TransitionContext{From: from, To: to, Route: current, Redirect: redirect}
	for _, hook := range g.hooks {
		hook(hookCtx, tc)
	}
}
