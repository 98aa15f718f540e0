package authgate_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-authgate"
	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionGateInitializingDoesNotNavigate(t *testing.T) {
	identity := newFakeIdentity()
	nav := &recordingNavigator{}
	g := authgate.NewSessionGate(identity, nav, authgate.WithGateInitialRoute("/(auth)/home"))

	require.NoError(t, g.Mount(context.Background()))

	assert.True(t, g.Loading())
	assert.Empty(t, nav.Routes())
	assert.Equal(t, authgate.Route("/(auth)/home"), g.Route())
}

func TestSessionGateRedirectsOnAuthEvents(t *testing.T) {
	identity := newFakeIdentity()
	nav := &recordingNavigator{}
	g := authgate.NewSessionGate(identity, nav)
	require.NoError(t, g.Mount(context.Background()))

	identity.Emit(nil)
	assert.False(t, g.Loading())
	assert.Equal(t, authgate.StateAnonymous, g.Session().State)
	assert.Empty(t, nav.Routes(), "anonymous on public route stays put")

	identity.Emit(&authgate.User{UID: "u1", Email: "ana@example.com"})
	assert.Equal(t, []authgate.Route{authgate.RouteProtectedEntry}, nav.Routes())
	assert.Equal(t, authgate.RouteProtectedEntry, g.Route())
	assert.Equal(t, "u1", g.Session().User.UID)

	// token refresh style repeat, already in the protected group
	identity.Emit(&authgate.User{UID: "u1", Email: "ana@example.com"})
	assert.Len(t, nav.Routes(), 1)

	identity.Emit(nil)
	assert.Equal(t, []authgate.Route{authgate.RouteProtectedEntry, authgate.RoutePublicEntry}, nav.Routes())
}

func TestSessionGateEvaluatesUserNavigation(t *testing.T) {
	identity := newFakeIdentity()
	nav := &recordingNavigator{}
	g := authgate.NewSessionGate(identity, nav)
	require.NoError(t, g.Mount(context.Background()))

	identity.Emit(nil)
	g.SetRoute("/(auth)/settings")
	assert.Empty(t, nav.Routes(), "SetRoute alone never redirects")

	identity.Emit(nil)
	assert.Equal(t, []authgate.Route{authgate.RoutePublicEntry}, nav.Routes())
}

func TestSessionGateSynchronousFirstDelivery(t *testing.T) {
	identity := newFakeIdentity()
	identity.current = &authgate.User{UID: "u1"}
	identity.deliverOnSubscribe = true
	nav := &recordingNavigator{}

	g := authgate.NewSessionGate(identity, nav)
	require.NoError(t, g.Mount(context.Background()))

	assert.False(t, g.Loading())
	assert.Equal(t, []authgate.Route{authgate.RouteProtectedEntry}, nav.Routes())
}

func TestSessionGateMountIsIdempotent(t *testing.T) {
	identity := newFakeIdentity()
	g := authgate.NewSessionGate(identity, &recordingNavigator{})

	require.NoError(t, g.Mount(context.Background()))
	require.NoError(t, g.Mount(context.Background()))
	assert.Equal(t, 1, identity.Listeners())

	g.Unmount()
	g.Unmount()
	assert.Equal(t, 0, identity.Listeners())
	assert.Equal(t, 1, identity.unsubscribed)

	require.NoError(t, g.Mount(context.Background()))
	assert.Equal(t, 1, identity.Listeners())
}

func TestSessionGateDropsEventsAfterUnmount(t *testing.T) {
	identity := newFakeIdentity()
	nav := &recordingNavigator{}
	g := authgate.NewSessionGate(identity, nav)
	require.NoError(t, g.Mount(context.Background()))

	var captured authgate.AuthStateListener
	identity.mu.Lock()
	for _, l := range identity.listeners {
		captured = l
	}
	identity.mu.Unlock()
	require.NotNil(t, captured)

	g.Unmount()
	captured(&authgate.User{UID: "late"})

	assert.True(t, g.Loading())
	assert.Empty(t, nav.Routes())
}

func TestSessionGateMissingIdentity(t *testing.T) {
	g := authgate.NewSessionGate(nil, nil)
	err := g.Mount(context.Background())
	require.Error(t, err)

	var richErr *goerrors.Error
	require.True(t, errors.As(err, &richErr))
	assert.Equal(t, "MISSING_COLLABORATOR", richErr.TextCode)
}

func TestSessionGateRecordsActivityAndRunsHooks(t *testing.T) {
	identity := newFakeIdentity()
	sink := &recordingSink{}
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	var mu sync.Mutex
	var transitions []authgate.TransitionContext
	var hookUser *authgate.User
	var hookSession authgate.Session

	g := authgate.NewSessionGate(identity, &recordingNavigator{},
		authgate.WithGateActivitySink(sink),
		authgate.WithGateClock(func() time.Time { return fixed }),
		authgate.WithGateTransitionHook(func(ctx context.Context, tc authgate.TransitionContext) {
			mu.Lock()
			defer mu.Unlock()
			transitions = append(transitions, tc)
			hookUser, _ = authgate.FromContext(ctx)
			hookSession, _ = authgate.SessionFromContext(ctx)
		}),
	)
	require.NoError(t, g.Mount(context.Background()))

	identity.Emit(&authgate.User{UID: "u1"})

	events := sink.Events()
	require.Len(t, events, 1)
	assert.Equal(t, authgate.ActivityEventSessionChanged, events[0].EventType)
	assert.Equal(t, authgate.StateUnknown, events[0].FromState)
	assert.Equal(t, authgate.StateAuthenticated, events[0].ToState)
	assert.Equal(t, "u1", events[0].UserID)
	assert.Equal(t, authgate.ActorRef{ID: "u1", Type: "user"}, events[0].Actor)
	assert.Equal(t, fixed, events[0].OccurredAt)
	assert.Equal(t, string(authgate.RouteProtectedEntry), events[0].Metadata["redirect"])

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, transitions, 1)
	assert.True(t, transitions[0].Redirected())
	assert.Equal(t, authgate.RoutePublicEntry, transitions[0].Route)
	require.NotNil(t, hookUser)
	assert.Equal(t, "u1", hookUser.UID)
	assert.Equal(t, authgate.StateAuthenticated, hookSession.State)
}

func TestSessionGateSinkFailureIsLogged(t *testing.T) {
	identity := newFakeIdentity()
	logger := &captureLogger{}
	g := authgate.NewSessionGate(identity, nil,
		authgate.WithGateLogger(logger),
		authgate.WithGateActivitySink(&recordingSink{err: errors.New("disk full")}),
	)
	require.NoError(t, g.Mount(context.Background()))

	identity.Emit(nil)

	assert.Contains(t, logger.Messages("warn"), "activity sink error")
	assert.Equal(t, authgate.StateAnonymous, g.Session().State)
}
