package authgate_test

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-authgate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type configStub struct {
	locale string
}

func (c configStub) GetLocale() string                                { return c.locale }
func (configStub) GetPlatform() string                                { return string(authgate.PlatformIOS) }
func (configStub) GetAlertTitle() string                              { return "Entrar" }
func (configStub) GetRemoteConfigMinimumFetchInterval() time.Duration { return time.Minute }
func (configStub) GetPushTokenKey() string                            { return "deviceToken" }

type appFixture struct {
	identity  *fakeIdentity
	remote    *stubRemoteConfig
	messaging *stubMessaging
	store     *memoryStore
	navigator *recordingNavigator
	notifier  *recordingNotifier
	sink      *recordingSink
}

func newAppFixture() *appFixture {
	return &appFixture{
		identity:  newFakeIdentity(),
		remote:    &stubRemoteConfig{remote: map[string]string{authgate.RemoteKeyTitle: "Remote"}},
		messaging: &stubMessaging{status: authgate.AuthorizationAuthorized, token: "tok-1"},
		store:     newMemoryStore(),
		navigator: &recordingNavigator{},
		notifier:  &recordingNotifier{},
		sink:      &recordingSink{},
	}
}

func (f *appFixture) collaborators() authgate.Collaborators {
	return authgate.Collaborators{
		Identity:     f.identity,
		RemoteConfig: f.remote,
		Messaging:    f.messaging,
		Store:        f.store,
		Navigator:    f.navigator,
		Notifier:     f.notifier,
	}
}

func TestAppStartWiresComponents(t *testing.T) {
	authgate.ResetBackgroundHandler()
	t.Cleanup(authgate.ResetBackgroundHandler)

	f := newAppFixture()
	var hooked []authgate.TransitionContext
	app := authgate.NewApp(configStub{locale: "en"}, f.collaborators(),
		authgate.WithAppLogger(&captureLogger{}),
		authgate.WithAppActivitySink(f.sink),
		authgate.WithAppTransitionHook(func(_ context.Context, tc authgate.TransitionContext) {
			hooked = append(hooked, tc)
		}),
	)

	require.NoError(t, app.Start(context.Background()))
	require.NoError(t, app.Start(context.Background()))

	assert.Equal(t, 1, f.identity.Listeners())
	assert.Equal(t, 1, f.messaging.backgrounds)
	assert.Equal(t, 1, f.messaging.registered, "ios registers for remote messages")
	assert.Equal(t, "tok-1", f.store.items["deviceToken"])
	require.Len(t, f.remote.settings, 1)
	assert.Equal(t, time.Minute, f.remote.settings[0].MinimumFetchInterval)
	assert.Equal(t, "Remote", app.Login.Title())
	assert.Equal(t, "tok-1", app.Login.PushToken())
	assert.Equal(t, authgate.LocaleEN, app.Submitter.Catalog().Locale)

	f.identity.Emit(&authgate.User{UID: "u1", Email: "ana@example.com"})
	assert.Equal(t, []authgate.Route{authgate.RouteProtectedEntry}, f.navigator.Routes())
	assert.Equal(t, "ana@example.com", app.Home.Email())
	require.Len(t, hooked, 1)
	assert.Contains(t, f.sink.Types(), authgate.ActivityEventSessionChanged)

	require.NoError(t, app.Home.SignOut(context.Background()))
	alerts := f.notifier.Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, "Entrar", alerts[0].title)
	assert.Equal(t, "Signed out successfully!", alerts[0].message)
	assert.Equal(t, authgate.RoutePublicEntry, app.Gate.Route())

	app.Stop()
	app.Stop()
	assert.Equal(t, 0, f.identity.Listeners())
	assert.Equal(t, 2, f.messaging.released)
}

func TestAppStartToleratesInstalledBackgroundHandler(t *testing.T) {
	authgate.ResetBackgroundHandler()
	t.Cleanup(authgate.ResetBackgroundHandler)

	first := newAppFixture()
	second := newAppFixture()

	require.NoError(t, authgate.NewApp(nil, first.collaborators(), authgate.WithAppLogger(&captureLogger{})).Start(context.Background()))
	require.NoError(t, authgate.NewApp(nil, second.collaborators(), authgate.WithAppLogger(&captureLogger{})).Start(context.Background()))

	assert.Equal(t, 1, first.messaging.backgrounds)
	assert.Equal(t, 0, second.messaging.backgrounds)
}

func TestAppDefaultsWithoutConfig(t *testing.T) {
	authgate.ResetBackgroundHandler()
	t.Cleanup(authgate.ResetBackgroundHandler)

	f := newAppFixture()
	app := authgate.NewApp(nil, f.collaborators(), authgate.WithAppLogger(&captureLogger{}))
	require.NoError(t, app.Start(context.Background()))

	assert.Equal(t, authgate.LocalePTBR, app.Submitter.Catalog().Locale)
	assert.Equal(t, 0, f.messaging.registered, "android skips device registration")
	assert.Equal(t, "tok-1", f.store.items[authgate.DefaultPushTokenKey])
}

func TestAppStartFailsWithoutIdentity(t *testing.T) {
	authgate.ResetBackgroundHandler()
	t.Cleanup(authgate.ResetBackgroundHandler)

	f := newAppFixture()
	deps := f.collaborators()
	deps.Identity = nil

	app := authgate.NewApp(nil, deps, authgate.WithAppLogger(&captureLogger{}))
	require.Error(t, app.Start(context.Background()))
}

func TestAppUsesLoggerProvider(t *testing.T) {
	authgate.ResetBackgroundHandler()
	t.Cleanup(authgate.ResetBackgroundHandler)

	provider := &loggerProviderSpy{logger: &captureLogger{}}
	authgate.NewApp(nil, newAppFixture().collaborators(), authgate.WithAppLoggerProvider(provider))

	assert.Contains(t, provider.names, "authgate")
	assert.Contains(t, provider.names, "authgate.gate")
	assert.Contains(t, provider.names, "authgate.submitter")
	assert.Contains(t, provider.names, "authgate.push")
	assert.Contains(t, provider.names, "authgate.flags")
	assert.Contains(t, provider.names, "authgate.background")
}
