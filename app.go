package authgate

import (
	"context"
	stderrors "errors"
	"sync"
	"time"
)

// Collaborators groups the external services the app delegates to.
type Collaborators struct {
	Identity     IdentityClient
	Datastore    Datastore
	RemoteConfig RemoteConfig
	Messaging    Messaging
	Store        KeyValueStore
	Navigator    Navigator
	Notifier     Notifier
}

// AppOption customizes App construction.
type AppOption func(*appOptions)

type appOptions struct {
	loggerProvider LoggerProvider
	logger         Logger
	activitySink   ActivitySink
	background     MessageHandler
	hooks          []TransitionHook
	openedHandler  MessageHandler
}

func WithAppLogger(logger Logger) AppOption {
	return func(o *appOptions) {
		o.logger = logger
	}
}

// WithAppLoggerProvider resolves one named logger per component.
func WithAppLoggerProvider(provider LoggerProvider) AppOption {
	return func(o *appOptions) {
		o.loggerProvider = provider
	}
}

func WithAppActivitySink(sink ActivitySink) AppOption {
	return func(o *appOptions) {
		o.activitySink = sink
	}
}

// WithAppBackgroundHandler replaces DefaultBackgroundHandler.
func WithAppBackgroundHandler(handler MessageHandler) AppOption {
	return func(o *appOptions) {
		o.background = handler
	}
}

func WithAppTransitionHook(h TransitionHook) AppOption {
	return func(o *appOptions) {
		if h != nil {
			o.hooks = append(o.hooks, h)
		}
	}
}

func WithAppNotificationOpenedHandler(handler MessageHandler) AppOption {
	return func(o *appOptions) {
		o.openedHandler = handler
	}
}

// App wires the session gate, the submitter, the flags and push
// registration around one set of collaborators.
type App struct {
	Gate      *SessionGate
	Submitter *CredentialSubmitter
	Flags     *FeatureFlags
	Push      *PushRegistrar
	Login     *LoginScreen
	Home      *HomeScreen

	messaging  Messaging
	background MessageHandler
	logger     Logger

	mu          sync.Mutex
	started     bool
	releasePush func()
}

// NewApp builds the composition root. cfg may be nil.
func NewApp(cfg Config, deps Collaborators, opts ...AppOption) *App {
	options := &appOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}

	provider, logger := ResolveLogger("authgate", options.loggerProvider, options.logger)
	sink := normalizeActivitySink(options.activitySink)
	settings := resolveAppConfig(cfg)

	flags := NewFeatureFlags(deps.RemoteConfig,
		WithFlagsLogger(provider.GetLogger("authgate.flags")),
		WithFlagsMinimumFetchInterval(settings.minimumFetchInterval),
		WithFlagsFetchTimeout(settings.fetchTimeout),
	)

	gateOpts := []GateOption{
		WithGateLogger(provider.GetLogger("authgate.gate")),
		WithGateActivitySink(sink),
	}
	for _, h := range options.hooks {
		gateOpts = append(gateOpts, WithGateTransitionHook(h))
	}
	sessionGate := NewSessionGate(deps.Identity, deps.Navigator, gateOpts...)

	submitter := NewCredentialSubmitter(deps.Identity, deps.Datastore, deps.Notifier).
		WithLogger(provider.GetLogger("authgate.submitter")).
		WithActivitySink(sink).
		WithCatalog(CatalogFor(settings.locale)).
		WithAlertTitle(settings.alertTitle).
		WithFeatureGate(flags)

	push := NewPushRegistrar(deps.Messaging, deps.Store, deps.Notifier,
		WithPushPlatform(settings.platform),
		WithPushTokenKey(settings.pushTokenKey),
		WithPushLogger(provider.GetLogger("authgate.push")),
		WithPushActivitySink(sink),
		WithPushOpenedHandler(options.openedHandler),
	)

	background := options.background
	if background == nil {
		background = DefaultBackgroundHandler(provider.GetLogger("authgate.background"))
	}

	return &App{
		Gate:       sessionGate,
		Submitter:  submitter,
		Flags:      flags,
		Push:       push,
		Login:      NewLoginScreen(submitter, flags, push),
		Home:       NewHomeScreen(deps.Identity, submitter),
		messaging:  deps.Messaging,
		background: background,
		logger:     logger,
	}
}

// Start installs the background handler, mounts the gate, refreshes remote
// flags and starts push listeners and the permission request.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started {
		return nil
	}

	if a.messaging != nil {
		if err := InstallBackgroundHandler(a.messaging, a.background); err != nil {
			if !stderrors.Is(err, ErrBackgroundHandlerInstalled) {
				return err
			}
			a.logger.Debug("background handler already installed")
		}
	}

	if err := a.Gate.Mount(ctx); err != nil {
		return err
	}

	a.Flags.Apply()
	a.Flags.Refresh(ctx)

	a.releasePush = a.Push.Listen(ctx)
	a.Push.RequestPermission(ctx)

	a.started = true
	a.logger.Info("app started", "title", a.Flags.Title())
	return nil
}

// Stop releases the push listeners and the auth subscription.
func (a *App) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.started {
		return
	}
	if a.releasePush != nil {
		a.releasePush()
		a.releasePush = nil
	}
	a.Gate.Unmount()
	a.started = false
	a.logger.Info("app stopped")
}

type appConfig struct {
	locale               string
	platform             Platform
	alertTitle           string
	minimumFetchInterval time.Duration
	fetchTimeout         time.Duration
	pushTokenKey         string
}

// fetchTimeoutConfig is implemented by configs that bound remote config fetches.
type fetchTimeoutConfig interface {
	GetRemoteConfigFetchTimeout() time.Duration
}

func resolveAppConfig(cfg Config) appConfig {
	out := appConfig{
		locale:       LocalePTBR,
		platform:     PlatformAndroid,
		alertTitle:   DefaultAlertTitle,
		pushTokenKey: DefaultPushTokenKey,
	}
	if cfg == nil {
		return out
	}
	if v := cfg.GetLocale(); v != "" {
		out.locale = v
	}
	if v := cfg.GetPlatform(); v != "" {
		out.platform = Platform(v)
	}
	if v := cfg.GetAlertTitle(); v != "" {
		out.alertTitle = v
	}
	if v := cfg.GetPushTokenKey(); v != "" {
		out.pushTokenKey = v
	}
	out.minimumFetchInterval = cfg.GetRemoteConfigMinimumFetchInterval()
	if tc, ok := cfg.(fetchTimeoutConfig); ok {
		out.fetchTimeout = tc.GetRemoteConfigFetchTimeout()
	}
	return out
}
