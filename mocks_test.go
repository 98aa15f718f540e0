package authgate_test

import (
	"context"
	"strconv"
	"sync"

	"github.com/goliatone/go-authgate"
	"github.com/stretchr/testify/mock"
)

// fakeIdentity is an in memory identity client. Emit drives auth events.
type fakeIdentity struct {
	mu        sync.Mutex
	listeners map[int]authgate.AuthStateListener
	nextID    int
	current   *authgate.User

	// deliverOnSubscribe calls the listener with the current user inside
	// OnAuthStateChanged.
	deliverOnSubscribe bool
	unsubscribed       int

	signIn    func(ctx context.Context, email, password string) (*authgate.User, error)
	signUp    func(ctx context.Context, email, password string) (*authgate.User, error)
	signOut   error
	resetErr  error
	resetSent []string
}

func newFakeIdentity() *fakeIdentity {
	return &fakeIdentity{listeners: map[int]authgate.AuthStateListener{}}
}

func (f *fakeIdentity) OnAuthStateChanged(listener authgate.AuthStateListener) func() {
	f.mu.Lock()
	f.nextID++
	id := f.nextID
	f.listeners[id] = listener
	current := f.current
	f.mu.Unlock()

	if f.deliverOnSubscribe {
		listener(current)
	}

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if _, ok := f.listeners[id]; ok {
			delete(f.listeners, id)
			f.unsubscribed++
		}
	}
}

func (f *fakeIdentity) Emit(user *authgate.User) {
	f.mu.Lock()
	f.current = user
	listeners := make([]authgate.AuthStateListener, 0, len(f.listeners))
	for _, l := range f.listeners {
		listeners = append(listeners, l)
	}
	f.mu.Unlock()

	for _, l := range listeners {
		l(user)
	}
}

func (f *fakeIdentity) Listeners() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listeners)
}

func (f *fakeIdentity) SignInWithEmailAndPassword(ctx context.Context, email, password string) (*authgate.User, error) {
	if f.signIn == nil {
		return &authgate.User{UID: "uid-" + email, Email: email}, nil
	}
	return f.signIn(ctx, email, password)
}

func (f *fakeIdentity) CreateUserWithEmailAndPassword(ctx context.Context, email, password string) (*authgate.User, error) {
	if f.signUp == nil {
		return &authgate.User{UID: "new-uid", Email: email}, nil
	}
	return f.signUp(ctx, email, password)
}

func (f *fakeIdentity) SignOut(context.Context) error {
	if f.signOut != nil {
		return f.signOut
	}
	f.Emit(nil)
	return nil
}

func (f *fakeIdentity) CurrentUser() *authgate.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

func (f *fakeIdentity) SendPasswordResetEmail(_ context.Context, email string) error {
	if f.resetErr != nil {
		return f.resetErr
	}
	f.mu.Lock()
	f.resetSent = append(f.resetSent, email)
	f.mu.Unlock()
	return nil
}

// bareIdentity hides SendPasswordResetEmail.
type bareIdentity struct {
	authgate.IdentityClient
}

// codedError carries a provider code the way identity clients report it.
type codedError struct {
	code string
}

func (e codedError) Error() string     { return "provider error " + e.code }
func (e codedError) ErrorCode() string { return e.code }

// MockDatastore implements authgate.Datastore
type MockDatastore struct {
	mock.Mock
}

func (m *MockDatastore) WriteRecord(ctx context.Context, path string, value map[string]any) error {
	args := m.Called(ctx, path, value)
	return args.Error(0)
}

type alert struct {
	title   string
	message string
	kind    authgate.AlertKind
}

type recordingNotifier struct {
	mu     sync.Mutex
	alerts []alert
	toasts []authgate.Toast
}

func (n *recordingNotifier) Alert(title, message string, kind authgate.AlertKind) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, alert{title: title, message: message, kind: kind})
}

func (n *recordingNotifier) Toast(toast authgate.Toast) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.toasts = append(n.toasts, toast)
}

func (n *recordingNotifier) Alerts() []alert {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]alert(nil), n.alerts...)
}

func (n *recordingNotifier) Toasts() []authgate.Toast {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]authgate.Toast(nil), n.toasts...)
}

type recordingNavigator struct {
	mu     sync.Mutex
	routes []authgate.Route
}

func (n *recordingNavigator) Replace(route authgate.Route) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.routes = append(n.routes, route)
}

func (n *recordingNavigator) Routes() []authgate.Route {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]authgate.Route(nil), n.routes...)
}

type recordingSink struct {
	mu     sync.Mutex
	events []authgate.ActivityEvent
	err    error
}

func (s *recordingSink) Record(_ context.Context, event authgate.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return s.err
}

func (s *recordingSink) Events() []authgate.ActivityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]authgate.ActivityEvent(nil), s.events...)
}

func (s *recordingSink) Types() []authgate.ActivityEventType {
	var out []authgate.ActivityEventType
	for _, e := range s.Events() {
		out = append(out, e.EventType)
	}
	return out
}

type stubValue struct {
	raw    string
	source authgate.ValueSource
}

func (v stubValue) AsString() string { return v.raw }
func (v stubValue) AsBoolean() bool {
	b, _ := strconv.ParseBool(v.raw)
	return b
}
func (v stubValue) AsNumber() float64 {
	f, _ := strconv.ParseFloat(v.raw, 64)
	return f
}
func (v stubValue) Source() authgate.ValueSource { return v.source }

// stubRemoteConfig serves values as remote once activated.
type stubRemoteConfig struct {
	mu          sync.Mutex
	settings    []authgate.ConfigSettings
	defaults    map[string]any
	remote      map[string]string
	activated   bool
	fetchErr    error
	fetchCalls  int
	setDefaults int
}

func (s *stubRemoteConfig) SetConfigSettings(settings authgate.ConfigSettings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = append(s.settings, settings)
}

func (s *stubRemoteConfig) SetDefaults(defaults map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaults = defaults
	s.setDefaults++
}

func (s *stubRemoteConfig) FetchAndActivate(context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetchCalls++
	if s.fetchErr != nil {
		return false, s.fetchErr
	}
	changed := !s.activated && len(s.remote) > 0
	s.activated = true
	return changed, nil
}

func (s *stubRemoteConfig) GetValue(key string) authgate.ConfigValue {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activated {
		if v, ok := s.remote[key]; ok {
			return stubValue{raw: v, source: authgate.ValueSourceRemote}
		}
	}
	if v, ok := s.defaults[key]; ok {
		switch typed := v.(type) {
		case string:
			return stubValue{raw: typed, source: authgate.ValueSourceDefault}
		case bool:
			return stubValue{raw: strconv.FormatBool(typed), source: authgate.ValueSourceDefault}
		}
	}
	return stubValue{source: authgate.ValueSourceStatic}
}

// stubMessaging records calls made by the push registrar.
type stubMessaging struct {
	mu          sync.Mutex
	status      authgate.AuthorizationStatus
	permErr     error
	token       string
	tokenErr    error
	tokenCalls  int
	registered  int
	initial     *authgate.RemoteMessage
	onMessage   []authgate.MessageHandler
	onOpened    []authgate.MessageHandler
	released    int
	background  authgate.MessageHandler
	backgrounds int
}

func (m *stubMessaging) RequestPermission(context.Context) (authgate.AuthorizationStatus, error) {
	return m.status, m.permErr
}

func (m *stubMessaging) RegisterDeviceForRemoteMessages(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registered++
	return nil
}

func (m *stubMessaging) GetToken(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokenCalls++
	return m.token, m.tokenErr
}

func (m *stubMessaging) OnMessage(handler authgate.MessageHandler) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onMessage = append(m.onMessage, handler)
	return m.release
}

func (m *stubMessaging) OnNotificationOpenedApp(handler authgate.MessageHandler) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onOpened = append(m.onOpened, handler)
	return m.release
}

func (m *stubMessaging) release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.released++
}

func (m *stubMessaging) GetInitialNotification(context.Context) (*authgate.RemoteMessage, error) {
	return m.initial, nil
}

func (m *stubMessaging) SetBackgroundMessageHandler(handler authgate.MessageHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.background = handler
	m.backgrounds++
}

func (m *stubMessaging) deliver(ctx context.Context, msg *authgate.RemoteMessage) {
	m.mu.Lock()
	handlers := append([]authgate.MessageHandler(nil), m.onMessage...)
	m.mu.Unlock()
	for _, h := range handlers {
		_ = h(ctx, msg)
	}
}

func (m *stubMessaging) open(ctx context.Context, msg *authgate.RemoteMessage) {
	m.mu.Lock()
	handlers := append([]authgate.MessageHandler(nil), m.onOpened...)
	m.mu.Unlock()
	for _, h := range handlers {
		_ = h(ctx, msg)
	}
}

type memoryStore struct {
	mu     sync.Mutex
	items  map[string]string
	getErr error
	sets   int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{items: map[string]string{}}
}

func (s *memoryStore) GetItem(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return "", s.getErr
	}
	return s.items[key], nil
}

func (s *memoryStore) SetItem(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = value
	s.sets++
	return nil
}

type logCall struct {
	level   string
	message string
	args    []any
}

type captureLogger struct {
	mu    sync.Mutex
	calls []logCall
}

func (l *captureLogger) record(level, message string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, logCall{level: level, message: message, args: args})
}

func (l *captureLogger) Trace(message string, args ...any) { l.record("trace", message, args...) }
func (l *captureLogger) Debug(message string, args ...any) { l.record("debug", message, args...) }
func (l *captureLogger) Info(message string, args ...any)  { l.record("info", message, args...) }
func (l *captureLogger) Warn(message string, args ...any)  { l.record("warn", message, args...) }
func (l *captureLogger) Error(message string, args ...any) { l.record("error", message, args...) }
func (l *captureLogger) Fatal(message string, args ...any) { l.record("fatal", message, args...) }
func (l *captureLogger) WithContext(context.Context) authgate.Logger {
	return l
}

func (l *captureLogger) Messages(level string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, c := range l.calls {
		if c.level == level {
			out = append(out, c.message)
		}
	}
	return out
}

type loggerProviderSpy struct {
	logger authgate.Logger
	byName map[string]authgate.Logger
	names  []string
}

func (p *loggerProviderSpy) GetLogger(name string) authgate.Logger {
	p.names = append(p.names, name)
	if p.byName != nil {
		if logger, ok := p.byName[name]; ok {
			return logger
		}
	}
	return p.logger
}
