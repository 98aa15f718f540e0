package authgate

import (
	"context"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultPushTokenKey is the key value store entry caching the push token.
	DefaultPushTokenKey = "fcmToken"

	DefaultToastTitle      = "Nova mensagem"
	DefaultToastBody       = "Você recebeu uma nova notificação"
	DefaultToastVisibility = 4 * time.Second
	ToastKindInfo          = "info"

	// DataKeyScreen carries the screen a notification wants to open.
	DataKeyScreen = "screen"
)

// PushOption customizes PushRegistrar construction.
type PushOption func(*PushRegistrar)

func WithPushPlatform(platform Platform) PushOption {
	return func(p *PushRegistrar) {
		if platform != "" {
			p.platform = platform
		}
	}
}

// WithPushTokenKey overrides the key value store key used for the token cache.
func WithPushTokenKey(key string) PushOption {
	return func(p *PushRegistrar) {
		if key = strings.TrimSpace(key); key != "" {
			p.tokenKey = key
		}
	}
}

func WithPushLogger(logger Logger) PushOption {
	return func(p *PushRegistrar) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithPushActivitySink sets the sink receiving permission and token events.
func WithPushActivitySink(sink ActivitySink) PushOption {
	return func(p *PushRegistrar) {
		p.activitySink = normalizeActivitySink(sink)
	}
}

// WithPushOpenedHandler registers a callback for notifications that opened
// the app, either from background or from a cold start.
func WithPushOpenedHandler(handler MessageHandler) PushOption {
	return func(p *PushRegistrar) {
		p.onOpened = handler
	}
}

// PushRegistrar requests push permission, keeps the device token and routes
// incoming notifications to the UI.
type PushRegistrar struct {
	messaging    Messaging
	store        KeyValueStore
	notifier     Notifier
	platform     Platform
	tokenKey     string
	logger       Logger
	activitySink ActivitySink
	onOpened     MessageHandler

	mu    sync.RWMutex
	token string
}

// NewPushRegistrar returns a registrar for the android platform by default.
func NewPushRegistrar(messaging Messaging, store KeyValueStore, notifier Notifier, opts ...PushOption) *PushRegistrar {
	p := &PushRegistrar{
		messaging:    messaging,
		store:        store,
		notifier:     normalizeNotifier(notifier),
		platform:     PlatformAndroid,
		tokenKey:     DefaultPushTokenKey,
		logger:       defaultLogger(),
		activitySink: noopActivitySink{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// CurrentToken returns the last token seen without touching collaborators.
func (p *PushRegistrar) CurrentToken() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.token
}

// RequestPermission asks for notification permission and, when granted,
// registers the device (iOS) and resolves the token. Errors are logged and
// reported as not enabled.
func (p *PushRegistrar) RequestPermission(ctx context.Context) bool {
	if p.messaging == nil {
		p.logger.Warn("push permission skipped, no messaging client")
		return false
	}

	status, err := p.messaging.RequestPermission(ctx)
	if err != nil {
		p.logger.Error("push permission request failed", "error", err)
		return false
	}

	enabled := status.Enabled()
	p.logger.Info("push permission resolved", "status", status, "enabled", enabled)
	recordActivity(ctx, p.activitySink, p.logger, nil, ActivityEvent{
		EventType: ActivityEventPushPermissionChanged,
		Metadata:  map[string]any{"status": status.String(), "enabled": enabled},
	})

	if !enabled {
		return false
	}

	if p.platform == PlatformIOS {
		if err := p.messaging.RegisterDeviceForRemoteMessages(ctx); err != nil {
			p.logger.Error("device registration failed", "error", err)
		} else {
			p.logger.Debug("device registered for remote messages")
		}
	}

	p.Token(ctx)
	return true
}

// Token returns the cached push token, fetching and caching a new one when
// none is stored. Failures are logged and yield "".
func (p *PushRegistrar) Token(ctx context.Context) string {
	if p.store != nil {
		cached, err := p.store.GetItem(ctx, p.tokenKey)
		if err != nil {
			p.logger.Error("push token lookup failed", "key", p.tokenKey, "error", err)
			return ""
		}
		if cached != "" {
			p.logger.Debug("push token cached", "key", p.tokenKey)
			p.setToken(cached)
			return cached
		}
	}

	if p.messaging == nil {
		return ""
	}

	token, err := p.messaging.GetToken(ctx)
	if err != nil {
		p.logger.Error("push token fetch failed", "error", err)
		return ""
	}
	if token == "" {
		p.logger.Warn("push token fetch returned no token")
		return ""
	}

	if p.store != nil {
		if err := p.store.SetItem(ctx, p.tokenKey, token); err != nil {
			p.logger.Error("push token store failed", "key", p.tokenKey, "error", err)
			return ""
		}
	}

	p.setToken(token)
	recordActivity(ctx, p.activitySink, p.logger, nil, ActivityEvent{
		EventType: ActivityEventPushTokenRegistered,
		Metadata:  map[string]any{"platform": string(p.platform), "token": token},
	})
	return token
}

func (p *PushRegistrar) setToken(token string) {
	p.mu.Lock()
	p.token = token
	p.mu.Unlock()
}

// Listen subscribes the opened app and foreground listeners and checks for
// a cold start notification. The returned func releases both listeners.
func (p *PushRegistrar) Listen(ctx context.Context) (release func()) {
	if p.messaging == nil {
		return func() {}
	}

	unsubscribeOpened := p.messaging.OnNotificationOpenedApp(func(ctx context.Context, msg *RemoteMessage) error {
		p.opened(ctx, "background", msg)
		return nil
	})

	initial, err := p.messaging.GetInitialNotification(ctx)
	switch {
	case err != nil:
		p.logger.Error("initial notification check failed", "error", err)
	case initial != nil:
		p.opened(ctx, "quit", initial)
	}

	unsubscribeForeground := p.messaging.OnMessage(func(ctx context.Context, msg *RemoteMessage) error {
		p.foreground(msg)
		return nil
	})

	var once sync.Once
	return func() {
		once.Do(func() {
			if unsubscribeOpened != nil {
				unsubscribeOpened()
			}
			if unsubscribeForeground != nil {
				unsubscribeForeground()
			}
		})
	}
}

func (p *PushRegistrar) opened(ctx context.Context, from string, msg *RemoteMessage) {
	if msg == nil {
		return
	}
	p.logger.Info("app opened from notification", "state", from, "message_id", msg.MessageID)
	if screen := msg.Data[DataKeyScreen]; screen != "" {
		p.logger.Info("notification requests navigation", "screen", screen)
	}
	if p.onOpened != nil {
		if err := p.onOpened(ctx, msg); err != nil {
			p.logger.Error("opened notification handler failed", "error", err)
		}
	}
}

func (p *PushRegistrar) foreground(msg *RemoteMessage) {
	if msg == nil {
		return
	}
	p.logger.Info("foreground message received", "message_id", msg.MessageID)
	if msg.Notification == nil {
		return
	}
	p.notifier.Toast(ToastFor(msg))
}

// ToastFor builds the foreground toast for msg, filling default texts.
func ToastFor(msg *RemoteMessage) Toast {
	toast := Toast{
		Kind:       ToastKindInfo,
		Title:      DefaultToastTitle,
		Body:       DefaultToastBody,
		Visibility: DefaultToastVisibility,
	}
	if msg == nil || msg.Notification == nil {
		return toast
	}
	if msg.Notification.Title != "" {
		toast.Title = msg.Notification.Title
	}
	if msg.Notification.Body != "" {
		toast.Body = msg.Notification.Body
	}
	return toast
}
