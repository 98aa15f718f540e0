package messaging

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/goliatone/go-authgate"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// ErrDeviceNotRegistered is returned by GetToken when the hub requires an
// explicit device registration that has not happened yet.
var ErrDeviceNotRegistered = goerrors.New("device is not registered for remote messages", goerrors.CategoryOperation).
	WithTextCode("DEVICE_NOT_REGISTERED").
	WithCode(goerrors.CodeConflict)

// HubOption customizes Hub construction.
type HubOption func(*Hub)

// WithPermissionOutcome sets the status a pending permission request
// resolves to. Defaults to AuthorizationAuthorized.
func WithPermissionOutcome(status authgate.AuthorizationStatus) HubOption {
	return func(h *Hub) {
		h.outcome = status
	}
}

// WithRequireRegistration makes GetToken fail until
// RegisterDeviceForRemoteMessages was called, as on iOS.
func WithRequireRegistration(required bool) HubOption {
	return func(h *Hub) {
		h.requireRegistration = required
	}
}

// WithHubLogger overrides the logger.
func WithHubLogger(logger authgate.Logger) HubOption {
	return func(h *Hub) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithTokenGenerator overrides how device tokens are minted.
func WithTokenGenerator(fn func() string) HubOption {
	return func(h *Hub) {
		if fn != nil {
			h.newToken = fn
		}
	}
}

// Hub is an in-process push messaging service. It implements
// authgate.Messaging for one device and routes delivered messages to the
// foreground, background or opened handlers.
type Hub struct {
	logger              authgate.Logger
	outcome             authgate.AuthorizationStatus
	requireRegistration bool
	newToken            func() string
	now                 func() time.Time

	mu         sync.RWMutex
	permission authgate.AuthorizationStatus
	registered bool
	token      string
	foreground bool
	nextID     uint64
	onMessage  map[uint64]authgate.MessageHandler
	onOpened   map[uint64]authgate.MessageHandler
	background authgate.MessageHandler
	initial    *authgate.RemoteMessage
}

var _ authgate.Messaging = (*Hub)(nil)

// NewHub creates a hub in the foreground with an undetermined permission.
func NewHub(opts ...HubOption) *Hub {
	_, logger := authgate.ResolveLogger("authgate.messaging", nil, nil)
	h := &Hub{
		logger:     logger,
		outcome:    authgate.AuthorizationAuthorized,
		newToken:   uuid.NewString,
		now:        time.Now,
		permission: authgate.AuthorizationNotDetermined,
		foreground: true,
		onMessage:  map[uint64]authgate.MessageHandler{},
		onOpened:   map[uint64]authgate.MessageHandler{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// RequestPermission resolves a pending request to the configured outcome.
// Later calls return the stored decision.
func (h *Hub) RequestPermission(ctx context.Context) (authgate.AuthorizationStatus, error) {
	if err := ctx.Err(); err != nil {
		return authgate.AuthorizationNotDetermined, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.permission == authgate.AuthorizationNotDetermined {
		h.permission = h.outcome
		h.logger.Debug("push permission resolved", "status", h.permission.String())
	}
	return h.permission, nil
}

// Permission returns the current permission status.
func (h *Hub) Permission() authgate.AuthorizationStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.permission
}

func (h *Hub) RegisterDeviceForRemoteMessages(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mu.Lock()
	h.registered = true
	h.mu.Unlock()
	return nil
}

// Registered reports whether the device registered for remote messages.
func (h *Hub) Registered() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.registered
}

// GetToken returns the device token, minting one on first use.
func (h *Hub) GetToken(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.requireRegistration && !h.registered {
		return "", ErrDeviceNotRegistered
	}
	if h.token == "" {
		h.token = h.newToken()
	}
	return h.token, nil
}

// RotateToken discards the current token. The next GetToken mints a new one.
func (h *Hub) RotateToken() {
	h.mu.Lock()
	h.token = ""
	h.mu.Unlock()
}

// OnMessage registers a foreground message handler.
func (h *Hub) OnMessage(handler authgate.MessageHandler) func() {
	return h.subscribe(h.onMessage, handler)
}

// OnNotificationOpenedApp registers a handler for notifications opened while
// the app was running in the background.
func (h *Hub) OnNotificationOpenedApp(handler authgate.MessageHandler) func() {
	return h.subscribe(h.onOpened, handler)
}

// GetInitialNotification returns, once, the notification that launched the
// app from a quit state.
func (h *Hub) GetInitialNotification(ctx context.Context) (*authgate.RemoteMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	msg := h.initial
	h.initial = nil
	return msg, nil
}

// SetBackgroundMessageHandler sets the handler used while in the background.
func (h *Hub) SetBackgroundMessageHandler(handler authgate.MessageHandler) {
	h.mu.Lock()
	h.background = handler
	h.mu.Unlock()
}

// SetForeground moves the app between foreground and background.
func (h *Hub) SetForeground(foreground bool) {
	h.mu.Lock()
	h.foreground = foreground
	h.mu.Unlock()
}

// Foreground reports whether the app is in the foreground.
func (h *Hub) Foreground() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.foreground
}

// Deliver routes msg to the foreground handlers, or to the background
// handler when the app is in the background. Messages are dropped when
// notifications are not permitted.
func (h *Hub) Deliver(ctx context.Context, msg *authgate.RemoteMessage) error {
	if msg == nil {
		return nil
	}
	h.stamp(msg)

	h.mu.RLock()
	permitted := h.permission.Enabled()
	foreground := h.foreground
	background := h.background
	handlers := collect(h.onMessage)
	h.mu.RUnlock()

	if !permitted {
		h.logger.Debug("push message dropped, notifications not permitted", "message_id", msg.MessageID)
		return nil
	}

	if !foreground {
		if background == nil {
			h.logger.Debug("push message dropped, no background handler", "message_id", msg.MessageID)
			return nil
		}
		return background(ctx, msg)
	}

	return dispatch(ctx, handlers, msg)
}

// Open simulates the user tapping a notification. With opened handlers
// registered they receive msg; otherwise msg becomes the initial
// notification for the next launch.
func (h *Hub) Open(ctx context.Context, msg *authgate.RemoteMessage) error {
	if msg == nil {
		return nil
	}
	h.stamp(msg)

	h.mu.Lock()
	handlers := collect(h.onOpened)
	if len(handlers) == 0 {
		h.initial = msg
		h.mu.Unlock()
		return nil
	}
	h.mu.Unlock()

	return dispatch(ctx, handlers, msg)
}

func (h *Hub) stamp(msg *authgate.RemoteMessage) {
	if msg.MessageID == "" {
		msg.MessageID = uuid.NewString()
	}
	if msg.SentAt.IsZero() {
		msg.SentAt = h.now()
	}
}

func (h *Hub) subscribe(set map[uint64]authgate.MessageHandler, handler authgate.MessageHandler) func() {
	if handler == nil {
		return func() {}
	}
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	set[id] = handler
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(set, id)
			h.mu.Unlock()
		})
	}
}

func collect(set map[uint64]authgate.MessageHandler) []authgate.MessageHandler {
	out := make([]authgate.MessageHandler, 0, len(set))
	for _, handler := range set {
		out = append(out, handler)
	}
	return out
}

func dispatch(ctx context.Context, handlers []authgate.MessageHandler, msg *authgate.RemoteMessage) error {
	var errs []error
	for _, handler := range handlers {
		if err := handler(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return goerrors.Wrap(stderrors.Join(errs...), goerrors.CategoryOperation, "push message handler failed").
		WithMetadata(map[string]any{"message_id": msg.MessageID, "failures": len(errs)})
}
