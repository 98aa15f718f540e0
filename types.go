package authgate

import (
	"context"
	"time"

	"github.com/goliatone/go-logger/glog"
)

// Logger is the structured logger used across the package.
type Logger = glog.Logger

// LoggerProvider resolves named loggers.
type LoggerProvider = glog.LoggerProvider

// AuthStateListener receives the current user on every auth state change.
// A nil user means nobody is signed in.
type AuthStateListener func(user *User)

// IdentityClient is the narrow surface of the hosted identity provider.
type IdentityClient interface {
	OnAuthStateChanged(listener AuthStateListener) (unsubscribe func())
	SignInWithEmailAndPassword(ctx context.Context, email, password string) (*User, error)
	CreateUserWithEmailAndPassword(ctx context.Context, email, password string) (*User, error)
	SignOut(ctx context.Context) error
	CurrentUser() *User
}

// PasswordResetSender is implemented by identity clients able to send
// password reset emails.
type PasswordResetSender interface {
	SendPasswordResetEmail(ctx context.Context, email string) error
}

// Datastore writes records keyed by path, e.g. /users/{uid}.
type Datastore interface {
	WriteRecord(ctx context.Context, path string, value map[string]any) error
}

// ConfigSettings tunes the remote configuration client.
type ConfigSettings struct {
	MinimumFetchInterval time.Duration
	FetchTimeout         time.Duration
}

// ValueSource tells where a remote config value came from.
type ValueSource string

const (
	ValueSourceStatic  ValueSource = "static"
	ValueSourceDefault ValueSource = "default"
	ValueSourceRemote  ValueSource = "remote"
)

// ConfigValue is a single remote configuration value.
type ConfigValue interface {
	AsString() string
	AsBoolean() bool
	AsNumber() float64
	Source() ValueSource
}

// RemoteConfig is the remote configuration collaborator.
type RemoteConfig interface {
	SetConfigSettings(settings ConfigSettings)
	SetDefaults(defaults map[string]any)
	FetchAndActivate(ctx context.Context) (bool, error)
	GetValue(key string) ConfigValue
}

// AuthorizationStatus is the push permission outcome.
type AuthorizationStatus int

const (
	AuthorizationNotDetermined AuthorizationStatus = -1
	AuthorizationDenied        AuthorizationStatus = 0
	AuthorizationAuthorized    AuthorizationStatus = 1
	AuthorizationProvisional   AuthorizationStatus = 2
	AuthorizationEphemeral     AuthorizationStatus = 3
)

// Enabled reports whether the status allows notifications to be delivered.
func (s AuthorizationStatus) Enabled() bool {
	return s == AuthorizationAuthorized || s == AuthorizationProvisional
}

func (s AuthorizationStatus) String() string {
	switch s {
	case AuthorizationNotDetermined:
		return "not_determined"
	case AuthorizationDenied:
		return "denied"
	case AuthorizationAuthorized:
		return "authorized"
	case AuthorizationProvisional:
		return "provisional"
	case AuthorizationEphemeral:
		return "ephemeral"
	default:
		return "unknown"
	}
}

// Notification is the displayable part of a push message.
type Notification struct {
	Title string `json:"title,omitempty"`
	Body  string `json:"body,omitempty"`
}

// RemoteMessage is a push message delivered by the messaging collaborator.
type RemoteMessage struct {
	MessageID    string            `json:"message_id,omitempty"`
	From         string            `json:"from,omitempty"`
	Data         map[string]string `json:"data,omitempty"`
	Notification *Notification     `json:"notification,omitempty"`
	SentAt       time.Time         `json:"sent_at,omitempty"`
}

// MessageHandler handles a push message.
type MessageHandler func(ctx context.Context, msg *RemoteMessage) error

// Messaging is the push messaging collaborator.
type Messaging interface {
	RequestPermission(ctx context.Context) (AuthorizationStatus, error)
	RegisterDeviceForRemoteMessages(ctx context.Context) error
	GetToken(ctx context.Context) (string, error)
	OnMessage(handler MessageHandler) (unsubscribe func())
	OnNotificationOpenedApp(handler MessageHandler) (unsubscribe func())
	GetInitialNotification(ctx context.Context) (*RemoteMessage, error)
	SetBackgroundMessageHandler(handler MessageHandler)
}

// KeyValueStore is the local key/value persistence. A missing key returns
// an empty string and no error.
type KeyValueStore interface {
	GetItem(ctx context.Context, key string) (string, error)
	SetItem(ctx context.Context, key, value string) error
}

// Navigator replaces the current route. Commands are fire and forget.
type Navigator interface {
	Replace(route Route)
}

// NavigatorFunc adapts a function to the Navigator interface.
type NavigatorFunc func(route Route)

// Replace implements Navigator.
func (f NavigatorFunc) Replace(route Route) {
	if f != nil {
		f(route)
	}
}

// AlertKind distinguishes success from error alerts.
type AlertKind string

const (
	AlertSuccess AlertKind = "success"
	AlertError   AlertKind = "error"
)

// Toast is a non blocking notification banner.
type Toast struct {
	Kind       string
	Title      string
	Body       string
	Visibility time.Duration
}

// Notifier shows user facing feedback.
type Notifier interface {
	Alert(title, message string, kind AlertKind)
	Toast(toast Toast)
}

// Platform identifies the device platform the app runs on.
type Platform string

const (
	PlatformAndroid Platform = "android"
	PlatformIOS     Platform = "ios"
	PlatformDesktop Platform = "desktop"
)

// Config holds app options
type Config interface {
	GetLocale() string
	GetPlatform() string
	GetAlertTitle() string
	GetRemoteConfigMinimumFetchInterval() time.Duration
	GetPushTokenKey() string
}
