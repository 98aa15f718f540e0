package authgate

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-featuregate/gate"
)

// Remote configuration keys read by the app.
const (
	RemoteKeyTitle            = "titleApp"
	RemoteKeyNewScreenEnabled = "NewScreenEnabled"
	RemoteKeySignupEnabled    = "SignupEnabled"

	DefaultTitle = "FIAP"
)

// DefaultRemoteDefaults returns the values used until a fetch activates.
func DefaultRemoteDefaults() map[string]any {
	return map[string]any{
		RemoteKeyTitle:            DefaultTitle,
		RemoteKeyNewScreenEnabled: false,
		RemoteKeySignupEnabled:    true,
	}
}

// DefaultFeatureKeys maps feature gate keys to the remote keys backing them.
// The forgot password entry point doubles as the password reset switch.
func DefaultFeatureKeys() map[string]string {
	return map[string]string{
		gate.FeatureUsersSignup:        RemoteKeySignupEnabled,
		gate.FeatureUsersPasswordReset: RemoteKeyNewScreenEnabled,
	}
}

// FeatureFlagsOption customizes FeatureFlags construction.
type FeatureFlagsOption func(*FeatureFlags)

// WithFlagsLogger overrides the logger.
func WithFlagsLogger(logger Logger) FeatureFlagsOption {
	return func(f *FeatureFlags) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithFlagsMinimumFetchInterval sets the fetch throttle. Zero means every
// Refresh reaches the backend.
func WithFlagsMinimumFetchInterval(interval time.Duration) FeatureFlagsOption {
	return func(f *FeatureFlags) {
		if interval >= 0 {
			f.settings.MinimumFetchInterval = interval
		}
	}
}

// WithFlagsFetchTimeout bounds each backend fetch.
func WithFlagsFetchTimeout(timeout time.Duration) FeatureFlagsOption {
	return func(f *FeatureFlags) {
		if timeout > 0 {
			f.settings.FetchTimeout = timeout
		}
	}
}

// WithFlagsDefaults merges extra defaults over the built in ones.
func WithFlagsDefaults(defaults map[string]any) FeatureFlagsOption {
	return func(f *FeatureFlags) {
		for k, v := range defaults {
			f.defaults[k] = v
		}
	}
}

// WithFlagsFeatureKey binds a feature gate key to a boolean remote key.
func WithFlagsFeatureKey(feature, remoteKey string) FeatureFlagsOption {
	return func(f *FeatureFlags) {
		if feature != "" && remoteKey != "" {
			f.features[feature] = remoteKey
		}
	}
}

// FeatureFlags reads remote controlled values with local defaults. It also
// serves as the gate.FeatureGate guarding sign up and password reset.
type FeatureFlags struct {
	remote   RemoteConfig
	settings ConfigSettings
	defaults map[string]any
	features map[string]string
	logger   Logger

	mu        sync.RWMutex
	applied   bool
	activated bool
	fetchedAt time.Time
}

var _ gate.FeatureGate = (*FeatureFlags)(nil)

// NewFeatureFlags wraps remote. A nil remote serves defaults only.
func NewFeatureFlags(remote RemoteConfig, opts ...FeatureFlagsOption) *FeatureFlags {
	f := &FeatureFlags{
		remote:   remote,
		defaults: DefaultRemoteDefaults(),
		features: DefaultFeatureKeys(),
		logger:   defaultLogger(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f
}

// Apply pushes settings and defaults to the remote config client.
func (f *FeatureFlags) Apply() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.remote == nil || f.applied {
		return
	}
	f.remote.SetConfigSettings(f.settings)
	f.remote.SetDefaults(copyDefaults(f.defaults))
	f.applied = true
}

// Refresh fetches and activates remote values. Failures are logged and the
// previous (or default) values stay in effect.
func (f *FeatureFlags) Refresh(ctx context.Context) bool {
	if f.remote == nil {
		return false
	}
	f.Apply()

	activated, err := f.remote.FetchAndActivate(ctx)
	if err != nil {
		f.logger.Error("remote config fetch failed", "error", err)
		return false
	}

	f.mu.Lock()
	f.activated = f.activated || activated
	f.fetchedAt = time.Now()
	f.mu.Unlock()

	f.logger.Debug("remote config fetched", "activated", activated)
	return activated
}

// Activated reports whether remote values were activated at least once.
func (f *FeatureFlags) Activated() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.activated
}

// FetchedAt is the time of the last successful fetch.
func (f *FeatureFlags) FetchedAt() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.fetchedAt
}

// Enabled implements gate.FeatureGate over the bound remote keys.
func (f *FeatureFlags) Enabled(_ context.Context, key string, _ ...gate.ResolveOption) (bool, error) {
	remoteKey, ok := f.features[key]
	if !ok {
		return false, sentinelWithMetadata(ErrUnknownFeature, map[string]any{"feature": key})
	}
	return f.Bool(remoteKey), nil
}

// Title is the login screen heading.
func (f *FeatureFlags) Title() string {
	if title := f.String(RemoteKeyTitle); title != "" {
		return title
	}
	return DefaultTitle
}

// NewScreenEnabled toggles the forgot password entry point.
func (f *FeatureFlags) NewScreenEnabled() bool {
	return f.Bool(RemoteKeyNewScreenEnabled)
}

// SignupEnabled toggles account creation.
func (f *FeatureFlags) SignupEnabled() bool {
	return f.Bool(RemoteKeySignupEnabled)
}

// String returns key as a string, falling back to the local default.
func (f *FeatureFlags) String(key string) string {
	if v := f.value(key); v != nil {
		return strings.TrimSpace(v.AsString())
	}
	if s, ok := f.defaults[key].(string); ok {
		return s
	}
	return ""
}

// Bool returns key as a bool, falling back to the local default.
func (f *FeatureFlags) Bool(key string) bool {
	if v := f.value(key); v != nil {
		return v.AsBoolean()
	}
	b, _ := f.defaults[key].(bool)
	return b
}

func (f *FeatureFlags) value(key string) ConfigValue {
	if f.remote == nil {
		return nil
	}
	v := f.remote.GetValue(key)
	if v == nil || v.Source() == ValueSourceStatic {
		return nil
	}
	return v
}

func copyDefaults(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
