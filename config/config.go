// Package config loads the authgate runtime configuration from YAML, an
// optional .env file and AUTHGATE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-authgate"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "AUTHGATE_"

// Config is the root configuration structure.
type Config struct {
	App          AppConfig          `yaml:"app" json:"app"`
	Identity     IdentityConfig     `yaml:"identity" json:"identity"`
	Database     DatabaseConfig     `yaml:"database" json:"database"`
	RemoteConfig RemoteConfigConfig `yaml:"remote_config" json:"remote_config"`
	Persistence  PersistenceConfig  `yaml:"persistence" json:"persistence"`
	Ingress      IngressConfig      `yaml:"ingress" json:"ingress"`
	Metrics      MetricsConfig      `yaml:"metrics" json:"metrics"`
	Logging      LoggingConfig      `yaml:"logging" json:"logging"`
}

// AppConfig holds the app shell options.
type AppConfig struct {
	Locale       string `yaml:"locale" json:"locale"`
	Platform     string `yaml:"platform" json:"platform"`
	AlertTitle   string `yaml:"alert_title" json:"alert_title"`
	PushTokenKey string `yaml:"push_token_key" json:"push_token_key"`
}

// IdentityConfig holds the hosted identity backend settings.
type IdentityConfig struct {
	APIKey           string `yaml:"api_key" json:"-"`
	ProjectID        string `yaml:"project_id" json:"project_id"`
	IdentityURL      string `yaml:"identity_url" json:"identity_url,omitempty"`
	SecureTokenURL   string `yaml:"secure_token_url" json:"secure_token_url,omitempty"`
	JWKSURL          string `yaml:"jwks_url" json:"jwks_url,omitempty"`
	SkipVerification bool   `yaml:"skip_verification" json:"skip_verification"`
}

// DatabaseConfig points at the realtime database. An empty URL stores
// profiles locally.
type DatabaseConfig struct {
	URL string `yaml:"url" json:"url,omitempty"`
}

// RemoteConfigConfig tunes the remote configuration client.
type RemoteConfigConfig struct {
	Enabled              bool          `yaml:"enabled" json:"enabled"`
	AppID                string        `yaml:"app_id" json:"app_id,omitempty"`
	BaseURL              string        `yaml:"base_url" json:"base_url,omitempty"`
	MinimumFetchInterval time.Duration `yaml:"minimum_fetch_interval" json:"minimum_fetch_interval"`
	FetchTimeout         time.Duration `yaml:"fetch_timeout" json:"fetch_timeout"`
}

// PersistenceConfig configures the local SQL store.
type PersistenceConfig struct {
	Driver      string        `yaml:"driver" json:"driver"`
	DSN         string        `yaml:"dsn" json:"dsn"`
	Debug       bool          `yaml:"debug" json:"debug"`
	PingTimeout time.Duration `yaml:"ping_timeout" json:"ping_timeout"`
}

// GetDebug enables query logging in the persistence client.
func (p PersistenceConfig) GetDebug() bool { return p.Debug }

// GetDriver names the SQL driver.
func (p PersistenceConfig) GetDriver() string { return p.Driver }

// GetServer returns the data source name.
func (p PersistenceConfig) GetServer() string { return p.DSN }

// GetPingTimeout bounds the startup connectivity check.
func (p PersistenceConfig) GetPingTimeout() time.Duration { return p.PingTimeout }

// GetOtelIdentifier is empty, tracing is not wired.
func (p PersistenceConfig) GetOtelIdentifier() string { return "" }

// IngressConfig configures the push ingress HTTP server.
type IngressConfig struct {
	Enabled bool    `yaml:"enabled" json:"enabled"`
	Addr    string  `yaml:"addr" json:"addr"`
	Rate    float64 `yaml:"rate" json:"rate"`
	Burst   int     `yaml:"burst" json:"burst"`
}

// MetricsConfig configures the activity metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

var _ authgate.Config = (*Config)(nil)

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		App: AppConfig{
			Locale:       authgate.LocalePTBR,
			Platform:     string(authgate.PlatformDesktop),
			AlertTitle:   authgate.DefaultAlertTitle,
			PushTokenKey: authgate.DefaultPushTokenKey,
		},
		RemoteConfig: RemoteConfigConfig{
			Enabled:              true,
			MinimumFetchInterval: time.Hour,
			FetchTimeout:         10 * time.Second,
		},
		Persistence: PersistenceConfig{
			Driver:      "sqlite",
			DSN:         "file:authgate.db?cache=shared",
			PingTimeout: 5 * time.Second,
		},
		Ingress: IngressConfig{
			Enabled: true,
			Addr:    "127.0.0.1:8089",
			Rate:    5,
			Burst:   10,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "pretty",
		},
	}
}

// Load reads path (optional), then envFile (optional), then applies
// AUTHGATE_* overrides and validates the result.
func Load(path, envFile string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env file: %w", err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables looked up with lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, target *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*target = strings.TrimSpace(v)
		}
	}
	boolean := func(name string, target *bool) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			return nil
		}
		parsed, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("parse %s%s: %w", EnvPrefix, name, err)
		}
		*target = parsed
		return nil
	}

	str("LOCALE", &c.App.Locale)
	str("PLATFORM", &c.App.Platform)
	str("API_KEY", &c.Identity.APIKey)
	str("PROJECT_ID", &c.Identity.ProjectID)
	str("DATABASE_URL", &c.Database.URL)
	str("REMOTE_CONFIG_APP_ID", &c.RemoteConfig.AppID)
	str("DSN", &c.Persistence.DSN)
	str("INGRESS_ADDR", &c.Ingress.Addr)
	str("LOG_LEVEL", &c.Logging.Level)
	str("LOG_FORMAT", &c.Logging.Format)

	if err := boolean("SKIP_VERIFICATION", &c.Identity.SkipVerification); err != nil {
		return err
	}
	if err := boolean("REMOTE_CONFIG_ENABLED", &c.RemoteConfig.Enabled); err != nil {
		return err
	}
	if err := boolean("INGRESS_ENABLED", &c.Ingress.Enabled); err != nil {
		return err
	}
	if err := boolean("PERSISTENCE_DEBUG", &c.Persistence.Debug); err != nil {
		return err
	}

	if v, ok := lookup(EnvPrefix + "MINIMUM_FETCH_INTERVAL"); ok {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("parse %sMINIMUM_FETCH_INTERVAL: %w", EnvPrefix, err)
		}
		c.RemoteConfig.MinimumFetchInterval = d
	}
	return nil
}

// Validate checks the configuration.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.App),
		validation.Field(&c.Identity),
		validation.Field(&c.Database),
		validation.Field(&c.Persistence),
		validation.Field(&c.Ingress),
		validation.Field(&c.Logging),
	)
}

func (a AppConfig) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.Locale, validation.Required, validation.In(authgate.LocalePTBR, authgate.LocaleEN)),
		validation.Field(&a.Platform, validation.Required, validation.In(
			string(authgate.PlatformAndroid),
			string(authgate.PlatformIOS),
			string(authgate.PlatformDesktop),
		)),
		validation.Field(&a.PushTokenKey, validation.Required),
	)
}

func (i IdentityConfig) Validate() error {
	return validation.ValidateStruct(&i,
		validation.Field(&i.APIKey, validation.Required),
		validation.Field(&i.ProjectID, validation.Required),
		validation.Field(&i.IdentityURL, is.URL),
		validation.Field(&i.SecureTokenURL, is.URL),
		validation.Field(&i.JWKSURL, is.URL),
	)
}

func (d DatabaseConfig) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.URL, is.URL),
	)
}

func (p PersistenceConfig) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Driver, validation.In("sqlite", "postgres")),
		validation.Field(&p.DSN, validation.Required),
	)
}

func (i IngressConfig) Validate() error {
	if !i.Enabled {
		return nil
	}
	return validation.ValidateStruct(&i,
		validation.Field(&i.Addr, validation.Required),
		validation.Field(&i.Rate, validation.Min(0.0)),
		validation.Field(&i.Burst, validation.Min(0)),
	)
}

func (l LoggingConfig) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Level, validation.In("trace", "debug", "info", "warn", "error")),
		validation.Field(&l.Format, validation.In("pretty", "json", "console")),
	)
}

// GetLocale implements authgate.Config.
func (c *Config) GetLocale() string { return c.App.Locale }

// GetPlatform implements authgate.Config.
func (c *Config) GetPlatform() string { return c.App.Platform }

// GetAlertTitle implements authgate.Config.
func (c *Config) GetAlertTitle() string { return c.App.AlertTitle }

// GetRemoteConfigMinimumFetchInterval implements authgate.Config.
func (c *Config) GetRemoteConfigMinimumFetchInterval() time.Duration {
	return c.RemoteConfig.MinimumFetchInterval
}

// GetRemoteConfigFetchTimeout bounds each remote config fetch.
func (c *Config) GetRemoteConfigFetchTimeout() time.Duration {
	return c.RemoteConfig.FetchTimeout
}

// GetPushTokenKey implements authgate.Config.
func (c *Config) GetPushTokenKey() string { return c.App.PushTokenKey }
