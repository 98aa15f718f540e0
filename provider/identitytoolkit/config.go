package identitytoolkit

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-authgate"
)

const (
	defaultIdentityURL    = "https://identitytoolkit.googleapis.com/v1"
	defaultSecureTokenURL = "https://securetoken.googleapis.com/v1"
	defaultJWKSURL        = "https://www.googleapis.com/service_accounts/v1/jwk/securetoken@system.gserviceaccount.com"
	defaultIssuerPrefix   = "https://securetoken.google.com/"

	// DefaultSessionKey is the key value store entry holding the persisted session.
	DefaultSessionKey = "authgate.session"
)

// Config holds Identity Toolkit configuration.
type Config struct {
	APIKey    string
	ProjectID string

	IdentityURL    string
	SecureTokenURL string
	JWKSURL        string

	// KeyFunc overrides the JWKS backed key lookup used to verify ID tokens.
	KeyFunc jwt.Keyfunc
	// SkipVerification accepts ID tokens without checking signatures.
	SkipVerification bool

	// Store persists the session between runs. Optional.
	Store      authgate.KeyValueStore
	SessionKey string

	HTTPClient *http.Client
	Logger     authgate.Logger
	Now        func() time.Time
}

func (c Config) issuer() string {
	return defaultIssuerPrefix + strings.TrimSpace(c.ProjectID)
}

func (c Config) withDefaults() Config {
	if c.IdentityURL == "" {
		c.IdentityURL = defaultIdentityURL
	}
	if c.SecureTokenURL == "" {
		c.SecureTokenURL = defaultSecureTokenURL
	}
	if c.JWKSURL == "" {
		c.JWKSURL = defaultJWKSURL
	}
	c.IdentityURL = strings.TrimRight(c.IdentityURL, "/")
	c.SecureTokenURL = strings.TrimRight(c.SecureTokenURL, "/")
	if c.SessionKey == "" {
		c.SessionKey = DefaultSessionKey
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if c.Logger == nil {
		_, c.Logger = authgate.ResolveLogger("authgate.identity", nil, nil)
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}
