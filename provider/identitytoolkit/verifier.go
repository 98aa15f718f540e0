package identitytoolkit

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-authgate"
)

// Claims are the ID token claims issued by the secure token service.
type Claims struct {
	jwt.RegisteredClaims
	UserID        string `json:"user_id,omitempty"`
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified,omitempty"`
	Name          string `json:"name,omitempty"`
	AuthTime      int64  `json:"auth_time,omitempty"`
}

// User maps the claims to an authgate user.
func (c *Claims) User() *authgate.User {
	if c == nil {
		return nil
	}
	uid := c.UserID
	if uid == "" {
		uid = c.Subject
	}
	return &authgate.User{
		UID:           uid,
		Email:         c.Email,
		EmailVerified: c.EmailVerified,
		DisplayName:   c.Name,
	}
}

// Verifier checks ID token signature, issuer, audience and expiry.
type Verifier struct {
	issuer   string
	audience string
	skip     bool
	now      func() time.Time
	logger   authgate.Logger

	keyFunc    jwt.Keyfunc
	jwksURL    string
	httpClient *http.Client

	mu     sync.Mutex
	loaded bool
	closed bool
	jwks   *keyfunc.JWKS
	err    error
}

// NewVerifier builds a verifier. The JWKS is fetched lazily on first use
// unless cfg.KeyFunc is set.
func NewVerifier(cfg Config) *Verifier {
	cfg = cfg.withDefaults()
	return &Verifier{
		issuer:     cfg.issuer(),
		audience:   strings.TrimSpace(cfg.ProjectID),
		skip:       cfg.SkipVerification,
		now:        cfg.Now,
		logger:     cfg.Logger,
		keyFunc:    cfg.KeyFunc,
		jwksURL:    cfg.JWKSURL,
		httpClient: cfg.HTTPClient,
	}
}

// Verify parses and validates raw.
func (v *Verifier) Verify(raw string) (*Claims, error) {
	claims := &Claims{}

	if v.skip {
		if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
			return nil, normalizeTokenError(err)
		}
		return claims, nil
	}

	keyFunc, err := v.resolveKeyFunc()
	if err != nil {
		return nil, normalizeTokenError(err)
	}

	_, err = jwt.ParseWithClaims(raw, claims, keyFunc,
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return nil, normalizeTokenError(err)
	}

	if claims.Subject == "" {
		return nil, normalizeTokenError(fmt.Errorf("token has no subject"))
	}
	if claims.UserID != "" && claims.UserID != claims.Subject {
		return nil, normalizeTokenError(fmt.Errorf("token subject and user_id differ"))
	}

	return claims, nil
}

// Close stops the background JWKS refresh. Verify fails after Close unless
// a static key func was configured.
func (v *Verifier) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.closed = true
	if v.jwks != nil {
		v.jwks.EndBackground()
		v.jwks = nil
	}
}

func (v *Verifier) resolveKeyFunc() (jwt.Keyfunc, error) {
	if v.keyFunc != nil {
		return v.keyFunc, nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return nil, fmt.Errorf("verifier closed")
	}
	if !v.loaded {
		v.loaded = true
		v.jwks, v.err = keyfunc.Get(v.jwksURL, keyfunc.Options{
			Client: v.httpClient,
			RefreshErrorHandler: func(err error) {
				v.logger.Warn("jwks background refresh failed", "error", err)
			},
			RefreshInterval:   time.Hour,
			RefreshRateLimit:  time.Minute * 5,
			RefreshTimeout:    time.Second * 10,
			RefreshUnknownKID: true,
		})
	}
	if v.err != nil {
		return nil, fmt.Errorf("failed to load JWKS from %s: %w", v.jwksURL, v.err)
	}
	return v.jwks.Keyfunc, nil
}

func normalizeTokenError(err error) error {
	clone := ErrTokenInvalid.Clone()
	if clone == nil {
		return err
	}
	clone.Source = err
	return clone.WithMetadata(map[string]any{
		"provider": providerName,
		"cause":    err.Error(),
	})
}
