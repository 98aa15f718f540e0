package identitytoolkit

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-authgate"
)

// refreshLeeway is how early an ID token is refreshed before it expires.
const refreshLeeway = 5 * time.Minute

// Client implements authgate.IdentityClient against the Identity Toolkit
// REST API.
type Client struct {
	config   Config
	verifier *Verifier

	mu        sync.RWMutex
	session   *storedSession
	listeners map[uint64]authgate.AuthStateListener
	nextID    uint64
}

var _ authgate.IdentityClient = (*Client)(nil)
var _ authgate.PasswordResetSender = (*Client)(nil)

// New creates a new Identity Toolkit client.
func New(cfg Config) *Client {
	cfg = cfg.withDefaults()
	return &Client{
		config:    cfg,
		verifier:  NewVerifier(cfg),
		listeners: map[uint64]authgate.AuthStateListener{},
	}
}

type storedSession struct {
	UID           string    `json:"uid"`
	Email         string    `json:"email,omitempty"`
	EmailVerified bool      `json:"email_verified,omitempty"`
	DisplayName   string    `json:"display_name,omitempty"`
	IDToken       string    `json:"id_token"`
	RefreshToken  string    `json:"refresh_token"`
	ExpiresAt     time.Time `json:"expires_at"`
}

func (s *storedSession) user() *authgate.User {
	if s == nil {
		return nil
	}
	return &authgate.User{
		UID:           s.UID,
		Email:         s.Email,
		EmailVerified: s.EmailVerified,
		DisplayName:   s.DisplayName,
	}
}

type authResponse struct {
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	DisplayName  string `json:"displayName"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
	Registered   bool   `json:"registered"`
}

type refreshResponse struct {
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    string `json:"expires_in"`
	UserID       string `json:"user_id"`
}

// OnAuthStateChanged registers listener and immediately delivers the
// current user to it.
func (c *Client) OnAuthStateChanged(listener authgate.AuthStateListener) func() {
	if listener == nil {
		return func() {}
	}

	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.listeners[id] = listener
	current := c.session.user()
	c.mu.Unlock()

	listener(current)

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.listeners, id)
			c.mu.Unlock()
		})
	}
}

// CurrentUser returns the signed in user or nil.
func (c *Client) CurrentUser() *authgate.User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session.user()
}

// SignInWithEmailAndPassword implements authgate.IdentityClient.
func (c *Client) SignInWithEmailAndPassword(ctx context.Context, email, password string) (*authgate.User, error) {
	return c.authenticate(ctx, "sign_in", "accounts:signInWithPassword", email, password)
}

// CreateUserWithEmailAndPassword implements authgate.IdentityClient.
func (c *Client) CreateUserWithEmailAndPassword(ctx context.Context, email, password string) (*authgate.User, error) {
	return c.authenticate(ctx, "sign_up", "accounts:signUp", email, password)
}

// SendPasswordResetEmail implements authgate.PasswordResetSender.
func (c *Client) SendPasswordResetEmail(ctx context.Context, email string) error {
	payload := map[string]any{
		"requestType": "PASSWORD_RESET",
		"email":       email,
	}
	return c.postJSON(ctx, "password_reset", c.identityEndpoint("accounts:sendOobCode"), payload, nil)
}

// SignOut clears the local session. The identity backend keeps no client
// session so there is nothing to revoke remotely. Listeners are told once
// the in memory session is gone, even when clearing the stored copy fails.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	previous := c.session
	c.session = nil
	c.mu.Unlock()

	if err := c.persist(ctx, nil); err != nil {
		uid := ""
		if previous != nil {
			uid = previous.UID
		}
		c.config.Logger.Error("stored session clear failed", "uid", uid, "error", err)
	}

	c.notify(nil)
	return nil
}

// IDToken returns a valid ID token, refreshing it when close to expiry.
func (c *Client) IDToken(ctx context.Context) (string, error) {
	c.mu.RLock()
	session := c.session
	c.mu.RUnlock()

	if session == nil {
		return "", providerError("id_token", 0, "auth/no-current-user", "no user is signed in", nil, nil)
	}
	if c.config.Now().Add(refreshLeeway).Before(session.ExpiresAt) {
		return session.IDToken, nil
	}
	if err := c.Refresh(ctx); err != nil {
		return "", err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return "", providerError("id_token", 0, "auth/no-current-user", "no user is signed in", nil, nil)
	}
	return c.session.IDToken, nil
}

// Refresh exchanges the refresh token for a new ID token.
func (c *Client) Refresh(ctx context.Context) error {
	c.mu.RLock()
	session := c.session
	c.mu.RUnlock()
	if session == nil || session.RefreshToken == "" {
		return providerError("refresh", 0, "auth/no-current-user", "no refresh token available", nil, nil)
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {session.RefreshToken},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.secureTokenEndpoint(), strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var resp refreshResponse
	if err := c.do(req, "refresh", &resp); err != nil {
		return err
	}

	claims, err := c.verifier.Verify(resp.IDToken)
	if err != nil {
		return err
	}

	refreshed := *session
	refreshed.IDToken = resp.IDToken
	if resp.RefreshToken != "" {
		refreshed.RefreshToken = resp.RefreshToken
	}
	refreshed.ExpiresAt = c.expiry(resp.ExpiresIn)
	if claims.Email != "" {
		refreshed.Email = claims.Email
	}
	refreshed.EmailVerified = claims.EmailVerified

	c.mu.Lock()
	if c.session != session {
		c.mu.Unlock()
		return providerError("refresh", 0, "auth/no-current-user", "session changed during refresh", nil, nil)
	}
	c.session = &refreshed
	c.mu.Unlock()

	return c.persist(ctx, &refreshed)
}

// Restore loads a persisted session, refreshing it when the ID token has
// expired. A missing or unusable session leaves the client signed out.
func (c *Client) Restore(ctx context.Context) (*authgate.User, error) {
	if c.config.Store == nil {
		return nil, nil
	}

	raw, err := c.config.Store.GetItem(ctx, c.config.SessionKey)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	var session storedSession
	if err := json.Unmarshal([]byte(raw), &session); err != nil || session.UID == "" {
		c.config.Logger.Warn("discarding unreadable persisted session", "error", err)
		return nil, c.persist(ctx, nil)
	}

	c.mu.Lock()
	c.session = &session
	c.mu.Unlock()

	if !c.config.Now().Before(session.ExpiresAt) {
		if err := c.Refresh(ctx); err != nil {
			c.config.Logger.Warn("persisted session refresh failed", "uid", session.UID, "error", err)
			c.mu.Lock()
			c.session = nil
			c.mu.Unlock()
			_ = c.persist(ctx, nil)
			return nil, nil
		}
	}

	user := c.CurrentUser()
	c.notify(user)
	return user, nil
}

// Close releases background resources.
func (c *Client) Close() {
	c.verifier.Close()
}

func (c *Client) authenticate(ctx context.Context, operation, method, email, password string) (*authgate.User, error) {
	payload := map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}

	var resp authResponse
	if err := c.postJSON(ctx, operation, c.identityEndpoint(method), payload, &resp); err != nil {
		return nil, err
	}

	claims, err := c.verifier.Verify(resp.IDToken)
	if err != nil {
		return nil, err
	}
	if resp.LocalID != "" && claims.Subject != "" && resp.LocalID != claims.Subject {
		return nil, normalizeTokenError(providerError(operation, 0, "", "token subject does not match account", nil, nil))
	}

	session := &storedSession{
		UID:           claims.User().UID,
		Email:         firstNonEmpty(resp.Email, claims.Email),
		EmailVerified: claims.EmailVerified,
		DisplayName:   firstNonEmpty(resp.DisplayName, claims.Name),
		IDToken:       resp.IDToken,
		RefreshToken:  resp.RefreshToken,
		ExpiresAt:     c.expiry(resp.ExpiresIn),
	}
	if session.UID == "" {
		session.UID = resp.LocalID
	}

	c.mu.Lock()
	c.session = session
	c.mu.Unlock()

	if err := c.persist(ctx, session); err != nil {
		c.config.Logger.Error("session persist failed", "uid", session.UID, "error", err)
	}

	user := session.user()
	c.notify(user)
	return user, nil
}

func (c *Client) notify(user *authgate.User) {
	c.mu.RLock()
	listeners := make([]authgate.AuthStateListener, 0, len(c.listeners))
	for _, l := range c.listeners {
		listeners = append(listeners, l)
	}
	c.mu.RUnlock()

	for _, l := range listeners {
		if user == nil {
			l(nil)
			continue
		}
		u := *user
		l(&u)
	}
}

func (c *Client) persist(ctx context.Context, session *storedSession) error {
	if c.config.Store == nil {
		return nil
	}
	if session == nil {
		return c.config.Store.SetItem(ctx, c.config.SessionKey, "")
	}
	raw, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return c.config.Store.SetItem(ctx, c.config.SessionKey, string(raw))
}

func (c *Client) expiry(expiresIn string) time.Time {
	seconds, err := strconv.Atoi(strings.TrimSpace(expiresIn))
	if err != nil || seconds <= 0 {
		seconds = 3600
	}
	return c.config.Now().Add(time.Duration(seconds) * time.Second)
}

func (c *Client) identityEndpoint(method string) string {
	return c.config.IdentityURL + "/" + method + "?key=" + url.QueryEscape(c.config.APIKey)
}

func (c *Client) secureTokenEndpoint() string {
	return c.config.SecureTokenURL + "/token?key=" + url.QueryEscape(c.config.APIKey)
}

func (c *Client) postJSON(ctx context.Context, operation, endpoint string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, operation, out)
}

func (c *Client) do(req *http.Request, operation string, out any) error {
	resp, err := c.config.HTTPClient.Do(req)
	if err != nil {
		return networkError(operation, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return networkError(operation, err)
	}

	if resp.StatusCode != http.StatusOK {
		message, raw := parseAPIError(body)
		return providerError(operation, resp.StatusCode, MapErrorCode(message), message, nil, raw)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return providerError(operation, resp.StatusCode, CodeInternalError, "failed to decode response", err, nil)
	}
	return nil
}

func parseAPIError(body []byte) (string, map[string]any) {
	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.Error.Message == "" {
		return strings.TrimSpace(string(body)), nil
	}
	raw := map[string]any{"message": apiErr.Error.Message}
	if apiErr.Error.Status != "" {
		raw["status"] = apiErr.Error.Status
	}
	if apiErr.Error.Code != 0 {
		raw["code"] = apiErr.Error.Code
	}
	return apiErr.Error.Message, raw
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
