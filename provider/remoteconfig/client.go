package remoteconfig

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"maps"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-authgate"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

const defaultBaseURL = "https://firebaseremoteconfig.googleapis.com/v1"

// Fetch states reported by the backend.
const (
	StateUpdate     = "UPDATE"
	StateNoChange   = "NO_CHANGE"
	StateNoTemplate = "NO_TEMPLATE"
	StateEmpty      = "EMPTY_CONFIG"
)

// FetchStatus describes the outcome of the last fetch attempt.
type FetchStatus string

const (
	FetchStatusNoFetchYet FetchStatus = "no_fetch_yet"
	FetchStatusSuccess    FetchStatus = "success"
	FetchStatusThrottled  FetchStatus = "throttled"
	FetchStatusFailure    FetchStatus = "failure"
)

// Config holds remote config client configuration.
type Config struct {
	APIKey        string
	ProjectID     string
	AppID         string
	AppInstanceID string
	Namespace     string
	BaseURL       string

	HTTPClient *http.Client
	Logger     authgate.Logger
	Now        func() time.Time
}

// Client implements authgate.RemoteConfig over the client fetch endpoint.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     authgate.Logger

	mu        sync.RWMutex
	settings  authgate.ConfigSettings
	defaults  map[string]string
	active    map[string]string
	pending   map[string]string
	lastFetch time.Time
	status    FetchStatus
}

var _ authgate.RemoteConfig = (*Client)(nil)

// New creates a new remote config client.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Namespace == "" {
		cfg.Namespace = "firebase"
	}
	if cfg.AppInstanceID == "" {
		cfg.AppInstanceID = uuid.NewString()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	_, logger := authgate.ResolveLogger("authgate.remoteconfig", nil, cfg.Logger)

	return &Client{
		config:     cfg,
		httpClient: client,
		logger:     logger,
		defaults:   map[string]string{},
		status:     FetchStatusNoFetchYet,
	}
}

// SetConfigSettings implements authgate.RemoteConfig.
func (c *Client) SetConfigSettings(settings authgate.ConfigSettings) {
	c.mu.Lock()
	c.settings = settings
	c.mu.Unlock()
}

// SetDefaults implements authgate.RemoteConfig.
func (c *Client) SetDefaults(defaults map[string]any) {
	converted := make(map[string]string, len(defaults))
	for k, v := range defaults {
		converted[k] = stringify(v)
	}
	c.mu.Lock()
	c.defaults = converted
	c.mu.Unlock()
}

// FetchAndActivate implements authgate.RemoteConfig.
func (c *Client) FetchAndActivate(ctx context.Context) (bool, error) {
	if err := c.Fetch(ctx); err != nil {
		return false, err
	}
	return c.Activate(), nil
}

// Fetch downloads the current template into the pending slot. Calls within
// the minimum fetch interval of the last successful fetch are skipped.
func (c *Client) Fetch(ctx context.Context) error {
	c.mu.RLock()
	settings := c.settings
	last := c.lastFetch
	c.mu.RUnlock()

	now := c.config.Now()
	if !last.IsZero() && now.Sub(last) < settings.MinimumFetchInterval {
		c.setStatus(FetchStatusThrottled)
		c.logger.Debug("remote config fetch throttled", "last_fetch", last)
		return nil
	}

	if settings.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, settings.FetchTimeout)
		defer cancel()
	}

	resp, err := c.fetch(ctx)
	if err != nil {
		c.setStatus(FetchStatusFailure)
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	switch resp.State {
	case StateNoChange:
		if c.pending == nil && c.active == nil {
			c.pending = map[string]string{}
		}
	case StateNoTemplate, StateEmpty:
		c.pending = map[string]string{}
	default:
		c.pending = resp.Entries
		if c.pending == nil {
			c.pending = map[string]string{}
		}
	}
	c.lastFetch = now
	c.status = FetchStatusSuccess
	return nil
}

// Activate promotes the pending template. It reports whether the active
// values changed.
func (c *Client) Activate() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return false
	}
	pending := c.pending
	c.pending = nil
	if c.active != nil && maps.Equal(c.active, pending) {
		return false
	}
	c.active = pending
	return true
}

// GetValue implements authgate.RemoteConfig. Active remote values win over
// defaults; unknown keys are static empty values.
func (c *Client) GetValue(key string) authgate.ConfigValue {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if v, ok := c.active[key]; ok {
		return NewValue(v, authgate.ValueSourceRemote)
	}
	if v, ok := c.defaults[key]; ok {
		return NewValue(v, authgate.ValueSourceDefault)
	}
	return NewValue("", authgate.ValueSourceStatic)
}

// All returns every known key with its resolved value.
func (c *Client) All() map[string]authgate.ConfigValue {
	c.mu.RLock()
	keys := make([]string, 0, len(c.defaults)+len(c.active))
	for k := range c.defaults {
		keys = append(keys, k)
	}
	for k := range c.active {
		keys = append(keys, k)
	}
	c.mu.RUnlock()

	out := make(map[string]authgate.ConfigValue, len(keys))
	for _, k := range keys {
		out[k] = c.GetValue(k)
	}
	return out
}

// LastFetchStatus returns the outcome of the last fetch attempt.
func (c *Client) LastFetchStatus() FetchStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

func (c *Client) setStatus(status FetchStatus) {
	c.mu.Lock()
	c.status = status
	c.mu.Unlock()
}

type fetchRequest struct {
	AppInstanceID string `json:"appInstanceId"`
	AppID         string `json:"appId,omitempty"`
}

type fetchResponse struct {
	Entries map[string]string `json:"entries"`
	State   string            `json:"state"`
}

type apiErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (c *Client) fetch(ctx context.Context) (*fetchResponse, error) {
	body, err := json.Marshal(fetchRequest{
		AppInstanceID: c.config.AppInstanceID,
		AppID:         c.config.AppID,
	})
	if err != nil {
		return nil, err
	}

	endpoint := c.config.BaseURL + "/projects/" + url.PathEscape(c.config.ProjectID) +
		"/namespaces/" + url.PathEscape(c.config.Namespace) + ":fetch?key=" + url.QueryEscape(c.config.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "remote config fetch failed")
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to read remote config response")
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr apiErrorResponse
		message := strings.TrimSpace(string(payload))
		if json.Unmarshal(payload, &apiErr) == nil && apiErr.Error.Message != "" {
			message = apiErr.Error.Message
		}
		return nil, goerrors.New("remote config fetch rejected: "+message, goerrors.CategoryOperation).
			WithCode(resp.StatusCode).
			WithMetadata(map[string]any{
				"status":  resp.StatusCode,
				"project": c.config.ProjectID,
			})
	}

	var out fetchResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to decode remote config response")
	}
	return &out, nil
}
