package rtdb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-authgate"
	goerrors "github.com/goliatone/go-errors"
)

// TokenSource yields the ID token used to authorize database requests.
type TokenSource interface {
	IDToken(ctx context.Context) (string, error)
}

// Config holds realtime database configuration.
type Config struct {
	// BaseURL is the database root, e.g. https://<db>.firebaseio.com
	BaseURL string
	// Tokens authorizes requests. Nil sends unauthenticated requests.
	Tokens TokenSource

	HTTPClient *http.Client
	Logger     authgate.Logger
}

// Client implements authgate.Datastore over the database REST API.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     authgate.Logger
}

var _ authgate.Datastore = (*Client)(nil)

// New creates a new database client.
func New(cfg Config) *Client {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	_, logger := authgate.ResolveLogger("authgate.rtdb", nil, cfg.Logger)

	return &Client{
		config:     cfg,
		httpClient: client,
		logger:     logger,
	}
}

// WriteRecord replaces the record at path with value.
func (c *Client) WriteRecord(ctx context.Context, path string, value map[string]any) error {
	body, err := json.Marshal(value)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to encode record").
			WithMetadata(map[string]any{"path": path})
	}
	_, err = c.send(ctx, http.MethodPut, path, bytes.NewReader(body))
	return err
}

// ReadRecord returns the record at path, or nil when nothing is stored.
func (c *Client) ReadRecord(ctx context.Context, path string) (map[string]any, error) {
	body, err := c.send(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var out map[string]any
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to decode record").
			WithMetadata(map[string]any{"path": path})
	}
	return out, nil
}

// DeleteRecord removes the record at path.
func (c *Client) DeleteRecord(ctx context.Context, path string) error {
	_, err := c.send(ctx, http.MethodDelete, path, nil)
	return err
}

func (c *Client) send(ctx context.Context, method, path string, body io.Reader) ([]byte, error) {
	endpoint, err := c.endpoint(ctx, path)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "database request failed").
			WithMetadata(map[string]any{"path": path, "method": method})
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to read database response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("database request rejected", "method", method, "path", path, "status", resp.StatusCode)
		return nil, statusError(resp.StatusCode, path, payload)
	}
	return payload, nil
}

func (c *Client) endpoint(ctx context.Context, path string) (string, error) {
	if c.config.BaseURL == "" {
		return "", goerrors.New("database url is not configured", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest)
	}

	clean := "/" + strings.Trim(strings.TrimSpace(path), "/")
	endpoint := c.config.BaseURL + clean + ".json"

	if c.config.Tokens == nil {
		return endpoint, nil
	}
	token, err := c.config.Tokens.IDToken(ctx)
	if err != nil {
		return "", err
	}
	return endpoint + "?auth=" + url.QueryEscape(token), nil
}

type apiError struct {
	Error string `json:"error"`
}

func statusError(status int, path string, body []byte) error {
	var parsed apiError
	message := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != "" {
		message = parsed.Error
	}

	category := goerrors.CategoryOperation
	code := goerrors.CodeInternal
	switch status {
	case http.StatusUnauthorized:
		category, code = goerrors.CategoryAuth, goerrors.CodeUnauthorized
	case http.StatusForbidden:
		category, code = goerrors.CategoryAuthz, goerrors.CodeForbidden
	case http.StatusNotFound:
		category, code = goerrors.CategoryNotFound, goerrors.CodeNotFound
	case http.StatusBadRequest:
		category, code = goerrors.CategoryBadInput, goerrors.CodeBadRequest
	}

	return goerrors.New(fmt.Sprintf("database request failed: %s", message), category).
		WithCode(code).
		WithMetadata(map[string]any{
			"path":   path,
			"status": status,
		})
}
