package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/chatlink/chatlink/internal/errors"
	"github.com/chatlink/chatlink/internal/logging"
	"github.com/chatlink/chatlink/internal/metrics"
	"github.com/chatlink/chatlink/internal/store"
)

// refreshWait is how long a caller waits for a refresh already in flight
// before re-reading the token store. The guard is best effort: it prevents
// concurrent refresh calls within this process, nothing more.
const refreshWait = 500 * time.Millisecond

// Client talks to the chatbot platform API. All endpoints respond with the
// platform envelope; auth endpoints additionally rotate the token pair.
type Client struct {
	baseURL  string
	http     *http.Client
	tokens   *TokenStore
	settings store.SettingsStore
	logger   *logging.Logger
	metrics  *metrics.Metrics

	// refresh guard
	refreshMu  sync.Mutex
	refreshing bool

	// shorter deadline for refresh and list calls; zero means the
	// http.Client timeout alone applies
	refreshTimeout time.Duration

	now   func() time.Time
	sleep func(time.Duration)
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.http = hc
	}
}

// WithMetrics attaches a metrics recorder to the client.
func WithMetrics(m *metrics.Metrics) ClientOption {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithUTLS enables the Chrome-mimicking TLS transport for outbound calls.
func WithUTLS() ClientOption {
	return func(c *Client) {
		c.http.Transport = newTransport(true)
	}
}

// WithRefreshTimeout caps token refreshes and admin-triggered list calls,
// which must answer faster than regular API calls because a browser is
// waiting on them.
func WithRefreshTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.refreshTimeout = d
	}
}

// NewClient creates a platform API client backed by the given settings store.
func NewClient(baseURL string, settings store.SettingsStore, opts ...ClientOption) *Client {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	c := &Client{
		baseURL:  baseURL,
		settings: settings,
		tokens:   NewTokenStore(settings),
		logger:   logging.NewLogger(),
		http: &http.Client{
			Timeout:   30 * time.Second,
			Transport: newTransport(false),
		},
		now:   time.Now,
		sleep: time.Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Tokens returns the client's token store.
func (c *Client) Tokens() *TokenStore {
	return c.tokens
}

// quickCtx applies the refresh timeout to calls a browser waits on.
func (c *Client) quickCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.refreshTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.refreshTimeout)
}

// IsAuthenticated reports whether the client holds a usable access token,
// refreshing synchronously when the stored token has expired. It never
// makes a network call while the token is still valid.
func (c *Client) IsAuthenticated(ctx context.Context) bool {
	creds := c.tokens.Load()
	if creds.AccessToken == "" && creds.RefreshToken == "" {
		return false
	}
	if !creds.Expired(c.now()) {
		return true
	}
	if creds.RefreshToken == "" {
		return false
	}
	return c.refreshTokens(ctx) == nil
}

// refreshTokens exchanges the stored refresh token for a new pair. Only one
// refresh runs at a time within the process; late callers wait briefly and
// re-read the store instead of issuing their own call.
func (c *Client) refreshTokens(ctx context.Context) error {
	c.refreshMu.Lock()
	if c.refreshing {
		c.refreshMu.Unlock()
		c.sleep(refreshWait)
		creds := c.tokens.Load()
		if !creds.Expired(c.now()) {
			return nil
		}
		return &errors.ErrAuthExpired{}
	}
	c.refreshing = true
	c.refreshMu.Unlock()

	defer func() {
		c.refreshMu.Lock()
		c.refreshing = false
		c.refreshMu.Unlock()
	}()

	creds := c.tokens.Load()
	if creds.RefreshToken == "" {
		return &errors.ErrNotAuthenticated{}
	}

	refreshCtx, cancel := c.quickCtx(ctx)
	defer cancel()

	var result tokenResponse
	err := c.do(refreshCtx, http.MethodPost, "auth/refresh/", map[string]interface{}{
		"refresh_token": creds.RefreshToken,
		"remember_me":   true,
	}, "", &result)
	if err != nil {
		c.recordRefresh("error")
		c.logger.WarnWithContext(ctx, "token refresh failed", "error", err.Error())
		// Any failed refresh drops the pair and forces a fresh login; the
		// next call reports unauthenticated instead of retrying a doomed
		// refresh.
		if clearErr := c.tokens.Clear(); clearErr != nil {
			c.logger.WarnWithContext(ctx, "failed to clear credentials", "error", clearErr.Error())
		}
		return &errors.ErrAuthExpired{}
	}

	if err := c.tokens.Save(result.AccessToken, result.RefreshToken, result.ExpiresIn); err != nil {
		c.recordRefresh("error")
		return err
	}
	c.recordRefresh("success")
	c.logger.DebugWithContext(ctx, "access token refreshed")
	return nil
}

// request performs an authenticated platform call. A 401 response triggers
// exactly one token refresh and retry; a second 401 means the session is
// gone for good.
func (c *Client) request(ctx context.Context, method, path string, payload, target interface{}) error {
	creds := c.tokens.Load()
	if creds.AccessToken == "" {
		return &errors.ErrNotAuthenticated{}
	}
	if creds.Expired(c.now()) {
		if err := c.refreshTokens(ctx); err != nil {
			return err
		}
		creds = c.tokens.Load()
	}

	status, err := c.doStatus(ctx, method, path, payload, creds.AccessToken, target)
	if err == nil && status != http.StatusUnauthorized {
		return nil
	}
	if status != http.StatusUnauthorized {
		return err
	}

	// Stale token the expiry margin did not catch. Refresh once and retry.
	if refreshErr := c.refreshTokens(ctx); refreshErr != nil {
		return &errors.ErrAuthExpired{}
	}
	creds = c.tokens.Load()
	status, err = c.doStatus(ctx, method, path, payload, creds.AccessToken, target)
	if status == http.StatusUnauthorized {
		return &errors.ErrAuthExpired{}
	}
	return err
}

// do performs an unauthenticated-or-bearer call and decodes the envelope.
func (c *Client) do(ctx context.Context, method, path string, payload interface{}, bearer string, target interface{}) error {
	_, err := c.doStatus(ctx, method, path, payload, bearer, target)
	return err
}

func (c *Client) doStatus(ctx context.Context, method, path string, payload interface{}, bearer string, target interface{}) (int, error) {
	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, &errors.ErrValidation{Field: "payload"}
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, &errors.ErrNetwork{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.recordCall(path, "network_error")
		return 0, &errors.ErrNetwork{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		c.recordCall(path, "unauthorized")
		return resp.StatusCode, &errors.ErrAuthExpired{}
	}

	if err := decodeEnvelope(resp, target); err != nil {
		c.recordCall(path, "error")
		return resp.StatusCode, err
	}
	c.recordCall(path, "success")
	return resp.StatusCode, nil
}

func (c *Client) recordCall(endpoint, outcome string) {
	if c.metrics != nil {
		c.metrics.RecordPlatformCall(endpoint, outcome)
	}
}

func (c *Client) recordRefresh(outcome string) {
	if c.metrics != nil {
		c.metrics.RecordTokenRefresh(outcome)
	}
}
