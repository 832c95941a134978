package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	backoffice "github.com/lendkit/backoffice"
	"github.com/lendkit/backoffice/store"
)

const defaultUserAgent = "backoffice-client/1.0"

// Config wires the base URL, token storage, and shared plumbing for the API
// client.
//
// Config instances are intended to be configured during initialization and
// then treated as immutable unless documented otherwise.
type Config struct {
	// BaseURL is the back-office API root, e.g. "https://office.example.com/api/v1".
	BaseURL string

	// HTTPClient overrides the transport. Defaults to http.DefaultClient.
	HTTPClient *http.Client

	// UserAgent overrides the User-Agent header sent with every request.
	UserAgent string

	// Store is the token store shared with the session coordinator. Every
	// authenticated request reads the pair through it; refreshes write
	// through it. Required.
	Store store.TokenStore

	// Bus receives token-refreshed and auth-error events. Hand the client
	// the same bus as the coordinator builder so session state follows
	// refresh outcomes. Optional; without it events are not published.
	Bus *backoffice.Bus

	// Metrics receives request, failure, and refresh counters. Optional.
	Metrics *backoffice.Metrics

	// Throttle bounds request rate client-side. Disabled by default.
	Throttle ThrottleConfig
}

// Client is the typed HTTP client for the back-office API. Use the grouped
// service fields for console resources; the zero value is not usable, call
// [New].
type Client struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
	store      store.TokenStore
	bus        *backoffice.Bus
	metrics    *backoffice.Metrics
	throttle   *throttle
	gate       refreshGate

	// Grouped service clients.
	Auth      *AuthClient
	Users     *UsersClient
	Roles     *RolesClient
	Programs  *ProgramsClient
	Decisions *DecisionsClient
	Reference *ReferenceClient
}

// New validates the configuration and returns a ready-to-use [Client].
//
// New may return an error when input validation, dependency calls, or
// security checks fail.
func New(cfg Config) (*Client, error) {
	normalized, err := normalizeBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	if cfg.Store == nil {
		return nil, errors.New("client: token store required")
	}
	if cfg.Throttle.Enabled && cfg.Throttle.RequestsPerSecond <= 0 {
		return nil, errors.New("client: throttle requires a positive rate")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	c := &Client{
		baseURL:    normalized,
		httpClient: httpClient,
		userAgent:  ua,
		store:      cfg.Store,
		bus:        cfg.Bus,
		metrics:    cfg.Metrics,
	}
	if cfg.Throttle.Enabled {
		c.throttle = newThrottle(cfg.Throttle)
	}
	c.Auth = &AuthClient{client: c}
	c.Users = &UsersClient{client: c}
	c.Roles = &RolesClient{client: c}
	c.Programs = &ProgramsClient{client: c}
	c.Decisions = &DecisionsClient{client: c}
	c.Reference = &ReferenceClient{client: c}
	return c, nil
}

func normalizeBaseURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", errors.New("client: base URL required")
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("client: invalid base URL: %w", err)
	}
	if u.Scheme == "" {
		return "", errors.New("client: base URL missing scheme (http/https)")
	}
	if u.Host == "" {
		return "", errors.New("client: base URL missing host")
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	return strings.TrimSuffix(u.String(), "/"), nil
}

func (c *Client) newJSONRequest(ctx context.Context, method, path string, payload any) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.buildURL(path), body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	id := requestIDFromContext(ctx)
	if id == "" {
		id = uuid.NewString()
	}
	req.Header.Set("X-Request-ID", id)
	return req, nil
}

func (c *Client) prepare(req *http.Request) {
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
}

// send issues an authenticated request: the current access token is
// attached as a bearer header, and a 401 triggers a single shared refresh
// round-trip followed by exactly one replay of the original request.
func (c *Client) send(req *http.Request) (*http.Response, error) {
	resp, err := c.sendBearer(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return c.finish(resp)
	}

	c.metrics.Inc(backoffice.MetricAPIFailure)
	drainClose(resp)
	if _, err := c.refreshPair(req.Context()); err != nil {
		return nil, err
	}
	replay, err := cloneRequest(req)
	if err != nil {
		return nil, err
	}
	resp, err = c.sendBearer(replay)
	if err != nil {
		return nil, err
	}
	return c.finish(resp)
}

// sendAnonymous issues a request without a bearer header and without the
// 401 retry. Login and refresh use it.
func (c *Client) sendAnonymous(req *http.Request) (*http.Response, error) {
	resp, err := c.roundTrip(req)
	if err != nil {
		return nil, err
	}
	return c.finish(resp)
}

func (c *Client) sendBearer(req *http.Request) (*http.Response, error) {
	pair, err := c.loadPair(req.Context())
	if err != nil {
		return nil, err
	}
	if pair.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	}
	return c.roundTrip(req)
}

func (c *Client) roundTrip(req *http.Request) (*http.Response, error) {
	if err := c.throttle.wait(req.Context()); err != nil {
		return nil, err
	}
	c.prepare(req)
	c.metrics.Inc(backoffice.MetricAPIRequest)
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.Observe(backoffice.MetricRequestLatency, time.Since(start))
	if err != nil {
		c.metrics.Inc(backoffice.MetricAPIFailure)
		return nil, err
	}
	return resp, nil
}

func (c *Client) finish(resp *http.Response) (*http.Response, error) {
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		c.metrics.Inc(backoffice.MetricAPIFailure)
		return nil, decodeAPIError(resp)
	}
	return resp, nil
}

func (c *Client) buildURL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

func (c *Client) loadPair(ctx context.Context) (store.TokenPair, error) {
	pair, err := c.store.Load(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNoPair) {
			return store.TokenPair{}, nil
		}
		return store.TokenPair{}, fmt.Errorf("load token pair: %w", err)
	}
	return pair, nil
}

func (c *Client) publish(topic backoffice.Topic, payload any) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(backoffice.NewEvent(topic, payload))
}

func cloneRequest(req *http.Request) (*http.Request, error) {
	clone := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		clone.Body = body
	}
	return clone, nil
}

func drainClose(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

func decodeJSON[T any](resp *http.Response) (T, error) {
	defer resp.Body.Close()
	var payload T
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		var zero T
		return zero, fmt.Errorf("decode response: %w", err)
	}
	return payload, nil
}
