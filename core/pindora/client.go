package pindora

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"access-sync/core/cache"

	"go.uber.org/zap"
)

const (
	// Namespace prefixes every response cache key.
	Namespace = "pindora"

	apiKeyHeader = "Pindora-Api-Key"
	acceptHeader = "application/vnd.pindora.api+json;version=1"
)

// Client is the base client shared by all typed clients. It owns URL
// construction, authentication headers, response validation and the response
// cache primitives.
type Client struct {
	cfg   Config
	http  *http.Client
	store cache.Store
	log   *zap.Logger
}

// NewClient creates the base Pindora client with a tuned transport.
func NewClient(cfg Config, store cache.Store, log *zap.Logger) *Client {
	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = 10
	}
	timeoutDuration := time.Duration(timeout) * time.Second

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   timeoutDuration,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   timeoutDuration,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: timeoutDuration,
	}

	return &Client{
		cfg: cfg,
		http: &http.Client{
			Transport: transport,
			Timeout:   timeoutDuration,
		},
		store: store,
		log:   log,
	}
}

// buildURL prefixes the configured base URL onto the endpoint.
func (c *Client) buildURL(endpoint string) (string, error) {
	if c.cfg.BaseURL == "" {
		return "", &ConfigurationError{Setting: "base_url"}
	}
	return strings.TrimSuffix(c.cfg.BaseURL, "/") + "/" + strings.TrimPrefix(endpoint, "/"), nil
}

// authHeaders returns the headers attached to every request.
func (c *Client) authHeaders() (map[string]string, error) {
	if c.cfg.ApiKey == "" {
		return nil, &ConfigurationError{Setting: "api_key"}
	}
	return map[string]string{
		apiKeyHeader: c.cfg.ApiKey,
		"Accept":     acceptHeader,
	}, nil
}

// validateResponse maps the statuses every operation treats identically.
// Other codes are left to the caller.
func validateResponse(status int, body []byte) error {
	switch status {
	case http.StatusForbidden:
		return &PermissionError{Body: string(body)}
	case http.StatusBadRequest:
		return &BadRequestError{Body: string(body)}
	}
	return nil
}

// do performs one remote call and returns the status and body after the
// shared validation. Body may be nil for requests without a payload.
func (c *Client) do(ctx context.Context, method, endpoint string, body any) (int, []byte, error) {
	url, err := c.buildURL(endpoint)
	if err != nil {
		return 0, nil, err
	}
	headers, err := c.authHeaders()
	if err != nil {
		return 0, nil, err
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	for key, val := range headers {
		req.Header.Set(key, val)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// Timeouts and connection failures are remote failures like any
		// other, surfaced inside the external-service family.
		return 0, nil, &UnexpectedResponseError{Status: 0, Body: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, &UnexpectedResponseError{Status: resp.StatusCode, Body: err.Error()}
	}

	if err := validateResponse(resp.StatusCode, data); err != nil {
		return resp.StatusCode, data, err
	}
	return resp.StatusCode, data, nil
}

// expect maps the remaining status codes against the operation's contract:
// 404 and 409 become typed control-flow errors, anything else unexpected.
func expect(status int, body []byte, want int, kind, id string) error {
	switch {
	case status == want:
		return nil
	case status == http.StatusNotFound:
		return &NotFoundError{Kind: kind, ID: id}
	case status == http.StatusConflict:
		return &ConflictError{Kind: kind, ID: id}
	default:
		return &UnexpectedResponseError{Status: status, Body: string(body)}
	}
}

func (c *Client) cacheKey(kind, id string) string {
	return fmt.Sprintf("%s:%s:%s", Namespace, kind, id)
}

func (c *Client) cacheTTL() time.Duration {
	if c.cfg.CacheTTLSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.cfg.CacheTTLSeconds) * time.Second
}

// cacheResponse stores a response payload. Failures are logged, never
// surfaced; the cache is best effort.
func (c *Client) cacheResponse(ctx context.Context, kind, id string, payload []byte) {
	if err := c.store.Set(ctx, c.cacheKey(kind, id), payload, c.cacheTTL()); err != nil {
		c.log.Warn("response cache write failed", zap.String("kind", kind), zap.String("id", id), zap.Error(err))
	}
}

// getCachedResponse returns a cached payload, or ok=false on a miss.
func (c *Client) getCachedResponse(ctx context.Context, kind, id string) ([]byte, bool) {
	data, ok, err := c.store.Get(ctx, c.cacheKey(kind, id))
	if err != nil {
		c.log.Warn("response cache read failed", zap.String("kind", kind), zap.String("id", id), zap.Error(err))
		return nil, false
	}
	return data, ok
}

// clearCachedResponse invalidates a cached payload after any mutation.
func (c *Client) clearCachedResponse(ctx context.Context, kind, id string) {
	if err := c.store.Delete(ctx, c.cacheKey(kind, id)); err != nil {
		c.log.Warn("response cache invalidation failed", zap.String("kind", kind), zap.String("id", id), zap.Error(err))
	}
}
