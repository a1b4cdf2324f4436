// Package netlife implements the portal API client used to pull campaign
// source data: activities, jobs, subjects, registered users, and access keys.
package netlife

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/allenroque-ai/sms-campaign-orchestrator/internal/pkg/httpretry"
)

// Limiter bounds the number of in-flight portal requests. One Limiter is
// shared across every portal client in a run, so total outbound concurrency
// is a single configured constant regardless of portal or job count.
type Limiter struct {
	sem *semaphore.Weighted
}

// NewLimiter creates a Limiter allowing at most n concurrent requests.
func NewLimiter(n int) *Limiter {
	if n < 1 {
		n = 1
	}
	return &Limiter{sem: semaphore.NewWeighted(int64(n))}
}

// APIError is returned when a portal call fails after retries are exhausted
// or with a non-retryable status.
type APIError struct {
	StatusCode int
	Endpoint   string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("portal API error (status %d) on %s: %s", e.StatusCode, e.Endpoint, e.Body)
}

// IsRetryable reports whether the failure was a transient one that already
// went through the retry policy.
func (e *APIError) IsRetryable() bool {
	return httpretry.IsRetryableStatus(e.StatusCode)
}

// Stats tracks per-portal API call counters, safe for concurrent use.
type Stats struct {
	CallsTotal  atomic.Int64
	CallsFailed atomic.Int64
}

// Client is a portal API client. Every outbound call acquires a slot from the
// shared Limiter and holds it across retries of the same logical call.
type Client struct {
	portalName string
	origin     string
	username   string
	password   string
	limiter    *Limiter
	httpClient httpretry.HTTPDoer
	stats      Stats
}

// Config holds the settings needed to build a portal client.
type Config struct {
	PortalName string
	BaseURL    string
	Username   string
	Password   string
	Timeout    time.Duration
	Retries    int
	RetryBase  time.Duration
	RetryCap   time.Duration
}

// NewClient creates a portal API client sharing the given request limiter.
func NewClient(cfg Config, limiter *Limiter) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	retry := httpretry.NewRetryClient(&http.Client{Timeout: cfg.Timeout}, cfg.Retries)
	retry.SetDelays(cfg.RetryBase, cfg.RetryCap)

	return &Client{
		portalName: cfg.PortalName,
		origin:     normalizeOrigin(cfg.BaseURL),
		username:   cfg.Username,
		password:   cfg.Password,
		limiter:    limiter,
		httpClient: retry,
	}
}

// SetHTTPClient sets a custom HTTP client (useful for testing)
func (c *Client) SetHTTPClient(client httpretry.HTTPDoer) {
	c.httpClient = client
}

// PortalName returns the portal key this client talks to.
func (c *Client) PortalName() string { return c.portalName }

// Origin returns the normalized API origin, always ending in /api/v1.
func (c *Client) Origin() string { return c.origin }

// PortalRoot returns the portal's web root, with any /api suffix stripped.
// Gallery URLs are built against this root.
func (c *Client) PortalRoot() string {
	root := c.origin
	if i := strings.Index(root, "/api/v1"); i >= 0 {
		root = root[:i]
	} else if i := strings.Index(root, "/api"); i >= 0 {
		root = root[:i]
	}
	return root
}

// Stats returns the client's API call counters.
func (c *Client) Stats() *Stats { return &c.stats }

// normalizeOrigin trims trailing slashes and collapses the base URL to a
// single /api/v1 suffix.
func normalizeOrigin(baseURL string) string {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if strings.HasSuffix(base, "/api/v1") {
		return base
	}
	return base + "/api/v1"
}

// Get issues a GET against an API endpoint (leading slash, relative to
// /api/v1) and returns the raw decoded JSON body.
func (c *Client) Get(ctx context.Context, endpoint string, params url.Values) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, endpoint, params, nil)
}

// Post issues a POST with a JSON body against an API endpoint.
func (c *Client) Post(ctx context.Context, endpoint string, body interface{}) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, endpoint, nil, body)
}

// GetURL issues a GET against an absolute or origin-relative URL. Used by the
// paginator to follow continuation links.
func (c *Client) GetURL(ctx context.Context, rawURL string) (json.RawMessage, int, error) {
	target := strings.TrimSpace(rawURL)
	switch {
	case strings.HasPrefix(target, "http"):
		// absolute, use as-is
	case strings.HasPrefix(target, "/api"):
		target = strings.TrimSuffix(c.PortalRoot(), "/") + target
	case strings.HasPrefix(target, "/"):
		target = c.origin + target
	default:
		target = c.origin + "/" + target
	}

	if err := c.limiter.sem.Acquire(ctx, 1); err != nil {
		return nil, 0, err
	}
	defer c.limiter.sem.Release(1)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Accept", "application/json")

	c.stats.CallsTotal.Add(1)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.stats.CallsFailed.Add(1)
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}
	return respBody, resp.StatusCode, nil
}

// do performs an authenticated request. The limiter slot is acquired before
// the call and held until the retry client gives up or succeeds, so retries
// never exceed the configured concurrency.
func (c *Client) do(ctx context.Context, method, endpoint string, params url.Values, body interface{}) (json.RawMessage, error) {
	endpoint = strings.TrimSpace(endpoint)
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	reqURL := c.origin + endpoint
	if len(params) > 0 {
		reqURL = reqURL + "?" + params.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	if err := c.limiter.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.limiter.sem.Release(1)

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.stats.CallsTotal.Add(1)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.stats.CallsFailed.Add(1)
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.stats.CallsFailed.Add(1)
		return nil, &APIError{StatusCode: resp.StatusCode, Endpoint: endpoint, Body: truncate(string(respBody), 200)}
	}

	return respBody, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
