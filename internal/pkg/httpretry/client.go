// Package httpretry provides an HTTP client with automatic retry logic,
// exponential backoff, and jitter for resilient portal API calls.
package httpretry

import (
	"fmt"
	"io"
	"log"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"time"
)

// HTTPDoer is the interface for executing HTTP requests.
// Both *http.Client and *RetryClient satisfy this interface.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RetryClient wraps an HTTPDoer with retry logic using exponential backoff and jitter.
type RetryClient struct {
	client     HTTPDoer
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	maxHint    time.Duration
}

// NewRetryClient creates a new RetryClient that wraps the given HTTPDoer.
// If client is nil, a default http.Client with 30s timeout is used.
// maxRetries is the number of retry attempts after the initial request (default 3).
func NewRetryClient(client HTTPDoer, maxRetries int) *RetryClient {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &RetryClient{
		client:     client,
		maxRetries: maxRetries,
		baseDelay:  200 * time.Millisecond,
		maxDelay:   12 * time.Second,
		maxHint:    30 * time.Second,
	}
}

// SetDelays overrides the base and cap backoff delays.
func (rc *RetryClient) SetDelays(base, cap time.Duration) {
	if base > 0 {
		rc.baseDelay = base
	}
	if cap > 0 {
		rc.maxDelay = cap
	}
}

// Do executes the HTTP request with retry logic.
// It retries on retryable status codes (429, 500, 502, 503, 504) and
// transient network/timeout errors. It does NOT retry on client errors
// (400, 401, 403, 404) or context cancellation.
// On the final attempt, it returns the response as-is so the caller
// can inspect the status code and body.
func (rc *RetryClient) Do(req *http.Request) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= rc.maxRetries; attempt++ {
		if req.Context().Err() != nil {
			if lastErr != nil {
				return nil, lastErr
			}
			return nil, req.Context().Err()
		}

		resp, err := rc.client.Do(req)
		if err != nil {
			lastErr = err
			// If the context was canceled/expired, don't retry
			if req.Context().Err() != nil {
				return nil, err
			}
			if attempt == rc.maxRetries {
				return nil, lastErr
			}
			if werr := rc.waitBeforeRetry(req, attempt, rc.Delay(attempt)); werr != nil {
				return nil, lastErr
			}
			continue
		}

		// Non-retryable status code — return immediately (success or client error)
		if !IsRetryableStatus(resp.StatusCode) {
			return resp, nil
		}

		// If this is the last attempt, return the response as-is
		// so the caller can read the body and handle the error
		if attempt == rc.maxRetries {
			return resp, nil
		}

		// A server-specified Retry-After hint takes precedence over the
		// computed backoff, capped at maxHint.
		delay := rc.Delay(attempt)
		if hint, ok := retryAfterHint(resp); ok {
			delay = hint
			if delay > rc.maxHint {
				delay = rc.maxHint
			}
		}

		// Drain body for connection reuse before retrying
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		lastErr = fmt.Errorf("httpretry: server returned retryable status %d", resp.StatusCode)

		if werr := rc.waitBeforeRetry(req, attempt, delay); werr != nil {
			return nil, lastErr
		}
	}

	return nil, lastErr
}

// waitBeforeRetry sleeps for delay, resetting the request body for the next
// attempt. Returns an error if the request context ends first.
func (rc *RetryClient) waitBeforeRetry(req *http.Request, attempt int, delay time.Duration) error {
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return fmt.Errorf("httpretry: failed to reset request body: %w", err)
		}
		req.Body = body
	}

	log.Printf("httpretry: retry attempt %d/%d for %s %s%s (waiting %s)",
		attempt+1, rc.maxRetries, req.Method, req.URL.Host, req.URL.Path, delay)

	timer := time.NewTimer(delay)
	select {
	case <-timer.C:
		return nil
	case <-req.Context().Done():
		timer.Stop()
		return req.Context().Err()
	}
}

// Delay returns the backoff duration for the given attempt (0-based).
// Exponential backoff scaled by a uniform jitter factor in [0.5, 1.5):
// min(maxDelay, baseDelay * 2^attempt) * jitter.
func (rc *RetryClient) Delay(attempt int) time.Duration {
	expDelay := float64(rc.baseDelay) * math.Pow(2, float64(attempt))
	if expDelay > float64(rc.maxDelay) {
		expDelay = float64(rc.maxDelay)
	}

	jittered := time.Duration(expDelay * (0.5 + rand.Float64()))

	// Minimum delay to avoid busy-looping
	if jittered < 100*time.Millisecond {
		jittered = 100 * time.Millisecond
	}

	return jittered
}

// retryAfterHint parses a Retry-After header carrying a delay in seconds.
// HTTP-date values are ignored; the computed backoff applies instead.
func retryAfterHint(resp *http.Response) (time.Duration, bool) {
	ra := resp.Header.Get("Retry-After")
	if ra == "" {
		return 0, false
	}
	secs, err := strconv.Atoi(ra)
	if err != nil || secs < 0 {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}

// IsRetryableStatus returns true if the HTTP status code indicates a
// transient server error that should be retried.
// Retries: 429 (Too Many Requests), 500, 502, 503, 504.
// Does NOT retry: 400, 401, 403, 404, or any other client error.
func IsRetryableStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests:
		return true
	case http.StatusInternalServerError:
		return true
	case http.StatusBadGateway:
		return true
	case http.StatusServiceUnavailable:
		return true
	case http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
