package fetch

import (
	"context"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"strings"
	"time"
)

// RetryPolicy bounds retries for one logical fetch. MaxAttempts counts
// the first try; backoff doubles per attempt up to MaxBackoff.
type RetryPolicy struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// DefaultPolicy retries twice after the first attempt, starting at 1s
func DefaultPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseBackoff: 1 * time.Second,
		MaxBackoff:  30 * time.Second,
	}
}

// Backoff returns the sleep before the given attempt (2, 3, ...)
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	backoff := time.Duration(math.Pow(2, float64(attempt-2))) * p.BaseBackoff
	if backoff > p.MaxBackoff {
		backoff = p.MaxBackoff
	}
	return backoff
}

// Do runs fn under the policy, retrying transient failures. It stops
// early on non-retryable errors or context cancellation.
func Do(ctx context.Context, policy RetryPolicy, fn func() error) error {
	var lastErr error

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(policy.Backoff(attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !IsRetryable(lastErr) {
			return lastErr
		}
	}

	return fmt.Errorf("after %d attempts: %w", policy.MaxAttempts, lastErr)
}

// StatusError is an HTTP response outside the 2xx range
type StatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d from %s", e.StatusCode, e.URL)
}

// IsRetryable classifies transient failures: 5xx, 429, timeouts and
// connection-level errors. Everything else fails immediately.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if statusErr, ok := err.(*StatusError); ok {
		return statusErr.StatusCode >= 500 || statusErr.StatusCode == http.StatusTooManyRequests
	}
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"timeout", "connection refused", "connection reset", "no such host", "unexpected eof"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}

	return false
}

// Client is an HTTP fetcher with a fixed user agent and retry policy
type Client struct {
	httpClient *http.Client
	userAgent  string
	policy     RetryPolicy
	maxBody    int64
}

// NewClient creates a fetcher. A zero policy falls back to DefaultPolicy.
func NewClient(timeout time.Duration, userAgent string, policy RetryPolicy) *Client {
	if policy.MaxAttempts == 0 {
		policy = DefaultPolicy()
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		userAgent: userAgent,
		policy:    policy,
		maxBody:   5 << 20,
	}
}

// Get fetches url with bounded retries and returns the response body
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	var body []byte

	err := Do(ctx, c.policy, func() error {
		req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("User-Agent", c.userAgent)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("sending request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return &StatusError{StatusCode: resp.StatusCode, URL: url, Body: string(excerpt)}
		}

		body, err = io.ReadAll(io.LimitReader(resp.Body, c.maxBody))
		if err != nil {
			return fmt.Errorf("reading response: %w", err)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}
	return body, nil
}
