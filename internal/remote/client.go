// Package remote fetches log files over HTTP. Every request goes through a
// circuit breaker and is retried with exponential backoff on network errors,
// 429 and 5xx responses.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/nixlim/growwatch/internal/logger"
	"github.com/nixlim/growwatch/internal/metrics"
)

// ErrUpstreamUnavailable is returned when retries are exhausted or the
// breaker is open.
var ErrUpstreamUnavailable = errors.New("upstream unavailable")

// maxBodySize caps how much of a log file is read.
const maxBodySize = 64 << 20

// RetryPolicy configures retries.
type RetryPolicy struct {
	MaxRetries int
	MinWait    time.Duration
	MaxWait    time.Duration
}

// DefaultRetryPolicy returns the defaults used for lab exports.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		MinWait:    500 * time.Millisecond,
		MaxWait:    10 * time.Second,
	}
}

// StatusError is a non-retryable HTTP response.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.Status)
}

// retryableError marks a failure worth another attempt.
type retryableError struct {
	err        error
	retryAfter time.Duration
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// Client fetches remote logs.
type Client struct {
	http      *http.Client
	breaker   *gobreaker.CircuitBreaker[[]byte]
	policy    RetryPolicy
	userAgent string
	sleepFn   func(context.Context, time.Duration) error
}

// Option configures a Client.
type Option func(*Client)

// WithSleepFunc overrides the wait between retries. Intended for tests.
func WithSleepFunc(fn func(context.Context, time.Duration) error) Option {
	return func(c *Client) {
		c.sleepFn = fn
	}
}

// WithBreakerSettings replaces the default breaker.
func WithBreakerSettings(st gobreaker.Settings) Option {
	return func(c *Client) {
		c.breaker = gobreaker.NewCircuitBreaker[[]byte](st)
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// NewClient creates a Client. A nil httpClient gets a 30 second timeout.
func NewClient(httpClient *http.Client, policy RetryPolicy, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	c := &Client{
		http:      httpClient,
		policy:    policy,
		userAgent: "growwatch/1.0",
		sleepFn:   sleepContext,
		breaker: gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
			Name:        "remote-logs",
			MaxRequests: 1,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures > 5
			},
			IsSuccessful: isSuccessful,
		}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// isSuccessful keeps client errors like 404 from tripping the breaker.
func isSuccessful(err error) bool {
	var se *StatusError
	return err == nil || errors.As(err, &se) || errors.Is(err, context.Canceled)
}

// Fetch GETs url and returns the body.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	log := logger.WithComponent("remote").With().Str("url", url).Logger()

	var lastErr error
	attempts := 1 + c.policy.MaxRetries
	for attempt := 0; attempt < attempts; attempt++ {
		body, err := c.breaker.Execute(func() ([]byte, error) {
			return c.get(ctx, url)
		})
		if err == nil {
			metrics.RemoteFetchTotal.WithLabelValues("success").Inc()
			return body, nil
		}
		lastErr = err

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.RemoteFetchTotal.WithLabelValues("open").Inc()
			return nil, fmt.Errorf("%w: %s: %v", ErrUpstreamUnavailable, url, err)
		}

		var retryable *retryableError
		if !errors.As(err, &retryable) {
			metrics.RemoteFetchTotal.WithLabelValues("failed").Inc()
			return nil, err
		}

		if attempt < attempts-1 {
			metrics.RemoteFetchTotal.WithLabelValues("retry").Inc()
			wait := c.backoff(attempt, retryable.retryAfter)
			log.Warn().Err(err).Int("attempt", attempt+1).Dur("wait", wait).Msg("fetch failed, retrying")
			if err := c.sleepFn(ctx, wait); err != nil {
				return nil, err
			}
		}
	}

	metrics.RemoteFetchTotal.WithLabelValues("failed").Inc()
	return nil, fmt.Errorf("%w: %s after %d attempts: %v", ErrUpstreamUnavailable, url, attempts, lastErr)
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &retryableError{err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, &retryableError{
			err:        fmt.Errorf("GET %s: upstream returned %d", url, resp.StatusCode),
			retryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	case resp.StatusCode >= 300:
		return nil, &StatusError{URL: url, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &retryableError{err: fmt.Errorf("reading body: %w", err)}
	}
	return body, nil
}

// backoff honours Retry-After when present, otherwise uses exponential
// backoff with jitter clamped to [MinWait, MaxWait].
func (c *Client) backoff(attempt int, retryAfter time.Duration) time.Duration {
	if retryAfter > 0 {
		return min(retryAfter, c.policy.MaxWait)
	}

	base := float64(c.policy.MinWait) * math.Pow(2, float64(attempt))
	base = math.Min(base, float64(c.policy.MaxWait))
	minWait := float64(c.policy.MinWait)
	if base <= minWait {
		return c.policy.MinWait
	}
	return time.Duration(minWait + rand.Float64()*(base-minWait))
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(v); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
