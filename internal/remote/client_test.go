package remote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
)

func noopSleep(context.Context, time.Duration) error { return nil }

func newTestClient(policy RetryPolicy, opts ...Option) *Client {
	opts = append([]Option{WithSleepFunc(noopSleep)}, opts...)
	return NewClient(&http.Client{Timeout: 5 * time.Second}, policy, opts...)
}

func TestFetch_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != "growwatch/1.0" {
			t.Errorf("user agent: got %q", ua)
		}
		w.Write([]byte("d,h\n"))
	}))
	defer server.Close()

	body, err := newTestClient(DefaultRetryPolicy()).Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(body) != "d,h\n" {
		t.Errorf("body: %q", body)
	}
}

func TestFetch_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	body, err := newTestClient(DefaultRetryPolicy()).Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(body) != "ok" || calls.Load() != 3 {
		t.Errorf("body %q after %d calls", body, calls.Load())
	}
}

func TestFetch_ExhaustedRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	policy := RetryPolicy{MaxRetries: 2, MinWait: time.Millisecond, MaxWait: time.Millisecond}
	_, err := newTestClient(policy).Fetch(context.Background(), server.URL)
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestFetch_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := newTestClient(DefaultRetryPolicy()).Fetch(context.Background(), server.URL)
	var se *StatusError
	if !errors.As(err, &se) || se.Status != http.StatusNotFound {
		t.Fatalf("expected a 404 StatusError, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("404 should not be retried, got %d calls", calls.Load())
	}
}

func TestFetch_OpenBreakerShortCircuits(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(RetryPolicy{MaxRetries: 0}, WithBreakerSettings(gobreaker.Settings{
		Name:    "test",
		Timeout: time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 1
		},
		IsSuccessful: isSuccessful,
	}))

	if _, err := client.Fetch(context.Background(), server.URL); err == nil {
		t.Fatal("first fetch should fail")
	}
	_, err := client.Fetch(context.Background(), server.URL)
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("open breaker should not reach the server, got %d calls", calls.Load())
	}
}

func TestBackoff(t *testing.T) {
	c := newTestClient(RetryPolicy{MaxRetries: 3, MinWait: 100 * time.Millisecond, MaxWait: time.Second})

	if got := c.backoff(0, 0); got != 100*time.Millisecond {
		t.Errorf("first backoff: got %v", got)
	}
	for attempt := 1; attempt < 6; attempt++ {
		got := c.backoff(attempt, 0)
		if got < 100*time.Millisecond || got > time.Second {
			t.Errorf("attempt %d: backoff %v outside [MinWait, MaxWait]", attempt, got)
		}
	}
	if got := c.backoff(0, 5*time.Second); got != time.Second {
		t.Errorf("Retry-After should be clamped to MaxWait, got %v", got)
	}
}

func TestParseRetryAfter(t *testing.T) {
	if got := parseRetryAfter("3"); got != 3*time.Second {
		t.Errorf("seconds: got %v", got)
	}
	if got := parseRetryAfter("soon"); got != 0 {
		t.Errorf("garbage: got %v", got)
	}
}
