// Package httpretry wraps outbound HTTP calls (feed fetches, Google
// userinfo) with bounded retries, exponential backoff and jitter.
package httpretry

import (
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/lapublica/platform/internal/pkg/logger"
)

// Doer executes HTTP requests. *http.Client and *Client satisfy it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options tunes a Client. Zero values pick the defaults.
type Options struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Timeout    time.Duration
}

// Client retries idempotent requests on transport errors and 429/5xx.
type Client struct {
	next       Doer
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	sleep      func(time.Duration) <-chan time.Time
}

// New wraps next. A nil next gets an http.Client with opts.Timeout.
func New(next Doer, opts Options) *Client {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 500 * time.Millisecond
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = 15 * time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if next == nil {
		next = &http.Client{Timeout: opts.Timeout}
	}
	return &Client{
		next:       next,
		maxRetries: opts.MaxRetries,
		baseDelay:  opts.BaseDelay,
		maxDelay:   opts.MaxDelay,
		sleep:      time.After,
	}
}

// Do sends req, retrying when it is safe to. The final response is
// returned as-is so callers can read the status and body.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if req.Body != nil && req.GetBody == nil {
				return nil, fmt.Errorf("httpretry: body of %s %s cannot be replayed: %w", req.Method, req.URL.Path, lastErr)
			}
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, fmt.Errorf("httpretry: reset body: %w", err)
				}
				req.Body = body
			}
			select {
			case <-c.sleep(c.delay(attempt, lastErr)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			logger.Debug("httpretry: retrying", "attempt", attempt, "host", req.URL.Host, "path", req.URL.Path)
		}

		resp, err := c.next.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			lastErr = err
			continue
		}
		if !Retryable(resp.StatusCode) || attempt == c.maxRetries {
			return resp, nil
		}

		lastErr = &statusError{code: resp.StatusCode, retryAfter: retryAfter(resp)}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}
	return nil, lastErr
}

type statusError struct {
	code       int
	retryAfter time.Duration
}

func (e *statusError) Error() string {
	return "httpretry: retryable status " + strconv.Itoa(e.code)
}

// delay is full-jitter exponential backoff, floored at Retry-After when
// the server sent one.
func (c *Client) delay(attempt int, lastErr error) time.Duration {
	d := float64(c.baseDelay) * math.Pow(2, float64(attempt-1))
	if d > float64(c.maxDelay) {
		d = float64(c.maxDelay)
	}
	out := time.Duration(rand.Float64() * d)
	if se, ok := lastErr.(*statusError); ok && se.retryAfter > out {
		out = min(se.retryAfter, c.maxDelay)
	}
	return out
}

func retryAfter(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		return time.Until(t)
	}
	return 0
}

// Retryable reports whether status is worth another attempt.
func Retryable(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
