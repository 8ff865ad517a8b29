package httpretry

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func instant(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

func newTestClient(next Doer, retries int) *Client {
	c := New(next, Options{MaxRetries: retries})
	c.sleep = instant
	return c
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, "ok")
	}))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := newTestClient(srv.Client(), 3).Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 3, atomic.LoadInt32(&hits))
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := newTestClient(srv.Client(), 3).Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))
}

func TestClient_ReturnsLastResponseWhenExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := newTestClient(srv.Client(), 2).Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestClient_ReplaysBody(t *testing.T) {
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(b))
		if len(bodies) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodPost, srv.URL, strings.NewReader("payload"))
	resp, err := newTestClient(srv.Client(), 3).Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, []string{"payload", "payload"}, bodies)
}

type failingDoer struct{ calls int }

func (f *failingDoer) Do(*http.Request) (*http.Response, error) {
	f.calls++
	return nil, errors.New("connection reset")
}

func TestClient_TransportErrors(t *testing.T) {
	d := &failingDoer{}
	req, _ := http.NewRequest(http.MethodGet, "http://feeds.invalid/rss", nil)
	_, err := newTestClient(d, 2).Do(req)
	require.Error(t, err)
	assert.Equal(t, 3, d.calls)
}

func TestClient_StopsOnCancel(t *testing.T) {
	d := &failingDoer{}
	ctx, cancel := context.WithCancel(context.Background())
	c := New(d, Options{MaxRetries: 5})
	c.sleep = func(time.Duration) <-chan time.Time {
		cancel()
		return make(chan time.Time)
	}

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, "http://feeds.invalid/rss", nil)
	_, err := c.Do(req)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, d.calls)
}

func TestRetryable(t *testing.T) {
	for _, code := range []int{429, 500, 502, 503, 504} {
		assert.True(t, Retryable(code), code)
	}
	for _, code := range []int{200, 400, 401, 403, 404, 409} {
		assert.False(t, Retryable(code), code)
	}
}
