package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/price-scout/internal/resilience"
)

func newTestExecutor(attempts int) *Executor {
	return New(Options{
		Source:    "test",
		UserAgent: "test-agent",
		Timeout:   5 * time.Second,
		Retry: resilience.RetryConfig{
			MaxAttempts:   attempts,
			BackoffFactor: 0.001,
		},
	})
}

func TestGet_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.Write([]byte("<html>hello</html>"))
	}))
	defer srv.Close()

	resp, err := newTestExecutor(3).Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.True(t, resp.OK())
	assert.Equal(t, "<html>hello</html>", string(resp.Body))
}

func TestGet_RetriesRetryableStatus(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("recovered"))
	}))
	defer srv.Close()

	resp, err := newTestExecutor(3).Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, int32(3), attempts.Load())
	assert.Equal(t, "recovered", string(resp.Body))
}

func TestGet_ExhaustsAttempts(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestExecutor(3).Get(context.Background(), srv.URL)
	require.Error(t, err)
	// Exactly MaxAttempts requests, then give up.
	assert.Equal(t, int32(3), attempts.Load())
}

func TestGet_NonRetryableStatusIsReturned(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	resp, err := newTestExecutor(3).Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.False(t, resp.OK())
	assert.Equal(t, int32(1), attempts.Load())
}

func TestGet_CustomRetryableSet(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusTeapot)
	}))
	defer srv.Close()

	e := New(Options{
		Source: "test",
		Retry: resilience.RetryConfig{
			MaxAttempts:   2,
			BackoffFactor: 0.001,
		},
		Retryable: resilience.NewStatusSet([]int{http.StatusTeapot}),
	})

	_, err := e.Get(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Equal(t, int32(2), attempts.Load())
}

func TestGet_CircuitOpensAndRejects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	e := New(Options{
		Source: "test",
		Retry: resilience.RetryConfig{
			MaxAttempts:   1,
			BackoffFactor: 0.001,
		},
		Circuit: &resilience.CircuitConfig{
			FailureThreshold: 2,
			ResetTimeout:     time.Minute,
		},
	})

	ctx := context.Background()
	_, err := e.Get(ctx, srv.URL)
	require.Error(t, err)
	_, err = e.Get(ctx, srv.URL)
	require.Error(t, err)

	// Third call is rejected without touching the server.
	_, err = e.Get(ctx, srv.URL)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
}

func TestGet_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestExecutor(3).Get(ctx, srv.URL)
	require.Error(t, err)
}

func TestGet_FollowsRedirects(t *testing.T) {
	var final *httptest.Server
	final = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("landed"))
	}))
	defer final.Close()

	redir := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, final.URL+"/product/42", http.StatusFound)
	}))
	defer redir.Close()

	resp, err := newTestExecutor(1).Get(context.Background(), redir.URL)
	require.NoError(t, err)
	assert.Equal(t, "landed", string(resp.Body))
	assert.Equal(t, final.URL+"/product/42", resp.URL)
}
