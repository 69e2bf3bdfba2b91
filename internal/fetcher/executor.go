package fetcher

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/price-scout/internal/config"
	"github.com/sells-group/price-scout/internal/resilience"
)

// Response is the definite outcome of a successful executor call. A
// non-retryable HTTP status (404, 403, ...) is still a Response; the
// caller decides what it means for the lookup.
type Response struct {
	StatusCode int
	Body       []byte
	URL        string
}

// OK reports whether the response carries a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Options configures an Executor.
type Options struct {
	Source        string
	UserAgent     string
	Timeout       time.Duration
	PoolSize      int
	MaxConcurrent int
	RequestDelay  time.Duration
	Retry         resilience.RetryConfig
	Retryable     resilience.StatusSet
	Circuit       *resilience.CircuitConfig // nil disables the breaker
}

// Executor performs rate-limited GET requests against one source with
// bounded retries. Lookups are idempotent GETs, so retrying is always
// safe. Execute never panics: every path yields a Response or an error.
type Executor struct {
	source    string
	client    *http.Client
	pacer     *Pacer
	breaker   *resilience.CircuitBreaker
	retry     resilience.RetryConfig
	retryable resilience.StatusSet
	userAgent string
}

// New creates an executor with its own connection pool and pacer.
func New(opts Options) *Executor {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.PoolSize <= 0 {
		opts.PoolSize = 100
	}
	if opts.Retryable == nil {
		opts.Retryable = resilience.NewStatusSet(nil)
	}
	retry := opts.Retry
	retry.ShouldRetry = resilience.IsTransient
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger(opts.Source, "get")
	}

	e := &Executor{
		source: opts.Source,
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxConnsPerHost:     opts.PoolSize,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		pacer:     NewPacer(opts.MaxConcurrent, opts.RequestDelay),
		retry:     retry,
		retryable: opts.Retryable,
		userAgent: opts.UserAgent,
	}
	if opts.Circuit != nil {
		e.breaker = resilience.NewCircuitBreaker(*opts.Circuit)
	}
	return e
}

// FromSourceConfig builds an executor from a source's config section.
func FromSourceConfig(name string, sc config.SourceConfig) *Executor {
	opts := Options{
		Source:        name,
		UserAgent:     sc.UserAgent,
		Timeout:       sc.Timeout(),
		PoolSize:      sc.ConnectionPoolSize,
		MaxConcurrent: sc.MaxConcurrent,
		RequestDelay:  sc.RequestDelay(),
		Retry: resilience.RetryConfig{
			MaxAttempts:   sc.Retry.MaxAttempts,
			BackoffFactor: sc.Retry.BackoffFactor,
		},
		Retryable: resilience.NewStatusSet(sc.Retry.RetryableStatusCodes),
	}
	if sc.Circuit.FailureThreshold > 0 {
		opts.Circuit = &resilience.CircuitConfig{
			FailureThreshold: sc.Circuit.FailureThreshold,
			ResetTimeout:     time.Duration(sc.Circuit.ResetTimeoutSecs) * time.Second,
		}
	}
	return New(opts)
}

// Get performs one logical GET with pacing, retries, and backoff. A
// retryable status or transient network error is retried up to
// MaxAttempts with BackoffFactor * 2^attempt sleeps in between; any
// other status returns the response as-is.
func (e *Executor) Get(ctx context.Context, rawURL string) (*Response, error) {
	if err := e.pacer.Acquire(ctx); err != nil {
		return nil, err
	}
	defer e.pacer.Release()

	if e.breaker != nil {
		if err := e.breaker.Allow(); err != nil {
			return nil, err
		}
	}

	attempt := 0
	res, err := resilience.DoVal(ctx, e.retry, func(ctx context.Context) (*Response, error) {
		attempt++
		zap.L().Debug("request started",
			zap.String("source", e.source),
			zap.String("url", rawURL),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", e.retry.MaxAttempts),
		)
		return e.doOnce(ctx, rawURL)
	})

	if e.breaker != nil {
		e.breaker.Record(err)
	}

	if err != nil {
		zap.L().Warn("request failed",
			zap.String("source", e.source),
			zap.String("url", rawURL),
			zap.Int("attempts", attempt),
			zap.Error(err),
		)
		return nil, err
	}

	zap.L().Debug("request complete",
		zap.String("source", e.source),
		zap.String("url", rawURL),
		zap.Int("status", res.StatusCode),
		zap.Int("attempts", attempt),
	)
	return res, nil
}

func (e *Executor) doOnce(ctx context.Context, rawURL string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "%s: create request", e.source)
	}
	req.Header.Set("User-Agent", e.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "ru-RU,ru;q=0.9,en;q=0.8")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "%s: request", e.source)
	}

	body, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, eris.Wrapf(readErr, "%s: read body", e.source)
	}

	if e.retryable.Contains(resp.StatusCode) {
		return nil, resilience.NewTransientError(
			eris.Errorf("%s: status %d from %s", e.source, resp.StatusCode, rawURL),
			resp.StatusCode,
		)
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	return &Response{
		StatusCode: resp.StatusCode,
		Body:       body,
		URL:        finalURL,
	}, nil
}
