package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/nao1215/citenet/internal/model"
)

// Recorder receives one entry per finished fetch.
// The graph store's fetch log and the metrics collector implement it.
type Recorder interface {
	RecordFetch(ctx context.Context, rec model.FetchRecord)
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Fetcher fetches result pages with rate limiting, retries and failure
// classification. It is safe for concurrent use.
type Fetcher struct {
	client      *http.Client
	urls        *URLBuilder
	limiter     *rate.Limiter
	maxRetries  int
	backoffBase time.Duration
	backoffMax  time.Duration
	timeout     time.Duration
	maxBodySize int64
	jitter      time.Duration
	sleep       SleepFunc
	recorders   []Recorder
	logger      *slog.Logger

	// blocked latches once the service has signalled automated-access
	// detection. No request is sent while it is set.
	blocked atomic.Bool
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithDelay sets the minimum interval between two requests.
// Zero disables the rate gate.
func WithDelay(d time.Duration) Option {
	return func(f *Fetcher) {
		if d <= 0 {
			f.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		f.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// WithMaxRetries sets how many times a retryable failure is retried.
func WithMaxRetries(n int) Option {
	return func(f *Fetcher) {
		f.maxRetries = n
	}
}

// WithBackoff sets the first backoff wait and the cap.
func WithBackoff(base, maxWait time.Duration) Option {
	return func(f *Fetcher) {
		f.backoffBase = base
		f.backoffMax = maxWait
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.timeout = d
	}
}

// WithMaxBodySize limits how many bytes of a response are read.
func WithMaxBodySize(n int64) Option {
	return func(f *Fetcher) {
		f.maxBodySize = n
	}
}

// WithJitter adds a log-normally distributed pause, scaled by unit, before
// every request. Zero disables jitter.
func WithJitter(unit time.Duration) Option {
	return func(f *Fetcher) {
		f.jitter = unit
	}
}

// WithSleep replaces the function used for backoff and jitter waits.
func WithSleep(fn SleepFunc) Option {
	return func(f *Fetcher) {
		f.sleep = fn
	}
}

// WithRecorder adds a recorder that is told about every finished fetch.
func WithRecorder(r Recorder) Option {
	return func(f *Fetcher) {
		f.recorders = append(f.recorders, r)
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = l
	}
}

// New creates a Fetcher.
//
// Design decision: the HTTP client is passed in so proxy, cookie and header
// configuration stay in NewHTTPClient and tests can use httptest clients.
func New(client *http.Client, urls *URLBuilder, opts ...Option) *Fetcher {
	f := &Fetcher{
		client:      client,
		urls:        urls,
		limiter:     rate.NewLimiter(rate.Every(5*time.Second), 1),
		maxRetries:  3,
		backoffBase: 2 * time.Second,
		backoffMax:  2 * time.Minute,
		timeout:     30 * time.Second,
		maxBodySize: 5 * 1024 * 1024,
		sleep:       sleepContext,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Blocked reports whether the fetcher has latched after a block.
func (f *Fetcher) Blocked() bool {
	return f.blocked.Load()
}

// Reset clears the block latch, for example before a resumed run.
func (f *Fetcher) Reset() {
	f.blocked.Store(false)
}

// Fetch requests the page described by q.
//
// Throttled and transient failures are retried with exponential backoff up to
// the configured retry count. A blocked classification latches the fetcher.
// Cancelling ctx stops waits but never aborts a request already sent; the
// request is bounded by the per-request timeout instead.
func (f *Fetcher) Fetch(ctx context.Context, q model.QueryDescriptor) (*model.RawResultPage, error) {
	target := f.urls.Build(q)
	started := time.Now()

	for attempt := 1; ; attempt++ {
		if f.blocked.Load() {
			return nil, &model.FetchError{
				Kind:     model.FetchBlocked,
				URL:      target,
				Attempts: attempt - 1,
				Reason:   "fetcher halted after an earlier block",
			}
		}

		if err := f.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting for rate gate: %w", err)
		}
		if f.jitter > 0 {
			if err := f.sleep(ctx, f.jitterDelay()); err != nil {
				return nil, fmt.Errorf("waiting for jitter: %w", err)
			}
		}

		page, retryAfter, fetchErr := f.do(ctx, q, target)
		if fetchErr == nil {
			page.Attempts = attempt
			f.record(ctx, model.FetchRecord{
				Query:      q.String(),
				URL:        page.URL,
				Outcome:    model.FetchOutcomeOK,
				StatusCode: page.StatusCode,
				Attempts:   attempt,
				Hash:       page.Hash,
				Duration:   time.Since(started),
				FetchedAt:  page.FetchedAt,
			})
			return page, nil
		}
		fetchErr.Attempts = attempt

		if fetchErr.Kind == model.FetchBlocked {
			f.blocked.Store(true)
		}

		if !fetchErr.Kind.Retryable() || attempt > f.maxRetries {
			f.logger.Warn("fetch failed",
				"query", q.String(),
				"kind", fetchErr.Kind.String(),
				"status", fetchErr.StatusCode,
				"attempts", attempt)
			f.record(ctx, model.FetchRecord{
				Query:      q.String(),
				URL:        target,
				Outcome:    fetchErr.Kind.String(),
				StatusCode: fetchErr.StatusCode,
				Attempts:   attempt,
				Duration:   time.Since(started),
				FetchedAt:  time.Now(),
			})
			return nil, fetchErr
		}

		wait := max(f.backoff(attempt), retryAfter)
		f.logger.Debug("retrying fetch",
			"query", q.String(),
			"kind", fetchErr.Kind.String(),
			"attempt", attempt,
			"wait", wait)
		if err := f.sleep(ctx, wait); err != nil {
			return nil, fmt.Errorf("waiting for backoff: %w", err)
		}
	}
}

// do sends one request. The request context is detached from ctx so a
// cancellation lets the in-flight request finish or time out.
func (f *Fetcher) do(ctx context.Context, q model.QueryDescriptor, target string) (*model.RawResultPage, time.Duration, *model.FetchError) {
	reqCtx := context.WithoutCancel(ctx)
	if f.timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(reqCtx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, target, nil)
	if err != nil {
		return nil, 0, &model.FetchError{Kind: model.FetchTransient, URL: target, Err: err}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		reason := "request failed"
		if errors.Is(err, context.DeadlineExceeded) {
			reason = "request timed out"
		}
		return nil, 0, &model.FetchError{Kind: model.FetchTransient, URL: target, Reason: reason, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		return nil, 0, &model.FetchError{
			Kind:       model.FetchTransient,
			URL:        target,
			StatusCode: resp.StatusCode,
			Reason:     "reading body",
			Err:        err,
		}
	}

	finalURL := target
	finalPath := ""
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
		finalPath = resp.Request.URL.Path
	}

	verdict := classifyResponse(resp.StatusCode, finalPath, body)
	if !verdict.ok {
		return nil, parseRetryAfter(resp.Header.Get("Retry-After")), &model.FetchError{
			Kind:       verdict.kind,
			URL:        finalURL,
			StatusCode: resp.StatusCode,
			Reason:     verdict.reason,
		}
	}

	page := &model.RawResultPage{
		Query:      q,
		URL:        finalURL,
		StatusCode: resp.StatusCode,
		Body:       body,
		FetchedAt:  time.Now(),
	}
	page.ComputeHash()
	return page, 0, nil
}

// backoff returns the wait before retry n (1-based): base * 2^(n-1), capped.
func (f *Fetcher) backoff(n int) time.Duration {
	if f.backoffBase <= 0 {
		return 0
	}
	wait := f.backoffBase
	for i := 1; i < n; i++ {
		wait *= 2
		if f.backoffMax > 0 && wait >= f.backoffMax {
			return f.backoffMax
		}
	}
	if f.backoffMax > 0 && wait > f.backoffMax {
		return f.backoffMax
	}
	return wait
}

// jitterDelay draws exp(N(0,1)) units, capped at ten units.
func (f *Fetcher) jitterDelay() time.Duration {
	factor := math.Min(math.Exp(rand.NormFloat64()), 10) //nolint:gosec // timing jitter, not security
	return time.Duration(factor * float64(f.jitter))
}

func (f *Fetcher) record(ctx context.Context, rec model.FetchRecord) {
	for _, r := range f.recorders {
		r.RecordFetch(ctx, rec)
	}
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
