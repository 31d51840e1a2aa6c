package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/citenet/internal/model"
)

const listingBody = `<html><body><div id="gs_res_ccl"></div></body></html>`

// sleepRecorder records requested waits without sleeping.
type sleepRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waits = append(s.waits, d)
	return ctx.Err()
}

func (s *sleepRecorder) recorded() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.waits...)
}

type recorderFunc func(rec model.FetchRecord)

func (f recorderFunc) RecordFetch(_ context.Context, rec model.FetchRecord) { f(rec) }

func newTestFetcher(t *testing.T, srv *httptest.Server, opts ...Option) *Fetcher {
	t.Helper()
	urls, err := NewURLBuilder(srv.URL, 10)
	if err != nil {
		t.Fatalf("NewURLBuilder: %v", err)
	}
	base := []Option{WithDelay(0), WithBackoff(time.Second, time.Minute)}
	return New(srv.Client(), urls, append(base, opts...)...)
}

func citationsQuery() model.QueryDescriptor {
	return model.QueryDescriptor{Kind: model.QueryCitations, Ref: "42"}
}

func TestFetchBackoffSchedule(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) <= 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(listingBody))
	}))
	t.Cleanup(srv.Close)

	sleeper := &sleepRecorder{}
	f := newTestFetcher(t, srv, WithMaxRetries(5), WithSleep(sleeper.sleep))

	page, err := f.Fetch(context.Background(), citationsQuery())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Attempts != 4 {
		t.Errorf("Attempts = %d, want 4", page.Attempts)
	}

	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	got := sleeper.recorded()
	if len(got) != len(want) {
		t.Fatalf("waits = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("wait %d = %v, want %v", i, got[i], want[i])
		}
	}
	if page.Hash == "" {
		t.Error("expected page hash")
	}
}

func TestFetchRetriesExhausted(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	sleeper := &sleepRecorder{}
	f := newTestFetcher(t, srv, WithMaxRetries(2), WithSleep(sleeper.sleep))

	_, err := f.Fetch(context.Background(), citationsQuery())
	if !errors.Is(err, model.ErrTransient) {
		t.Fatalf("expected ErrTransient, got %v", err)
	}
	var fe *model.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *model.FetchError, got %T", err)
	}
	if fe.Attempts != 3 || calls.Load() != 3 {
		t.Errorf("attempts = %d, calls = %d, want 3", fe.Attempts, calls.Load())
	}
	if fe.StatusCode != http.StatusBadGateway {
		t.Errorf("StatusCode = %d", fe.StatusCode)
	}
	if f.Blocked() {
		t.Error("transient failure latched the fetcher")
	}
}

func TestFetchBackoffCap(t *testing.T) {
	t.Parallel()

	f := &Fetcher{backoffBase: time.Second, backoffMax: 5 * time.Second}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second}
	for i, w := range want {
		if got := f.backoff(i + 1); got != w {
			t.Errorf("backoff(%d) = %v, want %v", i+1, got, w)
		}
	}
}

func TestFetchRetryAfter(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "30")
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(listingBody))
	}))
	t.Cleanup(srv.Close)

	sleeper := &sleepRecorder{}
	f := newTestFetcher(t, srv, WithMaxRetries(1), WithSleep(sleeper.sleep))

	if _, err := f.Fetch(context.Background(), citationsQuery()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := sleeper.recorded()
	if len(got) != 1 || got[0] != 30*time.Second {
		t.Errorf("waits = %v, want [30s]", got)
	}
}

func TestFetchBlocked(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "forbidden",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusForbidden)
			},
		},
		{
			name: "captcha page",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`<html><div id="gs_captcha_ccl">Please show you're not a robot</div></html>`))
			},
		},
		{
			name: "redirect to sorry page",
			handler: func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/sorry/index" {
					_, _ = w.Write([]byte("<html>sorry</html>"))
					return
				}
				http.Redirect(w, r, "/sorry/index", http.StatusFound)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/scholar" {
					calls.Add(1)
				}
				tt.handler(w, r)
			}))
			t.Cleanup(srv.Close)

			sleeper := &sleepRecorder{}
			f := newTestFetcher(t, srv, WithMaxRetries(5), WithSleep(sleeper.sleep))

			_, err := f.Fetch(context.Background(), citationsQuery())
			if !errors.Is(err, model.ErrBlocked) {
				t.Fatalf("expected ErrBlocked, got %v", err)
			}
			if len(sleeper.recorded()) != 0 {
				t.Error("blocked fetch was retried")
			}
			if !f.Blocked() {
				t.Fatal("fetcher did not latch")
			}

			_, err = f.Fetch(context.Background(), citationsQuery())
			if !errors.Is(err, model.ErrBlocked) {
				t.Errorf("expected ErrBlocked after latch, got %v", err)
			}
			if calls.Load() != 1 {
				t.Errorf("requests sent = %d, want 1", calls.Load())
			}

			f.Reset()
			if f.Blocked() {
				t.Error("Reset did not clear the latch")
			}
		})
	}
}

func TestFetchListingWithBlockWordsInTitles(t *testing.T) {
	t.Parallel()

	titles := []string{
		"reCAPTCHA: Human-based character recognition via web security measures",
		"I am not a robot: detecting bots with mouse dynamics",
		"Mining automated queries in search engine logs",
		"Unusual traffic from your computer network: a measurement study",
	}

	for _, title := range titles {
		t.Run(title, func(t *testing.T) {
			t.Parallel()

			body := `<html><body><div id="gs_res_ccl"><div class="gs_r gs_or gs_scl" data-cid="abc">` +
				`<h3 class="gs_rt"><a href="/paper">` + title + `</a></h3>` +
				`<div class="gs_a">A Author - Venue, 2008 - example.org</div></div></div></body></html>`
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(body))
			}))
			t.Cleanup(srv.Close)

			f := newTestFetcher(t, srv)
			page, err := f.Fetch(context.Background(), citationsQuery())
			if err != nil {
				t.Fatalf("expected a listing, got %v", err)
			}
			if page == nil || len(page.Body) == 0 {
				t.Fatal("expected a page body")
			}
			if f.Blocked() {
				t.Error("fetcher latched on a listing")
			}
		})
	}
}

func TestFindBlockMarker(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "listing", body: listingBody, want: ""},
		{
			name: "unusual traffic page",
			body: `<html><body><p>Our systems have detected unusual traffic from your computer network.</p></body></html>`,
			want: "unusual traffic from your computer network",
		},
		{
			name: "automated queries sentence",
			body: `<html><body><p>Sorry, but your computer or network may be sending automated queries.</p></body></html>`,
			want: "but your computer or network may be sending automated queries",
		},
		{
			name: "recaptcha widget",
			body: `<html><head><script src="https://www.google.com/recaptcha/api.js"></script></head><body></body></html>`,
			want: "recaptcha",
		},
		{name: "captcha form", body: `<html><body><form id="captcha-form"></form></body></html>`, want: `id="captcha`},
		{
			name: "phrase only inside a result block",
			body: `<div id="gs_res_ccl"><div class="gs_r gs_or"><h3 class="gs_rt">Please show you're not a robot</h3></div></div>`,
			want: "",
		},
		{name: "bare forbidden body", body: "/+/+/+/+/+", want: "/+/+/+/+/+"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := findBlockMarker([]byte(tt.body)); got != tt.want {
				t.Errorf("findBlockMarker() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFetchNotFound(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	sleeper := &sleepRecorder{}
	f := newTestFetcher(t, srv, WithSleep(sleeper.sleep))

	_, err := f.Fetch(context.Background(), citationsQuery())
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if len(sleeper.recorded()) != 0 {
		t.Error("not found was retried")
	}
}

func TestFetchTimeoutIsTransient(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	f := newTestFetcher(t, srv, WithMaxRetries(0), WithTimeout(50*time.Millisecond))

	_, err := f.Fetch(context.Background(), citationsQuery())
	if !errors.Is(err, model.ErrTransient) {
		t.Fatalf("expected ErrTransient, got %v", err)
	}
}

func TestFetchCancelledBeforeDispatch(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(listingBody))
	}))
	t.Cleanup(srv.Close)

	f := newTestFetcher(t, srv, WithDelay(time.Hour))
	// Consume the single burst token.
	if _, err := f.Fetch(context.Background(), citationsQuery()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.Fetch(ctx, citationsQuery()); err == nil {
		t.Fatal("expected error for cancelled context")
	}
	if calls.Load() != 1 {
		t.Errorf("requests sent = %d, want 1", calls.Load())
	}
}

func TestFetchRecorder(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("cites") == "missing" {
			w.WriteHeader(http.StatusGone)
			return
		}
		_, _ = w.Write([]byte(listingBody))
	}))
	t.Cleanup(srv.Close)

	var (
		mu      sync.Mutex
		records []model.FetchRecord
	)
	f := newTestFetcher(t, srv, WithRecorder(recorderFunc(func(rec model.FetchRecord) {
		mu.Lock()
		defer mu.Unlock()
		records = append(records, rec)
	})))

	if _, err := f.Fetch(context.Background(), citationsQuery()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, _ = f.Fetch(context.Background(), model.QueryDescriptor{Kind: model.QueryCitations, Ref: "missing"})

	mu.Lock()
	defer mu.Unlock()
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
	if records[0].Outcome != model.FetchOutcomeOK || records[0].Hash == "" {
		t.Errorf("unexpected success record: %+v", records[0])
	}
	if records[1].Outcome != "not_found" || records[1].StatusCode != http.StatusGone {
		t.Errorf("unexpected failure record: %+v", records[1])
	}
}

func TestFetchConcurrentCallersShareGate(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(listingBody))
	}))
	t.Cleanup(srv.Close)

	f := newTestFetcher(t, srv, WithDelay(20*time.Millisecond))

	start := time.Now()
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.Fetch(context.Background(), citationsQuery()); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	// Four requests through a burst-1 gate need at least three intervals.
	if elapsed := time.Since(start); elapsed < 55*time.Millisecond {
		t.Errorf("requests were not spaced: elapsed %v", elapsed)
	}
}

func TestParseRetryAfter(t *testing.T) {
	t.Parallel()

	if got := parseRetryAfter(""); got != 0 {
		t.Errorf("empty = %v", got)
	}
	if got := parseRetryAfter("12"); got != 12*time.Second {
		t.Errorf("seconds = %v", got)
	}
	if got := parseRetryAfter("soon"); got != 0 {
		t.Errorf("garbage = %v", got)
	}
}
