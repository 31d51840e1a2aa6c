package crawler

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/citenet/internal/database"
	"github.com/nao1215/citenet/internal/fetcher"
	"github.com/nao1215/citenet/internal/model"
	"github.com/nao1215/citenet/internal/parser"
	"github.com/nao1215/citenet/internal/resolver"
)

// paper is one publication known to the fake search service.
type paper struct {
	title  string
	citers []string
}

// fakeScholar serves search, citation and cluster listings for a fixed
// citation graph keyed by cluster id.
type fakeScholar struct {
	papers map[string]paper
	search map[string][]string

	// status, when set, overrides the response for a citations listing page.
	status func(ref string, start int) int

	mu       sync.Mutex
	requests []string
}

func (s *fakeScholar) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	s.mu.Lock()
	s.requests = append(s.requests, r.URL.RawQuery)
	s.mu.Unlock()

	var ids []string
	switch {
	case q.Get("cites") != "":
		ref := q.Get("cites")
		if s.status != nil {
			start, _ := strconv.Atoi(q.Get("start"))
			if code := s.status(ref, start); code != http.StatusOK {
				w.WriteHeader(code)
				_, _ = fmt.Fprint(w, "<html><body>Please wait while we check your browser</body></html>")
				return
			}
		}
		ids = s.papers[ref].citers
	case q.Get("cluster") != "":
		if _, ok := s.papers[q.Get("cluster")]; ok {
			ids = []string{q.Get("cluster")}
		}
	default:
		ids = s.search[q.Get("q")]
	}

	start, _ := strconv.Atoi(q.Get("start"))
	num, _ := strconv.Atoi(q.Get("num"))
	if num == 0 {
		num = 10
	}
	end := min(len(ids), start+num)
	if start > end {
		start = end
	}

	var b strings.Builder
	b.WriteString(`<html><body><div id="gs_res_ccl"><div id="gs_res_ccl_mid">`)
	if len(ids) == 0 {
		b.WriteString(`<div class="gs_med">Your search did not match any articles.</div>`)
	}
	for _, id := range ids[start:end] {
		p := s.papers[id]
		fmt.Fprintf(&b, `<div class="gs_r gs_or gs_scl" data-cid="%s"><div class="gs_ri">`, id)
		fmt.Fprintf(&b, `<h3 class="gs_rt"><a href="/p/%s">%s</a></h3>`, id, html.EscapeString(p.title))
		b.WriteString(`<div class="gs_a">A Author - Journal of Tests, 2020 - example.org</div>`)
		b.WriteString(`<div class="gs_fl">`)
		if len(p.citers) > 0 {
			fmt.Fprintf(&b, `<a href="/scholar?cites=%s&amp;hl=en">Cited by %d</a>`, id, len(p.citers))
		}
		b.WriteString(`</div></div></div>`)
	}
	b.WriteString(`</div></div>`)
	if end < len(ids) {
		fmt.Fprintf(&b, `<div id="gs_n"><a href="/scholar?start=%d">Next</a></div>`, end)
	}
	b.WriteString(`</body></html>`)
	_, _ = fmt.Fprint(w, b.String())
}

// requested reports whether the citations listing of ref was requested.
func (s *fakeScholar) requested(ref string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.requests {
		if strings.Contains(r, "cites="+ref+"&") || strings.HasSuffix(r, "cites="+ref) {
			return true
		}
	}
	return false
}

func (s *fakeScholar) requestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

type harness struct {
	scholar *fakeScholar
	fetcher *fetcher.Fetcher
	db      *database.GraphDB
}

func newHarness(t *testing.T, s *fakeScholar) *harness {
	t.Helper()

	srv := httptest.NewServer(s)
	t.Cleanup(srv.Close)

	urls, err := fetcher.NewURLBuilder(srv.URL, 10)
	if err != nil {
		t.Fatalf("NewURLBuilder: %v", err)
	}
	f := fetcher.New(srv.Client(), urls,
		fetcher.WithDelay(0),
		fetcher.WithMaxRetries(0),
		fetcher.WithSleep(func(context.Context, time.Duration) error { return nil }),
	)

	db, err := database.Open(filepath.Join(t.TempDir(), "citenet.db"), database.DefaultOptions())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return &harness{scholar: s, fetcher: f, db: db}
}

func (h *harness) controller(opts ...Option) *Controller {
	return New(h.fetcher, parser.New(), resolver.New(resolver.DefaultConfig()), h.db, opts...)
}

func (h *harness) counts(t *testing.T) database.Counts {
	t.Helper()
	c, err := h.db.Counts(context.Background())
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	return c
}

// smallGraph: two seeds, S1 cited by A and B, S2 cited by A, A cited by C,
// C cited by D. B has no citers.
func smallGraph() *fakeScholar {
	return &fakeScholar{
		papers: map[string]paper{
			"s1": {title: "Seed paper number one", citers: []string{"a", "b"}},
			"s2": {title: "Seed paper number two", citers: []string{"a"}},
			"a":  {title: "Citing paper alpha", citers: []string{"c"}},
			"b":  {title: "Citing paper bravo"},
			"c":  {title: "Citing paper charlie", citers: []string{"d"}},
			"d":  {title: "Citing paper delta"},
		},
		search: map[string][]string{"graphs": {"s1", "s2"}},
	}
}

func TestControllerRun(t *testing.T) {
	t.Parallel()

	for _, workers := range []int{1, 3} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			t.Parallel()

			h := newHarness(t, smallGraph())
			c := h.controller(WithMaxDepth(2), WithWorkers(workers))

			run, err := c.Run(context.Background(), Seeds{Terms: []string{"graphs"}})
			if err != nil {
				t.Fatalf("Run: %v", err)
			}

			if run.State != model.StateFinished || run.StopReason != model.StopCompleted {
				t.Errorf("state = %s, reason = %s", run.State, run.StopReason)
			}
			if c.State() != model.StateFinished {
				t.Errorf("controller state = %s", c.State())
			}
			if run.Fetches != 4 {
				t.Errorf("Fetches = %d, want 4", run.Fetches)
			}
			if run.Stats.ExpandedEntries != 3 || run.Stats.DiscardedEntries != 1 {
				t.Errorf("stats = %+v", run.Stats)
			}

			counts := h.counts(t)
			if counts.Publications != 5 || counts.Edges != 4 {
				t.Errorf("counts = %+v, want 5 publications and 4 edges", counts)
			}
			if h.scholar.requested("c") {
				t.Error("entry at maximum depth was fetched")
			}

			stored, err := h.db.GetRun(context.Background(), run.ID)
			if err != nil {
				t.Fatalf("GetRun: %v", err)
			}
			if stored.State != model.StateFinished || stored.FinishedAt == nil || stored.SeedsDone != 1 {
				t.Errorf("stored run = %+v", stored)
			}
		})
	}
}

func TestControllerDepthLimit(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &fakeScholar{
		papers: map[string]paper{
			"s": {title: "The seed publication", citers: []string{"p"}},
			"p": {title: "Publication citing seed", citers: []string{"q"}},
			"q": {title: "Publication two hops away"},
		},
		search: map[string][]string{"seed": {"s"}},
	})

	run, err := h.controller(WithMaxDepth(1)).Run(context.Background(), Seeds{Terms: []string{"seed"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if h.scholar.requested("p") {
		t.Error("citations of the depth 1 publication were fetched")
	}
	if run.Stats.DiscardedEntries != 1 {
		t.Errorf("DiscardedEntries = %d, want 1", run.Stats.DiscardedEntries)
	}

	ctx := context.Background()
	var depths []int
	for p, err := range h.db.IteratePublications(ctx) {
		if err != nil {
			t.Fatalf("IteratePublications: %v", err)
		}
		if p.Title == "Publication two hops away" {
			t.Error("publication beyond the maximum depth was stored")
		}
		depths = append(depths, p.Depth)
	}
	if len(depths) != 2 || depths[0] != 0 || depths[1] != 1 {
		t.Errorf("depths = %v, want [0 1]", depths)
	}

	var edges int
	for e, err := range h.db.IterateEdges(ctx) {
		if err != nil {
			t.Fatalf("IterateEdges: %v", err)
		}
		if e.IsSelfLoop() {
			t.Error("self loop stored")
		}
		edges++
	}
	if edges != 1 {
		t.Errorf("edges = %d, want 1", edges)
	}

	entries, err := h.db.RunEntries(ctx, run.ID)
	if err != nil {
		t.Fatalf("RunEntries: %v", err)
	}
	var discarded int
	for _, e := range entries {
		if e.Status == database.EntryDiscarded {
			discarded++
			if e.Depth != 1 {
				t.Errorf("discarded entry at depth %d", e.Depth)
			}
		}
	}
	if discarded != 1 {
		t.Errorf("discarded entries = %d", discarded)
	}
}

// tenSeeds returns a graph whose search yields ten citable seeds.
func tenSeeds() *fakeScholar {
	s := &fakeScholar{papers: map[string]paper{}, search: map[string][]string{}}
	for i := range 10 {
		id := fmt.Sprintf("seed%d", i)
		citer := fmt.Sprintf("citer%d", i)
		s.papers[id] = paper{title: fmt.Sprintf("Seed publication number %d", i), citers: []string{citer}}
		s.papers[citer] = paper{title: fmt.Sprintf("Citing publication number %d", i)}
		s.search["ten"] = append(s.search["ten"], id)
	}
	return s
}

func TestControllerBlockedSuspendsAndResumes(t *testing.T) {
	t.Parallel()

	var blocked atomic.Bool
	blocked.Store(true)
	s := tenSeeds()
	s.status = func(string, int) int {
		if blocked.Load() {
			return http.StatusForbidden
		}
		return http.StatusOK
	}
	h := newHarness(t, s)
	ctx := context.Background()

	c := h.controller(WithMaxDepth(3))
	run, err := c.Run(ctx, Seeds{Terms: []string{"ten"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if run.State != model.StateSuspended || run.StopReason != model.StopBlocked {
		t.Fatalf("state = %s, reason = %s", run.State, run.StopReason)
	}
	if !run.StopReason.Suspends() || run.FinishedAt != nil {
		t.Error("blocked run reported like a completed one")
	}
	frontier, err := h.db.LoadFrontier(ctx, run.ID)
	if err != nil {
		t.Fatalf("LoadFrontier: %v", err)
	}
	if len(frontier) != 10 {
		t.Fatalf("frontier has %d entries, want 10", len(frontier))
	}
	if frontier[0].Title != "Seed publication number 0" {
		t.Errorf("requeued entry lost its position: %q first", frontier[0].Title)
	}
	if !h.fetcher.Blocked() {
		t.Error("fetcher not latched")
	}
	requests := h.scholar.requestCount()

	blocked.Store(false)
	resumed, err := h.controller(WithMaxDepth(3)).Resume(ctx, run.ID)
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if resumed.State != model.StateFinished || resumed.StopReason != model.StopCompleted {
		t.Errorf("resumed state = %s, reason = %s", resumed.State, resumed.StopReason)
	}
	if got := h.scholar.requestCount() - requests; got != 10 {
		t.Errorf("resume issued %d requests, want 10", got)
	}
	if counts := h.counts(t); counts.Publications != 20 || counts.Edges != 10 {
		t.Errorf("counts = %+v", counts)
	}

	if _, err := h.controller().Resume(ctx, run.ID); !errors.Is(err, ErrRunFinished) {
		t.Errorf("resuming a completed run: %v", err)
	}
}

func TestControllerBlockedDuringSeeding(t *testing.T) {
	t.Parallel()

	var blocked atomic.Bool
	blocked.Store(true)
	s := smallGraph()
	s.status = func(string, int) int {
		if blocked.Load() {
			return http.StatusForbidden
		}
		return http.StatusOK
	}
	h := newHarness(t, s)
	ctx := context.Background()

	// Latch the fetcher so the first seed query is refused.
	if _, err := h.fetcher.Fetch(ctx, model.QueryDescriptor{Kind: model.QueryCitations, Ref: "s1"}); !errors.Is(err, model.ErrBlocked) {
		t.Fatalf("priming fetch: %v", err)
	}

	run, err := h.controller().Run(ctx, Seeds{Terms: []string{"graphs"}, Clusters: []string{"b"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if run.StopReason != model.StopBlocked || run.SeedsDone != 0 {
		t.Fatalf("reason = %s, seeds done = %d", run.StopReason, run.SeedsDone)
	}

	blocked.Store(false)
	resumed, err := h.controller().Resume(ctx, run.ID)
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if resumed.SeedsDone != 2 || resumed.StopReason != model.StopCompleted {
		t.Errorf("seeds done = %d, reason = %s", resumed.SeedsDone, resumed.StopReason)
	}
	if counts := h.counts(t); counts.Publications != 4 || counts.Edges != 3 {
		t.Errorf("counts = %+v", counts)
	}
}

func TestControllerUnrecognizedPage(t *testing.T) {
	t.Parallel()

	s := smallGraph()
	s.status = func(ref string, _ int) int {
		if ref == "s2" {
			return http.StatusOK + 1 // any 2xx without a listing
		}
		return http.StatusOK
	}
	h := newHarness(t, s)

	run, err := h.controller(WithMaxDepth(2)).Run(context.Background(), Seeds{Terms: []string{"graphs"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if run.State != model.StateSuspended || run.StopReason != model.StopUnrecognizedPage {
		t.Errorf("state = %s, reason = %s", run.State, run.StopReason)
	}
}

func TestControllerFailedEntryContinues(t *testing.T) {
	t.Parallel()

	s := smallGraph()
	s.status = func(ref string, _ int) int {
		if ref == "s1" {
			return http.StatusInternalServerError
		}
		return http.StatusOK
	}
	h := newHarness(t, s)

	run, err := h.controller(WithMaxDepth(2)).Run(context.Background(), Seeds{Terms: []string{"graphs"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if run.StopReason != model.StopCompleted {
		t.Errorf("reason = %s, want completed", run.StopReason)
	}
	if run.Stats.FailedEntries != 1 {
		t.Errorf("FailedEntries = %d, want 1", run.Stats.FailedEntries)
	}
	if !h.scholar.requested("a") {
		t.Error("crawl did not continue past the failed entry")
	}
}

func TestControllerListingFailureKeepsEarlierPages(t *testing.T) {
	t.Parallel()

	citers := make([]string, 15)
	s := &fakeScholar{
		papers: map[string]paper{},
		search: map[string][]string{"wide": {"wide"}},
	}
	for i := range citers {
		citers[i] = fmt.Sprintf("w%02d", i)
		s.papers[citers[i]] = paper{title: fmt.Sprintf("Citing work number %02d", i)}
	}
	s.papers["wide"] = paper{title: "Widely cited seed paper", citers: citers}
	s.status = func(ref string, start int) int {
		if ref == "wide" && start >= 10 {
			return http.StatusInternalServerError
		}
		return http.StatusOK
	}
	h := newHarness(t, s)

	run, err := h.controller(WithMaxDepth(1)).Run(context.Background(), Seeds{Terms: []string{"wide"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if run.StopReason != model.StopCompleted {
		t.Errorf("reason = %s, want completed", run.StopReason)
	}
	if run.Stats.FailedEntries != 1 {
		t.Errorf("FailedEntries = %d, want 1", run.Stats.FailedEntries)
	}
	if got := h.counts(t); got.Publications != 11 || got.Edges != 10 {
		t.Errorf("counts = %+v, want 11 publications and 10 edges", got)
	}
}

func TestControllerBudget(t *testing.T) {
	t.Parallel()

	h := newHarness(t, smallGraph())
	ctx := context.Background()

	run, err := h.controller(WithMaxDepth(2), WithBudget(2)).Run(ctx, Seeds{Terms: []string{"graphs"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if run.State != model.StateFinished || run.StopReason != model.StopBudgetExhausted {
		t.Fatalf("state = %s, reason = %s", run.State, run.StopReason)
	}
	if run.Fetches != 2 || h.scholar.requestCount() != 2 {
		t.Errorf("fetches = %d, requests = %d", run.Fetches, h.scholar.requestCount())
	}

	if _, err := h.controller(WithBudget(2)).Resume(ctx, run.ID); !errors.Is(err, ErrRunFinished) {
		t.Errorf("resume without a larger budget: %v", err)
	}

	resumed, err := h.controller(WithBudget(10)).Resume(ctx, run.ID)
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if resumed.StopReason != model.StopCompleted || resumed.Fetches != 4 {
		t.Errorf("reason = %s, fetches = %d", resumed.StopReason, resumed.Fetches)
	}
	if counts := h.counts(t); counts.Edges != 4 {
		t.Errorf("edges = %d, want 4", counts.Edges)
	}
}

// cancelObserver cancels the crawl once the first entry is finished.
type cancelObserver struct {
	nopObserver
	cancel context.CancelFunc

	mu     sync.Mutex
	states []model.State
	reason model.StopReason
}

func (o *cancelObserver) StateChanged(s model.State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.states = append(o.states, s)
}

func (o *cancelObserver) EntryFinished(string) { o.cancel() }

func (o *cancelObserver) Stopped(r model.StopReason) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.reason = r
}

func TestControllerCancellation(t *testing.T) {
	t.Parallel()

	h := newHarness(t, tenSeeds())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	obs := &cancelObserver{cancel: cancel}

	run, err := h.controller(WithMaxDepth(3), WithObserver(obs)).Run(ctx, Seeds{Terms: []string{"ten"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if run.State != model.StateSuspended || run.StopReason != model.StopCancelled || obs.reason != model.StopCancelled {
		t.Fatalf("state = %s, reason = %s", run.State, run.StopReason)
	}
	if run.Stats.ExpandedEntries != 1 {
		t.Errorf("ExpandedEntries = %d, want 1", run.Stats.ExpandedEntries)
	}

	want := []model.State{model.StateSeeding, model.StateExpanding, model.StateSuspended}
	if fmt.Sprint(obs.states) != fmt.Sprint(want) {
		t.Errorf("states = %v, want %v", obs.states, want)
	}

	frontier, err := h.db.LoadFrontier(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("LoadFrontier: %v", err)
	}
	// The nine unexpanded seeds; the citer has no citations of its own.
	if len(frontier) != 9 {
		t.Errorf("frontier has %d entries, want 9", len(frontier))
	}
}

func TestControllerCiterCaps(t *testing.T) {
	t.Parallel()

	s := &fakeScholar{papers: map[string]paper{}, search: map[string][]string{}}
	var citers []string
	for i := range 10 {
		id := fmt.Sprintf("c%d", i)
		s.papers[id] = paper{title: fmt.Sprintf("Citing work number %d", i)}
		citers = append(citers, id)
	}
	s.papers["s"] = paper{title: "Much cited seed work", citers: citers}
	s.search["cap"] = []string{"s"}

	tests := []struct {
		name string
		opts []Option
		want int
	}{
		{name: "absolute cap", opts: []Option{WithMaxCiters(3)}, want: 3},
		{name: "percent cap", opts: []Option{WithCitersPercent(20)}, want: 2},
		{name: "smaller cap wins", opts: []Option{WithMaxCiters(1), WithCitersPercent(50)}, want: 1},
		{name: "no cap", want: 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t, s)
			run, err := h.controller(tt.opts...).Run(context.Background(), Seeds{Terms: []string{"cap"}})
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if run.Stats.Edges != tt.want {
				t.Errorf("edges = %d, want %d", run.Stats.Edges, tt.want)
			}
		})
	}
}

func TestCiterLimit(t *testing.T) {
	t.Parallel()

	c := New(nil, nil, nil, nil, WithCitersPercent(1))
	if got := c.citerLimit(model.FrontierEntry{CitationCount: model.IntPtr(10)}); got != 1 {
		t.Errorf("limit = %d, want at least one citer", got)
	}
	if got := c.citerLimit(model.FrontierEntry{}); got != 0 {
		t.Errorf("unknown count limit = %d, want 0", got)
	}
}

func TestControllerClusterSeed(t *testing.T) {
	t.Parallel()

	h := newHarness(t, smallGraph())
	run, err := h.controller(WithMaxDepth(1)).Run(context.Background(), Seeds{Clusters: []string{"s2"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if run.StopReason != model.StopCompleted || run.Stats.Edges != 1 {
		t.Errorf("reason = %s, edges = %d", run.StopReason, run.Stats.Edges)
	}
}

func TestControllerNoSeeds(t *testing.T) {
	t.Parallel()

	if _, err := New(nil, nil, nil, nil).Run(context.Background(), Seeds{}); !errors.Is(err, ErrNoSeeds) {
		t.Errorf("error = %v, want ErrNoSeeds", err)
	}
}

func TestFrontier(t *testing.T) {
	t.Parallel()

	f := NewFrontier()
	f.Push(model.FrontierEntry{PublicationID: 1, Depth: 1})
	f.Push(model.FrontierEntry{PublicationID: 2, Depth: 0})
	f.Push(model.FrontierEntry{PublicationID: 3, Depth: 1})

	if f.Push(model.FrontierEntry{PublicationID: 3, Depth: 2}) {
		t.Error("deeper duplicate was pushed")
	}
	if !f.Push(model.FrontierEntry{PublicationID: 1, Depth: 0}) {
		t.Error("shallower duplicate was not pushed")
	}
	if f.Len() != 3 {
		t.Fatalf("Len = %d", f.Len())
	}

	first, _ := f.Pop()
	second, _ := f.Pop()
	if first.PublicationID != 2 || second.PublicationID != 1 {
		t.Errorf("order = %d, %d", first.PublicationID, second.PublicationID)
	}

	f.Requeue(first)
	entries := f.Entries()
	if len(entries) != 2 || entries[0].PublicationID != 2 || entries[1].PublicationID != 3 {
		t.Errorf("entries after requeue = %+v", entries)
	}
	if !f.Push(model.FrontierEntry{PublicationID: 4, Depth: 0}) || f.Entries()[1].PublicationID != 4 {
		t.Error("new entry ordered before a requeued one")
	}
}

func TestBudget(t *testing.T) {
	t.Parallel()

	t.Run("limited", func(t *testing.T) {
		t.Parallel()

		b := NewBudget(50, 10)
		var granted atomic.Int64
		var wg sync.WaitGroup
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for b.TryAcquire() {
					granted.Add(1)
				}
			}()
		}
		wg.Wait()

		if granted.Load() != 40 || b.Used() != 50 || !b.Exhausted() {
			t.Errorf("granted = %d, used = %d", granted.Load(), b.Used())
		}
	})

	t.Run("unlimited", func(t *testing.T) {
		t.Parallel()

		b := NewBudget(0, 0)
		for range 100 {
			if !b.TryAcquire() {
				t.Fatal("unlimited budget refused a permit")
			}
		}
		if b.Exhausted() || b.Used() != 100 {
			t.Errorf("used = %d", b.Used())
		}
	})
}
