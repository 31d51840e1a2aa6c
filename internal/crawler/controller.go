package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/nao1215/citenet/internal/database"
	"github.com/nao1215/citenet/internal/model"
	"github.com/nao1215/citenet/internal/pipeline"
	"github.com/nao1215/citenet/internal/resolver"
)

// Default controller settings.
const (
	DefaultMaxDepth           = 1
	DefaultSeedPages          = 1
	DefaultWorkers            = 1
	DefaultCheckpointInterval = 10
)

// Fetcher is the fetcher used by the Controller.
// Reset clears a blocked latch left by a previous run before resuming.
type Fetcher interface {
	pipeline.Fetcher
	Reset()
}

// Seeds are the queries that bootstrap a run.
type Seeds struct {
	// Terms are free-text search queries.
	Terms []string

	// Clusters are service cluster ids fetched as a fixed publication list.
	Clusters []string
}

// Len returns the number of seed queries.
func (s Seeds) Len() int {
	return len(s.Terms) + len(s.Clusters)
}

func (s Seeds) queries() []model.QueryDescriptor {
	out := make([]model.QueryDescriptor, 0, s.Len())
	for _, t := range s.Terms {
		out = append(out, model.QueryDescriptor{Kind: model.QuerySearch, Terms: t})
	}
	for _, c := range s.Clusters {
		out = append(out, model.QueryDescriptor{Kind: model.QueryCluster, Ref: c})
	}
	return out
}

// Controller runs crawls against one graph store.
type Controller struct {
	fetcher  Fetcher
	parser   pipeline.Parser
	resolver *resolver.Resolver
	db       *database.GraphDB

	maxDepth           int
	budget             int
	seedPages          int
	maxCiters          int
	citersPercent      float64
	workers            int
	checkpointInterval int
	logger             *slog.Logger
	observer           Observer

	mu    sync.Mutex
	state model.State
}

// Option configures a Controller.
type Option func(*Controller)

// WithMaxDepth sets the maximum discovery depth. An entry at depth d is
// expanded only when d < max, so citers are discovered down to depth max and
// entries at depth max are discarded without a fetch.
func WithMaxDepth(d int) Option {
	return func(c *Controller) {
		if d >= 0 {
			c.maxDepth = d
		}
	}
}

// WithBudget sets the total number of page fetches of a run. Zero means unlimited.
func WithBudget(n int) Option {
	return func(c *Controller) {
		if n >= 0 {
			c.budget = n
		}
	}
}

// WithSeedPages sets how many result pages are requested per seed query.
func WithSeedPages(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.seedPages = n
		}
	}
}

// WithMaxCiters caps the citing records consumed per expanded entry. Zero means no cap.
func WithMaxCiters(n int) Option {
	return func(c *Controller) {
		if n >= 0 {
			c.maxCiters = n
		}
	}
}

// WithCitersPercent caps the citing records consumed per entry to a
// percentage of its reported citation count, at least one.
func WithCitersPercent(p float64) Option {
	return func(c *Controller) {
		if p >= 0 && p <= 100 {
			c.citersPercent = p
		}
	}
}

// WithWorkers sets how many entries are expanded concurrently.
func WithWorkers(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithCheckpointInterval sets after how many finished entries the run
// header and frontier are stored while expanding.
func WithCheckpointInterval(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.checkpointInterval = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// WithObserver sets the progress observer.
func WithObserver(o Observer) Option {
	return func(c *Controller) {
		c.observer = o
	}
}

// New creates a Controller.
//
// Design decision: the resolver is passed in rather than built here so the
// host can share its identity index with other tooling, and tests can
// preload it. The Controller loads it from the store when it is empty.
func New(f Fetcher, p pipeline.Parser, r *resolver.Resolver, db *database.GraphDB, opts ...Option) *Controller {
	c := &Controller{
		fetcher:            f,
		parser:             p,
		resolver:           r,
		db:                 db,
		maxDepth:           DefaultMaxDepth,
		seedPages:          DefaultSeedPages,
		workers:            DefaultWorkers,
		checkpointInterval: DefaultCheckpointInterval,
		observer:           nopObserver{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// State returns the current controller state.
func (c *Controller) State() model.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) setState(s model.State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	c.observer.StateChanged(s)
}

// Run starts a new crawl from seeds and returns its final run header.
// The run ends Finished (completed or budget exhausted) or Suspended
// (blocked, unrecognized page or cancelled); both are reported through
// run.StopReason, not as errors. An error is returned only when the run
// state could not be stored.
func (c *Controller) Run(ctx context.Context, seeds Seeds) (*database.CrawlRun, error) {
	if seeds.Len() == 0 {
		return nil, ErrNoSeeds
	}
	if err := c.loadIdentities(ctx); err != nil {
		return nil, err
	}

	run, err := c.db.CreateRun(ctx, seeds.Terms, seeds.Clusters, c.maxDepth, c.budget)
	if err != nil {
		return nil, err
	}
	c.logger.Info("crawl started",
		"run", run.ID,
		"seeds", seeds.Len(),
		"max_depth", c.maxDepth,
		"budget", c.budget,
		"workers", c.workers)

	cr := c.newCrawl(run, NewFrontier(), make(map[int64]string))
	return cr.execute(ctx)
}

// Resume continues a suspended run, or a run that finished on its budget
// when the Controller has a larger one. The stored frontier and finished
// entries are reloaded and the remaining seed queries, if any, run first.
func (c *Controller) Resume(ctx context.Context, runID string) (*database.CrawlRun, error) {
	run, err := c.db.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if c.budget > 0 {
		run.Budget = c.budget
	}
	if run.State == model.StateFinished {
		exhausted := run.StopReason == model.StopBudgetExhausted && run.Budget > run.Fetches
		if !exhausted {
			return run, fmt.Errorf("%w: %s (%s)", ErrRunFinished, run.ID, run.StopReason)
		}
	}
	if err := c.loadIdentities(ctx); err != nil {
		return nil, err
	}

	entries, err := c.db.LoadFrontier(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	statuses, err := c.db.RunEntries(ctx, run.ID)
	if err != nil {
		return nil, err
	}

	frontier := NewFrontier()
	for _, e := range entries {
		frontier.Requeue(e)
	}
	done := make(map[int64]string, len(statuses))
	for id, s := range statuses {
		done[id] = s.Status
	}

	c.fetcher.Reset()
	c.logger.Info("crawl resumed",
		"run", run.ID,
		"previous_reason", run.StopReason.String(),
		"pending", frontier.Len(),
		"finished_entries", len(done),
		"fetches", run.Fetches)

	run.StopReason = model.StopNone
	run.FinishedAt = nil
	cr := c.newCrawl(run, frontier, done)
	return cr.execute(ctx)
}

func (c *Controller) loadIdentities(ctx context.Context) error {
	if c.resolver.Len() > 0 {
		return nil
	}
	if err := c.resolver.Load(c.db.IteratePublications(ctx)); err != nil {
		return err
	}
	c.logger.Debug("identity index loaded", "publications", c.resolver.Len())
	return nil
}

func (c *Controller) newPipeline(b pipeline.Budget) *pipeline.Pipeline {
	return pipeline.New([]pipeline.Step{
		pipeline.NewCollectStep(c.fetcher, c.parser, b, c.logger),
		pipeline.NewResolveStep(c.resolver, c.db, c.logger),
	}, pipeline.WithLogger(c.logger))
}

// citerLimit returns how many citing records an entry's expansion consumes.
func (c *Controller) citerLimit(e model.FrontierEntry) int {
	limit := c.maxCiters
	if c.citersPercent > 0 && e.CitationCount != nil && *e.CitationCount > 0 {
		n := max(1, int(math.Ceil(float64(*e.CitationCount)*c.citersPercent/100)))
		if limit == 0 || n < limit {
			limit = n
		}
	}
	return limit
}

// crawl is the state of one execution of a run.
type crawl struct {
	c        *Controller
	run      *database.CrawlRun
	seeds    []model.QueryDescriptor
	frontier *Frontier
	done     map[int64]string
	budget   *Budget
	reason   model.StopReason

	sinceCheckpoint int
}

func (c *Controller) newCrawl(run *database.CrawlRun, frontier *Frontier, done map[int64]string) *crawl {
	return &crawl{
		c:        c,
		run:      run,
		seeds:    Seeds{Terms: run.Seeds, Clusters: run.Clusters}.queries(),
		frontier: frontier,
		done:     done,
		budget:   NewBudget(run.Budget, run.Fetches),
	}
}

func (cr *crawl) execute(ctx context.Context) (*database.CrawlRun, error) {
	ctx = database.ContextWithRun(ctx, cr.run.ID)
	if cr.run.SeedsDone < len(cr.seeds) {
		if err := cr.transition(ctx, model.StateSeeding); err != nil {
			return cr.run, err
		}
		cr.seed(ctx)
	}
	if cr.reason == model.StopNone {
		if err := cr.transition(ctx, model.StateExpanding); err != nil {
			return cr.run, err
		}
		cr.expand(ctx)
	}
	return cr.finish(ctx)
}

func (cr *crawl) transition(ctx context.Context, s model.State) error {
	cr.run.State = s
	cr.c.setState(s)
	cr.c.logger.Debug("crawl state changed", "run", cr.run.ID, "state", s.String())
	return cr.checkpoint(ctx)
}

func (cr *crawl) checkpoint(ctx context.Context) error {
	cr.run.Fetches = cr.budget.Used()
	cr.sinceCheckpoint = 0
	return cr.c.db.Checkpoint(context.WithoutCancel(ctx), cr.run, cr.frontier.Entries())
}

// seed runs the remaining seed queries one at a time.
func (cr *crawl) seed(ctx context.Context) {
	for cr.run.SeedsDone < len(cr.seeds) {
		if ctx.Err() != nil {
			cr.reason = model.StopCancelled
			return
		}
		if cr.budget.Exhausted() {
			cr.reason = model.StopBudgetExhausted
			return
		}

		q := cr.seeds[cr.run.SeedsDone]
		job := pipeline.NewSeedJob(q, cr.c.seedPages)
		_ = cr.c.newPipeline(cr.budget).Execute(ctx, job) //nolint:errcheck // error is stored in job.Err
		cr.account(job)

		if reason := stopReasonOf(job.Err); reason != model.StopNone {
			cr.reason = reason
			return
		}
		if job.BudgetExhausted && job.Pages == 0 {
			cr.reason = model.StopBudgetExhausted
			return
		}
		if err := job.Failure(); err != nil {
			cr.c.logger.Warn("seed query failed", "query", q.String(), "records", len(job.Records), "error", err)
		}

		pushed := cr.enqueue(job)
		cr.run.SeedsDone++
		cr.c.logger.Info("seed query done",
			"query", q.String(),
			"records", len(job.Records),
			"enqueued", pushed)

		if job.BudgetExhausted {
			cr.reason = model.StopBudgetExhausted
			return
		}
	}
}

// expand pops frontier entries until the frontier empties, the budget runs
// out or a systemic failure or cancellation stops the run.
func (cr *crawl) expand(ctx context.Context) {
	bp := pipeline.NewBatchProcessor(
		func() *pipeline.Pipeline { return cr.c.newPipeline(cr.budget) },
		pipeline.WithConcurrency(cr.c.workers),
		pipeline.WithBatchLogger(cr.c.logger),
	)

	for {
		switch {
		case ctx.Err() != nil:
			cr.reason = model.StopCancelled
			return
		case cr.frontier.Len() == 0:
			cr.reason = model.StopCompleted
			return
		case cr.budget.Exhausted():
			cr.reason = model.StopBudgetExhausted
			return
		}

		entries := cr.nextBatch(ctx)
		if len(entries) == 0 {
			continue
		}

		jobs := make([]*pipeline.Job, len(entries))
		for i, e := range entries {
			jobs[i] = pipeline.NewExpansionJob(e, cr.c.citerLimit(e))
		}
		bp.ProcessBatch(ctx, jobs)

		for i, job := range jobs {
			cr.finishEntry(ctx, entries[i], job)
		}
		cr.c.observer.FrontierSize(cr.frontier.Len())

		if cr.reason != model.StopNone {
			return
		}
		cr.sinceCheckpoint += len(entries)
		if cr.sinceCheckpoint >= cr.c.checkpointInterval {
			if err := cr.checkpoint(ctx); err != nil {
				cr.c.logger.Warn("failed to checkpoint run", "run", cr.run.ID, "error", err)
			}
		}
	}
}

// nextBatch pops up to workers entries to expand. Entries too deep to
// expand are discarded on the way.
func (cr *crawl) nextBatch(ctx context.Context) []model.FrontierEntry {
	entries := make([]model.FrontierEntry, 0, cr.c.workers)
	for len(entries) < cr.c.workers {
		e, ok := cr.frontier.Pop()
		if !ok {
			break
		}
		if _, finished := cr.done[e.PublicationID]; finished {
			continue
		}
		if e.Depth >= cr.run.MaxDepth {
			cr.run.Stats.DiscardedEntries++
			cr.c.logger.Debug("entry discarded at maximum depth",
				"publication", e.PublicationID, "depth", e.Depth, "max_depth", cr.run.MaxDepth)
			cr.markEntry(ctx, e, database.EntryDiscarded)
			continue
		}
		entries = append(entries, e)
	}
	return entries
}

// finishEntry applies the outcome of one expansion job.
func (cr *crawl) finishEntry(ctx context.Context, e model.FrontierEntry, job *pipeline.Job) {
	cr.account(job)

	if reason := stopReasonOf(job.Err); reason != model.StopNone {
		cr.frontier.Requeue(e)
		if cr.reason == model.StopNone {
			cr.reason = reason
		}
		return
	}
	if job.BudgetExhausted && job.Pages == 0 {
		cr.frontier.Requeue(e)
		return
	}

	pushed := cr.enqueue(job)

	// A listing that ended early keeps the citers it got, but the entry
	// still counts as failed.
	status := database.EntryExpanded
	switch {
	case job.CollectErr == nil && job.Err == nil:
		cr.run.Stats.ExpandedEntries++
	case job.CollectErr == nil && errors.Is(job.Err, model.ErrWriteFailed):
		cr.run.Stats.ExpandedEntries++
		cr.c.logger.Warn("entry expanded with storage failures",
			"publication", e.PublicationID, "error", job.Err)
	default:
		status = database.EntryFailed
		cr.run.Stats.FailedEntries++
		cr.c.logger.Warn("entry failed",
			"publication", e.PublicationID, "title", e.Title, "citers", len(job.Records), "error", job.Failure())
	}
	cr.markEntry(ctx, e, status)

	cr.c.logger.Info("entry expanded",
		"publication", e.PublicationID,
		"depth", e.Depth,
		"citers", len(job.Records),
		"enqueued", pushed,
		"pending", cr.frontier.Len())
}

// account adds a job's counters to the run.
func (cr *crawl) account(job *pipeline.Job) {
	cr.run.Stats.Add(job.Stats)
	cr.run.Fetches = cr.budget.Used()
	cr.c.observer.JobFinished(job.Stats)
}

// enqueue pushes the expandable publications a job discovered.
func (cr *crawl) enqueue(job *pipeline.Job) int {
	pushed := 0
	for _, d := range job.Discovered {
		p := d.Publication
		if p.CitedByRef == "" {
			continue
		}
		if _, finished := cr.done[p.ID]; finished {
			continue
		}
		e := model.FrontierEntry{
			PublicationID: p.ID,
			CitedByRef:    p.CitedByRef,
			Title:         p.Title,
			CitationCount: p.CitationCount,
			Depth:         job.Depth,
		}
		if cr.frontier.Push(e) {
			pushed++
		}
	}
	cr.c.observer.FrontierSize(cr.frontier.Len())
	return pushed
}

func (cr *crawl) markEntry(ctx context.Context, e model.FrontierEntry, status string) {
	cr.done[e.PublicationID] = status
	cr.c.observer.EntryFinished(status)
	if err := cr.c.db.MarkEntry(context.WithoutCancel(ctx), cr.run.ID, e.PublicationID, status, e.Depth); err != nil {
		cr.run.Stats.StorageFailures++
		cr.c.logger.Warn("failed to record entry", "publication", e.PublicationID, "error", err)
	}
}

// finish moves the run to its terminal state and stores it with the frontier.
func (cr *crawl) finish(ctx context.Context) (*database.CrawlRun, error) {
	cr.run.StopReason = cr.reason
	cr.c.observer.Stopped(cr.reason)

	if cr.reason.Suspends() {
		cr.c.logger.Warn("crawl suspended",
			"run", cr.run.ID,
			"reason", cr.reason.String(),
			"pending", cr.frontier.Len())
		return cr.run, cr.transition(ctx, model.StateSuspended)
	}

	if err := cr.transition(ctx, model.StateDraining); err != nil {
		return cr.run, err
	}
	if err := cr.transition(ctx, model.StateFinished); err != nil {
		return cr.run, err
	}
	cr.c.logger.Info("crawl finished",
		"run", cr.run.ID,
		"reason", cr.reason.String(),
		"fetches", cr.run.Fetches,
		"publications", cr.run.Stats.NewPublications,
		"edges", cr.run.Stats.Edges)
	return cr.run, nil
}

// stopReasonOf maps job errors that stop the whole run to a reason.
func stopReasonOf(err error) model.StopReason {
	switch {
	case err == nil:
		return model.StopNone
	case errors.Is(err, model.ErrBlocked):
		return model.StopBlocked
	case errors.Is(err, model.ErrUnrecognizedPage):
		return model.StopUnrecognizedPage
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return model.StopCancelled
	default:
		return model.StopNone
	}
}
