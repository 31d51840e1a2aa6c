package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// BatchProcessor runs several jobs concurrently, each through a fresh pipeline.
//
// Design decision: We use errgroup.SetLimit rather than a worker pool
// because it's simpler and errgroup handles the concurrency correctly.
// Request dispatch stays serialized by the fetcher's shared rate gate; only
// waiting for responses and parsing overlap.
type BatchProcessor struct {
	pipelineFactory func() *Pipeline
	concurrency     int
	logger          *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent jobs.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
func NewBatchProcessor(pipelineFactory func() *Pipeline, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		concurrency:     1,
	}
	for _, opt := range opts {
		opt(bp)
	}
	if bp.logger == nil {
		bp.logger = slog.Default()
	}
	return bp
}

// Concurrency returns the configured limit.
func (bp *BatchProcessor) Concurrency() int {
	return bp.concurrency
}

// ProcessBatch executes every job and waits for all of them.
// Job failures are recorded in job.Err and never cancel sibling jobs:
// each job runs to completion so no fetch is aborted mid-flight.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, jobs []*Job) {
	startTime := time.Now()

	var g errgroup.Group
	g.SetLimit(bp.concurrency)

	for _, job := range jobs {
		g.Go(func() error {
			_ = bp.pipelineFactory().Execute(ctx, job) //nolint:errcheck // error is stored in job.Err
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // goroutines never return errors

	bp.logger.Debug("batch complete",
		"jobs", len(jobs),
		"concurrency", bp.concurrency,
		"elapsed", time.Since(startTime),
	)
}
