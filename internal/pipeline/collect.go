package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/nao1215/citenet/internal/model"
	"github.com/nao1215/citenet/internal/parser"
)

// Fetcher fetches one result page.
type Fetcher interface {
	Fetch(ctx context.Context, q model.QueryDescriptor) (*model.RawResultPage, error)
}

// Parser parses one result page.
type Parser interface {
	Parse(page *model.RawResultPage) (*parser.Result, error)
}

// Budget hands out fetch permits for the whole run.
type Budget interface {
	TryAcquire() bool
}

// CollectStep fetches and parses the pages of a job's listing.
type CollectStep struct {
	fetcher Fetcher
	parser  Parser
	budget  Budget
	logger  *slog.Logger
}

// NewCollectStep creates a CollectStep.
func NewCollectStep(f Fetcher, p Parser, b Budget, logger *slog.Logger) *CollectStep {
	if logger == nil {
		logger = slog.Default()
	}
	if b == nil {
		b = unlimited{}
	}
	return &CollectStep{fetcher: f, parser: p, budget: b, logger: logger}
}

// Name returns the step name.
func (s *CollectStep) Name() string {
	return "collect"
}

// Do requests pages until the listing, the cap or the budget ends.
// A NotFound listing is an empty result. Blocked, unrecognized pages and
// cancellation are returned and stop the pipeline. Any other failure ends the
// listing early: it is stored in job.CollectErr and the records collected so
// far are still resolved.
func (s *CollectStep) Do(ctx context.Context, job *Job) error {
	q := job.Query
	for {
		if job.MaxPages > 0 && job.Pages >= job.MaxPages {
			return nil
		}
		if job.Limit > 0 && len(job.Records) >= job.Limit {
			return nil
		}
		if !s.budget.TryAcquire() {
			job.BudgetExhausted = true
			return nil
		}

		job.Pages++
		job.Stats.Fetches++
		page, err := s.fetcher.Fetch(ctx, q)
		if err != nil {
			if errors.Is(err, model.ErrNotFound) {
				s.logger.Debug("listing not found", "query", q.String())
				return nil
			}
			return s.fail(job, q, err)
		}

		result, err := s.parser.Parse(page)
		if err != nil {
			return s.fail(job, q, err)
		}

		job.Stats.UntitledResults += result.Skipped
		records := result.Records
		if job.Limit > 0 {
			records = records[:min(len(records), job.Limit-len(job.Records))]
		}
		job.Records = append(job.Records, records...)

		if result.NextCursor == nil || len(result.Records) == 0 {
			return nil
		}
		q = q.WithCursor(*result.NextCursor)
	}
}

// fail returns err when it stops the run and otherwise keeps it on the job.
func (s *CollectStep) fail(job *Job, q model.QueryDescriptor, err error) error {
	if systemic(err) {
		return err
	}
	s.logger.Warn("listing ended early",
		"query", q.String(),
		"records", len(job.Records),
		"error", err)
	job.CollectErr = err
	return nil
}

// systemic reports whether err concerns the whole run rather than one listing.
func systemic(err error) bool {
	return errors.Is(err, model.ErrBlocked) ||
		errors.Is(err, model.ErrUnrecognizedPage) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

type unlimited struct{}

func (unlimited) TryAcquire() bool { return true }
