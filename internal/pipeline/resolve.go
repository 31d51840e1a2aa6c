package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/nao1215/citenet/internal/database"
	"github.com/nao1215/citenet/internal/model"
	"github.com/nao1215/citenet/internal/resolver"
)

// Store persists resolve-and-persist steps.
type Store interface {
	PersistStep(ctx context.Context, step database.Step) (database.StepResult, error)
}

// ResolveStep resolves collected records and persists them with their edge.
type ResolveStep struct {
	resolver *resolver.Resolver
	store    Store
	logger   *slog.Logger
}

// NewResolveStep creates a ResolveStep.
func NewResolveStep(r *resolver.Resolver, store Store, logger *slog.Logger) *ResolveStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResolveStep{resolver: r, store: store, logger: logger}
}

// Name returns the step name.
func (s *ResolveStep) Name() string {
	return "resolve"
}

// Do persists every record of the job. A storage failure aborts only that
// record's write; the remaining records are still persisted and the joined
// failures are returned. Once started, the step is not interrupted by
// cancellation of ctx.
func (s *ResolveStep) Do(ctx context.Context, job *Job) error {
	ctx = context.WithoutCancel(ctx)
	var errs []error
	for _, rec := range job.Records {
		var newEdges int
		d, stored, err := s.resolver.Apply(ctx, rec, job.Depth,
			func(ctx context.Context, d resolver.Decision, observed model.Publication) (model.Publication, error) {
				step := database.Step{Publication: observed, Conflict: d.Conflict}
				if job.Cited != nil {
					if d.ID == job.Cited.PublicationID {
						job.Stats.SelfLoopsSkipped++
					} else {
						step.Cites = []int64{job.Cited.PublicationID}
					}
				}
				res, err := s.store.PersistStep(ctx, step)
				if err != nil {
					return model.Publication{}, err
				}
				newEdges = res.NewEdges
				return res.Publication, nil
			})
		if err != nil {
			s.logger.Warn("failed to persist record", "title", rec.Title, "error", err)
			job.Stats.StorageFailures++
			errs = append(errs, err)
			continue
		}

		if d.IsNew {
			job.Stats.NewPublications++
		} else {
			job.Stats.MergedRecords++
		}
		if d.Conflict != nil {
			job.Stats.Conflicts++
		}
		job.Stats.Edges += newEdges
		job.Discovered = append(job.Discovered, Discovery{Publication: stored, Decision: d})
	}
	return errors.Join(errs...)
}
