package pipeline

import (
	"errors"

	"github.com/nao1215/citenet/internal/model"
	"github.com/nao1215/citenet/internal/resolver"
)

// Job is the unit of work of one seed query or one frontier expansion.
type Job struct {
	// Query is the first page to request.
	Query model.QueryDescriptor

	// Depth is the depth assigned to publications discovered by this job.
	Depth int

	// Cited is the frontier entry being expanded, nil for seed queries.
	// Every record discovered by an expansion cites Cited.PublicationID.
	Cited *model.FrontierEntry

	// Limit caps how many records are consumed. Zero means no cap.
	Limit int

	// MaxPages caps how many pages are requested. Zero means no cap.
	MaxPages int

	// Records are the records collected so far.
	Records []model.RawRecord

	// Pages is the number of pages fetched.
	Pages int

	// BudgetExhausted reports that collection stopped on the fetch budget.
	BudgetExhausted bool

	// Discovered are the persisted publications, in record order.
	Discovered []Discovery

	// Stats counts what the job changed.
	Stats model.RunStats

	// CollectErr is the failure that ended the listing early. The records
	// collected before it are still resolved.
	CollectErr error

	// Err is the error that stopped the pipeline, if any.
	Err error

	// PerformedSteps lists the steps that ran.
	PerformedSteps []string
}

// Discovery is one resolved and persisted record.
type Discovery struct {
	Publication model.Publication
	Decision    resolver.Decision
}

// NewSeedJob returns a job for a seed query.
func NewSeedJob(q model.QueryDescriptor, maxPages int) *Job {
	return &Job{Query: q, Depth: 0, MaxPages: maxPages}
}

// NewExpansionJob returns a job listing the works citing entry.
func NewExpansionJob(entry model.FrontierEntry, limit int) *Job {
	e := entry
	return &Job{
		Query: model.QueryDescriptor{Kind: model.QueryCitations, Ref: entry.CitedByRef},
		Depth: entry.Depth + 1,
		Cited: &e,
		Limit: limit,
	}
}

// Failure returns every error of the job, or nil.
func (j *Job) Failure() error {
	return errors.Join(j.CollectErr, j.Err)
}

// Label names the job in logs.
func (j *Job) Label() string {
	if j.Cited != nil {
		return j.Cited.Title
	}
	return j.Query.String()
}
