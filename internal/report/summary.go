package report

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/citenet/internal/database"
	"github.com/nao1215/citenet/internal/model"
)

// DefaultTopCited is the number of most cited publications listed by default.
const DefaultTopCited = 10

// Summary is everything a report shows about one crawl run.
type Summary struct {
	// Run is the persisted run header.
	Run *database.CrawlRun `json:"run"`

	// State and StopReason are the run's state names.
	State      string `json:"state"`
	StopReason string `json:"stop_reason"`

	// Message tells the user what the stop reason means for them.
	Message string `json:"message"`

	// Graph holds the row counts of the whole stored graph.
	Graph database.Counts `json:"graph"`

	// FetchOutcomes counts the run's fetches by outcome.
	FetchOutcomes map[string]int `json:"fetch_outcomes"`

	// TopCited lists the publications with the highest stored in-degree.
	TopCited []database.CitedPublication `json:"top_cited"`

	// Conflicts are the recorded soft resolution conflicts.
	Conflicts []model.Conflict `json:"conflicts,omitempty"`

	// GeneratedAt is when the summary was built.
	GeneratedAt time.Time `json:"generated_at"`
}

// Build assembles the summary of run from db, listing up to top publications.
func Build(ctx context.Context, db *database.GraphDB, run *database.CrawlRun, top int) (*Summary, error) {
	if top <= 0 {
		top = DefaultTopCited
	}

	counts, err := db.Counts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build report: %w", err)
	}
	outcomes, err := db.FetchOutcomes(ctx, run.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to build report: %w", err)
	}
	cited, err := db.TopCited(ctx, top)
	if err != nil {
		return nil, fmt.Errorf("failed to build report: %w", err)
	}
	conflicts, err := db.Conflicts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build report: %w", err)
	}

	return &Summary{
		Run:           run,
		State:         run.State.String(),
		StopReason:    run.StopReason.String(),
		Message:       run.StopReason.Description(),
		Graph:         counts,
		FetchOutcomes: outcomes,
		TopCited:      cited,
		Conflicts:     conflicts,
		GeneratedAt:   time.Now(),
	}, nil
}

// Blocked reports whether the run stopped on a systemic refusal of the service.
func (s *Summary) Blocked() bool {
	return s.Run.StopReason == model.StopBlocked || s.Run.StopReason == model.StopUnrecognizedPage
}

// outcomeNames returns the fetch outcomes in a stable order, "ok" first.
func (s *Summary) outcomeNames() []string {
	names := slices.Sorted(maps.Keys(s.FetchOutcomes))
	if i := slices.Index(names, model.FetchOutcomeOK); i > 0 {
		names = append([]string{model.FetchOutcomeOK}, slices.Delete(names, i, i+1)...)
	}
	return names
}

// budgetText renders a run budget, where zero means no limit.
func budgetText(run *database.CrawlRun) string {
	if run.Budget <= 0 {
		return fmt.Sprintf("unlimited (used %d)", run.Fetches)
	}
	return fmt.Sprintf("%d (used %d)", run.Budget, run.Fetches)
}

// stateText renders the state together with its stop reason.
func stateText(s *Summary) string {
	if s.Run.StopReason == model.StopNone {
		return s.State
	}
	return s.State + " (" + s.StopReason + ")"
}

// citation renders a publication as "Title (Year), A, B, C et al.".
func citation(p model.Publication) string {
	var sb strings.Builder
	sb.WriteString(p.Title)
	if p.Year != nil {
		sb.WriteString(" (" + strconv.Itoa(*p.Year) + ")")
	}
	if len(p.Authors) > 0 {
		authors := p.Authors
		suffix := ""
		if len(authors) > 3 {
			authors, suffix = authors[:3], " et al."
		}
		sb.WriteString(", " + strings.Join(authors, ", ") + suffix)
	}
	return sb.String()
}

// citationCount renders the externally reported citation count.
func citationCount(p model.Publication) string {
	if p.CitationCount == nil {
		return "-"
	}
	return strconv.Itoa(*p.CitationCount)
}

// truncateString truncates a string to maxLen runes with ellipsis.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
