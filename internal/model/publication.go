package model

import (
	"slices"
	"strconv"
	"strings"
	"time"
)

// Publication is a node of the citation graph.
// Exactly one Publication exists per real-world work; the resolver assigns
// the canonical ID before the record is persisted.
type Publication struct {
	// ID is the locally assigned canonical identifier. Zero means unassigned.
	ID int64 `json:"id"`

	// Title is the work's title as first observed. Required.
	Title string `json:"title"`

	// Authors is the ordered author list.
	Authors []string `json:"authors,omitempty"`

	// Year is the publication year, nil when absent.
	Year *int `json:"year,omitempty"`

	// Venue is the journal, conference or book title. Empty means absent.
	Venue string `json:"venue,omitempty"`

	// CitationCount is the citation count reported by the search service at
	// observation time, nil when absent.
	CitationCount *int `json:"citation_count,omitempty"`

	// SourceID is the best-effort unique key assigned by the search service
	// (the result cluster id). Empty means absent.
	SourceID string `json:"source_id,omitempty"`

	// CitedByRef is the reference used to request the works citing this one.
	CitedByRef string `json:"cited_by_ref,omitempty"`

	// RelatedRef is the reference of the service's "related articles" listing.
	RelatedRef string `json:"related_ref,omitempty"`

	// Depth is the smallest discovery depth observed for this work.
	Depth int `json:"depth"`

	// FirstSeen is when the work was first persisted.
	FirstSeen time.Time `json:"first_seen"`
}

// RawRecord is one publication as observed on a result page.
// Raw text fields are kept as extracted; the derived fields are filled by the
// parser where extraction succeeded and left absent otherwise.
type RawRecord struct {
	// Raw strings as they appeared on the page.
	Title         string `json:"title"`
	AuthorText    string `json:"author_text,omitempty"`
	VenueYearText string `json:"venue_year_text,omitempty"`
	CitationText  string `json:"citation_text,omitempty"`
	SourceID      string `json:"source_id,omitempty"`
	CitedByRef    string `json:"cited_by_ref,omitempty"`
	RelatedRef    string `json:"related_ref,omitempty"`

	// Derived values.
	Authors       []string `json:"authors,omitempty"`
	Venue         string   `json:"venue,omitempty"`
	Year          *int     `json:"year,omitempty"`
	CitationCount *int     `json:"citation_count,omitempty"`
}

// Publication converts the record into an unsaved Publication at the given depth.
func (r *RawRecord) Publication(depth int) Publication {
	return Publication{
		Title:         strings.TrimSpace(r.Title),
		Authors:       slices.Clone(r.Authors),
		Year:          cloneInt(r.Year),
		Venue:         r.Venue,
		CitationCount: cloneInt(r.CitationCount),
		SourceID:      r.SourceID,
		CitedByRef:    r.CitedByRef,
		RelatedRef:    r.RelatedRef,
		Depth:         depth,
	}
}

// CitationEdge is a directed relationship: Citing cites Cited.
type CitationEdge struct {
	CitingID      int64     `json:"citing_id"`
	CitedID       int64     `json:"cited_id"`
	FirstObserved time.Time `json:"first_observed"`
}

// IsSelfLoop reports whether the edge points back at its source.
func (e CitationEdge) IsSelfLoop() bool {
	return e.CitingID == e.CitedID
}

// Discrepancy records a conflicting observation that was not applied because
// the first-observed value wins.
type Discrepancy struct {
	PublicationID int64     `json:"publication_id"`
	Field         string    `json:"field"`
	Stored        string    `json:"stored"`
	Observed      string    `json:"observed"`
	RecordedAt    time.Time `json:"recorded_at"`
}

// Conflict records a soft resolution conflict: an observed record matched
// more than one canonical identity and the lowest id was chosen.
type Conflict struct {
	ChosenID      int64     `json:"chosen_id"`
	Candidates    []int64   `json:"candidates"`
	Strategy      string    `json:"strategy"`
	ObservedTitle string    `json:"observed_title"`
	RecordedAt    time.Time `json:"recorded_at"`
}

// Merge folds an observation into a stored publication.
// Absent stored fields are filled from the observation. Present stored values
// win over conflicting observed ones; each such conflict is returned as a
// Discrepancy. Depth keeps the minimum. The stored ID and FirstSeen are kept.
func Merge(stored, observed Publication) (Publication, []Discrepancy) {
	merged := stored
	var diffs []Discrepancy
	note := func(field, s, o string) {
		diffs = append(diffs, Discrepancy{
			PublicationID: stored.ID,
			Field:         field,
			Stored:        s,
			Observed:      o,
		})
	}

	if merged.Title == "" {
		merged.Title = observed.Title
	} else if observed.Title != "" && NormalizeText(merged.Title) != NormalizeText(observed.Title) {
		note("title", merged.Title, observed.Title)
	}

	if len(merged.Authors) == 0 {
		merged.Authors = slices.Clone(observed.Authors)
	} else if len(observed.Authors) > 0 && !sameAuthors(merged.Authors, observed.Authors) {
		note("authors", strings.Join(merged.Authors, "; "), strings.Join(observed.Authors, "; "))
	}

	switch {
	case merged.Year == nil:
		merged.Year = cloneInt(observed.Year)
	case observed.Year != nil && *merged.Year != *observed.Year:
		note("year", strconv.Itoa(*merged.Year), strconv.Itoa(*observed.Year))
	}

	switch {
	case merged.CitationCount == nil:
		merged.CitationCount = cloneInt(observed.CitationCount)
	case observed.CitationCount != nil && *merged.CitationCount != *observed.CitationCount:
		note("citation_count", strconv.Itoa(*merged.CitationCount), strconv.Itoa(*observed.CitationCount))
	}

	mergeString(&merged.Venue, observed.Venue, "venue", note)
	mergeString(&merged.SourceID, observed.SourceID, "source_id", note)
	mergeString(&merged.CitedByRef, observed.CitedByRef, "cited_by_ref", note)
	mergeString(&merged.RelatedRef, observed.RelatedRef, "related_ref", note)

	if observed.Depth < merged.Depth {
		merged.Depth = observed.Depth
	}

	return merged, diffs
}

func mergeString(stored *string, observed, field string, note func(field, s, o string)) {
	switch {
	case *stored == "":
		*stored = observed
	case observed != "" && *stored != observed:
		note(field, *stored, observed)
	}
}

func sameAuthors(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if NormalizeText(a[i]) != NormalizeText(b[i]) {
			return false
		}
	}
	return true
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}
