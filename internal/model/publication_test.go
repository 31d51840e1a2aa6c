package model

import (
	"errors"
	"fmt"
	"testing"
)

func TestMerge(t *testing.T) {
	t.Parallel()

	t.Run("absent fields are filled from the observation", func(t *testing.T) {
		t.Parallel()

		stored := Publication{ID: 7, Title: "Deep Learning", Depth: 1}
		observed := Publication{
			Title:         "Deep learning",
			Authors:       []string{"Y LeCun", "Y Bengio"},
			Year:          IntPtr(2015),
			Venue:         "Nature",
			CitationCount: IntPtr(0),
			SourceID:      "abc",
			Depth:         2,
		}

		merged, diffs := Merge(stored, observed)
		if len(diffs) != 0 {
			t.Fatalf("expected no discrepancies, got %v", diffs)
		}
		if merged.ID != 7 {
			t.Errorf("ID = %d, want 7", merged.ID)
		}
		if merged.Title != "Deep Learning" {
			t.Errorf("Title = %q, want stored title", merged.Title)
		}
		if merged.Year == nil || *merged.Year != 2015 {
			t.Errorf("Year = %v, want 2015", merged.Year)
		}
		if merged.CitationCount == nil || *merged.CitationCount != 0 {
			t.Errorf("CitationCount = %v, want present zero", merged.CitationCount)
		}
		if merged.Venue != "Nature" || merged.SourceID != "abc" {
			t.Errorf("unexpected venue/source id: %q %q", merged.Venue, merged.SourceID)
		}
		if len(merged.Authors) != 2 {
			t.Errorf("Authors = %v", merged.Authors)
		}
		if merged.Depth != 1 {
			t.Errorf("Depth = %d, want minimum 1", merged.Depth)
		}
	})

	t.Run("conflicting values keep the stored value", func(t *testing.T) {
		t.Parallel()

		stored := Publication{ID: 3, Title: "A", Year: IntPtr(2001), Venue: "X", Depth: 2}
		observed := Publication{Title: "A", Year: IntPtr(2002), Venue: "Y", Depth: 0}

		merged, diffs := Merge(stored, observed)
		if *merged.Year != 2001 || merged.Venue != "X" {
			t.Errorf("stored values were overwritten: %+v", merged)
		}
		if merged.Depth != 0 {
			t.Errorf("Depth = %d, want 0", merged.Depth)
		}
		if len(diffs) != 2 {
			t.Fatalf("expected 2 discrepancies, got %d", len(diffs))
		}
		if diffs[0].Field != "year" || diffs[0].Stored != "2001" || diffs[0].Observed != "2002" {
			t.Errorf("unexpected discrepancy: %+v", diffs[0])
		}
		if diffs[1].Field != "venue" || diffs[1].PublicationID != 3 {
			t.Errorf("unexpected discrepancy: %+v", diffs[1])
		}
	})

	t.Run("absent observation never clears stored values", func(t *testing.T) {
		t.Parallel()

		stored := Publication{ID: 1, Title: "T", CitationCount: IntPtr(12)}
		merged, diffs := Merge(stored, Publication{Title: "T"})
		if len(diffs) != 0 {
			t.Errorf("unexpected discrepancies: %v", diffs)
		}
		if merged.CitationCount == nil || *merged.CitationCount != 12 {
			t.Errorf("CitationCount = %v, want 12", merged.CitationCount)
		}
	})

	t.Run("merge does not alias observed slices", func(t *testing.T) {
		t.Parallel()

		observed := Publication{Title: "T", Authors: []string{"A"}}
		merged, _ := Merge(Publication{ID: 1, Title: "T"}, observed)
		observed.Authors[0] = "changed"
		if merged.Authors[0] != "A" {
			t.Errorf("merged authors alias observed slice")
		}
	})
}

func TestRawRecordPublication(t *testing.T) {
	t.Parallel()

	rec := RawRecord{Title: "  Graph Theory ", Authors: []string{"F Harary"}, Year: IntPtr(1969)}
	pub := rec.Publication(2)
	if pub.Title != "Graph Theory" {
		t.Errorf("Title = %q", pub.Title)
	}
	if pub.Depth != 2 {
		t.Errorf("Depth = %d, want 2", pub.Depth)
	}
	*rec.Year = 1970
	if *pub.Year != 1969 {
		t.Errorf("publication year aliases raw record")
	}
	if pub.CitationCount != nil {
		t.Errorf("absent citation count became %d", *pub.CitationCount)
	}
}

func TestCitationEdgeIsSelfLoop(t *testing.T) {
	t.Parallel()

	if !(CitationEdge{CitingID: 4, CitedID: 4}).IsSelfLoop() {
		t.Error("expected self loop")
	}
	if (CitationEdge{CitingID: 4, CitedID: 5}).IsSelfLoop() {
		t.Error("unexpected self loop")
	}
}

func TestNormalizeText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "case and punctuation", in: "Deep Learning: A Review.", want: "deep learning a review"},
		{name: "accents", in: "Café Müller", want: "cafe muller"},
		{name: "whitespace", in: "  graph\t\ntheory  ", want: "graph theory"},
		{name: "sharp s folds", in: "Straße", want: "strasse"},
		{name: "symbols", in: "A + B = C", want: "a b c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := NormalizeText(tt.in); got != tt.want {
				t.Errorf("NormalizeText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRawResultPageComputeHash(t *testing.T) {
	t.Parallel()

	a := RawResultPage{Body: []byte("<html></html>")}
	b := RawResultPage{Body: []byte("<html></html>")}
	c := RawResultPage{Body: []byte("<html> </html>")}
	a.ComputeHash()
	b.ComputeHash()
	c.ComputeHash()

	if a.Hash == "" || len(a.Hash) != 64 {
		t.Fatalf("unexpected hash %q", a.Hash)
	}
	if a.Hash != b.Hash {
		t.Error("equal bodies produced different hashes")
	}
	if a.Hash == c.Hash {
		t.Error("different bodies produced the same hash")
	}

	empty := RawResultPage{}
	empty.ComputeHash()
	if empty.Hash != "" {
		t.Errorf("empty body hash = %q", empty.Hash)
	}
}

func TestQueryDescriptor(t *testing.T) {
	t.Parallel()

	q := QueryDescriptor{Kind: QueryCitations, Ref: "123"}
	next := q.WithCursor(10)
	if q.Cursor != 0 || next.Cursor != 10 {
		t.Errorf("WithCursor modified the receiver")
	}
	if got := next.String(); got != "citations(123)@10" {
		t.Errorf("String() = %q", got)
	}
	if got := (QueryDescriptor{Kind: QuerySearch, Terms: "x"}).String(); got != `search("x")@0` {
		t.Errorf("String() = %q", got)
	}
}

func TestErrorsMatchSentinels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "blocked", err: &FetchError{Kind: FetchBlocked, URL: "u"}, want: ErrBlocked},
		{name: "throttled", err: &FetchError{Kind: FetchThrottled, URL: "u"}, want: ErrThrottled},
		{name: "transient", err: &FetchError{Kind: FetchTransient, URL: "u"}, want: ErrTransient},
		{name: "not found", err: &FetchError{Kind: FetchNotFound, URL: "u"}, want: ErrNotFound},
		{name: "parse", err: &ParseError{URL: "u"}, want: ErrUnrecognizedPage},
		{name: "storage", err: &StorageError{Op: "persist", Err: errors.New("disk")}, want: ErrWriteFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			wrapped := fmt.Errorf("context: %w", tt.err)
			if !errors.Is(wrapped, tt.want) {
				t.Errorf("errors.Is(%v, %v) = false", wrapped, tt.want)
			}
		})
	}

	if errors.Is(&FetchError{Kind: FetchBlocked}, ErrTransient) {
		t.Error("blocked error matched ErrTransient")
	}

	cause := errors.New("boom")
	fe := &FetchError{Kind: FetchTransient, Err: cause}
	if !errors.Is(fe, cause) {
		t.Error("FetchError does not unwrap to its cause")
	}
}

func TestStopReason(t *testing.T) {
	t.Parallel()

	suspending := map[StopReason]bool{
		StopCompleted:        false,
		StopBudgetExhausted:  false,
		StopBlocked:          true,
		StopUnrecognizedPage: true,
		StopCancelled:        true,
	}
	for r, want := range suspending {
		if got := r.Suspends(); got != want {
			t.Errorf("%s.Suspends() = %v, want %v", r, got, want)
		}
		if ParseStopReason(r.String()) != r {
			t.Errorf("ParseStopReason(%q) did not round trip", r)
		}
	}
	if ParseState(StateSuspended.String()) != StateSuspended {
		t.Error("ParseState did not round trip")
	}
}
