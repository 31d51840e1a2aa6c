package report

import (
	"fmt"
	"io"
	"strings"
)

// SimpleWriter outputs human-readable text reports.
// This format is designed for terminal display with clear section formatting.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors so the report can be piped to files or other tools unchanged.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sections without data are shown.
	showEmpty bool

	// verbose lists every resolution conflict instead of only counting them.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the summary in human-readable format.
func (w *SimpleWriter) Write(summary *Summary) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, summary)
	w.writeStats(&sb, summary)
	w.writeOutcomes(&sb, summary)
	w.writeTopCited(&sb, summary)
	w.writeConflicts(&sb, summary)
	w.writeFooter(&sb)

	return io.WriteString(w.output, sb.String())
}

// writeSection writes a section title between rules.
func writeSection(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}

// writeHeader writes the run header and the stop message.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, s *Summary) {
	run := s.Run

	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                        CITENET CRAWL REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Run:        %s\n", run.ID)
	if len(run.Seeds) > 0 {
		fmt.Fprintf(sb, "Seeds:      %s\n", strings.Join(run.Seeds, "; "))
	}
	if len(run.Clusters) > 0 {
		fmt.Fprintf(sb, "Clusters:   %s\n", strings.Join(run.Clusters, ", "))
	}
	fmt.Fprintf(sb, "Started:    %s\n", run.StartedAt.Format("2006-01-02 15:04:05 MST"))
	if run.FinishedAt != nil {
		fmt.Fprintf(sb, "Finished:   %s\n", run.FinishedAt.Format("2006-01-02 15:04:05 MST"))
	}
	fmt.Fprintf(sb, "Max depth:  %d\n", run.MaxDepth)
	fmt.Fprintf(sb, "Budget:     %s\n", budgetText(run))
	fmt.Fprintf(sb, "State:      %s\n", stateText(s))
	sb.WriteString("\n")

	if s.Blocked() {
		fmt.Fprintf(sb, "[!!!] %s\n\n", s.Message)
	} else {
		fmt.Fprintf(sb, "%s\n\n", s.Message)
	}
}

// writeStats writes the run counters and the graph totals.
func (w *SimpleWriter) writeStats(sb *strings.Builder, s *Summary) {
	st := s.Run.Stats

	writeSection(sb, "RUN STATISTICS")
	fmt.Fprintf(sb, "  Fetches:            %d\n", st.Fetches)
	fmt.Fprintf(sb, "  Expanded entries:   %d\n", st.ExpandedEntries)
	fmt.Fprintf(sb, "  Failed entries:     %d\n", st.FailedEntries)
	fmt.Fprintf(sb, "  Discarded entries:  %d\n", st.DiscardedEntries)
	fmt.Fprintf(sb, "  New publications:   %d\n", st.NewPublications)
	fmt.Fprintf(sb, "  Merged records:     %d\n", st.MergedRecords)
	fmt.Fprintf(sb, "  Edges:              %d\n", st.Edges)
	fmt.Fprintf(sb, "  Self-loops skipped: %d\n", st.SelfLoopsSkipped)
	fmt.Fprintf(sb, "  Conflicts:          %d\n", st.Conflicts)
	fmt.Fprintf(sb, "  Storage failures:   %d\n", st.StorageFailures)
	fmt.Fprintf(sb, "  Untitled results:   %d\n", st.UntitledResults)
	sb.WriteString("\n")

	writeSection(sb, "GRAPH")
	fmt.Fprintf(sb, "  Publications:       %d\n", s.Graph.Publications)
	fmt.Fprintf(sb, "  Citation edges:     %d\n", s.Graph.Edges)
	fmt.Fprintf(sb, "  Discrepancies:      %d\n", s.Graph.Discrepancies)
	fmt.Fprintf(sb, "  Conflicts:          %d\n", s.Graph.Conflicts)
	sb.WriteString("\n")
}

// writeOutcomes writes the fetch log counts.
func (w *SimpleWriter) writeOutcomes(sb *strings.Builder, s *Summary) {
	if len(s.FetchOutcomes) == 0 && !w.showEmpty {
		return
	}

	writeSection(sb, "FETCH OUTCOMES")
	if len(s.FetchOutcomes) == 0 {
		sb.WriteString("  No fetches recorded\n\n")
		return
	}
	for _, name := range s.outcomeNames() {
		fmt.Fprintf(sb, "  %-19s %d\n", name+":", s.FetchOutcomes[name])
	}
	sb.WriteString("\n")
}

// writeTopCited writes the most cited publications.
func (w *SimpleWriter) writeTopCited(sb *strings.Builder, s *Summary) {
	if len(s.TopCited) == 0 && !w.showEmpty {
		return
	}

	writeSection(sb, "TOP CITED")
	if len(s.TopCited) == 0 {
		sb.WriteString("  No publications stored\n\n")
		return
	}
	for i, cp := range s.TopCited {
		fmt.Fprintf(sb, "  %2d. [%d in graph, %s reported] %s\n",
			i+1, cp.InDegree, citationCount(cp.Publication), citation(cp.Publication))
	}
	sb.WriteString("\n")
}

// writeConflicts writes the resolution conflicts, listing them when verbose.
func (w *SimpleWriter) writeConflicts(sb *strings.Builder, s *Summary) {
	if len(s.Conflicts) == 0 && !w.showEmpty {
		return
	}

	writeSection(sb, "RESOLUTION CONFLICTS")
	fmt.Fprintf(sb, "  %d record(s) matched more than one publication; the lowest id was kept.\n", len(s.Conflicts))
	if w.verbose {
		for _, c := range s.Conflicts {
			fmt.Fprintf(sb, "  * %q -> %d (candidates %v, %s)\n", c.ObservedTitle, c.ChosenID, c.Candidates, c.Strategy)
		}
	}
	sb.WriteString("\n")
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by citenet\n")
	sb.WriteString("https://github.com/nao1215/citenet\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
