package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/citenet/internal/model"
	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
)

// MarkdownWriter outputs summaries in Markdown format.
// This format is designed for documentation and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides type-safe tables, GitHub-flavored alerts and
// mermaid charts.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the summary in Markdown format.
func (w *MarkdownWriter) Write(summary *Summary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, summary)
	w.writeStats(md, summary)
	w.writeOutcomes(md, summary)
	w.writeTopCited(md, summary)
	w.writeConflicts(md, summary)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the run table and an alert for the stop reason.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, s *Summary) {
	run := s.Run

	md.H1("Citenet Crawl Report")
	md.PlainText("")

	rows := [][]string{
		{"Run", "`" + run.ID + "`"},
	}
	if len(run.Seeds) > 0 {
		rows = append(rows, []string{"Seeds", strings.Join(run.Seeds, "; ")})
	}
	if len(run.Clusters) > 0 {
		rows = append(rows, []string{"Clusters", strings.Join(run.Clusters, ", ")})
	}
	rows = append(rows,
		[]string{"Started", run.StartedAt.Format("2006-01-02 15:04:05 MST")},
		[]string{"Max Depth", strconv.Itoa(run.MaxDepth)},
		[]string{"Budget", budgetText(run)},
		[]string{"State", stateText(s)},
	)

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")

	w.writeAlert(md, s)
}

// writeAlert writes an alert matching the stop reason.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, s *Summary) {
	switch s.Run.StopReason {
	case model.StopBlocked, model.StopUnrecognizedPage:
		md.Cautionf("%s", s.Message)
	case model.StopCancelled:
		md.Warningf("%s", s.Message)
	case model.StopBudgetExhausted:
		md.Importantf("%s", s.Message)
	case model.StopCompleted:
		md.Tip(s.Message)
	default:
		md.Note(s.Message)
	}
	md.PlainText("")
}

// writeStats writes the run counters and the graph totals.
func (w *MarkdownWriter) writeStats(md *markdown.Markdown, s *Summary) {
	st := s.Run.Stats

	md.H2("Run Statistics")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Counter", "Value"},
		Rows: [][]string{
			{"Fetches", strconv.Itoa(st.Fetches)},
			{"Expanded entries", strconv.Itoa(st.ExpandedEntries)},
			{"Failed entries", strconv.Itoa(st.FailedEntries)},
			{"Discarded entries", strconv.Itoa(st.DiscardedEntries)},
			{"New publications", strconv.Itoa(st.NewPublications)},
			{"Merged records", strconv.Itoa(st.MergedRecords)},
			{"Edges", strconv.Itoa(st.Edges)},
			{"Self-loops skipped", strconv.Itoa(st.SelfLoopsSkipped)},
			{"Conflicts", strconv.Itoa(st.Conflicts)},
			{"Storage failures", strconv.Itoa(st.StorageFailures)},
			{"Untitled results", strconv.Itoa(st.UntitledResults)},
		},
	})
	md.PlainText("")

	md.H2("Graph")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Publications", "Citation Edges", "Discrepancies", "Conflicts"},
		Rows: [][]string{{
			strconv.Itoa(s.Graph.Publications),
			strconv.Itoa(s.Graph.Edges),
			strconv.Itoa(s.Graph.Discrepancies),
			strconv.Itoa(s.Graph.Conflicts),
		}},
	})
	md.PlainText("")
}

// writeOutcomes writes the fetch outcome table and its pie chart.
func (w *MarkdownWriter) writeOutcomes(md *markdown.Markdown, s *Summary) {
	md.H2("Fetch Outcomes")
	md.PlainText("")

	if len(s.FetchOutcomes) == 0 {
		md.PlainText("No fetches recorded.")
		md.PlainText("")
		return
	}

	names := s.outcomeNames()
	rows := make([][]string, len(names))
	for i, name := range names {
		rows[i] = []string{name, strconv.Itoa(s.FetchOutcomes[name])}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Outcome", "Count"},
		Rows:   rows,
	})
	md.PlainText("")

	w.writePieChart(md, s, names)
}

// writePieChart writes a mermaid pie chart of the fetch outcomes.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, s *Summary, names []string) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Fetch Outcomes"),
		piechart.WithShowData(true),
	)
	for _, name := range names {
		if n := s.FetchOutcomes[name]; n > 0 {
			chart.LabelAndIntValue(name, uint64(n))
		}
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeTopCited writes the most cited publications.
func (w *MarkdownWriter) writeTopCited(md *markdown.Markdown, s *Summary) {
	md.H2("Top Cited")
	md.PlainText("")

	if len(s.TopCited) == 0 {
		md.PlainText("No publications stored.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(s.TopCited))
	for i, cp := range s.TopCited {
		year := "-"
		if cp.Year != nil {
			year = strconv.Itoa(*cp.Year)
		}
		rows[i] = []string{
			strconv.Itoa(i + 1),
			truncateString(cp.Title, 80),
			year,
			strconv.Itoa(cp.InDegree),
			citationCount(cp.Publication),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"#", "Title", "Year", "Cited In Graph", "Reported Citations"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeConflicts writes the resolution conflicts as collapsible details.
func (w *MarkdownWriter) writeConflicts(md *markdown.Markdown, s *Summary) {
	if len(s.Conflicts) == 0 {
		return
	}

	md.H2("Resolution Conflicts")
	md.PlainText("")
	md.PlainTextf("%d record(s) matched more than one publication; the lowest id was kept.", len(s.Conflicts))
	md.PlainText("")
	for _, c := range s.Conflicts {
		md.Details(
			truncateString(c.ObservedTitle, 60),
			fmt.Sprintf("kept %d of %v (%s)", c.ChosenID, c.Candidates, c.Strategy),
		)
	}
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [citenet](https://github.com/nao1215/citenet)*")
}
