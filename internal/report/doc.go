// Package report renders crawl run summaries.
//
// This package contains writers for different output formats:
//   - SimpleWriter: Human-readable text output for terminal display
//   - JSONWriter: Structured JSON output for tool integration
//   - MarkdownWriter: Markdown with tables and a mermaid chart of fetch outcomes
//
// A Summary is assembled from the graph store with Build and then handed to
// a Writer. The summary always names the run's stop reason, because a run
// blocked by the search service needs different user action than a run that
// spent its budget.
//
// Design decision: We separate report writing from the data gathering in
// Build to follow the single responsibility principle. This allows adding
// new output formats without touching the store queries.
package report
