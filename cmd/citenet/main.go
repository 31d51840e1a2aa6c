// Package main provides the entry point for the citenet CLI.
//
// citenet builds a local citation graph by crawling a scholarly search
// service: it runs seed queries, then follows the "cited by" listings of
// every discovered publication breadth-first, up to a depth and a fetch
// budget, and stores publications and citation edges in SQLite.
//
// Usage:
//
//	citenet crawl "graph neural networks" --depth 2 --budget 200
//	citenet resume
//	citenet report --markdown
//	citenet export --nodes nodes.csv --edges edges.csv
//
// See --help for all available options.
package main

// main is the entry point for citenet.
func main() {
	Execute()
}
