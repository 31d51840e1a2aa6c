// Package database provides the SQLite graph store for citenet.
//
// The GraphDB stores:
//   - publications (nodes) under their canonical ids
//   - citation edges, one row per ordered pair and never a self-loop
//   - discrepancies: conflicting observations that lost to the first value
//   - resolution conflicts: ambiguous identity matches
//   - crawl runs, their frontier and per-entry status, for resumption
//   - the fetch log
//
// The publications and citation_edges tables are the persisted format read
// by external analysis tooling.
//
// Design decision: We use SQLite (via modernc.org/sqlite) because the graph
// is a single portable file, the driver is CGO-free, and a resolve-and-persist
// step maps directly onto one transaction.
package database
