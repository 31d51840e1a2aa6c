// Package model defines the core data structures shared by the citenet packages.
//
// This package contains the following main types:
//   - Publication: a deduplicated work (graph node) under its canonical id
//   - RawRecord: a publication as observed on one result page, before resolution
//   - CitationEdge: a directed "citing -> cited" relationship
//   - FrontierEntry: a publication whose citing works have not been fetched yet
//   - QueryDescriptor and RawResultPage: one request to the search service and its payload
//   - FetchError, ParseError, StorageError: the failure taxonomy
//
// Models live in their own package so the fetcher, parser, resolver, crawler and
// database packages can share them without import cycles.
//
// Optional numeric fields (year, citation count) are pointers: nil means the
// value was absent or unparseable, which is never the same as zero.
package model
