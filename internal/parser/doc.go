// Package parser turns raw result pages into publication records.
//
// The service's markup is undocumented and drifts over time, so the parser
// is a set of independent field extractors run against each result block.
// A field that cannot be extracted is left absent; only a page whose overall
// structure is not a result listing fails as a whole, with a
// *model.ParseError. An empty listing is a valid page with zero records.
//
// Numeric fields are read with locale-tolerant digit extraction. Text with
// no digits yields an absent value, never zero.
package parser
