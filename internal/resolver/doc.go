// Package resolver decides which canonical publication a parsed record denotes.
//
// Matching strategies run in order until one yields a match:
//
//  1. source_id: exact match on the service's identifier.
//  2. title_author: normalized title and normalized first author.
//  3. title_year: normalized title and publication year, used only when one
//     side has no authors.
//
// When a record matches several identities under strategy 2 or 3, the lowest
// id wins and the event is reported as a model.Conflict. No match mints a new
// id one above the largest known id.
//
// Resolve is a pure lookup. Apply holds the index lock across resolution,
// persistence and registration so concurrent workers resolving the same work
// cannot mint two ids for it.
package resolver
