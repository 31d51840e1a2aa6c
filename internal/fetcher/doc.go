// Package fetcher issues requests to the scholarly search service.
//
// The Fetcher is the only component that talks to the network. It owns the
// shared rate gate, the retry and backoff schedule, and the classification
// of failures into the kinds defined in the model package:
//
//   - Blocked: the service detected automated access. Never retried; the
//     fetcher latches and refuses every later request until Reset.
//   - Throttled: 429 and 503 responses. Retried with exponential backoff.
//   - Transient: network errors, timeouts, other server errors. Retried.
//   - NotFound: 404 and 410. Terminal; callers treat it as an empty listing.
//
// The fetcher knows nothing about publications. It turns a
// model.QueryDescriptor into a URL, fetches it and returns the raw page.
package fetcher
