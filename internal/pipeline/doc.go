// Package pipeline executes the per-query work of a crawl as a sequence of steps.
//
// Every seed query and every frontier expansion is a Job run through the same
// pipeline:
//
//  1. CollectStep fetches and parses result pages until the listing ends,
//     the per-entry citer cap is reached, or the fetch budget runs out.
//  2. ResolveStep resolves each collected record to its canonical identity
//     and persists it with its citation edge as one atomic step.
//
// Design decision: We keep the step pattern so that collection and
// persistence fail independently. A systemic failure (block, unrecognized
// page) stops the job before anything is persisted, while a storage failure
// on one record leaves the other records of the page intact.
//
// BatchProcessor runs several jobs concurrently with a bounded errgroup for
// the crawler's parallel mode.
package pipeline
