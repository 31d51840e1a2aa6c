// Package crawler drives a citation crawl.
//
// # Architecture
//
// The Controller owns the crawl state: an ordered frontier of publications
// whose citing works are still to be fetched, the fetch budget and the depth
// bookkeeping. It is a state machine:
//
//	Idle -> Seeding -> Expanding -> Draining -> Finished
//	                      |
//	                      +-> Suspended (blocked, unrecognized page, cancelled)
//
// Each seed query and each frontier entry is turned into a pipeline.Job and
// executed by the collect and resolve steps. The Controller only decides
// what to enqueue, what to discard and when to stop.
//
// Design decision: expansion is an explicit work queue rather than recursion
// over the citation graph. A suspended run is nothing more than its frontier
// plus the set of entries it already finished, both of which are persisted,
// so a run can be resumed from another process.
//
// # Concurrency
//
// With one worker (the default) one entry is expanded at a time. With more
// workers the Controller pops up to that many entries and runs them as a
// batch. Request dispatch stays serialized by the fetcher's rate gate and
// identity resolution by the resolver's lock.
//
// Cancellation is cooperative. It is checked between entries; an entry
// whose fetch is refused because of cancellation goes back to the frontier.
//
// # Usage
//
//	c := crawler.New(f, p, r, db, crawler.WithMaxDepth(2), crawler.WithBudget(500))
//	run, err := c.Run(ctx, crawler.Seeds{Terms: []string{"graph neural networks"}})
package crawler
