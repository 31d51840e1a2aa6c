// Package metrics exposes crawl progress as Prometheus metrics.
//
// A Metrics value owns its own registry so several crawls in one process
// (and parallel tests) never share counters. It implements both
// crawler.Observer and fetcher.Recorder, and Handler serves the registry
// in the Prometheus text format.
package metrics
