package crawler

import "errors"

var (
	// ErrNoSeeds is returned when a run is started without seed queries.
	ErrNoSeeds = errors.New("no seed queries")

	// ErrRunFinished is returned when resuming a run that already finished.
	ErrRunFinished = errors.New("crawl run already finished")
)
