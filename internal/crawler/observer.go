package crawler

import "github.com/nao1215/citenet/internal/model"

// Observer receives crawl progress, typically to export metrics.
type Observer interface {
	// StateChanged is called on every controller state transition.
	StateChanged(s model.State)

	// EntryFinished is called once per frontier entry with its final status.
	EntryFinished(status string)

	// JobFinished is called with the counters of every executed job.
	JobFinished(stats model.RunStats)

	// FrontierSize is called whenever the number of pending entries changes.
	FrontierSize(n int)

	// Stopped is called once when a run leaves the Expanding state.
	Stopped(reason model.StopReason)
}

type nopObserver struct{}

func (nopObserver) StateChanged(model.State) {}
func (nopObserver) EntryFinished(string) {}
func (nopObserver) JobFinished(model.RunStats) {}
func (nopObserver) FrontierSize(int) {}
func (nopObserver) Stopped(model.StopReason) {}
