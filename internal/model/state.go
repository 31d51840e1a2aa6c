package model

// State is a crawl controller state.
type State int

const (
	// StateIdle is the state before a run starts.
	StateIdle State = iota
	// StateSeeding runs the seed queries.
	StateSeeding
	// StateExpanding pops frontier entries and fetches their citing works.
	StateExpanding
	// StateDraining persists the remaining run state.
	StateDraining
	// StateFinished is the successful terminal state.
	StateFinished
	// StateSuspended keeps the frontier so the run can be resumed.
	StateSuspended
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSeeding:
		return "seeding"
	case StateExpanding:
		return "expanding"
	case StateDraining:
		return "draining"
	case StateFinished:
		return "finished"
	case StateSuspended:
		return "suspended"
	default:
		return "unknown"
	}
}

// ParseState parses a state name as produced by String.
func ParseState(s string) State {
	for st := StateIdle; st <= StateSuspended; st++ {
		if st.String() == s {
			return st
		}
	}
	return StateIdle
}

// StopReason tells why a run left the Expanding state.
// A blocked run needs different user action than a run that reached its
// budget, so every reason is reported distinctly.
type StopReason int

const (
	// StopNone means the run has not stopped.
	StopNone StopReason = iota
	// StopCompleted means the frontier emptied.
	StopCompleted
	// StopBudgetExhausted means the total fetch budget was used up.
	StopBudgetExhausted
	// StopBlocked means the service signalled automated-access detection.
	StopBlocked
	// StopUnrecognizedPage means an interstitial or unknown page was returned.
	StopUnrecognizedPage
	// StopCancelled means the run was cancelled by the host.
	StopCancelled
)

// String returns the reason name.
func (r StopReason) String() string {
	switch r {
	case StopNone:
		return "none"
	case StopCompleted:
		return "completed"
	case StopBudgetExhausted:
		return "budget_exhausted"
	case StopBlocked:
		return "blocked"
	case StopUnrecognizedPage:
		return "unrecognized_page"
	case StopCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// ParseStopReason parses a reason name as produced by String.
func ParseStopReason(s string) StopReason {
	for r := StopNone; r <= StopCancelled; r++ {
		if r.String() == s {
			return r
		}
	}
	return StopNone
}

// Suspends reports whether the reason leaves the run Suspended rather than Finished.
func (r StopReason) Suspends() bool {
	return r == StopBlocked || r == StopUnrecognizedPage || r == StopCancelled
}

// Description returns a message suitable for end users.
func (r StopReason) Description() string {
	switch r {
	case StopCompleted:
		return "crawl completed: no publications left to expand"
	case StopBudgetExhausted:
		return "crawl budget reached: raise --budget and resume to continue"
	case StopBlocked:
		return "blocked by the search service: wait before resuming, the service has detected automated access"
	case StopUnrecognizedPage:
		return "the search service returned an unrecognized page (interstitial or CAPTCHA): check in a browser before resuming"
	case StopCancelled:
		return "crawl cancelled: resume to continue"
	default:
		return "crawl has not stopped"
	}
}

// RunStats counts what happened during a run.
type RunStats struct {
	Fetches          int `json:"fetches"`
	FailedEntries    int `json:"failed_entries"`
	DiscardedEntries int `json:"discarded_entries"`
	ExpandedEntries  int `json:"expanded_entries"`
	NewPublications  int `json:"new_publications"`
	MergedRecords    int `json:"merged_records"`
	Edges            int `json:"edges"`
	SelfLoopsSkipped int `json:"self_loops_skipped"`
	Conflicts        int `json:"conflicts"`
	StorageFailures  int `json:"storage_failures"`
	UntitledResults  int `json:"untitled_results"`
}

// Add accumulates other into s.
func (s *RunStats) Add(other RunStats) {
	s.Fetches += other.Fetches
	s.FailedEntries += other.FailedEntries
	s.DiscardedEntries += other.DiscardedEntries
	s.ExpandedEntries += other.ExpandedEntries
	s.NewPublications += other.NewPublications
	s.MergedRecords += other.MergedRecords
	s.Edges += other.Edges
	s.SelfLoopsSkipped += other.SelfLoopsSkipped
	s.Conflicts += other.Conflicts
	s.StorageFailures += other.StorageFailures
	s.UntitledResults += other.UntitledResults
}
