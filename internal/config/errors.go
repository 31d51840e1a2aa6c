package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and provide specific
// information about what is wrong with the configuration.
//
// Design decision: We use package-level sentinel errors rather than
// creating new error instances in Validate(). This allows callers to use
// errors.Is() for programmatic error handling while still providing
// human-readable messages.
var (
	// ErrNoSeed is returned when a crawl has neither search terms nor clusters.
	ErrNoSeed = errors.New("no seed specified: provide search terms or use --cluster")

	// ErrInvalidDepth is returned when the maximum depth is negative.
	ErrInvalidDepth = errors.New("invalid depth: must be non-negative")

	// ErrInvalidBudget is returned when the fetch budget is negative.
	// Use 0 for an unlimited budget.
	ErrInvalidBudget = errors.New("invalid budget: must be non-negative")

	// ErrInvalidSeedPages is returned when fewer than one seed page is requested.
	ErrInvalidSeedPages = errors.New("invalid seed pages: must be positive")

	// ErrInvalidMaxCiters is returned when the per-entry citer cap is negative.
	ErrInvalidMaxCiters = errors.New("invalid max citers: must be non-negative")

	// ErrInvalidPercent is returned when the citer percentage is outside [0, 100].
	ErrInvalidPercent = errors.New("invalid citers percent: must be between 0 and 100")

	// ErrInvalidWorkers is returned when the worker count is not positive.
	ErrInvalidWorkers = errors.New("invalid workers: must be positive")

	// ErrInvalidPageSize is returned when the page size is not positive.
	ErrInvalidPageSize = errors.New("invalid page size: must be positive")

	// ErrInvalidDelay is returned when the request delay is negative.
	ErrInvalidDelay = errors.New("invalid delay: must be non-negative")

	// ErrInvalidRetries is returned when the retry count is negative.
	ErrInvalidRetries = errors.New("invalid max retries: must be non-negative")

	// ErrInvalidBackoff is returned when the backoff base is negative or
	// larger than the backoff cap.
	ErrInvalidBackoff = errors.New("invalid backoff: base must be non-negative and not exceed the maximum")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidMatching is returned for negative matching thresholds.
	ErrInvalidMatching = errors.New("invalid matching thresholds: must be non-negative")

	// ErrInvalidAuthorKey is returned for an author key other than surname or full.
	ErrInvalidAuthorKey = errors.New("invalid author key: must be surname or full")

	// ErrUnknownStrategy is returned for an unknown matching strategy name.
	ErrUnknownStrategy = errors.New("unknown matching strategy: use source_id, title_author or title_year")

	// ErrNoDBPath is returned when no database path is configured.
	ErrNoDBPath = errors.New("no database path")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified. Only one output format can be used at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")
)
