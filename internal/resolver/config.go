package resolver

// Strategy names as reported in decisions and conflicts.
const (
	StrategySourceID    = "source_id"
	StrategyTitleAuthor = "title_author"
	StrategyTitleYear   = "title_year"
	StrategyNew         = "new"
)

// Author key modes.
const (
	AuthorKeySurname = "surname"
	AuthorKeyFull    = "full"
)

// Config holds the matching thresholds.
type Config struct {
	// MinTitleLength is the minimum number of runes of a normalized title for
	// the title based strategies. Shorter titles ("Introduction") never match.
	MinTitleLength int

	// YearTolerance is the largest year difference accepted by title_year.
	YearTolerance int

	// AuthorKey selects how the first author is compared: the surname only
	// or the whole normalized name.
	AuthorKey string

	// EnableSourceID, EnableTitleAuthor and EnableTitleYear switch the
	// individual strategies.
	EnableSourceID    bool
	EnableTitleAuthor bool
	EnableTitleYear   bool
}

// DefaultConfig returns the default thresholds with every strategy enabled.
func DefaultConfig() Config {
	return Config{
		MinTitleLength:    8,
		YearTolerance:     0,
		AuthorKey:         AuthorKeySurname,
		EnableSourceID:    true,
		EnableTitleAuthor: true,
		EnableTitleYear:   true,
	}
}
