package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// ErrDatabaseNotFound is returned by Open when the file is missing and
// CreateIfNotExists is false.
var ErrDatabaseNotFound = errors.New("database not found")

// GraphDB is the SQLite-backed graph store.
// It is safe for concurrent use; writes are serialized on one connection.
type GraphDB struct {
	db     *sql.DB
	dbPath string

	// now is replaceable in tests.
	now func() time.Time
}

// Options configures GraphDB behavior.
type Options struct {
	// CreateIfNotExists creates the directory and database file when missing.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging so analysis tools can read while
	// a crawl writes.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the graph store at dbPath.
func Open(dbPath string, opts Options) (*GraphDB, error) {
	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("%w at %s", ErrDatabaseNotFound, dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// mode=rw refuses to create a file; foreign keys are off by default in SQLite.
	mode := "rw"
	if opts.CreateIfNotExists {
		mode = "rwc"
	}
	dsn := dbPath + "?mode=" + mode + "&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	g := &GraphDB{
		db:     db,
		dbPath: dbPath,
		now:    func() time.Time { return time.Now().UTC() },
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := g.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return g, nil
}

// Path returns the database file path.
func (g *GraphDB) Path() string {
	return g.dbPath
}

// Close closes the database connection.
func (g *GraphDB) Close() error {
	return g.db.Close()
}

// createTables creates the schema if it doesn't exist.
func (g *GraphDB) createTables() error {
	schema := `
	-- Publications are the graph's nodes, keyed by canonical id.
	CREATE TABLE IF NOT EXISTS publications (
		id INTEGER PRIMARY KEY,
		title TEXT NOT NULL,
		authors TEXT NOT NULL DEFAULT '[]',
		year INTEGER,
		venue TEXT,
		citation_count INTEGER CHECK (citation_count IS NULL OR citation_count >= 0),
		source_id TEXT,
		cited_by_ref TEXT,
		related_ref TEXT,
		depth INTEGER NOT NULL DEFAULT 0,
		first_seen TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_publications_source ON publications(source_id);

	-- Citation edges: citing_id cites cited_id.
	CREATE TABLE IF NOT EXISTS citation_edges (
		citing_id INTEGER NOT NULL REFERENCES publications(id),
		cited_id INTEGER NOT NULL REFERENCES publications(id),
		first_observed TEXT NOT NULL,
		PRIMARY KEY (citing_id, cited_id),
		CHECK (citing_id != cited_id)
	);

	CREATE INDEX IF NOT EXISTS idx_edges_cited ON citation_edges(cited_id);

	-- Observations that conflicted with a stored value and were not applied.
	CREATE TABLE IF NOT EXISTS discrepancies (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		publication_id INTEGER NOT NULL REFERENCES publications(id),
		field TEXT NOT NULL,
		stored_value TEXT NOT NULL,
		observed_value TEXT NOT NULL,
		recorded_at TEXT NOT NULL,
		UNIQUE (publication_id, field, observed_value)
	);

	-- Ambiguous identity matches resolved to the lowest id.
	CREATE TABLE IF NOT EXISTS resolution_conflicts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		chosen_id INTEGER NOT NULL REFERENCES publications(id),
		candidates TEXT NOT NULL,
		strategy TEXT NOT NULL,
		observed_title TEXT NOT NULL,
		recorded_at TEXT NOT NULL,
		UNIQUE (chosen_id, candidates, strategy, observed_title)
	);

	-- One row per crawl run.
	CREATE TABLE IF NOT EXISTS crawl_runs (
		id TEXT PRIMARY KEY,
		seeds TEXT NOT NULL DEFAULT '[]',
		clusters TEXT NOT NULL DEFAULT '[]',
		max_depth INTEGER NOT NULL,
		budget INTEGER NOT NULL,
		seeds_done INTEGER NOT NULL DEFAULT 0,
		state TEXT NOT NULL,
		stop_reason TEXT NOT NULL DEFAULT 'none',
		fetches INTEGER NOT NULL DEFAULT 0,
		stats TEXT NOT NULL DEFAULT '{}',
		started_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		finished_at TEXT
	);

	-- Pending frontier of a suspended or drained run.
	CREATE TABLE IF NOT EXISTS frontier_entries (
		run_id TEXT NOT NULL REFERENCES crawl_runs(id) ON DELETE CASCADE,
		publication_id INTEGER NOT NULL REFERENCES publications(id),
		cited_by_ref TEXT NOT NULL,
		title TEXT NOT NULL,
		citation_count INTEGER,
		depth INTEGER NOT NULL,
		seq INTEGER NOT NULL,
		PRIMARY KEY (run_id, publication_id)
	);

	-- Entries a run has finished with: expanded, failed or discarded.
	CREATE TABLE IF NOT EXISTS run_entries (
		run_id TEXT NOT NULL REFERENCES crawl_runs(id) ON DELETE CASCADE,
		publication_id INTEGER NOT NULL REFERENCES publications(id),
		status TEXT NOT NULL,
		depth INTEGER NOT NULL,
		recorded_at TEXT NOT NULL,
		PRIMARY KEY (run_id, publication_id)
	);

	-- Audit log of every finished fetch.
	CREATE TABLE IF NOT EXISTS fetch_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		query TEXT NOT NULL,
		url TEXT NOT NULL,
		outcome TEXT NOT NULL,
		status_code INTEGER,
		attempts INTEGER NOT NULL,
		page_hash TEXT,
		duration_ms INTEGER NOT NULL,
		fetched_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_fetch_log_run ON fetch_log(run_id);
	`

	_, err := g.db.ExecContext(context.Background(), schema)
	return err
}

// timestampFormats contains the timestamp formats that may be stored.
// The order matters: more specific formats come first.
var timestampFormats = []string{
	timestampLayout,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999",
	"2006-01-02 15:04:05",
}

// timestampLayout has a fixed width so stored timestamps sort as text.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

// formatTimestamp is the inverse of parseTimestamp.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// parseTimestamp parses a stored timestamp, returning zero time on failure.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// nullInt converts an optional int for storage.
func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

// intFromNull converts a stored optional int back.
func intFromNull(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

// nullString stores "" as NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
