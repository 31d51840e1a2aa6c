package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/citenet/internal/model"
)

type runKey struct{}

// ContextWithRun returns a context carrying the id of the run it serves.
func ContextWithRun(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runKey{}, runID)
}

// RunFromContext returns the run id stored by ContextWithRun.
func RunFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(runKey{}).(string)
	return id, ok && id != ""
}

// FetchLog writes fetch records of one run. It satisfies the fetcher's
// Recorder interface.
type FetchLog struct {
	g      *GraphDB
	runID  string
	logger *slog.Logger
}

// FetchLog returns a recorder bound to runID. An empty runID takes the run
// from the context of each fetch, so one recorder can serve a fetcher whose
// run is created later. Write failures are logged, not returned: the audit
// log never stops a crawl.
func (g *GraphDB) FetchLog(runID string, logger *slog.Logger) *FetchLog {
	if logger == nil {
		logger = slog.Default()
	}
	return &FetchLog{g: g, runID: runID, logger: logger}
}

// RecordFetch implements the fetcher's Recorder.
func (l *FetchLog) RecordFetch(ctx context.Context, rec model.FetchRecord) {
	runID := l.runID
	if runID == "" {
		id, ok := RunFromContext(ctx)
		if !ok {
			l.logger.Debug("fetch outside a run not logged", "url", rec.URL)
			return
		}
		runID = id
	}
	if err := l.g.InsertFetchRecord(ctx, runID, rec); err != nil {
		l.logger.Warn("failed to write fetch log", "url", rec.URL, "error", err)
	}
}

// InsertFetchRecord appends one fetch record.
func (g *GraphDB) InsertFetchRecord(ctx context.Context, runID string, rec model.FetchRecord) error {
	fetchedAt := rec.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = g.now()
	}
	_, err := g.db.ExecContext(context.WithoutCancel(ctx), `
		INSERT INTO fetch_log (run_id, query, url, outcome, status_code, attempts, page_hash, duration_ms, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, rec.Query, rec.URL, rec.Outcome, rec.StatusCode, rec.Attempts,
		nullString(rec.Hash), rec.Duration.Milliseconds(), formatTimestamp(fetchedAt))
	if err != nil {
		return fmt.Errorf("failed to insert fetch record: %w", err)
	}
	return nil
}

// FetchOutcomes counts the fetch log entries of a run by outcome.
func (g *GraphDB) FetchOutcomes(ctx context.Context, runID string) (map[string]int, error) {
	rows, err := g.db.QueryContext(ctx, `
		SELECT outcome, COUNT(*) FROM fetch_log WHERE run_id = ? GROUP BY outcome`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query fetch outcomes: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var (
			outcome string
			n       int
		)
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("failed to scan fetch outcome: %w", err)
		}
		out[outcome] = n
	}
	return out, rows.Err()
}

// FetchRecords returns the fetch log of a run in insertion order.
func (g *GraphDB) FetchRecords(ctx context.Context, runID string) ([]model.FetchRecord, error) {
	rows, err := g.db.QueryContext(ctx, `
		SELECT query, url, outcome, COALESCE(status_code, 0), attempts, COALESCE(page_hash, ''),
			duration_ms, fetched_at
		FROM fetch_log WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query fetch log: %w", err)
	}
	defer rows.Close()

	var out []model.FetchRecord
	for rows.Next() {
		var (
			rec       model.FetchRecord
			ms        int64
			fetchedAt string
		)
		if err := rows.Scan(&rec.Query, &rec.URL, &rec.Outcome, &rec.StatusCode, &rec.Attempts,
			&rec.Hash, &ms, &fetchedAt); err != nil {
			return nil, fmt.Errorf("failed to scan fetch record: %w", err)
		}
		rec.Duration = msDuration(ms)
		rec.FetchedAt = parseTimestamp(fetchedAt)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func msDuration(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
