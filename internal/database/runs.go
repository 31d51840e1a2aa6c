package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nao1215/citenet/internal/model"
)

// ErrRunNotFound is returned when no crawl run matches.
var ErrRunNotFound = errors.New("crawl run not found")

// Entry statuses recorded in run_entries.
const (
	EntryExpanded  = "expanded"
	EntryFailed    = "failed"
	EntryDiscarded = "discarded"
)

// CrawlRun is the persisted header of one crawl.
type CrawlRun struct {
	ID         string           `json:"id"`
	Seeds      []string         `json:"seeds"`
	Clusters   []string         `json:"clusters"`
	MaxDepth   int              `json:"max_depth"`
	Budget     int              `json:"budget"`
	SeedsDone  int              `json:"seeds_done"`
	State      model.State      `json:"-"`
	StopReason model.StopReason `json:"-"`
	Fetches    int              `json:"fetches"`
	Stats      model.RunStats   `json:"stats"`
	StartedAt  time.Time        `json:"started_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
	FinishedAt *time.Time       `json:"finished_at,omitempty"`
}

// CreateRun inserts a new run in the Idle state with a fresh id.
func (g *GraphDB) CreateRun(ctx context.Context, seeds, clusters []string, maxDepth, budget int) (*CrawlRun, error) {
	now := g.now()
	run := &CrawlRun{
		ID:         uuid.NewString(),
		Seeds:      nonNil(seeds),
		Clusters:   nonNil(clusters),
		MaxDepth:   maxDepth,
		Budget:     budget,
		State:      model.StateIdle,
		StopReason: model.StopNone,
		StartedAt:  now,
		UpdatedAt:  now,
	}

	seedsJSON, clustersJSON, statsJSON, err := encodeRun(run)
	if err != nil {
		return nil, err
	}
	_, err = g.db.ExecContext(ctx, `
		INSERT INTO crawl_runs (id, seeds, clusters, max_depth, budget, state, stop_reason,
			fetches, stats, started_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, seedsJSON, clustersJSON, run.MaxDepth, run.Budget, run.State.String(),
		run.StopReason.String(), run.Fetches, statsJSON, formatTimestamp(now), formatTimestamp(now))
	if err != nil {
		return nil, &model.StorageError{Op: "create run", Err: err}
	}
	return run, nil
}

// UpdateRun stores the run's mutable fields.
func (g *GraphDB) UpdateRun(ctx context.Context, run *CrawlRun) error {
	return g.inTx(ctx, "update run", func(tx *sql.Tx) error {
		return g.updateRunTx(ctx, tx, run)
	})
}

func (g *GraphDB) updateRunTx(ctx context.Context, tx *sql.Tx, run *CrawlRun) error {
	run.UpdatedAt = g.now()
	if run.State == model.StateFinished && run.FinishedAt == nil {
		finished := run.UpdatedAt
		run.FinishedAt = &finished
	}

	_, _, statsJSON, err := encodeRun(run)
	if err != nil {
		return err
	}
	var finishedAt sql.NullString
	if run.FinishedAt != nil {
		finishedAt = sql.NullString{String: formatTimestamp(*run.FinishedAt), Valid: true}
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE crawl_runs SET max_depth = ?, budget = ?, seeds_done = ?, state = ?, stop_reason = ?,
			fetches = ?, stats = ?, updated_at = ?, finished_at = ?
		WHERE id = ?`,
		run.MaxDepth, run.Budget, run.SeedsDone, run.State.String(), run.StopReason.String(), run.Fetches,
		statsJSON, formatTimestamp(run.UpdatedAt), finishedAt, run.ID)
	if err != nil {
		return fmt.Errorf("failed to update run %s: %w", run.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, run.ID)
	}
	return nil
}

// Checkpoint atomically stores the run header and replaces its frontier.
func (g *GraphDB) Checkpoint(ctx context.Context, run *CrawlRun, frontier []model.FrontierEntry) error {
	return g.inTx(ctx, "checkpoint run", func(tx *sql.Tx) error {
		if err := g.updateRunTx(ctx, tx, run); err != nil {
			return err
		}
		return saveFrontierTx(ctx, tx, run.ID, frontier)
	})
}

const runColumns = `id, seeds, clusters, max_depth, budget, seeds_done, state, stop_reason, fetches, stats,
	started_at, updated_at, finished_at`

func scanRun(s scanner) (*CrawlRun, error) {
	var (
		run                                   CrawlRun
		seeds, clusters, state, reason, stats string
		started, updated                      string
		finished                              sql.NullString
	)
	if err := s.Scan(&run.ID, &seeds, &clusters, &run.MaxDepth, &run.Budget, &run.SeedsDone, &state, &reason,
		&run.Fetches, &stats, &started, &updated, &finished); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(seeds), &run.Seeds); err != nil {
		return nil, fmt.Errorf("failed to decode seeds: %w", err)
	}
	if err := json.Unmarshal([]byte(clusters), &run.Clusters); err != nil {
		return nil, fmt.Errorf("failed to decode clusters: %w", err)
	}
	if err := json.Unmarshal([]byte(stats), &run.Stats); err != nil {
		return nil, fmt.Errorf("failed to decode stats: %w", err)
	}
	run.State = model.ParseState(state)
	run.StopReason = model.ParseStopReason(reason)
	run.StartedAt = parseTimestamp(started)
	run.UpdatedAt = parseTimestamp(updated)
	if finished.Valid {
		t := parseTimestamp(finished.String)
		run.FinishedAt = &t
	}
	return &run, nil
}

// GetRun returns the run with the given id.
func (g *GraphDB) GetRun(ctx context.Context, id string) (*CrawlRun, error) {
	run, err := scanRun(g.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM crawl_runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read run %s: %w", id, err)
	}
	return run, nil
}

// LatestRun returns the most recently started run.
func (g *GraphDB) LatestRun(ctx context.Context) (*CrawlRun, error) {
	run, err := scanRun(g.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM crawl_runs ORDER BY started_at DESC, rowid DESC LIMIT 1`))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read latest run: %w", err)
	}
	return run, nil
}

// ListRuns returns every run, newest first.
func (g *GraphDB) ListRuns(ctx context.Context) ([]*CrawlRun, error) {
	rows, err := g.db.QueryContext(ctx, `SELECT `+runColumns+` FROM crawl_runs ORDER BY started_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*CrawlRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func encodeRun(run *CrawlRun) (seeds, clusters, stats string, err error) {
	s, err := json.Marshal(nonNil(run.Seeds))
	if err != nil {
		return "", "", "", fmt.Errorf("failed to encode seeds: %w", err)
	}
	c, err := json.Marshal(nonNil(run.Clusters))
	if err != nil {
		return "", "", "", fmt.Errorf("failed to encode clusters: %w", err)
	}
	st, err := json.Marshal(run.Stats)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to encode stats: %w", err)
	}
	return string(s), string(c), string(st), nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
