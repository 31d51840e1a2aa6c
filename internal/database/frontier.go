package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nao1215/citenet/internal/model"
)

// SaveFrontier replaces the stored frontier of a run.
func (g *GraphDB) SaveFrontier(ctx context.Context, runID string, entries []model.FrontierEntry) error {
	return g.inTx(ctx, "save frontier", func(tx *sql.Tx) error {
		return saveFrontierTx(ctx, tx, runID, entries)
	})
}

func saveFrontierTx(ctx context.Context, tx *sql.Tx, runID string, entries []model.FrontierEntry) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM frontier_entries WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("failed to clear frontier: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO frontier_entries (run_id, publication_id, cited_by_ref, title, citation_count, depth, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare frontier insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, runID, e.PublicationID, e.CitedByRef, e.Title,
			nullInt(e.CitationCount), e.Depth, int64(e.Seq)); err != nil { //nolint:gosec // sequence numbers stay far below MaxInt64
			return fmt.Errorf("failed to store frontier entry %d: %w", e.PublicationID, err)
		}
	}
	return nil
}

// LoadFrontier returns the stored frontier of a run ordered by depth and sequence.
func (g *GraphDB) LoadFrontier(ctx context.Context, runID string) ([]model.FrontierEntry, error) {
	rows, err := g.db.QueryContext(ctx, `
		SELECT publication_id, cited_by_ref, title, citation_count, depth, seq
		FROM frontier_entries WHERE run_id = ? ORDER BY depth, seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query frontier: %w", err)
	}
	defer rows.Close()

	var entries []model.FrontierEntry
	for rows.Next() {
		var (
			e     model.FrontierEntry
			count sql.NullInt64
			seq   int64
		)
		if err := rows.Scan(&e.PublicationID, &e.CitedByRef, &e.Title, &count, &e.Depth, &seq); err != nil {
			return nil, fmt.Errorf("failed to scan frontier entry: %w", err)
		}
		e.CitationCount = intFromNull(count)
		e.Seq = uint64(seq) //nolint:gosec // stored from a uint64
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// EntryStatus is the recorded outcome of one frontier entry.
type EntryStatus struct {
	Status string
	Depth  int
}

// MarkEntry records that a run is done with a frontier entry.
func (g *GraphDB) MarkEntry(ctx context.Context, runID string, publicationID int64, status string, depth int) error {
	_, err := g.db.ExecContext(ctx, `
		INSERT INTO run_entries (run_id, publication_id, status, depth, recorded_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (run_id, publication_id) DO UPDATE SET
			status = excluded.status, depth = excluded.depth, recorded_at = excluded.recorded_at`,
		runID, publicationID, status, depth, formatTimestamp(g.now()))
	if err != nil {
		return &model.StorageError{Op: "mark entry", Err: err}
	}
	return nil
}

// RunEntries returns the recorded entry outcomes of a run.
func (g *GraphDB) RunEntries(ctx context.Context, runID string) (map[int64]EntryStatus, error) {
	rows, err := g.db.QueryContext(ctx, `
		SELECT publication_id, status, depth FROM run_entries WHERE run_id = ?`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run entries: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]EntryStatus)
	for rows.Next() {
		var (
			id int64
			es EntryStatus
		)
		if err := rows.Scan(&id, &es.Status, &es.Depth); err != nil {
			return nil, fmt.Errorf("failed to scan run entry: %w", err)
		}
		out[id] = es
	}
	return out, rows.Err()
}
