package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/nao1215/citenet/internal/model"
)

// Step is one resolve-and-persist step: a publication, the publications it
// was observed citing, and an optional resolution conflict.
type Step struct {
	Publication model.Publication
	Cites       []int64
	Conflict    *model.Conflict
}

// StepResult reports what a persisted step changed.
type StepResult struct {
	Publication model.Publication
	NewEdges    int
}

// PersistStep writes a step atomically: either the publication, its edges and
// its conflict record are all visible afterwards, or none of them is.
// Failures are returned as *model.StorageError.
func (g *GraphDB) PersistStep(ctx context.Context, step Step) (StepResult, error) {
	var result StepResult
	err := g.inTx(ctx, "persist step", func(tx *sql.Tx) error {
		stored, err := g.upsertPublicationTx(ctx, tx, step.Publication)
		if err != nil {
			return err
		}
		result.Publication = stored

		for _, cited := range step.Cites {
			inserted, err := g.upsertEdgeTx(ctx, tx, stored.ID, cited)
			if err != nil {
				return err
			}
			if inserted {
				result.NewEdges++
			}
		}

		if step.Conflict != nil {
			if err := g.insertConflictTx(ctx, tx, *step.Conflict); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return StepResult{}, err
	}
	return result, nil
}

func (g *GraphDB) insertConflictTx(ctx context.Context, tx *sql.Tx, c model.Conflict) error {
	candidates, err := json.Marshal(c.Candidates)
	if err != nil {
		return fmt.Errorf("failed to encode conflict candidates: %w", err)
	}
	recorded := c.RecordedAt
	if recorded.IsZero() {
		recorded = g.now()
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO resolution_conflicts (chosen_id, candidates, strategy, observed_title, recorded_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (chosen_id, candidates, strategy, observed_title) DO NOTHING`,
		c.ChosenID, string(candidates), c.Strategy, c.ObservedTitle, formatTimestamp(recorded))
	if err != nil {
		return fmt.Errorf("failed to record resolution conflict: %w", err)
	}
	return nil
}

// Discrepancies returns the recorded discrepancies of a publication.
func (g *GraphDB) Discrepancies(ctx context.Context, publicationID int64) ([]model.Discrepancy, error) {
	rows, err := g.db.QueryContext(ctx, `
		SELECT publication_id, field, stored_value, observed_value, recorded_at
		FROM discrepancies WHERE publication_id = ? ORDER BY id`, publicationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query discrepancies: %w", err)
	}
	defer rows.Close()

	var out []model.Discrepancy
	for rows.Next() {
		var (
			d        model.Discrepancy
			recorded string
		)
		if err := rows.Scan(&d.PublicationID, &d.Field, &d.Stored, &d.Observed, &recorded); err != nil {
			return nil, fmt.Errorf("failed to scan discrepancy: %w", err)
		}
		d.RecordedAt = parseTimestamp(recorded)
		out = append(out, d)
	}
	return out, rows.Err()
}

// Conflicts returns every recorded resolution conflict.
func (g *GraphDB) Conflicts(ctx context.Context) ([]model.Conflict, error) {
	rows, err := g.db.QueryContext(ctx, `
		SELECT chosen_id, candidates, strategy, observed_title, recorded_at
		FROM resolution_conflicts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query conflicts: %w", err)
	}
	defer rows.Close()

	var out []model.Conflict
	for rows.Next() {
		var (
			c                    model.Conflict
			candidates, recorded string
		)
		if err := rows.Scan(&c.ChosenID, &candidates, &c.Strategy, &c.ObservedTitle, &recorded); err != nil {
			return nil, fmt.Errorf("failed to scan conflict: %w", err)
		}
		if err := json.Unmarshal([]byte(candidates), &c.Candidates); err != nil {
			return nil, fmt.Errorf("failed to decode conflict candidates: %w", err)
		}
		c.RecordedAt = parseTimestamp(recorded)
		out = append(out, c)
	}
	return out, rows.Err()
}

// Counts are row counts of the graph tables.
type Counts struct {
	Publications  int `json:"publications"`
	Edges         int `json:"edges"`
	Discrepancies int `json:"discrepancies"`
	Conflicts     int `json:"conflicts"`
}

// Counts returns the current row counts.
func (g *GraphDB) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	err := g.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM publications),
			(SELECT COUNT(*) FROM citation_edges),
			(SELECT COUNT(*) FROM discrepancies),
			(SELECT COUNT(*) FROM resolution_conflicts)`).
		Scan(&c.Publications, &c.Edges, &c.Discrepancies, &c.Conflicts)
	if err != nil {
		return Counts{}, fmt.Errorf("failed to count rows: %w", err)
	}
	return c, nil
}
