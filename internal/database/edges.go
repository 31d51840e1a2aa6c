package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"

	"github.com/nao1215/citenet/internal/model"
)

// ErrSelfLoop is returned for an edge from a publication to itself.
var ErrSelfLoop = errors.New("citation edge is a self-loop")

// UpsertEdge stores the edge citing -> cited. Storing an existing edge is a
// no-op that keeps its first-observed timestamp.
func (g *GraphDB) UpsertEdge(ctx context.Context, citingID, citedID int64) error {
	return g.inTx(ctx, "upsert edge", func(tx *sql.Tx) error {
		_, err := g.upsertEdgeTx(ctx, tx, citingID, citedID)
		return err
	})
}

// upsertEdgeTx reports whether a new row was inserted.
func (g *GraphDB) upsertEdgeTx(ctx context.Context, tx *sql.Tx, citingID, citedID int64) (bool, error) {
	if citingID == citedID {
		return false, fmt.Errorf("%w: %d", ErrSelfLoop, citingID)
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO citation_edges (citing_id, cited_id, first_observed)
		VALUES (?, ?, ?)
		ON CONFLICT (citing_id, cited_id) DO NOTHING`,
		citingID, citedID, formatTimestamp(g.now()))
	if err != nil {
		return false, fmt.Errorf("failed to insert edge %d -> %d: %w", citingID, citedID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, nil //nolint:nilerr // row count is informational
	}
	return n > 0, nil
}

// IterateEdges yields every edge ordered by (citing_id, cited_id).
// Like IteratePublications it is lazy and restartable.
func (g *GraphDB) IterateEdges(ctx context.Context) iter.Seq2[model.CitationEdge, error] {
	return func(yield func(model.CitationEdge, error) bool) {
		rows, err := g.db.QueryContext(ctx, `
			SELECT citing_id, cited_id, first_observed
			FROM citation_edges
			ORDER BY citing_id, cited_id`)
		if err != nil {
			yield(model.CitationEdge{}, fmt.Errorf("failed to query edges: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var (
				e        model.CitationEdge
				observed string
			)
			if err := rows.Scan(&e.CitingID, &e.CitedID, &observed); err != nil {
				yield(model.CitationEdge{}, fmt.Errorf("failed to scan edge: %w", err))
				return
			}
			e.FirstObserved = parseTimestamp(observed)
			if !yield(e, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(model.CitationEdge{}, fmt.Errorf("failed to iterate edges: %w", err))
		}
	}
}
