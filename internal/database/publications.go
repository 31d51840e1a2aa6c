package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/nao1215/citenet/internal/model"
)

// ErrMissingID is returned when a publication has no canonical id.
var ErrMissingID = errors.New("publication has no canonical id")

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const publicationColumns = `id, title, authors, year, venue, citation_count, source_id,
	cited_by_ref, related_ref, depth, first_seen`

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanPublication(s scanner) (model.Publication, error) {
	var (
		p                                    model.Publication
		authors, firstSeen                   string
		year, citationCount                  sql.NullInt64
		venue, sourceID, citedByRef, related sql.NullString
	)
	if err := s.Scan(&p.ID, &p.Title, &authors, &year, &venue, &citationCount, &sourceID,
		&citedByRef, &related, &p.Depth, &firstSeen); err != nil {
		return model.Publication{}, err
	}
	if err := json.Unmarshal([]byte(authors), &p.Authors); err != nil {
		return model.Publication{}, fmt.Errorf("failed to decode authors of publication %d: %w", p.ID, err)
	}
	p.Year = intFromNull(year)
	p.CitationCount = intFromNull(citationCount)
	p.Venue = venue.String
	p.SourceID = sourceID.String
	p.CitedByRef = citedByRef.String
	p.RelatedRef = related.String
	p.FirstSeen = parseTimestamp(firstSeen)
	return p, nil
}

// GetPublication returns the publication with the given id.
// It returns sql.ErrNoRows when it does not exist.
func (g *GraphDB) GetPublication(ctx context.Context, id int64) (model.Publication, error) {
	return getPublication(ctx, g.db, id)
}

func getPublication(ctx context.Context, q queryer, id int64) (model.Publication, error) {
	row := q.QueryRowContext(ctx, `SELECT `+publicationColumns+` FROM publications WHERE id = ?`, id)
	return scanPublication(row)
}

// UpsertPublication stores p under its canonical id, merging into an
// existing row. Conflicting values keep the stored value and are recorded as
// discrepancies. Calling it twice with the same record is a no-op.
func (g *GraphDB) UpsertPublication(ctx context.Context, p model.Publication) (model.Publication, error) {
	var stored model.Publication
	err := g.inTx(ctx, "upsert publication", func(tx *sql.Tx) error {
		var err error
		stored, err = g.upsertPublicationTx(ctx, tx, p)
		return err
	})
	return stored, err
}

func (g *GraphDB) upsertPublicationTx(ctx context.Context, tx *sql.Tx, p model.Publication) (model.Publication, error) {
	if p.ID == 0 {
		return model.Publication{}, ErrMissingID
	}
	now := g.now()

	existing, err := getPublication(ctx, tx, p.ID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if p.FirstSeen.IsZero() {
			p.FirstSeen = now
		}
		if err := writePublication(ctx, tx, p, now, true); err != nil {
			return model.Publication{}, fmt.Errorf("failed to insert publication %d: %w", p.ID, err)
		}
		return p, nil
	case err != nil:
		return model.Publication{}, fmt.Errorf("failed to read publication %d: %w", p.ID, err)
	}

	merged, diffs := model.Merge(existing, p)
	if err := writePublication(ctx, tx, merged, now, false); err != nil {
		return model.Publication{}, fmt.Errorf("failed to update publication %d: %w", p.ID, err)
	}
	for _, d := range diffs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO discrepancies (publication_id, field, stored_value, observed_value, recorded_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (publication_id, field, observed_value) DO NOTHING`,
			d.PublicationID, d.Field, d.Stored, d.Observed, formatTimestamp(now)); err != nil {
			return model.Publication{}, fmt.Errorf("failed to record discrepancy: %w", err)
		}
	}
	return merged, nil
}

func writePublication(ctx context.Context, tx *sql.Tx, p model.Publication, now time.Time, insert bool) error {
	authors := p.Authors
	if authors == nil {
		authors = []string{}
	}
	authorsJSON, err := json.Marshal(authors)
	if err != nil {
		return fmt.Errorf("failed to encode authors: %w", err)
	}

	if insert {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO publications (id, title, authors, year, venue, citation_count, source_id,
				cited_by_ref, related_ref, depth, first_seen, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.Title, string(authorsJSON), nullInt(p.Year), nullString(p.Venue), nullInt(p.CitationCount),
			nullString(p.SourceID), nullString(p.CitedByRef), nullString(p.RelatedRef), p.Depth,
			formatTimestamp(p.FirstSeen), formatTimestamp(now))
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE publications SET title = ?, authors = ?, year = ?, venue = ?, citation_count = ?,
			source_id = ?, cited_by_ref = ?, related_ref = ?, depth = ?, updated_at = ?
		WHERE id = ?`,
		p.Title, string(authorsJSON), nullInt(p.Year), nullString(p.Venue), nullInt(p.CitationCount),
		nullString(p.SourceID), nullString(p.CitedByRef), nullString(p.RelatedRef), p.Depth,
		formatTimestamp(now), p.ID)
	return err
}

// IteratePublications yields every publication in id order.
// The sequence is lazy and restartable: each iteration runs a fresh query.
// Do not write to the store from inside the loop; the store has a single
// connection.
func (g *GraphDB) IteratePublications(ctx context.Context) iter.Seq2[model.Publication, error] {
	return func(yield func(model.Publication, error) bool) {
		rows, err := g.db.QueryContext(ctx, `SELECT `+publicationColumns+` FROM publications ORDER BY id`)
		if err != nil {
			yield(model.Publication{}, fmt.Errorf("failed to query publications: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			p, err := scanPublication(rows)
			if err != nil {
				yield(model.Publication{}, fmt.Errorf("failed to scan publication: %w", err))
				return
			}
			if !yield(p, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(model.Publication{}, fmt.Errorf("failed to iterate publications: %w", err))
		}
	}
}

// CitedPublication is a publication with its in-degree in the stored graph.
type CitedPublication struct {
	model.Publication
	InDegree int `json:"in_degree"`
}

// TopCited returns up to limit publications ordered by stored in-degree,
// then by reported citation count.
func (g *GraphDB) TopCited(ctx context.Context, limit int) ([]CitedPublication, error) {
	rows, err := g.db.QueryContext(ctx, `
		SELECT `+prefixed("p.", publicationColumns)+`, COUNT(e.citing_id) AS in_degree
		FROM publications p
		LEFT JOIN citation_edges e ON e.cited_id = p.id
		GROUP BY p.id
		ORDER BY in_degree DESC, COALESCE(p.citation_count, -1) DESC, p.id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top cited publications: %w", err)
	}
	defer rows.Close()

	var out []CitedPublication
	for rows.Next() {
		var cp CitedPublication
		p, err := scanPublication(rowWithExtra{rows: rows, extra: &cp.InDegree})
		if err != nil {
			return nil, fmt.Errorf("failed to scan publication: %w", err)
		}
		cp.Publication = p
		out = append(out, cp)
	}
	return out, rows.Err()
}

// rowWithExtra appends trailing destinations to a publication scan.
type rowWithExtra struct {
	rows  *sql.Rows
	extra *int
}

func (r rowWithExtra) Scan(dest ...any) error {
	return r.rows.Scan(append(dest, r.extra)...)
}

func prefixed(prefix, columns string) string {
	parts := strings.Split(columns, ",")
	for i, c := range parts {
		parts[i] = prefix + strings.TrimSpace(c)
	}
	return strings.Join(parts, ", ")
}
