package search

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a
// fallback.
type PgFTS struct {
	db *sql.DB
}

func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true. If Postgres is down, the whole app is
// down anyway.
func (p *PgFTS) Healthy() bool {
	return true
}

// The tsvector expression must match the GIN index on references_.
const refFTS = `to_tsvector('english', title || ' ' || COALESCE(abstract, ''))`

// Search runs plainto_tsquery over the reference table with ts_headline
// snippets.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	where := refFTS + ` @@ plainto_tsquery('english', $1)`
	args := []any{q.Text}
	argN := 2

	if q.ProjectID != "" {
		where += fmt.Sprintf(" AND project_id = $%d", argN)
		args = append(args, q.ProjectID)
		argN++
	}
	if q.FilterScreening != "" {
		where += fmt.Sprintf(" AND screening = $%d", argN)
		args = append(args, q.FilterScreening)
		argN++
	}

	ctx := context.Background()

	var total int
	countSQL := `SELECT count(*) FROM references_ WHERE ` + where
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	dataSQL := fmt.Sprintf(`
		SELECT id, project_id, title,
			ts_headline('english', COALESCE(abstract, ''), plainto_tsquery('english', $1), 'MaxFragments=1,MaxWords=30') AS snippet,
			COALESCE(year, ''), COALESCE(journal, ''), screening
		FROM references_
		WHERE %s
		ORDER BY ts_rank(%s, plainto_tsquery('english', $1)) DESC
		LIMIT %d OFFSET %d`, where, refFTS, limit, offset)

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.ProjectID, &r.Title, &r.Snippet, &r.Year, &r.Journal, &r.Screening); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns every reference for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]ReferenceRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, project_id, title, authors, COALESCE(year, ''),
			COALESCE(journal, ''), COALESCE(abstract, ''), screening
		FROM references_
	`)
	if err != nil {
		return nil, fmt.Errorf("load references: %w", err)
	}
	defer rows.Close()

	refs := make([]ReferenceRecord, 0)
	for rows.Next() {
		var ref ReferenceRecord
		var authors []byte
		if err := rows.Scan(&ref.ID, &ref.ProjectID, &ref.Title, &authors,
			&ref.Year, &ref.Journal, &ref.Abstract, &ref.Screening); err != nil {
			return nil, fmt.Errorf("scan reference: %w", err)
		}
		if len(authors) > 0 {
			if err := json.Unmarshal(authors, &ref.Authors); err != nil {
				return nil, fmt.Errorf("unmarshal authors: %w", err)
			}
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate references: %w", err)
	}
	return refs, nil
}
