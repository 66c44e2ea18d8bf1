package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"synopsis/api/internal/util"
)

// ImportReferences inserts a batch of parsed references for a project in
// one transaction. The caller assigns reference IDs so it can index the
// same rows afterwards. Rows whose (project, hash_key) already exists
// are skipped and counted; the batch row persists both counts. The
// returned slice holds only the rows that were inserted, never the
// skipped duplicates. On error nothing is committed, batch row included.
func (s *PostgresStore) ImportReferences(ctx context.Context, projectID, fileName, format, createdBy string, refs []Reference) (ReferenceBatch, []Reference, error) {
	batch := ReferenceBatch{
		ID:        util.NewID("bat"),
		ProjectID: projectID,
		FileName:  fileName,
		Format:    format,
		CreatedBy: createdBy,
	}
	inserted := make([]Reference, 0, len(refs))

	err := inTx(ctx, s.db, func(tx *sql.Tx) error {
		for _, ref := range refs {
			authors, err := json.Marshal(ref.Authors)
			if err != nil {
				return fmt.Errorf("marshal authors: %w", err)
			}
			res, err := tx.ExecContext(ctx, `
				INSERT INTO references_ (id, project_id, batch_id, title, authors, year,
					journal, volume, issue, pages, doi, url, abstract, hash_key, screening)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, 'pending')
				ON CONFLICT (project_id, hash_key) DO NOTHING
			`, ref.ID, projectID, batch.ID, ref.Title, authors, ref.Year,
				ref.Journal, ref.Volume, ref.Issue, ref.Pages, ref.DOI, ref.URL,
				ref.Abstract, ref.HashKey)
			if err != nil {
				return fmt.Errorf("insert reference: %w", err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if n == 0 {
				batch.SkippedCount++
				continue
			}
			batch.RecordCount++
			ref.BatchID = batch.ID
			inserted = append(inserted, ref)
		}

		err := tx.QueryRowContext(ctx, `
			INSERT INTO reference_batches (id, project_id, file_name, format, record_count, skipped_count, created_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING created_at
		`, batch.ID, batch.ProjectID, batch.FileName, batch.Format,
			batch.RecordCount, batch.SkippedCount, batch.CreatedBy).Scan(&batch.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert batch: %w", err)
		}
		return nil
	})
	if err != nil {
		return ReferenceBatch{}, nil, err
	}
	return batch, inserted, nil
}

func (s *PostgresStore) ListBatches(ctx context.Context, projectID string) ([]ReferenceBatch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, file_name, format, record_count, skipped_count, created_by, created_at
		FROM reference_batches
		WHERE project_id = $1
		ORDER BY created_at DESC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()

	items := make([]ReferenceBatch, 0)
	for rows.Next() {
		var b ReferenceBatch
		if err := rows.Scan(&b.ID, &b.ProjectID, &b.FileName, &b.Format,
			&b.RecordCount, &b.SkippedCount, &b.CreatedBy, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		items = append(items, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate batches: %w", err)
	}
	return items, nil
}

const referenceColumns = `
	id, project_id, batch_id, title, authors, COALESCE(year, ''),
	COALESCE(journal, ''), COALESCE(volume, ''), COALESCE(issue, ''),
	COALESCE(pages, ''), COALESCE(doi, ''), COALESCE(url, ''),
	COALESCE(abstract, ''), hash_key, screening, created_at, updated_at
`

func scanReference(row interface{ Scan(...any) error }) (Reference, error) {
	var ref Reference
	var authors []byte
	err := row.Scan(&ref.ID, &ref.ProjectID, &ref.BatchID, &ref.Title, &authors,
		&ref.Year, &ref.Journal, &ref.Volume, &ref.Issue, &ref.Pages, &ref.DOI,
		&ref.URL, &ref.Abstract, &ref.HashKey, &ref.Screening, &ref.CreatedAt, &ref.UpdatedAt)
	if err != nil {
		return Reference{}, err
	}
	if len(authors) > 0 {
		if err := json.Unmarshal(authors, &ref.Authors); err != nil {
			return Reference{}, fmt.Errorf("unmarshal authors: %w", err)
		}
	}
	return ref, nil
}

func (s *PostgresStore) GetReference(ctx context.Context, referenceID string) (Reference, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+referenceColumns+` FROM references_ WHERE id = $1`, referenceID)
	return scanReference(row)
}

// ListReferences returns a project's references, optionally filtered by
// screening status. Pass "" for all.
func (s *PostgresStore) ListReferences(ctx context.Context, projectID, screening string) ([]Reference, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+referenceColumns+`
		FROM references_
		WHERE project_id = $1 AND ($2 = '' OR screening = $2)
		ORDER BY title
	`, projectID, screening)
	if err != nil {
		return nil, fmt.Errorf("list references: %w", err)
	}
	defer rows.Close()

	items := make([]Reference, 0)
	for rows.Next() {
		ref, err := scanReference(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reference: %w", err)
		}
		items = append(items, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate references: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) SetScreeningStatus(ctx context.Context, referenceID, screening string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE references_ SET screening=$2, updated_at=NOW() WHERE id=$1
	`, referenceID, screening)
	if err != nil {
		return fmt.Errorf("set screening status: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) CountReferences(ctx context.Context, projectID string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT screening, COUNT(*) FROM references_ WHERE project_id=$1 GROUP BY screening
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("count references: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
