package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"synopsis/api/internal/util"
)

// EnsureDocument returns the project's document of the given kind,
// creating the draft row on first use.
func (s *PostgresStore) EnsureDocument(ctx context.Context, projectID, kind string) (Document, error) {
	doc, err := s.GetDocumentByKind(ctx, projectID, kind)
	if err == nil {
		return doc, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Document{}, err
	}

	doc = Document{ID: util.NewID("doc"), ProjectID: projectID, Kind: kind, Stage: StageDraft}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO documents (id, project_id, kind, stage)
		VALUES ($1, $2, $3, 'draft')
		ON CONFLICT (project_id, kind) DO UPDATE SET updated_at=documents.updated_at
		RETURNING id, stage, created_at, updated_at
	`, doc.ID, projectID, kind).Scan(&doc.ID, &doc.Stage, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return Document{}, fmt.Errorf("ensure document: %w", err)
	}
	return doc, nil
}

const documentColumns = `
	id, project_id, kind, stage, COALESCE(primary_file_key, ''),
	COALESCE(finalized_reason, ''), finalized_at, current_revision_id,
	created_at, updated_at
`

func scanDocument(row interface{ Scan(...any) error }) (Document, error) {
	var d Document
	err := row.Scan(&d.ID, &d.ProjectID, &d.Kind, &d.Stage, &d.PrimaryFileKey,
		&d.FinalizedReason, &d.FinalizedAt, &d.CurrentRevisionID, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}

func (s *PostgresStore) GetDocument(ctx context.Context, documentID string) (Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1`, documentID)
	return scanDocument(row)
}

func (s *PostgresStore) GetDocumentByKind(ctx context.Context, projectID, kind string) (Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE project_id = $1 AND kind = $2`, projectID, kind)
	return scanDocument(row)
}

// InsertRevision appends a revision and moves the current pointer to it.
func (s *PostgresStore) InsertRevision(ctx context.Context, rev Revision) (Revision, error) {
	rev.ID = util.NewID("rev")
	rev.Stage = StageDraft
	err := inTx(ctx, s.db, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO document_revisions (id, document_id, file_key, file_name, stage, uploaded_by)
			VALUES ($1, $2, $3, $4, 'draft', $5)
			RETURNING uploaded_at
		`, rev.ID, rev.DocumentID, rev.FileKey, rev.FileName, rev.UploadedBy).Scan(&rev.UploadedAt)
		if err != nil {
			return fmt.Errorf("insert revision: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE documents SET current_revision_id=$2, updated_at=NOW() WHERE id=$1
		`, rev.DocumentID, rev.ID); err != nil {
			return fmt.Errorf("point current revision: %w", err)
		}
		return nil
	})
	if err != nil {
		return Revision{}, err
	}
	return rev, nil
}

func (s *PostgresStore) GetRevision(ctx context.Context, revisionID string) (Revision, error) {
	var rev Revision
	err := s.db.QueryRowContext(ctx, `
		SELECT id, document_id, file_key, file_name, stage, uploaded_by, uploaded_at
		FROM document_revisions
		WHERE id = $1
	`, revisionID).Scan(&rev.ID, &rev.DocumentID, &rev.FileKey, &rev.FileName,
		&rev.Stage, &rev.UploadedBy, &rev.UploadedAt)
	if err != nil {
		return Revision{}, err
	}
	return rev, nil
}

func (s *PostgresStore) ListRevisions(ctx context.Context, documentID string) ([]Revision, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, file_key, file_name, stage, uploaded_by, uploaded_at
		FROM document_revisions
		WHERE document_id = $1
		ORDER BY uploaded_at DESC, id DESC
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list revisions: %w", err)
	}
	defer rows.Close()

	items := make([]Revision, 0)
	for rows.Next() {
		var rev Revision
		if err := rows.Scan(&rev.ID, &rev.DocumentID, &rev.FileKey, &rev.FileName,
			&rev.Stage, &rev.UploadedBy, &rev.UploadedAt); err != nil {
			return nil, fmt.Errorf("scan revision: %w", err)
		}
		items = append(items, rev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate revisions: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) SetCurrentRevision(ctx context.Context, documentID, revisionID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE documents SET current_revision_id=$2, updated_at=NOW() WHERE id=$1
	`, documentID, revisionID)
	if err != nil {
		return fmt.Errorf("set current revision: %w", err)
	}
	return requireRow(res)
}

// FinalizeDocument flips the document to final in one transaction: the
// chosen revision becomes the sole final revision, the current pointer
// moves to it, and the primary file slot records the copied object key.
// The object copy itself happens before this call.
func (s *PostgresStore) FinalizeDocument(ctx context.Context, documentID, revisionID, reason, primaryFileKey string, at time.Time) error {
	return inTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			UPDATE document_revisions SET stage='draft' WHERE document_id=$1 AND id <> $2
		`, documentID, revisionID); err != nil {
			return fmt.Errorf("relabel revisions: %w", err)
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE document_revisions SET stage='final' WHERE document_id=$1 AND id=$2
		`, documentID, revisionID)
		if err != nil {
			return fmt.Errorf("mark final revision: %w", err)
		}
		if err := requireRow(res); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE documents
			SET stage='final', finalized_reason=$3, finalized_at=$4,
				current_revision_id=$2, primary_file_key=$5, updated_at=NOW()
			WHERE id=$1
		`, documentID, revisionID, reason, at, primaryFileKey); err != nil {
			return fmt.Errorf("finalize document: %w", err)
		}
		return nil
	})
}

// BackToDraft is unrestricted.
func (s *PostgresStore) BackToDraft(ctx context.Context, documentID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE documents
		SET stage='draft', finalized_reason=NULL, finalized_at=NULL, updated_at=NOW()
		WHERE id=$1
	`, documentID)
	if err != nil {
		return fmt.Errorf("back to draft: %w", err)
	}
	return requireRow(res)
}

// DeleteRevision removes a revision and, when it was current, repoints
// the document to the next-most-recent remaining revision (or null),
// all in one transaction. Returns the deleted revision so the caller
// can remove the stored object afterwards.
func (s *PostgresStore) DeleteRevision(ctx context.Context, revisionID string) (Revision, error) {
	var deleted Revision
	err := inTx(ctx, s.db, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			SELECT id, document_id, file_key, file_name, stage, uploaded_by, uploaded_at
			FROM document_revisions
			WHERE id = $1
			FOR UPDATE
		`, revisionID).Scan(&deleted.ID, &deleted.DocumentID, &deleted.FileKey,
			&deleted.FileName, &deleted.Stage, &deleted.UploadedBy, &deleted.UploadedAt)
		if err != nil {
			return err
		}

		var currentID *string
		if err := tx.QueryRowContext(ctx, `
			SELECT current_revision_id FROM documents WHERE id=$1 FOR UPDATE
		`, deleted.DocumentID).Scan(&currentID); err != nil {
			return fmt.Errorf("lock document: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			DELETE FROM document_revisions WHERE id=$1
		`, revisionID); err != nil {
			return fmt.Errorf("delete revision: %w", err)
		}

		if currentID == nil || *currentID != revisionID {
			return nil
		}

		var nextID *string
		err = tx.QueryRowContext(ctx, `
			SELECT id FROM document_revisions
			WHERE document_id=$1
			ORDER BY uploaded_at DESC, id DESC
			LIMIT 1
		`, deleted.DocumentID).Scan(&nextID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("find next revision: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE documents SET current_revision_id=$2, updated_at=NOW() WHERE id=$1
		`, deleted.DocumentID, nextID); err != nil {
			return fmt.Errorf("repoint current revision: %w", err)
		}
		return nil
	})
	if err != nil {
		return Revision{}, err
	}
	return deleted, nil
}
