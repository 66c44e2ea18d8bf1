package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"synopsis/api/internal/files"
	"synopsis/api/internal/store"
	"synopsis/api/internal/util"
)

// UploadRevision stores the file in object storage and records a new
// draft revision, which becomes the document's current one.
func (s *Service) UploadRevision(ctx context.Context, projectID, kind, fileName string, content io.Reader, size int64, contentType string, actor Session) (map[string]any, error) {
	if kind != store.DocProtocol && kind != store.DocActionList {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", fmt.Sprintf("unknown document kind %q", kind), nil)
	}
	fileName = path.Base(strings.TrimSpace(fileName))
	if fileName == "" || fileName == "." {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "a file name is required", nil)
	}
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return nil, err
	}

	doc, err := s.store.EnsureDocument(ctx, projectID, kind)
	if err != nil {
		return nil, err
	}
	if doc.Stage == store.StageFinal {
		return nil, domainError(http.StatusConflict, "DOCUMENT_FINAL", "Document is final; return it to draft before uploading", nil)
	}

	fileKey := fmt.Sprintf("projects/%s/%s/%s/%s", projectID, kind, util.NewID("obj"), fileName)
	if err := s.files.Put(ctx, fileKey, content, size, contentType); err != nil {
		return nil, fmt.Errorf("store file: %w", err)
	}

	rev, err := s.store.InsertRevision(ctx, store.Revision{
		DocumentID: doc.ID,
		FileKey:    fileKey,
		FileName:   fileName,
		Stage:      store.StageDraft,
		UploadedBy: actor.UserName,
	})
	if err != nil {
		return nil, err
	}
	_ = s.store.AppendChangeLog(ctx, projectID, "revision_uploaded", fmt.Sprintf("%s: %s", kind, fileName), actor.UserName)

	return map[string]any{"revision": revisionPayload(rev)}, nil
}

func (s *Service) GetDocumentView(ctx context.Context, projectID, kind string) (map[string]any, error) {
	if kind != store.DocProtocol && kind != store.DocActionList {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", fmt.Sprintf("unknown document kind %q", kind), nil)
	}
	doc, err := s.store.EnsureDocument(ctx, projectID, kind)
	if err != nil {
		return nil, err
	}
	revisions, err := s.store.ListRevisions(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(revisions))
	for _, rev := range revisions {
		items = append(items, revisionPayload(rev))
	}
	return map[string]any{
		"document":  documentPayload(doc),
		"revisions": items,
	}, nil
}

// DownloadRevision streams the stored file. The caller owns closing the
// reader.
func (s *Service) DownloadRevision(ctx context.Context, revisionID string) (io.ReadCloser, string, error) {
	rev, err := s.store.GetRevision(ctx, revisionID)
	if err != nil {
		return nil, "", err
	}
	reader, err := s.files.Get(ctx, rev.FileKey)
	if err != nil {
		if errors.Is(err, files.ErrFileMissing) {
			return nil, "", domainError(http.StatusUnprocessableEntity, "FILE_MISSING", "The stored file is missing", nil)
		}
		return nil, "", err
	}
	return reader, rev.FileName, nil
}

// FinalizeDocument promotes one revision to final. The stored object is
// verified first, so a missing or empty upload fails the request and
// leaves the document in draft.
func (s *Service) FinalizeDocument(ctx context.Context, projectID, kind, revisionID, reason string, actor Session) (map[string]any, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "a finalize reason is required", nil)
	}

	doc, err := s.store.GetDocumentByKind(ctx, projectID, kind)
	if err != nil {
		return nil, err
	}
	rev, err := s.store.GetRevision(ctx, revisionID)
	if err != nil {
		return nil, err
	}
	if rev.DocumentID != doc.ID {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Revision does not belong to this document", nil)
	}

	if err := s.files.CheckFinalizable(ctx, rev.FileKey); err != nil {
		switch {
		case errors.Is(err, files.ErrFileMissing):
			return nil, domainError(http.StatusUnprocessableEntity, "FILE_MISSING", "The uploaded file is missing from storage", nil)
		case errors.Is(err, files.ErrFileEmpty):
			return nil, domainError(http.StatusUnprocessableEntity, "FILE_EMPTY", "The uploaded file is empty", nil)
		default:
			return nil, err
		}
	}

	primaryKey := fmt.Sprintf("projects/%s/%s/primary/%s", projectID, kind, rev.FileName)
	if err := s.files.Copy(ctx, rev.FileKey, primaryKey); err != nil {
		return nil, fmt.Errorf("copy to primary slot: %w", err)
	}

	if err := s.store.FinalizeDocument(ctx, doc.ID, rev.ID, reason, primaryKey, time.Now()); err != nil {
		return nil, err
	}
	_ = s.store.AppendChangeLog(ctx, projectID, "document_finalized", fmt.Sprintf("%s: %s", kind, reason), actor.UserName)

	return s.GetDocumentView(ctx, projectID, kind)
}

// BackToDraft reopens a final document for new uploads. The revision
// stages and the primary file stay as they were.
func (s *Service) BackToDraft(ctx context.Context, projectID, kind string, actor Session) (map[string]any, error) {
	doc, err := s.store.GetDocumentByKind(ctx, projectID, kind)
	if err != nil {
		return nil, err
	}
	if doc.Stage != store.StageFinal {
		return s.GetDocumentView(ctx, projectID, kind)
	}
	if err := s.store.BackToDraft(ctx, doc.ID); err != nil {
		return nil, err
	}
	_ = s.store.AppendChangeLog(ctx, projectID, "document_reopened", kind, actor.UserName)
	return s.GetDocumentView(ctx, projectID, kind)
}

// DeleteRevision removes a revision and its stored file. If the deleted
// revision was current, the next most recent one takes its place.
// Revisions of a final document cannot be deleted.
func (s *Service) DeleteRevision(ctx context.Context, revisionID string, actor Session) (map[string]any, error) {
	rev, err := s.store.GetRevision(ctx, revisionID)
	if err != nil {
		return nil, err
	}
	doc, err := s.store.GetDocument(ctx, rev.DocumentID)
	if err != nil {
		return nil, err
	}
	if doc.Stage == store.StageFinal {
		return nil, domainError(http.StatusConflict, "DOCUMENT_FINAL", "Cannot delete revisions of a final document", nil)
	}

	deleted, err := s.store.DeleteRevision(ctx, revisionID)
	if err != nil {
		return nil, err
	}
	if err := s.files.Remove(ctx, deleted.FileKey); err != nil {
		// The database row is gone; an orphaned object is tolerable.
		_ = s.store.AppendChangeLog(ctx, doc.ProjectID, "revision_file_orphaned", deleted.FileKey, actor.UserName)
	}
	_ = s.store.AppendChangeLog(ctx, doc.ProjectID, "revision_deleted", deleted.FileName, actor.UserName)

	return map[string]any{"ok": true}, nil
}

// RestoreRevision points the document's current pointer at an older
// revision without deleting anything.
func (s *Service) RestoreRevision(ctx context.Context, revisionID string, actor Session) (map[string]any, error) {
	rev, err := s.store.GetRevision(ctx, revisionID)
	if err != nil {
		return nil, err
	}
	doc, err := s.store.GetDocument(ctx, rev.DocumentID)
	if err != nil {
		return nil, err
	}
	if doc.Stage == store.StageFinal {
		return nil, domainError(http.StatusConflict, "DOCUMENT_FINAL", "Cannot restore revisions of a final document", nil)
	}
	if err := s.store.SetCurrentRevision(ctx, doc.ID, rev.ID); err != nil {
		return nil, err
	}
	_ = s.store.AppendChangeLog(ctx, doc.ProjectID, "revision_restored", rev.FileName, actor.UserName)
	return map[string]any{"ok": true, "currentRevisionId": rev.ID}, nil
}

func documentPayload(doc store.Document) map[string]any {
	payload := map[string]any{
		"id":        doc.ID,
		"projectId": doc.ProjectID,
		"kind":      doc.Kind,
		"stage":     doc.Stage,
	}
	if doc.CurrentRevisionID != nil {
		payload["currentRevisionId"] = *doc.CurrentRevisionID
	}
	if doc.Stage == store.StageFinal {
		payload["finalizedReason"] = doc.FinalizedReason
		payload["primaryFileKey"] = doc.PrimaryFileKey
		if doc.FinalizedAt != nil {
			payload["finalizedAt"] = doc.FinalizedAt.Format(time.RFC3339)
		}
	}
	return payload
}

func revisionPayload(rev store.Revision) map[string]any {
	return map[string]any{
		"id":         rev.ID,
		"documentId": rev.DocumentID,
		"fileName":   rev.FileName,
		"stage":      rev.Stage,
		"uploadedBy": rev.UploadedBy,
		"uploadedAt": rev.UploadedAt.Format(time.RFC3339),
	}
}
