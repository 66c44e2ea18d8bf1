package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"synopsis/api/internal/citation"
	"synopsis/api/internal/search"
	"synopsis/api/internal/store"
	"synopsis/api/internal/util"
)

// ImportReferences parses a citation export payload and stores every
// usable record, skipping duplicates the project already holds. A
// re-import of the same file yields a batch with a record count of zero.
func (s *Service) ImportReferences(ctx context.Context, projectID, fileName, payload, actorName string) (map[string]any, error) {
	if strings.TrimSpace(payload) == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "file content is empty", nil)
	}
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return nil, err
	}

	records, format, err := parseCitations(payload)
	if err != nil {
		return nil, domainError(http.StatusUnprocessableEntity, "PARSE_ERROR", "could not parse the reference file", map[string]any{"reason": err.Error()})
	}

	refs := make([]store.Reference, 0, len(records))
	for _, rec := range records {
		if !rec.Usable() {
			continue
		}
		refs = append(refs, store.Reference{
			ID:        util.NewID("ref"),
			ProjectID: projectID,
			Title:     rec.Title,
			Authors:   rec.Authors,
			Year:      rec.Year,
			Journal:   rec.Journal,
			Volume:    rec.Volume,
			Issue:     rec.Issue,
			Pages:     rec.Pages,
			DOI:       rec.DOI,
			URL:       rec.URL,
			Abstract:  rec.Abstract,
			HashKey:   rec.HashKey(),
			Screening: store.ScreeningPending,
		})
	}
	if len(refs) == 0 {
		return nil, domainError(http.StatusUnprocessableEntity, "NO_REFERENCES", "no references detected in the file", nil)
	}

	batch, inserted, err := s.store.ImportReferences(ctx, projectID, fileName, format, actorName, refs)
	if err != nil {
		return nil, err
	}

	// Index only rows the store actually inserted; skipped duplicates
	// would otherwise surface in search under IDs that do not exist.
	if s.search != nil && len(inserted) > 0 {
		s.search.IndexReferences(searchRecords(inserted))
	}
	_ = s.store.AppendChangeLog(ctx, projectID, "references_imported",
		fmt.Sprintf("%s: %d imported, %d skipped", fileName, batch.RecordCount, batch.SkippedCount), actorName)

	return map[string]any{"batch": batchPayload(batch)}, nil
}

func (s *Service) ListBatches(ctx context.Context, projectID string) (map[string]any, error) {
	batches, err := s.store.ListBatches(ctx, projectID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(batches))
	for _, batch := range batches {
		items = append(items, batchPayload(batch))
	}
	return map[string]any{"batches": items}, nil
}

func (s *Service) ListReferences(ctx context.Context, projectID, screening string) (map[string]any, error) {
	if screening != "" && !validScreening(screening) {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", fmt.Sprintf("unknown screening status %q", screening), nil)
	}
	refs, err := s.store.ListReferences(ctx, projectID, screening)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(refs))
	for _, ref := range refs {
		items = append(items, referencePayload(ref))
	}
	return map[string]any{"references": items}, nil
}

func (s *Service) ReferenceCounts(ctx context.Context, projectID string) (map[string]any, error) {
	counts, err := s.store.CountReferences(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"counts": counts}, nil
}

// SetScreening records a screening decision. Decisions are reversible:
// a reference can move between included, excluded, and back to pending.
func (s *Service) SetScreening(ctx context.Context, referenceID, screening, actorName string) (map[string]any, error) {
	if !validScreening(screening) {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", fmt.Sprintf("unknown screening status %q", screening), nil)
	}
	ref, err := s.store.GetReference(ctx, referenceID)
	if err != nil {
		return nil, err
	}
	if ref.Screening == screening {
		return map[string]any{"reference": referencePayload(ref)}, nil
	}
	if err := s.store.SetScreeningStatus(ctx, referenceID, screening); err != nil {
		return nil, err
	}
	ref.Screening = screening
	if s.search != nil {
		s.search.IndexReference(searchRecord(ref))
	}
	return map[string]any{"reference": referencePayload(ref)}, nil
}

// SearchReferences serves full-text search over a project's references,
// backed by Meilisearch with a Postgres fallback.
func (s *Service) SearchReferences(ctx context.Context, projectID, q, screening string, limit, offset int) (map[string]any, error) {
	if screening != "" && !validScreening(screening) {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", fmt.Sprintf("unknown screening status %q", screening), nil)
	}
	if s.search == nil {
		return nil, domainError(http.StatusServiceUnavailable, "SEARCH_UNAVAILABLE", "Search is not configured", nil)
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	resp := s.search.Search(search.Query{
		Text:            q,
		ProjectID:       projectID,
		FilterScreening: screening,
		Limit:           limit,
		Offset:          offset,
	})
	return map[string]any{
		"results": resp.Results,
		"total":   resp.Total,
		"query":   resp.Query,
	}, nil
}

// parseCitations wraps the citation parser so malformed input surfaces
// as an error instead of a panic taking down the request.
func parseCitations(payload string) (records []citation.Record, format string, err error) {
	defer func() {
		if r := recover(); r != nil {
			records = nil
			err = fmt.Errorf("parser failure: %v", r)
		}
	}()
	format = "freeform"
	if citation.LooksLikeRIS(payload) {
		format = "ris"
	}
	records, err = citation.Parse(payload)
	return records, format, err
}

func validScreening(s string) bool {
	return s == store.ScreeningPending || s == store.ScreeningIncluded || s == store.ScreeningExcluded
}

func searchRecord(ref store.Reference) search.ReferenceRecord {
	return search.ReferenceRecord{
		ID:        ref.ID,
		ProjectID: ref.ProjectID,
		Title:     ref.Title,
		Authors:   ref.Authors,
		Year:      ref.Year,
		Journal:   ref.Journal,
		Abstract:  ref.Abstract,
		Screening: ref.Screening,
	}
}

func searchRecords(refs []store.Reference) []search.ReferenceRecord {
	out := make([]search.ReferenceRecord, 0, len(refs))
	for _, ref := range refs {
		out = append(out, searchRecord(ref))
	}
	return out
}

func batchPayload(batch store.ReferenceBatch) map[string]any {
	return map[string]any{
		"id":           batch.ID,
		"projectId":    batch.ProjectID,
		"fileName":     batch.FileName,
		"format":       batch.Format,
		"recordCount":  batch.RecordCount,
		"skippedCount": batch.SkippedCount,
		"createdBy":    batch.CreatedBy,
		"createdAt":    batch.CreatedAt.Format(time.RFC3339),
	}
}

func referencePayload(ref store.Reference) map[string]any {
	return map[string]any{
		"id":        ref.ID,
		"projectId": ref.ProjectID,
		"batchId":   ref.BatchID,
		"title":     ref.Title,
		"authors":   ref.Authors,
		"year":      ref.Year,
		"journal":   ref.Journal,
		"volume":    ref.Volume,
		"issue":     ref.Issue,
		"pages":     ref.Pages,
		"doi":       ref.DOI,
		"url":       ref.URL,
		"abstract":  ref.Abstract,
		"screening": ref.Screening,
	}
}
