package search

import (
	"context"
	"log"
)

// Service is the facade that tries Meilisearch first and falls back to
// PG FTS.
type Service struct {
	meili *Meili
	pgfts *PgFTS
}

// NewService creates a search service. meili may be nil when
// Meilisearch is not configured.
func NewService(meili *Meili, pgfts *PgFTS) *Service {
	return &Service{meili: meili, pgfts: pgfts}
}

// Search tries Meilisearch if healthy, otherwise falls back to PG FTS.
func (s *Service) Search(q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back to pgfts: %v", err)
	}

	results, total, err := s.pgfts.Search(q)
	if err != nil {
		log.Printf("search: pgfts error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexReference pushes one reference to Meilisearch, fire and forget.
func (s *Service) IndexReference(ref ReferenceRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexReference(ref); err != nil {
			log.Printf("search: index reference %s: %v", ref.ID, err)
		}
	}()
}

// IndexReferences pushes a batch of references, fire and forget.
func (s *Service) IndexReferences(refs []ReferenceRecord) {
	if s.meili == nil || !s.meili.Healthy() || len(refs) == 0 {
		return
	}
	go func() {
		if err := s.meili.IndexReferences(refs); err != nil {
			log.Printf("search: index %d references: %v", len(refs), err)
		}
	}()
}

// DeleteReference removes a reference from the index, fire and forget.
func (s *Service) DeleteReference(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteReference(id); err != nil {
			log.Printf("search: delete reference %s: %v", id, err)
		}
	}()
}

// ReindexAllFromPG loads every reference from PostgreSQL and pushes it
// to Meilisearch. Called during Bootstrap when Meilisearch is healthy.
func (s *Service) ReindexAllFromPG(ctx context.Context) {
	if s.meili == nil || !s.meili.Healthy() || s.pgfts == nil {
		return
	}
	refs, err := s.pgfts.LoadAllRecords(ctx)
	if err != nil {
		log.Printf("search: reindex load failed: %v", err)
		return
	}
	if len(refs) == 0 {
		return
	}
	if err := s.meili.IndexReferences(refs); err != nil {
		log.Printf("search: reindex references: %v", err)
	}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
