package export

import (
	"context"
	"fmt"
	"time"

	"synopsis/api/internal/outline"
	"synopsis/api/internal/store"
)

// DataStore defines the data access the export service needs.
type DataStore interface {
	GetProject(ctx context.Context, projectID string) (store.Project, error)
	GetOutline(ctx context.Context, projectID string) ([]store.ChapterOutline, error)
}

// Service turns a project's outline into a downloadable synopsis.
type Service struct {
	store DataStore
	brand string
}

func NewService(store DataStore, brand string) *Service {
	return &Service{store: store, brand: brand}
}

// Export generates the synopsis in the requested format.
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	project, err := s.store.GetProject(ctx, req.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}

	chapters, err := s.store.GetOutline(ctx, req.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("get outline: %w", err)
	}

	data := TemplateData{
		Title:       project.Title,
		Description: project.Description,
		Brand:       s.brand,
		GeneratedAt: time.Now(),
		Chapters:    buildChapters(chapters),
	}

	html, err := RenderSynopsisHTML(data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	switch req.Format {
	case FormatPDF:
		return exportPDF(html, project.Title)
	case FormatDOCX:
		return exportDOCX(html, project.Title)
	default:
		return nil, fmt.Errorf("unsupported format: %s", req.Format)
	}
}

func buildChapters(chapters []store.ChapterOutline) []TemplateChapter {
	out := make([]TemplateChapter, 0, len(chapters))
	for _, ch := range chapters {
		tc := TemplateChapter{Title: ch.Title}

		var firstParagraphs []string
		for _, sec := range ch.Sections {
			ts := TemplateSection{Title: sec.Title}
			for _, blk := range sec.Blocks {
				paragraphs := outline.SplitParagraphs(blk.Body)
				ts.Paragraphs = append(ts.Paragraphs, paragraphs...)
				firstParagraphs = append(firstParagraphs, paragraphs...)
			}
			tc.Sections = append(tc.Sections, ts)
		}
		tc.Summary = outline.SummaryPreview(firstParagraphs)
		out = append(out, tc)
	}
	return out
}
