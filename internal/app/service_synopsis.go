package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"synopsis/api/internal/export"
	"synopsis/api/internal/outline"
	"synopsis/api/internal/store"
)

func (s *Service) GetSynopsisOutline(ctx context.Context, projectID string) (map[string]any, error) {
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	chapters, err := s.store.GetOutline(ctx, projectID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(chapters))
	for _, ch := range chapters {
		items = append(items, chapterPayload(ch))
	}
	return map[string]any{"chapters": items}, nil
}

// CreateChapter adds a chapter, either free-form from a title or from a
// front-matter template, which also creates the template's sections.
func (s *Service) CreateChapter(ctx context.Context, projectID, title, templateKey string, sortOrder int) (map[string]any, error) {
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return nil, err
	}

	var sections []outline.TemplateSection
	if templateKey != "" {
		tpl := outline.TemplateByKey(templateKey)
		if tpl == nil {
			return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", fmt.Sprintf("unknown chapter template %q", templateKey), nil)
		}
		title = tpl.Title
		if tpl.Number != "" {
			title = tpl.Number + ". " + tpl.Title
		}
		sections = tpl.Sections
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "a title or a template key is required", nil)
	}

	chapter, err := s.store.CreateChapter(ctx, store.Chapter{
		ProjectID:   projectID,
		Title:       title,
		TemplateKey: templateKey,
		SortOrder:   sortOrder,
	})
	if err != nil {
		return nil, err
	}
	for i, sec := range sections {
		if _, err := s.store.CreateSection(ctx, store.Section{
			ChapterID: chapter.ID,
			Title:     sec.Number + " " + sec.Title,
			SortOrder: i,
		}); err != nil {
			return nil, err
		}
	}
	return map[string]any{"chapter": map[string]any{
		"id":          chapter.ID,
		"title":       chapter.Title,
		"templateKey": chapter.TemplateKey,
		"sortOrder":   chapter.SortOrder,
	}}, nil
}

// ApplyPreset creates every chapter of a table-of-contents preset in
// order, appended after any existing chapters.
func (s *Service) ApplyPreset(ctx context.Context, projectID, presetKey string) (map[string]any, error) {
	preset, ok := outline.Presets[presetKey]
	if !ok {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", fmt.Sprintf("unknown preset %q", presetKey), nil)
	}
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	existing, err := s.store.GetOutline(ctx, projectID)
	if err != nil {
		return nil, err
	}
	base := len(existing)
	created := 0
	for i, title := range preset.Chapters {
		if _, err := s.store.CreateChapter(ctx, store.Chapter{
			ProjectID: projectID,
			Title:     title,
			SortOrder: base + i,
		}); err != nil {
			return nil, err
		}
		created++
	}
	return map[string]any{"created": created, "preset": preset.Key}, nil
}

func (s *Service) CreateSection(ctx context.Context, chapterID, title string, sortOrder int) (map[string]any, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required", nil)
	}
	sec, err := s.store.CreateSection(ctx, store.Section{
		ChapterID: chapterID,
		Title:     title,
		SortOrder: sortOrder,
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"section": map[string]any{
		"id":        sec.ID,
		"chapterId": sec.ChapterID,
		"title":     sec.Title,
		"sortOrder": sec.SortOrder,
	}}, nil
}

func (s *Service) CreateBlock(ctx context.Context, sectionID, body string, sortOrder int) (map[string]any, error) {
	blk, err := s.store.CreateBlock(ctx, store.Block{
		SectionID: sectionID,
		Body:      body,
		SortOrder: sortOrder,
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"block": blockPayload(blk)}, nil
}

func (s *Service) UpdateBlock(ctx context.Context, blockID, body string) (map[string]any, error) {
	if err := s.store.UpdateBlockBody(ctx, blockID, body); err != nil {
		return nil, err
	}
	return map[string]any{"ok": true, "paragraphs": len(outline.SplitParagraphs(body))}, nil
}

func (s *Service) DeleteBlock(ctx context.Context, blockID string) error {
	return s.store.DeleteBlock(ctx, blockID)
}

// ExportSynopsis renders the assembled synopsis as PDF or DOCX.
func (s *Service) ExportSynopsis(ctx context.Context, projectID, format string) (*export.Result, error) {
	f := export.Format(format)
	if f != export.FormatPDF && f != export.FormatDOCX {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "format must be 'pdf' or 'docx'", nil)
	}
	if s.exporter == nil {
		return nil, domainError(http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "Export is not configured", nil)
	}
	return s.exporter.Export(ctx, export.Request{ProjectID: projectID, Format: f})
}

func chapterPayload(ch store.ChapterOutline) map[string]any {
	sections := make([]map[string]any, 0, len(ch.Sections))
	for _, sec := range ch.Sections {
		blocks := make([]map[string]any, 0, len(sec.Blocks))
		for _, blk := range sec.Blocks {
			blocks = append(blocks, blockPayload(blk))
		}
		sections = append(sections, map[string]any{
			"id":        sec.ID,
			"title":     sec.Title,
			"sortOrder": sec.SortOrder,
			"blocks":    blocks,
		})
	}
	return map[string]any{
		"id":          ch.ID,
		"title":       ch.Title,
		"templateKey": ch.TemplateKey,
		"sortOrder":   ch.SortOrder,
		"sections":    sections,
	}
}

func blockPayload(blk store.Block) map[string]any {
	return map[string]any{
		"id":         blk.ID,
		"sectionId":  blk.SectionID,
		"body":       blk.Body,
		"paragraphs": outline.SplitParagraphs(blk.Body),
		"sortOrder":  blk.SortOrder,
		"updatedAt":  blk.UpdatedAt.Format(time.RFC3339),
	}
}
