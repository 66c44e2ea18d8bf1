package store

import (
	"context"
	"fmt"

	"synopsis/api/internal/util"
)

func (s *PostgresStore) CreateChapter(ctx context.Context, ch Chapter) (Chapter, error) {
	ch.ID = util.NewID("chp")
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO synopsis_chapters (id, project_id, title, template_key, sort_order)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`, ch.ID, ch.ProjectID, ch.Title, ch.TemplateKey, ch.SortOrder).Scan(&ch.CreatedAt, &ch.UpdatedAt)
	if err != nil {
		return Chapter{}, fmt.Errorf("insert chapter: %w", err)
	}
	return ch, nil
}

func (s *PostgresStore) CreateSection(ctx context.Context, sec Section) (Section, error) {
	sec.ID = util.NewID("sec")
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO synopsis_sections (id, chapter_id, title, sort_order)
		VALUES ($1, $2, $3, $4)
	`, sec.ID, sec.ChapterID, sec.Title, sec.SortOrder)
	if err != nil {
		return Section{}, fmt.Errorf("insert section: %w", err)
	}
	return sec, nil
}

func (s *PostgresStore) CreateBlock(ctx context.Context, blk Block) (Block, error) {
	blk.ID = util.NewID("blk")
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO synopsis_blocks (id, section_id, body, sort_order)
		VALUES ($1, $2, $3, $4)
		RETURNING updated_at
	`, blk.ID, blk.SectionID, blk.Body, blk.SortOrder).Scan(&blk.UpdatedAt)
	if err != nil {
		return Block{}, fmt.Errorf("insert block: %w", err)
	}
	return blk, nil
}

func (s *PostgresStore) UpdateBlockBody(ctx context.Context, blockID, body string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE synopsis_blocks SET body=$2, updated_at=NOW() WHERE id=$1
	`, blockID, body)
	if err != nil {
		return fmt.Errorf("update block: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) DeleteBlock(ctx context.Context, blockID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM synopsis_blocks WHERE id=$1`, blockID)
	if err != nil {
		return fmt.Errorf("delete block: %w", err)
	}
	return requireRow(res)
}

// GetOutline loads a project's chapters with nested sections and blocks
// in display order.
func (s *PostgresStore) GetOutline(ctx context.Context, projectID string) ([]ChapterOutline, error) {
	chapterRows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, title, COALESCE(template_key, ''), sort_order, created_at, updated_at
		FROM synopsis_chapters
		WHERE project_id = $1
		ORDER BY sort_order, created_at
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list chapters: %w", err)
	}
	defer chapterRows.Close()

	outline := make([]ChapterOutline, 0)
	index := map[string]int{}
	for chapterRows.Next() {
		var ch Chapter
		if err := chapterRows.Scan(&ch.ID, &ch.ProjectID, &ch.Title, &ch.TemplateKey,
			&ch.SortOrder, &ch.CreatedAt, &ch.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan chapter: %w", err)
		}
		index[ch.ID] = len(outline)
		outline = append(outline, ChapterOutline{Chapter: ch, Sections: []SectionOutline{}})
	}
	if err := chapterRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chapters: %w", err)
	}
	if len(outline) == 0 {
		return outline, nil
	}

	sectionRows, err := s.db.QueryContext(ctx, `
		SELECT sec.id, sec.chapter_id, sec.title, sec.sort_order
		FROM synopsis_sections sec
		JOIN synopsis_chapters ch ON ch.id = sec.chapter_id
		WHERE ch.project_id = $1
		ORDER BY sec.sort_order, sec.id
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	defer sectionRows.Close()

	sectionIndex := map[string][2]int{}
	for sectionRows.Next() {
		var sec Section
		if err := sectionRows.Scan(&sec.ID, &sec.ChapterID, &sec.Title, &sec.SortOrder); err != nil {
			return nil, fmt.Errorf("scan section: %w", err)
		}
		ci, ok := index[sec.ChapterID]
		if !ok {
			continue
		}
		sectionIndex[sec.ID] = [2]int{ci, len(outline[ci].Sections)}
		outline[ci].Sections = append(outline[ci].Sections, SectionOutline{Section: sec, Blocks: []Block{}})
	}
	if err := sectionRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sections: %w", err)
	}

	blockRows, err := s.db.QueryContext(ctx, `
		SELECT blk.id, blk.section_id, blk.body, blk.sort_order, blk.updated_at
		FROM synopsis_blocks blk
		JOIN synopsis_sections sec ON sec.id = blk.section_id
		JOIN synopsis_chapters ch ON ch.id = sec.chapter_id
		WHERE ch.project_id = $1
		ORDER BY blk.sort_order, blk.id
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	defer blockRows.Close()

	for blockRows.Next() {
		var blk Block
		if err := blockRows.Scan(&blk.ID, &blk.SectionID, &blk.Body, &blk.SortOrder, &blk.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan block: %w", err)
		}
		pos, ok := sectionIndex[blk.SectionID]
		if !ok {
			continue
		}
		sec := &outline[pos[0]].Sections[pos[1]]
		sec.Blocks = append(sec.Blocks, blk)
	}
	if err := blockRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate blocks: %w", err)
	}
	return outline, nil
}
