package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"synopsis/api/internal/phase"
	"synopsis/api/internal/store"
)

func (s *Service) CreateProject(ctx context.Context, title, description, actorName string) (map[string]any, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required", nil)
	}

	project, err := s.store.CreateProject(ctx, store.Project{
		Title:       title,
		Description: strings.TrimSpace(description),
		CreatedBy:   actorName,
	})
	if err != nil {
		return nil, err
	}
	_ = s.store.AppendChangeLog(ctx, project.ID, "project_created", title, actorName)
	return map[string]any{"project": projectPayload(project, phase.DraftProtocol)}, nil
}

func (s *Service) ListProjects(ctx context.Context) (map[string]any, error) {
	projects, err := s.store.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(projects))
	for _, project := range projects {
		effective, _, err := s.resolvePhase(ctx, project)
		if err != nil {
			return nil, err
		}
		items = append(items, projectPayload(project, effective))
	}
	return map[string]any{"projects": items}, nil
}

func (s *Service) GetProjectDetail(ctx context.Context, projectID string) (map[string]any, error) {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	effective, computed, err := s.resolvePhase(ctx, project)
	if err != nil {
		return nil, err
	}
	counts, err := s.store.CountReferences(ctx, projectID)
	if err != nil {
		return nil, err
	}
	payload := projectPayload(project, effective)
	payload["computedPhase"] = string(computed)
	payload["referenceCounts"] = counts
	return map[string]any{"project": payload}, nil
}

func (s *Service) UpdateProject(ctx context.Context, projectID, title, description, actorName string) (map[string]any, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required", nil)
	}
	if err := s.store.UpdateProject(ctx, projectID, title, strings.TrimSpace(description)); err != nil {
		return nil, err
	}
	_ = s.store.AppendChangeLog(ctx, projectID, "project_updated", title, actorName)
	return s.GetProjectDetail(ctx, projectID)
}

// GetPhase reports the computed phase, the stored override, and the
// phase the two resolve to.
func (s *Service) GetPhase(ctx context.Context, projectID string) (map[string]any, error) {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	effective, computed, err := s.resolvePhase(ctx, project)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"phase":         string(effective),
		"computedPhase": string(computed),
		"manualPhase":   project.ManualPhase,
	}, nil
}

// SetPhaseOverride stores or clears the manual phase. An empty key
// clears the override. Overrides behind the computed phase are rejected
// rather than silently ignored, so the caller learns the override would
// have no effect.
func (s *Service) SetPhaseOverride(ctx context.Context, projectID, key, actorName string) (map[string]any, error) {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	key = strings.TrimSpace(key)
	if key == "" {
		if err := s.store.SetManualPhase(ctx, projectID, ""); err != nil {
			return nil, err
		}
		_ = s.store.AppendChangeLog(ctx, projectID, "phase_override_cleared", "", actorName)
		return s.GetPhase(ctx, projectID)
	}

	manual := phase.Key(key)
	if !phase.Valid(manual) {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", fmt.Sprintf("unknown phase %q", key), nil)
	}

	signals, err := s.store.PhaseSignals(ctx, project.ID)
	if err != nil {
		return nil, err
	}
	computed := phase.Compute(signals)
	if phase.Rank(manual) < phase.Rank(computed) {
		return nil, domainError(http.StatusUnprocessableEntity, "PHASE_BEHIND", fmt.Sprintf("phase %q is behind the computed phase %q", manual, computed), nil)
	}

	if err := s.store.SetManualPhase(ctx, projectID, key); err != nil {
		return nil, err
	}
	_ = s.store.AppendChangeLog(ctx, projectID, "phase_override_set", key, actorName)
	return s.GetPhase(ctx, projectID)
}

func (s *Service) ListChangeLog(ctx context.Context, projectID string) (map[string]any, error) {
	entries, err := s.store.ListChangeLog(ctx, projectID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		items = append(items, map[string]any{
			"id":        entry.ID,
			"action":    entry.Action,
			"details":   entry.Details,
			"actorName": entry.ActorName,
			"createdAt": entry.CreatedAt.Format(time.RFC3339),
		})
	}
	return map[string]any{"entries": items}, nil
}

func (s *Service) AddFunder(ctx context.Context, projectID string, funder store.Funder) (map[string]any, error) {
	if strings.TrimSpace(funder.Organisation) == "" && strings.TrimSpace(funder.LastName) == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "an organisation or a surname is required", nil)
	}
	if funder.StartDate != nil && funder.EndDate != nil && funder.EndDate.Before(*funder.StartDate) {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "funding end date is before the start date", nil)
	}
	funder.ProjectID = projectID
	created, err := s.store.CreateFunder(ctx, funder)
	if err != nil {
		return nil, err
	}
	return map[string]any{"funder": funderPayload(created)}, nil
}

func (s *Service) ListFunders(ctx context.Context, projectID string) (map[string]any, error) {
	funders, err := s.store.ListFunders(ctx, projectID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(funders))
	for _, funder := range funders {
		items = append(items, funderPayload(funder))
	}
	return map[string]any{"funders": items}, nil
}

func (s *Service) DeleteFunder(ctx context.Context, funderID string) error {
	return s.store.DeleteFunder(ctx, funderID)
}

func (s *Service) resolvePhase(ctx context.Context, project store.Project) (effective, computed phase.Key, err error) {
	signals, err := s.store.PhaseSignals(ctx, project.ID)
	if err != nil {
		return "", "", err
	}
	computed = phase.Compute(signals)
	effective = phase.Resolve(computed, phase.Key(project.ManualPhase))
	return effective, computed, nil
}

func projectPayload(project store.Project, effective phase.Key) map[string]any {
	return map[string]any{
		"id":          project.ID,
		"title":       project.Title,
		"description": project.Description,
		"phase":       string(effective),
		"manualPhase": project.ManualPhase,
		"createdBy":   project.CreatedBy,
		"createdAt":   project.CreatedAt.Format(time.RFC3339),
		"updatedAt":   project.UpdatedAt.Format(time.RFC3339),
	}
}

func funderPayload(funder store.Funder) map[string]any {
	payload := map[string]any{
		"id":           funder.ID,
		"projectId":    funder.ProjectID,
		"displayName":  funder.DisplayName(),
		"organisation": funder.Organisation,
		"title":        funder.Title,
		"firstName":    funder.FirstName,
		"lastName":     funder.LastName,
	}
	if funder.StartDate != nil {
		payload["startDate"] = funder.StartDate.Format("2006-01-02")
	}
	if funder.EndDate != nil {
		payload["endDate"] = funder.EndDate.Format("2006-01-02")
	}
	return payload
}
