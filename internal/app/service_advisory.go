package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"synopsis/api/internal/email"
	"synopsis/api/internal/store"
)

func (s *Service) AddMember(ctx context.Context, projectID string, member store.AdvisoryBoardMember) (map[string]any, error) {
	member.Email = strings.TrimSpace(member.Email)
	if member.Email == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "email is required", nil)
	}
	if strings.TrimSpace(member.LastName) == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "surname is required", nil)
	}
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	member.ProjectID = projectID
	created, err := s.store.AddMember(ctx, member)
	if err != nil {
		return nil, err
	}
	return map[string]any{"member": memberPayload(created, nil)}, nil
}

func (s *Service) ListMembers(ctx context.Context, projectID string) (map[string]any, error) {
	members, err := s.store.ListMembers(ctx, projectID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(members))
	for _, member := range members {
		states, err := s.store.GetTrackStates(ctx, member.ID)
		if err != nil {
			return nil, err
		}
		items = append(items, memberPayload(member, states))
	}
	return map[string]any{"members": items}, nil
}

func (s *Service) GetMemberDetail(ctx context.Context, memberID string) (map[string]any, error) {
	member, err := s.store.GetMember(ctx, memberID)
	if err != nil {
		return nil, err
	}
	states, err := s.store.GetTrackStates(ctx, member.ID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"member": memberPayload(member, states)}, nil
}

// SetMemberResponse records a reply that arrived outside the invitation
// link, for example by phone or a direct email.
func (s *Service) SetMemberResponse(ctx context.Context, memberID, response string, actor Session) (map[string]any, error) {
	if response != "Y" && response != "N" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "response must be 'Y' or 'N'", nil)
	}
	member, err := s.store.GetMember(ctx, memberID)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	if err := s.store.SetMemberResponse(ctx, memberID, response, now); err != nil {
		return nil, err
	}
	_ = s.store.AppendChangeLog(ctx, member.ProjectID, "member_response_recorded",
		fmt.Sprintf("%s %s: %s", member.FirstName, member.LastName, response), actor.UserName)

	member.Response = response
	member.RespondedAt = &now
	states, err := s.store.GetTrackStates(ctx, memberID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"member": memberPayload(member, states)}, nil
}

// SendInvitations creates one single-use invitation per member and mails
// the accept and decline links. Members already marked on the invite
// track are sent again; resending refreshes the sent date and deadline.
func (s *Service) SendInvitations(ctx context.Context, projectID string, memberIDs []string, deadline *time.Time, actor Session) (map[string]any, error) {
	if len(memberIDs) == 0 {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "memberIds is required", nil)
	}
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	subject := email.Subject(email.KindInvite, s.cfg.Brand, project.Title, deadline)
	replyTo := s.replyAddress(ctx, actor)
	sent := make([]string, 0, len(memberIDs))
	for _, memberID := range memberIDs {
		member, err := s.store.GetMember(ctx, memberID)
		if err != nil {
			return nil, err
		}
		if member.ProjectID != projectID {
			return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Member does not belong to this project", nil)
		}

		memberID := member.ID
		inv, err := s.store.CreateInvitation(ctx, store.Invitation{
			ProjectID: projectID,
			MemberID:  &memberID,
			Email:     member.Email,
		})
		if err != nil {
			return nil, err
		}

		if s.SMTPConfigured() {
			body := inviteBody(member.FirstName, project.Title, s.cfg.BaseURL, inv.Token, deadline)
			if err := s.mailer.SendEmail([]string{member.Email}, subject, body, replyTo); err != nil {
				return nil, fmt.Errorf("send invitation to %s: %w", member.Email, err)
			}
		}
		sent = append(sent, member.ID)
	}

	if err := s.store.MarkTrackSent(ctx, sent, store.TrackInvite, time.Now(), deadline); err != nil {
		return nil, err
	}
	_ = s.store.AppendChangeLog(ctx, projectID, "invitations_sent", fmt.Sprintf("%d member(s)", len(sent)), actor.UserName)

	return map[string]any{"sent": len(sent), "emailSent": s.SMTPConfigured()}, nil
}

// SendDocumentForReview distributes the protocol or action list to
// accepted members. Members who declined or have not replied are
// skipped, not failed.
func (s *Service) SendDocumentForReview(ctx context.Context, projectID, track string, memberIDs []string, deadline *time.Time, actor Session) (map[string]any, error) {
	if track != store.TrackProtocol && track != store.TrackActionList {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", fmt.Sprintf("unknown review track %q", track), nil)
	}
	if len(memberIDs) == 0 {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "memberIds is required", nil)
	}
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	kind := email.Kind(track)
	if track == store.TrackProtocol {
		kind = email.KindProtocolReview
	}
	subject := email.Subject(kind, s.cfg.Brand, project.Title, deadline)
	replyTo := s.replyAddress(ctx, actor)

	sent := make([]string, 0, len(memberIDs))
	skipped := 0
	for _, memberID := range memberIDs {
		member, err := s.store.GetMember(ctx, memberID)
		if err != nil {
			return nil, err
		}
		if member.ProjectID != projectID {
			return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Member does not belong to this project", nil)
		}
		if member.Response != "Y" {
			skipped++
			continue
		}

		if s.SMTPConfigured() {
			body := reviewBody(member.FirstName, project.Title, track, s.cfg.BaseURL, member.Token, deadline)
			if err := s.mailer.SendEmail([]string{member.Email}, subject, body, replyTo); err != nil {
				return nil, fmt.Errorf("send %s review to %s: %w", track, member.Email, err)
			}
		}
		sent = append(sent, member.ID)
	}

	if len(sent) > 0 {
		if err := s.store.MarkTrackSent(ctx, sent, track, time.Now(), deadline); err != nil {
			return nil, err
		}
	}
	_ = s.store.AppendChangeLog(ctx, projectID, track+"_sent", fmt.Sprintf("%d member(s)", len(sent)), actor.UserName)

	return map[string]any{"sent": len(sent), "skipped": skipped, "emailSent": s.SMTPConfigured()}, nil
}

// SetTrackDeadline moves the reply deadline for a set of members on one
// track without resending anything.
func (s *Service) SetTrackDeadline(ctx context.Context, projectID string, memberIDs []string, track string, deadline time.Time) (map[string]any, error) {
	if track != store.TrackInvite && track != store.TrackProtocol && track != store.TrackActionList {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", fmt.Sprintf("unknown track %q", track), nil)
	}
	if len(memberIDs) == 0 {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "memberIds is required", nil)
	}
	for _, memberID := range memberIDs {
		member, err := s.store.GetMember(ctx, memberID)
		if err != nil {
			return nil, err
		}
		if member.ProjectID != projectID {
			return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Member does not belong to this project", nil)
		}
	}
	if err := s.store.SetTrackDeadline(ctx, memberIDs, track, deadline); err != nil {
		return nil, err
	}
	return map[string]any{"updated": len(memberIDs)}, nil
}

// InvitationReply records a yes or no for an invitation token. The
// first answer wins; repeated calls report the stored answer instead of
// changing it.
func (s *Service) InvitationReply(ctx context.Context, token string, accepted bool) (map[string]any, error) {
	inv, err := s.store.GetInvitationByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if inv.Accepted != nil {
		return map[string]any{
			"ok":               true,
			"accepted":         *inv.Accepted,
			"alreadyResponded": true,
		}, nil
	}
	if err := s.store.RecordInvitationReply(ctx, inv.ID, accepted, time.Now()); err != nil {
		return nil, err
	}
	return map[string]any{"ok": true, "accepted": accepted, "alreadyResponded": false}, nil
}

// FeedbackContext resolves a member token to the details a feedback
// form needs. The token is the member's, not an invitation's.
func (s *Service) FeedbackContext(ctx context.Context, memberToken string) (map[string]any, error) {
	member, err := s.store.GetMemberByToken(ctx, memberToken)
	if err != nil {
		return nil, err
	}
	project, err := s.store.GetProject(ctx, member.ProjectID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"projectTitle": project.Title,
		"firstName":    member.FirstName,
		"lastName":     member.LastName,
	}, nil
}

func (s *Service) SubmitFeedback(ctx context.Context, memberToken, kind, body string) (map[string]any, error) {
	if kind != store.DocProtocol && kind != store.DocActionList {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", fmt.Sprintf("unknown feedback kind %q", kind), nil)
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "feedback body is required", nil)
	}
	member, err := s.store.GetMemberByToken(ctx, memberToken)
	if err != nil {
		return nil, err
	}
	fb, err := s.store.InsertFeedback(ctx, store.Feedback{
		ProjectID: member.ProjectID,
		MemberID:  member.ID,
		Kind:      kind,
		Body:      body,
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"feedback": feedbackPayload(fb)}, nil
}

func (s *Service) ListFeedback(ctx context.Context, projectID, kind string) (map[string]any, error) {
	if kind != "" && kind != store.DocProtocol && kind != store.DocActionList {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", fmt.Sprintf("unknown feedback kind %q", kind), nil)
	}
	items, err := s.store.ListFeedback(ctx, projectID, kind)
	if err != nil {
		return nil, err
	}
	payloads := make([]map[string]any, 0, len(items))
	for _, fb := range items {
		payloads = append(payloads, feedbackPayload(fb))
	}
	return map[string]any{"feedback": payloads}, nil
}

func inviteBody(firstName, projectTitle, baseURL, token string, deadline *time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s,\n\n", greeting(firstName))
	fmt.Fprintf(&b, "You are invited to join the advisory board for '%s'.\n\n", projectTitle)
	fmt.Fprintf(&b, "To accept: %s/api/invite/%s/yes\n", baseURL, token)
	fmt.Fprintf(&b, "To decline: %s/api/invite/%s/no\n", baseURL, token)
	if deadline != nil {
		fmt.Fprintf(&b, "\nPlease reply by %s.\n", email.FormatDue(*deadline))
	}
	b.WriteString("\nThank you.")
	return b.String()
}

func reviewBody(firstName, projectTitle, track, baseURL, memberToken string, deadline *time.Time) string {
	label := "draft protocol"
	if track == store.TrackActionList {
		label = "action list"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s,\n\n", greeting(firstName))
	fmt.Fprintf(&b, "The %s for '%s' is ready for your review.\n\n", label, projectTitle)
	fmt.Fprintf(&b, "Submit your feedback at %s/api/feedback/%s\n", baseURL, memberToken)
	if deadline != nil {
		fmt.Fprintf(&b, "\nPlease respond by %s.\n", email.FormatDue(*deadline))
	}
	b.WriteString("\nThank you.")
	return b.String()
}

// replyAddress prefers the acting user's own address so replies reach a
// person, falling back to the configured sender.
func (s *Service) replyAddress(ctx context.Context, actor Session) string {
	if actor.UserID != "" {
		if user, err := s.store.GetUserByID(ctx, actor.UserID); err == nil && user.Email != "" {
			return user.Email
		}
	}
	return s.mailer.From()
}

func greeting(firstName string) string {
	if strings.TrimSpace(firstName) == "" {
		return "colleague"
	}
	return firstName
}

func memberPayload(member store.AdvisoryBoardMember, states []store.MemberTrackState) map[string]any {
	payload := map[string]any{
		"id":          member.ID,
		"projectId":   member.ProjectID,
		"firstName":   member.FirstName,
		"lastName":    member.LastName,
		"email":       member.Email,
		"affiliation": member.Affiliation,
		"response":    member.Response,
	}
	if member.RespondedAt != nil {
		payload["respondedAt"] = member.RespondedAt.Format(time.RFC3339)
	}
	if states != nil {
		tracks := make(map[string]map[string]any, len(states))
		for _, st := range states {
			track := map[string]any{}
			if st.SentAt != nil {
				track["sentAt"] = st.SentAt.Format(time.RFC3339)
			}
			if st.Deadline != nil {
				track["deadline"] = st.Deadline.Format(time.RFC3339)
			}
			if st.ReminderSentAt != nil {
				track["reminderSentAt"] = st.ReminderSentAt.Format(time.RFC3339)
			}
			tracks[st.Track] = track
		}
		payload["tracks"] = tracks
	}
	return payload
}

func feedbackPayload(fb store.Feedback) map[string]any {
	return map[string]any{
		"id":          fb.ID,
		"projectId":   fb.ProjectID,
		"memberId":    fb.MemberID,
		"kind":        fb.Kind,
		"body":        fb.Body,
		"submittedAt": fb.SubmittedAt.Format(time.RFC3339),
	}
}
