package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"synopsis/api/internal/reminder"
	"synopsis/api/internal/util"
)

func (s *PostgresStore) AddMember(ctx context.Context, member AdvisoryBoardMember) (AdvisoryBoardMember, error) {
	member.ID = util.NewID("abm")
	member.Token = uuid.NewString()
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO advisory_board_members (id, project_id, first_name, last_name, email, affiliation, token)
		VALUES ($1, $2, $3, $4, LOWER($5), $6, $7)
		RETURNING created_at, updated_at
	`, member.ID, member.ProjectID, member.FirstName, member.LastName, member.Email,
		member.Affiliation, member.Token).Scan(&member.CreatedAt, &member.UpdatedAt)
	if err != nil {
		return AdvisoryBoardMember{}, fmt.Errorf("insert member: %w", err)
	}
	return member, nil
}

const memberColumns = `
	id, project_id, first_name, last_name, email, affiliation,
	COALESCE(response, ''), responded_at, token, created_at, updated_at
`

func scanMember(row interface{ Scan(...any) error }) (AdvisoryBoardMember, error) {
	var m AdvisoryBoardMember
	err := row.Scan(&m.ID, &m.ProjectID, &m.FirstName, &m.LastName, &m.Email,
		&m.Affiliation, &m.Response, &m.RespondedAt, &m.Token, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

func (s *PostgresStore) GetMember(ctx context.Context, memberID string) (AdvisoryBoardMember, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+memberColumns+` FROM advisory_board_members WHERE id = $1`, memberID)
	return scanMember(row)
}

func (s *PostgresStore) GetMemberByToken(ctx context.Context, token string) (AdvisoryBoardMember, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+memberColumns+` FROM advisory_board_members WHERE token = $1`, token)
	return scanMember(row)
}

func (s *PostgresStore) ListMembers(ctx context.Context, projectID string) ([]AdvisoryBoardMember, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+memberColumns+` FROM advisory_board_members WHERE project_id = $1 ORDER BY last_name, first_name`,
		projectID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	items := make([]AdvisoryBoardMember, 0)
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) SetMemberResponse(ctx context.Context, memberID, response string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE advisory_board_members
		SET response=$2, responded_at=$3, updated_at=NOW()
		WHERE id=$1
	`, memberID, response, at)
	if err != nil {
		return fmt.Errorf("set member response: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) GetTrackStates(ctx context.Context, memberID string) ([]MemberTrackState, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT member_id, track, sent_at, deadline, reminder_sent_at
		FROM member_track_states
		WHERE member_id = $1
	`, memberID)
	if err != nil {
		return nil, fmt.Errorf("get track states: %w", err)
	}
	defer rows.Close()

	items := make([]MemberTrackState, 0)
	for rows.Next() {
		var st MemberTrackState
		if err := rows.Scan(&st.MemberID, &st.Track, &st.SentAt, &st.Deadline, &st.ReminderSentAt); err != nil {
			return nil, fmt.Errorf("scan track state: %w", err)
		}
		items = append(items, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate track states: %w", err)
	}
	return items, nil
}

// MarkTrackSent records a document send for each member, setting the
// deadline in the same write. Re-sending refreshes sent_at and the
// deadline but leaves an existing reminder flag alone.
func (s *PostgresStore) MarkTrackSent(ctx context.Context, memberIDs []string, track string, at time.Time, deadline *time.Time) error {
	return inTx(ctx, s.db, func(tx *sql.Tx) error {
		for _, memberID := range memberIDs {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO member_track_states (member_id, track, sent_at, deadline)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (member_id, track)
				DO UPDATE SET sent_at=EXCLUDED.sent_at, deadline=EXCLUDED.deadline
			`, memberID, track, at, deadline); err != nil {
				return fmt.Errorf("mark track sent for %s: %w", memberID, err)
			}
		}
		return nil
	})
}

// SetTrackDeadline bulk-updates the deadline on an already-sent track.
func (s *PostgresStore) SetTrackDeadline(ctx context.Context, memberIDs []string, track string, deadline time.Time) error {
	return inTx(ctx, s.db, func(tx *sql.Tx) error {
		for _, memberID := range memberIDs {
			if _, err := tx.ExecContext(ctx, `
				UPDATE member_track_states SET deadline=$3
				WHERE member_id=$1 AND track=$2
			`, memberID, track, deadline); err != nil {
				return fmt.Errorf("set track deadline for %s: %w", memberID, err)
			}
		}
		return nil
	})
}

func (s *PostgresStore) CreateInvitation(ctx context.Context, inv Invitation) (Invitation, error) {
	inv.ID = util.NewID("inv")
	inv.Token = uuid.NewString()
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO advisory_board_invitations (id, project_id, member_id, token, email)
		VALUES ($1, $2, $3, $4, LOWER($5))
		RETURNING created_at
	`, inv.ID, inv.ProjectID, inv.MemberID, inv.Token, inv.Email).Scan(&inv.CreatedAt)
	if err != nil {
		return Invitation{}, fmt.Errorf("insert invitation: %w", err)
	}
	return inv, nil
}

func (s *PostgresStore) GetInvitationByToken(ctx context.Context, token string) (Invitation, error) {
	var inv Invitation
	err := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, member_id, token, email, accepted, responded_at, created_at
		FROM advisory_board_invitations
		WHERE token = $1
	`, token).Scan(&inv.ID, &inv.ProjectID, &inv.MemberID, &inv.Token, &inv.Email,
		&inv.Accepted, &inv.RespondedAt, &inv.CreatedAt)
	if err != nil {
		return Invitation{}, err
	}
	return inv, nil
}

// RecordInvitationReply stores the yes/no answer on the invitation and,
// when the invitation is linked to a member, mirrors it to the member's
// response fields. Replies are idempotent per invitation.
func (s *PostgresStore) RecordInvitationReply(ctx context.Context, invitationID string, accepted bool, at time.Time) error {
	return inTx(ctx, s.db, func(tx *sql.Tx) error {
		var memberID *string
		err := tx.QueryRowContext(ctx, `
			UPDATE advisory_board_invitations
			SET accepted=$2, responded_at=$3
			WHERE id=$1
			RETURNING member_id
		`, invitationID, accepted, at).Scan(&memberID)
		if err != nil {
			return fmt.Errorf("record invitation reply: %w", err)
		}
		if memberID == nil {
			return nil
		}
		response := "N"
		if accepted {
			response = "Y"
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE advisory_board_members
			SET response=$2, responded_at=$3, updated_at=NOW()
			WHERE id=$1
		`, *memberID, response, at); err != nil {
			return fmt.Errorf("mirror reply to member: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) InsertFeedback(ctx context.Context, fb Feedback) (Feedback, error) {
	fb.ID = util.NewID("fbk")
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO feedback (id, project_id, member_id, kind, body)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING submitted_at
	`, fb.ID, fb.ProjectID, fb.MemberID, fb.Kind, fb.Body).Scan(&fb.SubmittedAt)
	if err != nil {
		return Feedback{}, fmt.Errorf("insert feedback: %w", err)
	}
	return fb, nil
}

// ListFeedback returns a project's feedback, optionally filtered by
// kind. Pass "" for all.
func (s *PostgresStore) ListFeedback(ctx context.Context, projectID, kind string) ([]Feedback, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, member_id, kind, body, submitted_at
		FROM feedback
		WHERE project_id = $1 AND ($2 = '' OR kind = $2)
		ORDER BY submitted_at DESC
	`, projectID, kind)
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	defer rows.Close()

	items := make([]Feedback, 0)
	for rows.Next() {
		var fb Feedback
		if err := rows.Scan(&fb.ID, &fb.ProjectID, &fb.MemberID, &fb.Kind, &fb.Body, &fb.SubmittedAt); err != nil {
			return nil, fmt.Errorf("scan feedback: %w", err)
		}
		items = append(items, fb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feedback: %w", err)
	}
	return items, nil
}

// Reminder candidate queries. Each returns members with the track sent,
// a deadline set, and no reminder yet; the track-specific exclusions
// live in the WHERE clauses.

func (s *PostgresStore) reminderCandidates(ctx context.Context, query string) ([]reminder.Candidate, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]reminder.Candidate, 0)
	for rows.Next() {
		var c reminder.Candidate
		if err := rows.Scan(&c.MemberID, &c.ProjectTitle, &c.FirstName, &c.Email, &c.Deadline); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

func (s *PostgresStore) InviteReminderCandidates(ctx context.Context) ([]reminder.Candidate, error) {
	return s.reminderCandidates(ctx, `
		SELECT m.id, p.title, m.first_name, m.email, mts.deadline
		FROM member_track_states mts
		JOIN advisory_board_members m ON m.id = mts.member_id
		JOIN projects p ON p.id = m.project_id
		WHERE mts.track = 'invite'
			AND mts.sent_at IS NOT NULL
			AND mts.deadline IS NOT NULL
			AND mts.reminder_sent_at IS NULL
			AND COALESCE(m.response, '') <> 'N'
	`)
}

func (s *PostgresStore) ProtocolReminderCandidates(ctx context.Context) ([]reminder.Candidate, error) {
	return s.reminderCandidates(ctx, `
		SELECT m.id, p.title, m.first_name, m.email, mts.deadline
		FROM member_track_states mts
		JOIN advisory_board_members m ON m.id = mts.member_id
		JOIN projects p ON p.id = m.project_id
		WHERE mts.track = 'protocol'
			AND mts.sent_at IS NOT NULL
			AND mts.deadline IS NOT NULL
			AND mts.reminder_sent_at IS NULL
			AND m.response = 'Y'
			AND NOT EXISTS(
				SELECT 1 FROM feedback f
				WHERE f.member_id = m.id AND f.kind = 'protocol'
			)
	`)
}

func (s *PostgresStore) ActionListReminderCandidates(ctx context.Context) ([]reminder.Candidate, error) {
	return s.reminderCandidates(ctx, `
		SELECT m.id, p.title, m.first_name, m.email, mts.deadline
		FROM member_track_states mts
		JOIN advisory_board_members m ON m.id = mts.member_id
		JOIN projects p ON p.id = m.project_id
		WHERE mts.track = 'action_list'
			AND mts.sent_at IS NOT NULL
			AND mts.deadline IS NOT NULL
			AND mts.reminder_sent_at IS NULL
			AND m.response = 'Y'
			AND NOT EXISTS(
				SELECT 1 FROM feedback f
				WHERE f.member_id = m.id AND f.kind = 'action_list'
			)
	`)
}

func (s *PostgresStore) markReminderSent(ctx context.Context, memberID, track string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE member_track_states SET reminder_sent_at=$3
		WHERE member_id=$1 AND track=$2
	`, memberID, track, at)
	if err != nil {
		return fmt.Errorf("mark %s reminder: %w", track, err)
	}
	return requireRow(res)
}

func (s *PostgresStore) MarkInviteReminderSent(ctx context.Context, memberID string, at time.Time) error {
	return s.markReminderSent(ctx, memberID, TrackInvite, at)
}

func (s *PostgresStore) MarkProtocolReminderSent(ctx context.Context, memberID string, at time.Time) error {
	return s.markReminderSent(ctx, memberID, TrackProtocol, at)
}

func (s *PostgresStore) MarkActionListReminderSent(ctx context.Context, memberID string, at time.Time) error {
	return s.markReminderSent(ctx, memberID, TrackActionList, at)
}
