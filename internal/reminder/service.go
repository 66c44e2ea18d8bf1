package reminder

import (
	"context"
	"fmt"
	"time"

	"synopsis/api/internal/email"
)

// Candidate is a member row eligible for one reminder track. The store
// queries already exclude declined members, members without an
// acceptance, members who submitted feedback, and members already
// reminded; the sweep only applies the deadline window.
type Candidate struct {
	MemberID     string
	ProjectTitle string
	FirstName    string
	Email        string
	Deadline     time.Time
}

// Store is the slice of persistence the sweep needs.
type Store interface {
	InviteReminderCandidates(ctx context.Context) ([]Candidate, error)
	ProtocolReminderCandidates(ctx context.Context) ([]Candidate, error)
	ActionListReminderCandidates(ctx context.Context) ([]Candidate, error)
	MarkInviteReminderSent(ctx context.Context, memberID string, at time.Time) error
	MarkProtocolReminderSent(ctx context.Context, memberID string, at time.Time) error
	MarkActionListReminderSent(ctx context.Context, memberID string, at time.Time) error
}

// Sender sends a plain text mail.
type Sender interface {
	SendEmail(to []string, subject, body, replyTo string) error
}

// Counts reports how many reminders each track sent.
type Counts struct {
	Invites     int `json:"invites"`
	Protocol    int `json:"protocol"`
	ActionLists int `json:"actionLists"`
}

// Sweeper runs the periodic reminder pass. It is safe to re-run: members
// are marked reminded after each send, so a same-day repeat is a no-op.
type Sweeper struct {
	store    Store
	sender   Sender
	brand    string
	from     string
	leadDays int
}

func NewSweeper(store Store, sender Sender, brand, from string, leadDays int) *Sweeper {
	return &Sweeper{store: store, sender: sender, brand: brand, from: from, leadDays: leadDays}
}

func greeting(firstName string) string {
	if firstName == "" {
		return "colleague"
	}
	return firstName
}

func (s *Sweeper) due(c Candidate, today time.Time) bool {
	return SameDate(MinusBusinessDays(c.Deadline, s.leadDays), today)
}

// Sweep runs all three tracks for the given day and returns per-track
// counts. A failed send aborts the sweep; already-sent reminders stay
// marked, so the next run picks up where this one stopped.
func (s *Sweeper) Sweep(ctx context.Context, today time.Time) (Counts, error) {
	var counts Counts

	invites, err := s.store.InviteReminderCandidates(ctx)
	if err != nil {
		return counts, fmt.Errorf("invite candidates: %w", err)
	}
	for _, c := range invites {
		if !s.due(c, today) {
			continue
		}
		subject := email.Subject(email.KindInviteReminder, s.brand, c.ProjectTitle, &c.Deadline)
		body := fmt.Sprintf(
			"Dear %s,\n\nThis is a reminder that your response for '%s' is due by %s.\n\nThank you.",
			greeting(c.FirstName), c.ProjectTitle, email.FormatDue(c.Deadline),
		)
		if err := s.sender.SendEmail([]string{c.Email}, subject, body, s.from); err != nil {
			return counts, fmt.Errorf("send invite reminder to %s: %w", c.Email, err)
		}
		if err := s.store.MarkInviteReminderSent(ctx, c.MemberID, time.Now()); err != nil {
			return counts, fmt.Errorf("mark invite reminder for %s: %w", c.MemberID, err)
		}
		counts.Invites++
	}

	protocols, err := s.store.ProtocolReminderCandidates(ctx)
	if err != nil {
		return counts, fmt.Errorf("protocol candidates: %w", err)
	}
	for _, c := range protocols {
		if !s.due(c, today) {
			continue
		}
		subject := email.Subject(email.KindProtocolReminder, s.brand, c.ProjectTitle, &c.Deadline)
		body := fmt.Sprintf(
			"Dear %s,\n\nA reminder that protocol feedback for '%s' is due by %s.\n\nThank you.",
			greeting(c.FirstName), c.ProjectTitle, email.FormatDue(c.Deadline),
		)
		if err := s.sender.SendEmail([]string{c.Email}, subject, body, s.from); err != nil {
			return counts, fmt.Errorf("send protocol reminder to %s: %w", c.Email, err)
		}
		if err := s.store.MarkProtocolReminderSent(ctx, c.MemberID, time.Now()); err != nil {
			return counts, fmt.Errorf("mark protocol reminder for %s: %w", c.MemberID, err)
		}
		counts.Protocol++
	}

	actionLists, err := s.store.ActionListReminderCandidates(ctx)
	if err != nil {
		return counts, fmt.Errorf("action list candidates: %w", err)
	}
	for _, c := range actionLists {
		if !s.due(c, today) {
			continue
		}
		subject := email.Subject(email.KindActionListReminder, s.brand, c.ProjectTitle, &c.Deadline)
		body := fmt.Sprintf(
			"Dear %s,\n\nA reminder that action list feedback for '%s' is due by %s.\n\nThank you.",
			greeting(c.FirstName), c.ProjectTitle, email.FormatDue(c.Deadline),
		)
		if err := s.sender.SendEmail([]string{c.Email}, subject, body, s.from); err != nil {
			return counts, fmt.Errorf("send action list reminder to %s: %w", c.Email, err)
		}
		if err := s.store.MarkActionListReminderSent(ctx, c.MemberID, time.Now()); err != nil {
			return counts, fmt.Errorf("mark action list reminder for %s: %w", c.MemberID, err)
		}
		counts.ActionLists++
	}

	return counts, nil
}
