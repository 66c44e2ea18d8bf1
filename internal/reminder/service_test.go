package reminder

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type fakeStore struct {
	inviteCandidates     []Candidate
	protocolCandidates   []Candidate
	actionListCandidates []Candidate

	markedInvites     []string
	markedProtocols   []string
	markedActionLists []string
}

func (f *fakeStore) InviteReminderCandidates(ctx context.Context) ([]Candidate, error) {
	return f.inviteCandidates, nil
}

func (f *fakeStore) ProtocolReminderCandidates(ctx context.Context) ([]Candidate, error) {
	return f.protocolCandidates, nil
}

func (f *fakeStore) ActionListReminderCandidates(ctx context.Context) ([]Candidate, error) {
	return f.actionListCandidates, nil
}

func (f *fakeStore) MarkInviteReminderSent(ctx context.Context, memberID string, at time.Time) error {
	f.markedInvites = append(f.markedInvites, memberID)
	return nil
}

func (f *fakeStore) MarkProtocolReminderSent(ctx context.Context, memberID string, at time.Time) error {
	f.markedProtocols = append(f.markedProtocols, memberID)
	return nil
}

func (f *fakeStore) MarkActionListReminderSent(ctx context.Context, memberID string, at time.Time) error {
	f.markedActionLists = append(f.markedActionLists, memberID)
	return nil
}

type sentMail struct {
	to      []string
	subject string
	body    string
	replyTo string
}

type fakeSender struct {
	sent []sentMail
	fail bool
}

func (f *fakeSender) SendEmail(to []string, subject, body, replyTo string) error {
	if f.fail {
		return errors.New("smtp down")
	}
	f.sent = append(f.sent, sentMail{to: to, subject: subject, body: body, replyTo: replyTo})
	return nil
}

func TestSweepSendsWhenLeadWindowMatches(t *testing.T) {
	// Deadline Friday 2025-01-10, lead 2 business days, sweep on Wednesday.
	deadline := date(2025, time.January, 10)
	store := &fakeStore{
		inviteCandidates: []Candidate{{
			MemberID:     "abm_1",
			ProjectTitle: "Coastal Restoration",
			FirstName:    "Dana",
			Email:        "dana@example.com",
			Deadline:     deadline,
		}},
	}
	sender := &fakeSender{}
	sweeper := NewSweeper(store, sender, "Conservation Evidence", "noreply@example.com", 2)

	counts, err := sweeper.Sweep(context.Background(), date(2025, time.January, 8))
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if counts.Invites != 1 || counts.Protocol != 0 || counts.ActionLists != 0 {
		t.Fatalf("unexpected counts: %+v", counts)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected 1 mail, got %d", len(sender.sent))
	}
	mail := sender.sent[0]
	if mail.subject != "[Reminder] Coastal Restoration — please reply by 10 Jan 2025" {
		t.Fatalf("unexpected subject %q", mail.subject)
	}
	if !strings.Contains(mail.body, "Dear Dana,") {
		t.Fatalf("body should greet by first name: %q", mail.body)
	}
	if len(store.markedInvites) != 1 || store.markedInvites[0] != "abm_1" {
		t.Fatalf("member not marked: %v", store.markedInvites)
	}
}

func TestSweepSkipsOutsideLeadWindow(t *testing.T) {
	store := &fakeStore{
		inviteCandidates: []Candidate{{
			MemberID:     "abm_1",
			ProjectTitle: "Coastal Restoration",
			Email:        "dana@example.com",
			Deadline:     date(2025, time.January, 10),
		}},
	}
	sender := &fakeSender{}
	sweeper := NewSweeper(store, sender, "Conservation Evidence", "noreply@example.com", 2)

	counts, err := sweeper.Sweep(context.Background(), date(2025, time.January, 7))
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if counts.Invites != 0 || len(sender.sent) != 0 || len(store.markedInvites) != 0 {
		t.Fatalf("nothing should fire a day early")
	}
}

func TestSweepCoversAllThreeTracks(t *testing.T) {
	deadline := date(2025, time.January, 10)
	store := &fakeStore{
		inviteCandidates:     []Candidate{{MemberID: "abm_1", ProjectTitle: "P", Email: "a@example.com", Deadline: deadline}},
		protocolCandidates:   []Candidate{{MemberID: "abm_2", ProjectTitle: "P", Email: "b@example.com", Deadline: deadline}},
		actionListCandidates: []Candidate{{MemberID: "abm_3", ProjectTitle: "P", Email: "c@example.com", Deadline: deadline}},
	}
	sender := &fakeSender{}
	sweeper := NewSweeper(store, sender, "Conservation Evidence", "noreply@example.com", 2)

	counts, err := sweeper.Sweep(context.Background(), date(2025, time.January, 8))
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if counts.Invites != 1 || counts.Protocol != 1 || counts.ActionLists != 1 {
		t.Fatalf("unexpected counts: %+v", counts)
	}
	if len(store.markedProtocols) != 1 || len(store.markedActionLists) != 1 {
		t.Fatalf("protocol and action list members should be marked")
	}
	if !strings.Contains(sender.sent[1].subject, "Protocol feedback due") {
		t.Fatalf("unexpected protocol subject %q", sender.sent[1].subject)
	}
	if !strings.Contains(sender.sent[2].subject, "Action list feedback due") {
		t.Fatalf("unexpected action list subject %q", sender.sent[2].subject)
	}
}

func TestSweepGreetsUnnamedMemberAsColleague(t *testing.T) {
	store := &fakeStore{
		inviteCandidates: []Candidate{{
			MemberID:     "abm_1",
			ProjectTitle: "P",
			Email:        "a@example.com",
			Deadline:     date(2025, time.January, 10),
		}},
	}
	sender := &fakeSender{}
	sweeper := NewSweeper(store, sender, "Conservation Evidence", "noreply@example.com", 2)

	if _, err := sweeper.Sweep(context.Background(), date(2025, time.January, 8)); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if !strings.Contains(sender.sent[0].body, "Dear colleague,") {
		t.Fatalf("expected fallback greeting, got %q", sender.sent[0].body)
	}
}

func TestSweepSendFailureAborts(t *testing.T) {
	store := &fakeStore{
		inviteCandidates: []Candidate{{
			MemberID:     "abm_1",
			ProjectTitle: "P",
			Email:        "a@example.com",
			Deadline:     date(2025, time.January, 10),
		}},
	}
	sender := &fakeSender{fail: true}
	sweeper := NewSweeper(store, sender, "Conservation Evidence", "noreply@example.com", 2)

	if _, err := sweeper.Sweep(context.Background(), date(2025, time.January, 8)); err == nil {
		t.Fatalf("expected error from failed send")
	}
	if len(store.markedInvites) != 0 {
		t.Fatalf("failed send must not mark the member")
	}
}
