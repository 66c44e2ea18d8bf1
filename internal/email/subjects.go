package email

import (
	"fmt"
	"time"
)

// Kind selects the subject-line template for an outbound mail.
type Kind string

const (
	KindInvite             Kind = "invite"
	KindInviteReminder     Kind = "invite_reminder"
	KindProtocolReview     Kind = "protocol_review"
	KindProtocolReminder   Kind = "protocol_reminder"
	KindActionListReminder Kind = "action_list_reminder"
)

// FormatDue renders a deadline for subjects and bodies. Dates with no
// clock component stay date-only.
func FormatDue(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 {
		return t.Format("02 Jan 2006")
	}
	return t.Format("02 Jan 2006 15:04")
}

// Subject builds the subject line for a mail kind. due may be nil when
// the kind has no deadline to mention. Unknown kinds fall back to a plain
// branded subject.
func Subject(kind Kind, brand, projectTitle string, due *time.Time) string {
	switch kind {
	case KindInvite:
		if due != nil {
			return fmt.Sprintf("[%s] Invitation to advise on %s (reply by %s)", brand, projectTitle, FormatDue(*due))
		}
		return fmt.Sprintf("[%s] Invitation to advise on %s", brand, projectTitle)
	case KindInviteReminder:
		if due != nil {
			return fmt.Sprintf("[Reminder] %s — please reply by %s", projectTitle, FormatDue(*due))
		}
		return fmt.Sprintf("[Reminder] %s", projectTitle)
	case KindProtocolReview:
		return fmt.Sprintf("[Action requested] Protocol for review — %s", projectTitle)
	case KindProtocolReminder:
		if due != nil {
			return fmt.Sprintf("[Reminder] Protocol feedback due for %s (%s)", projectTitle, FormatDue(*due))
		}
		return fmt.Sprintf("[Reminder] Protocol feedback due for %s", projectTitle)
	case KindActionListReminder:
		if due != nil {
			return fmt.Sprintf("[Reminder] Action list feedback due for %s (%s)", projectTitle, FormatDue(*due))
		}
		return fmt.Sprintf("[Reminder] Action list feedback due for %s", projectTitle)
	default:
		return fmt.Sprintf("[%s] %s", brand, projectTitle)
	}
}

// ReplyTo prefers the acting user's address and falls back to the
// configured sender.
func ReplyTo(actorEmail, fallback string) string {
	if actorEmail != "" {
		return actorEmail
	}
	return fallback
}
