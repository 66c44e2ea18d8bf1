package store

import "time"

type User struct {
	ID           string
	DisplayName  string
	Email        string
	PasswordHash string
	Role         string
	IsExternal   bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Project struct {
	ID          string
	Title       string
	Description string
	ManualPhase string
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ChangeLogEntry is an append-only audit row for notable project
// mutations. It is separate from the phase override itself.
type ChangeLogEntry struct {
	ID        int64
	ProjectID string
	Action    string
	Details   string
	ActorName string
	CreatedAt time.Time
}

type Funder struct {
	ID           string
	ProjectID    string
	Organisation string
	Title        string
	FirstName    string
	LastName     string
	StartDate    *time.Time
	EndDate      *time.Time
	CreatedAt    time.Time
}

// DisplayName prefers the organisation, then a personal name, then a
// generic label.
func (f Funder) DisplayName() string {
	if f.Organisation != "" {
		return f.Organisation
	}
	name := ""
	if f.Title != "" {
		name = f.Title
	}
	if f.FirstName != "" {
		if name != "" {
			name += " "
		}
		name += f.FirstName
	}
	if f.LastName != "" {
		if name != "" {
			name += " "
		}
		name += f.LastName
	}
	if name != "" {
		return name
	}
	return "(Funder)"
}

// Document interaction tracks for an advisory board member.
const (
	TrackInvite     = "invite"
	TrackProtocol   = "protocol"
	TrackActionList = "action_list"
)

type AdvisoryBoardMember struct {
	ID          string
	ProjectID   string
	FirstName   string
	LastName    string
	Email       string
	Affiliation string
	// Response is "" until the member replies, then "Y" or "N".
	Response    string
	RespondedAt *time.Time
	// Token addresses public feedback submissions for this member.
	Token     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MemberTrackState is the per-document interaction state for one member,
// one row per track instead of flag columns on the member.
type MemberTrackState struct {
	MemberID       string
	Track          string
	SentAt         *time.Time
	Deadline       *time.Time
	ReminderSentAt *time.Time
}

type Invitation struct {
	ID        string
	ProjectID string
	MemberID  *string
	Token     string
	Email     string
	// Accepted is nil while the invitation is pending.
	Accepted    *bool
	RespondedAt *time.Time
	CreatedAt   time.Time
}

type Feedback struct {
	ID          string
	ProjectID   string
	MemberID    string
	Kind        string // protocol or action_list
	Body        string
	SubmittedAt time.Time
}

type ReferenceBatch struct {
	ID           string
	ProjectID    string
	FileName     string
	Format       string
	RecordCount  int
	SkippedCount int
	CreatedBy    string
	CreatedAt    time.Time
}

// Screening statuses for a reference.
const (
	ScreeningPending  = "pending"
	ScreeningIncluded = "included"
	ScreeningExcluded = "excluded"
)

type Reference struct {
	ID        string
	ProjectID string
	BatchID   string
	Title     string
	Authors   []string
	Year      string
	Journal   string
	Volume    string
	Issue     string
	Pages     string
	DOI       string
	URL       string
	Abstract  string
	HashKey   string
	Screening string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Document kinds and stages for the revision manager.
const (
	DocProtocol   = "protocol"
	DocActionList = "action_list"

	StageDraft = "draft"
	StageFinal = "final"
)

type Document struct {
	ID                string
	ProjectID         string
	Kind              string
	Stage             string
	PrimaryFileKey    string
	FinalizedReason   string
	FinalizedAt       *time.Time
	CurrentRevisionID *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Revision is immutable once created except for stage relabeling.
type Revision struct {
	ID         string
	DocumentID string
	FileKey    string
	FileName   string
	Stage      string
	UploadedBy string
	UploadedAt time.Time
}

type Chapter struct {
	ID          string
	ProjectID   string
	Title       string
	TemplateKey string
	SortOrder   int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Section struct {
	ID        string
	ChapterID string
	Title     string
	SortOrder int
}

type Block struct {
	ID        string
	SectionID string
	Body      string
	SortOrder int
	UpdatedAt time.Time
}

// ChapterOutline is a chapter with its nested content, used by the
// synopsis views and the export pipeline.
type ChapterOutline struct {
	Chapter
	Sections []SectionOutline
}

type SectionOutline struct {
	Section
	Blocks []Block
}
