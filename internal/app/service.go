package app

import (
	"context"
	"io"
	"time"

	"synopsis/api/internal/auth"
	"synopsis/api/internal/authpw"
	"synopsis/api/internal/config"
	"synopsis/api/internal/export"
	"synopsis/api/internal/phase"
	"synopsis/api/internal/rbac"
	"synopsis/api/internal/reminder"
	"synopsis/api/internal/search"
	"synopsis/api/internal/session"
	"synopsis/api/internal/store"
	"synopsis/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	Role         string
	IsExternal   bool
	JTI          string
	ExpiresAt    time.Time
}

// dataStore is the persistence surface the service depends on. It is
// satisfied by store.PostgresStore and faked in tests.
type dataStore interface {
	Ping(ctx context.Context) error
	EnsureRoleGroups(ctx context.Context) error

	CreateUser(ctx context.Context, user store.User) (store.User, error)
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	GetUserByID(ctx context.Context, userID string) (store.User, error)

	CreateProject(ctx context.Context, project store.Project) (store.Project, error)
	GetProject(ctx context.Context, projectID string) (store.Project, error)
	ListProjects(ctx context.Context) ([]store.Project, error)
	UpdateProject(ctx context.Context, projectID, title, description string) error
	SetManualPhase(ctx context.Context, projectID, key string) error
	PhaseSignals(ctx context.Context, projectID string) (phase.Signals, error)
	AppendChangeLog(ctx context.Context, projectID, action, details, actorName string) error
	ListChangeLog(ctx context.Context, projectID string) ([]store.ChangeLogEntry, error)
	CreateFunder(ctx context.Context, funder store.Funder) (store.Funder, error)
	ListFunders(ctx context.Context, projectID string) ([]store.Funder, error)
	DeleteFunder(ctx context.Context, funderID string) error

	AddMember(ctx context.Context, member store.AdvisoryBoardMember) (store.AdvisoryBoardMember, error)
	GetMember(ctx context.Context, memberID string) (store.AdvisoryBoardMember, error)
	GetMemberByToken(ctx context.Context, token string) (store.AdvisoryBoardMember, error)
	ListMembers(ctx context.Context, projectID string) ([]store.AdvisoryBoardMember, error)
	GetTrackStates(ctx context.Context, memberID string) ([]store.MemberTrackState, error)
	SetMemberResponse(ctx context.Context, memberID, response string, at time.Time) error
	MarkTrackSent(ctx context.Context, memberIDs []string, track string, at time.Time, deadline *time.Time) error
	SetTrackDeadline(ctx context.Context, memberIDs []string, track string, deadline time.Time) error
	CreateInvitation(ctx context.Context, inv store.Invitation) (store.Invitation, error)
	GetInvitationByToken(ctx context.Context, token string) (store.Invitation, error)
	RecordInvitationReply(ctx context.Context, invitationID string, accepted bool, at time.Time) error
	InsertFeedback(ctx context.Context, fb store.Feedback) (store.Feedback, error)
	ListFeedback(ctx context.Context, projectID, kind string) ([]store.Feedback, error)

	ImportReferences(ctx context.Context, projectID, fileName, format, createdBy string, refs []store.Reference) (store.ReferenceBatch, []store.Reference, error)
	ListBatches(ctx context.Context, projectID string) ([]store.ReferenceBatch, error)
	GetReference(ctx context.Context, referenceID string) (store.Reference, error)
	ListReferences(ctx context.Context, projectID, screening string) ([]store.Reference, error)
	SetScreeningStatus(ctx context.Context, referenceID, screening string) error
	CountReferences(ctx context.Context, projectID string) (map[string]int, error)

	EnsureDocument(ctx context.Context, projectID, kind string) (store.Document, error)
	GetDocument(ctx context.Context, documentID string) (store.Document, error)
	GetDocumentByKind(ctx context.Context, projectID, kind string) (store.Document, error)
	InsertRevision(ctx context.Context, rev store.Revision) (store.Revision, error)
	GetRevision(ctx context.Context, revisionID string) (store.Revision, error)
	ListRevisions(ctx context.Context, documentID string) ([]store.Revision, error)
	SetCurrentRevision(ctx context.Context, documentID, revisionID string) error
	FinalizeDocument(ctx context.Context, documentID, revisionID, reason, primaryFileKey string, at time.Time) error
	BackToDraft(ctx context.Context, documentID string) error
	DeleteRevision(ctx context.Context, revisionID string) (store.Revision, error)

	CreateChapter(ctx context.Context, ch store.Chapter) (store.Chapter, error)
	CreateSection(ctx context.Context, sec store.Section) (store.Section, error)
	CreateBlock(ctx context.Context, blk store.Block) (store.Block, error)
	UpdateBlockBody(ctx context.Context, blockID, body string) error
	DeleteBlock(ctx context.Context, blockID string) error
	GetOutline(ctx context.Context, projectID string) ([]store.ChapterOutline, error)
}

type fileStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	CheckFinalizable(ctx context.Context, key string) error
	Copy(ctx context.Context, srcKey, dstKey string) error
	Remove(ctx context.Context, key string) error
}

type mailSender interface {
	IsConfigured() bool
	From() string
	SendEmail(to []string, subject, body, replyTo string) error
}

type searchIndex interface {
	Search(q search.Query) search.Response
	IndexReference(ref search.ReferenceRecord)
	IndexReferences(refs []search.ReferenceRecord)
	DeleteReference(id string)
	ReindexAllFromPG(ctx context.Context)
}

type exporter interface {
	Export(ctx context.Context, req export.Request) (*export.Result, error)
}

type reminderSweeper interface {
	Sweep(ctx context.Context, today time.Time) (reminder.Counts, error)
}

type Service struct {
	cfg      config.Config
	store    dataStore
	sessions session.Store
	files    fileStore
	search   searchIndex
	mailer   mailSender
	exporter exporter
	sweeper  reminderSweeper
	authSvc  *authpw.Service
}

func New(cfg config.Config, st dataStore, sessions session.Store, files fileStore, idx searchIndex, mailer mailSender, exp exporter, sweeper reminderSweeper) *Service {
	return &Service{
		cfg:      cfg,
		store:    st,
		sessions: sessions,
		files:    files,
		search:   idx,
		mailer:   mailer,
		exporter: exp,
		sweeper:  sweeper,
		authSvc:  authpw.NewService(st),
	}
}

// Bootstrap runs the startup tasks that need the database: role group
// seeding and a background search reindex so Meilisearch catches up with
// rows written while it was down.
func (s *Service) Bootstrap(ctx context.Context) error {
	if err := s.store.EnsureRoleGroups(ctx); err != nil {
		return err
	}
	if s.search != nil {
		go s.search.ReindexAllFromPG(context.Background())
	}
	return nil
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) AuthPasswordService() *authpw.Service {
	return s.authSvc
}

func (s *Service) SMTPConfigured() bool {
	return s.mailer != nil && s.mailer.IsConfigured()
}

func (s *Service) Can(role string, action rbac.Action) bool {
	return rbac.Can(rbac.Role(role), action)
}

func (s *Service) CreateSession(ctx context.Context, userID string) (Session, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	userID, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:  user.ID,
		Name: user.DisplayName,
		Role: user.Role,
		JTI:  jti,
		Exp:  expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user.ID, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		Role:         user.Role,
		IsExternal:   user.IsExternal,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		return Session{}, err
	}
	return Session{
		Token:      token,
		UserID:     user.ID,
		UserName:   user.DisplayName,
		Role:       user.Role,
		IsExternal: user.IsExternal,
		JTI:        claims.JTI,
		ExpiresAt:  time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, session Session, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
}

// RunReminderSweep fires the due-date reminder pass on demand. The same
// sweeper runs from the remind command on a schedule.
func (s *Service) RunReminderSweep(ctx context.Context) (reminder.Counts, error) {
	if s.sweeper == nil {
		return reminder.Counts{}, domainError(503, "REMINDERS_UNAVAILABLE", "Reminder sweeper is not configured", nil)
	}
	return s.sweeper.Sweep(ctx, time.Now())
}
