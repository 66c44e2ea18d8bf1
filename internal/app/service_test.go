package app

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"sync"
	"time"

	"synopsis/api/internal/config"
	"synopsis/api/internal/files"
	"synopsis/api/internal/phase"
	"synopsis/api/internal/search"
	"synopsis/api/internal/store"
)

// fakeStore implements dataStore with overridable function fields.
// Lookups default to sql.ErrNoRows; mutations default to success.
type fakeStore struct {
	getProjectFn           func(ctx context.Context, projectID string) (store.Project, error)
	listProjectsFn         func(ctx context.Context) ([]store.Project, error)
	createProjectFn        func(ctx context.Context, project store.Project) (store.Project, error)
	setManualPhaseFn       func(ctx context.Context, projectID, key string) error
	phaseSignalsFn         func(ctx context.Context, projectID string) (phase.Signals, error)
	getUserByIDFn          func(ctx context.Context, userID string) (store.User, error)
	getMemberFn            func(ctx context.Context, memberID string) (store.AdvisoryBoardMember, error)
	getMemberByTokenFn     func(ctx context.Context, token string) (store.AdvisoryBoardMember, error)
	createInvitationFn     func(ctx context.Context, inv store.Invitation) (store.Invitation, error)
	getInvitationByTokenFn func(ctx context.Context, token string) (store.Invitation, error)
	recordInvitationFn     func(ctx context.Context, invitationID string, accepted bool, at time.Time) error
	markTrackSentFn        func(ctx context.Context, memberIDs []string, track string, at time.Time, deadline *time.Time) error
	importReferencesFn     func(ctx context.Context, projectID, fileName, format, createdBy string, refs []store.Reference) (store.ReferenceBatch, []store.Reference, error)
	getReferenceFn         func(ctx context.Context, referenceID string) (store.Reference, error)
	ensureDocumentFn       func(ctx context.Context, projectID, kind string) (store.Document, error)
	getDocumentFn          func(ctx context.Context, documentID string) (store.Document, error)
	getDocumentByKindFn    func(ctx context.Context, projectID, kind string) (store.Document, error)
	getRevisionFn          func(ctx context.Context, revisionID string) (store.Revision, error)
	insertRevisionFn       func(ctx context.Context, rev store.Revision) (store.Revision, error)
	listRevisionsFn        func(ctx context.Context, documentID string) ([]store.Revision, error)
	finalizeDocumentFn     func(ctx context.Context, documentID, revisionID, reason, primaryFileKey string, at time.Time) error
	deleteRevisionFn       func(ctx context.Context, revisionID string) (store.Revision, error)

	mu        sync.Mutex
	changeLog []string
}

func (f *fakeStore) logged(action string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.changeLog = append(f.changeLog, action)
}

func (f *fakeStore) Ping(ctx context.Context) error           { return nil }
func (f *fakeStore) EnsureRoleGroups(ctx context.Context) error { return nil }

func (f *fakeStore) CreateUser(ctx context.Context, user store.User) (store.User, error) {
	user.ID = "usr-test"
	return user, nil
}

func (f *fakeStore) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	return store.User{}, sql.ErrNoRows
}

func (f *fakeStore) GetUserByID(ctx context.Context, userID string) (store.User, error) {
	if f.getUserByIDFn != nil {
		return f.getUserByIDFn(ctx, userID)
	}
	return store.User{}, sql.ErrNoRows
}

func (f *fakeStore) CreateProject(ctx context.Context, project store.Project) (store.Project, error) {
	if f.createProjectFn != nil {
		return f.createProjectFn(ctx, project)
	}
	project.ID = "prj-test"
	return project, nil
}

func (f *fakeStore) GetProject(ctx context.Context, projectID string) (store.Project, error) {
	if f.getProjectFn != nil {
		return f.getProjectFn(ctx, projectID)
	}
	return store.Project{}, sql.ErrNoRows
}

func (f *fakeStore) ListProjects(ctx context.Context) ([]store.Project, error) {
	if f.listProjectsFn != nil {
		return f.listProjectsFn(ctx)
	}
	return nil, nil
}

func (f *fakeStore) UpdateProject(ctx context.Context, projectID, title, description string) error {
	return nil
}

func (f *fakeStore) SetManualPhase(ctx context.Context, projectID, key string) error {
	if f.setManualPhaseFn != nil {
		return f.setManualPhaseFn(ctx, projectID, key)
	}
	return nil
}

func (f *fakeStore) PhaseSignals(ctx context.Context, projectID string) (phase.Signals, error) {
	if f.phaseSignalsFn != nil {
		return f.phaseSignalsFn(ctx, projectID)
	}
	return phase.Signals{}, nil
}

func (f *fakeStore) AppendChangeLog(ctx context.Context, projectID, action, details, actorName string) error {
	f.logged(action)
	return nil
}

func (f *fakeStore) ListChangeLog(ctx context.Context, projectID string) ([]store.ChangeLogEntry, error) {
	return nil, nil
}

func (f *fakeStore) CreateFunder(ctx context.Context, funder store.Funder) (store.Funder, error) {
	funder.ID = "fnd-test"
	return funder, nil
}

func (f *fakeStore) ListFunders(ctx context.Context, projectID string) ([]store.Funder, error) {
	return nil, nil
}

func (f *fakeStore) DeleteFunder(ctx context.Context, funderID string) error { return nil }

func (f *fakeStore) AddMember(ctx context.Context, member store.AdvisoryBoardMember) (store.AdvisoryBoardMember, error) {
	member.ID = "abm-test"
	member.Token = "member-token"
	return member, nil
}

func (f *fakeStore) GetMember(ctx context.Context, memberID string) (store.AdvisoryBoardMember, error) {
	if f.getMemberFn != nil {
		return f.getMemberFn(ctx, memberID)
	}
	return store.AdvisoryBoardMember{}, sql.ErrNoRows
}

func (f *fakeStore) GetMemberByToken(ctx context.Context, token string) (store.AdvisoryBoardMember, error) {
	if f.getMemberByTokenFn != nil {
		return f.getMemberByTokenFn(ctx, token)
	}
	return store.AdvisoryBoardMember{}, sql.ErrNoRows
}

func (f *fakeStore) ListMembers(ctx context.Context, projectID string) ([]store.AdvisoryBoardMember, error) {
	return nil, nil
}

func (f *fakeStore) GetTrackStates(ctx context.Context, memberID string) ([]store.MemberTrackState, error) {
	return nil, nil
}

func (f *fakeStore) MarkTrackSent(ctx context.Context, memberIDs []string, track string, at time.Time, deadline *time.Time) error {
	if f.markTrackSentFn != nil {
		return f.markTrackSentFn(ctx, memberIDs, track, at, deadline)
	}
	return nil
}

func (f *fakeStore) SetTrackDeadline(ctx context.Context, memberIDs []string, track string, deadline time.Time) error {
	return nil
}

func (f *fakeStore) SetMemberResponse(ctx context.Context, memberID, response string, at time.Time) error {
	return nil
}

func (f *fakeStore) CreateInvitation(ctx context.Context, inv store.Invitation) (store.Invitation, error) {
	if f.createInvitationFn != nil {
		return f.createInvitationFn(ctx, inv)
	}
	inv.ID = "inv-test"
	inv.Token = "invite-token"
	return inv, nil
}

func (f *fakeStore) GetInvitationByToken(ctx context.Context, token string) (store.Invitation, error) {
	if f.getInvitationByTokenFn != nil {
		return f.getInvitationByTokenFn(ctx, token)
	}
	return store.Invitation{}, sql.ErrNoRows
}

func (f *fakeStore) RecordInvitationReply(ctx context.Context, invitationID string, accepted bool, at time.Time) error {
	if f.recordInvitationFn != nil {
		return f.recordInvitationFn(ctx, invitationID, accepted, at)
	}
	return nil
}

func (f *fakeStore) InsertFeedback(ctx context.Context, fb store.Feedback) (store.Feedback, error) {
	fb.ID = "fbk-test"
	fb.SubmittedAt = time.Now()
	return fb, nil
}

func (f *fakeStore) ListFeedback(ctx context.Context, projectID, kind string) ([]store.Feedback, error) {
	return nil, nil
}

func (f *fakeStore) ImportReferences(ctx context.Context, projectID, fileName, format, createdBy string, refs []store.Reference) (store.ReferenceBatch, []store.Reference, error) {
	if f.importReferencesFn != nil {
		return f.importReferencesFn(ctx, projectID, fileName, format, createdBy, refs)
	}
	return store.ReferenceBatch{ID: "bat-test", RecordCount: len(refs)}, refs, nil
}

func (f *fakeStore) ListBatches(ctx context.Context, projectID string) ([]store.ReferenceBatch, error) {
	return nil, nil
}

func (f *fakeStore) GetReference(ctx context.Context, referenceID string) (store.Reference, error) {
	if f.getReferenceFn != nil {
		return f.getReferenceFn(ctx, referenceID)
	}
	return store.Reference{}, sql.ErrNoRows
}

func (f *fakeStore) ListReferences(ctx context.Context, projectID, screening string) ([]store.Reference, error) {
	return nil, nil
}

func (f *fakeStore) SetScreeningStatus(ctx context.Context, referenceID, screening string) error {
	return nil
}

func (f *fakeStore) CountReferences(ctx context.Context, projectID string) (map[string]int, error) {
	return map[string]int{}, nil
}

func (f *fakeStore) EnsureDocument(ctx context.Context, projectID, kind string) (store.Document, error) {
	if f.ensureDocumentFn != nil {
		return f.ensureDocumentFn(ctx, projectID, kind)
	}
	return store.Document{ID: "doc-test", ProjectID: projectID, Kind: kind, Stage: store.StageDraft}, nil
}

func (f *fakeStore) GetDocument(ctx context.Context, documentID string) (store.Document, error) {
	if f.getDocumentFn != nil {
		return f.getDocumentFn(ctx, documentID)
	}
	return store.Document{}, sql.ErrNoRows
}

func (f *fakeStore) GetDocumentByKind(ctx context.Context, projectID, kind string) (store.Document, error) {
	if f.getDocumentByKindFn != nil {
		return f.getDocumentByKindFn(ctx, projectID, kind)
	}
	return store.Document{}, sql.ErrNoRows
}

func (f *fakeStore) InsertRevision(ctx context.Context, rev store.Revision) (store.Revision, error) {
	if f.insertRevisionFn != nil {
		return f.insertRevisionFn(ctx, rev)
	}
	rev.ID = "rev-test"
	rev.UploadedAt = time.Now()
	return rev, nil
}

func (f *fakeStore) GetRevision(ctx context.Context, revisionID string) (store.Revision, error) {
	if f.getRevisionFn != nil {
		return f.getRevisionFn(ctx, revisionID)
	}
	return store.Revision{}, sql.ErrNoRows
}

func (f *fakeStore) ListRevisions(ctx context.Context, documentID string) ([]store.Revision, error) {
	if f.listRevisionsFn != nil {
		return f.listRevisionsFn(ctx, documentID)
	}
	return nil, nil
}

func (f *fakeStore) SetCurrentRevision(ctx context.Context, documentID, revisionID string) error {
	return nil
}

func (f *fakeStore) FinalizeDocument(ctx context.Context, documentID, revisionID, reason, primaryFileKey string, at time.Time) error {
	if f.finalizeDocumentFn != nil {
		return f.finalizeDocumentFn(ctx, documentID, revisionID, reason, primaryFileKey, at)
	}
	return nil
}

func (f *fakeStore) BackToDraft(ctx context.Context, documentID string) error { return nil }

func (f *fakeStore) DeleteRevision(ctx context.Context, revisionID string) (store.Revision, error) {
	if f.deleteRevisionFn != nil {
		return f.deleteRevisionFn(ctx, revisionID)
	}
	return store.Revision{}, sql.ErrNoRows
}

func (f *fakeStore) CreateChapter(ctx context.Context, ch store.Chapter) (store.Chapter, error) {
	ch.ID = "chp-test"
	return ch, nil
}

func (f *fakeStore) CreateSection(ctx context.Context, sec store.Section) (store.Section, error) {
	sec.ID = "sec-test"
	return sec, nil
}

func (f *fakeStore) CreateBlock(ctx context.Context, blk store.Block) (store.Block, error) {
	blk.ID = "blk-test"
	return blk, nil
}

func (f *fakeStore) UpdateBlockBody(ctx context.Context, blockID, body string) error { return nil }
func (f *fakeStore) DeleteBlock(ctx context.Context, blockID string) error           { return nil }

func (f *fakeStore) GetOutline(ctx context.Context, projectID string) ([]store.ChapterOutline, error) {
	return nil, nil
}

// fakeSessions is an in-memory session.Store.
type fakeSessions struct {
	mu       sync.Mutex
	sessions map[string]string
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{sessions: map[string]string{}}
}

func (f *fakeSessions) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[tokenHash] = userID
	return nil
}

func (f *fakeSessions) LookupRefreshSession(ctx context.Context, tokenHash string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	userID, ok := f.sessions[tokenHash]
	if !ok {
		return "", sql.ErrNoRows
	}
	return userID, nil
}

func (f *fakeSessions) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, tokenHash)
	return nil
}

// fakeFiles is an in-memory fileStore.
type fakeFiles struct {
	mu      sync.Mutex
	objects map[string][]byte
	// checkErr overrides CheckFinalizable when set
	checkErr error
}

func newFakeFiles() *fakeFiles {
	return &fakeFiles{objects: map[string][]byte{}}
}

func (f *fakeFiles) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	return nil
}

func (f *fakeFiles) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, files.ErrFileMissing
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeFiles) CheckFinalizable(ctx context.Context, key string) error {
	if f.checkErr != nil {
		return f.checkErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return files.ErrFileMissing
	}
	if len(data) == 0 {
		return files.ErrFileEmpty
	}
	return nil
}

func (f *fakeFiles) Copy(ctx context.Context, srcKey, dstKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[srcKey]
	if !ok {
		return files.ErrFileMissing
	}
	f.objects[dstKey] = data
	return nil
}

func (f *fakeFiles) Remove(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

type sentMail struct {
	To      []string
	Subject string
	Body    string
}

type fakeMailer struct {
	mu         sync.Mutex
	sent       []sentMail
	configured bool
	fail       bool
}

func (f *fakeMailer) IsConfigured() bool { return f.configured }
func (f *fakeMailer) From() string       { return "no-reply@example.org" }

func (f *fakeMailer) SendEmail(to []string, subject, body, replyTo string) error {
	if f.fail {
		return errors.New("smtp unavailable")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

func testConfig() config.Config {
	return config.Config{
		JWTSecret:  "test-secret",
		AccessTTL:  time.Hour,
		RefreshTTL: 24 * time.Hour,
		Brand:      "Conservation Evidence",
		BaseURL:    "http://localhost:8788",
		CORSOrigin: "*",
	}
}

func newTestService(st *fakeStore) (*Service, *fakeFiles, *fakeMailer) {
	fs := newFakeFiles()
	mailer := &fakeMailer{configured: true}
	svc := New(testConfig(), st, newFakeSessions(), fs, nil, mailer, nil, nil)
	return svc, fs, mailer
}

type fakeIndex struct {
	mu      sync.Mutex
	indexed []search.ReferenceRecord
	deleted []string
}

func (f *fakeIndex) Search(q search.Query) search.Response { return search.Response{Query: q.Text} }

func (f *fakeIndex) IndexReference(ref search.ReferenceRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexed = append(f.indexed, ref)
}

func (f *fakeIndex) IndexReferences(refs []search.ReferenceRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexed = append(f.indexed, refs...)
}

func (f *fakeIndex) DeleteReference(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
}

func (f *fakeIndex) ReindexAllFromPG(ctx context.Context) {}
