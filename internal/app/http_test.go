package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"synopsis/api/internal/store"
)

func newTestServer(t *testing.T, st *fakeStore) (*HTTPServer, *Service) {
	t.Helper()
	svc, _, _ := newTestService(st)
	return NewHTTPServer(svc, "*"), svc
}

func sessionFor(t *testing.T, svc *Service, role string) Session {
	t.Helper()
	session, err := svc.CreateSession(context.Background(), "usr-1")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return session
}

func userStore(role string) *fakeStore {
	return &fakeStore{
		getUserByIDFn: func(ctx context.Context, userID string) (store.User, error) {
			return store.User{ID: userID, DisplayName: "Dana", Role: role, IsExternal: role == "external"}, nil
		},
	}
}

func TestHealthEndpoint(t *testing.T) {
	server, _ := newTestServer(t, &fakeStore{})
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected a request id header")
	}
}

func TestProjectsRequireAuth(t *testing.T) {
	server, _ := newTestServer(t, &fakeStore{})
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/projects", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestExternalRoleCannotCreateProjects(t *testing.T) {
	server, svc := newTestServer(t, userStore("external"))
	session := sessionFor(t, svc, "external")

	req := httptest.NewRequest(http.MethodPost, "/api/projects", strings.NewReader(`{"title":"New synopsis"}`))
	req.Header.Set("Authorization", "Bearer "+session.Token)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestManagerCreatesProject(t *testing.T) {
	st := userStore("manager")
	server, svc := newTestServer(t, st)
	session := sessionFor(t, svc, "manager")

	req := httptest.NewRequest(http.MethodPost, "/api/projects", strings.NewReader(`{"title":"Coral Synopsis"}`))
	req.Header.Set("Authorization", "Bearer "+session.Token)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Project map[string]any `json:"project"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Project["title"] != "Coral Synopsis" {
		t.Fatalf("unexpected project payload: %v", body.Project)
	}
	if body.Project["phase"] != "draft_protocol" {
		t.Fatalf("new projects must start in draft_protocol, got %v", body.Project["phase"])
	}
}

func TestInviteLinkUnknownToken(t *testing.T) {
	server, _ := newTestServer(t, &fakeStore{})
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/invite/nope/yes", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestInviteLinkAcceptsWithoutAuth(t *testing.T) {
	var recorded bool
	st := &fakeStore{
		getInvitationByTokenFn: func(ctx context.Context, token string) (store.Invitation, error) {
			if token != "good-token" {
				return store.Invitation{}, sql.ErrNoRows
			}
			return store.Invitation{ID: "inv-1"}, nil
		},
		recordInvitationFn: func(ctx context.Context, id string, accepted bool, at time.Time) error {
			recorded = accepted
			return nil
		},
	}
	server, _ := newTestServer(t, st)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/invite/good-token/yes", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if !recorded {
		t.Fatal("expected the acceptance to be recorded")
	}
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["accepted"] != true {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestPhaseOverrideRequiresManager(t *testing.T) {
	server, svc := newTestServer(t, userStore("author"))
	session := sessionFor(t, svc, "author")

	req := httptest.NewRequest(http.MethodPut, "/api/projects/prj-1/phase", strings.NewReader(`{"phase":"publication"}`))
	req.Header.Set("Authorization", "Bearer "+session.Token)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestBadBearerTokenRejected(t *testing.T) {
	server, _ := newTestServer(t, userStore("manager"))

	req := httptest.NewRequest(http.MethodGet, "/api/projects", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}
