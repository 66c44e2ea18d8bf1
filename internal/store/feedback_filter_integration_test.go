package store

import (
	"context"
	"testing"
)

// TestListFeedbackUnfilteredReturnsAllKinds covers the kind filter:
// an empty kind means every kind, not none.
func TestListFeedbackUnfilteredReturnsAllKinds(t *testing.T) {
	st, cleanup := openTestStore(t)
	defer cleanup()
	ctx := context.Background()

	project, err := st.CreateProject(ctx, Project{Title: "Feedback filter check"})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	defer func() {
		_, _ = st.db.ExecContext(ctx, `DELETE FROM projects WHERE id=$1`, project.ID)
	}()

	member, err := st.AddMember(ctx, AdvisoryBoardMember{
		ProjectID: project.ID,
		FirstName: "Ana",
		LastName:  "Silva",
		Email:     "ana@example.org",
	})
	if err != nil {
		t.Fatalf("add member: %v", err)
	}

	for _, kind := range []string{"protocol", "action_list"} {
		if _, err := st.InsertFeedback(ctx, Feedback{
			ProjectID: project.ID,
			MemberID:  member.ID,
			Kind:      kind,
			Body:      "Comments on the " + kind,
		}); err != nil {
			t.Fatalf("insert %s feedback: %v", kind, err)
		}
	}

	all, err := st.ListFeedback(ctx, project.ID, "")
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("unfiltered list: expected 2 entries, got %d", len(all))
	}

	protocol, err := st.ListFeedback(ctx, project.ID, "protocol")
	if err != nil {
		t.Fatalf("list protocol: %v", err)
	}
	if len(protocol) != 1 || protocol[0].Kind != "protocol" {
		t.Fatalf("protocol filter: got %d entries", len(protocol))
	}
}
