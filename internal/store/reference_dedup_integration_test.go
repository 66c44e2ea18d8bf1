package store

import (
	"context"
	"os"
	"testing"

	"synopsis/api/internal/util"
)

// TestReferenceReimportSkipsDuplicates verifies the (project, hash_key)
// dedup at the database level: re-importing the same payload yields a
// batch with a record count of zero and inserts nothing.
func TestReferenceReimportSkipsDuplicates(t *testing.T) {
	st, cleanup := openTestStore(t)
	defer cleanup()
	ctx := context.Background()

	project, err := st.CreateProject(ctx, Project{Title: "Dedup check"})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	defer func() {
		_, _ = st.db.ExecContext(ctx, `DELETE FROM projects WHERE id=$1`, project.ID)
	}()

	// Fresh IDs on every call, same hash keys: exactly what a re-upload
	// of the same file produces.
	refs := func() []Reference {
		return []Reference{
			{
				ID:        util.NewID("ref"),
				ProjectID: project.ID,
				Title:     "Seagrass restoration outcomes",
				Year:      "2020",
				HashKey:   "it-hash-seagrass",
				Screening: ScreeningPending,
			},
			{
				ID:        util.NewID("ref"),
				ProjectID: project.ID,
				Title:     "Kelp forest recovery",
				Year:      "2018",
				HashKey:   "it-hash-kelp",
				Screening: ScreeningPending,
			},
		}
	}

	first, inserted, err := st.ImportReferences(ctx, project.ID, "refs.ris", "ris", "tester", refs())
	if err != nil {
		t.Fatalf("first import: %v", err)
	}
	if first.RecordCount != 2 || first.SkippedCount != 0 {
		t.Fatalf("first import counts: %d imported, %d skipped", first.RecordCount, first.SkippedCount)
	}
	if len(inserted) != 2 {
		t.Fatalf("expected 2 inserted rows, got %d", len(inserted))
	}

	second, inserted, err := st.ImportReferences(ctx, project.ID, "refs.ris", "ris", "tester", refs())
	if err != nil {
		t.Fatalf("second import: %v", err)
	}
	if second.RecordCount != 0 || second.SkippedCount != 2 {
		t.Fatalf("re-import counts: %d imported, %d skipped", second.RecordCount, second.SkippedCount)
	}
	if len(inserted) != 0 {
		t.Fatalf("re-import must insert nothing, got %d rows", len(inserted))
	}

	// Both batch rows persist with their counts.
	batches, err := st.ListBatches(ctx, project.ID)
	if err != nil {
		t.Fatalf("list batches: %v", err)
	}
	if len(batches) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(batches))
	}

	rows, err := st.ListReferences(ctx, project.ID, "")
	if err != nil {
		t.Fatalf("list references: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 stored references after re-import, got %d", len(rows))
	}
}

// openTestStore connects to the integration database or skips. Shared by
// the _integration_test files in this package.
func openTestStore(t *testing.T) (*PostgresStore, func()) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	db, err := Open(ctx, testDatabaseURL())
	if err != nil {
		t.Skipf("integration database unavailable: %v", err)
	}
	if err := ApplyMigrations(ctx, db, "../../db/migrations"); err != nil {
		db.Close()
		t.Fatalf("apply migrations: %v", err)
	}
	return NewPostgresStore(db), func() { db.Close() }
}

// testDatabaseURL prefers TEST_DATABASE_URL, then the standard Postgres
// environment variables with local development defaults.
func testDatabaseURL() string {
	if url := os.Getenv("TEST_DATABASE_URL"); url != "" {
		return url
	}
	host := envOr("POSTGRES_HOST", "localhost")
	port := envOr("POSTGRES_PORT", "5432")
	user := envOr("POSTGRES_USER", "synopsis")
	pass := envOr("POSTGRES_PASSWORD", "synopsis")
	dbname := envOr("POSTGRES_DB", "synopsis_test")
	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + dbname + "?sslmode=disable"
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
