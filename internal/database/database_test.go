package database

import (
	"path/filepath"
	"testing"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenMigratesSchema(t *testing.T) {
	db := testDB(t)

	// Reopening an already-migrated database must be a no-op.
	path := db.Path()
	db.Close()
	db2, err := Open(path)
	if err != nil {
		t.Fatalf("failed to reopen database: %v", err)
	}
	db2.Close()
}

func TestInsertAndGetRun(t *testing.T) {
	db := testDB(t)

	sources := []RunSource{
		{URL: "https://a.com", Title: "A", Summary: "top source", RelevanceScore: 9, CycleDiscovered: 1},
		{URL: "https://b.com", Title: "B", Summary: "second source", RelevanceScore: 7.5, CycleDiscovered: 2},
	}
	id, err := db.InsertRun(Run{
		Question:       "what changed",
		ReportMarkdown: "# Report\n\ntext [1]",
		CycleCount:     2,
		QueryCount:     4,
	}, sources)
	if err != nil {
		t.Fatalf("failed to insert run: %v", err)
	}

	run, err := db.GetRun(id)
	if err != nil {
		t.Fatalf("failed to get run: %v", err)
	}
	if run == nil {
		t.Fatal("expected run, got nil")
	}
	if run.Question != "what changed" {
		t.Errorf("unexpected question: %q", run.Question)
	}
	if run.SourceCount != 2 {
		t.Errorf("expected source_count 2, got %d", run.SourceCount)
	}
	if run.CreatedAt == nil || *run.CreatedAt == "" {
		t.Error("expected created_at to be set")
	}
	if run.EarlyStop != nil {
		t.Errorf("expected nil early_stop, got %q", *run.EarlyStop)
	}

	got, err := db.GetRunSources(id)
	if err != nil {
		t.Fatalf("failed to get run sources: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(got))
	}
	if got[0].Rank != 1 || got[0].URL != "https://a.com" {
		t.Errorf("unexpected first source: %+v", got[0])
	}
	if got[1].RelevanceScore != 7.5 {
		t.Errorf("expected score 7.5, got %v", got[1].RelevanceScore)
	}
}

func TestGetRunMissing(t *testing.T) {
	db := testDB(t)

	run, err := db.GetRun(999)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run != nil {
		t.Errorf("expected nil for missing run, got %+v", run)
	}
}

func TestGetAllRunsNewestFirst(t *testing.T) {
	db := testDB(t)

	for _, q := range []string{"first", "second", "third"} {
		if _, err := db.InsertRun(Run{Question: q, ReportMarkdown: "r"}, nil); err != nil {
			t.Fatalf("failed to insert run: %v", err)
		}
	}

	runs, err := db.GetAllRuns()
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(runs))
	}
	if runs[0].Question != "third" || runs[2].Question != "first" {
		t.Errorf("expected newest-first order, got %q ... %q", runs[0].Question, runs[2].Question)
	}
}

func TestDeleteRunCascades(t *testing.T) {
	db := testDB(t)

	id, err := db.InsertRun(Run{Question: "q", ReportMarkdown: "r"}, []RunSource{
		{URL: "https://a.com", Title: "A", Summary: "s", RelevanceScore: 5, CycleDiscovered: 1},
	})
	if err != nil {
		t.Fatalf("failed to insert run: %v", err)
	}

	if err := db.DeleteRun(id); err != nil {
		t.Fatalf("failed to delete run: %v", err)
	}

	sources, err := db.GetRunSources(id)
	if err != nil {
		t.Fatalf("failed to list sources: %v", err)
	}
	if len(sources) != 0 {
		t.Errorf("expected sources deleted with run, got %d", len(sources))
	}
}

func TestGetStats(t *testing.T) {
	db := testDB(t)

	stats, err := db.GetStats()
	if err != nil {
		t.Fatalf("failed to get stats: %v", err)
	}
	if stats.TotalRuns != 0 || stats.LastRunAt != "" {
		t.Errorf("expected empty stats, got %+v", stats)
	}

	if _, err := db.InsertRun(Run{Question: "q", ReportMarkdown: "r"}, []RunSource{
		{URL: "https://a.com", Title: "A", Summary: "s", RelevanceScore: 5, CycleDiscovered: 1},
	}); err != nil {
		t.Fatalf("failed to insert run: %v", err)
	}

	stats, err = db.GetStats()
	if err != nil {
		t.Fatalf("failed to get stats: %v", err)
	}
	if stats.TotalRuns != 1 {
		t.Errorf("expected 1 run, got %d", stats.TotalRuns)
	}
	if stats.TotalSources != 1 {
		t.Errorf("expected 1 source, got %d", stats.TotalSources)
	}
	if stats.LastRunAt == "" {
		t.Error("expected last run time set")
	}
}
