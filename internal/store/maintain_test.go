package store

import (
	"context"
	"testing"
)

func TestOptimize(t *testing.T) {
	s := newTestStore(t)
	mustInsert(t, s, InsertParams{ContentPath: "/c/a.md", Summary: "note"})

	if err := s.Optimize(context.Background()); err != nil {
		t.Fatalf("optimize should always succeed: %v", err)
	}
}

func TestCheckIndex_CleanAfterMutations(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a := mustInsert(t, s, InsertParams{ContentPath: "/c/a.md", Summary: "alpha", Keywords: []string{"one", "two"}})
	mustInsert(t, s, InsertParams{ContentPath: "/c/b.md", Summary: "beta"})

	summary := "alpha revised"
	if _, err := s.Update(ctx, UpdateParams{ID: a, Summary: &summary, Keywords: []string{"three"}}); err != nil {
		t.Fatalf("update: %v", err)
	}

	report, err := s.CheckIndex(ctx)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !report.Clean() {
		t.Errorf("index should mirror metadata after normal mutations: %+v", report)
	}
	if report.Records != 2 || report.IndexDocs != 2 {
		t.Errorf("expected 2 records and 2 docs, got %+v", report)
	}
}

func TestCheckIndex_DetectsDrift(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a := mustInsert(t, s, InsertParams{ContentPath: "/c/a.md", Summary: "alpha"})
	b := mustInsert(t, s, InsertParams{ContentPath: "/c/b.md", Summary: "beta"})

	// simulate a missing document and a tampered one
	if _, err := s.db.ExecContext(ctx, `DELETE FROM memory_index WHERE rowid = ?`, a); err != nil {
		t.Fatalf("corrupt index: %v", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM memory_index WHERE rowid = ?`, b); err != nil {
		t.Fatalf("corrupt index: %v", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO memory_index (rowid, summary, keywords) VALUES (?, 'stale text', '')`, b); err != nil {
		t.Fatalf("corrupt index: %v", err)
	}

	report, err := s.CheckIndex(ctx)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if report.Missing != 1 {
		t.Errorf("expected 1 missing doc, got %+v", report)
	}
	if report.Mismatched != 1 {
		t.Errorf("expected 1 mismatched doc, got %+v", report)
	}
	if report.Clean() {
		t.Error("drifted index should not report clean")
	}
}

func TestRebuildIndex_RepairsDrift(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a := mustInsert(t, s, InsertParams{ContentPath: "/c/a.md", Summary: "postgres tuning", Keywords: []string{"db"}})
	mustInsert(t, s, InsertParams{ContentPath: "/c/b.md", Summary: "redis eviction"})

	if _, err := s.db.ExecContext(ctx, `DELETE FROM memory_index`); err != nil {
		t.Fatalf("corrupt index: %v", err)
	}
	if hits, _, _ := s.Search(ctx, SearchParams{Query: "postgres", Limit: 5}); len(hits) != 0 {
		t.Fatalf("expected no hits against the emptied index, got %+v", hits)
	}

	n, err := s.RebuildIndex(ctx)
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 docs rebuilt, got %d", n)
	}

	report, err := s.CheckIndex(ctx)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !report.Clean() {
		t.Errorf("rebuild should leave a clean index: %+v", report)
	}

	hits, _, err := s.Search(ctx, SearchParams{Query: "postgres", Limit: 5})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != a {
		t.Errorf("rebuilt index should serve search, got %+v", hits)
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	dbPath := dir + "/keepsake.db"
	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	defer s.Close()

	mustInsert(t, s, InsertParams{ContentPath: "/c/a.md", Summary: "one", Keywords: []string{"x", "y"}})
	mustInsert(t, s, InsertParams{ContentPath: "/c/b.md", Summary: "two"})

	st, err := s.Stats(ctx, dbPath)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.Memories != 2 {
		t.Errorf("expected 2 memories, got %d", st.Memories)
	}
	if st.Keywords != 2 {
		t.Errorf("expected 2 keyword rows, got %d", st.Keywords)
	}
	if st.IndexDocs != 2 {
		t.Errorf("expected 2 index docs, got %d", st.IndexDocs)
	}
	if st.DBSizeBytes <= 0 {
		t.Errorf("expected positive db size, got %d", st.DBSizeBytes)
	}
	if st.NewestAt == "" || st.OldestAt == "" {
		t.Errorf("expected created_at range, got %q..%q", st.OldestAt, st.NewestAt)
	}
}

func TestExportAll(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	mustInsert(t, s, InsertParams{ContentPath: "/c/a.md", Summary: "one", Keywords: []string{"alpha"}})
	mustInsert(t, s, InsertParams{ContentPath: "/c/b.md", Summary: "two"})

	all, err := s.ExportAll(ctx)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 memories, got %d", len(all))
	}
	if all[0].ID >= all[1].ID {
		t.Errorf("export should be ordered by id: %d, %d", all[0].ID, all[1].ID)
	}
	if len(all[0].Keywords) != 1 || all[0].Keywords[0] != "alpha" {
		t.Errorf("expected keywords attached, got %v", all[0].Keywords)
	}
}
