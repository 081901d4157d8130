package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ruleforge/internal/aggregate"
	rferrors "ruleforge/internal/errors"
	"ruleforge/internal/slogutil"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "history", "history.db")
	db, err := Open(context.Background(), path, slogutil.NewDiscardLogger())
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Failed to close database: %v", err)
		}
	})
	return db
}

func sampleRun(started time.Time) *Run {
	return &Run{
		StartedAt:      started,
		FinishedAt:     started.Add(1500 * time.Millisecond),
		Wordlist:       "leaked.txt",
		WordlistDigest: "abc123",
		Method:         "hac",
		Params:         map[string]string{"distanceThreshold": "3", "granularity": "combo"},
		Words:          6,
		Chunks:         1,
		Clusters:       2,
		Pairs:          4,
		DeadEnds:       0,
		RuleFile:       "rules.rule",
		Rules: []aggregate.Entry{
			{Rule: "$1", Count: 2},
			{Rule: "c $1", Count: 1},
			{Rule: "$\xff", Count: 1},
		},
	}
}

func TestDatabaseInitialization(t *testing.T) {
	db := setupTestDB(t)

	if _, err := os.Stat(db.Path()); err != nil {
		t.Fatalf("Database file was not created at %s: %v", db.Path(), err)
	}

	version, err := db.schemaVersion(context.Background())
	if err != nil {
		t.Fatalf("Failed to get schema version: %v", err)
	}
	if version != currentSchemaVersion() {
		t.Errorf("Expected schema version %d, got %d", currentSchemaVersion(), version)
	}
}

func TestReopenExistingDatabase(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.db")
	logger := slogutil.NewDiscardLogger()

	db, err := Open(ctx, path, logger)
	if err != nil {
		t.Fatal(err)
	}
	if err := NewRunRepository(db).Record(ctx, sampleRun(time.Now())); err != nil {
		t.Fatal(err)
	}
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}

	db, err = Open(ctx, path, logger)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer db.Close()

	runs, err := NewRunRepository(db).List(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 {
		t.Errorf("got %d runs after reopen, want 1", len(runs))
	}
}

func TestRecordAndGet(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewRunRepository(db)

	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	run := sampleRun(started)
	if err := repo.Record(ctx, run); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if run.ID == "" {
		t.Fatal("Record() should assign an ID")
	}

	got, err := repo.Get(ctx, run.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got == nil {
		t.Fatal("Get() returned nil")
	}

	if !got.StartedAt.Equal(started) {
		t.Errorf("StartedAt = %v, want %v", got.StartedAt, started)
	}
	if got.Duration() != 1500*time.Millisecond {
		t.Errorf("Duration() = %v, want 1.5s", got.Duration())
	}
	if got.Method != "hac" || got.Wordlist != "leaked.txt" || got.Pairs != 4 {
		t.Errorf("run fields not round-tripped: %+v", got)
	}
	if got.Params["granularity"] != "combo" {
		t.Errorf("Params = %v, want granularity combo", got.Params)
	}
	if len(got.Rules) != 3 {
		t.Fatalf("len(Rules) = %d, want 3", len(got.Rules))
	}
	for i, want := range run.Rules {
		if got.Rules[i] != want {
			t.Errorf("Rules[%d] = %+v, want %+v", i, got.Rules[i], want)
		}
	}
}

func TestGetByPrefix(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewRunRepository(db)

	a := sampleRun(time.Now())
	a.ID = "aaaa1111"
	b := sampleRun(time.Now())
	b.ID = "aaaa2222"
	for _, r := range []*Run{a, b} {
		if err := repo.Record(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	got, err := repo.Get(ctx, "aaaa2")
	if err != nil {
		t.Fatalf("Get(prefix) error = %v", err)
	}
	if got == nil || got.ID != "aaaa2222" {
		t.Errorf("Get(aaaa2) = %v, want aaaa2222", got)
	}

	_, err = repo.Get(ctx, "aaaa")
	if !rferrors.Is(err, rferrors.StorageError) {
		t.Errorf("ambiguous prefix error = %v, want STORAGE_ERROR", err)
	}

	missing, err := repo.Get(ctx, "zzzz")
	if err != nil || missing != nil {
		t.Errorf("Get(unknown) = %v, %v; want nil, nil", missing, err)
	}
}

func TestListNewestFirst(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewRunRepository(db)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		run := sampleRun(base.Add(time.Duration(i) * time.Hour))
		run.Method = []string{"hac", "ap", "mdbscan"}[i]
		if err := repo.Record(ctx, run); err != nil {
			t.Fatal(err)
		}
	}

	runs, err := repo.List(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 3 {
		t.Fatalf("len(runs) = %d, want 3", len(runs))
	}
	if runs[0].Method != "mdbscan" || runs[2].Method != "hac" {
		t.Errorf("order = %s, %s, %s; want newest first", runs[0].Method, runs[1].Method, runs[2].Method)
	}
	if runs[0].Rules != nil {
		t.Error("List() should not load rules")
	}

	limited, err := repo.List(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 2 {
		t.Errorf("List(2) returned %d runs", len(limited))
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewRunRepository(db)

	run := sampleRun(time.Now())
	if err := repo.Record(ctx, run); err != nil {
		t.Fatal(err)
	}
	found, err := repo.Delete(ctx, run.ID)
	if err != nil || !found {
		t.Fatalf("Delete() = %v, %v", found, err)
	}
	if found, _ := repo.Delete(ctx, run.ID); found {
		t.Error("second Delete() should report a missing run")
	}

	got, err := repo.Get(ctx, run.ID)
	if err != nil || got != nil {
		t.Errorf("Get() after delete = %v, %v", got, err)
	}

	var n int
	if err := db.QueryRow(ctx, `SELECT COUNT(*) FROM run_rules`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("%d orphaned rules left", n)
	}
}

func TestRecordDuplicateID(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewRunRepository(db)

	run := sampleRun(time.Now())
	run.ID = "fixed"
	if err := repo.Record(ctx, run); err != nil {
		t.Fatal(err)
	}
	err := repo.Record(ctx, run)
	if !rferrors.Is(err, rferrors.StorageError) {
		t.Errorf("duplicate Record() = %v, want STORAGE_ERROR", err)
	}

	got, err := repo.Get(ctx, "fixed")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Rules) != len(run.Rules) {
		t.Errorf("failed insert should roll back; got %d rules", len(got.Rules))
	}
}

func TestPrune(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewRunRepository(db)

	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		run := sampleRun(base.Add(time.Duration(i) * time.Minute))
		run.Words = i
		if err := repo.Record(ctx, run); err != nil {
			t.Fatal(err)
		}
	}

	n, err := repo.Prune(ctx, 2)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if n != 3 {
		t.Errorf("Prune() deleted %d, want 3", n)
	}

	runs, err := repo.List(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 || runs[0].Words != 4 || runs[1].Words != 3 {
		t.Errorf("kept runs = %+v, want the two newest", runs)
	}

	var rules int
	if err := db.QueryRow(ctx, `SELECT COUNT(*) FROM run_rules`).Scan(&rules); err != nil {
		t.Fatal(err)
	}
	if rules != 2*3 {
		t.Errorf("%d rule rows left, want 6", rules)
	}
}

func TestOpenRejectsNewerSchema(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.db")
	db, err := Open(ctx, path, slogutil.NewDiscardLogger())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.conn.ExecContext(ctx, `UPDATE schema_version SET version = 99`); err != nil {
		t.Fatal(err)
	}
	_ = db.Close()

	if _, err := Open(ctx, path, slogutil.NewDiscardLogger()); err == nil {
		t.Error("Open() should refuse a newer schema")
	}
}
