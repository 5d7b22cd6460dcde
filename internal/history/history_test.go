package history_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"transmute/internal/batch"
	"transmute/internal/history"
	"transmute/internal/testsupport"
)

func sampleTasks(start time.Time) []batch.Task {
	return []batch.Task{
		{
			ID: "t1", SourcePath: "/in/a.csv", TargetPath: "/out/a.json",
			Status: batch.StatusCompleted, StartedAt: start, FinishedAt: start.Add(1500 * time.Millisecond),
		},
		{
			ID: "t2", SourcePath: "/in/b.md", TargetPath: "/out/b.json",
			Status: batch.StatusFailed, Error: "conversion not supported",
		},
	}
}

func TestRecordAndLoadRun(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	ctx := context.Background()

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	run := history.NewRun("run-1", start, start.Add(2*time.Second), "json", "/out", 2, sampleTasks(start))
	if run.Completed != 1 || run.Failed != 1 || run.Total != 2 {
		t.Fatalf("unexpected counts: %+v", run)
	}
	if err := store.RecordBatch(ctx, run); err != nil {
		t.Fatalf("RecordBatch: %v", err)
	}

	loaded, err := store.Run(ctx, "run-1")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !loaded.StartedAt.Equal(start) || loaded.Duration() != 2*time.Second {
		t.Fatalf("unexpected timing: %+v", loaded)
	}
	if len(loaded.Tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(loaded.Tasks))
	}
	first, second := loaded.Tasks[0], loaded.Tasks[1]
	if first.TaskID != "t1" || first.SourceFormat != "csv" || first.TargetFormat != "json" || first.Duration != 1500*time.Millisecond {
		t.Fatalf("unexpected first task: %+v", first)
	}
	if second.Status != batch.StatusFailed || second.Error != "conversion not supported" {
		t.Fatalf("unexpected second task: %+v", second)
	}
}

func TestRecentOrdersNewestFirst(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "mid", "new"} {
		started := base.Add(time.Duration(i) * time.Hour)
		if err := store.RecordBatch(ctx, history.NewRun(id, started, started.Add(time.Minute), "pdf", "", 1, nil)); err != nil {
			t.Fatalf("RecordBatch %s: %v", id, err)
		}
	}

	runs, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "new" || runs[1].ID != "mid" {
		t.Fatalf("unexpected order: %+v", runs)
	}
	if runs[0].Tasks != nil {
		t.Fatal("Recent should not load task rows")
	}
}

func TestRunNotFound(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)

	if _, err := store.Run(context.Background(), "missing"); !errors.Is(err, history.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDuplicateRunRejected(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	ctx := context.Background()

	run := history.NewRun("dup", time.Now(), time.Now(), "txt", "", 1, nil)
	if err := store.RecordBatch(ctx, run); err != nil {
		t.Fatalf("first RecordBatch: %v", err)
	}
	if err := store.RecordBatch(ctx, run); err == nil {
		t.Fatal("expected duplicate id to fail")
	}
}

func TestReopenKeepsSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first, err := history.Open(cfg.Paths.HistoryDB)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := first.RecordBatch(context.Background(), history.NewRun("keep", time.Now(), time.Now(), "png", "", 1, nil)); err != nil {
		t.Fatalf("RecordBatch: %v", err)
	}
	first.Close()

	second := testsupport.MustOpenHistory(t, cfg)
	if _, err := second.Run(context.Background(), "keep"); err != nil {
		t.Fatalf("Run after reopen: %v", err)
	}
}

func TestLockDirExcludesSecondHolder(t *testing.T) {
	dir := t.TempDir()

	lock, err := history.LockDir(dir)
	if err != nil {
		t.Fatalf("LockDir: %v", err)
	}
	if _, err := history.LockDir(dir); !errors.Is(err, history.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
	if err := lock.Unlock(); err != nil {
		t.Fatalf("Unlock: %v", err)
	}

	again, err := history.LockDir(dir)
	if err != nil {
		t.Fatalf("LockDir after unlock: %v", err)
	}
	_ = again.Unlock()
}
