package staging

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"transmute/internal/logging"
)

func makeDir(t *testing.T, parent, name string, age time.Duration) string {
	t.Helper()
	dir := filepath.Join(parent, name)
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatalf("create %s: %v", name, err)
	}
	if age > 0 {
		stamp := time.Now().Add(-age)
		if err := os.Chtimes(dir, stamp, stamp); err != nil {
			t.Fatalf("set time on %s: %v", name, err)
		}
	}
	return dir
}

func TestCleanStaleInvalidPaths(t *testing.T) {
	for _, dir := range []string{"", "   ", "/nonexistent/path/12345"} {
		result := CleanStale(context.Background(), dir, time.Hour, logging.NewNop())
		if len(result.Removed) != 0 || len(result.Errors) != 0 {
			t.Errorf("expected empty result for path %q", dir)
		}
	}
}

func TestCleanStaleRemovesOldChainDirectories(t *testing.T) {
	workDir := t.TempDir()

	oldChain := makeDir(t, workDir, "chain-123", 2*time.Hour)
	recentChain := makeDir(t, workDir, "chain-456", 0)
	oldOther := makeDir(t, workDir, "keep-me", 2*time.Hour)

	result := CleanStale(context.Background(), workDir, time.Hour, logging.NewNop())

	if len(result.Removed) != 1 || result.Removed[0] != oldChain {
		t.Fatalf("expected only %s removed, got %v", oldChain, result.Removed)
	}
	if _, err := os.Stat(oldChain); !os.IsNotExist(err) {
		t.Error("old chain directory should have been removed")
	}
	for _, dir := range []string{recentChain, oldOther} {
		if _, err := os.Stat(dir); err != nil {
			t.Errorf("%s should still exist", dir)
		}
	}
}

func TestCleanStaleIgnoresFiles(t *testing.T) {
	workDir := t.TempDir()

	oldFile := filepath.Join(workDir, "chain-file")
	if err := os.WriteFile(oldFile, []byte("test"), 0o644); err != nil {
		t.Fatalf("create file: %v", err)
	}
	oldTime := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(oldFile, oldTime, oldTime); err != nil {
		t.Fatalf("set old time: %v", err)
	}

	result := CleanStale(context.Background(), workDir, time.Hour, logging.NewNop())

	if len(result.Removed) != 0 {
		t.Errorf("expected no removals for files, got %d", len(result.Removed))
	}
	if _, err := os.Stat(oldFile); err != nil {
		t.Error("file should not have been removed")
	}
}

func TestCleanStaleStopsOnCanceledContext(t *testing.T) {
	workDir := t.TempDir()
	old := makeDir(t, workDir, "chain-old", 2*time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result := CleanStale(ctx, workDir, time.Hour, logging.NewNop())

	if len(result.Removed) != 0 {
		t.Fatalf("expected no removals after cancel, got %v", result.Removed)
	}
	if _, err := os.Stat(old); err != nil {
		t.Fatal("directory should survive a canceled cleanup")
	}
}
