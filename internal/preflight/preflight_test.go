package preflight

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"transmute/internal/registry"
	"transmute/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckParentWritable(t *testing.T) {
	dir := t.TempDir()

	if r := CheckParentWritable("db", filepath.Join(dir, "nested", "deeper", "history.db")); !r.Passed {
		t.Fatalf("expected creatable path to pass: %s", r.Detail)
	}
	if r := CheckParentWritable("db", dir); r.Passed {
		t.Fatal("expected directory path to fail")
	}
	if r := CheckParentWritable("db", ""); r.Passed {
		t.Fatal("expected empty path to fail")
	}
}

func TestRunAllSkipsDisabledFeatures(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.History.Enabled = false
	cfg.Metrics.Textfile = ""
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	results := RunAll(context.Background(), cfg)
	if len(results) != 2 {
		t.Fatalf("expected work and log checks only, got %+v", results)
	}
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("unexpected failures: %+v", failed)
	}
}

func TestRunAllReportsMissingWorkDir(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Metrics.Textfile = filepath.Join(testsupport.BaseDir(cfg), "metrics", "transmute.prom")

	results := RunAll(context.Background(), cfg)
	if len(results) != 4 {
		t.Fatalf("expected 4 checks, got %+v", results)
	}
	failed := Failed(results)
	if len(failed) == 0 || failed[0].Name != "Work directory" {
		t.Fatalf("expected work directory failure, got %+v", failed)
	}
}

func TestCheckSystemDepsHonorsDisabledCodecs(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithDisabledCodecs("htmlpdf"))

	statuses := CheckSystemDeps(cfg)
	if len(statuses) != 1 || statuses[0].Name != "FFmpeg" {
		t.Fatalf("expected only ffmpeg status, got %+v", statuses)
	}
	if statuses[0].Available {
		t.Fatal("test config points ffmpeg at a missing path")
	}
}

func TestCodecResults(t *testing.T) {
	report := registry.DiscoveryReport{
		Loaded:  []string{"data"},
		Skipped: map[string]string{"video": "ffmpeg unavailable", "audio": "ffmpeg unavailable"},
	}
	results := CodecResults(report)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if !results[0].Passed || results[1].Name != "Codec audio" || results[1].Passed {
		t.Fatalf("unexpected results: %+v", results)
	}
	if !strings.Contains(results[2].Detail, "ffmpeg unavailable") {
		t.Fatalf("expected skip reason in detail: %+v", results[2])
	}
}
