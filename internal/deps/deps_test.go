package deps

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

func writeStub(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

func TestCheckReportsEachTool(t *testing.T) {
	binDir := t.TempDir()
	present := writeStub(t, binDir, "present")
	t.Setenv("PATH", binDir)

	tools := []Tool{
		{Name: "Present", Configured: present, Codecs: []string{"a"}},
		{Name: "Candidate", Candidates: []string{"missing-first", "present"}},
		{Name: "Missing", Configured: "clearly-not-present-binary"},
		{Name: "Blank"},
	}
	results := Check(tools)
	if len(results) != len(tools) {
		t.Fatalf("expected %d results, got %d", len(tools), len(results))
	}

	tests := []struct {
		name      string
		available bool
		command   string
		detail    string
	}{
		{"Present", true, present, ""},
		{"Candidate", true, present, ""},
		{"Missing", false, "clearly-not-present-binary", "not found"},
		{"Blank", false, "", "command not configured"},
	}
	for i, tt := range tests {
		got := results[i]
		if got.Name != tt.name || got.Available != tt.available || got.Command != tt.command {
			t.Errorf("%s: got %+v", tt.name, got)
		}
		if tt.detail == "" && got.Detail != "" {
			t.Errorf("%s: unexpected detail %q", tt.name, got.Detail)
		}
		if tt.detail != "" && !strings.Contains(got.Detail, tt.detail) {
			t.Errorf("%s: detail %q missing %q", tt.name, got.Detail, tt.detail)
		}
	}
	if !slices.Equal(results[0].Codecs, []string{"a"}) {
		t.Fatalf("codecs not carried: %+v", results[0])
	}
}

func TestResolveFFmpegPathUsesPATH(t *testing.T) {
	binDir := t.TempDir()
	ffmpeg := writeStub(t, binDir, "ffmpeg")
	t.Setenv("PATH", binDir)

	got, err := ResolveFFmpegPath("")
	if err != nil {
		t.Fatalf("ResolveFFmpegPath: %v", err)
	}
	if got != ffmpeg {
		t.Fatalf("expected %s, got %s", ffmpeg, got)
	}
}

func TestResolveFFmpegPathMissing(t *testing.T) {
	t.Setenv("PATH", "")
	if _, err := ResolveFFmpegPath(""); err == nil {
		t.Fatal("expected ffmpeg resolution to fail")
	}
}

func TestResolveChromePathPrefersConfigured(t *testing.T) {
	binDir := t.TempDir()
	custom := writeStub(t, binDir, "my-browser")
	writeStub(t, binDir, "chromium")
	t.Setenv("PATH", binDir)

	got, err := ResolveChromePath(custom)
	if err != nil {
		t.Fatalf("ResolveChromePath: %v", err)
	}
	if got != custom {
		t.Fatalf("expected configured browser, got %s", got)
	}

	got, err = ResolveChromePath("")
	if err != nil {
		t.Fatalf("ResolveChromePath candidates: %v", err)
	}
	if filepath.Base(got) != "chromium" {
		t.Fatalf("expected chromium candidate, got %s", got)
	}
}

func TestResolveChromePathNotFound(t *testing.T) {
	t.Setenv("PATH", "")
	_, err := ResolveChromePath("")
	if err == nil || !strings.Contains(err.Error(), "tried google-chrome") {
		t.Fatalf("expected candidate list in error, got %v", err)
	}
}

func TestCodecToolsNameTheirCodecs(t *testing.T) {
	tools := CodecTools("", "/opt/chrome")
	if len(tools) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(tools))
	}
	if !slices.Contains(tools[0].Codecs, "video-audio") || tools[0].command() != DefaultFFmpeg {
		t.Fatalf("unexpected ffmpeg tool %+v", tools[0])
	}
	if !slices.Equal(tools[1].Codecs, []string{"htmlpdf"}) || tools[1].command() != "/opt/chrome" {
		t.Fatalf("unexpected chrome tool %+v", tools[1])
	}
}
