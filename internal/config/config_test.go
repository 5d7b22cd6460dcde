package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"transmute/internal/config"
)

func isolateEnv(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CACHE_HOME", "")
	t.Setenv("TRANSMUTE_WORKERS", "")
	t.Setenv("TRANSMUTE_LOG_LEVEL", "")
	t.Setenv("TRANSMUTE_WORK_DIR", "")
	t.Chdir(t.TempDir())
	return home
}

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	home := isolateEnv(t)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved != filepath.Join(home, ".config", "transmute", "config.toml") {
		t.Fatalf("unexpected resolved path %q", resolved)
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	if want := filepath.Join(home, ".cache", "transmute", "work"); cfg.Paths.WorkDir != want {
		t.Fatalf("work dir = %q, want %q", cfg.Paths.WorkDir, want)
	}
	if want := filepath.Join(home, ".local", "share", "transmute", "history.db"); cfg.Paths.HistoryDB != want {
		t.Fatalf("history db = %q, want %q", cfg.Paths.HistoryDB, want)
	}
	if cfg.Batch.Workers != 4 || !cfg.Batch.Optimize {
		t.Fatalf("unexpected batch defaults: %+v", cfg.Batch)
	}
	if cfg.PollInterval().Milliseconds() != 100 || cfg.StopTimeout().Seconds() != 5 {
		t.Fatalf("unexpected timing defaults: poll=%s stop=%s", cfg.PollInterval(), cfg.StopTimeout())
	}
	if cfg.Logging.Format != "console" || cfg.Logging.Level != "info" {
		t.Fatalf("unexpected logging defaults: %+v", cfg.Logging)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.WorkDir, cfg.Paths.LogDir, filepath.Dir(cfg.Paths.HistoryDB)} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	isolateEnv(t)
	configPath := filepath.Join(t.TempDir(), "transmute.toml")

	type payload struct {
		Batch struct {
			Workers  int  `toml:"workers"`
			Optimize bool `toml:"optimize"`
		} `toml:"batch"`
		Logging struct {
			Format          string            `toml:"format"`
			ComponentLevels map[string]string `toml:"component_levels"`
		} `toml:"logging"`
		Codecs struct {
			Disabled []string `toml:"disabled"`
		} `toml:"codecs"`
	}
	custom := payload{}
	custom.Batch.Workers = 8
	custom.Logging.Format = "JSON"
	custom.Logging.ComponentLevels = map[string]string{" Batch ": "DEBUG"}
	custom.Codecs.Disabled = []string{"Media", "media", " "}
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("unexpected resolution: %q exists=%v", resolved, exists)
	}
	if cfg.Batch.Workers != 8 {
		t.Fatalf("workers = %d, want 8", cfg.Batch.Workers)
	}
	if cfg.Batch.Optimize {
		t.Fatal("expected optimize=false from file")
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("format = %q, want json", cfg.Logging.Format)
	}
	if cfg.Logging.ComponentLevels["batch"] != "debug" {
		t.Fatalf("component levels = %v", cfg.Logging.ComponentLevels)
	}
	if len(cfg.Codecs.Disabled) != 1 || cfg.CodecEnabled("media") || !cfg.CodecEnabled("image") {
		t.Fatalf("unexpected disabled codecs: %v", cfg.Codecs.Disabled)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	isolateEnv(t)
	configPath := filepath.Join(t.TempDir(), "transmute.toml")
	if err := os.WriteFile(configPath, []byte("[batch]\nworkerz = 3\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, _, _, err := config.Load(configPath); err == nil || !strings.Contains(err.Error(), "workerz") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestEnvOverridesConfigFile(t *testing.T) {
	isolateEnv(t)
	configPath := filepath.Join(t.TempDir(), "transmute.toml")
	if err := os.WriteFile(configPath, []byte("[batch]\nworkers = 2\n[logging]\nlevel = \"info\"\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	workDir := t.TempDir()
	t.Setenv("TRANSMUTE_WORKERS", "7")
	t.Setenv("TRANSMUTE_LOG_LEVEL", "DEBUG")
	t.Setenv("TRANSMUTE_WORK_DIR", workDir)

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Batch.Workers != 7 {
		t.Errorf("workers = %d, want 7", cfg.Batch.Workers)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.Paths.WorkDir != workDir {
		t.Errorf("work dir = %q, want %q", cfg.Paths.WorkDir, workDir)
	}

	t.Setenv("TRANSMUTE_WORKERS", "many")
	if _, _, _, err := config.Load(configPath); err == nil {
		t.Fatal("expected error for non-numeric TRANSMUTE_WORKERS")
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	defaults := config.Default()
	if cfg.Batch.Workers != defaults.Batch.Workers || cfg.Codecs.ImageQuality != defaults.Codecs.ImageQuality {
		t.Fatalf("sample drifted from defaults: %+v", cfg)
	}
	if !strings.Contains(cfg.Paths.WorkDir, "transmute") {
		t.Fatalf("expected work dir to mention transmute, got %q", cfg.Paths.WorkDir)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"zero workers", func(c *config.Config) { c.Batch.Workers = 0 }},
		{"negative workers", func(c *config.Config) { c.Batch.Workers = -1 }},
		{"zero poll interval", func(c *config.Config) { c.Batch.PollIntervalMS = 0 }},
		{"bad format", func(c *config.Config) { c.Logging.Format = "xml" }},
		{"bad level", func(c *config.Config) { c.Logging.Level = "loud" }},
		{"bad component level", func(c *config.Config) { c.Logging.ComponentLevels = map[string]string{"batch": "loud"} }},
		{"quality too high", func(c *config.Config) { c.Codecs.ImageQuality = 101 }},
		{"missing work dir", func(c *config.Config) { c.Paths.WorkDir = "" }},
		{"history without db", func(c *config.Config) { c.Paths.HistoryDB = "" }},
		{"bad ntfy topic", func(c *config.Config) { c.Notifications.NtfyTopic = "not a url" }},
		{"negative notify timeout", func(c *config.Config) { c.Notifications.RequestTimeoutSeconds = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}

	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}
