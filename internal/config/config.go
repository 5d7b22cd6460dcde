package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and database locations.
type Paths struct {
	WorkDir   string `toml:"work_dir"`
	LogDir    string `toml:"log_dir"`
	HistoryDB string `toml:"history_db"`
}

// Batch contains scheduler tuning.
type Batch struct {
	Workers            int  `toml:"workers"`
	PollIntervalMS     int  `toml:"poll_interval_ms"`
	StopTimeoutSeconds int  `toml:"stop_timeout_seconds"`
	Optimize           bool `toml:"optimize"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format          string            `toml:"format"`
	Level           string            `toml:"level"`
	ComponentLevels map[string]string `toml:"component_levels"`
}

// Codecs contains settings for the shipped converters.
type Codecs struct {
	// Disabled lists catalog entry names that discovery should skip.
	Disabled            []string `toml:"disabled"`
	FFmpegBinary        string   `toml:"ffmpeg_binary"`
	ChromeBinary        string   `toml:"chrome_binary"`
	MediaTimeoutSeconds int      `toml:"media_timeout_seconds"`
	PDFFont             string   `toml:"pdf_font"`
	ImageQuality        int      `toml:"image_quality"`
}

// Metrics contains the optional Prometheus textfile export location.
type Metrics struct {
	Textfile string `toml:"textfile"`
}

// Notifications configures optional ntfy delivery of batch outcomes.
type Notifications struct {
	// NtfyTopic is the full topic URL, e.g. https://ntfy.sh/my-conversions.
	NtfyTopic             string `toml:"ntfy_topic"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
}

// History toggles the SQLite run history kept by the CLI.
type History struct {
	Enabled bool `toml:"enabled"`
}

// Config encapsulates all configuration values for transmute.
//
// Configuration sections by subsystem:
//   - Paths: scratch space for chained conversions, logs, and the history database
//   - Batch: worker pool size, coordinator poll interval, stop timeout, fairness ordering
//   - Logging: log format, level, and per-component overrides
//   - Codecs: external binaries and tuning for the shipped converters
//   - Metrics: Prometheus textfile export
//   - Notifications: ntfy topic for batch summaries
//   - History: run history toggle
type Config struct {
	Paths         Paths         `toml:"paths"`
	Batch         Batch         `toml:"batch"`
	Logging       Logging       `toml:"logging"`
	Codecs        Codecs        `toml:"codecs"`
	Metrics       Metrics       `toml:"metrics"`
	Notifications Notifications `toml:"notifications"`
	History       History       `toml:"history"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			var strict *toml.StrictMissingError
			if errors.As(err, &strict) {
				return nil, "", false, fmt.Errorf("parse config: %s", strict.String())
			}
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("transmute.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the work and log directories plus the parent of
// the history database.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.WorkDir, c.Paths.LogDir}
	if c.History.Enabled && strings.TrimSpace(c.Paths.HistoryDB) != "" {
		dirs = append(dirs, filepath.Dir(c.Paths.HistoryDB))
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// PollInterval returns the coordinator's completion wait bound.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Batch.PollIntervalMS) * time.Millisecond
}

// StopTimeout returns how long Stop waits for in-flight work.
func (c *Config) StopTimeout() time.Duration {
	return time.Duration(c.Batch.StopTimeoutSeconds) * time.Second
}

// NotifyTimeout returns the HTTP timeout for notification requests.
func (c *Config) NotifyTimeout() time.Duration {
	return time.Duration(c.Notifications.RequestTimeoutSeconds) * time.Second
}

// MediaTimeout returns the per-invocation limit for external media tools.
func (c *Config) MediaTimeout() time.Duration {
	return time.Duration(c.Codecs.MediaTimeoutSeconds) * time.Second
}

// CodecEnabled reports whether the named catalog entry may be loaded.
func (c *Config) CodecEnabled(name string) bool {
	return !slices.Contains(c.Codecs.Disabled, strings.ToLower(strings.TrimSpace(name)))
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func defaultWorkDir() string {
	if base, ok := os.LookupEnv("XDG_CACHE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "transmute", "work")
	}
	return "~/.cache/transmute/work"
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
