package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.applyEnv(); err != nil {
		return err
	}
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLogging()
	c.normalizeCodecs()
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeoutSeconds == 0 {
		c.Notifications.RequestTimeoutSeconds = defaultNotifyTimeout
	}
	return nil
}

// applyEnv lets TRANSMUTE_* variables override file values.
func (c *Config) applyEnv() error {
	if value, ok := os.LookupEnv("TRANSMUTE_WORKERS"); ok && strings.TrimSpace(value) != "" {
		workers, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("TRANSMUTE_WORKERS: %w", err)
		}
		c.Batch.Workers = workers
	}
	if value, ok := os.LookupEnv("TRANSMUTE_LOG_LEVEL"); ok && strings.TrimSpace(value) != "" {
		c.Logging.Level = value
	}
	if value, ok := os.LookupEnv("TRANSMUTE_WORK_DIR"); ok && strings.TrimSpace(value) != "" {
		c.Paths.WorkDir = value
	}
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		c.Paths.WorkDir = defaultWorkDir()
	}
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.HistoryDB) == "" {
		c.Paths.HistoryDB = defaultHistoryDB
	}
	if c.Paths.HistoryDB, err = expandPath(c.Paths.HistoryDB); err != nil {
		return fmt.Errorf("paths.history_db: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if len(c.Logging.ComponentLevels) > 0 {
		levels := make(map[string]string, len(c.Logging.ComponentLevels))
		for component, level := range c.Logging.ComponentLevels {
			key := strings.ToLower(strings.TrimSpace(component))
			if key == "" {
				continue
			}
			levels[key] = strings.ToLower(strings.TrimSpace(level))
		}
		c.Logging.ComponentLevels = levels
	}
}

func (c *Config) normalizeCodecs() {
	c.Codecs.FFmpegBinary = strings.TrimSpace(c.Codecs.FFmpegBinary)
	if c.Codecs.FFmpegBinary == "" {
		c.Codecs.FFmpegBinary = defaultFFmpegBinary
	}
	c.Codecs.ChromeBinary = strings.TrimSpace(c.Codecs.ChromeBinary)
	c.Codecs.PDFFont = strings.TrimSpace(c.Codecs.PDFFont)
	if c.Codecs.PDFFont == "" {
		c.Codecs.PDFFont = defaultPDFFont
	}
	if len(c.Codecs.Disabled) > 0 {
		disabled := make([]string, 0, len(c.Codecs.Disabled))
		seen := make(map[string]struct{}, len(c.Codecs.Disabled))
		for _, name := range c.Codecs.Disabled {
			normalized := strings.ToLower(strings.TrimSpace(name))
			if normalized == "" {
				continue
			}
			if _, exists := seen[normalized]; exists {
				continue
			}
			seen[normalized] = struct{}{}
			disabled = append(disabled, normalized)
		}
		c.Codecs.Disabled = disabled
	}
}
