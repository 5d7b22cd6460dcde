package config

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

var logLevels = []any{"debug", "info", "warn", "warning", "error"}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateBatch(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateCodecs(); err != nil {
		return err
	}
	return c.validateNotifications()
}

func (c *Config) validatePaths() error {
	p := &c.Paths
	err := validation.ValidateStruct(p,
		validation.Field(&p.WorkDir, validation.Required.Error("paths.work_dir must be set")),
		validation.Field(&p.HistoryDB, validation.When(c.History.Enabled, validation.Required.Error("paths.history_db must be set when history.enabled is true"))),
	)
	return wrapSection("paths", err)
}

func (c *Config) validateBatch() error {
	b := &c.Batch
	err := validation.ValidateStruct(b,
		validation.Field(&b.Workers, validation.Required.Error("batch.workers must be positive"), validation.Min(1).Error("batch.workers must be positive"), validation.Max(256).Error("batch.workers must be at most 256")),
		validation.Field(&b.PollIntervalMS, validation.Required.Error("batch.poll_interval_ms must be positive"), validation.Min(1).Error("batch.poll_interval_ms must be positive")),
		validation.Field(&b.StopTimeoutSeconds, validation.Min(0).Error("batch.stop_timeout_seconds must be >= 0")),
	)
	return wrapSection("batch", err)
}

func (c *Config) validateLogging() error {
	l := &c.Logging
	err := validation.ValidateStruct(l,
		validation.Field(&l.Format, validation.In("console", "json").Error("logging.format must be console or json")),
		validation.Field(&l.Level, validation.In(logLevels...).Error("logging.level must be debug, info, warn, or error")),
	)
	if err != nil {
		return wrapSection("logging", err)
	}
	for component, level := range l.ComponentLevels {
		if err := validation.Validate(level, validation.In(logLevels...)); err != nil {
			return fmt.Errorf("logging.component_levels.%s: unsupported level %q", component, level)
		}
	}
	return nil
}

func (c *Config) validateCodecs() error {
	cd := &c.Codecs
	err := validation.ValidateStruct(cd,
		validation.Field(&cd.MediaTimeoutSeconds, validation.Required.Error("codecs.media_timeout_seconds must be positive"), validation.Min(1).Error("codecs.media_timeout_seconds must be positive")),
		validation.Field(&cd.ImageQuality, validation.Required.Error("codecs.image_quality must be between 1 and 100"), validation.Min(1).Error("codecs.image_quality must be between 1 and 100"), validation.Max(100).Error("codecs.image_quality must be between 1 and 100")),
	)
	return wrapSection("codecs", err)
}

func wrapSection(section string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("invalid %s config: %w", section, err)
}

func (c *Config) validateNotifications() error {
	n := &c.Notifications
	err := validation.ValidateStruct(n,
		validation.Field(&n.NtfyTopic, is.URL.Error("notifications.ntfy_topic must be a URL")),
		validation.Field(&n.RequestTimeoutSeconds, validation.Min(1).Error("notifications.request_timeout_seconds must be positive")),
	)
	return wrapSection("notifications", err)
}
