package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"transmute/internal/codecs"
	"transmute/internal/config"
	"transmute/internal/engine"
	"transmute/internal/logging"
	"transmute/internal/registry"
	"transmute/internal/staging"
)

// staleChainAge is how old a leftover chain directory must be before startup
// removes it.
const staleChainAge = 6 * time.Hour

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	engineOnce sync.Once
	engine     *engine.Engine
	report     registry.DiscoveryReport
	logger     *slog.Logger
	engineErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

// ensureEngine builds the logger, discovers codecs, and sweeps stale chain
// directories. It runs at most once per invocation.
func (c *commandContext) ensureEngine(ctx context.Context) (*engine.Engine, error) {
	c.engineOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.engineErr = err
			return
		}
		logger, err := logging.NewFromConfig(cfg)
		if err != nil {
			c.engineErr = fmt.Errorf("init logger: %w", err)
			return
		}
		c.logger = logger

		staging.CleanStale(ctx, cfg.Paths.WorkDir, staleChainAge, logging.ForComponent(logger, cfg, "staging"))

		reg := registry.New(codecs.Catalog(cfg, logging.ComponentLevel(logger, cfg, "codecs")), logging.ComponentLevel(logger, cfg, "registry"))
		c.report = reg.Discover(ctx)
		c.engine = engine.New(reg,
			engine.WithWorkDir(cfg.Paths.WorkDir),
			engine.WithLogger(logging.ComponentLevel(logger, cfg, "engine")),
		)
	})
	return c.engine, c.engineErr
}

// writeMetrics exports the engine's counters when a textfile is configured.
func (c *commandContext) writeMetrics(eng *engine.Engine) {
	cfg := c.configValue()
	if cfg == nil || eng == nil || strings.TrimSpace(cfg.Metrics.Textfile) == "" {
		return
	}
	if err := eng.Metrics().WriteTextfile(cfg.Metrics.Textfile); err != nil && c.logger != nil {
		logging.WarnWithContext(c.logger, "metrics export failed", "metrics_export",
			logging.String("path", cfg.Metrics.Textfile),
			logging.Error(err),
		)
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
