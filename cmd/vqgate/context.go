package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"vqgate/internal/config"
	"vqgate/internal/golden"
	"vqgate/internal/history"
	"vqgate/internal/logging"
	"vqgate/internal/media/frames"
	"vqgate/internal/metrics"
	"vqgate/internal/scenario"
	"vqgate/internal/telemetry"
)

// newFrameSource builds the decoder used by every command.
var newFrameSource = func(cfg *config.Config) frames.Source {
	return frames.FromConfig(cfg)
}

type commandContext struct {
	configFlag *string
	jsonFlag   *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger

	telemetryOnce sync.Once
	metrics       *telemetry.Metrics
}

func newCommandContext(configFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		jsonFlag:   jsonFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
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

func (c *commandContext) jsonOutput() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

func (c *commandContext) log() *slog.Logger {
	c.loggerOnce.Do(func() {
		logger, err := logging.NewFromConfig(c.configValue())
		if err != nil {
			logger = logging.NewNop()
		}
		c.logger = logger
	})
	return c.logger
}

func (c *commandContext) frameSource() frames.Source {
	return newFrameSource(c.configValue())
}

func (c *commandContext) catalog() (*scenario.Catalog, error) {
	cfg := c.configValue()
	return scenario.Load(cfg.Scenarios.CatalogPath)
}

func (c *commandContext) engine() *metrics.Engine {
	return metrics.NewDefaultEngine(c.frameSource(), c.configValue().MetricThresholds(), c.log())
}

func (c *commandContext) goldenManager() (*golden.Manager, error) {
	return golden.FromConfig(c.configValue(), c.frameSource(), c.log())
}

func (c *commandContext) withHistory(fn func(*history.Store) error) error {
	store, err := history.Open(c.configValue())
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer store.Close()
	return fn(store)
}

func (c *commandContext) telemetry() *telemetry.Metrics {
	c.telemetryOnce.Do(func() {
		c.metrics = telemetry.New()
	})
	return c.metrics
}

// flushTelemetry writes the textfile when one is configured. Failures are
// logged; telemetry never fails a command.
func (c *commandContext) flushTelemetry() {
	path := c.configValue().Telemetry.TextfilePath
	if path == "" || c.metrics == nil {
		return
	}
	if err := c.metrics.WriteTextfile(path); err != nil {
		logging.WarnWithContext(c.log(), "telemetry textfile not written", "telemetry_write_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check telemetry.textfile_path permissions"),
			logging.String(logging.FieldImpact, "CI metrics missing for this run"),
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
