package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTools()
	c.normalizeGolden()
	c.normalizeBenchmark()
	if err := c.normalizeScenarios(); err != nil {
		return err
	}
	if err := c.normalizeTelemetry(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if value, ok := os.LookupEnv("VQGATE_GOLDEN_DIR"); ok && strings.TrimSpace(value) != "" {
		c.Paths.GoldenDir = strings.TrimSpace(value)
	}
	if strings.TrimSpace(c.Paths.GoldenDir) == "" {
		c.Paths.GoldenDir = defaultGoldenDir
	}
	if c.Paths.GoldenDir, err = expandPath(c.Paths.GoldenDir); err != nil {
		return fmt.Errorf("paths.golden_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ResultsDir) == "" {
		c.Paths.ResultsDir = defaultResultsDir
	}
	if c.Paths.ResultsDir, err = expandPath(c.Paths.ResultsDir); err != nil {
		return fmt.Errorf("paths.results_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeTools() {
	if value, ok := os.LookupEnv("VQGATE_FFMPEG"); ok && strings.TrimSpace(value) != "" {
		c.Tools.FFmpeg = value
	}
	if value, ok := os.LookupEnv("VQGATE_FFPROBE"); ok && strings.TrimSpace(value) != "" {
		c.Tools.FFprobe = value
	}
	c.Tools.FFmpeg = strings.TrimSpace(c.Tools.FFmpeg)
	if c.Tools.FFmpeg == "" {
		c.Tools.FFmpeg = defaultFFmpeg
	}
	c.Tools.FFprobe = strings.TrimSpace(c.Tools.FFprobe)
	if c.Tools.FFprobe == "" {
		c.Tools.FFprobe = defaultFFprobe
	}
	if c.Tools.DecodeMaxWidth < 0 {
		c.Tools.DecodeMaxWidth = 0
	}
	if c.Tools.DecodeMaxFrames < 0 {
		c.Tools.DecodeMaxFrames = 0
	}
}

func (c *Config) normalizeGolden() {
	if c.Golden.FrameSampleInterval <= 0 {
		c.Golden.FrameSampleInterval = defaultFrameSampleInterval
	}
	if c.Golden.LockTimeoutSeconds <= 0 {
		c.Golden.LockTimeoutSeconds = defaultLockTimeoutSeconds
	}
}

func (c *Config) normalizeBenchmark() {
	if c.Benchmark.SampleBuffer <= 0 {
		c.Benchmark.SampleBuffer = defaultSampleBuffer
	}
	if c.Benchmark.MonitorJoinTimeoutMS <= 0 {
		c.Benchmark.MonitorJoinTimeoutMS = defaultMonitorJoinTimeoutMS
	}
	if c.Benchmark.TrialPauseMS < 0 {
		c.Benchmark.TrialPauseMS = 0
	}
	if c.Benchmark.TrialTimeoutSeconds < 0 {
		c.Benchmark.TrialTimeoutSeconds = 0
	}
}

func (c *Config) normalizeScenarios() error {
	c.Scenarios.CatalogPath = strings.TrimSpace(c.Scenarios.CatalogPath)
	if c.Scenarios.CatalogPath == "" {
		return nil
	}
	var err error
	if c.Scenarios.CatalogPath, err = expandPath(c.Scenarios.CatalogPath); err != nil {
		return fmt.Errorf("scenarios.catalog_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeTelemetry() error {
	c.Telemetry.TextfilePath = strings.TrimSpace(c.Telemetry.TextfilePath)
	if c.Telemetry.TextfilePath == "" {
		return nil
	}
	var err error
	if c.Telemetry.TextfilePath, err = expandPath(c.Telemetry.TextfilePath); err != nil {
		return fmt.Errorf("telemetry.textfile_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
