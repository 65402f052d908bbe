package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	GoldenDir  string `toml:"golden_dir"`
	ResultsDir string `toml:"results_dir"`
	LogDir     string `toml:"log_dir"`
}

// Tools configures the external media binaries used for decoding and probing.
type Tools struct {
	FFmpeg          string `toml:"ffmpeg"`
	FFprobe         string `toml:"ffprobe"`
	DecodeMaxWidth  int    `toml:"decode_max_width"`
	DecodeMaxFrames int    `toml:"decode_max_frames"`
}

// Metrics holds the default minimum score per metric. Scenario thresholds
// override these during regression and comparison runs.
type Metrics struct {
	TemporalConsistency    float64 `toml:"temporal_consistency"`
	OpticalFlowConsistency float64 `toml:"optical_flow_consistency"`
	SSIM                   float64 `toml:"ssim"`
	PerceptualQuality      float64 `toml:"perceptual_quality"`
	InstructionFollowing   float64 `toml:"instruction_following"`
	SemanticSimilarity     float64 `toml:"semantic_similarity"`
}

// Golden contains golden set storage settings.
type Golden struct {
	FrameSampleInterval int `toml:"frame_sample_interval"`
	LockTimeoutSeconds  int `toml:"lock_timeout_seconds"`
}

// Regression contains verdict classification settings.
type Regression struct {
	// DegradationTolerance is the absolute score band treated as no change.
	DegradationTolerance float64 `toml:"degradation_tolerance"`
	// DegradedFraction is the share of degraded metrics above which a run is DEGRADED.
	DegradedFraction float64 `toml:"degraded_fraction"`
}

// Benchmark contains performance harness settings.
type Benchmark struct {
	NumRuns              int `toml:"num_runs"`
	TrialPauseMS         int `toml:"trial_pause_ms"`
	SampleIntervalMS     int `toml:"sample_interval_ms"`
	SampleBuffer         int `toml:"sample_buffer"`
	MonitorJoinTimeoutMS int `toml:"monitor_join_timeout_ms"`
	// TrialTimeoutSeconds bounds each inference call; 0 disables the bound.
	TrialTimeoutSeconds int `toml:"trial_timeout_seconds"`
}

// Gate contains the CI pass/fail policy.
type Gate struct {
	MaxFailures          int     `toml:"max_failures"`
	MaxDegraded          int     `toml:"max_degraded"`
	MaxBenchmarkFailures int     `toml:"max_benchmark_failures"`
	MinPassRate          float64 `toml:"min_pass_rate"`
}

// Scenarios points at an optional YAML scenario catalog.
type Scenarios struct {
	CatalogPath string `toml:"catalog_path"`
}

// Telemetry configures the Prometheus textfile export.
type Telemetry struct {
	TextfilePath string `toml:"textfile_path"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for vqgate.
//
// Configuration sections by subsystem:
//   - Paths: golden set, results history, and log directories
//   - Tools: ffmpeg/ffprobe binaries and decode limits
//   - Metrics: default per-metric thresholds
//   - Golden: frame sampling and writer lease timeout
//   - Regression: degradation tolerance and degraded fraction
//   - Benchmark: trial count, pauses, and resource sampling
//   - Gate: CI pass/fail policy
//   - Scenarios: scenario catalog location
//   - Telemetry: Prometheus textfile output
//   - Logging: log format and level
type Config struct {
	Paths      Paths      `toml:"paths"`
	Tools      Tools      `toml:"tools"`
	Metrics    Metrics    `toml:"metrics"`
	Golden     Golden     `toml:"golden"`
	Regression Regression `toml:"regression"`
	Benchmark  Benchmark  `toml:"benchmark"`
	Gate       Gate       `toml:"gate"`
	Scenarios  Scenarios  `toml:"scenarios"`
	Telemetry  Telemetry  `toml:"telemetry"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/vqgate/config.toml")
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
		if err := decoder.Decode(&cfg); err != nil {
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

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("vqgate.toml")
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

// EnsureDirectories creates the golden set, results, and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.GoldenDir, c.Paths.ResultsDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// MetricThresholds returns the configured default thresholds keyed by metric name.
func (c *Config) MetricThresholds() map[string]float64 {
	return map[string]float64{
		"temporal_consistency":     c.Metrics.TemporalConsistency,
		"optical_flow_consistency": c.Metrics.OpticalFlowConsistency,
		"ssim":                     c.Metrics.SSIM,
		"perceptual_quality":       c.Metrics.PerceptualQuality,
		"instruction_following":    c.Metrics.InstructionFollowing,
		"semantic_similarity":      c.Metrics.SemanticSimilarity,
	}
}

// HistoryPath returns the location of the results database.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.ResultsDir, "history.db")
}

// LogFilePath returns the location of the persistent log file, or "" when file logging is disabled.
func (c *Config) LogFilePath() string {
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return ""
	}
	return filepath.Join(c.Paths.LogDir, "vqgate.log")
}

// CreateSample writes the embedded sample configuration to path.
func CreateSample(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
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
