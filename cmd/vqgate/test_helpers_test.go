package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"vqgate/internal/config"
	"vqgate/internal/media/frames"
	"vqgate/internal/testsupport"
)

// testCatalog holds one scenario with low quality floors so that any
// decodable clip passes, and one loose performance envelope.
const testCatalog = `scenarios:
  - id: cli_case
    name: CLI case
    prompt: A square drifting right
    expected_duration_seconds: 1
    quality:
      temporal_consistency: 0.01
      optical_flow_consistency: 0.01
      ssim: 0.01
      perceptual_quality: 0.01
    performance:
      max_latency_ms: 60000
      min_throughput_fps: 1
`

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
	source     *testsupport.FakeSource
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	base := testsupport.BaseDir(cfg)
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	cfg.Scenarios.CatalogPath = filepath.Join(base, "scenarios.yaml")
	if err := os.WriteFile(cfg.Scenarios.CatalogPath, []byte(testCatalog), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}

	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)

	source := testsupport.NewFakeSource()
	previous := newFrameSource
	newFrameSource = func(*config.Config) frames.Source { return source }
	t.Cleanup(func() { newFrameSource = previous })

	return &cliTestEnv{
		cfg:        cfg,
		configPath: configPath,
		baseDir:    base,
		source:     source,
	}
}

// video writes a file at name and registers a decodable moving clip for it.
func (e *cliTestEnv) video(t *testing.T, name string, seed byte) string {
	t.Helper()
	path := filepath.Join(e.baseDir, "videos", name)
	testsupport.WriteFile(t, path, 4096, seed)
	e.source.Set(path, testsupport.MovingClip(48, 32, 6, 1))
	return path
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
golden_dir = %q
results_dir = %q
log_dir = %q

[golden]
lock_timeout_seconds = %d

[benchmark]
num_runs = 2
trial_pause_ms = 0
sample_interval_ms = %d
monitor_join_timeout_ms = %d

[scenarios]
catalog_path = %q

[telemetry]
textfile_path = %q
`,
		cfg.Paths.GoldenDir,
		cfg.Paths.ResultsDir,
		cfg.Paths.LogDir,
		cfg.Golden.LockTimeoutSeconds,
		cfg.Benchmark.SampleIntervalMS,
		cfg.Benchmark.MonitorJoinTimeoutMS,
		cfg.Scenarios.CatalogPath,
		filepath.Join(cfg.Paths.ResultsDir, "vqgate.prom"),
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
