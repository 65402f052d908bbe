package config

const (
	defaultGoldenDir            = "~/.local/share/vqgate/golden"
	defaultResultsDir           = "~/.local/share/vqgate/results"
	defaultLogDir               = "~/.local/share/vqgate/logs"
	defaultFFmpeg               = "ffmpeg"
	defaultFFprobe              = "ffprobe"
	defaultDecodeMaxWidth       = 320
	defaultDecodeMaxFrames      = 300
	defaultFrameSampleInterval  = 10
	defaultLockTimeoutSeconds   = 30
	defaultDegradationTolerance = 0.05
	defaultDegradedFraction     = 0.30
	defaultBenchmarkRuns        = 5
	defaultTrialPauseMS         = 500
	defaultSampleIntervalMS     = 100
	defaultSampleBuffer         = 1000
	defaultMonitorJoinTimeoutMS = 1000
	defaultGateMinPassRate      = 0.8
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			GoldenDir:  defaultGoldenDir,
			ResultsDir: defaultResultsDir,
			LogDir:     defaultLogDir,
		},
		Tools: Tools{
			FFmpeg:          defaultFFmpeg,
			FFprobe:         defaultFFprobe,
			DecodeMaxWidth:  defaultDecodeMaxWidth,
			DecodeMaxFrames: defaultDecodeMaxFrames,
		},
		Metrics: Metrics{
			TemporalConsistency:    0.85,
			OpticalFlowConsistency: 0.60,
			SSIM:                   0.75,
			PerceptualQuality:      0.50,
			InstructionFollowing:   0.70,
			SemanticSimilarity:     0.70,
		},
		Golden: Golden{
			FrameSampleInterval: defaultFrameSampleInterval,
			LockTimeoutSeconds:  defaultLockTimeoutSeconds,
		},
		Regression: Regression{
			DegradationTolerance: defaultDegradationTolerance,
			DegradedFraction:     defaultDegradedFraction,
		},
		Benchmark: Benchmark{
			NumRuns:              defaultBenchmarkRuns,
			TrialPauseMS:         defaultTrialPauseMS,
			SampleIntervalMS:     defaultSampleIntervalMS,
			SampleBuffer:         defaultSampleBuffer,
			MonitorJoinTimeoutMS: defaultMonitorJoinTimeoutMS,
		},
		Gate: Gate{
			MaxFailures:          0,
			MaxDegraded:          0,
			MaxBenchmarkFailures: 0,
			MinPassRate:          defaultGateMinPassRate,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
