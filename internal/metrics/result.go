package metrics

import (
	"context"

	"vqgate/internal/media/frames"
)

// Metric names.
const (
	TemporalConsistency    = "temporal_consistency"
	OpticalFlowConsistency = "optical_flow_consistency"
	SSIM                   = "ssim"
	PerceptualQuality      = "perceptual_quality"
	InstructionFollowing   = "instruction_following"
	SemanticSimilarity     = "semantic_similarity"
)

// DefaultThresholds returns the built-in minimum score for each metric.
func DefaultThresholds() map[string]float64 {
	return map[string]float64{
		TemporalConsistency:    0.85,
		OpticalFlowConsistency: 0.60,
		SSIM:                   0.75,
		PerceptualQuality:      0.50,
		InstructionFollowing:   0.70,
		SemanticSimilarity:     0.70,
	}
}

// Status tags whether a result carries a real score.
type Status string

const (
	StatusScored      Status = "scored"
	StatusUnavailable Status = "unavailable"
)

// Result is the output of one metric over one clip.
type Result struct {
	Name      string         `json:"metric_name"`
	Score     float64        `json:"score"`
	Passed    bool           `json:"passed"`
	Threshold float64        `json:"threshold"`
	Status    Status         `json:"status"`
	Details   map[string]any `json:"details,omitempty"`
}

// Available reports whether the result carries a real score.
func (r Result) Available() bool {
	return r.Status != StatusUnavailable
}

// Errored reports whether the metric failed to compute.
func (r Result) Errored() bool {
	_, ok := r.Details["error"]
	return ok
}

// Reference is optional auxiliary input for a metric.
type Reference struct {
	// VideoPath is a reference artifact, usually the golden baseline copy.
	VideoPath string
	// Prompt is the generation prompt, for prompt-aware metrics.
	Prompt string
}

// Metric scores a decoded clip. Implementations set Score, Status and
// Details; the engine owns Name, Threshold and Passed.
type Metric interface {
	Name() string
	Compute(ctx context.Context, clip *frames.Clip, ref Reference) (Result, error)
}

// ByName indexes results by metric name.
func ByName(results []Result) map[string]Result {
	out := make(map[string]Result, len(results))
	for _, r := range results {
		out[r.Name] = r
	}
	return out
}

// Scores returns the scores of available results keyed by metric name.
func Scores(results []Result) map[string]float64 {
	out := make(map[string]float64, len(results))
	for _, r := range results {
		if r.Available() {
			out[r.Name] = r.Score
		}
	}
	return out
}

func scored(score float64, details map[string]any) Result {
	return Result{Score: score, Status: StatusScored, Details: details}
}

func underRun(frameCount, required int) Result {
	return Result{
		Score:  0,
		Status: StatusScored,
		Details: map[string]any{
			"error":           "insufficient_frames",
			"frame_count":     frameCount,
			"required_frames": required,
		},
	}
}
