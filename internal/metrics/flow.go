package metrics

import (
	"context"

	"gonum.org/v1/gonum/stat"

	"vqgate/internal/media/frames"
)

type opticalFlowConsistency struct{}

// NewOpticalFlowConsistency scores how steady motion is over time. Each
// frame pair contributes its mean flow magnitude; the score is
// 1 - min(std/mean, 1) over those magnitudes. A motionless clip scores 0.
func NewOpticalFlowConsistency() Metric { return opticalFlowConsistency{} }

func (opticalFlowConsistency) Name() string { return OpticalFlowConsistency }

func (opticalFlowConsistency) Compute(ctx context.Context, clip *frames.Clip, _ Reference) (Result, error) {
	if clip.Len() < 2 {
		return underRun(clip.Len(), 2), nil
	}
	meanMags := make([]float64, 0, clip.Len()-1)
	for i := 1; i < clip.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		mean := 0.0
		if mags := flowMagnitudes(clip.Frames[i-1], clip.Frames[i]); len(mags) > 0 {
			mean = stat.Mean(mags, nil)
		}
		meanMags = append(meanMags, mean)
	}
	return scored(flowConsistency(meanMags), map[string]any{
		"frame_count":         clip.Len(),
		"pair_count":          len(meanMags),
		"mean_flow_magnitude": stat.Mean(meanMags, nil),
	}), nil
}

// flowConsistency is 1 - min(std/mean, 1) over per-pair mean magnitudes,
// with no motion scoring 0.
func flowConsistency(meanMags []float64) float64 {
	if len(meanMags) == 0 {
		return 0
	}
	mean, std := stat.PopMeanStdDev(meanMags, nil)
	if mean <= 0 {
		return 0
	}
	return 1 - min(std/mean, 1)
}
