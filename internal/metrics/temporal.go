package metrics

import (
	"context"
	"image"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"vqgate/internal/media/frames"
)

type temporalConsistency struct{}

// NewTemporalConsistency scores frame-to-frame structural similarity.
func NewTemporalConsistency() Metric { return temporalConsistency{} }

func (temporalConsistency) Name() string { return TemporalConsistency }

func (temporalConsistency) Compute(ctx context.Context, clip *frames.Clip, _ Reference) (Result, error) {
	return temporalSSIM(ctx, clip)
}

// temporalSSIM averages SSIM over consecutive frame pairs.
func temporalSSIM(ctx context.Context, clip *frames.Clip) (Result, error) {
	if clip.Len() < 2 {
		return underRun(clip.Len(), 2), nil
	}
	pairs, err := pairwiseSSIM(ctx, clip.Frames[:len(clip.Frames)-1], clip.Frames[1:])
	if err != nil {
		return Result{}, err
	}
	return scored(stat.Mean(pairs, nil), map[string]any{
		"mode":        "temporal",
		"frame_count": clip.Len(),
		"pair_count":  len(pairs),
		"min_pair":    floats.Min(pairs),
		"max_pair":    floats.Max(pairs),
	}), nil
}

func pairwiseSSIM(ctx context.Context, a, b []*image.Gray) ([]float64, error) {
	n := min(len(a), len(b))
	out := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v, err := ssimIndex(a[i], b[i])
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
