package metrics

import (
	"context"
	"fmt"
	"image"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"vqgate/internal/media/frames"
)

type ssimMetric struct {
	source frames.Source
}

// NewSSIM scores structural similarity against the reference artifact named
// in Reference.VideoPath, decoded through source. Without a reference it
// falls back to temporal similarity.
func NewSSIM(source frames.Source) Metric { return ssimMetric{source: source} }

func (ssimMetric) Name() string { return SSIM }

func (m ssimMetric) Compute(ctx context.Context, clip *frames.Clip, ref Reference) (Result, error) {
	if ref.VideoPath == "" {
		return temporalSSIM(ctx, clip)
	}
	if m.source == nil {
		return Result{}, fmt.Errorf("ssim: no frame source for reference %s", ref.VideoPath)
	}
	refClip, err := m.source.Decode(ctx, ref.VideoPath)
	if err != nil {
		return Result{}, fmt.Errorf("ssim: decode reference: %w", err)
	}
	n := min(clip.Len(), refClip.Len())
	if n == 0 {
		res := underRun(n, 1)
		res.Details["mode"] = "reference"
		return res, nil
	}

	candidate := clip.Frames[:n]
	resized := false
	if rw, rh := frameSize(refClip.Frames[0]); rw > 0 {
		cw, ch := frameSize(candidate[0])
		if cw != rw || ch != rh {
			scaled := make([]*image.Gray, n)
			for i, f := range candidate {
				scaled[i] = frames.Resize(f, rw, rh)
			}
			candidate = scaled
			resized = true
		}
	}

	pairs, err := pairwiseSSIM(ctx, candidate, refClip.Frames[:n])
	if err != nil {
		return Result{}, err
	}
	return scored(stat.Mean(pairs, nil), map[string]any{
		"mode":            "reference",
		"compared_frames": n,
		"resized":         resized,
		"min_frame":       floats.Min(pairs),
		"max_frame":       floats.Max(pairs),
	}), nil
}

func frameSize(f *image.Gray) (int, int) {
	b := f.Bounds()
	return b.Dx(), b.Dy()
}
