package metrics

import (
	"context"

	"gonum.org/v1/gonum/stat"

	"vqgate/internal/media/frames"
)

const (
	sharpnessScale = 1000.0
	contrastScale  = 128.0

	sharpnessWeight  = 0.4
	contrastWeight   = 0.3
	brightnessWeight = 0.3
)

type perceptualQuality struct{}

// NewPerceptualQuality combines sharpness, contrast, and brightness
// consistency into a single no-reference score.
func NewPerceptualQuality() Metric { return perceptualQuality{} }

func (perceptualQuality) Name() string { return PerceptualQuality }

func (perceptualQuality) Compute(ctx context.Context, clip *frames.Clip, _ Reference) (Result, error) {
	if clip.Len() == 0 {
		return underRun(0, 1), nil
	}
	sharpness := make([]float64, 0, clip.Len())
	contrast := make([]float64, 0, clip.Len())
	brightness := make([]float64, 0, clip.Len())
	for _, frame := range clip.Frames {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		if lap := laplacianResponse(frame); len(lap) > 0 {
			_, variance := stat.PopMeanVariance(lap, nil)
			sharpness = append(sharpness, min(variance/sharpnessScale, 1))
		} else {
			sharpness = append(sharpness, 0)
		}
		mean, std := stat.PopMeanStdDev(frames.Float64s(frame), nil)
		contrast = append(contrast, min(std/contrastScale, 1))
		brightness = append(brightness, mean)
	}

	sharp := stat.Mean(sharpness, nil)
	cont := stat.Mean(contrast, nil)
	consistency := brightnessConsistency(brightness)
	score := sharpnessWeight*sharp + contrastWeight*cont + brightnessWeight*consistency
	return scored(score, map[string]any{
		"frame_count":            clip.Len(),
		"sharpness":              sharp,
		"contrast":               cont,
		"brightness_consistency": consistency,
	}), nil
}

// brightnessConsistency is 1 - min(std/mean, 1) over per-frame means. An
// all-black clip is perfectly consistent.
func brightnessConsistency(means []float64) float64 {
	mean, std := stat.PopMeanStdDev(means, nil)
	if mean <= 0 {
		if std == 0 {
			return 1
		}
		return 0
	}
	return 1 - min(std/mean, 1)
}
