package metrics

import (
	"math"
	"testing"

	"vqgate/internal/media/frames"
	"vqgate/internal/testsupport"
)

func TestSSIMIndexIdenticalAndUnrelated(t *testing.T) {
	a := testsupport.NoiseFrame(20, 20, 1)
	b := testsupport.NoiseFrame(20, 20, 2)
	same, err := ssimIndex(a, a)
	if err != nil {
		t.Fatalf("ssimIndex returned error: %v", err)
	}
	if math.Abs(same-1) > 1e-9 {
		t.Fatalf("expected 1 for identical frames, got %v", same)
	}
	diff, _ := ssimIndex(a, b)
	if diff >= 0.5 {
		t.Fatalf("expected low similarity for unrelated frames, got %v", diff)
	}
}

func TestSSIMIndexRejectsMismatchedSizes(t *testing.T) {
	if _, err := ssimIndex(frames.NewGray(8, 8), frames.NewGray(8, 9)); err == nil {
		t.Fatal("expected size mismatch error")
	}
	if _, err := ssimIndex(frames.NewGray(1, 8), frames.NewGray(1, 8)); err == nil {
		t.Fatal("expected too-small error")
	}
}

func TestSSIMIndexSmallFrameUsesShrunkWindow(t *testing.T) {
	a := frames.NewGray(4, 10)
	for i := range a.Pix {
		a.Pix[i] = uint8(i * 5)
	}
	v, err := ssimIndex(a, a)
	if err != nil || math.Abs(v-1) > 1e-9 {
		t.Fatalf("expected 1, got %v (%v)", v, err)
	}
}

func TestFlowConsistency(t *testing.T) {
	tests := []struct {
		name string
		mags []float64
		want float64
	}{
		{"empty", nil, 0},
		{"motionless", []float64{0, 0, 0}, 0},
		{"steady", []float64{2, 2, 2}, 1},
		{"alternating", []float64{1, 3, 1, 3}, 0.5},
		{"spiky", []float64{0, 0, 0, 8}, 0},
	}
	for _, tc := range tests {
		if got := flowConsistency(tc.mags); math.Abs(got-tc.want) > 1e-12 {
			t.Fatalf("%s: flowConsistency(%v) = %v, want %v", tc.name, tc.mags, got, tc.want)
		}
	}
}

func TestFlowMagnitudesSkipUntexturedWindows(t *testing.T) {
	flat := testsupport.UniformFrame(32, 32, 90)
	if mags := flowMagnitudes(flat, flat); len(mags) != 0 {
		t.Fatalf("expected no measurable windows on a flat frame, got %v", mags)
	}
}

func TestBrightnessConsistency(t *testing.T) {
	if got := brightnessConsistency([]float64{0, 0}); got != 1 {
		t.Fatalf("expected black clip to be consistent, got %v", got)
	}
	if got := brightnessConsistency([]float64{100, 100, 100}); got != 1 {
		t.Fatalf("expected constant brightness to score 1, got %v", got)
	}
	if got := brightnessConsistency([]float64{10, 200}); got >= 0.2 {
		t.Fatalf("expected flicker to score low, got %v", got)
	}
}

func TestLaplacianResponseOnFlatFrameIsZero(t *testing.T) {
	f := frames.NewGray(5, 5)
	for i := range f.Pix {
		f.Pix[i] = 90
	}
	for _, v := range laplacianResponse(f) {
		if v != 0 {
			t.Fatalf("expected zero response, got %v", v)
		}
	}
	if laplacianResponse(frames.NewGray(2, 2)) != nil {
		t.Fatal("expected nil for frames without an interior")
	}
}
