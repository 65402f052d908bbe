package testsupport

import (
	"context"
	"fmt"
	"image"
	"math"
	"math/rand/v2"
	"sync"

	"vqgate/internal/media/frames"
	"vqgate/internal/services"
)

// UniformFrame returns a frame filled with a single intensity.
func UniformFrame(width, height int, value uint8) *image.Gray {
	f := frames.NewGray(width, height)
	for i := range f.Pix {
		f.Pix[i] = value
	}
	return f
}

// TexturedFrame returns a smooth two-dimensional pattern translated by dx
// pixels, so consecutive offsets simulate uniform horizontal motion.
func TexturedFrame(width, height int, dx float64) *image.Gray {
	f := frames.NewGray(width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			fx := float64(x) - dx
			v := 128 + 50*math.Sin(fx/4) + 50*math.Cos(float64(y)/5)
			f.Pix[f.PixOffset(x, y)] = uint8(math.Max(0, math.Min(255, v)))
		}
	}
	return f
}

// NoiseFrame returns deterministic pseudo-random pixels.
func NoiseFrame(width, height int, seed uint64) *image.Gray {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	f := frames.NewGray(width, height)
	for i := range f.Pix {
		f.Pix[i] = uint8(rng.IntN(256))
	}
	return f
}

// MovingClip returns count textured frames shifted by step pixels each.
func MovingClip(width, height, count int, step float64) *frames.Clip {
	out := make([]*image.Gray, count)
	for i := range out {
		out[i] = TexturedFrame(width, height, float64(i)*step)
	}
	return NewClip(out...)
}

// NewClip wraps frames in a clip with matching dimensions.
func NewClip(list ...*image.Gray) *frames.Clip {
	clip := &frames.Clip{Frames: list, FrameRate: 24}
	if len(list) > 0 {
		b := list[0].Bounds()
		clip.Width, clip.Height = b.Dx(), b.Dy()
		clip.Metadata.Width, clip.Metadata.Height = b.Dx(), b.Dy()
		clip.Metadata.FrameRate = 24
		clip.Metadata.DurationSeconds = float64(len(list)) / 24
	}
	return clip
}

// FakeSource serves pre-built clips by path. Unknown paths fail with
// services.ErrNotFound, mirroring the ffmpeg decoder.
type FakeSource struct {
	mu    sync.Mutex
	clips map[string]*frames.Clip
	calls map[string]int
}

// NewFakeSource constructs an empty fake decoder.
func NewFakeSource() *FakeSource {
	return &FakeSource{clips: map[string]*frames.Clip{}, calls: map[string]int{}}
}

// Set registers the clip returned for path.
func (s *FakeSource) Set(path string, clip *frames.Clip) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clips[path] = clip
}

// Calls reports how many times path was decoded.
func (s *FakeSource) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

// Decode implements frames.Source.
func (s *FakeSource) Decode(_ context.Context, path string) (*frames.Clip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[path]++
	clip, ok := s.clips[path]
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, "frames", "decode", fmt.Sprintf("no clip for %s", path), nil)
	}
	copied := *clip
	copied.Path = path
	return &copied, nil
}

var _ frames.Source = (*FakeSource)(nil)
