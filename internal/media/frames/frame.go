package frames

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"image"

	"golang.org/x/image/draw"

	"vqgate/internal/media/ffprobe"
)

// Clip is a decoded artifact.
type Clip struct {
	Path      string
	Frames    []*image.Gray
	Width     int
	Height    int
	FrameRate float64
	Metadata  ffprobe.Metadata
}

// Len returns the number of decoded frames.
func (c *Clip) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Frames)
}

// NewGray allocates a zeroed frame.
func NewGray(width, height int) *image.Gray {
	return image.NewGray(image.Rect(0, 0, width, height))
}

// Resize scales src to width x height with bilinear interpolation. The source
// is returned unchanged when it already has the requested size.
func Resize(src *image.Gray, width, height int) *image.Gray {
	b := src.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return src
	}
	dst := NewGray(width, height)
	draw.BiLinear.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}

// Sample returns every interval-th frame starting with the first.
func Sample(frames []*image.Gray, interval int) []*image.Gray {
	if interval <= 1 {
		return append([]*image.Gray(nil), frames...)
	}
	out := make([]*image.Gray, 0, len(frames)/interval+1)
	for i := 0; i < len(frames); i += interval {
		out = append(out, frames[i])
	}
	return out
}

// Hash returns the hex SHA-256 digest of the frame dimensions and pixels.
func Hash(frame *image.Gray) string {
	h := sha256.New()
	b := frame.Bounds()
	var dims [8]byte
	binary.BigEndian.PutUint32(dims[:4], uint32(b.Dx()))
	binary.BigEndian.PutUint32(dims[4:], uint32(b.Dy()))
	h.Write(dims[:])
	for y := b.Min.Y; y < b.Max.Y; y++ {
		start := frame.PixOffset(b.Min.X, y)
		h.Write(frame.Pix[start : start+b.Dx()])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Mean returns the average intensity of a frame.
func Mean(frame *image.Gray) float64 {
	b := frame.Bounds()
	n := b.Dx() * b.Dy()
	if n == 0 {
		return 0
	}
	var sum uint64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		start := frame.PixOffset(b.Min.X, y)
		for _, v := range frame.Pix[start : start+b.Dx()] {
			sum += uint64(v)
		}
	}
	return float64(sum) / float64(n)
}

// Float64s copies frame pixels into a dense row-major slice.
func Float64s(frame *image.Gray) []float64 {
	b := frame.Bounds()
	out := make([]float64, 0, b.Dx()*b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		start := frame.PixOffset(b.Min.X, y)
		for _, v := range frame.Pix[start : start+b.Dx()] {
			out = append(out, float64(v))
		}
	}
	return out
}
