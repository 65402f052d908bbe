package metrics

import (
	"fmt"
	"image"
)

const (
	ssimWindow = 7
	ssimK1     = 0.01
	ssimK2     = 0.03
	ssimL      = 255.0
)

var (
	ssimC1 = (ssimK1 * ssimL) * (ssimK1 * ssimL)
	ssimC2 = (ssimK2 * ssimL) * (ssimK2 * ssimL)
)

// integral holds summed-area tables for x, y, x², y² and xy with a one pixel
// zero border, so any window sum is four lookups.
type integral struct {
	w, h                  int
	sx, sy, sxx, syy, sxy []float64
}

func newIntegral(a, b *image.Gray) *integral {
	ab := a.Bounds()
	bb := b.Bounds()
	w, h := ab.Dx(), ab.Dy()
	stride := w + 1
	n := stride * (h + 1)
	in := &integral{
		w: w, h: h,
		sx: make([]float64, n), sy: make([]float64, n),
		sxx: make([]float64, n), syy: make([]float64, n), sxy: make([]float64, n),
	}
	for y := 0; y < h; y++ {
		var rx, ry, rxx, ryy, rxy float64
		rowA := a.Pix[a.PixOffset(ab.Min.X, ab.Min.Y+y):]
		rowB := b.Pix[b.PixOffset(bb.Min.X, bb.Min.Y+y):]
		for x := 0; x < w; x++ {
			px := float64(rowA[x])
			py := float64(rowB[x])
			rx += px
			ry += py
			rxx += px * px
			ryy += py * py
			rxy += px * py
			i := (y+1)*stride + x + 1
			up := y*stride + x + 1
			in.sx[i] = in.sx[up] + rx
			in.sy[i] = in.sy[up] + ry
			in.sxx[i] = in.sxx[up] + rxx
			in.syy[i] = in.syy[up] + ryy
			in.sxy[i] = in.sxy[up] + rxy
		}
	}
	return in
}

func (in *integral) box(table []float64, x0, y0, size int) float64 {
	stride := in.w + 1
	x1, y1 := x0+size, y0+size
	return table[y1*stride+x1] - table[y0*stride+x1] - table[y1*stride+x0] + table[y0*stride+x0]
}

// ssimIndex returns the mean structural similarity of two equally sized
// frames over every valid uniform window. Frames smaller than the window use
// a window the size of their shorter side.
func ssimIndex(a, b *image.Gray) (float64, error) {
	ab, bb := a.Bounds(), b.Bounds()
	if ab.Dx() != bb.Dx() || ab.Dy() != bb.Dy() {
		return 0, fmt.Errorf("ssim: frame size mismatch %dx%d vs %dx%d", ab.Dx(), ab.Dy(), bb.Dx(), bb.Dy())
	}
	w, h := ab.Dx(), ab.Dy()
	size := min(ssimWindow, w, h)
	if size < 2 {
		return 0, fmt.Errorf("ssim: frame too small (%dx%d)", w, h)
	}

	in := newIntegral(a, b)
	n := float64(size * size)
	covNorm := n / (n - 1)

	var total float64
	var count int
	for y := 0; y+size <= h; y++ {
		for x := 0; x+size <= w; x++ {
			mx := in.box(in.sx, x, y, size) / n
			my := in.box(in.sy, x, y, size) / n
			vx := covNorm * (in.box(in.sxx, x, y, size)/n - mx*mx)
			vy := covNorm * (in.box(in.syy, x, y, size)/n - my*my)
			vxy := covNorm * (in.box(in.sxy, x, y, size)/n - mx*my)

			num := (2*mx*my + ssimC1) * (2*vxy + ssimC2)
			den := (mx*mx + my*my + ssimC1) * (vx + vy + ssimC2)
			total += num / den
			count++
		}
	}
	return total / float64(count), nil
}
