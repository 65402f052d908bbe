package metrics

import (
	"image"
	"math"
)

const (
	flowGridStep   = 8
	flowHalfWindow = 4
	// flowMinEigen rejects windows without enough texture to resolve motion.
	flowMinEigen = 1e-2
)

// flowMagnitudes estimates Lucas-Kanade flow between prev and next on a
// regular grid and returns the flow magnitude at each grid point. Points in
// untextured windows cannot resolve motion and are left out.
func flowMagnitudes(prev, next *image.Gray) []float64 {
	b := prev.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < 2*flowHalfWindow+3 || h < 2*flowHalfWindow+3 || next.Bounds().Dx() != w || next.Bounds().Dy() != h {
		return nil
	}

	at := func(img *image.Gray, x, y int) float64 {
		return float64(img.Pix[img.PixOffset(b.Min.X+x, b.Min.Y+y)])
	}

	margin := flowHalfWindow + 1
	var mags []float64
	for cy := margin; cy < h-margin; cy += flowGridStep {
		for cx := margin; cx < w-margin; cx += flowGridStep {
			var sxx, syy, sxy, sxt, syt float64
			for y := cy - flowHalfWindow; y <= cy+flowHalfWindow; y++ {
				for x := cx - flowHalfWindow; x <= cx+flowHalfWindow; x++ {
					ix := (at(prev, x+1, y) - at(prev, x-1, y) + at(next, x+1, y) - at(next, x-1, y)) / 4
					iy := (at(prev, x, y+1) - at(prev, x, y-1) + at(next, x, y+1) - at(next, x, y-1)) / 4
					it := at(next, x, y) - at(prev, x, y)
					sxx += ix * ix
					syy += iy * iy
					sxy += ix * iy
					sxt += ix * it
					syt += iy * it
				}
			}
			// Smaller eigenvalue of the structure tensor.
			tr := sxx + syy
			det := sxx*syy - sxy*sxy
			disc := math.Sqrt(math.Max(tr*tr/4-det, 0))
			if tr/2-disc < flowMinEigen || det == 0 {
				continue
			}
			u := (-syy*sxt + sxy*syt) / det
			v := (sxy*sxt - sxx*syt) / det
			mags = append(mags, math.Hypot(u, v))
		}
	}
	return mags
}

// laplacianResponse applies the 4-neighbour Laplacian over the frame interior.
func laplacianResponse(frame *image.Gray) []float64 {
	b := frame.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < 3 || h < 3 {
		return nil
	}
	at := func(x, y int) float64 {
		return float64(frame.Pix[frame.PixOffset(b.Min.X+x, b.Min.Y+y)])
	}
	out := make([]float64, 0, (w-2)*(h-2))
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			out = append(out, at(x-1, y)+at(x+1, y)+at(x, y-1)+at(x, y+1)-4*at(x, y))
		}
	}
	return out
}
