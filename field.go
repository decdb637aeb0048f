package sdfgen

import (
	"image"
	"math"
	"sync/atomic"

	"github.com/gogpu/sdfgen/internal/parallel"
)

// Field is a signed distance field: positive inside the shape, negative
// outside, in output pixels.
type Field struct {
	Width  int
	Height int

	// Values holds Width*Height signed distances in row-major order.
	Values []float64

	// Min and Max are the extremes of Values.
	Min float64
	Max float64
}

// At returns the signed distance at (x, y).
func (f *Field) At(x, y int) float64 {
	return f.Values[y*f.Width+x]
}

// Encode min-max normalizes the field to an 8-bit grayscale image.
// A field with Min == Max encodes every pixel at the midpoint.
func (f *Field) Encode(p Polarity) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, f.Width, f.Height))
	f.encodeRows(img, p, 0, f.Height)
	return img
}

// encodeRows writes rows [y0, y1) of the field into img.
func (f *Field) encodeRows(img *image.Gray, p Polarity, y0, y1 int) {
	denom := f.Max - f.Min
	for y := y0; y < y1; y++ {
		src := f.Values[y*f.Width : (y+1)*f.Width]
		dst := img.Pix[y*img.Stride : y*img.Stride+f.Width]
		for x, v := range src {
			n := 0.5
			if denom > 0 {
				n = (v - f.Min) / denom
			}
			b := uint8(math.Round(math.Min(math.Max(n*255, 0), 255)))
			if p == OutsideBright {
				b = 255 - b
			}
			dst[x] = b
		}
	}
}

// encode is Encode dispatched through the scheduler, one unit per row.
func (f *Field) encode(p Polarity, s *parallel.Scheduler, cancel *atomic.Bool, progress func(int)) (*image.Gray, bool) {
	img := image.NewGray(image.Rect(0, 0, f.Width, f.Height))
	ok := s.Run(f.Height, 0, cancel, func(start, end int) {
		f.encodeRows(img, p, start, end)
	}, progress)
	if !ok {
		return nil, false
	}
	return img, true
}

// mergeField assembles the signed field from the inside flags and the two
// squared distance grids. insideSq holds squared distances to the nearest
// inside cell, outsideSq to the nearest outside cell. Values are clamped to
// [-maxDistance, maxDistance] when maxDistance is positive.
func mergeField(inside []bool, insideSq, outsideSq []float64, width, height int, maxDistance float64,
	s *parallel.Scheduler, cancel *atomic.Bool, progress func(int),
) (*Field, bool) {
	f := &Field{Width: width, Height: height, Values: make([]float64, width*height)}

	// Per-row extremes keep the reduction independent of block order.
	rowMin := make([]float64, height)
	rowMax := make([]float64, height)

	ok := s.Run(height, 0, cancel, func(start, end int) {
		for y := start; y < end; y++ {
			lo, hi := math.Inf(1), math.Inf(-1)
			for i := y * width; i < (y+1)*width; i++ {
				var v float64
				if inside[i] {
					v = math.Sqrt(outsideSq[i])
				} else {
					v = -math.Sqrt(insideSq[i])
				}
				if maxDistance > 0 {
					v = math.Min(math.Max(v, -maxDistance), maxDistance)
				}
				f.Values[i] = v
				lo = math.Min(lo, v)
				hi = math.Max(hi, v)
			}
			rowMin[y], rowMax[y] = lo, hi
		}
	}, progress)
	if !ok {
		return nil, false
	}

	f.Min, f.Max = rowMin[0], rowMax[0]
	for y := 1; y < height; y++ {
		f.Min = math.Min(f.Min, rowMin[y])
		f.Max = math.Max(f.Max, rowMax[y])
	}
	return f, true
}
