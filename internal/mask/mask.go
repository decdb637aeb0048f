// Package mask turns a raster image into a binary inside/outside occupancy
// grid and derives the seed cost grids consumed by the distance transform.
package mask

import (
	"errors"
	"image"
	"image/color"
	"sync/atomic"

	"github.com/gogpu/sdfgen/internal/edt"
	"github.com/gogpu/sdfgen/internal/parallel"
)

// Errors returned by Rasterize.
var (
	// ErrEmptySource is returned for a nil or zero-area source image.
	ErrEmptySource = errors.New("mask: empty source image")

	// ErrInvalidSize is returned for non-positive output dimensions.
	ErrInvalidSize = errors.New("mask: invalid output size")

	// ErrCanceled is returned when the cancel flag was observed.
	ErrCanceled = errors.New("mask: canceled")
)

// Mask is a row-major grid of inside flags.
type Mask struct {
	Width  int
	Height int

	// Inside holds Width*Height flags; true means inside the shape.
	Inside []bool
}

// New returns an all-outside mask.
func New(width, height int) *Mask {
	return &Mask{Width: width, Height: height, Inside: make([]bool, width*height)}
}

// At reports whether (x, y) is inside. Out-of-range coordinates are outside.
func (m *Mask) At(x, y int) bool {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return false
	}
	return m.Inside[y*m.Width+x]
}

// Set marks (x, y) as inside or outside.
func (m *Mask) Set(x, y int, inside bool) {
	m.Inside[y*m.Width+x] = inside
}

// Uniform reports whether every cell has the same value.
func (m *Mask) Uniform() bool {
	if len(m.Inside) < 2 {
		return true
	}
	for _, in := range m.Inside[1:] {
		if in != m.Inside[0] {
			return false
		}
	}
	return true
}

// CostGrids returns the two seed grids of the mask. insideSeeded is zero at
// inside cells and measures how far outside cells are from the shape;
// outsideSeeded is zero at outside cells and measures the depth of inside
// cells. Every other cell holds edt.Inf.
func (m *Mask) CostGrids() (insideSeeded, outsideSeeded []float64) {
	insideSeeded = make([]float64, len(m.Inside))
	outsideSeeded = make([]float64, len(m.Inside))
	for i, in := range m.Inside {
		if in {
			outsideSeeded[i] = edt.Inf
		} else {
			insideSeeded[i] = edt.Inf
		}
	}
	return insideSeeded, outsideSeeded
}

// Rasterize samples src onto a width×height grid with nearest-pixel lookup
// and marks a cell inside when its luminance exceeds threshold.
//
// Output cell (ox, oy) reads source pixel (ox*srcW/width, oy*srcH/height)
// relative to the source bounds. Rows are dispatched through s, one progress
// unit per row.
func Rasterize(src image.Image, width, height int, threshold uint8, s *parallel.Scheduler, cancel *atomic.Bool, progress func(int)) (*Mask, error) {
	if src == nil || src.Bounds().Empty() {
		return nil, ErrEmptySource
	}
	if width <= 0 || height <= 0 {
		return nil, ErrInvalidSize
	}

	b := src.Bounds()
	srcW, srcH := b.Dx(), b.Dy()
	lum := luminanceFunc(src)

	// Column lookups are shared by every row.
	xs := make([]int, width)
	for ox := range xs {
		xs[ox] = b.Min.X + ox*srcW/width
	}

	m := New(width, height)
	rows := func(start, end int) {
		for oy := start; oy < end; oy++ {
			sy := b.Min.Y + oy*srcH/height
			row := m.Inside[oy*width : (oy+1)*width]
			for ox, sx := range xs {
				row[ox] = lum(sx, sy) > threshold
			}
		}
	}
	if !s.Run(height, 0, cancel, rows, progress) {
		return nil, ErrCanceled
	}
	return m, nil
}

// luminanceFunc returns a per-pixel luminance reader, avoiding the color
// interface for common concrete image types.
func luminanceFunc(src image.Image) func(x, y int) uint8 {
	switch img := src.(type) {
	case *image.Gray:
		return func(x, y int) uint8 {
			return img.Pix[img.PixOffset(x, y)]
		}
	case *image.Gray16:
		return func(x, y int) uint8 {
			return uint8(img.Gray16At(x, y).Y >> 8)
		}
	default:
		return func(x, y int) uint8 {
			return color.GrayModel.Convert(src.At(x, y)).(color.Gray).Y
		}
	}
}

// Histogram returns the 256-bin luminance histogram of src.
func Histogram(src image.Image) [256]int {
	var h [256]int
	if src == nil {
		return h
	}
	b := src.Bounds()
	lum := luminanceFunc(src)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			h[lum(x, y)]++
		}
	}
	return h
}

// OtsuThreshold picks the threshold that maximizes the between-class
// variance of the luminance histogram of src. Pixels strictly above the
// returned value form the brighter class, matching Rasterize.
func OtsuThreshold(src image.Image) uint8 {
	return otsu(Histogram(src))
}

func otsu(h [256]int) uint8 {
	total := 0
	sum := 0.0
	for i, n := range h {
		total += n
		sum += float64(i) * float64(n)
	}
	if total == 0 {
		return 127
	}

	var (
		best      float64
		threshold uint8
		weightB   int
		sumB      float64
	)
	for t := range 256 {
		weightB += h[t]
		if weightB == 0 {
			continue
		}
		weightF := total - weightB
		if weightF == 0 {
			break
		}
		sumB += float64(t) * float64(h[t])
		meanB := sumB / float64(weightB)
		meanF := (sum - sumB) / float64(weightF)
		between := float64(weightB) * float64(weightF) * (meanB - meanF) * (meanB - meanF)
		if between > best {
			best = between
			threshold = uint8(t) //nolint:gosec // t < 256
		}
	}
	return threshold
}
