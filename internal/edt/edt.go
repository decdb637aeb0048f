// Package edt computes exact squared Euclidean distance transforms.
//
// The 1D transform builds the lower envelope of the parabolas
// (x-v)² + f[v] in linear time. The 2D transform applies it separably,
// first along every row and then along every column, which yields the exact
// squared distance to the nearest zero-cost cell.
package edt

import (
	"errors"
	"math"
	"sync/atomic"

	"github.com/gogpu/sdfgen/internal/parallel"
)

// Inf is the cost of a cell that is not a seed. It is far larger than any
// squared distance on a supported grid, so Inf + n² is never mistaken for a
// finite result.
const Inf = 1e20

// Errors returned by Transform.
var (
	// ErrDimensions is returned when the grid does not match width*height
	// or a dimension is not positive.
	ErrDimensions = errors.New("edt: grid size does not match dimensions")

	// ErrCanceled is returned when the cancel flag was observed.
	ErrCanceled = errors.New("edt: canceled")
)

// Transform1D writes to d the squared distance from every index of f to its
// nearest seed: d[q] = min over v of (q-v)² + f[v].
//
// Cells whose cost is Inf or more never enter the envelope; if f holds no
// finite cost at all, every d[q] is Inf.
//
// d must have len(f) elements. v and z are scratch space of at least len(f)
// and len(f)+1 elements. An empty f is a no-op.
func Transform1D(f, d []float64, v []int, z []float64) {
	n := len(f)
	if n <= 0 {
		return
	}

	k := -1
	for q := range n {
		if f[q] >= Inf {
			continue
		}
		if k < 0 {
			k = 0
			v[0] = q
			z[0] = math.Inf(-1)
			z[1] = math.Inf(1)
			continue
		}
		s := intersect(f, q, v[k])
		for s <= z[k] {
			k--
			s = intersect(f, q, v[k])
		}
		k++
		v[k] = q
		z[k] = s
		z[k+1] = math.Inf(1)
	}

	if k < 0 {
		for q := range d[:n] {
			d[q] = Inf
		}
		return
	}

	k = 0
	for q := range n {
		for z[k+1] < float64(q) {
			k++
		}
		dq := float64(q - v[k])
		d[q] = dq*dq + f[v[k]]
	}
}

// intersect returns the abscissa where the parabolas rooted at q and p meet.
// p < q always holds, so the denominator is positive.
func intersect(f []float64, q, p int) float64 {
	fq, fp := float64(q), float64(p)
	return ((f[q] + fq*fq) - (f[p] + fp*fp)) / (2*fq - 2*fp)
}

// Transform returns the squared Euclidean distance from every cell of grid
// to its nearest zero-cost cell. grid is row-major, width*height cells, and
// is not modified.
//
// Rows and then columns are dispatched through s; progress receives one
// unit per finished row and per finished column. When cancel is observed the
// result is discarded and ErrCanceled is returned.
func Transform(grid []float64, width, height int, s *parallel.Scheduler, cancel *atomic.Bool, progress func(int)) ([]float64, error) {
	if width <= 0 || height <= 0 || len(grid) != width*height {
		return nil, ErrDimensions
	}

	tmp := make([]float64, len(grid))
	out := make([]float64, len(grid))

	rows := func(start, end int) {
		v := make([]int, width)
		z := make([]float64, width+1)
		for y := start; y < end; y++ {
			row := y * width
			Transform1D(grid[row:row+width], tmp[row:row+width], v, z)
		}
	}
	if !s.Run(height, 0, cancel, rows, progress) {
		return nil, ErrCanceled
	}

	cols := func(start, end int) {
		v := make([]int, height)
		z := make([]float64, height+1)
		f := make([]float64, height)
		d := make([]float64, height)
		for x := start; x < end; x++ {
			for y := range height {
				f[y] = tmp[y*width+x]
			}
			Transform1D(f, d, v, z)
			for y := range height {
				out[y*width+x] = d[y]
			}
		}
	}
	if !s.Run(width, 0, cancel, cols, progress) {
		return nil, ErrCanceled
	}

	return out, nil
}
