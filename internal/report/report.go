// Package report summarizes signed distance fields and plots their value
// distribution.
package report

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

var (
	// ErrNoValues is returned for an empty value set.
	ErrNoValues = errors.New("report: no values")

	// ErrInvalidBins is returned for a non-positive histogram bin count.
	ErrInvalidBins = errors.New("report: invalid bin count")
)

// Summary describes the distribution of signed distances in a field.
// Positive values are inside the shape.
type Summary struct {
	Count  int
	Min    float64
	Max    float64
	Mean   float64
	Median float64
	StdDev float64

	// InsideFraction is the share of strictly positive values.
	InsideFraction float64
}

// Summarize computes the distribution statistics of values.
func Summarize(values []float64) (Summary, error) {
	if len(values) == 0 {
		return Summary{}, ErrNoValues
	}

	s := Summary{
		Count: len(values),
		Min:   floats.Min(values),
		Max:   floats.Max(values),
	}
	s.Mean, s.StdDev = stat.MeanStdDev(values, nil)
	if len(values) == 1 {
		s.StdDev = 0
	}

	sorted := slices.Clone(values)
	slices.Sort(sorted)
	s.Median = stat.Quantile(0.5, stat.Empirical, sorted, nil)

	inside := 0
	for _, v := range values {
		if v > 0 {
			inside++
		}
	}
	s.InsideFraction = float64(inside) / float64(len(values))
	return s, nil
}

// LogValue implements slog.LogValuer.
func (s Summary) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("count", s.Count),
		slog.Float64("min", s.Min),
		slog.Float64("max", s.Max),
		slog.Float64("mean", s.Mean),
		slog.Float64("median", s.Median),
		slog.Float64("stddev", s.StdDev),
		slog.Float64("inside", s.InsideFraction),
	)
}

// WriteHistogram plots a histogram of values with the given number of bins
// and saves it to path. The image format follows the extension (.png, .svg,
// .pdf, ...).
func WriteHistogram(path string, values []float64, bins int) error {
	if len(values) == 0 {
		return ErrNoValues
	}
	if bins <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidBins, bins)
	}

	p := plot.New()
	p.Title.Text = "Signed distance distribution"
	p.X.Label.Text = "Distance (px, inside > 0)"
	p.Y.Label.Text = "Cells"

	h, err := plotter.NewHist(plotter.Values(values), bins)
	if err != nil {
		return fmt.Errorf("report: build histogram: %w", err)
	}
	h.LineStyle.Width = vg.Points(0.5)
	p.Add(h, plotter.NewGrid())

	if err := p.Save(8*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("report: save histogram: %w", err)
	}
	return nil
}
