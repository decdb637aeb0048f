package sdfgen

import (
	"fmt"
	"strings"
	"time"
)

// DefaultThreshold is the luminance above which a source pixel is inside.
const DefaultThreshold = 127

// Polarity selects how signed distances map to output bytes.
type Polarity int

const (
	// OutsideBright stores larger bytes farther outside the shape:
	// byte = 255 - round(n*255) for the normalized distance n.
	OutsideBright Polarity = iota

	// InsideBright stores larger bytes deeper inside the shape:
	// byte = round(n*255).
	InsideBright
)

// String returns the name used by ParsePolarity.
func (p Polarity) String() string {
	switch p {
	case OutsideBright:
		return "outside-bright"
	case InsideBright:
		return "inside-bright"
	default:
		return fmt.Sprintf("Polarity(%d)", int(p))
	}
}

// ParsePolarity parses "outside-bright" or "inside-bright".
func ParsePolarity(s string) (Polarity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "outside-bright", "outside":
		return OutsideBright, nil
	case "inside-bright", "inside":
		return InsideBright, nil
	default:
		return 0, fmt.Errorf("sdfgen: unknown polarity %q", s)
	}
}

// Option configures a Generator or a single Generate call.
//
// Example:
//
//	img, err := sdfgen.Generate(ctx, src, 256, 256,
//	    sdfgen.WithMaxDistance(16),
//	    sdfgen.WithProgress(func(p int) { fmt.Printf("\r%3d%%", p) }),
//	)
type Option func(*options)

type options struct {
	threshold     uint8
	autoThreshold bool
	maxDistance   float64
	polarity      Polarity
	workers       int
	blockSize     int
	interval      time.Duration
	progress      func(percent int)
}

func defaultOptions() options {
	return options{
		threshold: DefaultThreshold,
		polarity:  OutsideBright,
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// WithThreshold sets the luminance threshold. A source pixel is inside the
// mask when its luminance is strictly greater than t.
func WithThreshold(t uint8) Option {
	return func(o *options) {
		o.threshold = t
		o.autoThreshold = false
	}
}

// WithAutoThreshold derives the threshold from the source histogram using
// Otsu's method instead of a fixed value.
func WithAutoThreshold() Option {
	return func(o *options) {
		o.autoThreshold = true
	}
}

// WithMaxDistance clamps signed distances to [-d, +d]. Zero or negative
// leaves distances unbounded.
func WithMaxDistance(d float64) Option {
	return func(o *options) {
		o.maxDistance = d
	}
}

// WithPolarity selects the byte encoding. The default is OutsideBright.
func WithPolarity(p Polarity) Option {
	return func(o *options) {
		o.polarity = p
	}
}

// WithWorkers caps the number of concurrent workers per stage.
// Zero or negative means GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithBlockSize sets how many rows or columns a worker claims at a time.
// Zero or negative picks a size that gives each worker about four blocks.
func WithBlockSize(n int) Option {
	return func(o *options) {
		o.blockSize = n
	}
}

// WithProgressInterval sets how often progress is polled while a stage runs.
// Zero means 30ms.
func WithProgressInterval(d time.Duration) Option {
	return func(o *options) {
		o.interval = d
	}
}

// WithProgress registers a callback receiving completion percentages.
// Values are non-decreasing, start at 0 and reach exactly 100 only when a
// run succeeds. The callback runs on the goroutine that called Generate and
// never concurrently with itself.
func WithProgress(fn func(percent int)) Option {
	return func(o *options) {
		o.progress = fn
	}
}
