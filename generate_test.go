package sdfgen

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/sdfgen/internal/edt"
)

// maskImage builds a source image from rows of '#' (inside) and '.' cells.
func maskImage(rows ...string) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, len(rows[0]), len(rows)))
	for y, row := range rows {
		for x, c := range row {
			if c == '#' {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return img
}

func uniformImage(w, h int, v uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

func newTestGenerator(t *testing.T, opts ...Option) *Generator {
	t.Helper()
	g := NewGenerator(opts...)
	t.Cleanup(g.Close)
	return g
}

func randomBlobs(w, h int, seed uint64) *image.Gray {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	shapes := make([]DistanceFunc, 6)
	for i := range shapes {
		shapes[i] = Circle(rng.Float64()*float64(w), rng.Float64()*float64(h), 3+rng.Float64()*float64(min(w, h))/5)
	}
	return RenderShape(w, h, Union(shapes...))
}

// =============================================================================
// Scenario Tests
// =============================================================================

func TestGenerate_Scenario4x4(t *testing.T) {
	src := maskImage(
		"##..",
		"##..",
		"....",
		"....",
	)

	f, err := newTestGenerator(t).Field(context.Background(), src, 4, 4)
	require.NoError(t, err)

	assert.Equal(t, 2.0, f.At(0, 0))
	assert.Equal(t, 1.0, f.At(1, 1))
	assert.Equal(t, -1.0, f.At(2, 0), "squared distance at (2,0) must be 1")
	assert.InDelta(t, -math.Sqrt(8), f.At(3, 3), 1e-12, "squared distance at (3,3) must be 8")

	img, err := Generate(context.Background(), src, 4, 4, WithPolarity(InsideBright))
	require.NoError(t, err)

	minInside, maxOutside := uint8(255), uint8(0)
	for y := range 4 {
		for x := range 4 {
			v := img.GrayAt(x, y).Y
			if x < 2 && y < 2 {
				minInside = min(minInside, v)
			} else {
				maxOutside = max(maxOutside, v)
			}
		}
	}
	assert.Greater(t, minInside, maxOutside, "top-left block must be the brightest")
	assert.Equal(t, uint8(255), img.GrayAt(0, 0).Y)
	assert.Equal(t, uint8(0), img.GrayAt(3, 3).Y)
	assert.Greater(t, img.GrayAt(2, 2).Y, img.GrayAt(3, 3).Y, "outside values decrease away from the shape")

	// The default polarity is the exact inverse.
	def, err := Generate(context.Background(), src, 4, 4)
	require.NoError(t, err)
	for i := range img.Pix {
		assert.Equal(t, 255-img.Pix[i], def.Pix[i], "pixel %d", i)
	}
}

func TestGenerate_SignCorrectness(t *testing.T) {
	const w, h = 40, 30
	src := RenderShape(w, h, RoundedRect(20, 15, 10, 7, 0)) // x in [10,30), y in [8,22)

	f, err := newTestGenerator(t, WithWorkers(3)).Field(context.Background(), src, w, h)
	require.NoError(t, err)

	// Inside grows toward the center.
	assert.Greater(t, f.At(12, 15), 0.0)
	assert.Greater(t, f.At(15, 15), f.At(12, 15))
	assert.Greater(t, f.At(17, 15), f.At(15, 15))

	// Outside grows away from the rectangle.
	assert.Less(t, f.At(8, 15), 0.0)
	assert.Less(t, f.At(4, 15), f.At(8, 15))
	assert.Less(t, f.At(0, 0), f.At(4, 15))

	// Cells on either side of the transition are one pixel from it.
	for _, p := range [][2]int{{10, 15}, {9, 15}, {29, 15}, {30, 15}, {20, 8}, {20, 7}} {
		assert.LessOrEqual(t, math.Abs(f.At(p[0], p[1])), 1.0, "boundary cell %v", p)
	}
}

func TestGenerate_MatchesAnalyticCircle(t *testing.T) {
	const size = 96
	shape := Circle(48, 48, 25)
	src := RenderShape(size, size, shape)

	f, err := newTestGenerator(t).Field(context.Background(), src, size, size)
	require.NoError(t, err)

	for y := 0; y < size; y += 3 {
		for x := 0; x < size; x += 3 {
			want := -shape(float64(x)+0.5, float64(y)+0.5)
			assert.InDelta(t, want, f.At(x, y), 1.5, "cell (%d,%d)", x, y)
		}
	}
}

// =============================================================================
// Clamp and Normalization Tests
// =============================================================================

func TestGenerate_Clamp(t *testing.T) {
	src := RenderShape(200, 20, RoundedRect(10, 10, 4, 4, 0))

	f, err := newTestGenerator(t, WithMaxDistance(3)).Field(context.Background(), src, 200, 20)
	require.NoError(t, err)
	for i, v := range f.Values {
		require.LessOrEqual(t, math.Abs(v), 3.0, "cell %d", i)
	}
	assert.Equal(t, -3.0, f.Min)

	for _, d := range []float64{0, -1} {
		f, err := newTestGenerator(t, WithMaxDistance(d)).Field(context.Background(), src, 200, 20)
		require.NoError(t, err)
		assert.Less(t, f.Min, -100.0, "maxDistance=%v must not clamp", d)
	}
}

func TestGenerate_UniformMaskEncodesMidpoint(t *testing.T) {
	midpoint := uint8(255 - math.Round(0.5*255))

	tests := []struct {
		name string
		v    uint8
		opts []Option
	}{
		{"all inside", 255, nil},
		{"all outside", 0, nil},
		{"all inside clamped", 255, []Option{WithMaxDistance(4)}},
		{"all outside clamped", 0, []Option{WithMaxDistance(4)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := Generate(context.Background(), uniformImage(16, 9, tt.v), 33, 17, tt.opts...)
			require.NoError(t, err)
			for i, b := range img.Pix {
				require.Equal(t, midpoint, b, "pixel %d", i)
			}
		})
	}
}

func TestGenerate_Resamples(t *testing.T) {
	src := maskImage(
		"#.",
		"..",
	)
	f, err := newTestGenerator(t).Field(context.Background(), src, 8, 8)
	require.NoError(t, err)

	assert.Greater(t, f.At(0, 0), 0.0)
	assert.Greater(t, f.At(3, 3), 0.0)
	assert.Less(t, f.At(4, 4), 0.0)
	assert.Equal(t, 8, f.Width)
	assert.Len(t, f.Values, 64)
}

// =============================================================================
// Determinism Tests
// =============================================================================

func TestGenerate_Deterministic(t *testing.T) {
	src := randomBlobs(150, 110, 42)
	ctx := context.Background()

	want, err := Generate(ctx, src, 123, 77, WithWorkers(1))
	require.NoError(t, err)

	configs := [][]Option{
		{WithWorkers(2)},
		{WithWorkers(7), WithBlockSize(1)},
		{WithWorkers(16), WithBlockSize(5)},
		{WithBlockSize(1000)},
	}
	for i, opts := range configs {
		got, err := Generate(ctx, src, 123, 77, opts...)
		require.NoError(t, err)
		require.Equal(t, want.Pix, got.Pix, "config %d", i)
	}

	g := NewGenerator(WithWorkers(4))
	defer g.Close()
	for range 3 {
		got, err := g.Generate(ctx, src, 123, 77)
		require.NoError(t, err)
		require.Equal(t, want.Pix, got.Pix, "pooled generator")
	}
}

// =============================================================================
// Progress Tests
// =============================================================================

func TestGenerate_Progress(t *testing.T) {
	var got []int
	_, err := Generate(context.Background(), randomBlobs(64, 64, 1), 64, 48,
		WithProgress(func(p int) { got = append(got, p) }))
	require.NoError(t, err)

	require.NotEmpty(t, got)
	assert.Equal(t, 0, got[0])
	assert.Equal(t, 100, got[len(got)-1])
	for i := 1; i < len(got); i++ {
		assert.Greater(t, got[i], got[i-1], "progress must increase: %v", got)
	}
	require.GreaterOrEqual(t, len(got), 2)
	assert.GreaterOrEqual(t, got[len(got)-2], 98, "work must be fully accounted for before 100: %v", got)
}

func TestGenerate_ProgressReachesAllUnits(t *testing.T) {
	assert.Equal(t, 5*48+2*64, progressUnits(64, 48, true))
	assert.Equal(t, 4*48+2*64, progressUnits(64, 48, false))

	src := randomBlobs(64, 64, 1)
	run := map[string]func(g *Generator) error{
		"generate": func(g *Generator) error {
			_, err := g.Generate(context.Background(), src, 64, 64)
			return err
		},
		"field": func(g *Generator) error {
			_, err := g.Field(context.Background(), src, 64, 64)
			return err
		},
		"generate field": func(g *Generator) error {
			_, _, err := g.GenerateField(context.Background(), src, 64, 64)
			return err
		},
	}
	for name, fn := range run {
		t.Run(name, func(t *testing.T) {
			var got []int
			g := newTestGenerator(t, WithWorkers(1), WithBlockSize(1),
				WithProgress(func(p int) { got = append(got, p) }))
			require.NoError(t, fn(g))

			require.GreaterOrEqual(t, len(got), 2)
			assert.Equal(t, 100, got[len(got)-1])
			assert.Equal(t, 99, got[len(got)-2], "progress before completion: %v", got)
		})
	}
}

func TestGenerator_GenerateField(t *testing.T) {
	src := randomBlobs(40, 30, 9)
	for _, polarity := range []Polarity{OutsideBright, InsideBright} {
		var got []int
		g := newTestGenerator(t, WithPolarity(polarity),
			WithProgress(func(p int) { got = append(got, p) }))

		f, img, err := g.GenerateField(context.Background(), src, 40, 30)
		require.NoError(t, err)
		require.NotNil(t, f)
		assert.Equal(t, f.Encode(polarity).Pix, img.Pix)
		require.NotEmpty(t, got)
		assert.Equal(t, 100, got[len(got)-1])
	}
}

func TestGenerator_GenerateFieldCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f, img, err := newTestGenerator(t).GenerateField(ctx, randomBlobs(40, 30, 9), 40, 30)
	require.ErrorIs(t, err, ErrCanceled)
	assert.Nil(t, f)
	assert.Nil(t, img)
}

func TestProgressTracker(t *testing.T) {
	var got []int
	p := newProgressTracker(10, func(v int) { got = append(got, v) })
	p.start()
	p.add(5)
	p.add(0)
	p.add(5)
	p.finish()
	p.finish()

	assert.Equal(t, []int{0, 50, 99, 100}, got)
}

// =============================================================================
// Cancellation Tests
// =============================================================================

func TestGenerate_CanceledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	img, err := Generate(ctx, randomBlobs(32, 32, 2), 32, 32)
	assert.Nil(t, img)
	assert.ErrorIs(t, err, ErrCanceled)
	assert.Equal(t, Canceled, OutcomeOf(err))
}

func TestGenerate_CanceledDuringRun(t *testing.T) {
	for _, at := range []int{1, 10, 30, 60, 90} {
		ctx, cancel := context.WithCancel(context.Background())
		var last int
		img, err := Generate(ctx, randomBlobs(256, 256, 3), 256, 256,
			WithProgress(func(p int) {
				last = p
				if p >= at {
					cancel()
				}
			}))
		cancel()

		assert.Nil(t, img, "cancel at %d%%", at)
		assert.ErrorIs(t, err, ErrCanceled, "cancel at %d%%", at)
		assert.Less(t, last, 100, "canceled run must not report 100%%")
	}
}

func TestGenerate_FieldCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	g := NewGenerator(WithProgress(func(p int) {
		if p > 0 {
			cancel()
		}
	}))
	defer g.Close()

	f, err := g.Field(ctx, randomBlobs(128, 128, 4), 128, 128)
	assert.Nil(t, f)
	assert.ErrorIs(t, err, ErrCanceled)
}

// =============================================================================
// Failure Tests
// =============================================================================

func TestGenerate_ValidationFailures(t *testing.T) {
	src := uniformImage(4, 4, 255)

	tests := []struct {
		name string
		src  image.Image
		w, h int
		want error
	}{
		{"nil image", nil, 4, 4, ErrEmptyInput},
		{"empty image", image.NewGray(image.Rectangle{}), 4, 4, ErrEmptyInput},
		{"zero width", src, 0, 4, ErrInvalidSize},
		{"negative height", src, 4, -2, ErrInvalidSize},
		{"too large", src, MaxDimension + 1, 4, ErrInvalidSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int
			img, err := Generate(context.Background(), tt.src, tt.w, tt.h, WithProgress(func(int) { calls++ }))
			assert.Nil(t, img)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, Failed, OutcomeOf(err))
			assert.Zero(t, calls, "no work must be performed")
		})
	}
}

func TestStageError_Disambiguation(t *testing.T) {
	g := &Generator{}

	var flag atomic.Bool
	err := g.stageError("transform inside", edt.ErrDimensions, &flag)
	assert.ErrorIs(t, err, ErrTransform)
	assert.ErrorIs(t, err, edt.ErrDimensions)
	assert.Equal(t, Failed, OutcomeOf(err))

	// The same empty result with the flag set is a cancellation.
	flag.Store(true)
	err = g.stageError("transform inside", edt.ErrCanceled, &flag)
	assert.Equal(t, ErrCanceled, err)
	assert.Equal(t, Canceled, OutcomeOf(err))
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, Completed, OutcomeOf(nil))
	assert.Equal(t, Failed, OutcomeOf(errors.New("boom")))
	assert.Equal(t, "canceled", Canceled.String())
	assert.Equal(t, "Outcome(9)", Outcome(9).String())
}

// =============================================================================
// Generator and Logging Tests
// =============================================================================

func TestGenerator_UsableAfterClose(t *testing.T) {
	g := NewGenerator(WithWorkers(2))
	g.Close()
	g.Close()

	img, err := g.Generate(context.Background(), randomBlobs(20, 20, 5), 20, 20)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 20, 20), img.Bounds())
}

func TestGenerate_AutoThreshold(t *testing.T) {
	// Dark gray shape on black: the default threshold sees nothing.
	src := RenderShape(32, 32, Circle(16, 16, 8))
	for i, v := range src.Pix {
		if v != 0 {
			src.Pix[i] = 90
		}
	}

	f, err := newTestGenerator(t).Field(context.Background(), src, 32, 32)
	require.NoError(t, err)
	assert.Equal(t, f.Min, f.Max, "fixed threshold 127 yields a uniform mask")

	f, err = newTestGenerator(t, WithAutoThreshold()).Field(context.Background(), src, 32, 32)
	require.NoError(t, err)
	assert.Greater(t, f.At(16, 16), 0.0)
	assert.Less(t, f.At(0, 0), 0.0)
}

func TestGenerate_Logs(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })

	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	_, err := Generate(context.Background(), randomBlobs(16, 16, 6), 16, 16)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "sdfgen: rasterizing mask")
	assert.Contains(t, buf.String(), "sdfgen: run completed")

	buf.Reset()
	_, err = Generate(context.Background(), nil, 16, 16)
	require.Error(t, err)
	assert.Contains(t, buf.String(), "sdfgen: run failed")
}
