package sdfgen

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync/atomic"
	"time"

	"github.com/gogpu/sdfgen/internal/edt"
	"github.com/gogpu/sdfgen/internal/mask"
	"github.com/gogpu/sdfgen/internal/parallel"
)

// MaxDimension is the largest supported output width or height.
const MaxDimension = 1 << 15

// Generator runs the signed distance field pipeline with a fixed set of
// options. A Generator created with NewGenerator keeps a worker pool alive
// between runs; call Close to release it.
//
// A Generator is safe for concurrent use; concurrent runs share the pool
// but no pipeline state.
type Generator struct {
	opts options
	pool *parallel.WorkerPool
}

// NewGenerator creates a Generator backed by a persistent worker pool.
func NewGenerator(opts ...Option) *Generator {
	o := applyOptions(opts)
	return &Generator{
		opts: o,
		pool: parallel.NewWorkerPool(o.workers),
	}
}

// Close stops the generator's worker pool. Runs started afterwards fall
// back to per-call goroutines.
func (g *Generator) Close() {
	if g.pool != nil {
		g.pool.Close()
	}
}

// Generate computes the signed distance field of src sampled onto a
// width×height grid and returns it as an 8-bit grayscale image.
//
// A nil error means the run completed. ErrCanceled means ctx was canceled
// before the run finished; no partial image is returned. Any other error is
// a failure and wraps ErrEmptyInput, ErrInvalidSize or ErrTransform.
func Generate(ctx context.Context, src image.Image, width, height int, opts ...Option) (*image.Gray, error) {
	g := &Generator{opts: applyOptions(opts)}
	return g.Generate(ctx, src, width, height)
}

// Generate runs the pipeline and encodes the result. See the package-level
// Generate for the error contract.
func (g *Generator) Generate(ctx context.Context, src image.Image, width, height int) (*image.Gray, error) {
	_, img, err := g.run(ctx, src, width, height, true)
	return img, err
}

// Field runs the pipeline up to the signed distance field, without
// encoding it.
func (g *Generator) Field(ctx context.Context, src image.Image, width, height int) (*Field, error) {
	f, _, err := g.run(ctx, src, width, height, false)
	return f, err
}

// GenerateField runs the full pipeline and returns both the signed distance
// field and its encoding. Encoding is scheduled and cancelable like every
// other stage, and progress reaches 100 only once the image is ready.
func (g *Generator) GenerateField(ctx context.Context, src image.Image, width, height int) (*Field, *image.Gray, error) {
	return g.run(ctx, src, width, height, true)
}

// progressUnits is the number of progress units a run reports: one per row
// for rasterizing and merging, one per column and row for each of the two
// transforms, and one per row for encoding.
func progressUnits(width, height int, encode bool) int {
	units := 2*height + 2*(width+height)
	if encode {
		units += height
	}
	return units
}

func (g *Generator) scheduler() *parallel.Scheduler {
	return &parallel.Scheduler{
		Workers:   g.opts.workers,
		BlockSize: g.opts.blockSize,
		Interval:  g.opts.interval,
		Pool:      g.pool,
	}
}

func (g *Generator) run(ctx context.Context, src image.Image, width, height int, encode bool) (*Field, *image.Gray, error) {
	log := Logger()

	if src == nil || src.Bounds().Empty() {
		log.Warn("sdfgen: run failed", "reason", ErrEmptyInput)
		return nil, nil, ErrEmptyInput
	}
	if width <= 0 || height <= 0 || width > MaxDimension || height > MaxDimension {
		err := fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
		log.Warn("sdfgen: run failed", "reason", err)
		return nil, nil, err
	}
	if ctx.Err() != nil {
		return nil, nil, ErrCanceled
	}

	var cancel atomic.Bool
	stop := context.AfterFunc(ctx, func() { cancel.Store(true) })
	defer stop()

	// AfterFunc fires asynchronously; checkpoints between stages observe
	// ctx directly so a cancel issued from the progress callback is never
	// missed.
	checkpoint := func(stage string) error {
		if ctx.Err() != nil {
			cancel.Store(true)
		}
		if cancel.Load() {
			return g.stageError(stage, ErrCanceled, &cancel)
		}
		return nil
	}

	progress := newProgressTracker(progressUnits(width, height, encode), g.opts.progress)
	progress.start()

	s := g.scheduler()
	began := time.Now()

	threshold := g.opts.threshold
	if g.opts.autoThreshold {
		threshold = mask.OtsuThreshold(src)
	}
	log.Debug("sdfgen: rasterizing mask",
		"src", src.Bounds().Size(), "width", width, "height", height, "threshold", threshold)

	m, err := mask.Rasterize(src, width, height, threshold, s, &cancel, progress.add)
	if err != nil {
		return nil, nil, g.stageError("mask", err, &cancel)
	}
	if err := checkpoint("mask"); err != nil {
		return nil, nil, err
	}
	if m.Uniform() {
		log.Debug("sdfgen: mask is uniform", "inside", m.Inside[0])
	}

	insideSeeded, outsideSeeded := m.CostGrids()

	insideSq, err := edt.Transform(insideSeeded, width, height, s, &cancel, progress.add)
	if err != nil {
		return nil, nil, g.stageError("transform inside", err, &cancel)
	}
	if err := checkpoint("transform inside"); err != nil {
		return nil, nil, err
	}
	outsideSq, err := edt.Transform(outsideSeeded, width, height, s, &cancel, progress.add)
	if err != nil {
		return nil, nil, g.stageError("transform outside", err, &cancel)
	}
	if err := checkpoint("transform outside"); err != nil {
		return nil, nil, err
	}

	f, ok := mergeField(m.Inside, insideSq, outsideSq, width, height, g.opts.maxDistance, s, &cancel, progress.add)
	if !ok {
		return nil, nil, g.stageError("merge", ErrCanceled, &cancel)
	}
	if err := checkpoint("merge"); err != nil {
		return nil, nil, err
	}
	log.Debug("sdfgen: field assembled", "min", f.Min, "max", f.Max, "clamp", g.opts.maxDistance)

	var img *image.Gray
	if encode {
		img, ok = f.encode(g.opts.polarity, s, &cancel, progress.add)
		if !ok {
			return nil, nil, g.stageError("encode", ErrCanceled, &cancel)
		}
	}
	if err := checkpoint("encode"); err != nil {
		return nil, nil, err
	}

	progress.finish()
	log.Debug("sdfgen: run completed", "elapsed", time.Since(began))
	return f, img, nil
}

// stageError turns a stage failure into the run's terminal error. Every
// stage reports cancellation and structural failure the same way (an empty
// result), so the cancel flag decides which one happened.
func (g *Generator) stageError(stage string, err error, cancel *atomic.Bool) error {
	if cancel.Load() {
		Logger().Debug("sdfgen: run canceled", "stage", stage)
		return ErrCanceled
	}
	if errors.Is(err, edt.ErrDimensions) || errors.Is(err, edt.ErrCanceled) {
		err = fmt.Errorf("%w: %s: %w", ErrTransform, stage, err)
	} else {
		err = fmt.Errorf("sdfgen: %s: %w", stage, err)
	}
	Logger().Warn("sdfgen: run failed", "stage", stage, "reason", err)
	return err
}
