// Package sdfgen computes signed distance fields from raster images.
//
// # Overview
//
// A source image is sampled onto the output grid with nearest-pixel lookup
// and thresholded into an inside/outside mask. Two exact squared Euclidean
// distance transforms measure, for every cell, the distance to the nearest
// cell of the opposite class. The results are merged into a signed field
// (positive inside, negative outside), optionally clamped, and min-max
// normalized to an 8-bit grayscale image.
//
// # Quick Start
//
//	src, _ := imageio.Load("glyph.png")
//	img, err := sdfgen.Generate(ctx, src, 64, 64, sdfgen.WithMaxDistance(8))
//	if err != nil {
//	    return err
//	}
//
// # Cancellation and Progress
//
// Every stage is split into blocks of rows or columns and dispatched across
// a bounded set of workers. Canceling the context stops workers at the next
// block boundary and Generate returns ErrCanceled. WithProgress receives a
// non-decreasing percentage that reaches exactly 100 when a run completes.
//
// # Determinism
//
// Every block writes a disjoint part of the output, so results are
// byte-identical regardless of worker count or block size.
//
// # Architecture
//
// The library is organized into:
//   - Public API: Generate, Generator, Field, Option
//   - internal/parallel: block scheduler and worker pool
//   - internal/edt: 1D lower-envelope and separable 2D distance transforms
//   - internal/mask: mask rasterization, cost grids, Otsu threshold
//   - internal/imageio: image decoding and encoding by format
//   - internal/glyph: text shaping and rendering into source masks
//   - internal/report: field statistics and histogram plots
//   - internal/config: JSON settings for cmd/sdfgen
package sdfgen

// Version is the current version of the library.
const Version = "0.1.0"
