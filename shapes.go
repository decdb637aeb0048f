package sdfgen

import (
	"image"
	"image/color"
	"math"
)

// DistanceFunc returns the signed distance from (x, y) to a shape boundary,
// negative inside and positive outside, the usual convention for analytic
// shapes.
type DistanceFunc func(x, y float64) float64

// Circle returns the analytic distance function of a filled circle.
func Circle(cx, cy, radius float64) DistanceFunc {
	return func(x, y float64) float64 {
		return math.Hypot(x-cx, y-cy) - radius
	}
}

// RoundedRect returns the analytic distance function of a filled rounded
// rectangle centered at (cx, cy). cornerRadius is clamped to the half size.
func RoundedRect(cx, cy, halfW, halfH, cornerRadius float64) DistanceFunc {
	cornerRadius = math.Max(0, math.Min(cornerRadius, math.Min(halfW, halfH)))
	return func(x, y float64) float64 {
		// Work in the first quadrant relative to the center.
		dx := math.Abs(x-cx) - halfW + cornerRadius
		dy := math.Abs(y-cy) - halfH + cornerRadius

		outside := math.Hypot(math.Max(dx, 0), math.Max(dy, 0))
		inside := math.Min(math.Max(dx, dy), 0)
		return outside + inside - cornerRadius
	}
}

// Union combines shapes into one whose interior is the union of theirs.
func Union(shapes ...DistanceFunc) DistanceFunc {
	return func(x, y float64) float64 {
		d := math.Inf(1)
		for _, s := range shapes {
			d = math.Min(d, s(x, y))
		}
		return d
	}
}

// RenderShape rasterizes a shape into a width×height mask image, white
// where the pixel center is inside and black elsewhere. The result is a
// ready-made source for Generate.
func RenderShape(width, height int, shape DistanceFunc) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := range height {
		for x := range width {
			if shape(float64(x)+0.5, float64(y)+0.5) <= 0 {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return img
}
