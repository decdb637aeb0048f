// Package glyph renders text into white-on-black coverage images that serve
// as sources for distance field generation.
//
// Text is NFC-normalized, shaped with go-text/typesetting (kerning and
// ligatures included) and filled from sfnt outlines with an anti-aliasing
// vector rasterizer.
package glyph

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"math"
	"sync"
	"unicode"

	"github.com/go-text/typesetting/di"
	"github.com/go-text/typesetting/font"
	"github.com/go-text/typesetting/language"
	"github.com/go-text/typesetting/shaping"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
	"golang.org/x/text/unicode/norm"

	"github.com/gogpu/sdfgen"
	"github.com/gogpu/sdfgen/internal/cache"
)

// MaxSize is the largest accepted size in pixels per em. Larger sizes
// overflow the 26.6 fixed-point scale used for shaping.
const MaxSize = 1 << 14

// renderCacheSize bounds the number of rendered strings kept per Face.
const renderCacheSize = 64

// Errors returned by Render.
var (
	// ErrEmptyText is returned when the text has no visible glyphs.
	ErrEmptyText = errors.New("glyph: no visible glyphs")

	// ErrInvalidSize is returned for a size outside (0, MaxSize], a padding
	// outside [0, sdfgen.MaxDimension], or text whose fitted image would
	// exceed sdfgen.MaxDimension.
	ErrInvalidSize = errors.New("glyph: invalid size")
)

// Face is a parsed font usable for both shaping and outline extraction.
// A Face is safe for concurrent use.
type Face struct {
	shape   *font.Font
	outline *sfnt.Font
	renders *cache.LRU[renderKey, *image.Gray]
}

type renderKey struct {
	text    string
	size    float64
	padding int
}

// Parse parses TrueType or OpenType font data.
func Parse(data []byte) (*Face, error) {
	ttf, err := font.ParseTTF(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("glyph: parse font: %w", err)
	}
	outline, err := sfnt.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("glyph: parse outlines: %w", err)
	}
	return &Face{
		shape:   ttf.Font,
		outline: outline,
		renders: cache.New[renderKey, *image.Gray](renderCacheSize),
	}, nil
}

var defaultFace = sync.OnceValues(func() (*Face, error) {
	return Parse(goregular.TTF)
})

// Default returns the embedded Go Regular face.
func Default() (*Face, error) {
	return defaultFace()
}

// Render draws text with the default face. See Face.Render.
func Render(text string, size float64, padding int) (*image.Gray, error) {
	f, err := Default()
	if err != nil {
		return nil, err
	}
	return f.Render(text, size, padding)
}

// Render shapes text on a single line at size pixels per em and returns an
// image tightly fitted to the glyph outlines plus padding pixels on each
// side. Covered pixels are bright, the background is black.
//
// Recent results are cached per Face; the returned image is always a fresh
// copy the caller may modify.
func (f *Face) Render(text string, size float64, padding int) (*image.Gray, error) {
	if !(size > 0 && size <= MaxSize) || padding < 0 || padding > sdfgen.MaxDimension {
		return nil, fmt.Errorf("%w: size %v, padding %d", ErrInvalidSize, size, padding)
	}

	text = norm.NFC.String(text)
	if text == "" {
		return nil, ErrEmptyText
	}

	key := renderKey{text: text, size: size, padding: padding}
	img, err := f.renders.GetOrCreate(key, func() (*image.Gray, error) {
		return f.render([]rune(text), size, padding)
	})
	if err != nil {
		return nil, err
	}
	out := image.NewGray(img.Rect)
	copy(out.Pix, img.Pix)
	return out, nil
}

// RenderStats reports hit and miss counts of the render cache.
func (f *Face) RenderStats() cache.Stats {
	return f.renders.Stats()
}

func (f *Face) render(runes []rune, size float64, padding int) (*image.Gray, error) {
	out := (&shaping.HarfbuzzShaper{}).Shape(shaping.Input{
		Text:      runes,
		RunStart:  0,
		RunEnd:    len(runes),
		Direction: di.DirectionLTR,
		Face:      font.NewFace(f.shape),
		Size:      fixed.Int26_6(size * 64),
		Script:    detectScript(runes),
		Language:  language.NewLanguage("en"),
	})

	var (
		buf    sfnt.Buffer
		ppem   = fixed.Int26_6(size * 64)
		placed []placedGlyph
		pen    float64
		b      = bounds{minX: math.Inf(1), minY: math.Inf(1), maxX: math.Inf(-1), maxY: math.Inf(-1)}
	)
	for _, g := range out.Glyphs {
		segs, err := f.outline.LoadGlyph(&buf, sfnt.GlyphIndex(g.GlyphID), ppem, nil)
		if err != nil {
			return nil, fmt.Errorf("glyph: load glyph %d: %w", g.GlyphID, err)
		}
		// Shaping offsets are y-up, sfnt outlines are y-down.
		x := pen + fixedToFloat(g.XOffset)
		y := -fixedToFloat(g.YOffset)
		pen += fixedToFloat(g.Advance)

		if len(segs) == 0 {
			continue
		}
		// LoadGlyph reuses buf, so the segments are copied out.
		pg := placedGlyph{x: x, y: y, segs: append([]sfnt.Segment(nil), segs...)}
		for _, s := range pg.segs {
			for _, p := range s.Args[:argCount(s.Op)] {
				b.add(x+fixedToFloat(p.X), y+fixedToFloat(p.Y))
			}
		}
		placed = append(placed, pg)
	}
	if len(placed) == 0 {
		return nil, ErrEmptyText
	}

	minX, minY := math.Floor(b.minX), math.Floor(b.minY)
	w := int(math.Ceil(b.maxX)-minX) + 2*padding
	h := int(math.Ceil(b.maxY)-minY) + 2*padding
	if w > sdfgen.MaxDimension || h > sdfgen.MaxDimension {
		return nil, fmt.Errorf("%w: %dx%d image exceeds %d", ErrInvalidSize, w, h, sdfgen.MaxDimension)
	}
	ox := float64(padding) - minX
	oy := float64(padding) - minY

	z := vector.NewRasterizer(w, h)
	for _, pg := range placed {
		pt := func(p fixed.Point26_6) (float32, float32) {
			return float32(pg.x + fixedToFloat(p.X) + ox), float32(pg.y + fixedToFloat(p.Y) + oy)
		}
		open := false
		for _, s := range pg.segs {
			switch s.Op {
			case sfnt.SegmentOpMoveTo:
				if open {
					z.ClosePath()
				}
				z.MoveTo(pt(s.Args[0]))
				open = true
			case sfnt.SegmentOpLineTo:
				z.LineTo(pt(s.Args[0]))
			case sfnt.SegmentOpQuadTo:
				bx, by := pt(s.Args[0])
				cx, cy := pt(s.Args[1])
				z.QuadTo(bx, by, cx, cy)
			case sfnt.SegmentOpCubeTo:
				bx, by := pt(s.Args[0])
				cx, cy := pt(s.Args[1])
				dx, dy := pt(s.Args[2])
				z.CubeTo(bx, by, cx, cy, dx, dy)
			}
		}
		if open {
			z.ClosePath()
		}
	}

	dst := image.NewGray(image.Rect(0, 0, w, h))
	z.Draw(dst, dst.Bounds(), image.White, image.Point{})
	return dst, nil
}

type placedGlyph struct {
	x, y float64
	segs []sfnt.Segment
}

type bounds struct {
	minX, minY, maxX, maxY float64
}

func (b *bounds) add(x, y float64) {
	b.minX = math.Min(b.minX, x)
	b.minY = math.Min(b.minY, y)
	b.maxX = math.Max(b.maxX, x)
	b.maxY = math.Max(b.maxY, y)
}

func argCount(op sfnt.SegmentOp) int {
	switch op {
	case sfnt.SegmentOpQuadTo:
		return 2
	case sfnt.SegmentOpCubeTo:
		return 3
	default:
		return 1
	}
}

// detectScript returns the script of the first non-space rune.
func detectScript(runes []rune) language.Script {
	for _, r := range runes {
		if unicode.IsSpace(r) {
			continue
		}
		return language.LookupScript(r)
	}
	return language.Latin
}

func fixedToFloat(v fixed.Int26_6) float64 {
	return float64(v) / 64
}
