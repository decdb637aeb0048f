// Command sdfgen converts an image, a line of text or a built-in shape into
// an 8-bit signed distance field.
//
// Usage:
//
//	sdfgen -in glyph.png -out glyph_sdf.png -width 64 -height 64
//	sdfgen -text "Hello" -font-size 96 -max-distance 12 -out hello.png
//	sdfgen -shape discs -width 256 -height 256 -histogram discs_hist.png
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gogpu/sdfgen"
	"github.com/gogpu/sdfgen/internal/config"
	"github.com/gogpu/sdfgen/internal/glyph"
	"github.com/gogpu/sdfgen/internal/imageio"
	"github.com/gogpu/sdfgen/internal/report"
)

const (
	defaultShapeSize   = 256
	defaultMaxDistance = 512
	histogramBins      = 64
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx, os.Args[1:], os.Stderr)
	switch {
	case err == nil, errors.Is(err, flag.ErrHelp):
	case errors.Is(err, sdfgen.ErrCanceled):
		slog.Warn("interrupted")
		os.Exit(130)
	default:
		slog.Error("sdfgen failed", "err", err)
		os.Exit(1)
	}
}

type cliFlags struct {
	in, text, shape, font string
	out, configPath       string
	histogram             string

	fontSize      float64
	padding       int
	width, height int
	threshold     int
	autoThreshold bool
	maxDistance   float64
	polarity      string
	workers       int
	blockSize     int
	interval      time.Duration
	verbose       bool
}

func parseFlags(args []string, stderr io.Writer) (*cliFlags, *config.Config, error) {
	fs := flag.NewFlagSet("sdfgen", flag.ContinueOnError)
	fs.SetOutput(stderr)

	f := &cliFlags{}
	fs.StringVar(&f.in, "in", "", "source image (png, jpeg, gif, bmp, tiff, webp)")
	fs.StringVar(&f.text, "text", "", "render this text as the source")
	fs.StringVar(&f.shape, "shape", "", "built-in source shape: circle, rounded-rect, discs")
	fs.StringVar(&f.font, "font", "", "TrueType/OpenType font for -text (default Go Regular)")
	fs.Float64Var(&f.fontSize, "font-size", config.DefaultFontSize, "font size in pixels per em for -text")
	fs.IntVar(&f.padding, "padding", config.DefaultPadding, "padding around -text in pixels")
	fs.StringVar(&f.out, "out", "sdf.png", "output file (png, jpg, bmp, tiff)")
	fs.IntVar(&f.width, "width", 0, "output width (default: source width)")
	fs.IntVar(&f.height, "height", 0, "output height (default: source height)")
	fs.IntVar(&f.threshold, "threshold", sdfgen.DefaultThreshold, "luminance threshold; pixels above it are inside")
	fs.BoolVar(&f.autoThreshold, "auto-threshold", false, "pick the threshold with Otsu's method")
	fs.Float64Var(&f.maxDistance, "max-distance", defaultMaxDistance, "clamp distances to ±d pixels (0 = unbounded)")
	fs.StringVar(&f.polarity, "polarity", sdfgen.OutsideBright.String(), "outside-bright or inside-bright")
	fs.IntVar(&f.workers, "workers", 0, "worker goroutines per stage (0 = GOMAXPROCS)")
	fs.IntVar(&f.blockSize, "block-size", 0, "rows or columns per work block (0 = auto)")
	fs.DurationVar(&f.interval, "progress-interval", 0, "progress polling interval (0 = 30ms)")
	fs.StringVar(&f.configPath, "config", "", "JSON settings file; explicit flags override it")
	fs.StringVar(&f.histogram, "histogram", "", "write a distance histogram plot to this file")
	fs.BoolVar(&f.verbose, "v", false, "verbose logging")

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	if fs.NArg() > 0 {
		return nil, nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	sources := 0
	for _, s := range []string{f.in, f.text, f.shape} {
		if s != "" {
			sources++
		}
	}
	if sources != 1 {
		return nil, nil, errors.New("exactly one of -in, -text or -shape is required")
	}

	cfg := &config.Config{}
	if f.configPath != "" {
		var err error
		if cfg, err = config.Load(f.configPath); err != nil {
			return nil, nil, err
		}
	}

	// Explicitly set flags take precedence over the config file.
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "width":
			cfg.Width = &f.width
		case "height":
			cfg.Height = &f.height
		case "threshold":
			cfg.Threshold = &f.threshold
		case "auto-threshold":
			cfg.AutoThreshold = &f.autoThreshold
		case "max-distance":
			cfg.MaxDistance = &f.maxDistance
		case "polarity":
			cfg.Polarity = &f.polarity
		case "workers":
			cfg.Workers = &f.workers
		case "block-size":
			cfg.BlockSize = &f.blockSize
		case "progress-interval":
			d := f.interval.String()
			cfg.ProgressInterval = &d
		case "font-size":
			cfg.FontSize = &f.fontSize
		case "padding":
			cfg.Padding = &f.padding
		}
	})
	if cfg.MaxDistance == nil {
		cfg.MaxDistance = &f.maxDistance
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid flags: %w", err)
	}
	return f, cfg, nil
}

func run(ctx context.Context, args []string, stderr io.Writer) error {
	f, cfg, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	level := slog.LevelInfo
	if f.verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)
	if f.verbose {
		sdfgen.SetLogger(log)
		defer sdfgen.SetLogger(nil)
	}

	src, err := loadSource(f, cfg)
	if err != nil {
		return err
	}
	b := src.Bounds()
	width, height := cfg.GetWidth(b.Dx()), cfg.GetHeight(b.Dy())

	polarity := sdfgen.OutsideBright
	if cfg.Polarity != nil {
		// Validated by parseFlags.
		polarity, _ = sdfgen.ParsePolarity(*cfg.Polarity)
	}

	next := 0
	opts := append(cfg.Options(), sdfgen.WithProgress(func(p int) {
		if p >= next {
			log.Info("progress", "percent", p)
			next = p/10*10 + 10
		}
	}))

	gen := sdfgen.NewGenerator(opts...)
	defer gen.Close()

	log.Info("generating", "src", b.Size(), "width", width, "height", height, "polarity", polarity)
	began := time.Now()

	field, img, err := gen.GenerateField(ctx, src, width, height)
	if err != nil {
		return err
	}
	if err := imageio.Save(f.out, img); err != nil {
		return err
	}

	stats, err := report.Summarize(field.Values)
	if err != nil {
		return err
	}
	log.Info("wrote distance field", "out", f.out, "elapsed", time.Since(began).Round(time.Millisecond), "stats", stats)

	if f.histogram != "" {
		if err := report.WriteHistogram(f.histogram, field.Values, histogramBins); err != nil {
			return err
		}
		log.Info("wrote histogram", "path", f.histogram)
	}
	return nil
}

func loadSource(f *cliFlags, cfg *config.Config) (image.Image, error) {
	switch {
	case f.in != "":
		return imageio.Load(f.in)

	case f.text != "":
		face, err := glyph.Default()
		if f.font != "" {
			var data []byte
			if data, err = os.ReadFile(f.font); err != nil {
				return nil, fmt.Errorf("read font: %w", err)
			}
			face, err = glyph.Parse(data)
		}
		if err != nil {
			return nil, err
		}
		return face.Render(f.text, cfg.GetFontSize(), cfg.GetPadding())

	default:
		w, h := cfg.GetWidth(defaultShapeSize), cfg.GetHeight(defaultShapeSize)
		shape, err := builtinShape(f.shape, float64(w), float64(h))
		if err != nil {
			return nil, err
		}
		return sdfgen.RenderShape(w, h, shape), nil
	}
}

func builtinShape(name string, w, h float64) (sdfgen.DistanceFunc, error) {
	cx, cy := w/2, h/2
	r := min(w, h) / 2
	switch name {
	case "circle":
		return sdfgen.Circle(cx, cy, 0.7*r), nil
	case "rounded-rect":
		return sdfgen.RoundedRect(cx, cy, 0.7*w/2, 0.5*h/2, 0.2*r), nil
	case "discs":
		return sdfgen.Union(
			sdfgen.Circle(cx-0.35*r, cy, 0.4*r),
			sdfgen.Circle(cx+0.35*r, cy, 0.4*r),
			sdfgen.RoundedRect(cx, cy+0.55*r, 0.6*r, 0.1*r, 0.05*r),
		), nil
	default:
		return nil, fmt.Errorf("unknown shape %q", name)
	}
}
