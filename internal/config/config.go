// Package config loads generation settings from JSON files.
//
// Every field is a pointer so a partial file only overrides what it names;
// the Get* accessors fall back to the library defaults.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gogpu/sdfgen"
	"github.com/gogpu/sdfgen/internal/glyph"
)

const maxFileSize = 1 << 20

// Config holds the settings accepted by the sdfgen command.
type Config struct {
	// Output grid.
	Width  *int `json:"width,omitempty"`
	Height *int `json:"height,omitempty"`

	// Mask extraction.
	Threshold     *int  `json:"threshold,omitempty"`
	AutoThreshold *bool `json:"auto_threshold,omitempty"`

	// Field shaping.
	MaxDistance *float64 `json:"max_distance,omitempty"`
	Polarity    *string  `json:"polarity,omitempty"`

	// Scheduling.
	Workers          *int    `json:"workers,omitempty"`
	BlockSize        *int    `json:"block_size,omitempty"`
	ProgressInterval *string `json:"progress_interval,omitempty"` // duration string like "30ms"

	// Text input.
	FontSize *float64 `json:"font_size,omitempty"`
	Padding  *int     `json:"padding,omitempty"`
}

// Defaults for settings that have no library-level default.
const (
	DefaultFontSize = 64.0
	DefaultPadding  = 8
)

// Load reads a Config from a JSON file. Unknown fields are rejected.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	f, err := os.Open(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	defer func() { _ = f.Close() }()

	cfg := &Config{}
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the ranges of all set fields.
func (c *Config) Validate() error {
	if c.Width != nil && (*c.Width <= 0 || *c.Width > sdfgen.MaxDimension) {
		return fmt.Errorf("width must be in [1, %d], got %d", sdfgen.MaxDimension, *c.Width)
	}
	if c.Height != nil && (*c.Height <= 0 || *c.Height > sdfgen.MaxDimension) {
		return fmt.Errorf("height must be in [1, %d], got %d", sdfgen.MaxDimension, *c.Height)
	}
	if c.Threshold != nil && (*c.Threshold < 0 || *c.Threshold > 255) {
		return fmt.Errorf("threshold must be between 0 and 255, got %d", *c.Threshold)
	}
	if c.MaxDistance != nil && *c.MaxDistance < 0 {
		return fmt.Errorf("max_distance must be non-negative, got %f", *c.MaxDistance)
	}
	if c.Polarity != nil {
		if _, err := sdfgen.ParsePolarity(*c.Polarity); err != nil {
			return err
		}
	}
	if c.Workers != nil && *c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", *c.Workers)
	}
	if c.BlockSize != nil && *c.BlockSize < 0 {
		return fmt.Errorf("block_size must be non-negative, got %d", *c.BlockSize)
	}
	if c.ProgressInterval != nil && *c.ProgressInterval != "" {
		d, err := time.ParseDuration(*c.ProgressInterval)
		if err != nil {
			return fmt.Errorf("invalid progress_interval '%s': %w", *c.ProgressInterval, err)
		}
		if d <= 0 {
			return fmt.Errorf("progress_interval must be positive, got %s", d)
		}
	}
	if c.FontSize != nil && !(*c.FontSize > 0 && *c.FontSize <= glyph.MaxSize) {
		return fmt.Errorf("font_size must be in (0, %d], got %f", glyph.MaxSize, *c.FontSize)
	}
	if c.Padding != nil && (*c.Padding < 0 || *c.Padding > sdfgen.MaxDimension) {
		return fmt.Errorf("padding must be in [0, %d], got %d", sdfgen.MaxDimension, *c.Padding)
	}
	return nil
}

// GetWidth returns the width or def when unset.
func (c *Config) GetWidth(def int) int {
	if c.Width == nil {
		return def
	}
	return *c.Width
}

// GetHeight returns the height or def when unset.
func (c *Config) GetHeight(def int) int {
	if c.Height == nil {
		return def
	}
	return *c.Height
}

// GetFontSize returns the font size in pixels per em.
func (c *Config) GetFontSize() float64 {
	if c.FontSize == nil {
		return DefaultFontSize
	}
	return *c.FontSize
}

// GetPadding returns the text padding in pixels.
func (c *Config) GetPadding() int {
	if c.Padding == nil {
		return DefaultPadding
	}
	return *c.Padding
}

// Options converts the set fields into generator options. The config must
// have been validated.
func (c *Config) Options() []sdfgen.Option {
	var opts []sdfgen.Option
	if c.Threshold != nil {
		opts = append(opts, sdfgen.WithThreshold(uint8(*c.Threshold))) //nolint:gosec // validated to [0, 255]
	}
	if c.AutoThreshold != nil && *c.AutoThreshold {
		opts = append(opts, sdfgen.WithAutoThreshold())
	}
	if c.MaxDistance != nil {
		opts = append(opts, sdfgen.WithMaxDistance(*c.MaxDistance))
	}
	if c.Polarity != nil {
		if p, err := sdfgen.ParsePolarity(*c.Polarity); err == nil {
			opts = append(opts, sdfgen.WithPolarity(p))
		}
	}
	if c.Workers != nil {
		opts = append(opts, sdfgen.WithWorkers(*c.Workers))
	}
	if c.BlockSize != nil {
		opts = append(opts, sdfgen.WithBlockSize(*c.BlockSize))
	}
	if c.ProgressInterval != nil && *c.ProgressInterval != "" {
		if d, err := time.ParseDuration(*c.ProgressInterval); err == nil {
			opts = append(opts, sdfgen.WithProgressInterval(d))
		}
	}
	return opts
}
