// Package config loads reconstruction settings from a TOML file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/chazu/cocone/pkg/cocone"
	"github.com/chazu/cocone/pkg/geom"
	"github.com/chazu/cocone/pkg/orient"
	"github.com/chazu/cocone/pkg/reconstruct"
	"github.com/pelletier/go-toml/v2"
)

// maxFileSize bounds config files read from disk.
const maxFileSize = 1 << 20

// DefaultCells is the marching-cubes resolution used for sampled solids.
const DefaultCells = 64

// Config is the root of a cocone.toml file. Fields omitted from the file
// keep their defaults.
type Config struct {
	Predicates Predicates `toml:"predicates"`
	Cocone     Cocone     `toml:"cocone"`
	Orient     Orient     `toml:"orient"`
	Log        Log        `toml:"log"`
	Batch      Batch      `toml:"batch"`
	Sample     Sample     `toml:"sample"`
}

type Predicates struct {
	Precision string `toml:"precision"` // auto, float64 or exact
}

type Cocone struct {
	CosThreshold   float64 `toml:"cos_threshold"`
	Quorum         int     `toml:"quorum"` // 0 means the dimension
	MaxRadiusRatio float64 `toml:"max_radius_ratio"`
	SameSign       bool    `toml:"same_sign"`
	RawCandidates  bool    `toml:"raw_candidates"`
}

type Orient struct {
	Epsilon float64 `toml:"epsilon"`
}

type Log struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // text or json
}

type Batch struct {
	Workers int `toml:"workers"` // 0 means GOMAXPROCS
}

type Sample struct {
	Cells int `toml:"cells"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Predicates: Predicates{Precision: geom.PrecisionAuto.String()},
		Cocone: Cocone{
			CosThreshold:   cocone.DefaultCosThreshold,
			MaxRadiusRatio: 1,
		},
		Orient: Orient{Epsilon: orient.DefaultEpsilon},
		Log:    Log{Level: "info", Format: "text"},
		Sample: Sample{Cells: DefaultCells},
	}
}

// Load reads and validates a TOML config file.
func Load(path string) (*Config, error) {
	clean := filepath.Clean(path)
	if ext := filepath.Ext(clean); ext != ".toml" {
		return nil, fmt.Errorf("config file must have .toml extension, got %q", ext)
	}
	info, err := os.Stat(clean)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}
	data, err := os.ReadFile(clean)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(bytes.NewReader(data))
}

// Parse decodes TOML from r over the defaults. Unknown keys are rejected.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := toml.NewDecoder(r).DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, fmt.Errorf("unknown config keys:\n%s", strict.String())
		}
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Encode writes cfg as TOML.
func (c *Config) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error
	if _, err := geom.ParsePrecision(c.Predicates.Precision); err != nil {
		errs = append(errs, fmt.Errorf("predicates.precision: %w", err))
	}
	if c.Cocone.CosThreshold <= 0 || c.Cocone.CosThreshold > 1 {
		errs = append(errs, fmt.Errorf("cocone.cos_threshold must be in (0, 1], got %g", c.Cocone.CosThreshold))
	}
	if c.Cocone.Quorum < 0 {
		errs = append(errs, fmt.Errorf("cocone.quorum must not be negative, got %d", c.Cocone.Quorum))
	}
	if c.Cocone.MaxRadiusRatio < 0 {
		errs = append(errs, fmt.Errorf("cocone.max_radius_ratio must not be negative, got %g", c.Cocone.MaxRadiusRatio))
	}
	if c.Orient.Epsilon < 0 {
		errs = append(errs, fmt.Errorf("orient.epsilon must not be negative, got %g", c.Orient.Epsilon))
	}
	if _, err := c.level(); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	if c.Batch.Workers < 0 {
		errs = append(errs, fmt.Errorf("batch.workers must not be negative, got %d", c.Batch.Workers))
	}
	if c.Sample.Cells < 2 {
		errs = append(errs, fmt.Errorf("sample.cells must be at least 2, got %d", c.Sample.Cells))
	}
	return errors.Join(errs...)
}

func (c *Config) level() (slog.Level, error) {
	var l slog.Level
	err := l.UnmarshalText([]byte(c.Log.Level))
	return l, err
}

// Logger builds the configured logger.
func (c *Config) Logger() *reconstruct.Logger {
	level, err := c.level()
	if err != nil {
		level = slog.LevelInfo
	}
	if strings.EqualFold(c.Log.Format, "json") {
		return reconstruct.NewJSONLogger(level)
	}
	return reconstruct.NewTextLogger(level)
}

// Options maps the config onto pipeline options. The logger is left for
// the caller to attach.
func (c *Config) Options() reconstruct.Options {
	prec, err := geom.ParsePrecision(c.Predicates.Precision)
	if err != nil {
		prec = geom.PrecisionAuto
	}
	return reconstruct.Options{
		Precision:      prec,
		CosThreshold:   c.Cocone.CosThreshold,
		Quorum:         c.Cocone.Quorum,
		MaxRadiusRatio: c.Cocone.MaxRadiusRatio,
		SameSign:       c.Cocone.SameSign,
		RawCandidates:  c.Cocone.RawCandidates,
		Epsilon:        c.Orient.Epsilon,
	}
}
