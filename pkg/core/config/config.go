// Package config loads the segmentation settings from a YAML file and
// overlays environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"segmentation/pkg/core/segment"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v2"
)

type Config struct {
	Hierarchy      HierarchyConfig      `yaml:"hierarchy"`
	Classification ClassificationConfig `yaml:"classification"`
	View           ViewConfig           `yaml:"view"`
	Store          StoreConfig          `yaml:"store"`
	Server         ServerConfig         `yaml:"server"`
}

type HierarchyConfig struct {
	Depth     int      `yaml:"depth" env:"SEGMENT_DEPTH"`
	Levels    []string `yaml:"levels"`
	Separator string   `yaml:"separator"`
}

type ClassificationConfig struct {
	StrongThresholdPct float64 `yaml:"strong_threshold_pct" env:"SEGMENT_STRONG_THRESHOLD_PCT"`
}

type ViewConfig struct {
	DefaultMeasure string `yaml:"default_measure" env:"SEGMENT_MEASURE"`
	Sort           string `yaml:"sort" env:"SEGMENT_SORT"`
}

// StoreConfig selects the Fact Provider: "file", "postgres" or "sqlite".
type StoreConfig struct {
	Driver      string `yaml:"driver" env:"SEGMENT_STORE"`
	DatabaseURL string `yaml:"database_url" env:"DATABASE_URL"`
	SQLitePath  string `yaml:"sqlite_path" env:"SEGMENT_SQLITE_PATH"`
	FactsFile   string `yaml:"facts_file" env:"SEGMENT_FACTS_FILE"`
	Table       string `yaml:"table" env:"SEGMENT_TABLE"`

	MaxConns       int32         `yaml:"max_conns" env:"SEGMENT_DB_MAX_CONNS"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" env:"SEGMENT_DB_CONNECT_TIMEOUT"`
}

type ServerConfig struct {
	Addr       string        `yaml:"addr" env:"SEGMENT_ADDR"`
	SessionTTL time.Duration `yaml:"session_ttl" env:"SEGMENT_SESSION_TTL"`
}

// DefaultLevels names the four levels of the reference hierarchy.
var DefaultLevels = []string{"universe", "category", "sub_category", "family"}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Hierarchy: HierarchyConfig{
			Depth:     segment.DefaultDepth,
			Levels:    append([]string(nil), DefaultLevels...),
			Separator: segment.DefaultSeparator,
		},
		Classification: ClassificationConfig{StrongThresholdPct: segment.DefaultStrongThresholdPct},
		View: ViewConfig{
			DefaultMeasure: string(segment.MeasureRevenue),
			Sort:           string(segment.SortNone),
		},
		Store: StoreConfig{
			Driver:         "file",
			Table:          "sales_facts",
			MaxConns:       4,
			ConnectTimeout: 10 * time.Second,
		},
		Server: ServerConfig{
			Addr:       ":8080",
			SessionTTL: 24 * time.Hour,
		},
	}
}

// Load reads path (if non-empty and present), overlays the environment and
// validates the result. A missing file is not an error: defaults apply.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
			}
		case os.IsNotExist(err):
			fmt.Printf("[CONFIG] %s not found, using defaults\n", path)
		default:
			return cfg, fmt.Errorf("failed to read %s: %w", path, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.normalize(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// normalize validates values and fills the level names up to the depth.
func (c *Config) normalize() error {
	if c.Hierarchy.Depth < 1 {
		return fmt.Errorf("hierarchy.depth must be >= 1, got %d", c.Hierarchy.Depth)
	}
	if c.Hierarchy.Separator == "" {
		return fmt.Errorf("hierarchy.separator must not be empty")
	}
	if !(c.Classification.StrongThresholdPct > 0) {
		return fmt.Errorf("classification.strong_threshold_pct must be > 0")
	}
	if _, err := segment.ParseMeasure(c.View.DefaultMeasure); err != nil {
		return fmt.Errorf("view.default_measure: %w", err)
	}
	if _, err := segment.ParseSortMode(c.View.Sort); err != nil {
		return fmt.Errorf("view.sort: %w", err)
	}

	switch strings.ToLower(c.Store.Driver) {
	case "", "file", "postgres", "sqlite":
		c.Store.Driver = strings.ToLower(c.Store.Driver)
	default:
		return fmt.Errorf("store.driver %q is not one of file, postgres, sqlite", c.Store.Driver)
	}
	if c.Store.Driver == "postgres" && strings.TrimSpace(c.Store.DatabaseURL) == "" {
		return fmt.Errorf("store.database_url (or DATABASE_URL) is required for the postgres driver")
	}
	if c.Store.MaxConns < 1 {
		c.Store.MaxConns = 4
	}
	if c.Store.ConnectTimeout <= 0 {
		c.Store.ConnectTimeout = 10 * time.Second
	}
	if c.Server.SessionTTL <= 0 {
		c.Server.SessionTTL = 24 * time.Hour
	}

	for i := len(c.Hierarchy.Levels); i < c.Hierarchy.Depth; i++ {
		c.Hierarchy.Levels = append(c.Hierarchy.Levels, fmt.Sprintf("level_%d", i+1))
	}
	return nil
}

// LevelName returns the configured name of a 1-based level.
func (c Config) LevelName(level int) string {
	if level >= 1 && level <= len(c.Hierarchy.Levels) {
		return c.Hierarchy.Levels[level-1]
	}
	return fmt.Sprintf("level_%d", level)
}

// EngineOptions maps the configuration onto segment.Options.
func (c Config) EngineOptions() segment.Options {
	measure, _ := segment.ParseMeasure(c.View.DefaultMeasure)
	sort, _ := segment.ParseSortMode(c.View.Sort)
	return segment.Options{
		Depth:      c.Hierarchy.Depth,
		Separator:  c.Hierarchy.Separator,
		Measure:    measure,
		Sort:       sort,
		Thresholds: segment.Thresholds{StrongPct: c.Classification.StrongThresholdPct},
	}
}
