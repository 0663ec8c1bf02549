package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/dpup/greenwalk/internal/lib/filter"
	"github.com/dpup/greenwalk/internal/lib/green"
	"github.com/dpup/greenwalk/internal/lib/metrics"
	"github.com/dpup/greenwalk/internal/lib/units"
)

// EnvPrefix marks environment variables that override configuration, with
// double underscores separating sections, e.g.
// GREENWALK__ENGINE__CLOSURE_RADIUS_M=0.75
const EnvPrefix = "GREENWALK__"

// Config represents the complete application configuration
type Config struct {
	Engine   EngineConfig   `yaml:"engine"`
	Location LocationConfig `yaml:"location"`
	Server   ServerConfig   `yaml:"server"`
	Display  DisplayConfig  `yaml:"display"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// EngineConfig holds the sampling thresholds. The app variants in the field
// disagree on these values, so every one of them is injectable.
type EngineConfig struct {
	MovementThreshold   float64 `yaml:"movement_threshold_m"`
	ClosureRadius       float64 `yaml:"closure_radius_m"`
	MinClosureVertices  int     `yaml:"min_closure_vertices"`
	MinClosurePerimeter float64 `yaml:"min_closure_perimeter_m"`
	AreaFloor           float64 `yaml:"area_floor_m2"`
}

// LocationConfig holds location source settings
type LocationConfig struct {
	// SampleTimeout reports a timeout when no fix arrives for this long
	SampleTimeout time.Duration `yaml:"sample_timeout"`
	// MaxHorizontalAccuracy drops fixes with a worse accuracy radius. Zero
	// keeps every fix.
	MaxHorizontalAccuracy float64 `yaml:"max_horizontal_accuracy_m"`
}

// ServerConfig holds server-specific settings
type ServerConfig struct {
	Port int `yaml:"port"`
	// PlayerIdleTimeout drops a player's sessions after this long without a
	// fix or command. Zero keeps players forever.
	PlayerIdleTimeout time.Duration `yaml:"player_idle_timeout"`
}

// DisplayConfig holds presentation settings
type DisplayConfig struct {
	Units string `yaml:"units"`
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			MovementThreshold:   filter.DefaultThreshold,
			ClosureRadius:       green.DefaultClosure().Radius,
			MinClosureVertices:  green.DefaultClosure().MinVertexCount,
			MinClosurePerimeter: green.DefaultClosure().MinPerimeter,
			AreaFloor:           metrics.DefaultAreaFloor,
		},
		Location: LocationConfig{
			SampleTimeout:         10 * time.Second,
			MaxHorizontalAccuracy: 0,
		},
		Server: ServerConfig{
			Port:              8080,
			PlayerIdleTimeout: 6 * time.Hour,
		},
		Display: DisplayConfig{
			Units: string(units.Imperial),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file,
// GREENWALK__ environment variables and finally explicit overrides keyed by
// dotted path (e.g. "server.port"), in that order of precedence.
func Load(path string, overrides map[string]interface{}) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	if len(overrides) > 0 {
		if err := k.Load(confmap.Provider(overrides, "."), nil); err != nil {
			return nil, fmt.Errorf("failed to apply overrides: %w", err)
		}
	}

	cfg := DefaultConfig()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once
func (c *Config) Validate() error {
	var err error
	if c.Engine.MovementThreshold <= 0 {
		err = multierr.Append(err, fmt.Errorf("engine.movement_threshold_m must be positive, got %v", c.Engine.MovementThreshold))
	}
	if c.Engine.ClosureRadius <= 0 {
		err = multierr.Append(err, fmt.Errorf("engine.closure_radius_m must be positive, got %v", c.Engine.ClosureRadius))
	}
	if c.Engine.MinClosureVertices < 3 {
		err = multierr.Append(err, fmt.Errorf("engine.min_closure_vertices must be at least 3, got %d", c.Engine.MinClosureVertices))
	}
	if c.Engine.MinClosurePerimeter < 0 {
		err = multierr.Append(err, fmt.Errorf("engine.min_closure_perimeter_m must not be negative, got %v", c.Engine.MinClosurePerimeter))
	}
	if c.Engine.AreaFloor < 0 {
		err = multierr.Append(err, fmt.Errorf("engine.area_floor_m2 must not be negative, got %v", c.Engine.AreaFloor))
	}
	if c.Location.SampleTimeout < 0 {
		err = multierr.Append(err, fmt.Errorf("location.sample_timeout must not be negative, got %v", c.Location.SampleTimeout))
	}
	if c.Location.MaxHorizontalAccuracy < 0 {
		err = multierr.Append(err, fmt.Errorf("location.max_horizontal_accuracy_m must not be negative, got %v", c.Location.MaxHorizontalAccuracy))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		err = multierr.Append(err, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if c.Server.PlayerIdleTimeout < 0 {
		err = multierr.Append(err, fmt.Errorf("server.player_idle_timeout must not be negative, got %v", c.Server.PlayerIdleTimeout))
	}
	if _, uerr := units.ParseSystem(c.Display.Units); uerr != nil {
		err = multierr.Append(err, fmt.Errorf("display.units: %w", uerr))
	}
	if _, lerr := zap.ParseAtomicLevel(c.Logging.Level); lerr != nil {
		err = multierr.Append(err, fmt.Errorf("logging.level: %w", lerr))
	}
	return err
}

// Closure converts the engine settings into mapper closure thresholds
func (e EngineConfig) Closure() green.Closure {
	return green.Closure{
		MinVertexCount: e.MinClosureVertices,
		MinPerimeter:   e.MinClosurePerimeter,
		Radius:         e.ClosureRadius,
	}
}

// Filter returns the movement filter for the configured threshold
func (e EngineConfig) Filter() filter.PositionFilter {
	return filter.New(e.MovementThreshold)
}

// Calculator returns the metrics calculator for the configured area floor
func (e EngineConfig) Calculator() metrics.Calculator {
	return metrics.NewCalculator(e.AreaFloor)
}
