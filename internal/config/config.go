package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/me/bakesched/pkg/model"
)

// Config holds the full bakesched configuration: server wiring plus every
// scheduling knob. Values come from DefaultConfig, optionally overlaid by a
// YAML file.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Kitchen   KitchenConfig   `yaml:"kitchen"`
	Optimizer OptimizerConfig `yaml:"optimizer"`
}

// ServerConfig holds configuration for the HTTP server.
type ServerConfig struct {
	Addr      string `yaml:"addr"`       // Listen address (default ":8080")
	LogLevel  string `yaml:"log_level"`  // debug, info, warn, error
	LogFormat string `yaml:"log_format"` // text, json
	DBPath    string `yaml:"db_path"`    // SQLite path (":memory:" for testing)
	RecipeDir string `yaml:"recipe_dir"` // Directory of recipe YAML files
}

// KitchenConfig holds the physical constraints the engine schedules under.
type KitchenConfig struct {
	Hours model.OperatingHours `yaml:"hours"`

	// Capacities maps each resource category to its unit count.
	Capacities map[model.ResourceCategory]int `yaml:"capacities"`

	// PreDeliveryBufferMin is how many minutes before the delivery time the
	// last production step must finish.
	PreDeliveryBufferMin int `yaml:"pre_delivery_buffer_min"`

	// StepGapBufferMin is the default gap allowed between consecutive steps
	// that are not flagged must-follow-immediately.
	StepGapBufferMin int `yaml:"step_gap_buffer_min"`

	// MaxLookBackDays bounds how far before the delivery deadline the slot
	// search may reach.
	MaxLookBackDays int `yaml:"max_look_back_days"`

	// MaxOrderQuantity is the absolute per-item ceiling; quantities above it
	// fail validation outright.
	MaxOrderQuantity int `yaml:"max_order_quantity"`

	// ChillStorageLimitMin caps how long chilled goods may be stored,
	// in minutes.
	ChillStorageLimitMin int `yaml:"chill_storage_limit_min"`
}

// OptimizerConfig tunes the multi-order optimizer.
type OptimizerConfig struct {
	PopulationSize int `yaml:"population_size"`
	Generations    int `yaml:"generations"`

	// ConvergenceWindow stops the search early when the best fitness has not
	// improved for this many generations.
	ConvergenceWindow int `yaml:"convergence_window"`

	// Parallelism bounds concurrent fitness evaluations.
	Parallelism int `yaml:"parallelism"`

	// TabuSize is the length of the local-search tabu list.
	TabuSize int `yaml:"tabu_size"`

	// LocalSearchIters bounds the refinement pass.
	LocalSearchIters int `yaml:"local_search_iters"`

	// Fitness weights. Lower fitness is better.
	SpanWeight   float64 `yaml:"span_weight"`
	IdleWeight   float64 `yaml:"idle_weight"`
	MarginWeight float64 `yaml:"margin_weight"`
}

// DefaultConfig returns sensible defaults matching a small bakery:
// two bakers, one oven, two mixers, an 08:00-19:00 kitchen.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr:      ":8080",
			LogLevel:  "info",
			LogFormat: "text",
			RecipeDir: "recipes",
		},
		Kitchen: KitchenConfig{
			Hours: model.OperatingHours{Open: "08:00", Close: "19:00"},
			Capacities: map[model.ResourceCategory]int{
				model.ResourceBaker: 2,
				model.ResourceOven:  1,
				model.ResourceMixer: 2,
			},
			PreDeliveryBufferMin: 60,
			StepGapBufferMin:     15,
			MaxLookBackDays:      7,
			MaxOrderQuantity:     500,
			ChillStorageLimitMin: 48 * 60,
		},
		Optimizer: OptimizerConfig{
			PopulationSize:    20,
			Generations:       40,
			ConvergenceWindow: 8,
			Parallelism:       4,
			TabuSize:          16,
			LocalSearchIters:  200,
			SpanWeight:        1.0,
			IdleWeight:        0.5,
			MarginWeight:      0.1,
		},
	}
}

// Load reads a YAML config file over the defaults. A missing path returns
// the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks internal consistency of the loaded configuration.
func (c *Config) Validate() error {
	if err := c.Kitchen.Hours.Validate(); err != nil {
		return fmt.Errorf("kitchen hours: %w", err)
	}
	for cat, n := range c.Kitchen.Capacities {
		if n <= 0 {
			return fmt.Errorf("capacity for %q must be positive, got %d", cat, n)
		}
	}
	if c.Kitchen.PreDeliveryBufferMin < 0 {
		return fmt.Errorf("pre_delivery_buffer_min must be >= 0")
	}
	if c.Kitchen.StepGapBufferMin < 0 {
		return fmt.Errorf("step_gap_buffer_min must be >= 0")
	}
	if c.Kitchen.MaxLookBackDays < 1 {
		return fmt.Errorf("max_look_back_days must be >= 1")
	}
	if c.Optimizer.PopulationSize < 2 {
		return fmt.Errorf("population_size must be >= 2")
	}
	if c.Optimizer.Parallelism < 1 {
		return fmt.Errorf("parallelism must be >= 1")
	}
	return nil
}
