package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/limaJavier/timetabler/pkg/engine"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const FileName = "timetabler.yaml"

// Solver tunes the rebuild and best-effort solvers
type Solver struct {
	AttemptTimeout  time.Duration `yaml:"attemptTimeout" validate:"gt=0"`
	PreFlight       bool          `yaml:"preFlight"`
	Retention       string        `yaml:"retention" validate:"oneof=clear-all keep-placed keep-manual keep-locked keep-current"`
	GapThreshold    int           `yaml:"gapThreshold" validate:"min=0"`
	LowLoadHours    int           `yaml:"lowLoadHours" validate:"min=0"`
	CondenseMaxLoad int           `yaml:"condenseMaxLoad" validate:"min=0"`
	UnplacedPenalty int           `yaml:"unplacedPenalty" validate:"min=1"`
}

type Weights struct {
	Gap           int `yaml:"gap" validate:"min=0"`
	Morning       int `yaml:"morning" validate:"min=0"`
	Adjacency     int `yaml:"adjacency" validate:"min=0"`
	Fragmentation int `yaml:"fragmentation" validate:"min=0"`
	SingleLesson  int `yaml:"singleLesson" validate:"min=0"`
	Condensation  int `yaml:"condensation" validate:"min=0"`
	Stay          int `yaml:"stay" validate:"min=0"`
}

// Profile scales the secondary penalties of one relaxation attempt
type Profile struct {
	Name          string  `yaml:"name" validate:"required"`
	Fragmentation float64 `yaml:"fragmentation" validate:"min=0,max=1"`
	SingleLesson  float64 `yaml:"singleLesson" validate:"min=0,max=1"`
	Condensation  float64 `yaml:"condensation" validate:"min=0,max=1"`
}

// Edit tunes the edit resolver and its greedy fallback
type Edit struct {
	Planner          string        `yaml:"planner" validate:"oneof=resolver greedy fallback"`
	Scope            string        `yaml:"scope" validate:"oneof=focused free"`
	StayPenalty      int           `yaml:"stayPenalty" validate:"min=0"`
	DuplicatePenalty int           `yaml:"duplicatePenalty" validate:"min=0"`
	Timeout          time.Duration `yaml:"timeout" validate:"gt=0"`
	MaxIterations    int           `yaml:"maxIterations" validate:"min=1"`
	RelocationCap    int           `yaml:"relocationCap" validate:"min=1"`
}

type Logging struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=console json"`
	File   string `yaml:"file,omitempty"`
}

// Config represents the application configuration
type Config struct {
	Solver   Solver    `yaml:"solver"`
	Weights  Weights   `yaml:"weights"`
	Profiles []Profile `yaml:"profiles" validate:"required,min=1,unique=Name,dive"`
	Edit     Edit      `yaml:"edit"`
	Logging  Logging   `yaml:"logging"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Default mirrors the engine defaults
func Default() *Config {
	options := engine.DefaultOptions()
	editOptions := engine.DefaultEditOptions()
	weights := options.Weights

	profiles := make([]Profile, 0, len(options.Profiles))
	for _, profile := range options.Profiles {
		profiles = append(profiles, Profile{
			Name:          profile.Name,
			Fragmentation: profile.Fragmentation,
			SingleLesson:  profile.SingleLesson,
			Condensation:  profile.Condensation,
		})
	}

	return &Config{
		Solver: Solver{
			AttemptTimeout:  options.AttemptTimeout,
			PreFlight:       options.PreFlight,
			Retention:       options.Retention.String(),
			GapThreshold:    options.GapThreshold,
			LowLoadHours:    options.LowLoadHours,
			CondenseMaxLoad: options.CondenseMaxLoad,
			UnplacedPenalty: options.UnplacedPenalty,
		},
		Weights: Weights{
			Gap:           weights.Gap,
			Morning:       weights.Morning,
			Adjacency:     weights.Adjacency,
			Fragmentation: weights.Fragmentation,
			SingleLesson:  weights.SingleLesson,
			Condensation:  weights.Condensation,
			Stay:          weights.Stay,
		},
		Profiles: profiles,
		Edit: Edit{
			Planner:          "fallback",
			Scope:            editOptions.Scope.Name(),
			StayPenalty:      editOptions.StayPenalty,
			DuplicatePenalty: editOptions.DuplicatePenalty,
			Timeout:          editOptions.Timeout,
			MaxIterations:    editOptions.MaxIterations,
			RelocationCap:    editOptions.RelocationCap,
		},
		Logging: Logging{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load looks for timetabler.yaml in the current directory, then in the user's home directory.
// Without a file the defaults apply.
func Load() (*Config, error) {
	configPath, ok, err := findConfigFile()
	if err != nil {
		return nil, fmt.Errorf("failed to find config file: %w", err)
	} else if !ok {
		return Default(), nil
	}
	return LoadFromPath(configPath)
}

// LoadFromPath loads and validates the configuration from a specific path. Keys missing from the
// file keep their default value.
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// Options converts the solver sections into rebuild/best-effort options
func (cfg *Config) Options(logger *zap.Logger, events engine.EventSink) (engine.Options, error) {
	retention, err := engine.ParseRetention(cfg.Solver.Retention)
	if err != nil {
		return engine.Options{}, err
	}

	profiles := make([]engine.RelaxationProfile, 0, len(cfg.Profiles))
	for _, profile := range cfg.Profiles {
		profiles = append(profiles, engine.RelaxationProfile{
			Name:          profile.Name,
			Fragmentation: profile.Fragmentation,
			SingleLesson:  profile.SingleLesson,
			Condensation:  profile.Condensation,
		})
	}

	return engine.Options{
		AttemptTimeout:  cfg.Solver.AttemptTimeout,
		Weights:         cfg.weights(),
		Profiles:        profiles,
		Retention:       retention,
		PreFlight:       cfg.Solver.PreFlight,
		GapThreshold:    cfg.Solver.GapThreshold,
		LowLoadHours:    cfg.Solver.LowLoadHours,
		CondenseMaxLoad: cfg.Solver.CondenseMaxLoad,
		UnplacedPenalty: cfg.Solver.UnplacedPenalty,
		Events:          events,
		Logger:          logger,
	}, nil
}

// EditOptions converts the edit section into edit resolver options
func (cfg *Config) EditOptions(logger *zap.Logger, events engine.EventSink) (engine.EditOptions, error) {
	scope, ok := engine.ParseScope(cfg.Edit.Scope)
	if !ok {
		return engine.EditOptions{}, fmt.Errorf("unknown edit scope %q", cfg.Edit.Scope)
	}

	return engine.EditOptions{
		Scope:            scope,
		StayPenalty:      cfg.Edit.StayPenalty,
		DuplicatePenalty: cfg.Edit.DuplicatePenalty,
		Timeout:          cfg.Edit.Timeout,
		MaxIterations:    cfg.Edit.MaxIterations,
		RelocationCap:    cfg.Edit.RelocationCap,
		Events:           events,
		Logger:           logger,
	}, nil
}

// Planner builds the configured edit planner
func (cfg *Config) Planner(logger *zap.Logger, events engine.EventSink) (engine.EditPlanner, error) {
	options, err := cfg.EditOptions(logger, events)
	if err != nil {
		return nil, err
	}

	switch cfg.Edit.Planner {
	case "resolver":
		return engine.NewEditResolver(options), nil
	case "greedy":
		return engine.NewGreedyCascade(options), nil
	case "fallback":
		return engine.Fallback(engine.NewEditResolver(options), engine.NewGreedyCascade(options)), nil
	default:
		return nil, fmt.Errorf("unknown edit planner %q", cfg.Edit.Planner)
	}
}

func (cfg *Config) weights() engine.Weights {
	return engine.Weights{
		Gap:           cfg.Weights.Gap,
		Morning:       cfg.Weights.Morning,
		Adjacency:     cfg.Weights.Adjacency,
		Fragmentation: cfg.Weights.Fragmentation,
		SingleLesson:  cfg.Weights.SingleLesson,
		Condensation:  cfg.Weights.Condensation,
		Stay:          cfg.Weights.Stay,
	}
}

func findConfigFile() (string, bool, error) {
	if _, err := os.Stat(FileName); err == nil {
		return FileName, true, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", false, fmt.Errorf("failed to get home directory: %w", err)
	}

	homeConfigPath := filepath.Join(homeDir, FileName)
	if _, err := os.Stat(homeConfigPath); err == nil {
		return homeConfigPath, true, nil
	}
	return "", false, nil
}
