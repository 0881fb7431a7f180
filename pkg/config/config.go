// Package config provides configuration loading and management for nodulesynth.
// It handles loading configuration from YAML files, .env overrides and provides
// default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables that override the YAML values
const (
	EnvSeed        = "NODULESYNTH_SEED"
	EnvCatalog     = "NODULESYNTH_CATALOG"
	EnvPatchDir    = "NODULESYNTH_PATCH_DIR"
	EnvBlend       = "NODULESYNTH_BLEND_METHOD"
	EnvResample    = "NODULESYNTH_RESAMPLE_ORDER"
	EnvVerbose     = "NODULESYNTH_VERBOSE"
	BlendPoisson   = "poisson"
	BlendOpenCV    = "opencv"
	defaultEnvFile = ".env"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Projection parameters of the digitally reconstructed radiograph
	Projection struct {
		// Beta scales the attenuation before exponentiation
		Beta float64 `yaml:"beta"`

		// WindowMin and WindowMax clip the HU values of the nodule patch
		WindowMin float64 `yaml:"windowMin"`
		WindowMax float64 `yaml:"windowMax"`

		// Axis is the volume axis summed over (0 = z, 1 = y, 2 = x)
		Axis int `yaml:"axis"`
	} `yaml:"projection"`

	// Patch selection parameters
	Selection struct {
		// PrimaryDivisor gives the first tolerance D/PrimaryDivisor
		PrimaryDivisor float64 `yaml:"primaryDivisor"`

		// FallbackDivisor gives the relaxed tolerance used when nothing matches
		FallbackDivisor float64 `yaml:"fallbackDivisor"`

		// Seed for the random patch choice
		Seed uint64 `yaml:"seed"`
	} `yaml:"selection"`

	Resample struct {
		// Order is one of nearest, linear or cubic
		Order string `yaml:"order"`
	} `yaml:"resample"`

	Contrast struct {
		Floor float64 `yaml:"floor"`
	} `yaml:"contrast"`

	// Blending parameters
	Blend struct {
		// Method is poisson (pure Go) or opencv (requires the gocv build tag)
		Method string `yaml:"method"`

		// SOR settings of the poisson solver
		Omega         float64 `yaml:"omega"`
		MaxIterations int     `yaml:"maxIterations"`
		Tolerance     float64 `yaml:"tolerance"`
	} `yaml:"blend"`

	// Nodule patch sources
	Patches struct {
		// Catalog is the CSV listing img_name and diameter
		Catalog string `yaml:"catalog"`

		// Dir holds the CT patches and their masks
		Dir string `yaml:"dir"`

		// MaskFrom is replaced by MaskTo in a CT file name to get its mask
		MaskFrom string `yaml:"maskFrom"`
		MaskTo   string `yaml:"maskTo"`
	} `yaml:"patches"`

	// Output parameters
	Output struct {
		// SaveIntermediaryResults determines whether to save per-nodule images
		SaveIntermediaryResults bool `yaml:"saveIntermediaryResults"`

		IntermediaryDir string `yaml:"intermediaryDir"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Projection.Beta = 0.85
	cfg.Projection.WindowMin = -500
	cfg.Projection.WindowMax = 400
	cfg.Projection.Axis = 1

	cfg.Selection.PrimaryDivisor = 5
	cfg.Selection.FallbackDivisor = 10
	cfg.Selection.Seed = 1

	cfg.Resample.Order = "linear"
	cfg.Contrast.Floor = 0.4

	cfg.Blend.Method = BlendPoisson
	cfg.Blend.Omega = 1.9
	cfg.Blend.MaxIterations = 5000
	cfg.Blend.Tolerance = 1e-3

	cfg.Patches.Catalog = "nodules/catalog.csv"
	cfg.Patches.Dir = "nodules"
	cfg.Patches.MaskFrom = "dcm"
	cfg.Patches.MaskTo = "seg"

	cfg.Output.SaveIntermediaryResults = false
	cfg.Output.IntermediaryDir = "intermediary"
	cfg.Output.Verbose = true

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// ApplyEnv loads envFile (".env" when empty, ignored if missing) into the
// process environment and applies the NODULESYNTH_* overrides
func (cfg *Config) ApplyEnv(envFile string) error {
	if envFile == "" {
		envFile = defaultEnvFile
	}
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("error loading %s: %w", envFile, err)
		}
	}

	if v, ok := os.LookupEnv(EnvSeed); ok {
		seed, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvSeed, err)
		}
		cfg.Selection.Seed = seed
	}
	if v, ok := os.LookupEnv(EnvVerbose); ok {
		verbose, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvVerbose, err)
		}
		cfg.Output.Verbose = verbose
	}
	if v := os.Getenv(EnvCatalog); v != "" {
		cfg.Patches.Catalog = v
	}
	if v := os.Getenv(EnvPatchDir); v != "" {
		cfg.Patches.Dir = v
	}
	if v := os.Getenv(EnvBlend); v != "" {
		cfg.Blend.Method = strings.ToLower(v)
	}
	if v := os.Getenv(EnvResample); v != "" {
		cfg.Resample.Order = strings.ToLower(v)
	}

	return nil
}

// Validate checks value ranges that would otherwise fail deep in processing
func (cfg *Config) Validate() error {
	if cfg.Projection.Beta <= 0 {
		return fmt.Errorf("projection.beta must be positive, got %v", cfg.Projection.Beta)
	}
	if cfg.Projection.WindowMin >= cfg.Projection.WindowMax {
		return fmt.Errorf("projection window [%v, %v] is empty", cfg.Projection.WindowMin, cfg.Projection.WindowMax)
	}
	if cfg.Projection.Axis < 0 || cfg.Projection.Axis > 2 {
		return fmt.Errorf("projection.axis must be 0, 1 or 2, got %d", cfg.Projection.Axis)
	}
	if cfg.Selection.PrimaryDivisor <= 0 || cfg.Selection.FallbackDivisor <= 0 {
		return fmt.Errorf("selection divisors must be positive, got %v and %v",
			cfg.Selection.PrimaryDivisor, cfg.Selection.FallbackDivisor)
	}
	if cfg.Contrast.Floor <= 0 {
		return fmt.Errorf("contrast.floor must be positive, got %v", cfg.Contrast.Floor)
	}
	switch cfg.Blend.Method {
	case BlendPoisson, BlendOpenCV:
	default:
		return fmt.Errorf("unknown blend.method %q", cfg.Blend.Method)
	}
	if cfg.Blend.MaxIterations <= 0 {
		return fmt.Errorf("blend.maxIterations must be positive, got %d", cfg.Blend.MaxIterations)
	}
	if cfg.Blend.Omega <= 0 || cfg.Blend.Omega >= 2 {
		return fmt.Errorf("blend.omega must be in (0,2), got %v", cfg.Blend.Omega)
	}
	if cfg.Patches.MaskFrom == "" {
		return fmt.Errorf("patches.maskFrom must not be empty")
	}
	return nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
