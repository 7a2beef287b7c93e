package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if GAZEKIT_CONFIG is set
//  3. env (prefix GAZEKIT_)
func Load(ctx context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	// Load from file if provided
	if path := os.Getenv("GAZEKIT_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
		}
	}

	// Environment variables: GAZEKIT_ADDR, GAZEKIT_SAMPLE_RATE_HZ, ...
	// A double underscore nests: GAZEKIT_CALIBRATION__SETTLE_MS maps to
	// calibration.settle_ms.
	envProvider := env.Provider("GAZEKIT_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "gazekit_")
		return strings.ReplaceAll(s, "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	// Unmarshal into a copy
	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if cfg.Mode != ModeSimulated && cfg.Mode != ModeHardware {
		return fmt.Errorf("%w: mode must be %q or %q", ErrInvalidConfig, ModeSimulated, ModeHardware)
	}
	if cfg.SampleRateHz <= 0 {
		return fmt.Errorf("%w: sample_rate_hz must be positive", ErrInvalidConfig)
	}
	if cfg.Screen.WidthMM <= 0 || cfg.Screen.HeightMM <= 0 || cfg.Screen.DistanceMM <= 0 {
		return fmt.Errorf("%w: screen dimensions must be positive", ErrInvalidConfig)
	}
	if cfg.Calibration.MinValidSamples > cfg.Calibration.WindowSamples {
		return fmt.Errorf("%w: min_valid_samples exceeds window_samples", ErrInvalidConfig)
	}
	return nil
}
