// Package config loads and validates the toolkit configuration from YAML or
// JSON files with optional environment overrides.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/battdegr/core/aging"
	"github.com/kilianp07/battdegr/core/metrics"
)

// Config is the root configuration.
type Config struct {
	Model       aging.Config      `json:"model"`
	PresetsPath string            `json:"presets_path"`
	Simulation  SimulationConfig  `json:"simulation"`
	Calibration CalibrationConfig `json:"calibration"`
	Metrics     metrics.Config    `json:"metrics"`
}

// Load reads the configuration file (format chosen by extension), applies
// BD_* environment overrides and validates every section eagerly.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides, e.g. BD_SIMULATION__EOL_THRESHOLD.
	if err := k.Load(env.Provider("BD_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "bd_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.Model.SetDefaults()
	cfg.Simulation.SetDefaults()
	cfg.Calibration.SetDefaults()
	if err := cfg.Simulation.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Calibration.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.Model.SetDefaults()
	cfg.Simulation.SetDefaults()
	cfg.Calibration.SetDefaults()
	return cfg
}
