package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
model:
  kind: mechanistic
  chemistry: nmc
simulation:
  eol_threshold: 0.7
  temperature_c: 35
  horizon_years: 15
calibration:
  free_params: [a_cal, z_cal]
  multi_start: 3
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Model.Kind != "mechanistic" || cfg.Model.Chemistry != "nmc" {
		t.Fatalf("model section not decoded: %+v", cfg.Model)
	}
	if cfg.Simulation.EOLThreshold != 0.7 {
		t.Fatalf("eol_threshold: %g", cfg.Simulation.EOLThreshold)
	}
	if cfg.Simulation.TemperatureC != 35 || cfg.Simulation.HorizonYears != 15 {
		t.Fatalf("simulation overrides lost: %+v", cfg.Simulation)
	}
	// Unset fields fall back to defaults.
	if cfg.Simulation.SoC != 0.5 || cfg.Simulation.SamplesPerYear != 365 {
		t.Fatalf("defaults not applied: %+v", cfg.Simulation)
	}
	if len(cfg.Calibration.FreeParams) != 2 || cfg.Calibration.MultiStart != 3 {
		t.Fatalf("calibration section not decoded: %+v", cfg.Calibration)
	}
	if cfg.Calibration.MaxIterations != 1000 {
		t.Fatalf("calibration defaults not applied: %+v", cfg.Calibration)
	}
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "config.json", `{
  "model": {"kind": "semi-empirical", "chemistry": "lfp"},
  "metrics": {"sinks": [{"type": "nop"}]}
}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Model.Chemistry != "lfp" {
		t.Fatalf("model chemistry: %s", cfg.Model.Chemistry)
	}
	if len(cfg.Metrics.Sinks) != 1 || cfg.Metrics.Sinks[0].Type != "nop" {
		t.Fatalf("metrics sinks not decoded: %+v", cfg.Metrics.Sinks)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeFile(t, "config.yaml", `
simulation:
  eol_threshold: 0.75
`)
	t.Setenv("BD_SIMULATION__EOL_THRESHOLD", "0.85")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Simulation.EOLThreshold != 0.85 {
		t.Fatalf("env override lost: %g", cfg.Simulation.EOLThreshold)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := writeFile(t, "config.yaml", `
simulation:
  eol_threshold: 1.5
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for threshold above 1")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
	bad := writeFile(t, "config.toml", "x = 1")
	if _, err := Load(bad); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Model.Kind != "semi-empirical" || cfg.Model.Chemistry != "generic" {
		t.Fatalf("model defaults: %+v", cfg.Model)
	}
	if err := cfg.Simulation.Validate(); err != nil {
		t.Fatalf("default simulation invalid: %v", err)
	}
	if err := cfg.Calibration.Validate(); err != nil {
		t.Fatalf("default calibration invalid: %v", err)
	}
}
