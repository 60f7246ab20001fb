package ingest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/battdegr/core/model"
)

// presetFile is the on-disk shape of a chemistry preset override file.
// Coefficients not listed keep their built-in preset values.
type presetFile struct {
	Chemistry    string             `json:"chemistry" yaml:"chemistry"`
	Coefficients map[string]float64 `json:"coefficients" yaml:"coefficients"`
}

// LoadPresets builds a parameter set for the chemistry named in the file,
// applying the file's coefficient overrides on top of the built-in preset.
// YAML and JSON are selected by file extension.
func LoadPresets(path string) (model.Parameters, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return model.Parameters{}, err
	}

	var pf presetFile
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &pf); err != nil {
			return model.Parameters{}, fmt.Errorf("decode yaml presets: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(raw, &pf); err != nil {
			return model.Parameters{}, fmt.Errorf("decode json presets: %w", err)
		}
	default:
		return model.Parameters{}, fmt.Errorf("unsupported presets extension %q", ext)
	}

	ch, err := model.ParseChemistry(pf.Chemistry)
	if err != nil {
		return model.Parameters{}, err
	}
	params, err := model.PresetParameters(ch)
	if err != nil {
		return model.Parameters{}, err
	}
	if len(pf.Coefficients) == 0 {
		return params, nil
	}
	return params.With(pf.Coefficients)
}
