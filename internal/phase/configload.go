package phase

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"autonomy/internal/model"
)

// yamlDoc is the on-disk shape of phases.yaml: per-phase axis profiles
// plus optional axis weight overrides. Profiles are tuning data, not
// code.
type yamlDoc struct {
	Weights map[Axis]float64            `yaml:"weights"`
	Phases  map[string]map[Axis]float64 `yaml:"phases"`
}

// LoadProfiles reads a phases.yaml file and returns phase profiles plus
// axis weights. A phase or axis absent from the file falls back to
// DefaultProfiles/DefaultWeights for that entry, so an operator can
// override a handful of axes without transcribing all fourteen phases.
// A missing file returns the full defaults unchanged.
func LoadProfiles(path string) (map[model.PhaseName]Profile, map[Axis]float64, error) {
	profiles := DefaultProfiles()
	weights := DefaultWeights()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return profiles, weights, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("phase: read %s: %w", path, err)
	}

	var doc yamlDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("phase: parse %s: %w", path, err)
	}

	for axis, w := range doc.Weights {
		weights[axis] = w
	}
	for name, overrides := range doc.Phases {
		phaseName := model.PhaseName(name)
		profile := profiles[phaseName]
		if profile == nil {
			profile = Profile{}
		}
		merged := Profile{}
		for k, v := range profile {
			merged[k] = v
		}
		for axis, v := range overrides {
			merged[axis] = v
		}
		profiles[phaseName] = merged
	}

	return profiles, weights, nil
}
