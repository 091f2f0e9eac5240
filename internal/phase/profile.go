package phase

import (
	"sort"

	"autonomy/internal/model"
)

// Axis names the seven dimensional-profile axes. The axis count and
// weights are a tuning choice, not law; this module fixes seven named
// axes but loads weights from configuration (phases.yaml) rather than
// hardcoding them, so a deployer can retune without a code change.
type Axis string

const (
	AxisTemporal    Axis = "temporal"
	AxisFunctional  Axis = "functional"
	AxisData        Axis = "data"
	AxisState       Axis = "state"
	AxisError       Axis = "error"
	AxisContext     Axis = "context"
	AxisIntegration Axis = "integration"
)

var allAxes = []Axis{AxisTemporal, AxisFunctional, AxisData, AxisState, AxisError, AxisContext, AxisIntegration}

// Profile is a phase's fixed vector over the seven axes (configuration,
// not learned).
type Profile map[Axis]float64

// Situation is the feature vector the Orchestrator computes for
// polytopic scoring: has_errors, error_severity,
// complexity, urgency, mapped onto the same axis space via Feature.
type Situation struct {
	HasErrors     bool
	ErrorSeverity float64 // 0..1
	Complexity    float64 // 0..1
	Urgency       float64 // 0..1
}

// Feature returns the situation's weight contribution for a given axis.
// Each situation feature maps onto the axis it most directly informs;
// axes with no direct situational signal get a neutral 0.5 so they still
// contribute via the phase's own profile weight.
func (s Situation) Feature(axis Axis) float64 {
	switch axis {
	case AxisError:
		if s.HasErrors {
			return s.ErrorSeverity
		}
		return 0
	case AxisFunctional, AxisData:
		return s.Complexity
	case AxisTemporal, AxisState:
		return s.Urgency
	default:
		return 0.5
	}
}

// DefaultWeights gives every axis equal weight (1.0); the weights section
// of phases.yaml (read by LoadProfiles) can override per deployment.
func DefaultWeights() map[Axis]float64 {
	w := map[Axis]float64{}
	for _, a := range allAxes {
		w[a] = 1.0
	}
	return w
}

// Score computes Σ weight_i · dim_i(phase) · feature_i(situation) for one
// candidate phase.
func Score(profile Profile, weights map[Axis]float64, situation Situation) float64 {
	total := 0.0
	for _, axis := range allAxes {
		w := weights[axis]
		if w == 0 {
			w = 1.0
		}
		total += w * profile[axis] * situation.Feature(axis)
	}
	return total
}

// SelectPolytopic scores every adjacency of current against situation and
// returns the highest-scoring neighbor. Ties break by (a) higher
// integration dimension, then (b) alphabetical order.
func SelectPolytopic(current model.PhaseName, profiles map[model.PhaseName]Profile, weights map[Axis]float64, situation Situation) (model.PhaseName, bool) {
	neighbors := Adjacency[current]
	if len(neighbors) == 0 {
		return "", false
	}

	type scored struct {
		name  model.PhaseName
		score float64
	}
	var candidates []scored
	for _, n := range neighbors {
		candidates = append(candidates, scored{name: n, score: Score(profiles[n], weights, situation)})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		iInt := profiles[candidates[i].name][AxisIntegration]
		jInt := profiles[candidates[j].name][AxisIntegration]
		if iInt != jInt {
			return iInt > jInt
		}
		return candidates[i].name < candidates[j].name
	})

	return candidates[0].name, true
}

// DefaultProfiles returns a baseline dimensional profile per phase. These
// are configuration defaults, overridable via phases.yaml.
func DefaultProfiles() map[model.PhaseName]Profile {
	return map[model.PhaseName]Profile{
		model.PhasePlanning:                {AxisTemporal: 0.6, AxisFunctional: 0.8, AxisData: 0.5, AxisState: 0.7, AxisError: 0.2, AxisContext: 0.8, AxisIntegration: 0.6},
		model.PhaseCoding:                  {AxisTemporal: 0.5, AxisFunctional: 0.9, AxisData: 0.7, AxisState: 0.6, AxisError: 0.3, AxisContext: 0.6, AxisIntegration: 0.5},
		model.PhaseQA:                      {AxisTemporal: 0.4, AxisFunctional: 0.6, AxisData: 0.6, AxisState: 0.5, AxisError: 0.7, AxisContext: 0.5, AxisIntegration: 0.5},
		model.PhaseDebugging:               {AxisTemporal: 0.3, AxisFunctional: 0.5, AxisData: 0.5, AxisState: 0.4, AxisError: 0.9, AxisContext: 0.4, AxisIntegration: 0.4},
		model.PhaseInvestigation:           {AxisTemporal: 0.3, AxisFunctional: 0.4, AxisData: 0.6, AxisState: 0.4, AxisError: 0.8, AxisContext: 0.7, AxisIntegration: 0.5},
		model.PhaseApplicationTroubleshoot: {AxisTemporal: 0.2, AxisFunctional: 0.4, AxisData: 0.4, AxisState: 0.3, AxisError: 0.9, AxisContext: 0.4, AxisIntegration: 0.6},
		model.PhaseDocumentation:           {AxisTemporal: 0.7, AxisFunctional: 0.3, AxisData: 0.4, AxisState: 0.6, AxisError: 0.1, AxisContext: 0.6, AxisIntegration: 0.4},
		model.PhaseProjectPlanning:         {AxisTemporal: 0.8, AxisFunctional: 0.5, AxisData: 0.4, AxisState: 0.8, AxisError: 0.1, AxisContext: 0.8, AxisIntegration: 0.7},
		model.PhaseRefactoring:             {AxisTemporal: 0.5, AxisFunctional: 0.6, AxisData: 0.6, AxisState: 0.6, AxisError: 0.4, AxisContext: 0.6, AxisIntegration: 0.8},
		model.PhasePromptDesign:            {AxisTemporal: 0.3, AxisFunctional: 0.3, AxisData: 0.2, AxisState: 0.2, AxisError: 0.2, AxisContext: 0.5, AxisIntegration: 0.2},
		model.PhasePromptImprovement:       {AxisTemporal: 0.3, AxisFunctional: 0.3, AxisData: 0.2, AxisState: 0.2, AxisError: 0.2, AxisContext: 0.5, AxisIntegration: 0.2},
		model.PhaseRoleDesign:              {AxisTemporal: 0.3, AxisFunctional: 0.3, AxisData: 0.2, AxisState: 0.2, AxisError: 0.2, AxisContext: 0.5, AxisIntegration: 0.2},
		model.PhaseRoleImprovement:         {AxisTemporal: 0.3, AxisFunctional: 0.3, AxisData: 0.2, AxisState: 0.2, AxisError: 0.2, AxisContext: 0.5, AxisIntegration: 0.2},
		model.PhaseToolDesign:              {AxisTemporal: 0.3, AxisFunctional: 0.3, AxisData: 0.2, AxisState: 0.2, AxisError: 0.2, AxisContext: 0.5, AxisIntegration: 0.2},
		model.PhaseToolEvaluation:          {AxisTemporal: 0.3, AxisFunctional: 0.3, AxisData: 0.2, AxisState: 0.2, AxisError: 0.2, AxisContext: 0.5, AxisIntegration: 0.2},
	}
}
