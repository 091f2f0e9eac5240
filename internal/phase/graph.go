// Package phase implements the shared phase kernel and the fourteen
// concrete phase specializations: the polytope of vertices and directed
// edges the orchestrator schedules over.
package phase

import "autonomy/internal/model"

// Adjacency is the canonical directed edge set. Every listed neighbor is
// a permitted next phase.
var Adjacency = map[model.PhaseName][]model.PhaseName{
	model.PhasePlanning:                {model.PhaseCoding, model.PhaseRefactoring},
	model.PhaseCoding:                  {model.PhaseQA, model.PhaseDocumentation, model.PhaseRefactoring},
	model.PhaseQA:                      {model.PhaseDebugging, model.PhaseDocumentation, model.PhaseApplicationTroubleshoot, model.PhaseRefactoring},
	model.PhaseDebugging:               {model.PhaseInvestigation, model.PhaseCoding, model.PhaseApplicationTroubleshoot},
	model.PhaseInvestigation:           {model.PhaseDebugging, model.PhaseCoding, model.PhaseApplicationTroubleshoot, model.PhasePromptDesign, model.PhaseRoleDesign, model.PhaseToolDesign, model.PhaseRefactoring},
	model.PhaseApplicationTroubleshoot: {model.PhaseDebugging, model.PhaseInvestigation, model.PhaseCoding},
	model.PhaseDocumentation:           {model.PhasePlanning, model.PhaseQA},
	model.PhaseProjectPlanning:         {model.PhasePlanning, model.PhaseRefactoring},
	model.PhaseRefactoring:             {model.PhaseCoding, model.PhaseQA, model.PhasePlanning},
	model.PhasePromptDesign:            {model.PhasePromptImprovement},
	model.PhasePromptImprovement:       {model.PhasePromptDesign, model.PhasePlanning},
	model.PhaseRoleDesign:              {model.PhaseRoleImprovement},
	model.PhaseRoleImprovement:         {model.PhaseRoleDesign, model.PhasePlanning},
	model.PhaseToolDesign:              {model.PhaseToolEvaluation},
	model.PhaseToolEvaluation:          {model.PhaseToolDesign, model.PhaseCoding},
}

// ForcedNext maps each phase to the concrete transition it requests when
// its no-update counter crosses the threshold. These are loop-break
// edges, not regular adjacencies: documentation escapes to
// project_planning even though project_planning is not in its edge set.
var ForcedNext = map[model.PhaseName]model.PhaseName{
	model.PhasePlanning:                model.PhaseProjectPlanning,
	model.PhaseCoding:                  model.PhaseQA,
	model.PhaseQA:                      model.PhaseDocumentation,
	model.PhaseDebugging:               model.PhaseInvestigation,
	model.PhaseInvestigation:           model.PhaseDebugging,
	model.PhaseApplicationTroubleshoot: model.PhaseInvestigation,
	model.PhaseDocumentation:           model.PhaseProjectPlanning,
	model.PhaseProjectPlanning:         model.PhasePlanning,
	model.PhaseRefactoring:             model.PhasePlanning,
	model.PhasePromptDesign:            model.PhasePromptImprovement,
	model.PhasePromptImprovement:       model.PhasePlanning,
	model.PhaseRoleDesign:              model.PhaseRoleImprovement,
	model.PhaseRoleImprovement:         model.PhasePlanning,
	model.PhaseToolDesign:              model.PhaseToolEvaluation,
	model.PhaseToolEvaluation:          model.PhaseCoding,
}

// ForcedNextFor returns the loop-break target for a phase, defaulting to
// planning for any phase without an explicit entry.
func ForcedNextFor(p model.PhaseName) model.PhaseName {
	if next, ok := ForcedNext[p]; ok {
		return next
	}
	return model.PhasePlanning
}

// AllPhases lists every vertex, for reachability checks.
var AllPhases = []model.PhaseName{
	model.PhasePlanning, model.PhaseCoding, model.PhaseQA, model.PhaseDebugging,
	model.PhaseInvestigation, model.PhaseApplicationTroubleshoot, model.PhaseDocumentation,
	model.PhaseProjectPlanning, model.PhaseRefactoring, model.PhasePromptDesign,
	model.PhasePromptImprovement, model.PhaseRoleDesign, model.PhaseRoleImprovement,
	model.PhaseToolDesign, model.PhaseToolEvaluation,
}

// ReachableFromPlanning walks the union of Adjacency and ForcedNext
// starting at planning. project_planning has no incoming regular edge;
// it is entered through the forced transitions of planning and
// documentation, so reachability is computed over both edge kinds.
func ReachableFromPlanning() map[model.PhaseName]bool {
	visited := map[model.PhaseName]bool{model.PhasePlanning: true}
	queue := []model.PhaseName{model.PhasePlanning}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		next := append([]model.PhaseName{}, Adjacency[cur]...)
		if f, ok := ForcedNext[cur]; ok {
			next = append(next, f)
		}
		for _, n := range next {
			if !visited[n] {
				visited[n] = true
				queue = append(queue, n)
			}
		}
	}
	return visited
}
