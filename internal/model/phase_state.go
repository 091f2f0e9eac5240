package model

// PhaseName identifies one of the fourteen phases.
type PhaseName string

const (
	PhasePlanning                PhaseName = "planning"
	PhaseCoding                  PhaseName = "coding"
	PhaseQA                      PhaseName = "qa"
	PhaseDebugging               PhaseName = "debugging"
	PhaseInvestigation           PhaseName = "investigation"
	PhaseApplicationTroubleshoot PhaseName = "application_troubleshooting"
	PhaseDocumentation           PhaseName = "documentation"
	PhaseProjectPlanning         PhaseName = "project_planning"
	PhaseRefactoring             PhaseName = "refactoring"
	PhasePromptDesign            PhaseName = "prompt_design"
	PhasePromptImprovement       PhaseName = "prompt_improvement"
	PhaseRoleDesign              PhaseName = "role_design"
	PhaseRoleImprovement         PhaseName = "role_improvement"
	PhaseToolDesign              PhaseName = "tool_design"
	PhaseToolEvaluation          PhaseName = "tool_evaluation"
)

// PhaseState tracks per-phase counters.
type PhaseState struct {
	Name          PhaseName `json:"name"`
	RunCount      int       `json:"run_count"`
	SuccessCount  int       `json:"success_count"`
	LastResult    string    `json:"last_result,omitempty"`
	NoUpdateCount int       `json:"no_update_count"`
}

// RecordExecution updates counters after one dispatch. hadEffect is true
// iff the phase produced at least one tool call with observable effect.
func (s *PhaseState) RecordExecution(success bool, hadEffect bool, result string) {
	s.RunCount++
	s.LastResult = result
	if success {
		s.SuccessCount++
	}
	if hadEffect {
		s.NoUpdateCount = 0
	} else {
		s.NoUpdateCount++
	}
}

// ForcedTransition records an orchestrator- or phase-initiated loop break.
type ForcedTransition struct {
	FromPhase string `json:"from_phase"`
	ToPhase   string `json:"to_phase"`
	Reason    string `json:"reason"`
	Timestamp int64  `json:"timestamp"`
}
