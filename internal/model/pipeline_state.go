package model

import "time"

// LifecyclePhase is the project-wide progress bucket derived from overall
// task completion fraction.
type LifecyclePhase string

const (
	LifecycleFoundation    LifecyclePhase = "foundation"
	LifecycleIntegration   LifecyclePhase = "integration"
	LifecycleConsolidation LifecyclePhase = "consolidation"
	LifecycleCompletion    LifecyclePhase = "completion"
)

// PipelineState is the aggregate root, owned exclusively by the main
// loop.
type PipelineState struct {
	Tasks       map[string]*Task          `json:"tasks"`
	Objectives  map[string]*Objective     `json:"objectives"`
	PhaseStates map[PhaseName]*PhaseState `json:"phase_states"`

	CurrentPhase PhaseName   `json:"current_phase"`
	PhaseHistory []PhaseName `json:"phase_history"`

	ForcedTransitions []ForcedTransition `json:"forced_transitions"`
	LearnedPatterns   map[string]int     `json:"learned_patterns"`
	FixHistory        []FixRecord        `json:"fix_history"`

	ActiveObjectiveID string    `json:"active_objective_id"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// FixRecord tracks one failed or successful attempt on a task's target
// file (see Success), used by the pattern detector to spot repeated
// failure signatures.
type FixRecord struct {
	TaskID    string    `json:"task_id"`
	File      string    `json:"file"`
	ErrorSig  string    `json:"error_signature"`
	Phase     PhaseName `json:"phase"`
	Timestamp time.Time `json:"timestamp"`
	Success   bool      `json:"success"`
}

// NewPipelineState returns a fresh state with empty maps, used when no
// state file exists yet.
func NewPipelineState() *PipelineState {
	now := time.Now()
	return &PipelineState{
		Tasks:           map[string]*Task{},
		Objectives:      map[string]*Objective{},
		PhaseStates:     map[PhaseName]*PhaseState{},
		LearnedPatterns: map[string]int{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// GetOrCreatePhaseState returns (lazily creating) a phase's counter block.
// PhaseState is never destroyed once created.
func (s *PipelineState) GetOrCreatePhaseState(name PhaseName) *PhaseState {
	if ps, ok := s.PhaseStates[name]; ok {
		return ps
	}
	ps := &PhaseState{Name: name}
	s.PhaseStates[name] = ps
	return ps
}

// CompletionFraction returns completed/total across all tasks, 0 if none.
func (s *PipelineState) CompletionFraction() float64 {
	if len(s.Tasks) == 0 {
		return 0
	}
	completed := 0
	for _, t := range s.Tasks {
		if t.Status == TaskCompleted {
			completed++
		}
	}
	return float64(completed) / float64(len(s.Tasks))
}

// Lifecycle derives the project lifecycle phase from completion fraction
//: foundation (<25%), integration (<50%), consolidation (<75%),
// completion (>=75%).
func (s *PipelineState) Lifecycle() LifecyclePhase {
	f := s.CompletionFraction()
	switch {
	case f < 0.25:
		return LifecycleFoundation
	case f < 0.50:
		return LifecycleIntegration
	case f < 0.75:
		return LifecycleConsolidation
	default:
		return LifecycleCompletion
	}
}

// TasksByStatus returns all tasks with the given status, in a stable
// iteration order (sorted by ID) so tactical decisions are deterministic.
func (s *PipelineState) TasksByStatus(status TaskStatus) []*Task {
	var out []*Task
	for _, t := range s.Tasks {
		if t.Status == status {
			out = append(out, t)
		}
	}
	sortTasksByID(out)
	return out
}

func sortTasksByID(tasks []*Task) {
	for i := 1; i < len(tasks); i++ {
		j := i
		for j > 0 && tasks[j-1].ID > tasks[j].ID {
			tasks[j-1], tasks[j] = tasks[j], tasks[j-1]
			j--
		}
	}
}

// Validate checks referential integrity: every task id referenced by any
// objective must exist in the task map (Testable Property 1).
func (s *PipelineState) Validate() error {
	for _, obj := range s.Objectives {
		for _, id := range obj.TaskIDs {
			if _, ok := s.Tasks[id]; !ok {
				return &MissingTaskError{ObjectiveID: obj.ID, TaskID: id}
			}
		}
	}
	return nil
}

// MissingTaskError reports a dangling task reference from an objective.
type MissingTaskError struct {
	ObjectiveID string
	TaskID      string
}

func (e *MissingTaskError) Error() string {
	return "objective " + e.ObjectiveID + " references missing task " + e.TaskID
}
