package orchestrator

import (
	"time"

	"autonomy/internal/loopdetect"
	"autonomy/internal/model"
	"autonomy/internal/phase"
)

// decision is the outcome of the tactical tree or its polytopic fallback:
// which phase to dispatch next and, if applicable, which task it concerns.
type decision struct {
	Phase  model.PhaseName
	Task   *model.Task
	Reason string
}

// refactoringDuplicateThreshold is the duplicate-pattern count (tracked in
// PipelineState.LearnedPatterns) at or above which refactoring triggers
// even below the lifecycle-aware threshold, as long as the backlog holds
// at least one pending task.
const refactoringDuplicateThreshold = 3

// lifecycleRefactorThreshold gives the pending-task count, per lifecycle
// phase, at or above which the refactoring backlog should be worked. Foundation
// defers more aggressively than consolidation/completion.
var lifecycleRefactorThreshold = map[model.LifecyclePhase]int{
	model.LifecycleFoundation:    10,
	model.LifecycleIntegration:   6,
	model.LifecycleConsolidation: 3,
	model.LifecycleCompletion:    1,
}

// qaBatchSize is the QA_PENDING backlog size at which batched QA kicks in
// during the integration lifecycle phase.
const qaBatchSize = 5

// decideTactical implements the rule-based next-phase selection. debugQA
// makes QA eager regardless of lifecycle. Returns false if the tree
// yields no action, signalling the caller to fall back to polytopic
// selection.
func decideTactical(state *model.PipelineState, debugQA bool) (decision, bool) {
	if t := firstRetryableNeedsFixes(state); t != nil {
		return decision{Phase: model.PhaseDebugging, Task: t, Reason: "needs_fixes"}, true
	}

	qaPending := state.TasksByStatus(model.TaskQAPending)
	if len(qaPending) > 0 {
		if debugQA {
			return decision{Phase: model.PhaseQA, Task: qaPending[0], Reason: "qa_debug_mode"}, true
		}
		switch state.Lifecycle() {
		case model.LifecycleFoundation:
			// Defer: don't dispatch QA yet unless nothing else to do.
		case model.LifecycleIntegration:
			if len(qaPending) >= qaBatchSize {
				return decision{Phase: model.PhaseQA, Task: qaPending[0], Reason: "qa_pending_batch"}, true
			}
		case model.LifecycleConsolidation:
			return decision{Phase: model.PhaseQA, Task: qaPending[0], Reason: "qa_pending_batch"}, true
		case model.LifecycleCompletion:
			return decision{Phase: model.PhaseQA, Task: qaPending[0], Reason: "qa_pending_eager"}, true
		}
	}

	if shouldRefactor(state) {
		return decision{Phase: model.PhaseRefactoring, Reason: "refactor_trigger"}, true
	}

	if t := firstPendingDocumentation(state); t != nil {
		return decision{Phase: model.PhaseDocumentation, Task: t, Reason: "pending_documentation"}, true
	}

	if t := highestPriorityPending(state); t != nil {
		return decision{Phase: model.PhaseCoding, Task: t, Reason: "coding_highest_priority"}, true
	}

	if len(state.Tasks) == 0 {
		return decision{Phase: model.PhasePlanning, Reason: "no_tasks"}, true
	}

	if allTerminalOrCompleted(state) {
		return decision{Phase: model.PhaseDocumentation, Reason: "all_completed_final_docs"}, true
	}

	// Foundation-deferred QA with nothing else pending: now run it eagerly
	// rather than stalling the loop.
	if len(qaPending) > 0 {
		return decision{Phase: model.PhaseQA, Task: qaPending[0], Reason: "qa_pending_fallback"}, true
	}

	return decision{}, false
}

// firstRetryableNeedsFixes returns the first NEEDS_FIXES task whose
// retry backoff window has elapsed.
func firstRetryableNeedsFixes(state *model.PipelineState) *model.Task {
	now := time.Now()
	for _, t := range state.TasksByStatus(model.TaskNeedsFixes) {
		if t.NextRetryAt.IsZero() || !now.Before(t.NextRetryAt) {
			return t
		}
	}
	return nil
}

func firstPendingDocumentation(state *model.PipelineState) *model.Task {
	for _, t := range state.TasksByStatus(model.TaskNew) {
		if t.TargetFile != "" && isDocTarget(t.TargetFile) {
			return t
		}
	}
	return nil
}

func isDocTarget(path string) bool {
	n := len(path)
	return n >= 3 && path[n-3:] == ".md"
}

// highestPriorityPending returns the NEW task with the highest priority
// rank; TasksByStatus already sorts by ID for determinism, so this picks
// the minimum rank, breaking ties in ID order.
func highestPriorityPending(state *model.PipelineState) *model.Task {
	pending := state.TasksByStatus(model.TaskNew)
	var best *model.Task
	for _, t := range pending {
		if best == nil || t.Priority.Rank() < best.Priority.Rank() {
			best = t
		}
	}
	return best
}

func allTerminalOrCompleted(state *model.PipelineState) bool {
	if len(state.Tasks) == 0 {
		return false
	}
	for _, t := range state.Tasks {
		if !t.IsTerminal() {
			return false
		}
	}
	return true
}

// shouldRefactor triggers the refactoring backlog when its size reaches
// the lifecycle-aware threshold, or when a duplicate pattern has been
// observed often enough whatever the backlog size. An empty backlog
// never triggers.
func shouldRefactor(state *model.PipelineState) bool {
	pendingRefactor := 0
	for _, t := range state.Tasks {
		if t.ObjectiveID == "refactoring-backlog" && t.Status == model.TaskNew {
			pendingRefactor++
		}
	}
	if pendingRefactor == 0 {
		return false
	}
	threshold := lifecycleRefactorThreshold[state.Lifecycle()]
	if pendingRefactor >= threshold {
		return true
	}
	for _, count := range state.LearnedPatterns {
		if count >= refactoringDuplicateThreshold {
			return true
		}
	}
	return false
}

// decidePolytopic is the fallback scoring pass over the current phase's
// neighbors.
func decidePolytopic(current model.PhaseName, profiles map[model.PhaseName]phase.Profile, weights map[phase.Axis]float64, situation phase.Situation) (decision, bool) {
	next, ok := phase.SelectPolytopic(current, profiles, weights, situation)
	if !ok {
		return decision{}, false
	}
	return decision{Phase: next, Reason: "polytopic_fallback"}, true
}

// applyLoopOverride replaces the proposed decision when the history scan
// finds a stuck repeated phase, or the proposed phase is itself under a
// resolver cooldown. A phase in a failure streak is never selected as
// its own resolver.
func applyLoopOverride(d *loopdetect.Detector, proposed decision, history []model.PhaseName, current model.PhaseName) (decision, bool) {
	stuck, ok := d.ScanHistory(history)
	if !ok && !d.IsBlacklisted(proposed.Phase) {
		return proposed, false
	}
	if proposed.Phase != stuck && !d.IsBlacklisted(proposed.Phase) {
		return proposed, false
	}

	candidates := loopdetect.FilterSelfResolver(stuck, phase.Adjacency[current])
	for _, c := range candidates {
		if !d.IsBlacklisted(c) {
			return decision{Phase: c, Reason: "loop_override"}, true
		}
	}
	// Nothing usable; investigation is the root-cause phase of last
	// resort, unless it is itself the stuck phase.
	if stuck != model.PhaseInvestigation {
		return decision{Phase: model.PhaseInvestigation, Reason: "loop_override_investigation"}, true
	}
	return decision{Phase: model.PhasePlanning, Reason: "loop_override_planning"}, true
}
