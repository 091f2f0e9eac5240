package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"autonomy/internal/logging"
	"autonomy/internal/model"
	"autonomy/internal/phase"
)

// AutosaveEvery is the dispatch-cycle interval at which Run forces a
// state save. Kept at 1 since every dispatch is a durability boundary;
// exposed so a deployment can widen it without a code change.
const AutosaveEvery = 1

// metaLoopLimit bounds how many times a loop override may fire for the
// same stuck phase before Run gives up and requests human input.
const metaLoopLimit = 3

// ErrUserAbort is returned by Run when Stop() cancels the run context.
var ErrUserAbort = errors.New("orchestrator: user abort")

// ErrUserInputRequired is returned by Run when forced transitions have
// themselves repeated past metaLoopLimit and no further automatic
// recovery is attempted.
var ErrUserInputRequired = errors.New("orchestrator: user input required, repeated forced transitions")

// pollInterval is how often a paused Run checks for Resume()/Stop().
const pollInterval = 100 * time.Millisecond

// Run executes the main scheduler loop until every objective reaches
// ObjectiveCompleted, Stop() cancels parent, or an unrecoverable loop
// condition is hit. The returned error is nil on clean completion,
// ErrUserAbort on Stop(), or ErrUserInputRequired on a meta-loop.
func (o *Orchestrator) Run(parent context.Context) error {
	ctx, cancel := context.WithCancel(parent)
	o.mu.Lock()
	o.cancelFunc = cancel
	o.mu.Unlock()
	defer cancel()

	profiles, weights, err := phase.LoadProfiles(phasesYAMLPath(o.cfg.Workspace))
	if err != nil {
		return fmt.Errorf("orchestrator: load phase profiles: %w", err)
	}

	forcedStreak := map[model.PhaseName]int{}
	cycles := 0

	for {
		select {
		case <-ctx.Done():
			return o.shutdownReason(ctx)
		default:
		}

		o.mu.Lock()
		paused := o.isPaused
		o.mu.Unlock()
		if paused {
			select {
			case <-ctx.Done():
				return o.shutdownReason(ctx)
			case <-time.After(pollInterval):
			}
			continue
		}

		state := o.store.State()

		if err := o.ensureObjective(state); err != nil {
			return fmt.Errorf("orchestrator: ensure objective: %w", err)
		}
		o.syncObjectiveCompletion(state)

		if o.allObjectivesComplete(state) {
			logging.Orchestrator("all objectives completed, run finished")
			_ = o.store.Save()
			return nil
		}

		d, forced := o.decide(state, profiles, weights)
		if forced {
			forcedStreak[state.CurrentPhase]++
			if forcedStreak[state.CurrentPhase] > metaLoopLimit {
				o.emitEvent(Event{Type: string(model.MsgUserInputReq), Phase: state.CurrentPhase,
					Message: "repeated forced transitions from " + string(state.CurrentPhase) + ", awaiting human input"})
				o.bus.Publish(model.Message{Sender: state.CurrentPhase, Recipient: model.Broadcast,
					Type: model.MsgUserInputReq, Priority: model.PriorityMsgCritical,
					Payload: "meta-loop: repeated forced transitions"})
				_ = o.store.Save()
				return ErrUserInputRequired
			}
		} else {
			forcedStreak[state.CurrentPhase] = 0
		}

		if diagnostic, found := o.loop.DetectRepeatedFailures(state.FixHistory); found {
			o.bus.Publish(model.Message{Sender: d.Phase, Recipient: model.Broadcast,
				Type: model.MsgIssueReported, Priority: model.PriorityMsgCritical,
				Payload: diagnostic})
		}

		o.emitEvent(Event{Type: "PHASE_DISPATCHING", Phase: d.Phase, Message: d.Reason})

		var taskID string
		var statusBefore model.TaskStatus
		if d.Task != nil {
			taskID = d.Task.ID
			statusBefore = d.Task.Status
		}
		result := o.kernel.Execute(ctx, d.Phase, phase.Context{
			State:     state,
			Task:      d.Task,
			Lifecycle: state.Lifecycle(),
		})

		ps := state.GetOrCreatePhaseState(d.Phase)
		ps.RecordExecution(result.Success, result.HadEffect, result.Message)
		state.CurrentPhase = d.Phase
		state.PhaseHistory = append(state.PhaseHistory, d.Phase)

		if d.Task != nil {
			switch {
			case !result.Success:
				o.handleTaskFailure(state, d.Task, d.Phase, result.Message)
			case d.Task.Status == model.TaskNeedsFixes && statusBefore != model.TaskNeedsFixes:
				// A write was syntax-rejected mid-dispatch; the task is
				// already routed to debugging, nothing more to record.
			default:
				o.applyPhaseOutcome(state, d, result, statusBefore, ps)
				o.recordTaskSuccess(state, d.Task, d.Phase)
			}
		}

		evtType := "PHASE_COMPLETED"
		if !result.Success {
			evtType = "PHASE_FAILED"
		}
		o.emitEvent(Event{Type: evtType, Phase: d.Phase, TaskID: taskID, Message: result.Message})

		cycles++
		if cycles%AutosaveEvery == 0 || !result.Success {
			if err := o.store.Save(); err != nil {
				return fmt.Errorf("orchestrator: save state: %w", err)
			}
		}
	}
}

// decide picks the next phase for one cycle. Precedence: per-phase
// no-update forced transition, then the tactical tree, then polytopic
// scoring, then the planning fallback; a coordinator-level history scan
// can override any of them. The returned bool reports whether the
// decision was a forced override.
func (o *Orchestrator) decide(state *model.PipelineState, profiles map[model.PhaseName]phase.Profile, weights map[phase.Axis]float64) (decision, bool) {
	// A phase whose consecutive no-effect count crossed the threshold
	// requests its own concrete escape transition before anything else
	// is considered.
	if cur := state.CurrentPhase; cur != "" {
		ps := state.GetOrCreatePhaseState(cur)
		if o.loop.ShouldForcePerPhase(ps) {
			target := phase.ForcedNextFor(cur)
			o.recordForcedTransition(state, cur, target, "no_updates_threshold")
			ps.NoUpdateCount = 0
			return decision{Phase: target, Reason: "no_updates_threshold"}, true
		}
	}

	d, ok := decideTactical(state, o.cfg.DebugQA)
	if !ok {
		situation := computeSituation(state)
		d, ok = decidePolytopic(state.CurrentPhase, profiles, weights, situation)
	}
	if !ok {
		d = orchestratorFallback(state)
	}

	overridden, forced := applyLoopOverride(o.loop, d, state.PhaseHistory, state.CurrentPhase)
	if forced {
		o.recordForcedTransition(state, state.CurrentPhase, overridden.Phase, overridden.Reason)
		if ps, exists := state.PhaseStates[state.CurrentPhase]; exists {
			ps.NoUpdateCount = 0
		}
		return overridden, true
	}
	return d, false
}

// applyPhaseOutcome advances a task's status from a successful dispatch.
// Coding hands finished work to QA — except in the foundation lifecycle,
// where tasks complete directly to build momentum. Debugging that
// produced an effect sends the fixed task back through QA. QA finding no
// issues via tool calls is implicit approval, as long as its no-update
// counter sits below the forced-transition threshold.
func (o *Orchestrator) applyPhaseOutcome(state *model.PipelineState, d decision, result *phase.Result, statusBefore model.TaskStatus, ps *model.PhaseState) {
	task := d.Task
	if task.IsTerminal() {
		return
	}

	switch d.Phase {
	case model.PhaseCoding:
		if !result.HadEffect {
			return
		}
		if state.Lifecycle() == model.LifecycleFoundation {
			task.Status = model.TaskCompleted
			task.CompletedAt = time.Now()
		} else {
			task.Status = model.TaskQAPending
		}
	case model.PhaseDebugging:
		if result.HadEffect && statusBefore == model.TaskNeedsFixes {
			task.Status = model.TaskQAPending
		}
	case model.PhaseQA:
		if len(result.ToolCalls) == 0 && ps.NoUpdateCount < o.loop.Threshold && task.Status == model.TaskQAPending {
			task.Status = model.TaskCompleted
			task.CompletedAt = time.Now()
		}
	}
}

func (o *Orchestrator) recordForcedTransition(state *model.PipelineState, from, to model.PhaseName, reason string) {
	state.ForcedTransitions = append(state.ForcedTransitions, model.ForcedTransition{
		FromPhase: string(from),
		ToPhase:   string(to),
		Reason:    reason,
		Timestamp: time.Now().Unix(),
	})
	logging.Orchestrator("forced transition %s -> %s (%s)", from, to, reason)
}

func (o *Orchestrator) shutdownReason(ctx context.Context) error {
	_ = o.store.Save()
	if errors.Is(ctx.Err(), context.Canceled) {
		return ErrUserAbort
	}
	return ctx.Err()
}

// ensureObjective creates a default primary objective when none exist:
// it wraps every existing task, or (if there are no tasks either) stands
// empty for planning to populate.
func (o *Orchestrator) ensureObjective(state *model.PipelineState) error {
	if len(state.Objectives) > 0 {
		if state.ActiveObjectiveID == "" {
			state.ActiveObjectiveID = firstObjectiveID(state)
		}
		return nil
	}

	taskIDs := make([]string, 0, len(state.Tasks))
	for id := range state.Tasks {
		taskIDs = append(taskIDs, id)
	}
	obj := &model.Objective{
		ID:      "default",
		Level:   model.LevelPrimary,
		Title:   "default objective",
		Status:  model.ObjectiveActive,
		TaskIDs: taskIDs,
	}
	state.Objectives[obj.ID] = obj
	state.ActiveObjectiveID = obj.ID
	return nil
}

func firstObjectiveID(state *model.PipelineState) string {
	best := ""
	bestRank := 99
	for id, obj := range state.Objectives {
		if obj.Status == model.ObjectiveCompleted {
			continue
		}
		rank := map[model.ObjectiveLevel]int{model.LevelPrimary: 0, model.LevelSecondary: 1, model.LevelTertiary: 2}[obj.Level]
		if rank < bestRank || (rank == bestRank && id < best) {
			best, bestRank = id, rank
		}
	}
	return best
}

// syncObjectiveCompletion recomputes each objective's completion
// percentage. An objective with no tasks whose completion was externally
// set at/above 80% is transitioned to completed rather than stalling the
// loop forever.
func (o *Orchestrator) syncObjectiveCompletion(state *model.PipelineState) {
	for _, obj := range state.Objectives {
		if obj.NeedsZeroTaskCompletion() {
			obj.Status = model.ObjectiveCompleted
			logging.Orchestrator("objective %s auto-completed (zero tasks, completion=%.0f%%)", obj.ID, obj.Completion)
			continue
		}
		if len(obj.TaskIDs) == 0 {
			continue
		}
		completed := 0
		for _, id := range obj.TaskIDs {
			if t, ok := state.Tasks[id]; ok && t.Status == model.TaskCompleted {
				completed++
			}
		}
		obj.Completion = 100 * float64(completed) / float64(len(obj.TaskIDs))
		if completed == len(obj.TaskIDs) && obj.Status != model.ObjectiveCompleted {
			obj.Status = model.ObjectiveCompleted
		}
	}
}

func (o *Orchestrator) allObjectivesComplete(state *model.PipelineState) bool {
	if len(state.Objectives) == 0 {
		return false
	}
	for _, obj := range state.Objectives {
		if obj.Status != model.ObjectiveCompleted {
			return false
		}
	}
	return true
}

// computeSituation derives the polytopic situation vector from live
// state: error signal from outstanding NEEDS_FIXES/FAILED tasks,
// complexity from pending task volume, urgency from lifecycle.
func computeSituation(state *model.PipelineState) phase.Situation {
	needsFixes := len(state.TasksByStatus(model.TaskNeedsFixes))
	failed := len(state.TasksByStatus(model.TaskFailed))
	pending := len(state.TasksByStatus(model.TaskNew))

	s := phase.Situation{
		HasErrors:     needsFixes > 0 || failed > 0,
		ErrorSeverity: clamp01(float64(needsFixes+2*failed) / 5.0),
		Complexity:    clamp01(float64(pending) / 10.0),
	}
	switch state.Lifecycle() {
	case model.LifecycleCompletion:
		s.Urgency = 0.9
	case model.LifecycleConsolidation:
		s.Urgency = 0.6
	case model.LifecycleIntegration:
		s.Urgency = 0.4
	default:
		s.Urgency = 0.2
	}
	return s
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// orchestratorFallback is the last resort when neither the tactical tree
// nor polytopic scoring yields a decision (e.g. the current phase has no
// adjacency, as at the very first cycle): start at planning.
func orchestratorFallback(state *model.PipelineState) decision {
	if state.CurrentPhase == "" {
		return decision{Phase: model.PhasePlanning, Reason: "initial_dispatch"}
	}
	return decision{Phase: model.PhasePlanning, Reason: "fallback_no_decision"}
}

func phasesYAMLPath(workspace string) string {
	return filepath.Join(workspace, "phases.yaml")
}
