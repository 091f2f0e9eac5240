package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"autonomy/internal/bus"
	"autonomy/internal/conversation"
	"autonomy/internal/model"
	"autonomy/internal/modelclient"
	"autonomy/internal/phase"
	"autonomy/internal/statestore"
	"autonomy/internal/toolkit"
	"autonomy/internal/toolkit/core"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeTransport drives the Model Client from a test-supplied function,
// so end-to-end tests never touch the network.
type fakeTransport struct {
	call func(ctx context.Context, req modelclient.Request) (*modelclient.Response, error)
}

func (f fakeTransport) Call(ctx context.Context, req modelclient.Request) (*modelclient.Response, error) {
	return f.call(ctx, req)
}

func newTestOrchestrator(t *testing.T, call func(ctx context.Context, req modelclient.Request) (*modelclient.Response, error)) (*Orchestrator, *statestore.Store) {
	t.Helper()
	dir := t.TempDir()

	store, err := statestore.Open(dir)
	require.NoError(t, err)

	b := bus.New(100)
	reg := toolkit.NewRegistry()
	core.RegisterTaskOps(reg)

	roles := map[modelclient.SpecialistRole][]modelclient.HostConfig{
		modelclient.RoleArbiter:             {{Host: "test", Model: "test"}},
		modelclient.RoleSpecialistCoding:    {{Host: "test", Model: "test"}},
		modelclient.RoleSpecialistReasoning: {{Host: "test", Model: "test"}},
		modelclient.RoleSpecialistAnalysis:  {{Host: "test", Model: "test"}},
		modelclient.RoleToolCallRepair:      {{Host: "test", Model: "test"}},
	}
	mc := modelclient.New(modelclient.Config{Roles: roles, Timeout: time.Second}, fakeTransport{call: call})
	convMgr := conversation.New(conversation.DefaultConfig(), nil)
	kernel := phase.NewKernel(b, reg, mc, convMgr)

	cfg := DefaultConfig(dir)
	o := New(cfg, store, b, kernel)
	return o, store
}

// A single NEW task runs to completion without
// any forced transitions.
func TestSingleTaskCleanRun(t *testing.T) {
	calls := 0
	var store *statestore.Store
	o, store := newTestOrchestrator(t, func(ctx context.Context, req modelclient.Request) (*modelclient.Response, error) {
		calls++
		return &modelclient.Response{
			Content: "done",
			ToolCalls: []model.ToolCall{
				{Name: "complete_task", Args: map[string]interface{}{"task_id": firstTaskID(store)}},
			},
		}, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	store.UpsertTask("implement the thing", "thing.go", "default", model.PriorityHigh)

	err := o.Run(ctx)
	require.NoError(t, err)

	state := store.State()
	require.True(t, o.allObjectivesComplete(state))
	require.GreaterOrEqual(t, calls, 1)
}

func firstTaskID(store *statestore.Store) string {
	for id := range store.State().Tasks {
		return id
	}
	return ""
}

// A phase that never produces an effect trips
// loop detection and forces a transition rather than spinning forever.
func TestLoopBreaksViaForcedTransition(t *testing.T) {
	o, store := newTestOrchestrator(t, func(ctx context.Context, req modelclient.Request) (*modelclient.Response, error) {
		// Never resolves the task: no tool calls, so HadEffect is always
		// false and the phase's no-update counter climbs.
		return &modelclient.Response{Content: "still working on it"}, nil
	})

	store.UpsertTask("a task that never finishes", "stuck.go", "default", model.PriorityHigh)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	_ = o.Run(ctx)

	state := store.State()
	require.NotEmpty(t, state.PhaseHistory, "orchestrator should have dispatched at least once")
	// The per-phase counter forces a transition after Threshold no-effect
	// dispatches, and the history scan after HistoryWindow identical
	// entries; once the history is at least HistoryWindow long, a forced
	// transition must appear.
	if len(state.PhaseHistory) >= o.loop.HistoryWindow {
		require.NotEmpty(t, state.ForcedTransitions, "expected a forced transition once coding repeats without progress")
	}
}

// An objective with zero tasks and completion
// already at/above 80% auto-completes instead of stalling the loop.
func TestZeroTaskObjectiveAutoCompletes(t *testing.T) {
	o, store := newTestOrchestrator(t, func(ctx context.Context, req modelclient.Request) (*modelclient.Response, error) {
		t.Fatal("no phase should be dispatched for an already-resolved zero-task objective")
		return nil, nil
	})

	state := store.State()
	state.Objectives["default"] = &model.Objective{
		ID: "default", Level: model.LevelPrimary, Title: "legacy objective",
		Status: model.ObjectiveActive, Completion: 85,
	}
	state.ActiveObjectiveID = "default"

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := o.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, model.ObjectiveCompleted, store.State().Objectives["default"].Status)
}

// A phase whose no-update counter already sits at the threshold issues
// its concrete escape transition before anything else is considered:
// documentation hands off to project_planning, the counter resets, and
// the forced-transition log gains a no_updates_threshold entry.
func TestPerPhaseNoUpdateForcesConcreteTransition(t *testing.T) {
	o, store := newTestOrchestrator(t, func(ctx context.Context, req modelclient.Request) (*modelclient.Response, error) {
		return &modelclient.Response{Content: "nothing to do"}, nil
	})

	state := store.State()
	state.CurrentPhase = model.PhaseDocumentation
	ps := state.GetOrCreatePhaseState(model.PhaseDocumentation)
	ps.NoUpdateCount = o.loop.Threshold

	profiles, weights, err := phase.LoadProfiles("does-not-exist.yaml")
	require.NoError(t, err)

	d, forced := o.decide(state, profiles, weights)
	require.True(t, forced)
	require.Equal(t, model.PhaseProjectPlanning, d.Phase)
	require.Equal(t, "no_updates_threshold", d.Reason)
	require.Equal(t, 0, ps.NoUpdateCount)
	require.Len(t, state.ForcedTransitions, 1)
	require.Equal(t, "no_updates_threshold", state.ForcedTransitions[0].Reason)
	require.Equal(t, string(model.PhaseDocumentation), state.ForcedTransitions[0].FromPhase)
	require.Equal(t, string(model.PhaseProjectPlanning), state.ForcedTransitions[0].ToPhase)
}

func TestClassifyTaskError(t *testing.T) {
	require.Equal(t, "/transient", classifyTaskError("dial tcp: connection refused"))
	require.Equal(t, "/transient", classifyTaskError("context deadline exceeded"))
	require.Equal(t, "/logic", classifyTaskError("undefined variable x"))
	require.Equal(t, "/logic", classifyTaskError(""))
}

func TestComputeRetryBackoffCurve(t *testing.T) {
	require.Equal(t, 5*time.Second, computeRetryBackoff("/transient", 1))
	require.Equal(t, 10*time.Second, computeRetryBackoff("/transient", 2))
	require.LessOrEqual(t, computeRetryBackoff("/transient", 20), retryBackoffMax)
	// Logic errors cap lower so replans happen sooner.
	require.LessOrEqual(t, computeRetryBackoff("/logic", 5), 30*time.Second)
}

// Repeated failures on the same task escalate to BLOCKED and emit an
// issue report instead of retrying forever.
func TestTaskBlockedAfterMaxAttempts(t *testing.T) {
	o, store := newTestOrchestrator(t, func(ctx context.Context, req modelclient.Request) (*modelclient.Response, error) {
		return &modelclient.Response{Content: "no luck"}, nil
	})
	o.cfg.ReportsDir = t.TempDir()

	state := store.State()
	task := store.UpsertTask("impossible thing", "hard.go", "default", model.PriorityHigh)

	for i := 0; i < maxTaskAttempts; i++ {
		o.handleTaskFailure(state, task, model.PhaseDebugging, "undefined variable x")
	}

	require.Equal(t, model.TaskBlocked, task.Status)
	require.Len(t, task.Attempts, maxTaskAttempts)
	_, err := os.Stat(filepath.Join(o.cfg.ReportsDir, "ISSUE_"+task.ID+".md"))
	require.NoError(t, err)
}

// A "too complex" signal in model output blocks the task immediately,
// without burning the remaining retries.
func TestTooComplexSignalBlocksImmediately(t *testing.T) {
	o, store := newTestOrchestrator(t, func(ctx context.Context, req modelclient.Request) (*modelclient.Response, error) {
		return &modelclient.Response{Content: ""}, nil
	})
	o.cfg.ReportsDir = t.TempDir()

	state := store.State()
	task := store.UpsertTask("tangled thing", "tangle.go", "default", model.PriorityHigh)

	o.handleTaskFailure(state, task, model.PhaseCoding, "this task is too complex to complete automatically")
	require.Equal(t, model.TaskBlocked, task.Status)
	require.Len(t, task.Attempts, 1)
}

func TestDebugQAMakesQAEager(t *testing.T) {
	state := model.NewPipelineState()
	for i := 0; i < 10; i++ {
		id := string(rune('a' + i))
		state.Tasks[id] = &model.Task{ID: id, Status: model.TaskNew}
	}
	state.Tasks["qa1"] = &model.Task{ID: "qa1", Status: model.TaskQAPending}

	// Foundation lifecycle normally defers QA entirely.
	d, ok := decideTactical(state, false)
	require.True(t, ok)
	require.Equal(t, model.PhaseCoding, d.Phase)

	d, ok = decideTactical(state, true)
	require.True(t, ok)
	require.Equal(t, model.PhaseQA, d.Phase)
}

func TestNeedsFixesRespectsRetryBackoff(t *testing.T) {
	state := model.NewPipelineState()
	state.Tasks["t1"] = &model.Task{
		ID: "t1", Status: model.TaskNeedsFixes,
		NextRetryAt: time.Now().Add(time.Hour),
	}
	state.Tasks["t2"] = &model.Task{ID: "t2", Status: model.TaskNew}

	d, ok := decideTactical(state, false)
	require.True(t, ok)
	require.Equal(t, model.PhaseCoding, d.Phase, "backoff-gated NEEDS_FIXES task must not preempt coding")

	state.Tasks["t1"].NextRetryAt = time.Now().Add(-time.Second)
	d, ok = decideTactical(state, false)
	require.True(t, ok)
	require.Equal(t, model.PhaseDebugging, d.Phase)
	require.Equal(t, "t1", d.Task.ID)
}

func TestApplyPhaseOutcomeLifecycleRouting(t *testing.T) {
	o, store := newTestOrchestrator(t, func(ctx context.Context, req modelclient.Request) (*modelclient.Response, error) {
		return &modelclient.Response{}, nil
	})
	state := store.State()
	ps := state.GetOrCreatePhaseState(model.PhaseCoding)

	// Foundation: coding completes its task outright.
	task := &model.Task{ID: "t1", Status: model.TaskNew}
	state.Tasks["t1"] = task
	o.applyPhaseOutcome(state, decision{Phase: model.PhaseCoding, Task: task},
		&phase.Result{Success: true, HadEffect: true}, model.TaskNew, ps)
	require.Equal(t, model.TaskCompleted, task.Status)

	// Past foundation: coding hands off to QA instead.
	for i := 0; i < 3; i++ {
		id := string(rune('a' + i))
		state.Tasks[id] = &model.Task{ID: id, Status: model.TaskCompleted}
	}
	task2 := &model.Task{ID: "t2", Status: model.TaskNew}
	state.Tasks["t2"] = task2
	require.NotEqual(t, model.LifecycleFoundation, state.Lifecycle())
	o.applyPhaseOutcome(state, decision{Phase: model.PhaseCoding, Task: task2},
		&phase.Result{Success: true, HadEffect: true}, model.TaskNew, ps)
	require.Equal(t, model.TaskQAPending, task2.Status)

	// QA with zero tool calls is implicit approval.
	qaPS := state.GetOrCreatePhaseState(model.PhaseQA)
	o.applyPhaseOutcome(state, decision{Phase: model.PhaseQA, Task: task2},
		&phase.Result{Success: true}, model.TaskQAPending, qaPS)
	require.Equal(t, model.TaskCompleted, task2.Status)

	// Debugging that changed something routes the fix back through QA.
	task3 := &model.Task{ID: "t3", Status: model.TaskNeedsFixes}
	state.Tasks["t3"] = task3
	o.applyPhaseOutcome(state, decision{Phase: model.PhaseDebugging, Task: task3},
		&phase.Result{Success: true, HadEffect: true}, model.TaskNeedsFixes, qaPS)
	require.Equal(t, model.TaskQAPending, task3.Status)
}
