package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCatchesDanglingTaskReference(t *testing.T) {
	s := NewPipelineState()
	s.Objectives["o1"] = &Objective{ID: "o1", TaskIDs: []string{"missing"}}

	err := s.Validate()
	require.Error(t, err)
	var missing *MissingTaskError
	assert.ErrorAs(t, err, &missing)
	assert.Equal(t, "o1", missing.ObjectiveID)
}

func TestValidatePassesWhenAllTasksExist(t *testing.T) {
	s := NewPipelineState()
	s.Tasks["t1"] = &Task{ID: "t1"}
	s.Objectives["o1"] = &Objective{ID: "o1", TaskIDs: []string{"t1"}}

	assert.NoError(t, s.Validate())
}

func TestLifecycleThresholds(t *testing.T) {
	cases := []struct {
		completed, total int
		want             LifecyclePhase
	}{
		{0, 10, LifecycleFoundation},
		{2, 10, LifecycleFoundation},
		{3, 10, LifecycleIntegration},
		{4, 10, LifecycleIntegration},
		{5, 10, LifecycleConsolidation},
		{7, 10, LifecycleConsolidation},
		{8, 10, LifecycleCompletion},
		{10, 10, LifecycleCompletion},
	}
	for _, c := range cases {
		s := NewPipelineState()
		for i := 0; i < c.total; i++ {
			status := TaskNew
			if i < c.completed {
				status = TaskCompleted
			}
			id := string(rune('a' + i))
			s.Tasks[id] = &Task{ID: id, Status: status}
		}
		assert.Equal(t, c.want, s.Lifecycle(), "completed=%d total=%d", c.completed, c.total)
	}
}

func TestLifecycleEmptyIsFoundation(t *testing.T) {
	s := NewPipelineState()
	assert.Equal(t, LifecycleFoundation, s.Lifecycle())
}

func TestGetOrCreatePhaseStateLazyAndStable(t *testing.T) {
	s := NewPipelineState()
	ps1 := s.GetOrCreatePhaseState(PhaseCoding)
	ps1.RunCount = 5
	ps2 := s.GetOrCreatePhaseState(PhaseCoding)
	assert.Same(t, ps1, ps2)
	assert.Equal(t, 5, ps2.RunCount)
}

func TestTasksByStatusStableOrder(t *testing.T) {
	s := NewPipelineState()
	s.Tasks["T3"] = &Task{ID: "T3", Status: TaskNew}
	s.Tasks["T1"] = &Task{ID: "T1", Status: TaskNew}
	s.Tasks["T2"] = &Task{ID: "T2", Status: TaskNew}
	s.Tasks["T9"] = &Task{ID: "T9", Status: TaskCompleted}

	got := s.TasksByStatus(TaskNew)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"T1", "T2", "T3"}, []string{got[0].ID, got[1].ID, got[2].ID})
}

func TestObjectiveNeedsZeroTaskCompletion(t *testing.T) {
	o := &Objective{Completion: 80, Status: ObjectiveActive}
	assert.True(t, o.NeedsZeroTaskCompletion())

	o.TaskIDs = []string{"t1"}
	assert.False(t, o.NeedsZeroTaskCompletion())

	o.TaskIDs = nil
	o.Status = ObjectiveCompleted
	assert.False(t, o.NeedsZeroTaskCompletion())
}

func TestTaskIsTerminal(t *testing.T) {
	assert.True(t, (&Task{Status: TaskCompleted}).IsTerminal())
	assert.True(t, (&Task{Status: TaskFailed}).IsTerminal())
	assert.False(t, (&Task{Status: TaskNeedsFixes}).IsTerminal())
}

func TestPriorityRank(t *testing.T) {
	assert.Less(t, PriorityCritical.Rank(), PriorityHigh.Rank())
	assert.Less(t, PriorityHigh.Rank(), PriorityMedium.Rank())
	assert.Less(t, PriorityMedium.Rank(), PriorityLow.Rank())
	assert.Less(t, TaskPriority("unknown").Rank(), 1<<30)
	assert.GreaterOrEqual(t, TaskPriority("unknown").Rank(), PriorityNewTask.Rank())
}
