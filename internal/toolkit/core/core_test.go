package core

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autonomy/internal/model"
	"autonomy/internal/patchfs"
	"autonomy/internal/toolkit"
)

func newTestRegistry(t *testing.T) (*toolkit.Registry, string) {
	t.Helper()
	root := t.TempDir()
	layer, err := patchfs.NewLayer(root)
	require.NoError(t, err)

	reg := toolkit.NewRegistry()
	Register(reg, layer)
	RegisterTaskOps(reg)
	return reg, root
}

func TestCreateFileWritesToDisk(t *testing.T) {
	reg, root := newTestRegistry(t)
	state := model.NewPipelineState()

	result := reg.Execute(context.Background(), model.ToolCall{
		Name: "create_file",
		Args: map[string]interface{}{"filepath": "x.py", "content": "print('hi')\n"},
	}, state)

	require.True(t, result.Success)
	data, err := os.ReadFile(filepath.Join(root, "x.py"))
	require.NoError(t, err)
	assert.Equal(t, "print('hi')\n", string(data))
}

// A file that fails the syntax check is still written, marked
// needing debugging, and the tool call is NOT a hard failure crash.
func TestCreateFileWithBadSyntaxStillWritesAndFlags(t *testing.T) {
	reg, root := newTestRegistry(t)
	state := model.NewPipelineState()

	result := reg.Execute(context.Background(), model.ToolCall{
		Name: "create_file",
		Args: map[string]interface{}{"filepath": "app.py", "content": "def f( :\n"},
	}, state)

	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.True(t, result.FileSaved)
	assert.True(t, result.NeedsDebugging)

	_, err := os.Stat(filepath.Join(root, "app.py"))
	assert.NoError(t, err, "file must be present on disk despite syntax rejection")
}

func TestDeleteFileRemovesIt(t *testing.T) {
	reg, root := newTestRegistry(t)
	state := model.NewPipelineState()
	path := filepath.Join(root, "gone.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	result := reg.Execute(context.Background(), model.ToolCall{
		Name: "delete_file",
		Args: map[string]interface{}{"filepath": path},
	}, state)

	assert.True(t, result.Success)
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestCreateTaskIsIdempotent(t *testing.T) {
	reg, _ := newTestRegistry(t)
	state := model.NewPipelineState()
	state.Objectives["obj1"] = &model.Objective{ID: "obj1"}

	args := map[string]interface{}{"description": "add tests", "target_file": "x.py", "objective_id": "obj1"}
	first := reg.Execute(context.Background(), model.ToolCall{Name: "create_task", Args: args}, state)
	require.True(t, first.Success)
	require.True(t, first.HadEffect)

	second := reg.Execute(context.Background(), model.ToolCall{Name: "create_task", Args: args}, state)
	assert.True(t, second.Success)
	assert.False(t, second.HadEffect, "second identical proposal must be a no-op")
	assert.Equal(t, first.Details, second.Details)
	assert.Len(t, state.Tasks, 1)
	assert.Len(t, state.Objectives["obj1"].TaskIDs, 1)
}

func TestCompleteTaskSetsStatusAndTimestamp(t *testing.T) {
	reg, _ := newTestRegistry(t)
	state := model.NewPipelineState()
	state.Tasks["T1"] = &model.Task{ID: "T1", Status: model.TaskQAPending}

	result := reg.Execute(context.Background(), model.ToolCall{
		Name: "complete_task",
		Args: map[string]interface{}{"task_id": "T1"},
	}, state)

	require.True(t, result.Success)
	assert.Equal(t, model.TaskCompleted, state.Tasks["T1"].Status)
	assert.False(t, state.Tasks["T1"].CompletedAt.IsZero())
}

func TestUpdateTaskUnknownIDFails(t *testing.T) {
	reg, _ := newTestRegistry(t)
	state := model.NewPipelineState()

	result := reg.Execute(context.Background(), model.ToolCall{
		Name: "update_task",
		Args: map[string]interface{}{"task_id": "nope", "status": "COMPLETED"},
	}, state)

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "unknown task")
}

func TestRefactorProgressCounts(t *testing.T) {
	reg, _ := newTestRegistry(t)
	state := model.NewPipelineState()
	state.Tasks["r1"] = &model.Task{ID: "r1", ObjectiveID: "refactoring-backlog", Status: model.TaskCompleted}
	state.Tasks["r2"] = &model.Task{ID: "r2", ObjectiveID: "refactoring-backlog", Status: model.TaskNew}
	state.Tasks["r3"] = &model.Task{ID: "r3", ObjectiveID: "refactoring-backlog", Status: model.TaskBlocked}
	state.Tasks["other"] = &model.Task{ID: "other", ObjectiveID: "obj1", Status: model.TaskCompleted}

	result := reg.Execute(context.Background(), model.ToolCall{Name: "get_refactor_progress"}, state)
	require.True(t, result.Success)
	counts := result.Details.(map[string]int)
	assert.Equal(t, 1, counts["completed"])
	assert.Equal(t, 1, counts["pending"])
	assert.Equal(t, 1, counts["blocked"])
}

// A payload the syntax check rejects still routes the target file to
// debugging: a NEEDS_FIXES task appears for it.
func TestSyntaxFailureCreatesNeedsFixesTask(t *testing.T) {
	reg, _ := newTestRegistry(t)
	state := model.NewPipelineState()

	result := reg.Execute(context.Background(), model.ToolCall{
		Name: "create_file",
		Args: map[string]interface{}{"filepath": "app.py", "content": "def f( :\n"},
	}, state)
	require.True(t, result.NeedsDebugging)

	found := false
	for _, task := range state.Tasks {
		if task.TargetFile == "app.py" && task.Status == model.TaskNeedsFixes {
			found = true
		}
	}
	assert.True(t, found, "expected a NEEDS_FIXES task for the rejected file")
}

func TestExtractFeaturesListsDefinitions(t *testing.T) {
	reg, root := newTestRegistry(t)
	RegisterAnalysis(reg)
	state := model.NewPipelineState()

	path := filepath.Join(root, "feats.py")
	require.NoError(t, os.WriteFile(path, []byte("def alpha():\n    pass\n\nclass Beta:\n    pass\n"), 0o644))

	result := reg.Execute(context.Background(), model.ToolCall{
		Name: "extract_features",
		Args: map[string]interface{}{"filepath": path},
	}, state)
	require.True(t, result.Success)
	assert.Equal(t, []string{"alpha", "Beta"}, result.Details)
}

func TestFindDeadCodeFlagsUnreferencedDefinition(t *testing.T) {
	reg, root := newTestRegistry(t)
	RegisterAnalysis(reg)
	state := model.NewPipelineState()

	require.NoError(t, os.WriteFile(filepath.Join(root, "a.py"), []byte("def used():\n    pass\ndef orphan():\n    pass\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.py"), []byte("used()\n"), 0o644))

	result := reg.Execute(context.Background(), model.ToolCall{
		Name: "find_dead_code",
		Args: map[string]interface{}{"dir": root},
	}, state)
	require.True(t, result.Success)
	dead := result.Details.([]string)
	require.Len(t, dead, 1)
	assert.Contains(t, dead[0], "orphan")
}

func TestMeasureComplexityCounts(t *testing.T) {
	reg, root := newTestRegistry(t)
	RegisterAnalysis(reg)
	state := model.NewPipelineState()

	path := filepath.Join(root, "c.go")
	require.NoError(t, os.WriteFile(path, []byte("func f() {\n\tif true {\n\t\tg(h(1))\n\t}\n}\n"), 0o644))

	result := reg.Execute(context.Background(), model.ToolCall{
		Name: "measure_complexity",
		Args: map[string]interface{}{"filepath": path},
	}, state)
	require.True(t, result.Success)
	counts := result.Details.(map[string]int)
	assert.Equal(t, 1, counts["definitions"])
	assert.GreaterOrEqual(t, counts["max_depth"], 3)
}

func TestValidateMethodExists(t *testing.T) {
	reg, root := newTestRegistry(t)
	RegisterValidation(reg)
	state := model.NewPipelineState()

	path := filepath.Join(root, "m.py")
	require.NoError(t, os.WriteFile(path, []byte("def present(self):\n    pass\n"), 0o644))

	ok := reg.Execute(context.Background(), model.ToolCall{
		Name: "validate_method_exists",
		Args: map[string]interface{}{"filepath": path, "method": "present"},
	}, state)
	assert.True(t, ok.Success)

	missing := reg.Execute(context.Background(), model.ToolCall{
		Name: "validate_method_exists",
		Args: map[string]interface{}{"filepath": path, "method": "absent"},
	}, state)
	assert.False(t, missing.Success)
}

func TestUpdateAndListRefactorTasks(t *testing.T) {
	reg, _ := newTestRegistry(t)
	state := model.NewPipelineState()
	state.Tasks["r1"] = &model.Task{ID: "r1", ObjectiveID: "refactoring-backlog", Status: model.TaskNew, Priority: model.PriorityLow}
	state.Tasks["r2"] = &model.Task{ID: "r2", ObjectiveID: "refactoring-backlog", Status: model.TaskNew, Priority: model.PriorityCritical}
	state.Tasks["x"] = &model.Task{ID: "x", ObjectiveID: "obj1", Status: model.TaskNew}

	result := reg.Execute(context.Background(), model.ToolCall{
		Name: "update_refactor_task",
		Args: map[string]interface{}{"task_id": "r1", "status": "COMPLETED"},
	}, state)
	require.True(t, result.Success)
	require.True(t, result.HadEffect)
	assert.Equal(t, model.TaskCompleted, state.Tasks["r1"].Status)

	listed := reg.Execute(context.Background(), model.ToolCall{
		Name: "list_refactor_tasks",
		Args: map[string]interface{}{"status": "NEW"},
	}, state)
	require.True(t, listed.Success)
	tasks := listed.Details.([]*model.Task)
	require.Len(t, tasks, 1)
	assert.Equal(t, "r2", tasks[0].ID)

	notBacklog := reg.Execute(context.Background(), model.ToolCall{
		Name: "update_refactor_task",
		Args: map[string]interface{}{"task_id": "x", "status": "COMPLETED"},
	}, state)
	assert.False(t, notBacklog.Success)
}

func TestRefactoringReportWritten(t *testing.T) {
	reg, root := newTestRegistry(t)
	reportsDir := filepath.Join(root, "reports")
	RegisterReporting(reg, reportsDir)
	state := model.NewPipelineState()
	state.Tasks["r1"] = &model.Task{ID: "r1", ObjectiveID: "refactoring-backlog", Status: model.TaskBlocked, TargetFile: "a.py", LastError: "needs review"}

	result := reg.Execute(context.Background(), model.ToolCall{
		Name: "create_refactoring_report",
		Args: map[string]interface{}{"summary": "backlog drained, one blocked"},
	}, state)
	require.True(t, result.Success)

	data, err := os.ReadFile(filepath.Join(reportsDir, "REFACTORING_REPORT.md"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "needs review")
	assert.Contains(t, string(data), "backlog drained")
}
