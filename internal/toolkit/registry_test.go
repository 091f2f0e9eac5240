package toolkit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autonomy/internal/model"
)

func newTestTool(name string) *Tool {
	return &Tool{
		Name:     name,
		Category: CategoryTaskOps,
		Schema:   Schema{Properties: map[string]Property{"x": {Type: TypeString}}, Required: []string{"x"}},
		Execute: func(ctx context.Context, state *model.PipelineState, args map[string]interface{}) (*model.ToolResult, error) {
			return &model.ToolResult{Success: true, HadEffect: true}, nil
		},
	}
}

func TestExecuteUnknownToolFailsGracefully(t *testing.T) {
	reg := NewRegistry()
	state := model.NewPipelineState()

	result := reg.Execute(context.Background(), model.ToolCall{Name: "does_not_exist"}, state)
	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "unknown tool")
}

func TestExecuteMissingRequiredArgFails(t *testing.T) {
	reg := NewRegistry()
	reg.Register(newTestTool("t1"))
	state := model.NewPipelineState()

	result := reg.Execute(context.Background(), model.ToolCall{Name: "t1", Args: map[string]interface{}{}}, state)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "missing required")
}

func TestExecuteEmptyNameInference(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&Tool{
		Name:     "approve_code",
		Category: CategoryReporting,
		Schema:   Schema{Properties: map[string]Property{"filepath": {Type: TypeString}}},
		Execute: func(ctx context.Context, state *model.PipelineState, args map[string]interface{}) (*model.ToolResult, error) {
			return &model.ToolResult{Success: true}, nil
		},
	})
	state := model.NewPipelineState()

	result := reg.Execute(context.Background(), model.ToolCall{Name: "", Args: map[string]interface{}{"filepath": "src/ui.py"}}, state)
	assert.True(t, result.Success)
	assert.Equal(t, "approve_code", result.Tool)
}

func TestToolsForPhaseRespectsRestriction(t *testing.T) {
	reg := NewRegistry()
	restricted := newTestTool("only_refactoring")
	restricted.Phases = []model.PhaseName{model.PhaseRefactoring}
	reg.Register(restricted)
	reg.Register(newTestTool("everyone"))

	codingTools := reg.ToolsForPhase(model.PhaseCoding)
	names := map[string]bool{}
	for _, t := range codingTools {
		names[t.Name] = true
	}
	assert.True(t, names["everyone"])
	assert.False(t, names["only_refactoring"])
}
