package core

import (
	"context"

	"autonomy/internal/model"
	"autonomy/internal/toolkit"
)

// RegisterMeta installs the meta-category tools: propose/evaluate
// tools, prompts, roles. These are only reachable from the meta phases
// (prompt_design, role_design, tool_design and their *_improvement /
// *_evaluation counterparts), which are disabled by default.
// Registering the tools is independent of whether the phases that call
// them are enabled.
func RegisterMeta(reg *toolkit.Registry) {
	reg.Register(proposeToolTool())
	reg.Register(evaluateToolTool())
	reg.Register(proposePromptTool())
	reg.Register(proposeRoleTool())
}

func proposeToolTool() *toolkit.Tool {
	return &toolkit.Tool{
		Name:        "propose_tool",
		Category:    toolkit.CategoryMeta,
		Description: "Propose a new tool definition for later evaluation.",
		Schema: toolkit.Schema{
			Properties: map[string]toolkit.Property{
				"name":        {Type: toolkit.TypeString},
				"description": {Type: toolkit.TypeString},
			},
			Required: []string{"name", "description"},
		},
		Phases: []model.PhaseName{model.PhaseToolDesign},
		Execute: func(ctx context.Context, state *model.PipelineState, args map[string]interface{}) (*model.ToolResult, error) {
			return &model.ToolResult{Success: true, Details: args, HadEffect: true}, nil
		},
	}
}

func evaluateToolTool() *toolkit.Tool {
	return &toolkit.Tool{
		Name:        "evaluate_tool",
		Category:    toolkit.CategoryMeta,
		Description: "Record an evaluation verdict for a proposed tool.",
		Schema: toolkit.Schema{
			Properties: map[string]toolkit.Property{
				"name":   {Type: toolkit.TypeString},
				"verdict": {Type: toolkit.TypeString},
			},
			Required: []string{"name", "verdict"},
		},
		Phases: []model.PhaseName{model.PhaseToolEvaluation},
		Execute: func(ctx context.Context, state *model.PipelineState, args map[string]interface{}) (*model.ToolResult, error) {
			return &model.ToolResult{Success: true, Details: args, HadEffect: true}, nil
		},
	}
}

func proposePromptTool() *toolkit.Tool {
	return &toolkit.Tool{
		Name:        "propose_prompt",
		Category:    toolkit.CategoryMeta,
		Description: "Propose a revised prompt for a phase or specialist.",
		Schema: toolkit.Schema{
			Properties: map[string]toolkit.Property{
				"target": {Type: toolkit.TypeString},
				"prompt": {Type: toolkit.TypeString},
			},
			Required: []string{"target", "prompt"},
		},
		Phases: []model.PhaseName{model.PhasePromptDesign, model.PhasePromptImprovement},
		Execute: func(ctx context.Context, state *model.PipelineState, args map[string]interface{}) (*model.ToolResult, error) {
			return &model.ToolResult{Success: true, Details: args, HadEffect: true}, nil
		},
	}
}

func proposeRoleTool() *toolkit.Tool {
	return &toolkit.Tool{
		Name:        "propose_role",
		Category:    toolkit.CategoryMeta,
		Description: "Propose a specialist role configuration.",
		Schema: toolkit.Schema{
			Properties: map[string]toolkit.Property{
				"role":        {Type: toolkit.TypeString},
				"description": {Type: toolkit.TypeString},
			},
			Required: []string{"role", "description"},
		},
		Phases: []model.PhaseName{model.PhaseRoleDesign, model.PhaseRoleImprovement},
		Execute: func(ctx context.Context, state *model.PipelineState, args map[string]interface{}) (*model.ToolResult, error) {
			return &model.ToolResult{Success: true, Details: args, HadEffect: true}, nil
		},
	}
}
