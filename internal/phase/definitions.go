package phase

import (
	"fmt"

	"autonomy/internal/model"
	"autonomy/internal/modelclient"
	"autonomy/internal/toolkit"
)

// BuildDefinitions returns the phase-vertex table. System prompts are
// deliberately terse: the exact prompt text is an external
// collaborator, so these are placeholders a deployer replaces.
func BuildDefinitions() map[model.PhaseName]*Definition {
	defs := map[model.PhaseName]*Definition{
		model.PhasePlanning: {
			Name: model.PhasePlanning, SystemPrompt: "You are the planning specialist.",
			ToolCategory: toolkit.CategoryTaskOps,
			Handler: func(ctx Context) (string, modelclient.SpecialistRole) {
				return "Propose tasks for the current objective, honoring naming conventions.", modelclient.RoleArbiter
			},
		},
		model.PhaseCoding: {
			Name: model.PhaseCoding, SystemPrompt: "You are the coding specialist.",
			ToolCategory: toolkit.CategoryFileOps,
			Handler: func(ctx Context) (string, modelclient.SpecialistRole) {
				if ctx.Task == nil {
					return "No task assigned.", modelclient.RoleSpecialistCoding
				}
				return fmt.Sprintf("Implement task %s: %s (target %s). Check for similar existing files first.",
					ctx.Task.ID, ctx.Task.Description, ctx.Task.TargetFile), modelclient.RoleSpecialistCoding
			},
		},
		model.PhaseQA: {
			Name: model.PhaseQA, SystemPrompt: "You are the QA specialist.",
			ToolCategory: toolkit.CategoryReporting,
			Handler: func(ctx Context) (string, modelclient.SpecialistRole) {
				if ctx.Task == nil {
					return "Review recently completed files.", modelclient.RoleSpecialistAnalysis
				}
				return fmt.Sprintf("Review %s for task %s; approve or report an issue.", ctx.Task.TargetFile, ctx.Task.ID), modelclient.RoleSpecialistAnalysis
			},
		},
		model.PhaseDebugging: {
			Name: model.PhaseDebugging, SystemPrompt: "You are the debugging specialist. You receive concrete bug reports only, never architectural issues.",
			ToolCategory: toolkit.CategoryFileOps,
			Handler: func(ctx Context) (string, modelclient.SpecialistRole) {
				if ctx.Task == nil {
					return "No bug assigned.", modelclient.RoleSpecialistCoding
				}
				return fmt.Sprintf("Fix bug in %s: %s", ctx.Task.TargetFile, ctx.Task.LastError), modelclient.RoleSpecialistCoding
			},
		},
		model.PhaseInvestigation: {
			Name: model.PhaseInvestigation, SystemPrompt: "You are the investigation specialist.",
			ToolCategory: toolkit.CategoryAnalysis,
			Handler: func(ctx Context) (string, modelclient.SpecialistRole) {
				return "Investigate the root cause before handing off to debugging or coding.", modelclient.RoleSpecialistReasoning
			},
		},
		model.PhaseApplicationTroubleshoot: {
			Name: model.PhaseApplicationTroubleshoot, SystemPrompt: "You troubleshoot the running program under test.",
			ToolCategory: toolkit.CategoryAnalysis,
			Handler: func(ctx Context) (string, modelclient.SpecialistRole) {
				return "Correlate the supervised process's logs with the failing task.", modelclient.RoleSpecialistAnalysis
			},
		},
		model.PhaseDocumentation: {
			Name: model.PhaseDocumentation, SystemPrompt: "You keep documentation in sync with the codebase.",
			ToolCategory: toolkit.CategoryFileOps,
			Handler: func(ctx Context) (string, modelclient.SpecialistRole) {
				return "Update documentation to reflect recently completed tasks.", modelclient.RoleSpecialistReasoning
			},
		},
		model.PhaseProjectPlanning: {
			Name: model.PhaseProjectPlanning, SystemPrompt: "You plan the overall project lifecycle.",
			ToolCategory: toolkit.CategoryTaskOps,
			Handler: func(ctx Context) (string, modelclient.SpecialistRole) {
				return "Assess overall project completion and propose the next objective.", modelclient.RoleArbiter
			},
		},
		model.PhaseRefactoring: {
			Name: model.PhaseRefactoring, SystemPrompt: "You maintain the refactoring backlog.",
			ToolCategory: toolkit.CategoryTaskOps,
			Handler: func(ctx Context) (string, modelclient.SpecialistRole) {
				return "Work the refactoring backlog by priority and dependency.", modelclient.RoleSpecialistReasoning
			},
		},
		model.PhasePromptDesign: {
			Name: model.PhasePromptDesign, SystemPrompt: "You design specialist prompts. (meta-phase, disabled by default)",
			ToolCategory: toolkit.CategoryMeta,
			Handler: func(ctx Context) (string, modelclient.SpecialistRole) {
				return "Propose a prompt revision.", modelclient.RoleArbiter
			},
		},
		model.PhasePromptImprovement: {
			Name: model.PhasePromptImprovement, SystemPrompt: "You improve existing prompts. (meta-phase, disabled by default)",
			ToolCategory: toolkit.CategoryMeta,
			Handler: func(ctx Context) (string, modelclient.SpecialistRole) {
				return "Evaluate and refine the proposed prompt.", modelclient.RoleArbiter
			},
		},
		model.PhaseRoleDesign: {
			Name: model.PhaseRoleDesign, SystemPrompt: "You design specialist roles. (meta-phase, disabled by default)",
			ToolCategory: toolkit.CategoryMeta,
			Handler: func(ctx Context) (string, modelclient.SpecialistRole) {
				return "Propose a specialist role.", modelclient.RoleArbiter
			},
		},
		model.PhaseRoleImprovement: {
			Name: model.PhaseRoleImprovement, SystemPrompt: "You improve existing roles. (meta-phase, disabled by default)",
			ToolCategory: toolkit.CategoryMeta,
			Handler: func(ctx Context) (string, modelclient.SpecialistRole) {
				return "Evaluate and refine the proposed role.", modelclient.RoleArbiter
			},
		},
		model.PhaseToolDesign: {
			Name: model.PhaseToolDesign, SystemPrompt: "You design new tools. (meta-phase, disabled by default)",
			ToolCategory: toolkit.CategoryMeta,
			Handler: func(ctx Context) (string, modelclient.SpecialistRole) {
				return "Propose a new tool.", modelclient.RoleArbiter
			},
		},
		model.PhaseToolEvaluation: {
			Name: model.PhaseToolEvaluation, SystemPrompt: "You evaluate proposed tools. (meta-phase, disabled by default)",
			ToolCategory: toolkit.CategoryMeta,
			Handler: func(ctx Context) (string, modelclient.SpecialistRole) {
				return "Evaluate the proposed tool.", modelclient.RoleArbiter
			},
		},
	}
	return defs
}
