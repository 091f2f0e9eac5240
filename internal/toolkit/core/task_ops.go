package core

import (
	"context"
	"sort"
	"time"

	"autonomy/internal/model"
	"autonomy/internal/statestore"
	"autonomy/internal/toolkit"
)

// RegisterTaskOps installs create/update/complete task tools, plus the
// refactoring-backlog variants used by the refactoring phase.
func RegisterTaskOps(reg *toolkit.Registry) {
	reg.Register(createTaskTool())
	reg.Register(updateTaskTool())
	reg.Register(completeTaskTool())
	reg.Register(createRefactorTaskTool())
	reg.Register(updateRefactorTaskTool())
	reg.Register(listRefactorTasksTool())
	reg.Register(refactorProgressTool())
}

func createTaskTool() *toolkit.Tool {
	return &toolkit.Tool{
		Name:        "create_task",
		Category:    toolkit.CategoryTaskOps,
		Description: "Propose a new task under an objective.",
		Schema: toolkit.Schema{
			Properties: map[string]toolkit.Property{
				"description":  {Type: toolkit.TypeString},
				"target_file":  {Type: toolkit.TypeString},
				"objective_id": {Type: toolkit.TypeString},
				"priority":     {Type: toolkit.TypeString},
			},
			Required: []string{"description", "objective_id"},
		},
		Execute: func(ctx context.Context, state *model.PipelineState, args map[string]interface{}) (*model.ToolResult, error) {
			desc, _ := args["description"].(string)
			target, _ := args["target_file"].(string)
			objID, _ := args["objective_id"].(string)
			priority := model.PriorityMedium
			if p, ok := args["priority"].(string); ok && p != "" {
				priority = model.TaskPriority(p)
			}

			id := statestore.FingerprintTaskID(desc, target, objID)
			if existing, ok := state.Tasks[id]; ok {
				// Same fingerprint, same task: the second proposal is a no-op.
				return &model.ToolResult{Success: true, Details: existing.ID, HadEffect: false}, nil
			}

			t := &model.Task{
				ID: id, Description: desc, TargetFile: target, ObjectiveID: objID,
				Status: model.TaskNew, Priority: priority, CreatedAt: time.Now(),
			}
			state.Tasks[id] = t
			if obj, ok := state.Objectives[objID]; ok {
				obj.TaskIDs = append(obj.TaskIDs, id)
			}
			return &model.ToolResult{Success: true, Details: id, HadEffect: true}, nil
		},
	}
}

func updateTaskTool() *toolkit.Tool {
	return &toolkit.Tool{
		Name:        "update_task",
		Category:    toolkit.CategoryTaskOps,
		Description: "Update a task's status.",
		Schema: toolkit.Schema{
			Properties: map[string]toolkit.Property{
				"task_id": {Type: toolkit.TypeString},
				"status":  {Type: toolkit.TypeString},
			},
			Required: []string{"task_id", "status"},
		},
		Execute: func(ctx context.Context, state *model.PipelineState, args map[string]interface{}) (*model.ToolResult, error) {
			id, _ := args["task_id"].(string)
			status, _ := args["status"].(string)
			t, ok := state.Tasks[id]
			if !ok {
				return &model.ToolResult{Success: false, Error: "unknown task " + id}, nil
			}
			prev := t.Status
			t.Status = model.TaskStatus(status)
			return &model.ToolResult{Success: true, HadEffect: prev != t.Status}, nil
		},
	}
}

func completeTaskTool() *toolkit.Tool {
	return &toolkit.Tool{
		Name:        "complete_task",
		Category:    toolkit.CategoryTaskOps,
		Description: "Mark a task completed.",
		Schema: toolkit.Schema{
			Properties: map[string]toolkit.Property{"task_id": {Type: toolkit.TypeString}},
			Required:   []string{"task_id"},
		},
		Execute: func(ctx context.Context, state *model.PipelineState, args map[string]interface{}) (*model.ToolResult, error) {
			id, _ := args["task_id"].(string)
			t, ok := state.Tasks[id]
			if !ok {
				return &model.ToolResult{Success: false, Error: "unknown task " + id}, nil
			}
			t.Status = model.TaskCompleted
			t.CompletedAt = time.Now()
			return &model.ToolResult{Success: true, HadEffect: true}, nil
		},
	}
}

func createRefactorTaskTool() *toolkit.Tool {
	return &toolkit.Tool{
		Name:        "create_refactor_task",
		Category:    toolkit.CategoryTaskOps,
		Description: "Add a task to the refactoring backlog.",
		Schema: toolkit.Schema{
			Properties: map[string]toolkit.Property{
				"description": {Type: toolkit.TypeString},
				"target_file": {Type: toolkit.TypeString},
				"priority":    {Type: toolkit.TypeString},
			},
			Required: []string{"description", "target_file"},
		},
		Phases: []model.PhaseName{model.PhaseRefactoring, model.PhaseQA, model.PhasePlanning},
		Execute: func(ctx context.Context, state *model.PipelineState, args map[string]interface{}) (*model.ToolResult, error) {
			desc, _ := args["description"].(string)
			target, _ := args["target_file"].(string)
			priority := model.PriorityLow
			if p, ok := args["priority"].(string); ok && p != "" {
				priority = model.TaskPriority(p)
			}
			id := statestore.FingerprintTaskID(desc, target, "refactoring-backlog")
			if _, exists := state.Tasks[id]; exists {
				return &model.ToolResult{Success: true, Details: id, HadEffect: false}, nil
			}
			state.Tasks[id] = &model.Task{
				ID: id, Description: desc, TargetFile: target, ObjectiveID: "refactoring-backlog",
				Status: model.TaskNew, Priority: priority, CreatedAt: time.Now(),
			}
			return &model.ToolResult{Success: true, Details: id, HadEffect: true}, nil
		},
	}
}

func updateRefactorTaskTool() *toolkit.Tool {
	return &toolkit.Tool{
		Name:        "update_refactor_task",
		Category:    toolkit.CategoryTaskOps,
		Description: "Update a refactoring-backlog task's status or priority.",
		Schema: toolkit.Schema{
			Properties: map[string]toolkit.Property{
				"task_id":  {Type: toolkit.TypeString},
				"status":   {Type: toolkit.TypeString},
				"priority": {Type: toolkit.TypeString},
			},
			Required: []string{"task_id"},
		},
		Phases: []model.PhaseName{model.PhaseRefactoring},
		Execute: func(ctx context.Context, state *model.PipelineState, args map[string]interface{}) (*model.ToolResult, error) {
			id, _ := args["task_id"].(string)
			t, ok := state.Tasks[id]
			if !ok || t.ObjectiveID != "refactoring-backlog" {
				return &model.ToolResult{Success: false, Error: "unknown refactoring task " + id}, nil
			}
			changed := false
			if s, ok := args["status"].(string); ok && s != "" && model.TaskStatus(s) != t.Status {
				t.Status = model.TaskStatus(s)
				if t.Status == model.TaskCompleted {
					t.CompletedAt = time.Now()
				}
				changed = true
			}
			if p, ok := args["priority"].(string); ok && p != "" && model.TaskPriority(p) != t.Priority {
				t.Priority = model.TaskPriority(p)
				changed = true
			}
			return &model.ToolResult{Success: true, HadEffect: changed}, nil
		},
	}
}

func listRefactorTasksTool() *toolkit.Tool {
	return &toolkit.Tool{
		Name:        "list_refactor_tasks",
		Category:    toolkit.CategoryTaskOps,
		Description: "List refactoring-backlog tasks, optionally filtered by status.",
		Schema: toolkit.Schema{
			Properties: map[string]toolkit.Property{
				"status": {Type: toolkit.TypeString},
			},
		},
		Phases: []model.PhaseName{model.PhaseRefactoring, model.PhasePlanning},
		Execute: func(ctx context.Context, state *model.PipelineState, args map[string]interface{}) (*model.ToolResult, error) {
			filter, _ := args["status"].(string)
			var out []*model.Task
			for _, t := range state.Tasks {
				if t.ObjectiveID != "refactoring-backlog" {
					continue
				}
				if filter != "" && t.Status != model.TaskStatus(filter) {
					continue
				}
				out = append(out, t)
			}
			sort.Slice(out, func(i, j int) bool {
				if out[i].Priority.Rank() != out[j].Priority.Rank() {
					return out[i].Priority.Rank() < out[j].Priority.Rank()
				}
				return out[i].ID < out[j].ID
			})
			return &model.ToolResult{Success: true, Details: out}, nil
		},
	}
}

func refactorProgressTool() *toolkit.Tool {
	return &toolkit.Tool{
		Name:        "get_refactor_progress",
		Category:    toolkit.CategoryTaskOps,
		Description: "Report pending/completed counts in the refactoring backlog.",
		Schema:      toolkit.Schema{Properties: map[string]toolkit.Property{}},
		Phases:      []model.PhaseName{model.PhaseRefactoring},
		Execute: func(ctx context.Context, state *model.PipelineState, args map[string]interface{}) (*model.ToolResult, error) {
			pending, completed, blocked := 0, 0, 0
			for _, t := range state.Tasks {
				if t.ObjectiveID != "refactoring-backlog" {
					continue
				}
				switch t.Status {
				case model.TaskCompleted:
					completed++
				case model.TaskBlocked:
					blocked++
				default:
					pending++
				}
			}
			return &model.ToolResult{Success: true, Details: map[string]int{
				"pending": pending, "completed": completed, "blocked": blocked,
			}}, nil
		},
	}
}
