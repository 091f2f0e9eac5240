package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"autonomy/internal/model"
	"autonomy/internal/toolkit"
)

// RegisterReporting installs the reporting-category tools: issue
// reports, developer-review requests, code approval, QA findings, and
// the refactoring hand-off report. reportsDir is the project's reports/
// directory.
func RegisterReporting(reg *toolkit.Registry, reportsDir string) {
	reg.Register(createIssueReportTool(reportsDir))
	reg.Register(requestDeveloperReviewTool())
	reg.Register(approveCodeTool())
	reg.Register(reportQAIssueTool())
	reg.Register(refactoringReportTool(reportsDir))
}

func createIssueReportTool(reportsDir string) *toolkit.Tool {
	return &toolkit.Tool{
		Name:        "create_issue_report",
		Category:    toolkit.CategoryReporting,
		Description: "Write a human-readable ISSUE_*.md report.",
		Schema: toolkit.Schema{
			Properties: map[string]toolkit.Property{
				"issue_id": {Type: toolkit.TypeString},
				"title":    {Type: toolkit.TypeString},
				"body":     {Type: toolkit.TypeString},
			},
			Required: []string{"issue_id", "title", "body"},
		},
		Execute: func(ctx context.Context, state *model.PipelineState, args map[string]interface{}) (*model.ToolResult, error) {
			issueID, _ := args["issue_id"].(string)
			title, _ := args["title"].(string)
			body, _ := args["body"].(string)

			if err := os.MkdirAll(reportsDir, 0o755); err != nil {
				return &model.ToolResult{Success: false, Error: err.Error()}, nil
			}
			path := filepath.Join(reportsDir, fmt.Sprintf("ISSUE_%s.md", issueID))
			content := fmt.Sprintf("# %s\n\n%s\n", title, body)
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				return &model.ToolResult{Success: false, Error: err.Error()}, nil
			}
			return &model.ToolResult{Success: true, Details: path, HadEffect: true}, nil
		},
	}
}

func requestDeveloperReviewTool() *toolkit.Tool {
	return &toolkit.Tool{
		Name:        "request_developer_review",
		Category:    toolkit.CategoryReporting,
		Description: "Mark a task BLOCKED pending human review.",
		Schema: toolkit.Schema{
			Properties: map[string]toolkit.Property{
				"task_id": {Type: toolkit.TypeString},
				"reason":  {Type: toolkit.TypeString},
			},
			Required: []string{"task_id", "reason"},
		},
		Execute: func(ctx context.Context, state *model.PipelineState, args map[string]interface{}) (*model.ToolResult, error) {
			id, _ := args["task_id"].(string)
			reason, _ := args["reason"].(string)
			t, ok := state.Tasks[id]
			if !ok {
				return &model.ToolResult{Success: false, Error: "unknown task " + id}, nil
			}
			t.Status = model.TaskBlocked
			t.LastError = reason
			return &model.ToolResult{Success: true, HadEffect: true}, nil
		},
	}
}

func approveCodeTool() *toolkit.Tool {
	return &toolkit.Tool{
		Name:        "approve_code",
		Category:    toolkit.CategoryReporting,
		Description: "Approve a file as passing QA with no issues found.",
		Schema: toolkit.Schema{
			Properties: map[string]toolkit.Property{"filepath": {Type: toolkit.TypeString}},
			Required:   []string{"filepath"},
		},
		Execute: func(ctx context.Context, state *model.PipelineState, args map[string]interface{}) (*model.ToolResult, error) {
			path, _ := args["filepath"].(string)
			for _, t := range state.Tasks {
				if t.TargetFile == path && t.Status == model.TaskQAPending {
					t.Status = model.TaskCompleted
					t.CompletedAt = time.Now()
				}
			}
			return &model.ToolResult{Success: true, HadEffect: true}, nil
		},
	}
}

func reportQAIssueTool() *toolkit.Tool {
	return &toolkit.Tool{
		Name:        "report_qa_issue",
		Category:    toolkit.CategoryReporting,
		Description: "Report a QA-surfaced bug or architectural issue.",
		Schema: toolkit.Schema{
			Properties: map[string]toolkit.Property{
				"task_id": {Type: toolkit.TypeString},
				"kind":    {Type: toolkit.TypeString, Description: "bug | architectural"},
				"issue":   {Type: toolkit.TypeString},
			},
			Required: []string{"task_id", "kind", "issue"},
		},
		Phases: []model.PhaseName{model.PhaseQA},
		Execute: func(ctx context.Context, state *model.PipelineState, args map[string]interface{}) (*model.ToolResult, error) {
			id, _ := args["task_id"].(string)
			kind, _ := args["kind"].(string)
			t, ok := state.Tasks[id]
			if !ok {
				return &model.ToolResult{Success: false, Error: "unknown task " + id}, nil
			}
			// Bugs route to debugging via NEEDS_FIXES; architectural
			// issues become pending tasks for planning/refactoring.
			if kind == "architectural" {
				t.Status = model.TaskNew
			} else {
				t.Status = model.TaskNeedsFixes
			}
			issue, _ := args["issue"].(string)
			t.LastError = issue
			return &model.ToolResult{Success: true, HadEffect: true}, nil
		},
	}
}

func refactoringReportTool(reportsDir string) *toolkit.Tool {
	return &toolkit.Tool{
		Name:        "create_refactoring_report",
		Category:    toolkit.CategoryReporting,
		Description: "Write REFACTORING_REPORT.md summarizing the backlog and any blocked tasks, for the hand-off when only developer-review work remains.",
		Schema: toolkit.Schema{
			Properties: map[string]toolkit.Property{
				"summary": {Type: toolkit.TypeString},
			},
			Required: []string{"summary"},
		},
		Phases: []model.PhaseName{model.PhaseRefactoring},
		Execute: func(ctx context.Context, state *model.PipelineState, args map[string]interface{}) (*model.ToolResult, error) {
			summary, _ := args["summary"].(string)

			var blocked, pending, completed []*model.Task
			for _, t := range state.Tasks {
				if t.ObjectiveID != "refactoring-backlog" {
					continue
				}
				switch t.Status {
				case model.TaskBlocked:
					blocked = append(blocked, t)
				case model.TaskCompleted:
					completed = append(completed, t)
				default:
					pending = append(pending, t)
				}
			}

			var b strings.Builder
			fmt.Fprintf(&b, "# Refactoring report\n\n%s\n\n", summary)
			fmt.Fprintf(&b, "Generated: %s\n\n", time.Now().UTC().Format(time.RFC3339))
			fmt.Fprintf(&b, "Completed: %d, pending: %d, blocked: %d\n", len(completed), len(pending), len(blocked))
			if len(blocked) > 0 {
				b.WriteString("\n## Blocked, needs developer review\n\n")
				for _, t := range blocked {
					fmt.Fprintf(&b, "- %s (%s): %s\n", t.ID, t.TargetFile, t.LastError)
				}
			}

			if err := os.MkdirAll(reportsDir, 0o755); err != nil {
				return &model.ToolResult{Success: false, Error: err.Error()}, nil
			}
			path := filepath.Join(reportsDir, "REFACTORING_REPORT.md")
			if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
				return &model.ToolResult{Success: false, Error: err.Error()}, nil
			}
			return &model.ToolResult{Success: true, Details: path, HadEffect: true}, nil
		},
	}
}
