// Package core provides the baseline tool set: file operations, task
// operations, analysis, validation, reporting, and the meta tools. Every
// tool that writes source to disk routes the payload through the patchfs
// layer for sanitation and atomic write.
package core

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"autonomy/internal/model"
	"autonomy/internal/patchfs"
	"autonomy/internal/statestore"
	"autonomy/internal/toolkit"
)

// Register installs the file-ops tool set into reg. layer is the patchfs
// layer rooted at the project directory.
func Register(reg *toolkit.Registry, layer *patchfs.Layer) {
	reg.Register(readFileTool())
	reg.Register(createFileTool(layer))
	reg.Register(modifyFileTool(layer))
	reg.Register(deleteFileTool())
	reg.Register(listFilesTool())
	reg.Register(appendFileTool(layer))
}

func readFileTool() *toolkit.Tool {
	return &toolkit.Tool{
		Name:        "read_file",
		Category:    toolkit.CategoryFileOps,
		Description: "Read the contents of a file.",
		Schema: toolkit.Schema{
			Properties: map[string]toolkit.Property{
				"filepath": {Type: toolkit.TypeString, Description: "path to the file"},
			},
			Required: []string{"filepath"},
		},
		Execute: func(ctx context.Context, state *model.PipelineState, args map[string]interface{}) (*model.ToolResult, error) {
			path, _ := args["filepath"].(string)
			data, err := os.ReadFile(path)
			if err != nil {
				return &model.ToolResult{Success: false, Error: err.Error()}, nil
			}
			return &model.ToolResult{Success: true, Details: string(data)}, nil
		},
	}
}

func createFileTool(layer *patchfs.Layer) *toolkit.Tool {
	return &toolkit.Tool{
		Name:        "create_file",
		Category:    toolkit.CategoryFileOps,
		Description: "Create a new file with the given content.",
		Schema: toolkit.Schema{
			Properties: map[string]toolkit.Property{
				"filepath": {Type: toolkit.TypeString},
				"content":  {Type: toolkit.TypeString},
			},
			Required: []string{"filepath", "content"},
		},
		Execute: writeExecute(layer),
	}
}

func modifyFileTool(layer *patchfs.Layer) *toolkit.Tool {
	return &toolkit.Tool{
		Name:        "modify_file",
		Category:    toolkit.CategoryFileOps,
		Description: "Overwrite an existing file's content.",
		Schema: toolkit.Schema{
			Properties: map[string]toolkit.Property{
				"filepath": {Type: toolkit.TypeString},
				"content":  {Type: toolkit.TypeString},
			},
			Required: []string{"filepath", "content"},
		},
		Execute: writeExecute(layer),
	}
}

func appendFileTool(layer *patchfs.Layer) *toolkit.Tool {
	return &toolkit.Tool{
		Name:        "append_file",
		Category:    toolkit.CategoryFileOps,
		Description: "Append content to an existing file.",
		Schema: toolkit.Schema{
			Properties: map[string]toolkit.Property{
				"filepath": {Type: toolkit.TypeString},
				"content":  {Type: toolkit.TypeString},
			},
			Required: []string{"filepath", "content"},
		},
		Execute: func(ctx context.Context, state *model.PipelineState, args map[string]interface{}) (*model.ToolResult, error) {
			path, _ := args["filepath"].(string)
			content, _ := args["content"].(string)
			existing, _ := os.ReadFile(path)
			result, err := layer.WriteFile(path, string(existing)+content)
			if err != nil {
				return &model.ToolResult{Success: false, Error: err.Error()}, nil
			}
			if result.NeedsDebugging {
				flagFileForDebugging(state, path, result.SyntaxError)
			}
			return &model.ToolResult{
				Success: result.SyntaxError == nil, FileSaved: result.Saved,
				NeedsDebugging: result.NeedsDebugging, HadEffect: true,
			}, nil
		},
	}
}

func writeExecute(layer *patchfs.Layer) toolkit.ExecuteFunc {
	return func(ctx context.Context, state *model.PipelineState, args map[string]interface{}) (*model.ToolResult, error) {
		path, _ := args["filepath"].(string)
		content, _ := args["content"].(string)
		result, err := layer.WriteFile(path, content)
		if err != nil {
			return &model.ToolResult{Success: false, Error: err.Error()}, nil
		}
		// A syntax-rejected payload is written anyway so debugging can see
		// and fix it; the tool call reports the rejection without crashing.
		if result.NeedsDebugging {
			flagFileForDebugging(state, path, result.SyntaxError)
		}
		return &model.ToolResult{
			Success:        result.SyntaxError == nil,
			FileSaved:      result.Saved,
			NeedsDebugging: result.NeedsDebugging,
			HadEffect:      true,
		}, nil
	}
}

// flagFileForDebugging routes a syntax-rejected file to the debugging
// phase: the task targeting that file (or a new one, if none exists)
// moves to NEEDS_FIXES.
func flagFileForDebugging(state *model.PipelineState, path string, syntaxErr error) {
	if state == nil {
		return
	}
	reason := "syntax check failed"
	if syntaxErr != nil {
		reason = syntaxErr.Error()
	}

	for _, t := range state.Tasks {
		if t.TargetFile == path && !t.IsTerminal() {
			t.Status = model.TaskNeedsFixes
			t.LastError = reason
			return
		}
	}

	id := statestore.FingerprintTaskID("fix syntax errors in "+path, path, "")
	if t, ok := state.Tasks[id]; ok {
		t.Status = model.TaskNeedsFixes
		t.LastError = reason
		return
	}
	state.Tasks[id] = &model.Task{
		ID:          id,
		Description: "fix syntax errors in " + path,
		TargetFile:  path,
		Status:      model.TaskNeedsFixes,
		Priority:    model.PriorityHigh,
		LastError:   reason,
		CreatedAt:   time.Now(),
	}
}

func deleteFileTool() *toolkit.Tool {
	return &toolkit.Tool{
		Name:        "delete_file",
		Category:    toolkit.CategoryFileOps,
		Description: "Delete a file.",
		Schema: toolkit.Schema{
			Properties: map[string]toolkit.Property{"filepath": {Type: toolkit.TypeString}},
			Required:   []string{"filepath"},
		},
		Execute: func(ctx context.Context, state *model.PipelineState, args map[string]interface{}) (*model.ToolResult, error) {
			path, _ := args["filepath"].(string)
			if err := os.Remove(path); err != nil {
				return &model.ToolResult{Success: false, Error: err.Error()}, nil
			}
			return &model.ToolResult{Success: true, HadEffect: true}, nil
		},
	}
}

func listFilesTool() *toolkit.Tool {
	return &toolkit.Tool{
		Name:        "list_files",
		Category:    toolkit.CategoryFileOps,
		Description: "List files under a directory.",
		Schema: toolkit.Schema{
			Properties: map[string]toolkit.Property{"dir": {Type: toolkit.TypeString}},
			Required:   []string{"dir"},
		},
		Execute: func(ctx context.Context, state *model.PipelineState, args map[string]interface{}) (*model.ToolResult, error) {
			dir, _ := args["dir"].(string)
			var paths []string
			err := filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
				if err != nil {
					return nil
				}
				if !d.IsDir() {
					paths = append(paths, p)
				}
				return nil
			})
			if err != nil {
				return &model.ToolResult{Success: false, Error: err.Error()}, nil
			}
			return &model.ToolResult{Success: true, Details: paths}, nil
		},
	}
}
