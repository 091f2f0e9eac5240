package toolkit

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"autonomy/internal/logging"
	"autonomy/internal/model"
)

// Registry is a thread-safe catalog of Tools, indexed by category for
// cheap per-phase filtering.
type Registry struct {
	mu         sync.RWMutex
	tools      map[string]*Tool
	byCategory map[Category][]*Tool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:      map[string]*Tool{},
		byCategory: map[Category][]*Tool{},
	}
}

// Register adds a tool, replacing any prior tool of the same name.
func (r *Registry) Register(t *Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.tools[t.Name]; ok {
		r.removeFromCategoryLocked(old)
	}
	r.tools[t.Name] = t
	r.byCategory[t.Category] = append(r.byCategory[t.Category], t)
	logging.ToolsDebug("registered tool %s (category=%s)", t.Name, t.Category)
}

func (r *Registry) removeFromCategoryLocked(t *Tool) {
	list := r.byCategory[t.Category]
	for i, c := range list {
		if c.Name == t.Name {
			r.byCategory[t.Category] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (*Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// GetByCategory returns all tools in a category, name-sorted.
func (r *Registry) GetByCategory(cat Category) []*Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := append([]*Tool(nil), r.byCategory[cat]...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ToolsForPhase returns the subset of tools a phase is permitted to call
//: tools with no Phases restriction are always
// included.
func (r *Registry) ToolsForPhase(phase model.PhaseName) []*Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Tool
	for _, t := range r.tools {
		if len(t.Phases) == 0 {
			out = append(out, t)
			continue
		}
		for _, p := range t.Phases {
			if p == phase {
				out = append(out, t)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// inferToolName recovers from empty-name tool calls: if a model emits
// a tool call with no name, infer a probable one from argument shape so a
// malformed response never silently stalls the phase.
func inferToolName(args map[string]interface{}) string {
	_, hasIssue := args["issue"]
	_, hasIssueID := args["issue_id"]
	_, hasFilepath := args["filepath"]
	_, hasFile := args["file"]
	_, hasContent := args["content"]

	switch {
	case hasIssue || hasIssueID:
		return "report_qa_issue"
	case (hasFilepath || hasFile) && hasContent:
		return "modify_file"
	case hasFilepath || hasFile:
		return "approve_code"
	default:
		return ""
	}
}

// Execute validates arguments against the schema, invokes the handler,
// and returns a structured result. Unknown tools never panic: they
// produce a failed ToolResult.
func (r *Registry) Execute(ctx context.Context, call model.ToolCall, state *model.PipelineState) *model.ToolResult {
	name := call.Name
	if name == "" {
		inferred := inferToolName(call.Args)
		if inferred == "" {
			logging.Get(logging.CategoryTools).Warn("empty tool name, inference failed for args %v", call.Args)
			return &model.ToolResult{Tool: "", Success: false, Error: "empty tool name and inference failed"}
		}
		logging.Get(logging.CategoryTools).Warn("empty tool name inferred as %q from args", inferred)
		name = inferred
	}

	t, ok := r.Get(name)
	if !ok {
		return &model.ToolResult{Tool: name, Success: false, Error: fmt.Sprintf("unknown tool %q", name)}
	}

	if err := r.validateArgs(t, call.Args); err != nil {
		return &model.ToolResult{Tool: name, Success: false, Error: err.Error()}
	}

	result, err := t.Execute(ctx, state, call.Args)
	if err != nil {
		return &model.ToolResult{Tool: name, Success: false, Error: err.Error()}
	}
	result.Tool = name
	return result
}

func (r *Registry) validateArgs(t *Tool, args map[string]interface{}) error {
	for _, req := range t.Schema.Required {
		if _, ok := args[req]; !ok {
			return fmt.Errorf("tool %s: missing required argument %q", t.Name, req)
		}
	}
	return nil
}

var (
	globalMu       sync.Mutex
	globalRegistry *Registry
)

// Global returns the process-wide registry, creating it on first use.
func Global() *Registry {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalRegistry == nil {
		globalRegistry = NewRegistry()
	}
	return globalRegistry
}
