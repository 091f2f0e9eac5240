package core

import (
	"context"
	"fmt"
	"os"
	"regexp"

	"autonomy/internal/model"
	"autonomy/internal/patchfs"
	"autonomy/internal/toolkit"
)

// RegisterValidation installs the validation-category tools: syntax,
// attribute access, dict access, method existence, and tool-handler
// presence checks.
func RegisterValidation(reg *toolkit.Registry) {
	reg.Register(validateSyntaxTool())
	reg.Register(validateAttributeAccessTool())
	reg.Register(validateDictAccessTool())
	reg.Register(validateMethodExistsTool())
	reg.Register(validateToolHandlerTool(reg))
}

func validateSyntaxTool() *toolkit.Tool {
	return &toolkit.Tool{
		Name:        "validate_syntax",
		Category:    toolkit.CategoryValidation,
		Description: "Run the language-aware syntax check against a file already on disk.",
		Schema: toolkit.Schema{
			Properties: map[string]toolkit.Property{"filepath": {Type: toolkit.TypeString}},
			Required:   []string{"filepath"},
		},
		Execute: func(ctx context.Context, state *model.PipelineState, args map[string]interface{}) (*model.ToolResult, error) {
			path, _ := args["filepath"].(string)
			data, err := os.ReadFile(path)
			if err != nil {
				return &model.ToolResult{Success: false, Error: err.Error()}, nil
			}
			if err := patchfs.CheckSyntax(path, string(data)); err != nil {
				return &model.ToolResult{Success: false, Error: err.Error()}, nil
			}
			return &model.ToolResult{Success: true}, nil
		},
	}
}

func validateAttributeAccessTool() *toolkit.Tool {
	return &toolkit.Tool{
		Name:        "validate_attribute_access",
		Category:    toolkit.CategoryValidation,
		Description: "Check that every access of object.attribute in a file has a matching attribute assignment or definition.",
		Schema: toolkit.Schema{
			Properties: map[string]toolkit.Property{
				"filepath":  {Type: toolkit.TypeString},
				"object":    {Type: toolkit.TypeString},
				"attribute": {Type: toolkit.TypeString},
			},
			Required: []string{"filepath", "object", "attribute"},
		},
		Execute: func(ctx context.Context, state *model.PipelineState, args map[string]interface{}) (*model.ToolResult, error) {
			path, _ := args["filepath"].(string)
			object, _ := args["object"].(string)
			attribute, _ := args["attribute"].(string)

			data, err := os.ReadFile(path)
			if err != nil {
				return &model.ToolResult{Success: false, Error: err.Error()}, nil
			}
			content := string(data)

			access := regexp.MustCompile(regexp.QuoteMeta(object) + `\.` + regexp.QuoteMeta(attribute) + `\b`)
			if !access.MatchString(content) {
				return &model.ToolResult{Success: true, Details: "attribute never accessed"}, nil
			}
			// An assignment anywhere (self.attr = ..., obj.attr = ...) or a
			// definition of the same name satisfies the check.
			defined := regexp.MustCompile(`(?m)(\.` + regexp.QuoteMeta(attribute) + `\s*=|(?:def|func)\s+` + regexp.QuoteMeta(attribute) + `\b|\b` + regexp.QuoteMeta(attribute) + `\s*[:=])`)
			if defined.MatchString(content) {
				return &model.ToolResult{Success: true}, nil
			}
			return &model.ToolResult{Success: false,
				Error: fmt.Sprintf("%s.%s is accessed but never assigned or defined in %s", object, attribute, path)}, nil
		},
	}
}

func validateDictAccessTool() *toolkit.Tool {
	return &toolkit.Tool{
		Name:        "validate_dict_access",
		Category:    toolkit.CategoryValidation,
		Description: "Check that a map/dict key accessed in a file also appears in an assignment or literal.",
		Schema: toolkit.Schema{
			Properties: map[string]toolkit.Property{
				"filepath": {Type: toolkit.TypeString},
				"key":      {Type: toolkit.TypeString},
			},
			Required: []string{"filepath", "key"},
		},
		Execute: func(ctx context.Context, state *model.PipelineState, args map[string]interface{}) (*model.ToolResult, error) {
			path, _ := args["filepath"].(string)
			key, _ := args["key"].(string)

			data, err := os.ReadFile(path)
			if err != nil {
				return &model.ToolResult{Success: false, Error: err.Error()}, nil
			}
			content := string(data)

			quoted := `["'` + "`" + `]` + regexp.QuoteMeta(key) + `["'` + "`" + `]`
			access := regexp.MustCompile(`\[` + quoted + `\]`)
			if !access.MatchString(content) {
				return &model.ToolResult{Success: true, Details: "key never accessed"}, nil
			}
			assigned := regexp.MustCompile(`(\[` + quoted + `\]\s*=|` + quoted + `\s*:)`)
			if assigned.MatchString(content) {
				return &model.ToolResult{Success: true}, nil
			}
			return &model.ToolResult{Success: false,
				Error: fmt.Sprintf("key %q is read but never assigned in %s", key, path)}, nil
		},
	}
}

func validateMethodExistsTool() *toolkit.Tool {
	return &toolkit.Tool{
		Name:        "validate_method_exists",
		Category:    toolkit.CategoryValidation,
		Description: "Check that a named method or function is defined in a file.",
		Schema: toolkit.Schema{
			Properties: map[string]toolkit.Property{
				"filepath": {Type: toolkit.TypeString},
				"method":   {Type: toolkit.TypeString},
			},
			Required: []string{"filepath", "method"},
		},
		Execute: func(ctx context.Context, state *model.PipelineState, args map[string]interface{}) (*model.ToolResult, error) {
			path, _ := args["filepath"].(string)
			method, _ := args["method"].(string)

			data, err := os.ReadFile(path)
			if err != nil {
				return &model.ToolResult{Success: false, Error: err.Error()}, nil
			}
			defined := regexp.MustCompile(`(?m)^\s*(?:func|def|function)\s+(?:\([^)]*\)\s*)?` + regexp.QuoteMeta(method) + `\b`)
			if defined.MatchString(string(data)) {
				return &model.ToolResult{Success: true}, nil
			}
			return &model.ToolResult{Success: false,
				Error: fmt.Sprintf("method %s not defined in %s", method, path)}, nil
		},
	}
}

func validateToolHandlerTool(reg *toolkit.Registry) *toolkit.Tool {
	return &toolkit.Tool{
		Name:        "validate_tool_handler",
		Category:    toolkit.CategoryValidation,
		Description: "Check that a named tool resolves in the registry before it is invoked.",
		Schema: toolkit.Schema{
			Properties: map[string]toolkit.Property{"tool_name": {Type: toolkit.TypeString}},
			Required:   []string{"tool_name"},
		},
		Execute: func(ctx context.Context, state *model.PipelineState, args map[string]interface{}) (*model.ToolResult, error) {
			name, _ := args["tool_name"].(string)
			_, ok := reg.Get(name)
			return &model.ToolResult{Success: ok, Details: ok}, nil
		},
	}
}
