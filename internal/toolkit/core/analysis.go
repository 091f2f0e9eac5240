package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"autonomy/internal/model"
	"autonomy/internal/toolkit"
)

// RegisterAnalysis installs the analysis-category tools. Per-language
// AST analyzers are external collaborators; these are coarse,
// extension-agnostic text heuristics sufficient to drive the
// refactoring and QA phases' decisions.
func RegisterAnalysis(reg *toolkit.Registry) {
	reg.Register(detectDuplicatesTool())
	reg.Register(compareFilesTool())
	reg.Register(extractFeaturesTool())
	reg.Register(deadCodeTool())
	reg.Register(integrationGapsTool())
	reg.Register(callGraphTool())
	reg.Register(complexityTool())
	reg.Register(architectureConsistencyTool())
}

func detectDuplicatesTool() *toolkit.Tool {
	return &toolkit.Tool{
		Name:        "detect_duplicates",
		Category:    toolkit.CategoryAnalysis,
		Description: "Find files under a directory with identical content hashes.",
		Schema: toolkit.Schema{
			Properties: map[string]toolkit.Property{"dir": {Type: toolkit.TypeString}},
			Required:   []string{"dir"},
		},
		Execute: func(ctx context.Context, state *model.PipelineState, args map[string]interface{}) (*model.ToolResult, error) {
			dir, _ := args["dir"].(string)
			byHash := map[string][]string{}
			_ = filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
				if err != nil || d.IsDir() {
					return nil
				}
				data, err := os.ReadFile(p)
				if err != nil {
					return nil
				}
				sum := sha256.Sum256(data)
				h := hex.EncodeToString(sum[:])
				byHash[h] = append(byHash[h], p)
				return nil
			})
			var groups [][]string
			for _, files := range byHash {
				if len(files) > 1 {
					sort.Strings(files)
					groups = append(groups, files)
					if state != nil {
						state.LearnedPatterns["duplicate:"+files[0]]++
					}
				}
			}
			return &model.ToolResult{Success: true, Details: groups}, nil
		},
	}
}

func compareFilesTool() *toolkit.Tool {
	return &toolkit.Tool{
		Name:        "compare_files",
		Category:    toolkit.CategoryAnalysis,
		Description: "Compare two files and report a similarity ratio based on shared lines.",
		Schema: toolkit.Schema{
			Properties: map[string]toolkit.Property{
				"file_a": {Type: toolkit.TypeString},
				"file_b": {Type: toolkit.TypeString},
			},
			Required: []string{"file_a", "file_b"},
		},
		Execute: func(ctx context.Context, state *model.PipelineState, args map[string]interface{}) (*model.ToolResult, error) {
			a, _ := args["file_a"].(string)
			b, _ := args["file_b"].(string)
			dataA, errA := os.ReadFile(a)
			dataB, errB := os.ReadFile(b)
			if errA != nil || errB != nil {
				return &model.ToolResult{Success: false, Error: "could not read both files"}, nil
			}
			linesA := strings.Split(string(dataA), "\n")
			linesB := strings.Split(string(dataB), "\n")
			setB := map[string]bool{}
			for _, l := range linesB {
				setB[l] = true
			}
			shared := 0
			for _, l := range linesA {
				if setB[l] {
					shared++
				}
			}
			denom := len(linesA) + len(linesB)
			ratio := 0.0
			if denom > 0 {
				ratio = float64(2*shared) / float64(denom)
			}
			return &model.ToolResult{Success: true, Details: ratio}, nil
		},
	}
}

// definitionPattern matches function/class/method definition lines across
// the common source languages the pipeline targets.
var definitionPattern = regexp.MustCompile(`(?m)^\s*(?:func|def|class|function)\s+([A-Za-z_][A-Za-z0-9_]*)`)

func extractFeaturesTool() *toolkit.Tool {
	return &toolkit.Tool{
		Name:        "extract_features",
		Category:    toolkit.CategoryAnalysis,
		Description: "List the functions and classes a file defines.",
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
			var names []string
			for _, m := range definitionPattern.FindAllStringSubmatch(string(data), -1) {
				names = append(names, m[1])
			}
			return &model.ToolResult{Success: true, Details: names}, nil
		},
	}
}

func deadCodeTool() *toolkit.Tool {
	return &toolkit.Tool{
		Name:        "find_dead_code",
		Category:    toolkit.CategoryAnalysis,
		Description: "Find definitions in a directory that no other file references.",
		Schema: toolkit.Schema{
			Properties: map[string]toolkit.Property{"dir": {Type: toolkit.TypeString}},
			Required:   []string{"dir"},
		},
		Execute: func(ctx context.Context, state *model.PipelineState, args map[string]interface{}) (*model.ToolResult, error) {
			dir, _ := args["dir"].(string)
			defs, contents := collectDefinitions(dir)

			var dead []string
			for name, defFile := range defs {
				referenced := false
				for file, content := range contents {
					if file == defFile {
						continue
					}
					if strings.Contains(content, name) {
						referenced = true
						break
					}
				}
				if !referenced {
					dead = append(dead, defFile+":"+name)
				}
			}
			sort.Strings(dead)
			return &model.ToolResult{Success: true, Details: dead}, nil
		},
	}
}

func integrationGapsTool() *toolkit.Tool {
	return &toolkit.Tool{
		Name:        "find_integration_gaps",
		Category:    toolkit.CategoryAnalysis,
		Description: "Find references to names that no file in the directory defines.",
		Schema: toolkit.Schema{
			Properties: map[string]toolkit.Property{
				"dir":   {Type: toolkit.TypeString},
				"names": {Type: toolkit.TypeArray, Items: &toolkit.Property{Type: toolkit.TypeString}},
			},
			Required: []string{"dir", "names"},
		},
		Execute: func(ctx context.Context, state *model.PipelineState, args map[string]interface{}) (*model.ToolResult, error) {
			dir, _ := args["dir"].(string)
			defs, _ := collectDefinitions(dir)

			var missing []string
			if raw, ok := args["names"].([]interface{}); ok {
				for _, v := range raw {
					name, _ := v.(string)
					if name == "" {
						continue
					}
					if _, defined := defs[name]; !defined {
						missing = append(missing, name)
					}
				}
			}
			sort.Strings(missing)
			return &model.ToolResult{Success: true, Details: missing}, nil
		},
	}
}

func callGraphTool() *toolkit.Tool {
	return &toolkit.Tool{
		Name:        "build_call_graph",
		Category:    toolkit.CategoryAnalysis,
		Description: "Map which files reference which definitions across a directory.",
		Schema: toolkit.Schema{
			Properties: map[string]toolkit.Property{"dir": {Type: toolkit.TypeString}},
			Required:   []string{"dir"},
		},
		Execute: func(ctx context.Context, state *model.PipelineState, args map[string]interface{}) (*model.ToolResult, error) {
			dir, _ := args["dir"].(string)
			defs, contents := collectDefinitions(dir)

			graph := map[string][]string{}
			for file, content := range contents {
				for name, defFile := range defs {
					if file == defFile {
						continue
					}
					if strings.Contains(content, name) {
						graph[file] = append(graph[file], defFile+":"+name)
					}
				}
				sort.Strings(graph[file])
			}
			return &model.ToolResult{Success: true, Details: graph}, nil
		},
	}
}

func complexityTool() *toolkit.Tool {
	return &toolkit.Tool{
		Name:        "measure_complexity",
		Category:    toolkit.CategoryAnalysis,
		Description: "Report line count, definition count, and maximum nesting depth for a file.",
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
			content := string(data)
			lines := strings.Split(content, "\n")

			maxDepth, depth := 0, 0
			for _, r := range content {
				switch r {
				case '{', '(', '[':
					depth++
					if depth > maxDepth {
						maxDepth = depth
					}
				case '}', ')', ']':
					if depth > 0 {
						depth--
					}
				}
			}

			return &model.ToolResult{Success: true, Details: map[string]int{
				"lines":       len(lines),
				"definitions": len(definitionPattern.FindAllString(content, -1)),
				"max_depth":   maxDepth,
			}}, nil
		},
	}
}

func architectureConsistencyTool() *toolkit.Tool {
	return &toolkit.Tool{
		Name:        "check_architecture_consistency",
		Category:    toolkit.CategoryAnalysis,
		Description: "Flag files whose names nearly collide with existing files (case or separator variants).",
		Schema: toolkit.Schema{
			Properties: map[string]toolkit.Property{"dir": {Type: toolkit.TypeString}},
			Required:   []string{"dir"},
		},
		Execute: func(ctx context.Context, state *model.PipelineState, args map[string]interface{}) (*model.ToolResult, error) {
			dir, _ := args["dir"].(string)
			byNormalized := map[string][]string{}
			_ = filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
				if err != nil || d.IsDir() {
					return nil
				}
				base := filepath.Base(p)
				norm := strings.NewReplacer("_", "", "-", "").Replace(strings.ToLower(base))
				byNormalized[norm] = append(byNormalized[norm], p)
				return nil
			})
			var conflicts [][]string
			for _, files := range byNormalized {
				if len(files) > 1 {
					sort.Strings(files)
					conflicts = append(conflicts, files)
				}
			}
			return &model.ToolResult{Success: true, Details: conflicts}, nil
		},
	}
}

// collectDefinitions scans a directory and returns every defined name
// mapped to the file defining it, plus the full contents per file for
// reference scanning. On a name defined twice the first file wins; the
// duplicate detector covers that case separately.
func collectDefinitions(dir string) (map[string]string, map[string]string) {
	defs := map[string]string{}
	contents := map[string]string{}
	_ = filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return nil
		}
		content := string(data)
		contents[p] = content
		for _, m := range definitionPattern.FindAllStringSubmatch(content, -1) {
			if _, exists := defs[m[1]]; !exists {
				defs[m[1]] = p
			}
		}
		return nil
	})
	return defs, contents
}
