package patchfs

import (
	"path/filepath"
	"strings"
)

// SyntaxChecker validates a file's textual content for the language
// implied by its extension. The real per-language analyzers (AST
// validators, etc.) are external collaborators; this is a
// narrow, dependency-free heuristic sufficient to flag the common
// "obviously broken" case so the file can still be written and handed
// to a debugging phase.
type SyntaxChecker func(content string) error

var checkers = map[string]SyntaxChecker{
	".go":   checkBalancedDelimiters,
	".py":   checkPythonHeuristic,
	".json": checkBalancedDelimiters,
	".js":   checkBalancedDelimiters,
	".ts":   checkBalancedDelimiters,
}

// ErrSyntax reports a rejected payload; callers still write the file.
type ErrSyntax struct {
	Reason string
}

func (e *ErrSyntax) Error() string { return "syntax check failed: " + e.Reason }

// CheckSyntax dispatches to the checker for path's extension. Unknown
// extensions are accepted (no checker means no rejection).
func CheckSyntax(path, content string) error {
	ext := strings.ToLower(filepath.Ext(path))
	checker, ok := checkers[ext]
	if !ok {
		return nil
	}
	return checker(content)
}

func checkBalancedDelimiters(content string) error {
	pairs := map[rune]rune{')': '(', ']': '[', '}': '{'}
	var stack []rune
	for _, r := range content {
		switch r {
		case '(', '[', '{':
			stack = append(stack, r)
		case ')', ']', '}':
			if len(stack) == 0 || stack[len(stack)-1] != pairs[r] {
				return &ErrSyntax{Reason: "unbalanced delimiters"}
			}
			stack = stack[:len(stack)-1]
		}
	}
	if len(stack) != 0 {
		return &ErrSyntax{Reason: "unclosed delimiters"}
	}
	return nil
}

func checkPythonHeuristic(content string) error {
	if err := checkBalancedDelimiters(content); err != nil {
		return err
	}
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimRight(line, " \t")
		if strings.HasSuffix(trimmed, ":") {
			continue
		}
		// def/class/if/for/while lines ending in "(" or missing a colon
		// before a comment are the most common truncated-payload defect.
		head := strings.TrimSpace(trimmed)
		for _, kw := range []string{"def ", "class ", "if ", "for ", "while ", "elif ", "else", "try", "except"} {
			if strings.HasPrefix(head, kw) && strings.Contains(head, "(") && !strings.Contains(head, ")") {
				return &ErrSyntax{Reason: "unclosed statement: " + head}
			}
		}
	}
	return nil
}
