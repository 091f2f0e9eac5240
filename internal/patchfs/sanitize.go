// Package patchfs implements the Patch/FS Layer: entity
// sanitation, language-aware syntax checks, atomic writes, and the patch
// archive of unified diffs.
package patchfs

import (
	"html"
	"regexp"
	"strings"
)

// aggressiveEntityPattern catches the residual encodings a strict
// html.UnescapeString pass leaves behind: numeric-entity quotes and
// escaped-quote literals introduced by a buggy upstream JSON re-encode.
var aggressiveEntityPattern = regexp.MustCompile(`&#0*34;|&quot;|\\"`)

// SanitizeEntities decodes HTML-entity-encoded characters that a buggy
// JSON transport may have introduced (`&quot;`, `&#34;`, literal `\"`
// sequences), via a strict-then-aggressive two-pass algorithm.
// The two passes repeat until the output stops changing, so the result
// is idempotent: running twice yields the same output as running once.
func SanitizeEntities(payload string) string {
	s := payload
	for {
		next := aggressivePass(html.UnescapeString(s))
		if next == s {
			return s
		}
		s = next
	}
}

// aggressivePass rewrites residual entity-ish sequences the strict pass
// leaves alone. It is intentionally narrow: it never touches quotes that
// are already bare, so it is safe to re-run.
func aggressivePass(s string) string {
	return aggressiveEntityPattern.ReplaceAllStringFunc(s, func(match string) string {
		switch {
		case strings.HasPrefix(match, "&#"):
			return `"`
		case match == "&quot;":
			return `"`
		case match == `\"`:
			return `"`
		default:
			return match
		}
	})
}
