package patchfs

import (
	"fmt"
	"os"
	"path/filepath"

	"autonomy/internal/logging"
)

// WriteResult reports the file-write outcome: a file that fails the
// syntax check is still written, and is reported needing debugging.
type WriteResult struct {
	Saved          bool
	NeedsDebugging bool
	SyntaxError    error
	PatchPath      string
}

// Layer bundles sanitation, syntax check, atomic write, and patch
// archival for one project root.
type Layer struct {
	root    string
	archive *Archive
}

// NewLayer opens (creating if absent) the patch archive under
// root/.autonomy/patches.
func NewLayer(root string) (*Layer, error) {
	archive, err := NewArchive(filepath.Join(root, ".autonomy", "patches"))
	if err != nil {
		return nil, err
	}
	return &Layer{root: root, archive: archive}, nil
}

// WriteFile sanitizes the payload, runs the syntax check, atomically
// writes the file (write-to-temp, fsync, rename), and archives a unified
// diff against the prior contents.
func (l *Layer) WriteFile(relPath, payload string) (*WriteResult, error) {
	clean := SanitizeEntities(payload)
	absPath := filepath.Join(l.root, relPath)

	var before string
	if existing, err := os.ReadFile(absPath); err == nil {
		before = string(existing)
	}

	syntaxErr := CheckSyntax(relPath, clean)
	if syntaxErr != nil {
		logging.Get(logging.CategoryPatch).Warn("syntax check failed for %s: %v", relPath, syntaxErr)
	}

	if err := atomicWrite(absPath, clean); err != nil {
		return nil, fmt.Errorf("patchfs: write %s: %w", relPath, err)
	}

	patchPath, err := l.archive.Record(relPath, before, clean)
	if err != nil {
		logging.Get(logging.CategoryPatch).Warn("patch archive failed for %s: %v", relPath, err)
	}

	return &WriteResult{
		Saved:          true,
		NeedsDebugging: syntaxErr != nil,
		SyntaxError:    syntaxErr,
		PatchPath:      patchPath,
	}, nil
}

// atomicWrite writes data to path via a temp file in the same directory,
// fsyncs it, then renames over the destination.
func atomicWrite(path, data string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".patchfs-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.WriteString(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}
