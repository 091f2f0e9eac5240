package patchfs

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"

	"autonomy/internal/logging"
)

// Archive stores a sequentially-numbered unified diff for every accepted
// change under a conventional directory. Never exposed to the
// LLM; available for external review only.
type Archive struct {
	mu      sync.Mutex
	dir     string
	counter int
	dmp     *diffmatchpatch.DiffMatchPatch
}

// NewArchive opens (creating) the patch directory and seeds the counter
// from any existing numbered patch files so restarts don't collide.
func NewArchive(dir string) (*Archive, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	maxN := 0
	for _, e := range entries {
		var n int
		if _, err := fmt.Sscanf(e.Name(), "%04d-", &n); err == nil && n > maxN {
			maxN = n
		}
	}
	return &Archive{dir: dir, counter: maxN, dmp: diffmatchpatch.New()}, nil
}

// Record computes a unified diff between before and after and writes it
// to patches/NNNN-timestamp.patch. Returns the written path.
func (a *Archive) Record(relPath, before, after string) (string, error) {
	if before == after {
		return "", nil
	}

	a.mu.Lock()
	a.counter++
	n := a.counter
	a.mu.Unlock()

	diffs := a.dmp.DiffMain(before, after, false)
	a.dmp.DiffCleanupSemantic(diffs)
	patchList := a.dmp.PatchMake(before, diffs)
	unified := a.dmp.PatchToText(patchList)

	name := fmt.Sprintf("%04d-%s.patch", n, time.Now().UTC().Format("20060102T150405.000Z"))
	path := filepath.Join(a.dir, name)

	header := fmt.Sprintf("--- %s (before)\n+++ %s (after)\n", relPath, relPath)
	if err := os.WriteFile(path, []byte(header+unified), 0o644); err != nil {
		return "", err
	}
	logging.Get(logging.CategoryPatch).Debug("recorded patch %s for %s", name, relPath)
	return path, nil
}
