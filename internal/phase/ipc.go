package phase

import (
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"autonomy/internal/logging"
	"autonomy/internal/model"
)

// IPCDir is the conventional directory for inter-phase hand-off
// documents: ipc/<phase>_READ.md, <phase>_WRITE.md, <phase>_STATUS.md.
const IPCDir = "ipc"

// ReadIPCDocument reads a phase's hand-off document; a missing document
// is equivalent to empty content.
func ReadIPCDocument(root string, phase model.PhaseName, suffix string) string {
	path := filepath.Join(root, IPCDir, string(phase)+"_"+suffix+".md")
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(data)
}

// WriteIPCDocument replaces a phase's hand-off document wholesale;
// partial edits are never attempted.
func WriteIPCDocument(root string, phase model.PhaseName, suffix, content string) error {
	dir := filepath.Join(root, IPCDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(dir, string(phase)+"_"+suffix+".md")
	return os.WriteFile(path, []byte(content), 0o644)
}

// Watcher live-reloads IPC documents via fsnotify so a long-running phase
// loop observes hand-offs written by a concurrent tool or external editor
// without polling.
type Watcher struct {
	fsw *fsnotify.Watcher
}

// NewWatcher starts watching root/ipc for changes. Callers drain Events()
// to react; Close stops the watch.
func NewWatcher(root string) (*Watcher, error) {
	dir := filepath.Join(root, IPCDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	logging.Get(logging.CategoryPhase).Debug("watching IPC directory %s", dir)
	return &Watcher{fsw: fsw}, nil
}

// Events exposes the underlying fsnotify event channel.
func (w *Watcher) Events() <-chan fsnotify.Event { return w.fsw.Events }

// Close stops the watch.
func (w *Watcher) Close() error { return w.fsw.Close() }
