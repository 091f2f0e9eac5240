// Package statestore implements the Persistent State Store: durable,
// atomically-saved serialization of the full PipelineState, plus
// deterministic task-id fingerprinting.
package statestore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"autonomy/internal/logging"
	"autonomy/internal/model"
)

// Store owns the on-disk PipelineState artifact for one project.
type Store struct {
	mu    sync.Mutex
	path  string
	state *model.PipelineState
}

// ErrCorrupt is returned when the state file exists but cannot be parsed;
// callers must treat this as fatal rather than proceed with a partial state.
type ErrCorrupt struct {
	Path string
	Err  error
}

func (e *ErrCorrupt) Error() string {
	return fmt.Sprintf("state store: corrupt state file %s: %v", e.Path, e.Err)
}

func (e *ErrCorrupt) Unwrap() error { return e.Err }

// Open loads state.json from dir, or returns a fresh state if absent.
func Open(dir string) (*Store, error) {
	path := filepath.Join(dir, "state.json")
	s := &Store{path: path}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		logging.Get(logging.CategoryStore).Info("no existing state at %s, starting fresh", path)
		s.state = model.NewPipelineState()
		return s, nil
	}
	if err != nil {
		return nil, &ErrCorrupt{Path: path, Err: err}
	}

	var st model.PipelineState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, &ErrCorrupt{Path: path, Err: err}
	}
	if st.Tasks == nil {
		st.Tasks = map[string]*model.Task{}
	}
	if st.Objectives == nil {
		st.Objectives = map[string]*model.Objective{}
	}
	if st.PhaseStates == nil {
		st.PhaseStates = map[model.PhaseName]*model.PhaseState{}
	}
	if st.LearnedPatterns == nil {
		st.LearnedPatterns = map[string]int{}
	}
	s.state = &st
	logging.Get(logging.CategoryStore).Info("loaded state from %s: %d tasks, %d objectives",
		path, len(st.Tasks), len(st.Objectives))
	return s, nil
}

// State returns the live PipelineState. Callers hold no lock across this
// boundary; PipelineState has exactly one writer, the main loop.
func (s *Store) State() *model.PipelineState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Save atomically persists the current state: write-to-temp, fsync, rename
//. Saves within one process are serialized by s.mu.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.UpdatedAt = time.Now()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("state store: mkdir: %w", err)
	}

	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return fmt.Errorf("state store: marshal: %w", err)
	}

	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("state store: open temp: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("state store: write temp: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("state store: fsync: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("state store: close temp: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("state store: rename: %w", err)
	}

	logging.Get(logging.CategoryStore).Debug("saved state: %d bytes to %s", len(data), s.path)
	return nil
}

// FingerprintTaskID derives a stable task id from (description, target
// file, objective id) via xxhash, so proposing the same task twice is
// idempotent.
func FingerprintTaskID(description, targetFile, objectiveID string) string {
	h := xxhash.New()
	_, _ = h.Write([]byte(description))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(targetFile))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(objectiveID))
	return fmt.Sprintf("T%016x", h.Sum64())
}

// IncrementNoUpdateCount bumps a phase's consecutive-no-effect counter.
func (s *Store) IncrementNoUpdateCount(phase model.PhaseName) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	ps := s.state.GetOrCreatePhaseState(phase)
	ps.NoUpdateCount++
	return ps.NoUpdateCount
}

// ResetNoUpdateCount zeroes a phase's consecutive-no-effect counter.
func (s *Store) ResetNoUpdateCount(phase model.PhaseName) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.GetOrCreatePhaseState(phase).NoUpdateCount = 0
}

// RecordPhaseExecution updates run/success counters and appends to history.
func (s *Store) RecordPhaseExecution(phase model.PhaseName, success bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ps := s.state.GetOrCreatePhaseState(phase)
	ps.RunCount++
	if success {
		ps.SuccessCount++
	}
	s.state.CurrentPhase = phase
	s.state.PhaseHistory = append(s.state.PhaseHistory, phase)
}

// UpsertTask inserts a task if its fingerprint id is new, or returns the
// existing one unmodified, so proposing the same task twice is a no-op.
func (s *Store) UpsertTask(description, targetFile, objectiveID string, priority model.TaskPriority) *model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := FingerprintTaskID(description, targetFile, objectiveID)
	if existing, ok := s.state.Tasks[id]; ok {
		return existing
	}

	t := &model.Task{
		ID:          id,
		Description: description,
		TargetFile:  targetFile,
		Status:      model.TaskNew,
		Priority:    priority,
		ObjectiveID: objectiveID,
		CreatedAt:   time.Now(),
	}
	s.state.Tasks[id] = t
	if obj, ok := s.state.Objectives[objectiveID]; ok {
		obj.TaskIDs = append(obj.TaskIDs, id)
	}
	return t
}
