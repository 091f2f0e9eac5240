package statestore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autonomy/internal/model"
)

func TestOpenMissingReturnsFreshState(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	assert.Empty(t, s.State().Tasks)
	assert.Empty(t, s.State().Objectives)
}

func TestOpenCorruptFailsLoudly(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "state.json"), []byte("{not json"), 0o644))

	_, err := Open(dir)
	require.Error(t, err)
	var corrupt *ErrCorrupt
	assert.ErrorAs(t, err, &corrupt)
}

func TestSaveThenOpenRoundTrips(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)

	task := s.UpsertTask("add a function", "x.py", "obj1", model.PriorityHigh)
	require.NoError(t, s.Save())

	s2, err := Open(dir)
	require.NoError(t, err)
	got, ok := s2.State().Tasks[task.ID]
	require.True(t, ok)
	assert.Equal(t, task.Description, got.Description)
	assert.Equal(t, task.TargetFile, got.TargetFile)
}

func TestSaveIsAtomicNoTempFileLeftBehind(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.Save())

	_, err = os.Stat(filepath.Join(dir, "state.json.tmp"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "state.json"))
	assert.NoError(t, err)
}

func TestFingerprintTaskIDDeterministicAndIdempotent(t *testing.T) {
	id1 := FingerprintTaskID("write tests", "x.py", "obj1")
	id2 := FingerprintTaskID("write tests", "x.py", "obj1")
	assert.Equal(t, id1, id2)

	id3 := FingerprintTaskID("write tests", "y.py", "obj1")
	assert.NotEqual(t, id1, id3)
}

func TestUpsertTaskIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)

	t1 := s.UpsertTask("desc", "x.py", "obj1", model.PriorityMedium)
	t2 := s.UpsertTask("desc", "x.py", "obj1", model.PriorityMedium)
	assert.Equal(t, t1.ID, t2.ID)
	assert.Len(t, s.State().Tasks, 1)
}

func TestIncrementAndResetNoUpdateCount(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)

	assert.Equal(t, 1, s.IncrementNoUpdateCount(model.PhaseDocumentation))
	assert.Equal(t, 2, s.IncrementNoUpdateCount(model.PhaseDocumentation))
	s.ResetNoUpdateCount(model.PhaseDocumentation)
	assert.Equal(t, 0, s.State().PhaseStates[model.PhaseDocumentation].NoUpdateCount)
}

func TestRecordPhaseExecutionAppendsHistory(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)

	s.RecordPhaseExecution(model.PhaseCoding, true)
	s.RecordPhaseExecution(model.PhaseQA, false)

	hist := s.State().PhaseHistory
	require.Len(t, hist, 2)
	assert.Equal(t, model.PhaseCoding, hist[0])
	assert.Equal(t, model.PhaseQA, hist[1])
	assert.Equal(t, 1, s.State().PhaseStates[model.PhaseCoding].RunCount)
	assert.Equal(t, 1, s.State().PhaseStates[model.PhaseCoding].SuccessCount)
	assert.Equal(t, 0, s.State().PhaseStates[model.PhaseQA].SuccessCount)
}
