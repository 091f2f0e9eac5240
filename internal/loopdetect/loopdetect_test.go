package loopdetect

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"autonomy/internal/model"
)

func TestShouldForcePerPhaseAtThreshold(t *testing.T) {
	d := New()
	ps := &model.PhaseState{Name: model.PhaseCoding}
	for i := 0; i < DefaultThreshold-1; i++ {
		ps.RecordExecution(true, false, "no-op")
		assert.False(t, d.ShouldForcePerPhase(ps))
	}
	ps.RecordExecution(true, false, "no-op")
	assert.True(t, d.ShouldForcePerPhase(ps))
}

func TestScanHistoryDetectsRepeatedTail(t *testing.T) {
	d := New()
	history := []model.PhaseName{model.PhasePlanning, model.PhaseCoding, model.PhaseQA, model.PhaseQA, model.PhaseQA, model.PhaseQA, model.PhaseQA}
	phase, ok := d.ScanHistory(history)
	assert.True(t, ok)
	assert.Equal(t, model.PhaseQA, phase)
}

func TestScanHistoryIgnoresShortOrMixedHistory(t *testing.T) {
	d := New()
	_, ok := d.ScanHistory([]model.PhaseName{model.PhaseQA, model.PhaseQA})
	assert.False(t, ok)

	_, ok = d.ScanHistory([]model.PhaseName{model.PhaseQA, model.PhaseCoding, model.PhaseQA, model.PhaseQA, model.PhaseQA})
	assert.False(t, ok)
}

func TestDetectRepeatedFailuresFlagsThirdOccurrence(t *testing.T) {
	d := New()
	history := []model.FixRecord{
		{File: "a.go", ErrorSig: "nil pointer", Phase: model.PhaseDebugging, Success: false},
		{File: "a.go", ErrorSig: "nil pointer", Phase: model.PhaseDebugging, Success: false},
		{File: "b.go", ErrorSig: "timeout", Phase: model.PhaseQA, Success: true},
	}
	_, ok := d.DetectRepeatedFailures(history)
	assert.False(t, ok, "only two prior failures, should not yet trigger")

	history = append(history, model.FixRecord{File: "a.go", ErrorSig: "nil pointer", Phase: model.PhaseDebugging, Success: false})
	diagnostic, ok := d.DetectRepeatedFailures(history)
	assert.True(t, ok)
	assert.Contains(t, diagnostic, "a.go")
}

func TestBlacklistResolverExpiresAfterCooldown(t *testing.T) {
	d := New()
	d.BlacklistResolver(model.PhaseDebugging, time.Millisecond)
	assert.True(t, d.IsBlacklisted(model.PhaseDebugging))
	time.Sleep(5 * time.Millisecond)
	assert.False(t, d.IsBlacklisted(model.PhaseDebugging))
}

func TestFilterSelfResolverExcludesFailingPhase(t *testing.T) {
	candidates := []model.PhaseName{model.PhaseDebugging, model.PhaseInvestigation, model.PhaseCoding}
	out := FilterSelfResolver(model.PhaseDebugging, candidates)
	assert.NotContains(t, out, model.PhaseDebugging)
	assert.Contains(t, out, model.PhaseInvestigation)
	assert.Contains(t, out, model.PhaseCoding)
}
