// Package loopdetect implements Loop Detection: the per-phase
// no-update counter, the coordinator-level history scan, and the
// repeated-failure pattern detector with its blacklist-with-cooldown.
package loopdetect

import (
	"strings"
	"time"

	"autonomy/internal/logging"
	"autonomy/internal/model"
)

// DefaultThreshold is the no-update-count trigger for a forced
// transition.
const DefaultThreshold = 3

// DefaultHistoryWindow is K, the number of trailing phase_history entries
// the coordinator inspects.
const DefaultHistoryWindow = 5

// Detector holds the configurable thresholds and the blacklist-with-
// cooldown state for meta-phase resolvers.
type Detector struct {
	Threshold     int
	HistoryWindow int

	blacklist map[model.PhaseName]time.Time // phase -> cooldown expiry
}

// New returns a Detector with default thresholds.
func New() *Detector {
	return &Detector{Threshold: DefaultThreshold, HistoryWindow: DefaultHistoryWindow, blacklist: map[model.PhaseName]time.Time{}}
}

// ShouldForcePerPhase reports whether a phase's no-update counter has
// crossed the threshold, obliging it to request a forced transition.
func (d *Detector) ShouldForcePerPhase(ps *model.PhaseState) bool {
	return ps.NoUpdateCount >= d.Threshold
}

// ScanHistory is the coordinator-level check: if the last K entries of
// phase_history are all identical, the orchestrator must override the
// selected next phase.
func (d *Detector) ScanHistory(history []model.PhaseName) (model.PhaseName, bool) {
	if len(history) < d.HistoryWindow {
		return "", false
	}
	tail := history[len(history)-d.HistoryWindow:]
	first := tail[0]
	for _, p := range tail[1:] {
		if p != first {
			return "", false
		}
	}
	return first, true
}

// FailureSignature identifies a repeated failure for the pattern
// detector: same error on the same file, repeated identical tool-call
// failure, or a phase consulted as its own resolver.
type FailureSignature struct {
	File      string
	ErrorText string
	Phase     model.PhaseName
}

// key normalizes the signature for counting.
func (f FailureSignature) key() string {
	return string(f.Phase) + "|" + f.File + "|" + normalizeError(f.ErrorText)
}

func normalizeError(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// RepeatedFailureN is the threshold for the pattern detector to flag a
// repeated failure signature as a diagnostic.
const RepeatedFailureN = 3

// DetectRepeatedFailures scans fix history for a signature occurring at
// least RepeatedFailureN times among the failed records, returning a
// diagnostic string the Orchestrator may surface as a user-input request.
// Occurrences are counted over the whole history: they need not be
// consecutive, and a successful record does not reset the count.
func (d *Detector) DetectRepeatedFailures(history []model.FixRecord) (string, bool) {
	counts := map[string]int{}
	var lastOfEach = map[string]model.FixRecord{}
	for _, rec := range history {
		if rec.Success {
			continue
		}
		sig := FailureSignature{File: rec.File, ErrorText: rec.ErrorSig, Phase: rec.Phase}.key()
		counts[sig]++
		lastOfEach[sig] = rec
	}
	for sig, n := range counts {
		if n >= RepeatedFailureN {
			rec := lastOfEach[sig]
			diagnostic := "repeated failure: phase=" + string(rec.Phase) + " file=" + rec.File + " signature=" + rec.ErrorSig
			logging.Get(logging.CategoryLoop).Warn("%s (count=%d)", diagnostic, n)
			return diagnostic, true
		}
	}
	return "", false
}

// BlacklistResolver prohibits recommending a phase currently in a
// failure streak as its own resolver. Call this before a meta-phase
// resolver is chosen.
func (d *Detector) BlacklistResolver(phase model.PhaseName, cooldown time.Duration) {
	d.blacklist[phase] = time.Now().Add(cooldown)
	logging.Get(logging.CategoryLoop).Info("blacklisted %s as a self-resolver for %s", phase, cooldown)
}

// IsBlacklisted reports whether phase is currently under a resolver
// cooldown.
func (d *Detector) IsBlacklisted(phase model.PhaseName) bool {
	expiry, ok := d.blacklist[phase]
	if !ok {
		return false
	}
	if time.Now().After(expiry) {
		delete(d.blacklist, phase)
		return false
	}
	return true
}

// FilterSelfResolver removes a failing phase from its own candidate
// resolver list, enforcing the prohibition structurally rather
// than relying on callers to remember it.
func FilterSelfResolver(failing model.PhaseName, candidates []model.PhaseName) []model.PhaseName {
	out := candidates[:0:0]
	for _, c := range candidates {
		if c != failing {
			out = append(out, c)
		}
	}
	return out
}
