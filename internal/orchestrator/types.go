// Package orchestrator implements the main scheduler: the tactical
// decision tree, the polytopic fallback, loop-detection overrides, and
// the dispatch/record/save/emit cycle.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"autonomy/internal/bus"
	"autonomy/internal/loopdetect"
	"autonomy/internal/model"
	"autonomy/internal/phase"
	"autonomy/internal/statestore"
)

// Event is one scheduler lifecycle notification, sent on Config.EventChan
// when a caller sets it; with no channel set, events are dropped.
type Event struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Phase     model.PhaseName `json:"phase,omitempty"`
	TaskID    string          `json:"task_id,omitempty"`
	Message   string          `json:"message"`
}

// Config configures one orchestrator run.
type Config struct {
	Workspace         string
	MasterPlanPath    string
	ReportsDir        string
	EnableMetaPhases  bool
	DebugQA           bool
	LoopThreshold     int
	LoopHistoryWindow int
	ResolverCooldown  time.Duration
	EventChan         chan Event
}

// DefaultConfig returns the documented defaults.
func DefaultConfig(workspace string) Config {
	return Config{
		Workspace:         workspace,
		LoopThreshold:     loopdetect.DefaultThreshold,
		LoopHistoryWindow: loopdetect.DefaultHistoryWindow,
		ResolverCooldown:  10 * time.Minute,
	}
}

// Orchestrator is the single-threaded top-level loop: it dispatches one
// phase at a time and is the sole writer of PipelineState.
type Orchestrator struct {
	mu sync.Mutex

	cfg    Config
	store  *statestore.Store
	bus    *bus.Bus
	kernel *phase.Kernel
	loop   *loopdetect.Detector

	isPaused   bool
	lastError  error
	cancelFunc context.CancelFunc
}

// New wires an Orchestrator from its already-constructed dependencies.
func New(cfg Config, store *statestore.Store, b *bus.Bus, k *phase.Kernel) *Orchestrator {
	d := loopdetect.New()
	d.Threshold = cfg.LoopThreshold
	d.HistoryWindow = cfg.LoopHistoryWindow
	return &Orchestrator{cfg: cfg, store: store, bus: b, kernel: k, loop: d}
}

func (o *Orchestrator) emitEvent(e Event) {
	if o.cfg.EventChan == nil {
		return
	}
	e.Timestamp = time.Now()
	select {
	case o.cfg.EventChan <- e:
	default:
	}
}

// Pause suspends dispatching until Resume; the loop keeps polling for
// Stop while paused.
func (o *Orchestrator) Pause() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.isPaused = true
}

func (o *Orchestrator) Resume() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.isPaused = false
}

func (o *Orchestrator) Stop() {
	o.mu.Lock()
	cancel := o.cancelFunc
	o.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}
