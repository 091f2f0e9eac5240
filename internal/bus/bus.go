// Package bus implements the in-process message bus: pub/sub with a
// ring-buffered durable history and correlation-id request/response.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"autonomy/internal/logging"
	"autonomy/internal/model"
)

// Filter narrows get_messages/search queries.
type Filter struct {
	Types         []model.MessageType
	MinPriority   model.Priority
	Since         time.Time
	CorrelationID string
	TaskID        string
	ObjectiveID   string
	FilePath      string
}

func (f Filter) matches(m *model.Message) bool {
	if len(f.Types) > 0 {
		found := false
		for _, t := range f.Types {
			if m.Type == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.MinPriority != "" {
		rank := map[model.Priority]int{model.PriorityMsgLow: 0, model.PriorityMsgNormal: 1, model.PriorityMsgHigh: 2, model.PriorityMsgCritical: 3}
		if rank[m.Priority] < rank[f.MinPriority] {
			return false
		}
	}
	if !f.Since.IsZero() && m.Timestamp.Before(f.Since) {
		return false
	}
	if f.CorrelationID != "" && m.CorrelationID != f.CorrelationID {
		return false
	}
	if f.TaskID != "" && m.TaskID != f.TaskID {
		return false
	}
	if f.ObjectiveID != "" && m.ObjectiveID != f.ObjectiveID {
		return false
	}
	if f.FilePath != "" && m.FilePath != f.FilePath {
		return false
	}
	return true
}

type subscriber struct {
	phase model.PhaseName
	types map[model.MessageType]bool // empty = all types
	ch    chan model.Message
}

// Bus is the in-process pub/sub + bounded history.
type Bus struct {
	mu          sync.Mutex
	historyCap  int
	history     []model.Message
	subscribers []*subscriber                 // registration order preserved
	waiters     map[string]chan model.Message // correlation id -> waiter
	errLog      []string
	archive     *HistoryArchive // optional durable overflow sink
}

// New creates a Bus with a bounded history capacity.
func New(historyCap int) *Bus {
	if historyCap <= 0 {
		historyCap = 1000
	}
	return &Bus{
		historyCap: historyCap,
		waiters:    map[string]chan model.Message{},
	}
}

// Subscribe registers interest for a phase in zero or more message types
// (empty = all). Duplicate subscribe is idempotent: re-subscribing the
// same phase replaces its filter rather than adding a second delivery
// channel.
func (b *Bus) Subscribe(phase model.PhaseName, types ...model.MessageType) <-chan model.Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, s := range b.subscribers {
		if s.phase == phase {
			s.types = toTypeSet(types)
			return s.ch
		}
	}

	s := &subscriber{
		phase: phase,
		types: toTypeSet(types),
		ch:    make(chan model.Message, 64),
	}
	b.subscribers = append(b.subscribers, s)
	logging.BusDebug("phase %s subscribed (%d types)", phase, len(types))
	return s.ch
}

func toTypeSet(types []model.MessageType) map[model.MessageType]bool {
	set := map[model.MessageType]bool{}
	for _, t := range types {
		set[t] = true
	}
	return set
}

// Publish delivers to all matching subscribers before returning.
// A late subscriber never sees past broadcasts; only subscribers present
// at publish time are candidates. Delivery is at-most-once per
// subscriber per message. A failing subscriber (full channel) is logged
// to the bus-error log and does not block or prevent delivery to others.
func (b *Bus) Publish(m model.Message) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now()
	}

	b.mu.Lock()
	b.history = append(b.history, m)
	if len(b.history) > b.historyCap {
		b.evictLocked()
	}

	if m.Priority == model.PriorityMsgCritical {
		logging.Get(logging.CategoryBus).Info("CRITICAL message: %s -> %s: %v", m.Sender, m.Recipient, m.Payload)
	}

	// Snapshot subscriber list & waiter under lock, deliver outside lock
	// order is registration order, as captured in b.subscribers.
	targets := make([]*subscriber, 0, len(b.subscribers))
	for _, s := range b.subscribers {
		if m.Recipient != model.Broadcast && string(s.phase) != m.Recipient {
			continue
		}
		if len(s.types) > 0 && !s.types[m.Type] {
			continue
		}
		targets = append(targets, s)
	}

	var waiter chan model.Message
	if m.Type == model.MsgResponse && m.CorrelationID != "" {
		waiter = b.waiters[m.CorrelationID]
	}
	b.mu.Unlock()

	for _, s := range targets {
		select {
		case s.ch <- m:
		default:
			b.logError("subscriber " + string(s.phase) + " channel full, message " + m.ID + " dropped")
		}
	}

	if waiter != nil {
		select {
		case waiter <- m:
		default:
		}
	}
}

// evictLocked drops the oldest non-critical entry, archiving it first if
// an overflow archive is attached; called with b.mu held.
func (b *Bus) evictLocked() {
	for i, m := range b.history {
		if m.Priority != model.PriorityMsgCritical {
			b.archiveLocked(m)
			b.history = append(b.history[:i], b.history[i+1:]...)
			return
		}
	}
	// All critical: drop the oldest anyway to bound memory.
	b.archiveLocked(b.history[0])
	b.history = b.history[1:]
}

func (b *Bus) archiveLocked(m model.Message) {
	if b.archive == nil {
		return
	}
	b.archive.Record(m)
}

func (b *Bus) logError(msg string) {
	b.mu.Lock()
	b.errLog = append(b.errLog, msg)
	b.mu.Unlock()
	logging.Get(logging.CategoryBus).Warn("%s", msg)
}

// GetMessages returns history entries addressed to phase or broadcast,
// optionally filtered.
func (b *Bus) GetMessages(phase model.PhaseName, f Filter) []model.Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []model.Message
	for _, m := range b.history {
		if m.Recipient != model.Broadcast && m.Recipient != string(phase) {
			continue
		}
		if !f.matches(&m) {
			continue
		}
		out = append(out, m)
	}
	return out
}

// Search queries the whole history with a filter, regardless of recipient.
func (b *Bus) Search(f Filter) []model.Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []model.Message
	for _, m := range b.history {
		if f.matches(&m) {
			out = append(out, m)
		}
	}
	return out
}

// Clear removes specific entries from history by id, once processed.
func (b *Bus) Clear(ids []string) {
	if len(ids) == 0 {
		return
	}
	remove := map[string]bool{}
	for _, id := range ids {
		remove[id] = true
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	kept := b.history[:0]
	for _, m := range b.history {
		if !remove[m.ID] {
			kept = append(kept, m)
		}
	}
	b.history = kept
}

// NoResponse is the sentinel value returned by RequestResponse on timeout.
var NoResponse = model.Message{}

// RequestResponse publishes a request with a fresh correlation id and
// blocks up to timeout for a reply carrying the same id. It never returns
// an error on timeout; it returns the NoResponse sentinel instead.
func (b *Bus) RequestResponse(ctx context.Context, sender model.PhaseName, recipient string, msgType model.MessageType, payload interface{}, timeout time.Duration) model.Message {
	correlationID := uuid.NewString()
	waiter := make(chan model.Message, 1)

	b.mu.Lock()
	b.waiters[correlationID] = waiter
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.waiters, correlationID)
		b.mu.Unlock()
	}()

	b.Publish(model.Message{
		Sender:           sender,
		Recipient:        recipient,
		Type:             msgType,
		Priority:         model.PriorityMsgNormal,
		Payload:          payload,
		CorrelationID:    correlationID,
		RequiresResponse: true,
	})

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp := <-waiter:
		return resp
	case <-timer.C:
		logging.Get(logging.CategoryBus).Warn("request_response timeout: correlation=%s", correlationID)
		return NoResponse
	case <-ctx.Done():
		return NoResponse
	}
}

// DumpHistory writes the current in-memory history ring to path as
// indented JSON, atomically, so the bounded bus history survives a run.
func (b *Bus) DumpHistory(path string) error {
	b.mu.Lock()
	snapshot := append([]model.Message(nil), b.history...)
	b.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("bus: mkdir: %w", err)
	}
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("bus: marshal history: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("bus: write history: %w", err)
	}
	return os.Rename(tmp, path)
}

// Respond publishes a response message sharing the request's correlation
// id. Responses never create new requests.
func (b *Bus) Respond(sender model.PhaseName, req model.Message, payload interface{}) {
	b.Publish(model.Message{
		Sender:        sender,
		Recipient:     string(req.Sender),
		Type:          model.MsgResponse,
		Priority:      model.PriorityMsgNormal,
		Payload:       payload,
		CorrelationID: req.CorrelationID,
	})
}
