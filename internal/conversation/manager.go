package conversation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"autonomy/internal/logging"
	"autonomy/internal/model"
)

// Summarizer condenses a slice of pruned-away messages into one synthetic
// assistant message. Summarization is best-effort: if it fails,
// callers fall back to a one-line placeholder.
type Summarizer interface {
	Summarize(ctx context.Context, pruned []model.ConversationMessage) (string, error)
}

// Config controls pruning thresholds.
type Config struct {
	MaxTokens     int // total budget before pruning triggers
	KeepLastTurns int // number of most recent exchanges to always keep
}

func DefaultConfig() Config {
	return Config{MaxTokens: 8000, KeepLastTurns: 6}
}

// Manager owns one ConversationThread per phase.
type Manager struct {
	mu         sync.Mutex
	cfg        Config
	summarizer Summarizer
	threads    map[model.PhaseName]*model.ConversationThread
	sfGroup    singleflight.Group
}

// New creates a Manager. summarizer may be nil, in which case pruning
// always falls back to the one-line placeholder.
func New(cfg Config, summarizer Summarizer) *Manager {
	return &Manager{cfg: cfg, summarizer: summarizer, threads: map[model.PhaseName]*model.ConversationThread{}}
}

// ThreadFor returns (creating if needed) the thread for a phase, seeded
// with systemPrompt. The system message at index 0 is never pruned.
func (m *Manager) ThreadFor(phase model.PhaseName, systemPrompt string) *model.ConversationThread {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.threads[phase]; ok {
		return t
	}
	t := model.NewConversationThread(phase, systemPrompt)
	m.threads[phase] = t
	return t
}

// Append appends the new user message, prunes if needed, and returns
// the (possibly pruned) message slice ready to hand to the model
// client.
func (m *Manager) Append(ctx context.Context, phase model.PhaseName, userMessage string) []model.ConversationMessage {
	m.mu.Lock()
	thread := m.threads[phase]
	m.mu.Unlock()
	if thread == nil {
		thread = m.ThreadFor(phase, "")
	}

	thread.Append(model.ConversationMessage{Role: model.RoleUser, Content: userMessage, Timestamp: time.Now()})
	m.pruneIfNeeded(ctx, thread)
	return thread.Messages
}

// AppendAssistantReply records the model's reply.
func (m *Manager) AppendAssistantReply(phase model.PhaseName, content, originModel string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.threads[phase]; ok {
		t.Append(model.ConversationMessage{Role: model.RoleAssistant, Content: content, Timestamp: time.Now(), OriginModel: originModel})
	}
}

func (m *Manager) totalTokens(t *model.ConversationThread) int {
	total := 0
	for _, msg := range t.Messages {
		total += EstimateTokens(msg.Content)
	}
	return total
}

// pruneIfNeeded elides older middle messages once the thread exceeds its
// token budget, keeping the system message and the last KeepLastTurns
// exchanges, inserting a synthetic assistant summary in between.
func (m *Manager) pruneIfNeeded(ctx context.Context, t *model.ConversationThread) {
	if m.totalTokens(t) <= m.cfg.MaxTokens {
		return
	}

	keepFrom := len(t.Messages) - m.cfg.KeepLastTurns*2
	if keepFrom <= 1 {
		return // nothing meaningful to prune between index 0 and the tail
	}

	system := t.Messages[0]
	pruned := t.Messages[1:keepFrom]
	tail := t.Messages[keepFrom:]

	summary, err := m.summarize(ctx, t.Phase, pruned)
	if err != nil {
		logging.Get(logging.CategoryConversation).Warn("summarization failed for phase %s: %v", t.Phase, err)
		summary = fmt.Sprintf("[%d earlier messages elided]", len(pruned))
	}

	newMessages := make([]model.ConversationMessage, 0, len(tail)+2)
	newMessages = append(newMessages, system)
	newMessages = append(newMessages, model.ConversationMessage{
		Role: model.RoleAssistant, Content: summary, Timestamp: time.Now(),
	})
	newMessages = append(newMessages, tail...)
	t.Messages = newMessages

	logging.Get(logging.CategoryConversation).Debug("pruned phase %s thread: %d -> %d messages", t.Phase, len(pruned)+len(tail)+1, len(t.Messages))
}

// summarize deduplicates concurrent summarization requests for the same
// phase via singleflight: two goroutines appending to the same phase's
// thread at once (e.g. a fan-out consultation and the main dispatch)
// must never issue two summarization calls for the same prune window.
func (m *Manager) summarize(ctx context.Context, phase model.PhaseName, pruned []model.ConversationMessage) (string, error) {
	if m.summarizer == nil {
		return "", fmt.Errorf("no summarizer configured")
	}
	v, err, _ := m.sfGroup.Do(string(phase), func() (interface{}, error) {
		return m.summarizer.Summarize(ctx, pruned)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}
