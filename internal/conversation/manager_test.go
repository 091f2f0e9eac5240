package conversation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autonomy/internal/model"
)

func TestSystemMessageNeverPruned(t *testing.T) {
	mgr := New(Config{MaxTokens: 10, KeepLastTurns: 1}, nil)
	mgr.ThreadFor(model.PhaseCoding, "you are a coding agent")

	for i := 0; i < 20; i++ {
		mgr.Append(context.Background(), model.PhaseCoding, strings.Repeat("word ", 50))
	}

	thread := mgr.ThreadFor(model.PhaseCoding, "you are a coding agent")
	require.NotEmpty(t, thread.Messages)
	assert.Equal(t, model.RoleSystem, thread.Messages[0].Role)
	assert.Equal(t, "you are a coding agent", thread.Messages[0].Content)
}

type failingSummarizer struct{}

func (failingSummarizer) Summarize(ctx context.Context, pruned []model.ConversationMessage) (string, error) {
	return "", errors.New("summarizer down")
}

func TestSummarizationFailureFallsBackToPlaceholder(t *testing.T) {
	mgr := New(Config{MaxTokens: 10, KeepLastTurns: 1}, failingSummarizer{})
	mgr.ThreadFor(model.PhaseQA, "sys")

	for i := 0; i < 10; i++ {
		mgr.Append(context.Background(), model.PhaseQA, strings.Repeat("x", 200))
	}

	thread := mgr.ThreadFor(model.PhaseQA, "sys")
	found := false
	for _, m := range thread.Messages {
		if strings.Contains(m.Content, "elided") {
			found = true
		}
	}
	assert.True(t, found)
}
