package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"autonomy/internal/conversation"
	"autonomy/internal/model"
	"autonomy/internal/modelclient"
)

// modelSummarizer condenses pruned conversation segments through the
// reasoning specialist. Failures fall back to the Conversation Manager's
// one-line placeholder, so this never has to be reliable, only honest.
type modelSummarizer struct {
	client *modelclient.Client
}

var _ conversation.Summarizer = (*modelSummarizer)(nil)

func (s *modelSummarizer) Summarize(ctx context.Context, pruned []model.ConversationMessage) (string, error) {
	var b strings.Builder
	for _, m := range pruned {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}

	messages := []model.ConversationMessage{
		{Role: model.RoleSystem, Content: "Summarize the following conversation segment in a few sentences, preserving decisions, file names, and open problems.", Timestamp: time.Now()},
		{Role: model.RoleUser, Content: b.String(), Timestamp: time.Now()},
	}

	resp, err := s.client.Call(ctx, modelclient.RoleSpecialistReasoning, modelclient.Request{Messages: messages})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}
