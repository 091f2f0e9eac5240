package model

import "time"

// Role is the speaker of a ConversationMessage.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ConversationMessage is one turn in a ConversationThread.
type ConversationMessage struct {
	Role        Role      `json:"role"`
	Content     string    `json:"content"`
	Timestamp   time.Time `json:"timestamp"`
	OriginModel string    `json:"origin_model,omitempty"`
}

// ConversationThread is the per-phase rolling dialog. The
// system message at index 0 is never pruned.
type ConversationThread struct {
	Phase    PhaseName             `json:"phase"`
	Messages []ConversationMessage `json:"messages"`
}

// NewConversationThread seeds a thread with its immutable system message.
func NewConversationThread(phase PhaseName, systemPrompt string) *ConversationThread {
	return &ConversationThread{
		Phase: phase,
		Messages: []ConversationMessage{
			{Role: RoleSystem, Content: systemPrompt, Timestamp: time.Now()},
		},
	}
}

// Append adds a new message to the end of the thread.
func (c *ConversationThread) Append(msg ConversationMessage) {
	c.Messages = append(c.Messages, msg)
}
