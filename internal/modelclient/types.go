// Package modelclient implements the unified Model Client: a
// single RPC abstraction over remote LLM hosts with fallback and
// specialist routing.
//
// Concrete per-vendor transports are collapsed into one generic HTTP
// transport; the wire contract is abstract and pluggable, not bound to a
// specific vendor API.
package modelclient

import (
	"context"

	"autonomy/internal/model"
)

// SpecialistRole names a task type the client routes by.
type SpecialistRole string

const (
	RoleArbiter             SpecialistRole = "arbiter/decision"
	RoleSpecialistCoding    SpecialistRole = "specialist/coding"
	RoleSpecialistReasoning SpecialistRole = "specialist/reasoning"
	RoleSpecialistAnalysis  SpecialistRole = "specialist/analysis"
	RoleToolCallRepair      SpecialistRole = "interpreter/tool-call-repair"
)

// Request is a chat-style call to a host.
type Request struct {
	Host     string
	Model    string
	Messages []model.ConversationMessage
	Tools    []ToolDefinition
}

// ToolDefinition is the wire-shape of a tool the model may call.
type ToolDefinition struct {
	Name        string
	Description string
	Schema      map[string]interface{}
}

// Response is the parsed reply: textual content plus zero or more tool
// calls.
type Response struct {
	Content   string
	ToolCalls []model.ToolCall
}

// ErrKind classifies why a call failed, so the orchestrator's retry/
// backoff logic can react appropriately.
type ErrKind string

const (
	ErrNetwork   ErrKind = "network"
	ErrTimeout   ErrKind = "timeout"
	ErrExhausted ErrKind = "exhausted" // all hosts including fallbacks failed
	ErrMalformed ErrKind = "malformed"
)

// CallError is the typed error the client returns once every host in
// the fallback chain has failed. The client never returns a partial
// response.
type CallError struct {
	Kind ErrKind
	Host string
	Err  error
}

func (e *CallError) Error() string {
	return "model client: " + string(e.Kind) + " on " + e.Host + ": " + e.Err.Error()
}

func (e *CallError) Unwrap() error { return e.Err }

// Transport performs one RPC to a single host. Swappable for tests and
// for wiring a real HTTP/gRPC backend.
type Transport interface {
	Call(ctx context.Context, req Request) (*Response, error)
}
