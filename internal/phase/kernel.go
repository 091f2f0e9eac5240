package phase

import (
	"context"
	"fmt"
	"time"

	"autonomy/internal/bus"
	"autonomy/internal/conversation"
	"autonomy/internal/logging"
	"autonomy/internal/model"
	"autonomy/internal/modelclient"
	"autonomy/internal/toolkit"
)

// Result is the outcome of one phase dispatch. NextPhase is a
// soft hint; the Orchestrator may override it for safety (loop break).
type Result struct {
	Success   bool
	Phase     model.PhaseName
	Message   string
	NextPhase model.PhaseName
	ToolCalls []model.ToolCall
	HadEffect bool
}

// Context is everything a phase handler needs to gather context, build a
// prompt, and interpret results.
type Context struct {
	State     *model.PipelineState
	Task      *model.Task // the task this dispatch concerns, if any
	Lifecycle model.LifecyclePhase
}

// Handler is a phase's declarative behavior: build the user-facing
// prompt for this dispatch. The kernel owns the mechanical steps
// (conversation, model call, tool execution); the handler supplies only
// what is specific to the phase.
type Handler func(ctx Context) (userMessage string, role modelclient.SpecialistRole)

// Definition is one of the fourteen vertices: semantic role and handler.
// Its adjacency and dimensional profile are not stored here; they are
// looked up via the package-level Adjacency table and the profile map.
type Definition struct {
	Name         model.PhaseName
	SystemPrompt string
	Handler      Handler
	ToolCategory toolkit.Category // primary tool category this phase draws from
}

// Kernel is the shared six-step execute loop all phases run
// through.
type Kernel struct {
	Bus          *bus.Bus
	Tools        *toolkit.Registry
	ModelClient  *modelclient.Client
	Conversation *conversation.Manager
	Definitions  map[model.PhaseName]*Definition

	// IPCRoot, when set, enables the plain-text hand-off documents under
	// <IPCRoot>/ipc: the phase's READ document is appended to its prompt
	// and a STATUS document is written after each dispatch.
	IPCRoot string
}

// NewKernel wires the four shared services plus the phase-definition
// table built by BuildDefinitions.
func NewKernel(b *bus.Bus, tools *toolkit.Registry, mc *modelclient.Client, conv *conversation.Manager) *Kernel {
	return &Kernel{Bus: b, Tools: tools, ModelClient: mc, Conversation: conv, Definitions: BuildDefinitions()}
}

// Execute runs the six-step loop for one phase dispatch:
// 1. Gather context (left to the caller via Context; files/state slices).
// 2. Build user message via the phase's Handler.
// 3. Select tools: the registry's tools this phase may call (ToolsForPhase).
// 4. Call model via Conversation Manager + Model Client.
// 5. Route tool calls to the Executor, aggregate results, update state.
// 6. Publish lifecycle events; the caller records PhaseState from the Result.
func (k *Kernel) Execute(ctx context.Context, phaseName model.PhaseName, pctx Context) *Result {
	def, ok := k.Definitions[phaseName]
	if !ok {
		return &Result{Success: false, Phase: phaseName, Message: "no definition for phase " + string(phaseName)}
	}

	timer := logging.StartTimer(logging.CategoryPhase, "execute "+string(phaseName))
	defer timer.Stop()

	k.Bus.Publish(model.Message{Sender: phaseName, Recipient: model.Broadcast, Type: model.MsgPhaseStarted, Priority: model.PriorityMsgNormal})

	userMessage, role := def.Handler(pctx)
	if k.IPCRoot != "" {
		// A missing document is equivalent to empty content.
		if doc := ReadIPCDocument(k.IPCRoot, phaseName, "READ"); doc != "" {
			userMessage += "\n\nHand-off notes:\n" + doc
		}
	}
	k.Conversation.ThreadFor(phaseName, def.SystemPrompt)
	messages := k.Conversation.Append(ctx, phaseName, userMessage)

	availableTools := k.Tools.ToolsForPhase(phaseName)
	toolDefs := make([]modelclient.ToolDefinition, 0, len(availableTools))
	for _, t := range availableTools {
		toolDefs = append(toolDefs, modelclient.ToolDefinition{Name: t.Name, Description: t.Description})
	}

	resp, err := k.ModelClient.Call(ctx, role, modelclient.Request{Messages: messages, Tools: toolDefs})
	if err != nil {
		k.Bus.Publish(model.Message{Sender: phaseName, Recipient: model.Broadcast, Type: model.MsgPhaseCompleted, Priority: model.PriorityMsgHigh, Payload: err.Error()})
		return &Result{Success: false, Phase: phaseName, Message: err.Error()}
	}
	k.Conversation.AppendAssistantReply(phaseName, resp.Content, "")

	hadEffect := false
	for _, call := range resp.ToolCalls {
		result := k.Tools.Execute(ctx, call, pctx.State)
		if result.HadEffect {
			hadEffect = true
		}
		if result.NeedsDebugging && pctx.Task != nil {
			pctx.Task.Status = model.TaskNeedsFixes
		}
	}

	k.Bus.Publish(model.Message{Sender: phaseName, Recipient: model.Broadcast, Type: model.MsgPhaseCompleted, Priority: model.PriorityMsgNormal, Timestamp: time.Now()})

	if k.IPCRoot != "" {
		status := fmt.Sprintf("# %s status\n\nhad_effect: %v\ntool_calls: %d\n\n%s\n", phaseName, hadEffect, len(resp.ToolCalls), resp.Content)
		if err := WriteIPCDocument(k.IPCRoot, phaseName, "STATUS", status); err != nil {
			logging.PhaseDebug("status document write failed for %s: %v", phaseName, err)
		}
	}

	return &Result{
		Success:   true,
		Phase:     phaseName,
		Message:   resp.Content,
		ToolCalls: resp.ToolCalls,
		HadEffect: hadEffect,
	}
}
