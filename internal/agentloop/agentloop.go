// Package agentloop implements the single-model fallback path: a bounded
// tool-calling loop against one chat-completion model, used whenever the
// Orchestrator is disabled or bails out mid-request. The round-based
// budget/stream/tool-call/finish-reason state machine and the repeated-
// call detection are generalized from a single in-process tool table onto
// internal/modelcall, internal/toolexec, and internal/convstore.
package agentloop

import (
	"context"

	"github.com/cloudwego/eino/schema"

	"github.com/localmind/cortex/internal/convstore"
	"github.com/localmind/cortex/internal/event"
	"github.com/localmind/cortex/internal/modelcall"
	"github.com/localmind/cortex/internal/permission"
	"github.com/localmind/cortex/internal/provider"
	"github.com/localmind/cortex/internal/registry"
	"github.com/localmind/cortex/internal/tokenest"
	"github.com/localmind/cortex/internal/toolexec"
	"github.com/localmind/cortex/pkg/types"
)

// Bounds and thresholds for the round loop.
const (
	MaxToolRounds         = 10
	MinRoundTokenBudget   = 1500
	MaxEmptyRetries       = 2
	DefaultContextWindow  = 128000
	DefaultReservedOutput = 2048
	RecentWindow          = 4
)

const emptyResponseNudge = "Your previous response contained no text and no tool call. If you need more information, call a tool; otherwise respond with your answer directly."

const forcedSummaryPrompt = "Summarize what you accomplished so far for the user. Report only results you actually received from tool calls; do not invent outcomes you never observed. Respond with text only."

// Result is the outcome of one Run call.
type Result struct {
	FinalText     string
	RoundsUsed    int
	ForcedSummary bool
}

// Loop wires the single-model collaborators together for one session's
// request.
type Loop struct {
	Caller   *modelcall.Caller
	Registry *registry.Registry
	ToolExec *toolexec.Executor
	Store    *convstore.Store
	Config   *types.Config
}

// New builds a Loop.
func New(caller *modelcall.Caller, reg *registry.Registry, exec *toolexec.Executor, store *convstore.Store, cfg *types.Config) *Loop {
	return &Loop{Caller: caller, Registry: reg, ToolExec: exec, Store: store, Config: cfg}
}

func (l *Loop) contextWindow() int {
	if l.Config != nil {
		if m, ok := l.Config.Models[l.Config.ActiveModel]; ok && m.ContextWindow > 0 {
			return m.ContextWindow
		}
	}
	return DefaultContextWindow
}

// streamTokenPublisher builds an modelcall.Options.OnChunk hook that
// republishes every streamed chunk's content delta as a stream.token event.
func streamTokenPublisher(sessionID string) func(*schema.Message) {
	return func(chunk *schema.Message) {
		if chunk == nil || chunk.Content == "" {
			return
		}
		event.Publish(event.Event{Type: event.StreamToken, Data: event.StreamTokenData{SessionID: sessionID, Delta: chunk.Content}})
	}
}

// Run drives the bounded tool-calling loop for one turn. It assumes the
// caller has already appended the triggering user message to the store.
func (l *Loop) Run(ctx context.Context, sessionID string, perms permission.AgentPermissions) (*Result, error) {
	defs := l.Registry.List()
	toolDefTokens := estimateToolDefTokens(defs)
	guard := newLoopGuard()
	emptyRetries := 0
	roundsUsed := 0

	for round := 0; round < MaxToolRounds; round++ {
		budget, err := l.Store.GetBudget(sessionID, l.contextWindow(), toolDefTokens, DefaultReservedOutput)
		if err != nil {
			return nil, err
		}
		if budget.Remaining < MinRoundTokenBudget {
			break
		}
		roundsUsed = round + 1
		event.Publish(event.Event{Type: event.ContextBudgetEvent, Data: event.ContextBudgetData{SessionID: sessionID, Budget: *budget}})

		chatMsgs, err := l.Store.BuildWindowedChatMessages(sessionID, RecentWindow)
		if err != nil {
			return nil, err
		}
		einoMsgs := modelcall.FromChatMessages(chatMsgs)

		activeDefs := guard.activeToolDefs(defs)
		tools := buildToolInfos(activeDefs)

		result, err := l.Caller.Complete(ctx, modelcall.RoleGeneral, einoMsgs, modelcall.Options{
			Temperature: 0.7,
			TopP:        0.9,
			Tools:       tools,
			OnChunk:     streamTokenPublisher(sessionID),
		})
		if err != nil {
			return l.forceSummary(ctx, sessionID, round)
		}

		flat := provider.ConvertFromEinoMessage(result.Message, sessionID)

		if flat.Content == "" && len(flat.ToolCalls) == 0 {
			emptyRetries++
			if emptyRetries >= MaxEmptyRetries {
				return l.forceSummary(ctx, sessionID, round)
			}
			if _, err := l.Store.AddUserMessage(sessionID, emptyResponseNudge); err != nil {
				return nil, err
			}
			continue
		}
		emptyRetries = 0

		if len(flat.ToolCalls) == 0 {
			if _, err := l.Store.AddAssistantMessage(sessionID, flat.Content, nil); err != nil {
				return nil, err
			}
			event.Publish(event.Event{Type: event.StreamComplete, Data: event.StreamCompleteData{SessionID: sessionID, Content: flat.Content}})
			return &Result{FinalText: flat.Content, RoundsUsed: round + 1}, nil
		}

		if _, err := l.Store.AddAssistantMessage(sessionID, flat.Content, flat.ToolCalls); err != nil {
			return nil, err
		}
		event.Publish(event.Event{Type: event.ToolCallEvent, Data: event.ToolCallData{SessionID: sessionID, Calls: flat.ToolCalls}})

		var recorded []recordedCall
		stopForDuplicate := false
		for _, call := range flat.ToolCalls {
			if guard.recordCall(call.ToolName, call.Arguments) {
				stopForDuplicate = true
			}

			toolResult := l.ToolExec.Execute(ctx, sessionID, call, perms)
			if _, err := l.Store.AddToolResultMessage(sessionID, call.ID, toolResult); err != nil {
				return nil, err
			}
			recorded = append(recorded, recordedCall{toolName: call.ToolName, success: toolResult.Status == types.AuditSuccess})
		}

		if hint := guard.recordRound(recorded, l.Registry); hint != "" {
			if _, err := l.Store.AddUserMessage(sessionID, hint); err != nil {
				return nil, err
			}
		}

		if stopForDuplicate {
			break
		}
	}

	return l.forceSummary(ctx, sessionID, roundsUsed)
}

// forceSummary is invoked whenever the loop exits without the model itself
// producing a final text response: it re-prompts with no tools so the
// model must answer in text.
func (l *Loop) forceSummary(ctx context.Context, sessionID string, roundsUsed int) (*Result, error) {
	if _, err := l.Store.AddUserMessage(sessionID, forcedSummaryPrompt); err != nil {
		return nil, err
	}
	chatMsgs, err := l.Store.BuildWindowedChatMessages(sessionID, RecentWindow)
	if err != nil {
		return nil, err
	}
	einoMsgs := modelcall.FromChatMessages(chatMsgs)

	result, err := l.Caller.Complete(ctx, modelcall.RoleGeneral, einoMsgs, modelcall.Options{Temperature: 0.3, TopP: 0.9})
	if err != nil {
		text := "I wasn't able to reach a model to summarize this request."
		if _, aerr := l.Store.AddAssistantMessage(sessionID, text, nil); aerr != nil {
			return nil, aerr
		}
		return &Result{FinalText: text, RoundsUsed: roundsUsed, ForcedSummary: true}, nil
	}

	flat := provider.ConvertFromEinoMessage(result.Message, sessionID)
	if _, err := l.Store.AddAssistantMessage(sessionID, flat.Content, nil); err != nil {
		return nil, err
	}
	event.Publish(event.Event{Type: event.StreamComplete, Data: event.StreamCompleteData{SessionID: sessionID, Content: flat.Content}})
	return &Result{FinalText: flat.Content, RoundsUsed: roundsUsed, ForcedSummary: true}, nil
}

// estimateToolDefTokens estimates the token cost of the active tool
// definitions as they would be serialized into the request, for budget
// accounting.
func estimateToolDefTokens(defs []types.ToolDefinition) int {
	total := 0
	for _, d := range defs {
		total += tokenest.EstimateJSONTokens(d.Name + d.Description + string(d.ParameterSchema))
	}
	return total
}
