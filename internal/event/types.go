package event

import "github.com/localmind/cortex/pkg/types"

// StreamTokenData carries one incremental delta of assistant text.
type StreamTokenData struct {
	SessionID string `json:"sessionID"`
	Delta     string `json:"delta"`
}

// StreamClearData signals that partial streamed text should be discarded,
// e.g. immediately before a tool call preempts the in-progress text.
type StreamClearData struct {
	SessionID string `json:"sessionID"`
}

// ToolCallData is the data for tool.call events: an assistant message
// invoking one or more tools.
type ToolCallData struct {
	SessionID string          `json:"sessionID"`
	Calls     []types.ToolCall `json:"calls"`
}

// ToolResultData is the data for tool.result events: one tool's outcome.
type ToolResultData struct {
	SessionID  string            `json:"sessionID"`
	ToolCallID string            `json:"toolCallID"`
	Result     types.ToolResult  `json:"result"`
}

// StreamCompleteData carries the final assistant message for a turn.
type StreamCompleteData struct {
	SessionID string `json:"sessionID"`
	Content   string `json:"content"`
}

// ContextBudgetData is a context-budget snapshot.
type ContextBudgetData struct {
	SessionID string               `json:"sessionID"`
	Budget    types.ContextBudget  `json:"budget"`
}

// ConfirmationRequestData describes a pending human-in-the-loop
// confirmation the shell must answer via a ConfirmationResponse.
type ConfirmationRequestData struct {
	ID        string         `json:"id"`
	SessionID string         `json:"sessionID"`
	ToolName  string         `json:"toolName"`
	Arguments map[string]any `json:"arguments"`
	Title     string         `json:"title"`
}

// ConfirmationOutcome tags how a pending confirmation was resolved.
type ConfirmationOutcome string

const (
	ConfirmedOnce           ConfirmationOutcome = "confirmed"
	ConfirmedForSession     ConfirmationOutcome = "confirmedForSession"
	ConfirmedAlways         ConfirmationOutcome = "confirmedAlways"
	ConfirmationRejected    ConfirmationOutcome = "rejected"
	ConfirmationEdited      ConfirmationOutcome = "edited"
)

// ConfirmationResponse is the shell's single-RPC reply to a
// ConfirmationRequestData, optionally carrying edited arguments.
type ConfirmationResponse struct {
	ID           string              `json:"id"`
	Outcome      ConfirmationOutcome `json:"outcome"`
	NewArguments map[string]any      `json:"newArguments,omitempty"`
}

// PlanCreatedData announces a freshly decomposed plan, whether from a
// template match or a planner-model call.
type PlanCreatedData struct {
	SessionID    string `json:"sessionID"`
	StepCount    int    `json:"stepCount"`
	FromTemplate string `json:"fromTemplate,omitempty"`
}

// StepExecutingData announces the start of one orchestrator step.
type StepExecutingData struct {
	SessionID   string `json:"sessionID"`
	StepNumber  int    `json:"stepNumber"`
	Description string `json:"description"`
}

// StepCompletedData announces the outcome of one orchestrator step.
type StepCompletedData struct {
	SessionID  string `json:"sessionID"`
	StepNumber int    `json:"stepNumber"`
	Success    bool   `json:"success"`
	Summary    string `json:"summary,omitempty"`
}
