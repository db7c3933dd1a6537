package orchestrator

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/localmind/cortex/internal/modelcall"
	"github.com/localmind/cortex/internal/planparse"
	"github.com/localmind/cortex/internal/plantemplate"
)

// compoundSignals are substrings in a user message that indicate a compound
// request even when the planner collapsed it to one step.
var compoundSignals = []string{
	" and then ", " and create ", " then create ", " then tell ", " then make ",
	" also ", " follow up ", " and scan ", " and a task", ", create a task", ", then ",
}

// compoundPairs are (a, b) substring pairs whose joint presence signals a
// compound request.
var compoundPairs = [][2]string{
	{"scan", "create"}, {"read", "create"}, {"list", "create"},
	{"scan", "task"}, {"search", "task"}, {"extract", "task"}, {"read", "task"},
	{"ssn", "task"}, {"pii", "task"}, {"secret", "task"}, {"api key", "task"},
	{"ssn", "api key"}, {"pii", "secret"},
}

func plannerSystemPrompt() string {
	return `You are a task planner. Given a user request, decompose it into a sequence of tool-calling steps. You do NOT call tools yourself. Output your plan using bracket function calls.

Rules:
1. Use bracket function calls to build the plan. No prose before or after.
2. If the request does NOT require tools, call: [plan.respond(message="your direct answer")]
3. Each step description must be COMPLETE and self-contained.
4. Include file paths, search terms, and specifics from the user message in each step.
5. For steps needing a prior result, write: "Using the result from step N, ..."
6. Maximum 10 steps.
7. End with [plan.done()]

DECOMPOSITION RULES:
- Each step calls EXACTLY ONE tool from ONE server. Never combine multiple operations.
- Keywords that signal separate steps: "and", "then", "also", "follow up", "create a task".
- NEVER collapse a multi-server workflow into one step. When in doubt, create MORE steps.

Example:
[plan.add_step(step=1, server="local", description="List files in ~/Downloads")]
[plan.add_step(step=2, server="local", description="Using the result from step 1, read the first PDF found")]
[plan.done()]

For non-tool requests:
[plan.respond(message="The answer to your question is...")]`
}

const decompositionRetryInstruction = "\n\nCRITICAL: This request requires MULTIPLE steps across DIFFERENT servers. " +
	"You MUST break it into separate steps. Each step calls ONE tool from ONE server. " +
	"Do NOT combine scanning, reading, and task creation into a single step. " +
	"Look for these signals in the request: \"and\", \"then\", \"create a task\", " +
	"\"scan for X and Y\" — each signals a separate step."

// plan runs Phase 1: template match, else a planner-model call, with the
// under-decomposition retry. fromTemplate names the matched template, empty
// when the planner model produced the plan.
func (o *Orchestrator) plan(ctx context.Context, sessionID, userMessage string) (*planparse.StepPlan, string, error) {
	if tplPlan, tplName, ok := plantemplate.Match(userMessage); ok {
		return tplPlan, tplName, nil
	}

	history, err := o.recentHistory(sessionID)
	if err != nil {
		history = nil
	}

	plan, err := o.planSteps(ctx, userMessage, history)
	if err != nil {
		return nil, "", err
	}

	if planNeedsDecomposition(plan, userMessage) {
		retryPlan, err := o.planSteps(ctx, userMessage+decompositionRetryInstruction, history)
		if err == nil && retryPlan.NeedsTools && len(retryPlan.Steps) > len(plan.Steps) {
			plan = retryPlan
		}
	}

	return plan, "", nil
}

// recentHistory returns the last 6 non-system turns as eino messages, the
// planner prompt's conversational context.
func (o *Orchestrator) recentHistory(sessionID string) ([]*schema.Message, error) {
	msgs, err := o.Store.GetRecent(sessionID, 6)
	if err != nil {
		return nil, err
	}
	var out []*schema.Message
	for _, m := range msgs {
		if m.Role == "system" {
			continue
		}
		role := schema.User
		switch m.Role {
		case "assistant":
			role = schema.Assistant
		case "tool":
			role = schema.Tool
		}
		out = append(out, &schema.Message{Role: role, Content: m.Content, ToolCallID: m.ToolCallID})
	}
	return out, nil
}

func (o *Orchestrator) planSteps(ctx context.Context, userMessage string, history []*schema.Message) (*planparse.StepPlan, error) {
	messages := append([]*schema.Message{{Role: schema.System, Content: plannerSystemPrompt()}}, history...)
	messages = append(messages, &schema.Message{Role: schema.User, Content: userMessage})

	result, err := o.Caller.Complete(ctx, modelcall.RolePlanner, messages, modelcall.Options{Temperature: 0.1, TopP: 0.2})
	if err != nil {
		return nil, err
	}

	return planparse.Parse(strings.TrimSpace(result.Message.Content))
}

// planNeedsDecomposition reports whether a single-step plan likely
// under-decomposed a compound request.
func planNeedsDecomposition(plan *planparse.StepPlan, userMessage string) bool {
	if len(plan.Steps) > 1 || !plan.NeedsTools {
		return false
	}
	lower := strings.ToLower(userMessage)
	for _, signal := range compoundSignals {
		if strings.Contains(lower, signal) {
			return true
		}
	}
	for _, pair := range compoundPairs {
		if strings.Contains(lower, pair[0]) && strings.Contains(lower, pair[1]) {
			return true
		}
	}
	return false
}
