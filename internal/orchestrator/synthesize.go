package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/localmind/cortex/internal/modelcall"
)

func synthesizerSystemPrompt() string {
	return `You previously planned and executed a series of tool calls to satisfy a user's request. Write a single, natural reply summarizing the outcome for the user. Do not mention steps, tools, or servers by name; describe the result as if you did the work directly. If a step failed, acknowledge what could not be completed.`
}

// synthesize runs Phase 3: the planner model turns the step results into a
// natural-language reply at a higher temperature than planning, since this
// call is prose generation rather than structured decomposition. On
// model failure it falls back to a local bullet-list summary
// built directly from the step results, so a dead synthesis model never
// loses the work the steps already did.
func (o *Orchestrator) synthesize(ctx context.Context, userMessage string, results []StepResult) string {
	summary := resultsSummary(results)

	messages := []*schema.Message{
		{Role: schema.System, Content: synthesizerSystemPrompt()},
		{Role: schema.User, Content: fmt.Sprintf("Original request: %s\n\nStep results:\n%s", userMessage, summary)},
	}

	result, err := o.Caller.Complete(ctx, modelcall.RoleSynthesizer, messages, modelcall.Options{Temperature: 0.7, TopP: 0.9})
	if err != nil || strings.TrimSpace(result.Message.Content) == "" {
		return localSynthesisFallback(results)
	}
	return result.Message.Content
}

func resultsSummary(results []StepResult) string {
	var sb strings.Builder
	for _, r := range results {
		fmt.Fprintf(&sb, "Step %d (%s): %s\n", r.StepNumber, r.Description, condenseStepResult(r))
	}
	return sb.String()
}

// localSynthesisFallback builds a bullet list straight from step results
// when the synthesis model itself is unreachable, so a dead model never
// turns successful tool work into a total failure response.
func localSynthesisFallback(results []StepResult) string {
	var sb strings.Builder
	sb.WriteString("Here's what I found:\n")
	for _, r := range results {
		if r.Success {
			fmt.Fprintf(&sb, "- %s\n", condenseStepResult(r))
		} else {
			fmt.Fprintf(&sb, "- Could not complete: %s (%s)\n", r.Description, r.Error)
		}
	}
	return sb.String()
}
