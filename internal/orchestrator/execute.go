package orchestrator

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/localmind/cortex/internal/embedindex"
	"github.com/localmind/cortex/internal/modelcall"
	"github.com/localmind/cortex/internal/permission"
	"github.com/localmind/cortex/internal/planparse"
	"github.com/localmind/cortex/pkg/types"
)

// buildToolIndex embeds every registered tool once per orchestration run, so
// each step's router prompt can be filtered to its most relevant subset
// as a RAG pre-filter. A failure here is not fatal to the caller: Run treats it
// as a signal to fall back to the single-model agent loop.
func (o *Orchestrator) buildToolIndex(ctx context.Context) (*embedindex.Index, error) {
	defs := o.Registry.List()
	docs := make([]embedindex.ToolDoc, len(defs))
	for i, d := range defs {
		docs[i] = embedindex.ToolDoc{Name: d.Name, Description: d.Description}
	}
	return o.Embeddings.Build(ctx, docs)
}

// adaptiveFilter narrows the live registry down to the tools the router
// model is offered for one step: every tool on the step's hinted server,
// unioned with the embedding index's top-K matches for the step description
// The hinted-server union guarantees the obviously-relevant
// server is never starved out by an imperfect embedding match.
func (o *Orchestrator) adaptiveFilter(ctx context.Context, step planparse.Step, index *embedindex.Index) []types.ToolDefinition {
	seen := make(map[string]bool)
	var out []types.ToolDefinition

	prefix := step.Server + "."
	for _, d := range o.Registry.List() {
		if strings.HasPrefix(d.Name, prefix) {
			seen[d.Name] = true
			out = append(out, d)
		}
	}

	if index != nil {
		matches, err := o.Embeddings.Filter(ctx, index, step.Description, o.routerTopK())
		if err == nil {
			for _, m := range matches {
				if seen[m.Name] {
					continue
				}
				if d, ok := o.Registry.Get(m.Name); ok {
					seen[m.Name] = true
					out = append(out, d)
				}
			}
		}
	}

	return out
}

// buildRouterSystemPrompt lists the candidate tools as a numbered text menu
// rather than the API's native tools parameter: the router model was
// fine-tuned against this exact numbered-list format.
func buildRouterSystemPrompt(tools []types.ToolDefinition, priorContext string) string {
	var sb strings.Builder
	sb.WriteString("You are a tool-calling router. Given a step description, call exactly one tool to accomplish it. Respond with a single bracket call: [server.tool(arg=\"value\", ...)]\n\n")
	sb.WriteString("Available tools:\n")
	for i, t := range tools {
		fmt.Fprintf(&sb, "%d. %s: %s\n", i+1, t.Name, t.Description)
	}
	if priorContext != "" {
		sb.WriteString("\n" + priorContext + "\n")
	}
	sb.WriteString("\nRespond with exactly one bracket call and nothing else.")
	return sb.String()
}

// interpolatePriorResults builds the "[Prior step context]" block forwarded
// into a step's router prompt: the immediately preceding step's result is
// always included, plus any earlier step explicitly referenced by "step N"
// in this step's description, deduplicated.
func interpolatePriorResults(step planparse.Step, priorResults []StepResult) string {
	if len(priorResults) == 0 {
		return ""
	}

	included := make(map[int]bool)
	var ordered []StepResult

	last := priorResults[len(priorResults)-1]
	included[last.StepNumber] = true
	ordered = append(ordered, last)

	lower := strings.ToLower(step.Description)
	stepRefPattern := regexp.MustCompile(`step (\d+)`)
	for _, m := range stepRefPattern.FindAllStringSubmatch(lower, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil || included[n] {
			continue
		}
		for _, r := range priorResults {
			if r.StepNumber == n {
				included[n] = true
				ordered = append(ordered, r)
				break
			}
		}
	}

	if len(ordered) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("[Prior step context]")
	for _, r := range ordered {
		fmt.Fprintf(&sb, "\nStep %d (%s): %s", r.StepNumber, r.Description, condenseStepResult(r))
	}
	return sb.String()
}

// condenseStepResult reduces a step result to a summary short enough to
// forward into a later step's prompt or a StepCompleted event.
const condenseMaxChars = 500

func condenseStepResult(r StepResult) string {
	if !r.Success {
		return "failed: " + r.Error
	}
	text := strings.TrimSpace(r.ToolResult)
	if len(text) <= condenseMaxChars {
		return text
	}
	return text[:condenseMaxChars] + "... [truncated]"
}

// bracketCallPattern extracts a "[server.tool(args)]" call from router
// output that otherwise leaked surrounding prose.
var bracketCallPattern = regexp.MustCompile(`\[([a-zA-Z0-9_]+\.[a-zA-Z0-9_]+)\(([^)]*)\)\]`)

// extractBracketToolCall is the attempt loop's own parse, tried on every
// router reply: it extracts a "[server.tool(args)]" call even when the
// model wrapped it in prose instead of responding with only the call.
func extractBracketToolCall(output string) (name string, args map[string]any, ok bool) {
	m := bracketCallPattern.FindStringSubmatch(output)
	if m == nil {
		return "", nil, false
	}
	return m[1], extractInlineArgs(m[2]), true
}

// extractFallbackToolCall is the step executor's last-resort recovery path,
// invoked only once every retry attempt is exhausted. Unlike
// extractBracketToolCall it requires no bracket syntax: it scans the
// router's raw text for exactly one mention of a candidate tool name, so a
// reply like "I'll use filesystem.list_dir for this" still resolves
// instead of failing the step. Two or more distinct candidates mentioned in
// the same reply is treated as ambiguous and rejected, not guessed at.
func extractFallbackToolCall(text string, candidateNames []string) (name string, ok bool) {
	found := ""
	for _, candidate := range candidateNames {
		if !strings.Contains(text, candidate) {
			continue
		}
		if found != "" && found != candidate {
			return "", false
		}
		found = candidate
	}
	if found == "" {
		return "", false
	}
	return found, true
}

// topCandidateNames joins the first n tool names (in the filtered menu's own
// relevance order) for the retry prompt, matching the ground-truth router
// prompt's "top 5 candidates" hint.
func topCandidateNames(names []string, n int) string {
	if len(names) > n {
		names = names[:n]
	}
	return strings.Join(names, ", ")
}

// toolNames projects a filtered tool menu down to its names, preserving
// order, for the retry prompt and the fallback-extraction scan.
func toolNames(tools []types.ToolDefinition) []string {
	names := make([]string, len(tools))
	for i, t := range tools {
		names[i] = t.Name
	}
	return names
}

// extractInlineArgs parses a bracket call's "key=value, key2=\"value2\""
// argument body into a map, tolerating both quoted-string and bare
// (numeric/bool) values.
func extractInlineArgs(body string) map[string]any {
	args := make(map[string]any)
	i, n := 0, len(body)
	for i < n {
		for i < n && (body[i] == ' ' || body[i] == ',') {
			i++
		}
		if i >= n {
			break
		}
		keyStart := i
		for i < n && body[i] != '=' {
			i++
		}
		key := strings.TrimSpace(body[keyStart:i])
		if i >= n || key == "" {
			break
		}
		i++

		var value strings.Builder
		if i < n && body[i] == '"' {
			i++
			for i < n && body[i] != '"' {
				if body[i] == '\\' && i+1 < n && body[i+1] == '"' {
					value.WriteByte('"')
					i += 2
					continue
				}
				value.WriteByte(body[i])
				i++
			}
			i++
			args[key] = value.String()
			continue
		}

		for i < n && body[i] != ',' {
			value.WriteByte(body[i])
			i++
		}
		raw := strings.TrimSpace(value.String())
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			args[key] = f
		} else if raw == "true" || raw == "false" {
			args[key] = raw == "true"
		} else {
			args[key] = raw
		}
	}
	return args
}

// placeholderValues are argument values a model sometimes emits literally
// instead of substituting real content, signalling the argument should be
// overridden from context rather than trusted.
var placeholderValues = map[string]bool{
	"path/to/file": true, "result from step 1": true, "previous result": true,
	"<path>": true, "<title>": true, "<date>": true, "result": true,
	"step 1 result": true, "the file": true, "todo": true, "...": true,
}

func isPlaceholderValue(v any) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "" || placeholderValues[s]
}

var pathPattern = regexp.MustCompile(`(?:~|\.{1,2})?/[\w.\-/]+|[\w.\-]+\.(?:txt|pdf|md|csv|json|docx?|xlsx?|png|jpe?g)`)

// extractPathFromText pulls the first filesystem-path-looking token out of
// free text, for reconstructing a "path" argument from a prior step's tool
// result.
func extractPathFromText(text string) (string, bool) {
	m := pathPattern.FindString(text)
	return m, m != ""
}

var titlePattern = regexp.MustCompile(`(?i)titled? ["“]([^"”]+)["”]|"([^"]{3,80})"`)

// extractTitleFromText pulls a quoted or "titled ..." phrase out of free
// text for reconstructing a "title"/"name" argument.
func extractTitleFromText(text string) (string, bool) {
	m := titlePattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	if m[1] != "" {
		return m[1], true
	}
	return m[2], true
}

var datePattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)

// extractDateFromText pulls the first ISO date out of free text for
// reconstructing a "date"/"due_date" argument.
func extractDateFromText(text string) (string, bool) {
	m := datePattern.FindString(text)
	return m, m != ""
}

// extractParamValue reconstructs one named argument from prior step
// results, dispatching on the argument's name to the matching extractor.
func extractParamValue(key string, priorResults []StepResult) (any, bool) {
	combined := make([]string, 0, len(priorResults))
	for _, r := range priorResults {
		if r.Success {
			combined = append(combined, r.ToolResult)
		}
	}
	text := strings.Join(combined, "\n")

	switch {
	case strings.Contains(key, "path") || strings.Contains(key, "file"):
		return extractPathFromText(text)
	case strings.Contains(key, "title") || strings.Contains(key, "name"):
		return extractTitleFromText(text)
	case strings.Contains(key, "date"):
		return extractDateFromText(text)
	default:
		return "", false
	}
}

// pathKeys always get overridden from context when a step references a
// prior step, regardless of whether the router supplied a real-looking
// value: paths are the most common source of hallucinated continuity
// between steps.
var pathKeys = map[string]bool{"path": true, "file_path": true, "filepath": true, "source_path": true}

// constructArgsFromContext rebuilds arguments the router should have taken
// from prior results instead of inventing, for every required key in the
// tool's parameter schema.
func constructArgsFromContext(def types.ToolDefinition, priorResults []StepResult) map[string]any {
	out := make(map[string]any)
	for _, key := range def.RequiredFields() {
		if v, ok := extractParamValue(key, priorResults); ok {
			out[key] = v
		}
	}
	return out
}

// mergeArgs combines the router's emitted arguments with values
// reconstructed from prior-step context: path-style keys always take the
// context value when one was found (continuity matters more than router
// confidence), other keys take the context value only when the router's own
// value looks like a placeholder.
func mergeArgs(routerArgs, contextArgs map[string]any) map[string]any {
	merged := make(map[string]any, len(routerArgs))
	for k, v := range routerArgs {
		merged[k] = v
	}
	for k, v := range contextArgs {
		if pathKeys[k] {
			merged[k] = v
			continue
		}
		existing, present := merged[k]
		if !present || isPlaceholderValue(existing) {
			merged[k] = v
		}
	}
	return merged
}

// executeStep runs Phase 2 for one plan step: adaptive-filter the tool
// menu, build the router prompt, attempt the router call (with retries),
// reconcile arguments against prior-step context, and dispatch the
// resolved call through the shared tool executor. If no attempt succeeds
// (no bracket call parsed, or the dispatched call failed), one last-resort fallback-extraction pass
// scans the final reply's raw text for a single candidate tool mention
// before the step is declared failed.
func (o *Orchestrator) executeStep(ctx context.Context, sessionID string, step planparse.Step, priorResults []StepResult, index *embedindex.Index, perms permission.AgentPermissions) StepResult {
	tools := o.adaptiveFilter(ctx, step, index)
	candidateNames := toolNames(tools)
	priorContext := interpolatePriorResults(step, priorResults)
	systemPrompt := buildRouterSystemPrompt(tools, priorContext)

	attempts := o.stepRetries() + 1
	var lastErr, lastRouterText string

	for attempt := 0; attempt < attempts; attempt++ {
		userContent := step.Description
		if attempt > 0 {
			userContent = fmt.Sprintf(
				"%s\n\n(Retry %d: your previous response could not be parsed as a single tool call. Respond with exactly one bracket call, choosing from the top candidates: %s.)",
				step.Description, attempt, topCandidateNames(candidateNames, 5),
			)
		}

		result, err := o.Caller.Complete(ctx, modelcall.RoleRouter, []*schema.Message{
			{Role: schema.System, Content: systemPrompt},
			{Role: schema.User, Content: userContent},
		}, modelcall.Options{Temperature: 0.1, TopP: 0.1})
		if err != nil {
			lastErr = err.Error()
			continue
		}
		lastRouterText = result.Message.Content

		toolName, args, ok := extractBracketToolCall(result.Message.Content)
		if !ok {
			lastErr = "router response contained no recognizable tool call"
			continue
		}

		sr := o.dispatchStep(ctx, sessionID, step, toolName, args, priorResults, perms)
		if sr.Success {
			return sr
		}
		lastErr = sr.Error
	}

	if lastRouterText != "" {
		if toolName, ok := extractFallbackToolCall(lastRouterText, candidateNames); ok {
			sr := o.dispatchStep(ctx, sessionID, step, toolName, nil, priorResults, perms)
			if sr.Success {
				return sr
			}
			lastErr = sr.Error
		}
	}

	return StepResult{
		StepNumber:  step.Step,
		Description: step.Description,
		Success:     false,
		Error:       lastErr,
	}
}

// dispatchStep reconciles a resolved tool name/args against prior-step
// context and runs it through the shared tool executor, recording the call
// and result to the conversation store. Shared by executeStep's per-attempt
// bracket parse and its last-resort fallback-extraction path.
func (o *Orchestrator) dispatchStep(ctx context.Context, sessionID string, step planparse.Step, toolName string, args map[string]any, priorResults []StepResult, perms permission.AgentPermissions) StepResult {
	if def, found := o.Registry.Get(toolName); found {
		contextArgs := constructArgsFromContext(def, priorResults)
		args = mergeArgs(args, contextArgs)
	}

	call := types.ToolCall{
		ID:        fmt.Sprintf("step-%d", step.Step),
		ToolName:  toolName,
		Arguments: args,
	}
	toolResult := o.ToolExec.Execute(ctx, sessionID, call, perms)

	if _, err := o.Store.AddToolCallMessage(sessionID, call); err != nil {
		return StepResult{StepNumber: step.Step, Description: step.Description, Success: false, Error: err.Error()}
	}
	if _, err := o.Store.AddToolResultMessage(sessionID, call.ID, toolResult); err != nil {
		return StepResult{StepNumber: step.Step, Description: step.Description, Success: false, Error: err.Error()}
	}
	if toolResult.Error != "" {
		return StepResult{StepNumber: step.Step, Description: step.Description, Success: false, Error: toolResult.Error}
	}

	resultText, _ := toolResult.Value.(string)
	return StepResult{
		StepNumber:  step.Step,
		Description: step.Description,
		ToolCalled:  toolName,
		ToolArgs:    args,
		ToolResult:  resultText,
		Success:     true,
	}
}
