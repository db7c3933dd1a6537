package localtool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
)

const batchDescription = `Runs several built-in tool calls concurrently and returns their combined
output.

Usage:
- calls is a list of {"tool": name, "arguments": {...}}
- Only tools in this package (read, glob, grep, list, webfetch) may be
  batched; write, edit, and bash always run one at a time through the
  normal single-call path, since batching destructive operations invites
  partial, hard-to-reason-about failures`

// batchableTools is the whitelist of side-effect-free tools safe to run
// concurrently. Mutating tools stay single-call: batching a write or a
// bash command would make partial failure unreviewable.
var batchableTools = map[string]bool{
	"read":     true,
	"glob":     true,
	"grep":     true,
	"list":     true,
	"webfetch": true,
}

// BatchTool fans a set of read-only tool calls out concurrently.
type BatchTool struct {
	registry *Registry
}

func NewBatchTool(reg *Registry) *BatchTool { return &BatchTool{registry: reg} }

func (t *BatchTool) Name() string              { return "batch" }
func (t *BatchTool) Description() string       { return batchDescription }
func (t *BatchTool) ConfirmationRequired() bool { return false }
func (t *BatchTool) UndoSupported() bool        { return false }

func (t *BatchTool) ParameterSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"calls": {
				"type": "array",
				"items": {
					"type": "object",
					"properties": {
						"tool": {"type": "string"},
						"arguments": {"type": "object"}
					},
					"required": ["tool"]
				}
			}
		},
		"required": ["calls"]
	}`)
}

type batchCall struct {
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments"`
}

func (t *BatchTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	raw, ok := args["calls"]
	if !ok {
		return "", fmt.Errorf("missing required argument %q", "calls")
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return "", fmt.Errorf("invalid calls: %w", err)
	}
	var calls []batchCall
	if err := json.Unmarshal(encoded, &calls); err != nil {
		return "", fmt.Errorf("invalid calls: %w", err)
	}
	if len(calls) == 0 {
		return "", fmt.Errorf("calls must be non-empty")
	}

	results := make([]string, len(calls))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range calls {
		i, c := i, c
		g.Go(func() error {
			if !batchableTools[c.Tool] {
				results[i] = fmt.Sprintf("[%s] error: tool not batchable", c.Tool)
				return nil
			}
			tool, ok := t.registry.Get(c.Tool)
			if !ok {
				results[i] = fmt.Sprintf("[%s] error: unknown tool", c.Tool)
				return nil
			}
			out, err := tool.Execute(gctx, c.Arguments)
			if err != nil {
				results[i] = fmt.Sprintf("[%s] error: %s", c.Tool, err.Error())
				return nil
			}
			results[i] = fmt.Sprintf("[%s]\n%s", c.Tool, out)
			return nil
		})
	}
	_ = g.Wait()

	return strings.Join(results, "\n\n"), nil
}
