package agentloop

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/localmind/cortex/internal/registry"
	"github.com/localmind/cortex/pkg/types"
)

// Loop-detection thresholds.
const (
	MaxConsecutiveErrorRounds = 2
	MaxSameToolFailures       = 3
	MaxDuplicateToolCalls     = 2
)

// loopGuard tracks three loop-detection signals across one request's
// rounds: consecutive all-failed rounds, per-tool failure counts, and
// repeated identical tool calls. The duplicate-call signal's hash-and-
// compare shape is the same idea as a doom-loop detector built for a
// single fixed threshold; this one tracks all three signals at once
// since a single combined threshold can't distinguish them.
type loopGuard struct {
	consecutiveErrorRounds int
	toolFailures           map[string]int
	disabledTools          map[string]bool
	lastCallSignature      string
	duplicateStreak        int
}

func newLoopGuard() *loopGuard {
	return &loopGuard{
		toolFailures:  make(map[string]int),
		disabledTools: make(map[string]bool),
	}
}

func callSignature(toolName string, args map[string]any) string {
	argsJSON, _ := json.Marshal(args)
	return toolName + ":" + string(argsJSON)
}

// recordCall updates the duplicate-call streak for one emitted call, ahead
// of execution, and reports whether the streak just reached the limit.
func (g *loopGuard) recordCall(toolName string, args map[string]any) (shouldStop bool) {
	sig := callSignature(toolName, args)
	if sig == g.lastCallSignature {
		g.duplicateStreak++
	} else {
		g.lastCallSignature = sig
		g.duplicateStreak = 1
	}
	return g.duplicateStreak >= MaxDuplicateToolCalls
}

// recordRound is fed one recordedCall per tool call executed in a round
// (its tool name and whether it succeeded), and returns a hint
// string to inject into the next round's prompt when a threshold trips (or
// "" when nothing tripped).
func (g *loopGuard) recordRound(calls []recordedCall, reg *registry.Registry) string {
	allErrored := len(calls) > 0
	var hint strings.Builder

	for _, c := range calls {
		if c.success {
			allErrored = false
			g.toolFailures[c.toolName] = 0
			continue
		}
		g.toolFailures[c.toolName]++
		if g.toolFailures[c.toolName] >= MaxSameToolFailures && !g.disabledTools[c.toolName] {
			g.disabledTools[c.toolName] = true
			fmt.Fprintf(&hint, "Tool %q has failed %d times and is now disabled for the rest of this request. Stop calling it.\n", c.toolName, g.toolFailures[c.toolName])
		}
	}

	if allErrored {
		g.consecutiveErrorRounds++
		if g.consecutiveErrorRounds >= MaxConsecutiveErrorRounds {
			hint.WriteString(correctionHint(calls, reg))
			g.consecutiveErrorRounds = 0
		}
	} else {
		g.consecutiveErrorRounds = 0
	}

	return hint.String()
}

// correctionHint builds a suggestion-bearing nudge for a run of all-failed
// rounds, pulling the resolver's fuzzy-match suggestions for any unknown
// tool name so the model has a concrete correction to try.
func correctionHint(calls []recordedCall, reg *registry.Registry) string {
	var sb strings.Builder
	sb.WriteString("Every tool call in the last rounds failed. ")
	for _, c := range calls {
		resolved := reg.Resolve(c.toolName, registry.DefaultMinSimilarity)
		if resolved.Kind == registry.MatchNotFound && len(resolved.Suggestions) > 0 {
			fmt.Fprintf(&sb, "Did you mean one of: %s instead of %q? ", strings.Join(resolved.Suggestions, ", "), c.toolName)
		}
	}
	sb.WriteString("Reconsider your approach before calling another tool.")
	return sb.String()
}

// activeToolDefs filters out tools this guard has disabled for repeated
// same-tool failure.
func (g *loopGuard) activeToolDefs(defs []types.ToolDefinition) []types.ToolDefinition {
	if len(g.disabledTools) == 0 {
		return defs
	}
	out := make([]types.ToolDefinition, 0, len(defs))
	for _, d := range defs {
		if !g.disabledTools[d.Name] {
			out = append(out, d)
		}
	}
	return out
}

// recordedCall is one tool call's outcome within a round, for taxonomy
// bookkeeping.
type recordedCall struct {
	toolName string
	success  bool
}
