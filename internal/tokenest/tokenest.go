// Package tokenest provides deterministic, client-side token estimation.
// It never calls out to a tokenizer service: every subsystem that needs a
// token count for budgeting purposes uses the character-ratio heuristics
// here, which trade precision for speed and for working identically offline.
package tokenest

import (
	"unicode/utf8"

	"github.com/localmind/cortex/pkg/types"
)

const (
	// ProseCharsPerToken is a conservative overestimate for natural-language
	// text: more tokens per char than GPT-family BPE would actually use,
	// so budgets err on the side of evicting early rather than overflowing.
	ProseCharsPerToken = 3.2
	// JSONCharsPerToken accounts for the denser token packing of structured
	// content (quotes, braces, repeated keys).
	JSONCharsPerToken = 2.8

	// MessageOverheadTokens is the fixed per-message bookkeeping cost
	// (role marker, separators) added on top of content length.
	MessageOverheadTokens = 4
	// ToolCallOverheadTokens is the fixed per-tool-call bookkeeping cost
	// (name framing, argument braces) added on top of a tool call's content.
	ToolCallOverheadTokens = 10
)

// EstimateProseTokens estimates the token count of free-form text.
func EstimateProseTokens(s string) int {
	return estimate(s, ProseCharsPerToken)
}

// EstimateJSONTokens estimates the token count of JSON/structured text.
func EstimateJSONTokens(s string) int {
	return estimate(s, JSONCharsPerToken)
}

func estimate(s string, charsPerToken float64) int {
	n := utf8.RuneCountInString(s)
	if n == 0 {
		return 0
	}
	tokens := float64(n) / charsPerToken
	whole := int(tokens)
	if tokens > float64(whole) {
		whole++
	}
	return whole
}

// EstimateMessageTokens dispatches to the JSON ratio for tool-role content
// and the prose ratio otherwise, and adds the per-message overhead plus, for
// assistant messages carrying tool calls, the per-tool-call overhead.
func EstimateMessageTokens(m *types.Message) int {
	var content int
	if m.Role == types.RoleTool {
		content = EstimateJSONTokens(m.Content)
	} else {
		content = EstimateProseTokens(m.Content)
	}

	total := content + MessageOverheadTokens
	for range m.ToolCalls {
		total += ToolCallOverheadTokens
	}
	return total
}

// TruncateUTF8 slices s at the largest byte index <= maxBytes that is a
// valid UTF-8 rune boundary. This is critical for preview text that may
// contain non-ASCII characters: a naive byte slice can split a multi-byte
// rune and yield an invalid string.
func TruncateUTF8(s string, maxBytes int) string {
	if maxBytes <= 0 {
		return ""
	}
	if len(s) <= maxBytes {
		return s
	}

	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	// RuneStart(s[cut]) true means byte at cut begins a rune; but that rune
	// itself may extend past maxBytes if cut == maxBytes exactly landed
	// mid-rune was already excluded by the loop above. Re-validate by
	// decoding from the start up to cut.
	if !utf8.ValidString(s[:cut]) {
		// Walk back further until valid; pathological only for malformed
		// input that somehow passed earlier validation.
		for cut > 0 && !utf8.ValidString(s[:cut]) {
			cut--
		}
	}
	return s[:cut]
}
