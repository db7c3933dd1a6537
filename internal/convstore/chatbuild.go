package convstore

import (
	"encoding/json"
	"fmt"

	"github.com/localmind/cortex/pkg/types"
)

// ChatMessage is the wire shape sent to an inference endpoint: OpenAI-style
// chat-completion messages, carrying tool_calls/tool_call_id directly
// rather than through eino's schema.Message.
type ChatMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	ToolCalls  []ChatToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

// ChatToolCall mirrors the OpenAI function-call wire shape.
type ChatToolCall struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Function ChatToolCallFn `json:"function"`
}

type ChatToolCallFn struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // JSON-encoded argument object
}

// BuildChatMessages replays a session's entire stored history as
// inference-ready chat messages.
func (s *Store) BuildChatMessages(sessionID string) ([]ChatMessage, error) {
	msgs, err := s.GetHistory(sessionID)
	if err != nil {
		return nil, err
	}
	return toChatMessages(msgs), nil
}

// BuildWindowedChatMessages replays the system message plus the most recent
// recentWindow messages verbatim, with every stale tool-result message
// outside that window compressed to a one-line placeholder carrying only
// its tool name and status — the windowed-replay design's way of keeping
// old tool output from re-inflating the prompt once it has already served
// its purpose in the conversation.
func (s *Store) BuildWindowedChatMessages(sessionID string, recentWindow int) ([]ChatMessage, error) {
	all, err := s.GetHistory(sessionID)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, nil
	}

	systemIdx := 0
	rest := all[systemIdx+1:]
	cutoff := len(rest) - recentWindow
	if cutoff < 0 {
		cutoff = 0
	}

	toolNames := make(map[string]string)
	for _, m := range rest {
		for _, tc := range m.ToolCalls {
			toolNames[tc.ID] = tc.ToolName
		}
	}

	out := make([]ChatMessage, 0, len(all))
	out = append(out, toChatMessages(all[:1])...)
	for i, m := range rest {
		if i < cutoff && m.Role == types.RoleTool {
			status := "unknown"
			if m.ToolResult != nil {
				status = string(m.ToolResult.Status)
			}
			out = append(out, ChatMessage{
				Role:       string(types.RoleTool),
				Content:    fmt.Sprintf("[stale tool output omitted, tool=%s, status=%s]", toolNames[m.ToolCallID], status),
				ToolCallID: m.ToolCallID,
			})
			continue
		}
		out = append(out, toChatMessages([]types.Message{m})...)
	}
	return out, nil
}

func toChatMessages(msgs []types.Message) []ChatMessage {
	out := make([]ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		cm := ChatMessage{Role: string(m.Role), Content: m.Content, ToolCallID: m.ToolCallID}
		for _, tc := range m.ToolCalls {
			argsJSON, _ := json.Marshal(tc.Arguments)
			cm.ToolCalls = append(cm.ToolCalls, ChatToolCall{
				ID:   tc.ID,
				Type: "function",
				Function: ChatToolCallFn{
					Name:      tc.ToolName,
					Arguments: string(argsJSON),
				},
			})
		}
		out = append(out, cm)
	}
	return out
}
