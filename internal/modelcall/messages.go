package modelcall

import (
	"github.com/cloudwego/eino/schema"

	"github.com/localmind/cortex/internal/convstore"
)

// FromChatMessages adapts the conversation store's windowed/full chat
// history into eino's wire format, so the orchestrator and agent loop can
// build a prompt with convstore.BuildWindowedChatMessages /
// BuildChatMessages and hand the result straight to Complete.
func FromChatMessages(messages []convstore.ChatMessage) []*schema.Message {
	out := make([]*schema.Message, 0, len(messages))
	for _, m := range messages {
		role := schema.Assistant
		switch m.Role {
		case "user":
			role = schema.User
		case "system":
			role = schema.System
		case "tool":
			role = schema.Tool
		}

		msg := &schema.Message{Role: role, Content: m.Content, ToolCallID: m.ToolCallID}
		for _, tc := range m.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, schema.ToolCall{
				ID: tc.ID,
				Function: schema.FunctionCall{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			})
		}
		out = append(out, msg)
	}
	return out
}
