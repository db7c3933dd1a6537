package llmclient

import "encoding/json"

// wireMessage mirrors the subset of an OpenAI-compatible chat message this
// package needs to serialize, with Content as a pointer so nil can be
// distinguished from an empty string before NormalizeOutbound runs.
type wireMessage struct {
	Role       string          `json:"role"`
	Content    *string         `json:"content"`
	ToolCalls  json.RawMessage `json:"tool_calls,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
}

// NormalizeOutboundContent rewrites a nil assistant content field to the
// empty string. Some local runtimes reject `"content": null` on a message
// that carries tool_calls, even though it is valid per the OpenAI schema.
func NormalizeOutboundContent(raw []byte) ([]byte, error) {
	var msg wireMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, err
	}
	if msg.Content == nil {
		empty := ""
		msg.Content = &empty
	}
	return json.Marshal(msg)
}

// assistantDelta is the subset of a streamed completion chunk's delta this
// package inspects when separating reasoning from surfaced content.
type assistantDelta struct {
	Content   string          `json:"content,omitempty"`
	Reasoning string          `json:"reasoning,omitempty"`
	ToolCalls json.RawMessage `json:"tool_calls,omitempty"`
}

// ExtractContent parses a streamed delta chunk and returns only its content
// field; any reasoning/thinking field present is deserialized and discarded,
// never surfaced to the caller.
func ExtractContent(raw []byte) (string, error) {
	var d assistantDelta
	if err := json.Unmarshal(raw, &d); err != nil {
		return "", err
	}
	return d.Content, nil
}
