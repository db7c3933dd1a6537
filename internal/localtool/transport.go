package localtool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/localmind/cortex/internal/rpctransport"
)

// Transport is an in-process rpctransport.Transport that dispatches
// "tools/call" directly into the built-in Registry instead of writing to a
// child process's stdin. It lets local tools be addressed through the
// Supervisor/Tool Registry exactly like an MCP server, so the Executor's
// resolve-confirm-dispatch path never special-cases them.
type Transport struct {
	registry *Registry
}

// NewTransport wraps a Registry as a Transport.
func NewTransport(reg *Registry) *Transport {
	return &Transport{registry: reg}
}

// Request implements rpctransport.Transport.
func (t *Transport) Request(ctx context.Context, method string, params any) (json.RawMessage, error) {
	switch method {
	case "tools/call":
		return t.call(ctx, params)
	case "tools/list":
		return json.Marshal(struct {
			Tools []rpctransport.ToolDescriptor `json:"tools"`
		}{Tools: t.registry.ToolDescriptors()})
	case "initialize":
		return json.Marshal(rpctransport.InitializeResult{Tools: t.registry.ToolDescriptors()})
	default:
		return nil, fmt.Errorf("local transport: unknown method %q", method)
	}
}

func (t *Transport) call(ctx context.Context, params any) (json.RawMessage, error) {
	var p rpctransport.ToolCallParams
	switch v := params.(type) {
	case rpctransport.ToolCallParams:
		p = v
	default:
		encoded, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("local transport: invalid params: %w", err)
		}
		if err := json.Unmarshal(encoded, &p); err != nil {
			return nil, fmt.Errorf("local transport: invalid params: %w", err)
		}
	}

	tool, ok := t.registry.Get(p.Name)
	if !ok {
		return nil, fmt.Errorf("local transport: unknown tool %q", p.Name)
	}

	out, err := tool.Execute(ctx, p.Arguments)
	if err != nil {
		return nil, err
	}

	return json.Marshal(rpctransport.ToolCallResult{
		Content: []rpctransport.ContentBlock{{Type: "text", Text: out}},
	})
}

// Notify implements rpctransport.Transport. Local tools never emit
// notifications, so this is a no-op.
func (t *Transport) Notify(ctx context.Context, method string, params any) error {
	return nil
}

// Close implements rpctransport.Transport. There is no child process or
// connection to tear down.
func (t *Transport) Close() error { return nil }
