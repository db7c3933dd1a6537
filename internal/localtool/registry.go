package localtool

import (
	"github.com/localmind/cortex/internal/rpctransport"
	"github.com/localmind/cortex/pkg/types"
)

// ServerName is the pseudo-server name the Tool Registry and Executor
// address built-in tools under, e.g. "local.read".
const ServerName = "local"

// Registry holds the fixed built-in tool set for one engine process.
type Registry struct {
	tools map[string]Tool
}

// NewRegistry constructs the full built-in tool set.
func NewRegistry() *Registry {
	r := &Registry{tools: make(map[string]Tool)}
	for _, tool := range []Tool{
		NewReadTool(),
		NewWriteTool(),
		NewEditTool(),
		NewBashTool(),
		NewGlobTool(),
		NewGrepTool(),
		NewListTool(),
		NewWebFetchTool(),
	} {
		r.tools[tool.Name()] = tool
	}
	r.tools["batch"] = NewBatchTool(r)
	return r
}

// Get returns the tool registered under the given unqualified name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// ToolDefinitions renders every built-in tool as a fully-qualified
// types.ToolDefinition, ready for internal/registry.RegisterServerTools.
func (r *Registry) ToolDefinitions() []types.ToolDefinition {
	defs := make([]types.ToolDefinition, 0, len(r.tools))
	for name, t := range r.tools {
		defs = append(defs, types.ToolDefinition{
			Name:                 ServerName + "." + name,
			Description:          t.Description(),
			ParameterSchema:      t.ParameterSchema(),
			ConfirmationRequired: t.ConfirmationRequired(),
			UndoSupported:        t.UndoSupported(),
		})
	}
	return defs
}

// ToolDescriptors renders the same tool set as rpctransport.ToolDescriptor,
// the shape Supervisor.RegisterLocal expects (mirroring what a real
// capability server would have returned from its initialize handshake).
func (r *Registry) ToolDescriptors() []rpctransport.ToolDescriptor {
	descs := make([]rpctransport.ToolDescriptor, 0, len(r.tools))
	for name, t := range r.tools {
		descs = append(descs, rpctransport.ToolDescriptor{
			Name:                 name,
			Description:          t.Description(),
			InputSchema:          t.ParameterSchema(),
			ConfirmationRequired: t.ConfirmationRequired(),
			UndoSupported:        t.UndoSupported(),
		})
	}
	return descs
}
