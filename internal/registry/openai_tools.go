package registry

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// OpenAIFunction is the function-calling schema shape the router/planner
// models expect as the "tools" parameter.
type OpenAIFunction struct {
	Type     string             `json:"type"` // always "function"
	Function OpenAIFunctionSpec `json:"function"`
}

// OpenAIFunctionSpec is the nested function descriptor.
type OpenAIFunctionSpec struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ToOpenAITools serializes the whole registry to the target
// function-calling schema.
func (r *Registry) ToOpenAITools() []OpenAIFunction {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]OpenAIFunction, 0, len(r.tools))
	for _, d := range r.tools {
		out = append(out, OpenAIFunction{
			Type: "function",
			Function: OpenAIFunctionSpec{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  d.ParameterSchema,
			},
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Function.Name < out[j].Function.Name })
	return out
}

// ToOpenAIToolsFiltered serializes only the named subset, preserving
// whatever is actually registered and silently skipping names that are not.
func (r *Registry) ToOpenAIToolsFiltered(names []string) []OpenAIFunction {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]OpenAIFunction, 0, len(names))
	for _, name := range names {
		d, ok := r.tools[name]
		if !ok {
			continue
		}
		out = append(out, OpenAIFunction{
			Type: "function",
			Function: OpenAIFunctionSpec{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  d.ParameterSchema,
			},
		})
	}
	return out
}

// CapabilitySummary builds a short human-readable string partitioning
// servers into read-only (no confirmation required) and write (confirmation
// required) sets, for system-prompt injection. builtins names the
// always-present local tool family, included even when the registry has no
// MCP-sourced tools.
func (r *Registry) CapabilitySummary(builtins []string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	readOnly := map[string]bool{}
	write := map[string]bool{}
	for name, d := range r.tools {
		server, _, ok := strings.Cut(name, ".")
		if !ok {
			continue
		}
		if d.ConfirmationRequired {
			write[server] = true
		} else {
			readOnly[server] = true
		}
	}

	if len(r.tools) == 0 {
		var b strings.Builder
		b.WriteString("No MCP tools currently available.")
		if len(builtins) > 0 {
			b.WriteString(" Built-in tools: ")
			b.WriteString(strings.Join(builtins, ", "))
			b.WriteString(".")
		}
		return b.String()
	}

	var b strings.Builder
	if len(readOnly) > 0 {
		fmt.Fprintf(&b, "Read-only servers: %s.", strings.Join(sortedKeys(readOnly), ", "))
	}
	if len(write) > 0 {
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		fmt.Fprintf(&b, "Write servers (confirmation required): %s.", strings.Join(sortedKeys(write), ", "))
	}
	if len(builtins) > 0 {
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		fmt.Fprintf(&b, "Built-in tools: %s.", strings.Join(builtins, ", "))
	}
	return b.String()
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
