package types

import "encoding/json"

// ToolDefinition is owned exclusively by the Tool Registry; its lifetime
// equals the parent capability server's running lifetime.
type ToolDefinition struct {
	Name                 string          `json:"name"` // fully-qualified "server.tool"
	Description          string          `json:"description"`
	ParameterSchema      json.RawMessage `json:"parameterSchema"`
	ReturnsSchema        json.RawMessage `json:"returnsSchema,omitempty"`
	ConfirmationRequired bool            `json:"confirmationRequired"`
	UndoSupported        bool            `json:"undoSupported"`
}

// RequiredFields extracts the JSON Schema "required" array from
// ParameterSchema, if present.
func (d ToolDefinition) RequiredFields() []string {
	if len(d.ParameterSchema) == 0 {
		return nil
	}
	var schema struct {
		Required []string `json:"required"`
	}
	if err := json.Unmarshal(d.ParameterSchema, &schema); err != nil {
		return nil
	}
	return schema.Required
}

// ManagedServer is created by the Supervisor on spawn and destroyed on
// shutdown or after restart-exhaustion. The Registry refers to it only by
// Name, never by direct handle.
type ManagedServer struct {
	Name            string   `json:"name"`
	Transport       string   `json:"transport"` // "stdio" | "sse"
	LastKnownTools  []string `json:"lastKnownTools,omitempty"`
	RestartCount    int      `json:"restartCount"`
	State           string   `json:"state"`
}
