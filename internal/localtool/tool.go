// Package localtool implements the fixed set of built-in tools that never
// leave the engine process: read, write, edit, bash, glob, grep, list, and
// webfetch, plus batch for running several of them concurrently. They are
// folded into the Tool Registry as a permanently-registered pseudo-server
// named "local" (see Registry and Transport in this package), so the
// Resolver, Executor, and Agent Loop have concrete tools to exercise without
// standing up a child process.
//
// Each tool has a plain Go type and JSON Schema parameter shape rather
// than directly implementing an Eino-wrapped BaseTool invoke interface;
// confirmation and undo policy live in internal/toolexec and internal/permission,
// not in each tool, since every tool here is reached through the same
// Executor path as an MCP-sourced one.
package localtool

import (
	"context"
	"encoding/json"
)

// Tool is one built-in, in-process tool.
type Tool interface {
	// Name is the unqualified tool name, e.g. "read". The Registry
	// qualifies it as "local.read".
	Name() string
	Description() string
	ParameterSchema() json.RawMessage
	ConfirmationRequired() bool
	UndoSupported() bool
	// Execute runs the tool against already-canonicalized arguments and
	// returns the text to surface to the model.
	Execute(ctx context.Context, args map[string]any) (string, error)
}

// WorkDir is the directory built-in tools resolve relative paths against
// when an argument isn't already absolute. It is package-level because every
// tool in this set shares one engine process's working directory; tests
// override it per-case.
var WorkDir = "."
