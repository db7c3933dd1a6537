package localtool

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
)

const grepDescription = `A content search tool built on ripgrep.

Usage:
- Supports full regex syntax (e.g., "log.*Error", "function\\s+\\w+")
- Filter files with the include parameter (e.g., "*.js", "*.{ts,tsx}")
- Returns matching lines with file paths and line numbers`

const maxGrepMatches = 200

// GrepTool searches file contents via ripgrep.
type GrepTool struct{}

func NewGrepTool() *GrepTool { return &GrepTool{} }

func (t *GrepTool) Name() string              { return "grep" }
func (t *GrepTool) Description() string       { return grepDescription }
func (t *GrepTool) ConfirmationRequired() bool { return false }
func (t *GrepTool) UndoSupported() bool        { return false }

func (t *GrepTool) ParameterSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"pattern": {"type": "string", "description": "The regex pattern to search for"},
			"path": {"type": "string", "description": "Directory to search in (default: working directory)"},
			"include": {"type": "string", "description": "File glob to include, e.g. \"*.go\""}
		},
		"required": ["pattern"]
	}`)
}

func (t *GrepTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	pattern, err := stringArg(args, "pattern")
	if err != nil {
		return "", err
	}
	searchDir := resolvePath(optionalStringArg(args, "path", "."))
	include := optionalStringArg(args, "include", "")

	rgArgs := []string{"--line-number", "--with-filename", "--color=never", "--max-count", "50"}
	if include != "" {
		rgArgs = append(rgArgs, "--glob", include)
	}
	rgArgs = append(rgArgs, pattern)

	cmd := exec.CommandContext(ctx, "rg", rgArgs...)
	cmd.Dir = searchDir

	output, err := cmd.Output()
	if err != nil && len(output) == 0 {
		return "No matches found", nil
	}

	lines := strings.Split(strings.TrimSpace(string(output)), "\n")
	truncated := false
	if len(lines) > maxGrepMatches {
		lines = lines[:maxGrepMatches]
		truncated = true
	}

	out := strings.Join(lines, "\n")
	if truncated {
		out += fmt.Sprintf("\n\n(showing first %d matches)", maxGrepMatches)
	}
	return out, nil
}
