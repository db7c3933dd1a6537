package localtool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"runtime"
	"time"
)

const (
	defaultBashTimeout = 120 * time.Second
	maxBashTimeout     = 10 * time.Minute
	maxBashOutputChars = 30000
)

const bashDescription = `Executes a shell command and returns its stdout and stderr.

Usage:
- command is required
- Optional timeout in milliseconds (max 600000, default 120000)
- Output is truncated past 30000 characters`

// BashTool runs a command in a shell. Confirmation/pattern matching against
// the session's bash permission table happens in internal/toolexec before
// Execute is ever called; this tool only runs what it's told.
type BashTool struct{}

func NewBashTool() *BashTool { return &BashTool{} }

func (t *BashTool) Name() string              { return "bash" }
func (t *BashTool) Description() string       { return bashDescription }
func (t *BashTool) ConfirmationRequired() bool { return true }
func (t *BashTool) UndoSupported() bool        { return false }

func (t *BashTool) ParameterSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"command": {"type": "string", "description": "The shell command to execute"},
			"timeout": {"type": "integer", "description": "Timeout in milliseconds"}
		},
		"required": ["command"]
	}`)
}

func (t *BashTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	command, err := stringArg(args, "command")
	if err != nil {
		return "", err
	}

	timeout := defaultBashTimeout
	if ms := optionalIntArg(args, "timeout", 0); ms > 0 {
		timeout = time.Duration(ms) * time.Millisecond
		if timeout > maxBashTimeout {
			timeout = maxBashTimeout
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	shell := "/bin/sh"
	shellFlag := "-c"
	if runtime.GOOS == "windows" {
		shell = "cmd"
		shellFlag = "/C"
	}

	cmd := exec.CommandContext(runCtx, shell, shellFlag, command)
	cmd.Dir = WorkDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	out := stdout.String()
	if stderr.Len() > 0 {
		out += "\n--- stderr ---\n" + stderr.String()
	}
	if len(out) > maxBashOutputChars {
		out = out[:maxBashOutputChars] + "\n[output truncated]"
	}

	if runCtx.Err() != nil {
		return out, fmt.Errorf("command timed out after %s", timeout)
	}
	if runErr != nil {
		return out, fmt.Errorf("command exited with error: %w", runErr)
	}

	return out, nil
}
