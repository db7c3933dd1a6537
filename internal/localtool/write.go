package localtool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const writeDescription = `Writes content to a file, creating it if it doesn't exist and
overwriting it otherwise. Creates any missing parent directories.`

// WriteTool writes a file's full contents.
type WriteTool struct{}

func NewWriteTool() *WriteTool { return &WriteTool{} }

func (t *WriteTool) Name() string              { return "write" }
func (t *WriteTool) Description() string       { return writeDescription }
func (t *WriteTool) ConfirmationRequired() bool { return true }
func (t *WriteTool) UndoSupported() bool        { return true }

func (t *WriteTool) ParameterSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {"type": "string", "description": "Path to the file to write"},
			"content": {"type": "string", "description": "Content to write to the file"}
		},
		"required": ["path", "content"]
	}`)
}

func (t *WriteTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	path, err := stringArg(args, "path")
	if err != nil {
		return "", err
	}
	content, err := stringArg(args, "content")
	if err != nil {
		return "", err
	}
	path = resolvePath(path)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create parent directories for %s: %w", path, err)
	}

	var before string
	if existing, err := os.ReadFile(path); err == nil {
		before = string(existing)
	}

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}

	summary, _ := summarizeDiff(path, before, content)
	return fmt.Sprintf("Wrote %d bytes to %s (%s)", len(content), path, summary), nil
}
