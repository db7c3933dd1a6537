package localtool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/agnivade/levenshtein"
)

const editDescription = `Performs an exact string replacement in a file.

Usage:
- oldString must match the file's current content exactly, including
  whitespace and indentation
- oldString must be unique in the file unless replaceAll is set
- Use replaceAll to rename a variable or string across the whole file`

// EditTool performs an in-place find-and-replace edit.
type EditTool struct{}

func NewEditTool() *EditTool { return &EditTool{} }

func (t *EditTool) Name() string              { return "edit" }
func (t *EditTool) Description() string       { return editDescription }
func (t *EditTool) ConfirmationRequired() bool { return true }
func (t *EditTool) UndoSupported() bool        { return true }

func (t *EditTool) ParameterSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {"type": "string", "description": "Path to the file to edit"},
			"oldString": {"type": "string", "description": "Text to replace"},
			"newString": {"type": "string", "description": "Replacement text"},
			"replaceAll": {"type": "boolean", "description": "Replace every occurrence instead of requiring a unique match"}
		},
		"required": ["path", "oldString", "newString"]
	}`)
}

func (t *EditTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	path, err := stringArg(args, "path")
	if err != nil {
		return "", err
	}
	oldString, err := stringArg(args, "oldString")
	if err != nil {
		return "", err
	}
	newString, err := stringArg(args, "newString")
	if err != nil {
		return "", err
	}
	replaceAll, _ := args["replaceAll"].(bool)
	path = resolvePath(path)

	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	content := string(raw)

	count := strings.Count(content, oldString)
	if count == 0 {
		suggestion := closestLine(content, oldString)
		if suggestion != "" {
			return "", fmt.Errorf("oldString not found in %s — closest line: %q", path, suggestion)
		}
		return "", fmt.Errorf("oldString not found in %s", path)
	}
	if count > 1 && !replaceAll {
		return "", fmt.Errorf("oldString matches %d locations in %s; pass replaceAll or narrow the match", count, path)
	}

	var updated string
	if replaceAll {
		updated = strings.ReplaceAll(content, oldString, newString)
	} else {
		updated = strings.Replace(content, oldString, newString, 1)
	}

	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}

	summary, patch := summarizeDiff(path, content, updated)
	return fmt.Sprintf("Replaced %d occurrence(s) in %s (%s)\n%s", count, path, summary, patch), nil
}

// closestLine finds the file's line with the smallest Levenshtein distance
// to needle, to help the model fix a near-miss oldString.
func closestLine(content, needle string) string {
	best := ""
	bestDist := -1
	for _, line := range strings.Split(content, "\n") {
		if line == "" {
			continue
		}
		d := levenshtein.ComputeDistance(line, needle)
		if bestDist == -1 || d < bestDist {
			bestDist = d
			best = line
		}
	}
	if bestDist < 0 || bestDist > len(needle) {
		return ""
	}
	return best
}
