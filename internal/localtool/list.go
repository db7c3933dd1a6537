package localtool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const listDescription = `Lists files and directories under a path, one level deep by default.

Usage:
- path defaults to the working directory
- Set recursive to true to walk the full tree (capped at 1000 entries)`

const maxListEntries = 1000

// ListTool lists directory contents.
type ListTool struct{}

func NewListTool() *ListTool { return &ListTool{} }

func (t *ListTool) Name() string              { return "list" }
func (t *ListTool) Description() string       { return listDescription }
func (t *ListTool) ConfirmationRequired() bool { return false }
func (t *ListTool) UndoSupported() bool        { return false }

func (t *ListTool) ParameterSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {"type": "string", "description": "Directory to list (default: working directory)"},
			"recursive": {"type": "boolean", "description": "Walk the full tree instead of one level"}
		}
	}`)
}

func (t *ListTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	root := resolvePath(optionalStringArg(args, "path", "."))
	recursive, _ := args["recursive"].(bool)

	info, err := os.Stat(root)
	if err != nil {
		return "", fmt.Errorf("path not found: %s", root)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", root)
	}

	var entries []string
	if recursive {
		err = filepath.Walk(root, func(p string, fi os.FileInfo, err error) error {
			if err != nil || p == root {
				return nil
			}
			rel, _ := filepath.Rel(root, p)
			if fi.IsDir() {
				entries = append(entries, rel+"/")
			} else {
				entries = append(entries, rel)
			}
			if len(entries) >= maxListEntries {
				return filepath.SkipAll
			}
			return nil
		})
		if err != nil {
			return "", fmt.Errorf("walk %s: %w", root, err)
		}
	} else {
		dirEntries, err := os.ReadDir(root)
		if err != nil {
			return "", fmt.Errorf("read dir %s: %w", root, err)
		}
		for _, e := range dirEntries {
			if e.IsDir() {
				entries = append(entries, e.Name()+"/")
			} else {
				entries = append(entries, e.Name())
			}
		}
	}

	sort.Strings(entries)
	if len(entries) == 0 {
		return "(empty directory)", nil
	}
	return strings.Join(entries, "\n"), nil
}
