package localtool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

const globDescription = `Fast file pattern matching tool that works with any codebase size.

Usage:
- Supports glob patterns like "**/*.js" or "src/**/*.ts"
- Returns matching file paths sorted by modification time, newest first
- Use this tool when you need to find files by name pattern`

const maxGlobResults = 100

// GlobTool enumerates files matching a glob pattern. doublestar supplies
// the "**" recursive-match semantics that path/filepath.Glob lacks.
type GlobTool struct{}

func NewGlobTool() *GlobTool { return &GlobTool{} }

func (t *GlobTool) Name() string              { return "glob" }
func (t *GlobTool) Description() string       { return globDescription }
func (t *GlobTool) ConfirmationRequired() bool { return false }
func (t *GlobTool) UndoSupported() bool        { return false }

func (t *GlobTool) ParameterSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"pattern": {"type": "string", "description": "The glob pattern to match files against"},
			"path": {"type": "string", "description": "Directory to search in (default: working directory)"}
		},
		"required": ["pattern"]
	}`)
}

func (t *GlobTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	pattern, err := stringArg(args, "pattern")
	if err != nil {
		return "", err
	}
	searchDir := resolvePath(optionalStringArg(args, "path", "."))

	matches, err := doublestar.Glob(os.DirFS(searchDir), pattern)
	if err != nil {
		return "", fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	if len(matches) == 0 {
		return "No files matched the pattern", nil
	}

	type fileMatch struct {
		path    string
		modTime int64
	}
	files := make([]fileMatch, 0, len(matches))
	for _, m := range matches {
		info, err := os.Stat(searchDir + string(os.PathSeparator) + m)
		var mt int64
		if err == nil {
			mt = info.ModTime().UnixNano()
		}
		files = append(files, fileMatch{path: m, modTime: mt})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].modTime > files[j].modTime })

	truncated := false
	if len(files) > maxGlobResults {
		files = files[:maxGlobResults]
		truncated = true
	}

	var sb []byte
	for i, f := range files {
		if i > 0 {
			sb = append(sb, '\n')
		}
		sb = append(sb, f.path...)
	}
	out := string(sb)
	if truncated {
		out += fmt.Sprintf("\n\n(showing first %d matches)", maxGlobResults)
	}
	return out, nil
}
