package localtool

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

const readDescription = `Reads a file from the local filesystem.

Usage:
- The path parameter may be absolute or relative to the working directory
- By default, reads up to 2000 lines from the beginning
- Optionally specify offset and limit for pagination
- Returns file contents with line numbers`

const defaultReadLimit = 2000

// ReadTool reads a text file and returns its contents with line numbers.
type ReadTool struct{}

func NewReadTool() *ReadTool { return &ReadTool{} }

func (t *ReadTool) Name() string                  { return "read" }
func (t *ReadTool) Description() string           { return readDescription }
func (t *ReadTool) ConfirmationRequired() bool     { return false }
func (t *ReadTool) UndoSupported() bool            { return false }

func (t *ReadTool) ParameterSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {"type": "string", "description": "Path to the file to read"},
			"offset": {"type": "integer", "description": "Line number to start reading from"},
			"limit": {"type": "integer", "description": "Number of lines to read (default 2000)"}
		},
		"required": ["path"]
	}`)
}

func (t *ReadTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	path, err := stringArg(args, "path")
	if err != nil {
		return "", err
	}
	path = resolvePath(path)
	offset := optionalIntArg(args, "offset", 0)
	limit := optionalIntArg(args, "limit", defaultReadLimit)
	if limit <= 0 {
		limit = defaultReadLimit
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("file not found: %s", path)
	}
	if info.IsDir() {
		return "", fmt.Errorf("path is a directory, not a file: %s", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var sb strings.Builder
	lineNo := 0
	emitted := 0
	for scanner.Scan() {
		lineNo++
		if lineNo <= offset {
			continue
		}
		if emitted >= limit {
			break
		}
		fmt.Fprintf(&sb, "%6d\t%s\n", lineNo, scanner.Text())
		emitted++
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	if emitted == 0 {
		return "(empty result — offset past end of file, or file is empty)", nil
	}
	return sb.String(), nil
}
