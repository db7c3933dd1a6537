// Package calculator is a minimal reference capability server: it speaks
// exactly the line-delimited JSON-RPC 2.0 protocol internal/rpctransport
// dials out to, so it doubles as a worked example of
// "what a capability-server binary looks like" for anyone wiring a new one
// into the Supervisor's configured server map, and as a manual smoke-test
// target (cmd/calculator-mcp) independent of any mocked transport.
package calculator

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"math"
)

// toolDescriptors lists the four arithmetic tools this server exposes, each
// taking {a, b float64} and returning a single text content block with
// the numeric result.
var toolDescriptors = []toolDescriptor{
	{Name: "add", Description: "Add two numbers."},
	{Name: "subtract", Description: "Subtract b from a."},
	{Name: "multiply", Description: "Multiply two numbers."},
	{Name: "divide", Description: "Divide a by b. Errors on division by zero."},
}

type toolDescriptor struct {
	Name        string
	Description string
}

const argsSchema = `{"type":"object","required":["a","b"],"properties":{"a":{"type":"number"},"b":{"type":"number"}}}`

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type response struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int64       `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *rpcError   `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type toolCallParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// Serve reads newline-delimited JSON-RPC requests from r and writes
// responses to w until r is exhausted. It recognizes "initialize" and
// "tools/call"; any other method is answered with a -32601 error, mirroring
// the error codes internal/rpctransport expects a real server to use.
func Serve(r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	bw := bufio.NewWriter(w)
	defer bw.Flush()

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req request
		if err := json.Unmarshal(line, &req); err != nil {
			continue // malformed line; callers may interleave log output on the same stream
		}
		if req.ID == nil {
			continue // notification; this server emits none and needs none back
		}

		resp := handle(req)
		data, err := json.Marshal(resp)
		if err != nil {
			return err
		}
		if _, err := bw.Write(append(data, '\n')); err != nil {
			return err
		}
		if err := bw.Flush(); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func handle(req request) response {
	switch req.Method {
	case "initialize":
		return response{JSONRPC: "2.0", ID: *req.ID, Result: initializeResult()}
	case "tools/call":
		return handleToolCall(req)
	default:
		return response{JSONRPC: "2.0", ID: *req.ID, Error: &rpcError{Code: -32601, Message: "method not found: " + req.Method}}
	}
}

func initializeResult() map[string]interface{} {
	tools := make([]map[string]interface{}, 0, len(toolDescriptors))
	for _, d := range toolDescriptors {
		tools = append(tools, map[string]interface{}{
			"name":                 d.Name,
			"description":          d.Description,
			"inputSchema":          json.RawMessage(argsSchema),
			"confirmationRequired": false,
			"undoSupported":        false,
		})
	}
	return map[string]interface{}{
		"tools":      tools,
		"serverInfo": map[string]string{"name": "calculator", "version": "1.0.0"},
	}
}

func handleToolCall(req request) response {
	var params toolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return response{JSONRPC: "2.0", ID: *req.ID, Error: &rpcError{Code: -32602, Message: "invalid params: " + err.Error()}}
	}

	a, aOK := numArg(params.Arguments, "a")
	b, bOK := numArg(params.Arguments, "b")
	if !aOK || !bOK {
		return response{JSONRPC: "2.0", ID: *req.ID, Error: &rpcError{Code: -32602, Message: "both a and b are required numbers"}}
	}

	var result float64
	switch params.Name {
	case "add":
		result = a + b
	case "subtract":
		result = a - b
	case "multiply":
		result = a * b
	case "divide":
		if b == 0 {
			return response{JSONRPC: "2.0", ID: *req.ID, Error: &rpcError{Code: -32603, Message: "division by zero"}}
		}
		result = a / b
	default:
		return response{JSONRPC: "2.0", ID: *req.ID, Error: &rpcError{Code: -32601, Message: "unknown tool: " + params.Name}}
	}

	if math.IsInf(result, 0) || math.IsNaN(result) {
		return response{JSONRPC: "2.0", ID: *req.ID, Error: &rpcError{Code: -32603, Message: "result is not a finite number"}}
	}

	return response{
		JSONRPC: "2.0",
		ID:      *req.ID,
		Result: map[string]interface{}{
			"content": []map[string]string{{"type": "text", "text": fmt.Sprintf("%g", result)}},
		},
	}
}

func numArg(args map[string]interface{}, key string) (float64, bool) {
	v, ok := args[key]
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}
