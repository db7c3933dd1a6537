package rpctransport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/localmind/cortex/internal/errs"
)

// SSETransport speaks the same JSON-RPC 2.0 request/response protocol as
// StdioTransport, but over an HTTP endpoint whose responses are framed as
// server-sent events (`data: {...}\n\n`), for capability servers that run
// remotely rather than as a local child process.
type SSETransport struct {
	name     string
	endpoint string
	headers  map[string]string
	client   *http.Client
	nextID   int64
}

// NewSSETransport creates a transport that posts requests to endpoint and
// reads SSE-framed responses.
func NewSSETransport(name, endpoint string, headers map[string]string, client *http.Client) *SSETransport {
	if client == nil {
		client = &http.Client{}
	}
	return &SSETransport{name: name, endpoint: endpoint, headers: headers, client: client}
}

func (t *SSETransport) Request(ctx context.Context, method string, params any) (json.RawMessage, error) {
	id := atomic.AddInt64(&t.nextID, 1)
	req := Request{JSONRPC: "2.0", ID: id, Method: method, Params: params}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, &errs.SerializationError{Message: err.Error()}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &errs.TransportError{Server: t.name, Message: err.Error()}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	for k, v := range t.headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, &errs.TransportError{Server: t.name, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, &errs.HttpError{Status: resp.StatusCode, Body: string(data)}
	}

	rpcResp, err := t.readSSEResponse(resp.Body, id)
	if err != nil {
		return nil, err
	}
	if rpcResp.Error != nil {
		return nil, &errs.ServerError{Code: rpcResp.Error.Code, Message: rpcResp.Error.Message, Data: rpcResp.Error.Data}
	}
	if rpcResp.Result == nil {
		return nil, &errs.ServerError{Code: CodeInternalError, Message: "response carries neither result nor error"}
	}
	return rpcResp.Result, nil
}

// readSSEResponse scans `data: ...` lines until one parses as a JSON-RPC
// response with a matching id; other lines (comments, non-matching events)
// are skipped, mirroring the stdio transport's skip-unparseable-lines
// behavior.
func (t *SSETransport) readSSEResponse(body io.Reader, wantID int64) (*Response, error) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" || payload == "[DONE]" {
			continue
		}
		var resp Response
		if err := json.Unmarshal([]byte(payload), &resp); err != nil {
			continue
		}
		if resp.ID == wantID {
			return &resp, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, &errs.TransportError{Server: t.name, Message: err.Error()}
	}
	return nil, &errs.TransportError{Server: t.name, Message: fmt.Sprintf("stream closed before response id=%d arrived", wantID)}
}

func (t *SSETransport) Notify(ctx context.Context, method string, params any) error {
	req := Request{JSONRPC: "2.0", Method: method, Params: params}
	body, err := json.Marshal(req)
	if err != nil {
		return &errs.SerializationError{Message: err.Error()}
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return &errs.TransportError{Server: t.name, Message: err.Error()}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range t.headers {
		httpReq.Header.Set(k, v)
	}
	resp, err := t.client.Do(httpReq)
	if err != nil {
		return &errs.TransportError{Server: t.name, Message: err.Error()}
	}
	_ = resp.Body.Close()
	return nil
}

func (t *SSETransport) Close() error { return nil }
