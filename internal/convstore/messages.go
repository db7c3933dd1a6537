package convstore

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/localmind/cortex/pkg/types"
)

// AddUserMessage appends a user-role turn and returns its assigned ID.
func (s *Store) AddUserMessage(sessionID, content string) (int64, error) {
	tokens := estimateMessageTokens(string(types.RoleUser), content, nil, nil)
	return s.insertMessage(sessionID, types.RoleUser, content, nil, "", nil, tokens)
}

// AddAssistantMessage appends an assistant-role turn, optionally carrying
// tool calls the model requested.
func (s *Store) AddAssistantMessage(sessionID, content string, calls []types.ToolCall) (int64, error) {
	var callsJSON []byte
	if len(calls) > 0 {
		callsJSON, _ = json.Marshal(calls)
	}
	tokens := estimateMessageTokens(string(types.RoleAssistant), content, callsJSON, nil)
	return s.insertMessage(sessionID, types.RoleAssistant, content, callsJSON, "", nil, tokens)
}

// AddToolCallMessage records the tool-call half of an invocation as an
// assistant message containing exactly one call; used when a single-model
// agent loop issues calls one at a time rather than batched.
func (s *Store) AddToolCallMessage(sessionID string, call types.ToolCall) (int64, error) {
	return s.AddAssistantMessage(sessionID, "", []types.ToolCall{call})
}

// AddToolResultMessage records a tool-role message correlated to toolCallID.
// Per the JSON-scalar-string unwrapping rule: when the result value marshals
// to a bare JSON string, number, or bool, content stores the unwrapped
// scalar text directly (no surrounding quotes) rather than a JSON-encoded
// string, so a plain "42" or "done" costs one token estimate, not the
// JSON-quoting overhead of re-encoding a string as a string.
func (s *Store) AddToolResultMessage(sessionID, toolCallID string, result types.ToolResult) (int64, error) {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return 0, err
	}

	content := unwrapScalar(result.Value)

	tokens := estimateMessageTokens(string(types.RoleTool), content, nil, resultJSON)
	return s.insertMessage(sessionID, types.RoleTool, content, nil, toolCallID, resultJSON, tokens)
}

// unwrapScalar renders v as its bare textual form when v is a JSON scalar
// (string, number, bool, nil), and as compact JSON otherwise.
func unwrapScalar(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool, float64, json.Number:
		buf, _ := json.Marshal(x)
		return string(buf)
	default:
		buf, _ := json.Marshal(x)
		return string(buf)
	}
}

func (s *Store) insertMessage(sessionID string, role types.Role, content string, callsJSON []byte, toolCallID string, resultJSON []byte, tokens int) (int64, error) {
	now := time.Now().UnixMilli()

	var callsVal, toolCallIDVal, resultVal any
	if len(callsJSON) > 0 {
		callsVal = string(callsJSON)
	}
	if toolCallID != "" {
		toolCallIDVal = toolCallID
	}
	if len(resultJSON) > 0 {
		resultVal = string(resultJSON)
	}

	res, err := s.db.Exec(
		`INSERT INTO messages (session_id, created, role, content, tool_calls, tool_call_id, tool_result, tokens) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, now, role, content, callsVal, toolCallIDVal, resultVal, tokens,
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	if err := s.touchSession(sessionID); err != nil {
		return 0, err
	}
	if err := s.evictIfNeeded(sessionID); err != nil {
		return 0, err
	}
	return id, nil
}

// GetHistory returns every message in a session, oldest first.
func (s *Store) GetHistory(sessionID string) ([]types.Message, error) {
	rows, err := s.db.Query(
		`SELECT id, session_id, created, role, content, tool_calls, tool_call_id, tool_result, tokens
		 FROM messages WHERE session_id = ? ORDER BY id ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

// GetRecent returns the n most recent messages in a session, oldest first.
func (s *Store) GetRecent(sessionID string, n int) ([]types.Message, error) {
	rows, err := s.db.Query(
		`SELECT id, session_id, created, role, content, tool_calls, tool_call_id, tool_result, tokens
		 FROM messages WHERE session_id = ? ORDER BY id DESC LIMIT ?`, sessionID, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	msgs, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func scanMessages(rows *sql.Rows) ([]types.Message, error) {
	var out []types.Message
	for rows.Next() {
		var m types.Message
		var callsJSON, toolCallID, resultJSON sql.NullString
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Created, &m.Role, &m.Content, &callsJSON, &toolCallID, &resultJSON, &m.Tokens); err != nil {
			return nil, err
		}
		if callsJSON.Valid && callsJSON.String != "" {
			_ = json.Unmarshal([]byte(callsJSON.String), &m.ToolCalls)
		}
		if toolCallID.Valid {
			m.ToolCallID = toolCallID.String
		}
		if resultJSON.Valid && resultJSON.String != "" {
			var tr types.ToolResult
			if err := json.Unmarshal([]byte(resultJSON.String), &tr); err == nil {
				m.ToolResult = &tr
			}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// DeleteOldestMessages removes the oldest n non-system messages from a
// session (the system message, the session's first, is never evicted) and returns the
// total token count removed.
func (s *Store) DeleteOldestMessages(sessionID string, n int) (int, error) {
	rows, err := s.db.Query(
		`SELECT id, tokens FROM messages WHERE session_id = ? AND role != ? ORDER BY id ASC LIMIT ?`,
		sessionID, types.RoleSystem, n)
	if err != nil {
		return 0, err
	}
	var ids []int64
	removedTokens := 0
	for rows.Next() {
		var id int64
		var tok int
		if err := rows.Scan(&id, &tok); err != nil {
			rows.Close()
			return 0, err
		}
		ids = append(ids, id)
		removedTokens += tok
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, id := range ids {
		if _, err := s.db.Exec(`DELETE FROM messages WHERE id = ?`, id); err != nil {
			return 0, err
		}
	}
	return removedTokens, nil
}

// TotalTokens sums the tokens column across a session's messages.
func (s *Store) TotalTokens(sessionID string) (int, error) {
	var total int
	err := s.db.QueryRow(`SELECT COALESCE(SUM(tokens), 0) FROM messages WHERE session_id = ?`, sessionID).Scan(&total)
	return total, err
}

// CountMessages reports how many messages (including the system message)
// exist for a session.
func (s *Store) CountMessages(sessionID string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM messages WHERE session_id = ?`, sessionID).Scan(&n)
	return n, err
}
