package convstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/localmind/cortex/internal/tokenest"
	"github.com/localmind/cortex/pkg/types"
)

// evictIfNeeded implements the threshold-triggered eviction described by the
// context-budget design: once a session's budget-derived remaining tokens
// (see GetBudget) fall below evictionThreshold, the oldest non-system
// messages beyond fullDetailWindow are folded into the session's rolling
// summary (capped at maxSummaryTokens) and deleted, so token spend stays
// bounded regardless of conversation length. File paths named by evicted
// assistant tool calls are accumulated into the session's files-touched
// list before the messages carrying them are gone for good.
func (s *Store) evictIfNeeded(sessionID string) error {
	toolDefTokens := 0 // the live tool-def token count is already enforced per-round by the caller's own budget gate
	budget, err := s.GetBudget(sessionID, s.contextWindow, toolDefTokens, s.reservedOutput)
	if err != nil {
		return err
	}
	if budget.Remaining >= evictionThreshold {
		return nil
	}

	count, err := s.CountMessages(sessionID)
	if err != nil {
		return err
	}
	nonSystem := count - 1 // the system message (the session's first) is never evicted
	if nonSystem <= fullDetailWindow {
		return nil
	}
	evictCount := nonSystem - fullDetailWindow

	rows, err := s.db.Query(
		`SELECT role, content, tool_calls, tool_result FROM messages WHERE session_id = ? AND role != ? ORDER BY id ASC LIMIT ?`,
		sessionID, types.RoleSystem, evictCount)
	if err != nil {
		return err
	}
	var lines []string
	var touchedFiles []string
	for rows.Next() {
		var role, content string
		var toolCalls, toolResult sql.NullString
		if err := rows.Scan(&role, &content, &toolCalls, &toolResult); err != nil {
			rows.Close()
			return err
		}
		touchedFiles = append(touchedFiles, filePathsFromToolCalls(toolCalls)...)

		text := content
		if text == "" && toolResult.Valid {
			text = toolResult.String
		}
		if text == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s", role, text))
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	sess, err := s.GetSession(sessionID)
	if err != nil {
		return err
	}
	combined := strings.Join(lines, "\n")
	newSummary := combined
	if sess.Summary != "" {
		newSummary = sess.Summary + "\n" + combined
	}
	newSummary = tokenest.TruncateUTF8(newSummary, estimateBytesForTokens(maxSummaryTokens))

	if _, err := s.DeleteOldestMessages(sessionID, evictCount); err != nil {
		return err
	}
	for _, path := range touchedFiles {
		if err := s.RecordFileTouched(sessionID, path); err != nil {
			return err
		}
	}
	return s.SetSummary(sessionID, newSummary)
}

// filePathsFromToolCalls extracts the "path" argument from every tool call
// encoded in an assistant message's tool_calls column.
func filePathsFromToolCalls(toolCalls sql.NullString) []string {
	if !toolCalls.Valid || toolCalls.String == "" {
		return nil
	}
	var calls []types.ToolCall
	if err := json.Unmarshal([]byte(toolCalls.String), &calls); err != nil {
		return nil
	}
	var paths []string
	for _, call := range calls {
		if path, ok := call.Arguments["path"].(string); ok && path != "" {
			paths = append(paths, path)
		}
	}
	return paths
}

// estimateBytesForTokens inverts the prose char-per-token ratio to bound a
// summary's byte length by a token budget.
func estimateBytesForTokens(tokens int) int {
	return int(float64(tokens) * tokenest.ProseCharsPerToken)
}
