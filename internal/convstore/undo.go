package convstore

import (
	"time"

	"github.com/localmind/cortex/pkg/types"
)

// PushUndo records a reversible tool invocation's before/after state.
func (s *Store) PushUndo(sessionID, toolName, actionCategory, originalState, newState string) (int64, error) {
	now := time.Now().UnixMilli()
	res, err := s.db.Exec(
		`INSERT INTO undo_entries (session_id, tool_name, action_category, original_state, new_state, undone, created) VALUES (?, ?, ?, ?, ?, 0, ?)`,
		sessionID, toolName, actionCategory, originalState, newState, now)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetUndoStack returns a session's undo entries, most recent first.
func (s *Store) GetUndoStack(sessionID string) ([]types.UndoEntry, error) {
	rows, err := s.db.Query(
		`SELECT id, session_id, tool_name, action_category, original_state, new_state, undone, created
		 FROM undo_entries WHERE session_id = ? ORDER BY id DESC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.UndoEntry
	for rows.Next() {
		var e types.UndoEntry
		var undone int
		if err := rows.Scan(&e.ID, &e.SessionID, &e.ToolName, &e.ActionCategory, &e.OriginalState, &e.NewState, &undone, &e.Created); err != nil {
			return nil, err
		}
		e.Undone = undone != 0
		out = append(out, e)
	}
	return out, rows.Err()
}

// MarkUndone flags an undo entry as consumed, so it won't be offered again.
func (s *Store) MarkUndone(entryID int64) error {
	_, err := s.db.Exec(`UPDATE undo_entries SET undone = 1 WHERE id = ?`, entryID)
	return err
}
