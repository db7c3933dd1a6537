package convstore

import (
	"time"

	"github.com/localmind/cortex/pkg/types"
)

// InsertAuditEntry records one tool invocation's full audit trail: its
// arguments, result, status, confirmation provenance, and wall-clock cost.
func (s *Store) InsertAuditEntry(e types.AuditEntry) (int64, error) {
	if e.Created == 0 {
		e.Created = time.Now().UnixMilli()
	}
	res, err := s.db.Exec(
		`INSERT INTO audit_entries (session_id, tool_name, arguments, result, status, user_confirmed, wall_clock_ms, created)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.SessionID, e.ToolName, e.Arguments, e.Result, e.Status, e.UserConfirmed, e.WallClockMS, e.Created)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetAuditEntries returns a session's audit log, oldest first.
func (s *Store) GetAuditEntries(sessionID string) ([]types.AuditEntry, error) {
	rows, err := s.db.Query(
		`SELECT id, session_id, tool_name, arguments, result, status, user_confirmed, wall_clock_ms, created
		 FROM audit_entries WHERE session_id = ? ORDER BY id ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.AuditEntry
	for rows.Next() {
		var e types.AuditEntry
		var confirmed int
		if err := rows.Scan(&e.ID, &e.SessionID, &e.ToolName, &e.Arguments, &e.Result, &e.Status, &confirmed, &e.WallClockMS, &e.Created); err != nil {
			return nil, err
		}
		e.UserConfirmed = confirmed != 0
		out = append(out, e)
	}
	return out, rows.Err()
}
