package convstore

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/localmind/cortex/pkg/types"
)

// NewSession creates a session row and inserts its single system message at
// position 0, matching the exactly-one-system-message-at-id-0 invariant.
func (s *Store) NewSession(systemPrompt string) (*types.Session, error) {
	now := time.Now().UnixMilli()
	id := ulid.Make().String()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO sessions (id, created, last_active, title, summary, files_touched, decisions) VALUES (?, ?, ?, 'New Session', '', '[]', '[]')`,
		id, now, now); err != nil {
		return nil, err
	}

	tokens := estimateMessageTokens(string(types.RoleSystem), systemPrompt, nil, nil)
	if _, err := tx.Exec(`INSERT INTO messages (session_id, created, role, content, tokens) VALUES (?, ?, ?, ?, ?)`,
		id, now, types.RoleSystem, systemPrompt, tokens); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &types.Session{ID: id, Created: now, LastActive: now, Title: "New Session"}, nil
}

// GetSession loads a session's bookkeeping row, decoding its files-touched
// and decisions lists.
func (s *Store) GetSession(sessionID string) (*types.Session, error) {
	var sess types.Session
	var filesJSON, decisionsJSON string
	err := s.db.QueryRow(`SELECT id, created, last_active, title, summary, files_touched, decisions FROM sessions WHERE id = ?`, sessionID).
		Scan(&sess.ID, &sess.Created, &sess.LastActive, &sess.Title, &sess.Summary, &filesJSON, &decisionsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{SessionID: sessionID}
	}
	if err != nil {
		return nil, err
	}
	_ = json.Unmarshal([]byte(filesJSON), &sess.FilesTouched)
	_ = json.Unmarshal([]byte(decisionsJSON), &sess.Decisions)
	return &sess, nil
}

func (s *Store) touchSession(sessionID string) error {
	_, err := s.db.Exec(`UPDATE sessions SET last_active = ? WHERE id = ?`, time.Now().UnixMilli(), sessionID)
	return err
}

// RecordFileTouched appends path to the session's files-touched list if not
// already present.
func (s *Store) RecordFileTouched(sessionID, path string) error {
	sess, err := s.GetSession(sessionID)
	if err != nil {
		return err
	}
	sess.Touch(path)
	buf, _ := json.Marshal(sess.FilesTouched)
	_, err = s.db.Exec(`UPDATE sessions SET files_touched = ? WHERE id = ?`, string(buf), sessionID)
	return err
}

// RecordDecision appends a short decision note to the session's log.
func (s *Store) RecordDecision(sessionID, text string) error {
	sess, err := s.GetSession(sessionID)
	if err != nil {
		return err
	}
	sess.Decide(text)
	buf, _ := json.Marshal(sess.Decisions)
	_, err = s.db.Exec(`UPDATE sessions SET decisions = ? WHERE id = ?`, string(buf), sessionID)
	return err
}

// SetSummary overwrites the session's rolling summary text.
func (s *Store) SetSummary(sessionID, summary string) error {
	_, err := s.db.Exec(`UPDATE sessions SET summary = ? WHERE id = ?`, summary, sessionID)
	return err
}

// SetTitle overwrites a session's derived title, e.g. once DeriveTitle or an
// LLM-polished title is available for its first user message.
func (s *Store) SetTitle(sessionID, title string) error {
	_, err := s.db.Exec(`UPDATE sessions SET title = ? WHERE id = ?`, title, sessionID)
	return err
}

// NotFoundError reports that a session ID has no matching row.
type NotFoundError struct {
	SessionID string
}

func (e *NotFoundError) Error() string {
	return "session not found: " + e.SessionID
}
