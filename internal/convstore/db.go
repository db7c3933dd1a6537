// Package convstore is the Conversation Store: a SQLite-backed transcript,
// token-accounting, and audit/undo ledger for one assistant process. Schema
// evolution is treated as an ordered set of embedded SQL files (see migrate.go)
// rather than ad hoc DDL scattered through the code.
package convstore

import (
	"database/sql"
	"fmt"
	"sync/atomic"

	_ "modernc.org/sqlite"

	"github.com/localmind/cortex/internal/tokenest"
)

var memoryDBCounter int64

// Eviction tuning, per the context-budget design: once a session's
// budget-derived remaining tokens fall below evictionThreshold,
// delete_oldest_messages trims the tail until only fullDetailWindow recent
// messages remain, folding whatever was removed into a rolling summary
// capped at maxSummaryTokens. safetyBuffer is withheld from every budget
// calculation as headroom against token-estimate drift. defaultContextWindow
// and defaultReservedOutput seed a Store's budget params until ConfigureBudget
// is told the active model's real context window.
const (
	evictionThreshold     = 5000
	fullDetailWindow      = 10
	maxSummaryTokens      = 500
	safetyBuffer          = 768
	defaultContextWindow  = 128000
	defaultReservedOutput = 2048
)

// Store wraps a *sql.DB open against one SQLite file with the schema
// migrated to the latest version.
type Store struct {
	db *sql.DB

	contextWindow  int
	reservedOutput int
}

// ConfigureBudget overrides the total context window and reserved-output
// token counts evictIfNeeded uses to gate eviction, matching whichever model
// is actually active. Zero values are ignored, so a caller only needs to set
// the figures it knows.
func (s *Store) ConfigureBudget(totalWindow, reservedOutput int) {
	if totalWindow > 0 {
		s.contextWindow = totalWindow
	}
	if reservedOutput > 0 {
		s.reservedOutput = reservedOutput
	}
}

// Open opens (creating if absent) the SQLite database at path, applies
// pending migrations, and returns a ready Store. path may be ":memory:" for
// tests.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", path)
	if path == ":memory:" {
		// Each in-process Store needs its own isolated database: an unqualified
		// "file::memory:" URI under cache=shared would be the SAME database for
		// every caller in this process, so give each one a unique name instead.
		n := atomic.AddInt64(&memoryDBCounter, 1)
		dsn = fmt.Sprintf("file:convstore-mem-%d?mode=memory&cache=shared&_pragma=foreign_keys(1)", n)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // WAL still serializes writers; avoid SQLITE_BUSY under modernc's driver

	if err := applyMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &Store{db: db, contextWindow: defaultContextWindow, reservedOutput: defaultReservedOutput}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func estimateMessageTokens(role, content string, toolCallsJSON, toolResultJSON []byte) int {
	n := tokenest.MessageOverheadTokens
	if content != "" {
		n += tokenest.EstimateProseTokens(content)
	}
	if len(toolCallsJSON) > 0 {
		n += tokenest.ToolCallOverheadTokens + tokenest.EstimateJSONTokens(string(toolCallsJSON))
	}
	if len(toolResultJSON) > 0 {
		n += tokenest.EstimateJSONTokens(string(toolResultJSON))
	}
	return n
}
