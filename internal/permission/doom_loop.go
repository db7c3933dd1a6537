package permission

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
)

// DoomLoopThreshold is the number of identical calls in a row, within one
// orchestrator step's retry attempts or one agent loop round's tool calls,
// before Check reports a loop (spec.md §4.9's "repeated failed tool call"
// guard).
const DoomLoopThreshold = 3

// doomLoopHistoryCap bounds how many call hashes are retained per session;
// only the last DoomLoopThreshold-1 entries are ever inspected, so this just
// keeps the map from growing unbounded across a long-lived session.
const doomLoopHistoryCap = 10

// DoomLoopDetector tracks repeated tool calls per session to catch a model
// stuck re-issuing the same call (same tool name, same arguments) instead of
// making progress. Shared by toolexec.Executor across both the orchestrator's
// step execution and the single-model agent loop.
type DoomLoopDetector struct {
	mu      sync.RWMutex
	history map[string][]string // sessionID -> last N tool call hashes
}

// NewDoomLoopDetector creates a new doom loop detector.
func NewDoomLoopDetector() *DoomLoopDetector {
	return &DoomLoopDetector{
		history: make(map[string][]string),
	}
}

// Check checks if a tool call is a doom loop (same tool + input N times in a row).
// Returns true if this appears to be a doom loop.
func (d *DoomLoopDetector) Check(sessionID, toolName string, input any) bool {
	hash := d.hashCall(toolName, input)

	d.mu.Lock()
	defer d.mu.Unlock()

	history := d.history[sessionID]

	// Check if we have enough history and all recent calls match
	if len(history) >= DoomLoopThreshold-1 {
		allSame := true
		start := len(history) - (DoomLoopThreshold - 1)
		for i := start; i < len(history); i++ {
			if history[i] != hash {
				allSame = false
				break
			}
		}

		if allSame {
			d.history[sessionID] = capHistory(append(history, hash))
			return true
		}
	}

	d.history[sessionID] = capHistory(append(history, hash))
	return false
}

// capHistory trims h to the last doomLoopHistoryCap entries.
func capHistory(h []string) []string {
	if len(h) > doomLoopHistoryCap {
		return h[len(h)-doomLoopHistoryCap:]
	}
	return h
}

// hashCall creates a hash of the tool name and input.
func (d *DoomLoopDetector) hashCall(toolName string, input any) string {
	data, _ := json.Marshal(map[string]any{
		"tool":  toolName,
		"input": input,
	})
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Clear clears the history for a session.
func (d *DoomLoopDetector) Clear(sessionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.history, sessionID)
}

// Reset resets the detector for a session after a different call breaks the loop.
func (d *DoomLoopDetector) Reset(sessionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.history[sessionID] = nil
}
