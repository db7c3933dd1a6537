package permission

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/localmind/cortex/internal/event"
)

// Checker handles permission checks and approvals.
type Checker struct {
	mu       sync.RWMutex
	approved map[string]map[PermissionType]bool // sessionID -> type -> approved
	patterns map[string]map[string]bool         // sessionID -> pattern -> approved (for bash patterns)
	pending  map[string]chan event.ConfirmationResponse

	// grants backs "confirmed always" decisions with a file on disk so they
	// survive past the session. Nil means no persistent layer — every
	// ConfirmedAlways then behaves exactly like ConfirmedForSession, which
	// keeps NewChecker's zero-config behavior unchanged.
	grants *GrantStore
}

// NewChecker creates a new permission checker with no persistent grant
// layer: "confirmed always" decisions only last for the process lifetime.
func NewChecker() *Checker {
	return &Checker{
		approved: make(map[string]map[PermissionType]bool),
		patterns: make(map[string]map[string]bool),
		pending:  make(map[string]chan event.ConfirmationResponse),
	}
}

// NewCheckerWithGrants creates a permission checker backed by a GrantStore,
// so "confirmed always" decisions against a fully-qualified tool name are
// written to disk and still hold after a restart. Callers should Load the
// store before passing it in.
func NewCheckerWithGrants(grants *GrantStore) *Checker {
	c := NewChecker()
	c.grants = grants
	return c
}

// Check performs a permission check based on action configuration. It
// returns the edited arguments when the user edited a tool call before
// confirming, or nil if none were provided.
func (c *Checker) Check(ctx context.Context, req Request, action PermissionAction) (map[string]any, error) {
	switch action {
	case ActionAllow:
		return nil, nil
	case ActionDeny:
		return nil, &RejectedError{
			SessionID: req.SessionID,
			Type:      req.Type,
			CallID:    req.CallID,
			Metadata:  req.Metadata,
			Message:   "Permission denied by configuration",
		}
	case ActionAsk:
		return c.Ask(ctx, req)
	}
	return nil, nil
}

// Ask prompts the user for permission and blocks until resolved, the
// context is canceled, or a prior "for session"/"always" approval already
// covers the request.
func (c *Checker) Ask(ctx context.Context, req Request) (map[string]any, error) {
	// A standing persistent grant against the fully-qualified tool name
	// wins before any session-scoped check.
	if c.grants != nil && req.ToolName != "" && c.grants.IsGranted(req.ToolName) {
		return nil, nil
	}

	// Check if already approved for this session and type
	c.mu.RLock()
	if sessionApprovals, ok := c.approved[req.SessionID]; ok {
		if sessionApprovals[req.Type] {
			c.mu.RUnlock()
			return nil, nil
		}
	}

	// Check if any pattern is approved
	if len(req.Pattern) > 0 {
		if sessionPatterns, ok := c.patterns[req.SessionID]; ok {
			allApproved := true
			for _, p := range req.Pattern {
				if !sessionPatterns[p] {
					allApproved = false
					break
				}
			}
			if allApproved {
				c.mu.RUnlock()
				return nil, nil
			}
		}
	}
	c.mu.RUnlock()

	if req.ID == "" {
		req.ID = ulid.Make().String()
	}

	respChan := make(chan event.ConfirmationResponse, 1)
	c.mu.Lock()
	c.pending[req.ID] = respChan
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, req.ID)
		c.mu.Unlock()
	}()

	toolName := req.ToolName
	if toolName == "" {
		toolName = string(req.Type)
	}
	args := req.Arguments
	if args == nil && req.Metadata != nil {
		args = req.Metadata
	}

	event.Publish(event.Event{
		Type: event.ConfirmationRequest,
		Data: event.ConfirmationRequestData{
			ID:        req.ID,
			SessionID: req.SessionID,
			ToolName:  toolName,
			Arguments: args,
			Title:     req.Title,
		},
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case resp := <-respChan:
		switch resp.Outcome {
		case event.ConfirmedOnce:
			return nil, nil
		case event.ConfirmedForSession:
			c.approve(req.SessionID, req.Type, nil)
			return nil, nil
		case event.ConfirmedAlways:
			c.approve(req.SessionID, req.Type, req.Pattern)
			if c.grants != nil && req.ToolName != "" {
				// Best-effort: a failed write falls back to the
				// session-scoped approval already recorded above.
				_ = c.grants.Grant(ctx, req.ToolName, time.Now().Unix())
			}
			return nil, nil
		case event.ConfirmationEdited:
			return resp.NewArguments, nil
		case event.ConfirmationRejected:
			return nil, &RejectedError{
				SessionID: req.SessionID,
				Type:      req.Type,
				CallID:    req.CallID,
				Metadata:  req.Metadata,
				Message:   "Permission rejected by user",
			}
		}
	}
	return nil, nil
}

// Respond delivers the shell's confirmation outcome to the Ask call
// waiting on requestID, and publishes nothing further — ConfirmationRequest
// is the only outbound event in this exchange; the inbound response
// travels over the shell's single RPC, not the event bus.
func (c *Checker) Respond(requestID string, resp event.ConfirmationResponse) {
	c.mu.RLock()
	ch, ok := c.pending[requestID]
	c.mu.RUnlock()

	if ok {
		ch <- resp
	}
}

// approve marks a permission type and patterns as approved for a session.
func (c *Checker) approve(sessionID string, permType PermissionType, patterns []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.approved[sessionID] == nil {
		c.approved[sessionID] = make(map[PermissionType]bool)
	}
	c.approved[sessionID][permType] = true

	if len(patterns) > 0 {
		if c.patterns[sessionID] == nil {
			c.patterns[sessionID] = make(map[string]bool)
		}
		for _, p := range patterns {
			c.patterns[sessionID][p] = true
		}
	}
}

// IsApproved checks if a permission type is already approved.
func (c *Checker) IsApproved(sessionID string, permType PermissionType) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if sessionApprovals, ok := c.approved[sessionID]; ok {
		return sessionApprovals[permType]
	}
	return false
}

// IsPatternApproved checks if a specific pattern is approved.
func (c *Checker) IsPatternApproved(sessionID string, pattern string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if sessionPatterns, ok := c.patterns[sessionID]; ok {
		return sessionPatterns[pattern]
	}
	return false
}

// ClearSession clears all approvals for a session.
func (c *Checker) ClearSession(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.approved, sessionID)
	delete(c.patterns, sessionID)
}

// ApprovePattern explicitly approves a pattern for a session.
func (c *Checker) ApprovePattern(sessionID string, pattern string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.patterns[sessionID] == nil {
		c.patterns[sessionID] = make(map[string]bool)
	}
	c.patterns[sessionID][pattern] = true
}
