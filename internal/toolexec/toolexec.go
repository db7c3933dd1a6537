// Package toolexec dispatches a resolved tool call through the permission
// checker and the capability-server transport, then records the outcome to
// the conversation store's audit log and (for undo-capable tools) undo
// stack. It is the single execution path shared by the orchestrator's
// per-step tool invocation and the agent loop's per-round tool invocation:
// resolve -> permission-check -> dispatch -> record, generalized from a
// single in-process tool table to a JSON-RPC call through the Tool
// Registry and Server Supervisor.
package toolexec

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/localmind/cortex/internal/convstore"
	"github.com/localmind/cortex/internal/errs"
	"github.com/localmind/cortex/internal/event"
	"github.com/localmind/cortex/internal/permission"
	"github.com/localmind/cortex/internal/registry"
	"github.com/localmind/cortex/internal/rpctransport"
	"github.com/localmind/cortex/internal/supervisor"
	"github.com/localmind/cortex/pkg/types"
)

// MaxToolResultChars is the cap on a tool result's serialized text before
// truncation.
const MaxToolResultChars = 6000

// ToolCallTimeout is the wall-clock deadline around one JSON-RPC tools/call
// request.
const ToolCallTimeout = 30 * time.Second

// Executor wires the Tool Registry, Server Supervisor, permission Checker,
// and Conversation Store together for one session's tool invocations.
type Executor struct {
	Registry   *registry.Registry
	Supervisor *supervisor.Supervisor
	Checker    *permission.Checker
	Store      *convstore.Store
	DoomLoop   *permission.DoomLoopDetector
	// WorkDir anchors relative bash paths and is the boundary external-
	// directory confirmation checks a dangerous command's paths against.
	WorkDir string
}

// New creates an Executor rooted at workDir.
func New(reg *registry.Registry, sup *supervisor.Supervisor, checker *permission.Checker, store *convstore.Store, workDir string) *Executor {
	return &Executor{
		Registry:   reg,
		Supervisor: sup,
		Checker:    checker,
		Store:      store,
		DoomLoop:   permission.NewDoomLoopDetector(),
		WorkDir:    workDir,
	}
}

// Execute resolves, confirms, dispatches, and records one tool call. It
// never returns an error directly: every failure mode (unknown tool,
// rejected permission, transport error, server error) becomes a
// types.ToolResult with Status != AuditSuccess, so callers can feed the
// outcome straight back to the model as a tool-role message.
func (e *Executor) Execute(ctx context.Context, sessionID string, call types.ToolCall, perms permission.AgentPermissions) types.ToolResult {
	start := time.Now()
	result, userConfirmed := e.execute(ctx, sessionID, call, perms)
	wallClock := time.Since(start).Milliseconds()

	argsJSON, _ := json.Marshal(call.Arguments)
	resultJSON, _ := json.Marshal(result.Value)
	_, _ = e.Store.InsertAuditEntry(types.AuditEntry{
		SessionID:     sessionID,
		ToolName:      call.ToolName,
		Arguments:     string(argsJSON),
		Result:        string(resultJSON),
		Status:        result.Status,
		UserConfirmed: userConfirmed,
		WallClockMS:   wallClock,
	})

	event.Publish(event.Event{
		Type: event.ToolResultEvent,
		Data: event.ToolResultData{SessionID: sessionID, ToolCallID: call.ID, Result: result},
	})

	return result
}

func (e *Executor) execute(ctx context.Context, sessionID string, call types.ToolCall, perms permission.AgentPermissions) (types.ToolResult, bool) {
	resolved := e.Registry.Resolve(call.ToolName, registry.DefaultMinSimilarity)
	if resolved.Kind == registry.MatchNotFound {
		msg := fmt.Sprintf("unknown tool %q", call.ToolName)
		if len(resolved.Suggestions) > 0 {
			msg += fmt.Sprintf(" — did you mean %s?", strings.Join(resolved.Suggestions, ", "))
		}
		return types.ToolResult{Error: msg, Status: types.AuditError}, false
	}

	def, _ := e.Registry.Get(resolved.Resolved)
	args := canonicalizeArgs(call.Arguments)

	server, toolName, _ := strings.Cut(resolved.Resolved, ".")
	if server == "audit" {
		args["session_id"] = sessionID
	}

	if e.DoomLoop != nil && e.DoomLoop.Check(sessionID, resolved.Resolved, args) {
		req := permission.Request{
			Type:      permission.PermDoomLoop,
			SessionID: sessionID,
			CallID:    call.ID,
			ToolName:  resolved.Resolved,
			Arguments: args,
			Title:     fmt.Sprintf("%s has been called with the same arguments repeatedly — keep going?", resolved.Resolved),
		}
		if _, err := e.Checker.Check(ctx, req, perms.DoomLoop); err != nil {
			e.DoomLoop.Clear(sessionID)
			if permission.IsRejectedError(err) {
				return types.ToolResult{
					Error:  fmt.Sprintf("Tool '%s' was stopped: repeated identical calls look like a loop.", resolved.Resolved),
					Status: types.AuditRejected,
				}, false
			}
			return types.ToolResult{Error: err.Error(), Status: types.AuditError}, false
		}
		e.DoomLoop.Clear(sessionID)
	}

	userConfirmed := false
	if def.ConfirmationRequired {
		action, patterns := confirmationAction(resolved.Resolved, args, perms)
		req := permission.Request{
			Type:      permission.PermEdit,
			Pattern:   patterns,
			SessionID: sessionID,
			CallID:    call.ID,
			ToolName:  resolved.Resolved,
			Arguments: args,
			Title:     fmt.Sprintf("Run %s", resolved.Resolved),
		}
		edited, err := e.Checker.Check(ctx, req, action)
		if err != nil {
			if permission.IsRejectedError(err) {
				return types.ToolResult{
					Error:  fmt.Sprintf("Tool '%s' was rejected by the user.", resolved.Resolved),
					Status: types.AuditRejected,
				}, false
			}
			return types.ToolResult{Error: err.Error(), Status: types.AuditError}, false
		}
		userConfirmed = true
		if edited != nil {
			args = edited
		}

		if externalDirAction, ok := e.externalDirCheck(ctx, toolName, args, perms); ok {
			req := permission.Request{
				Type:      permission.PermExternalDir,
				SessionID: sessionID,
				CallID:    call.ID,
				ToolName:  resolved.Resolved,
				Arguments: args,
				Title:     fmt.Sprintf("%s touches a path outside %s", resolved.Resolved, e.WorkDir),
			}
			if _, err := e.Checker.Check(ctx, req, externalDirAction); err != nil {
				if permission.IsRejectedError(err) {
					return types.ToolResult{
						Error:  fmt.Sprintf("Tool '%s' was rejected: it reaches outside the working directory.", resolved.Resolved),
						Status: types.AuditRejected,
					}, userConfirmed
				}
				return types.ToolResult{Error: err.Error(), Status: types.AuditError}, userConfirmed
			}
		}
	}

	tr, ok := e.Supervisor.Transport(server)
	if !ok {
		return types.ToolResult{Error: fmt.Sprintf("server %q is not running", server), Status: types.AuditError}, userConfirmed
	}

	callCtx, cancel := context.WithTimeout(ctx, ToolCallTimeout)
	defer cancel()

	raw, err := tr.Request(callCtx, "tools/call", rpctransport.ToolCallParams{Name: toolName, Arguments: args})
	if err != nil {
		return types.ToolResult{Error: err.Error(), Status: types.AuditError}, userConfirmed
	}

	var callResult rpctransport.ToolCallResult
	if err := json.Unmarshal(raw, &callResult); err != nil {
		return types.ToolResult{Error: (&errs.SerializationError{Message: err.Error()}).Error(), Status: types.AuditError}, userConfirmed
	}

	text := joinContent(callResult.Content)
	text = truncate(text, MaxToolResultChars)

	if def.UndoSupported {
		_, _ = e.Store.PushUndo(sessionID, resolved.Resolved, "tool_call", string(argsJSON(args)), text)
	}

	return types.ToolResult{Value: text, Status: types.AuditSuccess}, userConfirmed
}

func argsJSON(args map[string]any) []byte {
	b, _ := json.Marshal(args)
	return b
}

func joinContent(blocks []rpctransport.ContentBlock) string {
	var sb strings.Builder
	for i, b := range blocks {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(b.Text)
	}
	return sb.String()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "\n[truncated]"
}

// confirmationAction maps a resolved tool name to the AgentPermissions
// policy that governs it, and — for bash-family tools — the patterns that
// should be recorded as approved if the user confirms "always". Bash calls
// are parsed with internal/permission's mvdan.cc/sh-based parser so the
// pattern table is matched against the real command (e.g. "git commit *"),
// not the static MCP tool name; everything else falls back to the Edit
// policy, the closest analogue for "this tool changes something and should
// be confirmed".
func confirmationAction(resolvedName string, args map[string]any, perms permission.AgentPermissions) (permission.PermissionAction, []string) {
	_, tool, _ := strings.Cut(resolvedName, ".")
	switch {
	case strings.Contains(tool, "bash") || strings.Contains(tool, "exec"):
		cmds := parseBashArg(args)
		if len(cmds) == 0 {
			return permission.MatchBashPermission(permission.BashCommand{Name: tool}, perms.Bash), nil
		}
		patterns := permission.BuildPatterns(cmds)
		// The least permissive of the parsed commands' individual verdicts
		// governs the whole invocation: a compound command like
		// "ls && rm -rf /" must not slip through on ls's blanket allow.
		action := permission.ActionAllow
		for _, cmd := range cmds {
			switch permission.MatchBashPermission(cmd, perms.Bash) {
			case permission.ActionDeny:
				return permission.ActionDeny, patterns
			case permission.ActionAsk:
				action = permission.ActionAsk
			}
		}
		return action, patterns
	case strings.Contains(tool, "fetch") || strings.Contains(tool, "web"):
		return perms.WebFetch, nil
	default:
		return perms.Edit, nil
	}
}

// parseBashArg pulls the shell command string out of a bash-family tool
// call's arguments and parses it into structured commands. Parse failures
// and non-bash argument shapes both yield no commands, so callers fall back
// to matching on the bare tool name.
func parseBashArg(args map[string]any) []permission.BashCommand {
	raw, ok := args["command"].(string)
	if !ok || raw == "" {
		return nil
	}
	cmds, err := permission.ParseBashCommand(raw)
	if err != nil {
		return nil
	}
	return cmds
}

// externalDirCheck inspects a dangerous bash command's arguments for paths
// that resolve outside the executor's WorkDir. It reports the permission
// action to gate on and whether any such path was found at all — when not
// found, callers should skip the external-directory confirmation entirely
// rather than ask about a tool that never leaves the working directory.
func (e *Executor) externalDirCheck(ctx context.Context, tool string, args map[string]any, perms permission.AgentPermissions) (permission.PermissionAction, bool) {
	if !strings.Contains(tool, "bash") && !strings.Contains(tool, "exec") {
		return permission.ActionAllow, false
	}
	if e.WorkDir == "" {
		return permission.ActionAllow, false
	}

	cmds := parseBashArg(args)
	found := false
	for _, cmd := range cmds {
		if !permission.IsDangerousCommand(cmd.Name) {
			continue
		}
		for _, p := range permission.ExtractPaths(cmd) {
			resolved, err := permission.ResolvePath(ctx, p, e.WorkDir)
			if err != nil {
				continue
			}
			if !permission.IsWithinDir(resolved, e.WorkDir) {
				found = true
			}
		}
	}
	if !found {
		return permission.ActionAllow, false
	}
	return perms.ExternalDir, true
}
