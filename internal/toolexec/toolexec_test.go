package toolexec

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localmind/cortex/internal/convstore"
	"github.com/localmind/cortex/internal/permission"
	"github.com/localmind/cortex/internal/registry"
	"github.com/localmind/cortex/internal/supervisor"
	"github.com/localmind/cortex/pkg/types"
)

func TestCanonicalizePath_Tilde(t *testing.T) {
	home, _ := os.UserHomeDir()
	assert.Equal(t, home, canonicalizePath("~"))
	assert.Equal(t, home+"/notes.txt", canonicalizePath("~/notes.txt"))
}

func TestCanonicalizePath_PlaceholderHomePrefix(t *testing.T) {
	home, _ := os.UserHomeDir()
	assert.Equal(t, home+"/report.pdf", canonicalizePath("/home/{user}/report.pdf"))
	assert.Equal(t, home+"/report.pdf", canonicalizePath("/Users/me/report.pdf"))
}

func TestCanonicalizePath_RealUsernameUntouched(t *testing.T) {
	assert.Equal(t, "/home/alice/report.pdf", canonicalizePath("/home/alice/report.pdf"))
}

func TestCanonicalizePath_WellKnownSubdir(t *testing.T) {
	home, _ := os.UserHomeDir()
	assert.Equal(t, home+"/Downloads/report.pdf", canonicalizePath("Downloads/report.pdf"))
}

func TestCanonicalizePath_UnrelatedRelativeUntouched(t *testing.T) {
	assert.Equal(t, "scratch/report.pdf", canonicalizePath("scratch/report.pdf"))
}

func TestCanonicalizeArgs_OnlyRewritesPathKeys(t *testing.T) {
	home, _ := os.UserHomeDir()
	out := canonicalizeArgs(map[string]any{
		"path":    "~/x.txt",
		"message": "~/x.txt",
		"count":   3,
	})
	assert.Equal(t, home+"/x.txt", out["path"])
	assert.Equal(t, "~/x.txt", out["message"])
	assert.Equal(t, 3, out["count"])
}

func TestCanonicalizeArgs_DoesNotMutateInput(t *testing.T) {
	in := map[string]any{"path": "~/x.txt"}
	out := canonicalizeArgs(in)
	out["path"] = "changed"
	assert.Equal(t, "~/x.txt", in["path"])
}

func TestConfirmationAction_BashUsesPatternTable(t *testing.T) {
	perms := permission.DefaultAgentPermissions()
	perms.Bash = map[string]permission.PermissionAction{"*": permission.ActionAllow}
	action, patterns := confirmationAction("fs.bash", map[string]any{"command": "ls -la"}, perms)
	assert.Equal(t, permission.ActionAllow, action)
	assert.Equal(t, []string{"ls *"}, patterns)
}

func TestConfirmationAction_BashMatchesRealCommandNotToolName(t *testing.T) {
	perms := permission.DefaultAgentPermissions()
	perms.Bash = map[string]permission.PermissionAction{"git commit *": permission.ActionAllow}
	action, patterns := confirmationAction("fs.bash", map[string]any{"command": "git commit -m wip"}, perms)
	assert.Equal(t, permission.ActionAllow, action)
	assert.Equal(t, []string{"git commit *"}, patterns)
}

func TestConfirmationAction_BashDenyWinsOverAllowInCompoundCommand(t *testing.T) {
	perms := permission.DefaultAgentPermissions()
	perms.Bash = map[string]permission.PermissionAction{"ls *": permission.ActionAllow, "rm *": permission.ActionDeny}
	action, _ := confirmationAction("fs.bash", map[string]any{"command": "ls && rm -rf /tmp/x"}, perms)
	assert.Equal(t, permission.ActionDeny, action)
}

func TestConfirmationAction_DefaultFallsBackToEdit(t *testing.T) {
	perms := permission.DefaultAgentPermissions()
	perms.Edit = permission.ActionDeny
	action, patterns := confirmationAction("fs.write", nil, perms)
	assert.Equal(t, permission.ActionDeny, action)
	assert.Nil(t, patterns)
}

func TestExecute_UnknownToolReturnsErrorResult(t *testing.T) {
	store, err := convstore.Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	exec := New(registry.New(), supervisor.New(), permission.NewChecker(), store, t.TempDir())
	result := exec.Execute(context.Background(), "sess-1", types.ToolCall{
		ID:       "call-1",
		ToolName: "nonexistent.tool",
	}, permission.DefaultAgentPermissions())

	assert.Equal(t, types.AuditError, result.Status)
	assert.Contains(t, result.Error, "unknown tool")
}

func TestExecute_AllowedToolWithNoRunningServerErrors(t *testing.T) {
	store, err := convstore.Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	reg := registry.New()
	reg.RegisterServerTools("fs", []types.ToolDefinition{
		{Name: "read", ConfirmationRequired: false},
	})

	exec := New(reg, supervisor.New(), permission.NewChecker(), store, t.TempDir())
	result := exec.Execute(context.Background(), "sess-1", types.ToolCall{
		ID:        "call-1",
		ToolName:  "fs.read",
		Arguments: map[string]any{"path": "~/x.txt"},
	}, permission.DefaultAgentPermissions())

	assert.Equal(t, types.AuditError, result.Status)
	assert.Contains(t, result.Error, "not running")
}

func TestExecute_DeniedToolReturnsRejected(t *testing.T) {
	store, err := convstore.Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	reg := registry.New()
	reg.RegisterServerTools("fs", []types.ToolDefinition{
		{Name: "write", ConfirmationRequired: true},
	})

	perms := permission.DefaultAgentPermissions()
	perms.Edit = permission.ActionDeny

	exec := New(reg, supervisor.New(), permission.NewChecker(), store, t.TempDir())
	result := exec.Execute(context.Background(), "sess-1", types.ToolCall{
		ID:       "call-1",
		ToolName: "fs.write",
	}, perms)

	assert.Equal(t, types.AuditRejected, result.Status)
	assert.Contains(t, result.Error, "rejected by the user")
}
