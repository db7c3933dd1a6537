package agentloop

import (
	"context"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localmind/cortex/internal/convstore"
	"github.com/localmind/cortex/internal/modelcall"
	"github.com/localmind/cortex/internal/permission"
	"github.com/localmind/cortex/internal/provider"
	"github.com/localmind/cortex/internal/registry"
	"github.com/localmind/cortex/internal/supervisor"
	"github.com/localmind/cortex/internal/toolexec"
	"github.com/localmind/cortex/pkg/types"
)

// fakeProvider streams a fixed sequence of message chunks regardless of
// the request, enough to exercise Run's control flow without a live model.
type fakeProvider struct {
	id     string
	chunks []*schema.Message
}

func (f *fakeProvider) ID() string                          { return f.id }
func (f *fakeProvider) Name() string                         { return f.id }
func (f *fakeProvider) Models() []types.Model                { return nil }
func (f *fakeProvider) ChatModel() model.ToolCallingChatModel { return nil }
func (f *fakeProvider) CreateCompletion(ctx context.Context, req *provider.CompletionRequest) (*provider.CompletionStream, error) {
	return provider.NewCompletionStream(schema.StreamReaderFromArray(f.chunks)), nil
}

func newTestLoop(t *testing.T, chunks []*schema.Message) (*Loop, string) {
	t.Helper()
	store, err := convstore.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	sess, err := store.NewSession("You are a helpful assistant.")
	require.NoError(t, err)

	reg := registry.New()
	sup := supervisor.New()
	checker := permission.NewChecker()
	exec := toolexec.New(reg, sup, checker, store, t.TempDir())

	cfg := &types.Config{ActiveModel: "test-model"}
	provReg := provider.NewRegistry(cfg)
	provReg.Register(&fakeProvider{id: "test-model", chunks: chunks})
	caller := modelcall.New(provReg, cfg)

	loop := New(caller, reg, exec, store, cfg)
	return loop, sess.ID
}

func TestRun_TextOnlyResponseExitsImmediately(t *testing.T) {
	loop, sessionID := newTestLoop(t, []*schema.Message{
		{Role: schema.Assistant, Content: "The answer is 42."},
	})
	_, err := loop.Store.AddUserMessage(sessionID, "What is the answer?")
	require.NoError(t, err)

	result, err := loop.Run(context.Background(), sessionID, permission.DefaultAgentPermissions())
	require.NoError(t, err)
	assert.Equal(t, "The answer is 42.", result.FinalText)
	assert.False(t, result.ForcedSummary)
	assert.Equal(t, 1, result.RoundsUsed)
}

func TestRun_EmptyResponsesForceSummaryAfterMaxRetries(t *testing.T) {
	loop, sessionID := newTestLoop(t, []*schema.Message{{Role: schema.Assistant, Content: ""}})
	_, err := loop.Store.AddUserMessage(sessionID, "Do something.")
	require.NoError(t, err)

	result, err := loop.Run(context.Background(), sessionID, permission.DefaultAgentPermissions())
	require.NoError(t, err)
	assert.True(t, result.ForcedSummary)
}

func TestLoopGuard_DuplicateCallStreakTripsAtThreshold(t *testing.T) {
	g := newLoopGuard()
	args := map[string]any{"path": "/tmp/a.txt"}
	assert.False(t, g.recordCall("local.read_file", args))
	assert.True(t, g.recordCall("local.read_file", args))
}

func TestLoopGuard_DifferentArgsResetsStreak(t *testing.T) {
	g := newLoopGuard()
	assert.False(t, g.recordCall("local.read_file", map[string]any{"path": "/tmp/a.txt"}))
	assert.False(t, g.recordCall("local.read_file", map[string]any{"path": "/tmp/b.txt"}))
}

func TestLoopGuard_SameToolFailureDisablesToolAfterThreshold(t *testing.T) {
	g := newLoopGuard()
	reg := registry.New()
	for i := 0; i < MaxSameToolFailures; i++ {
		hint := g.recordRound([]recordedCall{{toolName: "local.bad_tool", success: false}}, reg)
		if i == MaxSameToolFailures-1 {
			assert.Contains(t, hint, "local.bad_tool")
		}
	}
	defs := []types.ToolDefinition{{Name: "local.bad_tool"}, {Name: "local.good_tool"}}
	active := g.activeToolDefs(defs)
	require.Len(t, active, 1)
	assert.Equal(t, "local.good_tool", active[0].Name)
}

func TestLoopGuard_SuccessResetsFailureCount(t *testing.T) {
	g := newLoopGuard()
	reg := registry.New()
	g.recordRound([]recordedCall{{toolName: "local.flaky", success: false}}, reg)
	g.recordRound([]recordedCall{{toolName: "local.flaky", success: true}}, reg)
	assert.Equal(t, 0, g.toolFailures["local.flaky"])
}

func TestLoopGuard_ConsecutiveErrorRoundsTripsAtThreshold(t *testing.T) {
	g := newLoopGuard()
	reg := registry.New()
	var hint string
	for i := 0; i < MaxConsecutiveErrorRounds; i++ {
		hint = g.recordRound([]recordedCall{{toolName: "local.missing", success: false}}, reg)
	}
	assert.NotEmpty(t, hint)
	assert.Equal(t, 0, g.consecutiveErrorRounds, "counter resets after tripping")
}

func TestBuildToolInfos_MapsRequiredFields(t *testing.T) {
	defs := []types.ToolDefinition{
		{
			Name:            "local.read_file",
			Description:     "Reads a file",
			ParameterSchema: []byte(`{"properties":{"path":{"type":"string","description":"file path"}},"required":["path"]}`),
		},
	}
	infos := buildToolInfos(defs)
	require.Len(t, infos, 1)
	assert.Equal(t, "local.read_file", infos[0].Name)
}
