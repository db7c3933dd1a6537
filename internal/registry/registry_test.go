package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localmind/cortex/pkg/types"
)

func fqDef(name string) types.ToolDefinition {
	return types.ToolDefinition{Name: name, ParameterSchema: []byte(`{"required":["path"]}`)}
}

func TestRegisterServerTools_AutoPrefixesUnqualifiedNames(t *testing.T) {
	r := New()
	r.RegisterServerTools("filesystem", []types.ToolDefinition{{Name: "list_dir"}})
	_, ok := r.Get("filesystem.list_dir")
	assert.True(t, ok)
}

func TestUnregisterServer_RemovesAllEntries(t *testing.T) {
	r := New()
	r.RegisterServerTools("filesystem", []types.ToolDefinition{{Name: "list_dir"}, {Name: "read_file"}})
	r.RegisterServerTools("task", []types.ToolDefinition{{Name: "create_task"}})

	r.UnregisterServer("filesystem")

	_, ok := r.Get("filesystem.list_dir")
	assert.False(t, ok)
	_, ok = r.Get("task.create_task")
	assert.True(t, ok)

	tools := r.ToOpenAITools()
	assert.Len(t, tools, 1)
}

func TestResolve_Exact(t *testing.T) {
	r := New()
	r.RegisterServerTools("filesystem", []types.ToolDefinition{{Name: "list_dir"}})
	res := r.Resolve("filesystem.list_dir", DefaultMinSimilarity)
	assert.Equal(t, MatchExact, res.Kind)
	assert.Equal(t, "filesystem.list_dir", res.Resolved)
}

func TestResolve_UnprefixedSingleMatch(t *testing.T) {
	r := New()
	r.RegisterServerTools("filesystem", []types.ToolDefinition{{Name: "list_dir"}})
	res := r.Resolve("list_dir", DefaultMinSimilarity)
	assert.Equal(t, MatchUnprefixed, res.Kind)
	assert.Equal(t, "filesystem.list_dir", res.Resolved)
}

func TestResolve_UnprefixedAmbiguousIsNotFound(t *testing.T) {
	r := New()
	r.RegisterServerTools("filesystem", []types.ToolDefinition{{Name: "list_dir"}})
	r.RegisterServerTools("other", []types.ToolDefinition{{Name: "list_dir"}})
	res := r.Resolve("list_dir", DefaultMinSimilarity)
	assert.Equal(t, MatchNotFound, res.Kind)
}

func TestResolve_SemanticAliasBeatsFuzzyNeighbor(t *testing.T) {
	r := New()
	r.RegisterServerTools("filesystem", []types.ToolDefinition{
		{Name: "move_file"},
		{Name: "read_file"},
	})
	res := r.Resolve("filesystem.rename_file", DefaultMinSimilarity)
	require.Equal(t, MatchCorrected, res.Kind)
	assert.Equal(t, "filesystem.move_file", res.Resolved)
	assert.Equal(t, 1.0, res.Score)
}

func TestResolve_SameServerFuzzyMatch(t *testing.T) {
	r := New()
	r.RegisterServerTools("filesystem", []types.ToolDefinition{{Name: "list_directory"}})
	res := r.Resolve("filesystem.list_directry", 0.6)
	require.Equal(t, MatchCorrected, res.Kind)
	assert.Equal(t, "filesystem.list_directory", res.Resolved)
}

func TestResolve_NotFoundBelowThreshold(t *testing.T) {
	r := New()
	r.RegisterServerTools("filesystem", []types.ToolDefinition{{Name: "list_directory"}})
	res := r.Resolve("filesystem.completely_unrelated_xyz", 0.6)
	assert.Equal(t, MatchNotFound, res.Kind)
}

func TestResolve_EmptyRegistryAlwaysNotFound(t *testing.T) {
	r := New()
	res := r.Resolve("anything.here", DefaultMinSimilarity)
	assert.Equal(t, MatchNotFound, res.Kind)
}

func TestValidateToolCall_MissingRequiredField(t *testing.T) {
	r := New()
	r.RegisterServerTools("filesystem", []types.ToolDefinition{fqDef("filesystem.read_file")})
	err := r.ValidateToolCall("filesystem.read_file", map[string]any{})
	require.Error(t, err)
}

func TestValidateToolCall_UnknownTool(t *testing.T) {
	r := New()
	err := r.ValidateToolCall("nope.nope", nil)
	require.Error(t, err)
}

func TestCapabilitySummary_EmptyRegistryMentionsBuiltins(t *testing.T) {
	r := New()
	summary := r.CapabilitySummary([]string{"read", "write"})
	assert.Contains(t, summary, "No MCP tools currently available")
	assert.Contains(t, summary, "read")
}

func TestToOpenAIToolsFiltered_OnlyNamedSubset(t *testing.T) {
	r := New()
	r.RegisterServerTools("filesystem", []types.ToolDefinition{{Name: "list_dir"}, {Name: "read_file"}})
	got := r.ToOpenAIToolsFiltered([]string{"filesystem.list_dir", "nonexistent"})
	require.Len(t, got, 1)
	assert.Equal(t, "filesystem.list_dir", got[0].Function.Name)
}

func TestServerRemovedContributesZeroTools(t *testing.T) {
	r := New()
	r.RegisterServerTools("filesystem", []types.ToolDefinition{{Name: "list_dir"}})
	r.UnregisterServer("filesystem")
	assert.Empty(t, r.ToOpenAITools())
}
