package llmclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseToolArguments_ValidJSONNeedsNoRepair(t *testing.T) {
	args, err := ParseToolArguments(`{"path": "/tmp/x.txt"}`)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x.txt", args["path"])
}

func TestParseToolArguments_RepairsDoubledQuote(t *testing.T) {
	args, err := ParseToolArguments(`{"path": ""/tmp/x.txt"}`)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x.txt", args["path"])
}

func TestParseToolArguments_RepairsTrailingComma(t *testing.T) {
	args, err := ParseToolArguments(`{"path": "/tmp/x.txt", "limit": 10,}`)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x.txt", args["path"])
	assert.EqualValues(t, 10, args["limit"])
}

func TestParseToolArguments_BalancesMissingClosingBrace(t *testing.T) {
	args, err := ParseToolArguments(`{"path": "/tmp/x.txt"`)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x.txt", args["path"])
}

func TestParseToolArguments_StripsControlChars(t *testing.T) {
	args, err := ParseToolArguments("{\"path\": \"/tmp/x.txt\x07\"}")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x.txt", args["path"])
}

func TestParseToolArguments_PreservesWhitespaceEscapes(t *testing.T) {
	args, err := ParseToolArguments(`{"note": "line one\nline two"}`)
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two", args["note"])
}

func TestParseToolArguments_UnrepairableStillErrors(t *testing.T) {
	_, err := ParseToolArguments(`not json at all {{{`)
	require.Error(t, err)
}

func TestNormalizeOutboundContent_NullBecomesEmptyString(t *testing.T) {
	out, err := NormalizeOutboundContent([]byte(`{"role":"assistant","content":null,"tool_calls":[{"id":"1"}]}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"role":"assistant","content":"","tool_calls":[{"id":"1"}]}`, string(out))
}

func TestNormalizeOutboundContent_LeavesNonNullContentAlone(t *testing.T) {
	out, err := NormalizeOutboundContent([]byte(`{"role":"user","content":"hi"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"role":"user","content":"hi"}`, string(out))
}

func TestExtractContent_DiscardsReasoning(t *testing.T) {
	content, err := ExtractContent([]byte(`{"content":"the answer","reasoning":"step by step thinking"}`))
	require.NoError(t, err)
	assert.Equal(t, "the answer", content)
}

func TestExtractContent_EmptyContentWithOnlyReasoning(t *testing.T) {
	content, err := ExtractContent([]byte(`{"reasoning":"thinking..."}`))
	require.NoError(t, err)
	assert.Empty(t, content)
}
