package planparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_BracketSteps(t *testing.T) {
	out := `[plan.add_step(step=1, server="filesystem", description="find the receipts folder")]
[plan.add_step(step=2, server="document", description="extract totals from each receipt")]
[plan.done()]`

	plan, err := Parse(out)
	require.NoError(t, err)
	assert.True(t, plan.NeedsTools)
	require.Len(t, plan.Steps, 2)
	assert.Equal(t, 1, plan.Steps[0].Step)
	assert.Equal(t, "filesystem", plan.Steps[0].Server)
	assert.Equal(t, "find the receipts folder", plan.Steps[0].Description)
	assert.Equal(t, 2, plan.Steps[1].Step)
}

func TestParse_BracketRespond(t *testing.T) {
	out := `[plan.respond(message="The capital of France is Paris.")]`
	plan, err := Parse(out)
	require.NoError(t, err)
	assert.False(t, plan.NeedsTools)
	assert.Equal(t, "The capital of France is Paris.", plan.DirectResponse)
}

func TestParse_BackslashEscapedQuotes(t *testing.T) {
	out := `[plan.respond(message="She said \"hello\" to me")]`
	plan, err := Parse(out)
	require.NoError(t, err)
	assert.Equal(t, `She said "hello" to me`, plan.DirectResponse)
}

func TestParse_JSONFallback(t *testing.T) {
	out := "Here is my plan:\n" + `{"needsTools": true, "steps": [{"step": 1, "server": "filesystem", "description": "list files"}]}` + "\nthat's it"
	plan, err := Parse(out)
	require.NoError(t, err)
	assert.True(t, plan.NeedsTools)
	require.Len(t, plan.Steps, 1)
	assert.Equal(t, "filesystem", plan.Steps[0].Server)
}

func TestParse_NoValidCallReturnsInvalidPlanError(t *testing.T) {
	_, err := Parse("I don't know what to do here.")
	require.Error(t, err)
	var invalidErr *InvalidPlanError
	assert.ErrorAs(t, err, &invalidErr)
}

func TestParse_IgnoresUnrelatedBracketText(t *testing.T) {
	out := "[not a plan call]\n" + `[plan.respond(message="ok")]`
	plan, err := Parse(out)
	require.NoError(t, err)
	assert.Equal(t, "ok", plan.DirectResponse)
}

func TestParse_IntegerArgumentConsumesLeadingDigits(t *testing.T) {
	out := `[plan.add_step(server="s", description="d", step=3)]`
	plan, err := Parse(out)
	require.NoError(t, err)
	require.Len(t, plan.Steps, 1)
	assert.Equal(t, 3, plan.Steps[0].Step)
	assert.Equal(t, "s", plan.Steps[0].Server)
}
