package plantemplate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localmind/cortex/internal/planparse"
)

// TestMatch_ReceiptReconciliationScenario verifies that a message
// requesting receipt organization into a CSV produces the four-step UC-1
// template in filesystem -> document -> data -> task order, without ever
// invoking the planner model.
func TestMatch_ReceiptReconciliationScenario(t *testing.T) {
	msg := "Scan and organize the receipts in my ~/Documents/Expenses folder and extract the data into a CSV spreadsheet."
	plan, name, ok := Match(msg)
	require.True(t, ok)
	assert.Equal(t, "receipt_reconciliation", name)
	require.Len(t, plan.Steps, 4)
	assert.Equal(t, []string{"filesystem", "document", "data", "task"}, serverOrder(plan))
	assert.Contains(t, plan.Steps[0].Description, "~/Documents/Expenses")
}

func TestMatch_DownloadTriageTakesPriorityOverReceipt(t *testing.T) {
	// Contains both download-triage and receipt-reconciliation signal
	// keywords ("expense" receipts, "organize", "scan") — download_triage
	// must win because it is checked first.
	msg := "Please triage my downloads folder: organize expense files, move them, scan for PII, then create a follow up task."
	_, name, ok := Match(msg)
	require.True(t, ok)
	assert.Equal(t, "download_triage", name)
}

func TestMatch_BelowThresholdReturnsNoMatch(t *testing.T) {
	_, _, ok := Match("what's the weather like today?")
	assert.False(t, ok)
}

func TestPathHint_BacktickPathWins(t *testing.T) {
	hint := pathHint("please scan `~/Desktop/taxes` for receipts")
	assert.Equal(t, "~/Desktop/taxes", hint)
}

func TestPathHint_BareAbsolutePath(t *testing.T) {
	hint := pathHint("organize the files in /home/alice/Inbox now")
	assert.Equal(t, "/home/alice/Inbox", hint)
}

func TestPathHint_WellKnownFolder(t *testing.T) {
	hint := pathHint("clean up my downloads folder please")
	assert.Equal(t, "~/Downloads", hint)
}

func TestPathHint_DefaultsWhenNothingFound(t *testing.T) {
	hint := pathHint("organize my receipts and make a csv")
	assert.Equal(t, "~/Downloads", hint)
}

func serverOrder(plan *planparse.StepPlan) []string {
	out := make([]string, len(plan.Steps))
	for i, s := range plan.Steps {
		out[i] = s.Server
	}
	return out
}
