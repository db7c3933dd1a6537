// Package plantemplate matches a user's request against known multi-step
// workflow patterns before the planner model is ever called, returning a
// fully-formed StepPlan directly when confidence is high. Grounded on
// original_source's plan_templates.rs (UC-1 receipt reconciliation, UC-4
// download triage, UC-7 contract copilot) and its keyword-group scoring
// idiom, reimplemented in Go as an ordered slice of templates following
// internal/permission/wildcard.go's ordered-table-first-match-wins pattern.
package plantemplate

import (
	"fmt"
	"strings"

	"github.com/localmind/cortex/internal/planparse"
)

// matchThreshold is the minimum number of matched keyword groups for a
// template to fire; this avoids false positives on simple messages.
const matchThreshold = 3

// template is one known use-case pattern: an ordered set of keyword groups
// scored against the lowercased message, plus a builder that produces the
// concrete plan once a path hint has been extracted.
type template struct {
	name          string
	keywordGroups [][]string
	build         func(pathHint string) *planparse.StepPlan
}

// templates is checked in order; more specific templates are listed first
// so a generic phrase doesn't false-positive into a broader one (e.g.
// "download" triage before the more general receipt-reconciliation match).
var templates = []template{
	{
		name: "download_triage",
		keywordGroups: [][]string{
			{"download"},
			{"organize", "classify", "sort", "clean up", "triage"},
			{"move", "file", "rename"},
			{"pii", "sensitive", "scan", "security"},
			{"task", "follow up", "remediat"},
		},
		build: buildDownloadTriage,
	},
	{
		name: "receipt_reconciliation",
		keywordGroups: [][]string{
			{"receipt", "invoice", "expense"},
			{"folder", "directory", "files in"},
			{"organize", "reconcil", "spreadsheet", "csv", "categoriz"},
			{"scan", "extract", "ocr"},
		},
		build: buildReceiptReconciliation,
	},
	{
		name: "contract_copilot",
		keywordGroups: [][]string{
			{"contract", "nda", "agreement", "legal"},
			{"compare", "diff", "review", "analyz"},
			{"email", "draft", "send", "counsel"},
		},
		build: buildContractCopilot,
	},
}

// Match scores message against every template in order and returns the
// first one whose score reaches matchThreshold, or false if none do.
func Match(message string) (*planparse.StepPlan, string, bool) {
	lower := strings.ToLower(message)
	for _, t := range templates {
		if keywordScore(lower, t.keywordGroups) >= matchThreshold {
			return t.build(pathHint(message)), t.name, true
		}
	}
	return nil, "", false
}

// keywordScore counts how many groups have at least one term present in
// lower.
func keywordScore(lower string, groups [][]string) int {
	score := 0
	for _, group := range groups {
		for _, kw := range group {
			if strings.Contains(lower, kw) {
				score++
				break
			}
		}
	}
	return score
}

// pathHint extracts a path reference from the message in priority order:
// a backtick-quoted path containing a slash, a bare absolute/home-relative
// path token, a well-known folder name, or else the default "~/Downloads".
func pathHint(message string) string {
	if p, ok := backtickPath(message); ok {
		return p
	}
	if p, ok := bareAbsolutePath(message); ok {
		return p
	}
	if p, ok := wellKnownFolder(message); ok {
		return p
	}
	return "~/Downloads"
}

func backtickPath(text string) (string, bool) {
	searchFrom := 0
	for {
		rel := strings.IndexByte(text[searchFrom:], '`')
		if rel < 0 {
			return "", false
		}
		start := searchFrom + rel + 1
		relEnd := strings.IndexByte(text[start:], '`')
		if relEnd < 0 {
			return "", false
		}
		content := text[start : start+relEnd]
		if strings.Contains(content, "/") {
			return content, true
		}
		searchFrom = start + relEnd + 1
	}
}

func bareAbsolutePath(text string) (string, bool) {
	for _, word := range strings.Fields(text) {
		clean := strings.Trim(word, "`'\",)")
		if len(clean) > 2 && (strings.HasPrefix(clean, "/") || strings.HasPrefix(clean, "~/")) {
			return clean, true
		}
	}
	return "", false
}

func wellKnownFolder(text string) (string, bool) {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "downloads folder") || strings.Contains(lower, "downloads directory") ||
		strings.Contains(lower, "my downloads") || (strings.Contains(lower, "downloads") && strings.Contains(lower, "folder")):
		return "~/Downloads", true
	case strings.Contains(lower, "documents folder") || strings.Contains(lower, "documents directory"):
		return "~/Documents", true
	case strings.Contains(lower, "desktop folder") || strings.Contains(lower, "desktop directory") || strings.Contains(lower, "my desktop"):
		return "~/Desktop", true
	case strings.Contains(lower, "home folder") || strings.Contains(lower, "home directory"):
		return "~", true
	}
	return "", false
}

func buildReceiptReconciliation(path string) *planparse.StepPlan {
	return &planparse.StepPlan{
		NeedsTools: true,
		Steps: []planparse.Step{
			{Step: 1, Server: "filesystem", Description: fmt.Sprintf("List all files in %s to find receipts, invoices, and expense documents", path)},
			{Step: 2, Server: "document", Description: "Using the result from step 1, extract text from each receipt or invoice file (OCR for images, text extraction for PDFs)"},
			{Step: 3, Server: "data", Description: "Using the extracted text from step 2, write the structured receipt data (vendor, date, amount, category) to a CSV spreadsheet"},
			{Step: 4, Server: "task", Description: "Using the results from step 3, create a follow-up task to review the reconciled receipts and flag any anomalies"},
		},
	}
}

func buildDownloadTriage(path string) *planparse.StepPlan {
	return &planparse.StepPlan{
		NeedsTools: true,
		Steps: []planparse.Step{
			{Step: 1, Server: "filesystem", Description: fmt.Sprintf("List all files in %s to identify what needs to be triaged", path)},
			{Step: 2, Server: "document", Description: "Using the result from step 1, extract text from document files (PDFs, DOCX) to understand their content for classification"},
			{Step: 3, Server: "security", Description: "Using the result from step 1, scan all files for PII (SSNs, credit card numbers) and secrets (API keys, passwords)"},
			{Step: 4, Server: "filesystem", Description: fmt.Sprintf("Using the results from steps 2 and 3, move files from %s to appropriate categorized folders", path)},
			{Step: 5, Server: "task", Description: "Using the results from steps 3 and 4, create a remediation task for any files with PII or security findings"},
		},
	}
}

func buildContractCopilot(_ string) *planparse.StepPlan {
	return &planparse.StepPlan{
		NeedsTools: true,
		Steps: []planparse.Step{
			{Step: 1, Server: "document", Description: "Extract text from the contract or NDA document provided"},
			{Step: 2, Server: "knowledge", Description: "Using the extracted text from step 1, search the knowledge base for similar clauses or related contract precedents"},
			{Step: 3, Server: "email", Description: "Using the findings from steps 1 and 2, draft a summary email to counsel highlighting notable clauses and precedents"},
		},
	}
}
