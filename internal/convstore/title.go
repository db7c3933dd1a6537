package convstore

import "strings"

const maxTitleLength = 50

// DeriveTitle computes a short session title from a user's first message,
// for human-facing session listings: first non-empty line, hard truncation
// with an ellipsis, no LLM round trip. A plain derivation keeps the
// conversation store free of an inference dependency, leaving LLM-polished
// titles as something a caller can overwrite later via SetTitle.
func DeriveTitle(userContent string) string {
	text := strings.TrimSpace(userContent)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			text = line
			break
		}
	}
	if text == "" {
		return "New Session"
	}
	if len(text) > maxTitleLength {
		text = strings.TrimSpace(text[:maxTitleLength-3]) + "..."
	}
	return text
}
