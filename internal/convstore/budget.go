package convstore

import "github.com/localmind/cortex/pkg/types"

// GetBudget computes a session's context-budget breakdown against a model's
// total context window, reserving reservedOutput tokens for the response,
// toolDefTokens for the serialized tool schema currently in scope, and a
// fixed safetyBuffer withheld as headroom against token-estimate drift.
func (s *Store) GetBudget(sessionID string, totalWindow, toolDefTokens, reservedOutput int) (*types.ContextBudget, error) {
	msgs, err := s.GetHistory(sessionID)
	if err != nil {
		return nil, err
	}

	var systemTokens, historyTokens int
	for i, m := range msgs {
		if i == 0 && m.Role == types.RoleSystem {
			systemTokens = m.Tokens
			continue
		}
		historyTokens += m.Tokens
	}

	used := systemTokens + toolDefTokens + historyTokens + reservedOutput + safetyBuffer
	remaining := totalWindow - used
	if remaining < 0 {
		remaining = 0
	}

	return &types.ContextBudget{
		Total:           totalWindow,
		System:          systemTokens,
		ToolDefinitions: toolDefTokens,
		History:         historyTokens,
		ReservedOutput:  reservedOutput,
		Remaining:       remaining,
	}, nil
}
