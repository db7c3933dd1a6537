package llmclient

import "encoding/json"

// ParseToolArguments unmarshals a tool call's raw argument JSON into a
// generic map, running the repair pipeline once and retrying if the first
// attempt fails. Returns the last error if both attempts fail.
func ParseToolArguments(raw string) (map[string]any, error) {
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err == nil {
		return args, nil
	}

	repaired := RepairToolArguments(raw)
	if err := json.Unmarshal([]byte(repaired), &args); err != nil {
		return nil, err
	}
	return args, nil
}
