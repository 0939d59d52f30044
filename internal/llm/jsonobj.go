package llm

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoJSONObject is returned when a completion holds no decodable JSON object.
var ErrNoJSONObject = errors.New("llmclient: completion is not a JSON object")

// DecodeObject parses a completion into a JSON object. It tolerates markdown
// code fences and prose around the outermost braces.
func DecodeObject(content string) (map[string]any, error) {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(s), &out); err == nil && out != nil {
		return out, nil
	}

	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return nil, ErrNoJSONObject
	}
	if err := json.Unmarshal([]byte(s[start:end+1]), &out); err != nil || out == nil {
		return nil, ErrNoJSONObject
	}
	return out, nil
}
