package llm

import (
	"bufio"
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractResult finds the planner/builder wrapper's final `.result` field
// in raw CLI output. Output may be a single JSON object or a stream of
// newline-delimited JSON events (stream-json mode); in the latter case the
// last line carrying a top-level "result" field wins.
func ExtractResult(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("llm: empty output")
	}

	if trimmed[0] == '{' && looksLikeSingleObject(trimmed) {
		if result, ok := resultField(trimmed); ok {
			return result, nil
		}
	}

	var lastResult string
	found := false
	scanner := bufio.NewScanner(strings.NewReader(trimmed))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if result, ok := resultField(line); ok {
			lastResult = result
			found = true
		}
	}
	if found {
		return lastResult, nil
	}
	return "", fmt.Errorf("llm: no .result field found in output")
}

func looksLikeSingleObject(s string) bool {
	return !strings.Contains(strings.TrimSpace(s), "\n")
}

func resultField(line string) (string, bool) {
	var event map[string]json.RawMessage
	if err := json.Unmarshal([]byte(line), &event); err != nil {
		return "", false
	}
	raw, ok := event["result"]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// ExtractJSON extracts the first balanced JSON value (object or array)
// from s, tolerating surrounding prose the way planner/builder models
// often wrap their JSON answer in commentary.
func ExtractJSON(s string) (string, error) {
	start := -1
	for i, r := range s {
		if r == '{' || r == '[' {
			start = i
			break
		}
	}
	if start == -1 {
		return "", fmt.Errorf("llm: no JSON value found")
	}
	open := rune(s[start])
	close := '}'
	if open == '[' {
		close = ']'
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := rune(s[i])
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("llm: unbalanced JSON value")
}
