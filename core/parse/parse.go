package parse

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// ParseStringAs parses model output into the target type T.
//
// For string targets the content is returned as-is (minus code fences, if
// the whole payload is fenced). For all other types the content is stripped
// of markdown fences and unmarshaled as JSON; if that fails the JSON is
// repaired with jsonrepair and unmarshaling is retried once.
//
// Example usage:
//
//	type ShellArgs struct {
//	    Command string `json:"command"`
//	}
//
//	// Valid JSON
//	args, err := ParseStringAs[ShellArgs](`{"command":"ls"}`)
//
//	// Near-JSON emitted by a model (auto-repaired)
//	args, err := ParseStringAs[ShellArgs]("```json\n{command: 'ls'}\n```")
func ParseStringAs[T any](content string) (T, error) {
	var result T

	cleaned := StripCodeFence(content)

	if reflect.TypeFor[T]().Kind() == reflect.String {
		reflect.ValueOf(&result).Elem().SetString(cleaned)
		return result, nil
	}

	err := json.Unmarshal([]byte(cleaned), &result)
	if err == nil {
		return result, nil
	}

	repaired, repairErr := jsonrepair.JSONRepair(cleaned)
	if repairErr != nil {
		return result, fmt.Errorf("failed to parse content as %T: %w (repair also failed: %v)", result, err, repairErr)
	}

	if err = json.Unmarshal([]byte(repaired), &result); err != nil {
		return result, fmt.Errorf("failed to parse repaired content as %T: %w", result, err)
	}

	return result, nil
}

// StripCodeFence removes a surrounding markdown code fence, with optional
// language tag, when the entire payload is fenced. Content without a fence
// is returned trimmed but otherwise unchanged.
func StripCodeFence(content string) string {
	trimmed := strings.TrimSpace(content)

	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	withoutOpen := strings.TrimPrefix(trimmed, "```")
	if newline := strings.IndexByte(withoutOpen, '\n'); newline >= 0 {
		// Drop the language tag line (e.g. "json")
		firstLine := strings.TrimSpace(withoutOpen[:newline])
		if firstLine == "" || isLanguageTag(firstLine) {
			withoutOpen = withoutOpen[newline+1:]
		}
	}

	withoutClose, found := strings.CutSuffix(strings.TrimSpace(withoutOpen), "```")
	if !found {
		return trimmed
	}

	return strings.TrimSpace(withoutClose)
}

func isLanguageTag(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
