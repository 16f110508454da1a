package llm

import (
	"regexp"
	"strings"
)

// fencedBlockPattern matches a markdown code fence, optionally tagged json,
// capturing the fenced content.
var fencedBlockPattern = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)```")

// ExtractJSONPayload prepares a raw LLM response for JSON parsing. The
// response is trimmed; if it contains a fenced code block the fenced content
// is used instead of the surrounding prose. No validation is performed here -
// the caller owns the parse and its failure handling.
func ExtractJSONPayload(response string) string {
	trimmed := strings.TrimSpace(response)

	matches := fencedBlockPattern.FindStringSubmatch(trimmed)
	if len(matches) >= 2 {
		return strings.TrimSpace(matches[1])
	}

	return trimmed
}
