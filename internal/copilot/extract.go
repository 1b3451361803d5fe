package copilot

import (
	"regexp"
	"strings"
)

var (
	fencedJSONBlock = regexp.MustCompile("(?s)```json\\s*(.*?)```")
	fencedAnyBlock  = regexp.MustCompile("(?s)```[a-zA-Z0-9]*\\s*(.*?)```")
)

// ExtractJSONBlock pulls a JSON candidate out of generated text using a
// layered fallback: a fenced block tagged json, then any fenced block, then
// the whole trimmed text when it is bracket-delimited. Fenced content is
// always extracted even when it turns out not to be JSON; the parse step
// decides what to do with it. Returns false only when no candidate is found,
// in which case the text should be treated as a plain conversational reply.
func ExtractJSONBlock(raw string) (string, bool) {
	if m := fencedJSONBlock.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	if m := fencedAnyBlock.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	trimmed := strings.TrimSpace(raw)
	if bracketDelimited(trimmed) {
		return trimmed, true
	}
	return "", false
}

func bracketDelimited(s string) bool {
	if s == "" {
		return false
	}
	return (strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}")) ||
		(strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]"))
}
