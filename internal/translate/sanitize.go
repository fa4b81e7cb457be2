package translate

import (
	"regexp"
	"strings"
)

var (
	parenNote   = regexp.MustCompile(`(?is)[(（]\s*(?:note|disclaimer|translator'?s note|注|注意|备注)\s*[:：].*?[)）]`)
	bracketNote = regexp.MustCompile(`(?is)\[\s*(?:note|disclaimer|注|注意|备注)\s*[:：]?.*?\]`)
	noteLine    = regexp.MustCompile(`(?i)^\s*(?:note|disclaimer|注|注意|备注)\s*[:：]`)
	labelPrefix = regexp.MustCompile(`(?i)^\s*(?:translation|chinese|simplified chinese|翻译|译文|中文)\s*[:：]\s*`)
)

// SanitizeAIText strips the disclaimers and labels models add around a
// translation.
func SanitizeAIText(s string) string {
	s = parenNote.ReplaceAllString(s, "")
	s = bracketNote.ReplaceAllString(s, "")

	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if noteLine.MatchString(line) {
			continue
		}
		line = labelPrefix.ReplaceAllString(line, "")
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
