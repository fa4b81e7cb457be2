package news

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxExcerptRunes bounds every stored excerpt.
const MaxExcerptRunes = 300

var sentenceEnd = regexp.MustCompile(`([.!?])\s+`)

// CollapseWhitespace trims s and replaces every whitespace run with one space.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Truncate collapses whitespace and cuts s to at most max runes, ending with an ellipsis when cut.
func Truncate(s string, max int) string {
	s = CollapseWhitespace(s)
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return strings.TrimRight(string(runes[:max-1]), " ") + "…"
}

// SplitSentences breaks text after terminal punctuation followed by whitespace.
func SplitSentences(text string) []string {
	text = CollapseWhitespace(text)
	if text == "" {
		return nil
	}
	marked := sentenceEnd.ReplaceAllString(text, "$1\n")
	var out []string
	for _, s := range strings.Split(marked, "\n") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// SummaryBullets builds up to n distinct bullet lines from the title followed
// by the excerpt's sentences. Comparison is case-insensitive.
func SummaryBullets(title, excerpt string, n int) []string {
	if n < 1 {
		n = 1
	}
	var candidates []string
	if t := CollapseWhitespace(title); t != "" {
		candidates = append(candidates, t)
	}
	candidates = append(candidates, SplitSentences(excerpt)...)

	seen := make(map[string]bool)
	var out []string
	for _, c := range candidates {
		key := strings.ToLower(c)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
		if len(out) >= n {
			break
		}
	}
	if len(out) == 0 {
		return []string{"No summary available."}
	}
	return out
}
