// Package entity recognizes and counts the companies, people and
// organizations mentioned in the week's articles.
package entity

import (
	"context"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/deusflow/musicpulse/internal/news"
)

// Recognized is one entity occurrence found by a Recognizer.
type Recognized struct {
	Surface  string
	Category string
}

// Recognizer finds named entities in plain English text.
type Recognizer interface {
	Name() string
	ExtractEntities(ctx context.Context, text string) ([]Recognized, error)
}

// companyHints force the Company category when contained in a name.
var companyHints = []string{
	"universal music",
	"sony music",
	"warner music",
	"spotify",
	"apple music",
	"youtube",
	"tiktok",
	"amazon music",
	"believe",
	"beggars",
}

var companyWords = map[string]bool{
	"inc": true, "ltd": true, "limited": true, "llc": true, "plc": true,
	"corp": true, "corporation": true, "co": true, "gmbh": true, "ag": true, "sa": true,
	"group": true, "records": true, "recordings": true, "entertainment": true,
	"music": true, "media": true, "publishing": true, "label": true, "labels": true,
	"studios": true, "holdings": true, "ventures": true, "capital": true,
}

var organizationWords = map[string]bool{
	"association": true, "council": true, "union": true, "institute": true,
	"foundation": true, "society": true, "academy": true, "federation": true,
	"agency": true, "commission": true, "committee": true, "awards": true,
	"festival": true, "university": true, "government": true, "parliament": true,
	"department": true, "office": true, "trust": true, "alliance": true,
	"collective": true, "charts": true,
}

// stopwords never start or continue a span. Headline words in title case
// would otherwise glue unrelated names together.
var stopwords = toSet(`a an the and or but if of to in on at by for from with into onto over under
after before as is are was were be been has have had its it this that these those his her their our
your my we you he she they i new says said signs sign launches launch announces announce adds add
reveals reveal hits hit sets set takes take gets get makes make wins win names named appoints appointed
how why what when where who which while amid exclusive watch listen interview report week weekly
monday tuesday wednesday thursday friday saturday sunday
january february march april may june july august september october november december
mr mrs ms dr sir update live breaking first last more most top up down out not no yes also
ceo cfo coo cto md vp svp evp president chief executive boss chairman chair founder co-founder head
artist artists singer rapper star producer manager`)

// connectors may sit inside a span between two capitalized tokens.
var connectors = toSet("of & de la le du von van der del y")

var tokenRe = regexp.MustCompile(`[\p{L}\p{N}][\p{L}\p{N}&'’.\-]*|&`)

func toSet(words string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(words) {
		set[w] = true
	}
	return set
}

// Heuristic recognizes capitalized spans, acronyms and known company names.
type Heuristic struct{}

func NewHeuristic() *Heuristic {
	return &Heuristic{}
}

func (h *Heuristic) Name() string { return "heuristic" }

func (h *Heuristic) ExtractEntities(_ context.Context, text string) ([]Recognized, error) {
	var out []Recognized
	for _, sentence := range news.SplitSentences(text) {
		for _, span := range spans(sentence) {
			out = append(out, Recognized{Surface: span, Category: Categorize(span)})
		}
	}
	return out, nil
}

type token struct {
	text  string
	lower string
	// breakAfter is set when punctuation follows the token.
	breakAfter bool
}

func tokenize(sentence string) []token {
	locs := tokenRe.FindAllStringIndex(sentence, -1)
	toks := make([]token, 0, len(locs))
	for i, loc := range locs {
		raw := sentence[loc[0]:loc[1]]
		trailing := ""
		if i+1 < len(locs) {
			trailing = sentence[loc[1]:locs[i+1][0]]
		}
		text := trimToken(raw)
		if text == "" {
			continue
		}
		brk := strings.ContainsAny(trailing, ",;:()\"“”|") || strings.HasSuffix(raw, ".") && !isAcronym(text)
		toks = append(toks, token{text: text, lower: strings.ToLower(text), breakAfter: brk})
	}
	return toks
}

// trimToken drops possessives and trailing dots or hyphens.
func trimToken(s string) string {
	for _, suffix := range []string{"'s", "’s"} {
		if strings.HasSuffix(s, suffix) {
			s = strings.TrimSuffix(s, suffix)
		}
	}
	return strings.TrimRight(s, ".-'’")
}

func isCapitalized(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsUpper(r)
}

func isAcronym(s string) bool {
	letters := 0
	for _, r := range s {
		switch {
		case unicode.IsLetter(r):
			if !unicode.IsUpper(r) {
				return false
			}
			letters++
		case unicode.IsDigit(r), r == '&', r == '.', r == '-':
		default:
			return false
		}
	}
	return letters >= 2
}

func spans(sentence string) []string {
	toks := tokenize(sentence)
	var out []string
	var cur []token
	start := 0

	flush := func() {
		// connectors cannot end a span
		for len(cur) > 0 && connectors[cur[len(cur)-1].lower] {
			cur = cur[:len(cur)-1]
		}
		switch {
		case len(cur) == 0:
		case start == 0 && len(cur) == 1 && !isAcronym(cur[0].text) && Categorize(cur[0].text) != news.CategoryCompany:
			// a lone capitalized first word is usually just the sentence start
		default:
			parts := make([]string, len(cur))
			for i, t := range cur {
				parts[i] = t.text
			}
			if name := strings.Join(parts, " "); utf8.RuneCountInString(name) >= 2 {
				out = append(out, name)
			}
		}
		cur = cur[:0]
	}

	for i, t := range toks {
		switch {
		case len(cur) > 0 && connectors[t.lower] && !t.breakAfter && i+1 < len(toks) && isCapitalized(toks[i+1].text):
			cur = append(cur, t)
		case stopwords[t.lower]:
			flush()
		case isCapitalized(t.text) || isAcronym(t.text):
			if len(cur) == 0 {
				start = i
			}
			cur = append(cur, t)
		default:
			flush()
		}
		if t.breakAfter {
			flush()
		}
	}
	flush()
	return out
}

// Categorize labels a name as Company, Person or Organization.
func Categorize(name string) string {
	lower := strings.ToLower(name)
	for _, hint := range companyHints {
		if strings.Contains(lower, hint) {
			return news.CategoryCompany
		}
	}

	words := strings.Fields(lower)
	if len(words) == 0 {
		return news.CategoryOrganization
	}
	for _, w := range words {
		if organizationWords[w] {
			return news.CategoryOrganization
		}
	}
	if companyWords[words[len(words)-1]] {
		return news.CategoryCompany
	}

	fields := strings.Fields(name)
	if len(fields) >= 2 && len(fields) <= 3 {
		person := true
		for _, f := range fields {
			if isAcronym(f) || connectors[strings.ToLower(f)] || strings.ContainsAny(f, "&0123456789") {
				person = false
				break
			}
		}
		if person {
			return news.CategoryPerson
		}
	}
	return news.CategoryOrganization
}
