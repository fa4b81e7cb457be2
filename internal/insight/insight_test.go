package insight

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/deusflow/musicpulse/internal/news"
)

func day(d int) *time.Time {
	t := time.Date(2025, 10, d, 9, 0, 0, 0, time.UTC)
	return &t
}

func fixture() ([]news.EntityCount, []news.Article) {
	articles := []news.Article{
		{ID: "a1", Title: "Spotify streaming royalties rise", Published: day(6)},
		{ID: "a2", Title: "Sony Music and Spotify renew royalties pact", Published: day(4)},
		{ID: "a3", Title: "Kobalt expands", Published: day(5)},
		{ID: "a4", Title: "Sony Music streaming update"},
	}
	counts := []news.EntityCount{
		{Key: "spotify", Name: "Spotify", Category: news.CategoryCompany, Count: 4, ArticleIDs: []string{"a1", "a2"}, FirstSeen: 0},
		{Key: "sony music", Name: "Sony Music", Category: news.CategoryCompany, Count: 2, ArticleIDs: []string{"a2", "a4"}, FirstSeen: 1},
		{Key: "kobalt", Name: "Kobalt", Category: news.CategoryCompany, Count: 1, ArticleIDs: []string{"a3"}, FirstSeen: 2},
		{Key: "ghost", Name: "Ghost", Category: news.CategoryOrganization, Count: 3, ArticleIDs: nil, FirstSeen: 3},
	}
	return counts, articles
}

func TestGenerate_RankingAndEvidence(t *testing.T) {
	counts, articles := fixture()
	got := Generate(counts, articles, DefaultOptions())

	if len(got) == 0 {
		t.Fatal("no insights")
	}
	first := got[0]
	if first.Kind != news.InsightEntity || !strings.HasPrefix(first.Text, "Spotify (company) was mentioned 4 times across 2 articles") {
		t.Errorf("first = %+v", first)
	}
	if first.Score != 6 {
		t.Errorf("score = %v, want 6", first.Score)
	}
	if !reflect.DeepEqual(first.Evidence, []string{"a1", "a2"}) {
		t.Errorf("evidence = %v (want newest first)", first.Evidence)
	}

	known := map[string]bool{"a1": true, "a2": true, "a3": true, "a4": true}
	for _, in := range got {
		if len(in.Evidence) == 0 {
			t.Errorf("insight without evidence: %+v", in)
		}
		for _, id := range in.Evidence {
			if !known[id] {
				t.Errorf("unknown evidence %q", id)
			}
		}
		if strings.Contains(in.Text, "Ghost") {
			t.Errorf("entity without articles produced an insight: %q", in.Text)
		}
	}

	for i := 1; i < len(got); i++ {
		if got[i].Score > got[i-1].Score {
			t.Errorf("not sorted by score at %d", i)
		}
	}
}

func TestGenerate_UndatedEvidenceLast(t *testing.T) {
	counts, articles := fixture()
	for _, in := range Generate(counts, articles, DefaultOptions()) {
		if strings.HasPrefix(in.Text, "Sony Music (company)") {
			if !reflect.DeepEqual(in.Evidence, []string{"a2", "a4"}) {
				t.Errorf("evidence = %v", in.Evidence)
			}
			return
		}
	}
	t.Fatal("Sony Music insight missing")
}

func TestGenerate_Themes(t *testing.T) {
	counts, articles := fixture()
	var themes []news.Insight
	for _, in := range Generate(counts, articles, Options{TopK: 20}) {
		if in.Kind == news.InsightTheme {
			themes = append(themes, in)
		}
	}

	texts := make(map[string]news.Insight)
	for _, th := range themes {
		texts[th.Text] = th
	}
	royalties, ok := texts["Theme 'royalties' appeared across 2 articles, suggesting sustained weekly attention."]
	if !ok {
		t.Fatalf("royalties theme missing: %+v", themes)
	}
	if !reflect.DeepEqual(royalties.Evidence, []string{"a1", "a2"}) {
		t.Errorf("royalties evidence = %v", royalties.Evidence)
	}
	if _, ok := texts["Theme 'streaming' appeared across 2 articles, suggesting sustained weekly attention."]; !ok {
		t.Errorf("streaming theme missing: %+v", themes)
	}
	for text := range texts {
		if strings.Contains(text, "'spotify'") || strings.Contains(text, "'music'") {
			t.Errorf("entity or stop word became a theme: %s", text)
		}
	}
}

func TestGenerate_Pairs(t *testing.T) {
	counts := []news.EntityCount{
		{Key: "a", Name: "Alpha", Count: 2, ArticleIDs: []string{"x", "y"}},
		{Key: "b", Name: "Beta", Count: 2, ArticleIDs: []string{"y", "x"}},
		{Key: "c", Name: "Gamma", Count: 1, ArticleIDs: []string{"x"}},
	}
	articles := []news.Article{{ID: "x", Published: day(1)}, {ID: "y", Published: day(2)}}

	var pairs []news.Insight
	for _, in := range Generate(counts, articles, Options{TopK: 20}) {
		if in.Kind == news.InsightPair {
			pairs = append(pairs, in)
		}
	}
	if len(pairs) != 1 {
		t.Fatalf("pairs = %+v", pairs)
	}
	if pairs[0].Text != "Alpha and Beta appeared together in 2 articles this week." {
		t.Errorf("text = %q", pairs[0].Text)
	}
	if !reflect.DeepEqual(pairs[0].Evidence, []string{"y", "x"}) {
		t.Errorf("evidence = %v", pairs[0].Evidence)
	}
}

func TestGenerate_DeterministicAndCapped(t *testing.T) {
	counts, articles := fixture()
	opts := Options{TopK: 2, MaxEvidence: 1}
	a := Generate(counts, articles, opts)
	b := Generate(counts, articles, opts)
	if !reflect.DeepEqual(a, b) {
		t.Error("generation is not deterministic")
	}
	if len(a) != 2 {
		t.Errorf("len = %d, want 2", len(a))
	}
	for _, in := range a {
		if len(in.Evidence) != 1 {
			t.Errorf("evidence not capped: %v", in.Evidence)
		}
		if in.Breadth < len(in.Evidence) {
			t.Errorf("breadth %d < evidence %d", in.Breadth, len(in.Evidence))
		}
	}
}

func TestGenerate_Empty(t *testing.T) {
	if got := Generate(nil, nil, DefaultOptions()); len(got) != 0 {
		t.Errorf("got %+v", got)
	}
}
