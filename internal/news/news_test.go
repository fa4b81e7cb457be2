package news

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestCanonicalURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"HTTPS://WWW.MusicWeek.com/news/", "https://www.musicweek.com/news"},
		{"https://www.musicweek.com//news///read/abc/", "https://www.musicweek.com/news/read/abc"},
		{"https://example.com/a?utm_source=x&utm_medium=y&id=3", "https://example.com/a?id=3"},
		{"https://example.com/a?fbclid=1&gclid=2", "https://example.com/a"},
		{"https://example.com/a?b=2&a=1#section", "https://example.com/a?a=1&b=2"},
		{"https://example.com:443/", "https://example.com"},
		{"", ""},
		{"/relative/only", ""},
	}

	for _, tt := range tests {
		if got := CanonicalURL(tt.in); got != tt.want {
			t.Errorf("CanonicalURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCanonicalURL_Idempotent(t *testing.T) {
	in := "https://www.musicbusinessworldwide.com/some-story/?utm_campaign=z"
	once := CanonicalURL(in)
	if twice := CanonicalURL(once); twice != once {
		t.Errorf("not idempotent: %q then %q", once, twice)
	}
}

func TestArticleID_StableAndShort(t *testing.T) {
	a := ArticleID("https://example.com/a")
	b := ArticleID("https://example.com/a")
	c := ArticleID("https://example.com/b")
	if a != b {
		t.Errorf("same URL produced %q and %q", a, b)
	}
	if a == c {
		t.Errorf("different URLs produced the same id %q", a)
	}
	if len(a) != 16 {
		t.Errorf("len(id) = %d, want 16", len(a))
	}
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("word ", 200)
	got := Truncate(long, MaxExcerptRunes)
	if n := utf8.RuneCountInString(got); n > MaxExcerptRunes {
		t.Errorf("truncated length %d exceeds %d", n, MaxExcerptRunes)
	}
	if !strings.HasSuffix(got, "…") {
		t.Errorf("expected ellipsis suffix, got %q", got[len(got)-10:])
	}

	if got := Truncate("  short   text ", 300); got != "short text" {
		t.Errorf("Truncate(short) = %q", got)
	}
}

func TestSummaryBullets(t *testing.T) {
	got := SummaryBullets("Spotify raises prices", "Spotify raises prices. The change applies in the UK! More to come.", 2)
	want := []string{"Spotify raises prices", "Spotify raises prices."}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("SummaryBullets = %q, want %q", got, want)
	}

	got = SummaryBullets("Title", "Title", 2)
	if len(got) != 1 || got[0] != "Title" {
		t.Errorf("duplicate sentences should collapse, got %q", got)
	}

	got = SummaryBullets("", "", 2)
	if len(got) != 1 || got[0] != "No summary available." {
		t.Errorf("empty input = %q", got)
	}
}

func TestSplitSentences(t *testing.T) {
	got := SplitSentences("One. Two!  Three? Four")
	if len(got) != 4 || got[3] != "Four" {
		t.Errorf("SplitSentences = %q", got)
	}
}
