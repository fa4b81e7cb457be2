package gemini

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestParseTranslation(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"labelled", "CHINESE: 环球音乐与TikTok签署新协议", "环球音乐与TikTok签署新协议", false},
		{"full-width colon", "中文：索尼音乐重组", "索尼音乐重组", false},
		{"multi-line", "Sure.\nCHINESE: 第一句。\n第二句。", "第一句。 第二句。", false},
		{"unlabelled chinese", "华纳音乐宣布裁员", "华纳音乐宣布裁员", false},
		{"english only", "CHINESE: I cannot translate this", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseTranslation(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseEntities(t *testing.T) {
	in := "```json\n[{\"name\":\" Sony Music \",\"type\":\"company\"},{\"name\":\"\",\"type\":\"ORG\"},{\"name\":\"Rob Stringer\",\"type\":\"PERSON\"}]\n```"
	got, err := parseEntities(in)
	if err != nil {
		t.Fatalf("parseEntities: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d entities: %+v", len(got), got)
	}
	if got[0].Name != "Sony Music" || got[0].Type != "COMPANY" {
		t.Errorf("first = %+v", got[0])
	}
	if got[1].Name != "Rob Stringer" || got[1].Type != "PERSON" {
		t.Errorf("second = %+v", got[1])
	}

	if _, err := parseEntities("no entities here"); err == nil {
		t.Error("expected error without a JSON array")
	}
	if got, err := parseEntities("[]"); err != nil || len(got) != 0 {
		t.Errorf("empty array = %v, %v", got, err)
	}
}

func TestPrepareText(t *testing.T) {
	if got := prepareText("  a\r\n  b\tc "); got != "a b c" {
		t.Errorf("prepareText = %q", got)
	}

	long := strings.Repeat("Sentence number one is here. ", 400)
	got := prepareText(long)
	if utf8.RuneCountInString(got) > 6000 {
		t.Errorf("not truncated: %d runes", utf8.RuneCountInString(got))
	}
	if !strings.HasSuffix(got, ".") {
		t.Errorf("should end at a sentence boundary: %q", got[len(got)-20:])
	}
}
