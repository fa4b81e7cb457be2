package scraper

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/deusflow/musicpulse/internal/news"
)

// jsonLDAuthor returns the first author name declared in JSON-LD blocks.
func jsonLDAuthor(doc *goquery.Document) string {
	var name string
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var data interface{}
		if err := json.Unmarshal([]byte(strings.TrimSpace(s.Text())), &data); err != nil {
			return true
		}
		name = findAuthor(data)
		return name == ""
	})
	return name
}

func findAuthor(v interface{}) string {
	switch node := v.(type) {
	case []interface{}:
		for _, item := range node {
			if n := findAuthor(item); n != "" {
				return n
			}
		}
	case map[string]interface{}:
		if author, ok := node["author"]; ok {
			if n := authorName(author); n != "" {
				return n
			}
		}
		if graph, ok := node["@graph"]; ok {
			return findAuthor(graph)
		}
	}
	return ""
}

func authorName(v interface{}) string {
	switch a := v.(type) {
	case string:
		return news.CollapseWhitespace(a)
	case map[string]interface{}:
		if n, ok := a["name"].(string); ok {
			return news.CollapseWhitespace(n)
		}
	case []interface{}:
		var names []string
		for _, item := range a {
			if n := authorName(item); n != "" {
				names = append(names, n)
			}
		}
		return strings.Join(names, ", ")
	}
	return ""
}
