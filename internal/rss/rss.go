package rss

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"
)

// ParseFeed parses an RSS or Atom document already fetched by the caller and
// returns its entry links in feed order. Entries without a link are skipped.
// Entry dates are ignored; the window is applied to extracted articles.
func ParseFeed(body []byte) ([]string, error) {
	parser := gofeed.NewParser()
	feed, err := parser.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	links := make([]string, 0, len(feed.Items))
	for _, it := range feed.Items {
		if it == nil {
			continue
		}
		link := strings.TrimSpace(it.Link)
		if link == "" && len(it.Links) > 0 {
			link = strings.TrimSpace(it.Links[0])
		}
		if link == "" {
			continue
		}
		links = append(links, link)
	}
	return links, nil
}
