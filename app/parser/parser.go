// Package parser handles JSON Feed documents, which the markup extractor
// cannot scan. Items go through the same sanitizing and acceptance rules as
// extracted RSS items.
package parser

import (
	"bytes"
	"cmp"
	"fmt"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/lysyi3m/stream-comb/app/feed"
)

type Parser struct {
	gofeedParser *gofeed.Parser
	clock        func() time.Time
}

func NewParser() *Parser {
	return &Parser{
		gofeedParser: gofeed.NewParser(),
		clock:        time.Now,
	}
}

// Parse returns the items of a JSON Feed document. Items without a title or
// a link are dropped.
func (p *Parser) Parse(data []byte, feedURL string) ([]feed.Item, error) {
	parsed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	now := p.clock()
	feedTitle := cmp.Or(feed.Sanitize(parsed.Title), feed.HostName(feedURL))

	items := make([]feed.Item, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		link := cmp.Or(item.Link, item.GUID)
		title := feed.Sanitize(item.Title)
		if title == "" || link == "" {
			continue
		}

		content := cmp.Or(feed.Sanitize(item.Description), feed.Sanitize(item.Content), title)

		items = append(items, feed.Item{
			ID:        link,
			Source:    feed.SourceRSS,
			Author:    cmp.Or(p.author(item), feedTitle),
			Content:   feed.Truncate(content, feed.MaxContentLength),
			Title:     title,
			Timestamp: p.timestamp(item, now),
			URL:       link,
			FeedURL:   feedURL,
		})
	}

	return items, nil
}

func (p *Parser) author(item *gofeed.Item) string {
	if item.Author != nil && item.Author.Name != "" {
		return feed.Sanitize(item.Author.Name)
	}
	for _, a := range item.Authors {
		if a != nil && a.Name != "" {
			return feed.Sanitize(a.Name)
		}
	}
	return ""
}

func (p *Parser) timestamp(item *gofeed.Item, now time.Time) string {
	switch {
	case item.PublishedParsed != nil:
		return feed.FormatTimestamp(*item.PublishedParsed)
	case item.UpdatedParsed != nil:
		return feed.FormatTimestamp(*item.UpdatedParsed)
	default:
		return feed.NormalizeTimestamp(cmp.Or(item.Published, item.Updated), now)
	}
}
