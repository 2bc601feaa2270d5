package source

import (
	"time"

	"github.com/lysyi3m/stream-comb/app/feed"
)

type placeholder struct {
	id, author, handle, content string
	age                         time.Duration
	engagement                  feed.Engagement
}

var placeholders = []placeholder{
	{
		id:         "mock-1",
		author:     "TechNews",
		handle:     "technews.bsky.social",
		content:    "Breaking: Major developments in AI technology as companies race to build more efficient models.",
		age:        5 * time.Minute,
		engagement: feed.Engagement{Likes: 234, Reposts: 45, Replies: 12},
	},
	{
		id:         "mock-2",
		author:     "MarketWatch",
		handle:     "markets.bsky.social",
		content:    "Markets update: S&P 500 reaches new highs as tech sector leads gains.",
		age:        12 * time.Minute,
		engagement: feed.Engagement{Likes: 156, Reposts: 28, Replies: 8},
	},
	{
		id:         "mock-3",
		author:     "WorldNews",
		handle:     "worldnews.bsky.social",
		content:    "Global leaders gather for climate summit, major announcements expected.",
		age:        20 * time.Minute,
		engagement: feed.Engagement{Likes: 89, Reposts: 34, Replies: 15},
	},
}

// MockItems returns the placeholder posts served while the social API is
// unavailable, dated relative to now.
func MockItems(now time.Time) []feed.Item {
	items := make([]feed.Item, 0, len(placeholders))
	for _, p := range placeholders {
		engagement := p.engagement
		items = append(items, feed.Item{
			ID:           p.id,
			Source:       feed.SourceSocial,
			Author:       p.author,
			AuthorHandle: p.handle,
			Content:      p.content,
			Timestamp:    feed.FormatTimestamp(now.Add(-p.age)),
			URL:          "https://bsky.app",
			Engagement:   &engagement,
		})
	}
	return items
}
