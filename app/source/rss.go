package source

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/mmcdole/gofeed"

	"github.com/lysyi3m/stream-comb/app/feed"
	"github.com/lysyi3m/stream-comb/app/parser"
)

const rssAccept = "application/rss+xml, application/xml, text/xml, application/atom+xml"

type RSSAdapter struct {
	httpClient *http.Client
	extractor  *feed.Extractor
	jsonParser *parser.Parser
	userAgent  string
}

var _ Adapter = (*RSSAdapter)(nil)

func NewRSSAdapter(httpClient *http.Client, extractor *feed.Extractor, jsonParser *parser.Parser, userAgent string) *RSSAdapter {
	return &RSSAdapter{
		httpClient: httpClient,
		extractor:  extractor,
		jsonParser: jsonParser,
		userAgent:  userAgent,
	}
}

func (a *RSSAdapter) Fetch(ctx context.Context, endpoint feed.Endpoint) (Result, error) {
	data, err := fetch(ctx, a.httpClient, endpoint.URL, rssAccept, a.userAgent)
	if err != nil {
		return Result{Items: []feed.Item{}}, fmt.Errorf("failed to fetch feed: %w", err)
	}

	format := DetectFormat(data)

	// JSON Feed has no markup to scan.
	if format == "json" && a.jsonParser != nil {
		items, err := a.jsonParser.Parse(data, endpoint.URL)
		if err != nil {
			return Result{Items: []feed.Item{}, Format: format}, fmt.Errorf("failed to parse JSON feed: %w", err)
		}
		return Result{Items: items, Format: format}, nil
	}

	return Result{
		Items:  a.extractor.Run(data, endpoint.URL),
		Format: format,
	}, nil
}

// DetectFormat labels a payload for logs and metrics. Only JSON Feed changes
// how it is read.
func DetectFormat(data []byte) string {
	switch gofeed.DetectFeedType(bytes.NewReader(data)) {
	case gofeed.FeedTypeRSS:
		return "rss"
	case gofeed.FeedTypeAtom:
		return "atom"
	case gofeed.FeedTypeJSON:
		return "json"
	default:
		return "unknown"
	}
}
