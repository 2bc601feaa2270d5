package feed

import (
	"fmt"
	"net/url"
	"strconv"
)

// SourceKind distinguishes the upstream adapters.
type SourceKind string

const (
	SourceSocial SourceKind = "social"
	SourceRSS    SourceKind = "rss"
)

func ParseSourceKind(s string) (SourceKind, error) {
	switch SourceKind(s) {
	case SourceSocial, SourceRSS:
		return SourceKind(s), nil
	default:
		return "", fmt.Errorf("unknown source kind: %q", s)
	}
}

// Engagement counters are only reported by the social source.
type Engagement struct {
	Likes   int `json:"likes"`
	Reposts int `json:"reposts"`
	Replies int `json:"replies"`
}

// Item is the normalized, source-agnostic representation of one feed entry.
// Items are built once per parse and never mutated afterwards.
type Item struct {
	ID           string      `json:"id"`
	Source       SourceKind  `json:"source"`
	Author       string      `json:"author"`
	AuthorHandle string      `json:"authorHandle,omitempty"`
	AuthorAvatar string      `json:"authorAvatar,omitempty"`
	Content      string      `json:"content"`
	Title        string      `json:"title,omitempty"`
	Timestamp    string      `json:"timestamp"`
	URL          string      `json:"url"`
	FeedURL      string      `json:"feedUrl,omitempty"`
	Engagement   *Engagement `json:"engagement,omitempty"`
}

// Endpoint is one configured upstream. Query and Limit only apply to social endpoints.
type Endpoint struct {
	Name  string     `json:"name"`
	URL   string     `json:"url"`
	Kind  SourceKind `json:"kind"`
	Query string     `json:"query,omitempty"`
	Limit int        `json:"limit,omitempty"`
}

// CacheKey identifies the response of this endpoint for the given parameters.
func (e Endpoint) CacheKey() string {
	if e.Kind != SourceSocial {
		return string(e.Kind) + ":" + e.URL
	}

	v := url.Values{}
	v.Set("q", e.Query)
	v.Set("limit", strconv.Itoa(e.Limit))
	return string(e.Kind) + ":" + e.URL + "?" + v.Encode()
}
