package aggregator

import (
	"slices"

	"github.com/lysyi3m/stream-comb/app/feed"
)

// kindOrder is the concatenation order of enabled sources.
var kindOrder = []feed.SourceKind{feed.SourceSocial, feed.SourceRSS}

// Query describes one aggregation. It is built per request and never shared.
type Query struct {
	Sources     []feed.SourceKind
	Keywords    []string
	Limit       int
	SocialQuery string
	SocialLimit int
	Feeds       []string
	Dedupe      bool
}

// Enabled reports whether kind takes part in the query. An empty Sources
// list enables every kind.
func (q Query) Enabled(kind feed.SourceKind) bool {
	return len(q.Sources) == 0 || slices.Contains(q.Sources, kind)
}
