package feed

import (
	"strings"

	"golang.org/x/text/cases"
)

type Filterer struct{}

func NewFilterer() *Filterer {
	return &Filterer{}
}

// Run keeps the items whose content, title or author contains at least one
// keyword, ignoring case. An empty keyword list keeps everything.
func (f *Filterer) Run(items []Item, keywords []string) []Item {
	caser := cases.Fold()

	patterns := make([]string, 0, len(keywords))
	for _, keyword := range keywords {
		keyword = strings.TrimSpace(keyword)
		if keyword == "" {
			continue
		}
		patterns = append(patterns, caser.String(keyword))
	}

	if len(patterns) == 0 {
		return items
	}

	filtered := make([]Item, 0, len(items))
	for _, item := range items {
		if f.matchesAny(caser.String(f.searchText(item)), patterns) {
			filtered = append(filtered, item)
		}
	}

	return filtered
}

func (f *Filterer) matchesAny(text string, patterns []string) bool {
	for _, pattern := range patterns {
		if strings.Contains(text, pattern) {
			return true
		}
	}
	return false
}

func (f *Filterer) searchText(item Item) string {
	return item.Content + " " + item.Title + " " + item.Author
}

// Dedupe drops every item whose ID was already seen earlier in the slice.
func (f *Filterer) Dedupe(items []Item) []Item {
	seen := make(map[string]struct{}, len(items))
	unique := make([]Item, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.ID]; ok {
			continue
		}
		seen[item.ID] = struct{}{}
		unique = append(unique, item)
	}
	return unique
}
