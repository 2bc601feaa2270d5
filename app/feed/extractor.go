package feed

import (
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"
)

// The extractor is a lenient scanner, not an XML parser. Tags are matched
// literally and case-insensitively, only the first occurrence of a tag inside
// a block counts, nested or repeated same-name tags are not handled and
// namespaces are only understood as literal prefixes such as "dc:".

var (
	// No (?s): a feed title that spans lines is skipped in favour of a later one.
	feedTitlePattern = regexp.MustCompile(`(?i)<title[^>]*>(?:<!\[CDATA\[)?(.*?)(?:\]\]>)?</title>`)
	itemPattern      = regexp.MustCompile(`(?is)<item[^>]*>(.*?)</item>`)
	entryPattern     = regexp.MustCompile(`(?is)<entry[^>]*>(.*?)</entry>`)
	linkHrefPattern  = regexp.MustCompile(`(?i)<link[^>]*href=["']([^"']+)["'][^>]*/?>`)

	tagPatterns sync.Map // tag name -> *regexp.Regexp
)

func tagPattern(name string) *regexp.Regexp {
	if re, ok := tagPatterns.Load(name); ok {
		return re.(*regexp.Regexp)
	}
	quoted := regexp.QuoteMeta(name)
	re := regexp.MustCompile(`(?is)<` + quoted + `[^>]*>(?:<!\[CDATA\[)?(.*?)(?:\]\]>)?</` + quoted + `>`)
	actual, _ := tagPatterns.LoadOrStore(name, re)
	return actual.(*regexp.Regexp)
}

// ExtractTag returns the trimmed body of the first <name>...</name> element in
// document, unwrapping a CDATA section. ok is false when the tag is absent.
func ExtractTag(document, name string) (string, bool) {
	m := tagPattern(name).FindStringSubmatch(document)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

// ExtractLinkHref returns the href attribute of the first <link> tag.
func ExtractLinkHref(document string) (string, bool) {
	m := linkHrefPattern.FindStringSubmatch(document)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// firstTag returns the first non-empty body among the given tags.
func firstTag(block string, names ...string) string {
	for _, name := range names {
		if v, ok := ExtractTag(block, name); ok && v != "" {
			return v
		}
	}
	return ""
}

type candidate struct {
	title  string
	link   string
	body   string
	date   string
	author string
}

type Extractor struct {
	clock func() time.Time
}

func NewExtractor() *Extractor {
	return &Extractor{clock: time.Now}
}

// Run extracts items from an RSS 2.0 or Atom document. Atom entries are only
// considered when the document yields no RSS items.
func (e *Extractor) Run(data []byte, feedURL string) []Item {
	doc := string(data)
	now := e.clock()
	feedTitle := e.feedTitle(doc, feedURL)

	var candidates []candidate
	for _, m := range itemPattern.FindAllStringSubmatch(doc, -1) {
		block := m[1]
		candidates = append(candidates, candidate{
			title:  firstTag(block, "title"),
			link:   firstTag(block, "link", "guid"),
			body:   firstTag(block, "description", "content:encoded"),
			date:   firstTag(block, "pubDate", "dc:date"),
			author: firstTag(block, "author", "dc:creator"),
		})
	}

	items := e.accept(candidates, feedURL, feedTitle, now)
	if len(items) > 0 {
		return items
	}

	candidates = candidates[:0]
	for _, m := range entryPattern.FindAllStringSubmatch(doc, -1) {
		block := m[1]
		link, _ := ExtractLinkHref(block)
		candidates = append(candidates, candidate{
			title:  firstTag(block, "title"),
			link:   link,
			body:   firstTag(block, "summary", "content"),
			date:   firstTag(block, "updated", "published"),
			author: firstTag(block, "name"),
		})
	}

	return e.accept(candidates, feedURL, feedTitle, now)
}

func (e *Extractor) accept(candidates []candidate, feedURL, feedTitle string, now time.Time) []Item {
	items := make([]Item, 0, len(candidates))
	for _, c := range candidates {
		if c.title == "" || c.link == "" {
			continue
		}

		title := Sanitize(c.title)
		content := Sanitize(c.body)
		if content == "" {
			content = title
		}
		if content == "" {
			content = c.link
		}

		author := Sanitize(c.author)
		if author == "" {
			author = feedTitle
		}

		items = append(items, Item{
			ID:        c.link,
			Source:    SourceRSS,
			Author:    author,
			Content:   Truncate(content, MaxContentLength),
			Title:     title,
			Timestamp: NormalizeTimestamp(c.date, now),
			URL:       c.link,
			FeedURL:   feedURL,
		})
	}
	return items
}

func (e *Extractor) feedTitle(doc, feedURL string) string {
	if m := feedTitlePattern.FindStringSubmatch(doc); m != nil {
		if title := Sanitize(m[1]); title != "" {
			return title
		}
	}
	return HostName(feedURL)
}

// HostName returns the host of rawURL, or rawURL itself when it has none.
func HostName(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Hostname() == "" {
		return rawURL
	}
	return u.Hostname()
}
