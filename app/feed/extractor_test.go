package feed

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestExtractor() *Extractor {
	return &Extractor{clock: func() time.Time { return fixedNow }}
}

const rssFixture = `<?xml version="1.0"?>
<rss version="2.0" xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:content="http://purl.org/rss/1.0/modules/content/">
  <channel>
    <title><![CDATA[Tech &amp; Things]]></title>
    <link>https://example.com</link>
    <item>
      <title>First story</title>
      <link>https://example.com/1</link>
      <description><![CDATA[<p>Hello <b>world</b></p>]]></description>
      <pubDate>Mon, 03 Jul 2023 10:00:00 GMT</pubDate>
      <author>alice@example.com (Alice)</author>
    </item>
    <item>
      <title>Second story</title>
      <guid>https://example.com/2</guid>
      <content:encoded>Encoded body</content:encoded>
      <dc:date>2023-07-03T11:00:00Z</dc:date>
      <dc:creator>Bob</dc:creator>
    </item>
    <ITEM>
      <TITLE>Third story</TITLE>
      <LINK>https://example.com/3</LINK>
    </ITEM>
  </channel>
</rss>`

func TestExtractorRSS(t *testing.T) {
	items := newTestExtractor().Run([]byte(rssFixture), "https://example.com/feed.xml")
	require.Len(t, items, 3)

	first := items[0]
	assert.Equal(t, "https://example.com/1", first.ID)
	assert.Equal(t, "https://example.com/1", first.URL)
	assert.Equal(t, SourceRSS, first.Source)
	assert.Equal(t, "First story", first.Title)
	assert.Equal(t, "Hello world", first.Content)
	assert.Equal(t, "alice@example.com (Alice)", first.Author)
	assert.Equal(t, "2023-07-03T10:00:00.000Z", first.Timestamp)
	assert.Equal(t, "https://example.com/feed.xml", first.FeedURL)
	assert.Nil(t, first.Engagement)

	second := items[1]
	assert.Equal(t, "https://example.com/2", second.URL, "link falls back to guid")
	assert.Equal(t, "Encoded body", second.Content, "description falls back to content:encoded")
	assert.Equal(t, "2023-07-03T11:00:00.000Z", second.Timestamp, "pubDate falls back to dc:date")
	assert.Equal(t, "Bob", second.Author, "author falls back to dc:creator")

	third := items[2]
	assert.Equal(t, "Third story", third.Content, "content falls back to title")
	assert.Equal(t, "Tech & Things", third.Author, "author falls back to feed title")
	assert.Equal(t, FormatTimestamp(fixedNow), third.Timestamp, "missing date uses fetch time")
}

func TestExtractorRSSCountsEveryValidItem(t *testing.T) {
	var b strings.Builder
	b.WriteString("<rss><channel><title>Feed</title>")
	for i := 0; i < 7; i++ {
		fmt.Fprintf(&b, "<item><title>Item %d</title><link>https://example.com/%d</link></item>", i, i)
	}
	b.WriteString("</channel></rss>")

	items := newTestExtractor().Run([]byte(b.String()), "https://example.com/feed")
	assert.Len(t, items, 7)
}

func TestExtractorDiscardsItemsWithoutTitleOrLink(t *testing.T) {
	doc := `<rss><channel><title>Feed</title>
<item><title>No link</title></item>
<item><link>https://example.com/no-title</link></item>
<item><title><![CDATA[]]></title><link>https://example.com/empty-title</link></item>
<item><title>Kept</title><link>https://example.com/kept</link></item>
</channel></rss>`

	items := newTestExtractor().Run([]byte(doc), "https://example.com/feed")
	require.Len(t, items, 1)
	assert.Equal(t, "Kept", items[0].Title)
}

const atomFixture = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Atom Blog</title>
  <entry>
    <title>Entry one</title>
    <link rel="alternate" href="https://blog.example.com/one"/>
    <summary>Summary &lt;one&gt;</summary>
    <updated>2024-04-30T08:00:00Z</updated>
    <author><name>Carol</name></author>
  </entry>
  <entry>
    <title>Entry two</title>
    <link href='https://blog.example.com/two' />
    <content type="html">&lt;p&gt;Body two&lt;/p&gt;</content>
    <published>2024-04-29T08:00:00+02:00</published>
  </entry>
  <entry>
    <title>Entry without link</title>
    <summary>dropped</summary>
  </entry>
</feed>`

func TestExtractorAtomFallback(t *testing.T) {
	items := newTestExtractor().Run([]byte(atomFixture), "https://blog.example.com/atom.xml")
	require.Len(t, items, 2)

	assert.Equal(t, "https://blog.example.com/one", items[0].ID)
	assert.Equal(t, "Summary <one>", items[0].Content)
	assert.Equal(t, "Carol", items[0].Author)
	assert.Equal(t, "2024-04-30T08:00:00.000Z", items[0].Timestamp)

	assert.Equal(t, "https://blog.example.com/two", items[1].URL)
	assert.Equal(t, "<p>Body two</p>", items[1].Content, "entities decode after tag stripping")
	assert.Equal(t, "Atom Blog", items[1].Author)
	assert.Equal(t, "2024-04-29T06:00:00.000Z", items[1].Timestamp)
}

func TestExtractorAtomOnlyWhenRSSEmpty(t *testing.T) {
	doc := `<feed><title>Mixed</title>
<item><title>RSS item</title><link>https://example.com/rss</link></item>
<entry><title>Atom entry</title><link href="https://example.com/atom"/></entry>
</feed>`

	items := newTestExtractor().Run([]byte(doc), "https://example.com/feed")
	require.Len(t, items, 1)
	assert.Equal(t, "RSS item", items[0].Title)
}

func TestExtractorTruncatesBodyOnly(t *testing.T) {
	long := strings.Repeat("x", 400)
	title := strings.Repeat("t", 300)
	doc := fmt.Sprintf(`<rss><item><title>%s</title><link>https://example.com/a</link><description>%s</description></item></rss>`, title, long)

	items := newTestExtractor().Run([]byte(doc), "https://example.com/feed")
	require.Len(t, items, 1)
	assert.Len(t, items[0].Content, 280)
	assert.Len(t, items[0].Title, 300)
}

func TestExtractorFeedTitleFallsBackToHost(t *testing.T) {
	doc := `<rss><item><title>A</title><link>https://example.com/a</link></item></rss>`
	// The item title is the first <title> in the document.
	items := newTestExtractor().Run([]byte(doc), "https://news.example.org/rss")
	require.Len(t, items, 1)
	assert.Equal(t, "A", items[0].Author)

	doc = `<feed><entry><link href="https://example.com/b"/><title>
B</title></entry></feed>`
	items = newTestExtractor().Run([]byte(doc), "https://news.example.org/rss")
	require.Len(t, items, 1)
	assert.Equal(t, "news.example.org", items[0].Author)
}

func TestExtractorMalformedInput(t *testing.T) {
	for _, doc := range []string{"", "not xml at all", "<rss><item><title>open", "<html><body>404</body></html>"} {
		assert.Empty(t, newTestExtractor().Run([]byte(doc), "https://example.com/feed"), doc)
	}
}

func TestExtractTag(t *testing.T) {
	v, ok := ExtractTag(`<Title type="text"> <![CDATA[Hi]]> </Title><title>Second</title>`, "title")
	assert.True(t, ok)
	assert.Equal(t, "<![CDATA[Hi]]>", v, "CDATA is only unwrapped when it directly follows the tag")

	v, ok = ExtractTag(`<title><![CDATA[Hi]]></title><title>Second</title>`, "title")
	assert.True(t, ok)
	assert.Equal(t, "Hi", v, "first occurrence wins")

	_, ok = ExtractTag(`<rss></rss>`, "title")
	assert.False(t, ok)

	v, ok = ExtractTag(`<dc:creator>Dana</dc:creator>`, "dc:creator")
	assert.True(t, ok)
	assert.Equal(t, "Dana", v)
}
