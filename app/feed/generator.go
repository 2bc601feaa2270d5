package feed

import (
	"bytes"
	"cmp"
	"encoding/xml"
	"fmt"
	"html"
	"time"
)

// Channel describes the RSS channel wrapping a merged stream.
type Channel struct {
	Title       string
	Link        string
	Description string
	SelfLink    string
	Generator   string
}

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

func (g *Generator) Run(channel Channel, items []Item) (string, error) {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<rss version="2.0" xmlns:atom="http://www.w3.org/2005/Atom">`)
	buf.WriteString("\n  <channel>\n")

	g.writeElement(&buf, "title", channel.Title, 4)
	g.writeElement(&buf, "link", channel.Link, 4)
	g.writeElement(&buf, "description", cmp.Or(channel.Description, "Merged social and news stream"), 4)

	if channel.SelfLink != "" {
		buf.WriteString(fmt.Sprintf("    <atom:link href=\"%s\" rel=\"self\" type=\"application/rss+xml\" />\n",
			html.EscapeString(channel.SelfLink)))
	}

	lastBuildDate := time.Now()
	if len(items) > 0 {
		if t, err := time.Parse(TimestampLayout, items[0].Timestamp); err == nil {
			lastBuildDate = t
		}
	}

	g.writeElement(&buf, "lastBuildDate", lastBuildDate.UTC().Format(time.RFC1123Z), 4)
	g.writeElement(&buf, "generator", channel.Generator, 4)

	for _, item := range items {
		g.writeItem(&buf, item)
	}

	buf.WriteString("  </channel>\n</rss>")

	return buf.String(), nil
}

func (g *Generator) writeItem(buf *bytes.Buffer, item Item) {
	buf.WriteString("    <item>\n")

	if item.ID != "" {
		buf.WriteString(fmt.Sprintf("      <guid isPermaLink=\"%t\">", g.isURL(item.ID)))
		xml.EscapeText(buf, []byte(item.ID))
		buf.WriteString("</guid>\n")
	}

	// Social posts have no title; the post text doubles as one.
	g.writeElement(buf, "title", cmp.Or(item.Title, Truncate(item.Content, 100)), 6)
	g.writeElement(buf, "link", item.URL, 6)
	g.writeElement(buf, "description", item.Content, 6)

	if t, err := time.Parse(TimestampLayout, item.Timestamp); err == nil {
		g.writeElement(buf, "pubDate", t.Format(time.RFC1123Z), 6)
	}

	g.writeElement(buf, "author", item.Author, 6)
	g.writeElement(buf, "category", string(item.Source), 6)

	buf.WriteString("    </item>\n")
}

func (g *Generator) writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}

	for i := 0; i < indent; i++ {
		buf.WriteByte(' ')
	}

	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	xml.EscapeText(buf, []byte(content))
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}

func (g *Generator) isURL(s string) bool {
	return (len(s) > 7 && s[:7] == "http://") || (len(s) > 8 && s[:8] == "https://")
}
