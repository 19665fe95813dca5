package feed

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"
)

// Entry is one feed item normalized across Atom and RSS 2.0 documents.
type Entry struct {
	Title       string
	Link        string
	Description string
	PublishedAt time.Time
}

// Atom feed XML structures (YouTube channel feeds).

type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	Title     string         `xml:"title"`
	Links     []atomLink     `xml:"link"`
	Published string         `xml:"published"`
	Media     atomMediaGroup `xml:"group"`
}

type atomLink struct {
	Rel  string `xml:"rel,attr"`
	Href string `xml:"href,attr"`
}

type atomMediaGroup struct {
	Description string `xml:"description"`
}

// RSS 2.0 XML structures (news feeds).

type rssDocument struct {
	XMLName xml.Name   `xml:"rss"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Items []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
}

var pubDateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	time.RFC3339,
}

// ParseAtom decodes an Atom document into normalized entries.
// Entries with an unparsable published timestamp are skipped.
func ParseAtom(r io.Reader) ([]Entry, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read feed: %w", err)
	}

	var doc atomFeed
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("parse atom: %w", err)
	}

	entries := make([]Entry, 0, len(doc.Entries))
	for _, e := range doc.Entries {
		published, err := time.Parse(time.RFC3339, strings.TrimSpace(e.Published))
		if err != nil {
			continue
		}

		entries = append(entries, Entry{
			Title:       strings.TrimSpace(e.Title),
			Link:        pickAtomLink(e.Links),
			Description: strings.TrimSpace(e.Media.Description),
			PublishedAt: published.UTC(),
		})
	}

	return entries, nil
}

// ParseRSS decodes an RSS 2.0 document into normalized entries.
func ParseRSS(r io.Reader) ([]Entry, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read feed: %w", err)
	}

	var doc rssDocument
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("parse rss: %w", err)
	}

	entries := make([]Entry, 0, len(doc.Channel.Items))
	for _, item := range doc.Channel.Items {
		published, ok := parsePubDate(item.PubDate)
		if !ok {
			continue
		}

		entries = append(entries, Entry{
			Title:       strings.TrimSpace(item.Title),
			Link:        strings.TrimSpace(item.Link),
			Description: strings.TrimSpace(item.Description),
			PublishedAt: published.UTC(),
		})
	}

	return entries, nil
}

func pickAtomLink(links []atomLink) string {
	for _, link := range links {
		if link.Rel == "alternate" && link.Href != "" {
			return link.Href
		}
	}
	if len(links) > 0 {
		return links[0].Href
	}
	return ""
}

func parsePubDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	for _, layout := range pubDateLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}
