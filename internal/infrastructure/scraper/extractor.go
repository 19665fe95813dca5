package scraper

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"NewsDigest/internal/ports"
)

// Extractor pulls the main body text out of an article page. Every failure
// degrades to the empty string: callers treat "" as "no usable content".
type Extractor struct {
	client *fetchClient
	logger *slog.Logger
}

var _ ports.ContentExtractor = (*Extractor)(nil)

// NewExtractor wires an HTTP client; a nil client gets a 10s-timeout default.
func NewExtractor(client *http.Client, logger *slog.Logger) *Extractor {
	return &Extractor{
		client: newFetchClient(client),
		logger: logger,
	}
}

// Extract fetches the page and concatenates its paragraph text. When
// contentSelector matches a container, only paragraphs inside it are used;
// otherwise all paragraphs on the page serve as fallback.
func (e *Extractor) Extract(ctx context.Context, pageURL, contentSelector string) string {
	resp, err := e.client.get(ctx, pageURL)
	if err != nil {
		e.warn("fetch article page", "url", pageURL, "error", err)
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		e.warn("article page rejected", "url", pageURL, "status", resp.Status)
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		e.warn("parse article page", "url", pageURL, "error", err)
		return ""
	}

	paragraphs := doc.Find("p")
	if contentSelector != "" {
		if container := doc.Find(contentSelector); container.Length() > 0 {
			paragraphs = container.Find("p")
		}
	}

	var parts []string
	paragraphs.Each(func(i int, p *goquery.Selection) {
		if text := strings.TrimSpace(p.Text()); text != "" {
			parts = append(parts, text)
		}
	})

	return strings.Join(parts, " ")
}

func (e *Extractor) warn(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Warn(msg, args...)
	}
}
