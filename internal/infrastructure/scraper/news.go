package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"NewsDigest/internal/domain"
	"NewsDigest/internal/feed"
	"NewsDigest/internal/ports"
)

// NewsScraper polls one RSS feed and extracts full article bodies.
type NewsScraper struct {
	client    *fetchClient
	extractor ports.ContentExtractor
	logger    *slog.Logger
	now       func() time.Time
}

var _ ports.ArticleSource = (*NewsScraper)(nil)

// NewNewsScraper wires an HTTP client and a content extractor.
func NewNewsScraper(client *http.Client, extractor ports.ContentExtractor, logger *slog.Logger) *NewsScraper {
	return &NewsScraper{
		client:    newFetchClient(client),
		extractor: extractor,
		logger:    logger,
		now:       time.Now,
	}
}

// ScrapeFeed returns the feed's articles published inside the lookback
// window. Articles whose body cannot be extracted are dropped entirely: an
// article is only worth storing for its text, unlike a video whose title and
// description keep value without a transcript.
func (s *NewsScraper) ScrapeFeed(ctx context.Context, spec domain.FeedSpec, lookback time.Duration) ([]domain.ArticleRecord, error) {
	resp, err := s.client.get(ctx, spec.URL)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", spec.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed %s returned %s", spec.Name, resp.Status)
	}

	entries, err := feed.ParseRSS(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("feed %s: %w", spec.Name, err)
	}

	cutoff := s.now().UTC().Add(-lookback)
	articles := make([]domain.ArticleRecord, 0, len(entries))

	for _, entry := range entries {
		if entry.PublishedAt.Before(cutoff) {
			continue
		}

		content := s.extractor.Extract(ctx, entry.Link, spec.ContentSelector)
		if content == "" {
			s.logger.Warn("article body not extractable, dropping", "feed", spec.Name, "url", entry.Link)
			continue
		}

		articles = append(articles, domain.ArticleRecord{
			URL:         entry.Link,
			Title:       entry.Title,
			Source:      spec.Name,
			PublishedAt: entry.PublishedAt,
			Content:     content,
		})
	}

	return articles, nil
}
