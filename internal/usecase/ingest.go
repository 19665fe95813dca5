package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"NewsDigest/internal/domain"
	"NewsDigest/internal/ports"
)

// IngestDeps wires the sources and the store into the ingestion run.
type IngestDeps struct {
	Videos   ports.VideoSource
	Articles ports.ArticleSource
	Store    ports.ContentStore
	Channels []string
	Feeds    []domain.FeedSpec
	Logger   *slog.Logger
}

// IngestResult describes what one run newly persisted, per kind.
type IngestResult struct {
	Videos   []domain.VideoRecord
	Articles []domain.ArticleRecord
}

// Ingestor runs one ingestion pass: poll every configured source inside the
// lookback window and persist the candidates with insert-if-absent semantics.
// A failing source is logged and skipped; it never blocks its siblings.
type Ingestor struct {
	videos   ports.VideoSource
	articles ports.ArticleSource
	store    ports.ContentStore
	channels []string
	feeds    []domain.FeedSpec
	logger   *slog.Logger
}

// NewIngestor constructs the ingestion orchestrator.
func NewIngestor(deps IngestDeps) *Ingestor {
	return &Ingestor{
		videos:   deps.Videos,
		articles: deps.Articles,
		store:    deps.Store,
		channels: deps.Channels,
		feeds:    deps.Feeds,
		logger:   deps.Logger,
	}
}

// Run polls all channels and feeds sequentially and returns the records that
// were new this run. Store failures abort: without a working store the
// pipeline has nothing to dedup against.
func (i *Ingestor) Run(ctx context.Context, lookback time.Duration) (IngestResult, error) {
	var result IngestResult

	var videos []domain.VideoRecord
	for _, channelID := range i.channels {
		scraped, err := i.videos.ScrapeChannel(ctx, channelID, lookback)
		if err != nil {
			i.logger.Warn("channel scrape failed", "channel_id", channelID, "error", err)
			continue
		}
		i.logger.Info("channel scraped", "channel_id", channelID, "videos", len(scraped))
		videos = append(videos, scraped...)
	}

	var articles []domain.ArticleRecord
	for _, spec := range i.feeds {
		scraped, err := i.articles.ScrapeFeed(ctx, spec, lookback)
		if err != nil {
			i.logger.Warn("feed scrape failed", "feed", spec.Name, "url", spec.URL, "error", err)
			continue
		}
		i.logger.Info("feed scraped", "feed", spec.Name, "articles", len(scraped))
		articles = append(articles, scraped...)
	}

	if len(videos) > 0 {
		inserted, err := i.store.BulkCreateVideosIfAbsent(ctx, videos)
		if err != nil {
			return result, fmt.Errorf("persist videos: %w", err)
		}
		result.Videos = inserted
	}

	if len(articles) > 0 {
		inserted, err := i.store.BulkCreateArticlesIfAbsent(ctx, articles)
		if err != nil {
			return result, fmt.Errorf("persist articles: %w", err)
		}
		result.Articles = inserted
	}

	i.logger.Info("ingest run complete",
		"videos_scraped", len(videos), "videos_new", len(result.Videos),
		"articles_scraped", len(articles), "articles_new", len(result.Articles))

	return result, nil
}
