package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"NewsDigest/internal/domain"
	"NewsDigest/internal/feed"
	"NewsDigest/internal/ports"
)

const youtubeFeedBaseURL = "https://www.youtube.com/feeds/videos.xml"

// YouTubeScraper polls a channel's public Atom feed and attaches transcripts
// to every video inside the lookback window.
type YouTubeScraper struct {
	client      *fetchClient
	transcripts ports.TranscriptSource
	logger      *slog.Logger
	feedBaseURL string
	now         func() time.Time
}

var _ ports.VideoSource = (*YouTubeScraper)(nil)

// NewYouTubeScraper wires an HTTP client and a transcript source.
func NewYouTubeScraper(client *http.Client, transcripts ports.TranscriptSource, logger *slog.Logger) *YouTubeScraper {
	return &YouTubeScraper{
		client:      newFetchClient(client),
		transcripts: transcripts,
		logger:      logger,
		feedBaseURL: youtubeFeedBaseURL,
		now:         time.Now,
	}
}

// ScrapeChannel returns the channel's videos published inside the lookback
// window, in feed order. Shorts are skipped. Videos whose transcript fetch
// fails transiently are emitted with a not-fetched transcript so a later run
// retries; videos without captions carry the terminal unavailable state.
func (s *YouTubeScraper) ScrapeChannel(ctx context.Context, channelID string, lookback time.Duration) ([]domain.VideoRecord, error) {
	feedURL := fmt.Sprintf("%s?channel_id=%s", s.feedBaseURL, url.QueryEscape(channelID))

	resp, err := s.client.get(ctx, feedURL)
	if err != nil {
		return nil, fmt.Errorf("fetch channel feed %s: %w", channelID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("channel feed %s returned %s", channelID, resp.Status)
	}

	entries, err := feed.ParseAtom(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("channel feed %s: %w", channelID, err)
	}

	cutoff := s.now().UTC().Add(-lookback)
	videos := make([]domain.VideoRecord, 0, len(entries))

	for _, entry := range entries {
		if strings.Contains(entry.Link, "/shorts/") {
			continue
		}
		if entry.PublishedAt.Before(cutoff) {
			continue
		}

		video := domain.VideoRecord{
			VideoID:     extractVideoID(entry.Link),
			Title:       entry.Title,
			URL:         entry.Link,
			ChannelID:   channelID,
			PublishedAt: entry.PublishedAt,
			Description: entry.Description,
		}

		video.Transcript = s.fetchTranscript(ctx, video.VideoID)
		videos = append(videos, video)
	}

	return videos, nil
}

func (s *YouTubeScraper) fetchTranscript(ctx context.Context, videoID string) domain.Transcript {
	if s.transcripts == nil {
		return domain.Transcript{}
	}

	transcript, err := s.transcripts.Fetch(ctx, videoID)
	if err != nil {
		// Transient failure: leave the transcript not-fetched so the next
		// poller run retries this video.
		s.logger.Warn("transcript fetch failed", "video_id", videoID, "error", err)
		return domain.Transcript{}
	}

	return transcript
}

// extractVideoID derives a stable id from the three known YouTube link shapes
// (watch?v=, /shorts/, youtu.be/). Unrecognized links fall back to the raw
// link string as a degraded identity.
func extractVideoID(link string) string {
	parsed, err := url.Parse(link)
	if err != nil {
		return link
	}

	if v := parsed.Query().Get("v"); v != "" && strings.HasSuffix(parsed.Path, "/watch") {
		return v
	}

	if rest, ok := strings.CutPrefix(parsed.Path, "/shorts/"); ok {
		if id, _, _ := strings.Cut(rest, "/"); id != "" {
			return id
		}
	}

	if strings.Contains(parsed.Host, "youtu.be") {
		if id, _, _ := strings.Cut(strings.TrimPrefix(parsed.Path, "/"), "/"); id != "" {
			return id
		}
	}

	return link
}
