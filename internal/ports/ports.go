package ports

import (
	"context"
	"time"

	"NewsDigest/internal/domain"
)

// VideoSource polls one YouTube channel for videos inside the lookback window.
type VideoSource interface {
	ScrapeChannel(ctx context.Context, channelID string, lookback time.Duration) ([]domain.VideoRecord, error)
}

// ArticleSource polls one RSS feed for articles inside the lookback window.
type ArticleSource interface {
	ScrapeFeed(ctx context.Context, feed domain.FeedSpec, lookback time.Duration) ([]domain.ArticleRecord, error)
}

// TranscriptSource fetches a video transcript, trying languages in preference
// order. A Transcript in state Unavailable is a definitive "no captions exist"
// answer; a non-nil error means a transient failure and the caller must leave
// the record retryable.
type TranscriptSource interface {
	Fetch(ctx context.Context, videoID string) (domain.Transcript, error)
}

// ContentExtractor turns a page URL into best-effort plain text. It never
// fails: total extraction failure yields the empty string.
type ContentExtractor interface {
	Extract(ctx context.Context, pageURL, contentSelector string) string
}

// VideoStore persists video records with insert-if-absent semantics keyed by
// video id. Bulk insertion checks each record individually so a batch may mix
// new and already-seen videos.
type VideoStore interface {
	CreateVideoIfAbsent(ctx context.Context, video domain.VideoRecord) (bool, error)
	BulkCreateVideosIfAbsent(ctx context.Context, videos []domain.VideoRecord) ([]domain.VideoRecord, error)
}

// ArticleStore persists article records with insert-if-absent semantics keyed
// by canonical URL.
type ArticleStore interface {
	CreateArticleIfAbsent(ctx context.Context, article domain.ArticleRecord) (bool, error)
	BulkCreateArticlesIfAbsent(ctx context.Context, articles []domain.ArticleRecord) ([]domain.ArticleRecord, error)
}

// DigestStore persists write-once digests under their composite key. The
// store's uniqueness constraint is the final arbiter under races: a rejected
// duplicate insert reports created=false, never an error.
type DigestStore interface {
	HasDigest(ctx context.Context, key domain.DigestKey) (bool, error)
	CreateDigestIfAbsent(ctx context.Context, digest domain.DigestRecord) (bool, error)
	// PendingDigests returns content of the given kind that is eligible for
	// summarization and has no digest yet, computed as an anti-join over
	// existing digest keys. limit <= 0 means no limit.
	PendingDigests(ctx context.Context, kind domain.ContentKind, limit int) ([]domain.PendingItem, error)
}

// ContentStore is the full persistence capability shared by the pipeline.
type ContentStore interface {
	VideoStore
	ArticleStore
	DigestStore
	// LatestContent reports records ingested within the last lookback window,
	// for downstream run reports.
	LatestContent(ctx context.Context, lookback time.Duration) ([]domain.VideoRecord, []domain.ArticleRecord, error)
}

// DigestRequest is the input to the summarization capability.
type DigestRequest struct {
	ContentType string
	Title       string
	Content     string
}

// DigestOutput is the structured result every summarizer must produce.
type DigestOutput struct {
	Title   string
	Summary string
}

// Summarizer generates a short structured digest for one content item.
// Any failure (transport, malformed payload, schema violation) is returned
// as an error; callers log and skip, leaving the item for a later run.
type Summarizer interface {
	GenerateDigest(ctx context.Context, req DigestRequest) (DigestOutput, error)
}

// Notifier publishes a run report to an outbound channel.
type Notifier interface {
	PublishDigest(ctx context.Context, message string) error
}

// Scheduler controls when pipeline runs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
