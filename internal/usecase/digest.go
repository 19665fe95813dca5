package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"NewsDigest/internal/domain"
	"NewsDigest/internal/ports"
)

// DigestDeps wires the store and summarizer into the digest phase.
type DigestDeps struct {
	Store      ports.DigestStore
	Summarizer ports.Summarizer
	Logger     *slog.Logger
	// Limit caps items summarized per kind per run; 0 means unlimited.
	Limit int
	// MaxInputChars bounds the content sent to the summarizer.
	MaxInputChars int
}

// DigestWorker selects content without a digest and summarizes it. The
// at-most-one-digest guarantee is enforced at write time: the worker checks
// the key before calling the summarizer and the store rejects a duplicate
// insert if another writer won the race in between.
type DigestWorker struct {
	store      ports.DigestStore
	summarizer ports.Summarizer
	logger     *slog.Logger
	limit      int
	maxChars   int
	now        func() time.Time
}

// NewDigestWorker constructs the digest phase.
func NewDigestWorker(deps DigestDeps) *DigestWorker {
	maxChars := deps.MaxInputChars
	if maxChars <= 0 {
		maxChars = 8000
	}
	return &DigestWorker{
		store:      deps.Store,
		summarizer: deps.Summarizer,
		logger:     deps.Logger,
		limit:      deps.Limit,
		maxChars:   maxChars,
		now:        time.Now,
	}
}

// Run processes pending videos then pending articles and returns the digests
// created. A failed summarization is logged and skipped; the item stays
// eligible for the next run.
func (w *DigestWorker) Run(ctx context.Context) ([]domain.DigestRecord, error) {
	var created []domain.DigestRecord

	for _, kind := range []domain.ContentKind{domain.KindVideo, domain.KindArticle} {
		items, err := w.store.PendingDigests(ctx, kind, w.limit)
		if err != nil {
			return created, fmt.Errorf("select pending %s digests: %w", kind, err)
		}
		w.logger.Info("pending digests selected", "kind", kind, "count", len(items))

		for _, item := range items {
			if digest, ok := w.processItem(ctx, item); ok {
				created = append(created, digest)
			}
		}
	}

	return created, nil
}

func (w *DigestWorker) processItem(ctx context.Context, item domain.PendingItem) (domain.DigestRecord, bool) {
	exists, err := w.store.HasDigest(ctx, item.Key)
	if err != nil {
		w.logger.Warn("digest lookup failed", "key", item.Key, "error", err)
		return domain.DigestRecord{}, false
	}
	if exists {
		return domain.DigestRecord{}, false
	}

	output, err := w.summarizer.GenerateDigest(ctx, ports.DigestRequest{
		ContentType: string(item.Key.Kind),
		Title:       item.Title,
		Content:     truncateRunes(item.Content, w.maxChars),
	})
	if err != nil {
		// Nothing is persisted: the item comes back in the next selection.
		w.logger.Warn("summarization failed", "key", item.Key, "url", item.URL, "error", err)
		return domain.DigestRecord{}, false
	}

	effectiveAt := item.PublishedAt
	if effectiveAt.IsZero() {
		effectiveAt = w.now()
	}

	digest := domain.DigestRecord{
		Key:         item.Key,
		URL:         item.URL,
		Title:       output.Title,
		Summary:     output.Summary,
		EffectiveAt: effectiveAt,
	}

	created, err := w.store.CreateDigestIfAbsent(ctx, digest)
	if err != nil {
		w.logger.Warn("digest write failed", "key", item.Key, "error", err)
		return domain.DigestRecord{}, false
	}
	if !created {
		// A concurrent run summarized this item first; its digest wins.
		w.logger.Debug("digest already written by another run", "key", item.Key)
		return domain.DigestRecord{}, false
	}

	w.logger.Info("digest created", "key", item.Key, "title", output.Title)
	return digest, true
}

func truncateRunes(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
