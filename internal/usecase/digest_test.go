package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"NewsDigest/internal/domain"
	"NewsDigest/internal/logging"
	"NewsDigest/internal/ports"
)

type fakeSummarizer struct {
	err      error
	requests []ports.DigestRequest
}

func (f *fakeSummarizer) GenerateDigest(_ context.Context, req ports.DigestRequest) (ports.DigestOutput, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return ports.DigestOutput{}, f.err
	}
	return ports.DigestOutput{Title: "Bản tin: " + req.Title, Summary: "Tóm tắt."}, nil
}

func TestDigestRunCreatesDigestsForPendingItems(t *testing.T) {
	t.Parallel()

	published := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	store := newFakeStore()
	store.pending[domain.KindVideo] = []domain.PendingItem{
		{Key: domain.DigestKey{Kind: domain.KindVideo, ID: "v1"}, Title: "video one", URL: "u1", Content: "transcript", PublishedAt: published},
	}
	store.pending[domain.KindArticle] = []domain.PendingItem{
		{Key: domain.DigestKey{Kind: domain.KindArticle, ID: "https://example.com/a"}, Title: "article one", URL: "https://example.com/a", Content: "body", PublishedAt: published},
	}

	summarizer := &fakeSummarizer{}
	worker := NewDigestWorker(DigestDeps{Store: store, Summarizer: summarizer, Logger: logging.New("error")})

	created, err := worker.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, created, 2)

	require.Equal(t, domain.KindVideo, created[0].Key.Kind)
	require.Equal(t, "Bản tin: video one", created[0].Title)
	require.Equal(t, "u1", created[0].URL)
	require.Equal(t, published, created[0].EffectiveAt)
	require.Equal(t, domain.KindArticle, created[1].Key.Kind)

	require.Len(t, summarizer.requests, 2)
	require.Equal(t, "video", summarizer.requests[0].ContentType)
	require.Equal(t, "article", summarizer.requests[1].ContentType)
	require.Len(t, store.digests, 2)
}

func TestDigestRunSkipsAlreadyDigested(t *testing.T) {
	t.Parallel()

	key := domain.DigestKey{Kind: domain.KindVideo, ID: "v1"}
	store := newFakeStore()
	store.digests[key] = domain.DigestRecord{Key: key}
	store.pending[domain.KindVideo] = []domain.PendingItem{
		{Key: key, Title: "stale selection", Content: "transcript"},
	}

	summarizer := &fakeSummarizer{}
	worker := NewDigestWorker(DigestDeps{Store: store, Summarizer: summarizer, Logger: logging.New("error")})

	created, err := worker.Run(context.Background())
	require.NoError(t, err)
	require.Empty(t, created)
	require.Empty(t, summarizer.requests, "an existing digest must short-circuit before the summarizer is called")
}

func TestDigestRunSummarizerFailureLeavesItemEligible(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.pending[domain.KindVideo] = []domain.PendingItem{
		{Key: domain.DigestKey{Kind: domain.KindVideo, ID: "v1"}, Title: "t", Content: "c"},
	}

	summarizer := &fakeSummarizer{err: errors.New("model overloaded")}
	worker := NewDigestWorker(DigestDeps{Store: store, Summarizer: summarizer, Logger: logging.New("error")})

	created, err := worker.Run(context.Background())
	require.NoError(t, err, "a summarizer failure must not fail the run")
	require.Empty(t, created)
	require.Empty(t, store.digests, "nothing may be persisted for a failed summarization")
	require.Zero(t, store.digestCalls)
}

func TestDigestRunTruncatesContent(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.pending[domain.KindArticle] = []domain.PendingItem{
		{Key: domain.DigestKey{Kind: domain.KindArticle, ID: "a1"}, Title: "t", Content: strings.Repeat("ằ", 50)},
	}

	summarizer := &fakeSummarizer{}
	worker := NewDigestWorker(DigestDeps{Store: store, Summarizer: summarizer, Logger: logging.New("error"), MaxInputChars: 10})

	_, err := worker.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, summarizer.requests, 1)
	require.Equal(t, strings.Repeat("ằ", 10), summarizer.requests[0].Content, "truncation counts runes, not bytes")
}

func TestDigestRunDefaultsEffectiveAtToNow(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	store.pending[domain.KindVideo] = []domain.PendingItem{
		{Key: domain.DigestKey{Kind: domain.KindVideo, ID: "v1"}, Title: "t", Content: "c"},
	}

	worker := NewDigestWorker(DigestDeps{Store: store, Summarizer: &fakeSummarizer{}, Logger: logging.New("error")})
	worker.now = func() time.Time { return now }

	created, err := worker.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, created, 1)
	require.Equal(t, now, created[0].EffectiveAt)
}

func TestDigestRunLostWriteRaceNotCounted(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	item := domain.PendingItem{Key: domain.DigestKey{Kind: domain.KindVideo, ID: "v1"}, Title: "t", Content: "c"}
	// The same key selected twice in one run: the second write conflicts.
	store.pending[domain.KindVideo] = []domain.PendingItem{item, item}

	worker := NewDigestWorker(DigestDeps{Store: store, Summarizer: &fakeSummarizer{}, Logger: logging.New("error")})

	created, err := worker.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, created, 1)
	require.Len(t, store.digests, 1)
}
