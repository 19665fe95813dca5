package domain

import "time"

// TranscriptState tracks what we know about a video's transcript.
type TranscriptState int

const (
	// TranscriptNotFetched means no fetch has succeeded yet; a later run may retry.
	TranscriptNotFetched TranscriptState = iota
	// TranscriptUnavailable is terminal: captions are disabled or none exist
	// in the requested languages. Future runs must not retry.
	TranscriptUnavailable
	// TranscriptFetched means Text holds the transcript.
	TranscriptFetched
)

// Transcript is a tri-state value: not fetched, fetched-none, or fetched text.
type Transcript struct {
	State TranscriptState
	Text  string
}

// FetchedTranscript wraps transcript text obtained from the provider.
func FetchedTranscript(text string) Transcript {
	return Transcript{State: TranscriptFetched, Text: text}
}

// UnavailableTranscript marks a video as permanently without captions.
func UnavailableTranscript() Transcript {
	return Transcript{State: TranscriptUnavailable}
}

// VideoRecord describes a YouTube video sighted by the channel poller.
// Identity is VideoID; records are created once and never rewritten.
type VideoRecord struct {
	VideoID     string
	Title       string
	URL         string
	ChannelID   string
	PublishedAt time.Time
	Description string
	Transcript  Transcript
	CreatedAt   time.Time
}

// ArticleRecord describes a news article scraped from an RSS feed.
// Identity is the canonical URL.
type ArticleRecord struct {
	URL         string
	Title       string
	Source      string
	PublishedAt time.Time
	Content     string
	CreatedAt   time.Time
}

// FeedSpec identifies one news feed to poll.
type FeedSpec struct {
	Name string
	URL  string
	// ContentSelector locates the article body container on the site
	// (e.g. "div.noi-dung"). Empty means paragraph fallback only.
	ContentSelector string
}
