package transcript

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"NewsDigest/internal/config"
	"NewsDigest/internal/domain"
	"NewsDigest/internal/ports"
)

// Transcript fetching scrapes the watch page, extracts the caption track list
// from ytInitialPlayerResponse, picks a track in language-preference order,
// and downloads its timedtext XML.
//
// The two failure modes matter more than the happy path: a video with caption
// tracks structurally absent (or none in the requested languages) yields the
// terminal Unavailable state so no future run retries it, while transport and
// parse failures yield an error and leave the video retryable.

const (
	watchBaseURL    = "https://www.youtube.com/watch"
	playerRespStart = "ytInitialPlayerResponse = "
	maxWatchPage    = 6 << 20
	maxTimedText    = 512 << 10

	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
)

type playerResponse struct {
	Captions *struct {
		PlayerCaptionsTracklistRenderer struct {
			CaptionTracks []captionTrack `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
	PlayabilityStatus *struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
}

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"` // "asr" = auto-generated
}

type timedText struct {
	Lines []timedTextLine `xml:"text"`
}

type timedTextLine struct {
	Text string `xml:",chardata"`
}

// Fetcher retrieves video transcripts, optionally through an authenticated
// outbound proxy (transcript endpoints are the only calls YouTube throttles
// aggressively by IP).
type Fetcher struct {
	client   *http.Client
	langs    []string
	limiter  *rate.Limiter
	logger   *slog.Logger
	watchURL string
}

var _ ports.TranscriptSource = (*Fetcher)(nil)

// NewFetcher builds a transcript fetcher from configuration.
func NewFetcher(cfg config.TranscriptConfig, logger *slog.Logger) *Fetcher {
	client := &http.Client{Timeout: 15 * time.Second}

	if cfg.Proxy.Enabled() {
		proxyURL := &url.URL{
			Scheme: "http",
			Host:   cfg.Proxy.Address,
			User:   url.UserPassword(cfg.Proxy.Username, cfg.Proxy.Password),
		}
		client.Transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
	}

	langs := cfg.Languages
	if len(langs) == 0 {
		langs = []string{"vi", "en"}
	}

	return &Fetcher{
		client:   client,
		langs:    langs,
		limiter:  rate.NewLimiter(rate.Every(time.Second), 1),
		logger:   logger,
		watchURL: watchBaseURL,
	}
}

// Fetch returns the transcript for videoID. A Transcript in state Unavailable
// with a nil error is a definitive "no captions exist for the requested
// languages"; a non-nil error is transient and the caller must keep the video
// retryable.
func (f *Fetcher) Fetch(ctx context.Context, videoID string) (domain.Transcript, error) {
	body, err := f.fetchWatchPage(ctx, videoID)
	if err != nil {
		return domain.Transcript{}, err
	}

	player, err := parsePlayerResponse(body)
	if err != nil {
		return domain.Transcript{}, fmt.Errorf("video %s: %w", videoID, err)
	}

	if player.Captions == nil {
		f.logger.Info("captions disabled", "video_id", videoID)
		return domain.UnavailableTranscript(), nil
	}
	tracks := player.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks
	if len(tracks) == 0 {
		f.logger.Info("no caption tracks", "video_id", videoID)
		return domain.UnavailableTranscript(), nil
	}

	track, ok := pickTrack(tracks, f.langs)
	if !ok {
		// Captions exist, but none in the requested languages. Terminal for
		// the same reason as disabled captions: retrying cannot change it.
		f.logger.Info("no caption track in requested languages", "video_id", videoID, "languages", strings.Join(f.langs, ","))
		return domain.UnavailableTranscript(), nil
	}

	text, err := f.fetchTimedText(ctx, track.BaseURL)
	if err != nil {
		return domain.Transcript{}, fmt.Errorf("video %s: %w", videoID, err)
	}
	if text == "" {
		return domain.Transcript{}, fmt.Errorf("video %s: empty timedtext payload", videoID)
	}

	return domain.FetchedTranscript(text), nil
}

func (f *Fetcher) fetchWatchPage(ctx context.Context, videoID string) ([]byte, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.watchURL+"?v="+url.QueryEscape(videoID), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("watch page %s: %w", videoID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("watch page %s returned %s", videoID, resp.Status)
	}

	return io.ReadAll(io.LimitReader(resp.Body, maxWatchPage))
}

func (f *Fetcher) fetchTimedText(ctx context.Context, trackURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, trackURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch timedtext: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("timedtext returned %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTimedText))
	if err != nil {
		return "", fmt.Errorf("read timedtext: %w", err)
	}

	var tt timedText
	if err := xml.Unmarshal(body, &tt); err != nil {
		return "", fmt.Errorf("parse timedtext: %w", err)
	}

	var sb strings.Builder
	for _, line := range tt.Lines {
		text := strings.TrimSpace(html.UnescapeString(line.Text))
		if text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(text)
	}

	return sb.String(), nil
}

func parsePlayerResponse(page []byte) (playerResponse, error) {
	var player playerResponse

	idx := strings.Index(string(page), playerRespStart)
	if idx < 0 {
		return player, errors.New("ytInitialPlayerResponse not found")
	}

	raw := extractJSON(page[idx+len(playerRespStart):])
	if raw == nil {
		return player, errors.New("malformed ytInitialPlayerResponse")
	}

	if err := json.Unmarshal(raw, &player); err != nil {
		return player, fmt.Errorf("decode player response: %w", err)
	}

	return player, nil
}

// pickTrack selects a caption track by the language preference order:
// a manually-authored track beats an auto-generated ("asr") one within each
// language, and earlier languages beat later ones.
func pickTrack(tracks []captionTrack, langs []string) (captionTrack, bool) {
	for _, lang := range langs {
		for _, track := range tracks {
			if track.LanguageCode == lang && track.Kind != "asr" {
				return track, true
			}
		}
	}
	for _, lang := range langs {
		for _, track := range tracks {
			if track.LanguageCode == lang {
				return track, true
			}
		}
	}
	return captionTrack{}, false
}

// extractJSON returns the balanced JSON object at the start of b, or nil.
func extractJSON(b []byte) []byte {
	if len(b) == 0 || b[0] != '{' {
		return nil
	}
	depth := 0
	inStr := false
	var prev byte
	for i, c := range b {
		if inStr {
			if c == '"' && prev != '\\' {
				inStr = false
			}
		} else {
			switch c {
			case '"':
				inStr = true
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					return b[:i+1]
				}
			}
		}
		prev = c
	}
	return nil
}
