package transcript

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"NewsDigest/internal/config"
	"NewsDigest/internal/domain"
	"NewsDigest/internal/logging"
)

func newTestFetcher(t *testing.T, handler http.Handler) (*Fetcher, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	f := NewFetcher(config.TranscriptConfig{Languages: []string{"vi", "en"}}, logging.New("error"))
	f.client = server.Client()
	f.watchURL = server.URL + "/watch"
	return f, server
}

func watchPage(playerJSON string) string {
	return fmt.Sprintf(`<html><body><script>var ytInitialPlayerResponse = %s;var other = {};</script></body></html>`, playerJSON)
}

func TestFetchTranscript(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	var server *httptest.Server

	mux.HandleFunc("/watch", func(w http.ResponseWriter, r *http.Request) {
		player := fmt.Sprintf(`{"captions":{"playerCaptionsTracklistRenderer":{"captionTracks":[
			{"baseUrl":"%s/timedtext?lang=en","languageCode":"en","kind":"asr"},
			{"baseUrl":"%s/timedtext?lang=vi","languageCode":"vi"}
		]}},"playabilityStatus":{"status":"OK"}}`, server.URL, server.URL)
		_, _ = w.Write([]byte(watchPage(player)))
	})
	mux.HandleFunc("/timedtext", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("lang") != "vi" {
			t.Errorf("expected the manual vi track, got lang=%s", r.URL.Query().Get("lang"))
		}
		_, _ = w.Write([]byte(`<?xml version="1.0"?><transcript>
			<text start="0" dur="2">Xin ch&#224;o</text>
			<text start="2" dur="2">c&#225;c bạn</text>
			<text start="4" dur="1"> </text>
		</transcript>`))
	})

	f, s := newTestFetcher(t, mux)
	server = s

	got, err := f.Fetch(context.Background(), "vid00000001")
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if got.State != domain.TranscriptFetched {
		t.Fatalf("expected fetched transcript, got state %v", got.State)
	}
	if got.Text != "Xin chào các bạn" {
		t.Fatalf("unexpected transcript text: %q", got.Text)
	}
}

func TestFetchCaptionsDisabledIsPermanent(t *testing.T) {
	t.Parallel()

	f, _ := newTestFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(watchPage(`{"playabilityStatus":{"status":"OK"}}`)))
	}))

	got, err := f.Fetch(context.Background(), "vid00000002")
	if err != nil {
		t.Fatalf("disabled captions must not be an error: %v", err)
	}
	if got.State != domain.TranscriptUnavailable {
		t.Fatalf("expected unavailable state, got %v", got.State)
	}
}

func TestFetchNoTrackInRequestedLanguagesIsPermanent(t *testing.T) {
	t.Parallel()

	f, _ := newTestFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		player := `{"captions":{"playerCaptionsTracklistRenderer":{"captionTracks":[
			{"baseUrl":"http://unused/timedtext","languageCode":"de"}
		]}}}`
		_, _ = w.Write([]byte(watchPage(player)))
	}))

	got, err := f.Fetch(context.Background(), "vid00000003")
	if err != nil {
		t.Fatalf("missing language must not be an error: %v", err)
	}
	if got.State != domain.TranscriptUnavailable {
		t.Fatalf("expected unavailable state, got %v", got.State)
	}
}

func TestFetchTransportFailureIsTransient(t *testing.T) {
	t.Parallel()

	f, _ := newTestFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
	}))

	got, err := f.Fetch(context.Background(), "vid00000004")
	if err == nil {
		t.Fatal("expected error for HTTP 429")
	}
	if got.State != domain.TranscriptNotFetched {
		t.Fatalf("transient failure must leave state not-fetched, got %v", got.State)
	}
}

func TestFetchTimedTextFailureIsTransient(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	var server *httptest.Server

	mux.HandleFunc("/watch", func(w http.ResponseWriter, r *http.Request) {
		player := fmt.Sprintf(`{"captions":{"playerCaptionsTracklistRenderer":{"captionTracks":[
			{"baseUrl":"%s/timedtext","languageCode":"vi"}
		]}}}`, server.URL)
		_, _ = w.Write([]byte(watchPage(player)))
	})
	mux.HandleFunc("/timedtext", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	})

	f, s := newTestFetcher(t, mux)
	server = s

	got, err := f.Fetch(context.Background(), "vid00000005")
	if err == nil {
		t.Fatal("expected error when the caption track fetch fails")
	}
	if got.State != domain.TranscriptNotFetched {
		t.Fatalf("expected not-fetched state, got %v", got.State)
	}
}

func TestPickTrackPrefersManualAndLanguageOrder(t *testing.T) {
	t.Parallel()

	tracks := []captionTrack{
		{BaseURL: "u1", LanguageCode: "en", Kind: "asr"},
		{BaseURL: "u2", LanguageCode: "vi", Kind: "asr"},
		{BaseURL: "u3", LanguageCode: "en"},
	}

	// Manual en beats auto-generated vi even though vi comes first.
	track, ok := pickTrack(tracks, []string{"vi", "en"})
	if !ok {
		t.Fatal("expected a track")
	}
	if track.BaseURL != "u3" {
		t.Fatalf("expected manual en track, got %s", track.BaseURL)
	}

	// With only asr tracks, language order decides.
	asrOnly := tracks[:2]
	track, ok = pickTrack(asrOnly, []string{"vi", "en"})
	if !ok || track.BaseURL != "u2" {
		t.Fatalf("expected vi asr track, got %+v ok=%v", track, ok)
	}

	if _, ok := pickTrack(tracks, []string{"ja"}); ok {
		t.Fatal("expected no track for unrequested language")
	}
}

func TestExtractJSON(t *testing.T) {
	t.Parallel()

	raw := []byte(`{"a":{"b":"with } brace","c":"esc\"aped"},"d":1};rest`)
	got := extractJSON(raw)
	want := `{"a":{"b":"with } brace","c":"esc\"aped"},"d":1}`
	if string(got) != want {
		t.Fatalf("extractJSON = %s, want %s", got, want)
	}

	if extractJSON([]byte(`{"unterminated":`)) != nil {
		t.Fatal("expected nil for unbalanced JSON")
	}
	if extractJSON([]byte(`not json`)) != nil {
		t.Fatal("expected nil for non-object input")
	}
}
