package scraper

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// browserUserAgent makes outbound fetches look like a real browser; several
// feed hosts answer bare Go clients with 403.
const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// fetchClient wraps an HTTP client with the anti-bot header strategy and a
// politeness limiter shared by all scrapers.
type fetchClient struct {
	http    *http.Client
	limiter *rate.Limiter
}

func newFetchClient(client *http.Client) *fetchClient {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &fetchClient{
		http:    client,
		limiter: rate.NewLimiter(rate.Every(500*time.Millisecond), 2),
	}
}

func (c *fetchClient) get(ctx context.Context, pageURL string) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept-Language", "vi,en;q=0.9")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", pageURL, err)
	}

	return resp, nil
}
