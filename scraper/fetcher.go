package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"aptwatch/config"
	"aptwatch/httputil"
)

// FetchError tags a failed page fetch as transient (worth retrying) or
// permanent. The fetcher retries transient failures itself; what escapes
// is either a permanent failure or a transient one with retries exhausted.
type FetchError struct {
	URL       string
	Status    int
	Transient bool
	Err       error
}

func (e *FetchError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: %s failure: status %d", e.URL, kind, e.Status)
	}
	return fmt.Sprintf("fetch %s: %s failure: %v", e.URL, kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a FetchError that was retryable.
func IsTransient(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Transient
}

// Fetcher retrieves raw page content. Implementations enforce the pacing
// delay between successive fetches themselves, so callers cannot
// accidentally hammer the target site.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) (string, error)
	Close()
}

func NewFetcher(settings config.ScraperSettings) Fetcher {
	switch settings.Fetcher {
	case "browser":
		return NewBrowserFetcher(settings)
	default:
		return NewHTTPFetcher(settings)
	}
}

type HTTPFetcher struct {
	settings config.ScraperSettings
	client   *http.Client

	mu        sync.Mutex
	lastFetch time.Time
}

func NewHTTPFetcher(settings config.ScraperSettings) *HTTPFetcher {
	return &HTTPFetcher{
		settings: settings,
		client:   httputil.NewScrapingClient(settings),
	}
}

func (f *HTTPFetcher) Close() {}

// Fetch retrieves pageURL, retrying transient failures with exponential
// backoff up to the configured attempt budget. Timeouts, connection errors,
// 5xx and 429 are transient; other 4xx and malformed URLs are permanent and
// propagate immediately.
func (f *HTTPFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	if _, err := url.ParseRequestURI(pageURL); err != nil {
		return "", &FetchError{URL: pageURL, Transient: false, Err: err}
	}

	if err := f.pace(ctx); err != nil {
		return "", err
	}

	backoff := time.Second
	var lastErr *FetchError

	for attempt := 1; attempt <= f.settings.MaxRetries; attempt++ {
		body, ferr := f.fetchOnce(ctx, pageURL)
		if ferr == nil {
			return body, nil
		}
		if !ferr.Transient {
			return "", ferr
		}

		lastErr = ferr
		if attempt < f.settings.MaxRetries {
			log.Printf("Fetch attempt %d/%d failed (%v), retrying in %v",
				attempt, f.settings.MaxRetries, ferr, backoff)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
			backoff *= 2
		}
	}

	// Retries exhausted: escalate to permanent for this page.
	return "", &FetchError{URL: pageURL, Status: lastErr.Status, Transient: false,
		Err: fmt.Errorf("exhausted %d attempts: %w", f.settings.MaxRetries, lastErr.Err)}
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, pageURL string) (string, *FetchError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", &FetchError{URL: pageURL, Transient: false, Err: err}
	}
	req.Header.Set("User-Agent", f.settings.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		// Timeouts and connection resets land here.
		return "", &FetchError{URL: pageURL, Transient: true, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		io.Copy(io.Discard, resp.Body)
		return "", &FetchError{URL: pageURL, Status: resp.StatusCode, Transient: true,
			Err: fmt.Errorf("status %d", resp.StatusCode)}
	default:
		io.Copy(io.Discard, resp.Body)
		return "", &FetchError{URL: pageURL, Status: resp.StatusCode, Transient: false,
			Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &FetchError{URL: pageURL, Transient: true, Err: err}
	}
	return string(body), nil
}

// pace enforces the fixed inter-fetch delay, success or failure.
func (f *HTTPFetcher) pace(ctx context.Context) error {
	f.mu.Lock()
	wait := f.settings.PageDelay() - time.Since(f.lastFetch)
	if wait < 0 {
		wait = 0
	}
	f.lastFetch = time.Now().Add(wait)
	f.mu.Unlock()

	if wait == 0 {
		return nil
	}
	select {
	case <-time.After(wait):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
