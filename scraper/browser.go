package scraper

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"aptwatch/config"
)

// BrowserFetcher renders pages in headless Chromium before returning their
// HTML. Search results are JavaScript-rendered, so the plain HTTP fetcher
// only works against cached or pre-rendered responses; this variant is the
// one to configure against the live site.
type BrowserFetcher struct {
	settings config.ScraperSettings

	mu          sync.Mutex
	pw          *playwright.Playwright
	browser     playwright.Browser
	initialized bool
	lastFetch   time.Time
}

const renderWait = 5 * time.Second

func NewBrowserFetcher(settings config.ScraperSettings) *BrowserFetcher {
	return &BrowserFetcher{settings: settings}
}

func (f *BrowserFetcher) ensureBrowser() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.initialized {
		return nil
	}

	var err error
	f.pw, err = playwright.Run()
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	f.browser, err = f.pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
		},
	})
	if err != nil {
		f.pw.Stop()
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	f.initialized = true
	return nil
}

func (f *BrowserFetcher) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.browser != nil {
		f.browser.Close()
		f.browser = nil
	}
	if f.pw != nil {
		f.pw.Stop()
		f.pw = nil
	}
	f.initialized = false
}

func (f *BrowserFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	if err := f.pace(ctx); err != nil {
		return "", err
	}
	if err := f.ensureBrowser(); err != nil {
		return "", &FetchError{URL: pageURL, Transient: true, Err: err}
	}

	backoff := time.Second
	var lastErr error

	for attempt := 1; attempt <= f.settings.MaxRetries; attempt++ {
		html, err := f.fetchOnce(pageURL)
		if err == nil {
			return html, nil
		}
		lastErr = err

		// Navigation failures leave the browser in an unknown state;
		// relaunch before the next attempt.
		f.Close()

		if attempt < f.settings.MaxRetries {
			log.Printf("Browser fetch attempt %d/%d failed (%v), retrying in %v",
				attempt, f.settings.MaxRetries, err, backoff)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
			backoff *= 2

			if err := f.ensureBrowser(); err != nil {
				return "", &FetchError{URL: pageURL, Transient: true, Err: err}
			}
		}
	}

	return "", &FetchError{URL: pageURL, Transient: false,
		Err: fmt.Errorf("exhausted %d attempts: %w", f.settings.MaxRetries, lastErr)}
}

func (f *BrowserFetcher) fetchOnce(pageURL string) (string, error) {
	page, err := f.browser.NewPage(playwright.BrowserNewPageOptions{
		UserAgent: playwright.String(f.settings.UserAgent),
	})
	if err != nil {
		return "", fmt.Errorf("new page: %w", err)
	}
	defer page.Close()

	_, err = page.Goto(pageURL, playwright.PageGotoOptions{
		Timeout:   playwright.Float(float64(f.settings.Timeout().Milliseconds())),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	if err != nil {
		return "", fmt.Errorf("goto: %w", err)
	}

	// Listings are loaded after the document itself.
	page.WaitForTimeout(float64(renderWait.Milliseconds()))

	html, err := page.Content()
	if err != nil {
		return "", fmt.Errorf("content: %w", err)
	}
	return html, nil
}

func (f *BrowserFetcher) pace(ctx context.Context) error {
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
