package httputil

import (
	"net/http"
	"net/url"

	"aptwatch/config"
)

// NewScrapingClient builds the client used for target-site fetches. The
// per-attempt timeout comes from scraper settings; an optional proxy is
// applied at the transport so the fetcher never has to care.
func NewScrapingClient(settings config.ScraperSettings) *http.Client {
	client := &http.Client{
		Timeout: settings.Timeout(),
	}

	if settings.ProxyURL != "" {
		if proxyURL, err := url.Parse(settings.ProxyURL); err == nil {
			client.Transport = &http.Transport{
				Proxy: http.ProxyURL(proxyURL),
			}
		}
	}

	return client
}
