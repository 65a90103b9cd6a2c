package scraper

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"log"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"aptwatch/models"
)

// ErrNoListings means the page structure was entirely unrecognized. It is a
// warning, not a failure: the pipeline logs it and moves on to the next
// page or area.
var ErrNoListings = errors.New("no listings found in page")

// Extractor turns raw search-result HTML into listing records. All
// knowledge of the source markup lives here; when the site changes its
// structure, this is the only component that needs editing.
//
// A fragment missing individual fields yields a listing with those fields
// nil. A fragment missing its URL is skipped entirely, since no stable id
// can be derived for it.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

var (
	numberRe     = regexp.MustCompile(`\d+\.?\d*`)
	trailingIDRe = regexp.MustCompile(`/([a-z0-9]+)/?$`)
)

func (e *Extractor) Extract(html, pageURL string) ([]models.Listing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	cards := doc.Find("article.placard")
	if cards.Length() == 0 {
		// The primary container class changes from time to time; try the
		// known alternates before giving up.
		cards = doc.Find("[data-listingid], li.mortar-wrapper")
	}
	if cards.Length() == 0 {
		return nil, ErrNoListings
	}

	var listings []models.Listing
	cards.Each(func(_ int, card *goquery.Selection) {
		listing, ok := e.extractCard(card, pageURL)
		if !ok {
			return
		}
		listings = append(listings, listing)
	})

	if len(listings) == 0 {
		return nil, ErrNoListings
	}
	return listings, nil
}

func (e *Extractor) extractCard(card *goquery.Selection, pageURL string) (models.Listing, bool) {
	var listing models.Listing

	href, hrefOK := card.Find("a.property-link").First().Attr("href")
	if !hrefOK || href == "" {
		log.Printf("Listing card has no URL, skipping")
		return listing, false
	}
	listing.URL = resolveURL(pageURL, href)
	listing.ListingID = DeriveListingID(listing.URL)

	listing.Title = cardText(card, ".property-title")
	listing.Address = cardText(card, ".property-address")

	if text := cardText(card, ".priceTextBox"); text != nil {
		listing.Price = parsePrice(*text)
	}
	if text := cardText(card, ".bedTextBox"); text != nil {
		if n := parseNumber(*text); n != nil {
			beds := int(*n)
			listing.Bedrooms = &beds
		}
	}
	if text := cardText(card, `.bath-range, .baths, [class*="bath"]`); text != nil {
		listing.Bathrooms = parseNumber(*text)
	}
	if text := cardText(card, `.sqft, .square-feet, [class*="sqft"]`); text != nil {
		if n := parseNumber(*text); n != nil {
			sqft := int(*n)
			listing.SquareFeet = &sqft
		}
	}
	listing.Availability = cardText(card, `.availability, .available-date, [class*="avail"]`)

	return listing, true
}

func cardText(card *goquery.Selection, selector string) *string {
	sel := card.Find(selector).First()
	if sel.Length() == 0 {
		return nil
	}
	text := strings.TrimSpace(sel.Text())
	if text == "" {
		return nil
	}
	return &text
}

// DeriveListingID produces a stable id for a listing URL. Listing URLs end
// in a short site-assigned code ("/the-fremont-chicago-il/abc123xyz/"),
// which survives cosmetic page changes; when absent, a hash of the URL
// stands in.
func DeriveListingID(listingURL string) string {
	trimmed := strings.TrimSuffix(listingURL, "/")
	if m := trailingIDRe.FindStringSubmatch(trimmed); m != nil {
		return m[1]
	}
	sum := md5.Sum([]byte(listingURL))
	return hex.EncodeToString(sum[:])[:16]
}

func resolveURL(base, href string) string {
	baseU, err := url.Parse(base)
	if err != nil {
		return href
	}
	hrefU, err := url.Parse(href)
	if err != nil {
		return href
	}
	return baseU.ResolveReference(hrefU).String()
}

// parsePrice reads the leading dollar figure out of strings like "$1,500",
// "$1,500+" or "$1,400 - $1,800", returning the first (lowest) amount.
func parsePrice(text string) *float64 {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' {
			return r
		}
		return -1
	}, text)

	return parseFloatToken(numberRe.FindString(cleaned))
}

// parseNumber reads the first numeric token out of strings like "2 Beds",
// "1.5 Baths" or "800 sq ft". "Studio" counts as 0 bedrooms.
func parseNumber(text string) *float64 {
	if strings.Contains(strings.ToLower(text), "studio") {
		zero := 0.0
		return &zero
	}
	return parseFloatToken(numberRe.FindString(text))
}

func parseFloatToken(token string) *float64 {
	if token == "" {
		return nil
	}
	v, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return nil
	}
	return &v
}
