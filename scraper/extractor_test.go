package scraper

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func loadFixture(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join("testdata", name)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read fixture %s: %v", name, err)
	}
	return string(data)
}

func TestExtract_Basic(t *testing.T) {
	extractor := NewExtractor()
	html := loadFixture(t, "search_results_basic.html")

	listings, err := extractor.Extract(html, "https://www.apartments.com/chicago-il/")
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	// The third card has no property link and must be skipped.
	if len(listings) != 2 {
		t.Fatalf("expected 2 listings, got %d", len(listings))
	}

	first := listings[0]
	if first.ListingID != "abc123xyz" {
		t.Fatalf("expected listing id abc123xyz, got %s", first.ListingID)
	}
	if first.URL != "https://www.apartments.com/the-fremont-chicago-il/abc123xyz/" {
		t.Fatalf("unexpected URL %s", first.URL)
	}
	if first.Title == nil || *first.Title != "The Fremont" {
		t.Fatalf("unexpected title %v", first.Title)
	}
	if first.Address == nil || *first.Address != "900 W Fremont St, Chicago, IL 60642" {
		t.Fatalf("unexpected address %v", first.Address)
	}
	if first.Price == nil || *first.Price != 1800 {
		t.Fatalf("unexpected price %v", first.Price)
	}
	if first.Bedrooms == nil || *first.Bedrooms != 2 {
		t.Fatalf("unexpected bedrooms %v", first.Bedrooms)
	}
	if first.Bathrooms == nil || *first.Bathrooms != 1.5 {
		t.Fatalf("unexpected bathrooms %v", first.Bathrooms)
	}
	if first.SquareFeet == nil || *first.SquareFeet != 800 {
		t.Fatalf("unexpected square feet %v", first.SquareFeet)
	}
	if first.Availability == nil || *first.Availability != "Available Now" {
		t.Fatalf("unexpected availability %v", first.Availability)
	}

	second := listings[1]
	if second.ListingID != "def456uvw" {
		t.Fatalf("expected listing id def456uvw, got %s", second.ListingID)
	}
	if second.Price == nil || *second.Price != 1200 {
		t.Fatalf("unexpected price %v", second.Price)
	}
	if second.Bedrooms == nil || *second.Bedrooms != 0 {
		t.Fatalf("expected studio to parse as 0 bedrooms, got %v", second.Bedrooms)
	}
	if second.Address != nil {
		t.Fatalf("expected nil address, got %q", *second.Address)
	}
	if second.Bathrooms != nil {
		t.Fatalf("expected nil bathrooms, got %v", *second.Bathrooms)
	}
	if second.SquareFeet != nil {
		t.Fatalf("expected nil square feet, got %v", *second.SquareFeet)
	}
}

func TestExtract_AlternateMarkup(t *testing.T) {
	extractor := NewExtractor()
	html := loadFixture(t, "search_results_alt_markup.html")

	listings, err := extractor.Extract(html, "https://www.apartments.com/chicago-il/")
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if len(listings) != 1 {
		t.Fatalf("expected 1 listing, got %d", len(listings))
	}
	if listings[0].ListingID != "ghi789rst" {
		t.Fatalf("expected listing id ghi789rst, got %s", listings[0].ListingID)
	}
	if listings[0].Bedrooms == nil || *listings[0].Bedrooms != 1 {
		t.Fatalf("unexpected bedrooms %v", listings[0].Bedrooms)
	}
}

func TestExtract_UnrecognizedStructure(t *testing.T) {
	extractor := NewExtractor()
	html := loadFixture(t, "search_results_empty.html")

	listings, err := extractor.Extract(html, "https://www.apartments.com/chicago-il/")
	if !errors.Is(err, ErrNoListings) {
		t.Fatalf("expected ErrNoListings, got %v", err)
	}
	if listings != nil {
		t.Fatalf("expected no listings, got %d", len(listings))
	}
}

func TestDeriveListingID_Stable(t *testing.T) {
	url := "https://www.apartments.com/the-fremont-chicago-il/abc123xyz/"
	if got := DeriveListingID(url); got != "abc123xyz" {
		t.Fatalf("expected abc123xyz, got %s", got)
	}
	// Same URL always maps to the same id.
	if DeriveListingID(url) != DeriveListingID(url) {
		t.Fatal("listing id not deterministic")
	}
}

func TestDeriveListingID_HashFallback(t *testing.T) {
	url := "https://www.apartments.com/LISTING_99"
	got := DeriveListingID(url)
	if len(got) != 16 {
		t.Fatalf("expected 16-char hash fallback, got %q", got)
	}
	if got != DeriveListingID(url) {
		t.Fatal("hash fallback not deterministic")
	}
}

func TestParseNumber(t *testing.T) {
	cases := []struct {
		in   string
		want *float64
	}{
		{"2 Beds", ptr(2.0)},
		{"1.5 Baths", ptr(1.5)},
		{"Studio", ptr(0.0)},
		{"800 sq ft", ptr(800.0)},
		{"Call for details", nil},
	}
	for _, c := range cases {
		got := parseNumber(c.in)
		switch {
		case c.want == nil && got != nil:
			t.Fatalf("parseNumber(%q) = %v, want nil", c.in, *got)
		case c.want != nil && (got == nil || *got != *c.want):
			t.Fatalf("parseNumber(%q) = %v, want %v", c.in, got, *c.want)
		}
	}
}

func TestParsePrice(t *testing.T) {
	cases := []struct {
		in   string
		want *float64
	}{
		{"$1,500", ptr(1500.0)},
		{"$1,500+", ptr(1500.0)},
		{"$1500/mo", ptr(1500.0)},
		{"Call for Rent", nil},
	}
	for _, c := range cases {
		got := parsePrice(c.in)
		switch {
		case c.want == nil && got != nil:
			t.Fatalf("parsePrice(%q) = %v, want nil", c.in, *got)
		case c.want != nil && (got == nil || *got != *c.want):
			t.Fatalf("parsePrice(%q) = %v, want %v", c.in, got, *c.want)
		}
	}
}

func ptr[T any](v T) *T { return &v }
