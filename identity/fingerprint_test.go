package identity

import (
	"testing"

	"aptwatch/models"
)

func ptr[T any](v T) *T { return &v }

func TestNormalizeAddress(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"123 North Main Street", "123 n main st"},
		{"123 N. Main St.", "123 n main st"},
		{"456 Oak Avenue, Apartment 2B", "456 oak ave apt 2b"},
		{"  789   Elm   Boulevard  ", "789 elm blvd"},
		{"1 Westwood Drive", "1 westwood dr"},
	}
	for _, c := range cases {
		if got := NormalizeAddress(c.in); got != c.want {
			t.Fatalf("NormalizeAddress(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestFingerprint_MatchesAcrossURLVariants(t *testing.T) {
	a := &models.Listing{
		ListingID: "abc123",
		URL:       "https://www.apartments.com/x/abc123/",
		Address:   ptr("123 North Main Street, Chicago, IL"),
		Bedrooms:  ptr(2),
		Bathrooms: ptr(1.5),
	}
	b := &models.Listing{
		ListingID: "zzz999",
		URL:       "https://www.apartments.com/y/zzz999/",
		Address:   ptr("123 N Main St, Chicago, IL"),
		Bedrooms:  ptr(2),
		Bathrooms: ptr(1.5),
	}

	fa, fb := Fingerprint(a), Fingerprint(b)
	if fa == "" || fa != fb {
		t.Fatalf("same unit should fingerprint alike: %q vs %q", fa, fb)
	}
}

func TestFingerprint_LayoutDistinguishesUnits(t *testing.T) {
	a := &models.Listing{Address: ptr("500 Lake Shore Dr"), Bedrooms: ptr(1)}
	b := &models.Listing{Address: ptr("500 Lake Shore Dr"), Bedrooms: ptr(2)}

	if Fingerprint(a) == Fingerprint(b) {
		t.Fatal("different layouts in one building must not collide")
	}
}

func TestFingerprint_NilBedroomsIsNotZero(t *testing.T) {
	unknown := &models.Listing{Address: ptr("500 Lake Shore Dr")}
	studio := &models.Listing{Address: ptr("500 Lake Shore Dr"), Bedrooms: ptr(0)}

	if Fingerprint(unknown) == Fingerprint(studio) {
		t.Fatal("missing bedroom count must not collide with a studio")
	}
}

func TestFingerprint_NoAddress(t *testing.T) {
	if fp := Fingerprint(&models.Listing{ListingID: "x"}); fp != "" {
		t.Fatalf("address-less listing should not fingerprint, got %q", fp)
	}
	if fp := Fingerprint(&models.Listing{Address: ptr("   ")}); fp != "" {
		t.Fatalf("blank address should not fingerprint, got %q", fp)
	}
}
