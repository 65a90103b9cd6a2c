// Package identity derives a content fingerprint for a listing so the same
// unit can be recognized across different URLs. Overlapping neighborhood
// searches and pagination drift both surface a listing more than once per
// run, sometimes under a fresh URL slug.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"aptwatch/models"
)

var streetAbbrevs = map[string]string{
	"street":    "st",
	"avenue":    "ave",
	"drive":     "dr",
	"road":      "rd",
	"boulevard": "blvd",
	"lane":      "ln",
	"court":     "ct",
	"place":     "pl",
	"terrace":   "ter",
	"parkway":   "pkwy",
	"square":    "sq",
	"north":     "n",
	"south":     "s",
	"east":      "e",
	"west":      "w",
	"apartment": "apt",
	"suite":     "ste",
	"floor":     "fl",
	"building":  "bldg",
}

var nonAlnumRe = regexp.MustCompile(`[^a-z0-9\s]`)

// Fingerprint hashes the normalized address together with the unit layout.
// Returns "" when the listing has no address; an address-less card cannot be
// matched against anything.
func Fingerprint(listing *models.Listing) string {
	if listing.Address == nil || strings.TrimSpace(*listing.Address) == "" {
		return ""
	}

	input := fmt.Sprintf("%s|%s|%s|%s",
		NormalizeAddress(*listing.Address),
		intKey(listing.Bedrooms),
		floatKey(listing.Bathrooms),
		intKey(listing.SquareFeet))

	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:16])
}

// NormalizeAddress lowercases, strips punctuation and collapses the usual
// street-type spellings so "123 North Main Street" and "123 N Main St"
// fingerprint the same.
func NormalizeAddress(addr string) string {
	addr = strings.ToLower(strings.TrimSpace(addr))
	addr = nonAlnumRe.ReplaceAllString(addr, " ")

	words := strings.Fields(addr)
	for i, w := range words {
		if abbrev, ok := streetAbbrevs[w]; ok {
			words[i] = abbrev
		}
	}

	return strings.Join(words, " ")
}

func intKey(v *int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *v)
}

func floatKey(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%g", *v)
}
