package models

import (
	"time"
)

// Listing is a single housing unit advertisement. Fields the extractor
// could not locate on the search card are left nil rather than zeroed, so
// downstream filtering can tell "absent" from "zero".
type Listing struct {
	ID           int64     `json:"id" db:"id"`
	ListingID    string    `json:"listing_id" db:"listing_id"`
	URL          string    `json:"url" db:"url"`
	Title        *string   `json:"title" db:"title"`
	Address      *string   `json:"address" db:"address"`
	Neighborhood *string   `json:"neighborhood" db:"neighborhood"`
	Price        *float64  `json:"price" db:"price"`
	Bedrooms     *int      `json:"bedrooms" db:"bedrooms"`
	Bathrooms    *float64  `json:"bathrooms" db:"bathrooms"`
	SquareFeet   *int      `json:"square_feet" db:"square_feet"`
	Availability *string   `json:"availability_date" db:"availability_date"`
	FirstSeen    time.Time `json:"first_seen" db:"first_seen"`
	LastSeen     time.Time `json:"last_seen" db:"last_seen"`
	Notified     bool      `json:"notified" db:"notified"`
	Favorited    bool      `json:"favorited" db:"favorited"`
}

// MutableFieldsEqual reports whether the re-extracted fields of other match
// this listing. ListingID, first_seen and the user-controlled flags are not
// compared; they are not mutated by re-observation.
func (l *Listing) MutableFieldsEqual(other *Listing) bool {
	return l.URL == other.URL &&
		strPtrEqual(l.Title, other.Title) &&
		strPtrEqual(l.Address, other.Address) &&
		strPtrEqual(l.Neighborhood, other.Neighborhood) &&
		floatPtrEqual(l.Price, other.Price) &&
		intPtrEqual(l.Bedrooms, other.Bedrooms) &&
		floatPtrEqual(l.Bathrooms, other.Bathrooms) &&
		intPtrEqual(l.SquareFeet, other.SquareFeet) &&
		strPtrEqual(l.Availability, other.Availability)
}

func strPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
