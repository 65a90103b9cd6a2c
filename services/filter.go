package services

import (
	"aptwatch/config"
	"aptwatch/models"
)

// FilterEngine evaluates listings against the immutable criteria set for a
// run. Range checks are inclusive on both bounds.
//
// Null policy: a listing with a nil value for a constrained field fails
// that filter. The value cannot be confirmed in range, so it is rejected
// rather than waved through. A fully unbounded range constrains nothing and
// accepts nil.
type FilterEngine struct {
	criteria config.SearchCriteria
}

func NewFilterEngine(criteria config.SearchCriteria) *FilterEngine {
	return &FilterEngine{criteria: criteria}
}

func (f *FilterEngine) Passes(listing *models.Listing) bool {
	if !f.matchesRange(listing.Price, f.criteria.Price) {
		return false
	}
	if !f.matchesIntRange(listing.Bedrooms, f.criteria.Bedrooms) {
		return false
	}
	if !f.matchesRange(listing.Bathrooms, f.criteria.Bathrooms) {
		return false
	}
	if !f.matchesIntRange(listing.SquareFeet, f.criteria.SquareFeet) {
		return false
	}
	return true
}

// Filter returns the listings that pass, plus how many were rejected.
func (f *FilterEngine) Filter(listings []models.Listing) ([]models.Listing, int) {
	var passed []models.Listing
	for i := range listings {
		if f.Passes(&listings[i]) {
			passed = append(passed, listings[i])
		}
	}
	return passed, len(listings) - len(passed)
}

func (f *FilterEngine) matchesRange(value *float64, r config.Range) bool {
	if r.Unbounded() {
		return true
	}
	if value == nil {
		return false
	}
	if r.Min != nil && *value < *r.Min {
		return false
	}
	if r.Max != nil && *value > *r.Max {
		return false
	}
	return true
}

func (f *FilterEngine) matchesIntRange(value *int, r config.IntRange) bool {
	if r.Unbounded() {
		return true
	}
	if value == nil {
		return false
	}
	if r.Min != nil && *value < *r.Min {
		return false
	}
	if r.Max != nil && *value > *r.Max {
		return false
	}
	return true
}
