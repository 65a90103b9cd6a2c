package services

import (
	"context"

	"aptwatch/models"
	"aptwatch/storage"
)

// Classifier compares extracted listings against the store to decide
// whether each is new, updated or unchanged. It only reads; the pipeline
// decides separately whether to write, which is what makes dry runs report
// the same classifications as real ones.
type Classifier struct {
	store storage.Store
}

func NewClassifier(store storage.Store) *Classifier {
	return &Classifier{store: store}
}

func (c *Classifier) Classify(ctx context.Context, listing *models.Listing) (models.Classification, error) {
	existing, err := c.store.Get(ctx, listing.ListingID)
	if err != nil {
		return models.ClassUnchanged, err
	}
	if existing == nil {
		return models.ClassNew, nil
	}
	if existing.MutableFieldsEqual(listing) {
		return models.ClassUnchanged, nil
	}
	return models.ClassUpdated, nil
}
