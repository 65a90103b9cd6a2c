package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"aptwatch/models"
)

type UpsertResult int

const (
	Inserted UpsertResult = iota
	Updated
)

// ErrConstraint marks store failures caused by schema constraints rather
// than I/O; callers can tell the two apart with errors.Is.
var ErrConstraint = errors.New("constraint violation")

// QuerySpec narrows and orders reads. The zero value returns everything,
// newest first.
type QuerySpec struct {
	OnlyFavorites  bool
	OnlyUnnotified bool
	Limit          int
	SortBy         string // "first_seen" (default) or "price"
}

type Stats struct {
	Total      int `json:"total"`
	Notified   int `json:"notified"`
	Unnotified int `json:"unnotified"`
	Favorited  int `json:"favorited"`
}

// Store is durable keyed storage for listings plus run bookkeeping. Each
// write is atomic at single-listing granularity; the viewer process reads
// the same database concurrently and must never observe a partial row.
type Store interface {
	Get(ctx context.Context, listingID string) (*models.Listing, error)
	Upsert(ctx context.Context, listing *models.Listing) (UpsertResult, error)
	SetFavorite(ctx context.Context, listingID string, favorited bool) error
	MarkNotified(ctx context.Context, listingIDs []string) error
	Query(ctx context.Context, spec QuerySpec) ([]models.Listing, error)
	Stats(ctx context.Context) (*Stats, error)
	Prune(ctx context.Context, olderThanDays int) (int64, error)

	CreateRun(ctx context.Context, report *models.RunReport) error
	FinishRun(ctx context.Context, report *models.RunReport) error
	Log(ctx context.Context, runID uuid.UUID, level models.LogLevel, message, area string) error

	Close() error
}
