package notify

import (
	"context"
	"fmt"
	"log"

	"aptwatch/config"
	"aptwatch/models"
	"aptwatch/storage"
)

// Sink is a notification delivery endpoint. New channels implement this
// interface; the Notifier's control flow never changes for them.
type Sink interface {
	Name() string
	Deliver(listings []models.Listing) error
}

func NewSink(settings config.NotificationSettings) Sink {
	switch settings.Type {
	case "sms":
		return &SMSSink{}
	default:
		return &ConsoleSink{}
	}
}

// Notifier delivers batches of new listings through the configured sink
// and records successful delivery in the store. Delivery is best effort:
// a failed batch is logged and the listings stay persisted unnotified, to
// be picked up again later.
type Notifier struct {
	settings config.NotificationSettings
	sink     Sink
	store    storage.Store
}

func New(settings config.NotificationSettings, store storage.Store) *Notifier {
	return &Notifier{
		settings: settings,
		sink:     NewSink(settings),
		store:    store,
	}
}

// Notify delivers up to the configured maximum listings and marks the
// delivered ones notified. Returns how many were delivered.
func (n *Notifier) Notify(ctx context.Context, listings []models.Listing) (int, error) {
	if !n.settings.Enabled {
		log.Println("Notifications are disabled")
		return 0, nil
	}
	if len(listings) == 0 {
		return 0, nil
	}

	batch := listings
	if n.settings.MaxPerBatch > 0 && len(batch) > n.settings.MaxPerBatch {
		batch = batch[:n.settings.MaxPerBatch]
	}

	if err := n.sink.Deliver(batch); err != nil {
		return 0, fmt.Errorf("deliver via %s: %w", n.sink.Name(), err)
	}

	ids := make([]string, len(batch))
	for i, l := range batch {
		ids[i] = l.ListingID
	}
	if err := n.store.MarkNotified(ctx, ids); err != nil {
		return len(batch), fmt.Errorf("mark notified: %w", err)
	}
	return len(batch), nil
}
