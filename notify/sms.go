package notify

import (
	"fmt"
	"log"
	"strings"

	"aptwatch/models"
)

// SMSSink is a placeholder for a future SMS channel. Until a provider is
// wired in it logs a warning and falls back to console delivery, so
// configuring "sms" never silently drops notifications.
type SMSSink struct {
	console ConsoleSink
}

func (s *SMSSink) Name() string { return "sms" }

func (s *SMSSink) Deliver(listings []models.Listing) error {
	log.Println("SMS delivery is not configured, falling back to console")
	return s.console.Deliver(listings)
}

// FormatSMS renders one listing in the compact single-line form an SMS
// provider would send.
func FormatSMS(l *models.Listing) string {
	var parts []string
	if l.Title != nil {
		parts = append(parts, *l.Title)
	}
	if l.Price != nil {
		parts = append(parts, fmt.Sprintf("$%.0f/mo", *l.Price))
	}

	var layout []string
	if l.Bedrooms != nil {
		layout = append(layout, fmt.Sprintf("%dbd", *l.Bedrooms))
	}
	if l.Bathrooms != nil {
		layout = append(layout, fmt.Sprintf("%gba", *l.Bathrooms))
	}
	if len(layout) > 0 {
		parts = append(parts, strings.Join(layout, " "))
	}

	parts = append(parts, l.URL)
	return strings.Join(parts, " | ")
}
