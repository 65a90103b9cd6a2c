package notify

import (
	"fmt"
	"strings"
	"time"

	"aptwatch/models"
)

// ConsoleSink prints new listings to stdout, one card per listing.
type ConsoleSink struct{}

func (s *ConsoleSink) Name() string { return "console" }

func (s *ConsoleSink) Deliver(listings []models.Listing) error {
	divider := strings.Repeat("=", 80)

	fmt.Println("\n" + divider)
	fmt.Printf("NEW HOUSING LISTINGS FOUND - %s\n", time.Now().Format("2006-01-02 15:04:05"))
	fmt.Println(divider + "\n")

	for i, l := range listings {
		fmt.Printf("Listing #%d\n", i+1)
		fmt.Println(strings.Repeat("-", 80))

		if l.Title != nil {
			fmt.Printf("Property: %s\n", *l.Title)
		}
		if l.Address != nil {
			fmt.Printf("Address: %s\n", *l.Address)
		}
		if l.Price != nil {
			fmt.Printf("Price: $%.0f/month\n", *l.Price)
		}
		if layout := formatLayout(&l); layout != "" {
			fmt.Printf("Layout: %s\n", layout)
		}
		if l.SquareFeet != nil {
			fmt.Printf("Size: %d sq ft\n", *l.SquareFeet)
		}
		if l.Availability != nil {
			fmt.Printf("Available: %s\n", *l.Availability)
		}
		fmt.Printf("URL: %s\n\n", l.URL)
	}

	fmt.Println(divider)
	fmt.Printf("Total new listings: %d\n", len(listings))
	fmt.Println(divider + "\n")

	return nil
}

func formatLayout(l *models.Listing) string {
	var parts []string
	if l.Bedrooms != nil {
		if *l.Bedrooms == 0 {
			parts = append(parts, "Studio")
		} else {
			parts = append(parts, fmt.Sprintf("%d bed", *l.Bedrooms))
		}
	}
	if l.Bathrooms != nil {
		parts = append(parts, fmt.Sprintf("%g bath", *l.Bathrooms))
	}
	return strings.Join(parts, ", ")
}
