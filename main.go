package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"

	"aptwatch/config"
	"aptwatch/logging"
	"aptwatch/models"
	"aptwatch/notify"
	"aptwatch/scraper"
	"aptwatch/storage"
)

var (
	configPath = flag.String("config", "config.yaml", "Path to configuration file")
	pages      = flag.Int("pages", 0, "Pages to scrape per area (0 = config default)")
	dryRun     = flag.Bool("dry-run", false, "Classify without writing to the store or notifying")
	showRecent = flag.Int("show-recent", 0, "Show N most recent listings and exit")
	showStats  = flag.Bool("stats", false, "Show store statistics and exit")
	prune      = flag.Bool("prune", false, "Remove listings outside the retention window and exit")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags)

	logFile, err := logging.Setup("aptwatch.log")
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	ctx := context.Background()

	store, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	switch {
	case *showRecent > 0:
		printRecent(ctx, store, *showRecent)
	case *showStats:
		printStats(ctx, store)
	case *prune:
		removed, err := store.Prune(ctx, cfg.Database.RetentionDays)
		if err != nil {
			log.Fatalf("Prune failed: %v", err)
		}
		log.Printf("Removed %d listings older than %d days", removed, cfg.Database.RetentionDays)
	default:
		runPipeline(ctx, cfg, store)
	}
}

func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	if cfg.Database.Driver == "postgres" {
		return storage.NewPostgresStore(ctx, cfg.Database.URL)
	}
	return storage.NewSQLiteStore(cfg.Database.Path)
}

func runPipeline(ctx context.Context, cfg *config.Config, store storage.Store) {
	fetcher := scraper.NewFetcher(cfg.Scraper)
	defer fetcher.Close()

	notifier := notify.New(cfg.Notify, store)
	orchestrator := scraper.NewOrchestrator(cfg, store, fetcher, notifier)

	if _, err := orchestrator.Run(ctx, *pages, *dryRun); err != nil {
		log.Fatalf("Run failed: %v", err)
	}
}

func printRecent(ctx context.Context, store storage.Store, limit int) {
	listings, err := store.Query(ctx, storage.QuerySpec{Limit: limit})
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}
	if len(listings) == 0 {
		fmt.Println("No listings stored yet.")
		return
	}

	fmt.Printf("\nRecent listings (last %d)\n%s\n\n", limit, strings.Repeat("=", 80))
	for i, l := range listings {
		title := "Unknown"
		if l.Title != nil {
			title = *l.Title
		}
		fmt.Printf("%d. %s\n", i+1, title)
		fmt.Printf("   %s\n", describeListing(&l))
		fmt.Printf("   First seen: %s | Notified: %v | Favorited: %v\n",
			l.FirstSeen.Format("2006-01-02 15:04"), l.Notified, l.Favorited)
		fmt.Printf("   URL: %s\n\n", l.URL)
	}
}

func describeListing(l *models.Listing) string {
	var parts []string
	if l.Price != nil {
		parts = append(parts, fmt.Sprintf("$%.0f/mo", *l.Price))
	}
	if l.Bedrooms != nil {
		parts = append(parts, fmt.Sprintf("%d bed", *l.Bedrooms))
	}
	if l.Bathrooms != nil {
		parts = append(parts, fmt.Sprintf("%g bath", *l.Bathrooms))
	}
	if l.SquareFeet != nil {
		parts = append(parts, fmt.Sprintf("%d sqft", *l.SquareFeet))
	}
	if len(parts) == 0 {
		return "no details"
	}
	return strings.Join(parts, " | ")
}

func printStats(ctx context.Context, store storage.Store) {
	stats, err := store.Stats(ctx)
	if err != nil {
		log.Fatalf("Stats failed: %v", err)
	}
	fmt.Println("Store statistics:")
	fmt.Printf("  Total listings tracked: %d\n", stats.Total)
	fmt.Printf("  Previously notified:    %d\n", stats.Notified)
	fmt.Printf("  Pending notification:   %d\n", stats.Unnotified)
	fmt.Printf("  Favorited:              %d\n", stats.Favorited)
}
