package scraper

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"aptwatch/config"
	"aptwatch/identity"
	"aptwatch/models"
	"aptwatch/notify"
	"aptwatch/services"
	"aptwatch/storage"
)

// Orchestrator sequences one pipeline run: fetch pages for each configured
// area, extract, filter, classify against the store, upsert, notify about
// the new ones. Areas run one after another; pages within an area are
// fetched sequentially with the fetcher's pacing between them.
type Orchestrator struct {
	cfg        *config.Config
	store      storage.Store
	fetcher    Fetcher
	extractor  *Extractor
	filter     *services.FilterEngine
	classifier *services.Classifier
	notifier   *notify.Notifier
}

func NewOrchestrator(cfg *config.Config, store storage.Store, fetcher Fetcher, notifier *notify.Notifier) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg,
		store:      store,
		fetcher:    fetcher,
		extractor:  NewExtractor(),
		filter:     services.NewFilterEngine(cfg.Search),
		classifier: services.NewClassifier(store),
		notifier:   notifier,
	}
}

// Run executes the full pipeline once. In dry-run mode classification is
// computed exactly as in a real run, but nothing is written to the store
// and no notifications go out.
//
// A fetch failure skips the rest of that area and moves on; a store
// failure aborts the run. Areas already processed keep their committed
// data either way.
func (o *Orchestrator) Run(ctx context.Context, pages int, dryRun bool) (*models.RunReport, error) {
	if pages <= 0 {
		pages = o.cfg.Scraper.MaxPages
	}

	report := &models.RunReport{
		RunID:     uuid.New(),
		DryRun:    dryRun,
		StartedAt: time.Now().UTC(),
		Status:    models.RunStatusRunning,
	}

	if !dryRun {
		if err := o.store.CreateRun(ctx, report); err != nil {
			return nil, fmt.Errorf("create run: %w", err)
		}
	}

	log.Printf("Search criteria: %s", o.cfg.Search.FilterSummary())
	if dryRun {
		log.Println("Dry run: store and notifier will not be touched")
	}

	areas := o.cfg.Search.Neighborhoods
	if len(areas) == 0 {
		areas = []string{""}
	}

	// Listings already handled this run, keyed by listing id and by content
	// fingerprint. Overlapping neighborhood searches surface the same unit
	// twice, occasionally under a different URL.
	seen := make(map[string]struct{})

	var fatal error
	for i, area := range areas {
		if i > 0 {
			select {
			case <-time.After(o.cfg.Scraper.AreaDelay()):
			case <-ctx.Done():
				fatal = ctx.Err()
			}
			if fatal != nil {
				break
			}
		}

		areaReport, err := o.runArea(ctx, report.RunID, area, pages, dryRun, seen)
		report.Areas = append(report.Areas, areaReport)
		if err != nil {
			// Store unreachable or mid-write failure: end the run, keep
			// what previous areas already committed.
			fatal = err
			break
		}
	}

	now := time.Now().UTC()
	report.FinishedAt = &now
	if fatal != nil {
		report.Status = models.RunStatusFailed
	} else {
		report.Status = models.RunStatusCompleted
	}

	if !dryRun {
		if err := o.store.FinishRun(ctx, report); err != nil {
			log.Printf("Warning: could not finalize run record: %v", err)
		}
	}

	o.logSummary(report)
	return report, fatal
}

func (o *Orchestrator) runArea(ctx context.Context, runID uuid.UUID, area string, pages int, dryRun bool, seen map[string]struct{}) (models.AreaReport, error) {
	label := area
	if label == "" {
		label = slugify(o.cfg.Search.Location)
	}
	rep := models.AreaReport{Area: label}

	o.log(runID, models.LogLevelInfo, fmt.Sprintf("Scraping area: %s", label), label, dryRun)

	var newBatch []models.Listing

	for page := 1; page <= pages; page++ {
		pageURL := SearchURL(o.cfg.Search, area, page)

		html, err := o.fetcher.Fetch(ctx, pageURL)
		if err != nil {
			rep.Errors = append(rep.Errors, err.Error())
			o.log(runID, models.LogLevelError,
				fmt.Sprintf("Page %d fetch failed, skipping rest of area: %v", page, err), label, dryRun)
			break
		}

		listings, err := o.extractor.Extract(html, pageURL)
		if errors.Is(err, ErrNoListings) {
			o.log(runID, models.LogLevelWarn,
				fmt.Sprintf("Page %d: no listings found, stopping pagination", page), label, dryRun)
			break
		}
		if err != nil {
			rep.Errors = append(rep.Errors, err.Error())
			o.log(runID, models.LogLevelError, fmt.Sprintf("Page %d extract failed: %v", page, err), label, dryRun)
			break
		}

		if area != "" {
			for i := range listings {
				n := area
				listings[i].Neighborhood = &n
			}
		}

		rep.Found += len(listings)
		passed, rejected := o.filter.Filter(listings)
		rep.FilteredOut += rejected

		o.log(runID, models.LogLevelInfo,
			fmt.Sprintf("Page %d: %d listings, %d matched criteria", page, len(listings), len(passed)), label, dryRun)

		for i := range passed {
			listing := &passed[i]

			if o.alreadySeen(listing, seen) {
				rep.Duplicates++
				continue
			}

			class, err := o.classifier.Classify(ctx, listing)
			if err != nil {
				rep.Errors = append(rep.Errors, err.Error())
				return rep, fmt.Errorf("classify %s: %w", listing.ListingID, err)
			}

			switch class {
			case models.ClassNew:
				rep.New++
			case models.ClassUpdated:
				rep.Updated++
			default:
				rep.Unchanged++
			}

			if !dryRun {
				if _, err := o.store.Upsert(ctx, listing); err != nil {
					rep.Errors = append(rep.Errors, err.Error())
					return rep, fmt.Errorf("upsert %s: %w", listing.ListingID, err)
				}
			}

			if class == models.ClassNew {
				newBatch = append(newBatch, *listing)
			}
		}
	}

	if len(newBatch) > 0 {
		if dryRun {
			log.Printf("[dry run] Would notify about %d new listings in %s", len(newBatch), label)
		} else {
			count, err := o.notifier.Notify(ctx, newBatch)
			rep.Notified = count
			if err != nil {
				// Best effort: listings stay persisted, unnotified.
				rep.Errors = append(rep.Errors, err.Error())
				o.log(runID, models.LogLevelError, fmt.Sprintf("Notification failed: %v", err), label, dryRun)
			}
		}
	}

	return rep, nil
}

// alreadySeen reports whether this listing was handled earlier in the run,
// either under the same listing id or as the same unit re-listed at a
// different URL. First sighting wins; later copies are marked seen here.
func (o *Orchestrator) alreadySeen(listing *models.Listing, seen map[string]struct{}) bool {
	if _, ok := seen[listing.ListingID]; ok {
		return true
	}
	if fp := identity.Fingerprint(listing); fp != "" {
		if _, ok := seen[fp]; ok {
			return true
		}
		seen[fp] = struct{}{}
	}
	seen[listing.ListingID] = struct{}{}
	return false
}

func (o *Orchestrator) logSummary(report *models.RunReport) {
	totals := report.Totals()
	log.Printf("Run %s %s: %d found, %d filtered out, %d duplicates, %d new, %d updated, %d unchanged, %d notified, %d errors",
		report.RunID, report.Status, totals.Found, totals.FilteredOut, totals.Duplicates,
		totals.New, totals.Updated, totals.Unchanged, totals.Notified, len(totals.Errors))
	for _, area := range report.Areas {
		log.Printf("  %s: found=%d filtered=%d new=%d updated=%d unchanged=%d errors=%d",
			area.Area, area.Found, area.FilteredOut, area.New, area.Updated, area.Unchanged, len(area.Errors))
	}
}

func (o *Orchestrator) log(runID uuid.UUID, level models.LogLevel, message, area string, dryRun bool) {
	log.Printf("[%s] %s: %s", level, area, message)
	if dryRun {
		return
	}
	if err := o.store.Log(context.Background(), runID, level, message, area); err != nil {
		log.Printf("Warning: could not persist run log: %v", err)
	}
}
