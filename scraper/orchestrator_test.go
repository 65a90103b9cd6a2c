package scraper

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"aptwatch/config"
	"aptwatch/models"
	"aptwatch/notify"
	"aptwatch/storage"
)

// fakeFetcher serves canned HTML and records the URLs it was asked for.
type fakeFetcher struct {
	html    string
	failFor string
	calls   []string
}

func (f *fakeFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	f.calls = append(f.calls, pageURL)
	if f.failFor != "" && strings.Contains(pageURL, f.failFor) {
		return "", &FetchError{URL: pageURL, Transient: true, Err: errors.New("connection refused")}
	}
	return f.html, nil
}

func (f *fakeFetcher) Close() {}

func card(id string, price float64, beds string) string {
	return fmt.Sprintf(`
		<article class="placard">
			<a class="property-link" href="https://www.apartments.com/test-chicago-il/%s/"></a>
			<div class="property-title">Listing %s</div>
			<div class="property-address">%s Main St, Chicago, IL</div>
			<div class="priceTextBox">$%.0f/mo</div>
			<div class="bedTextBox">%s</div>
			<div class="bath-range">1 Bath</div>
		</article>`, id, id, id, price, beds)
}

func resultsPage(cards ...string) string {
	return "<html><body>" + strings.Join(cards, "\n") + "</body></html>"
}

func pipelineConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Search: config.SearchCriteria{Location: "Chicago, IL"},
		Scraper: config.ScraperSettings{
			Fetcher:    "http",
			MaxRetries: 1,
			MaxPages:   1,
		},
		Notify: config.NotificationSettings{
			Enabled:     true,
			Type:        "console",
			MaxPerBatch: 10,
		},
	}
}

func pipelineStore(t *testing.T) storage.Store {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "pipeline.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRun_FirstRunAllNew(t *testing.T) {
	cfg := pipelineConfig(t)
	store := pipelineStore(t)
	fetcher := &fakeFetcher{html: resultsPage(
		card("aaa111", 1500, "1 Bed"),
		card("bbb222", 1800, "2 Beds"),
		card("ccc333", 2100, "2 Beds"),
	)}
	orch := NewOrchestrator(cfg, store, fetcher, notify.New(cfg.Notify, store))

	report, err := orch.Run(context.Background(), 1, false)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if report.Status != models.RunStatusCompleted {
		t.Fatalf("expected completed status, got %s", report.Status)
	}

	totals := report.Totals()
	if totals.Found != 3 || totals.New != 3 || totals.Updated != 0 || totals.Unchanged != 0 {
		t.Fatalf("unexpected totals %+v", totals)
	}
	if totals.Notified != 3 {
		t.Fatalf("expected all 3 new listings notified, got %d", totals.Notified)
	}

	stats, err := store.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.Total != 3 || stats.Notified != 3 {
		t.Fatalf("store not in expected state: %+v", stats)
	}
}

func TestRun_SecondRunClassifiesChanges(t *testing.T) {
	cfg := pipelineConfig(t)
	store := pipelineStore(t)
	ctx := context.Background()

	fetcher := &fakeFetcher{html: resultsPage(
		card("aaa111", 1500, "1 Bed"),
		card("bbb222", 1800, "2 Beds"),
		card("ccc333", 2100, "2 Beds"),
	)}
	orch := NewOrchestrator(cfg, store, fetcher, notify.New(cfg.Notify, store))

	if _, err := orch.Run(ctx, 1, false); err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	// A and B reappear unchanged, C's price drops, D is brand new.
	fetcher.html = resultsPage(
		card("aaa111", 1500, "1 Bed"),
		card("bbb222", 1800, "2 Beds"),
		card("ccc333", 1950, "2 Beds"),
		card("ddd444", 1700, "1 Bed"),
	)

	report, err := orch.Run(ctx, 1, false)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	totals := report.Totals()
	if totals.New != 1 || totals.Updated != 1 || totals.Unchanged != 2 {
		t.Fatalf("unexpected classification totals %+v", totals)
	}
	if totals.Notified != 1 {
		t.Fatalf("only the new listing should be notified, got %d", totals.Notified)
	}

	updated, err := store.Get(ctx, "ccc333")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if updated == nil || updated.Price == nil || *updated.Price != 1950 {
		t.Fatalf("price change not persisted: %v", updated.Price)
	}

	added, err := store.Get(ctx, "ddd444")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if added == nil || !added.Notified {
		t.Fatal("new listing should be stored and notified")
	}
}

func TestRun_DryRunComputesWithoutWriting(t *testing.T) {
	cfg := pipelineConfig(t)
	store := pipelineStore(t)
	ctx := context.Background()

	fetcher := &fakeFetcher{html: resultsPage(
		card("aaa111", 1500, "1 Bed"),
		card("bbb222", 1800, "2 Beds"),
	)}
	orch := NewOrchestrator(cfg, store, fetcher, notify.New(cfg.Notify, store))

	dry, err := orch.Run(ctx, 1, true)
	if err != nil {
		t.Fatalf("dry run failed: %v", err)
	}
	if totals := dry.Totals(); totals.New != 2 || totals.Notified != 0 {
		t.Fatalf("unexpected dry-run totals %+v", totals)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.Total != 0 {
		t.Fatalf("dry run must not write listings, store has %d", stats.Total)
	}

	// The real run over the same pages sees exactly what the dry run reported.
	wet, err := orch.Run(ctx, 1, false)
	if err != nil {
		t.Fatalf("real run failed: %v", err)
	}
	if wet.Totals().New != dry.Totals().New {
		t.Fatalf("dry-run counts diverge: dry=%d wet=%d", dry.Totals().New, wet.Totals().New)
	}
}

func TestRun_FetchFailureSkipsAreaOnly(t *testing.T) {
	cfg := pipelineConfig(t)
	cfg.Search.Neighborhoods = []string{"Lincoln Park", "Logan Square"}
	cfg.Scraper.AreaDelaySeconds = 0
	store := pipelineStore(t)

	fetcher := &fakeFetcher{
		html:    resultsPage(card("eee555", 1600, "1 Bed")),
		failFor: "lincoln-park",
	}
	orch := NewOrchestrator(cfg, store, fetcher, notify.New(cfg.Notify, store))

	report, err := orch.Run(context.Background(), 1, false)
	if err != nil {
		t.Fatalf("run should survive an area fetch failure: %v", err)
	}
	if report.Status != models.RunStatusCompleted {
		t.Fatalf("expected completed status, got %s", report.Status)
	}
	if len(report.Areas) != 2 {
		t.Fatalf("expected 2 area reports, got %d", len(report.Areas))
	}

	failed := report.Areas[0]
	if failed.Found != 0 || len(failed.Errors) != 1 {
		t.Fatalf("failed area should record the error: %+v", failed)
	}

	ok := report.Areas[1]
	if ok.Found != 1 || ok.New != 1 {
		t.Fatalf("healthy area should still be scraped: %+v", ok)
	}
	if got, _ := store.Get(context.Background(), "eee555"); got == nil {
		t.Fatal("listing from the healthy area must be persisted")
	}
}

func TestRun_OverlappingAreasDeduplicated(t *testing.T) {
	cfg := pipelineConfig(t)
	cfg.Search.Neighborhoods = []string{"Lincoln Park", "Old Town"}
	cfg.Scraper.AreaDelaySeconds = 0
	store := pipelineStore(t)

	// Both neighborhood searches return the same unit; the second area must
	// not classify or notify it again.
	fetcher := &fakeFetcher{html: resultsPage(card("hhh888", 1600, "1 Bed"))}
	orch := NewOrchestrator(cfg, store, fetcher, notify.New(cfg.Notify, store))

	report, err := orch.Run(context.Background(), 1, false)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	totals := report.Totals()
	if totals.Found != 2 || totals.Duplicates != 1 || totals.New != 1 {
		t.Fatalf("unexpected totals %+v", totals)
	}
	if totals.Notified != 1 {
		t.Fatalf("duplicate must not be notified twice, got %d", totals.Notified)
	}
}

func TestRun_FilterRejectionsCounted(t *testing.T) {
	cfg := pipelineConfig(t)
	maxPrice := 1700.0
	cfg.Search.Price = config.Range{Max: &maxPrice}
	store := pipelineStore(t)

	fetcher := &fakeFetcher{html: resultsPage(
		card("fff666", 1500, "1 Bed"),
		card("ggg777", 2400, "2 Beds"),
	)}
	orch := NewOrchestrator(cfg, store, fetcher, notify.New(cfg.Notify, store))

	report, err := orch.Run(context.Background(), 1, false)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	totals := report.Totals()
	if totals.Found != 2 || totals.FilteredOut != 1 || totals.New != 1 {
		t.Fatalf("unexpected totals %+v", totals)
	}
	if got, _ := store.Get(context.Background(), "ggg777"); got != nil {
		t.Fatal("filtered-out listing must not be stored")
	}
}
