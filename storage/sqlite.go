package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"aptwatch/models"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS listings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		listing_id TEXT UNIQUE NOT NULL,
		url TEXT NOT NULL,
		title TEXT,
		address TEXT,
		neighborhood TEXT,
		price REAL,
		bedrooms INTEGER,
		bathrooms REAL,
		square_feet INTEGER,
		availability_date TEXT,
		first_seen DATETIME NOT NULL,
		last_seen DATETIME NOT NULL,
		notified BOOLEAN DEFAULT FALSE,
		favorited BOOLEAN DEFAULT FALSE
	);

	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		dry_run BOOLEAN DEFAULT FALSE,
		started_at DATETIME,
		finished_at DATETIME,
		status TEXT,
		listings_found INTEGER DEFAULT 0,
		filtered_out INTEGER DEFAULT 0,
		listings_new INTEGER DEFAULT 0,
		listings_updated INTEGER DEFAULT 0,
		listings_unchanged INTEGER DEFAULT 0,
		notified_count INTEGER DEFAULT 0,
		errors_count INTEGER DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS run_logs (
		id INTEGER PRIMARY KEY,
		run_id TEXT,
		timestamp DATETIME,
		level TEXT,
		message TEXT,
		area TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_listings_listing_id ON listings(listing_id);
	CREATE INDEX IF NOT EXISTS idx_listings_last_seen ON listings(last_seen);
	CREATE INDEX IF NOT EXISTS idx_listings_unnotified ON listings(notified) WHERE notified = FALSE;
	CREATE INDEX IF NOT EXISTS idx_run_logs_run ON run_logs(run_id, timestamp);
	`
	_, err := s.db.Exec(schema)
	return err
}

const listingColumns = `id, listing_id, url, title, address, neighborhood, price,
	bedrooms, bathrooms, square_feet, availability_date,
	first_seen, last_seen, notified, favorited`

func scanListing(row interface{ Scan(...any) error }) (*models.Listing, error) {
	var l models.Listing
	err := row.Scan(&l.ID, &l.ListingID, &l.URL, &l.Title, &l.Address, &l.Neighborhood,
		&l.Price, &l.Bedrooms, &l.Bathrooms, &l.SquareFeet, &l.Availability,
		&l.FirstSeen, &l.LastSeen, &l.Notified, &l.Favorited)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *SQLiteStore) Get(ctx context.Context, listingID string) (*models.Listing, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE listing_id = ?`, listingID)

	l, err := scanListing(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

// Upsert inserts the listing or refreshes an existing row. An insert sets
// first_seen = last_seen = now; an update overwrites the mutable fields and
// advances last_seen, leaving first_seen, notified and favorited alone. The
// whole operation runs in one transaction so the viewer never reads a
// partially written row.
func (s *SQLiteStore) Upsert(ctx context.Context, listing *models.Listing) (UpsertResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Inserted, err
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	var exists int
	err = tx.QueryRowContext(ctx,
		`SELECT 1 FROM listings WHERE listing_id = ?`, listing.ListingID).Scan(&exists)

	switch {
	case err == sql.ErrNoRows:
		_, err = tx.ExecContext(ctx, `
			INSERT INTO listings (listing_id, url, title, address, neighborhood, price,
				bedrooms, bathrooms, square_feet, availability_date, first_seen, last_seen)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			listing.ListingID, listing.URL, listing.Title, listing.Address, listing.Neighborhood,
			listing.Price, listing.Bedrooms, listing.Bathrooms, listing.SquareFeet,
			listing.Availability, now, now)
		if err != nil {
			if strings.Contains(err.Error(), "UNIQUE constraint") {
				return Inserted, fmt.Errorf("upsert %s: %w", listing.ListingID, ErrConstraint)
			}
			return Inserted, err
		}
		if err := tx.Commit(); err != nil {
			return Inserted, err
		}
		listing.FirstSeen = now
		listing.LastSeen = now
		return Inserted, nil

	case err != nil:
		return Updated, err

	default:
		_, err = tx.ExecContext(ctx, `
			UPDATE listings SET url = ?, title = ?, address = ?, neighborhood = ?, price = ?,
				bedrooms = ?, bathrooms = ?, square_feet = ?, availability_date = ?, last_seen = ?
			WHERE listing_id = ?`,
			listing.URL, listing.Title, listing.Address, listing.Neighborhood, listing.Price,
			listing.Bedrooms, listing.Bathrooms, listing.SquareFeet, listing.Availability,
			now, listing.ListingID)
		if err != nil {
			return Updated, err
		}
		if err := tx.Commit(); err != nil {
			return Updated, err
		}
		listing.LastSeen = now
		return Updated, nil
	}
}

func (s *SQLiteStore) SetFavorite(ctx context.Context, listingID string, favorited bool) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE listings SET favorited = ? WHERE listing_id = ?`, favorited, listingID)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("set favorite: no listing %s", listingID)
	}
	return nil
}

func (s *SQLiteStore) MarkNotified(ctx context.Context, listingIDs []string) error {
	if len(listingIDs) == 0 {
		return nil
	}

	placeholders := strings.Repeat("?,", len(listingIDs))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, len(listingIDs))
	for i, id := range listingIDs {
		args[i] = id
	}

	_, err := s.db.ExecContext(ctx,
		`UPDATE listings SET notified = TRUE WHERE listing_id IN (`+placeholders+`)`, args...)
	return err
}

func (s *SQLiteStore) Query(ctx context.Context, spec QuerySpec) ([]models.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings`

	var conds []string
	if spec.OnlyFavorites {
		conds = append(conds, "favorited = TRUE")
	}
	if spec.OnlyUnnotified {
		conds = append(conds, "notified = FALSE")
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	switch spec.SortBy {
	case "price":
		query += " ORDER BY price IS NULL, price ASC"
	default:
		query += " ORDER BY first_seen DESC"
	}

	if spec.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", spec.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var listings []models.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, *l)
	}
	return listings, rows.Err()
}

func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			SUM(CASE WHEN notified THEN 1 ELSE 0 END),
			SUM(CASE WHEN NOT notified THEN 1 ELSE 0 END),
			SUM(CASE WHEN favorited THEN 1 ELSE 0 END)
		FROM listings`).Scan(&st.Total, &nullInt{&st.Notified}, &nullInt{&st.Unnotified}, &nullInt{&st.Favorited})
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// Prune removes listings not re-observed inside the retention window.
// Favorited rows are kept; the user pinned them on purpose.
func (s *SQLiteStore) Prune(ctx context.Context, olderThanDays int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -olderThanDays)
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM listings WHERE last_seen < ? AND favorited = FALSE`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, report *models.RunReport) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (run_id, dry_run, started_at, status)
		VALUES (?, ?, ?, ?)`,
		report.RunID.String(), report.DryRun, report.StartedAt, report.Status)
	return err
}

func (s *SQLiteStore) FinishRun(ctx context.Context, report *models.RunReport) error {
	totals := report.Totals()
	_, err := s.db.ExecContext(ctx, `
		UPDATE runs SET finished_at = ?, status = ?, listings_found = ?, filtered_out = ?,
			listings_new = ?, listings_updated = ?, listings_unchanged = ?,
			notified_count = ?, errors_count = ?
		WHERE run_id = ?`,
		report.FinishedAt, report.Status, totals.Found, totals.FilteredOut,
		totals.New, totals.Updated, totals.Unchanged, totals.Notified, len(totals.Errors),
		report.RunID.String())
	return err
}

func (s *SQLiteStore) Log(ctx context.Context, runID uuid.UUID, level models.LogLevel, message, area string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO run_logs (run_id, timestamp, level, message, area)
		VALUES (?, ?, ?, ?, ?)`,
		runID.String(), time.Now().UTC(), level, message, area)
	return err
}

// nullInt scans a possibly-NULL aggregate into an int, defaulting to 0.
type nullInt struct {
	dst *int
}

func (n *nullInt) Scan(src any) error {
	if src == nil {
		*n.dst = 0
		return nil
	}
	switch v := src.(type) {
	case int64:
		*n.dst = int(v)
	case float64:
		*n.dst = int(v)
	default:
		return fmt.Errorf("unexpected aggregate type %T", src)
	}
	return nil
}
