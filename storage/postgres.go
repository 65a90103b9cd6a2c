package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"aptwatch/models"
)

// PostgresStore backs the listing store with a shared Postgres database.
// Same contract as SQLiteStore; used when several machines feed one store.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	store := &PostgresStore{pool: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS listings (
		id BIGSERIAL PRIMARY KEY,
		listing_id TEXT UNIQUE NOT NULL,
		url TEXT NOT NULL,
		title TEXT,
		address TEXT,
		neighborhood TEXT,
		price DOUBLE PRECISION,
		bedrooms INTEGER,
		bathrooms DOUBLE PRECISION,
		square_feet INTEGER,
		availability_date TEXT,
		first_seen TIMESTAMPTZ NOT NULL,
		last_seen TIMESTAMPTZ NOT NULL,
		notified BOOLEAN DEFAULT FALSE,
		favorited BOOLEAN DEFAULT FALSE
	);

	CREATE TABLE IF NOT EXISTS runs (
		run_id UUID PRIMARY KEY,
		dry_run BOOLEAN DEFAULT FALSE,
		started_at TIMESTAMPTZ,
		finished_at TIMESTAMPTZ,
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
		id BIGSERIAL PRIMARY KEY,
		run_id UUID,
		timestamp TIMESTAMPTZ,
		level TEXT,
		message TEXT,
		area TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_listings_last_seen ON listings(last_seen);
	CREATE INDEX IF NOT EXISTS idx_run_logs_run ON run_logs(run_id, timestamp);
	`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

const pgListingColumns = `id, listing_id, url, title, address, neighborhood, price,
	bedrooms, bathrooms, square_feet, availability_date,
	first_seen, last_seen, notified, favorited`

func (s *PostgresStore) Get(ctx context.Context, listingID string) (*models.Listing, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgListingColumns+` FROM listings WHERE listing_id = $1`, listingID)

	l, err := scanListing(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, listing *models.Listing) (UpsertResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Inserted, err
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()

	var exists int
	err = tx.QueryRow(ctx,
		`SELECT 1 FROM listings WHERE listing_id = $1 FOR UPDATE`, listing.ListingID).Scan(&exists)

	switch {
	case err == pgx.ErrNoRows:
		_, err = tx.Exec(ctx, `
			INSERT INTO listings (listing_id, url, title, address, neighborhood, price,
				bedrooms, bathrooms, square_feet, availability_date, first_seen, last_seen)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			listing.ListingID, listing.URL, listing.Title, listing.Address, listing.Neighborhood,
			listing.Price, listing.Bedrooms, listing.Bathrooms, listing.SquareFeet,
			listing.Availability, now, now)
		if err != nil {
			if isUniqueViolation(err) {
				return Inserted, fmt.Errorf("upsert %s: %w", listing.ListingID, ErrConstraint)
			}
			return Inserted, err
		}
		if err := tx.Commit(ctx); err != nil {
			return Inserted, err
		}
		listing.FirstSeen = now
		listing.LastSeen = now
		return Inserted, nil

	case err != nil:
		return Updated, err

	default:
		_, err = tx.Exec(ctx, `
			UPDATE listings SET url = $1, title = $2, address = $3, neighborhood = $4, price = $5,
				bedrooms = $6, bathrooms = $7, square_feet = $8, availability_date = $9, last_seen = $10
			WHERE listing_id = $11`,
			listing.URL, listing.Title, listing.Address, listing.Neighborhood, listing.Price,
			listing.Bedrooms, listing.Bathrooms, listing.SquareFeet, listing.Availability,
			now, listing.ListingID)
		if err != nil {
			return Updated, err
		}
		if err := tx.Commit(ctx); err != nil {
			return Updated, err
		}
		listing.LastSeen = now
		return Updated, nil
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (s *PostgresStore) SetFavorite(ctx context.Context, listingID string, favorited bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE listings SET favorited = $1 WHERE listing_id = $2`, favorited, listingID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("set favorite: no listing %s", listingID)
	}
	return nil
}

func (s *PostgresStore) MarkNotified(ctx context.Context, listingIDs []string) error {
	if len(listingIDs) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE listings SET notified = TRUE WHERE listing_id = ANY($1)`, listingIDs)
	return err
}

func (s *PostgresStore) Query(ctx context.Context, spec QuerySpec) ([]models.Listing, error) {
	query := `SELECT ` + pgListingColumns + ` FROM listings`

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
		query += " ORDER BY price ASC NULLS LAST"
	default:
		query += " ORDER BY first_seen DESC"
	}

	if spec.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", spec.Limit)
	}

	rows, err := s.pool.Query(ctx, query)
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

func (s *PostgresStore) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE notified),
			COUNT(*) FILTER (WHERE NOT notified),
			COUNT(*) FILTER (WHERE favorited)
		FROM listings`).Scan(&st.Total, &st.Notified, &st.Unnotified, &st.Favorited)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *PostgresStore) Prune(ctx context.Context, olderThanDays int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -olderThanDays)
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM listings WHERE last_seen < $1 AND favorited = FALSE`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, report *models.RunReport) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO runs (run_id, dry_run, started_at, status)
		VALUES ($1, $2, $3, $4)`,
		report.RunID, report.DryRun, report.StartedAt, report.Status)
	return err
}

func (s *PostgresStore) FinishRun(ctx context.Context, report *models.RunReport) error {
	totals := report.Totals()
	_, err := s.pool.Exec(ctx, `
		UPDATE runs SET finished_at = $1, status = $2, listings_found = $3, filtered_out = $4,
			listings_new = $5, listings_updated = $6, listings_unchanged = $7,
			notified_count = $8, errors_count = $9
		WHERE run_id = $10`,
		report.FinishedAt, report.Status, totals.Found, totals.FilteredOut,
		totals.New, totals.Updated, totals.Unchanged, totals.Notified, len(totals.Errors),
		report.RunID)
	return err
}

func (s *PostgresStore) Log(ctx context.Context, runID uuid.UUID, level models.LogLevel, message, area string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO run_logs (run_id, timestamp, level, message, area)
		VALUES ($1, $2, $3, $4, $5)`,
		runID, time.Now().UTC(), level, message, area)
	return err
}
