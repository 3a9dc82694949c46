package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"estate-listings/models"
	"estate-listings/utils"
)

const listingColumns = `id, source, title, price, location, url, description,
	property_type, rooms, area_sqm, raw_data, is_active, created_at, updated_at`

// PostgresStore persists listings to PostgreSQL.
type PostgresStore struct {
	db     *sql.DB
	logger *utils.Logger
}

// Open connects to PostgreSQL, retrying the initial ping while the server comes up.
func Open(ctx context.Context, dsn string, maxConns int, logger *utils.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	if maxConns > 0 {
		db.SetMaxOpenConns(maxConns)
		db.SetMaxIdleConns(maxConns / 2)
	}
	db.SetConnMaxLifetime(5 * time.Minute)

	retry := &utils.RetryConfig{MaxAttempts: 10, BaseDelay: 2 * time.Second, Fixed: true, Logger: logger}
	if err := retry.DoContext(ctx, "postgres ping", db.PingContext); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: %w", err)
	}
	return db, nil
}

// NewPostgresStore wraps an open connection pool, creating the listings table if needed.
func NewPostgresStore(ctx context.Context, db *sql.DB, logger *utils.Logger) (*PostgresStore, error) {
	s := &PostgresStore{db: db, logger: logger}
	if err := s.migrate(ctx); err != nil {
		return nil, fmt.Errorf("postgres: migrate listings: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS listings (
			id            BIGSERIAL PRIMARY KEY,
			source        VARCHAR(30)  NOT NULL,
			title         VARCHAR(500),
			price         DOUBLE PRECISION,
			location      VARCHAR(200),
			url           VARCHAR(500) UNIQUE NOT NULL,
			description   TEXT,
			property_type VARCHAR(50),
			rooms         DOUBLE PRECISION,
			area_sqm      DOUBLE PRECISION,
			raw_data      TEXT,
			is_active     BOOLEAN      NOT NULL DEFAULT TRUE,
			created_at    TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			updated_at    TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_listings_source     ON listings(source);
		CREATE INDEX IF NOT EXISTS idx_listings_price      ON listings(price);
		CREATE INDEX IF NOT EXISTS idx_listings_created_at ON listings(created_at);
	`)
	return err
}

// Close closes the underlying pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Transact runs fn in a transaction that is always either committed or rolled back.
func (s *PostgresStore) Transact(ctx context.Context, fn func(ListingTx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}

	if err := fn(&pgListingTx{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("postgres: rollback failed: %v (original err: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("%w: %v", ErrDuplicate, err)
		}
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

// DeactivateOlderThan flips is_active on every active listing created before cutoff
// in one statement. updated_at is left alone.
func (s *PostgresStore) DeactivateOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE listings SET is_active = FALSE WHERE created_at < $1 AND is_active = TRUE`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres: deactivate stale: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("postgres: deactivate stale: %w", err)
	}
	return n, nil
}

// ScanListings streams every active listing matching q to fn, in q's order.
func (s *PostgresStore) ScanListings(ctx context.Context, q models.ListingQuery, fn func(*models.Listing) error) error {
	where, args := buildWhere(q.Filter)
	query := "SELECT " + listingColumns + " FROM listings WHERE " + where +
		" ORDER BY " + buildOrderBy(q.SortBy, q.SortOrder)
	if q.Page != nil {
		args = append(args, q.Page.Skip, q.Page.Limit)
		query += fmt.Sprintf(" OFFSET $%d LIMIT $%d", len(args)-1, len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("postgres: query listings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return err
		}
		if err := fn(l); err != nil {
			return err
		}
	}
	return rows.Err()
}

// CountListings counts active listings matching f.
func (s *PostgresStore) CountListings(ctx context.Context, f models.ListingFilter) (int, error) {
	where, args := buildWhere(f)
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM listings WHERE "+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count listings: %w", err)
	}
	return n, nil
}

// GetActiveListing fetches one active listing by id.
func (s *PostgresStore) GetActiveListing(ctx context.Context, id int64) (*models.Listing, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+listingColumns+" FROM listings WHERE id = $1 AND is_active = TRUE", id)
	l, err := scanListing(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("listing %d: %w", id, ErrNotFound)
	}
	return l, err
}

// Stats aggregates over active listings. AveragePrice is the raw AVG over
// non-null prices, nil when there are none.
func (s *PostgresStore) Stats(ctx context.Context, recentSince time.Time) (*models.ListingStats, error) {
	stats := &models.ListingStats{Sources: make(map[string]int)}

	var avg sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       AVG(price),
		       COUNT(*) FILTER (WHERE created_at >= $1)
		FROM listings
		WHERE is_active = TRUE
	`, recentSince).Scan(&stats.TotalListings, &avg, &stats.RecentListings24h)
	if err != nil {
		return nil, fmt.Errorf("postgres: stats: %w", err)
	}
	if avg.Valid {
		v := avg.Float64
		stats.AveragePrice = &v
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT source, COUNT(*) FROM listings WHERE is_active = TRUE GROUP BY source`)
	if err != nil {
		return nil, fmt.Errorf("postgres: stats by source: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var source string
		var n int
		if err := rows.Scan(&source, &n); err != nil {
			return nil, fmt.Errorf("postgres: scan source count: %w", err)
		}
		stats.Sources[source] = n
	}
	return stats, rows.Err()
}

// pgListingTx is the transactional write side.
type pgListingTx struct {
	tx *sql.Tx
}

func (t *pgListingTx) FindByURL(ctx context.Context, url string) (*models.Listing, error) {
	row := t.tx.QueryRowContext(ctx, "SELECT "+listingColumns+" FROM listings WHERE url = $1", url)
	l, err := scanListing(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return l, err
}

func (t *pgListingTx) Insert(ctx context.Context, l *models.Listing) error {
	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO listings (source, title, price, location, url, description,
			property_type, rooms, area_sqm, raw_data, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`,
		l.Source, l.Title, l.Price, l.Location, l.URL, l.Description,
		l.PropertyType, l.Rooms, l.AreaSqm, l.RawData, l.IsActive, l.CreatedAt, l.UpdatedAt,
	).Scan(&l.ID)
	if err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicate, l.URL)
		}
		return fmt.Errorf("postgres: insert listing: %w", err)
	}
	return nil
}

func (t *pgListingTx) Update(ctx context.Context, l *models.Listing) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE listings
		SET source = $2, title = $3, price = $4, location = $5, description = $6,
		    property_type = $7, rooms = $8, area_sqm = $9, raw_data = $10, updated_at = $11
		WHERE id = $1
	`,
		l.ID, l.Source, l.Title, l.Price, l.Location, l.Description,
		l.PropertyType, l.Rooms, l.AreaSqm, l.RawData, l.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: update listing: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanListing(row rowScanner) (*models.Listing, error) {
	var (
		l                                          models.Listing
		title, location, description, propertyType sql.NullString
		price, rooms, area                         sql.NullFloat64
		rawData                                    sql.NullString
	)
	err := row.Scan(
		&l.ID, &l.Source, &title, &price, &location, &l.URL, &description,
		&propertyType, &rooms, &area, &rawData, &l.IsActive, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("postgres: scan listing: %w", err)
	}

	l.Title = nullString(title)
	l.Location = nullString(location)
	l.Description = nullString(description)
	l.PropertyType = nullString(propertyType)
	l.Price = nullFloat(price)
	l.Rooms = nullFloat(rooms)
	l.AreaSqm = nullFloat(area)
	l.RawData = rawData.String
	return &l, nil
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
