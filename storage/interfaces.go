package storage

import (
	"context"
	"time"

	"estate-listings/models"
)

// ListingStore is the persisted set of listings.
type ListingStore interface {
	// Transact runs fn inside one transaction; it commits when fn returns nil
	// and rolls back otherwise.
	Transact(ctx context.Context, fn func(ListingTx) error) error
	DeactivateOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	ScanListings(ctx context.Context, q models.ListingQuery, fn func(*models.Listing) error) error
	CountListings(ctx context.Context, f models.ListingFilter) (int, error)
	GetActiveListing(ctx context.Context, id int64) (*models.Listing, error)
	Stats(ctx context.Context, recentSince time.Time) (*models.ListingStats, error)
	Close() error
}

// ListingTx is the write side used by ingestion, scoped to one transaction.
type ListingTx interface {
	FindByURL(ctx context.Context, url string) (*models.Listing, error)
	Insert(ctx context.Context, l *models.Listing) error
	Update(ctx context.Context, l *models.Listing) error
}

// TaskQueue is a durable queue with named partitions and delayed retry.
type TaskQueue interface {
	Enqueue(ctx context.Context, t *models.Task) error
	Claim(ctx context.Context, queues []string, limit int) ([]*models.Task, error)
	Complete(ctx context.Context, id string, result []byte) error
	Retry(ctx context.Context, id string, errMsg string, runAt time.Time) error
	Fail(ctx context.Context, id string, errMsg string, result []byte) error
	Get(ctx context.Context, id string) (*models.Task, error)
}
