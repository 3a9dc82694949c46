package services

import (
	"context"
	"fmt"
	"time"

	"estate-listings/storage"
	"estate-listings/utils"
)

// DefaultStaleAfterDays is the age past which a listing is deactivated.
const DefaultStaleAfterDays = 30

// Maintenance soft-deletes listings that have aged out.
type Maintenance struct {
	store  storage.ListingStore
	logger *utils.Logger
	now    func() time.Time
}

// NewMaintenance creates a Maintenance service.
func NewMaintenance(store storage.ListingStore, logger *utils.Logger) *Maintenance {
	return &Maintenance{store: store, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// DeactivateStale marks every listing created more than olderThanDays ago as
// inactive and returns how many rows changed. Rows are never deleted.
func (m *Maintenance) DeactivateStale(ctx context.Context, olderThanDays int) (int64, error) {
	if olderThanDays <= 0 {
		return 0, invalid("older_than_days", "must be positive, got %d", olderThanDays)
	}

	cutoff := m.now().Add(-time.Duration(olderThanDays) * 24 * time.Hour)
	n, err := m.store.DeactivateOlderThan(ctx, cutoff)
	if err != nil {
		m.logger.Error("[maintenance] Error during cleanup: %v", err)
		return 0, fmt.Errorf("deactivate stale listings: %w", err)
	}

	m.logger.Info("[maintenance] Marked %d old listings as inactive (cutoff %s)", n, cutoff.Format(time.RFC3339))
	return n, nil
}
