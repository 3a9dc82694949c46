package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"estate-listings/models"
	"estate-listings/utils"
)

func TestDeactivateStale(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	store := newMemStore()
	old := store.seed(&models.Listing{URL: "old", Source: "x", IsActive: true, CreatedAt: now.AddDate(0, 0, -31), UpdatedAt: now.AddDate(0, 0, -31)})
	store.seed(&models.Listing{URL: "fresh", Source: "x", IsActive: true, CreatedAt: now.AddDate(0, 0, -5)})
	store.seed(&models.Listing{URL: "gone", Source: "x", IsActive: false, CreatedAt: now.AddDate(0, 0, -90)})

	m := NewMaintenance(store, utils.NewNopLogger())
	m.now = func() time.Time { return now }

	n, err := m.DeactivateStale(context.Background(), DefaultStaleAfterDays)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, now.AddDate(0, 0, -30), store.lastCutoff)

	l := store.byURL("old")
	assert.False(t, l.IsActive)
	assert.Equal(t, old.UpdatedAt, l.UpdatedAt)
	assert.True(t, store.byURL("fresh").IsActive)
	assert.Equal(t, 3, store.count(), "rows are never deleted")

	n, err = m.DeactivateStale(context.Background(), DefaultStaleAfterDays)
	require.NoError(t, err)
	assert.Zero(t, n, "second run is a no-op")
}

func TestDeactivateStaleRejectsNonPositiveDays(t *testing.T) {
	m := NewMaintenance(newMemStore(), utils.NewNopLogger())
	for _, days := range []int{0, -1} {
		_, err := m.DeactivateStale(context.Background(), days)
		assert.True(t, IsValidation(err), "days=%d", days)
	}
}
