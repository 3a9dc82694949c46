package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"estate-listings/models"
)

func ptr[T any](v T) *T { return &v }

func TestBuildWhereEmptyFilterKeepsActiveOnly(t *testing.T) {
	where, args := buildWhere(models.ListingFilter{})

	assert.Equal(t, "is_active = TRUE", where)
	assert.Empty(t, args)
}

func TestBuildWherePriceRange(t *testing.T) {
	where, args := buildWhere(models.ListingFilter{MinPrice: ptr(100.0), MaxPrice: ptr(200.0)})

	assert.Equal(t, "is_active = TRUE AND price >= $1 AND price <= $2", where)
	assert.Equal(t, []any{100.0, 200.0}, args)
}

func TestBuildWhereAllPredicates(t *testing.T) {
	after := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	before := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	where, args := buildWhere(models.ListingFilter{
		Source:        "immowelt",
		PropertyType:  "apartment",
		Location:      "Berlin",
		MinPrice:      ptr(1.0),
		MaxPrice:      ptr(2.0),
		MinRooms:      ptr(1.5),
		MaxRooms:      ptr(3.0),
		MinArea:       ptr(40.0),
		MaxArea:       ptr(90.0),
		CreatedAfter:  &after,
		CreatedBefore: &before,
	})

	want := "is_active = TRUE AND source = $1 AND price >= $2 AND price <= $3" +
		" AND location ILIKE $4 AND property_type = $5 AND rooms >= $6 AND rooms <= $7" +
		" AND area_sqm >= $8 AND area_sqm <= $9 AND created_at >= $10 AND created_at <= $11"
	assert.Equal(t, want, where)
	assert.Equal(t, []any{"immowelt", 1.0, 2.0, "%Berlin%", "apartment", 1.5, 3.0, 40.0, 90.0, after, before}, args)
}

func TestBuildWhereEscapesLikeWildcards(t *testing.T) {
	_, args := buildWhere(models.ListingFilter{Location: `50%_off\`})

	assert.Equal(t, []any{`%50\%\_off\\%`}, args)
}

func TestBuildOrderBy(t *testing.T) {
	tests := []struct {
		name   string
		sortBy string
		dir    models.SortDirection
		want   string
	}{
		{"price asc", "price", models.SortAsc, "price ASC, id ASC"},
		{"price desc", "price", models.SortDesc, "price DESC, id DESC"},
		{"id has no tie-breaker", "id", models.SortAsc, "id ASC"},
		{"unknown field falls back", "bogus", models.SortAsc, "created_at DESC, id DESC"},
		{"empty field falls back", "", "", "created_at DESC, id DESC"},
		{"raw_data is not sortable", "raw_data", models.SortAsc, "created_at DESC, id DESC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, buildOrderBy(tt.sortBy, tt.dir))
		})
	}
}

func TestIsSortableField(t *testing.T) {
	assert.True(t, IsSortableField("created_at"))
	assert.True(t, IsSortableField("area_sqm"))
	assert.False(t, IsSortableField("is_active"))
	assert.False(t, IsSortableField("price; DROP TABLE listings"))
}
