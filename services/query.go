package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"estate-listings/models"
	"estate-listings/storage"
	"estate-listings/utils"
)

const (
	DefaultLimit = 100
	MaxLimit     = 1000

	recentWindow = 24 * time.Hour
)

// ExportFormat selects the export encoding.
type ExportFormat string

const (
	ExportCSV  ExportFormat = "csv"
	ExportJSON ExportFormat = "json"
)

// ParseExportFormat accepts "csv" or "json"; empty means csv.
func ParseExportFormat(s string) (ExportFormat, error) {
	switch ExportFormat(strings.ToLower(s)) {
	case "", ExportCSV:
		return ExportCSV, nil
	case ExportJSON:
		return ExportJSON, nil
	default:
		return "", invalid("format", "must be csv or json, got %q", s)
	}
}

// ListingParams is what a caller asks for before validation and clamping.
type ListingParams struct {
	Filter    models.ListingFilter
	SortBy    string
	SortOrder string
	Skip      int
	Limit     int
}

// NewListingParams returns params with the documented defaults.
func NewListingParams() ListingParams {
	return ListingParams{SortBy: storage.DefaultSortField, SortOrder: string(models.SortDesc), Limit: DefaultLimit}
}

// QueryEngine serves read-only views over active listings.
type QueryEngine struct {
	store  storage.ListingStore
	logger *utils.Logger
	now    func() time.Time
}

// NewQueryEngine creates a QueryEngine.
func NewQueryEngine(store storage.ListingStore, logger *utils.Logger) *QueryEngine {
	return &QueryEngine{store: store, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Normalize validates p and resolves defaults. Limit is clamped to [1, MaxLimit]
// and skip to >= 0; an unknown sort field falls back to created_at desc.
func Normalize(p ListingParams) (models.ListingQuery, models.Page, error) {
	if err := validateFilter(p.Filter); err != nil {
		return models.ListingQuery{}, models.Page{}, err
	}

	dir := models.SortDirection(strings.ToLower(p.SortOrder))
	switch dir {
	case "":
		dir = models.SortDesc
	case models.SortAsc, models.SortDesc:
	default:
		return models.ListingQuery{}, models.Page{}, invalid("sort_order", "must be asc or desc, got %q", p.SortOrder)
	}

	sortBy := p.SortBy
	if !storage.IsSortableField(sortBy) {
		sortBy, dir = storage.DefaultSortField, models.SortDesc
	}

	page := models.Page{Skip: max(p.Skip, 0), Limit: min(max(p.Limit, 1), MaxLimit)}
	return models.ListingQuery{Filter: p.Filter, SortBy: sortBy, SortOrder: dir}, page, nil
}

func validateFilter(f models.ListingFilter) error {
	ranges := []struct {
		name     string
		min, max *float64
	}{
		{"price", f.MinPrice, f.MaxPrice},
		{"rooms", f.MinRooms, f.MaxRooms},
		{"area", f.MinArea, f.MaxArea},
	}
	for _, r := range ranges {
		if r.min != nil && *r.min < 0 {
			return invalid("min_"+r.name, "must be >= 0")
		}
		if r.max != nil && *r.max < 0 {
			return invalid("max_"+r.name, "must be >= 0")
		}
		if r.min != nil && r.max != nil && *r.min > *r.max {
			return invalid(r.name, "min_%s %g is greater than max_%s %g", r.name, *r.min, r.name, *r.max)
		}
	}
	if f.CreatedAfter != nil && f.CreatedBefore != nil && f.CreatedAfter.After(*f.CreatedBefore) {
		return invalid("created_after", "is after created_before")
	}
	return nil
}

// Query returns one page of matching listings with the total match count.
func (e *QueryEngine) Query(ctx context.Context, p ListingParams) (*models.ListingPage, error) {
	q, page, err := Normalize(p)
	if err != nil {
		return nil, err
	}

	total, err := e.store.CountListings(ctx, q.Filter)
	if err != nil {
		return nil, fmt.Errorf("query listings: %w", err)
	}

	q.Page = &page
	listings := make([]*models.Listing, 0, min(page.Limit, total))
	err = e.store.ScanListings(ctx, q, func(l *models.Listing) error {
		listings = append(listings, l)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query listings: %w", err)
	}

	return &models.ListingPage{
		Listings:   listings,
		TotalCount: total,
		Skip:       page.Skip,
		Limit:      page.Limit,
		HasMore:    page.Skip < total && page.Limit < total-page.Skip,
	}, nil
}

// Export streams every matching listing to w, without pagination, and
// returns how many were written. Skip and Limit in p are ignored.
func (e *QueryEngine) Export(ctx context.Context, p ListingParams, format ExportFormat, w io.Writer) (int, error) {
	q, _, err := Normalize(p)
	if err != nil {
		return 0, err
	}
	if format, err = ParseExportFormat(string(format)); err != nil {
		return 0, err
	}

	var n int
	switch format {
	case ExportJSON:
		n, err = e.exportJSON(ctx, q, w)
	default:
		n, err = e.exportCSV(ctx, q, w)
	}
	if err != nil {
		return n, fmt.Errorf("export listings: %w", err)
	}
	e.logger.Info("[export] Exported %d listings as %s", n, format)
	return n, nil
}

func (e *QueryEngine) exportCSV(ctx context.Context, q models.ListingQuery, w io.Writer) (int, error) {
	cw, err := storage.NewCSVWriter(w)
	if err != nil {
		return 0, err
	}
	n := 0
	err = e.store.ScanListings(ctx, q, func(l *models.Listing) error {
		n++
		return cw.Write(l)
	})
	if err != nil {
		return n, err
	}
	return n, cw.Flush()
}

// exportJSON writes {"listings": [...], "count": n} one element at a time.
func (e *QueryEngine) exportJSON(ctx context.Context, q models.ListingQuery, w io.Writer) (int, error) {
	if _, err := io.WriteString(w, `{"listings":[`); err != nil {
		return 0, err
	}
	n := 0
	err := e.store.ScanListings(ctx, q, func(l *models.Listing) error {
		b, err := json.Marshal(l)
		if err != nil {
			return err
		}
		if n > 0 {
			if _, err := io.WriteString(w, ","); err != nil {
				return err
			}
		}
		n++
		_, err = w.Write(b)
		return err
	})
	if err != nil {
		return n, err
	}
	_, err = fmt.Fprintf(w, `],"count":%d}`, n)
	return n, err
}

// Get returns one active listing, or an error wrapping storage.ErrNotFound.
func (e *QueryEngine) Get(ctx context.Context, id int64) (*models.Listing, error) {
	return e.store.GetActiveListing(ctx, id)
}

// Stats summarises active listings. The average price covers priced listings
// only, rounded to two decimals, and is nil when none have a price.
func (e *QueryEngine) Stats(ctx context.Context) (*models.ListingStats, error) {
	stats, err := e.store.Stats(ctx, e.now().Add(-recentWindow))
	if err != nil {
		return nil, fmt.Errorf("listing stats: %w", err)
	}
	if stats.AveragePrice != nil {
		avg := round2(*stats.AveragePrice)
		stats.AveragePrice = &avg
	}
	return stats, nil
}
