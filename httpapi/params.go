package httpapi

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"estate-listings/services"
)

// dateLayouts are tried in order for created_after / created_before.
var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

// listingParams reads query-string filters, sorting and paging.
func listingParams(q url.Values) (services.ListingParams, error) {
	p := services.NewListingParams()
	f := &p.Filter

	f.Source = strings.TrimSpace(q.Get("source"))
	f.PropertyType = strings.TrimSpace(q.Get("property_type"))
	f.Location = strings.TrimSpace(q.Get("location"))

	floats := []struct {
		name   string
		target **float64
	}{
		{"min_price", &f.MinPrice},
		{"max_price", &f.MaxPrice},
		{"min_rooms", &f.MinRooms},
		{"max_rooms", &f.MaxRooms},
		{"min_area", &f.MinArea},
		{"max_area", &f.MaxArea},
	}
	for _, fl := range floats {
		v, err := optionalFloat(q, fl.name)
		if err != nil {
			return p, err
		}
		*fl.target = v
	}

	var err error
	if f.CreatedAfter, err = optionalTime(q, "created_after"); err != nil {
		return p, err
	}
	if f.CreatedBefore, err = optionalTime(q, "created_before"); err != nil {
		return p, err
	}

	if v := q.Get("sort_by"); v != "" {
		p.SortBy = v
	}
	if v := q.Get("sort_order"); v != "" {
		p.SortOrder = v
	}
	if p.Skip, err = optionalInt(q, "skip", 0); err != nil {
		return p, err
	}
	if p.Limit, err = optionalInt(q, "limit", services.DefaultLimit); err != nil {
		return p, err
	}
	return p, nil
}

func optionalFloat(q url.Values, name string) (*float64, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, badParam(name, "not a number: %q", raw)
	}
	return &v, nil
}

func optionalInt(q url.Values, name string, fallback int) (int, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badParam(name, "not an integer: %q", raw)
	}
	return v, nil
}

func optionalTime(q url.Values, name string) (*time.Time, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, badParam(name, "not a date: %q", raw)
}
