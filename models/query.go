package models

import "time"

// SortDirection orders query results.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// ListingFilter holds the conjunctive predicates applied to active listings.
// Nil pointers and empty strings mean "no constraint".
type ListingFilter struct {
	Source        string
	PropertyType  string
	Location      string
	MinPrice      *float64
	MaxPrice      *float64
	MinRooms      *float64
	MaxRooms      *float64
	MinArea       *float64
	MaxArea       *float64
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

// ListingQuery is a validated filter plus ordering and an optional page.
type ListingQuery struct {
	Filter    ListingFilter
	SortBy    string
	SortOrder SortDirection
	Page      *Page // nil means the full matching set
}

// Page is an offset/limit window.
type Page struct {
	Skip  int
	Limit int
}

// ListingPage is the paginated query response.
type ListingPage struct {
	Listings   []*Listing `json:"listings"`
	TotalCount int        `json:"total_count"`
	Skip       int        `json:"skip"`
	Limit      int        `json:"limit"`
	HasMore    bool       `json:"has_more"`
}
