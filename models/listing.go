package models

import "time"

// RawListing is a scraped payload as submitted to the ingestion queue.
// Field names loosely follow Listing; unknown keys are tolerated.
type RawListing map[string]any

// URL returns the payload's url, or "" when missing or not a string.
func (r RawListing) URL() string {
	if s, ok := r["url"].(string); ok {
		return s
	}
	return ""
}

// Listing is one persisted real-estate record, keyed by its source URL.
// Nullable columns are pointers.
type Listing struct {
	ID           int64     `json:"id"`
	Source       string    `json:"source"`
	Title        *string   `json:"title"`
	Price        *float64  `json:"price"`
	Location     *string   `json:"location"`
	URL          string    `json:"url"`
	Description  *string   `json:"description"`
	PropertyType *string   `json:"property_type"`
	Rooms        *float64  `json:"rooms"`
	AreaSqm      *float64  `json:"area_sqm"`
	RawData      string    `json:"-"`
	IsActive     bool      `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IngestStatus is the outcome of a single ingestion.
type IngestStatus string

const (
	IngestCreated   IngestStatus = "created"
	IngestUpdated   IngestStatus = "updated"
	IngestDuplicate IngestStatus = "duplicate_error"
	IngestFailed    IngestStatus = "failed"
)

// IngestResult reports what happened to one payload.
type IngestResult struct {
	Status    IngestStatus `json:"status"`
	ListingID int64        `json:"listing_id,omitempty"`
	URL       string       `json:"url,omitempty"`
	Message   string       `json:"message,omitempty"`
}

// BatchReceipt is returned when a batch is fanned out to the queue.
type BatchReceipt struct {
	BatchSize int      `json:"batch_size"`
	TaskIDs   []string `json:"task_ids"`
}

// ListingStats summarises the active listings.
type ListingStats struct {
	TotalListings     int            `json:"total_listings"`
	Sources           map[string]int `json:"sources"`
	AveragePrice      *float64       `json:"average_price"`
	RecentListings24h int            `json:"recent_listings_24h"`
}
