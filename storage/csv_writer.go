package storage

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"estate-listings/models"
)

// CSVHeader is the fixed column order of tabular exports.
var CSVHeader = []string{
	"ID", "Source", "Title", "Price", "Location", "Property Type",
	"Rooms", "Area (sqm)", "URL", "Created At",
}

// CSVWriter streams listings as CSV rows. It is safe for concurrent use.
type CSVWriter struct {
	mu     sync.Mutex
	writer *csv.Writer
}

// NewCSVWriter writes the header row to w and returns a writer for the rows.
func NewCSVWriter(w io.Writer) (*CSVWriter, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	return &CSVWriter{writer: cw}, nil
}

// Write appends one listing. Missing values become empty fields.
func (c *CSVWriter) Write(l *models.Listing) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	row := []string{
		strconv.FormatInt(l.ID, 10),
		l.Source,
		deref(l.Title),
		formatFloat(l.Price),
		deref(l.Location),
		deref(l.PropertyType),
		formatFloat(l.Rooms),
		formatFloat(l.AreaSqm),
		l.URL,
		formatTime(l.CreatedAt),
	}
	if err := c.writer.Write(row); err != nil {
		return fmt.Errorf("csv: write row: %w", err)
	}
	return nil
}

// Flush writes any buffered rows to the underlying writer.
func (c *CSVWriter) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.writer.Flush()
	return c.writer.Error()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
