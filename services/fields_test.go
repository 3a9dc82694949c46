package services

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"estate-listings/models"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in     string
		want   float64
		wantOK bool
	}{
		{"1250", 1250, true},
		{"€ 1,250", 1250, true},
		{"$1,250,000.50 total", 1250000.5, true},
		{"1.5.", 1.5, true},
		{"350.000 €", 350000, true},
		{"1.250.000 €", 1250000, true},
		{"1.250,50 €", 1250.5, true},
		{"1.250,- €", 1250, true},
		{"99,5", 99.5, true},
		{"12.50", 12.5, true},
		{"-50", 0, false},
		{"EUR -1.000", 0, false},
		{"on request", 0, false},
	}
	for _, tt := range tests {
		got, ok := parsePrice(tt.in)
		assert.Equal(t, tt.wantOK, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestParseMeasure(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"3", 3},
		{"2,5 Zimmer", 2.5},
		{"ca. 74.3 m²", 74.3},
	}
	for _, tt := range tests {
		got, ok := parseMeasure(tt.in)
		assert.True(t, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestApplyFieldsCoercesAndReports(t *testing.T) {
	l := &models.Listing{Title: ptr("old")}
	problems := applyFields(l, models.RawListing{
		"source":        "  ImmoScout24 ",
		"title":         nil,
		"price":         json.Number("99.5"),
		"rooms":         "many",
		"area_sqm":      []any{1},
		"property_type": "apartment",
		"unknown":       "ignored",
	})

	assert.Equal(t, "immoscout24", l.Source)
	assert.Nil(t, l.Title, "explicit null clears the field")
	assert.Equal(t, 99.5, *l.Price)
	assert.Nil(t, l.Rooms)
	assert.Nil(t, l.AreaSqm)
	assert.Equal(t, "apartment", *l.PropertyType)
	assert.Len(t, problems, 2)
}

func TestApplyFieldsKeepsSourceWhenBlank(t *testing.T) {
	l := &models.Listing{Source: "kept"}
	problems := applyFields(l, models.RawListing{"source": "   "})
	assert.Empty(t, problems)
	assert.Equal(t, "kept", l.Source)
}
