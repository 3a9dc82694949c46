package storage

import (
	"fmt"
	"strings"

	"estate-listings/models"
)

// DefaultSortField is used when the caller asks for an unknown column.
const DefaultSortField = "created_at"

// sortColumns maps sortable listing attributes to their columns.
var sortColumns = map[string]string{
	"id":            "id",
	"source":        "source",
	"title":         "title",
	"price":         "price",
	"location":      "location",
	"url":           "url",
	"description":   "description",
	"property_type": "property_type",
	"rooms":         "rooms",
	"area_sqm":      "area_sqm",
	"created_at":    "created_at",
	"updated_at":    "updated_at",
}

// IsSortableField reports whether name is a recognised listing attribute.
func IsSortableField(name string) bool {
	_, ok := sortColumns[name]
	return ok
}

// buildWhere turns a filter into a WHERE clause over active listings.
// Both paginated queries and exports go through here.
func buildWhere(f models.ListingFilter) (string, []any) {
	conds := []string{"is_active = TRUE"}
	var args []any

	add := func(expr string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(expr, len(args)))
	}

	if f.Source != "" {
		add("source = $%d", f.Source)
	}
	if f.MinPrice != nil {
		add("price >= $%d", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		add("price <= $%d", *f.MaxPrice)
	}
	if f.Location != "" {
		add("location ILIKE $%d", "%"+escapeLike(f.Location)+"%")
	}
	if f.PropertyType != "" {
		add("property_type = $%d", f.PropertyType)
	}
	if f.MinRooms != nil {
		add("rooms >= $%d", *f.MinRooms)
	}
	if f.MaxRooms != nil {
		add("rooms <= $%d", *f.MaxRooms)
	}
	if f.MinArea != nil {
		add("area_sqm >= $%d", *f.MinArea)
	}
	if f.MaxArea != nil {
		add("area_sqm <= $%d", *f.MaxArea)
	}
	if f.CreatedAfter != nil {
		add("created_at >= $%d", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		add("created_at <= $%d", *f.CreatedBefore)
	}

	return strings.Join(conds, " AND "), args
}

// buildOrderBy returns an ORDER BY expression with id as tie-breaker so that
// offset pagination is stable.
func buildOrderBy(sortBy string, dir models.SortDirection) string {
	col, ok := sortColumns[sortBy]
	if !ok {
		col, dir = DefaultSortField, models.SortDesc
	}
	d := "DESC"
	if dir == models.SortAsc {
		d = "ASC"
	}
	if col == "id" {
		return "id " + d
	}
	return col + " " + d + ", id " + d
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
