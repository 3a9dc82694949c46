package services

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"estate-listings/models"
)

var (
	// numberRegexp captures the first numeric token
	numberRegexp = regexp.MustCompile(`\d[\d.]*`)

	// priceTokenRegexp captures the first price token and any sign right before it
	priceTokenRegexp = regexp.MustCompile(`(-?)(\d[\d.,]*)`)

	// dotGroupedRegexp matches German grouping: "1.250.000" or "1.250,50"
	dotGroupedRegexp   = regexp.MustCompile(`^\d{1,3}(\.\d{3})+(,\d+)?$`)
	decimalCommaRegexp = regexp.MustCompile(`^\d+,\d{1,2}$`)
)

// listingField maps one payload key onto a Listing attribute.
type listingField struct {
	name  string
	apply func(l *models.Listing, v any) error
}

// ingestFields is the complete set of payload keys ingestion may write.
// Anything else in a payload only ends up in raw_data.
var ingestFields = []listingField{
	{"source", func(l *models.Listing, v any) error {
		if s := normaliseSource(asText(v)); s != "" {
			l.Source = s
		}
		return nil
	}},
	{"title", textField(func(l *models.Listing) **string { return &l.Title })},
	{"location", textField(func(l *models.Listing) **string { return &l.Location })},
	{"description", textField(func(l *models.Listing) **string { return &l.Description })},
	{"property_type", textField(func(l *models.Listing) **string { return &l.PropertyType })},
	{"price", numberField(parsePrice, func(l *models.Listing) **float64 { return &l.Price })},
	{"rooms", numberField(parseMeasure, func(l *models.Listing) **float64 { return &l.Rooms })},
	{"area_sqm", numberField(parseMeasure, func(l *models.Listing) **float64 { return &l.AreaSqm })},
}

// applyFields copies every allow-listed key present in payload onto l.
// Values that cannot be coerced are set to null and reported.
func applyFields(l *models.Listing, payload models.RawListing) []error {
	var problems []error
	for _, f := range ingestFields {
		v, present := payload[f.name]
		if !present {
			continue
		}
		if err := f.apply(l, v); err != nil {
			problems = append(problems, fmt.Errorf("%s: %w", f.name, err))
		}
	}
	return problems
}

func textField(target func(*models.Listing) **string) func(*models.Listing, any) error {
	return func(l *models.Listing, v any) error {
		s := normaliseText(asText(v))
		if s == "" {
			*target(l) = nil
			return nil
		}
		*target(l) = &s
		return nil
	}
}

func numberField(parse func(string) (float64, bool), target func(*models.Listing) **float64) func(*models.Listing, any) error {
	return func(l *models.Listing, v any) error {
		f, ok, err := asNumber(v, parse)
		if err != nil || !ok {
			*target(l) = nil
			return err
		}
		*target(l) = &f
		return nil
	}
}

// asNumber coerces a loosely-typed JSON value. ok is false for null or blank.
func asNumber(v any, parse func(string) (float64, bool)) (float64, bool, error) {
	switch n := v.(type) {
	case nil:
		return 0, false, nil
	case float64:
		return n, true, nil
	case float32:
		return float64(n), true, nil
	case int:
		return float64(n), true, nil
	case int64:
		return float64(n), true, nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false, fmt.Errorf("not a number: %q", n.String())
		}
		return f, true, nil
	case string:
		if strings.TrimSpace(n) == "" {
			return 0, false, nil
		}
		f, ok := parse(n)
		if !ok {
			return 0, false, fmt.Errorf("not a number: %q", n)
		}
		return f, true, nil
	default:
		return 0, false, fmt.Errorf("unsupported type %T", v)
	}
}

func asText(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case json.Number:
		return s.String()
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool, int, int64:
		return fmt.Sprint(s)
	default:
		return ""
	}
}

// parsePrice reads the first number in a price string. Both English and
// German grouping are understood: "€ 1,250" → 1250, "350.000 €" → 350000,
// "1.250,50" → 1250.5. Negative prices are rejected.
func parsePrice(raw string) (float64, bool) {
	m := priceTokenRegexp.FindStringSubmatch(raw)
	if m == nil || m[1] == "-" {
		return 0, false
	}
	token := strings.TrimRight(m[2], ".,")
	switch {
	case dotGroupedRegexp.MatchString(token):
		token = strings.ReplaceAll(token, ".", "")
		token = strings.Replace(token, ",", ".", 1)
	case decimalCommaRegexp.MatchString(token):
		token = strings.Replace(token, ",", ".", 1)
	default:
		token = strings.ReplaceAll(token, ",", "")
	}
	f, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// parseMeasure reads room counts and areas, accepting a decimal comma: "2,5" → 2.5.
func parseMeasure(raw string) (float64, bool) {
	cleaned := strings.ReplaceAll(raw, ",", ".")
	match := numberRegexp.FindString(cleaned)
	if match == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimRight(match, "."), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// normaliseText strips leading/trailing whitespace and collapses internal whitespace.
func normaliseText(s string) string {
	fields := strings.FieldsFunc(s, unicode.IsSpace)
	return strings.Join(fields, " ")
}

func normaliseSource(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
