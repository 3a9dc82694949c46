package airbnb

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"estate-listings/models"
)

var (
	cardSelectors = []string{
		`[data-testid="card-container"]`,
		`[itemprop="itemListElement"]`,
		`div[data-testid="listing-card-wrapper"]`,
	}
	titleSelectors = []string{
		`[data-testid="listing-card-title"]`,
		`div[id*="title"]`,
	}
	nextSelectors = []string{
		`a[aria-label="Next"]`,
		`a[aria-label="next"]`,
		`[data-testid="pagination-next-button"]`,
		`nav a[href*="items_offset"]`,
	}

	priceRegexp = regexp.MustCompile(`[$฿€£]\s*[\d,]+`)
	// "Apartment in Berlin" → "Apartment"
	typeRegexp = regexp.MustCompile(`^(.+?)\s+in\s+\S`)
)

// SearchPage is what one results page yields.
type SearchPage struct {
	Listings []models.RawListing
	NextURL  string
}

// ParseSearchPage extracts up to limit listing cards from a rendered results page.
// pageURL resolves relative links.
func ParseSearchPage(html, pageURL string, limit int) (*SearchPage, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse search page: %w", err)
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}

	var cards *goquery.Selection
	for _, sel := range cardSelectors {
		if cards = doc.Find(sel); cards.Length() > 0 {
			break
		}
	}

	page := &SearchPage{}
	seen := make(map[string]bool)
	cards.EachWithBreak(func(_ int, card *goquery.Selection) bool {
		if limit > 0 && len(page.Listings) >= limit {
			return false
		}
		href, ok := card.Find(`a[href*="/rooms/"]`).First().Attr("href")
		if !ok {
			return true
		}
		link := canonicalRoomURL(base, href)
		if link == "" || seen[link] {
			return true
		}
		seen[link] = true
		page.Listings = append(page.Listings, parseCard(card, link))
		return true
	})

	for _, sel := range nextSelectors {
		if href, ok := doc.Find(sel).First().Attr("href"); ok && href != "" {
			page.NextURL = resolve(base, href)
			break
		}
	}
	return page, nil
}

func parseCard(card *goquery.Selection, link string) models.RawListing {
	raw := models.RawListing{"source": platform, "url": link}

	var title string
	for _, sel := range titleSelectors {
		if title = cleanText(card.Find(sel).First().Text()); title != "" {
			break
		}
	}
	if title != "" {
		raw["title"] = title
		if m := typeRegexp.FindStringSubmatch(title); m != nil {
			raw["property_type"] = strings.ToLower(m[1])
		}
	}

	priceText := cleanText(card.Find(`[data-testid="price-availability-row"]`).First().Text())
	if m := priceRegexp.FindString(priceText); m != "" {
		raw["price"] = m
	} else if priceText != "" {
		raw["price"] = priceText
	}

	if loc := cleanText(card.Find(`[data-testid="listing-card-subtitle"]`).First().Text()); loc != "" {
		raw["location"] = loc
	}
	if rating, ok := card.Find(`[aria-label*="rating"]`).First().Attr("aria-label"); ok {
		raw["rating"] = cleanText(rating)
	}
	return raw
}

// canonicalRoomURL drops the query string so the same room always maps to one url.
func canonicalRoomURL(base *url.URL, href string) string {
	u, err := base.Parse(href)
	if err != nil || !strings.Contains(u.Path, "/rooms/") {
		return ""
	}
	u.RawQuery, u.Fragment = "", ""
	return u.String()
}

func resolve(base *url.URL, href string) string {
	u, err := base.Parse(href)
	if err != nil {
		return ""
	}
	return u.String()
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
