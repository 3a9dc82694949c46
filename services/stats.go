package services

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"estate-listings/models"
)

// PrintStats renders a stats summary for terminals.
func PrintStats(w io.Writer, s *models.ListingStats) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  LISTING STATISTICS\033[0m\n")
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	fmt.Fprintf(w, "\033[1;33m  Overview\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Active listings        : \033[1m%d\033[0m\n", s.TotalListings)
	fmt.Fprintf(w, "  Created in last 24h    : \033[1m%d\033[0m\n", s.RecentListings24h)
	if s.AveragePrice != nil {
		fmt.Fprintf(w, "  Average price          : \033[1;32m%.2f\033[0m\n", *s.AveragePrice)
	} else {
		fmt.Fprintf(w, "  Average price          : no price data available\n")
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Listings by Source\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(s.Sources) == 0 {
		fmt.Fprintf(w, "  No listings\n")
	} else {
		type sourceCount struct {
			source string
			count  int
		}
		var counts []sourceCount
		for src, n := range s.Sources {
			counts = append(counts, sourceCount{src, n})
		}
		sort.Slice(counts, func(i, j int) bool {
			if counts[i].count != counts[j].count {
				return counts[i].count > counts[j].count
			}
			return counts[i].source < counts[j].source
		})
		for _, c := range counts {
			fmt.Fprintf(w, "  %-30s %d\n", truncate(c.source, 28), c.count)
		}
	}

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
