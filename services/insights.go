package services

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"krisha-pipeline/models"
	"krisha-pipeline/utils"
)

type InsightService struct {
	logger *utils.Logger
}

func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger}
}

func (s *InsightService) Generate(listings []*models.StoredListing) *models.InsightReport {
	report := &models.InsightReport{
		ListingsByDistrict: make(map[string]int),
		AvgPriceByRooms:    make(map[int]float64),
	}

	if len(listings) == 0 {
		return report
	}

	report.TotalListings = len(listings)

	var total float64
	roomTotals := make(map[int]float64)
	roomCounts := make(map[int]int)

	for _, l := range listings {
		report.ListingsByDistrict[l.District]++

		if l.Price == nil || *l.Price <= 0 {
			continue
		}
		price := *l.Price
		report.PricedListings++
		total += price

		if report.MostExpensive == nil || price > report.MaxPrice {
			report.MaxPrice = price
			report.MostExpensive = l
		}
		if report.MinPrice == 0 || price < report.MinPrice {
			report.MinPrice = price
		}
		if l.Rooms != nil {
			roomTotals[*l.Rooms] += price
			roomCounts[*l.Rooms]++
		}
	}

	if report.PricedListings > 0 {
		report.AveragePrice = round2(total / float64(report.PricedListings))
	}
	for rooms, sum := range roomTotals {
		report.AvgPriceByRooms[rooms] = round2(sum / float64(roomCounts[rooms]))
	}

	return report
}

// Print renders the report for the operator.
func (s *InsightService) Print(w io.Writer, r *models.InsightReport, currency string) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  📊 KRISHA RENTALS SNAPSHOT\033[0m\n")
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	fmt.Fprintf(w, "\033[1;33m  Overview\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Listings stored   : \033[1m%d\033[0m\n", r.TotalListings)
	fmt.Fprintf(w, "  With known price  : \033[1m%d\033[0m\n\n", r.PricedListings)

	fmt.Fprintf(w, "\033[1;33m  Monthly Rent\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if r.PricedListings > 0 {
		fmt.Fprintf(w, "  Average : \033[1;32m%.0f %s\033[0m\n", r.AveragePrice, currency)
		fmt.Fprintf(w, "  Minimum : \033[1;32m%.0f %s\033[0m\n", r.MinPrice, currency)
		fmt.Fprintf(w, "  Maximum : \033[1;32m%.0f %s\033[0m\n", r.MaxPrice, currency)
	} else {
		fmt.Fprintf(w, "  No price data available\n")
	}
	fmt.Fprintln(w)

	if r.MostExpensive != nil {
		fmt.Fprintf(w, "\033[1;33m  Most Expensive Listing\033[0m\n")
		fmt.Fprintf(w, "  %s\n", thin)
		fmt.Fprintf(w, "  %s\n", truncate(r.MostExpensive.Title, 50))
		fmt.Fprintf(w, "  District : %s\n", r.MostExpensive.District)
		fmt.Fprintf(w, "  URL      : %s\n\n", r.MostExpensive.URL)
	}

	if len(r.AvgPriceByRooms) > 0 {
		fmt.Fprintf(w, "\033[1;33m  Average Rent by Rooms\033[0m\n")
		fmt.Fprintf(w, "  %s\n", thin)
		rooms := make([]int, 0, len(r.AvgPriceByRooms))
		for n := range r.AvgPriceByRooms {
			rooms = append(rooms, n)
		}
		sort.Ints(rooms)
		for _, n := range rooms {
			fmt.Fprintf(w, "  %d-room : %.0f %s\n", n, r.AvgPriceByRooms[n], currency)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "\033[1;33m  Listings by District\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(r.ListingsByDistrict) == 0 {
		fmt.Fprintf(w, "  No district data\n")
	} else {
		type districtCount struct {
			district string
			count    int
		}
		var counts []districtCount
		for d, cnt := range r.ListingsByDistrict {
			counts = append(counts, districtCount{d, cnt})
		}
		sort.Slice(counts, func(i, j int) bool {
			if counts[i].count == counts[j].count {
				return counts[i].district < counts[j].district
			}
			return counts[i].count > counts[j].count
		})
		for _, dc := range counts {
			bar := strings.Repeat("█", min(dc.count, 40))
			fmt.Fprintf(w, "  %-30s %s (%d)\n", truncate(dc.district, 28), bar, dc.count)
		}
	}

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}

// truncate shortens s to max runes.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
