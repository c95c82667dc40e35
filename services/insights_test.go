package services

import (
	"bytes"
	"strings"
	"testing"

	"krisha-pipeline/models"
	"krisha-pipeline/utils"
)

func stored(url, district string, price *float64, rooms *int) *models.StoredListing {
	return &models.StoredListing{CleanListing: models.CleanListing{
		URL: url, Title: "Квартира " + url, District: district, Price: price, Rooms: rooms,
	}}
}

func sampleListings() []*models.StoredListing {
	return []*models.StoredListing{
		stored("1", "Бостандыкский р-н", fptr(200000), iptr(2)),
		stored("2", "Бостандыкский р-н", fptr(150000), iptr(1)),
		stored("3", "Медеуский р-н", fptr(400000), iptr(3)),
		stored("4", "Алмалинский р-н", nil, iptr(2)),
		stored("5", "Медеуский р-н", fptr(250000), iptr(2)),
	}
}

func TestInsightCounts(t *testing.T) {
	svc := NewInsightService(utils.NewNopLogger())
	r := svc.Generate(sampleListings())
	if r.TotalListings != 5 {
		t.Errorf("TotalListings: got %d, want 5", r.TotalListings)
	}
	if r.PricedListings != 4 {
		t.Errorf("PricedListings: got %d, want 4", r.PricedListings)
	}
}

func TestInsightPrices(t *testing.T) {
	svc := NewInsightService(utils.NewNopLogger())
	r := svc.Generate(sampleListings())
	if r.AveragePrice != 250000 {
		t.Errorf("AveragePrice: got %.2f, want 250000", r.AveragePrice)
	}
	if r.MinPrice != 150000 {
		t.Errorf("MinPrice: got %.2f, want 150000", r.MinPrice)
	}
	if r.MaxPrice != 400000 {
		t.Errorf("MaxPrice: got %.2f, want 400000", r.MaxPrice)
	}
	if r.MostExpensive == nil || r.MostExpensive.URL != "3" {
		t.Errorf("MostExpensive: got %+v, want listing 3", r.MostExpensive)
	}
}

func TestInsightGrouping(t *testing.T) {
	svc := NewInsightService(utils.NewNopLogger())
	r := svc.Generate(sampleListings())
	if r.ListingsByDistrict["Медеуский р-н"] != 2 {
		t.Errorf("Медеуский count: got %d, want 2", r.ListingsByDistrict["Медеуский р-н"])
	}
	if r.AvgPriceByRooms[2] != 225000 {
		t.Errorf("2-room average: got %.2f, want 225000", r.AvgPriceByRooms[2])
	}
}

func TestInsightEmptyInput(t *testing.T) {
	svc := NewInsightService(utils.NewNopLogger())
	r := svc.Generate(nil)
	if r.TotalListings != 0 || r.MostExpensive != nil {
		t.Errorf("expected empty report for empty input, got %+v", r)
	}
}

func TestInsightPrint(t *testing.T) {
	svc := NewInsightService(utils.NewNopLogger())
	var buf bytes.Buffer
	svc.Print(&buf, svc.Generate(sampleListings()), "KZT")

	out := buf.String()
	for _, want := range []string{"Listings stored", "250000 KZT", "2-room", "Медеуский р-н"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}
