package models

import (
	"errors"
	"strconv"
	"time"
)

// Unknown is the sentinel stored in text columns that had no usable value.
const Unknown = "unknown"

// ErrEmptyBatch is reported when a stage receives no records. Callers treat it
// as a successful no-op.
var ErrEmptyBatch = errors.New("empty batch")

// RawListing holds unprocessed card text exactly as extracted from the page.
// Empty strings mean the field was not found.
type RawListing struct {
	URL          string
	Title        string
	PriceText    string
	LocationText string

	// InfoTags are the free-text info blocks of the card. The collector
	// classifies them into RoomsText, AreaText and FloorText.
	InfoTags  []string
	RoomsText string
	AreaText  string
	FloorText string

	// Only set when a previously cleaned dataset is fed back in.
	MaxFloorText string
	District     string
	Address      string
}

// CleanListing is the normalized record ready for storage.
type CleanListing struct {
	URL      string
	Title    string
	Price    *float64
	Rooms    *int
	Area     *float64
	Floor    *int
	MaxFloor *int
	Location string
	District string
	Address  string
	Currency string
	City     string
}

// AsRaw renders the listing back into raw form, the shape a clean dataset has
// when it is read again as normalizer input.
func (l *CleanListing) AsRaw() *RawListing {
	return &RawListing{
		URL:          l.URL,
		Title:        l.Title,
		PriceText:    FormatFloat(l.Price),
		LocationText: l.Location,
		RoomsText:    FormatInt(l.Rooms),
		AreaText:     FormatFloat(l.Area),
		FloorText:    FormatInt(l.Floor),
		MaxFloorText: FormatInt(l.MaxFloor),
		District:     l.District,
		Address:      l.Address,
	}
}

// StoredListing is a persisted row of the apartments table.
type StoredListing struct {
	ID int64
	CleanListing
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Verification is the result of a read-only sanity check against the store.
type Verification struct {
	Count  int
	Sample []*StoredListing
}

// InsightReport holds summary statistics over the stored dataset.
type InsightReport struct {
	TotalListings      int
	PricedListings     int
	AveragePrice       float64
	MinPrice           float64
	MaxPrice           float64
	MostExpensive      *StoredListing
	ListingsByDistrict map[string]int
	AvgPriceByRooms    map[int]float64
}

// FormatFloat renders an optional float for CSV output; nil becomes "".
func FormatFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

// FormatInt renders an optional int for CSV output; nil becomes "".
func FormatInt(n *int) string {
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}
