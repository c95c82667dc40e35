package services

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"krisha-pipeline/models"
	"krisha-pipeline/monitoring"
	"krisha-pipeline/utils"
)

var (
	// nonNumericRegexp matches everything coercion throws away.
	nonNumericRegexp = regexp.MustCompile(`[^\d.]`)
	// areaUnitRegexp matches area units so their "2" does not leak into the number.
	areaUnitRegexp = regexp.MustCompile(`(?i)(м²|м2|m²|m2|кв\.?\s*м)`)
	// floorPairRegexp captures "3/9", "3 из 9" or "3 этаж из 9" in a floor tag.
	floorPairRegexp = regexp.MustCompile(`(?i)(\d+)\s*(?:этаж\S*\s*)?(?:/|из)\s*(\d+)`)

	titleRoomsRegexp = regexp.MustCompile(`(?i)(\d+)\s*комн`)
	titleAreaRegexp  = regexp.MustCompile(`(?i)(\d+\.?\d*)\s*(м²|m²)`)
	titleFloorRegexp = regexp.MustCompile(`(?i)(\d+)\s*/\s*(\d+)\s*этаж`)
)

// placeholders are district/address values that count as missing.
var placeholders = map[string]struct{}{
	"":             {},
	models.Unknown: {},
	"nan":          {},
	"none":         {},
}

// Dataset carries the constants stamped on every clean record.
type Dataset struct {
	Currency string
	City     string
}

// Cleaner transforms RawListings into typed CleanListings.
type Cleaner struct {
	dataset Dataset
	logger  *utils.Logger
	metrics *monitoring.Metrics
}

// NewCleaner creates a Cleaner. metrics may be nil.
func NewCleaner(dataset Dataset, logger *utils.Logger, metrics *monitoring.Metrics) *Cleaner {
	return &Cleaner{dataset: dataset, logger: logger, metrics: metrics}
}

// Clean normalizes a batch. Malformed values degrade to nil or "unknown"; a
// single record never fails the batch. Records sharing a URL collapse to the
// first occurrence, and records without a URL are dropped after normalization.
// An empty batch returns an empty result and models.ErrEmptyBatch.
func (c *Cleaner) Clean(raw []*models.RawListing) ([]*models.CleanListing, error) {
	result := make([]*models.CleanListing, 0, len(raw))
	if len(raw) == 0 {
		c.logger.Warn("[cleaner] No raw listings to clean")
		return result, models.ErrEmptyBatch
	}

	seen := make(map[string]struct{}, len(raw))
	var noURL, dups int

	for _, r := range raw {
		if r == nil {
			continue
		}
		listing := c.normalize(r)

		if listing.URL == "" {
			noURL++
			c.logger.Warn("[cleaner] Dropping listing with empty URL: %s", listing.Title)
			continue
		}
		if _, dup := seen[listing.URL]; dup {
			dups++
			c.logger.Debug("[cleaner] Duplicate URL skipped: %s", listing.URL)
			continue
		}
		seen[listing.URL] = struct{}{}
		result = append(result, listing)
	}

	c.metrics.AddRecords("normalized", len(result))
	c.metrics.AddRecords("duplicate", dups)
	c.metrics.AddRecords("no_url", noURL)
	c.logger.Info("[cleaner] Cleaned %d → %d listings (%d duplicates, %d without URL)",
		len(raw), len(result), dups, noURL)
	return result, nil
}

// normalize applies coercion, defaulting, constants, location reconciliation
// and title fallback to one record.
func (c *Cleaner) normalize(r *models.RawListing) *models.CleanListing {
	floor, maxFloor := parseFloorTag(r.FloorText)
	if maxFloor == nil {
		maxFloor = parseInt(r.MaxFloorText)
	}

	l := &models.CleanListing{
		URL:      strings.TrimSpace(r.URL),
		Title:    defaultText(r.Title),
		Price:    parseFloat(r.PriceText),
		Rooms:    parseInt(r.RoomsText),
		Area:     parseArea(r.AreaText),
		Floor:    floor,
		MaxFloor: maxFloor,
		Location: defaultText(r.LocationText),
		District: defaultText(r.District),
		Address:  defaultText(r.Address),
		Currency: c.dataset.Currency,
		City:     c.dataset.City,
	}

	l.District, l.Address = reconcileLocation(l.Location, l.District, l.Address)

	t := ParseTitle(l.Title)
	l.Rooms = resolve(l.Rooms, t.Rooms)
	l.Area = resolve(l.Area, t.Area)
	l.Floor = resolve(l.Floor, t.Floor)
	l.MaxFloor = resolve(l.MaxFloor, t.MaxFloor)

	return l
}

// TitleFields are the values derivable from a listing title.
type TitleFields struct {
	Rooms    *int
	Area     *float64
	Floor    *int
	MaxFloor *int
}

// ParseTitle extracts room count, area and floor/max-floor from a title such
// as "2 комн., 54.5 м², 3/9 этаж". Each pattern is independent.
func ParseTitle(title string) TitleFields {
	var t TitleFields
	if m := titleRoomsRegexp.FindStringSubmatch(title); m != nil {
		t.Rooms = parseInt(m[1])
	}
	if m := titleAreaRegexp.FindStringSubmatch(title); m != nil {
		t.Area = parseFloat(m[1])
	}
	if m := titleFloorRegexp.FindStringSubmatch(title); m != nil {
		t.Floor = parseInt(m[1])
		t.MaxFloor = parseInt(m[2])
	}
	return t
}

// resolve returns primary when it is set, fallback otherwise.
func resolve[T any](primary, fallback *T) *T {
	if primary != nil {
		return primary
	}
	return fallback
}

// reconcileLocation splits location on its first comma when district or
// address is a placeholder. Existing non-placeholder pairs are kept as-is.
func reconcileLocation(location, district, address string) (string, string) {
	if !isPlaceholder(district) && !isPlaceholder(address) {
		return district, address
	}

	parts := strings.SplitN(location, ",", 2)
	newDistrict := defaultText(parts[0])
	newAddress := models.Unknown
	if len(parts) > 1 {
		newAddress = defaultText(parts[1])
	}
	return newDistrict, newAddress
}

func isPlaceholder(s string) bool {
	_, ok := placeholders[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

// defaultText trims s and substitutes the sentinel for blank values.
func defaultText(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return models.Unknown
	}
	return s
}

// parseFloat keeps only digits and dots, then parses. Anything unparsable is nil.
func parseFloat(raw string) *float64 {
	cleaned := nonNumericRegexp.ReplaceAllString(raw, "")
	if cleaned == "" {
		return nil
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return nil
	}
	return &f
}

// parseInt coerces like parseFloat but only accepts whole numbers.
func parseInt(raw string) *int {
	f := parseFloat(raw)
	if f == nil || *f != math.Trunc(*f) || *f > math.MaxInt32 {
		return nil
	}
	n := int(*f)
	return &n
}

func parseArea(raw string) *float64 {
	return parseFloat(areaUnitRegexp.ReplaceAllString(raw, ""))
}

// parseFloorTag reads "3/9 этаж", "этаж 3 из 9" or "3 этаж из 9" as a floor
// pair; any other text falls back to plain coercion with no max floor.
func parseFloorTag(raw string) (floor, maxFloor *int) {
	if m := floorPairRegexp.FindStringSubmatch(raw); m != nil {
		return parseInt(m[1]), parseInt(m[2])
	}
	return parseInt(raw), nil
}
