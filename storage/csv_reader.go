package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"krisha-pipeline/models"
)

const utf8BOM = "\ufeff"

// csvRow gives access to a record by header name; absent columns read as "".
type csvRow struct {
	index  map[string]int
	record []string
}

func (r csvRow) get(col string) string {
	i, ok := r.index[col]
	if !ok || i >= len(r.record) {
		return ""
	}
	return r.record[i]
}

// readCSV loads every row of the file at path. Column order is taken from the
// header, which must contain a "url" column.
func readCSV(path string) ([]csvRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("csv: open %q: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("csv: read header of %q: %w", path, err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, utf8BOM)
		}
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := index["url"]; !ok {
		return nil, fmt.Errorf("csv: %q has no url column", path)
	}

	var rows []csvRow
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv: read %q: %w", path, err)
		}
		rows = append(rows, csvRow{index: index, record: record})
	}
	return rows, nil
}

// ReadRawFile loads raw listings. Columns of a clean file (max_floor,
// district, address) are picked up too, so a cleaned dataset can be re-fed.
func ReadRawFile(path string) ([]*models.RawListing, error) {
	rows, err := readCSV(path)
	if err != nil {
		return nil, err
	}

	listings := make([]*models.RawListing, 0, len(rows))
	for _, row := range rows {
		listings = append(listings, &models.RawListing{
			URL:          row.get("url"),
			Title:        row.get("title"),
			PriceText:    row.get("price"),
			LocationText: row.get("location"),
			RoomsText:    row.get("rooms"),
			AreaText:     row.get("area"),
			FloorText:    row.get("floor"),
			MaxFloorText: row.get("max_floor"),
			District:     row.get("district"),
			Address:      row.get("address"),
		})
	}
	return listings, nil
}

// ReadCleanFile loads normalized listings. A malformed number is an error
// because the file is expected to come from the normalizer.
func ReadCleanFile(path string) ([]*models.CleanListing, error) {
	rows, err := readCSV(path)
	if err != nil {
		return nil, err
	}

	listings := make([]*models.CleanListing, 0, len(rows))
	for i, row := range rows {
		l := &models.CleanListing{
			URL:      row.get("url"),
			Title:    row.get("title"),
			Location: row.get("location"),
			District: row.get("district"),
			Address:  row.get("address"),
			Currency: row.get("currency"),
			City:     row.get("city"),
		}

		var perr error
		if l.Price, perr = optionalFloat(row.get("price")); perr != nil {
			return nil, fmt.Errorf("csv: %q row %d price: %w", path, i+2, perr)
		}
		if l.Area, perr = optionalFloat(row.get("area")); perr != nil {
			return nil, fmt.Errorf("csv: %q row %d area: %w", path, i+2, perr)
		}
		for col, dst := range map[string]**int{"rooms": &l.Rooms, "floor": &l.Floor, "max_floor": &l.MaxFloor} {
			if *dst, perr = optionalInt(row.get(col)); perr != nil {
				return nil, fmt.Errorf("csv: %q row %d %s: %w", path, i+2, col, perr)
			}
		}
		listings = append(listings, l)
	}
	return listings, nil
}

func optionalFloat(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// optionalInt also accepts "3.0", which spreadsheet tools like to produce.
func optionalInt(s string) (*int, error) {
	f, err := optionalFloat(s)
	if err != nil || f == nil {
		return nil, err
	}
	if *f != float64(int(*f)) {
		return nil, fmt.Errorf("%q is not a whole number", s)
	}
	n := int(*f)
	return &n, nil
}
