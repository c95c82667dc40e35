package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"krisha-pipeline/models"
)

// RawColumns is the header of the intermediate (collector output) CSV.
var RawColumns = []string{"url", "title", "price", "location", "rooms", "area", "floor"}

// CleanColumns is the header of the normalized CSV.
var CleanColumns = []string{
	"url", "title", "price", "rooms", "area", "floor", "max_floor",
	"location", "district", "address", "currency", "city",
}

// CSVWriter writes rows to a temporary file next to path and moves it into
// place on Close, so readers never see a half-written file.
// It is safe for concurrent use.
type CSVWriter struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	writer *csv.Writer
}

// NewCSVWriter creates the temporary file and writes the header row.
// Intermediate directories are created automatically.
func NewCSVWriter(path string, header []string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("csv: create file for %q: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return nil, fmt.Errorf("csv: write header: %w", err)
	}

	return &CSVWriter{path: path, file: f, writer: w}, nil
}

// WriteRaw appends raw listings in RawColumns order.
func (c *CSVWriter) WriteRaw(listings []*models.RawListing) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, l := range listings {
		row := []string{l.URL, l.Title, l.PriceText, l.LocationText, l.RoomsText, l.AreaText, l.FloorText}
		if err := c.writer.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}
	c.writer.Flush()
	return c.writer.Error()
}

// WriteClean appends clean listings in CleanColumns order. Nil numerics are
// written as empty cells.
func (c *CSVWriter) WriteClean(listings []*models.CleanListing) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, l := range listings {
		row := []string{
			l.URL, l.Title,
			models.FormatFloat(l.Price),
			models.FormatInt(l.Rooms),
			models.FormatFloat(l.Area),
			models.FormatInt(l.Floor),
			models.FormatInt(l.MaxFloor),
			l.Location, l.District, l.Address, l.Currency, l.City,
		}
		if err := c.writer.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}
	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes the file and renames it over path.
func (c *CSVWriter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.writer.Flush()
	if err := c.writer.Error(); err != nil {
		c.discard()
		return fmt.Errorf("csv: flush: %w", err)
	}
	if err := c.file.Close(); err != nil {
		_ = os.Remove(c.file.Name())
		return fmt.Errorf("csv: close: %w", err)
	}
	if err := os.Rename(c.file.Name(), c.path); err != nil {
		_ = os.Remove(c.file.Name())
		return fmt.Errorf("csv: move into place: %w", err)
	}
	return nil
}

// Abort drops the temporary file, leaving any previous file at path untouched.
func (c *CSVWriter) Abort() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.discard()
}

func (c *CSVWriter) discard() {
	_ = c.file.Close()
	_ = os.Remove(c.file.Name())
}

// WriteRawFile writes a complete raw CSV at path.
func WriteRawFile(path string, listings []*models.RawListing) error {
	w, err := NewCSVWriter(path, RawColumns)
	if err != nil {
		return err
	}
	if err := w.WriteRaw(listings); err != nil {
		w.Abort()
		return err
	}
	return w.Close()
}

// WriteCleanFile writes a complete clean CSV at path.
func WriteCleanFile(path string, listings []*models.CleanListing) error {
	w, err := NewCSVWriter(path, CleanColumns)
	if err != nil {
		return err
	}
	if err := w.WriteClean(listings); err != nil {
		w.Abort()
		return err
	}
	return w.Close()
}
