// Package table reads and writes the comma separated tables that
// make up a GTFS feed.
package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/spkg/bom"
)

var (
	ErrFieldNotFound = errors.New("field not found")
	ErrRowOutOfRange = errors.New("row out of range")
)

// Table is a decoded CSV file. Row 0 holds the header, data rows
// are numbered from 1.
type Table struct {
	// CaseInsensitive makes column lookups ignore case.
	CaseInsensitive bool

	rows [][]string
}

// New wraps an already decoded grid.
func New(rows [][]string) *Table {
	return &Table{rows: rows}
}

// Parse decodes CSV text.
func Parse(src string) *Table {
	return New(Decode(src))
}

// Read decodes everything from r. A leading UTF-8 byte order mark
// is discarded.
func Read(r io.Reader) (*Table, error) {
	buf, err := io.ReadAll(bom.NewReader(r))
	if err != nil {
		return nil, fmt.Errorf("reading table: %w", err)
	}
	return Parse(string(buf)), nil
}

// Header returns the column names.
func (t *Table) Header() []string {
	if len(t.rows) == 0 {
		return nil
	}
	return t.rows[0]
}

// RowCount is the number of data rows, not counting the header.
func (t *Table) RowCount() int {
	if len(t.rows) == 0 {
		return 0
	}
	return len(t.rows) - 1
}

// Rows returns every row including the header.
func (t *Table) Rows() [][]string {
	return t.rows
}

// FieldExists reports whether the header has the named column.
func (t *Table) FieldExists(name string) bool {
	return t.column(name) >= 0
}

// Get returns the value of the named column in data row row.
func (t *Table) Get(name string, row int) (string, error) {
	if row < 1 || row >= len(t.rows) {
		return "", fmt.Errorf("%w: %d of %d", ErrRowOutOfRange, row, t.RowCount())
	}
	col := t.column(name)
	if col < 0 {
		return "", fmt.Errorf("%w: %s", ErrFieldNotFound, name)
	}
	return t.rows[row][col], nil
}

func (t *Table) column(name string) int {
	name = strings.TrimSpace(name)
	for i, h := range t.Header() {
		h = strings.TrimSpace(h)
		if h == name || (t.CaseInsensitive && strings.EqualFold(h, name)) {
			return i
		}
	}
	return -1
}

// Encode writes rows as CSV, quoting where needed.
func Encode(w io.Writer, rows [][]string) error {
	cw := gocsv.NewSafeCSVWriter(csv.NewWriter(w))
	for _, row := range rows {
		// A lone empty field would be written as a blank line,
		// which reads back as no row at all.
		if len(row) == 1 && row[0] == "" {
			cw.Flush()
			if err := cw.Error(); err != nil {
				return fmt.Errorf("flushing: %w", err)
			}
			if _, err := io.WriteString(w, "\"\"\n"); err != nil {
				return fmt.Errorf("writing row: %w", err)
			}
			continue
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing: %w", err)
	}
	return nil
}

// Encode writes the table, header included, as CSV.
func (t *Table) Encode(w io.Writer) error {
	return Encode(w, t.rows)
}
