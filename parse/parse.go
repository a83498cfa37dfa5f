// Package parse builds typed GTFS records from decoded tables.
//
// Each file has a schema listing required and optional columns. A
// missing required column invalidates the whole file. Values are
// then coerced row by row, and the first bad value aborts the file
// with an error naming the file, field, row and raw value.
package parse

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/transitkit/gtfs/model"
	"github.com/transitkit/gtfs/table"
)

const (
	AgencyFile        = "agency.txt"
	StopsFile         = "stops.txt"
	RoutesFile        = "routes.txt"
	TripsFile         = "trips.txt"
	StopTimesFile     = "stop_times.txt"
	CalendarFile      = "calendar.txt"
	CalendarDatesFile = "calendar_dates.txt"
	ShapesFile        = "shapes.txt"
	TransfersFile     = "transfers.txt"
	FareRulesFile     = "fare_rules.txt"
)

var colorPattern = regexp.MustCompile(`^[0-9A-Fa-f]{6}$`)

type schema struct {
	file     string
	required []string
	optional []string
}

// check verifies that every required column is present.
func (s *schema) check(t *table.Table) error {
	for _, field := range s.required {
		if !t.FieldExists(field) {
			return &model.MissingRequiredFieldError{File: s.file, Field: field}
		}
	}
	return nil
}

// record collects the raw values of data row row. Columns absent
// from the table are left out.
func (s *schema) record(t *table.Table, row int) *record {
	r := &record{file: s.file, row: row, values: map[string]string{}}
	for _, fields := range [][]string{s.required, s.optional} {
		for _, field := range fields {
			v, err := t.Get(field, row)
			if errors.Is(err, table.ErrRowOutOfRange) {
				panic(fmt.Sprintf("%s: %v", s.file, err))
			}
			if err != nil {
				continue
			}
			r.values[field] = v
		}
	}
	return r
}

// each checks the columns and yields every data row in order.
func (s *schema) each(t *table.Table, fn func(r *record) error) error {
	if err := s.check(t); err != nil {
		return err
	}
	for row := 1; row <= t.RowCount(); row++ {
		if err := fn(s.record(t, row)); err != nil {
			return err
		}
	}
	return nil
}

type record struct {
	file   string
	row    int
	values map[string]string
}

func (r *record) has(field string) bool {
	_, ok := r.values[field]
	return ok
}

func (r *record) str(field string) string {
	return strings.TrimSpace(r.values[field])
}

func (r *record) invalid(field string) *model.InvalidDataError {
	return &model.InvalidDataError{
		File:  r.file,
		Field: field,
		Row:   r.row,
		Value: r.values[field],
	}
}

// id returns a non-empty identifier.
func (r *record) id(field string) (string, error) {
	v := r.str(field)
	if v == "" {
		return "", r.invalid(field)
	}
	return v, nil
}

func (r *record) float(field string, lo, hi float64) (float64, error) {
	f, err := strconv.ParseFloat(r.str(field), 64)
	if err != nil || math.IsNaN(f) || f < lo || f > hi {
		return 0, r.invalid(field)
	}
	return f, nil
}

// distance parses an optional non-negative float.
func (r *record) distance(field string) (*float64, error) {
	if r.str(field) == "" {
		return nil, nil
	}
	f, err := r.float(field, 0, math.MaxFloat64)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *record) uint32(field string) (uint32, error) {
	i, err := strconv.ParseUint(r.str(field), 10, 32)
	if err != nil {
		return 0, r.invalid(field)
	}
	return uint32(i), nil
}

// enum parses an index into a list of n variants. The empty string
// gives def.
func (r *record) enum(field string, n int, def int) (int, error) {
	v := r.str(field)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil || i < 0 || i >= n {
		return 0, r.invalid(field)
	}
	return i, nil
}

func (r *record) accessibility(field string) (model.Accessibility, error) {
	i, err := r.enum(field, model.AccessibilityCount, int(model.AccessibilityUnknown))
	return model.Accessibility(i), err
}

func (r *record) clock(field string) (model.Clock, error) {
	c, err := model.ParseClock(r.str(field))
	if err != nil {
		return model.Clock{}, r.invalid(field)
	}
	return c, nil
}

// date validates a YYYYMMDD date.
func (r *record) date(field string) (string, error) {
	v := r.str(field)
	if _, err := time.ParseInLocation("20060102", v, time.UTC); err != nil {
		return "", r.invalid(field)
	}
	return v, nil
}

func (r *record) color(field string, def string) (string, error) {
	v := r.str(field)
	if v == "" {
		return def, nil
	}
	if !colorPattern.MatchString(v) {
		return "", r.invalid(field)
	}
	return strings.ToUpper(v), nil
}

func (r *record) timezone(field string) (string, error) {
	v := r.str(field)
	if v == "" {
		return "", nil
	}
	if _, err := time.LoadLocation(v); err != nil {
		return "", r.invalid(field)
	}
	return v, nil
}
