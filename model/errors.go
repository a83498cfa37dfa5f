package model

import (
	"fmt"
)

// MissingRequiredFieldError is returned when a file lacks a column
// that must be present.
type MissingRequiredFieldError struct {
	File  string
	Field string
}

func (e *MissingRequiredFieldError) Error() string {
	return fmt.Sprintf("%s: missing required field '%s'", e.File, e.Field)
}

// InvalidDataError pinpoints a single bad value. Row is the 1-based
// data row.
type InvalidDataError struct {
	File  string
	Field string
	Row   int
	Value string
}

func (e *InvalidDataError) Error() string {
	return fmt.Sprintf("%s: invalid %s '%s' (row %d)", e.File, e.Field, e.Value, e.Row)
}

// DatasetUniquenessError reports a repeated key. For composite keys
// Field and Value join their parts with '+'.
type DatasetUniquenessError struct {
	File  string
	Field string
	Value string
}

func (e *DatasetUniquenessError) Error() string {
	return fmt.Sprintf("%s: repeated %s '%s'", e.File, e.Field, e.Value)
}

type ParentStationNotStationError struct {
	StopID   string
	ParentID string
}

func (e *ParentStationNotStationError) Error() string {
	return fmt.Sprintf("stop '%s' has parent_station '%s' which is not a station", e.StopID, e.ParentID)
}

// TerminalTimepointError is returned for a trip whose first or last
// stop time is not a timepoint.
type TerminalTimepointError struct {
	TripID string
}

func (e *TerminalTimepointError) Error() string {
	return fmt.Sprintf("trip '%s' does not start and end on a timepoint", e.TripID)
}
