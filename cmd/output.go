package main

import (
	"fmt"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/transitkit/gtfs"
	"github.com/transitkit/gtfs/model"
)

type stopTimeRow struct {
	TripID        string `csv:"trip_id"`
	RouteID       string `csv:"route_id"`
	StopID        string `csv:"stop_id"`
	StopSequence  uint32 `csv:"stop_sequence"`
	ArrivalTime   string `csv:"arrival_time"`
	DepartureTime string `csv:"departure_time"`
	Timepoint     bool   `csv:"timepoint"`
	Departure     string `csv:"resolved_departure"`
}

type serviceRow struct {
	ServiceID string `csv:"service_id"`
	StartDate string `csv:"start_date"`
	EndDate   string `csv:"end_date"`
	Active    bool   `csv:"active"`
}

type departureRow struct {
	Time     string `csv:"time"`
	RouteID  string `csv:"route_id"`
	TripID   string `csv:"trip_id"`
	StopID   string `csv:"stop_id"`
	Headsign string `csv:"headsign"`
}

type stopRow struct {
	StopID string  `csv:"stop_id"`
	Name   string  `csv:"stop_name"`
	Lat    float64 `csv:"stop_lat"`
	Lon    float64 `csv:"stop_lon"`
}

func stopTimeRows(feed *gtfs.Feed, stopTimes []*model.StopTime, date time.Time) []*stopTimeRow {
	rows := []*stopTimeRow{}
	for _, st := range stopTimes {
		row := &stopTimeRow{
			TripID:        st.TripID,
			StopID:        st.StopID,
			StopSequence:  st.StopSequence,
			ArrivalTime:   st.Arrival.String(),
			DepartureTime: st.Departure.String(),
			Timepoint:     st.Timepoint,
		}
		if trip := feed.Trip(st.TripID); trip != nil {
			row.RouteID = trip.RouteID
		}
		if !date.IsZero() {
			if t, ok := feed.Schedule().ResolvedDepartureTime(st, date); ok {
				row.Departure = t.Format(time.RFC3339)
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// render prints rows as CSV, or each row on a line using text.
func render[T any](rows []*T, text func(row *T) string) error {
	if format == "csv" {
		out, err := gocsv.MarshalString(&rows)
		if err != nil {
			return fmt.Errorf("writing csv: %w", err)
		}
		fmt.Print(out)
		return nil
	}

	for _, row := range rows {
		fmt.Println(text(row))
	}
	return nil
}
