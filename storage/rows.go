package storage

import (
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/transitkit/gtfs/model"
)

// Column lists and row scanners shared by the SQL backends. Both
// use the same table layout, apart from Postgres' hash column.

const (
	agencyColumns       = "id, name, url, timezone, lang, phone, fare_url, email"
	stopColumns         = "id, code, name, description, lat, lon, zone_id, url, location_type, parent_station, timezone, wheelchair_boarding"
	routeColumns        = "id, agency_id, short_name, long_name, description, type, url, color, text_color"
	tripColumns         = "id, route_id, service_id, headsign, short_name, direction_id, block_id, shape_id, wheelchair_accessible, bikes_allowed"
	stopTimeColumns     = "trip_id, stop_id, stop_sequence, arrival_time, departure_time, headsign, pickup_type, drop_off_type, shape_dist_traveled, timepoint"
	calendarColumns     = "service_id, start_date, end_date, monday, tuesday, wednesday, thursday, friday, saturday, sunday"
	calendarDateColumns = "service_id, date, exception_type"
	transferColumns     = "from_stop_id, to_stop_id, transfer_type, min_transfer_time"
	shapePointColumns   = "shape_id, lat, lon, sequence, dist_traveled"
)

var weekdayOrder = []time.Weekday{
	time.Monday,
	time.Tuesday,
	time.Wednesday,
	time.Thursday,
	time.Friday,
	time.Saturday,
	time.Sunday,
}

// weekdayFlags spreads a calendar's weekday bitmask over the
// monday..sunday columns.
func weekdayFlags(cal *model.Calendar) []interface{} {
	flags := make([]interface{}, 0, len(weekdayOrder))
	for _, day := range weekdayOrder {
		if cal.RunsOn(day) {
			flags = append(flags, 1)
		} else {
			flags = append(flags, 0)
		}
	}
	return flags
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}

func scanAgencies(rows *sql.Rows) ([]*model.Agency, error) {
	defer rows.Close()

	agencies := []*model.Agency{}
	for rows.Next() {
		a := &model.Agency{}
		err := rows.Scan(&a.ID, &a.Name, &a.URL, &a.Timezone, &a.Lang, &a.Phone, &a.FareURL, &a.Email)
		if err != nil {
			return nil, errors.Wrap(err, "scanning agency")
		}
		agencies = append(agencies, a)
	}
	return agencies, rows.Err()
}

func scanStops(rows *sql.Rows) ([]*model.Stop, error) {
	defer rows.Close()

	stops := []*model.Stop{}
	for rows.Next() {
		s := &model.Stop{}
		err := rows.Scan(
			&s.ID,
			&s.Code,
			&s.Name,
			&s.Desc,
			&s.Lat,
			&s.Lon,
			&s.ZoneID,
			&s.URL,
			&s.LocationType,
			&s.ParentStation,
			&s.Timezone,
			&s.WheelchairBoarding,
		)
		if err != nil {
			return nil, errors.Wrap(err, "scanning stop")
		}
		stops = append(stops, s)
	}
	return stops, rows.Err()
}

func scanRoutes(rows *sql.Rows) ([]*model.Route, error) {
	defer rows.Close()

	routes := []*model.Route{}
	for rows.Next() {
		r := &model.Route{}
		err := rows.Scan(
			&r.ID,
			&r.AgencyID,
			&r.ShortName,
			&r.LongName,
			&r.Desc,
			&r.Type,
			&r.URL,
			&r.Color,
			&r.TextColor,
		)
		if err != nil {
			return nil, errors.Wrap(err, "scanning route")
		}
		routes = append(routes, r)
	}
	return routes, rows.Err()
}

func scanTrips(rows *sql.Rows) ([]*model.Trip, error) {
	defer rows.Close()

	trips := []*model.Trip{}
	for rows.Next() {
		t := &model.Trip{}
		err := rows.Scan(
			&t.ID,
			&t.RouteID,
			&t.ServiceID,
			&t.Headsign,
			&t.ShortName,
			&t.DirectionID,
			&t.BlockID,
			&t.ShapeID,
			&t.WheelchairAccessible,
			&t.BikesAllowed,
		)
		if err != nil {
			return nil, errors.Wrap(err, "scanning trip")
		}
		trips = append(trips, t)
	}
	return trips, rows.Err()
}

func scanStopTimes(rows *sql.Rows) ([]*model.StopTime, error) {
	defer rows.Close()

	stopTimes := []*model.StopTime{}
	for rows.Next() {
		st := &model.StopTime{}
		var arrival, departure string
		var dist sql.NullFloat64
		err := rows.Scan(
			&st.TripID,
			&st.StopID,
			&st.StopSequence,
			&arrival,
			&departure,
			&st.Headsign,
			&st.PickupType,
			&st.DropOffType,
			&dist,
			&st.Timepoint,
		)
		if err != nil {
			return nil, errors.Wrap(err, "scanning stop_time")
		}

		st.Arrival, err = model.ParseClock(arrival)
		if err != nil {
			return nil, errors.Wrapf(err, "stop_time %s/%d", st.TripID, st.StopSequence)
		}
		st.Departure, err = model.ParseClock(departure)
		if err != nil {
			return nil, errors.Wrapf(err, "stop_time %s/%d", st.TripID, st.StopSequence)
		}
		st.ShapeDistTraveled = floatPtr(dist)

		stopTimes = append(stopTimes, st)
	}
	return stopTimes, rows.Err()
}

func scanCalendars(rows *sql.Rows) ([]*model.Calendar, error) {
	defer rows.Close()

	calendars := []*model.Calendar{}
	for rows.Next() {
		c := &model.Calendar{}
		flags := make([]int, len(weekdayOrder))
		err := rows.Scan(
			&c.ServiceID,
			&c.StartDate,
			&c.EndDate,
			&flags[0],
			&flags[1],
			&flags[2],
			&flags[3],
			&flags[4],
			&flags[5],
			&flags[6],
		)
		if err != nil {
			return nil, errors.Wrap(err, "scanning calendar")
		}
		for i, day := range weekdayOrder {
			if flags[i] == 1 {
				c.Weekday |= 1 << day
			}
		}
		calendars = append(calendars, c)
	}
	return calendars, rows.Err()
}

func scanCalendarDates(rows *sql.Rows) ([]*model.CalendarDate, error) {
	defer rows.Close()

	calendarDates := []*model.CalendarDate{}
	for rows.Next() {
		cd := &model.CalendarDate{}
		err := rows.Scan(&cd.ServiceID, &cd.Date, &cd.ExceptionType)
		if err != nil {
			return nil, errors.Wrap(err, "scanning calendar_date")
		}
		calendarDates = append(calendarDates, cd)
	}
	return calendarDates, rows.Err()
}

func scanTransfers(rows *sql.Rows) ([]*model.Transfer, error) {
	defer rows.Close()

	transfers := []*model.Transfer{}
	for rows.Next() {
		tr := &model.Transfer{}
		var minTime sql.NullInt64
		err := rows.Scan(&tr.FromStopID, &tr.ToStopID, &tr.Type, &minTime)
		if err != nil {
			return nil, errors.Wrap(err, "scanning transfer")
		}
		if minTime.Valid {
			v := uint32(minTime.Int64)
			tr.MinTransferTime = &v
		}
		transfers = append(transfers, tr)
	}
	return transfers, rows.Err()
}

// scanShapes groups shape points into shapes. Rows must be ordered
// by shape_id and sequence.
func scanShapes(rows *sql.Rows) ([]*model.Shape, error) {
	defer rows.Close()

	shapes := []*model.Shape{}
	var current *model.Shape
	for rows.Next() {
		var shapeID string
		var dist sql.NullFloat64
		p := model.ShapePoint{}
		err := rows.Scan(&shapeID, &p.Lat, &p.Lon, &p.Sequence, &dist)
		if err != nil {
			return nil, errors.Wrap(err, "scanning shape point")
		}
		p.DistTraveled = floatPtr(dist)

		if current == nil || current.ID != shapeID {
			current = &model.Shape{ID: shapeID}
			shapes = append(shapes, current)
		}
		current.Points = append(current.Points, p)
	}
	return shapes, rows.Err()
}

func nullUint32(v *uint32) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}
