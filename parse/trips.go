package parse

import (
	"github.com/transitkit/gtfs/model"
	"github.com/transitkit/gtfs/table"
)

var tripsSchema = schema{
	file:     TripsFile,
	required: []string{"route_id", "service_id", "trip_id"},
	optional: []string{
		"trip_headsign",
		"trip_short_name",
		"direction_id",
		"block_id",
		"shape_id",
		"wheelchair_accessible",
		"bikes_allowed",
	},
}

// ParseTrips returns trips keyed by trip_id. Every trip must
// reference a known route and service.
func ParseTrips(
	data *table.Table,
	routes map[string]*model.Route,
	services map[string]bool,
) (map[string]*model.Trip, error) {
	trips := map[string]*model.Trip{}

	err := tripsSchema.each(data, func(r *record) error {
		trip, err := buildTrip(r)
		if err != nil {
			return err
		}

		if _, found := trips[trip.ID]; found {
			return &model.DatasetUniquenessError{File: TripsFile, Field: "trip_id", Value: trip.ID}
		}
		if routes[trip.RouteID] == nil {
			return r.invalid("route_id")
		}
		if !services[trip.ServiceID] {
			return r.invalid("service_id")
		}

		trips[trip.ID] = trip
		return nil
	})
	if err != nil {
		return nil, err
	}

	return trips, nil
}

func buildTrip(r *record) (*model.Trip, error) {
	var err error

	trip := &model.Trip{
		RouteID:   r.str("route_id"),
		ServiceID: r.str("service_id"),
		Headsign:  r.str("trip_headsign"),
		ShortName: r.str("trip_short_name"),
		BlockID:   r.str("block_id"),
		ShapeID:   r.str("shape_id"),
	}

	trip.ID, err = r.id("trip_id")
	if err != nil {
		return nil, err
	}

	switch r.str("direction_id") {
	case "":
		trip.DirectionID = model.DirectionUndefined
	case "0":
		trip.DirectionID = model.DirectionZero
	case "1":
		trip.DirectionID = model.DirectionOne
	default:
		return nil, r.invalid("direction_id")
	}

	trip.WheelchairAccessible, err = r.accessibility("wheelchair_accessible")
	if err != nil {
		return nil, err
	}
	trip.BikesAllowed, err = r.accessibility("bikes_allowed")
	if err != nil {
		return nil, err
	}

	return trip, nil
}
