package parse

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/transitkit/gtfs/model"
	"github.com/transitkit/gtfs/table"
)

var stopTimesSchema = schema{
	file:     StopTimesFile,
	required: []string{"trip_id", "arrival_time", "departure_time", "stop_id", "stop_sequence"},
	optional: []string{"stop_headsign", "pickup_type", "drop_off_type", "shape_dist_traveled", "timepoint"},
}

// ParseStopTimes returns all stop times in file order. Trip and
// stop must be known, and stop_sequence is unique within a trip.
func ParseStopTimes(
	data *table.Table,
	trips map[string]*model.Trip,
	stops map[string]*model.Stop,
) ([]*model.StopTime, error) {
	stopTimes := make([]*model.StopTime, 0, data.RowCount())
	seen := map[string]map[uint32]bool{}

	err := stopTimesSchema.each(data, func(r *record) error {
		st, err := buildStopTime(r)
		if err != nil {
			return errors.Wrapf(err, "row %d", r.row)
		}

		if trips[st.TripID] == nil {
			return errors.Wrapf(r.invalid("trip_id"), "unknown trip")
		}
		if stops[st.StopID] == nil {
			return errors.Wrapf(r.invalid("stop_id"), "unknown stop")
		}

		if seen[st.TripID] == nil {
			seen[st.TripID] = map[uint32]bool{}
		}
		if seen[st.TripID][st.StopSequence] {
			return &model.DatasetUniquenessError{
				File:  StopTimesFile,
				Field: "trip_id+stop_sequence",
				Value: fmt.Sprintf("%s+%d", st.TripID, st.StopSequence),
			}
		}
		seen[st.TripID][st.StopSequence] = true

		stopTimes = append(stopTimes, st)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return stopTimes, nil
}

func buildStopTime(r *record) (*model.StopTime, error) {
	var err error

	st := &model.StopTime{
		Headsign:  r.str("stop_headsign"),
		Timepoint: true,
	}

	st.TripID, err = r.id("trip_id")
	if err != nil {
		return nil, err
	}
	st.StopID, err = r.id("stop_id")
	if err != nil {
		return nil, err
	}
	st.StopSequence, err = r.uint32("stop_sequence")
	if err != nil {
		return nil, err
	}

	st.Arrival, err = r.clock("arrival_time")
	if err != nil {
		return nil, err
	}
	st.Departure, err = r.clock("departure_time")
	if err != nil {
		return nil, err
	}

	pickup, err := r.enum("pickup_type", model.PickupTypeCount, int(model.PickupTypeRegular))
	if err != nil {
		return nil, err
	}
	st.PickupType = model.PickupType(pickup)
	dropOff, err := r.enum("drop_off_type", model.PickupTypeCount, int(model.PickupTypeRegular))
	if err != nil {
		return nil, err
	}
	st.DropOffType = model.PickupType(dropOff)

	st.ShapeDistTraveled, err = r.distance("shape_dist_traveled")
	if err != nil {
		return nil, err
	}

	switch r.str("timepoint") {
	case "", "1":
		st.Timepoint = true
	case "0":
		st.Timepoint = false
	default:
		return nil, r.invalid("timepoint")
	}

	return st, nil
}
