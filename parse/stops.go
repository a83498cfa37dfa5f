package parse

import (
	"github.com/transitkit/gtfs/model"
	"github.com/transitkit/gtfs/table"
)

var stopsSchema = schema{
	file:     StopsFile,
	required: []string{"stop_id", "stop_name", "stop_lat", "stop_lon"},
	optional: []string{
		"stop_code",
		"stop_desc",
		"zone_id",
		"stop_url",
		"location_type",
		"parent_station",
		"stop_timezone",
		"wheelchair_boarding",
	},
}

// ParseStops returns stops and stations keyed by stop_id. When the
// feed has fare rules, zoneRequired makes zone_id a required
// column.
//
// Parent references are not resolved here, see the feed's linker.
func ParseStops(data *table.Table, zoneRequired bool) (map[string]*model.Stop, error) {
	s := stopsSchema
	if zoneRequired {
		s.required = append(append([]string{}, s.required...), "zone_id")
	}

	stops := map[string]*model.Stop{}
	err := s.each(data, func(r *record) error {
		stop, err := buildStop(r)
		if err != nil {
			return err
		}
		if _, found := stops[stop.ID]; found {
			return &model.DatasetUniquenessError{File: StopsFile, Field: "stop_id", Value: stop.ID}
		}
		stops[stop.ID] = stop
		return nil
	})
	if err != nil {
		return nil, err
	}

	return stops, nil
}

func buildStop(r *record) (*model.Stop, error) {
	var err error

	stop := &model.Stop{
		Code:          r.str("stop_code"),
		Name:          r.str("stop_name"),
		Desc:          r.str("stop_desc"),
		ZoneID:        r.str("zone_id"),
		URL:           r.str("stop_url"),
		ParentStation: r.str("parent_station"),
	}

	stop.ID, err = r.id("stop_id")
	if err != nil {
		return nil, err
	}

	stop.Lat, err = r.float("stop_lat", -90, 90)
	if err != nil {
		return nil, err
	}
	stop.Lon, err = r.float("stop_lon", -180, 180)
	if err != nil {
		return nil, err
	}

	switch r.str("location_type") {
	case "", "0":
		stop.LocationType = model.LocationTypeStop
	case "1":
		stop.LocationType = model.LocationTypeStation
	default:
		return nil, r.invalid("location_type")
	}

	// Stations can't be nested.
	if stop.IsStation() && stop.ParentStation != "" {
		return nil, r.invalid("parent_station")
	}

	stop.Timezone, err = r.timezone("stop_timezone")
	if err != nil {
		return nil, err
	}

	stop.WheelchairBoarding, err = r.accessibility("wheelchair_boarding")
	if err != nil {
		return nil, err
	}

	return stop, nil
}
