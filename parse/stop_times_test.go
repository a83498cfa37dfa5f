package parse

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transitkit/gtfs/model"
	"github.com/transitkit/gtfs/table"
)

func clock(t *testing.T, s string) model.Clock {
	c, err := model.ParseClock(s)
	require.NoError(t, err)
	return c
}

func TestParseStopTimes(t *testing.T) {
	dist := 12.5

	for _, tc := range []struct {
		name      string
		content   string
		trips     map[string]*model.Trip
		stops     map[string]*model.Stop
		err       bool
		stopTimes []*model.StopTime
	}{
		{
			"minimal",
			`
trip_id,arrival_time,departure_time,stop_id,stop_sequence
t,10:00:00,10:00:01,s,1`,
			map[string]*model.Trip{"t": &model.Trip{}},
			map[string]*model.Stop{"s": &model.Stop{}},
			false,
			[]*model.StopTime{
				&model.StopTime{
					TripID:       "t",
					Arrival:      clock(t, "10:00:00"),
					Departure:    clock(t, "10:00:01"),
					StopID:       "s",
					StopSequence: 1,
					Timepoint:    true,
				},
			},
		},

		{
			"all_fields_set_and_multiple_records",
			`
trip_id,arrival_time,departure_time,stop_id,stop_sequence,stop_headsign,pickup_type,drop_off_type,shape_dist_traveled,timepoint
t,10:00:00,10:00:01,s1,1,sh1,0,1,,1
t,,,s2,5,sh2,2,3,12.5,0
t,25:00:02,25:00:03,s1,9,,,,,
`,
			map[string]*model.Trip{"t": &model.Trip{}},
			map[string]*model.Stop{"s1": &model.Stop{}, "s2": &model.Stop{}},
			false,
			[]*model.StopTime{
				&model.StopTime{
					TripID:       "t",
					Arrival:      clock(t, "10:00:00"),
					Departure:    clock(t, "10:00:01"),
					StopID:       "s1",
					StopSequence: 1,
					Headsign:     "sh1",
					PickupType:   model.PickupTypeRegular,
					DropOffType:  model.PickupTypeNone,
					Timepoint:    true,
				},
				&model.StopTime{
					TripID:            "t",
					StopID:            "s2",
					StopSequence:      5,
					Headsign:          "sh2",
					PickupType:        model.PickupTypePhoneAgency,
					DropOffType:       model.PickupTypeCoordinateWithDriver,
					ShapeDistTraveled: &dist,
					Timepoint:         false,
				},
				&model.StopTime{
					TripID:       "t",
					Arrival:      clock(t, "25:00:02"),
					Departure:    clock(t, "25:00:03"),
					StopID:       "s1",
					StopSequence: 9,
					Timepoint:    true,
				},
			},
		},

		{
			"missing trip_id",
			`
arrival_time,departure_time,stop_id,stop_sequence
10:00:00,10:00:01,s,1`,
			nil, nil, true, nil,
		},

		{
			"missing arrival_time",
			`
trip_id,departure_time,stop_id,stop_sequence
t,10:00:01,s,1`,
			nil, nil, true, nil,
		},

		{
			"missing stop_sequence",
			`
trip_id,arrival_time,departure_time,stop_id
t,10:00:00,10:00:01,s`,
			nil, nil, true, nil,
		},

		{
			"unknown trip",
			`
trip_id,arrival_time,departure_time,stop_id,stop_sequence
t,10:00:00,10:00:01,s,1`,
			map[string]*model.Trip{"t2": &model.Trip{}},
			map[string]*model.Stop{"s": &model.Stop{}},
			true,
			nil,
		},

		{
			"unknown stop",
			`
trip_id,arrival_time,departure_time,stop_id,stop_sequence
t,10:00:00,10:00:01,s,1`,
			map[string]*model.Trip{"t": &model.Trip{}},
			map[string]*model.Stop{"s2": &model.Stop{}},
			true,
			nil,
		},

		{
			"invalid arrival_time",
			`
trip_id,arrival_time,departure_time,stop_id,stop_sequence
t,10:00:derp,10:00:01,s,1`,
			map[string]*model.Trip{"t": &model.Trip{}},
			map[string]*model.Stop{"s": &model.Stop{}},
			true,
			nil,
		},

		{
			"invalid pickup_type",
			`
trip_id,arrival_time,departure_time,stop_id,stop_sequence,pickup_type
t,10:00:00,10:00:01,s,1,4`,
			map[string]*model.Trip{"t": &model.Trip{}},
			map[string]*model.Stop{"s": &model.Stop{}},
			true,
			nil,
		},

		{
			"invalid timepoint",
			`
trip_id,arrival_time,departure_time,stop_id,stop_sequence,timepoint
t,10:00:00,10:00:01,s,1,2`,
			map[string]*model.Trip{"t": &model.Trip{}},
			map[string]*model.Stop{"s": &model.Stop{}},
			true,
			nil,
		},

		{
			"negative stop_sequence",
			`
trip_id,arrival_time,departure_time,stop_id,stop_sequence
t,10:00:00,10:00:01,s,-1`,
			map[string]*model.Trip{"t": &model.Trip{}},
			map[string]*model.Stop{"s": &model.Stop{}},
			true,
			nil,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			stopTimes, err := ParseStopTimes(table.Parse(tc.content), tc.trips, tc.stops)
			if tc.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.stopTimes, stopTimes)
		})
	}
}

func TestParseStopTimesErrors(t *testing.T) {
	trips := map[string]*model.Trip{"t": &model.Trip{}}
	stops := map[string]*model.Stop{"s": &model.Stop{}}

	_, err := ParseStopTimes(table.Parse(`
trip_id,arrival_time,departure_time,stop_id,stop_sequence
t,10:00:00,10:00:00,s,3
t,10:05:00,10:05:00,s,3`), trips, stops)
	uniq := &model.DatasetUniquenessError{}
	require.True(t, errors.As(err, &uniq))
	assert.Equal(t, &model.DatasetUniquenessError{
		File:  "stop_times.txt",
		Field: "trip_id+stop_sequence",
		Value: "t+3",
	}, uniq)

	// Wrapped row context keeps the typed error reachable.
	_, err = ParseStopTimes(table.Parse(`
trip_id,arrival_time,departure_time,stop_id,stop_sequence
t,10:00:00,10:00:00,s,1
t,10:61:00,10:05:00,s,2`), trips, stops)
	invalid := &model.InvalidDataError{}
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, &model.InvalidDataError{
		File:  "stop_times.txt",
		Field: "arrival_time",
		Row:   2,
		Value: "10:61:00",
	}, invalid)
	assert.Contains(t, err.Error(), "row 2")
}
