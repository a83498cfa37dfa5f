package gtfs

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transitkit/gtfs/model"
)

func clock(t *testing.T, s string) model.Clock {
	c, err := model.ParseClock(s)
	require.NoError(t, err)
	return c
}

func stopTime(t *testing.T, tripID, stopID string, seq uint32, departure string, timepoint bool) *model.StopTime {
	c := clock(t, departure)
	return &model.StopTime{
		TripID:       tripID,
		StopID:       stopID,
		StopSequence: seq,
		Arrival:      c,
		Departure:    c,
		Timepoint:    timepoint,
	}
}

// Everything runs every day of 2020, except trip "sundays".
func scheduleFixture(t *testing.T, stopTimes []*model.StopTime) (*Schedule, error) {
	trips := map[string]*model.Trip{}
	for _, st := range stopTimes {
		serviceID := "daily"
		if st.TripID == "sundays" {
			serviceID = "sundays"
		}
		trips[st.TripID] = &model.Trip{ID: st.TripID, ServiceID: serviceID}
	}

	calendar := NewServiceCalendar(map[string]*model.Calendar{
		"daily":   {ServiceID: "daily", StartDate: "20200101", EndDate: "20201231", Weekday: 0x7f},
		"sundays": {ServiceID: "sundays", StartDate: "20200101", EndDate: "20201231", Weekday: 1 << time.Sunday},
	}, nil)

	return NewSchedule(stopTimes, trips, calendar, time.UTC)
}

func TestScheduleTripSchedule(t *testing.T) {
	s, err := scheduleFixture(t, []*model.StopTime{
		stopTime(t, "t", "c", 30, "10:20:00", true),
		stopTime(t, "t", "a", 10, "10:00:00", true),
		stopTime(t, "t", "b", 20, "10:10:00", true),
	})
	require.NoError(t, err)

	seq := s.TripSchedule("t")
	require.Equal(t, 3, len(seq))
	assert.Equal(t, "a", seq[0].StopID)
	assert.Equal(t, "b", seq[1].StopID)
	assert.Equal(t, "c", seq[2].StopID)

	// The returned slice is a copy
	seq[0] = nil
	assert.NotNil(t, s.TripSchedule("t")[0])

	assert.Nil(t, s.TripSchedule("unknown"))
}

func TestScheduleTerminalTimepoint(t *testing.T) {
	for _, tc := range []struct {
		name      string
		stopTimes []*model.StopTime
		tripID    string
	}{
		{
			"first not timepoint",
			[]*model.StopTime{
				stopTime(t, "t", "a", 1, "", false),
				stopTime(t, "t", "b", 2, "10:10:00", true),
			},
			"t",
		},
		{
			"last not timepoint",
			[]*model.StopTime{
				stopTime(t, "t", "a", 1, "10:00:00", true),
				stopTime(t, "t", "b", 2, "", false),
			},
			"t",
		},
		{
			// Sorted by stop_sequence, not file order
			"last by sequence",
			[]*model.StopTime{
				stopTime(t, "u", "b", 5, "", false),
				stopTime(t, "u", "a", 1, "10:00:00", true),
				stopTime(t, "u", "c", 3, "10:20:00", true),
			},
			"u",
		},
		{
			"single non-timepoint",
			[]*model.StopTime{
				stopTime(t, "ok", "a", 1, "10:00:00", true),
				stopTime(t, "v", "a", 1, "", false),
			},
			"v",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			s, err := scheduleFixture(t, tc.stopTimes)
			assert.Nil(t, s)

			var target *model.TerminalTimepointError
			require.True(t, errors.As(err, &target))
			assert.Equal(t, tc.tripID, target.TripID)
		})
	}
}

// Each stop time departs with the closest timepoint at or before it.
func TestScheduleResolvedDepartureTime(t *testing.T) {
	stopTimes := []*model.StopTime{
		stopTime(t, "t", "s1", 1, "08:00:00", true),
		stopTime(t, "t", "s2", 2, "", false),
		stopTime(t, "t", "s3", 3, "08:05:00", false),
		stopTime(t, "t", "s4", 4, "08:10:00", true),
		stopTime(t, "t", "s5", 5, "", false),
		stopTime(t, "t", "s6", 6, "25:30:00", true),
	}
	s, err := scheduleFixture(t, stopTimes)
	require.NoError(t, err)

	day := time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)
	for _, tc := range []struct {
		stopID   string
		expected time.Time
	}{
		{"s1", time.Date(2020, 6, 1, 8, 0, 0, 0, time.UTC)},
		{"s2", time.Date(2020, 6, 1, 8, 0, 0, 0, time.UTC)},
		{"s3", time.Date(2020, 6, 1, 8, 0, 0, 0, time.UTC)},
		{"s4", time.Date(2020, 6, 1, 8, 10, 0, 0, time.UTC)},
		{"s5", time.Date(2020, 6, 1, 8, 10, 0, 0, time.UTC)},
		{"s6", time.Date(2020, 6, 2, 1, 30, 0, 0, time.UTC)},
	} {
		t.Run(tc.stopID, func(t *testing.T) {
			var st *model.StopTime
			for _, candidate := range stopTimes {
				if candidate.StopID == tc.stopID {
					st = candidate
				}
			}
			departure, ok := s.ResolvedDepartureTime(st, day)
			require.True(t, ok)
			assert.Equal(t, tc.expected, departure)
		})
	}

	// A stop time not in the schedule doesn't resolve
	_, ok := s.ResolvedDepartureTime(stopTime(t, "t", "s1", 99, "08:00:00", true), day)
	assert.False(t, ok)
	_, ok = s.ResolvedDepartureTime(stopTime(t, "other", "s1", 1, "08:00:00", true), day)
	assert.False(t, ok)
}

// A timepoint without a departure resolves to nothing.
func TestScheduleResolvedDepartureTimeUndefined(t *testing.T) {
	stopTimes := []*model.StopTime{
		stopTime(t, "t", "s1", 1, "08:00:00", true),
		stopTime(t, "t", "s2", 2, "", true),
		stopTime(t, "t", "s3", 3, "", false),
		stopTime(t, "t", "s4", 4, "08:10:00", true),
	}
	s, err := scheduleFixture(t, stopTimes)
	require.NoError(t, err)

	day := time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)
	_, ok := s.ResolvedDepartureTime(stopTimes[1], day)
	assert.False(t, ok)
	_, ok = s.ResolvedDepartureTime(stopTimes[2], day)
	assert.False(t, ok)
}

func TestScheduleTimetable(t *testing.T) {
	s, err := scheduleFixture(t, []*model.StopTime{
		stopTime(t, "late", "hub", 1, "18:00:00", true),
		stopTime(t, "late", "end", 2, "18:30:00", true),
		stopTime(t, "early", "start", 1, "06:00:00", true),
		stopTime(t, "early", "hub", 2, "", false),
		stopTime(t, "early", "end", 3, "06:30:00", true),
		stopTime(t, "night", "start", 1, "23:50:00", true),
		stopTime(t, "night", "hub", 2, "24:10:00", true),
		stopTime(t, "sundays", "start", 1, "12:00:00", true),
		stopTime(t, "sundays", "hub", 2, "12:10:00", true),
		stopTime(t, "undefined", "start", 1, "05:00:00", true),
		stopTime(t, "undefined", "hub", 2, "", true),
		stopTime(t, "undefined", "end", 3, "05:30:00", true),
	})
	require.NoError(t, err)

	trips := func(sts []*model.StopTime) []string {
		out := []string{}
		for _, st := range sts {
			out = append(out, fmt.Sprintf("%s@%s", st.TripID, st.StopID))
		}
		return out
	}

	// Monday: sorted by resolved departure, with the undefined
	// departure last and the Sunday trip excluded.
	monday := time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, []string{
		"early@hub",
		"late@hub",
		"night@hub",
		"undefined@hub",
	}, trips(s.Timetable("hub", monday)))

	sunday := time.Date(2020, 5, 31, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, []string{
		"early@hub",
		"sundays@hub",
		"late@hub",
		"night@hub",
		"undefined@hub",
	}, trips(s.Timetable("hub", sunday)))

	// Outside the calendar
	assert.Equal(t, []string{}, trips(s.Timetable("hub", time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC))))
	assert.Equal(t, []string{}, trips(s.Timetable("unknown", monday)))
}

func TestScheduleTimepointSchedule(t *testing.T) {
	s, err := scheduleFixture(t, []*model.StopTime{
		stopTime(t, "t", "s3", 3, "08:10:00", true),
		stopTime(t, "t", "s2", 2, "", false),
		stopTime(t, "t", "s1", 1, "08:00:00", true),
		stopTime(t, "sundays", "s1", 1, "08:00:00", true),
	})
	require.NoError(t, err)

	monday := time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)
	timepoints := s.TimepointSchedule("t", monday)
	require.Equal(t, 2, len(timepoints))
	assert.Equal(t, "s1", timepoints[0].StopID)
	assert.Equal(t, "s3", timepoints[1].StopID)

	assert.Nil(t, s.TimepointSchedule("sundays", monday))
	assert.Equal(t, 1, len(s.TimepointSchedule("sundays", monday.AddDate(0, 0, -1))))
	assert.Nil(t, s.TimepointSchedule("unknown", monday))
}

func TestStopTimeArrivalAndDeparture(t *testing.T) {
	tz, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	st := &model.StopTime{Arrival: clock(t, "25:10:00"), Departure: clock(t, "25:15:30")}
	day := time.Date(2020, 3, 7, 0, 0, 0, 0, tz)

	arrival, ok := st.ArrivalTime(day, tz)
	require.True(t, ok)
	assert.Equal(t, time.Date(2020, 3, 8, 1, 10, 0, 0, tz), arrival)

	departure, ok := st.DepartureTime(day, tz)
	require.True(t, ok)
	assert.Equal(t, time.Date(2020, 3, 8, 1, 15, 30, 0, tz), departure)

	_, ok = (&model.StopTime{}).ArrivalTime(day, tz)
	assert.False(t, ok)
}
