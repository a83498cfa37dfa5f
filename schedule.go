package gtfs

import (
	"fmt"
	"sort"
	"time"

	"github.com/transitkit/gtfs/model"
)

// Schedule indexes stop times by trip and by stop, and resolves the
// time at which a trip passes a stop.
type Schedule struct {
	byTrip   map[string][]*model.StopTime
	byStop   map[string][]*model.StopTime
	trips    map[string]*model.Trip
	calendar *ServiceCalendar
	location *time.Location
}

// NewSchedule groups stopTimes per trip, ordered by stop_sequence,
// and per stop, in input order. Every trip must start and end on a
// timepoint.
func NewSchedule(
	stopTimes []*model.StopTime,
	trips map[string]*model.Trip,
	calendar *ServiceCalendar,
	location *time.Location,
) (*Schedule, error) {
	s := &Schedule{
		byTrip:   map[string][]*model.StopTime{},
		byStop:   map[string][]*model.StopTime{},
		trips:    trips,
		calendar: calendar,
		location: location,
	}

	for _, st := range stopTimes {
		s.byTrip[st.TripID] = append(s.byTrip[st.TripID], st)
		s.byStop[st.StopID] = append(s.byStop[st.StopID], st)
	}

	tripIDs := make([]string, 0, len(s.byTrip))
	for tripID, seq := range s.byTrip {
		sort.SliceStable(seq, func(i, j int) bool {
			return seq[i].StopSequence < seq[j].StopSequence
		})
		tripIDs = append(tripIDs, tripID)
	}

	// Sorted for a deterministic error.
	sort.Strings(tripIDs)
	for _, tripID := range tripIDs {
		seq := s.byTrip[tripID]
		if !seq[0].Timepoint || !seq[len(seq)-1].Timepoint {
			return nil, &model.TerminalTimepointError{TripID: tripID}
		}
	}

	return s, nil
}

// TripSchedule returns the trip's stop times ordered by
// stop_sequence, or nil if the trip has none.
func (s *Schedule) TripSchedule(tripID string) []*model.StopTime {
	seq, found := s.byTrip[tripID]
	if !found {
		return nil
	}
	return append([]*model.StopTime{}, seq...)
}

// TimepointSchedule returns the trip's timepoints in stop_sequence
// order, or nil if the trip does not run on date.
func (s *Schedule) TimepointSchedule(tripID string, date time.Time) []*model.StopTime {
	trip := s.trips[tripID]
	if trip == nil || !s.calendar.IsActiveOn(trip.ServiceID, date) {
		return nil
	}

	timepoints := []*model.StopTime{}
	for _, st := range s.byTrip[tripID] {
		if st.Timepoint {
			timepoints = append(timepoints, st)
		}
	}
	return timepoints
}

// ResolvedDepartureTime is the departure at st on the service day
// date. A stop time that isn't a timepoint takes the departure of
// the closest timepoint before it in the trip. The second return
// value is false if that departure is not given, or st is not part
// of this schedule.
func (s *Schedule) ResolvedDepartureTime(st *model.StopTime, date time.Time) (time.Time, bool) {
	seq := s.byTrip[st.TripID]
	i := sort.Search(len(seq), func(i int) bool {
		return seq[i].StopSequence >= st.StopSequence
	})
	if i == len(seq) || seq[i].StopSequence != st.StopSequence {
		return time.Time{}, false
	}

	for ; i >= 0; i-- {
		if seq[i].Timepoint {
			return seq[i].Departure.On(date, s.location)
		}
	}

	// Trips start on a timepoint, checked in NewSchedule.
	panic(fmt.Sprintf("trip '%s' has no timepoint before stop_sequence %d", st.TripID, st.StopSequence))
}

// Visit is a stop time along with its resolved departure.
type Visit struct {
	StopTime  *model.StopTime
	Departure time.Time
	Resolved  bool
}

// Timetable lists the stop's visits by trips running on date,
// ordered by resolved departure. Visits without a departure come
// last.
func (s *Schedule) Timetable(stopID string, date time.Time) []*model.StopTime {
	visits := s.visits([]string{stopID}, date)
	timetable := make([]*model.StopTime, 0, len(visits))
	for _, v := range visits {
		timetable = append(timetable, v.StopTime)
	}
	return timetable
}

func (s *Schedule) visits(stopIDs []string, date time.Time) []Visit {
	visits := []Visit{}
	for _, stopID := range stopIDs {
		for _, st := range s.byStop[stopID] {
			trip := s.trips[st.TripID]
			if trip == nil || !s.calendar.IsActiveOn(trip.ServiceID, date) {
				continue
			}
			t, ok := s.ResolvedDepartureTime(st, date)
			visits = append(visits, Visit{StopTime: st, Departure: t, Resolved: ok})
		}
	}

	sort.SliceStable(visits, func(i, j int) bool {
		if !visits[i].Resolved {
			return false
		}
		if !visits[j].Resolved {
			return true
		}
		return visits[i].Departure.Before(visits[j].Departure)
	})

	return visits
}
