package gtfs

import (
	"sort"
	"time"

	"github.com/transitkit/gtfs/model"
)

// Departures returns departures from a stop in the window
// [windowStart, windowStart+window). For a station, departures from
// all its child stops are included.
//
//   - limit (if >= 0) limits the number of results
//   - routeID (if != "") limits results to a route
//   - directionID (if not DirectionUndefined) limits results to a
//     direction
//
// The last stop of a trip is not a departure and is never
// included. Times are resolved as in Schedule.ResolvedDepartureTime,
// and returned in windowStart's timezone.
func (f *Feed) Departures(
	stopID string,
	windowStart time.Time,
	window time.Duration,
	limit int,
	routeID string,
	directionID model.Direction,
) []model.Departure {
	departures := []model.Departure{}

	if limit == 0 {
		return departures
	}

	// All computations are done in the feed's timezone, but
	// Departure.Time is returned in the timezone used by caller.
	origTz := windowStart.Location()
	start := windowStart.In(f.location)
	end := start.Add(window)

	// Trips running past midnight make a service day's
	// departures spill into the following days.
	first := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, f.location)
	first = first.AddDate(0, 0, -f.overflowDays)

	stopIDs := f.stopAndChildren(stopID)

	for day := first; day.Before(end); day = day.AddDate(0, 0, 1) {
		for _, v := range f.schedule.visits(stopIDs, day) {
			if !v.Resolved {
				continue
			}
			if v.Departure.Before(start) || !v.Departure.Before(end) {
				continue
			}

			st := v.StopTime
			trip := f.trips[st.TripID]
			if routeID != "" && trip.RouteID != routeID {
				continue
			}
			if directionID != model.DirectionUndefined && trip.DirectionID != directionID {
				continue
			}
			if f.isLastStop(st) {
				continue
			}

			headsign := st.Headsign
			if headsign == "" {
				headsign = trip.Headsign
			}

			departures = append(departures, model.Departure{
				StopID:       st.StopID,
				RouteID:      trip.RouteID,
				TripID:       trip.ID,
				ServiceID:    trip.ServiceID,
				StopSequence: st.StopSequence,
				DirectionID:  trip.DirectionID,
				Headsign:     headsign,
				Time:         v.Departure.In(origTz),
				Timepoint:    st.Timepoint,
			})
		}
	}

	sort.SliceStable(departures, func(i, j int) bool {
		return departures[i].Time.Before(departures[j].Time)
	})

	if limit > 0 && len(departures) > limit {
		departures = departures[:limit]
	}

	return departures
}

func (f *Feed) isLastStop(st *model.StopTime) bool {
	seq := f.schedule.byTrip[st.TripID]
	return len(seq) > 0 && seq[len(seq)-1].StopSequence == st.StopSequence
}

// NearbyStops returns stops ordered by distance from lat,lon. If
// limit is >0, at most limit stops are returned.
//
// Only stations, and stops without a parent station, are returned.
func (f *Feed) NearbyStops(lat float64, lon float64, limit int) []*model.Stop {
	type candidate struct {
		stop     *model.Stop
		distance float64
	}

	candidates := []candidate{}
	for _, stop := range f.Stops() {
		if !stop.IsStation() && f.parent(stop) != nil {
			continue
		}
		candidates = append(candidates, candidate{
			stop:     stop,
			distance: haversineDistance(lat, lon, stop.Lat, stop.Lon),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].distance < candidates[j].distance
	})

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	stops := make([]*model.Stop, 0, len(candidates))
	for _, c := range candidates {
		stops = append(stops, c.stop)
	}
	return stops
}

// RouteDirections returns all routes and directions passing through
// a stop (or a station's child stops), with every distinct headsign
// seen for each. Results are ordered by route_id then direction.
//
// In GTFS, direction and headsign are properties of a trip, and all
// trips belong to some route. This lets a user select e.g. "Stop 5,
// Route L, to Canarsie".
func (f *Feed) RouteDirections(stopID string) []*model.RouteDirection {
	type key struct {
		routeID   string
		direction model.Direction
	}

	headsigns := map[key]map[string]bool{}
	for _, id := range f.stopAndChildren(stopID) {
		for _, st := range f.schedule.byStop[id] {
			if f.isLastStop(st) {
				continue
			}
			trip := f.trips[st.TripID]
			k := key{trip.RouteID, trip.DirectionID}
			if headsigns[k] == nil {
				headsigns[k] = map[string]bool{}
			}
			headsign := st.Headsign
			if headsign == "" {
				headsign = trip.Headsign
			}
			if headsign != "" {
				headsigns[k][headsign] = true
			}
		}
	}

	rds := []*model.RouteDirection{}
	for k, hs := range headsigns {
		rd := &model.RouteDirection{
			StopID:      stopID,
			RouteID:     k.routeID,
			DirectionID: k.direction,
			Headsigns:   sortedKeys(hs),
		}
		rds = append(rds, rd)
	}

	sort.Slice(rds, func(i, j int) bool {
		if rds[i].RouteID != rds[j].RouteID {
			return rds[i].RouteID < rds[j].RouteID
		}
		return rds[i].DirectionID < rds[j].DirectionID
	})

	return rds
}
