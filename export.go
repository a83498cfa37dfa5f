package gtfs

import (
	"fmt"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/transitkit/gtfs/model"
	"github.com/transitkit/gtfs/storage"
)

// Export writes every record of the feed to w, ordered by key. Only
// transfer rules that were linked to known stops are written.
//
// w is not closed.
func (f *Feed) Export(w storage.FeedWriter) error {
	for _, a := range f.Agencies() {
		if err := w.WriteAgency(a); err != nil {
			return errors.Wrap(err, "writing agencies")
		}
	}

	for _, s := range f.Stops() {
		if err := w.WriteStop(s); err != nil {
			return errors.Wrap(err, "writing stops")
		}
	}

	for _, r := range f.Routes() {
		if err := w.WriteRoute(r); err != nil {
			return errors.Wrap(err, "writing routes")
		}
	}

	for _, id := range f.calendar.ServiceIDs() {
		if cal := f.calendar.Calendar(id); cal != nil {
			if err := w.WriteCalendar(cal); err != nil {
				return errors.Wrap(err, "writing calendar")
			}
		}
		for _, cd := range f.calendar.Exceptions(id) {
			if err := w.WriteCalendarDate(cd); err != nil {
				return errors.Wrap(err, "writing calendar dates")
			}
		}
	}

	trips := f.Trips()

	if err := w.BeginTrips(); err != nil {
		return errors.Wrap(err, "beginning trips")
	}
	for _, t := range trips {
		if err := w.WriteTrip(t); err != nil {
			return errors.Wrap(err, "writing trips")
		}
	}
	if err := w.EndTrips(); err != nil {
		return errors.Wrap(err, "ending trips")
	}

	if err := w.BeginStopTimes(); err != nil {
		return errors.Wrap(err, "beginning stop times")
	}
	for _, t := range trips {
		for _, st := range f.schedule.byTrip[t.ID] {
			if err := w.WriteStopTime(st); err != nil {
				return errors.Wrap(err, "writing stop times")
			}
		}
	}
	if err := w.EndStopTimes(); err != nil {
		return errors.Wrap(err, "ending stop times")
	}

	for _, tr := range f.transfers {
		if err := w.WriteTransfer(tr); err != nil {
			return errors.Wrap(err, "writing transfers")
		}
	}

	for _, s := range f.Shapes() {
		if err := w.WriteShape(s); err != nil {
			return errors.Wrap(err, "writing shapes")
		}
	}

	return nil
}

// FromStorage rebuilds a Feed from records previously written by
// Export. Records are trusted to be valid, but are linked and
// scheduled the same way as by Load.
func FromStorage(r storage.FeedReader, opts Options) (*Feed, error) {
	log := opts.logger()
	f := &Feed{}

	agencies, err := r.Agencies()
	if err != nil {
		return nil, fmt.Errorf("reading agencies: %w", err)
	}
	if len(agencies) == 0 {
		return nil, fmt.Errorf("no agency record found")
	}
	f.timezone = agencies[0].Timezone
	f.agencies = map[string]*model.Agency{}
	for _, a := range agencies {
		f.agencies[a.ID] = a
	}

	stops, err := r.Stops()
	if err != nil {
		return nil, fmt.Errorf("reading stops: %w", err)
	}
	f.stops = map[string]*model.Stop{}
	for _, s := range stops {
		f.stops[s.ID] = s
	}

	routes, err := r.Routes()
	if err != nil {
		return nil, fmt.Errorf("reading routes: %w", err)
	}
	f.routes = map[string]*model.Route{}
	for _, rt := range routes {
		f.routes[rt.ID] = rt
	}

	trips, err := r.Trips()
	if err != nil {
		return nil, fmt.Errorf("reading trips: %w", err)
	}
	f.trips = map[string]*model.Trip{}
	for _, t := range trips {
		f.trips[t.ID] = t
	}

	cals, err := r.Calendars()
	if err != nil {
		return nil, fmt.Errorf("reading calendar: %w", err)
	}
	calendars := map[string]*model.Calendar{}
	for _, c := range cals {
		calendars[c.ServiceID] = c
	}

	cds, err := r.CalendarDates()
	if err != nil {
		return nil, fmt.Errorf("reading calendar dates: %w", err)
	}
	overrides := map[string]map[string]*model.CalendarDate{}
	for _, cd := range cds {
		if overrides[cd.ServiceID] == nil {
			overrides[cd.ServiceID] = map[string]*model.CalendarDate{}
		}
		overrides[cd.ServiceID][cd.Date] = cd
	}

	stopTimes, err := r.StopTimes()
	if err != nil {
		return nil, fmt.Errorf("reading stop times: %w", err)
	}

	transfers, err := r.Transfers()
	if err != nil {
		return nil, fmt.Errorf("reading transfers: %w", err)
	}
	if len(transfers) == 0 {
		transfers = nil
	}

	var shapes map[string]*model.Shape
	shapeList, err := r.Shapes()
	if err != nil {
		return nil, fmt.Errorf("reading shapes: %w", err)
	}
	if len(shapeList) > 0 {
		shapes = map[string]*model.Shape{}
		for _, s := range shapeList {
			shapes[s.ID] = s
		}
	}

	log.Debug("read feed from storage",
		zap.Int("stops", len(f.stops)),
		zap.Int("trips", len(f.trips)),
		zap.Int("stop_times", len(stopTimes)),
	)

	err = f.assemble(calendars, overrides, stopTimes, transfers, shapes, log)
	if err != nil {
		return nil, err
	}

	return f, nil
}
