package gtfs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/transitkit/gtfs/archive"
	"github.com/transitkit/gtfs/model"
	"github.com/transitkit/gtfs/parse"
	"github.com/transitkit/gtfs/table"
)

var (
	// ErrAborted is returned when the context is cancelled while
	// the archive is being read.
	ErrAborted = errors.New("feed construction aborted")

	ErrMissingFile = errors.New("missing file")
)

// The files read from an archive. Anything else is ignored.
var feedFiles = []string{
	parse.AgencyFile,
	parse.StopsFile,
	parse.RoutesFile,
	parse.TripsFile,
	parse.StopTimesFile,
	parse.CalendarFile,
	parse.CalendarDatesFile,
	parse.ShapesFile,
	parse.TransfersFile,
	parse.FareRulesFile,
}

type Options struct {
	// Logger receives per stage debug output, and warnings about
	// ignored optional files. Defaults to a no-op logger.
	Logger *zap.Logger

	// CaseInsensitiveHeaders matches column names regardless of
	// case.
	CaseInsensitiveHeaders bool

	// Progress, if set, is called as each file is read.
	Progress archive.Progress
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

// Feed is a fully validated and linked GTFS feed. It is never
// modified after construction, and safe for concurrent use.
type Feed struct {
	timezone string
	location *time.Location

	agencies map[string]*model.Agency
	stops    map[string]*model.Stop
	routes   map[string]*model.Route
	trips    map[string]*model.Trip
	shapes   map[string]*model.Shape

	children      map[string][]string
	transfersFrom map[string][]*model.Transfer
	transfersTo   map[string][]*model.Transfer
	transfers     []*model.Transfer
	hasTransfers  bool

	calendar *ServiceCalendar
	schedule *Schedule

	// Longest time past midnight of any departure, in days.
	overflowDays int
}

// Load builds a Feed from an archive. Required files are agency.txt,
// stops.txt, routes.txt, trips.txt, stop_times.txt and at least one
// of calendar.txt and calendar_dates.txt. Problems with shapes.txt
// or transfers.txt are logged and the file ignored.
//
// The first problem found in a required file is returned, and no
// Feed.
func Load(ctx context.Context, a archive.Archive, opts Options) (*Feed, error) {
	files, err := archive.ReadFiles(ctx, a, feedFiles, opts.Progress)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", ErrAborted, err)
		}
		return nil, fmt.Errorf("reading archive: %w", err)
	}

	b := &builder{
		files: files,
		opts:  opts,
		log:   opts.logger(),
	}
	return b.build()
}

// LoadZip builds a Feed from a zip file held in memory.
func LoadZip(ctx context.Context, buf []byte, opts Options) (*Feed, error) {
	z, err := archive.NewZip(buf)
	if err != nil {
		return nil, err
	}
	defer z.Close()
	return Load(ctx, z, opts)
}

// LoadFile builds a Feed from a zip file or a directory on disk.
func LoadFile(ctx context.Context, path string, opts Options) (*Feed, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("opening feed: %w", err)
	}

	var a archive.Archive
	if info.IsDir() {
		a, err = archive.OpenDir(path)
	} else {
		a, err = archive.OpenZip(path)
	}
	if err != nil {
		return nil, err
	}
	defer a.Close()

	return Load(ctx, a, opts)
}

type builder struct {
	files map[string][]byte
	opts  Options
	log   *zap.Logger
}

func (b *builder) has(name string) bool {
	_, found := b.files[name]
	return found
}

func (b *builder) table(name string) (*table.Table, error) {
	t, err := table.Read(bytes.NewReader(b.files[name]))
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", name, err)
	}
	t.CaseInsensitive = b.opts.CaseInsensitiveHeaders
	return t, nil
}

func (b *builder) build() (*Feed, error) {
	for _, name := range []string{
		parse.AgencyFile,
		parse.StopsFile,
		parse.RoutesFile,
		parse.TripsFile,
		parse.StopTimesFile,
	} {
		if !b.has(name) {
			return nil, fmt.Errorf("%w: %s", ErrMissingFile, name)
		}
	}
	if !b.has(parse.CalendarFile) && !b.has(parse.CalendarDatesFile) {
		return nil, fmt.Errorf("%w: %s and %s", ErrMissingFile, parse.CalendarFile, parse.CalendarDatesFile)
	}

	f := &Feed{}

	t, err := b.table(parse.AgencyFile)
	if err != nil {
		return nil, err
	}
	f.agencies, f.timezone, err = parse.ParseAgency(t)
	if err != nil {
		return nil, fmt.Errorf("parsing agency.txt: %w", err)
	}
	b.log.Debug("loaded agencies", zap.Int("count", len(f.agencies)), zap.String("timezone", f.timezone))

	t, err = b.table(parse.StopsFile)
	if err != nil {
		return nil, err
	}
	f.stops, err = parse.ParseStops(t, b.has(parse.FareRulesFile))
	if err != nil {
		return nil, fmt.Errorf("parsing stops.txt: %w", err)
	}
	b.log.Debug("loaded stops", zap.Int("count", len(f.stops)))

	t, err = b.table(parse.RoutesFile)
	if err != nil {
		return nil, err
	}
	f.routes, err = parse.ParseRoutes(t)
	if err != nil {
		return nil, fmt.Errorf("parsing routes.txt: %w", err)
	}
	b.log.Debug("loaded routes", zap.Int("count", len(f.routes)))

	// Calendars go before trips, so that trips' service_id can
	// be checked row by row.
	calendars := map[string]*model.Calendar{}
	if b.has(parse.CalendarFile) {
		t, err = b.table(parse.CalendarFile)
		if err != nil {
			return nil, err
		}
		calendars, err = parse.ParseCalendar(t)
		if err != nil {
			return nil, fmt.Errorf("parsing calendar.txt: %w", err)
		}
	}
	overrides := map[string]map[string]*model.CalendarDate{}
	if b.has(parse.CalendarDatesFile) {
		t, err = b.table(parse.CalendarDatesFile)
		if err != nil {
			return nil, err
		}
		overrides, err = parse.ParseCalendarDates(t)
		if err != nil {
			return nil, fmt.Errorf("parsing calendar_dates.txt: %w", err)
		}
	}
	b.log.Debug("loaded calendar", zap.Int("calendars", len(calendars)), zap.Int("services_with_exceptions", len(overrides)))

	services := map[string]bool{}
	for id := range calendars {
		services[id] = true
	}
	for id := range overrides {
		services[id] = true
	}

	t, err = b.table(parse.TripsFile)
	if err != nil {
		return nil, err
	}
	f.trips, err = parse.ParseTrips(t, f.routes, services)
	if err != nil {
		return nil, fmt.Errorf("parsing trips.txt: %w", err)
	}
	b.log.Debug("loaded trips", zap.Int("count", len(f.trips)))

	t, err = b.table(parse.StopTimesFile)
	if err != nil {
		return nil, err
	}
	stopTimes, err := parse.ParseStopTimes(t, f.trips, f.stops)
	if err != nil {
		return nil, fmt.Errorf("parsing stop_times.txt: %w", err)
	}
	b.log.Debug("loaded stop times", zap.Int("count", len(stopTimes)))

	var transfers []*model.Transfer
	if b.has(parse.TransfersFile) {
		b.optional(parse.TransfersFile, func(t *table.Table) error {
			var err error
			transfers, err = parse.ParseTransfers(t)
			return err
		})
	}

	var shapes map[string]*model.Shape
	if b.has(parse.ShapesFile) {
		b.optional(parse.ShapesFile, func(t *table.Table) error {
			var err error
			shapes, err = parse.ParseShapes(t)
			return err
		})
	}

	err = f.assemble(calendars, overrides, stopTimes, transfers, shapes, b.log)
	if err != nil {
		return nil, err
	}

	return f, nil
}

// optional runs fn on an optional file. A failure is logged, and
// the file treated as absent.
func (b *builder) optional(name string, fn func(t *table.Table) error) {
	t, err := b.table(name)
	if err == nil {
		err = fn(t)
	}
	if err != nil {
		b.log.Warn("ignoring optional file", zap.String("file", name), zap.Error(err))
	}
}

// assemble links the parsed collections together. Stations are
// linked to their children, the calendar and schedule are built,
// and transfer rules are indexed by stop.
func (f *Feed) assemble(
	calendars map[string]*model.Calendar,
	overrides map[string]map[string]*model.CalendarDate,
	stopTimes []*model.StopTime,
	transfers []*model.Transfer,
	shapes map[string]*model.Shape,
	log *zap.Logger,
) error {
	var err error

	f.location, err = time.LoadLocation(f.timezone)
	if err != nil {
		return fmt.Errorf("loading timezone: %w", err)
	}

	f.children, err = linkStations(f.stops)
	if err != nil {
		return fmt.Errorf("linking stations: %w", err)
	}
	log.Debug("linked stations", zap.Int("stations", len(f.children)))

	f.calendar = NewServiceCalendar(calendars, overrides)

	f.schedule, err = NewSchedule(stopTimes, f.trips, f.calendar, f.location)
	if err != nil {
		return fmt.Errorf("building schedule: %w", err)
	}

	for _, st := range stopTimes {
		days := int(st.Departure.SinceMidnight() / (24 * time.Hour))
		if st.Departure.Valid() && days > f.overflowDays {
			f.overflowDays = days
		}
	}

	if len(transfers) > 0 {
		var dropped int
		f.transfersFrom, f.transfersTo, dropped = linkTransfers(f.stops, transfers)
		f.hasTransfers = true
		for _, tr := range transfers {
			if f.stops[tr.FromStopID] != nil && f.stops[tr.ToStopID] != nil {
				f.transfers = append(f.transfers, tr)
			}
		}
		log.Debug("linked transfers", zap.Int("count", len(transfers)-dropped), zap.Int("dropped", dropped))
	}

	if len(shapes) > 0 {
		f.shapes = shapes
	}

	return nil
}

// Timezone is the feed's IANA timezone, shared by all agencies.
func (f *Feed) Timezone() string {
	return f.timezone
}

func (f *Feed) Location() *time.Location {
	return f.location
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Agencies lists all agencies, ordered by agency_id.
func (f *Feed) Agencies() []*model.Agency {
	agencies := make([]*model.Agency, 0, len(f.agencies))
	for _, id := range sortedKeys(f.agencies) {
		agencies = append(agencies, f.agencies[id])
	}
	return agencies
}

func (f *Feed) Agency(id string) *model.Agency {
	return f.agencies[id]
}

// Stops lists all stops and stations, ordered by stop_id.
func (f *Feed) Stops() []*model.Stop {
	stops := make([]*model.Stop, 0, len(f.stops))
	for _, id := range sortedKeys(f.stops) {
		stops = append(stops, f.stops[id])
	}
	return stops
}

func (f *Feed) Stop(id string) *model.Stop {
	return f.stops[id]
}

// Routes lists all routes, ordered by route_id.
func (f *Feed) Routes() []*model.Route {
	routes := make([]*model.Route, 0, len(f.routes))
	for _, id := range sortedKeys(f.routes) {
		routes = append(routes, f.routes[id])
	}
	return routes
}

func (f *Feed) Route(id string) *model.Route {
	return f.routes[id]
}

// Trips lists all trips, ordered by trip_id.
func (f *Feed) Trips() []*model.Trip {
	trips := make([]*model.Trip, 0, len(f.trips))
	for _, id := range sortedKeys(f.trips) {
		trips = append(trips, f.trips[id])
	}
	return trips
}

func (f *Feed) Trip(id string) *model.Trip {
	return f.trips[id]
}

// Shapes lists all shapes, ordered by shape_id. Empty if shapes.txt
// was absent or could not be loaded.
func (f *Feed) Shapes() []*model.Shape {
	shapes := make([]*model.Shape, 0, len(f.shapes))
	for _, id := range sortedKeys(f.shapes) {
		shapes = append(shapes, f.shapes[id])
	}
	return shapes
}

func (f *Feed) Shape(id string) *model.Shape {
	return f.shapes[id]
}

// HasShapes reports whether shapes.txt was loaded with at least one
// shape.
func (f *Feed) HasShapes() bool {
	return f.shapes != nil
}

// HasTransfers reports whether transfers.txt was loaded with at
// least one record.
func (f *Feed) HasTransfers() bool {
	return f.hasTransfers
}

func (f *Feed) Calendar() *ServiceCalendar {
	return f.calendar
}

func (f *Feed) Schedule() *Schedule {
	return f.schedule
}

// StationChildren lists the stop_ids of a station's child stops,
// sorted. Nil for anything that isn't a station with children.
func (f *Feed) StationChildren(stationID string) []string {
	children := f.children[stationID]
	if children == nil {
		return nil
	}
	return append([]string{}, children...)
}

// StopTimezone is the timezone in effect at a stop. A stop with a
// parent station takes the station's, falling back to the feed's;
// its own stop_timezone is ignored.
func (f *Feed) StopTimezone(stopID string) string {
	stop := f.stops[stopID]
	if stop == nil {
		return f.timezone
	}
	if parent := f.parent(stop); parent != nil {
		if parent.Timezone != "" {
			return parent.Timezone
		}
		return f.timezone
	}
	if stop.Timezone != "" {
		return stop.Timezone
	}
	return f.timezone
}

// StopWheelchairBoarding is the stop's wheelchair_boarding, or the
// parent station's when the stop's is unknown.
func (f *Feed) StopWheelchairBoarding(stopID string) model.Accessibility {
	stop := f.stops[stopID]
	if stop == nil {
		return model.AccessibilityUnknown
	}
	if stop.WheelchairBoarding == model.AccessibilityUnknown {
		if parent := f.parent(stop); parent != nil {
			return parent.WheelchairBoarding
		}
	}
	return stop.WheelchairBoarding
}

// parent is the linked parent station of stop, or nil.
func (f *Feed) parent(stop *model.Stop) *model.Stop {
	if stop.ParentStation == "" {
		return nil
	}
	parent := f.stops[stop.ParentStation]
	if parent == nil || !parent.IsStation() {
		return nil
	}
	return parent
}

// TransfersFrom lists transfer rules leaving a stop, in file order.
func (f *Feed) TransfersFrom(stopID string) []*model.Transfer {
	return f.transfersFrom[stopID]
}

// TransfersTo lists transfer rules arriving at a stop, in file
// order.
func (f *Feed) TransfersTo(stopID string) []*model.Transfer {
	return f.transfersTo[stopID]
}

// TripSchedule is the trip's stop times ordered by stop_sequence,
// or nil for an unknown trip.
func (f *Feed) TripSchedule(tripID string) []*model.StopTime {
	return f.schedule.TripSchedule(tripID)
}

// Timetable lists visits to a stop by trips running on date, ordered
// by resolved departure. For a station, visits to all its child
// stops are included.
func (f *Feed) Timetable(stopID string, date time.Time) []*model.StopTime {
	visits := f.schedule.visits(f.stopAndChildren(stopID), date)
	timetable := make([]*model.StopTime, 0, len(visits))
	for _, v := range visits {
		timetable = append(timetable, v.StopTime)
	}
	return timetable
}

func (f *Feed) stopAndChildren(stopID string) []string {
	return append([]string{stopID}, f.children[stopID]...)
}
