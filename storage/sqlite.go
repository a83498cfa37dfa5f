package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/transitkit/gtfs/model"
)

type SQLiteConfig struct {
	OnDisk    bool
	Directory string
}

// SQLiteStorage keeps metadata in one database, and each feed in a
// database of its own. With OnDisk unset, everything lives in
// memory.
type SQLiteStorage struct {
	SQLiteConfig

	mu     sync.Mutex
	feedDB *sql.DB
	feeds  map[string]*sql.DB
}

type SQLiteFeedWriter struct {
	db                  *sql.DB
	stopTimeInsertQuery *sql.Stmt
	stopTimeInsertTx    *sql.Tx
}

type SQLiteFeedReader struct {
	db *sql.DB
}

var sqliteFeedTables = []struct {
	name  string
	query string
}{
	{"agency", `
CREATE TABLE agency (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    url TEXT NOT NULL,
    timezone TEXT NOT NULL,
    lang TEXT NOT NULL,
    phone TEXT NOT NULL,
    fare_url TEXT NOT NULL,
    email TEXT NOT NULL
);`},
	{"stops", `
CREATE TABLE stops (
    id TEXT PRIMARY KEY,
    code TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT NOT NULL,
    lat REAL NOT NULL,
    lon REAL NOT NULL,
    zone_id TEXT NOT NULL,
    url TEXT NOT NULL,
    location_type INTEGER NOT NULL,
    parent_station TEXT NOT NULL,
    timezone TEXT NOT NULL,
    wheelchair_boarding INTEGER NOT NULL
);
CREATE INDEX stops_parent_station ON stops (parent_station);
`},
	{"routes", `
CREATE TABLE routes (
    id TEXT PRIMARY KEY,
    agency_id TEXT NOT NULL,
    short_name TEXT NOT NULL,
    long_name TEXT NOT NULL,
    description TEXT NOT NULL,
    type INTEGER NOT NULL,
    url TEXT NOT NULL,
    color TEXT NOT NULL,
    text_color TEXT NOT NULL
);`},
	{"trips", `
CREATE TABLE trips (
    id TEXT PRIMARY KEY,
    route_id TEXT NOT NULL,
    service_id TEXT NOT NULL,
    headsign TEXT NOT NULL,
    short_name TEXT NOT NULL,
    direction_id INTEGER NOT NULL,
    block_id TEXT NOT NULL,
    shape_id TEXT NOT NULL,
    wheelchair_accessible INTEGER NOT NULL,
    bikes_allowed INTEGER NOT NULL
);
CREATE INDEX trips_route_id ON trips (route_id);
CREATE INDEX trips_service_id ON trips (service_id);
`},
	{"stop_times", `
CREATE TABLE stop_times (
    trip_id TEXT NOT NULL,
    stop_id TEXT NOT NULL,
    stop_sequence INTEGER NOT NULL,
    arrival_time TEXT NOT NULL,
    departure_time TEXT NOT NULL,
    headsign TEXT NOT NULL,
    pickup_type INTEGER NOT NULL,
    drop_off_type INTEGER NOT NULL,
    shape_dist_traveled REAL,
    timepoint INTEGER NOT NULL,
PRIMARY KEY (trip_id, stop_sequence)
);
CREATE INDEX stop_times_stop_id ON stop_times (stop_id);
`},
	{"calendar", `
CREATE TABLE calendar (
    service_id TEXT PRIMARY KEY,
    start_date TEXT NOT NULL,
    end_date TEXT NOT NULL,
    monday INTEGER NOT NULL,
    tuesday INTEGER NOT NULL,
    wednesday INTEGER NOT NULL,
    thursday INTEGER NOT NULL,
    friday INTEGER NOT NULL,
    saturday INTEGER NOT NULL,
    sunday INTEGER NOT NULL
);`},
	{"calendar_dates", `
CREATE TABLE calendar_dates (
    service_id TEXT NOT NULL,
    date TEXT NOT NULL,
    exception_type INTEGER NOT NULL,
PRIMARY KEY (service_id, date)
);`},
	{"transfers", `
CREATE TABLE transfers (
    from_stop_id TEXT NOT NULL,
    to_stop_id TEXT NOT NULL,
    transfer_type INTEGER NOT NULL,
    min_transfer_time INTEGER
);`},
	{"shape_points", `
CREATE TABLE shape_points (
    shape_id TEXT NOT NULL,
    lat REAL NOT NULL,
    lon REAL NOT NULL,
    sequence INTEGER NOT NULL,
    dist_traveled REAL,
PRIMARY KEY (shape_id, sequence)
);`},
}

func NewSQLiteStorage(cfg ...SQLiteConfig) (*SQLiteStorage, error) {
	onDisk := false
	directory := ""
	if len(cfg) > 0 {
		onDisk = cfg[0].OnDisk
		directory = cfg[0].Directory
	}

	sourceName := ":memory:"
	if onDisk {
		err := os.MkdirAll(directory, 0755)
		if err != nil {
			return nil, fmt.Errorf("creating directory: %w", err)
		}
		sourceName = filepath.Join(directory, "gtfs.db")
	}

	db, err := sql.Open("sqlite3", sourceName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// An in-memory database lives and dies with its connection.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
CREATE TABLE IF NOT EXISTS feed (
    hash TEXT NOT NULL,
    url TEXT NOT NULL,
    retrieved_at TIMESTAMP NOT NULL,
    calendar_start TEXT NOT NULL,
    calendar_end TEXT NOT NULL,
    timezone TEXT NOT NULL,
PRIMARY KEY (hash, url)
);`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating feed table: %w", err)
	}

	return &SQLiteStorage{
		SQLiteConfig: SQLiteConfig{
			OnDisk:    onDisk,
			Directory: directory,
		},
		feedDB: db,
		feeds:  map[string]*sql.DB{},
	}, nil
}

func (s *SQLiteStorage) ListFeeds(filter ListFeedsFilter) ([]*FeedMetadata, error) {
	query := `
SELECT
    hash,
    url,
    retrieved_at,
    calendar_start,
    calendar_end,
    timezone
FROM feed`

	conditions := []string{}
	params := []interface{}{}
	if filter.URL != "" {
		conditions = append(conditions, "url = ?")
		params = append(params, filter.URL)
	}
	if filter.Hash != "" {
		conditions = append(conditions, "hash = ?")
		params = append(params, filter.Hash)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY retrieved_at DESC"

	rows, err := s.feedDB.Query(query, params...)
	if err != nil {
		return nil, fmt.Errorf("listing feeds: %w", err)
	}
	defer rows.Close()

	feeds := []*FeedMetadata{}
	for rows.Next() {
		var feed FeedMetadata
		err := rows.Scan(
			&feed.Hash,
			&feed.URL,
			&feed.RetrievedAt,
			&feed.CalendarStartDate,
			&feed.CalendarEndDate,
			&feed.Timezone,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning feed: %w", err)
		}
		feeds = append(feeds, &feed)
	}

	return feeds, rows.Err()
}

func (s *SQLiteStorage) WriteFeedMetadata(feed *FeedMetadata) error {
	_, err := s.feedDB.Exec(`
INSERT INTO feed (
    hash,
    url,
    retrieved_at,
    calendar_start,
    calendar_end,
    timezone
)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (hash, url) DO UPDATE SET
    retrieved_at = excluded.retrieved_at,
    calendar_start = excluded.calendar_start,
    calendar_end = excluded.calendar_end,
    timezone = excluded.timezone
`,
		feed.Hash,
		feed.URL,
		feed.RetrievedAt.UTC(),
		feed.CalendarStartDate,
		feed.CalendarEndDate,
		feed.Timezone,
	)
	if err != nil {
		return fmt.Errorf("writing feed metadata: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) feedPath(hash string) string {
	return filepath.Join(s.Directory, hash+".db")
}

func (s *SQLiteStorage) GetReader(hash string) (FeedReader, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, found := s.feeds[hash]
	if found {
		return &SQLiteFeedReader{db: db}, nil
	}
	if !s.OnDisk {
		return nil, fmt.Errorf("feed %s does not exist", hash)
	}

	sourceName := s.feedPath(hash)
	if _, err := os.Stat(sourceName); os.IsNotExist(err) {
		return nil, fmt.Errorf("feed %s does not exist at %s", hash, sourceName)
	}

	db, err := sql.Open("sqlite3", sourceName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s.feeds[hash] = db

	return &SQLiteFeedReader{db: db}, nil
}

func (s *SQLiteStorage) GetWriter(hash string) (FeedWriter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, found := s.feeds[hash]; found {
		old.Close()
		delete(s.feeds, hash)
	}

	sourceName := ":memory:"
	if s.OnDisk {
		sourceName = s.feedPath(hash)
		// delete file if it exists
		if _, err := os.Stat(sourceName); err == nil {
			err := os.Remove(sourceName)
			if err != nil {
				return nil, fmt.Errorf("removing existing database: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite3", sourceName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, table := range sqliteFeedTables {
		_, err = db.Exec(table.query)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("creating %s table: %w", table.name, err)
		}
	}

	s.feeds[hash] = db

	return &SQLiteFeedWriter{db: db}, nil
}

func (f *SQLiteFeedWriter) WriteAgency(a *model.Agency) error {
	_, err := f.db.Exec(`
INSERT INTO agency (`+agencyColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID,
		a.Name,
		a.URL,
		a.Timezone,
		a.Lang,
		a.Phone,
		a.FareURL,
		a.Email,
	)
	if err != nil {
		return errors.Wrapf(err, "inserting agency '%s'", a.ID)
	}
	return nil
}

func (f *SQLiteFeedWriter) WriteStop(stop *model.Stop) error {
	_, err := f.db.Exec(`
INSERT INTO stops (`+stopColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		stop.ID,
		stop.Code,
		stop.Name,
		stop.Desc,
		stop.Lat,
		stop.Lon,
		stop.ZoneID,
		stop.URL,
		stop.LocationType,
		stop.ParentStation,
		stop.Timezone,
		stop.WheelchairBoarding,
	)
	if err != nil {
		return errors.Wrapf(err, "inserting stop '%s'", stop.ID)
	}
	return nil
}

func (f *SQLiteFeedWriter) WriteRoute(route *model.Route) error {
	_, err := f.db.Exec(`
INSERT INTO routes (`+routeColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		route.ID,
		route.AgencyID,
		route.ShortName,
		route.LongName,
		route.Desc,
		route.Type,
		route.URL,
		route.Color,
		route.TextColor,
	)
	if err != nil {
		return errors.Wrapf(err, "inserting route '%s'", route.ID)
	}
	return nil
}

func (f *SQLiteFeedWriter) BeginTrips() error {
	return nil
}

func (f *SQLiteFeedWriter) WriteTrip(trip *model.Trip) error {
	_, err := f.db.Exec(`
INSERT INTO trips (`+tripColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		trip.ID,
		trip.RouteID,
		trip.ServiceID,
		trip.Headsign,
		trip.ShortName,
		trip.DirectionID,
		trip.BlockID,
		trip.ShapeID,
		trip.WheelchairAccessible,
		trip.BikesAllowed,
	)
	if err != nil {
		return errors.Wrapf(err, "inserting trip '%s'", trip.ID)
	}
	return nil
}

func (f *SQLiteFeedWriter) EndTrips() error {
	return nil
}

func (f *SQLiteFeedWriter) BeginStopTimes() error {
	// transaction with prepared statement.
	var err error
	f.stopTimeInsertTx, err = f.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning stop_time insert transaction: %w", err)
	}

	f.stopTimeInsertQuery, err = f.stopTimeInsertTx.Prepare(`
INSERT INTO stop_times (` + stopTimeColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		f.stopTimeInsertTx.Rollback()
		f.stopTimeInsertTx = nil
		return fmt.Errorf("preparing stop_time insert: %w", err)
	}

	return nil
}

func (f *SQLiteFeedWriter) WriteStopTime(st *model.StopTime) error {
	if f.stopTimeInsertQuery == nil {
		return fmt.Errorf("stop_time written outside BeginStopTimes/EndStopTimes")
	}

	_, err := f.stopTimeInsertQuery.Exec(
		st.TripID,
		st.StopID,
		st.StopSequence,
		st.Arrival.String(),
		st.Departure.String(),
		st.Headsign,
		st.PickupType,
		st.DropOffType,
		nullFloat(st.ShapeDistTraveled),
		st.Timepoint,
	)
	if err != nil {
		f.stopTimeInsertQuery.Close()
		f.stopTimeInsertTx.Rollback()
		f.stopTimeInsertTx = nil
		f.stopTimeInsertQuery = nil
		return errors.Wrapf(err, "inserting stop_time %s/%d", st.TripID, st.StopSequence)
	}

	return nil
}

func (f *SQLiteFeedWriter) EndStopTimes() error {
	if f.stopTimeInsertTx == nil {
		return fmt.Errorf("no stop_time transaction in progress")
	}

	// commit transaction and clean up
	f.stopTimeInsertQuery.Close()
	err := f.stopTimeInsertTx.Commit()
	f.stopTimeInsertTx = nil
	f.stopTimeInsertQuery = nil
	if err != nil {
		return fmt.Errorf("committing stop_time insert transaction: %w", err)
	}

	return nil
}

func (f *SQLiteFeedWriter) WriteCalendar(cal *model.Calendar) error {
	args := append([]interface{}{cal.ServiceID, cal.StartDate, cal.EndDate}, weekdayFlags(cal)...)
	_, err := f.db.Exec(`
INSERT INTO calendar (`+calendarColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		args...,
	)
	if err != nil {
		return errors.Wrapf(err, "inserting calendar '%s'", cal.ServiceID)
	}

	return nil
}

func (f *SQLiteFeedWriter) WriteCalendarDate(cd *model.CalendarDate) error {
	_, err := f.db.Exec(`
INSERT INTO calendar_dates (`+calendarDateColumns+`)
VALUES (?, ?, ?)`,
		cd.ServiceID,
		cd.Date,
		cd.ExceptionType,
	)
	if err != nil {
		return errors.Wrapf(err, "inserting calendar date '%s' %s", cd.ServiceID, cd.Date)
	}

	return nil
}

func (f *SQLiteFeedWriter) WriteTransfer(tr *model.Transfer) error {
	_, err := f.db.Exec(`
INSERT INTO transfers (`+transferColumns+`)
VALUES (?, ?, ?, ?)`,
		tr.FromStopID,
		tr.ToStopID,
		tr.Type,
		nullUint32(tr.MinTransferTime),
	)
	if err != nil {
		return errors.Wrapf(err, "inserting transfer %s->%s", tr.FromStopID, tr.ToStopID)
	}
	return nil
}

func (f *SQLiteFeedWriter) WriteShape(shape *model.Shape) error {
	tx, err := f.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning shape insert transaction: %w", err)
	}
	defer tx.Rollback()

	for _, p := range shape.Points {
		_, err = tx.Exec(`
INSERT INTO shape_points (`+shapePointColumns+`)
VALUES (?, ?, ?, ?, ?)`,
			shape.ID,
			p.Lat,
			p.Lon,
			p.Sequence,
			nullFloat(p.DistTraveled),
		)
		if err != nil {
			return errors.Wrapf(err, "inserting shape '%s' point %d", shape.ID, p.Sequence)
		}
	}

	return tx.Commit()
}

func (f *SQLiteFeedWriter) Close() error {
	_, err := f.db.Exec(`ANALYZE;`)
	if err != nil {
		return fmt.Errorf("analyzing database: %w", err)
	}

	return nil
}

func (f *SQLiteFeedReader) Agencies() ([]*model.Agency, error) {
	rows, err := f.db.Query(`SELECT ` + agencyColumns + ` FROM agency ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying agency: %w", err)
	}
	return scanAgencies(rows)
}

func (f *SQLiteFeedReader) Stops() ([]*model.Stop, error) {
	rows, err := f.db.Query(`SELECT ` + stopColumns + ` FROM stops ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying stops: %w", err)
	}
	return scanStops(rows)
}

func (f *SQLiteFeedReader) Routes() ([]*model.Route, error) {
	rows, err := f.db.Query(`SELECT ` + routeColumns + ` FROM routes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying routes: %w", err)
	}
	return scanRoutes(rows)
}

func (f *SQLiteFeedReader) Trips() ([]*model.Trip, error) {
	rows, err := f.db.Query(`SELECT ` + tripColumns + ` FROM trips ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying trips: %w", err)
	}
	return scanTrips(rows)
}

func (f *SQLiteFeedReader) StopTimes() ([]*model.StopTime, error) {
	rows, err := f.db.Query(`SELECT ` + stopTimeColumns + ` FROM stop_times ORDER BY trip_id, stop_sequence`)
	if err != nil {
		return nil, fmt.Errorf("querying stop_times: %w", err)
	}
	return scanStopTimes(rows)
}

func (f *SQLiteFeedReader) Calendars() ([]*model.Calendar, error) {
	rows, err := f.db.Query(`SELECT ` + calendarColumns + ` FROM calendar ORDER BY service_id`)
	if err != nil {
		return nil, fmt.Errorf("querying calendar: %w", err)
	}
	return scanCalendars(rows)
}

func (f *SQLiteFeedReader) CalendarDates() ([]*model.CalendarDate, error) {
	rows, err := f.db.Query(`SELECT ` + calendarDateColumns + ` FROM calendar_dates ORDER BY service_id, date`)
	if err != nil {
		return nil, fmt.Errorf("querying calendar_dates: %w", err)
	}
	return scanCalendarDates(rows)
}

func (f *SQLiteFeedReader) Transfers() ([]*model.Transfer, error) {
	rows, err := f.db.Query(`SELECT ` + transferColumns + ` FROM transfers ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("querying transfers: %w", err)
	}
	return scanTransfers(rows)
}

func (f *SQLiteFeedReader) Shapes() ([]*model.Shape, error) {
	rows, err := f.db.Query(`SELECT ` + shapePointColumns + ` FROM shape_points ORDER BY shape_id, sequence`)
	if err != nil {
		return nil, fmt.Errorf("querying shape_points: %w", err)
	}
	return scanShapes(rows)
}
