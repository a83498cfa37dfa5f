package storage

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/transitkit/gtfs/model"
)

const (
	PSQLTripBatchSize     = 10000
	PSQLStopTimeBatchSize = 5000
)

// PSQLStorage keeps all feeds in one set of tables, told apart by a
// hash column.
type PSQLStorage struct {
	db *sql.DB
}

type PSQLFeedWriter struct {
	hash          string
	db            *sql.DB
	tripBuf       []*model.Trip
	stopTimeBuf   []*model.StopTime
	transferCount int
}

type PSQLFeedReader struct {
	hash string
	db   *sql.DB
}

var psqlFeedTables = []struct {
	name  string
	query string
}{
	{"agency", `
CREATE TABLE IF NOT EXISTS agency (
    hash TEXT NOT NULL,
    id TEXT NOT NULL,
    name TEXT NOT NULL,
    url TEXT NOT NULL,
    timezone TEXT NOT NULL,
    lang TEXT NOT NULL,
    phone TEXT NOT NULL,
    fare_url TEXT NOT NULL,
    email TEXT NOT NULL,
    PRIMARY KEY(hash, id)
);`},
	{"stops", `
CREATE TABLE IF NOT EXISTS stops (
    hash TEXT NOT NULL,
    id TEXT NOT NULL,
    code TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT NOT NULL,
    lat DOUBLE PRECISION NOT NULL,
    lon DOUBLE PRECISION NOT NULL,
    zone_id TEXT NOT NULL,
    url TEXT NOT NULL,
    location_type INTEGER NOT NULL,
    parent_station TEXT NOT NULL,
    timezone TEXT NOT NULL,
    wheelchair_boarding INTEGER NOT NULL,
    PRIMARY KEY(hash, id)
);
CREATE INDEX IF NOT EXISTS stops_parent_station ON stops (hash, parent_station);
`},
	{"routes", `
CREATE TABLE IF NOT EXISTS routes (
    hash TEXT NOT NULL,
    id TEXT NOT NULL,
    agency_id TEXT NOT NULL,
    short_name TEXT NOT NULL,
    long_name TEXT NOT NULL,
    description TEXT NOT NULL,
    type INTEGER NOT NULL,
    url TEXT NOT NULL,
    color TEXT NOT NULL,
    text_color TEXT NOT NULL,
    PRIMARY KEY(hash, id)
);`},
	{"trips", `
CREATE TABLE IF NOT EXISTS trips (
    hash TEXT NOT NULL,
    id TEXT NOT NULL,
    route_id TEXT NOT NULL,
    service_id TEXT NOT NULL,
    headsign TEXT NOT NULL,
    short_name TEXT NOT NULL,
    direction_id INTEGER NOT NULL,
    block_id TEXT NOT NULL,
    shape_id TEXT NOT NULL,
    wheelchair_accessible INTEGER NOT NULL,
    bikes_allowed INTEGER NOT NULL,
    PRIMARY KEY(hash, id)
);
CREATE INDEX IF NOT EXISTS trips_route_id ON trips (hash, route_id);
CREATE INDEX IF NOT EXISTS trips_service_id ON trips (hash, service_id);
`},
	{"stop_times", `
CREATE TABLE IF NOT EXISTS stop_times (
    hash TEXT NOT NULL,
    trip_id TEXT NOT NULL,
    stop_id TEXT NOT NULL,
    stop_sequence INTEGER NOT NULL,
    arrival_time TEXT NOT NULL,
    departure_time TEXT NOT NULL,
    headsign TEXT NOT NULL,
    pickup_type INTEGER NOT NULL,
    drop_off_type INTEGER NOT NULL,
    shape_dist_traveled DOUBLE PRECISION,
    timepoint BOOLEAN NOT NULL,
    PRIMARY KEY(hash, trip_id, stop_sequence)
);
CREATE INDEX IF NOT EXISTS stop_times_stop_id ON stop_times (hash, stop_id);
`},
	{"calendar", `
CREATE TABLE IF NOT EXISTS calendar (
    hash TEXT NOT NULL,
    service_id TEXT NOT NULL,
    start_date TEXT NOT NULL,
    end_date TEXT NOT NULL,
    monday INTEGER NOT NULL,
    tuesday INTEGER NOT NULL,
    wednesday INTEGER NOT NULL,
    thursday INTEGER NOT NULL,
    friday INTEGER NOT NULL,
    saturday INTEGER NOT NULL,
    sunday INTEGER NOT NULL,
    PRIMARY KEY(hash, service_id)
);`},
	{"calendar_dates", `
CREATE TABLE IF NOT EXISTS calendar_dates (
    hash TEXT NOT NULL,
    service_id TEXT NOT NULL,
    date TEXT NOT NULL,
    exception_type INTEGER NOT NULL,
    PRIMARY KEY(hash, service_id, date)
);`},
	{"transfers", `
CREATE TABLE IF NOT EXISTS transfers (
    hash TEXT NOT NULL,
    position INTEGER NOT NULL,
    from_stop_id TEXT NOT NULL,
    to_stop_id TEXT NOT NULL,
    transfer_type INTEGER NOT NULL,
    min_transfer_time INTEGER,
    PRIMARY KEY(hash, position)
);`},
	{"shape_points", `
CREATE TABLE IF NOT EXISTS shape_points (
    hash TEXT NOT NULL,
    shape_id TEXT NOT NULL,
    lat DOUBLE PRECISION NOT NULL,
    lon DOUBLE PRECISION NOT NULL,
    sequence INTEGER NOT NULL,
    dist_traveled DOUBLE PRECISION,
    PRIMARY KEY(hash, shape_id, sequence)
);`},
}

// Creates a new Postgres Storage using the provided connection string.
//
// If clearDB is true, the database will be cleared on startup. You
// probably only want this for testing.
func NewPSQLStorage(connStr string, clearDB bool) (*PSQLStorage, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	err = db.Ping()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	if clearDB {
		drops := []string{"DROP TABLE IF EXISTS feed;"}
		for _, table := range psqlFeedTables {
			drops = append(drops, "DROP TABLE IF EXISTS "+table.name+";")
		}
		_, err = db.Exec(strings.Join(drops, "\n"))
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("clearing db: %w", err)
		}
	}

	_, err = db.Exec(`
CREATE TABLE IF NOT EXISTS feed (
    hash TEXT NOT NULL,
    url TEXT NOT NULL,
    retrieved_at TIMESTAMPTZ NOT NULL,
    calendar_start TEXT NOT NULL,
    calendar_end TEXT NOT NULL,
    timezone TEXT NOT NULL,
    PRIMARY KEY (hash, url)
);`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating feed table: %w", err)
	}

	for _, table := range psqlFeedTables {
		_, err := db.Exec(table.query)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("creating %s table: %w", table.name, err)
		}
	}

	return &PSQLStorage{
		db: db,
	}, nil
}

func (s *PSQLStorage) Close() error {
	err := s.db.Close()
	if err != nil {
		return fmt.Errorf("failed to close db: %w", err)
	}
	return nil
}

func (s *PSQLStorage) ListFeeds(filter ListFeedsFilter) ([]*FeedMetadata, error) {
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
		params = append(params, filter.URL)
		conditions = append(conditions, fmt.Sprintf("url = $%d", len(params)))
	}
	if filter.Hash != "" {
		params = append(params, filter.Hash)
		conditions = append(conditions, fmt.Sprintf("hash = $%d", len(params)))
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY retrieved_at DESC"

	rows, err := s.db.Query(query, params...)
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

func (s *PSQLStorage) WriteFeedMetadata(feed *FeedMetadata) error {
	_, err := s.db.Exec(`
INSERT INTO feed (
    hash,
    url,
    retrieved_at,
    calendar_start,
    calendar_end,
    timezone
)
VALUES ($1, $2, $3, $4, $5, $6)
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

func (s *PSQLStorage) GetReader(hash string) (FeedReader, error) {
	return &PSQLFeedReader{
		hash: hash,
		db:   s.db,
	}, nil
}

func (s *PSQLStorage) GetWriter(hash string) (FeedWriter, error) {
	// In case feed already exists, delete all records
	for _, table := range psqlFeedTables {
		_, err := s.db.Exec(`DELETE FROM `+table.name+` WHERE hash = $1`, hash)
		if err != nil {
			return nil, fmt.Errorf("deleting %s records: %w", table.name, err)
		}
	}

	return &PSQLFeedWriter{
		hash: hash,
		db:   s.db,
	}, nil
}

// placeholders returns "$1, $2, ..., $n".
func placeholders(n int) string {
	ps := make([]string, n)
	for i := range ps {
		ps[i] = fmt.Sprintf("$%d", i+1)
	}
	return strings.Join(ps, ", ")
}

func (w *PSQLFeedWriter) WriteAgency(a *model.Agency) error {
	_, err := w.db.Exec(`
INSERT INTO agency (hash, `+agencyColumns+`)
VALUES (`+placeholders(9)+`)`,
		w.hash,
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

func (w *PSQLFeedWriter) WriteStop(stop *model.Stop) error {
	_, err := w.db.Exec(`
INSERT INTO stops (hash, `+stopColumns+`)
VALUES (`+placeholders(13)+`)`,
		w.hash,
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

func (w *PSQLFeedWriter) WriteRoute(route *model.Route) error {
	_, err := w.db.Exec(`
INSERT INTO routes (hash, `+routeColumns+`)
VALUES (`+placeholders(10)+`)`,
		w.hash,
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

func (w *PSQLFeedWriter) BeginTrips() error {
	return nil
}

func (w *PSQLFeedWriter) WriteTrip(trip *model.Trip) error {
	w.tripBuf = append(w.tripBuf, trip)

	if len(w.tripBuf) >= PSQLTripBatchSize {
		err := w.flushTrips()
		if err != nil {
			return fmt.Errorf("flushing trips: %w", err)
		}
	}

	return nil
}

func (w *PSQLFeedWriter) EndTrips() error {
	if len(w.tripBuf) > 0 {
		err := w.flushTrips()
		if err != nil {
			return fmt.Errorf("flushing trips: %w", err)
		}
	}
	return nil
}

// copyIn runs one COPY for the given rows in a transaction of its
// own.
func (w *PSQLFeedWriter) copyIn(table string, columns []string, rows [][]interface{}) error {
	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(pq.CopyIn(table, columns...))
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		_, err = stmt.Exec(row...)
		if err != nil {
			return errors.Wrapf(err, "COPY %s", table)
		}
	}

	_, err = stmt.Exec()
	if err != nil {
		return fmt.Errorf("executing statement: %w", err)
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("committing: %w", err)
	}

	return nil
}

func columnList(columns string) []string {
	list := []string{"hash"}
	for _, c := range strings.Split(columns, ",") {
		list = append(list, strings.TrimSpace(c))
	}
	return list
}

func (w *PSQLFeedWriter) flushTrips() error {
	rows := make([][]interface{}, 0, len(w.tripBuf))
	for _, trip := range w.tripBuf {
		rows = append(rows, []interface{}{
			w.hash,
			trip.ID,
			trip.RouteID,
			trip.ServiceID,
			trip.Headsign,
			trip.ShortName,
			int(trip.DirectionID),
			trip.BlockID,
			trip.ShapeID,
			int(trip.WheelchairAccessible),
			int(trip.BikesAllowed),
		})
	}

	err := w.copyIn("trips", columnList(tripColumns), rows)
	if err != nil {
		return err
	}

	w.tripBuf = nil
	return nil
}

func (w *PSQLFeedWriter) WriteCalendar(cal *model.Calendar) error {
	args := append([]interface{}{w.hash, cal.ServiceID, cal.StartDate, cal.EndDate}, weekdayFlags(cal)...)
	_, err := w.db.Exec(`
INSERT INTO calendar (hash, `+calendarColumns+`)
VALUES (`+placeholders(11)+`)`,
		args...,
	)
	if err != nil {
		return errors.Wrapf(err, "inserting calendar '%s'", cal.ServiceID)
	}

	return nil
}

func (w *PSQLFeedWriter) WriteCalendarDate(cd *model.CalendarDate) error {
	_, err := w.db.Exec(`
INSERT INTO calendar_dates (hash, `+calendarDateColumns+`)
VALUES ($1, $2, $3, $4)`,
		w.hash,
		cd.ServiceID,
		cd.Date,
		cd.ExceptionType,
	)
	if err != nil {
		return errors.Wrapf(err, "inserting calendar date '%s' %s", cd.ServiceID, cd.Date)
	}

	return nil
}

func (w *PSQLFeedWriter) BeginStopTimes() error {
	return nil
}

func (w *PSQLFeedWriter) WriteStopTime(stopTime *model.StopTime) error {
	w.stopTimeBuf = append(w.stopTimeBuf, stopTime)

	if len(w.stopTimeBuf) >= PSQLStopTimeBatchSize {
		err := w.flushStopTimes()
		if err != nil {
			return fmt.Errorf("flushing stop_times: %w", err)
		}
	}

	return nil
}

func (w *PSQLFeedWriter) EndStopTimes() error {
	if len(w.stopTimeBuf) > 0 {
		err := w.flushStopTimes()
		if err != nil {
			return fmt.Errorf("flushing stop_times: %w", err)
		}
	}
	return nil
}

func (w *PSQLFeedWriter) flushStopTimes() error {
	rows := make([][]interface{}, 0, len(w.stopTimeBuf))
	for _, st := range w.stopTimeBuf {
		rows = append(rows, []interface{}{
			w.hash,
			st.TripID,
			st.StopID,
			int64(st.StopSequence),
			st.Arrival.String(),
			st.Departure.String(),
			st.Headsign,
			int(st.PickupType),
			int(st.DropOffType),
			nullFloat(st.ShapeDistTraveled),
			st.Timepoint,
		})
	}

	err := w.copyIn("stop_times", columnList(stopTimeColumns), rows)
	if err != nil {
		return err
	}

	w.stopTimeBuf = nil
	return nil
}

func (w *PSQLFeedWriter) WriteTransfer(tr *model.Transfer) error {
	_, err := w.db.Exec(`
INSERT INTO transfers (hash, position, `+transferColumns+`)
VALUES ($1, $2, $3, $4, $5, $6)`,
		w.hash,
		w.transferCount,
		tr.FromStopID,
		tr.ToStopID,
		tr.Type,
		nullUint32(tr.MinTransferTime),
	)
	if err != nil {
		return errors.Wrapf(err, "inserting transfer %s->%s", tr.FromStopID, tr.ToStopID)
	}
	w.transferCount++
	return nil
}

func (w *PSQLFeedWriter) WriteShape(shape *model.Shape) error {
	rows := make([][]interface{}, 0, len(shape.Points))
	for _, p := range shape.Points {
		rows = append(rows, []interface{}{
			w.hash,
			shape.ID,
			p.Lat,
			p.Lon,
			int64(p.Sequence),
			nullFloat(p.DistTraveled),
		})
	}
	return w.copyIn("shape_points", columnList(shapePointColumns), rows)
}

func (w *PSQLFeedWriter) Close() error {
	_, err := w.db.Exec(`ANALYZE`)
	if err != nil {
		return fmt.Errorf("analyzing: %w", err)
	}
	return nil
}

func (r *PSQLFeedReader) query(columns, table, order string) (*sql.Rows, error) {
	rows, err := r.db.Query(
		`SELECT `+columns+` FROM `+table+` WHERE hash = $1 ORDER BY `+order,
		r.hash,
	)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", table, err)
	}
	return rows, nil
}

func (r *PSQLFeedReader) Agencies() ([]*model.Agency, error) {
	rows, err := r.query(agencyColumns, "agency", "id")
	if err != nil {
		return nil, err
	}
	return scanAgencies(rows)
}

func (r *PSQLFeedReader) Stops() ([]*model.Stop, error) {
	rows, err := r.query(stopColumns, "stops", "id")
	if err != nil {
		return nil, err
	}
	return scanStops(rows)
}

func (r *PSQLFeedReader) Routes() ([]*model.Route, error) {
	rows, err := r.query(routeColumns, "routes", "id")
	if err != nil {
		return nil, err
	}
	return scanRoutes(rows)
}

func (r *PSQLFeedReader) Trips() ([]*model.Trip, error) {
	rows, err := r.query(tripColumns, "trips", "id")
	if err != nil {
		return nil, err
	}
	return scanTrips(rows)
}

func (r *PSQLFeedReader) StopTimes() ([]*model.StopTime, error) {
	rows, err := r.query(stopTimeColumns, "stop_times", "trip_id, stop_sequence")
	if err != nil {
		return nil, err
	}
	return scanStopTimes(rows)
}

func (r *PSQLFeedReader) Calendars() ([]*model.Calendar, error) {
	rows, err := r.query(calendarColumns, "calendar", "service_id")
	if err != nil {
		return nil, err
	}
	return scanCalendars(rows)
}

func (r *PSQLFeedReader) CalendarDates() ([]*model.CalendarDate, error) {
	rows, err := r.query(calendarDateColumns, "calendar_dates", "service_id, date")
	if err != nil {
		return nil, err
	}
	return scanCalendarDates(rows)
}

func (r *PSQLFeedReader) Transfers() ([]*model.Transfer, error) {
	rows, err := r.query(transferColumns, "transfers", "position")
	if err != nil {
		return nil, err
	}
	return scanTransfers(rows)
}

func (r *PSQLFeedReader) Shapes() ([]*model.Shape, error) {
	rows, err := r.query(shapePointColumns, "shape_points", "shape_id, sequence")
	if err != nil {
		return nil, err
	}
	return scanShapes(rows)
}
