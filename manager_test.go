package gtfs_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transitkit/gtfs"
	"github.com/transitkit/gtfs/storage"
	"github.com/transitkit/gtfs/testutil"
)

type MockGTFSServer struct {
	mu       sync.Mutex
	feeds    map[string][]byte
	requests []string
	Server   *httptest.Server
}

func (m *MockGTFSServer) handler(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, r.URL.Path)
	if feed, found := m.feeds[r.URL.Path]; found {
		w.Write(feed)
	} else {
		w.WriteHeader(http.StatusNotFound)
	}
}

func (m *MockGTFSServer) Serve(path string, feed []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.feeds[path] = feed
}

func (m *MockGTFSServer) Requests() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.requests...)
}

func managerFixture(t *testing.T) *MockGTFSServer {
	m := &MockGTFSServer{
		feeds:    map[string][]byte{},
		requests: []string{},
	}
	m.Server = httptest.NewServer(http.HandlerFunc(m.handler))
	t.Cleanup(m.Server.Close)

	return m
}

func validFeed() map[string][]string {
	return map[string][]string{
		"agency.txt": {
			"agency_timezone,agency_name,agency_url",
			"America/Los_Angeles,Fake Agency,http://agency/index.html",
		},
		"routes.txt": {
			"route_id,route_short_name,route_long_name,route_type",
			"r,R,,3",
		},
		"calendar.txt": {
			"service_id,monday,tuesday,wednesday,thursday,friday,saturday,sunday,start_date,end_date",
			"mondays,1,0,0,0,0,0,0,20190101,20190301",
		},
		"calendar_dates.txt": {
			"service_id,date,exception_type",
			"mondays,20190302,1",
		},
		"trips.txt": {
			"route_id,service_id,trip_id",
			"r,mondays,t",
		},
		"stops.txt": {
			"stop_id,stop_name,stop_lat,stop_lon",
			"s,S,12,34",
		},
		"stop_times.txt": {
			"trip_id,arrival_time,departure_time,stop_id,stop_sequence",
			"t,12:00:00,12:00:00,s,1",
		},
	}
}

// validFeed with its single stop renamed.
func validFeedWithStop(stopID string) map[string][]string {
	files := validFeed()
	files["stops.txt"] = []string{
		"stop_id,stop_name,stop_lat,stop_lon",
		stopID + ",S,12,34",
	}
	files["stop_times.txt"] = []string{
		"trip_id,arrival_time,departure_time,stop_id,stop_sequence",
		"t,12:00:00,12:00:00," + stopID + ",1",
	}
	return files
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newManager(s storage.Storage) (*gtfs.Manager, *fakeClock) {
	clock := &fakeClock{now: time.Date(2019, 2, 1, 12, 0, 0, 0, time.UTC)}
	m := gtfs.NewManager(s)
	m.TimeNow = clock.Now
	return m, clock
}

func stopIDs(feed *gtfs.Feed) []string {
	ids := []string{}
	for _, stop := range feed.Stops() {
		ids = append(ids, stop.ID)
	}
	return ids
}

func TestManagerLoadSingleFeed(t *testing.T) {
	server := managerFixture(t)
	server.Serve("/static.zip", testutil.BuildZip(t, validFeed()))

	s := storage.NewMemoryStorage()
	m, _ := newManager(s)

	when := time.Date(2019, 2, 1, 0, 0, 0, 0, time.UTC)

	feed, err := m.Load(context.Background(), server.Server.URL+"/static.zip", nil, when)
	require.NoError(t, err)

	// feed loaded and serves data
	stops := feed.NearbyStops(1.0, -2.0, 0)
	require.Len(t, stops, 1)
	assert.Equal(t, "S", stops[0].Name)

	// and metadata was recorded
	feeds, err := s.ListFeeds(storage.ListFeedsFilter{})
	require.NoError(t, err)
	require.Equal(t, 1, len(feeds))
	assert.Equal(t, server.Server.URL+"/static.zip", feeds[0].URL)
	assert.Equal(t, "America/Los_Angeles", feeds[0].Timezone)
	assert.Equal(t, "20190101", feeds[0].CalendarStartDate)
	assert.Equal(t, "20190302", feeds[0].CalendarEndDate)
	assert.Equal(t, 64, len(feeds[0].Hash))
}

func TestManagerLoadMultipleURLs(t *testing.T) {
	server := managerFixture(t)

	// Two different feeds, served on different URLs.
	server.Serve("/static1.zip", testutil.BuildZip(t, validFeedWithStop("s1")))
	server.Serve("/static2.zip", testutil.BuildZip(t, validFeedWithStop("s2")))

	when := time.Date(2019, 2, 1, 0, 0, 0, 0, time.UTC)
	m, _ := newManager(storage.NewMemoryStorage())

	s1, err := m.Load(context.Background(), server.Server.URL+"/static1.zip", nil, when)
	require.NoError(t, err)
	s2, err := m.Load(context.Background(), server.Server.URL+"/static2.zip", nil, when)
	require.NoError(t, err)

	// And can be read simultaneously
	assert.Equal(t, []string{"s1"}, stopIDs(s1))
	assert.Equal(t, []string{"s2"}, stopIDs(s2))
}

func TestManagerSameContentOnMultipleURLs(t *testing.T) {
	server := managerFixture(t)

	buf := testutil.BuildZip(t, validFeed())
	server.Serve("/a.zip", buf)
	server.Serve("/b.zip", buf)

	when := time.Date(2019, 2, 1, 0, 0, 0, 0, time.UTC)
	st, err := storage.NewSQLiteStorage()
	require.NoError(t, err)
	m, _ := newManager(st)

	a, err := m.Load(context.Background(), server.Server.URL+"/a.zip", nil, when)
	require.NoError(t, err)
	b, err := m.Load(context.Background(), server.Server.URL+"/b.zip", nil, when)
	require.NoError(t, err)

	// The archive is only built once
	assert.Same(t, a, b)

	feeds, err := st.ListFeeds(storage.ListFeedsFilter{})
	require.NoError(t, err)
	require.Equal(t, 2, len(feeds))
	assert.Equal(t, feeds[0].Hash, feeds[1].Hash)
}

func TestManagerLoadWithRefresh(t *testing.T) {
	server := managerFixture(t)

	// Three versions of a feed, each with a different stop.
	feed1Zip := testutil.BuildZip(t, validFeedWithStop("s"))
	feed2Zip := testutil.BuildZip(t, validFeedWithStop("s2"))
	feed3Zip := testutil.BuildZip(t, validFeedWithStop("s3"))

	url := server.Server.URL + "/static.zip"
	when := time.Date(2019, 2, 1, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	// Load the first version of the feed
	s := storage.NewMemoryStorage()
	m, clock := newManager(s)
	server.Serve("/static.zip", feed1Zip)
	f1, err := m.Load(ctx, url, nil, when)
	require.NoError(t, err)
	assert.Equal(t, []string{"s"}, stopIDs(f1))

	// It got added to storage
	feeds, err := s.ListFeeds(storage.ListFeedsFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, len(feeds))

	// Replace the feed data served. We'll still see the first
	// feed's data, as too little time has passed for a refresh.
	server.Serve("/static.zip", feed2Zip)
	clock.Advance(time.Hour)
	f2, err := m.Load(ctx, url, nil, when)
	require.NoError(t, err)
	assert.Equal(t, []string{"s"}, stopIDs(f2))
	assert.Equal(t, []string{"/static.zip"}, server.Requests())

	// Once the refresh interval has passed, the new data is
	// retrieved.
	clock.Advance(gtfs.DefaultRefreshInterval)
	f2, err = m.Load(ctx, url, nil, when)
	require.NoError(t, err)
	assert.Equal(t, []string{"s2"}, stopIDs(f2))
	assert.Equal(t, []string{"/static.zip", "/static.zip"}, server.Requests())

	feeds, err = s.ListFeeds(storage.ListFeedsFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, len(feeds))

	// Serve a third feed, but load with time for which no
	// active feed exists.
	server.Serve("/static.zip", feed3Zip)
	clock.Advance(gtfs.DefaultRefreshInterval + time.Minute)
	f3, err := m.Load(ctx, url, nil, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, gtfs.ErrNoActiveFeed)
	assert.Nil(t, f3)

	// The latest feed was still retrieved and stored
	assert.Equal(t, []string{"/static.zip", "/static.zip", "/static.zip"}, server.Requests())
	feeds, err = s.ListFeeds(storage.ListFeedsFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, len(feeds))

	// Loading with a time where the feeds are active serves feed
	// 3, without hitting the server
	f3, err = m.Load(ctx, url, nil, when)
	require.NoError(t, err)
	assert.Equal(t, []string{"s3"}, stopIDs(f3))
	assert.Equal(t, []string{"/static.zip", "/static.zip", "/static.zip"}, server.Requests())
}

func TestManagerRefreshUnchanged(t *testing.T) {
	server := managerFixture(t)
	server.Serve("/static.zip", testutil.BuildZip(t, validFeed()))

	s := storage.NewMemoryStorage()
	m, clock := newManager(s)
	url := server.Server.URL + "/static.zip"

	first, err := m.Refresh(context.Background(), url, nil)
	require.NoError(t, err)

	clock.Advance(time.Hour)
	second, err := m.Refresh(context.Background(), url, nil)
	require.NoError(t, err)

	// Same content, so the same record with a later retrieval time
	assert.Equal(t, first.Hash, second.Hash)
	assert.True(t, second.RetrievedAt.After(first.RetrievedAt))

	feeds, err := s.ListFeeds(storage.ListFeedsFilter{})
	require.NoError(t, err)
	require.Equal(t, 1, len(feeds))
	assert.Equal(t, second.RetrievedAt, feeds[0].RetrievedAt)
}

// A broken feed is never stored, and a previously stored feed keeps
// being served.
func TestManagerBrokenData(t *testing.T) {
	server := managerFixture(t)

	goodZip := testutil.BuildZip(t, validFeed())
	badZip := testutil.BuildZip(t, map[string][]string{"parse": {"fail"}})

	server.Serve("/static.zip", badZip)

	s, err := storage.NewSQLiteStorage()
	require.NoError(t, err)
	m, clock := newManager(s)

	url := server.Server.URL + "/static.zip"
	when := time.Date(2019, 2, 1, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	// With a malformed feed, manager returns error
	_, err = m.Load(ctx, url, nil, when)
	assert.ErrorIs(t, err, gtfs.ErrMissingFile)
	_, err = m.Load(ctx, url, nil, when)
	require.Error(t, err)

	// Each attempt results in a request
	assert.Equal(t, []string{"/static.zip", "/static.zip"}, server.Requests())

	// But no feed is added to storage
	feeds, err := s.ListFeeds(storage.ListFeedsFilter{})
	require.NoError(t, err)
	assert.Equal(t, 0, len(feeds))

	// Serve valid data and it gets loaded
	server.Serve("/static.zip", goodZip)
	feed, err := m.Load(ctx, url, nil, when)
	require.NoError(t, err)
	assert.Equal(t, []string{"s"}, stopIDs(feed))

	feeds, err = s.ListFeeds(storage.ListFeedsFilter{})
	require.NoError(t, err)
	require.Equal(t, 1, len(feeds))
	goodRetrievedAt := feeds[0].RetrievedAt

	// Serve bad data again. Refresh will fail.
	clock.Advance(gtfs.DefaultRefreshInterval + time.Minute)
	server.Serve("/static.zip", badZip)
	_, err = m.Refresh(ctx, url, nil)
	require.Error(t, err)

	// But we can still load, as the old feed is still good.
	feed, err = m.Load(ctx, url, nil, when)
	require.NoError(t, err)
	assert.Equal(t, []string{"s"}, stopIDs(feed))

	feeds, err = s.ListFeeds(storage.ListFeedsFilter{})
	require.NoError(t, err)
	require.Equal(t, 1, len(feeds))
	assert.Equal(t, goodRetrievedAt, feeds[0].RetrievedAt)
}

func TestManagerUnreachable(t *testing.T) {
	server := managerFixture(t)

	m, _ := newManager(storage.NewMemoryStorage())
	_, err := m.Load(context.Background(), server.Server.URL+"/missing.zip", nil, time.Now())
	require.Error(t, err)
	assert.Equal(t, []string{"/missing.zip"}, server.Requests())
}

// A new manager on top of existing storage serves stored feeds
// without downloading them again.
func TestManagerRebuildFromStorage(t *testing.T) {
	server := managerFixture(t)
	server.Serve("/static.zip", testutil.BuildZip(t, validFeed()))

	url := server.Server.URL + "/static.zip"
	when := time.Date(2019, 2, 1, 0, 0, 0, 0, time.UTC)

	s, err := storage.NewSQLiteStorage()
	require.NoError(t, err)

	m1, _ := newManager(s)
	f1, err := m1.Load(context.Background(), url, nil, when)
	require.NoError(t, err)

	m2, _ := newManager(s)
	f2, err := m2.Load(context.Background(), url, nil, when)
	require.NoError(t, err)

	assert.NotSame(t, f1, f2)
	assert.Equal(t, stopIDs(f1), stopIDs(f2))
	assert.Equal(t, f1.Timezone(), f2.Timezone())
	assert.Equal(t, len(f1.TripSchedule("t")), len(f2.TripSchedule("t")))
	assert.Equal(t, []string{"/static.zip"}, server.Requests())
}

// The feed's timezone decides whether it's active. The calendar
// ends on 20190302 in Los Angeles.
func TestManagerRespectTimezones(t *testing.T) {
	server := managerFixture(t)
	server.Serve("/static.zip", testutil.BuildZip(t, validFeed()))

	url := server.Server.URL + "/static.zip"
	m, _ := newManager(storage.NewMemoryStorage())

	// 21:00 on March 2nd in Los Angeles
	feed, err := m.Load(context.Background(), url, nil, time.Date(2019, 3, 3, 5, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.NotNil(t, feed)

	// 01:00 on March 3rd in Los Angeles
	_, err = m.Load(context.Background(), url, nil, time.Date(2019, 3, 3, 9, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, gtfs.ErrNoActiveFeed)
}
