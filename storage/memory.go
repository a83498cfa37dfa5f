package storage

import (
	"fmt"
	"sort"
	"sync"

	"github.com/transitkit/gtfs/model"
)

// In memory implementation of Storage below

type memoryMetadataKey struct {
	URL  string
	Hash string
}

type MemoryStorage struct {
	mu       sync.Mutex
	feeds    map[string]*MemoryStorageFeed
	metadata map[memoryMetadataKey]*FeedMetadata
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		feeds:    map[string]*MemoryStorageFeed{},
		metadata: map[memoryMetadataKey]*FeedMetadata{},
	}
}

func (s *MemoryStorage) ListFeeds(filter ListFeedsFilter) ([]*FeedMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	feeds := []*FeedMetadata{}
	for _, metadata := range s.metadata {
		if filter.URL != "" && metadata.URL != filter.URL {
			continue
		}
		if filter.Hash != "" && metadata.Hash != filter.Hash {
			continue
		}
		m := *metadata
		feeds = append(feeds, &m)
	}
	sort.Slice(feeds, func(i, j int) bool {
		return feeds[i].RetrievedAt.After(feeds[j].RetrievedAt)
	})
	return feeds, nil
}

func (s *MemoryStorage) WriteFeedMetadata(feed *FeedMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := *feed
	s.metadata[memoryMetadataKey{feed.URL, feed.Hash}] = &m
	return nil
}

func (s *MemoryStorage) GetReader(hash string) (FeedReader, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.feeds[hash]
	if !ok {
		return nil, fmt.Errorf("feed %s does not exist", hash)
	}
	return f, nil
}

func (s *MemoryStorage) GetWriter(hash string) (FeedWriter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f := &MemoryStorageFeed{}
	s.feeds[hash] = f
	return f, nil
}

// MemoryStorageFeed holds a feed's records as written, and sorts
// them on read.
type MemoryStorageFeed struct {
	agencies      []*model.Agency
	stops         []*model.Stop
	routes        []*model.Route
	trips         []*model.Trip
	stopTimes     []*model.StopTime
	calendars     []*model.Calendar
	calendarDates []*model.CalendarDate
	transfers     []*model.Transfer
	shapes        []*model.Shape
}

func (f *MemoryStorageFeed) WriteAgency(agency *model.Agency) error {
	f.agencies = append(f.agencies, agency)
	return nil
}

func (f *MemoryStorageFeed) WriteStop(stop *model.Stop) error {
	f.stops = append(f.stops, stop)
	return nil
}

func (f *MemoryStorageFeed) WriteRoute(route *model.Route) error {
	f.routes = append(f.routes, route)
	return nil
}

func (f *MemoryStorageFeed) BeginTrips() error {
	return nil
}

func (f *MemoryStorageFeed) WriteTrip(trip *model.Trip) error {
	f.trips = append(f.trips, trip)
	return nil
}

func (f *MemoryStorageFeed) EndTrips() error {
	return nil
}

func (f *MemoryStorageFeed) WriteCalendar(cal *model.Calendar) error {
	f.calendars = append(f.calendars, cal)
	return nil
}

func (f *MemoryStorageFeed) WriteCalendarDate(cd *model.CalendarDate) error {
	f.calendarDates = append(f.calendarDates, cd)
	return nil
}

func (f *MemoryStorageFeed) BeginStopTimes() error {
	return nil
}

func (f *MemoryStorageFeed) WriteStopTime(stopTime *model.StopTime) error {
	f.stopTimes = append(f.stopTimes, stopTime)
	return nil
}

func (f *MemoryStorageFeed) EndStopTimes() error {
	return nil
}

func (f *MemoryStorageFeed) WriteTransfer(transfer *model.Transfer) error {
	f.transfers = append(f.transfers, transfer)
	return nil
}

func (f *MemoryStorageFeed) WriteShape(shape *model.Shape) error {
	points := append([]model.ShapePoint{}, shape.Points...)
	sort.SliceStable(points, func(i, j int) bool { return points[i].Sequence < points[j].Sequence })
	f.shapes = append(f.shapes, &model.Shape{ID: shape.ID, Points: points})
	return nil
}

func (f *MemoryStorageFeed) Close() error {
	return nil
}

func (f *MemoryStorageFeed) Agencies() ([]*model.Agency, error) {
	agencies := append([]*model.Agency{}, f.agencies...)
	sort.SliceStable(agencies, func(i, j int) bool { return agencies[i].ID < agencies[j].ID })
	return agencies, nil
}

func (f *MemoryStorageFeed) Stops() ([]*model.Stop, error) {
	stops := append([]*model.Stop{}, f.stops...)
	sort.SliceStable(stops, func(i, j int) bool { return stops[i].ID < stops[j].ID })
	return stops, nil
}

func (f *MemoryStorageFeed) Routes() ([]*model.Route, error) {
	routes := append([]*model.Route{}, f.routes...)
	sort.SliceStable(routes, func(i, j int) bool { return routes[i].ID < routes[j].ID })
	return routes, nil
}

func (f *MemoryStorageFeed) Trips() ([]*model.Trip, error) {
	trips := append([]*model.Trip{}, f.trips...)
	sort.SliceStable(trips, func(i, j int) bool { return trips[i].ID < trips[j].ID })
	return trips, nil
}

func (f *MemoryStorageFeed) StopTimes() ([]*model.StopTime, error) {
	stopTimes := append([]*model.StopTime{}, f.stopTimes...)
	sort.SliceStable(stopTimes, func(i, j int) bool {
		if stopTimes[i].TripID != stopTimes[j].TripID {
			return stopTimes[i].TripID < stopTimes[j].TripID
		}
		return stopTimes[i].StopSequence < stopTimes[j].StopSequence
	})
	return stopTimes, nil
}

func (f *MemoryStorageFeed) Calendars() ([]*model.Calendar, error) {
	calendars := append([]*model.Calendar{}, f.calendars...)
	sort.SliceStable(calendars, func(i, j int) bool { return calendars[i].ServiceID < calendars[j].ServiceID })
	return calendars, nil
}

func (f *MemoryStorageFeed) CalendarDates() ([]*model.CalendarDate, error) {
	cds := append([]*model.CalendarDate{}, f.calendarDates...)
	sort.SliceStable(cds, func(i, j int) bool {
		if cds[i].ServiceID != cds[j].ServiceID {
			return cds[i].ServiceID < cds[j].ServiceID
		}
		return cds[i].Date < cds[j].Date
	})
	return cds, nil
}

func (f *MemoryStorageFeed) Transfers() ([]*model.Transfer, error) {
	return append([]*model.Transfer{}, f.transfers...), nil
}

func (f *MemoryStorageFeed) Shapes() ([]*model.Shape, error) {
	shapes := append([]*model.Shape{}, f.shapes...)
	sort.SliceStable(shapes, func(i, j int) bool { return shapes[i].ID < shapes[j].ID })
	return shapes, nil
}
