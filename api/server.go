// Package api serves read-only queries over a GTFS feed as JSON.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/transitkit/gtfs"
)

// FeedFunc returns the feed to answer a request with.
type FeedFunc func(ctx context.Context) (*gtfs.Feed, error)

type Options struct {
	AllowedOrigins []string
	Logger         *zap.Logger

	// TimeNow picks the date when a request doesn't name one.
	TimeNow func() time.Time
}

type server struct {
	feed    FeedFunc
	log     *zap.Logger
	timeNow func() time.Time
}

// NewRouter routes:
//
//	GET /healthz
//	GET /stops/{stopID}
//	GET /stops/{stopID}/timetable?date=YYYYMMDD
//	GET /trips/{tripID}?date=YYYYMMDD
//	GET /services/{serviceID}?date=YYYYMMDD
func NewRouter(feed FeedFunc, opts Options) http.Handler {
	s := &server{
		feed:    feed,
		log:     opts.Logger,
		timeNow: opts.TimeNow,
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.timeNow == nil {
		s.timeNow = time.Now
	}

	r := chi.NewRouter()
	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.AllowedOrigins,
			AllowedMethods: []string{"GET", "OPTIONS"},
			AllowedHeaders: []string{"*"},
		}))
	}

	r.Get("/healthz", s.health)
	r.Get("/stops/{stopID}", s.withFeed(s.stop))
	r.Get("/stops/{stopID}/timetable", s.withFeed(s.timetable))
	r.Get("/trips/{tripID}", s.withFeed(s.trip))
	r.Get("/services/{serviceID}", s.withFeed(s.service))

	return r
}

type feedHandler func(w http.ResponseWriter, r *http.Request, feed *gtfs.Feed)

func (s *server) withFeed(h feedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		feed, err := s.feed(r.Context())
		if err != nil {
			s.log.Warn("no feed available", zap.String("path", r.URL.Path), zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "feed unavailable")
			return
		}
		h(w, r, feed)
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// date reads the date query parameter in the feed's timezone. The
// second return value is false if no date was given.
func (s *server) date(r *http.Request, feed *gtfs.Feed, fallbackToToday bool) (time.Time, bool, error) {
	q := r.URL.Query().Get("date")
	if q == "" {
		if !fallbackToToday {
			return time.Time{}, false, nil
		}
		now := s.timeNow().In(feed.Location())
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, feed.Location()), true, nil
	}

	date, err := time.ParseInLocation("20060102", q, feed.Location())
	if err != nil {
		return time.Time{}, false, fmt.Errorf("date must be YYYYMMDD")
	}
	return date, true, nil
}

func (s *server) health(w http.ResponseWriter, r *http.Request) {
	feed, err := s.feed(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{
			Status: "error",
			Error:  err.Error(),
		})
		return
	}

	start, end := feed.Calendar().DateRange()
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:            "ok",
		Timezone:          feed.Timezone(),
		CalendarStartDate: start,
		CalendarEndDate:   end,
	})
}

func (s *server) stop(w http.ResponseWriter, r *http.Request, feed *gtfs.Feed) {
	stop := feed.Stop(chi.URLParam(r, "stopID"))
	if stop == nil {
		writeError(w, http.StatusNotFound, "stop not found")
		return
	}
	writeJSON(w, http.StatusOK, stopResponse(feed, stop))
}

func (s *server) timetable(w http.ResponseWriter, r *http.Request, feed *gtfs.Feed) {
	stopID := chi.URLParam(r, "stopID")
	if feed.Stop(stopID) == nil {
		writeError(w, http.StatusNotFound, "stop not found")
		return
	}

	date, _, err := s.date(r, feed, true)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	visits := []StopTimeResponse{}
	for _, st := range feed.Timetable(stopID, date) {
		visits = append(visits, stopTimeResponse(feed, st, date))
	}

	writeJSON(w, http.StatusOK, TimetableResponse{
		StopID: stopID,
		Date:   date.Format("20060102"),
		Visits: visits,
		Count:  len(visits),
	})
}

func (s *server) trip(w http.ResponseWriter, r *http.Request, feed *gtfs.Feed) {
	trip := feed.Trip(chi.URLParam(r, "tripID"))
	if trip == nil {
		writeError(w, http.StatusNotFound, "trip not found")
		return
	}

	date, hasDate, err := s.date(r, feed, false)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := TripResponse{
		ID:        trip.ID,
		RouteID:   trip.RouteID,
		ServiceID: trip.ServiceID,
		Headsign:  trip.Headsign,
		Direction: int(trip.DirectionID),
		StopTimes: []StopTimeResponse{},
	}
	if hasDate {
		active := feed.Calendar().IsActiveOn(trip.ServiceID, date)
		resp.Date = date.Format("20060102")
		resp.Active = &active
		if !active {
			date = time.Time{}
		}
	}

	for _, st := range feed.TripSchedule(trip.ID) {
		resp.StopTimes = append(resp.StopTimes, stopTimeResponse(feed, st, date))
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *server) service(w http.ResponseWriter, r *http.Request, feed *gtfs.Feed) {
	serviceID := chi.URLParam(r, "serviceID")
	calendar := feed.Calendar()
	if !calendar.Has(serviceID) {
		writeError(w, http.StatusNotFound, "service not found")
		return
	}

	date, hasDate, err := s.date(r, feed, false)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := serviceResponse(calendar, serviceID)
	if hasDate {
		active := calendar.IsActiveOn(serviceID, date)
		resp.Date = date.Format("20060102")
		resp.Active = &active
	}

	writeJSON(w, http.StatusOK, resp)
}
