package api

import (
	"time"

	"github.com/transitkit/gtfs"
	"github.com/transitkit/gtfs/model"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	Status            string `json:"status"`
	Timezone          string `json:"timezone,omitempty"`
	CalendarStartDate string `json:"calendarStartDate,omitempty"`
	CalendarEndDate   string `json:"calendarEndDate,omitempty"`
	Error             string `json:"error,omitempty"`
}

type TransferResponse struct {
	FromStopID      string  `json:"fromStopId"`
	ToStopID        string  `json:"toStopId"`
	Type            int     `json:"type"`
	MinTransferTime *uint32 `json:"minTransferTime,omitempty"`
}

type StopResponse struct {
	ID                 string             `json:"id"`
	Code               string             `json:"code,omitempty"`
	Name               string             `json:"name"`
	Desc               string             `json:"desc,omitempty"`
	Lat                float64            `json:"lat"`
	Lon                float64            `json:"lon"`
	LocationType       string             `json:"locationType"`
	ParentStation      string             `json:"parentStation,omitempty"`
	Children           []string           `json:"children,omitempty"`
	Timezone           string             `json:"timezone"`
	WheelchairBoarding int                `json:"wheelchairBoarding"`
	TransfersFrom      []TransferResponse `json:"transfersFrom,omitempty"`
	TransfersTo        []TransferResponse `json:"transfersTo,omitempty"`
}

// StopTimeResponse is a stop time on a given day. Departure is the
// resolved departure, absent when it can't be resolved.
type StopTimeResponse struct {
	TripID        string     `json:"tripId"`
	RouteID       string     `json:"routeId,omitempty"`
	StopID        string     `json:"stopId"`
	StopSequence  uint32     `json:"stopSequence"`
	ArrivalTime   string     `json:"arrivalTime,omitempty"`
	DepartureTime string     `json:"departureTime,omitempty"`
	Headsign      string     `json:"headsign,omitempty"`
	Timepoint     bool       `json:"timepoint"`
	Departure     *time.Time `json:"departure,omitempty"`
}

type TimetableResponse struct {
	StopID string             `json:"stopId"`
	Date   string             `json:"date"`
	Visits []StopTimeResponse `json:"visits"`
	Count  int                `json:"count"`
}

type TripResponse struct {
	ID        string             `json:"id"`
	RouteID   string             `json:"routeId"`
	ServiceID string             `json:"serviceId"`
	Headsign  string             `json:"headsign,omitempty"`
	Direction int                `json:"direction"`
	Date      string             `json:"date,omitempty"`
	Active    *bool              `json:"active,omitempty"`
	StopTimes []StopTimeResponse `json:"stopTimes"`
}

type ExceptionResponse struct {
	Date          string `json:"date"`
	ExceptionType int    `json:"exceptionType"`
}

type ServiceResponse struct {
	ServiceID  string              `json:"serviceId"`
	StartDate  string              `json:"startDate,omitempty"`
	EndDate    string              `json:"endDate,omitempty"`
	Weekdays   []string            `json:"weekdays,omitempty"`
	Date       string              `json:"date,omitempty"`
	Active     *bool               `json:"active,omitempty"`
	Exceptions []ExceptionResponse `json:"exceptions"`
}

func transferResponses(transfers []*model.Transfer) []TransferResponse {
	if len(transfers) == 0 {
		return nil
	}
	out := make([]TransferResponse, 0, len(transfers))
	for _, t := range transfers {
		out = append(out, TransferResponse{
			FromStopID:      t.FromStopID,
			ToStopID:        t.ToStopID,
			Type:            int(t.Type),
			MinTransferTime: t.MinTransferTime,
		})
	}
	return out
}

func stopResponse(feed *gtfs.Feed, stop *model.Stop) StopResponse {
	return StopResponse{
		ID:                 stop.ID,
		Code:               stop.Code,
		Name:               stop.Name,
		Desc:               stop.Desc,
		Lat:                stop.Lat,
		Lon:                stop.Lon,
		LocationType:       stop.LocationType.String(),
		ParentStation:      stop.ParentStation,
		Children:           feed.StationChildren(stop.ID),
		Timezone:           feed.StopTimezone(stop.ID),
		WheelchairBoarding: int(feed.StopWheelchairBoarding(stop.ID)),
		TransfersFrom:      transferResponses(feed.TransfersFrom(stop.ID)),
		TransfersTo:        transferResponses(feed.TransfersTo(stop.ID)),
	}
}

// stopTimeResponse describes st. With a zero date, no departure is
// resolved.
func stopTimeResponse(feed *gtfs.Feed, st *model.StopTime, date time.Time) StopTimeResponse {
	r := StopTimeResponse{
		TripID:        st.TripID,
		StopID:        st.StopID,
		StopSequence:  st.StopSequence,
		ArrivalTime:   st.Arrival.String(),
		DepartureTime: st.Departure.String(),
		Headsign:      st.Headsign,
		Timepoint:     st.Timepoint,
	}
	if trip := feed.Trip(st.TripID); trip != nil {
		r.RouteID = trip.RouteID
	}
	if !date.IsZero() {
		if departure, ok := feed.Schedule().ResolvedDepartureTime(st, date); ok {
			r.Departure = &departure
		}
	}
	return r
}

var weekdayNames = []time.Weekday{
	time.Monday,
	time.Tuesday,
	time.Wednesday,
	time.Thursday,
	time.Friday,
	time.Saturday,
	time.Sunday,
}

func serviceResponse(calendar *gtfs.ServiceCalendar, serviceID string) ServiceResponse {
	r := ServiceResponse{
		ServiceID:  serviceID,
		Exceptions: []ExceptionResponse{},
	}
	if cal := calendar.Calendar(serviceID); cal != nil {
		r.StartDate = cal.StartDate
		r.EndDate = cal.EndDate
		for _, day := range weekdayNames {
			if cal.RunsOn(day) {
				r.Weekdays = append(r.Weekdays, day.String())
			}
		}
	}
	for _, cd := range calendar.Exceptions(serviceID) {
		r.Exceptions = append(r.Exceptions, ExceptionResponse{
			Date:          cd.Date,
			ExceptionType: int(cd.ExceptionType),
		})
	}
	return r
}
