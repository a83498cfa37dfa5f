package model

import (
	"time"
)

// Holds all external facing types and constants.

type LocationType int8

const (
	LocationTypeStop LocationType = iota
	LocationTypeStation
)

func (lt LocationType) String() string {
	if lt == LocationTypeStation {
		return "station"
	}
	return "stop"
}

type RouteType int8

const (
	RouteTypeTram RouteType = iota
	RouteTypeSubway
	RouteTypeRail
	RouteTypeBus
	RouteTypeFerry
	RouteTypeCable
	RouteTypeGondola
	RouteTypeFunicular
	RouteTypeCount int = iota
)

// Accessibility is the tri-state used by wheelchair_boarding,
// wheelchair_accessible and bikes_allowed.
type Accessibility int8

const (
	AccessibilityUnknown Accessibility = iota
	AccessibilityYes
	AccessibilityNo
	AccessibilityCount int = iota
)

type Direction int8

const (
	DirectionUndefined Direction = -1
	DirectionZero      Direction = 0
	DirectionOne       Direction = 1
)

// PickupType applies to both pickup_type and drop_off_type.
type PickupType int8

const (
	PickupTypeRegular PickupType = iota
	PickupTypeNone
	PickupTypePhoneAgency
	PickupTypeCoordinateWithDriver
	PickupTypeCount int = iota
)

type ExceptionType int8

const (
	ExceptionTypeAdded   ExceptionType = 1
	ExceptionTypeRemoved ExceptionType = 2
)

type TransferType int8

const (
	TransferTypeRecommended TransferType = iota
	TransferTypeTimed
	TransferTypeMinimumTime
	TransferTypeNotPossible
	TransferTypeCount int = iota
)

type Agency struct {
	ID       string
	Name     string
	URL      string
	Timezone string
	Lang     string
	Phone    string
	FareURL  string
	Email    string
}

// Stop is either an ordinary stop or a station, as told by
// LocationType. Only ordinary stops may have a ParentStation.
type Stop struct {
	ID                 string
	Code               string
	Name               string
	Desc               string
	Lat                float64
	Lon                float64
	ZoneID             string
	URL                string
	LocationType       LocationType
	ParentStation      string
	Timezone           string
	WheelchairBoarding Accessibility
}

func (s *Stop) IsStation() bool {
	return s.LocationType == LocationTypeStation
}

type Route struct {
	ID        string
	AgencyID  string
	ShortName string
	LongName  string
	Desc      string
	Type      RouteType
	URL       string
	Color     string
	TextColor string
}

type Trip struct {
	ID                   string
	RouteID              string
	ServiceID            string
	Headsign             string
	ShortName            string
	DirectionID          Direction
	BlockID              string
	ShapeID              string
	WheelchairAccessible Accessibility
	BikesAllowed         Accessibility
}

type StopTime struct {
	TripID            string
	StopID            string
	StopSequence      uint32
	Arrival           Clock
	Departure         Clock
	Headsign          string
	PickupType        PickupType
	DropOffType       PickupType
	ShapeDistTraveled *float64
	Timepoint         bool
}

// ArrivalTime is the arrival on the service day date, in loc. The
// second return value is false when no arrival is given.
func (st *StopTime) ArrivalTime(date time.Time, loc *time.Location) (time.Time, bool) {
	return st.Arrival.On(date, loc)
}

// DepartureTime is the departure on the service day date, in loc.
func (st *StopTime) DepartureTime(date time.Time, loc *time.Location) (time.Time, bool) {
	return st.Departure.On(date, loc)
}

// Calendar is a weekly service pattern. Dates are YYYYMMDD and the
// range is inclusive. Weekday has bit 1<<time.Weekday set for each
// day the service runs.
type Calendar struct {
	ServiceID string
	StartDate string
	EndDate   string
	Weekday   int8
}

func (c *Calendar) RunsOn(day time.Weekday) bool {
	return c.Weekday&(1<<day) != 0
}

type CalendarDate struct {
	ServiceID     string
	Date          string
	ExceptionType ExceptionType
}

type ShapePoint struct {
	Lat          float64
	Lon          float64
	Sequence     uint32
	DistTraveled *float64
}

// Shape holds its points ordered by Sequence.
type Shape struct {
	ID     string
	Points []ShapePoint
}

type Transfer struct {
	FromStopID      string
	ToStopID        string
	Type            TransferType
	MinTransferTime *uint32
}

// Holds all Headsigns for trips passing through a stop, for a given
// route and direction.
type RouteDirection struct {
	StopID      string
	RouteID     string
	DirectionID Direction
	Headsigns   []string
}

// A vehicle passing a stop on a given day.
type Departure struct {
	StopID       string
	RouteID      string
	TripID       string
	ServiceID    string
	StopSequence uint32
	DirectionID  Direction
	Headsign     string
	Time         time.Time
	Timepoint    bool
}
