package gtfs

import (
	"sort"
	"time"

	"github.com/transitkit/gtfs/model"
)

// ServiceCalendar tells which services run on which days, combining
// calendar.txt's weekly patterns with calendar_dates.txt's
// exceptions.
type ServiceCalendar struct {
	calendars map[string]*model.Calendar
	overrides map[string]map[string]*model.CalendarDate
}

// NewServiceCalendar takes weekly patterns keyed by service_id, and
// exceptions keyed by service_id and date. Either may be empty.
func NewServiceCalendar(
	calendars map[string]*model.Calendar,
	overrides map[string]map[string]*model.CalendarDate,
) *ServiceCalendar {
	if calendars == nil {
		calendars = map[string]*model.Calendar{}
	}
	if overrides == nil {
		overrides = map[string]map[string]*model.CalendarDate{}
	}
	return &ServiceCalendar{calendars: calendars, overrides: overrides}
}

// IsActiveOn reports whether the service runs on date. Only the
// year, month and day of date are considered.
//
// An exception for the exact date always wins. Otherwise the
// weekly pattern applies within its date range. A service with
// neither does not run.
func (c *ServiceCalendar) IsActiveOn(serviceID string, date time.Time) bool {
	day := date.Format("20060102")

	active := false
	if cal := c.calendars[serviceID]; cal != nil {
		if cal.StartDate <= day && day <= cal.EndDate {
			active = cal.RunsOn(date.Weekday())
		}
	}

	if cd := c.overrides[serviceID][day]; cd != nil {
		switch cd.ExceptionType {
		case model.ExceptionTypeAdded:
			active = true
		case model.ExceptionTypeRemoved:
			active = false
		}
	}

	return active
}

// Has reports whether serviceID appears in either source.
func (c *ServiceCalendar) Has(serviceID string) bool {
	_, inCalendar := c.calendars[serviceID]
	_, inOverrides := c.overrides[serviceID]
	return inCalendar || inOverrides
}

// ServiceIDs lists every known service, sorted.
func (c *ServiceCalendar) ServiceIDs() []string {
	seen := map[string]bool{}
	for id := range c.calendars {
		seen[id] = true
	}
	for id := range c.overrides {
		seen[id] = true
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ActiveServices lists the services running on date, sorted.
func (c *ServiceCalendar) ActiveServices(date time.Time) []string {
	active := []string{}
	for _, id := range c.ServiceIDs() {
		if c.IsActiveOn(id, date) {
			active = append(active, id)
		}
	}
	return active
}

// Calendar returns the weekly pattern for a service, if any.
func (c *ServiceCalendar) Calendar(serviceID string) *model.Calendar {
	return c.calendars[serviceID]
}

// Exceptions returns the service's exceptions, ordered by date.
func (c *ServiceCalendar) Exceptions(serviceID string) []*model.CalendarDate {
	exceptions := []*model.CalendarDate{}
	for _, cd := range c.overrides[serviceID] {
		exceptions = append(exceptions, cd)
	}
	sort.Slice(exceptions, func(i, j int) bool {
		return exceptions[i].Date < exceptions[j].Date
	})
	return exceptions
}

// DateRange is the first and last date, as YYYYMMDD, mentioned by
// any weekly pattern or exception. Both are empty for an empty
// calendar.
func (c *ServiceCalendar) DateRange() (string, string) {
	var start, end string

	widen := func(first, last string) {
		if start == "" || first < start {
			start = first
		}
		if end == "" || last > end {
			end = last
		}
	}

	for _, cal := range c.calendars {
		widen(cal.StartDate, cal.EndDate)
	}
	for _, byDate := range c.overrides {
		for date := range byDate {
			widen(date, date)
		}
	}

	return start, end
}
