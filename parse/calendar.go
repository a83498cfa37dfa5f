package parse

import (
	"time"

	"github.com/transitkit/gtfs/model"
	"github.com/transitkit/gtfs/table"
)

var calendarDays = []struct {
	field string
	day   time.Weekday
}{
	{"monday", time.Monday},
	{"tuesday", time.Tuesday},
	{"wednesday", time.Wednesday},
	{"thursday", time.Thursday},
	{"friday", time.Friday},
	{"saturday", time.Saturday},
	{"sunday", time.Sunday},
}

var calendarSchema = schema{
	file: CalendarFile,
	required: []string{
		"service_id",
		"monday",
		"tuesday",
		"wednesday",
		"thursday",
		"friday",
		"saturday",
		"sunday",
		"start_date",
		"end_date",
	},
}

// ParseCalendar returns weekly service patterns keyed by service_id.
func ParseCalendar(data *table.Table) (map[string]*model.Calendar, error) {
	calendars := map[string]*model.Calendar{}

	err := calendarSchema.each(data, func(r *record) error {
		c := &model.Calendar{}

		var err error
		c.ServiceID, err = r.id("service_id")
		if err != nil {
			return err
		}
		if _, found := calendars[c.ServiceID]; found {
			return &model.DatasetUniquenessError{File: CalendarFile, Field: "service_id", Value: c.ServiceID}
		}

		for _, d := range calendarDays {
			switch r.str(d.field) {
			case "1":
				c.Weekday |= 1 << d.day
			case "0":
			default:
				return r.invalid(d.field)
			}
		}

		c.StartDate, err = r.date("start_date")
		if err != nil {
			return err
		}
		c.EndDate, err = r.date("end_date")
		if err != nil {
			return err
		}
		if c.EndDate < c.StartDate {
			return r.invalid("end_date")
		}

		calendars[c.ServiceID] = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	return calendars, nil
}
