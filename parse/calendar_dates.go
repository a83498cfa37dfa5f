package parse

import (
	"github.com/transitkit/gtfs/model"
	"github.com/transitkit/gtfs/table"
)

var calendarDatesSchema = schema{
	file:     CalendarDatesFile,
	required: []string{"service_id", "date", "exception_type"},
}

// ParseCalendarDates returns service exceptions keyed by service_id
// and then by date. Each (service_id, date) pair may appear once.
func ParseCalendarDates(data *table.Table) (map[string]map[string]*model.CalendarDate, error) {
	overrides := map[string]map[string]*model.CalendarDate{}

	err := calendarDatesSchema.each(data, func(r *record) error {
		cd := &model.CalendarDate{}

		var err error
		cd.ServiceID, err = r.id("service_id")
		if err != nil {
			return err
		}
		cd.Date, err = r.date("date")
		if err != nil {
			return err
		}

		switch r.str("exception_type") {
		case "1":
			cd.ExceptionType = model.ExceptionTypeAdded
		case "2":
			cd.ExceptionType = model.ExceptionTypeRemoved
		default:
			return r.invalid("exception_type")
		}

		byDate := overrides[cd.ServiceID]
		if byDate == nil {
			byDate = map[string]*model.CalendarDate{}
			overrides[cd.ServiceID] = byDate
		}
		if _, found := byDate[cd.Date]; found {
			return &model.DatasetUniquenessError{
				File:  CalendarDatesFile,
				Field: "service_id+date",
				Value: cd.ServiceID + "+" + cd.Date,
			}
		}
		byDate[cd.Date] = cd

		return nil
	})
	if err != nil {
		return nil, err
	}

	return overrides, nil
}
