package gtfs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/transitkit/gtfs/model"
)

func mondaysOnly2016() map[string]*model.Calendar {
	return map[string]*model.Calendar{
		"mondays": {
			ServiceID: "mondays",
			StartDate: "20160101",
			EndDate:   "20161231",
			Weekday:   1 << time.Monday,
		},
	}
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func TestServiceCalendarIsActiveOn(t *testing.T) {
	for _, tc := range []struct {
		name      string
		overrides map[string]map[string]*model.CalendarDate
		date      time.Time
		active    bool
	}{
		{"monday", nil, date(2016, 1, 4), true},
		{"tuesday", nil, date(2016, 1, 5), false},
		{"before range", nil, date(2015, 12, 28), false},
		{"after range", nil, date(2017, 1, 2), false},
		{"last day of range", nil, date(2016, 12, 26), true},
		{
			"removed on inactive day",
			map[string]map[string]*model.CalendarDate{
				"mondays": {"20160105": {ServiceID: "mondays", Date: "20160105", ExceptionType: model.ExceptionTypeRemoved}},
			},
			date(2016, 1, 5),
			false,
		},
		{
			"added on inactive day",
			map[string]map[string]*model.CalendarDate{
				"mondays": {"20160105": {ServiceID: "mondays", Date: "20160105", ExceptionType: model.ExceptionTypeAdded}},
			},
			date(2016, 1, 5),
			true,
		},
		{
			"removed on active day",
			map[string]map[string]*model.CalendarDate{
				"mondays": {"20160104": {ServiceID: "mondays", Date: "20160104", ExceptionType: model.ExceptionTypeRemoved}},
			},
			date(2016, 1, 4),
			false,
		},
		{
			"added outside range",
			map[string]map[string]*model.CalendarDate{
				"mondays": {"20170103": {ServiceID: "mondays", Date: "20170103", ExceptionType: model.ExceptionTypeAdded}},
			},
			date(2017, 1, 3),
			true,
		},
		{
			"exception on other date",
			map[string]map[string]*model.CalendarDate{
				"mondays": {"20160104": {ServiceID: "mondays", Date: "20160104", ExceptionType: model.ExceptionTypeRemoved}},
			},
			date(2016, 1, 11),
			true,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c := NewServiceCalendar(mondaysOnly2016(), tc.overrides)
			assert.Equal(t, tc.active, c.IsActiveOn("mondays", tc.date))
		})
	}
}

// Only the date matters, not the time of day or location.
func TestServiceCalendarIgnoresTimeOfDay(t *testing.T) {
	c := NewServiceCalendar(mondaysOnly2016(), nil)

	tz, err := time.LoadLocation("Asia/Tokyo")
	assert.NoError(t, err)

	assert.True(t, c.IsActiveOn("mondays", time.Date(2016, 1, 4, 23, 59, 59, 0, tz)))
	assert.True(t, c.IsActiveOn("mondays", time.Date(2016, 1, 4, 0, 0, 0, 0, time.UTC)))
	assert.False(t, c.IsActiveOn("mondays", time.Date(2016, 1, 5, 0, 0, 1, 0, tz)))
}

func TestServiceCalendarUnknownService(t *testing.T) {
	c := NewServiceCalendar(nil, nil)
	assert.False(t, c.IsActiveOn("nope", date(2016, 1, 4)))
	assert.False(t, c.Has("nope"))
	assert.Equal(t, []string{}, c.ServiceIDs())
	assert.Nil(t, c.Calendar("nope"))
	assert.Equal(t, []*model.CalendarDate{}, c.Exceptions("nope"))

	start, end := c.DateRange()
	assert.Equal(t, "", start)
	assert.Equal(t, "", end)
}

func TestServiceCalendarQueries(t *testing.T) {
	calendars := mondaysOnly2016()
	calendars["weekends"] = &model.Calendar{
		ServiceID: "weekends",
		StartDate: "20160301",
		EndDate:   "20160331",
		Weekday:   1<<time.Saturday | 1<<time.Sunday,
	}
	overrides := map[string]map[string]*model.CalendarDate{
		"holiday": {
			"20151225": {ServiceID: "holiday", Date: "20151225", ExceptionType: model.ExceptionTypeAdded},
		},
		"mondays": {
			"20170102": {ServiceID: "mondays", Date: "20170102", ExceptionType: model.ExceptionTypeAdded},
			"20160104": {ServiceID: "mondays", Date: "20160104", ExceptionType: model.ExceptionTypeRemoved},
		},
	}

	c := NewServiceCalendar(calendars, overrides)

	assert.Equal(t, []string{"holiday", "mondays", "weekends"}, c.ServiceIDs())
	assert.True(t, c.Has("holiday"))
	assert.True(t, c.Has("weekends"))

	assert.Equal(t, []string{"holiday"}, c.ActiveServices(date(2015, 12, 25)))
	assert.Equal(t, []string{"mondays"}, c.ActiveServices(date(2016, 3, 7)))
	assert.Equal(t, []string{"weekends"}, c.ActiveServices(date(2016, 3, 5)))
	assert.Equal(t, []string{}, c.ActiveServices(date(2016, 1, 4)))

	exceptions := c.Exceptions("mondays")
	assert.Equal(t, 2, len(exceptions))
	assert.Equal(t, "20160104", exceptions[0].Date)
	assert.Equal(t, "20170102", exceptions[1].Date)

	start, end := c.DateRange()
	assert.Equal(t, "20151225", start)
	assert.Equal(t, "20170102", end)
}
