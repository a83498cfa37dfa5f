package model

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var clockPattern = regexp.MustCompile(`^(\d{1,2}):(\d{2}):(\d{2})$`)

// Clock is a stop time's time of day, held as seconds relative to
// noon of the service day. Measuring from noon keeps times after
// midnight ("25:10:00") ordered, and is unaffected by DST
// transitions which happen at night.
//
// The zero Clock is undefined.
type Clock struct {
	offset int32
	valid  bool
}

// ParseClock parses H:MM:SS or HH:MM:SS. The empty string gives an
// undefined Clock.
func ParseClock(s string) (Clock, error) {
	if s == "" {
		return Clock{}, nil
	}

	m := clockPattern.FindStringSubmatch(s)
	if m == nil {
		return Clock{}, fmt.Errorf("malformed time '%s'", s)
	}

	hh, _ := strconv.Atoi(m[1])
	mm, _ := strconv.Atoi(m[2])
	ss, _ := strconv.Atoi(m[3])
	if mm > 59 {
		return Clock{}, fmt.Errorf("invalid minute in '%s'", s)
	}
	if ss > 59 {
		return Clock{}, fmt.Errorf("invalid second in '%s'", s)
	}

	return Clock{
		offset: int32(hh*3600 + mm*60 + ss - 12*3600),
		valid:  true,
	}, nil
}

// ClockAtNoonOffset builds a Clock from seconds relative to noon.
func ClockAtNoonOffset(seconds int32) Clock {
	return Clock{offset: seconds, valid: true}
}

func (c Clock) Valid() bool {
	return c.valid
}

// NoonOffset is the signed offset from noon of the service day.
func (c Clock) NoonOffset() time.Duration {
	return time.Duration(c.offset) * time.Second
}

// SinceMidnight is the offset as written in the feed, i.e. relative
// to "noon minus 12h".
func (c Clock) SinceMidnight() time.Duration {
	return c.NoonOffset() + 12*time.Hour
}

// On places the clock on the service day given by date's year,
// month and day, in loc.
func (c Clock) On(date time.Time, loc *time.Location) (time.Time, bool) {
	if !c.valid {
		return time.Time{}, false
	}
	noon := time.Date(date.Year(), date.Month(), date.Day(), 12, 0, 0, 0, loc)
	return noon.Add(c.NoonOffset()), true
}

// Before orders clocks, placing undefined ones last.
func (c Clock) Before(o Clock) bool {
	if !c.valid {
		return false
	}
	if !o.valid {
		return true
	}
	return c.offset < o.offset
}

// String formats as HH:MM:SS, or "" if undefined.
func (c Clock) String() string {
	if !c.valid {
		return ""
	}
	s := int(c.offset) + 12*3600
	sign := ""
	if s < 0 {
		sign = "-"
		s = -s
	}
	return fmt.Sprintf("%s%02d:%02d:%02d", sign, s/3600, (s/60)%60, s%60)
}
