// Package timefmt holds the calendar helpers shared by visits, tasks and
// dashboards: the server clock in the configured zone, the 12-hour display
// format and lenient parsing of query dates.
package timefmt

import (
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// Clock reports the current date and time of day in a fixed location.
type Clock struct {
	Now func() time.Time
	Loc *time.Location
}

func NewClock(loc *time.Location) Clock {
	if loc == nil {
		loc = time.UTC
	}
	return Clock{Now: time.Now, Loc: loc}
}

// Fixed returns a clock that always reports t. Used by tests.
func Fixed(t time.Time) Clock {
	return Clock{Now: func() time.Time { return t }, Loc: t.Location()}
}

func (c Clock) local() time.Time {
	loc := c.Loc
	if loc == nil {
		loc = time.UTC
	}
	return c.Now().In(loc)
}

func (c Clock) Today() civil.Date {
	return civil.DateOf(c.local())
}

// TimeOfDay is the current wall-clock time, truncated to whole seconds.
func (c Clock) TimeOfDay() civil.Time {
	return civil.TimeOf(c.local().Truncate(time.Second))
}

// Clock12 renders t as "03:04 PM".
func Clock12(t civil.Time) string {
	return time.Date(2000, 1, 1, t.Hour, t.Minute, t.Second, 0, time.UTC).Format("03:04 PM")
}

// ParseOptionalDate parses a YYYY-MM-DD query value. Empty or unparsable
// input yields nil, meaning the filter is not applied.
func ParseOptionalDate(s string) *civil.Date {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	d, err := civil.ParseDate(s)
	if err != nil {
		return nil
	}
	return &d
}

func ParseDate(s string) (civil.Date, error) {
	d, err := civil.ParseDate(strings.TrimSpace(s))
	if err != nil {
		return civil.Date{}, errors.New("Date has wrong format. Use one of these formats instead: YYYY-MM-DD.")
	}
	return d, nil
}

// ParseTimeOfDay accepts hh:mm, hh:mm:ss and hh:mm:ss.ffffff.
func ParseTimeOfDay(s string) (civil.Time, error) {
	s = strings.TrimSpace(s)
	if strings.Count(s, ":") == 1 {
		s += ":00"
	}
	t, err := civil.ParseTime(s)
	if err != nil {
		return civil.Time{}, errors.New("Time has wrong format. Use one of these formats instead: hh:mm[:ss[.uuuuuu]].")
	}
	return t, nil
}

// DaysEndingAt returns n consecutive dates, oldest first, ending at last.
func DaysEndingAt(last civil.Date, n int) []civil.Date {
	if n <= 0 {
		return nil
	}
	days := make([]civil.Date, n)
	for i := 0; i < n; i++ {
		days[i] = last.AddDays(i - (n - 1))
	}
	return days
}
