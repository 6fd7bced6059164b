package core

import (
	"errors"
	"fmt"
	"time"
)

// Period is a calendar month. Dates are compared using the calendar fields
// of the transaction time in Loc, or in the time's own location when Loc is
// nil, never by truncating UTC instants.
type Period struct {
	Year  int
	Month time.Month
	Loc   *time.Location
}

var ErrInvalidPeriod = errors.New("invalid period")

// NewPeriod validates year and month.
func NewPeriod(year, month int) (Period, error) {
	if month < 1 || month > 12 {
		return Period{}, fmt.Errorf("%w: month %d", ErrInvalidPeriod, month)
	}
	if year < 1900 || year > 3000 {
		return Period{}, fmt.Errorf("%w: year %d", ErrInvalidPeriod, year)
	}
	return Period{Year: year, Month: time.Month(month)}, nil
}

// PeriodOf returns the month t falls in, using t's own location.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month(), Loc: t.Location()}
}

// ParsePeriod parses "YYYY-MM".
func ParsePeriod(s string) (Period, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
	return Period{Year: t.Year(), Month: t.Month()}, nil
}

// In returns the same month evaluated in loc.
func (p Period) In(loc *time.Location) Period {
	p.Loc = loc
	return p
}

func (p Period) location() *time.Location {
	if p.Loc == nil {
		return time.Local
	}
	return p.Loc
}

// index is a month counter used for month arithmetic.
func (p Period) index() int {
	return p.Year*12 + int(p.Month) - 1
}

// Start returns the first instant of the month.
func (p Period) Start() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, p.location())
}

// End returns the last nanosecond of the month.
func (p Period) End() time.Time {
	return p.Start().AddDate(0, 1, 0).Add(-time.Nanosecond)
}

// monthOf reads the calendar month of t, converted to Loc when set.
func (p Period) monthOf(t time.Time) Period {
	if p.Loc != nil {
		t = t.In(p.Loc)
	}
	return Period{Year: t.Year(), Month: t.Month()}
}

// Contains reports whether t's calendar date is inside the month.
func (p Period) Contains(t time.Time) bool {
	return p.MonthsSince(t) == 0
}

// MonthsSince returns the number of whole calendar months from the month
// of t to p. It is negative when p precedes t.
func (p Period) MonthsSince(t time.Time) int {
	return p.index() - p.monthOf(t).index()
}

// AddMonths shifts the period by n months.
func (p Period) AddMonths(n int) Period {
	i := p.index() + n
	return Period{Year: i / 12, Month: time.Month(i%12 + 1), Loc: p.Loc}
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}
