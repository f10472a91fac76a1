package domain

import (
	"time"

	dErrors "nfcattend/pkg/domain-errors"
)

// DayLayout is the ISO calendar date format used for partitions.
const DayLayout = "2006-01-02"

// Day is a UTC calendar day in YYYY-MM-DD form. It partitions attendance
// events and keys the daily aggregates.
//
// Invariant: a Day built by ParseDay or DayOf is always a valid date.
// Converting an arbitrary string with Day(s) bypasses validation.
type Day string

// ParseDay constructs a Day from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or not a valid
// YYYY-MM-DD date.
func ParseDay(s string) (Day, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "date cannot be empty")
	}
	t, err := time.Parse(DayLayout, s)
	if err != nil {
		return "", dErrors.New(dErrors.CodeInvalidInput, "date must use the YYYY-MM-DD format")
	}
	return Day(t.Format(DayLayout)), nil
}

// DayOf returns the UTC calendar day containing t.
func DayOf(t time.Time) Day {
	return Day(t.UTC().Format(DayLayout))
}

// Time returns midnight UTC of the day. Invalid days yield the zero time.
func (d Day) Time() time.Time {
	t, err := time.Parse(DayLayout, string(d))
	if err != nil {
		return time.Time{}
	}
	return t
}

// AddDays shifts the day by n calendar days (negative moves backwards).
func (d Day) AddDays(n int) Day {
	return DayOf(d.Time().AddDate(0, 0, n))
}

// Before reports whether d is strictly earlier than other.
func (d Day) Before(other Day) bool {
	return d.Time().Before(other.Time())
}

// DaysUntil returns the number of days from d to other, inclusive of both ends.
func (d Day) DaysUntil(other Day) int {
	return int(other.Time().Sub(d.Time()).Hours()/24) + 1
}

// End returns the first instant of the following day.
func (d Day) End() time.Time {
	return d.Time().AddDate(0, 0, 1)
}

func (d Day) String() string {
	return string(d)
}
