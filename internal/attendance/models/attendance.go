package models

import (
	"time"

	"nfcattend/pkg/domain"
)

// ActionCheckIn is the only action an attendance event records.
const ActionCheckIn = "check_in"

// AttendanceEvent is one immutable check-in, partitioned by Day.
// Name and Department are snapshots taken when the event was recorded.
type AttendanceEvent struct {
	ID         string
	UserID     string
	TagID      string
	Name       string
	Department string
	Day        domain.Day
	Timestamp  time.Time
	Action     string
	DeviceID   string
}

// DailyAggregate is the per-day total and its department breakdown.
type DailyAggregate struct {
	Day         domain.Day
	Count       int
	Departments map[string]int
}

// NewDailyAggregate returns an empty aggregate for day.
func NewDailyAggregate(day domain.Day) *DailyAggregate {
	return &DailyAggregate{Day: day, Departments: map[string]int{}}
}

// DailyReport is a day's aggregate plus its events in time order.
type DailyReport struct {
	Day         domain.Day
	Count       int
	Departments map[string]int
	Records     []*AttendanceEvent
}

// RangeReport lists the aggregates of the days in [Start, End] that saw activity.
type RangeReport struct {
	Start domain.Day
	End   domain.Day
	Days  []*DailyAggregate
}

// CheckInResult is what a successful scan produces.
type CheckInResult struct {
	Event    *AttendanceEvent
	UserName string
}

// LegacyRecord is a row of the flat, pre-partition attendance table.
// Every field may be missing.
type LegacyRecord struct {
	ID         string
	UserID     string
	TagID      string
	Name       string
	Department string
	Date       string
	Timestamp  *time.Time
	DeviceID   string
}

// MigrationSummary tallies one legacy sweep.
type MigrationSummary struct {
	Migrated int
	Failed   int
	Skipped  int
}
