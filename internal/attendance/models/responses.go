package models

import (
	"sort"
	"time"
)

// Response envelopes. Every success payload carries Status "success".

type UserResponse struct {
	ID            string     `json:"id"`
	UID           string     `json:"uid"`
	Name          string     `json:"name"`
	Department    string     `json:"department"`
	Status        UserStatus `json:"status"`
	RegisteredAt  time.Time  `json:"registered_at"`
	LastCheckInAt *time.Time `json:"last_check_in,omitempty"`
}

type RecordResponse struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	UID        string    `json:"uid"`
	Name       string    `json:"name"`
	Department string    `json:"department"`
	Date       string    `json:"date"`
	Timestamp  time.Time `json:"timestamp"`
	Action     string    `json:"action"`
	DeviceID   string    `json:"device_id"`
}

type CheckInResponse struct {
	Status    string         `json:"status"`
	Message   string         `json:"message"`
	User      string         `json:"user"`
	Timestamp time.Time      `json:"timestamp"`
	Record    RecordResponse `json:"record"`
}

// UnknownTagResponse is the 404 body of a scan whose tag is not registered.
type UnknownTagResponse struct {
	Status           string    `json:"status"`
	Error            string    `json:"error"`
	ErrorDescription string    `json:"error_description"`
	UID              string    `json:"uid"`
	Timestamp        time.Time `json:"timestamp"`
}

type UsersResponse struct {
	Status string         `json:"status"`
	Users  []UserResponse `json:"users"`
}

type RegisterResponse struct {
	Status  string       `json:"status"`
	Message string       `json:"message"`
	User    UserResponse `json:"user"`
}

type SetStatusResponse struct {
	Status     string     `json:"status"`
	UserID     string     `json:"user_id"`
	UserStatus UserStatus `json:"user_status"`
}

type DailyReportResponse struct {
	Status      string           `json:"status"`
	Date        string           `json:"date"`
	Count       int              `json:"count"`
	Departments map[string]int   `json:"departments"`
	Records     []RecordResponse `json:"records"`
}

type DayAggregateResponse struct {
	Date        string         `json:"date"`
	Count       int            `json:"count"`
	Departments map[string]int `json:"departments"`
}

type RangeReportResponse struct {
	Status    string                 `json:"status"`
	StartDate string                 `json:"start_date"`
	EndDate   string                 `json:"end_date"`
	Days      []DayAggregateResponse `json:"days"`
}

type MigrationResponse struct {
	Status   string `json:"status"`
	Migrated int    `json:"migrated"`
	Failed   int    `json:"failed"`
	Skipped  int    `json:"skipped"`
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	Database  string    `json:"database"`
	Timestamp time.Time `json:"timestamp"`
}

// ToUserResponse renders a user for the API.
func ToUserResponse(u *User) UserResponse {
	return UserResponse{
		ID:            u.ID,
		UID:           u.TagID,
		Name:          u.Name,
		Department:    u.Department,
		Status:        u.Status,
		RegisteredAt:  u.RegisteredAt,
		LastCheckInAt: u.LastCheckInAt,
	}
}

// ToRecordResponse renders an event for the API.
func ToRecordResponse(e *AttendanceEvent) RecordResponse {
	return RecordResponse{
		ID:         e.ID,
		UserID:     e.UserID,
		UID:        e.TagID,
		Name:       e.Name,
		Department: e.Department,
		Date:       e.Day.String(),
		Timestamp:  e.Timestamp,
		Action:     e.Action,
		DeviceID:   e.DeviceID,
	}
}

// ToDailyReportResponse renders a daily report; empty collections are
// emitted as [] and {} rather than null.
func ToDailyReportResponse(r *DailyReport) DailyReportResponse {
	records := make([]RecordResponse, 0, len(r.Records))
	for _, e := range r.Records {
		records = append(records, ToRecordResponse(e))
	}
	return DailyReportResponse{
		Status:      "success",
		Date:        r.Day.String(),
		Count:       r.Count,
		Departments: copyDepartments(r.Departments),
		Records:     records,
	}
}

// ToRangeReportResponse renders a range report in ascending day order.
func ToRangeReportResponse(r *RangeReport) RangeReportResponse {
	days := make([]DayAggregateResponse, 0, len(r.Days))
	for _, agg := range r.Days {
		days = append(days, DayAggregateResponse{
			Date:        agg.Day.String(),
			Count:       agg.Count,
			Departments: copyDepartments(agg.Departments),
		})
	}
	sort.SliceStable(days, func(i, j int) bool { return days[i].Date < days[j].Date })
	return RangeReportResponse{
		Status:    "success",
		StartDate: r.Start.String(),
		EndDate:   r.End.String(),
		Days:      days,
	}
}

func copyDepartments(in map[string]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
