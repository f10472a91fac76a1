package models

import "time"

// UserStatus is the lifecycle state of a badge holder.
type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusInactive UserStatus = "inactive"
	// UserStatusPresent is written after a successful check-in.
	UserStatusPresent UserStatus = "present"
)

// UnknownDepartment is used when a record carries no department.
const UnknownDepartment = "Unknown"

// IsValid reports whether s is one of the known statuses.
func (s UserStatus) IsValid() bool {
	switch s {
	case UserStatusActive, UserStatusInactive, UserStatusPresent:
		return true
	}
	return false
}

// User is a registered badge holder.
type User struct {
	ID            string
	TagID         string
	Name          string
	Department    string
	Status        UserStatus
	RegisteredAt  time.Time
	LastCheckInAt *time.Time
}

// CanCheckIn reports whether the user is allowed to record attendance.
// Present users stay eligible on later days.
func (u *User) CanCheckIn() bool {
	return u.Status == UserStatusActive || u.Status == UserStatusPresent
}

// DepartmentOrUnknown returns the department, or UnknownDepartment when blank.
func DepartmentOrUnknown(department string) string {
	if department == "" {
		return UnknownDepartment
	}
	return department
}
