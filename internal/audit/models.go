package audit

import "time"

// Actions recorded by the attendance service.
const (
	ActionCheckedIn     = "attendance.checked_in"
	ActionUserCreated   = "user.registered"
	ActionStatusChanged = "user.status_changed"
	ActionLegacyMigrate = "attendance.legacy_migrated"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	Action    string            `json:"action"`
	UserID    string            `json:"user_id,omitempty"`
	TagID     string            `json:"tag_id,omitempty"`
	Day       string            `json:"day,omitempty"`
	DeviceID  string            `json:"device_id,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
	Detail    map[string]string `json:"detail,omitempty"`
}
