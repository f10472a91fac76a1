package models

import "strings"

// CheckInRequest is the body of a tag scan.
type CheckInRequest struct {
	UID      string `json:"uid"`
	DeviceID string `json:"device_id"`
}

// Normalize trims whitespace from every field.
func (r *CheckInRequest) Normalize() {
	r.UID = strings.TrimSpace(r.UID)
	r.DeviceID = strings.TrimSpace(r.DeviceID)
}

// RegisterRequest enrolls a new badge holder.
type RegisterRequest struct {
	Name       string `json:"name" validate:"required,max=200"`
	UID        string `json:"uid" validate:"required,max=128"`
	Department string `json:"department" validate:"required,max=200"`
}

// Normalize trims whitespace from every field.
func (r *RegisterRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.UID = strings.TrimSpace(r.UID)
	r.Department = strings.TrimSpace(r.Department)
}

// SetStatusRequest toggles a user between active and inactive.
type SetStatusRequest struct {
	Status UserStatus `json:"status" validate:"required,oneof=active inactive"`
}
