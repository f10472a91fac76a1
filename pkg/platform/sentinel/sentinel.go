package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) and services translate them into domain errors.
//
//   - ErrNotFound: the user, day partition or record does not exist
//   - ErrConflict: a unique key (tag id, event id, user+day) already exists
//   - ErrInvalidState: the entity cannot accept the requested change
//   - ErrUnavailable: the backing store cannot be reached
//
// For validation failures use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
