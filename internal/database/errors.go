package database

import "errors"

// Store errors shared by every backend. Backends wrap driver errors so that
// callers can rely on errors.Is against these values.
var (
	// ErrDuplicateStudent is returned by RosterWriter.Put when the student ID exists.
	ErrDuplicateStudent = errors.New("student already exists")
	// ErrDuplicateCheckIn is returned by AttendanceWriter.Append when the
	// (student, shift, day) key is already taken.
	ErrDuplicateCheckIn = errors.New("attendance already recorded")
	// ErrRecordNotFound is returned when a referenced record does not exist.
	ErrRecordNotFound = errors.New("record not found")
	// ErrStoreUnavailable marks infrastructure failures (connection refused,
	// timeouts). These are retryable by the caller.
	ErrStoreUnavailable = errors.New("store unavailable")
)
