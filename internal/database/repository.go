package database

import (
	"context"
	"time"
)

// RosterReader provides read-only access to registered students
type RosterReader interface {
	// Get retrieves a student by ID, returns nil if not found
	Get(ctx context.Context, studentID string) (*StudentProfile, error)
	// ListAll returns every registered student in registration order.
	// Matching depends on this order being stable.
	ListAll(ctx context.Context) ([]StudentProfile, error)
	// Count returns the number of registered students
	Count(ctx context.Context) (int, error)
}

// RosterWriter provides write access to registered students
type RosterWriter interface {
	RosterReader

	// Put stores a new student. Returns ErrDuplicateStudent if the ID is taken.
	Put(ctx context.Context, profile StudentProfile) error
	// Delete removes a student and its embeddings. Attendance events are kept.
	// Returns false if no such student existed.
	Delete(ctx context.Context, studentID string) (bool, error)
}

// AttendanceReader provides read-only access to the attendance log
type AttendanceReader interface {
	// Find returns the event for studentID and shift whose timestamp falls in [from, to),
	// or nil if there is none
	Find(ctx context.Context, studentID, shift string, from, to time.Time) (*AttendanceEvent, error)
	// ListAll returns all events ordered by timestamp, newest first
	ListAll(ctx context.Context) ([]AttendanceEvent, error)
	// Count returns the number of recorded events
	Count(ctx context.Context) (int, error)
	// CountBetween returns the number of events whose timestamp falls in [from, to)
	CountBetween(ctx context.Context, from, to time.Time) (int, error)
}

// AttendanceWriter provides write access to the attendance log
type AttendanceWriter interface {
	AttendanceReader

	// Append stores a new event and returns its ID. Returns ErrDuplicateCheckIn if an
	// event for the same (student, shift, day) already exists.
	Append(ctx context.Context, event AttendanceEvent) (string, error)
	// Delete removes an event by ID. Returns false if no such event existed.
	Delete(ctx context.Context, id string) (bool, error)
}
