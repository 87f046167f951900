package database

import (
	"time"
)

// StatusPresent is the only attendance status recorded today.
const StatusPresent = "Present"

// UnknownStudentName is shown for attendance events whose student no longer exists.
const UnknownStudentName = "Unknown"

// StudentProfile is a registered student together with the face embeddings
// captured at enrollment, one per enrollment photo and in upload order.
type StudentProfile struct {
	StudentID  string
	Name       string
	Embeddings [][]float32
	CreatedAt  time.Time
}

// AttendanceEvent is a single check-in. Day is the calendar day of Timestamp
// in the configured attendance timezone (layout DayLayout) and together with
// StudentID and Shift forms the uniqueness key enforced by every store.
type AttendanceEvent struct {
	ID        string
	StudentID string
	Timestamp time.Time
	Day       string
	Shift     string
	Status    string
}

// AttendanceRow is an attendance event joined with the student's display name
// for listings. StudentName is UnknownStudentName for dangling references.
type AttendanceRow struct {
	AttendanceEvent
	StudentName string
}

// DayLayout is the layout of AttendanceEvent.Day.
const DayLayout = "2006-01-02"
