package attendance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/face-attendance/internal/database"
)

// RecordResult describes a committed check-in.
type RecordResult struct {
	EventID     string
	StudentID   string
	StudentName string
	Shift       string
	Timestamp   time.Time
	Day         string
}

// Recorder enforces one attendance event per (student, shift, calendar day).
// Calendar days are taken in Location, never in host-local time.
type Recorder struct {
	Store    database.AttendanceWriter
	Location *time.Location
	NewID    func() string
}

// NewRecorder creates a recorder. A nil location means UTC.
func NewRecorder(store database.AttendanceWriter, loc *time.Location) *Recorder {
	if loc == nil {
		loc = time.UTC
	}
	return &Recorder{Store: store, Location: loc, NewID: uuid.NewString}
}

// DayWindow returns the calendar day of ts in loc as [from, to) plus its
// DayLayout label. The window is 23 or 25 hours long across DST changes.
func DayWindow(ts time.Time, loc *time.Location) (from, to time.Time, day string) {
	local := ts.In(loc)
	from = time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	to = from.AddDate(0, 0, 1)
	return from, to, from.Format(database.DayLayout)
}

// Record appends a Present event for the student unless one already exists
// for the same shift and day. The store's uniqueness constraint decides
// between concurrent callers; the loser gets the same DuplicateCheckInError.
func (r *Recorder) Record(ctx context.Context, studentID, name string, ts time.Time, shift string) (RecordResult, error) {
	shift = strings.TrimSpace(shift)
	if studentID == "" || shift == "" {
		return RecordResult{}, fmt.Errorf("student id and shift are required: %w", ErrInvalidInput)
	}

	from, to, day := DayWindow(ts, r.Location)
	dup := &DuplicateCheckInError{StudentID: studentID, Name: name, Shift: shift, Day: day}

	existing, err := r.Store.Find(ctx, studentID, shift, from, to)
	if err != nil {
		return RecordResult{}, fmt.Errorf("find attendance: %w", err)
	}
	if existing != nil {
		return RecordResult{}, dup
	}

	event := database.AttendanceEvent{
		ID:        r.NewID(),
		StudentID: studentID,
		Timestamp: ts,
		Day:       day,
		Shift:     shift,
		Status:    database.StatusPresent,
	}
	id, err := r.Store.Append(ctx, event)
	if errors.Is(err, database.ErrDuplicateCheckIn) {
		return RecordResult{}, dup
	}
	if err != nil {
		return RecordResult{}, fmt.Errorf("append attendance: %w", err)
	}

	return RecordResult{
		EventID:     id,
		StudentID:   studentID,
		StudentName: name,
		Shift:       shift,
		Timestamp:   ts,
		Day:         day,
	}, nil
}
