// Package mock provides in-memory implementations of database interfaces for testing.
package mock

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// wait blocks for d or until ctx is done, whichever comes first.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return fmt.Errorf("mock store: %w", ctx.Err())
	}
}

// MockRosterStore is an in-memory database.RosterWriter
type MockRosterStore struct {
	mu       sync.RWMutex
	order    []string
	profiles map[string]database.StudentProfile

	// Error injection
	GetError    error
	ListError   error
	CountError  error
	PutError    error
	DeleteError error

	// Delay is applied to every call; it honors context cancellation.
	Delay time.Duration
}

// NewMockRosterStore creates a new empty roster store
func NewMockRosterStore() *MockRosterStore {
	return &MockRosterStore{
		profiles: make(map[string]database.StudentProfile),
	}
}

// AddProfile adds a profile directly, bypassing uniqueness checks
func (m *MockRosterStore) AddProfile(p database.StudentProfile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.profiles[p.StudentID]; !ok {
		m.order = append(m.order, p.StudentID)
	}
	m.profiles[p.StudentID] = p
}

// Get retrieves a student by ID
func (m *MockRosterStore) Get(ctx context.Context, studentID string) (*database.StudentProfile, error) {
	if err := wait(ctx, m.Delay); err != nil {
		return nil, err
	}
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[studentID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// ListAll returns all students in insertion order
func (m *MockRosterStore) ListAll(ctx context.Context) ([]database.StudentProfile, error) {
	if err := wait(ctx, m.Delay); err != nil {
		return nil, err
	}
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]database.StudentProfile, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.profiles[id])
	}
	return out, nil
}

// Count returns the number of students
func (m *MockRosterStore) Count(ctx context.Context) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.profiles), nil
}

// Put stores a new student
func (m *MockRosterStore) Put(ctx context.Context, p database.StudentProfile) error {
	if err := wait(ctx, m.Delay); err != nil {
		return err
	}
	if m.PutError != nil {
		return m.PutError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.profiles[p.StudentID]; ok {
		return fmt.Errorf("student %s: %w", p.StudentID, database.ErrDuplicateStudent)
	}
	m.order = append(m.order, p.StudentID)
	m.profiles[p.StudentID] = p
	return nil
}

// Delete removes a student
func (m *MockRosterStore) Delete(ctx context.Context, studentID string) (bool, error) {
	if m.DeleteError != nil {
		return false, m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.profiles[studentID]; !ok {
		return false, nil
	}
	delete(m.profiles, studentID)
	for i, id := range m.order {
		if id == studentID {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return true, nil
}

// MockAttendanceStore is an in-memory database.AttendanceWriter that enforces
// the (student, shift, day) uniqueness like the real backends
type MockAttendanceStore struct {
	mu     sync.RWMutex
	events map[string]database.AttendanceEvent

	// Error injection
	FindError   error
	ListError   error
	CountError  error
	AppendError error
	DeleteError error

	// StaleFind makes Find report no event, as a reader racing a concurrent
	// writer would; Append still enforces uniqueness.
	StaleFind bool

	// Delay is applied to Find and Append; it honors context cancellation.
	Delay time.Duration
}

// NewMockAttendanceStore creates a new empty attendance store
func NewMockAttendanceStore() *MockAttendanceStore {
	return &MockAttendanceStore{
		events: make(map[string]database.AttendanceEvent),
	}
}

// Find returns the event for studentID and shift in [from, to)
func (m *MockAttendanceStore) Find(
	ctx context.Context, studentID, shift string, from, to time.Time,
) (*database.AttendanceEvent, error) {
	if err := wait(ctx, m.Delay); err != nil {
		return nil, err
	}
	if m.FindError != nil {
		return nil, m.FindError
	}
	if m.StaleFind {
		return nil, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.events {
		if e.StudentID == studentID && e.Shift == shift && !e.Timestamp.Before(from) && e.Timestamp.Before(to) {
			return &e, nil
		}
	}
	return nil, nil
}

// ListAll returns events newest first
func (m *MockAttendanceStore) ListAll(ctx context.Context) ([]database.AttendanceEvent, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]database.AttendanceEvent, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID < out[j].ID
		}
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}

// Count returns the number of events
func (m *MockAttendanceStore) Count(ctx context.Context) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.events), nil
}

// CountBetween returns the number of events with a timestamp in [from, to)
func (m *MockAttendanceStore) CountBetween(ctx context.Context, from, to time.Time) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, e := range m.events {
		if !e.Timestamp.Before(from) && e.Timestamp.Before(to) {
			count++
		}
	}
	return count, nil
}

// Append stores an event
func (m *MockAttendanceStore) Append(ctx context.Context, event database.AttendanceEvent) (string, error) {
	if err := wait(ctx, m.Delay); err != nil {
		return "", err
	}
	if m.AppendError != nil {
		return "", m.AppendError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.events {
		if e.StudentID == event.StudentID && e.Shift == event.Shift && e.Day == event.Day {
			return "", fmt.Errorf("student %s shift %s on %s: %w",
				event.StudentID, event.Shift, event.Day, database.ErrDuplicateCheckIn)
		}
	}
	m.events[event.ID] = event
	return event.ID, nil
}

// Delete removes an event
func (m *MockAttendanceStore) Delete(ctx context.Context, id string) (bool, error) {
	if m.DeleteError != nil {
		return false, m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[id]; !ok {
		return false, nil
	}
	delete(m.events, id)
	return true, nil
}

// Events returns a snapshot of all stored events in no particular order
func (m *MockAttendanceStore) Events() []database.AttendanceEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]database.AttendanceEvent, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e)
	}
	return out
}

// Register installs fresh mock stores as the active backend and returns them.
func Register() (*MockRosterStore, *MockAttendanceStore) {
	roster := NewMockRosterStore()
	attendance := NewMockAttendanceStore()
	database.RegisterBackend("mock",
		func() database.RosterWriter { return roster },
		func() database.AttendanceWriter { return attendance },
	)
	return roster, attendance
}
