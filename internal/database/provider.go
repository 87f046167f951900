package database

import (
	"context"
	"errors"
	"sync"
)

var (
	rosterWriter     func() RosterWriter
	attendanceWriter func() AttendanceWriter
	backendName      string
	backendMu        sync.RWMutex
)

// ErrBackendNotInitialized is returned by the getters before a backend registered itself.
var ErrBackendNotInitialized = errors.New("storage backend not initialized: DATABASE_URL is required")

// RegisterBackend registers repository constructors for the active storage backend.
// This is called by the backend packages to avoid import cycles.
func RegisterBackend(name string, roster func() RosterWriter, attendance func() AttendanceWriter) {
	backendMu.Lock()
	defer backendMu.Unlock()
	backendName = name
	rosterWriter = roster
	attendanceWriter = attendance
}

// ResetBackend clears the registered backend. Intended for tests.
func ResetBackend() {
	backendMu.Lock()
	defer backendMu.Unlock()
	backendName = ""
	rosterWriter = nil
	attendanceWriter = nil
}

// IsInitialized returns whether a storage backend has been registered.
func IsInitialized() bool {
	backendMu.RLock()
	defer backendMu.RUnlock()
	return rosterWriter != nil && attendanceWriter != nil
}

// BackendName returns the name of the registered backend ("postgres", "mariadb").
func BackendName() string {
	backendMu.RLock()
	defer backendMu.RUnlock()
	return backendName
}

// GetRosterReader returns a RosterReader from the registered backend
func GetRosterReader(ctx context.Context) (RosterReader, error) {
	return GetRosterWriter(ctx)
}

// GetRosterWriter returns a RosterWriter from the registered backend
func GetRosterWriter(_ context.Context) (RosterWriter, error) {
	backendMu.RLock()
	defer backendMu.RUnlock()
	if rosterWriter == nil {
		return nil, ErrBackendNotInitialized
	}
	return rosterWriter(), nil
}

// GetAttendanceReader returns an AttendanceReader from the registered backend
func GetAttendanceReader(ctx context.Context) (AttendanceReader, error) {
	return GetAttendanceWriter(ctx)
}

// GetAttendanceWriter returns an AttendanceWriter from the registered backend
func GetAttendanceWriter(_ context.Context) (AttendanceWriter, error) {
	backendMu.RLock()
	defer backendMu.RUnlock()
	if attendanceWriter == nil {
		return nil, ErrBackendNotInitialized
	}
	return attendanceWriter(), nil
}
