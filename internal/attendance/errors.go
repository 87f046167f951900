package attendance

import (
	"errors"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/fingerprint"
)

// Domain errors. Store errors (database.ErrDuplicateStudent,
// database.ErrDuplicateCheckIn, database.ErrRecordNotFound,
// database.ErrStoreUnavailable) are passed through wrapped.
var (
	ErrImageDecode          = fingerprint.ErrImageDecode
	ErrExtractorUnavailable = fingerprint.ErrExtractorUnavailable
	ErrNoFaceDetected       = errors.New("no face detected")
	ErrMultipleFaces        = errors.New("multiple faces detected")
	ErrIdentityNotFound     = errors.New("identity not found")
	ErrInvalidInput         = errors.New("invalid input")
)

// FaceCountError reports an image that did not contain exactly one face.
// It matches ErrNoFaceDetected or ErrMultipleFaces under errors.Is.
type FaceCountError struct {
	ImageRef string
	Count    int
}

func (e *FaceCountError) Error() string {
	if e.Count == 0 {
		return fmt.Sprintf("no face detected in %s", e.ImageRef)
	}
	return fmt.Sprintf("multiple faces detected in %s (%d)", e.ImageRef, e.Count)
}

func (e *FaceCountError) Unwrap() error {
	if e.Count == 0 {
		return ErrNoFaceDetected
	}
	return ErrMultipleFaces
}

// DuplicateCheckInError reports that a student already checked in for a shift
// on the same day. It matches database.ErrDuplicateCheckIn under errors.Is.
type DuplicateCheckInError struct {
	StudentID string
	Name      string
	Shift     string
	Day       string
}

func (e *DuplicateCheckInError) Error() string {
	return fmt.Sprintf("%s already checked in for shift %s on %s", e.Name, e.Shift, e.Day)
}

func (e *DuplicateCheckInError) Unwrap() error {
	return database.ErrDuplicateCheckIn
}
