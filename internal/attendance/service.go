// Package attendance implements the registration, check-in and prediction use
// cases on top of an embedding extractor, the roster and attendance stores and
// the identity matchers.
package attendance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/fingerprint"
	"github.com/kozaktomas/face-attendance/internal/metrics"
	log "github.com/sirupsen/logrus"
)

// Image is an uploaded image together with a reference used in error
// messages (file name or form field).
type Image struct {
	Ref  string
	Data []byte
}

// Notifier is told about committed check-ins. Failures are logged and never
// fail the check-in.
type Notifier interface {
	NotifyCheckIn(ctx context.Context, r RecordResult) error
}

// Stats summarizes the stores.
type Stats struct {
	Students         int    `json:"students"`
	AttendanceEvents int    `json:"attendance_events"`
	CheckInsToday    int    `json:"checkins_today"`
	Today            string `json:"today"`
	Timezone         string `json:"timezone"`
}

// Options carries the collaborators of a Service. Extractor, Roster and
// Attendance are required; everything else has a default.
type Options struct {
	Extractor  fingerprint.Extractor
	Roster     database.RosterWriter
	Attendance database.AttendanceWriter

	CheckInMatcher facematch.Matcher // defaults to ThresholdFirstHit(0.6)
	PredictMatcher facematch.Matcher // defaults to BestMatchNearest(0.5)

	Location       *time.Location // calendar day zone, defaults to UTC
	ExtractTimeout time.Duration
	StoreTimeout   time.Duration

	// Normalize prepares uploads for extraction, defaults to fingerprint.NormalizeImage.
	Normalize func([]byte) ([]byte, error)
	Now       func() time.Time

	Metrics  *metrics.Manager
	Notifier Notifier
}

// Service implements the attendance use cases.
type Service struct {
	extractor      fingerprint.Extractor
	roster         database.RosterWriter
	attendance     database.AttendanceWriter
	recorder       *Recorder
	checkInMatcher facematch.Matcher
	predictMatcher facematch.Matcher
	location       *time.Location
	extractTimeout time.Duration
	storeTimeout   time.Duration
	normalize      func([]byte) ([]byte, error)
	now            func() time.Time
	metrics        *metrics.Manager
	notifier       Notifier
}

// NewService creates a Service from opts.
func NewService(opts Options) *Service {
	s := &Service{
		extractor:      opts.Extractor,
		roster:         opts.Roster,
		attendance:     opts.Attendance,
		checkInMatcher: opts.CheckInMatcher,
		predictMatcher: opts.PredictMatcher,
		location:       opts.Location,
		extractTimeout: opts.ExtractTimeout,
		storeTimeout:   opts.StoreTimeout,
		normalize:      opts.Normalize,
		now:            opts.Now,
		metrics:        opts.Metrics,
		notifier:       opts.Notifier,
	}
	if s.checkInMatcher == nil {
		s.checkInMatcher = facematch.NewThresholdFirstHit(0)
	}
	if s.predictMatcher == nil {
		s.predictMatcher = facematch.NewBestMatchNearest(0)
	}
	if s.location == nil {
		s.location = time.UTC
	}
	if s.normalize == nil {
		s.normalize = fingerprint.NormalizeImage
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.recorder = NewRecorder(opts.Attendance, s.location)
	return s
}

// Location returns the zone calendar days are computed in.
func (s *Service) Location() *time.Location {
	return s.location
}

func (s *Service) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.storeTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.storeTimeout)
}

// storeErr wraps err with op and marks store deadlines as ErrStoreUnavailable.
func storeErr(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, database.ErrStoreUnavailable) {
		return fmt.Errorf("%s: %w: %w", op, database.ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// extract normalizes img and returns the embeddings of all faces in it.
func (s *Service) extract(ctx context.Context, img Image) ([][]float32, error) {
	data, err := s.normalize(img.Data)
	if err != nil {
		return nil, fmt.Errorf("image %s: %w", img.Ref, err)
	}

	if s.extractTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.extractTimeout)
		defer cancel()
	}

	start := time.Now()
	faces, err := s.extractor.ExtractFaces(ctx, data)
	s.metrics.Extraction(time.Since(start))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, ErrExtractorUnavailable) {
			err = fmt.Errorf("%w: %w", ErrExtractorUnavailable, err)
		}
		return nil, fmt.Errorf("extract faces from %s: %w", img.Ref, err)
	}
	return faces, nil
}

// extractSingle extracts the one face a check-in or prediction needs.
func (s *Service) extractSingle(ctx context.Context, img Image) ([]float32, error) {
	faces, err := s.extract(ctx, img)
	if err != nil {
		return nil, err
	}
	if len(faces) != 1 {
		return nil, &FaceCountError{ImageRef: img.Ref, Count: len(faces)}
	}
	return faces[0], nil
}

func (s *Service) loadRoster(ctx context.Context) ([]database.StudentProfile, error) {
	ctx, cancel := s.storeContext(ctx)
	defer cancel()

	roster, err := s.roster.ListAll(ctx)
	if err != nil {
		return nil, storeErr("load roster", err)
	}
	s.metrics.RosterSize(len(roster))
	return roster, nil
}

// Register extracts one embedding from every image and stores the student.
// Nothing is stored unless every image contains exactly one face.
func (s *Service) Register(ctx context.Context, studentID, name string, images []Image) (database.StudentProfile, error) {
	profile, err := s.register(ctx, studentID, name, images)
	s.metrics.Registration(resultOf(err))
	return profile, err
}

func (s *Service) register(ctx context.Context, studentID, name string, images []Image) (database.StudentProfile, error) {
	studentID = strings.TrimSpace(studentID)
	name = strings.TrimSpace(name)
	if err := ValidateRegistration(studentID, name, len(images)); err != nil {
		return database.StudentProfile{}, err
	}

	if existing, err := s.Student(ctx, studentID); err == nil && existing != nil {
		return database.StudentProfile{}, fmt.Errorf("student %s: %w", studentID, database.ErrDuplicateStudent)
	} else if err != nil && !errors.Is(err, database.ErrRecordNotFound) {
		return database.StudentProfile{}, err
	}

	results := make([]ImageEmbeddings, 0, len(images))
	for _, img := range images {
		faces, err := s.extract(ctx, img)
		if err != nil {
			return database.StudentProfile{}, err
		}
		results = append(results, ImageEmbeddings{Ref: img.Ref, Embeddings: faces})
	}

	profile, err := BuildProfile(studentID, name, results)
	if err != nil {
		return database.StudentProfile{}, err
	}
	profile.CreatedAt = s.now().UTC()

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()
	if err := s.roster.Put(storeCtx, profile); err != nil {
		return database.StudentProfile{}, storeErr("store student", err)
	}

	log.WithFields(log.Fields{
		"student_id": profile.StudentID,
		"images":     len(profile.Embeddings),
	}).Info("Student registered")
	return profile, nil
}

// CheckIn identifies the single face in img with the first-hit policy and
// records attendance for shift.
func (s *Service) CheckIn(ctx context.Context, img Image, shift string) (RecordResult, error) {
	result, err := s.checkIn(ctx, img, shift)
	s.metrics.CheckIn(resultOf(err))
	if err != nil {
		return RecordResult{}, err
	}

	if s.notifier != nil {
		notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.NotifyTimeout)
		defer cancel()
		if err := s.notifier.NotifyCheckIn(notifyCtx, result); err != nil {
			log.WithError(err).WithField("event_id", result.EventID).Warn("Check-in notification failed")
		}
	}
	return result, nil
}

func (s *Service) checkIn(ctx context.Context, img Image, shift string) (RecordResult, error) {
	shift = strings.TrimSpace(shift)
	if shift == "" {
		return RecordResult{}, fmt.Errorf("shift is required: %w", ErrInvalidInput)
	}

	query, err := s.extractSingle(ctx, img)
	if err != nil {
		return RecordResult{}, err
	}

	roster, err := s.loadRoster(ctx)
	if err != nil {
		return RecordResult{}, err
	}

	match := s.checkInMatcher.Match(query, roster)
	s.metrics.Match(s.checkInMatcher.Policy(), match.Matched, match.Distance)
	if !match.Matched {
		log.WithFields(log.Fields{"image": img.Ref, "shift": shift, "distance": match.Distance}).
			Info("Check-in face did not match any student")
		return RecordResult{}, fmt.Errorf("check-in from %s: %w", img.Ref, ErrIdentityNotFound)
	}

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()
	result, err := s.recorder.Record(storeCtx, match.StudentID, match.Name, s.now(), shift)
	if err != nil {
		var dup *DuplicateCheckInError
		if errors.As(err, &dup) {
			log.WithFields(log.Fields{"student_id": dup.StudentID, "shift": dup.Shift, "day": dup.Day}).
				Info("Duplicate check-in rejected")
			return RecordResult{}, err
		}
		return RecordResult{}, storeErr("record attendance", err)
	}

	log.WithFields(log.Fields{
		"student_id": result.StudentID,
		"shift":      result.Shift,
		"day":        result.Day,
		"distance":   match.Distance,
	}).Info("Attendance recorded")
	return result, nil
}

// Predict identifies the single face in img with the nearest-neighbour policy.
// No match is a valid outcome with Matched=false.
func (s *Service) Predict(ctx context.Context, img Image) (facematch.Result, error) {
	query, err := s.extractSingle(ctx, img)
	if err != nil {
		return facematch.Result{}, err
	}

	roster, err := s.loadRoster(ctx)
	if err != nil {
		return facematch.Result{}, err
	}

	result := s.predictMatcher.Match(query, roster)
	s.metrics.Match(s.predictMatcher.Policy(), result.Matched, result.Distance)
	log.WithFields(log.Fields{
		"image":      img.Ref,
		"matched":    result.Matched,
		"student_id": result.StudentID,
		"distance":   result.Distance,
	}).Debug("Prediction")
	return result, nil
}

// Students lists the roster in registration order, filtered by a name or ID
// fragment when query is non-empty.
func (s *Service) Students(ctx context.Context, query string) ([]database.StudentProfile, error) {
	roster, err := s.loadRoster(ctx)
	if err != nil {
		return nil, err
	}
	return facematch.FilterProfiles(roster, query), nil
}

// Student returns one student or database.ErrRecordNotFound.
func (s *Service) Student(ctx context.Context, studentID string) (*database.StudentProfile, error) {
	ctx, cancel := s.storeContext(ctx)
	defer cancel()

	profile, err := s.roster.Get(ctx, studentID)
	if err != nil {
		return nil, storeErr("get student", err)
	}
	if profile == nil {
		return nil, fmt.Errorf("student %s: %w", studentID, database.ErrRecordNotFound)
	}
	return profile, nil
}

// DeleteStudent removes a student and its embeddings. Past attendance events
// are kept and list as UnknownStudentName afterwards.
func (s *Service) DeleteStudent(ctx context.Context, studentID string) error {
	ctx, cancel := s.storeContext(ctx)
	defer cancel()

	deleted, err := s.roster.Delete(ctx, studentID)
	if err != nil {
		return storeErr("delete student", err)
	}
	if !deleted {
		return fmt.Errorf("student %s: %w", studentID, database.ErrRecordNotFound)
	}
	log.WithField("student_id", studentID).Info("Student deleted")
	return nil
}

// Attendance lists all events newest first, joined with student names.
func (s *Service) Attendance(ctx context.Context) ([]database.AttendanceRow, error) {
	roster, err := s.loadRoster(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(roster))
	for _, p := range roster {
		names[p.StudentID] = p.Name
	}

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()
	events, err := s.attendance.ListAll(storeCtx)
	if err != nil {
		return nil, storeErr("list attendance", err)
	}

	rows := make([]database.AttendanceRow, 0, len(events))
	for _, e := range events {
		name, ok := names[e.StudentID]
		if !ok {
			name = database.UnknownStudentName
		}
		rows = append(rows, database.AttendanceRow{AttendanceEvent: e, StudentName: name})
	}
	return rows, nil
}

// DeleteAttendance removes one event or returns database.ErrRecordNotFound.
func (s *Service) DeleteAttendance(ctx context.Context, id string) error {
	ctx, cancel := s.storeContext(ctx)
	defer cancel()

	deleted, err := s.attendance.Delete(ctx, id)
	if err != nil {
		return storeErr("delete attendance", err)
	}
	if !deleted {
		return fmt.Errorf("attendance %s: %w", id, database.ErrRecordNotFound)
	}
	log.WithField("event_id", id).Info("Attendance event deleted")
	return nil
}

// Stats counts students, events and today's check-ins.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	ctx, cancel := s.storeContext(ctx)
	defer cancel()

	students, err := s.roster.Count(ctx)
	if err != nil {
		return Stats{}, storeErr("count students", err)
	}
	events, err := s.attendance.Count(ctx)
	if err != nil {
		return Stats{}, storeErr("count attendance", err)
	}

	from, to, today := DayWindow(s.now(), s.location)
	checkIns, err := s.attendance.CountBetween(ctx, from, to)
	if err != nil {
		return Stats{}, storeErr("count today's attendance", err)
	}

	return Stats{
		Students:         students,
		AttendanceEvents: events,
		CheckInsToday:    checkIns,
		Today:            today,
		Timezone:         s.location.String(),
	}, nil
}

// resultOf maps an outcome to a metrics result label.
func resultOf(err error) string {
	switch {
	case err == nil:
		return metrics.ResultSuccess
	case errors.Is(err, database.ErrDuplicateCheckIn), errors.Is(err, database.ErrDuplicateStudent):
		return metrics.ResultDuplicate
	case errors.Is(err, ErrIdentityNotFound):
		return metrics.ResultNotFound
	case errors.Is(err, database.ErrStoreUnavailable), errors.Is(err, ErrExtractorUnavailable):
		return metrics.ResultUnavailable
	case errors.Is(err, ErrImageDecode), errors.Is(err, ErrNoFaceDetected),
		errors.Is(err, ErrMultipleFaces), errors.Is(err, ErrInvalidInput):
		return metrics.ResultRejected
	default:
		return metrics.ResultError
	}
}
