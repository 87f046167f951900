package attendance

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/mock"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/metrics"
)

// fakeExtractor returns the faces registered for an image's bytes.
type fakeExtractor struct {
	mu    sync.Mutex
	faces map[string][][]float32
	err   error
	delay time.Duration
	calls int
}

func newFakeExtractor() *fakeExtractor {
	return &fakeExtractor{faces: make(map[string][][]float32)}
}

func (f *fakeExtractor) set(data string, faces ...[]float32) Image {
	f.faces[data] = faces
	return Image{Ref: data, Data: []byte(data)}
}

func (f *fakeExtractor) ExtractFaces(ctx context.Context, image []byte) ([][]float32, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.faces[string(image)], nil
}

type recordingNotifier struct {
	mu      sync.Mutex
	results []RecordResult
	err     error
}

func (n *recordingNotifier) NotifyCheckIn(ctx context.Context, r RecordResult) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.results = append(n.results, r)
	return n.err
}

type testEnv struct {
	svc        *Service
	extractor  *fakeExtractor
	roster     *mock.MockRosterStore
	attendance *mock.MockAttendanceStore
	notifier   *recordingNotifier
	now        time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		extractor:  newFakeExtractor(),
		roster:     mock.NewMockRosterStore(),
		attendance: mock.NewMockAttendanceStore(),
		notifier:   &recordingNotifier{},
		now:        time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC),
	}
	env.svc = NewService(Options{
		Extractor:  env.extractor,
		Roster:     env.roster,
		Attendance: env.attendance,
		Normalize:  func(b []byte) ([]byte, error) { return b, nil },
		Now:        func() time.Time { return env.now },
		Metrics:    metrics.NewManager(),
		Notifier:   env.notifier,
	})
	return env
}

func TestRegister(t *testing.T) {
	env := newTestEnv(t)
	a := env.extractor.set("a.jpg", []float32{0, 0})
	b := env.extractor.set("b.jpg", []float32{0.1, 0})

	profile, err := env.svc.Register(context.Background(), " S1 ", " Alice ", []Image{a, b})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if profile.StudentID != "S1" || profile.Name != "Alice" {
		t.Errorf("expected trimmed S1/Alice, got %s/%s", profile.StudentID, profile.Name)
	}
	if len(profile.Embeddings) != 2 || profile.Embeddings[1][0] != 0.1 {
		t.Errorf("expected embeddings in upload order, got %v", profile.Embeddings)
	}
	if !profile.CreatedAt.Equal(env.now) {
		t.Errorf("expected CreatedAt %v, got %v", env.now, profile.CreatedAt)
	}

	stored, err := env.roster.Get(context.Background(), "S1")
	if err != nil || stored == nil {
		t.Fatalf("expected stored profile, got %v, %v", stored, err)
	}
}

func TestRegister_AllOrNothing(t *testing.T) {
	tests := []struct {
		name  string
		faces [][]float32
		want  error
	}{
		{"no face", nil, ErrNoFaceDetected},
		{"two faces", [][]float32{{0, 0}, {1, 1}}, ErrMultipleFaces},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			good := env.extractor.set("good.jpg", []float32{0, 0})
			bad := env.extractor.set("bad.jpg", tt.faces...)

			_, err := env.svc.Register(context.Background(), "S1", "Alice", []Image{good, bad})
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			var fce *FaceCountError
			if !errors.As(err, &fce) || fce.ImageRef != "bad.jpg" {
				t.Errorf("expected error to name bad.jpg, got %v", err)
			}
			if n, _ := env.roster.Count(context.Background()); n != 0 {
				t.Errorf("expected nothing stored, got %d students", n)
			}
		})
	}
}

func TestRegister_Validation(t *testing.T) {
	env := newTestEnv(t)
	img := env.extractor.set("a.jpg", []float32{0, 0})

	tests := []struct {
		name   string
		id     string
		sname  string
		images []Image
	}{
		{"missing id", "  ", "Alice", []Image{img}},
		{"missing name", "S1", "", []Image{img}},
		{"no images", "S1", "Alice", nil},
		{"too many images", "S1", "Alice", make([]Image, 11)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.Register(context.Background(), tt.id, tt.sname, tt.images)
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
	if env.extractor.calls != 0 {
		t.Errorf("expected no extraction for invalid input, got %d calls", env.extractor.calls)
	}
}

func TestRegister_Duplicate(t *testing.T) {
	env := newTestEnv(t)
	img := env.extractor.set("a.jpg", []float32{0, 0})

	if _, err := env.svc.Register(context.Background(), "S1", "Alice", []Image{img}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	_, err := env.svc.Register(context.Background(), "S1", "Someone", []Image{img})
	if !errors.Is(err, database.ErrDuplicateStudent) {
		t.Fatalf("expected ErrDuplicateStudent, got %v", err)
	}
	stored, _ := env.roster.Get(context.Background(), "S1")
	if stored.Name != "Alice" {
		t.Errorf("expected original profile to be kept, got %s", stored.Name)
	}
}

func TestRegister_ExtractorUnavailable(t *testing.T) {
	env := newTestEnv(t)
	env.extractor.err = ErrExtractorUnavailable

	_, err := env.svc.Register(context.Background(), "S1", "Alice", []Image{{Ref: "a.jpg", Data: []byte("a")}})
	if !errors.Is(err, ErrExtractorUnavailable) {
		t.Errorf("expected ErrExtractorUnavailable, got %v", err)
	}
}

func registerAlice(t *testing.T, env *testEnv) {
	t.Helper()
	img := env.extractor.set("alice.jpg", []float32{0, 0})
	if _, err := env.svc.Register(context.Background(), "S1", "Alice", []Image{img}); err != nil {
		t.Fatalf("Register: %v", err)
	}
}

func TestCheckIn(t *testing.T) {
	env := newTestEnv(t)
	registerAlice(t, env)
	probe := env.extractor.set("probe.jpg", []float32{0.3, 0})

	result, err := env.svc.CheckIn(context.Background(), probe, "morning")
	if err != nil {
		t.Fatalf("CheckIn: %v", err)
	}
	if result.StudentID != "S1" || result.StudentName != "Alice" {
		t.Errorf("expected S1/Alice, got %s/%s", result.StudentID, result.StudentName)
	}
	if result.Day != "2024-03-04" || result.Shift != "morning" {
		t.Errorf("unexpected day/shift %s/%s", result.Day, result.Shift)
	}

	events := env.attendance.Events()
	if len(events) != 1 || events[0].Status != database.StatusPresent {
		t.Fatalf("expected one Present event, got %+v", events)
	}
	if len(env.notifier.results) != 1 || env.notifier.results[0].EventID != result.EventID {
		t.Errorf("expected notification for %s, got %+v", result.EventID, env.notifier.results)
	}
}

func TestCheckIn_Duplicate(t *testing.T) {
	env := newTestEnv(t)
	registerAlice(t, env)
	probe := env.extractor.set("probe.jpg", []float32{0.1, 0})

	if _, err := env.svc.CheckIn(context.Background(), probe, "morning"); err != nil {
		t.Fatalf("first CheckIn: %v", err)
	}

	env.now = env.now.Add(3 * time.Hour)
	_, err := env.svc.CheckIn(context.Background(), probe, "morning")
	if !errors.Is(err, database.ErrDuplicateCheckIn) {
		t.Fatalf("expected ErrDuplicateCheckIn, got %v", err)
	}
	var dup *DuplicateCheckInError
	if !errors.As(err, &dup) || dup.Name != "Alice" || dup.Shift != "morning" {
		t.Errorf("expected duplicate error naming Alice/morning, got %v", err)
	}
	if len(env.attendance.Events()) != 1 {
		t.Errorf("expected one event, got %d", len(env.attendance.Events()))
	}
	if len(env.notifier.results) != 1 {
		t.Errorf("expected one notification, got %d", len(env.notifier.results))
	}
}

func TestCheckIn_OtherShiftAndNextDay(t *testing.T) {
	env := newTestEnv(t)
	registerAlice(t, env)
	probe := env.extractor.set("probe.jpg", []float32{0.1, 0})

	if _, err := env.svc.CheckIn(context.Background(), probe, "morning"); err != nil {
		t.Fatalf("morning: %v", err)
	}
	if _, err := env.svc.CheckIn(context.Background(), probe, "evening"); err != nil {
		t.Errorf("expected other shift to succeed, got %v", err)
	}
	env.now = env.now.AddDate(0, 0, 1)
	if _, err := env.svc.CheckIn(context.Background(), probe, "morning"); err != nil {
		t.Errorf("expected next day to succeed, got %v", err)
	}
	if n := len(env.attendance.Events()); n != 3 {
		t.Errorf("expected 3 events, got %d", n)
	}
}

func TestCheckIn_RaceLoserGetsDuplicate(t *testing.T) {
	env := newTestEnv(t)
	registerAlice(t, env)
	env.attendance.StaleFind = true
	probe := env.extractor.set("probe.jpg", []float32{0.1, 0})

	if _, err := env.svc.CheckIn(context.Background(), probe, "morning"); err != nil {
		t.Fatalf("first CheckIn: %v", err)
	}
	_, err := env.svc.CheckIn(context.Background(), probe, "morning")
	var dup *DuplicateCheckInError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateCheckInError from store constraint, got %v", err)
	}
	if len(env.attendance.Events()) != 1 {
		t.Errorf("expected one event, got %d", len(env.attendance.Events()))
	}
}

func TestCheckIn_Concurrent(t *testing.T) {
	env := newTestEnv(t)
	registerAlice(t, env)
	probe := env.extractor.set("probe.jpg", []float32{0.1, 0})

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for range callers {
		wg.Go(func() {
			_, err := env.svc.CheckIn(context.Background(), probe, "morning")
			errs <- err
		})
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case !errors.Is(err, database.ErrDuplicateCheckIn):
			t.Errorf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Errorf("expected exactly one success, got %d", succeeded)
	}
	if len(env.attendance.Events()) != 1 {
		t.Errorf("expected one event, got %d", len(env.attendance.Events()))
	}
}

func TestCheckIn_Rejections(t *testing.T) {
	env := newTestEnv(t)
	registerAlice(t, env)
	none := env.extractor.set("none.jpg")
	two := env.extractor.set("two.jpg", []float32{0, 0}, []float32{0.1, 0})
	stranger := env.extractor.set("stranger.jpg", []float32{5, 5})
	ok := env.extractor.set("ok.jpg", []float32{0, 0})

	tests := []struct {
		name  string
		img   Image
		shift string
		want  error
	}{
		{"no face", none, "morning", ErrNoFaceDetected},
		{"two faces", two, "morning", ErrMultipleFaces},
		{"stranger", stranger, "morning", ErrIdentityNotFound},
		{"missing shift", ok, " ", ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.CheckIn(context.Background(), tt.img, tt.shift)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
	if n := len(env.attendance.Events()); n != 0 {
		t.Errorf("expected no events, got %d", n)
	}
}

func TestCheckIn_NotifierFailureIsIgnored(t *testing.T) {
	env := newTestEnv(t)
	registerAlice(t, env)
	env.notifier.err = errors.New("broker down")
	probe := env.extractor.set("probe.jpg", []float32{0.1, 0})

	if _, err := env.svc.CheckIn(context.Background(), probe, "morning"); err != nil {
		t.Errorf("expected check-in to succeed, got %v", err)
	}
}

func TestCheckIn_StoreTimeout(t *testing.T) {
	env := newTestEnv(t)
	registerAlice(t, env)
	env.svc.storeTimeout = 20 * time.Millisecond
	env.attendance.Delay = time.Second
	probe := env.extractor.set("probe.jpg", []float32{0.1, 0})

	_, err := env.svc.CheckIn(context.Background(), probe, "morning")
	if !errors.Is(err, database.ErrStoreUnavailable) {
		t.Errorf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestCheckIn_ExtractTimeout(t *testing.T) {
	env := newTestEnv(t)
	registerAlice(t, env)
	env.svc.extractTimeout = 20 * time.Millisecond
	env.extractor.delay = time.Second
	probe := env.extractor.set("probe.jpg", []float32{0.1, 0})

	_, err := env.svc.CheckIn(context.Background(), probe, "morning")
	if !errors.Is(err, ErrExtractorUnavailable) {
		t.Errorf("expected ErrExtractorUnavailable, got %v", err)
	}
}

func TestPredict(t *testing.T) {
	env := newTestEnv(t)
	registerAlice(t, env)
	near := env.extractor.set("near.jpg", []float32{0.3, 0})

	result, err := env.svc.Predict(context.Background(), near)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if !result.Matched || result.StudentID != "S1" {
		t.Errorf("expected S1 match, got %+v", result)
	}

	env.svc.predictMatcher = facematch.NewBestMatchNearest(0.2)
	result, err = env.svc.Predict(context.Background(), near)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if result.Matched || result.Name != database.UnknownStudentName {
		t.Errorf("expected Unknown at threshold 0.2, got %+v", result)
	}
	if len(env.attendance.Events()) != 0 {
		t.Error("predict must not record attendance")
	}
}

func TestDeleteStudent_KeepsAttendance(t *testing.T) {
	env := newTestEnv(t)
	registerAlice(t, env)
	probe := env.extractor.set("probe.jpg", []float32{0.1, 0})
	if _, err := env.svc.CheckIn(context.Background(), probe, "morning"); err != nil {
		t.Fatalf("CheckIn: %v", err)
	}

	if err := env.svc.DeleteStudent(context.Background(), "S1"); err != nil {
		t.Fatalf("DeleteStudent: %v", err)
	}
	if err := env.svc.DeleteStudent(context.Background(), "S1"); !errors.Is(err, database.ErrRecordNotFound) {
		t.Errorf("expected ErrRecordNotFound on second delete, got %v", err)
	}

	rows, err := env.svc.Attendance(context.Background())
	if err != nil {
		t.Fatalf("Attendance: %v", err)
	}
	if len(rows) != 1 || rows[0].StudentName != database.UnknownStudentName {
		t.Errorf("expected one Unknown row, got %+v", rows)
	}

	_, err = env.svc.CheckIn(context.Background(), probe, "evening")
	if !errors.Is(err, ErrIdentityNotFound) {
		t.Errorf("expected deleted student not to match, got %v", err)
	}
}

func TestAttendance_NewestFirst(t *testing.T) {
	env := newTestEnv(t)
	registerAlice(t, env)
	probe := env.extractor.set("probe.jpg", []float32{0.1, 0})

	for _, shift := range []string{"first", "second"} {
		if _, err := env.svc.CheckIn(context.Background(), probe, shift); err != nil {
			t.Fatalf("CheckIn %s: %v", shift, err)
		}
		env.now = env.now.Add(time.Hour)
	}

	rows, err := env.svc.Attendance(context.Background())
	if err != nil {
		t.Fatalf("Attendance: %v", err)
	}
	if len(rows) != 2 || rows[0].Shift != "second" || rows[0].StudentName != "Alice" {
		t.Errorf("expected newest first with names, got %+v", rows)
	}
}

func TestDeleteAttendance(t *testing.T) {
	env := newTestEnv(t)
	registerAlice(t, env)
	probe := env.extractor.set("probe.jpg", []float32{0.1, 0})
	result, err := env.svc.CheckIn(context.Background(), probe, "morning")
	if err != nil {
		t.Fatalf("CheckIn: %v", err)
	}

	if err := env.svc.DeleteAttendance(context.Background(), result.EventID); err != nil {
		t.Fatalf("DeleteAttendance: %v", err)
	}
	if err := env.svc.DeleteAttendance(context.Background(), result.EventID); !errors.Is(err, database.ErrRecordNotFound) {
		t.Errorf("expected ErrRecordNotFound, got %v", err)
	}
	if _, err := env.svc.CheckIn(context.Background(), probe, "morning"); err != nil {
		t.Errorf("expected check-in to succeed after deletion, got %v", err)
	}
}

func TestStudents_Filter(t *testing.T) {
	env := newTestEnv(t)
	env.roster.AddProfile(database.StudentProfile{StudentID: "S1", Name: "Žofie Nováková"})
	env.roster.AddProfile(database.StudentProfile{StudentID: "S2", Name: "Bob"})

	all, err := env.svc.Students(context.Background(), "")
	if err != nil {
		t.Fatalf("Students: %v", err)
	}
	if len(all) != 2 || all[0].StudentID != "S1" {
		t.Errorf("expected both students in registration order, got %+v", all)
	}

	found, err := env.svc.Students(context.Background(), "zofie")
	if err != nil {
		t.Fatalf("Students: %v", err)
	}
	if len(found) != 1 || found[0].StudentID != "S1" {
		t.Errorf("expected diacritics-insensitive match, got %+v", found)
	}
}

func TestStudent_NotFound(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.svc.Student(context.Background(), "nope"); !errors.Is(err, database.ErrRecordNotFound) {
		t.Errorf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestStats(t *testing.T) {
	env := newTestEnv(t)
	registerAlice(t, env)
	probe := env.extractor.set("probe.jpg", []float32{0.1, 0})
	if _, err := env.svc.CheckIn(context.Background(), probe, "morning"); err != nil {
		t.Fatalf("CheckIn: %v", err)
	}
	env.now = env.now.AddDate(0, 0, 1)
	if _, err := env.svc.CheckIn(context.Background(), probe, "morning"); err != nil {
		t.Fatalf("CheckIn: %v", err)
	}

	// Counting must not page through the whole log.
	env.attendance.ListError = errors.New("ListAll called")

	stats, err := env.svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Students != 1 || stats.AttendanceEvents != 2 || stats.CheckInsToday != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if stats.Today != "2024-03-05" || stats.Timezone != "UTC" {
		t.Errorf("unexpected day %s in %s", stats.Today, stats.Timezone)
	}
}

func TestStats_TodayFollowsTimezone(t *testing.T) {
	env := newTestEnv(t)
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	env.svc.location = tokyo
	env.svc.recorder = NewRecorder(env.attendance, tokyo)
	registerAlice(t, env)
	probe := env.extractor.set("probe.jpg", []float32{0.1, 0})

	// 18:00 on March 4 in Tokyo.
	env.now = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	if _, err := env.svc.CheckIn(context.Background(), probe, "morning"); err != nil {
		t.Fatalf("CheckIn: %v", err)
	}
	// 05:00 on March 5 in Tokyo, still March 4 in UTC.
	env.now = time.Date(2024, 3, 4, 20, 0, 0, 0, time.UTC)
	if _, err := env.svc.CheckIn(context.Background(), probe, "morning"); err != nil {
		t.Fatalf("CheckIn: %v", err)
	}

	stats, err := env.svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Today != "2024-03-05" {
		t.Errorf("expected today 2024-03-05, got %s", stats.Today)
	}
	if stats.CheckInsToday != 1 || stats.AttendanceEvents != 2 {
		t.Errorf("expected 1 of 2 events today, got %+v", stats)
	}
}

func TestStats_StoreUnavailable(t *testing.T) {
	env := newTestEnv(t)
	env.attendance.CountError = database.ErrStoreUnavailable

	if _, err := env.svc.Stats(context.Background()); !errors.Is(err, database.ErrStoreUnavailable) {
		t.Errorf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestResultOf(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, metrics.ResultSuccess},
		{&DuplicateCheckInError{}, metrics.ResultDuplicate},
		{ErrIdentityNotFound, metrics.ResultNotFound},
		{database.ErrStoreUnavailable, metrics.ResultUnavailable},
		{&FaceCountError{Count: 0}, metrics.ResultRejected},
		{errors.New("boom"), metrics.ResultError},
	}
	for _, tt := range tests {
		if got := resultOf(tt.err); got != tt.want {
			t.Errorf("resultOf(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}
