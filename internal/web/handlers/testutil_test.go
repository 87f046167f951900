package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/mock"
)

const testMaxUpload = 1 << 20

var pngMagic = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

// fakeExtractor returns the faces registered for an image's bytes.
type fakeExtractor struct {
	faces map[string][][]float32
	err   error
}

func (f *fakeExtractor) ExtractFaces(ctx context.Context, image []byte) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.faces[string(image)], nil
}

type testEnv struct {
	service    *attendance.Service
	extractor  *fakeExtractor
	roster     *mock.MockRosterStore
	attendance *mock.MockAttendanceStore
}

// newTestEnv creates a service over mock stores with a fixed clock
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		extractor:  &fakeExtractor{faces: make(map[string][][]float32)},
		roster:     mock.NewMockRosterStore(),
		attendance: mock.NewMockAttendanceStore(),
	}
	env.service = attendance.NewService(attendance.Options{
		Extractor:  env.extractor,
		Roster:     env.roster,
		Attendance: env.attendance,
		Normalize:  func(b []byte) ([]byte, error) { return b, nil },
		Now:        func() time.Time { return time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC) },
	})
	return env
}

// image returns PNG-looking bytes whose extraction yields faces
func (env *testEnv) image(tag string, faces ...[]float32) []byte {
	data := append(append([]byte{}, pngMagic...), tag...)
	env.extractor.faces[string(data)] = faces
	return data
}

func (env *testEnv) addStudent(id, name string, embedding ...float32) {
	env.roster.AddProfile(database.StudentProfile{
		StudentID:  id,
		Name:       name,
		Embeddings: [][]float32{embedding},
	})
}

type testFile struct {
	field string
	name  string
	data  []byte
}

// multipartRequest builds a multipart POST request
func multipartRequest(t *testing.T, path string, fields map[string]string, files ...testFile) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	for _, f := range files {
		part, err := mw.CreateFormFile(f.field, f.name)
		if err != nil {
			t.Fatal(err)
		}
		part.Write(f.data)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// jsonRequest builds a POST request with a JSON body
func jsonRequest(t *testing.T, path string, body any) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
