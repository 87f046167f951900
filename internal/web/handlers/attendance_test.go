package handlers

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAttendanceHandler_CheckIn(t *testing.T) {
	env := newTestEnv(t)
	env.addStudent("S1", "Alice", 0, 0)
	h := NewAttendanceHandler(env.service, testMaxUpload)

	req := multipartRequest(t, "/api/v1/attendance/checkin",
		map[string]string{"shift": "morning"},
		testFile{"file", "probe.jpg", env.image("probe", []float32{0.3, 0})},
	)
	recorder := httptest.NewRecorder()
	h.CheckIn(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	var result CheckInResponse
	parseJSONResponse(t, recorder, &result)
	if result.Student != "Alice" || result.Shift != "morning" || result.Day != "2024-03-04" {
		t.Errorf("unexpected response %+v", result)
	}
	if result.EventID == "" {
		t.Error("expected event id")
	}

	recorder = httptest.NewRecorder()
	h.CheckIn(recorder, multipartRequest(t, "/api/v1/attendance/checkin",
		map[string]string{"shift": "morning"},
		testFile{"file", "probe.jpg", env.image("probe", []float32{0.3, 0})},
	))
	assertStatusCode(t, recorder, http.StatusConflict)
	assertJSONError(t, recorder, "Alice already checked in for shift morning on 2024-03-04")
}

func TestAttendanceHandler_CheckIn_DataURL(t *testing.T) {
	env := newTestEnv(t)
	env.addStudent("S1", "Alice", 0, 0)
	h := NewAttendanceHandler(env.service, testMaxUpload)
	data := env.image("capture", []float32{0.1, 0})

	recorder := httptest.NewRecorder()
	h.CheckIn(recorder, jsonRequest(t, "/api/v1/attendance/checkin", map[string]string{
		"image": "data:image/png;base64," + base64.StdEncoding.EncodeToString(data),
		"shift": "evening",
	}))

	assertStatusCode(t, recorder, http.StatusOK)
	if n := len(env.attendance.Events()); n != 1 {
		t.Errorf("expected one event, got %d", n)
	}
}

func TestAttendanceHandler_CheckIn_Errors(t *testing.T) {
	tests := []struct {
		name       string
		shift      string
		faces      [][]float32
		noFile     bool
		wantStatus int
		wantError  string
	}{
		{"no face", "morning", nil, false, http.StatusBadRequest, "no face detected in probe.jpg"},
		{"two faces", "morning", [][]float32{{0, 0}, {0, 0}}, false, http.StatusBadRequest, "multiple faces detected in probe.jpg (2)"},
		{"stranger", "morning", [][]float32{{9, 9}}, false, http.StatusNotFound, "student not found"},
		{"missing shift", "", [][]float32{{0, 0}}, false, http.StatusBadRequest, "shift is required: invalid input"},
		{"missing image", "morning", nil, true, http.StatusBadRequest, "image is required: invalid input"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.addStudent("S1", "Alice", 0, 0)
			h := NewAttendanceHandler(env.service, testMaxUpload)

			var files []testFile
			if !tt.noFile {
				files = append(files, testFile{"file", "probe.jpg", env.image("probe", tt.faces...)})
			}
			recorder := httptest.NewRecorder()
			h.CheckIn(recorder, multipartRequest(t, "/api/v1/attendance/checkin", map[string]string{"shift": tt.shift}, files...))

			assertStatusCode(t, recorder, tt.wantStatus)
			assertJSONError(t, recorder, tt.wantError)
			if n := len(env.attendance.Events()); n != 0 {
				t.Errorf("expected no events, got %d", n)
			}
		})
	}
}

func TestAttendanceHandler_CheckIn_ExtractorDown(t *testing.T) {
	env := newTestEnv(t)
	env.addStudent("S1", "Alice", 0, 0)
	env.extractor.err = errExtractorDown
	h := NewAttendanceHandler(env.service, testMaxUpload)

	recorder := httptest.NewRecorder()
	h.CheckIn(recorder, multipartRequest(t, "/api/v1/attendance/checkin",
		map[string]string{"shift": "morning"},
		testFile{"file", "probe.jpg", env.image("probe", []float32{0, 0})},
	))

	assertStatusCode(t, recorder, http.StatusServiceUnavailable)
	assertJSONError(t, recorder, errUnavailable)
}

func TestAttendanceHandler_ListAndDelete(t *testing.T) {
	env := newTestEnv(t)
	env.addStudent("S1", "Alice", 0, 0)
	h := NewAttendanceHandler(env.service, testMaxUpload)

	recorder := httptest.NewRecorder()
	h.CheckIn(recorder, multipartRequest(t, "/api/v1/attendance/checkin",
		map[string]string{"shift": "morning"},
		testFile{"file", "probe.jpg", env.image("probe", []float32{0, 0})},
	))
	assertStatusCode(t, recorder, http.StatusOK)
	if _, err := env.roster.Delete(t.Context(), "S1"); err != nil {
		t.Fatal(err)
	}

	recorder = httptest.NewRecorder()
	h.List(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/attendance", nil))
	assertStatusCode(t, recorder, http.StatusOK)

	var rows []AttendanceResponse
	parseJSONResponse(t, recorder, &rows)
	if len(rows) != 1 {
		t.Fatalf("expected one row, got %d", len(rows))
	}
	if rows[0].StudentID != "S1" || rows[0].StudentName != "Unknown" || rows[0].Status != "Present" {
		t.Errorf("unexpected row %+v", rows[0])
	}

	req := requestWithChiParams(httptest.NewRequest(http.MethodDelete, "/api/v1/attendance/"+rows[0].ID, nil),
		map[string]string{"id": rows[0].ID})
	recorder = httptest.NewRecorder()
	h.Delete(recorder, req)
	assertStatusCode(t, recorder, http.StatusOK)

	recorder = httptest.NewRecorder()
	h.Delete(recorder, req)
	assertStatusCode(t, recorder, http.StatusNotFound)
}
