package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/constants"
)

// AttendanceHandler handles check-in and attendance history endpoints.
type AttendanceHandler struct {
	service        *attendance.Service
	maxUploadBytes int64
}

// NewAttendanceHandler creates a new attendance handler.
func NewAttendanceHandler(svc *attendance.Service, maxUploadBytes int64) *AttendanceHandler {
	return &AttendanceHandler{service: svc, maxUploadBytes: maxUploadBytes}
}

// AttendanceResponse is one row of the attendance list.
type AttendanceResponse struct {
	ID          string    `json:"id"`
	StudentID   string    `json:"id_student"`
	StudentName string    `json:"student_name"`
	Date        time.Time `json:"date"`
	Day         string    `json:"day"`
	Shift       string    `json:"shift"`
	Status      string    `json:"status"`
}

// CheckInResponse describes a recorded check-in.
type CheckInResponse struct {
	Message   string    `json:"message"`
	Student   string    `json:"student"`
	StudentID string    `json:"student_id"`
	EventID   string    `json:"event_id"`
	Shift     string    `json:"shift"`
	Day       string    `json:"day"`
	Timestamp time.Time `json:"timestamp"`
}

// CheckIn identifies the face in `file` (or data URL `image`) and records
// attendance for `shift`.
func (h *AttendanceHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	form, err := parseUploadForm(w, r, h.maxUploadBytes*2+constants.MultipartMemory)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	img, err := form.image("file", "image", h.maxUploadBytes)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	result, err := h.service.CheckIn(r.Context(), img, form.value("shift"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, CheckInResponse{
		Message:   "Attendance recorded",
		Student:   result.StudentName,
		StudentID: result.StudentID,
		EventID:   result.EventID,
		Shift:     result.Shift,
		Day:       result.Day,
		Timestamp: result.Timestamp.In(h.service.Location()),
	})
}

// List returns all attendance events, newest first.
func (h *AttendanceHandler) List(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.Attendance(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	loc := h.service.Location()
	result := make([]AttendanceResponse, 0, len(rows))
	for _, row := range rows {
		result = append(result, AttendanceResponse{
			ID:          row.ID,
			StudentID:   row.StudentID,
			StudentName: row.StudentName,
			Date:        row.Timestamp.In(loc),
			Day:         row.Day,
			Shift:       row.Shift,
			Status:      row.Status,
		})
	}
	respondJSON(w, http.StatusOK, result)
}

// Delete removes one attendance event.
func (h *AttendanceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.DeleteAttendance(r.Context(), id); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"message": "Attendance deleted",
		"id":      id,
	})
}
