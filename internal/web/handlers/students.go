package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
)

// StudentsHandler handles roster endpoints.
type StudentsHandler struct {
	service        *attendance.Service
	maxUploadBytes int64
}

// NewStudentsHandler creates a new students handler.
func NewStudentsHandler(svc *attendance.Service, maxUploadBytes int64) *StudentsHandler {
	return &StudentsHandler{service: svc, maxUploadBytes: maxUploadBytes}
}

// StudentResponse represents a student in API responses. Embeddings are
// never returned.
type StudentResponse struct {
	StudentID string    `json:"student_id"`
	Name      string    `json:"name"`
	Images    int       `json:"images"`
	CreatedAt time.Time `json:"created_at"`
}

func studentToResponse(p database.StudentProfile) StudentResponse {
	return StudentResponse{
		StudentID: p.StudentID,
		Name:      p.Name,
		Images:    len(p.Embeddings),
		CreatedAt: p.CreatedAt,
	}
}

// List returns the roster, optionally filtered by ?q= name or ID fragment.
func (h *StudentsHandler) List(w http.ResponseWriter, r *http.Request) {
	students, err := h.service.Students(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	result := make([]StudentResponse, 0, len(students))
	for _, s := range students {
		result = append(result, studentToResponse(s))
	}
	respondJSON(w, http.StatusOK, result)
}

// Get returns a single student.
func (h *StudentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	student, err := h.service.Student(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, studentToResponse(*student))
}

// Delete removes a student. Attendance history is kept.
func (h *StudentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.DeleteStudent(r.Context(), id); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"message":    "Student deleted",
		"student_id": id,
	})
}

// Register enrolls a student from multipart student_id, name and image_files.
func (h *StudentsHandler) Register(w http.ResponseWriter, r *http.Request) {
	form, err := parseUploadForm(w, r, h.maxUploadBytes*constants.MaxRegisterImages+constants.MultipartMemory)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	if err := attendance.ValidateRegistration(form.value("student_id"), form.value("name"),
		len(form.files["image_files"])); err != nil {
		respondServiceError(w, r, err)
		return
	}

	images, err := form.images("image_files", h.maxUploadBytes)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	profile, err := h.service.Register(r.Context(), form.value("student_id"), form.value("name"), images)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"message":    "Student registered successfully",
		"student_id": profile.StudentID,
		"name":       profile.Name,
		"images":     len(profile.Embeddings),
	})
}
