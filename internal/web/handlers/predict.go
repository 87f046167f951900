package handlers

import (
	"math"
	"net/http"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/constants"
)

// PredictHandler identifies a face without recording attendance.
type PredictHandler struct {
	service        *attendance.Service
	maxUploadBytes int64
}

// NewPredictHandler creates a new predict handler.
func NewPredictHandler(svc *attendance.Service, maxUploadBytes int64) *PredictHandler {
	return &PredictHandler{service: svc, maxUploadBytes: maxUploadBytes}
}

// PredictResponse is the identification outcome. Distance is omitted when the
// roster held nothing comparable.
type PredictResponse struct {
	Matched   bool     `json:"matched"`
	StudentID string   `json:"student_id,omitempty"`
	Name      string   `json:"name"`
	Distance  *float64 `json:"distance,omitempty"`
}

// Predict handles POST /predict with `file` or data URL `image`.
func (h *PredictHandler) Predict(w http.ResponseWriter, r *http.Request) {
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

	result, err := h.service.Predict(r.Context(), img)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	resp := PredictResponse{
		Matched:   result.Matched,
		StudentID: result.StudentID,
		Name:      result.Name,
	}
	if !math.IsInf(result.Distance, 0) {
		d := result.Distance
		resp.Distance = &d
	}
	respondJSON(w, http.StatusOK, resp)
}
