package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-attendance/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	maxUpload := s.config.Attendance.MaxUploadBytes

	healthHandler := handlers.NewHealthHandler(s.checks)
	studentsHandler := handlers.NewStudentsHandler(s.service, maxUpload)
	attendanceHandler := handlers.NewAttendanceHandler(s.service, maxUpload)
	predictHandler := handlers.NewPredictHandler(s.service, maxUpload)
	statsHandler := handlers.NewStatsHandler(s.service)

	s.router.Get("/metrics", s.metrics.Handler().ServeHTTP)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.Get)
		r.Get("/metrics", s.metrics.Handler().ServeHTTP)

		// Roster
		r.Get("/students", studentsHandler.List)
		r.Get("/students/{id}", studentsHandler.Get)
		r.Delete("/students/{id}", studentsHandler.Delete)
		r.Post("/register", studentsHandler.Register)

		// Attendance
		r.Post("/attendance/checkin", attendanceHandler.CheckIn)
		r.Get("/attendance", attendanceHandler.List)
		r.Delete("/attendance/{id}", attendanceHandler.Delete)

		r.Post("/predict", predictHandler.Predict)
		r.Get("/stats", statsHandler.Get)
	})

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"not found"}` + "\n"))
	})
}
