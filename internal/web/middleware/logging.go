package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/kozaktomas/face-attendance/internal/metrics"
	log "github.com/sirupsen/logrus"
)

// RequestLogger logs every request through logrus and records it in m.
// Requests are labelled by route pattern so path parameters do not explode
// metric cardinality.
func RequestLogger(m *metrics.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			duration := time.Since(start)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			m.HTTPRequest(r.Method, route, status, duration)

			entry := log.WithFields(log.Fields{
				"method":     r.Method,
				"route":      route,
				"status":     status,
				"bytes":      ww.BytesWritten(),
				"duration":   duration.String(),
				"remote":     r.RemoteAddr,
				"request_id": chiMiddleware.GetReqID(r.Context()),
			})
			switch {
			case status >= http.StatusInternalServerError:
				entry.Error("HTTP request")
			case status >= http.StatusBadRequest:
				entry.Info("HTTP request")
			default:
				entry.Debug("HTTP request")
			}
		})
	}
}
