// Package metrics provides Prometheus metrics for the attendance service.
package metrics

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result label values.
const (
	ResultSuccess     = "success"
	ResultDuplicate   = "duplicate"
	ResultNotFound    = "not_found"
	ResultRejected    = "rejected"
	ResultUnavailable = "unavailable"
	ResultError       = "error"
)

// Manager owns the service metrics. A nil *Manager is valid and records nothing.
type Manager struct {
	namespace string
	registry  *prometheus.Registry

	checkIns         *prometheus.CounterVec
	registrations    *prometheus.CounterVec
	matches          *prometheus.CounterVec
	matchDistance    *prometheus.HistogramVec
	extractionTime   prometheus.Histogram
	rosterSize       prometheus.Gauge
	httpRequests     *prometheus.CounterVec
	httpRequestTimes *prometheus.HistogramVec
}

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithNamespace sets the namespace for all metrics.
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithRegistry registers the metrics on registry instead of a fresh one.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(m *Manager) {
		if registry != nil {
			m.registry = registry
		}
	}
}

// NewManager creates the metrics on a custom registry, so the default Go
// runtime collectors are only exported when explicitly added.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace: "face_attendance",
		registry:  prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}

	auto := promauto.With(m.registry)

	m.checkIns = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "checkins_total",
		Help:      "Check-in attempts by outcome",
	}, []string{"result"})

	m.registrations = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "registrations_total",
		Help:      "Registration attempts by outcome",
	}, []string{"result"})

	m.matches = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "matches_total",
		Help:      "Identity matches by policy and outcome",
	}, []string{"policy", "result"})

	m.matchDistance = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "match_distance",
		Help:      "Closest embedding distance seen per match",
		Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 1.0, 1.5},
	}, []string{"policy"})

	m.extractionTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "extraction_duration_seconds",
		Help:      "Latency of embedding extraction calls",
		Buckets:   prometheus.DefBuckets,
	})

	m.rosterSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "roster_students",
		Help:      "Number of students in the roster at the last scan",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route and status code",
	}, []string{"method", "route", "status"})

	m.httpRequestTimes = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	return m
}

// Registry returns the registry the metrics are registered on.
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Manager) CheckIn(result string) {
	if m == nil {
		return
	}
	m.checkIns.WithLabelValues(result).Inc()
}

func (m *Manager) Registration(result string) {
	if m == nil {
		return
	}
	m.registrations.WithLabelValues(result).Inc()
}

// Match records a matcher decision. Infinite distances (nothing comparable)
// are counted but not observed.
func (m *Manager) Match(policy string, matched bool, distance float64) {
	if m == nil {
		return
	}
	result := "no_match"
	if matched {
		result = "match"
	}
	m.matches.WithLabelValues(policy, result).Inc()
	if !math.IsInf(distance, 0) && !math.IsNaN(distance) {
		m.matchDistance.WithLabelValues(policy).Observe(distance)
	}
}

func (m *Manager) Extraction(d time.Duration) {
	if m == nil {
		return
	}
	m.extractionTime.Observe(d.Seconds())
}

func (m *Manager) RosterSize(n int) {
	if m == nil {
		return
	}
	m.rosterSize.Set(float64(n))
}

func (m *Manager) HTTPRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpRequestTimes.WithLabelValues(method, route).Observe(d.Seconds())
}
