package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/mariadb"
	"github.com/kozaktomas/face-attendance/internal/database/postgres"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/fingerprint"
	"github.com/kozaktomas/face-attendance/internal/metrics"
	"github.com/kozaktomas/face-attendance/internal/notify"
	"github.com/kozaktomas/face-attendance/internal/web/handlers"
	log "github.com/sirupsen/logrus"
)

// pinger is implemented by both database pools.
type pinger interface {
	Ping(ctx context.Context) error
	Close() error
}

// initBackend connects to DATABASE_URL, applies migrations and registers the
// matching backend. mysql:// URLs select MariaDB, everything else PostgreSQL.
func initBackend(cfg *config.Config) (pinger, error) {
	if cfg.Database.URL == "" {
		return nil, errors.New("DATABASE_URL environment variable is required")
	}

	if mariadb.IsMariaDBURL(cfg.Database.URL) {
		log.Info("Connecting to MariaDB database...")
		pool, err := mariadb.Initialize(&cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize MariaDB: %w", err)
		}
		return pool, nil
	}

	log.Info("Connecting to PostgreSQL database...")
	pool, err := postgres.Initialize(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	return pool, nil
}

// app bundles everything a command needs to run use cases.
type app struct {
	cfg       *config.Config
	pool      pinger
	extractor *fingerprint.EmbeddingClient
	service   *attendance.Service
	metrics   *metrics.Manager
	publisher *notify.Publisher
}

// newApp wires the service. withNotifier connects the MQTT publisher when a
// broker is configured.
func newApp(ctx context.Context, cfg *config.Config, withNotifier bool) (*app, error) {
	pool, err := initBackend(cfg)
	if err != nil {
		return nil, err
	}

	roster, err := database.GetRosterWriter(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to get roster store: %w", err)
	}
	attendanceStore, err := database.GetAttendanceWriter(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to get attendance store: %w", err)
	}

	loc, err := cfg.Attendance.Location()
	if err != nil {
		pool.Close()
		return nil, err
	}

	a := &app{
		cfg:       cfg,
		pool:      pool,
		extractor: fingerprint.NewEmbeddingClient(cfg.Embedding.URL, cfg.Embedding.Dim, cfg.Embedding.Timeout),
		metrics:   metrics.NewManager(),
	}

	opts := attendance.Options{
		Extractor:      a.extractor,
		Roster:         roster,
		Attendance:     attendanceStore,
		CheckInMatcher: facematch.NewThresholdFirstHit(cfg.Matching.Tolerance),
		PredictMatcher: predictMatcher(cfg.Matching),
		Location:       loc,
		ExtractTimeout: cfg.Embedding.Timeout,
		StoreTimeout:   cfg.Database.Timeout,
		Metrics:        a.metrics,
	}

	if withNotifier {
		a.publisher, err = notify.NewPublisher(cfg.MQTT)
		if err != nil {
			log.WithError(err).Warn("MQTT notifications disabled")
		}
		if a.publisher != nil {
			opts.Notifier = a.publisher
		}
	}

	a.service = attendance.NewService(opts)
	log.WithFields(log.Fields{
		"backend":  database.BackendName(),
		"timezone": loc.String(),
		"predict":  opts.PredictMatcher.Policy(),
	}).Info("Attendance service ready")
	return a, nil
}

func predictMatcher(cfg config.MatchingConfig) facematch.Matcher {
	if cfg.Index == config.MatchIndexHNSW {
		return facematch.NewIndexedNearest(cfg.PredictThreshold)
	}
	return facematch.NewBestMatchNearest(cfg.PredictThreshold)
}

// healthChecks returns the dependency probes reported by /health.
func (a *app) healthChecks() map[string]handlers.HealthCheck {
	return map[string]handlers.HealthCheck{
		"database":  a.pool.Ping,
		"embedding": a.extractor.Health,
	}
}

// Close releases the database pool and the MQTT connection.
func (a *app) Close() {
	a.publisher.Close()
	if err := a.pool.Close(); err != nil {
		log.WithError(err).Warn("Failed to close database pool")
	}
}

// commandContext bounds a one-shot CLI command.
func commandContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Minute)
}
