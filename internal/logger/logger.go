package logger

import (
	"io"
	"os"
	"path/filepath"

	"github.com/kozaktomas/face-attendance/internal/config"
	log "github.com/sirupsen/logrus"
)

// Init configures the global logrus logger. Output always goes to stdout and
// additionally to cfg.File when set.
func Init(cfg config.LogConfig) error {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		log.Warnf("Invalid log level '%s', defaulting to 'info': %v", cfg.Level, err)
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if cfg.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	writers := []io.Writer{os.Stdout}
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o750); err != nil {
			log.Errorf("Failed to create log directory for '%s': %v", cfg.File, err)
		} else {
			file, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
			if err != nil {
				log.Errorf("Failed to open log file '%s': %v", cfg.File, err)
			} else {
				writers = append(writers, file)
			}
		}
	}
	log.SetOutput(io.MultiWriter(writers...))

	log.WithFields(log.Fields{"level": level.String(), "format": cfg.Format}).Debug("Logger initialized")
	return nil
}
