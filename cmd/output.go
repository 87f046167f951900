package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
)

func outputJSON(data any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	return nil
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}

// readImageFile loads an image from disk, enforcing the upload ceiling the
// HTTP API applies.
func readImageFile(path string, cfg *config.Config) (attendance.Image, error) {
	info, err := os.Stat(path)
	if err != nil {
		return attendance.Image{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if info.Size() > cfg.Attendance.MaxUploadBytes {
		return attendance.Image{}, fmt.Errorf("file %s exceeds %d bytes: %w",
			path, cfg.Attendance.MaxUploadBytes, attendance.ErrInvalidInput)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return attendance.Image{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return attendance.Image{Ref: filepath.Base(path), Data: data}, nil
}

func readImages(paths []string, cfg *config.Config) ([]attendance.Image, error) {
	images := make([]attendance.Image, 0, len(paths))
	for _, p := range paths {
		img, err := readImageFile(p, cfg)
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, nil
}
