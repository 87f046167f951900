package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/schollz/progressbar/v3"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll <dir>",
	Short: "Bulk-register students from a directory of photos",
	Long: `Bulk-register students from a directory tree.

Every subdirectory is one student, named "<student-id>_<name>" with
underscores in the name standing for spaces. All images inside it are the
student's enrollment photos, used in file name order.

Examples:
  # dir/S1_Alice_Novak/1.jpg, dir/S1_Alice_Novak/2.jpg, dir/S2_Bob/front.png
  face-attendance enroll ./photos

  # JSON output for scripting
  face-attendance enroll ./photos --json`,
	Args: cobra.ExactArgs(1),
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().Int("concurrency", constants.WorkerPoolSize, "Number of parallel workers")
	enrollCmd.Flags().Bool("json", false, "Output as JSON instead of progress bar")
}

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".webp"}

// enrollment is one student directory.
type enrollment struct {
	StudentID string
	Name      string
	Images    []string
}

// EnrollFailure describes a student that could not be registered.
type EnrollFailure struct {
	StudentID string `json:"student_id"`
	Error     string `json:"error"`
}

// EnrollResult represents the result of a bulk enrollment
type EnrollResult struct {
	Success       bool            `json:"success"`
	Students      int             `json:"students"`
	Registered    int             `json:"registered"`
	Skipped       int             `json:"skipped"`
	Failed        []EnrollFailure `json:"failed,omitempty"`
	DurationMs    int64           `json:"duration_ms"`
	DurationHuman string          `json:"duration_human,omitempty"`
}

// parseStudentDir splits "<id>_<name>" into its parts.
func parseStudentDir(dir string) (string, string, bool) {
	id, name, ok := strings.Cut(dir, "_")
	id = strings.TrimSpace(id)
	name = strings.TrimSpace(strings.ReplaceAll(name, "_", " "))
	if !ok || id == "" || name == "" {
		return "", "", false
	}
	return id, name, true
}

// collectEnrollments scans root for student directories. Directories that do
// not follow the naming scheme or contain no images are skipped with a warning.
func collectEnrollments(root string) ([]enrollment, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", root, err)
	}

	var out []enrollment
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		id, name, ok := parseStudentDir(entry.Name())
		if !ok {
			log.WithField("dir", entry.Name()).Warn("Skipping directory not named <id>_<name>")
			continue
		}

		files, err := os.ReadDir(filepath.Join(root, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", entry.Name(), err)
		}
		e := enrollment{StudentID: id, Name: name}
		for _, f := range files {
			ext := strings.ToLower(filepath.Ext(f.Name()))
			if f.IsDir() || !slices.Contains(imageExtensions, ext) {
				continue
			}
			e.Images = append(e.Images, filepath.Join(root, entry.Name(), f.Name()))
		}
		if len(e.Images) == 0 {
			log.WithField("dir", entry.Name()).Warn("Skipping directory without images")
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func runEnroll(cmd *cobra.Command, args []string) error {
	concurrency := max(1, mustGetInt(cmd, "concurrency"))
	jsonOutput := mustGetBool(cmd, "json")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	startTime := time.Now()

	enrollments, err := collectEnrollments(args[0])
	if err != nil {
		return err
	}
	if len(enrollments) == 0 {
		if jsonOutput {
			return outputJSON(EnrollResult{Success: true})
		}
		fmt.Println("No student directories found.")
		return nil
	}

	ctx := context.Background()
	a, err := newApp(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer a.Close()

	if !jsonOutput {
		fmt.Printf("Found %d students to enroll\n\n", len(enrollments))
	}

	var bar *progressbar.ProgressBar
	if !jsonOutput {
		bar = progressbar.NewOptions(len(enrollments),
			progressbar.OptionSetDescription("Enrolling"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("students"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionFullWidth(),
		)
	}

	var registered, skipped int64
	var mu sync.Mutex
	var failed []EnrollFailure
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for _, e := range enrollments {
		wg.Add(1)
		go func(e enrollment) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			err := enrollStudent(ctx, a.service, e, cfg)
			switch {
			case err == nil:
				atomic.AddInt64(&registered, 1)
			case errors.Is(err, database.ErrDuplicateStudent):
				atomic.AddInt64(&skipped, 1)
			default:
				mu.Lock()
				failed = append(failed, EnrollFailure{StudentID: e.StudentID, Error: err.Error()})
				mu.Unlock()
			}

			if bar != nil {
				bar.Add(1)
			}
		}(e)
	}

	wg.Wait()

	if bar != nil {
		fmt.Println()
	}

	slices.SortFunc(failed, func(x, y EnrollFailure) int { return strings.Compare(x.StudentID, y.StudentID) })
	duration := time.Since(startTime)
	result := EnrollResult{
		Success:       len(failed) == 0,
		Students:      len(enrollments),
		Registered:    int(registered),
		Skipped:       int(skipped),
		Failed:        failed,
		DurationMs:    duration.Milliseconds(),
		DurationHuman: formatDuration(duration),
	}

	if jsonOutput {
		result.DurationHuman = ""
		return outputJSON(result)
	}

	fmt.Println("\nEnrollment complete!")
	fmt.Printf("  Students:   %d\n", result.Students)
	fmt.Printf("  Registered: %d\n", result.Registered)
	if result.Skipped > 0 {
		fmt.Printf("  Skipped:    %d (already registered)\n", result.Skipped)
	}
	for _, f := range result.Failed {
		fmt.Printf("  Failed:     %s: %s\n", f.StudentID, f.Error)
	}
	fmt.Printf("  Duration:   %s\n", result.DurationHuman)
	return nil
}

func enrollStudent(ctx context.Context, svc *attendance.Service, e enrollment, cfg *config.Config) error {
	images, err := readImages(e.Images, cfg)
	if err != nil {
		return err
	}
	_, err = svc.Register(ctx, e.StudentID, e.Name, images)
	return err
}
