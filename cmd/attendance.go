package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var attendanceCmd = &cobra.Command{
	Use:   "attendance",
	Short: "Inspect and edit attendance records",
}

var attendanceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List attendance events, newest first",
	Args:  cobra.NoArgs,
	RunE:  runAttendanceList,
}

var attendanceDeleteCmd = &cobra.Command{
	Use:   "delete <event-id>",
	Short: "Delete an attendance event",
	Args:  cobra.ExactArgs(1),
	RunE:  runAttendanceDelete,
}

func init() {
	rootCmd.AddCommand(attendanceCmd)
	attendanceCmd.AddCommand(attendanceListCmd, attendanceDeleteCmd)

	attendanceListCmd.Flags().Int("limit", 0, "Show at most this many events (0 = all)")
	attendanceListCmd.Flags().Bool("json", false, "Output as JSON")
}

// AttendanceOutput is the CLI representation of an attendance event.
type AttendanceOutput struct {
	ID          string `json:"id"`
	StudentID   string `json:"student_id"`
	StudentName string `json:"student_name"`
	Timestamp   string `json:"timestamp"`
	Day         string `json:"day"`
	Shift       string `json:"shift"`
	Status      string `json:"status"`
}

func runAttendanceList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext()
	defer cancel()

	a, err := newApp(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer a.Close()

	rows, err := a.service.Attendance(ctx)
	if err != nil {
		return fmt.Errorf("failed to list attendance: %w", err)
	}
	if limit := mustGetInt(cmd, "limit"); limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}

	loc := a.service.Location()
	out := make([]AttendanceOutput, 0, len(rows))
	for _, r := range rows {
		out = append(out, AttendanceOutput{
			ID:          r.ID,
			StudentID:   r.StudentID,
			StudentName: r.StudentName,
			Timestamp:   r.Timestamp.In(loc).Format("2006-01-02 15:04:05"),
			Day:         r.Day,
			Shift:       r.Shift,
			Status:      r.Status,
		})
	}

	if mustGetBool(cmd, "json") {
		return outputJSON(out)
	}
	if len(out) == 0 {
		fmt.Println("No attendance recorded.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tSTUDENT\tNAME\tSHIFT\tSTATUS\tID")
	for _, r := range out {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", r.Timestamp, r.StudentID, r.StudentName, r.Shift, r.Status, r.ID)
	}
	w.Flush()
	return nil
}

func runAttendanceDelete(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext()
	defer cancel()

	a, err := newApp(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.service.DeleteAttendance(ctx, args[0]); err != nil {
		return err
	}
	fmt.Printf("Deleted attendance event %s\n", args[0])
	return nil
}
