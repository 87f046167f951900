package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var studentCmd = &cobra.Command{
	Use:   "student",
	Short: "Manage the student roster",
}

var studentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered students",
	Args:  cobra.NoArgs,
	RunE:  runStudentList,
}

var studentShowCmd = &cobra.Command{
	Use:   "show <student-id>",
	Short: "Show a single student",
	Args:  cobra.ExactArgs(1),
	RunE:  runStudentShow,
}

var studentDeleteCmd = &cobra.Command{
	Use:   "delete <student-id>",
	Short: "Delete a student (attendance history is kept)",
	Args:  cobra.ExactArgs(1),
	RunE:  runStudentDelete,
}

var studentRegisterCmd = &cobra.Command{
	Use:   "register <student-id> <name> <image>...",
	Short: "Register a student from one or more face photos",
	Long: `Register a student from one or more face photos.
Every photo must contain exactly one face; otherwise nothing is stored.

Examples:
  face-attendance student register S1 "Alice Novak" alice1.jpg alice2.jpg`,
	Args: cobra.MinimumNArgs(3),
	RunE: runStudentRegister,
}

func init() {
	rootCmd.AddCommand(studentCmd)
	studentCmd.AddCommand(studentListCmd, studentShowCmd, studentDeleteCmd, studentRegisterCmd)

	studentListCmd.Flags().String("query", "", "Filter by name or student ID fragment")
	studentListCmd.Flags().Bool("json", false, "Output as JSON")
	studentShowCmd.Flags().Bool("json", false, "Output as JSON")
}

// StudentOutput is the CLI representation of a student.
type StudentOutput struct {
	StudentID string `json:"student_id"`
	Name      string `json:"name"`
	Images    int    `json:"images"`
	CreatedAt string `json:"created_at"`
}

func runStudentList(cmd *cobra.Command, args []string) error {
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

	students, err := a.service.Students(ctx, mustGetString(cmd, "query"))
	if err != nil {
		return fmt.Errorf("failed to list students: %w", err)
	}

	out := make([]StudentOutput, 0, len(students))
	for _, s := range students {
		out = append(out, StudentOutput{
			StudentID: s.StudentID,
			Name:      s.Name,
			Images:    len(s.Embeddings),
			CreatedAt: s.CreatedAt.Format("2006-01-02 15:04"),
		})
	}

	if mustGetBool(cmd, "json") {
		return outputJSON(out)
	}
	if len(out) == 0 {
		fmt.Println("No students registered.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tIMAGES\tREGISTERED")
	for _, s := range out {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", s.StudentID, s.Name, s.Images, s.CreatedAt)
	}
	w.Flush()
	fmt.Printf("\nTotal: %d students\n", len(out))
	return nil
}

func runStudentShow(cmd *cobra.Command, args []string) error {
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

	s, err := a.service.Student(ctx, args[0])
	if err != nil {
		return err
	}
	out := StudentOutput{
		StudentID: s.StudentID,
		Name:      s.Name,
		Images:    len(s.Embeddings),
		CreatedAt: s.CreatedAt.Format("2006-01-02 15:04"),
	}
	if mustGetBool(cmd, "json") {
		return outputJSON(out)
	}

	fmt.Printf("Student:    %s\n", out.StudentID)
	fmt.Printf("Name:       %s\n", out.Name)
	fmt.Printf("Images:     %d\n", out.Images)
	fmt.Printf("Registered: %s\n", out.CreatedAt)
	return nil
}

func runStudentDelete(cmd *cobra.Command, args []string) error {
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

	if err := a.service.DeleteStudent(ctx, args[0]); err != nil {
		return err
	}
	fmt.Printf("Deleted student %s\n", args[0])
	return nil
}

func runStudentRegister(cmd *cobra.Command, args []string) error {
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

	images, err := readImages(args[2:], cfg)
	if err != nil {
		return err
	}

	profile, err := a.service.Register(ctx, args[0], args[1], images)
	if err != nil {
		return err
	}
	fmt.Printf("Registered %s (%s) with %d images\n", profile.Name, profile.StudentID, len(profile.Embeddings))
	return nil
}
