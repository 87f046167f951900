package cmd

import (
	"fmt"
	"math"

	"github.com/spf13/cobra"
)

var checkinCmd = &cobra.Command{
	Use:   "checkin <image>",
	Short: "Record attendance from a photo",
	Args:  cobra.ExactArgs(1),
	RunE:  runCheckin,
}

var predictCmd = &cobra.Command{
	Use:   "predict <image>",
	Short: "Identify the face in a photo without recording attendance",
	Args:  cobra.ExactArgs(1),
	RunE:  runPredict,
}

func init() {
	rootCmd.AddCommand(checkinCmd, predictCmd)

	checkinCmd.Flags().String("shift", "", "Shift to check in for (required)")
	checkinCmd.MarkFlagRequired("shift")
	checkinCmd.Flags().Bool("json", false, "Output as JSON")
	predictCmd.Flags().Bool("json", false, "Output as JSON")
}

func runCheckin(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext()
	defer cancel()

	img, err := readImageFile(args[0], cfg)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.service.CheckIn(ctx, img, mustGetString(cmd, "shift"))
	if err != nil {
		return err
	}

	if mustGetBool(cmd, "json") {
		return outputJSON(result)
	}
	fmt.Printf("Attendance recorded for %s (%s), shift %s on %s\n",
		result.StudentName, result.StudentID, result.Shift, result.Day)
	return nil
}

// PredictOutput is the CLI representation of a prediction.
type PredictOutput struct {
	Matched   bool     `json:"matched"`
	StudentID string   `json:"student_id,omitempty"`
	Name      string   `json:"name"`
	Distance  *float64 `json:"distance,omitempty"`
}

func runPredict(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext()
	defer cancel()

	img, err := readImageFile(args[0], cfg)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.service.Predict(ctx, img)
	if err != nil {
		return err
	}

	out := PredictOutput{Matched: result.Matched, StudentID: result.StudentID, Name: result.Name}
	if !math.IsInf(result.Distance, 0) {
		out.Distance = &result.Distance
	}
	if mustGetBool(cmd, "json") {
		return outputJSON(out)
	}

	if !out.Matched {
		fmt.Println("Unknown")
		return nil
	}
	fmt.Printf("%s (%s), distance %.4f\n", out.Name, out.StudentID, *out.Distance)
	return nil
}
