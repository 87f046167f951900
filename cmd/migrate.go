package cmd

import (
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Long: `Connect to DATABASE_URL and apply pending schema migrations.
Every other command migrates on startup as well; this one only migrates.`,
	Args: cobra.NoArgs,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	pool, err := initBackend(cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	fmt.Printf("Migrations applied (%s)\n", database.BackendName())
	return nil
}
