package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// flagValue reads a flag registered in init(). A lookup failure is a wiring
// bug in this package, so it panics with the command path.
func flagValue[T any](cmd *cobra.Command, name string, get func(string) (T, error)) T {
	val, err := get(name)
	if err != nil {
		panic(fmt.Sprintf("%s: flag --%s: %v", cmd.CommandPath(), name, err))
	}
	return val
}

func mustGetBool(cmd *cobra.Command, name string) bool {
	return flagValue(cmd, name, cmd.Flags().GetBool)
}

func mustGetInt(cmd *cobra.Command, name string) int {
	return flagValue(cmd, name, cmd.Flags().GetInt)
}

func mustGetString(cmd *cobra.Command, name string) string {
	return flagValue(cmd, name, cmd.Flags().GetString)
}
