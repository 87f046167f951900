package cmd

import (
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func TestFlagValue(t *testing.T) {
	c := &cobra.Command{Use: "checkin"}
	c.Flags().String("shift", "", "")
	c.Flags().Int("limit", 0, "")
	c.Flags().Bool("json", false, "")
	if err := c.Flags().Parse([]string{"--shift", "morning", "--limit", "5", "--json"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	if got := mustGetString(c, "shift"); got != "morning" {
		t.Errorf("expected shift morning, got %q", got)
	}
	if got := mustGetInt(c, "limit"); got != 5 {
		t.Errorf("expected limit 5, got %d", got)
	}
	if !mustGetBool(c, "json") {
		t.Error("expected json flag to be set")
	}
}

func TestFlagValue_PanicsOnUnknownFlag(t *testing.T) {
	c := &cobra.Command{Use: "checkin"}
	c.Flags().String("shift", "", "")

	defer func() {
		r := recover()
		msg, _ := r.(string)
		if !strings.Contains(msg, "checkin: flag --limit") {
			t.Errorf("expected panic naming the flag, got %v", r)
		}
	}()
	mustGetInt(c, "limit")
}
