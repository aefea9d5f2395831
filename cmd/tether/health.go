package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/tether/internal/parity"
	"github.com/mschirtzinger/tether/internal/ui"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Report sync health across all topics",
	Long: `Aggregate persisted parity state and live locks into an operator
report: per-topic status, held locks, and the most recent successful
sync. Read-only; never touches either repository.`,
	Run: func(cmd *cobra.Command, args []string) {
		coord, _, err := setup(cmd.Context())
		if err != nil {
			fatal(err)
		}

		report, err := coord.Health()
		if err != nil {
			fatal(err)
		}

		if len(report.Topics) == 0 {
			fmt.Printf("%s No topics tracked yet\n", ui.RenderDim("·"))
			return
		}

		fmt.Printf("%s Topic health\n\n", ui.RenderAccent("📊"))
		for _, row := range report.Topics {
			fmt.Printf("   %s %s", healthGlyph(row.Status), row.Topic)
			if row.Locked {
				fmt.Printf(" %s", ui.RenderWarn("[locked: "+row.LockHolder+"]"))
			}
			if row.LastError != "" {
				fmt.Printf(" %s", ui.RenderDim(row.LastError))
			}
			fmt.Println()
		}

		fmt.Printf("\n   Synced: %d  Dirty: %d  Drifted: %d  Conflicted: %d  Failed: %d  Locked: %d\n",
			report.Synced, report.Dirty, report.Drifted, report.Conflicted, report.Failed, report.Locked)
		if !report.LastSync.IsZero() {
			fmt.Printf("   Last successful sync: %s\n", report.LastSync.Local().Format(time.RFC822))
		}
	},
}

// healthGlyph maps a parity status to its display glyph.
func healthGlyph(status parity.Status) string {
	switch status {
	case parity.StatusSynced:
		return ui.RenderPass("✓")
	case parity.StatusConflict:
		return ui.RenderFail("✗")
	case parity.StatusDrift, parity.StatusDirty:
		return ui.RenderWarn("⚠")
	case parity.StatusFailed:
		return ui.RenderFail("✗")
	default:
		return ui.RenderDim("·")
	}
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
