package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/tether/internal/config"
	"github.com/mschirtzinger/tether/internal/parity"
	"github.com/mschirtzinger/tether/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:   "sync <topic>",
	Short: "Synchronize a topic across the repository pair",
	Long: `Run the full synchronization sequence for a topic:

  1. Acquire the topic's advisory lock
  2. Preflight both repositories (branches, cleanliness)
  3. Pull with rebase, auto-merging thread document conflicts
  4. Re-pair the threads branch with the code branch
  5. Commit and push with bounded retry

Conflicts outside thread documents are never auto-resolved; they are
reported for manual resolution.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		topic := args[0]
		forceLock, _ := cmd.Flags().GetBool("force-lock")

		coord, _, err := setup(cmd.Context(), func(cfg *config.Config) {
			cfg.Lock.ForceBreak = forceLock
		})
		if err != nil {
			fatal(err)
		}

		result, err := coord.Sync(cmd.Context(), topic)
		if err != nil {
			fatal(err)
		}
		printResult(result)
	},
}

// printResult renders a coordinator outcome with a status glyph.
func printResult(result *parity.Result) {
	switch result.Status {
	case parity.StatusSynced:
		fmt.Printf("%s %s: %s\n", ui.RenderPass("✓"), result.Topic, result.Message)
	case parity.StatusConflict:
		fmt.Printf("%s %s: %s\n", ui.RenderFail("✗"), result.Topic, result.Message)
	case parity.StatusDrift:
		fmt.Printf("%s %s: %s\n", ui.RenderWarn("⚠"), result.Topic, result.Message)
	default:
		fmt.Printf("%s %s: %s\n", ui.RenderWarn("⚠"), result.Topic, result.Message)
	}
}

func init() {
	syncCmd.Flags().Bool("force-lock", false, "Break an existing lock regardless of age")
	rootCmd.AddCommand(syncCmd)
}
