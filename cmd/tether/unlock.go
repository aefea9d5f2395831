package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/tether/internal/lock"
	"github.com/mschirtzinger/tether/internal/ui"
)

var unlockCmd = &cobra.Command{
	Use:   "unlock <topic>",
	Short: "Inspect and clear a topic's advisory lock",
	Long: `Report the topic's lock file (holder, age, staleness) and remove it
when safe. A stale lock is removed automatically; a live lock is left
in place unless --force is given.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		topic := args[0]
		force, _ := cmd.Flags().GetBool("force")

		coord, cfg, err := setup(cmd.Context())
		if err != nil {
			fatal(err)
		}

		lockPath := coord.LockPath(topic)
		info, err := lock.Inspect(lockPath, cfg.Lock.TTL)
		if err != nil {
			fatal(err)
		}

		if !info.Exists {
			fmt.Printf("%s No lock present for %s\n", ui.RenderPass("✓"), topic)
			return
		}

		fmt.Printf("%s Lock for %s\n", ui.RenderAccent("🔒"), topic)
		fmt.Printf("   Path:   %s\n", info.Path)
		fmt.Printf("   Holder: %s\n", info.Contents)
		fmt.Printf("   Age:    %s\n", info.Age.Round(time.Second))
		if info.Stale {
			fmt.Printf("   %s stale (older than %s)\n", ui.RenderWarn("⚠"), cfg.Lock.TTL)
		}

		if !info.Stale && !force {
			fmt.Printf("\n%s Lock appears live; use --force to remove it anyway\n", ui.RenderWarn("⚠"))
			return
		}

		if err := lock.Release(lockPath); err != nil {
			fatal(err)
		}
		fmt.Printf("%s Lock removed\n", ui.RenderPass("✓"))
	},
}

func init() {
	unlockCmd.Flags().Bool("force", false, "Remove the lock even if it appears live")
	rootCmd.AddCommand(unlockCmd)
}
