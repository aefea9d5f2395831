package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/tether/internal/ui"
)

var checkBranchesCmd = &cobra.Command{
	Use:   "check-branches",
	Short: "Validate branch pairing and report drift",
	Long: `Compare the branches of the code and threads repositories.

Reports a pairing mismatch when the checked-out branches differ, and
drift for any branch present in one repository with no counterpart in
the other. Read-only.`,
	Run: func(cmd *cobra.Command, args []string) {
		strict, _ := cmd.Flags().GetBool("strict")

		coord, _, err := setup(cmd.Context())
		if err != nil {
			fatal(err)
		}

		pairing, err := coord.ValidateBranchPairing(strict)
		if err != nil {
			fatal(err)
		}
		if pairing.Valid {
			fmt.Printf("%s Branch pairing valid\n", ui.RenderPass("✓"))
		} else {
			for _, m := range pairing.Mismatches {
				fmt.Printf("%s %s: code=%q threads=%q\n", ui.RenderWarn("⚠"), m.Kind, m.Code, m.Threads)
			}
		}

		report, err := coord.CheckBranches()
		if err != nil {
			fatal(err)
		}
		if !report.HasDrift() {
			fmt.Printf("%s No branch drift (%d code, %d threads)\n", ui.RenderPass("✓"),
				len(report.CodeBranches), len(report.ThreadsBranches))
			return
		}
		for _, b := range report.CodeOnly {
			fmt.Printf("%s %s exists only in the code repository\n", ui.RenderWarn("⚠"), b)
		}
		for _, b := range report.ThreadsOnly {
			fmt.Printf("%s %s exists only in the threads repository\n", ui.RenderWarn("⚠"), b)
		}
		for _, b := range report.RemoteOnly {
			fmt.Printf("%s %s exists only on the threads remote (not fetched)\n", ui.RenderWarn("⚠"), b)
		}
	},
}

var mergeBranchCmd = &cobra.Command{
	Use:   "merge-branch <topic>",
	Short: "Merge a topic's thread branch into the trunk",
	Long: `Merge the topic's thread branch into the threads trunk using the
thread-document merge strategy, so no entry is ever dropped.

An open thread is refused without --force.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		force, _ := cmd.Flags().GetBool("force")

		coord, _, err := setup(cmd.Context())
		if err != nil {
			fatal(err)
		}

		result, err := coord.MergeToMain(cmd.Context(), args[0], force)
		if err != nil {
			fatal(err)
		}
		printResult(result)
	},
}

var archiveBranchCmd = &cobra.Command{
	Use:   "archive-branch <topic>",
	Short: "Close a thread and delete its branch",
	Long: `Mark the topic's thread closed (or abandoned with --abandon), push
the final state, and delete the thread branch locally and on the
remote. The thread history survives on the trunk and in the remote
reflog.

An open thread is refused without --force.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		abandon, _ := cmd.Flags().GetBool("abandon")
		force, _ := cmd.Flags().GetBool("force")

		coord, _, err := setup(cmd.Context())
		if err != nil {
			fatal(err)
		}

		result, err := coord.Archive(cmd.Context(), args[0], abandon, force)
		if err != nil {
			fatal(err)
		}
		printResult(result)
	},
}

func init() {
	checkBranchesCmd.Flags().Bool("strict", false, "Require exactly equal branch names")
	mergeBranchCmd.Flags().Bool("force", false, "Merge even if the thread is still open")
	archiveBranchCmd.Flags().Bool("abandon", false, "Mark the thread abandoned instead of closed")
	archiveBranchCmd.Flags().Bool("force", false, "Archive even if the thread is still open")
	rootCmd.AddCommand(checkBranchesCmd)
	rootCmd.AddCommand(mergeBranchCmd)
	rootCmd.AddCommand(archiveBranchCmd)
}
