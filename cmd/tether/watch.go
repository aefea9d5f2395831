package main

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/tether/internal/logging"
	"github.com/mschirtzinger/tether/internal/ui"
	"github.com/mschirtzinger/tether/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the threads directory and sync changed topics",
	Long: `Run as a daemon: watch threads/*.md in the threads repository and
trigger a sync for each topic whose document changes, debounced to
batch rapid edits. Stops cleanly on SIGINT/SIGTERM.`,
	Run: func(cmd *cobra.Command, args []string) {
		debounce, _ := cmd.Flags().GetDuration("debounce")

		coord, cfg, err := setup(cmd.Context())
		if err != nil {
			fatal(err)
		}

		syncFn := func(ctx context.Context, topic string) error {
			result, err := coord.Sync(ctx, topic)
			if err != nil {
				return err
			}
			printResult(result)
			return nil
		}

		threadsDir := filepath.Join(cfg.Pair.ThreadsPath, "threads")
		w, err := watcher.New(threadsDir, syncFn, &watcher.Config{
			DebounceInterval: debounce,
			Logger:           logging.New("watch", logging.Options{File: cfg.LogFile}),
		})
		if err != nil {
			fatal(err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		fmt.Printf("%s Watching %s\n", ui.RenderAccent("👁"), threadsDir)
		if err := w.Start(ctx); err != nil {
			fatal(err)
		}
	},
}

func init() {
	watchCmd.Flags().Duration("debounce", 500*time.Millisecond, "Quiet period before syncing a changed topic")
	rootCmd.AddCommand(watchCmd)
}
