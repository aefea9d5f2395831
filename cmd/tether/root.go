package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/tether/internal/config"
	"github.com/mschirtzinger/tether/internal/gitx"
	"github.com/mschirtzinger/tether/internal/logging"
	"github.com/mschirtzinger/tether/internal/parity"
	"github.com/mschirtzinger/tether/internal/syncer"
)

var rootCmd = &cobra.Command{
	Use:   "tether",
	Short: "Branch-paired thread synchronization for multi-agent repositories",
	Long: `tether keeps a code repository and its companion threads repository
on matching branches, merging thread documents without losing entries
and remediating divergence automatically.

Configuration lives in .tether/pair.toml at the code repository root;
operational tunables come from TETHER_* environment variables.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// setup resolves configuration from the enclosing code repository and
// wires up an initialized coordinator. Overrides run after loading,
// before anything is constructed from the config.
func setup(ctx context.Context, overrides ...func(*config.Config)) (*parity.Coordinator, *config.Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, nil, err
	}
	repo, err := gitx.Open(cwd)
	if err != nil {
		return nil, nil, fmt.Errorf("not inside a git repository: %w", err)
	}

	cfg, err := config.Load(repo.Root())
	if err != nil {
		return nil, nil, err
	}
	for _, override := range overrides {
		override(cfg)
	}

	logOpts := logging.Options{File: cfg.LogFile}
	code := syncer.New(cfg.CodeSyncerConfig(), logging.New("syncer", logOpts))
	if err := code.Init(ctx); err != nil {
		return nil, nil, fmt.Errorf("code repository: %w", err)
	}
	threads := syncer.New(cfg.ThreadsSyncerConfig(), logging.New("syncer", logOpts))
	if err := threads.Init(ctx); err != nil {
		return nil, nil, fmt.Errorf("threads repository: %w", err)
	}

	coord := parity.New(code, threads, cfg.ParityConfig(), logging.New("parity", logOpts))
	return coord, cfg, nil
}

// fatal prints an error and exits non-zero. Reserved for unrecoverable
// failures; handled outcomes (conflicts, drift, held locks) report and
// exit zero.
func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
