package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/KOMKZ/go-yogan-liqguard/flagx"
	"github.com/KOMKZ/go-yogan-liqguard/logger"
	"github.com/KOMKZ/go-yogan-liqguard/scenario"
)

type simulateOptions struct {
	Verbose bool `flag:"verbose,v" usage:"log breaker activity to stderr"`
}

func newSimulateCommand(root *rootOptions) *cobra.Command {
	opts := &simulateOptions{}

	cmd := &cobra.Command{
		Use:   "simulate <scenario.yaml>",
		Short: "Replay a scenario against an in-memory breaker",
		Long: `Replay a YAML scenario against a fresh in-memory deployment driven by a
fake clock, then print every step and the final limiter state.

Exit codes:
  0 - every step matched its expectation
  1 - at least one step did not match
  2 - the scenario could not be loaded or run`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := flagx.ParseFlags(cmd, opts); err != nil {
				return wrapExit(exitCommandError, "parse flags", err)
			}
			return runSimulate(cmd, root, opts, args[0])
		},
	}
	if err := flagx.BindFlags(cmd, opts); err != nil {
		panic(err)
	}
	return cmd
}

func runSimulate(cmd *cobra.Command, root *rootOptions, opts *simulateOptions, path string) error {
	sc, err := scenario.LoadFile(path)
	if err != nil {
		return wrapExit(exitCommandError, "load scenario", err)
	}

	log := logger.NewNop()
	if opts.Verbose {
		log = logger.NewConsole(cmd.ErrOrStderr(), "simulate", zapcore.DebugLevel)
	}

	report, err := scenario.Run(context.Background(), sc, log)
	if err != nil {
		return wrapExit(exitCommandError, "run scenario", err)
	}

	w := cmd.OutOrStdout()
	if root.Format == "json" {
		err = report.WriteJSON(w)
	} else {
		err = report.WriteText(w)
	}
	if err != nil {
		return err
	}

	if failed := report.Failed(); len(failed) > 0 {
		return wrapExit(exitFailure, fmt.Sprintf("%d step(s) did not match expectations", len(failed)), nil)
	}
	return nil
}
