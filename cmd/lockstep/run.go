package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/v0xg/lockstep/internal/actions"
	"github.com/v0xg/lockstep/internal/executor"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	// Calls prints every input call after the batch. Dry-run only.
	Calls bool
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <batch-file>",
		Short: "Execute an actions batch",
		Long: `Execute one actions batch in tick lockstep and print a report.

The batch is a JSON (comments allowed) or YAML document of the form
{"actions": [sequence, ...]}.

Example:
  lockstep run drag.yaml
  lockstep run --calls --format json drag.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, opts, args[0])
		},
	}

	cmd.Flags().BoolVar(&opts.Calls, "calls", false, "print the recorded input calls (dry-run backend)")

	return cmd
}

func runBatch(cmd *cobra.Command, opts *RunOptions, path string) error {
	seqs, err := actions.LoadFile(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "load batch", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := opts.open(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	coord, err := s.coordinator()
	if err != nil {
		return err
	}
	report, runErr := coord.RunBatch(ctx, seqs)
	if err := writeReport(cmd.OutOrStdout(), opts.Format, report); err != nil {
		return err
	}
	if opts.Calls && s.recorder != nil {
		writeCalls(cmd.OutOrStdout(), s.recorder.Calls())
	}
	return batchExit(runErr, report)
}

// batchExit maps the outcome of a batch to an exit error. Step failures
// that the batch survived still fail the command.
func batchExit(err error, report *executor.Report) error {
	if err != nil {
		return WrapExitError(ExitFailure, "batch failed", err)
	}
	if failed := report.Failed(); len(failed) > 0 {
		return &ExitError{
			Code:    ExitFailure,
			Message: fmt.Sprintf("%d of %d sequences reported errors", len(failed), len(report.Sequences)),
		}
	}
	return nil
}
