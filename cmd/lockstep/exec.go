package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/v0xg/lockstep/internal/actions"
	"github.com/v0xg/lockstep/internal/dispatch"
)

// NewExecCommand creates the exec command.
func NewExecCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exec <script>",
		Short: "Run a script of automation commands",
		Long: `Run a script of automation commands in order, stopping at the first
error. A script is a list of {"name": ..., "params": {...}} objects, bare
or under a "commands" key, in JSON (comments allowed) or YAML.

Unknown command names are skipped unless --strict is set.

Example:
  lockstep exec session.yaml
  lockstep exec --strict --format json session.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return execScript(cmd, rootOpts, args[0])
		},
	}
	return cmd
}

type commandResult struct {
	Command  string            `json:"command"`
	Response dispatch.Response `json:"response"`
}

func execScript(cmd *cobra.Command, opts *RootOptions, path string) error {
	cmds, err := dispatch.LoadScript(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "load script", err)
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
	d := dispatch.New(s.registry, s.input, coord, dispatch.Options{
		Strict: s.cfg.Dispatch.Strict,
		Logger: s.logger,
	})
	responses, runErr := d.Run(ctx, cmds)

	results := make([]commandResult, len(responses))
	for i, r := range responses {
		results[i] = commandResult{Command: cmds[i].Name, Response: r}
	}
	if err := writeResults(cmd.OutOrStdout(), opts.Format, results); err != nil {
		return err
	}
	if report := d.LastReport(); report != nil && opts.Format == "text" {
		if err := writeReport(cmd.OutOrStdout(), opts.Format, report); err != nil {
			return err
		}
	}

	if runErr != nil {
		if actions.IsProtocolError(runErr) || dispatch.IsUnsupportedCommand(runErr) {
			return WrapExitError(ExitCommandError, "script rejected", runErr)
		}
		return WrapExitError(ExitFailure, "script failed", runErr)
	}
	return nil
}

func writeResults(w io.Writer, format string, results []commandResult) error {
	if format == "json" {
		return writeJSON(w, results)
	}
	for i, r := range results {
		fmt.Fprintf(w, "%d %s", i, r.Command)
		if r.Response.SessionID != "" {
			fmt.Fprintf(w, " session=%s", r.Response.SessionID)
		}
		if r.Response.Value != nil {
			value, err := json.Marshal(r.Response.Value)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, " %s", value)
		}
		fmt.Fprintln(w)
	}
	return nil
}
