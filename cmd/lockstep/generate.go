package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/v0xg/lockstep/internal/actions"
	"github.com/v0xg/lockstep/internal/ai"
)

// newProvider is replaced in tests.
var newProvider = ai.NewProvider

// GenerateOptions holds flags for the generate command.
type GenerateOptions struct {
	*RootOptions
	Provider string
	Model    string
	Output   string
	// Run executes the batch after writing it.
	Run bool
}

// NewGenerateCommand creates the generate command.
func NewGenerateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GenerateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "generate <prompt>",
		Short: "Draft an actions batch from a description",
		Long: `Ask a language model to draft an actions batch for the devices of the
configured backend. The batch is validated before it is written; an
invalid draft is sent back to the model for correction.

The output is JSON, or YAML when --output ends in .yaml or .yml.

Example:
  lockstep generate "click the middle of screen0 twice"
  lockstep generate --provider openai -o drag.yaml "shift-drag from left to right"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return generate(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Provider, "provider", "", "AI provider: claude, openai (default: from config)")
	cmd.Flags().StringVar(&opts.Model, "model", "", "Specific model override")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "Output file (default stdout)")
	cmd.Flags().BoolVar(&opts.Run, "run", false, "Execute the batch once generated")

	return cmd
}

func generate(cmd *cobra.Command, opts *GenerateOptions, prompt string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := opts.open(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	providerName := s.cfg.AI.Provider
	if opts.Provider != "" {
		providerName = opts.Provider
	}
	model := s.cfg.AI.Model
	if opts.Model != "" {
		model = opts.Model
	}
	provider, err := newProvider(providerName, model)
	if err != nil {
		return WrapExitError(ExitCommandError, "create AI provider", err)
	}
	s.logger.Debug("generating batch", "provider", providerName, "model", model)

	batch, seqs, err := ai.NewGenerator(provider, s.logger).GenerateBatch(ctx, s.registry.Devices(), prompt)
	if err != nil {
		return WrapExitError(ExitFailure, "generate batch", err)
	}

	out := append(batch, '\n')
	if ext := strings.ToLower(filepath.Ext(opts.Output)); ext == ".yaml" || ext == ".yml" {
		if out, err = actions.ToYAML(batch); err != nil {
			return WrapExitError(ExitFailure, "render YAML", err)
		}
	}
	if opts.Output == "" {
		if _, err := cmd.OutOrStdout().Write(out); err != nil {
			return err
		}
	} else {
		if err := os.WriteFile(opts.Output, out, 0o644); err != nil {
			return WrapExitError(ExitFailure, "write batch", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Batch written to %s (%d sequences)\n", opts.Output, len(seqs))
	}

	if !opts.Run {
		return nil
	}
	coord, err := s.coordinator()
	if err != nil {
		return err
	}
	report, runErr := coord.RunBatch(ctx, seqs)
	if err := writeReport(cmd.OutOrStdout(), opts.Format, report); err != nil {
		return err
	}
	return batchExit(runErr, report)
}
