package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/v0xg/lockstep/internal/browser"
	"github.com/v0xg/lockstep/internal/config"
	"github.com/v0xg/lockstep/internal/device"
	"github.com/v0xg/lockstep/internal/executor"
	"github.com/v0xg/lockstep/internal/logging"
)

// RootOptions holds the persistent flags shared by every subcommand.
type RootOptions struct {
	ConfigPath string
	Backend    string
	Verbose    bool
	LogFormat  string
	HonorPause bool
	Strict     bool
	// Format selects how command results are printed: text or json.
	Format string
}

// NewRootCommand creates the lockstep command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "lockstep",
		Short: "Drive pointer and keyboard input across screens in lockstep",
		Long: `lockstep executes batches of input action sequences. Every sequence
advances one step per tick, and no sequence starts step N+1 before all
sequences finished step N.

Examples:
  lockstep run drag.yaml
  lockstep run --backend browser --honor-pause drag.json
  lockstep exec session.yaml
  lockstep generate "shift-drag from the left edge to the middle" -o drag.yaml`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch opts.Format {
			case "text", "json":
				return nil
			default:
				return &ExitError{Code: ExitCommandError, Message: fmt.Sprintf("invalid format %q: must be text or json", opts.Format)}
			}
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.ConfigPath, "config", "c", "", "config file (default ./"+config.DefaultFileName+" if present)")
	flags.StringVar(&opts.Backend, "backend", "", "input backend: dry-run or browser")
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "log every step")
	flags.StringVar(&opts.LogFormat, "log-format", "", "log format: text or json")
	flags.BoolVar(&opts.HonorPause, "honor-pause", false, "sleep for the duration of pause steps")
	flags.BoolVar(&opts.Strict, "strict", false, "reject unknown commands in scripts")
	flags.StringVar(&opts.Format, "format", "text", "output format: text or json")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewExecCommand(opts))
	cmd.AddCommand(NewDevicesCommand(opts))
	cmd.AddCommand(NewGenerateCommand(opts))

	return cmd
}

// loadConfig resolves the effective configuration: file, then
// environment, then flags given on the command line.
func (o *RootOptions) loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return cfg, WrapExitError(ExitCommandError, "load config", err)
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, WrapExitError(ExitCommandError, "apply environment", err)
	}

	flags := cmd.Flags()
	if flags.Changed("backend") {
		cfg.Backend = o.Backend
	}
	if o.Verbose {
		cfg.Logging.Level = "debug"
	}
	if flags.Changed("log-format") {
		cfg.Logging.Format = o.LogFormat
	}
	if flags.Changed("honor-pause") {
		cfg.Engine.HonorPause = o.HonorPause
	}
	if flags.Changed("strict") {
		cfg.Dispatch.Strict = o.Strict
	}
	if err := cfg.Validate(); err != nil {
		return cfg, WrapExitError(ExitCommandError, "invalid config", err)
	}
	return cfg, nil
}

// session is everything a subcommand needs to act on devices.
type session struct {
	cfg      config.Config
	logger   *slog.Logger
	registry device.Registry
	input    device.Input
	// recorder is set for the dry-run backend only.
	recorder *device.Recorder
	close    func()
}

// open loads configuration and brings up the configured backend. The
// caller must call Close.
func (o *RootOptions) open(ctx context.Context, cmd *cobra.Command) (*session, error) {
	cfg, err := o.loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "configure logging", err)
	}
	logger.Debug("config loaded", "source", cfg.Source, "backend", cfg.Backend)

	s := &session{cfg: cfg, logger: logger, close: func() {}}
	switch cfg.Backend {
	case config.BackendBrowser:
		b, err := browser.Launch(ctx, browser.Options{
			Bin:        cfg.Browser.Bin,
			Headless:   cfg.Browser.Headless,
			Width:      cfg.Browser.Width,
			Height:     cfg.Browser.Height,
			ProfileDir: cfg.Browser.ProfileDir,
			URLs:       cfg.Browser.Screens,
			Logger:     logger,
		})
		if err != nil {
			return nil, WrapExitError(ExitFailure, "start browser", err)
		}
		s.registry, s.input, s.close = b, b, b.Close
	default:
		rec := device.NewRecorder(logger)
		s.registry = device.NewScreens(cfg.DryRun.Screens, cfg.DryRun.Width, cfg.DryRun.Height)
		s.input, s.recorder = rec, rec
	}
	return s, nil
}

func (s *session) Close() {
	s.close()
}

func (s *session) coordinator() (*executor.Coordinator, error) {
	c, err := executor.New(s.registry, s.input, executor.Options{
		StartupTimeout: time.Duration(s.cfg.Engine.StartupTimeout),
		StepTimeout:    time.Duration(s.cfg.Engine.StepTimeout),
		ProceedTimeout: time.Duration(s.cfg.Engine.ProceedTimeout),
		HonorPause:     s.cfg.Engine.HonorPause,
		Logger:         s.logger,
	})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid engine settings", err)
	}
	return c, nil
}
