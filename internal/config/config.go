// Package config loads lockstep settings from a YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultFileName = "lockstep.yaml"

// Backend names.
const (
	BackendDryRun  = "dry-run"
	BackendBrowser = "browser"
)

// Config holds every user-adjustable setting.
type Config struct {
	Backend  string         `yaml:"backend"`
	Engine   EngineConfig   `yaml:"engine"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	DryRun   DryRunConfig   `yaml:"dry_run"`
	Browser  BrowserConfig  `yaml:"browser"`
	Logging  LoggingConfig  `yaml:"logging"`
	AI       AIConfig       `yaml:"ai"`

	// Source is the file the configuration came from, or "<defaults>".
	Source string `yaml:"-"`
}

// EngineConfig bounds the executor's waits.
type EngineConfig struct {
	StartupTimeout Duration `yaml:"startup_timeout"`
	StepTimeout    Duration `yaml:"step_timeout"`
	ProceedTimeout Duration `yaml:"proceed_timeout"`
	HonorPause     bool     `yaml:"honor_pause"`
}

type DispatchConfig struct {
	Strict bool `yaml:"strict"`
}

// DryRunConfig describes the in-memory screens of the dry-run backend.
type DryRunConfig struct {
	Screens int `yaml:"screens"`
	Width   int `yaml:"width"`
	Height  int `yaml:"height"`
}

// BrowserConfig controls the Chromium backend. Each entry of Screens is
// opened in its own page and becomes one device.
type BrowserConfig struct {
	Bin        string   `yaml:"bin"`
	Headless   bool     `yaml:"headless"`
	Width      int      `yaml:"width"`
	Height     int      `yaml:"height"`
	ProfileDir string   `yaml:"profile_dir"`
	Screens    []string `yaml:"screens"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// AIConfig selects the model used by "lockstep generate".
type AIConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

// Duration is a time.Duration written as a Go duration string ("5s").
// Plain integers are read as milliseconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// ParseDuration parses "250ms", "5s" or a bare millisecond count.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return d, nil
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Backend: BackendDryRun,
		Engine: EngineConfig{
			StartupTimeout: Duration(5 * time.Second),
			StepTimeout:    Duration(30 * time.Second),
			ProceedTimeout: Duration(60 * time.Second),
		},
		DryRun: DryRunConfig{
			Screens: 1,
			Width:   1920,
			Height:  1080,
		},
		Browser: BrowserConfig{
			Headless: true,
			Width:    1280,
			Height:   720,
			Screens:  []string{"about:blank"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		AI: AIConfig{
			Provider: "claude",
		},
		Source: "<defaults>",
	}
}

// Load reads configuration from path on top of the defaults. When path
// is empty, ./lockstep.yaml is read if it exists.
func Load(path string) (Config, error) {
	cfg := Default()

	candidate := strings.TrimSpace(path)
	explicit := candidate != ""
	if !explicit {
		candidate = DefaultFileName
	}

	data, err := os.ReadFile(candidate)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if explicit {
				return cfg, fmt.Errorf("config file %q not found", candidate)
			}
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config file %q: %w", candidate, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config file %q: %w", candidate, err)
	}
	cfg.Source = candidate

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyEnv overrides settings from LOCKSTEP_* environment variables.
// lookup is usually os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	boolean := func(key string, dst *bool) error {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = b
		return nil
	}
	duration := func(key string, dst *Duration) error {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		d, err := ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = Duration(d)
		return nil
	}

	str("LOCKSTEP_BACKEND", &c.Backend)
	str("LOCKSTEP_LOG_LEVEL", &c.Logging.Level)
	str("LOCKSTEP_LOG_FORMAT", &c.Logging.Format)
	str("LOCKSTEP_BROWSER_BIN", &c.Browser.Bin)
	str("LOCKSTEP_PROFILE_DIR", &c.Browser.ProfileDir)
	str("LOCKSTEP_AI_PROVIDER", &c.AI.Provider)
	str("LOCKSTEP_AI_MODEL", &c.AI.Model)

	for _, f := range []func() error{
		func() error { return boolean("LOCKSTEP_HONOR_PAUSE", &c.Engine.HonorPause) },
		func() error { return boolean("LOCKSTEP_STRICT", &c.Dispatch.Strict) },
		func() error { return boolean("LOCKSTEP_HEADLESS", &c.Browser.Headless) },
		func() error { return duration("LOCKSTEP_STARTUP_TIMEOUT", &c.Engine.StartupTimeout) },
		func() error { return duration("LOCKSTEP_STEP_TIMEOUT", &c.Engine.StepTimeout) },
		func() error { return duration("LOCKSTEP_PROCEED_TIMEOUT", &c.Engine.ProceedTimeout) },
	} {
		if err := f(); err != nil {
			return err
		}
	}
	return c.Validate()
}

// Validate checks that the settings are usable.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendDryRun, BackendBrowser:
	default:
		return fmt.Errorf("backend: unsupported value %q (want %s or %s)", c.Backend, BackendDryRun, BackendBrowser)
	}
	if err := c.Engine.validate(); err != nil {
		return err
	}
	if c.DryRun.Screens < 0 {
		return errors.New("dry_run.screens must not be negative")
	}
	if c.DryRun.Width <= 0 || c.DryRun.Height <= 0 {
		return errors.New("dry_run.width and dry_run.height must be positive")
	}
	if c.Browser.Width <= 0 || c.Browser.Height <= 0 {
		return errors.New("browser.width and browser.height must be positive")
	}
	if _, err := NormalizeLogLevel(c.Logging.Level); err != nil {
		return err
	}
	if _, err := NormalizeFormat(c.Logging.Format); err != nil {
		return err
	}
	return nil
}

// validate checks that the proceed bound outlasts the step bound. A zero
// value stands for the default; a negative step timeout disables both.
func (e EngineConfig) validate() error {
	def := Default().Engine
	step, proceed := e.StepTimeout, e.ProceedTimeout
	if step == 0 {
		step = def.StepTimeout
	}
	if proceed == 0 {
		proceed = def.ProceedTimeout
	}
	if step > 0 && proceed > 0 && proceed <= step {
		return fmt.Errorf("engine.proceed_timeout (%s) must exceed engine.step_timeout (%s)",
			time.Duration(proceed), time.Duration(step))
	}
	return nil
}

// NormalizeLogLevel validates and lowercases known logging levels.
func NormalizeLogLevel(level string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return "info", nil
	case "debug":
		return "debug", nil
	case "warn", "warning":
		return "warn", nil
	case "error":
		return "error", nil
	default:
		return "", fmt.Errorf("unsupported log level %q", level)
	}
}

// NormalizeFormat validates and canonicalizes logging format identifiers.
func NormalizeFormat(format string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		return "json", nil
	case "", "text", "console":
		return "text", nil
	default:
		return "", fmt.Errorf("unsupported log format %q", format)
	}
}
