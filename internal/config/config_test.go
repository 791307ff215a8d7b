package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWhenFileMissing(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "<defaults>", cfg.Source)
	assert.Equal(t, BackendDryRun, cfg.Backend)
	assert.Equal(t, Duration(30*time.Second), cfg.Engine.StepTimeout)
	assert.False(t, cfg.Engine.HonorPause)
	assert.Equal(t, []string{"about:blank"}, cfg.Browser.Screens)
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lockstep.yaml")
	content := `
backend: browser
engine:
  step_timeout: 2s
  proceed_timeout: 4500
  honor_pause: true
dispatch:
  strict: true
browser:
  headless: false
  width: 800
  height: 600
  screens:
    - https://example.com
    - about:blank
logging:
  level: DEBUG
  format: json
ai:
  provider: openai
  model: gpt-4o-mini
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, path, cfg.Source)
	assert.Equal(t, BackendBrowser, cfg.Backend)
	assert.Equal(t, Duration(2*time.Second), cfg.Engine.StepTimeout)
	assert.Equal(t, Duration(4500*time.Millisecond), cfg.Engine.ProceedTimeout)
	// Untouched keys keep their defaults.
	assert.Equal(t, Duration(5*time.Second), cfg.Engine.StartupTimeout)
	assert.True(t, cfg.Engine.HonorPause)
	assert.True(t, cfg.Dispatch.Strict)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, []string{"https://example.com", "about:blank"}, cfg.Browser.Screens)
	assert.Equal(t, "openai", cfg.AI.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.AI.Model)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"bad backend", "backend: x11\n", "backend"},
		{"bad duration", "engine:\n  step_timeout: soon\n", "invalid duration"},
		{"bad level", "logging:\n  level: loud\n", "log level"},
		{"bad format", "logging:\n  format: xml\n", "log format"},
		{"bad size", "browser:\n  width: 0\n", "browser.width"},
		{"proceed equals step", "engine:\n  step_timeout: 2s\n  proceed_timeout: 2s\n", "must exceed engine.step_timeout"},
		{"proceed below default step", "engine:\n  proceed_timeout: 10s\n", "engine.proceed_timeout (10s)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "lockstep.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))
			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"LOCKSTEP_BACKEND":      "browser",
		"LOCKSTEP_HONOR_PAUSE":  "true",
		"LOCKSTEP_STEP_TIMEOUT": "750ms",
		"LOCKSTEP_LOG_FORMAT":   "json",
		"LOCKSTEP_AI_MODEL":     "claude-x",
		"LOCKSTEP_STRICT":       "",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(lookup))
	assert.Equal(t, BackendBrowser, cfg.Backend)
	assert.True(t, cfg.Engine.HonorPause)
	assert.Equal(t, Duration(750*time.Millisecond), cfg.Engine.StepTimeout)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "claude-x", cfg.AI.Model)
	assert.False(t, cfg.Dispatch.Strict)
}

func TestLoad_UnboundedStepTimeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lockstep.yaml")
	content := "engine:\n  step_timeout: -1s\n  proceed_timeout: 1s\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Duration(-time.Second), cfg.Engine.StepTimeout)
}

func TestApplyEnv_Invalid(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(func(k string) (string, bool) {
		if k == "LOCKSTEP_HEADLESS" {
			return "maybe", true
		}
		return "", false
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LOCKSTEP_HEADLESS")
}

func TestParseDuration(t *testing.T) {
	d, err := ParseDuration("250")
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, d)

	d, err = ParseDuration(" 3s ")
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, d)

	d, err = ParseDuration("-1")
	require.NoError(t, err)
	assert.Equal(t, -time.Millisecond, d)

	_, err = ParseDuration("later")
	assert.Error(t, err)
}
