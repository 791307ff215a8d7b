package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `backend: dry-run
dry_run:
  screens: 2
  width: 800
  height: 600
logging:
  level: error
`

// execute runs the root command with a two-screen dry-run config and
// returns what it printed on stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cfgPath := writeFile(t, "lockstep.yaml", testConfig)

	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRootCommand_Subcommands(t *testing.T) {
	cmd := NewRootCommand()

	for _, name := range []string{"run", "exec", "devices", "generate"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, sub.Name())
	}
}

func TestRootCommand_PersistentFlags(t *testing.T) {
	cmd := NewRootCommand()
	flags := cmd.PersistentFlags()

	for _, name := range []string{"config", "backend", "verbose", "log-format", "honor-pause", "strict", "format"} {
		assert.NotNil(t, flags.Lookup(name), name)
	}
	assert.Equal(t, "v", flags.Lookup("verbose").Shorthand)
	assert.Equal(t, "c", flags.Lookup("config").Shorthand)
	assert.Equal(t, "text", flags.Lookup("format").DefValue)
}

func TestRootCommand_InvalidFormat(t *testing.T) {
	_, err := execute(t, "devices", "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "xml"`)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRootCommand_BadConfig(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"devices", "--config", filepath.Join(t.TempDir(), "missing.yaml")})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRootCommand_InvalidBackendFlag(t *testing.T) {
	_, err := execute(t, "devices", "--backend", "robot")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unsupported value "robot"`)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: ExitSuccess},
		{name: "exit error", err: &ExitError{Code: ExitFailure, Message: "x"}, want: ExitFailure},
		{name: "wrapped", err: fmt.Errorf("outer: %w", WrapExitError(ExitFailure, "x", errors.New("y"))), want: ExitFailure},
		{name: "plain", err: errors.New("unknown flag"), want: ExitCommandError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestExitError_Message(t *testing.T) {
	assert.Equal(t, "load batch: boom", WrapExitError(ExitCommandError, "load batch", errors.New("boom")).Error())
	assert.Equal(t, "2 of 3 failed", (&ExitError{Code: ExitFailure, Message: "2 of 3 failed"}).Error())
}

func TestDevices(t *testing.T) {
	out, err := execute(t, "devices")
	require.NoError(t, err)
	assert.Equal(t, "screen0\t800x600 (default)\nscreen1\t800x600\n", out)
}

func TestDevices_JSON(t *testing.T) {
	out, err := execute(t, "devices", "--format", "json")
	require.NoError(t, err)
	assert.JSONEq(t, `[
	  {"id": "screen0", "index": 0, "bounds": {"x": 0, "y": 0, "width": 800, "height": 600}, "default": true},
	  {"id": "screen1", "index": 1, "bounds": {"x": 0, "y": 0, "width": 800, "height": 600}, "default": false}
	]`, out)
}
