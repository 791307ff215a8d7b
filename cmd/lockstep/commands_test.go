package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v0xg/lockstep/internal/actions"
	"github.com/v0xg/lockstep/internal/ai"
)

const dragBatch = `actions:
  - type: pointer
    id: mouse
    origin: screen1
    actions:
      - {type: pointerMove, duration: 0, x: 10, y: 20}
      - {type: pointerDown}
      - {type: pointerUp}
  - type: key
    id: keys
    actions:
      - {type: keyDown, value: a}
      - {type: keyUp, value: a}
`

func TestRun(t *testing.T) {
	batch := writeFile(t, "drag.yaml", dragBatch)

	out, err := execute(t, "run", "--calls", batch)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.NotEmpty(t, lines)
	assert.Regexp(t, `^batch [0-9a-f-]{36}: 3 ticks, 2 sequences$`, lines[0])
	assert.Contains(t, out, "  mouse        3/3 steps\n")
	assert.Contains(t, out, "  keys         2/2 steps\n")
	assert.Contains(t, out, "screen1 move 10,20 0s\n")
	assert.Contains(t, out, "screen1 down\n")
	assert.Contains(t, out, "screen0 keyDown 'a'\n")
	assert.Contains(t, out, "screen0 keyUp 'a'\n")
}

func TestRun_JSONReport(t *testing.T) {
	batch := writeFile(t, "drag.yaml", dragBatch)

	out, err := execute(t, "run", "--format", "json", batch)
	require.NoError(t, err)

	var report reportView
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.NotEmpty(t, report.BatchID)
	assert.Equal(t, 3, report.Ticks)
	require.Len(t, report.Sequences, 2)
	assert.Equal(t, "mouse", report.Sequences[0].ID)
	assert.True(t, report.Sequences[0].Completed)
	assert.Nil(t, report.Sequences[0].ErrIndex)
	assert.Equal(t, 2, report.Sequences[1].Steps)
}

func TestRun_UnknownDevice(t *testing.T) {
	batch := writeFile(t, "bad.json", `{"actions": [
	  // no such screen in a two-screen setup
	  {"type": "pointer", "id": "lost", "origin": "screen9", "actions": [{"type": "pointerDown"}]}
	]}`)

	out, err := execute(t, "run", batch)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "batch failed")
	assert.Contains(t, out, "lost         1/1 steps, stopped at step 0:")
	assert.Contains(t, out, `"screen9"`)
}

func TestRun_PartialFailure(t *testing.T) {
	batch := writeFile(t, "partial.json", `{"actions": [
	  {"type": "pointer", "id": "ok", "origin": "screen0", "actions": [{"type": "pointerDown"}, {"type": "pointerUp"}]},
	  {"type": "pointer", "id": "lost", "origin": "screen9", "actions": [{"type": "pointerDown"}]}
	]}`)

	out, err := execute(t, "run", batch)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.EqualError(t, err, "1 of 2 sequences reported errors")
	assert.Contains(t, out, "  ok           2/2 steps\n")
}

func TestRun_InvalidBatch(t *testing.T) {
	batch := writeFile(t, "bad.json", `{"actions": [{"type": "pointer", "id": "m", "actions": [{"type": "pointerMove", "x": 1, "y": 1}]}]}`)

	_, err := execute(t, "run", batch)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.True(t, actions.IsProtocolError(err))
	assert.Contains(t, err.Error(), "actions[0].actions[0].duration")
}

func TestRun_MissingFile(t *testing.T) {
	_, err := execute(t, "run", filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRun_RequiresOneArg(t *testing.T) {
	_, err := execute(t, "run")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

const script = `commands:
  - name: newSession
  - name: mouseMoveTo
    params: {element: screen1, xoffset: 5, yoffset: 6}
  - name: mouseDown
    params: {element: screen1}
  - name: getWindowHandle
  - name: mouseUp
    params: {element: screen1}
`

func TestExec(t *testing.T) {
	path := writeFile(t, "session.yaml", script)

	out, err := execute(t, "exec", path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 5)
	assert.Regexp(t, `^0 newSession session=[0-9a-f-]{36} \{"platformName":"lockstep"`, lines[0])
	assert.Equal(t, "1 mouseMoveTo", lines[1])
	assert.Equal(t, "3 getWindowHandle", lines[3])
	assert.Equal(t, "4 mouseUp", lines[4])
}

func TestExec_Strict(t *testing.T) {
	path := writeFile(t, "session.yaml", script)

	out, err := execute(t, "exec", "--strict", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), `unsupported command "getWindowHandle"`)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 3)
}

func TestExec_ActionsReport(t *testing.T) {
	path := writeFile(t, "session.json", `[
	  {"name": "actions", "params": {"actions": [
	    {"type": "pointer", "id": "mouse", "actions": [{"type": "pointerDown"}, {"type": "pointerUp"}]}
	  ]}}
	]`)

	out, err := execute(t, "exec", path)
	require.NoError(t, err)
	assert.Contains(t, out, "0 actions\n")
	assert.Contains(t, out, ": 2 ticks, 1 sequences\n")
}

func TestExec_JSON(t *testing.T) {
	path := writeFile(t, "session.json", `[{"name": "findElement", "params": {"using": "xpath", "value": "//screen[1]"}}]`)

	out, err := execute(t, "exec", "--format", "json", path)
	require.NoError(t, err)

	var results []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 1)
	assert.Equal(t, "findElement", results[0]["command"])
}

// fakeProvider replies with a fixed batch.
type fakeProvider struct {
	reply string
}

func (p fakeProvider) Complete(context.Context, string, []ai.Message) (string, error) {
	return p.reply, nil
}

func stubProvider(t *testing.T, reply string) *[]string {
	t.Helper()
	var requested []string
	orig := newProvider
	newProvider = func(name, model string) (ai.Provider, error) {
		requested = append(requested, name+"/"+model)
		return fakeProvider{reply: reply}, nil
	}
	t.Cleanup(func() { newProvider = orig })
	return &requested
}

const generatedBatch = `{"actions": [{"type": "pointer", "id": "mouse", "origin": "screen0", "actions": [
  {"type": "pointerMove", "duration": 0, "x": 400, "y": 300},
  {"type": "pointerDown"},
  {"type": "pointerUp"}
]}]}`

func TestGenerate_Stdout(t *testing.T) {
	requested := stubProvider(t, generatedBatch)

	out, err := execute(t, "generate", "--provider", "openai", "--model", "gpt-4o", "click the middle")
	require.NoError(t, err)
	assert.Equal(t, []string{"openai/gpt-4o"}, *requested)

	seqs, err := actions.Decode([]byte(out))
	require.NoError(t, err)
	require.Len(t, seqs, 1)
	assert.Equal(t, 3, seqs[0].Len())
}

func TestGenerate_YAMLFileAndRun(t *testing.T) {
	t.Setenv("LOCKSTEP_AI_PROVIDER", "")
	t.Setenv("LOCKSTEP_AI_MODEL", "")
	requested := stubProvider(t, generatedBatch)
	target := filepath.Join(t.TempDir(), "click.yaml")

	out, err := execute(t, "generate", "-o", target, "--run", "click the middle")
	require.NoError(t, err)
	assert.Equal(t, []string{"claude/"}, *requested)
	assert.Contains(t, out, ": 3 ticks, 1 sequences\n")

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(data), "type: pointerMove")

	seqs, err := actions.LoadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "mouse", seqs[0].ID)
}

func TestGenerate_UnknownProvider(t *testing.T) {
	_, err := execute(t, "generate", "--provider", "llama", "anything")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "unknown provider")
}
