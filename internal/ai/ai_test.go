package ai

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v0xg/lockstep/internal/actions"
	"github.com/v0xg/lockstep/internal/device"
)

// scripted replies with canned responses and records what it was sent.
type scripted struct {
	replies []string
	calls   [][]Message
	err     error
}

func (s *scripted) Complete(_ context.Context, _ string, messages []Message) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.calls = append(s.calls, append([]Message(nil), messages...))
	reply := s.replies[0]
	s.replies = s.replies[1:]
	return reply, nil
}

const validBatch = `{"actions": [{"type": "pointer", "id": "mouse", "origin": "screen0", "actions": [
  {"type": "pointerMove", "duration": 0, "x": 5, "y": 5},
  {"type": "pointerDown"},
  {"type": "pointerUp"}
]}]}`

func newTestGenerator(p Provider) *Generator {
	return NewGenerator(p, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestGenerateBatch(t *testing.T) {
	p := &scripted{replies: []string{"Here you go:\n```json\n" + validBatch + "\n```"}}
	devices := device.NewScreens(1, 640, 480).Devices()

	batch, seqs, err := newTestGenerator(p).GenerateBatch(context.Background(), devices, "click the middle")
	require.NoError(t, err)
	require.Len(t, seqs, 1)
	assert.Equal(t, "mouse", seqs[0].ID)
	assert.Equal(t, 3, seqs[0].Len())

	// The returned batch is plain JSON that decodes again.
	again, err := actions.Decode(batch)
	require.NoError(t, err)
	assert.Equal(t, seqs, again)
	assert.NotContains(t, string(batch), "```")

	require.Len(t, p.calls, 1)
	assert.Contains(t, p.calls[0][0].Content, `"screen0"`)
	assert.Contains(t, p.calls[0][0].Content, "click the middle")
}

func TestGenerateBatch_RepairsInvalidReply(t *testing.T) {
	bad := `{"actions": [{"type": "pointer", "id": "mouse", "actions": [{"type": "pointerMove", "x": 1, "y": 1}]}]}`
	p := &scripted{replies: []string{bad, validBatch}}

	_, seqs, err := newTestGenerator(p).GenerateBatch(context.Background(), nil, "move")
	require.NoError(t, err)
	require.Len(t, seqs, 1)

	require.Len(t, p.calls, 2)
	second := p.calls[1]
	require.Len(t, second, 3)
	assert.Equal(t, RoleAssistant, second[1].Role)
	assert.Equal(t, bad, second[1].Content)
	assert.Equal(t, RoleUser, second[2].Role)
	assert.Contains(t, second[2].Content, "actions[0].actions[0].duration")
}

func TestGenerateBatch_GivesUp(t *testing.T) {
	p := &scripted{replies: []string{"no", "still no", "never"}}

	_, _, err := newTestGenerator(p).GenerateBatch(context.Background(), nil, "move")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Len(t, p.calls, maxAttempts)
}

func TestGenerateBatch_ProviderError(t *testing.T) {
	boom := errors.New("rate limited")
	_, _, err := newTestGenerator(&scripted{err: boom}).GenerateBatch(context.Background(), nil, "move")
	assert.ErrorIs(t, err, boom)
}

func TestParseBatch_Empty(t *testing.T) {
	_, _, err := parseBatch(`{"actions": []}`)
	assert.EqualError(t, err, "batch has no sequences")
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "bare", in: `{"a": 1}`, want: `{"a": 1}`},
		{name: "surrounded", in: "sure! {\"a\": [1, 2]} done", want: `{"a": [1, 2]}`},
		{name: "brace in string", in: `x {"a": "}{"} y`, want: `{"a": "}{"}`},
		{name: "escaped quote", in: `x {"a": "\"}"} y`, want: `{"a": "\"}"}`},
		{name: "array", in: "result: [1, 2]", want: "[1, 2]"},
		{name: "none", in: "nothing here", wantErr: true},
		{name: "unterminated", in: `{"a": 1`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractJSON(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestNewProvider_Unknown(t *testing.T) {
	_, err := NewProvider("llama", "")
	assert.ErrorContains(t, err, "unknown provider")
}

func TestNewProvider_MissingKey(t *testing.T) {
	t.Setenv("LOCKSTEP_ANTHROPIC_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("LOCKSTEP_OPENAI_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")

	_, err := NewProvider("claude", "")
	assert.ErrorContains(t, err, "ANTHROPIC_API_KEY")
	_, err = NewProvider("openai", "")
	assert.ErrorContains(t, err, "OPENAI_API_KEY")
}
