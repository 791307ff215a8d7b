package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/v0xg/lockstep/internal/actions"
	"github.com/v0xg/lockstep/internal/device"
)

// Role is the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation with the model.
type Message struct {
	Role    Role
	Content string
}

// Provider defines the interface for AI batch generation
type Provider interface {
	Complete(ctx context.Context, system string, messages []Message) (string, error)
}

// NewProvider creates a new AI provider based on the provider name
func NewProvider(name, model string) (Provider, error) {
	switch name {
	case "claude", "anthropic":
		return NewClaudeProvider(model)
	case "openai", "gpt":
		return NewOpenAIProvider(model)
	default:
		return nil, fmt.Errorf("unknown provider: %s (supported: claude, openai)", name)
	}
}

// maxAttempts bounds how often a reply that fails validation is sent back
// to the model for correction.
const maxAttempts = 3

// Generator drafts Actions batches from natural language.
type Generator struct {
	provider Provider
	logger   *slog.Logger
}

// NewGenerator wraps p. A nil logger falls back to slog.Default().
func NewGenerator(p Provider, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{provider: p, logger: logger}
}

// GenerateBatch asks the model for a batch acting on devices and returns
// it as canonical JSON, together with its decoded sequences. A reply that
// does not decode is returned to the model with the error so it can fix
// it.
func (g *Generator) GenerateBatch(ctx context.Context, devices []device.Device, prompt string) ([]byte, []actions.Sequence, error) {
	devicesJSON, err := json.MarshalIndent(devices, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal devices: %w", err)
	}
	conv := []Message{{Role: RoleUser, Content: buildUserPrompt(string(devicesJSON), prompt)}}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		reply, err := g.provider.Complete(ctx, systemPrompt, conv)
		if err != nil {
			return nil, nil, err
		}
		batch, seqs, err := parseBatch(reply)
		if err == nil {
			g.logger.Debug("batch generated", "attempt", attempt, "sequences", len(seqs))
			return batch, seqs, nil
		}
		lastErr = err
		g.logger.Warn("generated batch rejected", "attempt", attempt, "error", err)
		conv = append(conv,
			Message{Role: RoleAssistant, Content: reply},
			Message{Role: RoleUser, Content: buildRepairPrompt(err)},
		)
	}
	return nil, nil, fmt.Errorf("no valid batch after %d attempts: %w", maxAttempts, lastErr)
}

// parseBatch extracts the JSON batch from a reply, validates it and
// re-encodes it without surrounding text.
func parseBatch(reply string) ([]byte, []actions.Sequence, error) {
	raw, err := extractJSON(reply)
	if err != nil {
		return nil, nil, err
	}
	seqs, err := actions.Decode(raw)
	if err != nil {
		return nil, nil, err
	}
	if len(seqs) == 0 {
		return nil, nil, errors.New("batch has no sequences")
	}
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return nil, nil, fmt.Errorf("failed to format batch: %w", err)
	}
	return out.Bytes(), seqs, nil
}
