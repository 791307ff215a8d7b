package dispatch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/v0xg/lockstep/internal/actions"
)

// LoadScript reads a command script: a list of commands, either bare or
// under a "commands" key, in YAML or JSON with comments.
//
//	commands:
//	  - name: newSession
//	  - name: mouseMoveTo
//	    params: {element: screen0, xoffset: 10, yoffset: 20}
func LoadScript(path string) ([]Command, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	normalized, err := actions.NormalizeJSON(path, data)
	if err != nil {
		return nil, err
	}
	return DecodeScript(normalized)
}

// DecodeScript parses a JSON command script.
func DecodeScript(data []byte) ([]Command, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, &actions.ProtocolError{Reason: "empty script"}
	}

	var cmds []Command
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &cmds); err != nil {
			return nil, &actions.ProtocolError{Reason: fmt.Sprintf("invalid script: %v", err)}
		}
	} else {
		var script struct {
			Commands *[]Command `json:"commands"`
		}
		if err := json.Unmarshal(trimmed, &script); err != nil {
			return nil, &actions.ProtocolError{Reason: fmt.Sprintf("invalid script: %v", err)}
		}
		if script.Commands == nil {
			return nil, &actions.ProtocolError{Path: "commands", Reason: "missing required field"}
		}
		cmds = *script.Commands
	}

	for i, c := range cmds {
		if c.Name == "" {
			return nil, &actions.ProtocolError{Path: fmt.Sprintf("commands[%d].name", i), Reason: "missing required field"}
		}
	}
	return cmds, nil
}
