package actions

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// LoadFile reads and decodes a batch file. YAML (.yaml, .yml) and JSON
// with comments (.json, .jsonc) are accepted.
func LoadFile(path string) ([]Sequence, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read batch: %w", err)
	}
	normalized, err := NormalizeJSON(path, data)
	if err != nil {
		return nil, err
	}
	return Decode(normalized)
}

// NormalizeJSON converts a YAML or JSONC document to plain JSON, choosing
// the parser by the file extension of name.
func NormalizeJSON(name string, data []byte) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, &ProtocolError{Reason: fmt.Sprintf("invalid YAML in %s: %v", name, err)}
		}
		out, err := json.Marshal(doc)
		if err != nil {
			return nil, &ProtocolError{Reason: fmt.Sprintf("convert %s to JSON: %v", name, err)}
		}
		return out, nil
	case ".json", ".jsonc", "":
		return jsonc.ToJSON(data), nil
	default:
		return nil, fmt.Errorf("unsupported batch file extension %q", filepath.Ext(name))
	}
}

// ToYAML re-renders a JSON document as block-style YAML, keeping key
// order. The encoder still quotes strings such as "1" that would
// otherwise read back as another type.
func ToYAML(data []byte) ([]byte, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("parse JSON: %w", err)
	}
	blockStyle(&node)
	return yaml.Marshal(&node)
}

func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}
