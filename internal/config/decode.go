package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	yaml "go.yaml.in/yaml/v3"
)

// Decode strictly decodes a config document. The format follows path's
// extension: .yaml/.yml, .toml, anything else is JSON. YAML and TOML are turned
// into JSON first so every format gets the same unknown-field checks.
func Decode(path string, raw []byte) (*Config, error) {
	format := formatOf(path)
	jb, err := toJSON(format, raw)
	if err != nil {
		return nil, configErr("%s: %v", format, err)
	}

	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, configErr("%s: %v", format, err)
	}
	switch err := dec.Decode(&struct{}{}); {
	case err == io.EOF:
		return &cfg, nil
	case err == nil:
		return nil, configErr("%s: trailing data after config object", format)
	default:
		return nil, configErr("%s: %v", format, err)
	}
}

func formatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	case ".toml":
		return "toml"
	default:
		return "json"
	}
}

func toJSON(format string, raw []byte) ([]byte, error) {
	var tree any
	switch format {
	case "yaml":
		if err := yaml.Unmarshal(raw, &tree); err != nil {
			return nil, err
		}
	case "toml":
		var m map[string]any
		if err := toml.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		tree = m
	default:
		return raw, nil
	}
	return json.Marshal(stringKeys(tree))
}

// stringKeys rewrites map[any]any nodes (older YAML decoders, numeric keys) so
// the tree can be marshaled as JSON.
func stringKeys(v any) any {
	switch x := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[fmt.Sprint(k)] = stringKeys(val)
		}
		return out
	case map[string]any:
		for k, val := range x {
			x[k] = stringKeys(val)
		}
		return x
	case []map[string]any:
		out := make([]any, len(x))
		for i, m := range x {
			out[i] = stringKeys(m)
		}
		return out
	case []any:
		for i := range x {
			x[i] = stringKeys(x[i])
		}
		return x
	default:
		return v
	}
}
