package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Syntax is a parameter document syntax.
type Syntax string

const (
	SyntaxYAML Syntax = "yaml"
	SyntaxTOML Syntax = "toml"
	SyntaxJSON Syntax = "json"
)

// SyntaxFromExt maps a file extension (with or without the dot) to a Syntax.
func SyntaxFromExt(ext string) (Syntax, error) {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "yaml", "yml":
		return SyntaxYAML, nil
	case "toml":
		return SyntaxTOML, nil
	case "json":
		return SyntaxJSON, nil
	}
	return "", fmt.Errorf("unsupported parameter file extension %q", ext)
}

// Unmarshal parses data into a generic document.
func Unmarshal(data []byte, syntax Syntax) (map[string]any, error) {
	raw := map[string]any{}
	var err error
	switch syntax {
	case SyntaxYAML:
		err = yaml.Unmarshal(data, &raw)
	case SyntaxTOML:
		err = toml.Unmarshal(data, &raw)
	case SyntaxJSON:
		err = json.Unmarshal(data, &raw)
	default:
		return nil, fmt.Errorf("unsupported syntax %q", syntax)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", syntax, err)
	}
	return raw, nil
}

// Encode writes f in the given syntax.
func Encode(w io.Writer, f ParamsFile, syntax Syntax) error {
	var buf bytes.Buffer
	switch syntax {
	case SyntaxYAML:
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(f); err != nil {
			return err
		}
		if err := enc.Close(); err != nil {
			return err
		}
	case SyntaxTOML:
		if err := toml.NewEncoder(&buf).Encode(f); err != nil {
			return err
		}
	case SyntaxJSON:
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		if err := enc.Encode(f); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported syntax %q", syntax)
	}
	_, err := w.Write(buf.Bytes())
	return err
}
