package plan

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gantryhq/gantry/internal/errors"
)

// Format identifies a plan document encoding.
type Format string

const (
	// FormatYAML parses the document with yaml.v3.
	FormatYAML Format = "yaml"
	// FormatJSON parses the document with encoding/json.
	FormatJSON Format = "json"
)

// ErrUnknownFormat indicates a plan file whose extension is not one of
// .yaml, .yml, or .json.
var ErrUnknownFormat = errors.New("unknown plan format")

// DetectFormat infers the document format from a file path's extension.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownFormat, filepath.Base(path))
	}
}

// Load reads and parses a plan file, inferring the format from the file
// extension. A plan with no name takes the file's base name.
func Load(path string) (*Plan, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading plan file: %w", err)
	}

	p, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}

	if p.Name == "" {
		base := filepath.Base(path)
		p.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return p, nil
}

// Parse decodes a plan document, applies plan defaults, and validates the
// parts of the document that graph validation cannot see. The returned plan
// is normalized and ready for TaskSpecs.
func Parse(data []byte, format Format) (*Plan, error) {
	var p Plan
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("parsing plan: %w", err)
		}
	case FormatJSON:
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("parsing plan: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	p.Normalize()
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid plan: %w", err)
	}
	return &p, nil
}
