package admin

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"

	"github.com/GriffinCanCode/shmbus/internal/shared/paths"
)

// ErrUnknownFormat reports a manifest file with an unrecognized extension
var ErrUnknownFormat = errors.New("unknown manifest format")

// Format is a manifest encoding
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// Manifest declares the segments and topics an application expects.
type Manifest struct {
	Segments []SegmentSpec `yaml:"segments" toml:"segments" json:"segments"`
	Topics   []string      `yaml:"topics" toml:"topics" json:"topics"`
}

// SegmentSpec declares one segment and its fixed size
type SegmentSpec struct {
	Name string `yaml:"name" toml:"name" json:"name"`
	Size int    `yaml:"size" toml:"size" json:"size"`
}

// FormatOf picks the manifest format from a file extension
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, path)
	}
}

// LoadManifest reads a manifest file
func LoadManifest(path string) (*Manifest, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return ParseManifest(data, format)
}

// ParseManifest decodes a manifest
func ParseManifest(data []byte, format Format) (*Manifest, error) {
	var m Manifest
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("parse yaml manifest: %w", err)
		}
	case FormatTOML:
		if err := toml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("parse toml manifest: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	return &m, nil
}

// Encode renders the manifest in the given format
func (m *Manifest) Encode(format Format) ([]byte, error) {
	switch format {
	case FormatYAML:
		return yaml.Marshal(m)
	case FormatTOML:
		return toml.Marshal(m)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// Validate checks every name against the namespace and rejects duplicates
// and non-positive sizes
func (m *Manifest) Validate(ns paths.Namespace) error {
	var errs []error

	seen := make(map[string]bool)
	for _, s := range m.Segments {
		if err := ns.ValidateName(s.Name); err != nil {
			errs = append(errs, fmt.Errorf("segment: %w", err))
			continue
		}
		if s.Size <= 0 {
			errs = append(errs, fmt.Errorf("segment %q: size must be positive, got %d", s.Name, s.Size))
		}
		if seen[s.Name] {
			errs = append(errs, fmt.Errorf("segment %q declared twice", s.Name))
		}
		seen[s.Name] = true
	}

	seen = make(map[string]bool)
	for _, name := range m.Topics {
		if err := ns.ValidateTopicName(name); err != nil {
			errs = append(errs, fmt.Errorf("topic: %w", err))
			continue
		}
		if seen[name] {
			errs = append(errs, fmt.Errorf("topic %q declared twice", name))
		}
		seen[name] = true
	}

	return errors.Join(errs...)
}
