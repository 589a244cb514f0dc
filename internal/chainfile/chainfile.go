// Package chainfile reads and writes chain description files.
//
// Three encodings share one document shape: JSON, YAML and HCL. In HCL each
// stage is a block labelled with its kind, and expressions may refer to the
// constants t0 (290 K) and boltzmann:
//
//	name = "l-band-rx"
//
//	globals {
//	  bandwidth_hz         = 20e6
//	  input_power_dbm      = -90
//	  system_temperature_k = t0 + 30
//	  direction            = "rx"
//	}
//
//	stage "amplifier" {
//	  part_number     = "LNA"
//	  gain_db         = 18
//	  noise_figure_db = 0.8
//	  linearity       = "output"
//	  p1db_dbm        = 12
//	}
//
// Anything left out takes the kind's factory default. A stage that sets
// linearity starts with no ratings, so only the ratings it lists apply.
package chainfile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/signalsfoundry/rfcascade/model"
	"gopkg.in/yaml.v3"
)

var (
	// ErrUnsupportedFormat is returned for file extensions or format names
	// no decoder exists for.
	ErrUnsupportedFormat = errors.New("unsupported chain file format")
	// ErrInvalidDocument is returned when a document decodes but fails
	// validation.
	ErrInvalidDocument = errors.New("invalid chain document")
)

// Format names a chain file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatHCL  Format = "hcl"
)

// ParseFormat maps a format name or file extension onto a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "hcl":
		return FormatHCL, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// FormatFromPath picks the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	return ParseFormat(filepath.Ext(path))
}

// Load reads and parses the chain file at path. A document without a name
// is named after the file.
func Load(path string) (model.ChainSpec, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return model.ChainSpec{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return model.ChainSpec{}, fmt.Errorf("read chain file: %w", err)
	}
	spec, err := parse(data, format, path)
	if err != nil {
		return model.ChainSpec{}, err
	}
	if spec.Name == "" {
		spec.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return spec, nil
}

// Parse decodes, validates and translates a chain document.
func Parse(data []byte, format Format) (model.ChainSpec, error) {
	return parse(data, format, "chain."+string(format))
}

func parse(data []byte, format Format, filename string) (model.ChainSpec, error) {
	var doc chainDoc
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return model.ChainSpec{}, fmt.Errorf("%w: decode json: %v", ErrInvalidDocument, err)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil {
			return model.ChainSpec{}, fmt.Errorf("%w: decode yaml: %v", ErrInvalidDocument, err)
		}
	case FormatHCL:
		if err := decodeHCL(data, filename, &doc); err != nil {
			return model.ChainSpec{}, err
		}
	default:
		return model.ChainSpec{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err := doc.validate(); err != nil {
		return model.ChainSpec{}, err
	}
	return doc.toSpec()
}

// Marshal encodes spec in the given format. Infinite ratings are omitted.
func Marshal(spec model.ChainSpec, format Format) ([]byte, error) {
	doc := fromSpec(spec)
	switch format {
	case FormatJSON:
		out, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode json: %w", err)
		}
		return append(out, '\n'), nil
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return nil, fmt.Errorf("encode yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("encode yaml: %w", err)
		}
		return buf.Bytes(), nil
	case FormatHCL:
		return encodeHCL(doc), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

// Save writes spec to path in the format implied by its extension.
func Save(path string, spec model.ChainSpec) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	data, err := Marshal(spec, format)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write chain file: %w", err)
	}
	return nil
}
