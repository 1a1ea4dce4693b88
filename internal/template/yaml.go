package template

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

const fileVersion = 1

type fileDocument struct {
	Version int    `yaml:"version"`
	Name    string `yaml:"name"`
	Tracks  Tracks `yaml:"tracks"`
}

// EncodeYAML renders a template as a shareable file. Identity and timestamps
// are left out; an imported file always becomes a new draft.
func EncodeYAML(t Template) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(fileDocument{
		Version: fileVersion,
		Name:    t.Name,
		Tracks:  t.Tracks.Clone(),
	}); err != nil {
		return nil, fmt.Errorf("encode template: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode template: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeYAML parses a template file into an unsaved draft.
func DecodeYAML(data []byte) (Template, error) {
	var doc fileDocument
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return Template{}, fmt.Errorf("decode template: %w", err)
	}
	if doc.Version != fileVersion {
		return Template{}, fmt.Errorf("decode template: unsupported version %d", doc.Version)
	}
	return Template{Name: doc.Name, Tracks: doc.Tracks.Clone()}, nil
}
