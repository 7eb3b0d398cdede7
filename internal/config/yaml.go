package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SourceDescriptor pre-registers a location/type pair for create-source
// convenience scripting.
type SourceDescriptor struct {
	Type     string `yaml:"type"`
	Location string `yaml:"location"`
}

// sourcesFile is the on-disk shape of a --sources-file document.
type sourcesFile struct {
	Sources []SourceDescriptor `yaml:"sources"`
}

// LoadSourcesFromYAML reads and validates a --sources-file document.
func LoadSourcesFromYAML(path string) ([]SourceDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var doc sourcesFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	for i, src := range doc.Sources {
		if src.Type == "" {
			return nil, fmt.Errorf("config: source at index %d has no type", i)
		}
	}

	return doc.Sources, nil
}
