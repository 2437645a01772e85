package achem

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Format names a scenario encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatFromPath picks the encoding from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("unsupported scenario file extension: %q", filepath.Ext(path))
	}
}

// DecodeScenario parses a scenario in the given format. Unknown fields are
// rejected so that typos in scenario files do not pass silently.
func DecodeScenario(data []byte, format Format) (ScenarioConfig, error) {
	var cfg ScenarioConfig
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return ScenarioConfig{}, fmt.Errorf("failed to decode scenario: %w", err)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return ScenarioConfig{}, fmt.Errorf("failed to decode scenario: %w", err)
		}
	case FormatTOML:
		md, err := toml.Decode(string(data), &cfg)
		if err != nil {
			return ScenarioConfig{}, fmt.Errorf("failed to decode scenario: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return ScenarioConfig{}, fmt.Errorf("failed to decode scenario: unknown key %s", undecoded[0])
		}
	default:
		return ScenarioConfig{}, fmt.Errorf("unsupported scenario format: %q", format)
	}
	return cfg, nil
}

// LoadScenarioFile reads and validates a scenario file.
func LoadScenarioFile(path string) (ScenarioConfig, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return ScenarioConfig{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ScenarioConfig{}, fmt.Errorf("failed to read scenario file: %w", err)
	}
	cfg, err := DecodeScenario(data, format)
	if err != nil {
		return ScenarioConfig{}, err
	}
	if err := ValidateScenarioConfig(cfg); err != nil {
		return ScenarioConfig{}, err
	}
	return cfg, nil
}
