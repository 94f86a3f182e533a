package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Encode renders the configuration in the format named by ext
// (".toml", ".json", ".yaml" or ".yml"). Unknown extensions get TOML.
func Encode(cfg *Config, ext string) ([]byte, error) {
	var buf bytes.Buffer

	switch ext {
	case ".json":
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return nil, err
		}
		buf.Write(data)
		buf.WriteByte('\n')
	case ".yaml", ".yml":
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
	default:
		fmt.Fprintf(&buf, "# rollscan configuration\n# Version %d\n\n", cfg.Version)
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

// SaveConfig saves the configuration to a file.
func SaveConfig(cfg *Config, path string) error {
	data, err := Encode(cfg, filepath.Ext(path))
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
