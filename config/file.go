package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

// AppName names the per-user configuration directory.
const AppName = "bookcrawl"

// DefaultConfigFile is the file name looked up under the XDG config home.
const DefaultConfigFile = "config.yaml"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// LoadFile overlays the YAML document at path onto cfg.
// Keys absent from the file keep their current value.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrConfigNotFound
		}
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// FindConfigFile returns explicit when it exists, otherwise the per-user
// config file under the XDG config home. It returns "" when nothing is found.
func FindConfigFile(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}

	candidate := filepath.Join(xdg.ConfigHome, AppName, DefaultConfigFile)
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return ""
}

// Load builds a configuration from defaults, an optional YAML file and the
// environment, in that order of precedence.
func Load(explicitFile string) (*Config, error) {
	cfg := DefaultConfig()

	if path := FindConfigFile(explicitFile); path != "" {
		if err := LoadFile(path, cfg); err != nil {
			return nil, err
		}
	} else if explicitFile != "" {
		return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, explicitFile)
	}

	if err := ApplyEnv(cfg); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}
	return cfg, nil
}
