// Package config loads the optional dwarf-writer config file.
// Command-line flags always take precedence over file values.
package config

import (
	"fmt"
	"os"
	"path"

	"gopkg.in/yaml.v2"
)

const (
	configDir  string = ".dwarf-writer"
	configFile string = "config.yml"
)

// Config defines all configuration options available to be set
// through the config file.
type Config struct {
	// SpliceTool is the objcopy-compatible binary used to write
	// sections back into an ELF file.
	SpliceTool string `yaml:"splice-tool"`
	// LogOutput is the default comma-separated list of components that
	// should produce debug output.
	LogOutput string `yaml:"log-output"`
	// AcceptLowConfidence admits STR BSI records below full
	// confidence without the -u flag.
	AcceptLowConfidence bool `yaml:"accept-low-confidence"`
}

// LoadConfig attempts to populate a Config object from the
// config.yml file. A missing file yields the zero config.
func LoadConfig() (*Config, error) {
	fullPath, err := configPath()
	if err != nil {
		return &Config{}, nil
	}
	data, err := os.ReadFile(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("could not read config file: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("unable to decode config file: %w", err)
	}
	return &c, nil
}

func configPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return path.Join(home, configDir, configFile), nil
}
