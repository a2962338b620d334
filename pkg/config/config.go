package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the marctk configuration shared by the subcommands.
type Config struct {
	DataDir string  `yaml:"data_dir"` // key-value maps (notified db, subscriptions) live here
	Solr    Solr    `yaml:"solr"`
	SMTP    SMTP    `yaml:"smtp"`
	Logging Logging `yaml:"logging"`

	// Bundles maps an alert bundle name to the serial control numbers it
	// covers. Subscriptions reference bundles as "bundle:<name>".
	Bundles map[string][]string `yaml:"bundles"`

	// EmailTemplates maps a user realm to the path of its notification
	// e-mail template.
	EmailTemplates map[string]string `yaml:"email_templates"`
}

// Solr contains the catalog search server settings.
type Solr struct {
	HostAndPort    string `yaml:"host_and_port"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// SMTP contains the notification relay settings.
type SMTP struct {
	HostAndPort string `yaml:"host_and_port"`
}

// Logging contains logging configuration.
type Logging struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns a default configuration.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data",
		Solr: Solr{
			HostAndPort:    "localhost:8080",
			TimeoutSeconds: 5,
		},
		SMTP: SMTP{
			HostAndPort: "localhost:25",
		},
		Logging: Logging{
			Level: "info",
		},
	}
}

// LoadConfig loads configuration from the specified path.
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveConfig saves the configuration to the specified path.
func SaveConfig(config *Config, configPath string) error {
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetDefaultConfigPath returns the default configuration path for the
// current platform.
func GetDefaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./marctk.yaml"
	}
	return filepath.Join(homeDir, ".config", "marctk", "config.yaml")
}

// ConfigExists checks if a configuration file exists.
func ConfigExists(configPath string) bool {
	_, err := os.Stat(configPath)
	return !os.IsNotExist(err)
}
