// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds application paths and tunables.
type Config struct {
	HomeDir      string
	RetraceDir   string
	ClaudeDir    string
	DatabasePath string

	Settings Settings
}

// Settings are the user-tunable knobs, read from config.yaml when present.
type Settings struct {
	// CompressionLevel is the zstd level for the revision content pool.
	CompressionLevel int `yaml:"compression_level"`
	// PollInterval is how often follow mode polls without a file event.
	PollInterval time.Duration `yaml:"poll_interval"`
	// Debounce is the quiet window before a changed session file triggers
	// a poll.
	Debounce time.Duration `yaml:"debounce"`
}

// DefaultSettings returns the settings used when no config file exists.
func DefaultSettings() Settings {
	return Settings{
		CompressionLevel: 3,
		PollInterval:     30 * time.Second,
		Debounce:         500 * time.Millisecond,
	}
}

// Load creates a Config with resolved paths, reading ~/.retrace/config.yaml
// if it exists.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	retraceDir := filepath.Join(home, ".retrace")
	if err := os.MkdirAll(retraceDir, 0755); err != nil {
		return nil, err
	}

	cfg := &Config{
		HomeDir:      home,
		RetraceDir:   retraceDir,
		ClaudeDir:    filepath.Join(home, ".claude"),
		DatabasePath: filepath.Join(retraceDir, "retrace.db"),
		Settings:     DefaultSettings(),
	}

	settingsPath := filepath.Join(retraceDir, "config.yaml")
	data, err := os.ReadFile(settingsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg.Settings); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return cfg, nil
}

// StoreDir returns the revision storage directory for a project.
func (c *Config) StoreDir(projectID string) string {
	return filepath.Join(c.RetraceDir, "store", projectID)
}
