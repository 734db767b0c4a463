// internal/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig_Load(t *testing.T) {
	home, err := os.MkdirTemp("", "config_test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(home)
	t.Setenv("HOME", home)

	t.Run("DefaultsWithoutConfigFile", func(t *testing.T) {
		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}

		if cfg.RetraceDir != filepath.Join(home, ".retrace") {
			t.Errorf("Unexpected RetraceDir %s", cfg.RetraceDir)
		}
		if _, err := os.Stat(cfg.RetraceDir); os.IsNotExist(err) {
			t.Error("RetraceDir should be created")
		}
		if cfg.ClaudeDir != filepath.Join(home, ".claude") {
			t.Errorf("Unexpected ClaudeDir %s", cfg.ClaudeDir)
		}
		if cfg.Settings != DefaultSettings() {
			t.Errorf("Expected default settings, got %+v", cfg.Settings)
		}
	})

	t.Run("ConfigFileOverrides", func(t *testing.T) {
		yaml := "compression_level: 9\npoll_interval: 5s\ndebounce: 250ms\n"
		path := filepath.Join(home, ".retrace", "config.yaml")
		if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
			t.Fatal(err)
		}
		defer os.Remove(path)

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if cfg.Settings.CompressionLevel != 9 {
			t.Errorf("Expected compression level 9, got %d", cfg.Settings.CompressionLevel)
		}
		if cfg.Settings.PollInterval != 5*time.Second {
			t.Errorf("Expected poll interval 5s, got %v", cfg.Settings.PollInterval)
		}
		if cfg.Settings.Debounce != 250*time.Millisecond {
			t.Errorf("Expected debounce 250ms, got %v", cfg.Settings.Debounce)
		}
	})

	t.Run("InvalidConfigFileFails", func(t *testing.T) {
		path := filepath.Join(home, ".retrace", "config.yaml")
		if err := os.WriteFile(path, []byte(":\nnot yaml {{{"), 0644); err != nil {
			t.Fatal(err)
		}
		defer os.Remove(path)

		if _, err := Load(); err == nil {
			t.Error("Expected error for invalid config file")
		}
	})
}

func TestConfig_StoreDir(t *testing.T) {
	cfg := &Config{RetraceDir: "/home/u/.retrace"}
	got := cfg.StoreDir("-home-u-proj")
	want := filepath.Join("/home/u/.retrace", "store", "-home-u-proj")
	if got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}
}
