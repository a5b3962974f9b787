// Package config loads the browsetrace-replay YAML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

// AddressEnv overrides Server.Address when set.
const AddressEnv = "BROWSETRACE_ADDRESS"

// Config is the top-level configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Session  SessionConfig  `yaml:"session"`
	Document DocumentConfig `yaml:"document"`
	Browser  BrowserConfig  `yaml:"browser"`
}

type ServerConfig struct {
	Address string `yaml:"address"`
}

// DatabaseConfig locates the recordings store. An empty path means
// recordings.db in the application data directory.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// SessionConfig holds the record/replay settings.
type SessionConfig struct {
	Delay         time.Duration `yaml:"delay"`
	PlaybackSpeed float64       `yaml:"playback_speed"`
	Mode          string        `yaml:"mode"` // per_event | interval
	ScrollToTop   bool          `yaml:"scroll_to_top"`
	LogEvents     []string      `yaml:"log_events"`
	ExcludeIDs    []string      `yaml:"exclude_ids"`
}

// DocumentConfig points at an HTML fixture for the in-memory document.
type DocumentConfig struct {
	HTML string `yaml:"html"`
}

// BrowserConfig controls Chrome. Remote is a DevTools websocket URL; when
// empty a local browser is launched.
type BrowserConfig struct {
	Remote   string `yaml:"remote"`
	Headless bool   `yaml:"headless"`
	URL      string `yaml:"url"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{
		Session: SessionConfig{ScrollToTop: true},
		Browser: BrowserConfig{Headless: true},
	}
	cfg.applyDefaults()
	return cfg
}

// LoadFile reads a YAML configuration file. Keys absent from the file keep
// their defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = "127.0.0.1:8123"
	}
	if addr := os.Getenv(AddressEnv); addr != "" {
		c.Server.Address = addr
	}
	if c.Session.Delay <= 0 {
		c.Session.Delay = 25 * time.Millisecond
	}
	if c.Session.PlaybackSpeed <= 0 {
		c.Session.PlaybackSpeed = 1
	}
	if c.Session.Mode == "" {
		c.Session.Mode = "per_event"
	}
}

// DatabasePath returns Database.Path, or recordings.db in the application
// data directory, creating the directory if needed.
func (c *Config) DatabasePath() (string, error) {
	if c.Database.Path != "" {
		return c.Database.Path, nil
	}
	dir, err := AppDataDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("config: create application directory: %w", err)
	}
	return filepath.Join(dir, "recordings.db"), nil
}

// AppDataDir is the platform-specific application data directory.
func AppDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: user home directory: %w", err)
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "BrowserTrace"), nil
	case "windows":
		return filepath.Join(home, "AppData", "Roaming", "BrowserTrace"), nil
	default: // linux and others
		return filepath.Join(home, ".local", "share", "BrowserTrace"), nil
	}
}
