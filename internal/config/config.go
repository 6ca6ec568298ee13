package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for skymirror.
type Config struct {
	DataDir  string         `toml:"data_dir"`
	LogDir   string         `toml:"log_dir"`
	HTTP     HTTPConfig     `toml:"http"`
	Feed     FeedConfig     `toml:"feed"`
	Identity IdentityConfig `toml:"identity"`
	Sweep    SweepConfig    `toml:"sweep"`
}

// HTTPConfig holds the read-path API settings.
type HTTPConfig struct {
	Addr string `toml:"addr"`
}

// FeedConfig holds the Jetstream subscription settings.
type FeedConfig struct {
	URL        string `toml:"url"`
	CursorFile string `toml:"cursor_file,omitempty"`
}

// IdentityConfig holds identity-network endpoints and resolver tuning.
type IdentityConfig struct {
	PLCHost      string `toml:"plc_host,omitempty"`
	AppviewHost  string `toml:"appview_host,omitempty"`
	AppviewToken string `toml:"appview_token,omitempty"`
	Concurrency  int    `toml:"concurrency,omitempty"`
}

// SweepConfig holds session-sweeper scheduling.
type SweepConfig struct {
	IntervalMinutes int `toml:"interval_minutes"`
}

// NewConfig creates a Config with defaults rooted at baseDir.
func NewConfig(baseDir string) *Config {
	return &Config{
		DataDir: filepath.Join(baseDir, "data"),
		LogDir:  filepath.Join(baseDir, "log"),
		HTTP:    HTTPConfig{Addr: ":8080"},
		Feed: FeedConfig{
			URL:        "wss://jetstream2.us-east.bsky.network/subscribe",
			CursorFile: filepath.Join(baseDir, "data", "cursor"),
		},
		Identity: IdentityConfig{
			AppviewHost: "https://public.api.bsky.app",
		},
		Sweep: SweepConfig{IntervalMinutes: 60},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
