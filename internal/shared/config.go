package shared

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/adrg/xdg"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Stream    StreamConfig    `toml:"stream"`
	Downloads DownloadsConfig `toml:"downloads"`
	Import    ImportConfig    `toml:"import"`
	Cache     CacheConfig     `toml:"cache"`
	Mock      MockConfig      `toml:"mock"`
}

// ServerConfig locates the jukebox server.
type ServerConfig struct {
	BaseURL             string `toml:"base_url"`
	PlayerStreamPath    string `toml:"stream_path_player"`
	DownloadsStreamPath string `toml:"stream_path_downloads"`
	TimeoutSeconds      int    `toml:"timeout_seconds"`
}

// StreamConfig contains push channel reconnect settings.
type StreamConfig struct {
	MaxReconnectAttempts int `toml:"max_reconnect_attempts"`
	BaseDelayMS          int `toml:"base_delay_ms"`
}

// DownloadsConfig contains download tracker timings.
type DownloadsConfig struct {
	PruneAfterSeconds     int `toml:"prune_after_seconds"`
	LibraryRefreshDelayMS int `toml:"library_refresh_delay_ms"`
}

// ImportConfig contains bulk import throttling.
type ImportConfig struct {
	RateLimit float64 `toml:"rate_limit"`
	Workers   int     `toml:"workers"`
}

// CacheConfig contains local cache database settings.
type CacheConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// MockConfig contains settings for the local fake backend.
type MockConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Timeout returns the REST request timeout.
func (s ServerConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// BaseDelay returns the first reconnect delay.
func (s StreamConfig) BaseDelay() time.Duration {
	return time.Duration(s.BaseDelayMS) * time.Millisecond
}

// PruneAfter returns how long terminal download entries stay visible.
func (d DownloadsConfig) PruneAfter() time.Duration {
	return time.Duration(d.PruneAfterSeconds) * time.Second
}

// LibraryRefreshDelay returns the delay between a completed download and the library refresh.
func (d DownloadsConfig) LibraryRefreshDelay() time.Duration {
	return time.Duration(d.LibraryRefreshDelayMS) * time.Millisecond
}

// Addr returns the mock backend listen address.
func (m MockConfig) Addr() string {
	return fmt.Sprintf("%s:%d", m.Host, m.Port)
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate rejects configurations the client cannot run with.
func (c *Config) Validate() error {
	if c.Server.BaseURL == "" {
		return fmt.Errorf("%w: server.base_url is required", ErrInvalidConfig)
	}
	if c.Stream.MaxReconnectAttempts < 0 {
		return fmt.Errorf("%w: stream.max_reconnect_attempts must be >= 0", ErrInvalidConfig)
	}
	if c.Stream.BaseDelayMS <= 0 {
		return fmt.Errorf("%w: stream.base_delay_ms must be > 0", ErrInvalidConfig)
	}
	return nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// SaveConfig writes the configuration to path as TOML.
func SaveConfig(path string, config *Config) error {
	if config == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalidConfig)
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ConfigPaths lists candidate config locations, highest priority first.
//
// An explicit path wins, then ./config.toml, then $XDG_CONFIG_HOME/jbx/config.toml.
func ConfigPaths(explicit string) []string {
	paths := []string{}
	if explicit != "" {
		paths = append(paths, explicit)
	}
	paths = append(paths, "config.toml", UserConfigPath())
	return paths
}

// UserConfigPath returns the per-user config file location.
func UserConfigPath() string {
	return filepath.Join(xdg.ConfigHome, "jbx", "config.toml")
}

// ResolveConfig loads the first config file found in [ConfigPaths], falling back to defaults.
//
// The returned path is empty when defaults were used.
func ResolveConfig(explicit string) (*Config, string, error) {
	for _, path := range ConfigPaths(explicit) {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		config, err := LoadConfig(path)
		if err != nil {
			return nil, path, err
		}
		return config, path, nil
	}

	if explicit != "" {
		return nil, explicit, fmt.Errorf("%w: %s", ErrMissingConfig, explicit)
	}
	return DefaultConfig(), "", nil
}
