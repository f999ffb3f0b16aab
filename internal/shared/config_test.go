package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Server.BaseURL != "http://127.0.0.1:5000" {
			t.Errorf("expected base url http://127.0.0.1:5000, got %s", config.Server.BaseURL)
		}
		if config.Server.PlayerStreamPath != "/api/player/stream" {
			t.Errorf("unexpected player stream path %s", config.Server.PlayerStreamPath)
		}
		if config.Server.DownloadsStreamPath != "/api/downloads/stream" {
			t.Errorf("unexpected downloads stream path %s", config.Server.DownloadsStreamPath)
		}
		if config.Stream.MaxReconnectAttempts != 5 {
			t.Errorf("expected 5 reconnect attempts, got %d", config.Stream.MaxReconnectAttempts)
		}
		if config.Stream.BaseDelay() != time.Second {
			t.Errorf("expected 1s base delay, got %v", config.Stream.BaseDelay())
		}
		if config.Downloads.PruneAfter() != 10*time.Second {
			t.Errorf("expected 10s prune delay, got %v", config.Downloads.PruneAfter())
		}
		if config.Downloads.LibraryRefreshDelay() != time.Second {
			t.Errorf("expected 1s refresh delay, got %v", config.Downloads.LibraryRefreshDelay())
		}
		if config.Mock.Addr() != "127.0.0.1:5050" {
			t.Errorf("expected mock addr 127.0.0.1:5050, got %s", config.Mock.Addr())
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "nested", "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		if config.Server.BaseURL != DefaultConfig().Server.BaseURL {
			t.Errorf("created config base url doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig overrides defaults", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		testConfig := `[server]
base_url = "http://jukebox.lan:5000"

[stream]
max_reconnect_attempts = 3
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Server.BaseURL != "http://jukebox.lan:5000" {
			t.Errorf("expected overridden base url, got %s", config.Server.BaseURL)
		}
		if config.Stream.MaxReconnectAttempts != 3 {
			t.Errorf("expected 3 attempts, got %d", config.Stream.MaxReconnectAttempts)
		}
		if config.Stream.BaseDelayMS != 1000 {
			t.Errorf("expected default base delay to survive, got %d", config.Stream.BaseDelayMS)
		}
	})

	t.Run("LoadConfig rejects invalid values", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(configPath, []byte("[stream]\nbase_delay_ms = 0\n"), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		_, err := LoadConfig(configPath)
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("LoadConfig rejects malformed TOML", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(configPath, []byte("[server\n"), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if _, err := LoadConfig(configPath); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("SaveConfig round trips", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		config := DefaultConfig()
		config.Server.BaseURL = "http://10.0.0.2:5000"

		if err := SaveConfig(configPath, config); err != nil {
			t.Fatalf("failed to save config: %v", err)
		}

		loaded, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load saved config: %v", err)
		}
		if loaded.Server.BaseURL != "http://10.0.0.2:5000" {
			t.Errorf("expected saved base url, got %s", loaded.Server.BaseURL)
		}
	})

	t.Run("ResolveConfig with missing explicit path", func(t *testing.T) {
		_, _, err := ResolveConfig(filepath.Join(t.TempDir(), "missing.toml"))
		if !errors.Is(err, ErrMissingConfig) {
			t.Errorf("expected ErrMissingConfig, got %v", err)
		}
	})

	t.Run("ResolveConfig prefers explicit path", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(configPath, []byte("[server]\nbase_url = \"http://explicit\"\n"), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, used, err := ResolveConfig(configPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if used != configPath || config.Server.BaseURL != "http://explicit" {
			t.Errorf("expected explicit config, got %s from %s", config.Server.BaseURL, used)
		}
	})

	t.Run("ConfigPaths ends with the user config", func(t *testing.T) {
		paths := ConfigPaths("")
		if paths[len(paths)-1] != UserConfigPath() {
			t.Errorf("expected user config last, got %v", paths)
		}
	})
}
