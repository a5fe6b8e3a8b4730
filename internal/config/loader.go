package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// searchPaths returns the ordered list of config file locations to try.
func searchPaths() []string {
	paths := []string{
		"/etc/recents/recents.yaml",
	}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "recents", "recents.yaml"))
	}

	paths = append(paths, "recents.yaml")

	if envPath := os.Getenv("RECENTS_CONFIG"); envPath != "" {
		paths = append(paths, envPath)
	}

	return paths
}

// Load reads configuration from YAML files and environment variables.
// Files are loaded in order (each overrides the previous):
// /etc/recents/recents.yaml < ~/.config/recents/recents.yaml < ./recents.yaml < $RECENTS_CONFIG
func Load() (*Config, error) {
	cfg := Defaults()

	for _, path := range searchPaths() {
		if err := loadFile(cfg, path); err != nil {
			return nil, fmt.Errorf("loading config %s: %w", path, err)
		}
	}

	return finish(cfg)
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	cfg := Defaults()

	if err := loadFile(cfg, path); err != nil {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}

	return finish(cfg)
}

func finish(cfg *Config) (*Config, error) {
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables have higher priority than YAML config values.
func applyEnvOverrides(cfg *Config) error {
	if token := os.Getenv("RECENTS_NGROK_AUTHTOKEN"); token != "" {
		cfg.Tunnel.AuthToken = token
	}

	if v := os.Getenv("RECENTS_OVERVIEW_IN_WINDOW"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("RECENTS_OVERVIEW_IN_WINDOW: %w", err)
		}
		cfg.Session.OverviewInWindow = b
	}

	return nil
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from trusted config search paths
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}

	slog.Debug("loading config file", "path", path)

	expanded := os.ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("parsing YAML: %w", err)
	}

	return nil
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

func validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", cfg.Server.Port)
	}

	if cfg.Server.Host == "0.0.0.0" {
		return fmt.Errorf("server.host must not be 0.0.0.0, bind to localhost and use tunnel.enabled for public access")
	}

	switch strings.ToLower(cfg.Server.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("server.log_level must be one of debug, info, warn, error; got %q", cfg.Server.LogLevel)
	}

	if cfg.Database.RetentionDays < 0 {
		return fmt.Errorf("database.retention_days must not be negative")
	}

	if cfg.Database.Buffer < 1 {
		return fmt.Errorf("database.buffer must be at least 1")
	}

	if cfg.Session.Retention < 0 {
		return fmt.Errorf("session.retention must not be negative")
	}

	if cfg.Tasks.MaxTasks < 1 {
		return fmt.Errorf("tasks.max_tasks must be at least 1")
	}

	if cfg.Tunnel.Enabled && cfg.Tunnel.AuthToken == "" {
		return fmt.Errorf("tunnel.authtoken is required when tunnel.enabled is true (or set RECENTS_NGROK_AUTHTOKEN)")
	}

	for i, t := range cfg.Auth.APITokens {
		if t.TokenHash == "" {
			return fmt.Errorf("auth.api_tokens[%d] (%s) has no token_hash", i, t.Name)
		}
	}

	cfg.Database.Path = ExpandHome(cfg.Database.Path)
	cfg.Auth.TokenDir = ExpandHome(cfg.Auth.TokenDir)

	return nil
}
