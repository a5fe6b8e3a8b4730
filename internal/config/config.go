package config

import "time"

// Config is the root configuration for recents.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Auth          AuthConfig          `yaml:"auth"`
	Database      DatabaseConfig      `yaml:"database"`
	Session       SessionConfig       `yaml:"session"`
	Tasks         TasksConfig         `yaml:"tasks"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Tunnel        TunnelConfig        `yaml:"tunnel"`
	Metrics       MetricsConfig       `yaml:"metrics"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	LogLevel        string        `yaml:"log_level"`
	LogFile         string        `yaml:"log_file"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type AuthConfig struct {
	// TokenDir holds the generated token file when no api_tokens are set.
	TokenDir  string          `yaml:"token_dir"`
	APITokens []APITokenEntry `yaml:"api_tokens"`
}

type APITokenEntry struct {
	Name      string `yaml:"name"`
	TokenHash string `yaml:"token_hash"`
}

type DatabaseConfig struct {
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
	// Buffer is the number of journal events queued before new ones are dropped.
	Buffer int `yaml:"buffer"`
}

type SessionConfig struct {
	OverviewInWindow bool `yaml:"overview_in_window"`
	DesktopMode      bool `yaml:"desktop_mode"`

	// Retention is how long a terminated session stays queryable before it
	// is reaped. Zero keeps sessions until they are closed.
	Retention time.Duration `yaml:"retention"`
}

type TasksConfig struct {
	MaxTasks int `yaml:"max_tasks"`
}

type NotificationsConfig struct {
	MCP       MCPNotificationsConfig `yaml:"mcp"`
	WebSocket WebSocketConfig        `yaml:"websocket"`
}

type MCPNotificationsConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce"`
}

type WebSocketConfig struct {
	Enabled    bool `yaml:"enabled"`
	SendBuffer int  `yaml:"send_buffer"`
}

type TunnelConfig struct {
	Enabled   bool   `yaml:"enabled"`
	AuthToken string `yaml:"authtoken"`
	Domain    string `yaml:"domain"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Defaults returns a Config with sensible default values.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            8430,
			LogLevel:        "info",
			ShutdownTimeout: 10 * time.Second,
		},
		Auth: AuthConfig{
			TokenDir: "~/.config/recents",
		},
		Database: DatabaseConfig{
			Path:          "~/.config/recents/recents.db",
			RetentionDays: 30,
			Buffer:        1024,
		},
		Session: SessionConfig{
			Retention: time.Hour,
		},
		Tasks: TasksConfig{
			MaxTasks: 64,
		},
		Notifications: NotificationsConfig{
			MCP: MCPNotificationsConfig{
				Enabled:  true,
				Debounce: 3 * time.Second,
			},
			WebSocket: WebSocketConfig{
				Enabled:    true,
				SendBuffer: 64,
			},
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}
