package config

import "time"

// APIConfig locates the REST API the client talks to.
type APIConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// SessionConfig selects where the access token is persisted.
type SessionConfig struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
}

// LogConfig controls the default logger.
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// RateLimitConfig bounds login attempts against the stub API server.
type RateLimitConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	Window      time.Duration `mapstructure:"window"`
	BlockAfter  int           `mapstructure:"block_after"`
	BlockTime   time.Duration `mapstructure:"block_time"`
}

// ServerConfig configures the stub API server started by "serverboard serve".
type ServerConfig struct {
	Port        int             `mapstructure:"port"`
	UsersFile   string          `mapstructure:"users_file"`
	ServersFile string          `mapstructure:"servers_file"`
	TokenTTL    time.Duration   `mapstructure:"token_ttl"`
	RateLimit   RateLimitConfig `mapstructure:"rate_limit"`
}

// Config is the merged result of defaults, config file, .env, environment
// and command-line flags.
type Config struct {
	API     APIConfig     `mapstructure:"api"`
	Session SessionConfig `mapstructure:"session"`
	Log     LogConfig     `mapstructure:"log"`
	Server  ServerConfig  `mapstructure:"server"`
	Locale  string        `mapstructure:"locale"`
}

// Session storage backends.
const (
	SessionBackendFile   = "file"
	SessionBackendSQLite = "sqlite"
	SessionBackendMemory = "memory"
)
