package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"golang.org/x/text/language"

	"github.com/thruflo/serverboard/internal/logging"
)

// Default values for Config.
const (
	DefaultAPIURL      = "https://playground.tesonet.lt/v1"
	DefaultAPITimeout  = 15 * time.Second
	DefaultLogLevel    = "warn"
	DefaultLocale      = "en"
	DefaultServerPort  = 8374
	DefaultTokenTTL    = 24 * time.Hour
	DefaultMaxAttempts = 5
	DefaultBlockAfter  = 10

	// EnvPrefix prefixes environment overrides, e.g. SERVERBOARD_API_URL.
	EnvPrefix = "SERVERBOARD"
)

// DefaultDir returns the directory holding config.yaml and the session file.
func DefaultDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "serverboard")
	}
	return ".serverboard"
}

// DefaultSessionPath returns the default session location for a backend.
func DefaultSessionPath(backend string) string {
	if backend == SessionBackendSQLite {
		return filepath.Join(DefaultDir(), "session.db")
	}
	return filepath.Join(DefaultDir(), "session.json")
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			URL:     DefaultAPIURL,
			Timeout: DefaultAPITimeout,
		},
		Session: SessionConfig{
			Backend: SessionBackendFile,
		},
		Log: LogConfig{
			Level: DefaultLogLevel,
		},
		Server: ServerConfig{
			Port:     DefaultServerPort,
			TokenTTL: DefaultTokenTTL,
			RateLimit: RateLimitConfig{
				MaxAttempts: DefaultMaxAttempts,
				Window:      time.Minute,
				BlockAfter:  DefaultBlockAfter,
				BlockTime:   5 * time.Minute,
			},
		},
		Locale: DefaultLocale,
	}
}

// NewViper returns a viper instance primed with defaults and environment
// bindings. Callers bind their flags to it before calling Load.
func NewViper() *viper.Viper {
	v := viper.New()
	d := DefaultConfig()

	v.SetDefault("api.url", d.API.URL)
	v.SetDefault("api.timeout", d.API.Timeout)
	v.SetDefault("session.backend", d.Session.Backend)
	v.SetDefault("session.path", "")
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", "")
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.users_file", "")
	v.SetDefault("server.servers_file", "")
	v.SetDefault("server.token_ttl", d.Server.TokenTTL)
	v.SetDefault("server.rate_limit.max_attempts", d.Server.RateLimit.MaxAttempts)
	v.SetDefault("server.rate_limit.window", d.Server.RateLimit.Window)
	v.SetDefault("server.rate_limit.block_after", d.Server.RateLimit.BlockAfter)
	v.SetDefault("server.rate_limit.block_time", d.Server.RateLimit.BlockTime)
	v.SetDefault("locale", d.Locale)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// IsValidationError checks if an error is a ValidationError.
func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is not
// an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to stat env file: %w", err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// Load reads configFile (or config.yaml in DefaultDir when empty) into v and
// decodes the merged result. A missing default config file is not an error;
// a missing explicit one is.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		if _, err := os.Stat(configFile); err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("config file not found: %s", configFile)
			}
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(DefaultDir())
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else {
		logging.Debug("using config file", "path", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if cfg.Session.Path == "" && cfg.Session.Backend != SessionBackendMemory {
		cfg.Session.Path = DefaultSessionPath(cfg.Session.Backend)
	}

	if err := ValidateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ValidateConfig checks that all config values are valid.
func ValidateConfig(cfg *Config) error {
	u, err := url.Parse(cfg.API.URL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ValidationError{Field: "api.url", Message: "must be an absolute http(s) URL"}
	}
	if cfg.API.Timeout <= 0 {
		return ValidationError{Field: "api.timeout", Message: "must be positive"}
	}

	switch cfg.Session.Backend {
	case SessionBackendFile, SessionBackendSQLite:
		if cfg.Session.Path == "" {
			return ValidationError{Field: "session.path", Message: "required for " + cfg.Session.Backend + " backend"}
		}
	case SessionBackendMemory:
	default:
		return ValidationError{Field: "session.backend", Message: "must be one of file, sqlite, memory"}
	}

	if _, err := logging.ParseLevel(cfg.Log.Level); err != nil {
		return ValidationError{Field: "log.level", Message: "must be one of debug, info, warn, error"}
	}

	if _, err := language.Parse(cfg.Locale); err != nil {
		return ValidationError{Field: "locale", Message: "must be a BCP 47 language tag"}
	}

	return ValidateServerConfig(&cfg.Server)
}

// ValidateServerConfig checks that server config values are valid.
func ValidateServerConfig(cfg *ServerConfig) error {
	if cfg.Port < 0 || cfg.Port > 65535 {
		return ValidationError{Field: "server.port", Message: "must be between 0 and 65535"}
	}
	if cfg.TokenTTL <= 0 {
		return ValidationError{Field: "server.token_ttl", Message: "must be positive"}
	}
	if cfg.RateLimit.MaxAttempts <= 0 {
		return ValidationError{Field: "server.rate_limit.max_attempts", Message: "must be positive"}
	}
	if cfg.RateLimit.Window <= 0 {
		return ValidationError{Field: "server.rate_limit.window", Message: "must be positive"}
	}
	return nil
}
