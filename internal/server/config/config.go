package config

import (
	"fmt"
	"time"

	"confd/internal/audit/forward"
	"confd/internal/logger"
	"confd/internal/reload"
	"confd/internal/storage"

	"github.com/spf13/viper"
)

// Config represents the complete server configuration
type Config struct {
	Server  ServerConfig   `mapstructure:"server"`
	Storage storage.Config `mapstructure:"storage"`
	Runtime RuntimeConfig  `mapstructure:"runtime"`
	Forward forward.Config `mapstructure:"forward"`
	Reload  ReloadConfig   `mapstructure:"reload"`
	API     APIConfig      `mapstructure:"api"`
	Log     logger.Config  `mapstructure:"log"`
}

// ServerConfig represents the HTTP server configuration
type ServerConfig struct {
	Address      string        `mapstructure:"address"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	TLS          TLSConfig     `mapstructure:"tls"`
}

// TLSConfig represents the TLS configuration
type TLSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

// RuntimeConfig represents the managed runtime configuration policy
type RuntimeConfig struct {
	// Seed values applied at first start when storage holds no config
	Seed map[string]string `mapstructure:"seed"`

	// Key-name substrings marking values as sensitive for masking;
	// empty means the built-in list
	SensitiveKeys []string `mapstructure:"sensitive_keys"`

	// Keys that can never be deleted; empty means the built-in list
	RequiredKeys []string `mapstructure:"required_keys"`

	// Create a snapshot automatically before every update/delete
	SnapshotOnChange bool `mapstructure:"snapshot_on_change"`
}

// ReloadConfig represents the hot-reload configuration
type ReloadConfig struct {
	// Per-listener notification timeout
	Timeout time.Duration `mapstructure:"timeout"`

	// Notify listeners automatically after every committed mutation
	NotifyOnChange bool `mapstructure:"notify_on_change"`

	// Optional Redis broadcast for sibling processes
	Redis reload.RedisConfig `mapstructure:"redis"`

	// Optional webhook notification for external consumers
	Webhook reload.WebhookConfig `mapstructure:"webhook"`
}

// APIConfig represents the API configuration
type APIConfig struct {
	// Authentication
	Auth AuthConfig `mapstructure:"auth"`

	// CORS settings
	CORS CORSConfig `mapstructure:"cors"`

	// Rate limiting
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// AuthConfig represents the authentication configuration
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Type    string `mapstructure:"type"` // apikey, basic
	APIKey  string `mapstructure:"api_key"`
}

// CORSConfig represents the CORS configuration
type CORSConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	MaxAge           int      `mapstructure:"max_age"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
}

// RateLimitConfig represents the rate limiting configuration
type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// LoadConfig loads server configuration from file
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	setDefaults(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default values for configuration
func setDefaults(config *Config) {
	if config.Server.Address == "" {
		config.Server.Address = ":8080"
	}
	if config.Server.ReadTimeout == 0 {
		config.Server.ReadTimeout = 30 * time.Second
	}
	if config.Server.WriteTimeout == 0 {
		config.Server.WriteTimeout = 30 * time.Second
	}
	if config.Server.IdleTimeout == 0 {
		config.Server.IdleTimeout = 120 * time.Second
	}

	if config.Reload.Timeout == 0 {
		config.Reload.Timeout = 5 * time.Second
	}

	if config.API.RateLimit.Window == 0 {
		config.API.RateLimit.Window = time.Minute
	}
	if config.API.RateLimit.Requests == 0 {
		config.API.RateLimit.Requests = 60
	}
	if config.API.CORS.MaxAge == 0 {
		config.API.CORS.MaxAge = 86400
	}
	if len(config.API.CORS.AllowedMethods) == 0 {
		config.API.CORS.AllowedMethods = []string{
			"GET", "POST", "PUT", "DELETE", "OPTIONS",
		}
	}
	if len(config.API.CORS.AllowedHeaders) == 0 {
		config.API.CORS.AllowedHeaders = []string{
			"Content-Type", "Authorization", "X-Request-ID", "X-User-ID",
		}
	}

	config.Log.SetDefaults()
}

// validateConfig validates the configuration
func validateConfig(config *Config) error {
	if err := config.Storage.Validate(); err != nil {
		return fmt.Errorf("invalid storage config: %w", err)
	}

	if config.Server.TLS.Enabled {
		if config.Server.TLS.CertFile == "" || config.Server.TLS.KeyFile == "" {
			return fmt.Errorf("tls requires cert_file and key_file")
		}
	}

	if config.API.Auth.Enabled {
		switch config.API.Auth.Type {
		case "apikey":
			if config.API.Auth.APIKey == "" {
				return fmt.Errorf("apikey auth requires api_key")
			}
		case "basic":
		default:
			return fmt.Errorf("unsupported auth type: %s", config.API.Auth.Type)
		}
	}

	if err := config.Log.Validate(); err != nil {
		return fmt.Errorf("invalid log config: %w", err)
	}

	return nil
}
