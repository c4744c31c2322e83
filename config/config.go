package config

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/viper"
)

// Config holds the configuration for the examgate server and its dependencies.
type Config struct {
	// Listen is the address the examgate server will listen on.
	Listen string `yaml:"listen" mapstructure:"listen"`
	// ServerURL is the base URL of the examgate server.
	ServerURL string `yaml:"server_url" mapstructure:"server_url"`
	// SessionKey is the key used to encrypt session cookies.
	SessionKey string `yaml:"session_key" mapstructure:"session_key"`
	// SessionMaxAge is the maximum age of a session in seconds.
	SessionMaxAge int `yaml:"session_max_age" mapstructure:"session_max_age"`
	// NotificationPollInterval is the interval in minutes for polling the
	// backend for new notifications.
	NotificationPollInterval int `yaml:"notification_poll_interval" mapstructure:"notification_poll_interval"`
	// Auth holds the authentication configuration.
	Auth *AuthConfig `yaml:"auth" mapstructure:"auth"`
	// Backend holds the configuration for the GrindOlympiads backend.
	Backend *BackendConfig `yaml:"backend" mapstructure:"backend"`
	// Database holds the database configuration.
	Database *DatabaseConfig `yaml:"database" mapstructure:"database"`
	// Cache holds the cache configuration.
	Cache *CacheConfig `yaml:"cache" mapstructure:"cache"`
	// Gravatar holds the configuration for Gravatar avatar fallbacks.
	Gravatar *GravatarConfig `yaml:"gravatar" mapstructure:"gravatar"`
	// WebPush holds the webpush notification configuration.
	WebPush *WebPushConfig `yaml:"webpush" mapstructure:"webpush"`
}

// AuthConfig holds the authentication configuration.
type AuthConfig struct {
	// OIDC holds the OpenID Connect configuration.
	OIDC *OIDCConfig `yaml:"oidc" mapstructure:"oidc"`
	// AllowInsecureBypass enables the dev-only bypass login endpoint.
	AllowInsecureBypass bool `yaml:"allow_insecure_bypass" mapstructure:"allow_insecure_bypass"`
}

// OIDCConfig holds the OpenID Connect configuration.
type OIDCConfig struct {
	// Enabled indicates whether OIDC authentication is enabled.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// Name is the display name for the OIDC provider.
	Name string `yaml:"name" mapstructure:"name"`
	// Issuer is the OIDC issuer URL.
	Issuer string `yaml:"issuer" mapstructure:"issuer"`
	// ClientID is the OIDC client ID.
	ClientID string `yaml:"client_id" mapstructure:"client_id"`
	// ClientSecret is the OIDC client secret.
	ClientSecret string `yaml:"client_secret" mapstructure:"client_secret"`
	// RedirectURL is the redirect URL for the oidc flow.
	RedirectURL string `yaml:"redirect_url" mapstructure:"redirect_url"`
}

// BackendConfig holds the configuration for the GrindOlympiads
// Cloud-Function backend that examgate consumes.
type BackendConfig struct {
	// URL is the base URL of the backend.
	URL string `yaml:"url" mapstructure:"url"`
	// Timeout is the per-request timeout in seconds.
	Timeout int `yaml:"timeout" mapstructure:"timeout"`
}

// DatabaseConfig holds the database configuration.
type DatabaseConfig struct {
	// Path is the directory where the sqlite database is stored.
	Path string `yaml:"path" mapstructure:"path"`
}

// CacheConfig holds the cache configuration.
type CacheConfig struct {
	// Type is the cache backend, either "memory" or "redis".
	Type string `yaml:"type" mapstructure:"type"`
	// RedisURL is the address of the redis server when type is "redis".
	RedisURL string `yaml:"redis_url" mapstructure:"redis_url"`
	// ExamListTTL is the TTL in minutes for the cached exam listing.
	ExamListTTL int `yaml:"exam_list_ttl" mapstructure:"exam_list_ttl"`
	// AvatarDir is the directory for the on-disk avatar cache.
	AvatarDir string `yaml:"avatar_dir" mapstructure:"avatar_dir"`
}

// GravatarConfig holds the configuration for Gravatar avatar fallbacks.
type GravatarConfig struct {
	// Enabled indicates whether Gravatar fallbacks are enabled.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// DefaultImage is the default image to use when no Gravatar is found.
	// Valid values: "404", "mp", "identicon", "monsterid", "wavatar", "retro", "robohash", "blank"
	DefaultImage string `yaml:"default_image" mapstructure:"default_image"`
	// Rating is the maximum rating for Gravatar images.
	// Valid values: "g", "pg", "r", "x"
	Rating string `yaml:"rating" mapstructure:"rating"`
	// Size is the size of the Gravatar image in pixels (1-2048).
	Size int `yaml:"size" mapstructure:"size"`
}

// WebPushConfig holds the webpush notification configuration.
type WebPushConfig struct {
	// Enabled indicates whether webpush notifications are enabled.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// VAPIDEmail is the email associated with the VAPID keys.
	VAPIDEmail string `yaml:"vapid_email" mapstructure:"vapid_email"`
	// PublicKey is the VAPID public key.
	PublicKey string `yaml:"public_key" mapstructure:"public_key"`
	// PrivateKey is the VAPID private key.
	PrivateKey string `yaml:"private_key" mapstructure:"private_key"`
	// TTL is the time-to-live in seconds for push messages.
	TTL int `yaml:"ttl" mapstructure:"ttl"`
}

// Load reads the configuration from the specified path and returns a Config struct.
// If path is empty, it will use default search paths for config files.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigType("yaml")
	v.SetEnvPrefix("EXAMGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var configFileFound bool
	if path != "" {
		v.SetConfigFile(path)
	} else {
		// Search for config in common locations
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.examgate")
		v.AddConfigPath("/etc/examgate")
	}

	if err := v.ReadInConfig(); err != nil {
		// If no config file is found, use defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		configFileFound = true
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if configFileFound {
		log.Debug("Using config file", "file", v.ConfigFileUsed())
		log.Debug("Environment variables with EXAMGATE_ prefix will override config file values")
	}

	if err := validateConfig(&c); err != nil {
		return nil, err
	}

	return &c, nil
}

// setDefaults sets default values for the configuration.
func setDefaults(v *viper.Viper) {
	v.SetDefault("listen", "0.0.0.0:3004")
	v.SetDefault("server_url", "http://localhost:3004")
	v.SetDefault("session_max_age", 86400) // 24 hours
	v.SetDefault("notification_poll_interval", 5)

	// Auth defaults
	v.SetDefault("auth.oidc.enabled", false)
	v.SetDefault("auth.oidc.name", "OIDC")
	v.SetDefault("auth.oidc.issuer", "")
	v.SetDefault("auth.oidc.client_id", "")
	v.SetDefault("auth.oidc.client_secret", "")
	v.SetDefault("auth.oidc.redirect_url", "")
	v.SetDefault("auth.allow_insecure_bypass", false)

	// Backend defaults
	v.SetDefault("backend.timeout", 30)

	// Database defaults
	v.SetDefault("database.path", "./data")

	// Cache defaults
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.exam_list_ttl", 10)
	v.SetDefault("cache.avatar_dir", "./data/cache/avatars")

	// Gravatar defaults
	v.SetDefault("gravatar.enabled", true)
	v.SetDefault("gravatar.default_image", "robohash")
	v.SetDefault("gravatar.rating", "g")
	v.SetDefault("gravatar.size", 80)

	// WebPush defaults
	v.SetDefault("webpush.enabled", false)
	v.SetDefault("webpush.ttl", 60)
}

// validateConfig validates the configuration.
func validateConfig(c *Config) error {
	if c == nil {
		return fmt.Errorf("missing examgate config")
	}

	if c.SessionKey == "" {
		return fmt.Errorf("session key is required")
	}

	if c.Auth == nil {
		return fmt.Errorf("missing auth config")
	}

	if c.Auth.OIDC != nil && c.Auth.OIDC.Enabled {
		if c.Auth.OIDC.Issuer == "" {
			return fmt.Errorf("OIDC issuer is required when OIDC is enabled")
		}
		if c.Auth.OIDC.ClientID == "" {
			return fmt.Errorf("OIDC client ID is required when OIDC is enabled")
		}
		if c.Auth.OIDC.ClientSecret == "" {
			return fmt.Errorf("OIDC client secret is required when OIDC is enabled")
		}
		if c.Auth.OIDC.RedirectURL == "" {
			return fmt.Errorf("OIDC redirect URL is required when OIDC is enabled")
		}
	} else if !c.Auth.AllowInsecureBypass {
		log.Warn("No authentication methods enabled, only the public surface will be reachable")
	}

	if c.Backend == nil {
		return fmt.Errorf("missing backend config")
	}
	if c.Backend.URL == "" {
		return fmt.Errorf("backend URL is required")
	}

	if c.Cache != nil && c.Cache.Type == "redis" && c.Cache.RedisURL == "" {
		return fmt.Errorf("redis URL is required when cache type is redis")
	}

	if c.WebPush != nil && c.WebPush.Enabled {
		if c.WebPush.PublicKey == "" || c.WebPush.PrivateKey == "" {
			return fmt.Errorf("VAPID keys are required when webpush is enabled, run 'examgate generate-vapid-keys'")
		}
		if c.WebPush.VAPIDEmail == "" {
			return fmt.Errorf("VAPID email is required when webpush is enabled")
		}
	}

	return nil
}
