package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Store backends selectable via STORE_BACKEND.
const (
	StoreBackendMongo = "mongo"
	StoreBackendRedis = "redis"
)

// ServerConfig holds all configuration for the server.
// Tags use mapstructure for Viper unmarshalling and env variable binding.
type ServerConfig struct {
	HTTPPort  string `mapstructure:"HTTP_PORT"`
	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogPretty bool   `mapstructure:"LOG_PRETTY"`

	// Discord OAuth2 application settings. All three are required.
	DiscordClientID     string `mapstructure:"DISCORD_CLIENT_ID"`
	DiscordClientSecret string `mapstructure:"DISCORD_CLIENT_SECRET"`
	DiscordRedirectURI  string `mapstructure:"DISCORD_REDIRECT_URI"`

	StoreBackend string `mapstructure:"STORE_BACKEND"`
	MongoURI     string `mapstructure:"MONGO_URI"`
	MongoDBName  string `mapstructure:"MONGO_DB_NAME"`
	RedisAddr    string `mapstructure:"REDIS_ADDR"`
	RedisPrefix  string `mapstructure:"REDIS_PREFIX"`

	IconCacheTTLMin int `mapstructure:"ICON_CACHE_TTL_MIN"`
}

// LoadConfig reads configuration from file, environment variables, and defaults.
func LoadConfig() (*ServerConfig, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/profilecard/")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Required values have no defaults, so Viper must be told about the keys
	// explicitly for env-only configuration to reach Unmarshal.
	_ = v.BindEnv("DISCORD_CLIENT_ID")
	_ = v.BindEnv("DISCORD_CLIENT_SECRET")
	_ = v.BindEnv("DISCORD_REDIRECT_URI")

	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", true)
	v.SetDefault("STORE_BACKEND", StoreBackendMongo)
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017/profilecard_dev")
	v.SetDefault("MONGO_DB_NAME", "profilecard_dev")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PREFIX", "profilecard")
	v.SetDefault("ICON_CACHE_TTL_MIN", 60)

	// Required values get no defaults; Validate rejects their absence.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that every required value is present. Startup aborts on the
// first missing one.
func (c *ServerConfig) Validate() error {
	if c.DiscordClientID == "" {
		return fmt.Errorf("DISCORD_CLIENT_ID is required")
	}
	if c.DiscordClientSecret == "" {
		return fmt.Errorf("DISCORD_CLIENT_SECRET is required")
	}
	if c.DiscordRedirectURI == "" {
		return fmt.Errorf("DISCORD_REDIRECT_URI is required")
	}

	switch c.StoreBackend {
	case StoreBackendMongo:
		if c.MongoURI == "" || c.MongoDBName == "" {
			return fmt.Errorf("MONGO_URI and MONGO_DB_NAME are required for the mongo store backend")
		}
	case StoreBackendRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required for the redis store backend")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q (expected %q or %q)", c.StoreBackend, StoreBackendMongo, StoreBackendRedis)
	}
	return nil
}
