package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

/* Config é um pacote auxiliar. Poderia ser uma lib externa*/

type Config struct {
	Port                string `mapstructure:"PORT"`
	RedisAddr           string `mapstructure:"REDIS_ADDR"`
	RedisPassword       string `mapstructure:"REDIS_PASSWORD"`
	RedisDB             int    `mapstructure:"REDIS_DB"`
	StoreTimeoutSeconds int    `mapstructure:"STORE_TIMEOUT"`
	TokenTTLHours       int    `mapstructure:"TOKEN_TTL_HOURS"`
	KeyPrefix           string `mapstructure:"KEY_PREFIX"`
	PresetsFile         string `mapstructure:"PRESETS_FILE"`
	LogLevel            string `mapstructure:"LOG_LEVEL"`
	LogJSON             bool   `mapstructure:"LOG_JSON"`
}

var defaults = map[string]any{
	"PORT":            "8080",
	"REDIS_ADDR":      "localhost:6379",
	"REDIS_PASSWORD":  "",
	"REDIS_DB":        0,
	"STORE_TIMEOUT":   3,
	"TOKEN_TTL_HOURS": 24 * 30,
	"KEY_PREFIX":      "webhook",
	"PRESETS_FILE":    "",
	"LOG_LEVEL":       "info",
	"LOG_JSON":        true,
}

// GetConfig reads .env (toml) from the working directory when present,
// then lets environment variables override every key.
func GetConfig() (*Config, error) {
	return load(viper.New(), ".")
}

func load(v *viper.Viper, path string) (*Config, error) {
	v.SetConfigName(".env")
	v.SetConfigType("toml")
	v.AddConfigPath(path)
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("parsing config data: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &config, nil
}

// Validate checks values viper cannot type-check
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR cannot be empty")
	}
	if c.TokenTTLHours < 0 {
		return fmt.Errorf("TOKEN_TTL_HOURS cannot be negative (got %d)", c.TokenTTLHours)
	}
	if c.StoreTimeoutSeconds < 0 {
		return fmt.Errorf("STORE_TIMEOUT cannot be negative (got %d)", c.StoreTimeoutSeconds)
	}
	return nil
}

// TokenTTL is the lifetime given to new tokens
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLHours) * time.Hour
}

// StoreTimeout bounds each store round trip
func (c *Config) StoreTimeout() time.Duration {
	return time.Duration(c.StoreTimeoutSeconds) * time.Second
}
