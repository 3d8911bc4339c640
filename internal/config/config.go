// internal/config/config.go
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	LogLevel           string        `mapstructure:"LOG_LEVEL"`
	DBURL              string        `mapstructure:"DB_URL"`
	HTTPAddr           string        `mapstructure:"HTTP_ADDR"`
	GithubToken        string        `mapstructure:"GITHUB_TOKEN"`
	RecordServiceURL   string        `mapstructure:"RECORD_SERVICE_URL"`
	PollInterval       time.Duration `mapstructure:"POLL_INTERVAL"`
	PublishConcurrency int           `mapstructure:"PUBLISH_CONCURRENCY"`
	PublishBatchSize   int32         `mapstructure:"PUBLISH_BATCH_SIZE"`
	CommunityRequired  bool          `mapstructure:"COMMUNITY_REQUIRED"`
}

// LoadConfig reads configuration from file and/or environment variables.
func LoadConfig() (*Config, error) {
	// Set default values
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("HTTP_ADDR", ":8080")
	viper.SetDefault("POLL_INTERVAL", "30s")
	viper.SetDefault("PUBLISH_CONCURRENCY", 5)
	viper.SetDefault("PUBLISH_BATCH_SIZE", 50)
	viper.SetDefault("COMMUNITY_REQUIRED", false)

	// Load from .env file if it exists
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	_ = viper.ReadInConfig() // Ignore error if file not found

	// Bind environment variables
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Validate required fields
	if cfg.DBURL == "" {
		return nil, errors.New("DB_URL is a required configuration field")
	}
	if cfg.GithubToken == "" {
		return nil, errors.New("GITHUB_TOKEN is a required configuration field")
	}
	if cfg.RecordServiceURL == "" {
		return nil, errors.New("RECORD_SERVICE_URL is a required configuration field")
	}

	return &cfg, nil
}
