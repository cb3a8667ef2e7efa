/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables, providing a
 * centralized and straightforward way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the banking API.
// These values are loaded from environment variables.
type Config struct {
	ServerPort                 string `mapstructure:"SERVER_PORT"`
	DatabaseURL                string `mapstructure:"DATABASE_URL"`
	RedisURL                   string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix       string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	RabbitMQURL                string `mapstructure:"RABBITMQ_URL"`
	ApprovalWindowHours        int    `mapstructure:"APPROVAL_WINDOW_HOURS"`
	ApprovalExpirySchedule     string `mapstructure:"APPROVAL_EXPIRY_SCHEDULE"`
	SettlementDelayMS          int    `mapstructure:"SETTLEMENT_DELAY_MS"`
	InitiateRateLimitPerMinute int    `mapstructure:"INITIATE_RATE_LIMIT_PER_MINUTE"`
	APIKeyBcryptCost           int    `mapstructure:"API_KEY_BCRYPT_COST"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "banking:rate_limit")
	viper.SetDefault("APPROVAL_WINDOW_HOURS", 24)
	viper.SetDefault("APPROVAL_EXPIRY_SCHEDULE", "@every 1m")
	viper.SetDefault("SETTLEMENT_DELAY_MS", 2000)
	viper.SetDefault("INITIATE_RATE_LIMIT_PER_MINUTE", 60)
	viper.SetDefault("API_KEY_BCRYPT_COST", 10)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("APPROVAL_WINDOW_HOURS")
	_ = viper.BindEnv("APPROVAL_EXPIRY_SCHEDULE")
	_ = viper.BindEnv("SETTLEMENT_DELAY_MS")
	_ = viper.BindEnv("INITIATE_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("API_KEY_BCRYPT_COST")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		// If the config file is not found, we can ignore the error.
		// For other errors, we should return them.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "banking:rate_limit"
	}
	if config.ApprovalWindowHours <= 0 {
		log.Printf("level=warn component=config msg=\"non-positive approval window configured; using default\" hours=%d", config.ApprovalWindowHours)
		config.ApprovalWindowHours = 24
	}
	if config.SettlementDelayMS < 0 {
		log.Printf("level=warn component=config msg=\"negative settlement delay configured; coercing to zero\" delay_ms=%d", config.SettlementDelayMS)
		config.SettlementDelayMS = 0
	}
	if config.InitiateRateLimitPerMinute < 0 {
		config.InitiateRateLimitPerMinute = 0
	}
	if config.APIKeyBcryptCost < 4 || config.APIKeyBcryptCost > 31 {
		log.Printf("level=warn component=config msg=\"bcrypt cost out of range; using default\" cost=%d", config.APIKeyBcryptCost)
		config.APIKeyBcryptCost = 10
	}

	return
}
