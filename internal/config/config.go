/**
 * @description
 * This package handles the configuration management for the service. It uses
 * the Viper library to read configuration from environment variables,
 * providing a centralized and straightforward way to manage application
 * settings.
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

// Config holds all the configuration variables for the ledger-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort                 string `mapstructure:"SERVER_PORT"`
	DatabaseURL                string `mapstructure:"DATABASE_URL"`
	RedisURL                   string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix       string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	RabbitMQURL                string `mapstructure:"RABBITMQ_URL"`
	LedgerEventExchange        string `mapstructure:"LEDGER_EVENT_EXCHANGE"`
	MutationMaxRetries         int    `mapstructure:"MUTATION_MAX_RETRIES"`
	MutationRetryBaseMs        int    `mapstructure:"MUTATION_RETRY_BASE_MS"`
	MutationRetryMaxMs         int    `mapstructure:"MUTATION_RETRY_MAX_MS"`
	LockTimeoutMs              int    `mapstructure:"LOCK_TIMEOUT_MS"`
	MutationRateLimitPerMinute int    `mapstructure:"MUTATION_RATE_LIMIT_PER_MINUTE"`
	SeedOnStart                bool   `mapstructure:"SEED_ON_START"`
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
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "ledger:rate_limit")
	viper.SetDefault("LEDGER_EVENT_EXCHANGE", "ledger_events")
	viper.SetDefault("MUTATION_MAX_RETRIES", 5)
	viper.SetDefault("MUTATION_RETRY_BASE_MS", 50)
	viper.SetDefault("MUTATION_RETRY_MAX_MS", 1000)
	viper.SetDefault("LOCK_TIMEOUT_MS", 1000)
	viper.SetDefault("MUTATION_RATE_LIMIT_PER_MINUTE", 0) // 0 disables rate limiting
	viper.SetDefault("SEED_ON_START", false)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("LEDGER_EVENT_EXCHANGE")
	_ = viper.BindEnv("MUTATION_MAX_RETRIES")
	_ = viper.BindEnv("MUTATION_RETRY_BASE_MS")
	_ = viper.BindEnv("MUTATION_RETRY_MAX_MS")
	_ = viper.BindEnv("LOCK_TIMEOUT_MS")
	_ = viper.BindEnv("MUTATION_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("SEED_ON_START")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
		err = nil
	}

	// Unmarshal the configuration into the Config struct.
	if err = viper.Unmarshal(&config); err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "ledger:rate_limit"
	}
	if strings.TrimSpace(config.LedgerEventExchange) == "" {
		config.LedgerEventExchange = "ledger_events"
	}

	if config.MutationMaxRetries < 0 {
		log.Printf("level=warn component=config msg=\"negative retry ceiling configured; coercing to zero\" retries=%d", config.MutationMaxRetries)
		config.MutationMaxRetries = 0
	}
	if config.MutationRetryBaseMs <= 0 {
		config.MutationRetryBaseMs = 50
	}
	if config.MutationRetryMaxMs < config.MutationRetryBaseMs {
		log.Printf("level=warn component=config msg=\"retry max below base; raising to base\" base_ms=%d max_ms=%d", config.MutationRetryBaseMs, config.MutationRetryMaxMs)
		config.MutationRetryMaxMs = config.MutationRetryBaseMs
	}
	if config.LockTimeoutMs < 0 {
		config.LockTimeoutMs = 0
	}
	if config.MutationRateLimitPerMinute < 0 {
		config.MutationRateLimitPerMinute = 0
	}

	return
}
