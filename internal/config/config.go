/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables, providing a
 * centralized and straightforward way to manage application settings.
 *
 * The anomaly-detection deadlines are deliberately configuration points: the
 * expected transit window differs per deployment (road distances, monsoon season)
 * and per priority class, so nothing here is hard-coded behavior.
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

// Config holds all the configuration variables for the transfer-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort  string `mapstructure:"SERVER_PORT"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	RedisURL    string `mapstructure:"REDIS_URL"`
	RabbitMQURL string `mapstructure:"RABBITMQ_URL"`

	EventExchange  string `mapstructure:"EVENT_EXCHANGE"`
	InternalAPIKey string `mapstructure:"INTERNAL_API_KEY"`

	SummaryCacheTTLSeconds int    `mapstructure:"SUMMARY_CACHE_TTL_SECONDS"`
	SummaryCachePrefix     string `mapstructure:"SUMMARY_CACHE_PREFIX"`

	PickupDeadlineHours          int `mapstructure:"PICKUP_DEADLINE_HOURS"`
	TransitDeadlineNormalHours   int `mapstructure:"TRANSIT_DEADLINE_NORMAL_HOURS"`
	TransitDeadlineUrgentHours   int `mapstructure:"TRANSIT_DEADLINE_URGENT_HOURS"`
	TransitDeadlineCriticalHours int `mapstructure:"TRANSIT_DEADLINE_CRITICAL_HOURS"`
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
	viper.SetDefault("SERVER_PORT", "8084")
	viper.SetDefault("EVENT_EXCHANGE", "medtrail.events")
	viper.SetDefault("SUMMARY_CACHE_TTL_SECONDS", 5)
	viper.SetDefault("SUMMARY_CACHE_PREFIX", "medtrail:transfer_summary")
	viper.SetDefault("PICKUP_DEADLINE_HOURS", 24)
	viper.SetDefault("TRANSIT_DEADLINE_NORMAL_HOURS", 48)
	viper.SetDefault("TRANSIT_DEADLINE_URGENT_HOURS", 24)
	viper.SetDefault("TRANSIT_DEADLINE_CRITICAL_HOURS", 12)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("EVENT_EXCHANGE")
	_ = viper.BindEnv("INTERNAL_API_KEY", "INTERNAL_API_KEY", "TRANSFER_SERVICE_INTERNAL_API_KEY")
	_ = viper.BindEnv("SUMMARY_CACHE_TTL_SECONDS")
	_ = viper.BindEnv("SUMMARY_CACHE_PREFIX")
	_ = viper.BindEnv("PICKUP_DEADLINE_HOURS")
	_ = viper.BindEnv("TRANSIT_DEADLINE_NORMAL_HOURS")
	_ = viper.BindEnv("TRANSIT_DEADLINE_URGENT_HOURS")
	_ = viper.BindEnv("TRANSIT_DEADLINE_CRITICAL_HOURS")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
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
	config.InternalAPIKey = strings.TrimSpace(config.InternalAPIKey)
	if config.InternalAPIKey == "" {
		config.InternalAPIKey = strings.TrimSpace(os.Getenv("TRANSFER_SERVICE_INTERNAL_API_KEY"))
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.SummaryCachePrefix = strings.TrimSpace(config.SummaryCachePrefix)
	if config.SummaryCachePrefix == "" {
		config.SummaryCachePrefix = "medtrail:transfer_summary"
	}

	if config.SummaryCacheTTLSeconds < 0 {
		log.Printf("level=warn component=config msg=\"negative summary cache ttl configured; coercing to zero\" ttl_seconds=%d", config.SummaryCacheTTLSeconds)
		config.SummaryCacheTTLSeconds = 0
	}
	if config.PickupDeadlineHours <= 0 {
		log.Printf("level=warn component=config msg=\"non-positive pickup deadline configured; using default\" hours=%d", config.PickupDeadlineHours)
		config.PickupDeadlineHours = 24
	}
	if config.TransitDeadlineNormalHours <= 0 {
		log.Printf("level=warn component=config msg=\"non-positive normal transit deadline configured; using default\" hours=%d", config.TransitDeadlineNormalHours)
		config.TransitDeadlineNormalHours = 48
	}
	if config.TransitDeadlineUrgentHours <= 0 {
		log.Printf("level=warn component=config msg=\"non-positive urgent transit deadline configured; using default\" hours=%d", config.TransitDeadlineUrgentHours)
		config.TransitDeadlineUrgentHours = 24
	}
	if config.TransitDeadlineCriticalHours <= 0 {
		log.Printf("level=warn component=config msg=\"non-positive critical transit deadline configured; using default\" hours=%d", config.TransitDeadlineCriticalHours)
		config.TransitDeadlineCriticalHours = 12
	}

	return
}
