package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Email     EmailConfig     `mapstructure:"email"`
	SMS       SMSConfig       `mapstructure:"sms"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Supabase  SupabaseConfig  `mapstructure:"supabase"`
	Queue     QueueConfig     `mapstructure:"queue"`
	Retry     RetryConfig     `mapstructure:"retry"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// EmailConfig holds email provider settings.
type EmailConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	FromAddress string  `mapstructure:"from_address"`
	FromName    string  `mapstructure:"from_name"`
	RateRPS     float64 `mapstructure:"rate_rps"`
	RateBurst   int     `mapstructure:"rate_burst"`
}

// SMSConfig holds SMS provider settings.
type SMSConfig struct {
	AccountSID string  `mapstructure:"account_sid"`
	AuthToken  string  `mapstructure:"auth_token"`
	FromNumber string  `mapstructure:"from_number"`
	RateRPS    float64 `mapstructure:"rate_rps"`
	RateBurst  int     `mapstructure:"rate_burst"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// SupabaseConfig holds Supabase project settings.
type SupabaseConfig struct {
	URL        string `mapstructure:"url"`
	ServiceKey string `mapstructure:"service_key"`
}

// QueueConfig holds task queue settings.
type QueueConfig struct {
	Concurrency      int `mapstructure:"concurrency"`
	BatchConcurrency int `mapstructure:"batch_concurrency"`
}

// RetryConfig holds the backoff constants shared by the notification
// service and the retry scheduler (durations as seconds for YAML/env compat).
type RetryConfig struct {
	MaxRetries   int `mapstructure:"max_retries"`
	BaseDelaySec int `mapstructure:"base_delay_sec"`
	MaxDelaySec  int `mapstructure:"max_delay_sec"`
}

// BaseDelay returns the base retry delay as a duration.
func (c RetryConfig) BaseDelay() time.Duration {
	return time.Duration(c.BaseDelaySec) * time.Second
}

// MaxDelay returns the retry delay cap as a duration.
func (c RetryConfig) MaxDelay() time.Duration {
	return time.Duration(c.MaxDelaySec) * time.Second
}

// SchedulerConfig holds retry sweep settings.
type SchedulerConfig struct {
	IntervalSec int    `mapstructure:"interval_sec"`
	BatchSize   int    `mapstructure:"batch_size"`
	LockKey     string `mapstructure:"lock_key"`
}

// Interval returns the sweep interval as a duration.
func (c SchedulerConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSec) * time.Second
}

// Load reads configuration from config.yaml and environment variables.
// Environment variables use the GROOMLY_ prefix and underscore separators.
// Example: GROOMLY_REDIS_ADDRESS overrides redis.address in config.yaml.
func Load() (*Config, error) {
	v := viper.New()

	// Config file settings
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Load .env file if it exists
	_ = godotenv.Load()

	// Environment variable settings
	v.SetEnvPrefix("GROOMLY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("email.rate_rps", 10)
	v.SetDefault("email.rate_burst", 20)
	v.SetDefault("sms.rate_rps", 1)
	v.SetDefault("sms.rate_burst", 5)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("queue.concurrency", 10)
	v.SetDefault("queue.batch_concurrency", 8)
	v.SetDefault("retry.max_retries", 3)
	v.SetDefault("retry.base_delay_sec", 60)
	v.SetDefault("retry.max_delay_sec", 3600)
	v.SetDefault("scheduler.interval_sec", 60)
	v.SetDefault("scheduler.batch_size", 50)
	v.SetDefault("scheduler.lock_key", "groomly:retry_sweep:lock")

	// Read config file (optional — env vars can provide everything)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}
