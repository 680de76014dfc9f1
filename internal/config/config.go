// Package config loads service configuration from config.yaml and the
// SENTINEL_ environment, with sane local-development defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/sentinelpay/sentinel/internal/scoring"
)

// Config is the full service configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Scoring  ScoringConfig  `mapstructure:"scoring"`
	Patterns PatternsConfig `mapstructure:"patterns"`
	LogLevel string         `mapstructure:"log_level"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Enabled bool     `mapstructure:"enabled"`
}

type ScoringConfig struct {
	ModelPath  string             `mapstructure:"model_path"`
	Thresholds scoring.Thresholds `mapstructure:"thresholds"`
	TopFactors int                `mapstructure:"top_factors"`
}

type PatternsConfig struct {
	MaxBatch int `mapstructure:"max_batch"`
}

// Load reads config.yaml from the working directory (optional) and the
// environment. Environment keys are upper-cased with underscores and the
// SENTINEL_ prefix, e.g. SENTINEL_SERVER_ADDR.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.cache_ttl", 5*time.Minute)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("scoring.model_path", "")
	v.SetDefault("scoring.thresholds.critical", 80)
	v.SetDefault("scoring.thresholds.high", 60)
	v.SetDefault("scoring.thresholds.medium", 40)
	v.SetDefault("scoring.top_factors", 5)
	v.SetDefault("patterns.max_batch", 1000)
	v.SetDefault("log_level", "info")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.SetEnvPrefix("SENTINEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}
