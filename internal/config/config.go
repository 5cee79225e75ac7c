package config

import (
	"fmt"
	"os"
	"strings"
)

// Live source kinds
const (
	LiveSourceRedis = "redis"
	LiveSourceKafka = "kafka"
	LiveSourceNone  = "none"
)

// Config holds the storefront runtime configuration, read from the
// environment.
type Config struct {
	Port           string
	CatalogURL     string
	TransactionURL string
	LiveSource     string
	RedisAddr      string
	RedisChannel   string
	KafkaBrokers   []string
	KafkaTopic     string
	KafkaGroupID   string
}

// Load reads the configuration from environment variables, applying
// defaults where a value is optional.
func Load() (*Config, error) {
	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		CatalogURL:     getEnv("CATALOG_SERVICE_URL", "http://localhost:3000"),
		TransactionURL: getEnv("TRANSACTION_SERVICE_URL", "http://localhost:3000"),
		LiveSource:     getEnv("LIVE_SOURCE", LiveSourceRedis),
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		RedisChannel:   getEnv("REDIS_CHANNEL", "transactionStatus"),
		KafkaBrokers:   strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
		KafkaTopic:     getEnv("KAFKA_TOPIC", "transaction-status"),
		KafkaGroupID:   getEnv("KAFKA_GROUP_ID", "storefront"),
	}

	switch cfg.LiveSource {
	case LiveSourceRedis, LiveSourceKafka, LiveSourceNone:
	default:
		return nil, fmt.Errorf("LIVE_SOURCE must be one of redis, kafka, none; got %q", cfg.LiveSource)
	}

	return cfg, nil
}

// getEnv gets environment variable with fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
