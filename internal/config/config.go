// Package config reads service settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port          string
	DatabaseURL   string
	SessionSecret string
	AppDomain     string
	LogLevel      string

	RedisURL string

	AMQPURL         string
	IndexExchange   string
	IndexRoutingKey string
	IndexQueueSize  int

	TreeMaxDepth     int
	CascadeWorkers   int
	MentionCacheSize int
	MentionCacheTTL  time.Duration
}

// Load reads .env when present, then the process environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, finding env vars from system")
	}
	return FromEnv()
}

// FromEnv builds a Config from the environment alone.
func FromEnv() *Config {
	return &Config{
		Port:             getEnv("PORT", "8080"),
		DatabaseURL:      getEnv("DATABASE_URL", "host=localhost user=postgres password=postgres dbname=threadline port=5432 sslmode=disable"),
		SessionSecret:    getEnv("SESSION_SECRET", "secret_key_change_me"),
		AppDomain:        getEnv("APP_DOMAIN", "localhost"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		RedisURL:         getEnv("REDIS_URL", ""),
		AMQPURL:          getEnv("AMQP_URL", ""),
		IndexExchange:    getEnv("INDEX_EXCHANGE", "search.index"),
		IndexRoutingKey:  getEnv("INDEX_ROUTING_KEY", "comments"),
		IndexQueueSize:   getEnvInt("INDEX_QUEUE_SIZE", 1000),
		TreeMaxDepth:     getEnvInt("TREE_MAX_DEPTH", 512),
		CascadeWorkers:   getEnvInt("CASCADE_WORKERS", 8),
		MentionCacheSize: getEnvInt("MENTION_CACHE_SIZE", 500),
		MentionCacheTTL:  getEnvDuration("MENTION_CACHE_TTL", 5*time.Minute),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return defaultValue
	}
	return v
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil || v <= 0 {
		return defaultValue
	}
	return v
}
