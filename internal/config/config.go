package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	ServiceName string
	ServicePort int
	LogLevel    string
	HTTP        HTTPConfig
	Database    DatabaseConfig
	RabbitMQ    RabbitMQConfig
	Validation  ValidationConfig
}

// HTTPConfig holds HTTP server settings
type HTTPConfig struct {
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	CORSAllowedOrigins []string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL string
}

// RabbitMQConfig holds RabbitMQ connection and queue settings
type RabbitMQConfig struct {
	URL                 string
	TelemetryExchange   string
	TelemetryQueue      string
	TelemetryRoutingKey string
	EventsExchange      string
	EventsRoutingKey    string
	DLQQueue            string
	PrefetchCount       int
}

// ValidationConfig holds telemetry validation settings
type ValidationConfig struct {
	EventTimeToleranceMinutes int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		ServiceName: getEnv("SERVICE_NAME", "safedrive-risk"),
		ServicePort: getEnvAsInt("SERVICE_PORT", 6321),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		HTTP: HTTPConfig{
			ReadTimeout:        time.Duration(getEnvAsInt("HTTP_READ_TIMEOUT_SECONDS", 15)) * time.Second,
			WriteTimeout:       time.Duration(getEnvAsInt("HTTP_WRITE_TIMEOUT_SECONDS", 15)) * time.Second,
			CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		RabbitMQ: RabbitMQConfig{
			URL:                 getEnv("RABBITMQ_URL", ""),
			TelemetryExchange:   getEnv("RABBITMQ_TELEMETRY_EXCHANGE", "safedrive.telemetry.exchange"),
			TelemetryQueue:      getEnv("RABBITMQ_TELEMETRY_QUEUE", "safedrive.telemetry.queue"),
			TelemetryRoutingKey: getEnv("RABBITMQ_TELEMETRY_ROUTING_KEY", "device.telemetry.raw"),
			EventsExchange:      getEnv("RABBITMQ_EVENTS_EXCHANGE", "safedrive.events.exchange"),
			EventsRoutingKey:    getEnv("RABBITMQ_EVENTS_ROUTING_KEY", "device.telemetry.accepted"),
			DLQQueue:            getEnv("RABBITMQ_DLQ_QUEUE", "safedrive.telemetry.dlq"),
			PrefetchCount:       getEnvAsInt("RABBITMQ_PREFETCH", 10),
		},
		Validation: ValidationConfig{
			EventTimeToleranceMinutes: getEnvAsInt("VALIDATION_EVENT_TIME_TOLERANCE_MINUTES", 10080),
		},
	}

	// Validate required fields
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required but not set in environment variables")
	}
	if cfg.RabbitMQ.URL == "" {
		return nil, fmt.Errorf("RABBITMQ_URL is required but not set in environment variables")
	}

	return cfg, nil
}

// Addr returns the listen address for the HTTP server
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.ServicePort)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var values []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			values = append(values, part)
		}
	}
	if len(values) == 0 {
		return defaultValue
	}
	return values
}
