package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Loader   LoaderConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Log      LogConfig
	CORS     CORSConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string
	Host string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// LoaderConfig holds the CSV loader credentials and data location
type LoaderConfig struct {
	Email      string
	Password   string
	StaticRoot string
}

// RedisConfig holds the token cache configuration. An empty Addr disables the cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// KafkaConfig holds Kafka configuration. No brokers disables event publishing.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string
	Pretty bool
}

// CORSConfig holds allowed browser origins
type CORSConfig struct {
	AllowedOrigins []string
}

// Load reads configuration from environment variables, after loading .env if present
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8000"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "stockruns"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Loader: LoaderConfig{
			Email:      os.Getenv("USER_EMAIL"),
			Password:   os.Getenv("USER_PASS"),
			StaticRoot: getEnv("STATIC_ROOT", "./static"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getEnvAsInt("REDIS_DB", 0),
			TTL:      getEnvAsDuration("TOKEN_CACHE_TTL", 5*time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers: getEnvAsList("KAFKA_BROKERS"),
			Topic:   getEnv("KAFKA_TOPIC", "stock-run-events"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Pretty: getEnvAsBool("LOG_PRETTY", false),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsListDefault("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
	}
}

// ConnectionString returns the PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.DBName + "?sslmode=" + d.SSLMode
}

// Addr returns the listen address
func (s *ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// DataDir returns the directory holding the loader CSV files
func (l *LoaderConfig) DataDir() string {
	return filepath.Join(l.StaticRoot, "data")
}

// Validate checks that the loader credentials are present
func (l *LoaderConfig) Validate() error {
	if l.Email == "" {
		return fmt.Errorf("USER_EMAIL is required")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	var items []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func getEnvAsListDefault(key string, defaultValue []string) []string {
	if items := getEnvAsList(key); len(items) > 0 {
		return items
	}
	return defaultValue
}
