package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Port string

	// Database configuration
	DBType            string // mysql, postgres, sqlite, sqlite-pure, sqlserver
	DBHost            string
	DBPort            string
	DBDatabase        string
	DBUser            string
	DBPassword        string
	DBConnectionLimit int
	DBLogLevel        string // silent, error, warn, info

	// Session and credential configuration
	SessionTTL      time.Duration
	AuthRateLimit   int
	AuthRateWindow  time.Duration
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	BootstrapName   string
	BootstrapEmail  string
	BootstrapSecret string
}

// Load loads configuration from environment variables.
// When ENV_FILE is set, that file is loaded first without overriding the existing environment.
func Load() (*Config, error) {
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
		log.Printf("Loaded environment from %s", envFile)
	}

	cfg := &Config{
		Port:              getEnv("PORT", "3001"),
		DBType:            strings.ToLower(getEnv("DB_TYPE", "sqlite")),
		DBHost:            getEnv("DB_HOST", "localhost"),
		DBPort:            getEnv("DB_PORT", ""),
		DBDatabase:        getEnv("DB_DATABASE", ""),
		DBUser:            getEnv("DB_USER", ""),
		DBPassword:        getEnv("DB_PASSWORD", ""),
		DBConnectionLimit: getEnvAsInt("DB_CONNECTION_LIMIT", 10),
		DBLogLevel:        strings.ToLower(getEnv("DB_LOG_LEVEL", "warn")),
		SessionTTL:        getEnvAsDuration("SESSION_TTL", 12*time.Hour),
		AuthRateLimit:     getEnvAsInt("AUTH_RATE_LIMIT", 20),
		AuthRateWindow:    getEnvAsDuration("AUTH_RATE_WINDOW", time.Minute),
		RedisAddr:         getEnv("REDIS_ADDR", ""),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		RedisDB:           getEnvAsInt("REDIS_DB", 0),
		BootstrapName:     getEnv("BOOTSTRAP_OWNER_NAME", "Case Owner"),
		BootstrapEmail:    getEnv("BOOTSTRAP_OWNER_EMAIL", ""),
		BootstrapSecret:   getEnv("BOOTSTRAP_OWNER_PASSWORD", ""),
	}

	if cfg.DBPort == "" {
		cfg.DBPort = defaultPort(cfg.DBType)
	}

	// Validate required fields
	if cfg.DBDatabase == "" {
		return nil, fmt.Errorf("DB_DATABASE is required")
	}
	if !isFileDB(cfg.DBType) && cfg.DBUser == "" {
		return nil, fmt.Errorf("DB_USER is required for %s", cfg.DBType)
	}
	if cfg.SessionTTL <= 0 {
		return nil, fmt.Errorf("SESSION_TTL must be positive")
	}
	if (cfg.BootstrapEmail == "") != (cfg.BootstrapSecret == "") {
		return nil, fmt.Errorf("BOOTSTRAP_OWNER_EMAIL and BOOTSTRAP_OWNER_PASSWORD must be set together")
	}

	return cfg, nil
}

func isFileDB(dbType string) bool {
	return dbType == "sqlite" || dbType == "sqlite-pure"
}

func defaultPort(dbType string) string {
	switch dbType {
	case "postgres", "postgresql":
		return "5432"
	case "sqlserver", "mssql":
		return "1433"
	case "mysql", "mariadb":
		return "3306"
	}
	return ""
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer or returns a default value
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

// getEnvAsDuration accepts Go duration syntax ("90s", "12h") or a bare number of seconds
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(valueStr); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
