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

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	Firebase  FirebaseConfig
	Notify    NotifyConfig
	RateLimit RateLimitConfig
	App       AppConfig
}

type ServerConfig struct {
	Port            string
	AllowedOrigins  []string
	StreamKeepAlive time.Duration
}

type DatabaseConfig struct {
	DSN      string
	MaxConns int
	MinConns int
	Migrate  bool
}

// AuthConfig selects how callers are identified.
// "firebase" verifies ID tokens; "header" trusts X-User-Id and is for local development only.
type AuthConfig struct {
	Mode     string
	DevUsers string
}

type FirebaseConfig struct {
	CredentialsPath string
}

// NotifyConfig selects the change feed backend: memory, redis or nats.
type NotifyConfig struct {
	Backend       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	NATSURL       string
}

type RateLimitConfig struct {
	RPS   float64
	Burst int
}

type AppConfig struct {
	Environment string
	LogLevel    string
	LogFormat   string
	Version     string
}

const (
	AuthModeFirebase = "firebase"
	AuthModeHeader   = "header"

	NotifyMemory = "memory"
	NotifyRedis  = "redis"
	NotifyNATS   = "nats"
)

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			AllowedOrigins:  getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			StreamKeepAlive: getEnvAsDuration("STREAM_KEEPALIVE", 15*time.Second),
		},
		Database: DatabaseConfig{
			DSN:      getEnv("DB_DSN", ""),
			MaxConns: getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns: getEnvAsInt("DB_MIN_CONNS", 2),
			Migrate:  getEnvAsBool("DB_MIGRATE", true),
		},
		Auth: AuthConfig{
			Mode:     getEnv("AUTH_MODE", AuthModeFirebase),
			DevUsers: getEnv("DEV_USERS", ""),
		},
		Firebase: FirebaseConfig{
			CredentialsPath: getEnv("FIREBASE_CREDENTIALS_PATH", ""),
		},
		Notify: NotifyConfig{
			Backend:       getEnv("NOTIFY_BACKEND", NotifyRedis),
			RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getEnvAsInt("REDIS_DB", 0),
			NATSURL:       getEnv("NATS_URL", "nats://localhost:4222"),
		},
		RateLimit: RateLimitConfig{
			RPS:   getEnvAsFloat("RATE_LIMIT_RPS", 20),
			Burst: getEnvAsInt("RATE_LIMIT_BURST", 40),
		},
		App: AppConfig{
			Environment: getEnv("APP_ENV", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			LogFormat:   getEnv("LOG_FORMAT", "json"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	if c.Database.DSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}

	switch c.Auth.Mode {
	case AuthModeFirebase:
		if c.Firebase.CredentialsPath == "" {
			return fmt.Errorf("FIREBASE_CREDENTIALS_PATH is required when AUTH_MODE=firebase")
		}
	case AuthModeHeader:
		if c.App.Environment == "production" {
			return fmt.Errorf("AUTH_MODE=header is not allowed in production")
		}
	default:
		return fmt.Errorf("unknown AUTH_MODE %q", c.Auth.Mode)
	}

	switch c.Notify.Backend {
	case NotifyMemory:
	case NotifyRedis:
		if c.Notify.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required when NOTIFY_BACKEND=redis")
		}
	case NotifyNATS:
		if c.Notify.NATSURL == "" {
			return fmt.Errorf("NATS_URL is required when NOTIFY_BACKEND=nats")
		}
	default:
		return fmt.Errorf("unknown NOTIFY_BACKEND %q", c.Notify.Backend)
	}

	if c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
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
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid integer for %s, using default: %d", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Printf("Warning: Invalid number for %s, using default: %g", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid boolean for %s, using default: %t", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid duration for %s, using default: %s", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
