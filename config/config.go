package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// PayPalPlaceholderClientID is the client id shipped in sample env files. It marks checkout as not configured.
const PayPalPlaceholderClientID = "YOUR_PAYPAL_CLIENT_ID"

// Config holds application configuration loaded from environment.
type Config struct {
	Server   ServerConfig
	Log      LogConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	PayPal   PayPalConfig
	Cart     CartConfig
	AWS      AWSConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level string // debug, info, warn, error
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is (e.g. postgres://localhost:5432/shul?sslmode=disable)
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds JWT signing and validation settings.
type JWTConfig struct {
	Secret      string
	ExpireHours int
}

// PayPalConfig holds PayPal REST credentials.
type PayPalConfig struct {
	ClientID       string
	ClientSecret   string
	Environment    string // sandbox or live
	BaseURL        string // overrides Environment when set
	TimeoutSeconds int
}

// CartConfig holds storefront cart session settings.
type CartConfig struct {
	Store             string // memory or redis
	SessionTTLMinutes int
}

// AWSConfig holds AWS credentials and the S3 bucket for content images.
type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	ImagesBucket    string
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Configured reports whether a real client id is present. Empty and placeholder ids disable checkout.
func (c PayPalConfig) Configured() bool {
	id := strings.TrimSpace(c.ClientID)
	return id != "" && id != PayPalPlaceholderClientID
}

// APIBaseURL returns the PayPal REST endpoint for the configured environment.
func (c PayPalConfig) APIBaseURL() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	if strings.EqualFold(c.Environment, "live") {
		return "https://api-m.paypal.com"
	}
	return "https://api-m.sandbox.paypal.com"
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			URL:      os.Getenv("DATABASE_URL"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "shul"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: getEnvInt("DB_MAX_CONNS", 10),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireHours: getEnvInt("JWT_EXPIRE_HOURS", 24),
		},
		PayPal: PayPalConfig{
			ClientID:       getEnv("PAYPAL_CLIENT_ID", ""),
			ClientSecret:   getEnv("PAYPAL_CLIENT_SECRET", ""),
			Environment:    getEnv("PAYPAL_ENV", "sandbox"),
			BaseURL:        getEnv("PAYPAL_BASE_URL", ""),
			TimeoutSeconds: getEnvInt("PAYPAL_TIMEOUT_SEC", 30),
		},
		Cart: CartConfig{
			Store:             strings.ToLower(getEnv("CART_STORE", "redis")),
			SessionTTLMinutes: getEnvInt("CART_SESSION_TTL_MINUTES", 120),
		},
		AWS: AWSConfig{
			Region:          getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			ImagesBucket:    getEnv("AWS_S3_IMAGES_BUCKET", ""),
		},
	}
	if cfg.Cart.Store != "redis" && cfg.Cart.Store != "memory" {
		return nil, fmt.Errorf("invalid CART_STORE %q (want redis or memory)", cfg.Cart.Store)
	}
	return cfg, nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
