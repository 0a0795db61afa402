// Package config loads service configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/crypto/bcrypt"
)

type Config struct {
	Port        string
	BaseURL     string
	Environment string

	DBUser     string
	DBPassword string
	DBHost     string
	DBPort     string
	DBName     string

	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	ResetTokenTTL   time.Duration

	BcryptCost int

	// AdminEmail is always treated as an admin account regardless of the
	// stored role. Kept for compatibility with existing deployments.
	AdminEmail string

	SecureCookies bool

	NatsURL string

	S3 S3Config
}

type S3Config struct {
	Endpoint     string
	Region       string
	Bucket       string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("APP_PORT", "8000"),
		BaseURL:     getEnv("APP_BASE_URL", "http://localhost:8000"),
		Environment: getEnv("ENVIRONMENT", "development"),

		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBName:     getEnv("DB_NAME", "shopflow"),

		JWTSecret:       os.Getenv("JWT_SECRET"),
		AccessTokenTTL:  getDuration("JWT_ACCESS_TTL", time.Hour),
		RefreshTokenTTL: getDuration("JWT_REFRESH_TTL", 30*24*time.Hour),
		ResetTokenTTL:   getDuration("PASSWORD_RESET_TTL", 10*time.Minute),

		BcryptCost: bcrypt.DefaultCost,

		AdminEmail: getEnv("ADMIN_EMAIL", "admin@gmail.com"),

		SecureCookies: getEnv("ENVIRONMENT", "development") == "production",

		NatsURL: getEnv("NATS_URL", "nats://localhost:4222"),

		S3: S3Config{
			Endpoint:     os.Getenv("S3_ENDPOINT"),
			Region:       os.Getenv("AWS_REGION"),
			Bucket:       os.Getenv("S3_BUCKET_NAME"),
			AccessKey:    os.Getenv("AWS_ACCESS_KEY_ID"),
			SecretKey:    os.Getenv("AWS_SECRET_ACCESS_KEY"),
			UsePathStyle: os.Getenv("S3_USE_PATH_STYLE") == "true",
		},
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is not set")
	}

	return cfg, nil
}

func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName,
	)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}

	return d
}
