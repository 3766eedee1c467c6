package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env         string
	Port        string
	Auth        AuthConfig
	Postgres    PostgresConfig
	Maintenance MaintenanceConfig
	CORS        CORSConfig
}

type AuthConfig struct {
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	AllowSignup     bool
}

type PostgresConfig struct {
	DatabaseURL string
	Host        string
	Port        string
	User        string
	Password    string
	Database    string
	SSLMode     string
}

type MaintenanceConfig struct {
	CleanupInterval      time.Duration
	RevokedRetentionDays int
}

type CORSConfig struct {
	AllowedOrigins   []string
	AllowCredentials bool
}

func Load() (Config, error) {
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}

	accessTTL, err := getenvDuration("ACCESS_TOKEN_TTL", "15m")
	if err != nil {
		return Config{}, fmt.Errorf("invalid ACCESS_TOKEN_TTL: %w", err)
	}

	refreshTTL, err := getenvDuration("REFRESH_TOKEN_TTL", "168h")
	if err != nil {
		return Config{}, fmt.Errorf("invalid REFRESH_TOKEN_TTL: %w", err)
	}

	cleanupInterval, err := getenvDuration("SESSION_CLEANUP_INTERVAL", "1h")
	if err != nil {
		return Config{}, fmt.Errorf("invalid SESSION_CLEANUP_INTERVAL: %w", err)
	}

	retentionDays, err := getenvInt("REVOKED_RETENTION_DAYS", 30)
	if err != nil {
		return Config{}, fmt.Errorf("invalid REVOKED_RETENTION_DAYS: %w", err)
	}

	allowSignup, err := getenvBool("ALLOW_SIGNUP", false)
	if err != nil {
		return Config{}, fmt.Errorf("invalid ALLOW_SIGNUP: %w", err)
	}

	allowCredentials, err := getenvBool("CORS_ALLOW_CREDENTIALS", false)
	if err != nil {
		return Config{}, fmt.Errorf("invalid CORS_ALLOW_CREDENTIALS: %w", err)
	}

	return Config{
		Env:  getenv("ENV", "development"),
		Port: getenv("PORT", "8080"),
		Auth: AuthConfig{
			JWTSecret:       jwtSecret,
			AccessTokenTTL:  accessTTL,
			RefreshTokenTTL: refreshTTL,
			AllowSignup:     allowSignup,
		},
		Postgres: PostgresConfig{
			DatabaseURL: os.Getenv("DATABASE_URL"),
			Host:        getenv("PGHOST", "localhost"),
			Port:        getenv("PGPORT", "5432"),
			User:        os.Getenv("PGUSER"),
			Password:    os.Getenv("PGPASSWORD"),
			Database:    os.Getenv("PGDATABASE"),
			SSLMode:     getenv("PGSSLMODE", "disable"),
		},
		Maintenance: MaintenanceConfig{
			CleanupInterval:      cleanupInterval,
			RevokedRetentionDays: retentionDays,
		},
		CORS: CORSConfig{
			AllowedOrigins:   splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
			AllowCredentials: allowCredentials,
		},
	}, nil
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getenvDuration(key, fallback string) (time.Duration, error) {
	return time.ParseDuration(getenv(key, fallback))
}

func getenvInt(key string, fallback int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	return strconv.Atoi(val)
}

func getenvBool(key string, fallback bool) (bool, error) {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback, nil
	}
	return strconv.ParseBool(val)
}

func splitList(val string) []string {
	var out []string
	for _, item := range strings.Split(val, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
