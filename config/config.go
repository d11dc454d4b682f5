package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config хранит все конфигурационные параметры приложения.
type Config struct {
	DatabaseURL  string
	JWTSecretKey string
	ServerPort   int

	// Redis нужен только для распределённой блокировки турниров.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	LockTTL       time.Duration

	FirebaseCredentialsFile string

	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicBaseURL   string

	SinglesRulesPath string
	DoublesRulesPath string

	CORSAllowedOrigins []string

	NotificationRetentionDays int
	RetentionInterval         time.Duration
}

// Load загружает конфигурацию из переменных окружения.
// Опционально подгружает .env файл (полезно для локальной разработки).
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromLookup(os.LookupEnv)
}

// FromLookup builds the config from any variable source.
func FromLookup(lookup func(string) (string, bool)) (*Config, error) {
	get := func(key, def string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}

	cfg := &Config{
		DatabaseURL:             get("DATABASE_URL", ""),
		JWTSecretKey:            get("JWT_SECRET_KEY", ""),
		RedisAddr:               get("REDIS_ADDR", ""),
		RedisPassword:           get("REDIS_PASSWORD", ""),
		FirebaseCredentialsFile: get("FIREBASE_CREDENTIALS_FILE", ""),
		R2AccountID:             get("R2_ACCOUNT_ID", ""),
		R2AccessKeyID:           get("R2_ACCESS_KEY_ID", ""),
		R2SecretAccessKey:       get("R2_SECRET_ACCESS_KEY", ""),
		R2BucketName:            get("R2_BUCKET_NAME", ""),
		R2PublicBaseURL:         get("R2_PUBLIC_BASE_URL", ""),
		SinglesRulesPath:        get("KDK_SINGLE_RULES_PATH", "json/kdk_rules_single.json"),
		DoublesRulesPath:        get("KDK_DOUBLE_RULES_PATH", "json/kdk_rules_double.json"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}
	if cfg.JWTSecretKey == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY environment variable is not set")
	}

	port, err := strconv.Atoi(get("SERVER_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT environment variable: %w", err)
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}
	cfg.ServerPort = port

	if cfg.RedisDB, err = strconv.Atoi(get("REDIS_DB", "0")); err != nil || cfg.RedisDB < 0 {
		return nil, fmt.Errorf("invalid REDIS_DB environment variable: %q", get("REDIS_DB", "0"))
	}
	if cfg.LockTTL, err = positiveDuration(get("LOCK_TTL", "30s")); err != nil {
		return nil, fmt.Errorf("invalid LOCK_TTL environment variable: %w", err)
	}
	if cfg.RetentionInterval, err = positiveDuration(get("RETENTION_INTERVAL", "24h")); err != nil {
		return nil, fmt.Errorf("invalid RETENTION_INTERVAL environment variable: %w", err)
	}

	days, err := strconv.Atoi(get("NOTIFICATION_RETENTION_DAYS", "7"))
	if err != nil || days <= 0 {
		return nil, fmt.Errorf("NOTIFICATION_RETENTION_DAYS must be a positive integer, got %q", get("NOTIFICATION_RETENTION_DAYS", "7"))
	}
	cfg.NotificationRetentionDays = days

	for _, origin := range strings.Split(get("CORS_ALLOWED_ORIGINS", "*"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, origin)
		}
	}

	if err := cfg.validateR2(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func positiveDuration(raw string) (time.Duration, error) {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive, got %s", d)
	}
	return d, nil
}

// R2Enabled reports whether every R2 variable is set.
func (c *Config) R2Enabled() bool {
	return c.R2AccountID != "" && c.R2AccessKeyID != "" && c.R2SecretAccessKey != "" &&
		c.R2BucketName != "" && c.R2PublicBaseURL != ""
}

// validateR2 rejects a half-configured bucket; all five variables or none.
func (c *Config) validateR2() error {
	set := 0
	for _, v := range []string{c.R2AccountID, c.R2AccessKeyID, c.R2SecretAccessKey, c.R2BucketName, c.R2PublicBaseURL} {
		if v != "" {
			set++
		}
	}
	if set != 0 && set != 5 {
		return fmt.Errorf("R2 storage is partially configured: set all of R2_ACCOUNT_ID, R2_ACCESS_KEY_ID, R2_SECRET_ACCESS_KEY, R2_BUCKET_NAME, R2_PUBLIC_BASE_URL or none")
	}
	return nil
}
