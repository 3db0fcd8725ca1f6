// Package config reads the service settings once at startup.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/alaska-tech/veciapp-backend/internal/archive"
	"github.com/alaska-tech/veciapp-backend/internal/database"
	"github.com/alaska-tech/veciapp-backend/internal/gateway/wompi"
)

type Config struct {
	Port string `validate:"required,numeric"`

	DBDriver string `validate:"oneof=mysql postgres sqlite"`
	DBDSN    string `validate:"required"`

	WompiBaseURL       string        `validate:"required,url"`
	WompiPublicKey     string        `validate:"required"`
	WompiPrivateKey    string        `validate:"required"`
	WompiWebhookSecret string        `validate:"required"`
	WompiTimeout       time.Duration `validate:"gt=0"`
	WompiRPS           float64       `validate:"gte=0"`

	JWTSecret string `validate:"required,min=16"`

	Currency        string        `validate:"len=3,uppercase"`
	UpdateRetryBase time.Duration `validate:"gte=0"`

	ArchiveDriver   string `validate:"oneof=none local s3"`
	ArchiveLocalDir string
	S3Region        string `validate:"required_if=ArchiveDriver s3"`
	S3Bucket        string `validate:"required_if=ArchiveDriver s3"`
	S3Prefix        string

	LogLevel string `validate:"oneof=debug info warn error"`
}

// Load reads .env when present, then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

func FromEnv(getenv func(string) string) (*Config, error) {
	env := func(k, def string) string {
		if v := strings.TrimSpace(getenv(k)); v != "" {
			return v
		}
		return def
	}

	timeout, err := time.ParseDuration(env("WOMPI_TIMEOUT", "15s"))
	if err != nil {
		return nil, fmt.Errorf("WOMPI_TIMEOUT: %w", err)
	}
	rps, err := strconv.ParseFloat(env("WOMPI_RPS", "10"), 64)
	if err != nil {
		return nil, fmt.Errorf("WOMPI_RPS: %w", err)
	}
	retryBase, err := time.ParseDuration(env("UPDATE_RETRY_BASE", "100ms"))
	if err != nil {
		return nil, fmt.Errorf("UPDATE_RETRY_BASE: %w", err)
	}

	cfg := &Config{
		Port:               env("PORT", "8080"),
		DBDriver:           env("DB_DRIVER", database.DriverMySQL),
		DBDSN:              env("DB_DSN", ""),
		WompiBaseURL:       env("WOMPI_BASE_URL", wompi.SandboxBaseURL),
		WompiPublicKey:     env("WOMPI_PUBLIC_KEY", ""),
		WompiPrivateKey:    env("WOMPI_PRIVATE_KEY", ""),
		WompiWebhookSecret: env("WOMPI_WEBHOOK_SECRET", ""),
		WompiTimeout:       timeout,
		WompiRPS:           rps,
		JWTSecret:          env("JWT_SECRET", ""),
		Currency:           strings.ToUpper(env("PAYMENT_CURRENCY", "COP")),
		UpdateRetryBase:    retryBase,
		ArchiveDriver:      env("ARCHIVE_DRIVER", archive.DriverNone),
		ArchiveLocalDir:    env("ARCHIVE_LOCAL_DIR", "./storage/archive"),
		S3Region:           env("S3_REGION", ""),
		S3Bucket:           env("S3_BUCKET", ""),
		S3Prefix:           env("S3_PREFIX", "payments"),
		LogLevel:           strings.ToLower(env("LOG_LEVEL", "info")),
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) Wompi() *wompi.Config {
	return &wompi.Config{
		BaseURL:           c.WompiBaseURL,
		PublicKey:         c.WompiPublicKey,
		PrivateKey:        c.WompiPrivateKey,
		Timeout:           c.WompiTimeout,
		RequestsPerSecond: c.WompiRPS,
		Burst:             int(c.WompiRPS) + 1,
	}
}

func (c *Config) Database() database.Options {
	return database.Options{
		Driver:       c.DBDriver,
		DSN:          c.DBDSN,
		MaxOpenConns: 25,
		MaxIdleConns: 5,
		ConnMaxLife:  time.Hour,
	}
}

func (c *Config) Archive() archive.Config {
	return archive.Config{
		Driver:   c.ArchiveDriver,
		LocalDir: c.ArchiveLocalDir,
		S3Region: c.S3Region,
		S3Bucket: c.S3Bucket,
		S3Prefix: c.S3Prefix,
	}
}

func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
