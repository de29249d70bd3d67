// Package config loads process settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port           string
	LogLevel       slog.Level
	ServiceVersion string

	StoreDriver    string
	PostgresURL    string
	MigrationsPath string

	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string

	AMQPURL      string
	AMQPExchange string

	ObjectStore      string
	LocalStoragePath string
	PublicBaseURL    string
	S3Region         string
	S3Bucket         string

	JWTSecret     string
	SessionTTL    time.Duration
	AdminEmail    string
	AdminPassword string

	OTLPEndpoint    string
	EmailServiceURL string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("SERVICE_VERSION", "0.1.0")
	v.SetDefault("STORE_DRIVER", "postgres")
	v.SetDefault("MIGRATIONS_PATH", "file://migrations")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_TOPIC", "bookstore.changes")
	v.SetDefault("KAFKA_GROUP_ID", "bookstore-notifier")
	v.SetDefault("AMQP_URL", "")
	v.SetDefault("AMQP_EXCHANGE", "bookstore.changes")
	v.SetDefault("OBJECT_STORE", "local")
	v.SetDefault("LOCAL_STORAGE_PATH", "./uploads")
	v.SetDefault("PUBLIC_BASE_URL", "http://localhost:8080/uploads")
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("S3_BUCKET", "")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("SESSION_TTL", "24h")
	v.SetDefault("ADMIN_EMAIL", "")
	v.SetDefault("ADMIN_PASSWORD", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")
	v.SetDefault("EMAIL_SERVICE_URL", "http://localhost:8084")
	v.SetDefault("SMTP_HOST", "")
	v.SetDefault("SMTP_PORT", 465)
	v.SetDefault("SMTP_USERNAME", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("SMTP_FROM", "orders@bookshelf.local")
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(v.GetString("LOG_LEVEL"))); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}

	ttl, err := time.ParseDuration(v.GetString("SESSION_TTL"))
	if err != nil {
		return nil, fmt.Errorf("SESSION_TTL: %w", err)
	}

	cfg := &Config{
		Port:             v.GetString("PORT"),
		LogLevel:         level,
		ServiceVersion:   v.GetString("SERVICE_VERSION"),
		StoreDriver:      v.GetString("STORE_DRIVER"),
		PostgresURL:      v.GetString("POSTGRES_URL"),
		MigrationsPath:   v.GetString("MIGRATIONS_PATH"),
		KafkaBrokers:     splitList(v.GetString("KAFKA_BROKERS")),
		KafkaTopic:       v.GetString("KAFKA_TOPIC"),
		KafkaGroupID:     v.GetString("KAFKA_GROUP_ID"),
		AMQPURL:          v.GetString("AMQP_URL"),
		AMQPExchange:     v.GetString("AMQP_EXCHANGE"),
		ObjectStore:      v.GetString("OBJECT_STORE"),
		LocalStoragePath: v.GetString("LOCAL_STORAGE_PATH"),
		PublicBaseURL:    v.GetString("PUBLIC_BASE_URL"),
		S3Region:         v.GetString("S3_REGION"),
		S3Bucket:         v.GetString("S3_BUCKET"),
		JWTSecret:        v.GetString("JWT_SECRET"),
		SessionTTL:       ttl,
		AdminEmail:       v.GetString("ADMIN_EMAIL"),
		AdminPassword:    v.GetString("ADMIN_PASSWORD"),
		OTLPEndpoint:     v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
		EmailServiceURL:  v.GetString("EMAIL_SERVICE_URL"),
		SMTPHost:         v.GetString("SMTP_HOST"),
		SMTPPort:         v.GetInt("SMTP_PORT"),
		SMTPUsername:     v.GetString("SMTP_USERNAME"),
		SMTPPassword:     v.GetString("SMTP_PASSWORD"),
		SMTPFrom:         v.GetString("SMTP_FROM"),
	}

	return cfg, nil
}

// ValidateAPI checks the settings the API process cannot start without.
func (c *Config) ValidateAPI() error {
	var errs []error
	switch c.StoreDriver {
	case "postgres":
		if c.PostgresURL == "" {
			errs = append(errs, errors.New("POSTGRES_URL is required when STORE_DRIVER=postgres"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER %q is not supported", c.StoreDriver))
	}
	switch c.ObjectStore {
	case "local":
	case "s3":
		if c.S3Bucket == "" {
			errs = append(errs, errors.New("S3_BUCKET is required when OBJECT_STORE=s3"))
		}
	default:
		errs = append(errs, fmt.Errorf("OBJECT_STORE %q is not supported", c.ObjectStore))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if (c.AdminEmail == "") != (c.AdminPassword == "") {
		errs = append(errs, errors.New("ADMIN_EMAIL and ADMIN_PASSWORD must be set together"))
	}
	return errors.Join(errs...)
}

// ValidateWorker checks the settings of the notification worker.
func (c *Config) ValidateWorker() error {
	var errs []error
	if len(c.KafkaBrokers) == 0 {
		errs = append(errs, errors.New("KAFKA_BROKERS is required"))
	}
	if c.PostgresURL == "" {
		errs = append(errs, errors.New("POSTGRES_URL is required"))
	}
	if c.EmailServiceURL == "" {
		errs = append(errs, errors.New("EMAIL_SERVICE_URL is required"))
	}
	return errors.Join(errs...)
}

// ValidateEmail checks the SMTP settings. An empty SMTP_HOST is allowed and
// means mail is only logged.
func (c *Config) ValidateEmail() error {
	if c.SMTPHost == "" {
		return nil
	}
	var errs []error
	if c.SMTPPort <= 0 || c.SMTPPort > 65535 {
		errs = append(errs, fmt.Errorf("SMTP_PORT %d is out of range", c.SMTPPort))
	}
	if c.SMTPFrom == "" {
		errs = append(errs, errors.New("SMTP_FROM is required when SMTP_HOST is set"))
	}
	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
