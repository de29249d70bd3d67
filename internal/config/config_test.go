package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper(values map[string]any) *viper.Viper {
	v := viper.New()
	setDefaults(v)
	for k, val := range values {
		v.Set(k, val)
	}
	return v
}

func TestFromViper(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := fromViper(newViper(nil))
		require.NoError(t, err)

		assert.Equal(t, "8080", cfg.Port)
		assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
		assert.Equal(t, "postgres", cfg.StoreDriver)
		assert.Equal(t, "bookstore.changes", cfg.KafkaTopic)
		assert.Equal(t, "bookstore.changes", cfg.AMQPExchange)
		assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
		assert.Equal(t, 465, cfg.SMTPPort)
		assert.Empty(t, cfg.KafkaBrokers)
	})

	t.Run("overrides", func(t *testing.T) {
		cfg, err := fromViper(newViper(map[string]any{
			"LOG_LEVEL":     "debug",
			"KAFKA_BROKERS": "k1:9092, k2:9092,",
			"SESSION_TTL":   "30m",
		}))
		require.NoError(t, err)

		assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
		assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
		assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	})

	t.Run("invalid log level", func(t *testing.T) {
		_, err := fromViper(newViper(map[string]any{"LOG_LEVEL": "loud"}))
		assert.ErrorContains(t, err, "LOG_LEVEL")
	})

	t.Run("invalid session ttl", func(t *testing.T) {
		_, err := fromViper(newViper(map[string]any{"SESSION_TTL": "forever"}))
		assert.ErrorContains(t, err, "SESSION_TTL")
	})
}

func TestValidateAPI(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name: "memory store with local objects",
			cfg:  Config{StoreDriver: "memory", ObjectStore: "local", JWTSecret: "s"},
		},
		{
			name:    "postgres without url",
			cfg:     Config{StoreDriver: "postgres", ObjectStore: "local", JWTSecret: "s"},
			wantErr: "POSTGRES_URL",
		},
		{
			name:    "s3 without bucket",
			cfg:     Config{StoreDriver: "memory", ObjectStore: "s3", JWTSecret: "s"},
			wantErr: "S3_BUCKET",
		},
		{
			name:    "missing secret",
			cfg:     Config{StoreDriver: "memory", ObjectStore: "local"},
			wantErr: "JWT_SECRET",
		},
		{
			name:    "unknown driver",
			cfg:     Config{StoreDriver: "sqlite", ObjectStore: "local", JWTSecret: "s"},
			wantErr: "STORE_DRIVER",
		},
		{
			name:    "admin email without password",
			cfg:     Config{StoreDriver: "memory", ObjectStore: "local", JWTSecret: "s", AdminEmail: "root@example.com"},
			wantErr: "ADMIN_PASSWORD",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.ValidateAPI()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestValidateWorker(t *testing.T) {
	cfg := Config{}
	err := cfg.ValidateWorker()
	assert.ErrorContains(t, err, "KAFKA_BROKERS")
	assert.ErrorContains(t, err, "POSTGRES_URL")
	assert.ErrorContains(t, err, "EMAIL_SERVICE_URL")

	cfg = Config{KafkaBrokers: []string{"k:9092"}, PostgresURL: "postgres://x", EmailServiceURL: "http://email"}
	assert.NoError(t, cfg.ValidateWorker())
}

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, (&Config{}).ValidateEmail(), "log-only mode")
	assert.NoError(t, (&Config{SMTPHost: "smtp", SMTPPort: 587, SMTPFrom: "a@b.c"}).ValidateEmail())
	assert.ErrorContains(t, (&Config{SMTPHost: "smtp", SMTPPort: 0, SMTPFrom: "a@b.c"}).ValidateEmail(), "SMTP_PORT")
	assert.ErrorContains(t, (&Config{SMTPHost: "smtp", SMTPPort: 25}).ValidateEmail(), "SMTP_FROM")
}
