// Package config loads service settings from the environment, optionally
// layered over a config file named by CONFIG_FILE.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	KeyPostgresURL   = "POSTGRES_URL"
	KeyPort          = "PORT"
	KeyKafkaBrokers  = "KAFKA_BROKERS"
	KeyOTLPEndpoint  = "OTEL_EXPORTER_OTLP_ENDPOINT"
	KeyLogLevel      = "LOG_LEVEL"
	KeyOutboxEvery   = "OUTBOX_INTERVAL"
	KeyCatalogURL    = "CATALOG_SERVICE_URL"
	KeyOrdersURL     = "ORDERS_SERVICE_URL"
	KeyEmailURL      = "EMAIL_SERVICE_URL"
	KeyConsumerGroup = "KAFKA_CONSUMER_GROUP"
	KeyNotifyEmail   = "NOTIFY_EMAIL"
	KeyConfigFile    = "CONFIG_FILE"
)

// Config is the union of settings used by the binaries; each one reads the
// fields it needs.
type Config struct {
	ServiceName    string
	Port           string
	PostgresURL    string
	KafkaBrokers   []string
	OTLPEndpoint   string
	LogLevel       slog.Level
	OutboxInterval time.Duration
	CatalogURL     string
	OrdersURL      string
	EmailURL       string
	ConsumerGroup  string
	NotifyEmail    string
}

// Option sets a per-service default.
type Option func(v *viper.Viper)

func WithDefault(key string, value any) Option {
	return func(v *viper.Viper) {
		v.SetDefault(key, value)
	}
}

// Load reads the configuration for serviceName. Keys listed in required must
// resolve to a non-empty value.
func Load(serviceName string, required []string, opts ...Option) (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault(KeyOTLPEndpoint, "localhost:4317")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyOutboxEvery, "1s")
	v.SetDefault(KeyConsumerGroup, serviceName)
	v.SetDefault(KeyNotifyEmail, "stock-team@example.com")
	for _, opt := range opts {
		opt(v)
	}

	if file := v.GetString(KeyConfigFile); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", file, err)
		}
	}

	var missing []string
	for _, key := range required {
		if strings.TrimSpace(v.GetString(key)) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	level, err := parseLevel(v.GetString(KeyLogLevel))
	if err != nil {
		return nil, err
	}

	interval, err := time.ParseDuration(v.GetString(KeyOutboxEvery))
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", KeyOutboxEvery, err)
	}
	if interval <= 0 {
		return nil, fmt.Errorf("invalid %s: must be positive", KeyOutboxEvery)
	}

	return &Config{
		ServiceName:    serviceName,
		Port:           v.GetString(KeyPort),
		PostgresURL:    v.GetString(KeyPostgresURL),
		KafkaBrokers:   splitList(v.GetString(KeyKafkaBrokers)),
		OTLPEndpoint:   v.GetString(KeyOTLPEndpoint),
		LogLevel:       level,
		OutboxInterval: interval,
		CatalogURL:     v.GetString(KeyCatalogURL),
		OrdersURL:      v.GetString(KeyOrdersURL),
		EmailURL:       v.GetString(KeyEmailURL),
		ConsumerGroup:  v.GetString(KeyConsumerGroup),
		NotifyEmail:    v.GetString(KeyNotifyEmail),
	}, nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, errors.New("invalid " + KeyLogLevel + ": " + s)
	}
	return level, nil
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
