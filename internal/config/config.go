package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig collects runtime configuration. Values come from the environment,
// optionally seeded by a YAML file named in CONFIG_FILE; the environment wins.
type AppConfig struct {
	HTTPAddr    string
	ServiceName string

	DBDriver string // sqlite | postgres
	DBDSN    string

	RedisAddr string
	RedisDB   int

	// Kafka brokers (comma separated), topic and consumer group for domain events
	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string

	// Redis Stream outbox: the API appends, the relay forwards to Kafka
	OrderEventStream   string
	OrderEventGroup    string
	OrderEventConsumer string

	JWTSecret string

	// rate limit for checkout and coupon probing
	RateLimit  int
	RateWindow time.Duration

	SettingsCacheTTL time.Duration
	IdempotencyTTL   time.Duration
	CheckoutLockTTL  time.Duration

	TracingEndpoint string
	MailFrom        string
}

// Load reads and validates configuration, applying defaults where unset.
func Load() (AppConfig, error) {
	file, err := loadFile(strings.TrimSpace(os.Getenv("CONFIG_FILE")))
	if err != nil {
		return AppConfig{}, err
	}
	get := func(key, fallback string) string {
		if v, ok := file[key]; ok && v != "" {
			fallback = v
		}
		return getEnv(key, fallback)
	}
	getInt := func(key string, fallback int) (int, error) {
		if v, ok := file[key]; ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return 0, fmt.Errorf("invalid %s in config file: %w", key, err)
			}
			fallback = n
		}
		return getEnvInt(key, fallback)
	}

	cfg := AppConfig{
		HTTPAddr:           get("HTTP_ADDR", ":8080"),
		ServiceName:        get("SERVICE_NAME", "genmart-api"),
		DBDriver:           strings.ToLower(get("DB_DRIVER", "sqlite")),
		DBDSN:              get("DB_DSN", "genmart.db"),
		RedisAddr:          get("REDIS_ADDR", "localhost:6379"),
		KafkaBrokers:       splitCSV(get("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:         get("KAFKA_TOPIC", "genmart-events"),
		KafkaGroupID:       get("KAFKA_GROUP_ID", "genmart-notifier"),
		OrderEventStream:   get("ORDER_EVENT_STREAM", "genmart:events"),
		OrderEventGroup:    get("ORDER_EVENT_GROUP", "genmart-relay-group"),
		OrderEventConsumer: get("ORDER_EVENT_CONSUMER", "genmart-relay-1"),
		JWTSecret:          get("JWT_SECRET", "dev-jwt-secret"),
		TracingEndpoint:    get("TRACING_ENDPOINT", ""),
		MailFrom:           get("MAIL_FROM", "GenMart <orders@genmart.pk>"),
	}

	if cfg.RedisDB, err = getInt("REDIS_DB", 0); err != nil {
		return AppConfig{}, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	rateLimit, err := getInt("RATE_LIMIT", 30)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid RATE_LIMIT: %w", err)
	}
	if rateLimit <= 0 {
		return AppConfig{}, fmt.Errorf("RATE_LIMIT must be > 0")
	}
	cfg.RateLimit = rateLimit

	rateWindowSec, err := getInt("RATE_WINDOW_SEC", 60)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid RATE_WINDOW_SEC: %w", err)
	}
	if rateWindowSec <= 0 {
		return AppConfig{}, fmt.Errorf("RATE_WINDOW_SEC must be > 0")
	}
	cfg.RateWindow = time.Duration(rateWindowSec) * time.Second

	settingsTTL, err := getInt("SETTINGS_CACHE_TTL_SEC", 300)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid SETTINGS_CACHE_TTL_SEC: %w", err)
	}
	if settingsTTL <= 0 {
		return AppConfig{}, fmt.Errorf("SETTINGS_CACHE_TTL_SEC must be > 0")
	}
	cfg.SettingsCacheTTL = time.Duration(settingsTTL) * time.Second

	idemHours, err := getInt("IDEMPOTENCY_TTL_HOUR", 24)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid IDEMPOTENCY_TTL_HOUR: %w", err)
	}
	if idemHours <= 0 {
		return AppConfig{}, fmt.Errorf("IDEMPOTENCY_TTL_HOUR must be > 0")
	}
	cfg.IdempotencyTTL = time.Duration(idemHours) * time.Hour

	lockSec, err := getInt("CHECKOUT_LOCK_TTL_SEC", 15)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid CHECKOUT_LOCK_TTL_SEC: %w", err)
	}
	if lockSec <= 0 {
		return AppConfig{}, fmt.Errorf("CHECKOUT_LOCK_TTL_SEC must be > 0")
	}
	cfg.CheckoutLockTTL = time.Duration(lockSec) * time.Second

	switch cfg.DBDriver {
	case "sqlite", "postgres":
	default:
		return AppConfig{}, fmt.Errorf("DB_DRIVER must be sqlite or postgres, got %q", cfg.DBDriver)
	}
	if cfg.DBDSN == "" {
		return AppConfig{}, fmt.Errorf("DB_DSN must not be empty")
	}
	if cfg.JWTSecret == "" {
		return AppConfig{}, fmt.Errorf("JWT_SECRET must not be empty")
	}
	if len(cfg.KafkaBrokers) == 0 {
		return AppConfig{}, fmt.Errorf("KAFKA_BROKERS must not be empty")
	}
	if cfg.KafkaTopic == "" {
		return AppConfig{}, fmt.Errorf("KAFKA_TOPIC must not be empty")
	}
	if cfg.KafkaGroupID == "" {
		return AppConfig{}, fmt.Errorf("KAFKA_GROUP_ID must not be empty")
	}
	if cfg.OrderEventStream == "" {
		return AppConfig{}, fmt.Errorf("ORDER_EVENT_STREAM must not be empty")
	}
	if cfg.OrderEventGroup == "" {
		return AppConfig{}, fmt.Errorf("ORDER_EVENT_GROUP must not be empty")
	}
	if cfg.OrderEventConsumer == "" {
		return AppConfig{}, fmt.Errorf("ORDER_EVENT_CONSUMER must not be empty")
	}

	return cfg, nil
}

// loadFile reads a flat YAML map of the same keys the environment uses.
func loadFile(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if v == nil {
			continue
		}
		if list, ok := v.([]any); ok {
			parts := make([]string, 0, len(list))
			for _, item := range list {
				parts = append(parts, fmt.Sprint(item))
			}
			out[strings.ToUpper(k)] = strings.Join(parts, ",")
			continue
		}
		out[strings.ToUpper(k)] = fmt.Sprint(v)
	}
	return out, nil
}

// getEnv returns the trimmed env value, or fallback when unset.
func getEnv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

// getEnvInt parses an integer env value, or returns fallback when unset.
func getEnvInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

// splitCSV splits a comma separated list, dropping empty entries.
func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
