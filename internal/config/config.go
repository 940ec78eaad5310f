package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr  string
	LogLevel  string
	Env       string // dev|prod
	SentryDSN string
	Release   string

	Store StoreConfig
	Cache CacheConfig

	MasterEmail    string
	MasterPassword string
	MasterName     string

	SessionSecret string
	SessionTTL    time.Duration

	GeminiAPIKey string
	GeminiModel  string

	TelegramToken string
	AdminChatIDs  []int64

	SummaryRefreshInterval time.Duration
}

type StoreConfig struct {
	Backend      string // postgres|gcs|redis|memory
	Namespace    string
	Project      string
	Credential   string
	Placeholders []string
	Migrate      bool

	DatabaseURL string

	GCSBucket       string
	EmulatorHost    string
	CredentialsFile string
	CredentialsJSON string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	TimeoutAccounts time.Duration
	TimeoutContent  time.Duration
	TimeoutProgress time.Duration
	TimeoutWrite    time.Duration
}

type CacheConfig struct {
	Path string
}

func Load() (*Config, error) {
	adminIDs, err := parseIDs(os.Getenv("ADMIN_CHAT_IDS"))
	if err != nil {
		return nil, fmt.Errorf("ADMIN_CHAT_IDS: %w", err)
	}

	var errs []string
	dur := func(k, def string) time.Duration {
		d, err := time.ParseDuration(getenv(k, def))
		if err != nil || d < 0 {
			errs = append(errs, fmt.Sprintf("%s: bad duration %q", k, os.Getenv(k)))
			return 0
		}
		return d
	}
	redisDB, err := strconv.Atoi(getenv("REDIS_DB", "0"))
	if err != nil {
		errs = append(errs, fmt.Sprintf("REDIS_DB: %v", err))
	}
	migrate, err := strconv.ParseBool(getenv("STORE_MIGRATE", "false"))
	if err != nil {
		errs = append(errs, fmt.Sprintf("STORE_MIGRATE: %v", err))
	}

	cfg := &Config{
		HTTPAddr:  getenv("HTTP_ADDR", ":8080"),
		LogLevel:  getenv("LOG_LEVEL", "info"),
		Env:       getenv("ENV", "dev"),
		SentryDSN: os.Getenv("SENTRY_DSN"),
		Release:   os.Getenv("RELEASE"),

		Store: StoreConfig{
			Backend:      strings.ToLower(getenv("STORE_BACKEND", "memory")),
			Namespace:    getenv("STORE_NAMESPACE", "ada_portal"),
			Project:      os.Getenv("STORE_PROJECT"),
			Credential:   os.Getenv("STORE_CREDENTIAL"),
			Placeholders: splitList(os.Getenv("STORE_PLACEHOLDER_CREDENTIALS")),
			Migrate:      migrate,

			DatabaseURL: os.Getenv("DATABASE_URL"),

			GCSBucket:       os.Getenv("GCS_BUCKET"),
			EmulatorHost:    os.Getenv("STORAGE_EMULATOR_HOST"),
			CredentialsFile: os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
			CredentialsJSON: os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_JSON"),

			RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
			RedisPassword: os.Getenv("REDIS_PASSWORD"),
			RedisDB:       redisDB,

			TimeoutAccounts: dur("TIMEOUT_ACCOUNTS", "3s"),
			TimeoutContent:  dur("TIMEOUT_CONTENT", "3s"),
			TimeoutProgress: dur("TIMEOUT_PROGRESS", "1200ms"),
			TimeoutWrite:    dur("TIMEOUT_WRITE", "5s"),
		},
		Cache: CacheConfig{Path: getenv("CACHE_PATH", "./data/cache.db")},

		MasterEmail:    mustEnv("MASTER_EMAIL"),
		MasterPassword: mustEnv("MASTER_PASSWORD"),
		MasterName:     getenv("MASTER_NAME", "Master Root"),

		SessionSecret: mustEnv("SESSION_SECRET"),
		SessionTTL:    dur("SESSION_TTL", "72h"),

		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		GeminiModel:  getenv("GEMINI_MODEL", "gemini-2.5-flash"),

		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		AdminChatIDs:  adminIDs,

		SummaryRefreshInterval: dur("SUMMARY_REFRESH_INTERVAL", "15m"),
	}

	switch cfg.Store.Backend {
	case "memory", "redis":
	case "postgres":
		if cfg.Store.DatabaseURL == "" {
			errs = append(errs, "DATABASE_URL is required for STORE_BACKEND=postgres")
		}
	case "gcs":
		if cfg.Store.GCSBucket == "" {
			errs = append(errs, "GCS_BUCKET is required for STORE_BACKEND=gcs")
		}
	default:
		errs = append(errs, fmt.Sprintf("STORE_BACKEND: unknown backend %q", cfg.Store.Backend))
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

func mustEnv(k string) string {
	v := os.Getenv(k)
	if v == "" {
		panic("required env " + k + " is empty")
	}
	return v
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func splitList(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ',' })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseIDs(s string) ([]int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad id %q: %w", p, err)
		}
		out = append(out, n)
	}
	return out, nil
}
