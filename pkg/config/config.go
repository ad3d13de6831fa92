package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Feed     FeedConfig
	Sync     SyncConfig
	Reports  ReportsConfig
	Offline  OfflineConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// FeedConfig tunes the cached assignment feed.
type FeedConfig struct {
	CacheTTL time.Duration
}

// SyncConfig governs server-side replay of device mutation batches.
type SyncConfig struct {
	Enabled        bool
	MaxBatchSize   int
	RetryAttempts  int
	RetryDelay     time.Duration
	EventQueueSize int
}

// ReportsConfig toggles the submission export endpoints.
type ReportsConfig struct {
	Enabled   bool
	ExportDir string
}

// OfflineConfig configures the device agent and its embeddable queue.
type OfflineConfig struct {
	StorePath     string
	ServerURL     string
	DeviceID      string
	Token         string
	ProbeInterval time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret: v.GetString("JWT_SECRET"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Feed = FeedConfig{
		CacheTTL: parseDuration(v.GetString("FEED_CACHE_TTL"), 30*time.Second),
	}

	cfg.Sync = SyncConfig{
		Enabled:        v.GetBool("ENABLE_SYNC"),
		MaxBatchSize:   v.GetInt("SYNC_MAX_BATCH_SIZE"),
		RetryAttempts:  v.GetInt("SYNC_RETRY_ATTEMPTS"),
		RetryDelay:     parseDuration(v.GetString("SYNC_RETRY_DELAY"), 250*time.Millisecond),
		EventQueueSize: v.GetInt("SYNC_EVENT_QUEUE_SIZE"),
	}

	cfg.Reports = ReportsConfig{
		Enabled:   v.GetBool("ENABLE_REPORTS"),
		ExportDir: v.GetString("REPORTS_EXPORT_DIR"),
	}

	cfg.Offline = OfflineConfig{
		StorePath:     v.GetString("OFFLINE_STORE_PATH"),
		ServerURL:     v.GetString("OFFLINE_SERVER_URL"),
		DeviceID:      v.GetString("OFFLINE_DEVICE_ID"),
		Token:         v.GetString("OFFLINE_TOKEN"),
		ProbeInterval: parseDuration(v.GetString("OFFLINE_PROBE_INTERVAL"), 15*time.Second),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "fieldops")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("FEED_CACHE_TTL", "30s")

	v.SetDefault("ENABLE_SYNC", true)
	v.SetDefault("SYNC_MAX_BATCH_SIZE", 100)
	v.SetDefault("SYNC_RETRY_ATTEMPTS", 3)
	v.SetDefault("SYNC_RETRY_DELAY", "250ms")
	v.SetDefault("SYNC_EVENT_QUEUE_SIZE", 64)

	v.SetDefault("ENABLE_REPORTS", true)
	v.SetDefault("REPORTS_EXPORT_DIR", "./exports")

	v.SetDefault("OFFLINE_STORE_PATH", "./offline.db")
	v.SetDefault("OFFLINE_SERVER_URL", "http://localhost:8080/api/v1")
	v.SetDefault("OFFLINE_DEVICE_ID", "")
	v.SetDefault("OFFLINE_TOKEN", "")
	v.SetDefault("OFFLINE_PROBE_INTERVAL", "15s")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
