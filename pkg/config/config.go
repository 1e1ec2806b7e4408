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

const (
	DriverPostgres = "postgres"
	DriverPGX      = "pgx"
)

type Config struct {
	Env string

	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	Storage   StorageConfig
	LearnUpon LearnUponConfig
	Export    ExportConfig
	Metrics   MetricsConfig
}

type DatabaseConfig struct {
	Driver       string
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

// RedisConfig is optional; an empty Host disables the contact cache.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Enabled reports whether a Redis host is configured.
func (c RedisConfig) Enabled() bool {
	return c.Host != ""
}

type LogConfig struct {
	Format string
}

// StorageConfig holds the S3 upload settings. Upload only happens when every
// value is set.
type StorageConfig struct {
	Bucket          string
	PathPrefix      string
	AccessKeyID     string
	AccessKeySecret string
	Region          string
	Endpoint        string
}

// UploadEnabled reports whether all four required S3 values are present.
func (c StorageConfig) UploadEnabled() bool {
	return c.Bucket != "" && c.PathPrefix != "" && c.AccessKeyID != "" && c.AccessKeySecret != ""
}

// LearnUponConfig configures the training-provider API used by the external
// status report.
type LearnUponConfig struct {
	BaseURL         string
	Username        string
	Password        string
	Timeout         time.Duration
	ContactCacheTTL time.Duration
}

// Enabled reports whether the API base URL is configured.
func (c LearnUponConfig) Enabled() bool {
	return c.BaseURL != ""
}

// ExportConfig tunes the per-course fan-out.
type ExportConfig struct {
	Workers int
}

// MetricsConfig points at an optional Prometheus Pushgateway.
type MetricsConfig struct {
	PushgatewayURL string
	JobName        string
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
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")

	cfg.Database = DatabaseConfig{
		Driver:       strings.ToLower(v.GetString("DB_DRIVER")),
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

	cfg.Log = LogConfig{
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Storage = StorageConfig{
		Bucket:          v.GetString("LEARNUPON_EXPORTER_STATIC_FILES_BUCKET"),
		PathPrefix:      v.GetString("LEARNUPON_EXPORTER_STATIC_FILES_PATH"),
		AccessKeyID:     v.GetString("LEARNUPON_EXPORTER_AWS_ACCESS_KEY_ID"),
		AccessKeySecret: v.GetString("LEARNUPON_EXPORTER_AWS_ACCESS_KEY_SECRET"),
		Region:          v.GetString("LEARNUPON_EXPORTER_AWS_REGION"),
		Endpoint:        v.GetString("LEARNUPON_EXPORTER_S3_ENDPOINT"),
	}

	cfg.LearnUpon = LearnUponConfig{
		BaseURL:         strings.TrimRight(v.GetString("LEARNUPON_API_URL"), "/"),
		Username:        v.GetString("LEARNUPON_API_USERNAME"),
		Password:        v.GetString("LEARNUPON_API_PASSWORD"),
		Timeout:         parseDuration(v.GetString("LEARNUPON_API_TIMEOUT"), 30*time.Second),
		ContactCacheTTL: parseDuration(v.GetString("CONTACT_CACHE_TTL"), 24*time.Hour),
	}

	cfg.Export = ExportConfig{
		Workers: v.GetInt("EXPORT_WORKERS"),
	}

	cfg.Metrics = MetricsConfig{
		PushgatewayURL: v.GetString("METRICS_PUSHGATEWAY_URL"),
		JobName:        v.GetString("METRICS_JOB_NAME"),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)

	v.SetDefault("DB_DRIVER", DriverPostgres)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "edxapp")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("LOG_FORMAT", "console")

	v.SetDefault("LEARNUPON_EXPORTER_STATIC_FILES_BUCKET", "")
	v.SetDefault("LEARNUPON_EXPORTER_STATIC_FILES_PATH", "learnupon_exports/")
	v.SetDefault("LEARNUPON_EXPORTER_AWS_ACCESS_KEY_ID", "")
	v.SetDefault("LEARNUPON_EXPORTER_AWS_ACCESS_KEY_SECRET", "")
	v.SetDefault("LEARNUPON_EXPORTER_AWS_REGION", "us-east-1")
	v.SetDefault("LEARNUPON_EXPORTER_S3_ENDPOINT", "")

	v.SetDefault("LEARNUPON_API_URL", "")
	v.SetDefault("LEARNUPON_API_USERNAME", "")
	v.SetDefault("LEARNUPON_API_PASSWORD", "")
	v.SetDefault("LEARNUPON_API_TIMEOUT", "30s")
	v.SetDefault("CONTACT_CACHE_TTL", "24h")

	v.SetDefault("EXPORT_WORKERS", 0)

	v.SetDefault("METRICS_PUSHGATEWAY_URL", "")
	v.SetDefault("METRICS_JOB_NAME", "learnupon_exporter")
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

// viper reports a missing explicit config file as an *fs.PathError rather than
// ConfigFileNotFoundError.
func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory") ||
		strings.Contains(err.Error(), "cannot find the file")
}
