// Package config loads service configuration from config.toml and
// ODOOSYNC_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the complete service configuration
type Config struct {
	App         AppConfig
	Log         LogConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Odoo        OdooConfig
	Sync        SyncConfig
	ActivityLog ActivityLogConfig
	Scheduler   SchedulerConfig
	JWT         JWTConfig
	Storage     StorageConfig
	HTTP        HTTPConfig
	Telemetry   TelemetryConfig
}

// AppConfig holds application settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// DatabaseConfig holds the store database settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	LogLevel        string
}

// RedisConfig holds Redis settings. When disabled the token cache and order
// locks live in process memory.
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// OdooConfig holds the ERP connection
type OdooConfig struct {
	BaseURL        string
	Database       string
	Login          string
	Password       string
	LocationID     int64
	SendTimeout    time.Duration
	RequestTimeout time.Duration
	TokenTTL       time.Duration
	// Locale selects the language of order notes ("en", "ar")
	Locale string
}

// SyncConfig tunes the sync engine
type SyncConfig struct {
	MaxRetries       int
	RetryBase        time.Duration
	OrderLockEnabled bool
	OrderLockTTL     time.Duration
	// ActivityLogging records a sync_attempt entry for every attempt
	ActivityLogging bool
}

// ActivityLogConfig locates the activity log
type ActivityLogConfig struct {
	RootDir        string
	LegacyFallback bool
	RetentionDays  int
}

// SchedulerConfig configures background jobs
type SchedulerConfig struct {
	ResendEnabled   bool
	ResendInterval  time.Duration
	ResendBatchSize int
	CleanupEnabled  bool
	CleanupInterval time.Duration
	JobTimeout      time.Duration
	MetricsInterval time.Duration
}

// JWTConfig holds API token settings
type JWTConfig struct {
	Secret string
	Issuer string
	// AdminRoles may run maintenance and scheduler endpoints
	AdminRoles []string
}

// StorageConfig configures the S3 archive of activity log shards
type StorageConfig struct {
	ArchiveEnabled  bool
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

// HTTPConfig holds API server settings
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	MaxBodySize      int64
	CORSAllowOrigins []string
}

// TelemetryConfig holds OpenTelemetry and profiling settings
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string
	SamplingRatio     float64
	ServiceName       string
	Insecure          bool
	MetricsEnabled    bool
	LogsEnabled       bool
	DBTraceEnabled    bool
	ProfilingEnabled  bool
	ProfilingAddress  string
}

// Validation errors
var (
	ErrOdooRequired     = errors.New("odoo.base_url, odoo.db, odoo.login and odoo.password are required")
	ErrInvalidSampling  = errors.New("telemetry.sampling_ratio must be between 0.0 and 1.0")
	ErrInvalidPool      = errors.New("database.max_idle_conns cannot exceed database.max_open_conns")
	ErrJWTSecret        = errors.New("jwt.secret must be at least 32 characters in production")
	ErrArchiveBucket    = errors.New("storage.bucket is required when storage.archive_enabled is set")
	ErrInvalidRetries   = errors.New("sync.max_retries cannot be negative")
	ErrInvalidRetention = errors.New("activity_log.retention_days must be positive")
)

// Load reads config.toml (if present) and applies environment overrides,
// defaults and validation.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/odoosync")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("ODOOSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("database.conn_max_lifetime"),
			LogLevel:        v.GetString("database.log_level"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Odoo: OdooConfig{
			BaseURL:        v.GetString("odoo.base_url"),
			Database:       v.GetString("odoo.db"),
			Login:          v.GetString("odoo.login"),
			Password:       v.GetString("odoo.password"),
			LocationID:     v.GetInt64("odoo.location_id"),
			SendTimeout:    v.GetDuration("odoo.send_timeout"),
			RequestTimeout: v.GetDuration("odoo.request_timeout"),
			TokenTTL:       v.GetDuration("odoo.token_ttl"),
			Locale:         v.GetString("odoo.locale"),
		},
		Sync: SyncConfig{
			MaxRetries:       v.GetInt("sync.max_retries"),
			RetryBase:        v.GetDuration("sync.retry_base"),
			OrderLockEnabled: v.GetBool("sync.order_lock_enabled"),
			OrderLockTTL:     v.GetDuration("sync.order_lock_ttl"),
			ActivityLogging:  v.GetBool("sync.activity_logging"),
		},
		ActivityLog: ActivityLogConfig{
			RootDir:        v.GetString("activity_log.root_dir"),
			LegacyFallback: v.GetBool("activity_log.legacy_fallback"),
			RetentionDays:  v.GetInt("activity_log.retention_days"),
		},
		Scheduler: SchedulerConfig{
			ResendEnabled:   v.GetBool("scheduler.resend_enabled"),
			ResendInterval:  v.GetDuration("scheduler.resend_interval"),
			ResendBatchSize: v.GetInt("scheduler.resend_batch_size"),
			CleanupEnabled:  v.GetBool("scheduler.cleanup_enabled"),
			CleanupInterval: v.GetDuration("scheduler.cleanup_interval"),
			JobTimeout:      v.GetDuration("scheduler.job_timeout"),
			MetricsInterval: v.GetDuration("scheduler.metrics_interval"),
		},
		JWT: JWTConfig{
			Secret:     v.GetString("jwt.secret"),
			Issuer:     v.GetString("jwt.issuer"),
			AdminRoles: v.GetStringSlice("jwt.admin_roles"),
		},
		Storage: StorageConfig{
			ArchiveEnabled:  v.GetBool("storage.archive_enabled"),
			Bucket:          v.GetString("storage.bucket"),
			Prefix:          v.GetString("storage.prefix"),
			Region:          v.GetString("storage.region"),
			Endpoint:        v.GetString("storage.endpoint"),
			AccessKeyID:     v.GetString("storage.access_key_id"),
			SecretAccessKey: v.GetString("storage.secret_access_key"),
			UsePathStyle:    v.GetBool("storage.use_path_style"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			MaxBodySize:      v.GetInt64("http.max_body_size"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsEnabled:    v.GetBool("telemetry.metrics_enabled"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			ProfilingEnabled:  v.GetBool("telemetry.profiling_enabled"),
			ProfilingAddress:  v.GetString("telemetry.profiling_address"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers defaults. Registering every key also lets
// AutomaticEnv resolve keys absent from the config file.
func setDefaults(v *viper.Viper) {
	defaults := map[string]any{
		"app.name": "odoosync",
		"app.env":  "development",
		"app.port": "8080",

		"log.level":  "info",
		"log.format": "console",
		"log.output": "stdout",

		"database.host":              "localhost",
		"database.port":              5432,
		"database.user":              "postgres",
		"database.password":          "",
		"database.dbname":            "shop",
		"database.sslmode":           "disable",
		"database.max_open_conns":    25,
		"database.max_idle_conns":    5,
		"database.conn_max_lifetime": time.Hour,
		"database.log_level":         "warn",

		"redis.enabled":  false,
		"redis.host":     "localhost",
		"redis.port":     6379,
		"redis.password": "",
		"redis.db":       0,

		"odoo.base_url":        "",
		"odoo.db":              "",
		"odoo.login":           "",
		"odoo.password":        "",
		"odoo.location_id":     0,
		"odoo.send_timeout":    30 * time.Second,
		"odoo.request_timeout": 20 * time.Second,
		"odoo.token_ttl":       24 * time.Hour,
		"odoo.locale":          "en",

		"sync.max_retries":        3,
		"sync.retry_base":         time.Second,
		"sync.order_lock_enabled": true,
		"sync.order_lock_ttl":     5 * time.Minute,
		"sync.activity_logging":   true,

		"activity_log.root_dir":        "./var",
		"activity_log.legacy_fallback": true,
		"activity_log.retention_days":  30,

		"scheduler.resend_enabled":    false,
		"scheduler.resend_interval":   15 * time.Minute,
		"scheduler.resend_batch_size": 50,
		"scheduler.cleanup_enabled":   true,
		"scheduler.cleanup_interval":  24 * time.Hour,
		"scheduler.job_timeout":       10 * time.Minute,
		"scheduler.metrics_interval":  time.Minute,

		"jwt.secret":      "",
		"jwt.issuer":      "odoosync",
		"jwt.admin_roles": []string{"admin"},

		"storage.archive_enabled":   false,
		"storage.bucket":            "",
		"storage.prefix":            "order-activity-logs",
		"storage.region":            "us-east-1",
		"storage.endpoint":          "",
		"storage.access_key_id":     "",
		"storage.secret_access_key": "",
		"storage.use_path_style":    false,

		"http.read_timeout":       15 * time.Second,
		"http.write_timeout":      60 * time.Second,
		"http.idle_timeout":       60 * time.Second,
		"http.max_body_size":      int64(10 << 20),
		"http.cors_allow_origins": []string{},

		"telemetry.enabled":            false,
		"telemetry.collector_endpoint": "localhost:4317",
		"telemetry.sampling_ratio":     1.0,
		"telemetry.service_name":       "odoosync",
		"telemetry.insecure":           true,
		"telemetry.metrics_enabled":    false,
		"telemetry.logs_enabled":       false,
		"telemetry.db_trace_enabled":   false,
		"telemetry.profiling_enabled":  false,
		"telemetry.profiling_address":  "",
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}

// Validate checks cross-field constraints
func (c *Config) Validate() error {
	if c.Odoo.BaseURL == "" || c.Odoo.Database == "" || c.Odoo.Login == "" || c.Odoo.Password == "" {
		return ErrOdooRequired
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("%w (%d > %d)", ErrInvalidPool, c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}
	if c.Sync.MaxRetries < 0 {
		return ErrInvalidRetries
	}
	if c.ActivityLog.RetentionDays <= 0 {
		return ErrInvalidRetention
	}
	if c.Storage.ArchiveEnabled && c.Storage.Bucket == "" {
		return ErrArchiveBucket
	}
	if c.Telemetry.SamplingRatio < 0 || c.Telemetry.SamplingRatio > 1 {
		return fmt.Errorf("%w, got %f", ErrInvalidSampling, c.Telemetry.SamplingRatio)
	}
	if c.App.Env == "production" && len(c.JWT.Secret) < 32 {
		return ErrJWTSecret
	}
	return nil
}

// DSN returns the postgres connection URL
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns host:port
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
