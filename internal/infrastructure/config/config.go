package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App        AppConfig
	HTTP       HTTPConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Log        LogConfig
	Scheduler  SchedulerConfig
	RateLimit  RateLimitConfig
	Alert      AlertConfig
	Shopee     ShopeeConfig
	TikTokShop TikTokShopConfig
	Telemetry  TelemetryConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
	LogLevel        string
	SlowQueryThresh time.Duration
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxHeaderBytes  int
	MaxBodySize     int64
	TrustedProxies  []string
}

// SchedulerConfig holds the sync scheduler configuration
type SchedulerConfig struct {
	Enabled           bool
	TickInterval      time.Duration
	MaxConcurrentJobs int
	QueueSize         int
	JobTimeout        time.Duration
	MaxRetries        int
	RetryBaseDelay    time.Duration
	RetryMaxDelay     time.Duration
	ChunkSize         int
	ChunkPause        time.Duration
	DueBatchSize      int
	OrderLookback     time.Duration
}

// Rate window store backends
const (
	RateLimitBackendMemory = "memory"
	RateLimitBackendRedis  = "redis"
)

// RateLimitConfig holds the platform call rate limiter configuration
type RateLimitConfig struct {
	Backend           string // memory or redis
	Window            time.Duration
	ShopeeCeiling     int
	TikTokShopCeiling int
	DefaultCeiling    int
	KeyPrefix         string
}

// AlertConfig holds notification settings
type AlertConfig struct {
	HighValueThreshold       decimal.Decimal
	NotificationTTL          time.Duration
	DefaultLowStockThreshold int
}

// ShopeeConfig holds Shopee Open Platform partner settings
type ShopeeConfig struct {
	Enabled        bool
	PartnerID      int64
	PartnerKey     string
	APIBaseURL     string
	TimeoutSeconds int
	PageSize       int
}

// TikTokShopConfig holds TikTok Shop Partner API settings
type TikTokShopConfig struct {
	Enabled        bool
	AppKey         string
	AppSecret      string
	APIBaseURL     string
	TimeoutSeconds int
	PageSize       int
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled               bool    // Whether to enable OpenTelemetry
	CollectorEndpoint     string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio         float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName           string  // Service name for traces and metrics
	Insecure              bool    // Use insecure (non-TLS) connection (development only)
	MetricsExportInterval time.Duration
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with SHOPSYNC_ prefix (e.g., SHOPSYNC_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	return loadFrom(v)
}

// loadFrom builds the configuration from a prepared viper instance
func loadFrom(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix("SHOPSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	highValue := decimal.Zero
	if raw := v.GetString("alert.high_value_threshold"); raw != "" {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("alert.high_value_threshold: %w", err)
		}
		highValue = d
	}

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:     v.GetDuration("http.read_timeout"),
			WriteTimeout:    v.GetDuration("http.write_timeout"),
			IdleTimeout:     v.GetDuration("http.idle_timeout"),
			ShutdownTimeout: v.GetDuration("http.shutdown_timeout"),
			MaxHeaderBytes:  v.GetInt("http.max_header_bytes"),
			MaxBodySize:     v.GetInt64("http.max_body_size"),
			TrustedProxies:  v.GetStringSlice("http.trusted_proxies"),
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
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
			LogLevel:        v.GetString("database.log_level"),
			SlowQueryThresh: v.GetDuration("database.slow_query_threshold"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Scheduler: SchedulerConfig{
			Enabled:           !v.IsSet("scheduler.enabled") || v.GetBool("scheduler.enabled"),
			TickInterval:      v.GetDuration("scheduler.tick_interval"),
			MaxConcurrentJobs: v.GetInt("scheduler.max_concurrent_jobs"),
			QueueSize:         v.GetInt("scheduler.queue_size"),
			JobTimeout:        v.GetDuration("scheduler.job_timeout"),
			MaxRetries:        v.GetInt("scheduler.max_retries"),
			RetryBaseDelay:    v.GetDuration("scheduler.retry_base_delay"),
			RetryMaxDelay:     v.GetDuration("scheduler.retry_max_delay"),
			ChunkSize:         v.GetInt("scheduler.chunk_size"),
			ChunkPause:        v.GetDuration("scheduler.chunk_pause"),
			DueBatchSize:      v.GetInt("scheduler.due_batch_size"),
			OrderLookback:     v.GetDuration("scheduler.order_lookback"),
		},
		RateLimit: RateLimitConfig{
			Backend:           v.GetString("rate_limit.backend"),
			Window:            v.GetDuration("rate_limit.window"),
			ShopeeCeiling:     v.GetInt("rate_limit.shopee_ceiling"),
			TikTokShopCeiling: v.GetInt("rate_limit.tiktokshop_ceiling"),
			DefaultCeiling:    v.GetInt("rate_limit.default_ceiling"),
			KeyPrefix:         v.GetString("rate_limit.key_prefix"),
		},
		Alert: AlertConfig{
			HighValueThreshold:       highValue,
			NotificationTTL:          v.GetDuration("alert.notification_ttl"),
			DefaultLowStockThreshold: v.GetInt("alert.default_low_stock_threshold"),
		},
		Shopee: ShopeeConfig{
			Enabled:        v.GetBool("shopee.enabled"),
			PartnerID:      v.GetInt64("shopee.partner_id"),
			PartnerKey:     v.GetString("shopee.partner_key"),
			APIBaseURL:     v.GetString("shopee.api_base_url"),
			TimeoutSeconds: v.GetInt("shopee.timeout_seconds"),
			PageSize:       v.GetInt("shopee.page_size"),
		},
		TikTokShop: TikTokShopConfig{
			Enabled:        v.GetBool("tiktokshop.enabled"),
			AppKey:         v.GetString("tiktokshop.app_key"),
			AppSecret:      v.GetString("tiktokshop.app_secret"),
			APIBaseURL:     v.GetString("tiktokshop.api_base_url"),
			TimeoutSeconds: v.GetInt("tiktokshop.timeout_seconds"),
			PageSize:       v.GetInt("tiktokshop.page_size"),
		},
		Telemetry: TelemetryConfig{
			Enabled:               v.GetBool("telemetry.enabled"),
			CollectorEndpoint:     v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:         v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:           v.GetString("telemetry.service_name"),
			Insecure:              v.GetBool("telemetry.insecure"),
			MetricsExportInterval: v.GetDuration("telemetry.metrics_export_interval"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "shopsync-backend"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "shopsync"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Database.LogLevel == "" {
		cfg.Database.LogLevel = "warn"
	}
	if cfg.Database.SlowQueryThresh == 0 {
		cfg.Database.SlowQueryThresh = 200 * time.Millisecond
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.ShutdownTimeout == 0 {
		cfg.HTTP.ShutdownTimeout = 30 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20 // 1MB
	}

	// Scheduler defaults
	if cfg.Scheduler.TickInterval == 0 {
		cfg.Scheduler.TickInterval = time.Minute
	}
	if cfg.Scheduler.MaxConcurrentJobs == 0 {
		cfg.Scheduler.MaxConcurrentJobs = 5
	}
	if cfg.Scheduler.QueueSize == 0 {
		cfg.Scheduler.QueueSize = 100
	}
	if cfg.Scheduler.JobTimeout == 0 {
		cfg.Scheduler.JobTimeout = 15 * time.Minute
	}
	if cfg.Scheduler.MaxRetries == 0 {
		cfg.Scheduler.MaxRetries = 3
	}
	if cfg.Scheduler.RetryBaseDelay == 0 {
		cfg.Scheduler.RetryBaseDelay = 5 * time.Minute
	}
	if cfg.Scheduler.RetryMaxDelay == 0 {
		cfg.Scheduler.RetryMaxDelay = time.Hour
	}
	if cfg.Scheduler.ChunkSize == 0 {
		cfg.Scheduler.ChunkSize = 10
	}
	if cfg.Scheduler.ChunkPause == 0 {
		cfg.Scheduler.ChunkPause = time.Second
	}
	if cfg.Scheduler.DueBatchSize == 0 {
		cfg.Scheduler.DueBatchSize = 100
	}
	if cfg.Scheduler.OrderLookback == 0 {
		cfg.Scheduler.OrderLookback = 24 * time.Hour
	}

	// Rate limit defaults: Shopee 100/min, TikTok Shop 60/min
	if cfg.RateLimit.Backend == "" {
		cfg.RateLimit.Backend = RateLimitBackendMemory
	}
	if cfg.RateLimit.Window == 0 {
		cfg.RateLimit.Window = time.Minute
	}
	if cfg.RateLimit.ShopeeCeiling == 0 {
		cfg.RateLimit.ShopeeCeiling = 100
	}
	if cfg.RateLimit.TikTokShopCeiling == 0 {
		cfg.RateLimit.TikTokShopCeiling = 60
	}
	if cfg.RateLimit.DefaultCeiling == 0 {
		cfg.RateLimit.DefaultCeiling = 60
	}
	if cfg.RateLimit.KeyPrefix == "" {
		cfg.RateLimit.KeyPrefix = "shopsync:ratelimit:"
	}

	// Alert defaults
	if cfg.Alert.HighValueThreshold.IsZero() {
		cfg.Alert.HighValueThreshold = decimal.NewFromInt(1000)
	}
	if cfg.Alert.NotificationTTL == 0 {
		cfg.Alert.NotificationTTL = 7 * 24 * time.Hour
	}
	if cfg.Alert.DefaultLowStockThreshold == 0 {
		cfg.Alert.DefaultLowStockThreshold = 10
	}

	// Platform defaults are left to the adapter configs

	// Telemetry defaults
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317" // Default gRPC endpoint
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0 // 100% in development
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "shopsync-backend"
	}
	if cfg.Telemetry.MetricsExportInterval == 0 {
		cfg.Telemetry.MetricsExportInterval = 60 * time.Second
	}
	// Note: Insecure defaults to false for safety (TLS enabled by default)
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	// Validate connection pool settings
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.Scheduler.MaxRetries < 0 {
		return fmt.Errorf("scheduler.max_retries cannot be negative")
	}
	if c.Scheduler.MaxConcurrentJobs < 0 {
		return fmt.Errorf("scheduler.max_concurrent_jobs cannot be negative")
	}

	switch c.RateLimit.Backend {
	case RateLimitBackendMemory, RateLimitBackendRedis:
	default:
		return fmt.Errorf("rate_limit.backend must be %q or %q, got %q",
			RateLimitBackendMemory, RateLimitBackendRedis, c.RateLimit.Backend)
	}
	if c.RateLimit.ShopeeCeiling < 0 || c.RateLimit.TikTokShopCeiling < 0 || c.RateLimit.DefaultCeiling < 0 {
		return fmt.Errorf("rate_limit ceilings cannot be negative")
	}

	if c.Alert.HighValueThreshold.IsNegative() {
		return fmt.Errorf("alert.high_value_threshold cannot be negative")
	}
	if c.Alert.DefaultLowStockThreshold < 0 {
		return fmt.Errorf("alert.default_low_stock_threshold cannot be negative")
	}

	if c.Shopee.Enabled && (c.Shopee.PartnerID <= 0 || c.Shopee.PartnerKey == "") {
		return fmt.Errorf("shopee.partner_id and shopee.partner_key are required when shopee is enabled")
	}
	if c.TikTokShop.Enabled && (c.TikTokShop.AppKey == "" || c.TikTokShop.AppSecret == "") {
		return fmt.Errorf("tiktokshop.app_key and tiktokshop.app_secret are required when tiktokshop is enabled")
	}

	// Production-specific validations
	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
	}

	// Validate telemetry configuration (all environments)
	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
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
