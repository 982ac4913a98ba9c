package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	HTTP      HTTPConfig
	Log       LogConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Billing   BillingConfig
	Store     StoreConfig
	Sync      SyncConfig
	Storage   StorageConfig
	Telemetry TelemetryConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	MaxBodySize    int64
	TrustedProxies []string

	// WebhookRateLimit is requests per second allowed per client IP on webhooks
	WebhookRateLimit float64
	WebhookRateBurst int
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
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
	// AutoMigrate applies the embedded migrations at startup
	AutoMigrate bool
}

// RedisConfig holds Redis connection settings.
// An empty Host disables Redis; locks and webhook dedup then stay in process.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	// Required refuses to start without Redis instead of falling back to memory
	Required bool
}

// Enabled reports whether a Redis host is configured
func (r RedisConfig) Enabled() bool {
	return r.Host != ""
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// JWTConfig holds JWT settings for operator endpoints
type JWTConfig struct {
	Secret string
	Issuer string
	// AccessTokenExpiration is the lifetime of tokens issued by cmd/server -issue-token
	AccessTokenExpiration time.Duration
}

// BillingConfig holds RepairShopr credentials and transport settings
type BillingConfig struct {
	BaseURL string
	APIKey  string
	// APIKeyEncrypted is base64(nonce || secretbox) of the API key
	APIKeyEncrypted string
	// Secret derives the key that decrypts APIKeyEncrypted
	Secret             string
	Timeout            time.Duration
	RateLimit          float64
	RateBurst          int
	BreakerFailures    uint32
	BreakerOpenTimeout time.Duration
}

// StoreConfig holds WooCommerce REST and webhook settings
type StoreConfig struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	WebhookSecret  string
	Timeout        time.Duration
}

// SyncConfig holds the invoice and payment sync options
type SyncConfig struct {
	InvoicePrefix               string
	EPFName                     string
	EPFProductID                string
	RoundingCorrectionProductID string
	TaxRateID                   string
	CustomerNotes               string
	InvoiceNote                 string
	Taxable                     bool
	VerifiedPaid                bool
	TechMarkedPaid              bool
	IsPaid                      bool
	GetSMS                      bool
	GetBilling                  bool
	GetMarketing                bool
	GetReports                  bool
	OptOut                      bool
	NoEmail                     bool
	AutoSyncInvoice             bool
	AutoSyncPayment             bool
	// PaymentMapping maps storefront payment method ids to billing method ids
	PaymentMapping map[string]int64
	// LockTTL bounds how long one order stays locked by a crashed holder
	LockTTL time.Duration
	// WebhookDedupTTL is how long a delivery id is remembered
	WebhookDedupTTL time.Duration
	// Workers and QueueSize size the async order-paid dispatcher
	Workers   int
	QueueSize int
	// RecordRetentionDays keeps the audit trail this many days; 0 keeps it forever
	RecordRetentionDays int
	// MaintenanceHour is the local hour the daily purge runs at
	MaintenanceHour int
}

// StorageConfig holds the S3 diagnostics archive settings
type StorageConfig struct {
	Enabled         bool
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
	MetricsInterval   time.Duration
	// LogsEnabled also ships zap records to the collector
	LogsEnabled bool
	// DBTracing adds a span per gorm statement
	DBTracing            bool
	DBLogFullSQL         bool
	DBSlowQueryThreshold time.Duration
}

// EnvPrefix is the prefix of environment overrides, e.g. INVOICESYNC_BILLING_API_KEY
const EnvPrefix = "INVOICESYNC"

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with INVOICESYNC_ prefix
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	cfg, _, err := LoadWithViper()
	return cfg, err
}

// LoadWithViper is Load that also returns the viper instance, for watching
func LoadWithViper() (*Config, *viper.Viper, error) {
	v, err := newViper()
	if err != nil {
		return nil, nil, err
	}
	cfg, err := FromViper(v)
	if err != nil {
		return nil, nil, err
	}
	return cfg, v, nil
}

// newViper prepares a viper instance with search paths, env binding and defaults
func newViper() (*viper.Viper, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/invoicesync")

	setSyncDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v, nil
}

// setSyncDefaults registers the sync defaults that cannot be expressed as
// zero values (booleans that default to true).
func setSyncDefaults(v *viper.Viper) {
	v.SetDefault("sync.epf_name", "Electronic Payment Fee")
	v.SetDefault("sync.epf_product_id", "9263351")
	v.SetDefault("sync.tax_rate_id", "40354")
	v.SetDefault("sync.customer_notes", "Created by WooCommerce")
	v.SetDefault("sync.invoice_note", "Order created from WooCommerce")
	v.SetDefault("sync.record_retention_days", 90)
	v.SetDefault("sync.maintenance_hour", 3)
	for _, key := range []string{
		"taxable", "verified_paid", "tech_marked_paid", "is_paid",
		"get_sms", "get_billing", "get_marketing", "get_reports",
	} {
		v.SetDefault("sync."+key, true)
	}
}

// FromViper builds, defaults and validates a Config from a viper instance
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:    v.GetDuration("http.read_timeout"),
			WriteTimeout:   v.GetDuration("http.write_timeout"),
			IdleTimeout:    v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes: v.GetInt("http.max_header_bytes"),
			MaxBodySize:    v.GetInt64("http.max_body_size"),
			TrustedProxies: v.GetStringSlice("http.trusted_proxies"),

			WebhookRateLimit: v.GetFloat64("http.webhook_rate_limit"),
			WebhookRateBurst: v.GetInt("http.webhook_rate_burst"),
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
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
			AutoMigrate:     v.GetBool("database.auto_migrate"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			Required: v.GetBool("redis.required"),
		},
		JWT: JWTConfig{
			Secret:                v.GetString("jwt.secret"),
			Issuer:                v.GetString("jwt.issuer"),
			AccessTokenExpiration: v.GetDuration("jwt.access_token_expiration"),
		},
		Billing: BillingConfig{
			BaseURL:            v.GetString("billing.base_url"),
			APIKey:             v.GetString("billing.api_key"),
			APIKeyEncrypted:    v.GetString("billing.api_key_encrypted"),
			Secret:             v.GetString("billing.secret"),
			Timeout:            v.GetDuration("billing.timeout"),
			RateLimit:          v.GetFloat64("billing.rate_limit"),
			RateBurst:          v.GetInt("billing.rate_burst"),
			BreakerFailures:    v.GetUint32("billing.breaker_failures"),
			BreakerOpenTimeout: v.GetDuration("billing.breaker_open_timeout"),
		},
		Store: StoreConfig{
			BaseURL:        v.GetString("store.base_url"),
			ConsumerKey:    v.GetString("store.consumer_key"),
			ConsumerSecret: v.GetString("store.consumer_secret"),
			WebhookSecret:  v.GetString("store.webhook_secret"),
			Timeout:        v.GetDuration("store.timeout"),
		},
		Sync: SyncConfig{
			InvoicePrefix:               v.GetString("sync.invoice_prefix"),
			EPFName:                     v.GetString("sync.epf_name"),
			EPFProductID:                v.GetString("sync.epf_product_id"),
			RoundingCorrectionProductID: v.GetString("sync.rounding_correction_product_id"),
			TaxRateID:                   v.GetString("sync.tax_rate_id"),
			CustomerNotes:               v.GetString("sync.customer_notes"),
			InvoiceNote:                 v.GetString("sync.invoice_note"),
			Taxable:                     v.GetBool("sync.taxable"),
			VerifiedPaid:                v.GetBool("sync.verified_paid"),
			TechMarkedPaid:              v.GetBool("sync.tech_marked_paid"),
			IsPaid:                      v.GetBool("sync.is_paid"),
			GetSMS:                      v.GetBool("sync.get_sms"),
			GetBilling:                  v.GetBool("sync.get_billing"),
			GetMarketing:                v.GetBool("sync.get_marketing"),
			GetReports:                  v.GetBool("sync.get_reports"),
			OptOut:                      v.GetBool("sync.opt_out"),
			NoEmail:                     v.GetBool("sync.no_email"),
			AutoSyncInvoice:             v.GetBool("sync.auto_sync_invoice"),
			AutoSyncPayment:             v.GetBool("sync.auto_sync_payment"),
			PaymentMapping:              paymentMapping(v),
			LockTTL:                     v.GetDuration("sync.lock_ttl"),
			WebhookDedupTTL:             v.GetDuration("sync.webhook_dedup_ttl"),
			Workers:                     v.GetInt("sync.workers"),
			QueueSize:                   v.GetInt("sync.queue_size"),
			RecordRetentionDays:         v.GetInt("sync.record_retention_days"),
			MaintenanceHour:             v.GetInt("sync.maintenance_hour"),
		},
		Storage: StorageConfig{
			Enabled:         v.GetBool("storage.enabled"),
			Bucket:          v.GetString("storage.bucket"),
			Region:          v.GetString("storage.region"),
			Endpoint:        v.GetString("storage.endpoint"),
			AccessKeyID:     v.GetString("storage.access_key_id"),
			SecretAccessKey: v.GetString("storage.secret_access_key"),
			UsePathStyle:    v.GetBool("storage.use_path_style"),
		},
		Telemetry: TelemetryConfig{
			Enabled:              v.GetBool("telemetry.enabled"),
			CollectorEndpoint:    v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:        v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:          v.GetString("telemetry.service_name"),
			Insecure:             v.GetBool("telemetry.insecure"),
			MetricsInterval:      v.GetDuration("telemetry.metrics_interval"),
			LogsEnabled:          v.GetBool("telemetry.logs_enabled"),
			DBTracing:            v.GetBool("telemetry.db_tracing"),
			DBLogFullSQL:         v.GetBool("telemetry.db_log_full_sql"),
			DBSlowQueryThreshold: v.GetDuration("telemetry.db_slow_query_threshold"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// paymentMapping reads sync.payment_mapping; entries that are not positive
// integers are dropped.
func paymentMapping(v *viper.Viper) map[string]int64 {
	raw := v.GetStringMap("sync.payment_mapping")
	out := make(map[string]int64, len(raw))
	for method := range raw {
		id := v.GetInt64("sync.payment_mapping." + method)
		if id > 0 {
			out[method] = id
		}
	}
	return out
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "invoicesync"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		// a sync makes several sequential billing calls
		cfg.HTTP.WriteTimeout = 2 * time.Minute
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 2 << 20 // 2MB
	}
	if cfg.HTTP.WebhookRateLimit == 0 {
		cfg.HTTP.WebhookRateLimit = 10
	}
	if cfg.HTTP.WebhookRateBurst == 0 {
		cfg.HTTP.WebhookRateBurst = 20
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
		cfg.Database.DBName = "invoicesync"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 2
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.JWT.Issuer == "" {
		cfg.JWT.Issuer = "invoicesync"
	}
	if cfg.JWT.AccessTokenExpiration == 0 {
		cfg.JWT.AccessTokenExpiration = 12 * time.Hour
	}
	if cfg.Billing.Timeout == 0 {
		cfg.Billing.Timeout = 30 * time.Second
	}
	if cfg.Billing.RateLimit == 0 {
		cfg.Billing.RateLimit = 3 // RepairShopr allows 180 requests per minute
	}
	if cfg.Billing.RateBurst == 0 {
		cfg.Billing.RateBurst = 5
	}
	if cfg.Billing.BreakerFailures == 0 {
		cfg.Billing.BreakerFailures = 5
	}
	if cfg.Billing.BreakerOpenTimeout == 0 {
		cfg.Billing.BreakerOpenTimeout = 30 * time.Second
	}
	if cfg.Store.Timeout == 0 {
		cfg.Store.Timeout = 30 * time.Second
	}
	if cfg.Sync.LockTTL == 0 {
		cfg.Sync.LockTTL = 2 * time.Minute
	}
	if cfg.Sync.WebhookDedupTTL == 0 {
		cfg.Sync.WebhookDedupTTL = 24 * time.Hour
	}
	if cfg.Sync.Workers == 0 {
		cfg.Sync.Workers = 4
	}
	if cfg.Sync.QueueSize == 0 {
		cfg.Sync.QueueSize = 256
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "invoicesync"
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = 60 * time.Second
	}
	if cfg.Telemetry.DBSlowQueryThreshold == 0 {
		cfg.Telemetry.DBSlowQueryThreshold = 200 * time.Millisecond
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}
	if (strings.TrimSpace(c.Sync.EPFName) == "") != (strings.TrimSpace(c.Sync.EPFProductID) == "") {
		return fmt.Errorf("sync.epf_name and sync.epf_product_id must both be set or both be empty")
	}
	if c.Billing.APIKeyEncrypted != "" && c.Billing.Secret == "" {
		return fmt.Errorf("billing.secret is required to decrypt billing.api_key_encrypted")
	}
	if c.Billing.RateLimit < 0 {
		return fmt.Errorf("billing.rate_limit cannot be negative")
	}
	if c.Sync.RecordRetentionDays < 0 {
		return fmt.Errorf("sync.record_retention_days cannot be negative")
	}
	if c.Sync.MaintenanceHour < 0 || c.Sync.MaintenanceHour > 23 {
		return fmt.Errorf("sync.maintenance_hour must be between 0 and 23")
	}
	if c.Redis.Required && !c.Redis.Enabled() {
		return fmt.Errorf("redis.host is required when redis.required is set")
	}
	if c.Storage.Enabled && c.Storage.Bucket == "" {
		return fmt.Errorf("storage.bucket is required when storage is enabled")
	}

	if c.App.Env == "production" {
		if len(c.JWT.Secret) < 32 {
			return fmt.Errorf("jwt.secret must be at least 32 characters in production")
		}
		if c.Store.WebhookSecret == "" {
			return fmt.Errorf("store.webhook_secret is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
	}

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
