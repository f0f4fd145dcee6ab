package config

import (
	"errors"
	"fmt"
	"time"
)

type Config struct {
	App           AppConfig           `mapstructure:"app"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Server        ServerConfig        `mapstructure:"server"`
	Identity      IdentityConfig      `mapstructure:"identity"`
	Email         EmailConfig         `mapstructure:"email"`
	Stripe        StripeConfig        `mapstructure:"stripe"`
	Zoom          ZoomConfig          `mapstructure:"zoom"`
	Booking       BookingConfig       `mapstructure:"booking"`
	Jobs          JobsConfig          `mapstructure:"jobs"`
	Nats          NatsConfig          `mapstructure:"nats"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Logging       LoggingConfig       `mapstructure:"logging"`
}

type AppConfig struct {
	Name    string `mapstructure:"name"`
	BaseURL string `mapstructure:"base_url"`
	// EncryptionKey is a 32-byte hex string used for AES-256-GCM encryption
	// of meeting host links.
	EncryptionKey string `mapstructure:"encryption_key"`
}

type NatsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
}

type DatabaseConfig struct {
	Host       string                  `mapstructure:"host"`
	Port       int                     `mapstructure:"port"`
	User       string                  `mapstructure:"user"`
	Password   string                  `mapstructure:"password"`
	DBName     string                  `mapstructure:"dbname"`
	SSLMode    string                  `mapstructure:"sslmode"`
	Pool       DatabasePoolConfig      `mapstructure:"pool"`
	Migrations DatabaseMigrationConfig `mapstructure:"migrations"`
	Logging    DatabaseLoggingConfig   `mapstructure:"logging"`
}

type DatabasePoolConfig struct {
	MaxOpenConns       int `mapstructure:"max_open_conns"`
	MaxIdleConns       int `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeMin int `mapstructure:"conn_max_lifetime_minutes"`
}

type DatabaseMigrationConfig struct {
	AutoMigrate bool `mapstructure:"auto_migrate"`
}

type DatabaseLoggingConfig struct {
	Enabled              bool `mapstructure:"enabled"`
	SlowQueryThresholdMs int  `mapstructure:"slow_query_threshold_ms"`
}

type RedisConfig struct {
	Addr                string `mapstructure:"addr"`
	DB                  int    `mapstructure:"db"`
	Username            string `mapstructure:"username"`
	Password            string `mapstructure:"password"`
	PoolSize            int    `mapstructure:"pool_size"`
	MinIdleConns        int    `mapstructure:"min_idle_conns"`
	DialTimeoutSeconds  int    `mapstructure:"dial_timeout_seconds"`
	ReadTimeoutSeconds  int    `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `mapstructure:"write_timeout_seconds"`
}

type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerWindow int  `mapstructure:"requests_per_window"`
	WindowSeconds     int  `mapstructure:"window_seconds"`
}

type ServerConfig struct {
	Port           int             `mapstructure:"port"`
	TimeoutSeconds int             `mapstructure:"timeout_seconds"`
	Environment    string          `mapstructure:"environment"`
	Databases      []string        `mapstructure:"databases"`
	CORS           CORSConfig      `mapstructure:"cors"`
	RateLimit      RateLimitConfig `mapstructure:"rate_limit"`
}

type CORSConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	AllowOrigins     []string `mapstructure:"allow_origins"`
	AllowHeaders     []string `mapstructure:"allow_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAgeSeconds    int      `mapstructure:"max_age_seconds"`
}

// IdentityConfig describes how bearer tokens issued by the external
// identity provider are verified. ProviderURL enables the password
// sign-up and sign-in proxy; leave it empty when clients talk to the
// provider directly.
type IdentityConfig struct {
	JWTSecret      string `mapstructure:"jwt_secret"`
	Issuer         string `mapstructure:"issuer"`
	Audience       string `mapstructure:"audience"`
	WebhookSecret  string `mapstructure:"webhook_secret"`
	LeewaySeconds  int    `mapstructure:"leeway_seconds"`
	ProviderURL    string `mapstructure:"provider_url"`
	APIKey         string `mapstructure:"api_key"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type EmailConfig struct {
	Enabled bool       `mapstructure:"enabled"`
	From    string     `mapstructure:"from"`
	SMTP    SMTPConfig `mapstructure:"smtp"`
}

type SMTPConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Username       string `mapstructure:"username"`
	Password       string `mapstructure:"password"`
	UseTLS         bool   `mapstructure:"use_tls"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type StripeConfig struct {
	SecretKey      string `mapstructure:"secret_key"`
	WebhookSecret  string `mapstructure:"webhook_secret"`
	Currency       string `mapstructure:"currency"`
	APIBaseURL     string `mapstructure:"api_base_url"` // override for stripe-mock
	MaxRetries     int64  `mapstructure:"max_retries"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type ZoomConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	AccountID      string `mapstructure:"account_id"`
	ClientID       string `mapstructure:"client_id"`
	ClientSecret   string `mapstructure:"client_secret"`
	APIBaseURL     string `mapstructure:"api_base_url"`
	TokenURL       string `mapstructure:"token_url"`
	Timezone       string `mapstructure:"timezone"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type BookingConfig struct {
	PendingTTLMinutes        int    `mapstructure:"pending_ttl_minutes"`
	AuthorizationTTLHours    int    `mapstructure:"authorization_ttl_hours"`
	LearnerRefundWindowHours int    `mapstructure:"learner_refund_window_hours"`
	JoinLeadMinutes          int    `mapstructure:"join_lead_minutes"`
	RecurringHorizonWeeks    int    `mapstructure:"recurring_horizon_weeks"`
	ReminderOffsetsMinutes   []int  `mapstructure:"reminder_offsets_minutes"`
	DefaultCurrency          string `mapstructure:"default_currency"`
	DefaultTimezone          string `mapstructure:"default_timezone"`
}

func (b BookingConfig) PendingTTL() time.Duration {
	return time.Duration(b.PendingTTLMinutes) * time.Minute
}

func (b BookingConfig) AuthorizationTTL() time.Duration {
	return time.Duration(b.AuthorizationTTLHours) * time.Hour
}

func (b BookingConfig) LearnerRefundWindow() time.Duration {
	return time.Duration(b.LearnerRefundWindowHours) * time.Hour
}

func (b BookingConfig) JoinLead() time.Duration {
	return time.Duration(b.JoinLeadMinutes) * time.Minute
}

func (b BookingConfig) ReminderOffsets() []time.Duration {
	out := make([]time.Duration, 0, len(b.ReminderOffsetsMinutes))
	for _, m := range b.ReminderOffsetsMinutes {
		out = append(out, time.Duration(m)*time.Minute)
	}
	return out
}

type JobsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Cron specs, robfig/cron format with optional seconds field disabled.
	SweepSchedule     string `mapstructure:"sweep_schedule"`
	RemindersSchedule string `mapstructure:"reminders_schedule"`
	CompleteSchedule  string `mapstructure:"complete_schedule"`
	LockTTLSeconds    int    `mapstructure:"lock_ttl_seconds"`
}

type ObservabilityConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	ServiceName    string        `mapstructure:"service_name"`
	ServiceVersion string        `mapstructure:"service_version"`
	Tracing        TracingConfig `mapstructure:"tracing"`
	Metrics        MetricsConfig `mapstructure:"metrics"`
}

type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure"`
	SamplingRate float64 `mapstructure:"sampling_rate"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type LoggingConfig struct {
	Level  string       `mapstructure:"level"`  // debug, info, warn, error
	Format string       `mapstructure:"format"` // text, json
	Output OutputConfig `mapstructure:"output"`
}

type OutputConfig struct {
	Stdout bool          `mapstructure:"stdout"`
	File   FileLogConfig `mapstructure:"file"`
	Loki   LokiConfig    `mapstructure:"loki"`
}

type FileLogConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Path       string `mapstructure:"path"`        // e.g. "logs/app.log"
	MaxSizeMB  int    `mapstructure:"max_size_mb"` // rotate after N MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

type LokiConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"` // e.g. "http://localhost:3100"
	TenantID string `mapstructure:"tenant_id"`
	Username string `mapstructure:"username"` // for Grafana Cloud basic auth
	Password string `mapstructure:"password"`
}

func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Booking.PendingTTLMinutes <= 0 {
		errs = append(errs, errors.New("booking.pending_ttl_minutes must be positive"))
	}
	if c.Booking.AuthorizationTTLHours <= 0 {
		errs = append(errs, errors.New("booking.authorization_ttl_hours must be positive"))
	}
	for _, m := range c.Booking.ReminderOffsetsMinutes {
		if m <= 0 {
			errs = append(errs, fmt.Errorf("booking.reminder_offsets_minutes contains non-positive value %d", m))
		}
	}
	if _, err := time.LoadLocation(c.Booking.DefaultTimezone); err != nil {
		errs = append(errs, fmt.Errorf("booking.default_timezone: %w", err))
	}
	if c.Server.Environment == "production" {
		if c.Identity.JWTSecret == "" {
			errs = append(errs, errors.New("identity.jwt_secret is required in production"))
		}
		if c.Stripe.SecretKey == "" || c.Stripe.WebhookSecret == "" {
			errs = append(errs, errors.New("stripe.secret_key and stripe.webhook_secret are required in production"))
		}
	}

	return errors.Join(errs...)
}
