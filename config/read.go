package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/Alijeyrad/rookie_backend/pkg/constants"
)

var GlobalConf *Config

func ReadConfig(configPath string) (*Config, error) {
	// A local .env is optional; real environment variables win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName(constants.ConfigName)
	v.SetConfigType(constants.ConfigFormat)
	v.AddConfigPath(configPath)

	// Allow env vars to override config values.
	// e.g. ROOKIE_DATABASE_HOST overrides database.host
	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read the config file (optional in Docker environments)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if os.Getenv(constants.EnvPrefix+"_DATABASE_HOST") == "" {
			return nil, fmt.Errorf("config file not found in %q and %s_DATABASE_HOST is unset", configPath, constants.EnvPrefix)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func MustReadConfig(path string) *Config {
	config, err := ReadConfig(path)
	if err != nil {
		panic(err)
	}

	GlobalConf = config

	return config
}

// setDefaults registers every key so AutomaticEnv can resolve keys that are
// absent from the config file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "AI Rookie")
	v.SetDefault("app.base_url", "http://localhost:3000")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.timeout_seconds", 30)
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.rate_limit.enabled", true)
	v.SetDefault("server.rate_limit.requests_per_window", 60)
	v.SetDefault("server.rate_limit.window_seconds", 30)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.pool.max_open_conns", 25)
	v.SetDefault("database.pool.max_idle_conns", 5)
	v.SetDefault("database.pool.conn_max_lifetime_minutes", 5)
	v.SetDefault("database.logging.slow_query_threshold_ms", 200)

	v.SetDefault("redis.addr", "localhost:6379")

	v.SetDefault("identity.leeway_seconds", 30)
	v.SetDefault("identity.timeout_seconds", 10)

	v.SetDefault("stripe.currency", constants.DefaultCurrency)
	v.SetDefault("stripe.max_retries", 2)
	v.SetDefault("stripe.timeout_seconds", 30)

	v.SetDefault("zoom.api_base_url", "https://api.zoom.us/v2")
	v.SetDefault("zoom.token_url", "https://zoom.us/oauth/token")
	v.SetDefault("zoom.timezone", constants.DefaultTimezone)
	v.SetDefault("zoom.timeout_seconds", 15)

	v.SetDefault("booking.pending_ttl_minutes", 30)
	v.SetDefault("booking.authorization_ttl_hours", 24*7)
	v.SetDefault("booking.learner_refund_window_hours", 24)
	v.SetDefault("booking.join_lead_minutes", 5)
	v.SetDefault("booking.recurring_horizon_weeks", 8)
	v.SetDefault("booking.reminder_offsets_minutes", []int{24 * 60, 60, 5})
	v.SetDefault("booking.default_currency", constants.DefaultCurrency)
	v.SetDefault("booking.default_timezone", constants.DefaultTimezone)

	v.SetDefault("jobs.sweep_schedule", "*/5 * * * *")
	v.SetDefault("jobs.reminders_schedule", "* * * * *")
	v.SetDefault("jobs.complete_schedule", "*/5 * * * *")
	v.SetDefault("jobs.lock_ttl_seconds", 240)

	v.SetDefault("nats.url", "nats://localhost:4222")

	v.SetDefault("observability.service_name", "rookie_backend")
	v.SetDefault("observability.metrics.path", "/metrics")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output.stdout", true)
}
