package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "scrumix.yaml"

// DefaultEnvFile is the dotenv file read before environment overlays.
const DefaultEnvFile = ".env"

// Load returns a Config using the hierarchy: defaults < YAML < .env < ENV.
// Both files are optional; missing files are not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < .env < ENV.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	if err := loadDotEnv(DefaultEnvFile); err != nil {
		return nil, fmt.Errorf("config dotenv: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadDotEnv exports variables from a dotenv file into the process
// environment. Variables that are already set keep their value.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err != nil && errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "SCRUMIX_PORT")
	setString(&cfg.Server.CORSOrigin, "SCRUMIX_CORS_ORIGIN")
	setInt64(&cfg.Server.BodyLimit, "SCRUMIX_BODY_LIMIT")
	setDuration(&cfg.Server.RequestTimeout, "SCRUMIX_REQUEST_TIMEOUT")
	setString(&cfg.Store.Backend, "SCRUMIX_STORE")

	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "SCRUMIX_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "SCRUMIX_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "SCRUMIX_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "SCRUMIX_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "SCRUMIX_PG_HEALTH_CHECK")
	setBool(&cfg.Postgres.AutoMigrate, "SCRUMIX_PG_AUTO_MIGRATE")

	setBool(&cfg.NATS.Enabled, "SCRUMIX_NATS_ENABLED")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.NATS.Stream, "SCRUMIX_NATS_STREAM")

	// Auth
	setBool(&cfg.Auth.Enabled, "SCRUMIX_AUTH_ENABLED")
	setString(&cfg.Auth.JWTSecret, "SECRET_KEY")
	setString(&cfg.Auth.Issuer, "SCRUMIX_JWT_ISSUER")
	setString(&cfg.Auth.Audience, "SCRUMIX_JWT_AUDIENCE")
	setDuration(&cfg.Auth.AccessTokenExpiry, "SCRUMIX_ACCESS_TOKEN_EXPIRY")
	setDuration(&cfg.Auth.RefreshTokenExpiry, "SCRUMIX_REFRESH_TOKEN_EXPIRY")
	setInt(&cfg.Auth.BcryptCost, "SCRUMIX_BCRYPT_COST")
	setString(&cfg.Auth.DefaultAdminEmail, "SCRUMIX_ADMIN_EMAIL")
	setString(&cfg.Auth.DefaultAdminUsername, "SCRUMIX_ADMIN_USERNAME")
	setString(&cfg.Auth.DefaultAdminPass, "SCRUMIX_ADMIN_PASSWORD")
	setDuration(&cfg.Auth.TokenPurgeInterval, "SCRUMIX_TOKEN_PURGE_INTERVAL")
	setBool(&cfg.Auth.Cookie.Secure, "SCRUMIX_COOKIE_SECURE")
	setString(&cfg.Auth.Cookie.SameSite, "SCRUMIX_COOKIE_SAMESITE")
	setString(&cfg.Auth.Cookie.Domain, "SCRUMIX_COOKIE_DOMAIN")

	setString(&cfg.Logging.Level, "SCRUMIX_LOG_LEVEL")
	setString(&cfg.Logging.Service, "SCRUMIX_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "SCRUMIX_LOG_ASYNC")

	// Cache
	setInt64(&cfg.Cache.L1MaxSizeMB, "SCRUMIX_CACHE_L1_SIZE_MB")
	setString(&cfg.Cache.L2Bucket, "SCRUMIX_CACHE_L2_BUCKET")
	setDuration(&cfg.Cache.L2TTL, "SCRUMIX_CACHE_L2_TTL")

	setInt(&cfg.Breaker.MaxFailures, "SCRUMIX_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "SCRUMIX_BREAKER_TIMEOUT")

	setFloat64(&cfg.Rate.RequestsPerSecond, "SCRUMIX_RATE_RPS")
	setInt(&cfg.Rate.Burst, "SCRUMIX_RATE_BURST")
	setFloat64(&cfg.Rate.AuthRequestsPerSecond, "SCRUMIX_RATE_AUTH_RPS")
	setInt(&cfg.Rate.AuthBurst, "SCRUMIX_RATE_AUTH_BURST")
	setDuration(&cfg.Rate.CleanupInterval, "SCRUMIX_RATE_CLEANUP_INTERVAL")
	setDuration(&cfg.Rate.MaxIdleTime, "SCRUMIX_RATE_MAX_IDLE_TIME")

	setDuration(&cfg.Idempotency.TTL, "SCRUMIX_IDEMPOTENCY_TTL")

	// OpenTelemetry
	setBool(&cfg.OTEL.Enabled, "SCRUMIX_OTEL_ENABLED")
	setString(&cfg.OTEL.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setString(&cfg.OTEL.ServiceName, "OTEL_SERVICE_NAME")
	setBool(&cfg.OTEL.Insecure, "SCRUMIX_OTEL_INSECURE")
	setFloat64(&cfg.OTEL.SampleRate, "SCRUMIX_OTEL_SAMPLE_RATE")

	setInt(&cfg.Velocity.HistoryWindow, "SCRUMIX_VELOCITY_WINDOW")
	setDuration(&cfg.Velocity.CacheTTL, "SCRUMIX_VELOCITY_CACHE_TTL")

	setDuration(&cfg.Notifications.PurgeInterval, "SCRUMIX_NOTIFICATION_PURGE_INTERVAL")
	setDuration(&cfg.Notifications.Retention, "SCRUMIX_NOTIFICATION_RETENTION")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	switch cfg.Store.Backend {
	case "postgres":
		if cfg.Postgres.DSN == "" {
			return errors.New("postgres.dsn is required")
		}
		if cfg.Postgres.MaxConns < 1 {
			return errors.New("postgres.max_conns must be >= 1")
		}
	case "memory":
	default:
		return fmt.Errorf("store.backend must be postgres or memory, got %q", cfg.Store.Backend)
	}
	if cfg.NATS.Enabled && cfg.NATS.URL == "" {
		return errors.New("nats.url is required when nats is enabled")
	}
	if cfg.Auth.Enabled && len(cfg.Auth.JWTSecret) < 32 {
		return errors.New("auth.jwt_secret must be at least 32 characters")
	}
	if cfg.Auth.BcryptCost < 4 || cfg.Auth.BcryptCost > 31 {
		return errors.New("auth.bcrypt_cost must be between 4 and 31")
	}
	switch cfg.Auth.Cookie.SameSite {
	case "lax", "strict", "none":
	default:
		return fmt.Errorf("auth.cookie.same_site must be lax, strict or none, got %q", cfg.Auth.Cookie.SameSite)
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Rate.Burst < 1 || cfg.Rate.AuthBurst < 1 {
		return errors.New("rate.burst and rate.auth_burst must be >= 1")
	}
	if cfg.Auth.TokenPurgeInterval <= 0 || cfg.Notifications.PurgeInterval <= 0 || cfg.Rate.CleanupInterval <= 0 {
		return errors.New("purge and cleanup intervals must be positive")
	}
	if cfg.Velocity.HistoryWindow < 1 {
		return errors.New("velocity.history_window must be >= 1")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
