package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	devAccessSecret  = "dev-access-secret"
	devRefreshSecret = "dev-refresh-secret"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	FrontendURL           string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// DeliveryMode selects how the refresh token travels between server and client.
type DeliveryMode string

const (
	// DeliveryCookie keeps the refresh token in a strict HttpOnly cookie.
	DeliveryCookie DeliveryMode = "cookie"
	// DeliveryBody returns and accepts the refresh token in JSON bodies.
	DeliveryBody DeliveryMode = "body"
)

// ParseDeliveryMode validates a delivery mode name.
func ParseDeliveryMode(raw string) (DeliveryMode, error) {
	switch mode := DeliveryMode(strings.ToLower(strings.TrimSpace(raw))); mode {
	case DeliveryCookie, DeliveryBody:
		return mode, nil
	default:
		return "", fmt.Errorf("unknown token delivery mode %q", raw)
	}
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	AccessSecret         string
	RefreshSecret        string
	BcryptCost           int
	Delivery             DeliveryMode
	CookieSecure         bool
	RotateRefresh        bool
	LoginMaxAttempts     int
	LoginWindowMinutes   int
	SweepIntervalMinutes int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	env := getEnv("APP_ENV", "development")
	delivery := DeliveryBody
	if strings.EqualFold(env, "production") {
		delivery = DeliveryCookie
	}
	if raw := os.Getenv("AUTH_TOKEN_DELIVERY"); raw != "" {
		if delivery, err = ParseDeliveryMode(raw); err != nil {
			return nil, fmt.Errorf("invalid AUTH_TOKEN_DELIVERY: %w", err)
		}
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "tasklist-service"),
			Env:                   env,
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "5000"),
			Version:               getEnv("APP_VERSION", "dev"),
			FrontendURL:           getEnv("FRONTEND_URL", "http://localhost:3000"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			AccessSecret:         getEnv("AUTH_ACCESS_SECRET", devAccessSecret),
			RefreshSecret:        getEnv("AUTH_REFRESH_SECRET", devRefreshSecret),
			BcryptCost:           getEnvAsInt("AUTH_BCRYPT_COST", 10),
			Delivery:             delivery,
			CookieSecure:         getEnvAsBool("AUTH_COOKIE_SECURE", true),
			RotateRefresh:        getEnvAsBool("AUTH_ROTATE_REFRESH", false),
			LoginMaxAttempts:     getEnvAsInt("AUTH_LOGIN_MAX_ATTEMPTS", 0),
			LoginWindowMinutes:   getEnvAsInt("AUTH_LOGIN_WINDOW_MINUTES", 15),
			SweepIntervalMinutes: getEnvAsInt("SESSION_SWEEP_INTERVAL_MINUTES", 0),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations that would weaken token compartmentalization.
func (c *Config) Validate() error {
	if c.Auth.AccessSecret == "" || c.Auth.RefreshSecret == "" {
		return errors.New("AUTH_ACCESS_SECRET and AUTH_REFRESH_SECRET are required")
	}
	if c.Auth.AccessSecret == c.Auth.RefreshSecret {
		return errors.New("AUTH_ACCESS_SECRET and AUTH_REFRESH_SECRET must differ")
	}
	if c.App.IsProduction() &&
		(c.Auth.AccessSecret == devAccessSecret || c.Auth.RefreshSecret == devRefreshSecret) {
		return errors.New("development token secrets are not allowed in production")
	}
	return nil
}

// IsProduction reports whether the service runs in a deployed environment.
func (a AppConfig) IsProduction() bool {
	return strings.EqualFold(a.Env, "production")
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// LoginWindow returns the window over which failed logins are counted.
func (a AuthConfig) LoginWindow() time.Duration {
	if a.LoginWindowMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(a.LoginWindowMinutes) * time.Minute
}

// SweepInterval returns how often expired refresh tokens are purged; zero disables the sweeper.
func (a AuthConfig) SweepInterval() time.Duration {
	if a.SweepIntervalMinutes <= 0 {
		return 0
	}
	return time.Duration(a.SweepIntervalMinutes) * time.Minute
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
