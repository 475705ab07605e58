package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const defaultJWTSecret = "change-me-jwt-secret"

// Config holds all configuration for the application
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	DocStore DocStoreConfig `mapstructure:"docstore"`
	Realtime RealtimeConfig `mapstructure:"realtime"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Logger   LoggerConfig   `mapstructure:"logger"`
	Security SecurityConfig `mapstructure:"security"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// AppConfig holds application-specific configuration
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
	Timezone    string `mapstructure:"timezone"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	Host           string        `mapstructure:"host"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	PublicURL      string        `mapstructure:"public_url"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Name            string        `mapstructure:"name"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// DocStoreConfig selects the document store backend
type DocStoreConfig struct {
	Driver string `mapstructure:"driver"`
}

// RealtimeConfig selects the change feed that drives live subscriptions
type RealtimeConfig struct {
	Driver  string `mapstructure:"driver"`
	Channel string `mapstructure:"channel"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig selects and configures the identity provider
type AuthConfig struct {
	Provider string         `mapstructure:"provider"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Firebase FirebaseConfig `mapstructure:"firebase"`
	Google   GoogleConfig   `mapstructure:"google"`
}

// JWTConfig holds JWT configuration for the local identity provider
type JWTConfig struct {
	Secret         string        `mapstructure:"secret"`
	ExpiresIn      time.Duration `mapstructure:"expires_in"`
	ResetExpiresIn time.Duration `mapstructure:"reset_expires_in"`
	Issuer         string        `mapstructure:"issuer"`
}

// FirebaseConfig holds Identity Toolkit relying-party configuration
type FirebaseConfig struct {
	APIKey   string `mapstructure:"api_key"`
	Endpoint string `mapstructure:"endpoint"`
}

// GoogleConfig holds OAuth2 client configuration for Google sign-in
type GoogleConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURL  string `mapstructure:"redirect_url"`
}

// Enabled reports whether Google sign-in is configured
func (cfg *GoogleConfig) Enabled() bool {
	return cfg.ClientID != "" && cfg.ClientSecret != ""
}

// LoggerConfig holds logging configuration
type LoggerConfig struct {
	// Level "debug" also prints the local provider's password reset codes; keep it at info or above outside development.
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	Filename string `mapstructure:"filename"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	CORSAllowedOrigins string        `mapstructure:"cors_allowed_origins"`
	RateLimitRequests  int           `mapstructure:"rate_limit_requests"`
	RateLimitWindow    time.Duration `mapstructure:"rate_limit_window"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Load loads configuration from defaults, an optional .env file and the environment
func Load() (*Config, error) {
	// Load .env file if it exists (ignore errors)
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)
	if err := bindEnvVars(v); err != nil {
		return nil, fmt.Errorf("failed to bind environment: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "Tracker")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.debug", false)
	v.SetDefault("app.timezone", "Local")

	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "0s") // streams stay open
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.request_timeout", "30s")
	v.SetDefault("server.public_url", "http://localhost:8080")

	// Database defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "tracker")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.path", "tracker.db")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime", "5m")
	v.SetDefault("database.conn_max_idle_time", "30s")

	// Document store and realtime defaults
	v.SetDefault("docstore.driver", "memory")
	v.SetDefault("realtime.driver", "local")
	v.SetDefault("realtime.channel", "tracker_changes")

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// Auth defaults
	v.SetDefault("auth.provider", "local")
	v.SetDefault("auth.jwt.secret", defaultJWTSecret)
	v.SetDefault("auth.jwt.expires_in", "1h")
	v.SetDefault("auth.jwt.reset_expires_in", "30m")
	v.SetDefault("auth.jwt.issuer", "tracker-api")
	v.SetDefault("auth.firebase.endpoint", "https://www.googleapis.com/identitytoolkit/v3/relyingparty/")
	v.SetDefault("auth.firebase.api_key", "")
	v.SetDefault("auth.google.client_id", "")
	v.SetDefault("auth.google.client_secret", "")
	v.SetDefault("auth.google.redirect_url", "http://localhost:8080/api/v1/auth/google/callback")

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.output", "stdout")
	v.SetDefault("logger.filename", "")

	// Security defaults
	v.SetDefault("security.cors_allowed_origins", "*")
	v.SetDefault("security.rate_limit_requests", 100)
	v.SetDefault("security.rate_limit_window", "1m")

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
}

func bindEnvVars(v *viper.Viper) error {
	bindings := map[string]string{
		// App
		"app.name":        "APP_NAME",
		"app.version":     "APP_VERSION",
		"app.environment": "APP_ENVIRONMENT",
		"app.debug":       "APP_DEBUG",
		"app.timezone":    "APP_TIMEZONE",

		// Server
		"server.port":            "SERVER_PORT",
		"server.host":            "SERVER_HOST",
		"server.read_timeout":    "SERVER_READ_TIMEOUT",
		"server.write_timeout":   "SERVER_WRITE_TIMEOUT",
		"server.idle_timeout":    "SERVER_IDLE_TIMEOUT",
		"server.request_timeout": "SERVER_REQUEST_TIMEOUT",
		"server.public_url":      "SERVER_PUBLIC_URL",

		// Database
		"database.driver":             "DB_DRIVER",
		"database.host":               "DB_HOST",
		"database.port":               "DB_PORT",
		"database.name":               "DB_NAME",
		"database.user":               "DB_USER",
		"database.password":           "DB_PASSWORD",
		"database.ssl_mode":           "DB_SSL_MODE",
		"database.path":               "DB_PATH",
		"database.max_open_conns":     "DB_MAX_OPEN_CONNS",
		"database.max_idle_conns":     "DB_MAX_IDLE_CONNS",
		"database.conn_max_lifetime":  "DB_CONN_MAX_LIFETIME",
		"database.conn_max_idle_time": "DB_CONN_MAX_IDLE_TIME",

		// Document store and realtime
		"docstore.driver":  "DOCSTORE_DRIVER",
		"realtime.driver":  "REALTIME_DRIVER",
		"realtime.channel": "REALTIME_CHANNEL",

		// Redis
		"redis.host":     "REDIS_HOST",
		"redis.port":     "REDIS_PORT",
		"redis.password": "REDIS_PASSWORD",
		"redis.db":       "REDIS_DB",

		// Auth
		"auth.provider":              "AUTH_PROVIDER",
		"auth.jwt.secret":            "JWT_SECRET",
		"auth.jwt.expires_in":        "JWT_EXPIRES_IN",
		"auth.jwt.reset_expires_in":  "JWT_RESET_EXPIRES_IN",
		"auth.jwt.issuer":            "JWT_ISSUER",
		"auth.firebase.api_key":      "FIREBASE_API_KEY",
		"auth.firebase.endpoint":     "FIREBASE_AUTH_ENDPOINT",
		"auth.google.client_id":      "GOOGLE_CLIENT_ID",
		"auth.google.client_secret":  "GOOGLE_CLIENT_SECRET",
		"auth.google.redirect_url":   "GOOGLE_REDIRECT_URL",

		// Logger
		"logger.level":    "LOG_LEVEL",
		"logger.format":   "LOG_FORMAT",
		"logger.output":   "LOG_OUTPUT",
		"logger.filename": "LOG_FILENAME",

		// Security
		"security.cors_allowed_origins": "CORS_ALLOWED_ORIGINS",
		"security.rate_limit_requests":  "RATE_LIMIT_REQUESTS",
		"security.rate_limit_window":    "RATE_LIMIT_WINDOW",

		// Metrics
		"metrics.enabled": "ENABLE_METRICS",
	}

	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}
	return nil
}

func validateConfig(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535")
	}

	if _, err := cfg.App.Location(); err != nil {
		return fmt.Errorf("unknown timezone %q: %w", cfg.App.Timezone, err)
	}

	switch cfg.Database.Driver {
	case "postgres":
		if cfg.Database.Host == "" || cfg.Database.Name == "" {
			return fmt.Errorf("database host and name are required for postgres")
		}
	case "sqlite":
		if cfg.Database.Path == "" {
			return fmt.Errorf("database path is required for sqlite")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}

	switch cfg.DocStore.Driver {
	case "memory", "sql":
	default:
		return fmt.Errorf("unsupported docstore driver %q", cfg.DocStore.Driver)
	}

	switch cfg.Realtime.Driver {
	case "local", "redis":
	case "postgres":
		if cfg.Database.Driver != "postgres" {
			return fmt.Errorf("realtime driver postgres requires database driver postgres")
		}
	default:
		return fmt.Errorf("unsupported realtime driver %q", cfg.Realtime.Driver)
	}

	switch cfg.Auth.Provider {
	case "local":
		if cfg.Auth.JWT.Secret == "" || cfg.Auth.JWT.Secret == defaultJWTSecret {
			return fmt.Errorf("JWT secret must be set and should not use default value")
		}
	case "firebase":
		if cfg.Auth.Firebase.APIKey == "" {
			return fmt.Errorf("firebase API key is required for the firebase auth provider")
		}
	default:
		return fmt.Errorf("unsupported auth provider %q", cfg.Auth.Provider)
	}

	return nil
}

// GetDSN returns the database connection string
func (cfg *DatabaseConfig) GetDSN() string {
	if cfg.Driver == "sqlite" {
		return fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", cfg.Path)
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
		cfg.SSLMode,
	)
}

// GetAddr returns the Redis address
func (cfg *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
}

// Location resolves the configured timezone used for calendar days
func (cfg *AppConfig) Location() (*time.Location, error) {
	if cfg.Timezone == "" || cfg.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(cfg.Timezone)
}

// IsDevelopment returns true if the environment is development
func (cfg *AppConfig) IsDevelopment() bool {
	return cfg.Environment == "development"
}

// IsProduction returns true if the environment is production
func (cfg *AppConfig) IsProduction() bool {
	return cfg.Environment == "production"
}
