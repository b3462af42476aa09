package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"`
	ChatAPI  ChatAPIConfig  `mapstructure:"chat_api"`
	AgentAPI AgentAPIConfig `mapstructure:"agent_api"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Session  SessionConfig  `mapstructure:"session"`
	Share    ShareConfig    `mapstructure:"share"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// PublicURL is the externally visible base URL, used to build the
	// OAuth callback address.
	PublicURL string `mapstructure:"public_url"`
}

func (c ServerConfig) CallbackURL() string {
	return c.PublicURL + "/auth/callback"
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type AuthConfig struct {
	// ProviderURL is the base URL of the hosted identity service.
	ProviderURL string `mapstructure:"provider_url"`
	// AnonKey is the public API key sent with identity requests.
	AnonKey string `mapstructure:"anon_key"`
	// JWTSecret verifies access tokens at the gateway.
	JWTSecret string `mapstructure:"jwt_secret"`
	// RefreshInterval is how often authenticated sessions refresh in the
	// background.
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

type ChatAPIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type AgentAPIConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Token   string `mapstructure:"token"`
}

type StorageConfig struct {
	// StatePath is the sqlite file holding durable local state. Empty
	// means the per-user default location.
	StatePath string `mapstructure:"state_path"`
}

type SessionConfig struct {
	// PersistDebounce is how long session mutations coalesce before a
	// snapshot write.
	PersistDebounce time.Duration `mapstructure:"persist_debounce"`
}

type ShareConfig struct {
	CacheTTL  time.Duration   `mapstructure:"cache_ttl"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	// Requests is the sustained budget per Window; Burst is the extra
	// headroom on top of it.
	Requests int           `mapstructure:"requests"`
	Burst    int           `mapstructure:"burst"`
	Window   time.Duration `mapstructure:"window"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	// File enables the rotating file sink when non-empty; the value is
	// the base path, e.g. /var/log/sectorlens/app.log.
	File       string        `mapstructure:"file"`
	MaxAge     time.Duration `mapstructure:"max_age"`
	RotateTime time.Duration `mapstructure:"rotate_time"`
}

// Load reads configuration from file and environment variables
func Load() (*Config, error) {
	v := viper.New()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./configs/config.yaml"
	}

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	setDefaults(v)

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and env vars
	}

	// Override with environment variables
	v.AutomaticEnv()
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.public_url", "http://localhost:8080")

	// Database
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "sectorlens")
	v.SetDefault("database.database", "sectorlens")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)

	// Redis
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	// Auth
	v.SetDefault("auth.refresh_interval", "5m")

	// External APIs
	v.SetDefault("chat_api.timeout", "60s")

	// Session
	v.SetDefault("session.persist_debounce", "500ms")

	// Share
	v.SetDefault("share.cache_ttl", "5m")
	v.SetDefault("share.rate_limit.requests", 10)
	v.SetDefault("share.rate_limit.burst", 5)
	v.SetDefault("share.rate_limit.window", "1m")

	// Logging
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.max_age", "168h")
	v.SetDefault("logging.rotate_time", "24h")
}

func bindEnvVars(v *viper.Viper) {
	// Database
	v.BindEnv("database.password", "POSTGRES_PASSWORD")

	// Redis
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	// Auth
	v.BindEnv("auth.provider_url", "AUTH_PROVIDER_URL")
	v.BindEnv("auth.anon_key", "AUTH_ANON_KEY")
	v.BindEnv("auth.jwt_secret", "JWT_SECRET")

	// External APIs
	v.BindEnv("chat_api.base_url", "CHAT_API_URL")
	v.BindEnv("agent_api.base_url", "AGENT_API_URL")
	v.BindEnv("agent_api.token", "AGENT_API_TOKEN")
}
