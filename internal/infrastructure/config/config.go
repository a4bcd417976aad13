package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Log      LogConfig
	HTTP     HTTPConfig
	Chat     ChatConfig
	Bridge   BridgeConfig
	Event    EventConfig
	Hub      HubConfig
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
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig holds JWT settings
type JWTConfig struct {
	Secret string
	Issuer string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout          time.Duration
	WriteTimeout         time.Duration
	IdleTimeout          time.Duration
	MaxHeaderBytes       int
	LoginRateLimitRPS    float64
	LoginRateLimitBurst  int
	CORSAllowOrigins     []string
	CORSAllowMethods     []string
	CORSAllowHeaders     []string
	TrustedProxies       []string
}

// ChatConfig holds chat gateway settings
type ChatConfig struct {
	GatewayURL    string
	GatewayToken  string
	ResumeTimeout time.Duration
	LoginTimeout  time.Duration
	FetchTimeout  time.Duration
	ThreadAmount  int // default thread page size pulled from the gateway
}

// BridgeConfig holds messenger bridge subprocess settings
type BridgeConfig struct {
	Executable     string
	Args           []string
	StateDir       string
	WebhookSecret  string
	PublicBaseURL  string // base URL the bridge posts webhooks back to
	MaxRestarts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	HealthInterval time.Duration
	StopTimeout    time.Duration
}

// EventConfig holds webhook event processing settings
type EventConfig struct {
	IdempotencyTTL time.Duration
}

// HubConfig holds live event fanout settings
type HubConfig struct {
	BufferSize int
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with NURCRM_ prefix (e.g., NURCRM_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./backend")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("NURCRM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
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
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret: v.GetString("jwt.secret"),
			Issuer: v.GetString("jwt.issuer"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:         v.GetDuration("http.read_timeout"),
			WriteTimeout:        v.GetDuration("http.write_timeout"),
			IdleTimeout:         v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:      v.GetInt("http.max_header_bytes"),
			LoginRateLimitRPS:   v.GetFloat64("http.login_rate_limit_rps"),
			LoginRateLimitBurst: v.GetInt("http.login_rate_limit_burst"),
			CORSAllowOrigins:    v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods:    v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders:    v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:      v.GetStringSlice("http.trusted_proxies"),
		},
		Chat: ChatConfig{
			GatewayURL:    v.GetString("chat.gateway_url"),
			GatewayToken:  v.GetString("chat.gateway_token"),
			ResumeTimeout: v.GetDuration("chat.resume_timeout"),
			LoginTimeout:  v.GetDuration("chat.login_timeout"),
			FetchTimeout:  v.GetDuration("chat.fetch_timeout"),
			ThreadAmount:  v.GetInt("chat.thread_amount"),
		},
		Bridge: BridgeConfig{
			Executable:     v.GetString("bridge.executable"),
			Args:           v.GetStringSlice("bridge.args"),
			StateDir:       v.GetString("bridge.state_dir"),
			WebhookSecret:  v.GetString("bridge.webhook_secret"),
			PublicBaseURL:  v.GetString("bridge.public_base_url"),
			MaxRestarts:    v.GetInt("bridge.max_restarts"),
			InitialBackoff: v.GetDuration("bridge.initial_backoff"),
			MaxBackoff:     v.GetDuration("bridge.max_backoff"),
			HealthInterval: v.GetDuration("bridge.health_interval"),
			StopTimeout:    v.GetDuration("bridge.stop_timeout"),
		},
		Event: EventConfig{
			IdempotencyTTL: v.GetDuration("event.idempotency_ttl"),
		},
		Hub: HubConfig{
			BufferSize: v.GetInt("hub.buffer_size"),
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
		cfg.App.Name = "nurcrm-backend"
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
		cfg.Database.DBName = "nurcrm"
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
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.JWT.Issuer == "" {
		cfg.JWT.Issuer = "nurcrm-backend"
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
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.LoginRateLimitRPS == 0 {
		cfg.HTTP.LoginRateLimitRPS = 0.2 // one login attempt per 5s per tenant
	}
	if cfg.HTTP.LoginRateLimitBurst == 0 {
		cfg.HTTP.LoginRateLimitBurst = 3
	}
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID"}
	}
	if cfg.Chat.GatewayURL == "" {
		cfg.Chat.GatewayURL = "http://localhost:9100"
	}
	if cfg.Chat.ResumeTimeout == 0 {
		cfg.Chat.ResumeTimeout = 15 * time.Second
	}
	if cfg.Chat.LoginTimeout == 0 {
		cfg.Chat.LoginTimeout = 45 * time.Second
	}
	if cfg.Chat.FetchTimeout == 0 {
		cfg.Chat.FetchTimeout = 30 * time.Second
	}
	if cfg.Chat.ThreadAmount == 0 {
		cfg.Chat.ThreadAmount = 20
	}
	if cfg.Bridge.Executable == "" {
		cfg.Bridge.Executable = "wa-bridge"
	}
	if cfg.Bridge.StateDir == "" {
		cfg.Bridge.StateDir = "/var/lib/nurcrm/bridge"
	}
	if cfg.Bridge.MaxRestarts == 0 {
		cfg.Bridge.MaxRestarts = 5
	}
	if cfg.Bridge.InitialBackoff == 0 {
		cfg.Bridge.InitialBackoff = 2 * time.Second
	}
	if cfg.Bridge.MaxBackoff == 0 {
		cfg.Bridge.MaxBackoff = 2 * time.Minute
	}
	if cfg.Bridge.HealthInterval == 0 {
		cfg.Bridge.HealthInterval = 30 * time.Second
	}
	if cfg.Bridge.StopTimeout == 0 {
		cfg.Bridge.StopTimeout = 10 * time.Second
	}
	if cfg.Event.IdempotencyTTL == 0 {
		cfg.Event.IdempotencyTTL = 24 * time.Hour
	}
	if cfg.Hub.BufferSize == 0 {
		cfg.Hub.BufferSize = 64
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
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
	if c.Hub.BufferSize <= 0 {
		return fmt.Errorf("hub.buffer_size must be positive")
	}

	if c.App.Env == "production" {
		if c.JWT.Secret == "" {
			return fmt.Errorf("jwt.secret is required in production")
		}
		if len(c.JWT.Secret) < 32 {
			return fmt.Errorf("jwt.secret must be at least 32 characters in production")
		}
		if c.Bridge.WebhookSecret == "" {
			return fmt.Errorf("bridge.webhook_secret is required in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
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

// Addr returns the redis address host:port
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
