package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Log       LogConfig
	Store     StoreConfig
	Feed      FeedConfig
	Room      RoomConfig
	Presence  PresenceConfig
	Catalog   CatalogConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	Mode         string // debug, release, test
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// AllowedOrigins applies to CORS and websocket upgrades; empty allows any origin
	AllowedOrigins []string
}

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
	AutoMigrate     bool
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	PoolSize int
}

// JWTConfig only validates tokens minted by the identity provider.
// DevTokenTTL is used by scripts/seed to mint local tokens.
type JWTConfig struct {
	Secret      string
	Issuer      string
	DevTokenTTL time.Duration
}

type LogConfig struct {
	Level      string // debug, info, warn, error
	Format     string // json, console
	OutputPath string
}

type StoreConfig struct {
	Driver string // postgres, memory
}

type FeedConfig struct {
	Driver string // redis, local
}

type RoomConfig struct {
	CreateTimeout   time.Duration
	CodeAttempts    int
	MaxParticipants int
	MessageWindow   int
	MaxWindow       int
}

type PresenceConfig struct {
	TTL               time.Duration
	SweepInterval     time.Duration
	HeartbeatInterval time.Duration
}

type CatalogConfig struct {
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
	CacheTTL time.Duration
}

type RateLimitConfig struct {
	MessagesPerMinute int
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// 環境變數前綴
	viper.SetEnvPrefix("WATCHROOM")
	viper.AutomaticEnv()

	setDefaults()

	// 設定檔為可選
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	bindEnvVariables()

	cfg := &Config{
		Server: ServerConfig{
			Host:           viper.GetString("server.host"),
			Port:           viper.GetInt("server.port"),
			Mode:           viper.GetString("server.mode"),
			ReadTimeout:    viper.GetDuration("server.read_timeout"),
			WriteTimeout:   viper.GetDuration("server.write_timeout"),
			AllowedOrigins: splitList(viper.GetStringSlice("server.allowed_origins")),
		},
		Database: DatabaseConfig{
			Host:            viper.GetString("database.host"),
			Port:            viper.GetInt("database.port"),
			User:            viper.GetString("database.user"),
			Password:        viper.GetString("database.password"),
			DBName:          viper.GetString("database.dbname"),
			SSLMode:         viper.GetString("database.sslmode"),
			MaxOpenConns:    viper.GetInt("database.max_open_conns"),
			MaxIdleConns:    viper.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: viper.GetDuration("database.conn_max_lifetime"),
			AutoMigrate:     viper.GetBool("database.auto_migrate"),
		},
		Redis: RedisConfig{
			Host:     viper.GetString("redis.host"),
			Port:     viper.GetInt("redis.port"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
			PoolSize: viper.GetInt("redis.pool_size"),
		},
		JWT: JWTConfig{
			Secret:      viper.GetString("jwt.secret"),
			Issuer:      viper.GetString("jwt.issuer"),
			DevTokenTTL: viper.GetDuration("jwt.dev_token_ttl"),
		},
		Log: LogConfig{
			Level:      viper.GetString("log.level"),
			Format:     viper.GetString("log.format"),
			OutputPath: viper.GetString("log.output_path"),
		},
		Store: StoreConfig{
			Driver: viper.GetString("store.driver"),
		},
		Feed: FeedConfig{
			Driver: viper.GetString("feed.driver"),
		},
		Room: RoomConfig{
			CreateTimeout:   viper.GetDuration("room.create_timeout"),
			CodeAttempts:    viper.GetInt("room.code_attempts"),
			MaxParticipants: viper.GetInt("room.max_participants"),
			MessageWindow:   viper.GetInt("room.message_window"),
			MaxWindow:       viper.GetInt("room.max_window"),
		},
		Presence: PresenceConfig{
			TTL:               viper.GetDuration("presence.ttl"),
			SweepInterval:     viper.GetDuration("presence.sweep_interval"),
			HeartbeatInterval: viper.GetDuration("presence.heartbeat_interval"),
		},
		Catalog: CatalogConfig{
			APIKey:   viper.GetString("catalog.api_key"),
			BaseURL:  viper.GetString("catalog.base_url"),
			Timeout:  viper.GetDuration("catalog.timeout"),
			CacheTTL: viper.GetDuration("catalog.cache_ttl"),
		},
		RateLimit: RateLimitConfig{
			MessagesPerMinute: viper.GetInt("ratelimit.messages_per_minute"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("unsupported store driver %q", c.Store.Driver)
	}
	switch c.Feed.Driver {
	case "redis", "local":
	default:
		return fmt.Errorf("unsupported feed driver %q", c.Feed.Driver)
	}
	if c.Room.CodeAttempts < 1 {
		return fmt.Errorf("room.code_attempts must be at least 1")
	}
	if c.Presence.TTL > 0 && c.Presence.HeartbeatInterval >= c.Presence.TTL {
		return fmt.Errorf("presence.heartbeat_interval must be shorter than presence.ttl")
	}
	return nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.allowed_origins", []string{})

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.dbname", "watchroom")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "5m")
	viper.SetDefault("database.auto_migrate", true)

	// Redis defaults
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.pool_size", 10)

	// JWT defaults
	viper.SetDefault("jwt.secret", "your-secret-key-change-in-production")
	viper.SetDefault("jwt.issuer", "watchroom-identity")
	viper.SetDefault("jwt.dev_token_ttl", "24h")

	// Log defaults
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "json")
	viper.SetDefault("log.output_path", "stdout")

	viper.SetDefault("store.driver", "postgres")
	viper.SetDefault("feed.driver", "redis")

	// Room defaults
	viper.SetDefault("room.create_timeout", "30s")
	viper.SetDefault("room.code_attempts", 5)
	viper.SetDefault("room.max_participants", 8)
	viper.SetDefault("room.message_window", 50)
	viper.SetDefault("room.max_window", 100)

	// Presence defaults
	viper.SetDefault("presence.ttl", "90s")
	viper.SetDefault("presence.sweep_interval", "30s")
	viper.SetDefault("presence.heartbeat_interval", "30s")

	// Catalog defaults (disabled without api key)
	viper.SetDefault("catalog.api_key", "")
	viper.SetDefault("catalog.base_url", "https://api.themoviedb.org/3")
	viper.SetDefault("catalog.timeout", "5s")
	viper.SetDefault("catalog.cache_ttl", "6h")

	viper.SetDefault("ratelimit.messages_per_minute", 60)
}

func bindEnvVariables() {
	// Server
	_ = viper.BindEnv("server.host", "SERVER_HOST")
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.mode", "SERVER_MODE")
	_ = viper.BindEnv("server.allowed_origins", "ALLOWED_ORIGINS")

	// Database
	_ = viper.BindEnv("database.host", "DB_HOST")
	_ = viper.BindEnv("database.port", "DB_PORT")
	_ = viper.BindEnv("database.user", "DB_USER")
	_ = viper.BindEnv("database.password", "DB_PASSWORD")
	_ = viper.BindEnv("database.dbname", "DB_NAME")
	_ = viper.BindEnv("database.sslmode", "DB_SSLMODE")

	// Redis
	_ = viper.BindEnv("redis.host", "REDIS_HOST")
	_ = viper.BindEnv("redis.port", "REDIS_PORT")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")

	// JWT
	_ = viper.BindEnv("jwt.secret", "JWT_SECRET")
	_ = viper.BindEnv("jwt.issuer", "JWT_ISSUER")

	// Log
	_ = viper.BindEnv("log.level", "LOG_LEVEL")

	_ = viper.BindEnv("store.driver", "STORE_DRIVER")
	_ = viper.BindEnv("feed.driver", "FEED_DRIVER")
	_ = viper.BindEnv("catalog.api_key", "TMDB_API_KEY")
}

// splitList accepts YAML lists and comma separated env values
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// GetDSN returns PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// GetAddr returns Redis address
func (c *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetAddr returns server address
func (c *ServerConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Enabled reports whether catalog lookups are configured.
func (c *CatalogConfig) Enabled() bool {
	return c.APIKey != ""
}
