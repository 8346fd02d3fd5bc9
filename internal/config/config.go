package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	NATS     NATSConfig     `mapstructure:"nats"`
	CORS     CORSConfig     `mapstructure:"cors"`
	Blob     BlobConfig     `mapstructure:"blob"`
	Realtime RealtimeConfig `mapstructure:"realtime"`
}

type AppConfig struct {
	Name   string `mapstructure:"name"`
	Port   int    `mapstructure:"port"`
	Mode   string `mapstructure:"mode"` // debug | release
	NodeID int64  `mapstructure:"node_id"`
}

type JWTConfig struct {
	SecretKey string        `mapstructure:"secret_key"`
	Expire    time.Duration `mapstructure:"expire"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	MaxConns        int           `mapstructure:"max_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN builds a pgx connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		c.User, c.Password, c.Host, c.Port, c.Name)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// Addr returns host:port.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type NATSConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	URL           string        `mapstructure:"url"`
	MaxReconnects int           `mapstructure:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
}

type BlobConfig struct {
	Dir           string        `mapstructure:"dir"`
	BaseURL       string        `mapstructure:"base_url"`
	MaxBytes      int64         `mapstructure:"max_bytes"`
	UploadTimeout time.Duration `mapstructure:"upload_timeout"`
}

type RealtimeConfig struct {
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
	WriteTimeout     time.Duration `mapstructure:"write_timeout"`
	PingInterval     time.Duration `mapstructure:"ping_interval"`
	SendBuffer       int           `mapstructure:"send_buffer"`
	Workers          int           `mapstructure:"workers"`
	QueueSize        int           `mapstructure:"queue_size"`
}

// Load reads the YAML file at path and applies environment overrides.
func Load(path string) (*Config, error) {
	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	return &cfg, nil
}

func (c *Config) applyEnv() {
	c.App.Port = getEnvInt("PORT", c.App.Port)
	c.App.Mode = getEnv("APP_MODE", c.App.Mode)

	c.JWT.SecretKey = getEnv("JWT_SECRET", c.JWT.SecretKey)
	c.JWT.Expire = getEnvDuration("JWT_EXPIRE", c.JWT.Expire)

	c.Database.Host = getEnv("POSTGRES_HOST", c.Database.Host)
	c.Database.Port = getEnvInt("POSTGRES_PORT", c.Database.Port)
	c.Database.User = getEnv("POSTGRES_USER", c.Database.User)
	c.Database.Password = getEnv("POSTGRES_PASSWORD", c.Database.Password)
	c.Database.Name = getEnv("POSTGRES_DB", c.Database.Name)

	c.Redis.Host = getEnv("REDIS_HOST", c.Redis.Host)
	c.Redis.Port = getEnvInt("REDIS_PORT", c.Redis.Port)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getEnvInt("REDIS_DB", c.Redis.DB)

	c.NATS.URL = getEnv("NATS_URL", c.NATS.URL)
	if os.Getenv("NATS_ENABLED") == "true" {
		c.NATS.Enabled = true
	}

	c.Blob.Dir = getEnv("BLOB_DIR", c.Blob.Dir)
	c.Blob.BaseURL = getEnv("BLOB_BASE_URL", c.Blob.BaseURL)
}

func (c *Config) applyDefaults() {
	if c.App.Port == 0 {
		c.App.Port = 5000
	}
	if c.App.NodeID == 0 {
		c.App.NodeID = 1
	}
	if c.JWT.Expire == 0 {
		c.JWT.Expire = 7 * 24 * time.Hour
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = 10
	}
	if c.Blob.MaxBytes == 0 {
		c.Blob.MaxBytes = 5 << 20
	}
	if c.Blob.UploadTimeout == 0 {
		c.Blob.UploadTimeout = 30 * time.Second
	}
	if c.Realtime.HandshakeTimeout == 0 {
		c.Realtime.HandshakeTimeout = 10 * time.Second
	}
	if c.Realtime.WriteTimeout == 0 {
		c.Realtime.WriteTimeout = 10 * time.Second
	}
	if c.Realtime.PingInterval == 0 {
		c.Realtime.PingInterval = 25 * time.Second
	}
	if c.Realtime.SendBuffer == 0 {
		c.Realtime.SendBuffer = 64
	}
	if c.Realtime.Workers == 0 {
		c.Realtime.Workers = 8
	}
	if c.Realtime.QueueSize == 0 {
		c.Realtime.QueueSize = 1024
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
