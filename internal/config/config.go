package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"

	SessionBackendRedis    = "redis"
	SessionBackendDatabase = "database"

	StorageBackendLocal = "local"
	StorageBackendS3    = "s3"
)

type Config struct {
	App      AppConfig      `toml:"app"`
	Log      LogConfig      `toml:"log"`
	Database DatabaseConfig `toml:"database"`
	MySQL    MySQLConfig    `toml:"mysql"`
	SQLite   SQLiteConfig   `toml:"sqlite"`
	Redis    RedisConfig    `toml:"redis"`
	RabbitMQ RabbitMQConfig `toml:"rabbitmq"`
	Session  SessionConfig  `toml:"session"`
	Auth     AuthConfig     `toml:"auth"`
	Storage  StorageConfig  `toml:"storage"`
}

type AppConfig struct {
	Name    string `toml:"name"`
	Env     string `toml:"env"`
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
	GinMode string `toml:"gin_mode"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type DatabaseConfig struct {
	Driver string `toml:"driver"`
}

type MySQLConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	DB       string `toml:"db"`
	Params   string `toml:"params"`
}

type SQLiteConfig struct {
	Path string `toml:"path"`
}

type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

// RabbitMQConfig is optional: an empty URL disables the audit queue and
// auth events are written straight to the database.
type RabbitMQConfig struct {
	URL            string `toml:"url"`
	AuthEventQueue string `toml:"auth_event_queue"`
}

type SessionConfig struct {
	Backend         string `toml:"backend"`
	TTLMinutes      int    `toml:"ttl_minutes"`
	CookieName      string `toml:"cookie_name"`
	CookieSecure    bool   `toml:"cookie_secure"`
	Secret          string `toml:"secret"`
	CleanupInterval int    `toml:"cleanup_interval_seconds"`
}

type AuthConfig struct {
	BcryptCost int `toml:"bcrypt_cost"`
}

type StorageConfig struct {
	Backend        string   `toml:"backend"`
	UploadDir      string   `toml:"upload_dir"`
	MaxAvatarBytes int      `toml:"max_avatar_bytes"`
	S3             S3Config `toml:"s3"`
}

type S3Config struct {
	Bucket       string `toml:"bucket"`
	Region       string `toml:"region"`
	BaseEndpoint string `toml:"base_endpoint"`
	AccessKey    string `toml:"access_key"`
	SecretKey    string `toml:"secret_key"`
	KeyPrefix    string `toml:"key_prefix"`
}

func Load() (*Config, error) {
	// Real environment variables win over .env entries.
	if err := godotenv.Load(getEnv("ENV_FILE", ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load env file failed: %w", err)
	}

	cfg := defaultConfig()

	configPath := getEnv("CONFIG_FILE", "configs/config.toml")
	if _, err := os.Stat(configPath); err == nil {
		if _, err := toml.DecodeFile(configPath, cfg); err != nil {
			return nil, fmt.Errorf("decode config file failed: %w", err)
		}
	}

	overrideByEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverMySQL, DriverSQLite:
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	switch c.Session.Backend {
	case SessionBackendRedis, SessionBackendDatabase:
	default:
		return fmt.Errorf("unknown session backend %q", c.Session.Backend)
	}
	switch c.Storage.Backend {
	case StorageBackendLocal:
	case StorageBackendS3:
		if c.Storage.S3.Bucket == "" {
			return errors.New("storage.s3.bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Session.TTLMinutes <= 0 {
		return errors.New("session.ttl_minutes must be positive")
	}
	if strings.TrimSpace(c.Session.Secret) == "" {
		return errors.New("session.secret is required")
	}
	if c.IsProduction() && c.Session.Secret == defaultSessionSecret {
		return errors.New("session.secret must be changed in production")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.App.Env == "prod" || c.App.Env == "production"
}

func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.App.Host, c.App.Port)
}

func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
		c.MySQL.User,
		c.MySQL.Password,
		c.MySQL.Host,
		c.MySQL.Port,
		c.MySQL.DB,
		c.MySQL.Params,
	)
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Session.TTLMinutes) * time.Minute
}

func (c *Config) SessionCleanupInterval() time.Duration {
	return time.Duration(c.Session.CleanupInterval) * time.Second
}

const defaultSessionSecret = "change-me-in-production"

func defaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:    "gopherblog",
			Env:     "dev",
			Host:    "0.0.0.0",
			Port:    8080,
			GinMode: "debug",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Database: DatabaseConfig{
			Driver: DriverMySQL,
		},
		MySQL: MySQLConfig{
			Host:     "127.0.0.1",
			Port:     3306,
			User:     "root",
			Password: "",
			DB:       "gopherblog",
			Params:   "parseTime=true&loc=Local&charset=utf8mb4",
		},
		SQLite: SQLiteConfig{
			Path: "data/gopherblog.db",
		},
		Redis: RedisConfig{
			Addr:     "127.0.0.1:6379",
			Password: "",
			DB:       0,
		},
		RabbitMQ: RabbitMQConfig{
			URL:            "",
			AuthEventQueue: "blog.auth.events",
		},
		Session: SessionConfig{
			Backend:         SessionBackendRedis,
			TTLMinutes:      24 * 60,
			CookieName:      "blog_session",
			CookieSecure:    false,
			Secret:          defaultSessionSecret,
			CleanupInterval: 600,
		},
		Auth: AuthConfig{
			BcryptCost: 10,
		},
		Storage: StorageConfig{
			Backend:        StorageBackendLocal,
			UploadDir:      "static/author_profile_pic",
			MaxAvatarBytes: 2 << 20,
			S3: S3Config{
				Region:    "us-east-1",
				KeyPrefix: "avatars/",
			},
		},
	}
}

func overrideByEnv(cfg *Config) {
	cfg.App.Name = getEnv("APP_NAME", cfg.App.Name)
	cfg.App.Env = getEnv("APP_ENV", cfg.App.Env)
	cfg.App.Host = getEnv("APP_HOST", cfg.App.Host)
	cfg.App.Port = getEnvAsInt("APP_PORT", cfg.App.Port)
	cfg.App.GinMode = getEnv("GIN_MODE", cfg.App.GinMode)

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)

	cfg.Database.Driver = getEnv("DB_DRIVER", cfg.Database.Driver)
	cfg.MySQL.Host = getEnv("MYSQL_HOST", cfg.MySQL.Host)
	cfg.MySQL.Port = getEnvAsInt("MYSQL_PORT", cfg.MySQL.Port)
	cfg.MySQL.User = getEnv("MYSQL_USER", cfg.MySQL.User)
	cfg.MySQL.Password = getEnv("MYSQL_PASSWORD", cfg.MySQL.Password)
	cfg.MySQL.DB = getEnv("MYSQL_DB", cfg.MySQL.DB)
	cfg.MySQL.Params = getEnv("MYSQL_PARAMS", cfg.MySQL.Params)
	cfg.SQLite.Path = getEnv("SQLITE_PATH", cfg.SQLite.Path)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvAsInt("REDIS_DB", cfg.Redis.DB)

	cfg.RabbitMQ.URL = getEnv("RABBITMQ_URL", cfg.RabbitMQ.URL)
	cfg.RabbitMQ.AuthEventQueue = getEnv("RABBITMQ_AUTH_EVENT_QUEUE", cfg.RabbitMQ.AuthEventQueue)

	cfg.Session.Backend = getEnv("SESSION_BACKEND", cfg.Session.Backend)
	cfg.Session.TTLMinutes = getEnvAsInt("SESSION_TTL_MINUTES", cfg.Session.TTLMinutes)
	cfg.Session.CookieName = getEnv("SESSION_COOKIE_NAME", cfg.Session.CookieName)
	cfg.Session.CookieSecure = getEnvAsBool("SESSION_COOKIE_SECURE", cfg.Session.CookieSecure)
	cfg.Session.Secret = getEnv("SECRET_KEY", cfg.Session.Secret)
	cfg.Session.CleanupInterval = getEnvAsInt("SESSION_CLEANUP_INTERVAL_SECONDS", cfg.Session.CleanupInterval)

	cfg.Auth.BcryptCost = getEnvAsInt("BCRYPT_COST", cfg.Auth.BcryptCost)

	cfg.Storage.Backend = getEnv("STORAGE_BACKEND", cfg.Storage.Backend)
	cfg.Storage.UploadDir = getEnv("UPLOAD_FOLDER", cfg.Storage.UploadDir)
	cfg.Storage.MaxAvatarBytes = getEnvAsInt("MAX_AVATAR_BYTES", cfg.Storage.MaxAvatarBytes)
	cfg.Storage.S3.Bucket = getEnv("S3_BUCKET", cfg.Storage.S3.Bucket)
	cfg.Storage.S3.Region = getEnv("S3_REGION", cfg.Storage.S3.Region)
	cfg.Storage.S3.BaseEndpoint = getEnv("S3_BASE_ENDPOINT", cfg.Storage.S3.BaseEndpoint)
	cfg.Storage.S3.AccessKey = getEnv("S3_ACCESS_KEY", cfg.Storage.S3.AccessKey)
	cfg.Storage.S3.SecretKey = getEnv("S3_SECRET_KEY", cfg.Storage.S3.SecretKey)
	cfg.Storage.S3.KeyPrefix = getEnv("S3_KEY_PREFIX", cfg.Storage.S3.KeyPrefix)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return parsed
}
