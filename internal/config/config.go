package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/viper"
)

// Драйверы хранилища
const (
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverMemory   = "memory"
)

type Config struct {
	App     AppConfig
	Storage StorageConfig
	DB      DBConfig
	Redis   RedisConfig
	URL     URLConfig
}

type AppConfig struct {
	Env     string
	Port    string
	BaseURL string
}

type StorageConfig struct {
	Driver string
}

type DBConfig struct {
	DSN      string
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

type RedisConfig struct {
	Host         string
	Port         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	// Таймаут на подключение, чтение и запись
	Timeout time.Duration
}

// URLConfig - политика выбора кодов и сроков жизни
type URLConfig struct {
	// DefaultExpiry применяется, если в запросе нет срока.
	// Ноль означает бессрочные ссылки.
	DefaultExpiry        time.Duration
	ShortCodeLength      int
	CustomCodeMaxLength  int
	AllocatorMaxAttempts int
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	setDefaults(v)

	// .env необязателен, переменные окружения всё равно приоритетнее
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{
		App: AppConfig{
			Env:     v.GetString("APP_ENV"),
			Port:    v.GetString("APP_PORT"),
			BaseURL: v.GetString("APP_BASE_URL"),
		},
		Storage: StorageConfig{
			Driver: v.GetString("STORAGE_DRIVER"),
		},
		DB: DBConfig{
			DSN:      v.GetString("DB_DSN"),
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			Name:     v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
			MaxConns: v.GetInt32("DB_MAX_CONNS"),
			MinConns: v.GetInt32("DB_MIN_CONNS"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),

			PoolSize:     v.GetInt("REDIS_POOL_SIZE"),
			MinIdleConns: v.GetInt("REDIS_MIN_IDLE_CONNS"),
			Timeout:      v.GetDuration("REDIS_TIMEOUT"),
		},
		URL: URLConfig{
			DefaultExpiry:        v.GetDuration("URL_DEFAULT_EXPIRY"),
			ShortCodeLength:      v.GetInt("SHORT_CODE_LENGTH"),
			CustomCodeMaxLength:  v.GetInt("CUSTOM_CODE_MAX_LENGTH"),
			AllocatorMaxAttempts: v.GetInt("ALLOCATOR_MAX_ATTEMPTS"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "production")
	v.SetDefault("APP_PORT", "8080")
	v.SetDefault("APP_BASE_URL", "http://localhost:8080")

	v.SetDefault("STORAGE_DRIVER", DriverPostgres)

	v.SetDefault("DB_DSN", "")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "shortener")
	v.SetDefault("DB_PASSWORD", "shortener")
	v.SetDefault("DB_NAME", "shortener")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_CONNS", 25)
	v.SetDefault("DB_MIN_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_POOL_SIZE", 100)
	v.SetDefault("REDIS_MIN_IDLE_CONNS", 10)
	v.SetDefault("REDIS_TIMEOUT", "3s")

	v.SetDefault("URL_DEFAULT_EXPIRY", "30m")
	v.SetDefault("SHORT_CODE_LENGTH", 7)
	v.SetDefault("CUSTOM_CODE_MAX_LENGTH", 10)
	v.SetDefault("ALLOCATOR_MAX_ATTEMPTS", 10)
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case DriverPostgres, DriverRedis, DriverMemory:
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.Storage.Driver)
	}

	if c.Redis.PoolSize < 1 {
		return fmt.Errorf("REDIS_POOL_SIZE must be positive, got %d", c.Redis.PoolSize)
	}
	if c.Redis.Timeout <= 0 {
		return fmt.Errorf("REDIS_TIMEOUT must be positive, got %s", c.Redis.Timeout)
	}

	if c.URL.ShortCodeLength < 6 || c.URL.ShortCodeLength > 8 {
		return fmt.Errorf("SHORT_CODE_LENGTH must be between 6 and 8, got %d", c.URL.ShortCodeLength)
	}
	if c.URL.CustomCodeMaxLength < 1 {
		return fmt.Errorf("CUSTOM_CODE_MAX_LENGTH must be positive, got %d", c.URL.CustomCodeMaxLength)
	}
	if c.URL.AllocatorMaxAttempts < 1 {
		return fmt.Errorf("ALLOCATOR_MAX_ATTEMPTS must be positive, got %d", c.URL.AllocatorMaxAttempts)
	}
	if c.URL.DefaultExpiry < 0 {
		return fmt.Errorf("URL_DEFAULT_EXPIRY must not be negative, got %s", c.URL.DefaultExpiry)
	}

	return nil
}

// ConnString возвращает DB_DSN, а без него собирает строку из частей
func (c DBConfig) ConnString() string {
	if c.DSN != "" {
		return c.DSN
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + c.Port,
		Path:     "/" + c.Name,
		RawQuery: "sslmode=" + c.SSLMode,
	}
	return u.String()
}

func (c RedisConfig) Addr() string {
	return c.Host + ":" + c.Port
}

func (c AppConfig) IsDevelopment() bool {
	return c.Env == "development"
}
