package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/SergeiKhy/shorturls/internal/config"
	"github.com/redis/go-redis/v9"
)

const defaultRedisConnectTimeout = 5 * time.Second

// RedisDB - соединение с Redis для хранилища ссылок
type RedisDB struct {
	Client *redis.Client
}

// NewRedisClient подключается к Redis и проверяет соединение.
// Скрипты хранилища берут время из TIME, поэтому нужен Redis 5+.
func NewRedisClient(cfg config.RedisConfig) (*RedisDB, error) {
	client := redis.NewClient(redisOptions(cfg))

	connectTimeout := defaultRedisConnectTimeout
	if cfg.Timeout > connectTimeout {
		connectTimeout = cfg.Timeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	db := &RedisDB{Client: client}
	if err := db.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Addr(), err)
	}

	return db, nil
}

// Нулевые значения оставляют умолчания go-redis
func redisOptions(cfg config.RedisConfig) *redis.Options {
	opts := &redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	}
	if cfg.Timeout > 0 {
		opts.DialTimeout = cfg.Timeout
		opts.ReadTimeout = cfg.Timeout
		opts.WriteTimeout = cfg.Timeout
	}
	return opts
}

func (db *RedisDB) Ping(ctx context.Context) error {
	return db.Client.Ping(ctx).Err()
}

func (db *RedisDB) Close() error {
	return db.Client.Close()
}
