package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/SergeiKhy/shorturls/internal/config"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresDB struct {
	Pool *pgxpool.Pool
}

func NewPostgresDB(cfg config.DBConfig) (*PostgresDB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse DB config: %w", err)
	}

	// Настройка пула соединений
	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Проверка подключения
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresDB{Pool: pool}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS short_urls (
	code         VARCHAR(32) PRIMARY KEY,
	original_url TEXT        NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL,
	expires_at   TIMESTAMPTZ,
	total_clicks BIGINT      NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS clicks (
	id         BIGSERIAL   PRIMARY KEY,
	code       VARCHAR(32) NOT NULL REFERENCES short_urls (code),
	clicked_at TIMESTAMPTZ NOT NULL,
	source     TEXT        NOT NULL,
	location   TEXT        NOT NULL
);

CREATE INDEX IF NOT EXISTS clicks_code_id_idx ON clicks (code, id);
`

// Migrate создаёт таблицы, если их ещё нет
func (db *PostgresDB) Migrate(ctx context.Context) error {
	if _, err := db.Pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

func (db *PostgresDB) Close() {
	db.Pool.Close()
}
