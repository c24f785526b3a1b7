package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SergeiKhy/shorturls/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrLinkNotFound = errors.New("link not found")
	ErrCodeExists   = errors.New("short code already exists")
	ErrLinkExpired  = errors.New("link expired")
)

const uniqueViolation = "23505"

// LinkRepository хранит ссылки и историю кликов.
//
// Уникальность кода обеспечивает само хранилище. Resolve выполняется одним
// атомарным шагом на код: проверка срока, инкремент счётчика и запись клика
// происходят вместе или не происходят вовсе.
type LinkRepository interface {
	Create(ctx context.Context, link *models.URLMapping) error
	Exists(ctx context.Context, code string) (bool, error)
	// Resolve возвращает исходный URL и записывает клик со временем, взятым
	// внутри критической секции. ErrLinkNotFound и ErrLinkExpired ничего не меняют.
	Resolve(ctx context.Context, code string, visit models.Visit) (string, error)
	Stats(ctx context.Context, code string) (*models.URLMapping, error)
	Ping(ctx context.Context) error
}

type linkRepository struct {
	db *PostgresDB
}

func NewLinkRepository(db *PostgresDB) LinkRepository {
	return &linkRepository{db: db}
}

func (r *linkRepository) Create(ctx context.Context, link *models.URLMapping) error {
	query := `
		INSERT INTO short_urls (code, original_url, created_at, expires_at, total_clicks)
		VALUES ($1, $2, $3, $4, 0)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		link.Code,
		link.OriginalURL,
		link.CreatedAt,
		link.ExpiresAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrCodeExists
		}
		return fmt.Errorf("failed to create link: %w", err)
	}

	return nil
}

func (r *linkRepository) Exists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.db.Pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM short_urls WHERE code = $1)`, code,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check code: %w", err)
	}
	return exists, nil
}

func (r *linkRepository) Resolve(ctx context.Context, code string, visit models.Visit) (string, error) {
	var target string

	// Строка short_urls блокируется до конца транзакции, поэтому
	// конкурентные переходы по одному коду выполняются по очереди.
	err := pgx.BeginFunc(ctx, r.db.Pool, func(tx pgx.Tx) error {
		link := models.URLMapping{Code: code}
		err := tx.QueryRow(ctx,
			`SELECT original_url, expires_at FROM short_urls WHERE code = $1 FOR UPDATE`, code,
		).Scan(&link.OriginalURL, &link.ExpiresAt)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrLinkNotFound
			}
			return fmt.Errorf("failed to lock link: %w", err)
		}

		// Время берётся уже под блокировкой и по часам БД, общим для всех инстансов.
		// now() вернул бы время начала транзакции, до ожидания блокировки.
		var now time.Time
		if err := tx.QueryRow(ctx, `SELECT clock_timestamp()`).Scan(&now); err != nil {
			return fmt.Errorf("failed to read clock: %w", err)
		}

		if link.IsExpiredAt(now) {
			return ErrLinkExpired
		}
		click := visit.At(now)

		if _, err := tx.Exec(ctx,
			`UPDATE short_urls SET total_clicks = total_clicks + 1 WHERE code = $1`, code,
		); err != nil {
			return fmt.Errorf("failed to increment clicks: %w", err)
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO clicks (code, clicked_at, source, location) VALUES ($1, $2, $3, $4)`,
			code, click.ClickedAt, click.Source, click.Location,
		); err != nil {
			return fmt.Errorf("failed to record click: %w", err)
		}

		target = link.OriginalURL
		return nil
	})
	if err != nil {
		return "", err
	}

	return target, nil
}

func (r *linkRepository) Stats(ctx context.Context, code string) (*models.URLMapping, error) {
	link := &models.URLMapping{Code: code, Clicks: []models.Click{}}

	// REPEATABLE READ даёт согласованный снимок счётчика и списка кликов
	err := pgx.BeginTxFunc(ctx, r.db.Pool, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	}, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			SELECT original_url, created_at, expires_at, total_clicks
			FROM short_urls
			WHERE code = $1
		`, code).Scan(
			&link.OriginalURL,
			&link.CreatedAt,
			&link.ExpiresAt,
			&link.TotalClicks,
		)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrLinkNotFound
			}
			return fmt.Errorf("failed to get link: %w", err)
		}

		rows, err := tx.Query(ctx, `
			SELECT clicked_at, source, location
			FROM clicks
			WHERE code = $1
			ORDER BY id
		`, code)
		if err != nil {
			return fmt.Errorf("failed to get clicks: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var click models.Click
			if err := rows.Scan(&click.ClickedAt, &click.Source, &click.Location); err != nil {
				return fmt.Errorf("failed to scan click: %w", err)
			}
			link.Clicks = append(link.Clicks, click)
		}

		if err := rows.Err(); err != nil {
			return fmt.Errorf("error iterating clicks: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return link, nil
}

func (r *linkRepository) Ping(ctx context.Context) error {
	return r.db.Pool.Ping(ctx)
}

// Проверка на нарушение уникальности
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
