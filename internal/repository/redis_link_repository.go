package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/SergeiKhy/shorturls/internal/models"
	"github.com/redis/go-redis/v9"
)

// Ссылка хранится хешем, клики списком JSON-записей. Оба ключа имеют
// один hash tag, чтобы скрипты работали и в Redis Cluster.
var createScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
redis.call('HSET', KEYS[1],
	'original_url', ARGV[1],
	'created_at', ARGV[2],
	'expires_at', ARGV[3],
	'total_clicks', 0)
return 1
`)

// Время клика берётся из TIME внутри скрипта, то есть уже в критической
// секции. Микросекунды склеиваются строкой: числа Lua теряют точность в cjson.
// ARGV[1] - источник, ARGV[2] - местоположение.
// Ответ: {0} нет ссылки, {-1} истекла, {1, url} клик записан.
var resolveScript = redis.NewScript(`
local link = redis.call('HMGET', KEYS[1], 'original_url', 'expires_at')
if not link[1] then
	return {0}
end
local t = redis.call('TIME')
local now = t[1] .. string.format('%06d', tonumber(t[2]))
if link[2] ~= '' and tonumber(now) > tonumber(link[2]) then
	return {-1}
end
redis.call('HINCRBY', KEYS[1], 'total_clicks', 1)
redis.call('RPUSH', KEYS[2], cjson.encode({
	clicked_at = now,
	source = ARGV[1],
	location = ARGV[2],
}))
return {1, link[1]}
`)

// redisClick - запись клика в списке; время в микросекундах строкой
type redisClick struct {
	ClickedAt string `json:"clicked_at"`
	Source    string `json:"source"`
	Location  string `json:"location"`
}

func (c redisClick) toModel() (models.Click, error) {
	micros, err := strconv.ParseInt(c.ClickedAt, 10, 64)
	if err != nil {
		return models.Click{}, fmt.Errorf("failed to parse clicked_at: %w", err)
	}
	return models.Click{
		ClickedAt: time.UnixMicro(micros),
		Source:    c.Source,
		Location:  c.Location,
	}, nil
}

type redisLinkRepository struct {
	redis *RedisDB
}

func NewRedisLinkRepository(redis *RedisDB) LinkRepository {
	return &redisLinkRepository{redis: redis}
}

func (r *redisLinkRepository) Create(ctx context.Context, link *models.URLMapping) error {
	expiresAt := ""
	if link.ExpiresAt != nil {
		expiresAt = strconv.FormatInt(link.ExpiresAt.UnixMicro(), 10)
	}

	created, err := createScript.Run(ctx, r.redis.Client,
		[]string{r.key(link.Code)},
		link.OriginalURL,
		link.CreatedAt.UnixMicro(),
		expiresAt,
	).Int()
	if err != nil {
		return fmt.Errorf("failed to create link: %w", err)
	}
	if created == 0 {
		return ErrCodeExists
	}

	return nil
}

func (r *redisLinkRepository) Exists(ctx context.Context, code string) (bool, error) {
	n, err := r.redis.Client.Exists(ctx, r.key(code)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check code: %w", err)
	}
	return n > 0, nil
}

func (r *redisLinkRepository) Resolve(ctx context.Context, code string, visit models.Visit) (string, error) {
	res, err := resolveScript.Run(ctx, r.redis.Client,
		[]string{r.key(code), r.clicksKey(code)},
		visit.Source,
		visit.Location,
	).Slice()
	if err != nil {
		return "", fmt.Errorf("failed to resolve link: %w", err)
	}

	status, _ := res[0].(int64)
	switch status {
	case 0:
		return "", ErrLinkNotFound
	case -1:
		return "", ErrLinkExpired
	}

	if len(res) < 2 {
		return "", fmt.Errorf("unexpected resolve reply: %v", res)
	}
	target, ok := res[1].(string)
	if !ok {
		return "", fmt.Errorf("unexpected resolve reply: %v", res)
	}

	return target, nil
}

func (r *redisLinkRepository) Stats(ctx context.Context, code string) (*models.URLMapping, error) {
	var (
		fields *redis.MapStringStringCmd
		clicks *redis.StringSliceCmd
	)

	// MULTI/EXEC, чтобы счётчик и список кликов читались одним снимком
	_, err := r.redis.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		fields = pipe.HGetAll(ctx, r.key(code))
		clicks = pipe.LRange(ctx, r.clicksKey(code), 0, -1)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get link: %w", err)
	}

	hash := fields.Val()
	if len(hash) == 0 {
		return nil, ErrLinkNotFound
	}

	link, err := decodeLink(code, hash)
	if err != nil {
		return nil, err
	}

	link.Clicks = make([]models.Click, 0, len(clicks.Val()))
	for _, raw := range clicks.Val() {
		var stored redisClick
		if err := json.Unmarshal([]byte(raw), &stored); err != nil {
			return nil, fmt.Errorf("failed to unmarshal click: %w", err)
		}
		click, err := stored.toModel()
		if err != nil {
			return nil, err
		}
		link.Clicks = append(link.Clicks, click)
	}

	return link, nil
}

func (r *redisLinkRepository) Ping(ctx context.Context) error {
	return r.redis.Ping(ctx)
}

func (r *redisLinkRepository) key(code string) string {
	return "link:{" + code + "}"
}

func (r *redisLinkRepository) clicksKey(code string) string {
	return "link:{" + code + "}:clicks"
}

func decodeLink(code string, hash map[string]string) (*models.URLMapping, error) {
	createdAt, err := strconv.ParseInt(hash["created_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	total, err := strconv.ParseInt(hash["total_clicks"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse total_clicks: %w", err)
	}

	link := &models.URLMapping{
		Code:        code,
		OriginalURL: hash["original_url"],
		CreatedAt:   time.UnixMicro(createdAt),
		TotalClicks: total,
	}

	if raw := hash["expires_at"]; raw != "" {
		expiresAt, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse expires_at: %w", err)
		}
		t := time.UnixMicro(expiresAt)
		link.ExpiresAt = &t
	}

	return link, nil
}
