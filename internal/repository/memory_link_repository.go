package repository

import (
	"context"
	"sync"
	"time"

	"github.com/SergeiKhy/shorturls/internal/models"
)

// memoryEntry хранит одну ссылку. Переходы по одному коду идут по очереди
// под mu, разные коды друг другу не мешают.
type memoryEntry struct {
	mu   sync.Mutex
	link models.URLMapping
}

type memoryLinkRepository struct {
	mu    sync.RWMutex
	links map[string]*memoryEntry
}

// NewMemoryLinkRepository создаёт хранилище в памяти процесса. Данные
// теряются при перезапуске.
func NewMemoryLinkRepository() LinkRepository {
	return &memoryLinkRepository{
		links: make(map[string]*memoryEntry),
	}
}

func (r *memoryLinkRepository) Create(ctx context.Context, link *models.URLMapping) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.links[link.Code]; exists {
		return ErrCodeExists
	}

	stored := *link
	stored.TotalClicks = 0
	stored.Clicks = nil
	if link.ExpiresAt != nil {
		expiresAt := *link.ExpiresAt
		stored.ExpiresAt = &expiresAt
	}

	r.links[link.Code] = &memoryEntry{link: stored}
	return nil
}

func (r *memoryLinkRepository) Exists(ctx context.Context, code string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, ok := r.entry(code)
	return ok, nil
}

func (r *memoryLinkRepository) Resolve(ctx context.Context, code string, visit models.Visit) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	e, ok := r.entry(code)
	if !ok {
		return "", ErrLinkNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now()
	if e.link.IsExpiredAt(now) {
		return "", ErrLinkExpired
	}

	e.link.TotalClicks++
	e.link.Clicks = append(e.link.Clicks, visit.At(now))

	return e.link.OriginalURL, nil
}

func (r *memoryLinkRepository) Stats(ctx context.Context, code string) (*models.URLMapping, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e, ok := r.entry(code)
	if !ok {
		return nil, ErrLinkNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	snapshot := e.link
	snapshot.Clicks = make([]models.Click, len(e.link.Clicks))
	copy(snapshot.Clicks, e.link.Clicks)
	if e.link.ExpiresAt != nil {
		expiresAt := *e.link.ExpiresAt
		snapshot.ExpiresAt = &expiresAt
	}

	return &snapshot, nil
}

func (r *memoryLinkRepository) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (r *memoryLinkRepository) entry(code string) (*memoryEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.links[code]
	return e, ok
}
