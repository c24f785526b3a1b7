package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/SergeiKhy/shorturls/internal/models"
	"github.com/SergeiKhy/shorturls/internal/repository"
)

// MockLinkRepository реализует repository.LinkRepository для тестов.
// Экспортируемые поля имитируют коллизии, гонки и сбои хранилища.
type MockLinkRepository struct {
	mu    sync.Mutex
	links map[string]*models.URLMapping

	// AlwaysExists: Exists всегда сообщает, что код занят
	AlwaysExists bool
	// HideExisting: Exists не видит сохранённые коды, как будто конкурентный
	// запрос создал код уже после предварительной проверки
	HideExisting bool
	// CreateConflict: Create всегда проигрывает гонку за код
	CreateConflict bool
	// Err возвращается из всех методов
	Err error

	ExistsCalls int
	CreateCalls int
}

func NewMockLinkRepository() *MockLinkRepository {
	return &MockLinkRepository{
		links: make(map[string]*models.URLMapping),
	}
}

func (m *MockLinkRepository) Create(ctx context.Context, link *models.URLMapping) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CreateCalls++
	if m.Err != nil {
		return m.Err
	}
	if _, exists := m.links[link.Code]; exists || m.CreateConflict {
		return repository.ErrCodeExists
	}

	stored := *link
	stored.Clicks = nil
	m.links[link.Code] = &stored
	return nil
}

func (m *MockLinkRepository) Exists(ctx context.Context, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ExistsCalls++
	if m.Err != nil {
		return false, m.Err
	}
	if m.AlwaysExists {
		return true, nil
	}
	if m.HideExisting {
		return false, nil
	}
	_, exists := m.links[code]
	return exists, nil
}

func (m *MockLinkRepository) Resolve(ctx context.Context, code string, visit models.Visit) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return "", m.Err
	}
	link, exists := m.links[code]
	if !exists {
		return "", repository.ErrLinkNotFound
	}
	now := time.Now()
	if link.IsExpiredAt(now) {
		return "", repository.ErrLinkExpired
	}

	link.TotalClicks++
	link.Clicks = append(link.Clicks, visit.At(now))
	return link.OriginalURL, nil
}

func (m *MockLinkRepository) Stats(ctx context.Context, code string) (*models.URLMapping, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	link, exists := m.links[code]
	if !exists {
		return nil, repository.ErrLinkNotFound
	}

	snapshot := *link
	snapshot.Clicks = append([]models.Click{}, link.Clicks...)
	return &snapshot, nil
}

func (m *MockLinkRepository) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Err
}

// Put кладёт ссылку напрямую, минуя сервис
func (m *MockLinkRepository) Put(link *models.URLMapping) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *link
	m.links[link.Code] = &stored
}

func (m *MockLinkRepository) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links = make(map[string]*models.URLMapping)
	m.ExistsCalls = 0
	m.CreateCalls = 0
}
