package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/SergeiKhy/shorturls/internal/metrics"
	"github.com/SergeiKhy/shorturls/internal/repository"
	nanoid "github.com/jaevor/go-nanoid"
)

const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

var customCodePattern = regexp.MustCompile(`^[a-zA-Z0-9]+$`)

// Первые сегменты служебных маршрутов. Такой код нельзя было бы открыть
// через GET /:code.
var reservedCodes = map[string]struct{}{
	"health":    {},
	"metrics":   {},
	"docs":      {},
	"shorturls": {},
	"openapi":   {},
}

// AllocatorConfig задаёт политику выбора кодов
type AllocatorConfig struct {
	CodeLength          int
	CustomCodeMaxLength int
	MaxAttempts         int
}

// Allocator подбирает коды, свободные на момент проверки. Сам он ничего
// не пишет: окончательно уникальность решает хранилище.
type Allocator struct {
	repo        repository.LinkRepository
	generate    func() string
	maxLength   int
	maxAttempts int
	metrics     *metrics.Metrics
}

func NewAllocator(repo repository.LinkRepository, cfg AllocatorConfig, m *metrics.Metrics) (*Allocator, error) {
	generate, err := nanoid.CustomASCII(charset, cfg.CodeLength)
	if err != nil {
		return nil, fmt.Errorf("failed to create code generator: %w", err)
	}
	if cfg.MaxAttempts < 1 {
		return nil, fmt.Errorf("max attempts must be positive, got %d", cfg.MaxAttempts)
	}
	if cfg.CustomCodeMaxLength < 1 {
		return nil, fmt.Errorf("custom code max length must be positive, got %d", cfg.CustomCodeMaxLength)
	}

	return &Allocator{
		repo:        repo,
		generate:    generate,
		maxLength:   cfg.CustomCodeMaxLength,
		maxAttempts: cfg.MaxAttempts,
		metrics:     m,
	}, nil
}

// Allocate возвращает customCode, если он корректен и свободен, или новый
// сгенерированный код, если customCode пуст
func (a *Allocator) Allocate(ctx context.Context, customCode string) (string, error) {
	code, _, err := a.allocate(ctx, customCode, a.maxAttempts)
	return code, err
}

// allocate тратит не больше budget генераций и возвращает, сколько потрачено.
// Для кастомного кода генераций нет, used всегда 0.
func (a *Allocator) allocate(ctx context.Context, customCode string, budget int) (code string, used int, err error) {
	if customCode != "" {
		code, err := a.checkCustom(ctx, customCode)
		return code, 0, err
	}

	for attempt := 1; attempt <= budget; attempt++ {
		code := a.generate()
		if isReserved(code) {
			continue
		}

		exists, err := a.repo.Exists(ctx, code)
		if err != nil {
			return "", attempt, storageError(err)
		}
		if !exists {
			a.metrics.AllocationAttempts(attempt)
			return code, attempt, nil
		}
	}

	a.metrics.AllocationAttempts(budget)
	return "", budget, ErrAllocationExhausted
}

// MaxAttempts - общий лимит генераций на одно создание ссылки
func (a *Allocator) MaxAttempts() int {
	return a.maxAttempts
}

// ValidCustomCode возвращает причину отказа или nil, если код допустим
func (a *Allocator) ValidCustomCode(code string) error {
	if len(code) > a.maxLength || !customCodePattern.MatchString(code) {
		return &CodeFormatError{
			Reason: fmt.Sprintf("must be alphanumeric and at most %d characters", a.maxLength),
		}
	}
	if isReserved(code) {
		return &CodeFormatError{Reason: fmt.Sprintf("%q is reserved", code)}
	}
	return nil
}

func (a *Allocator) checkCustom(ctx context.Context, code string) (string, error) {
	if err := a.ValidCustomCode(code); err != nil {
		return "", err
	}

	exists, err := a.repo.Exists(ctx, code)
	if err != nil {
		return "", storageError(err)
	}
	if exists {
		return "", ErrConflict
	}

	return code, nil
}

// Без учёта регистра
func isReserved(code string) bool {
	_, ok := reservedCodes[strings.ToLower(code)]
	return ok
}
