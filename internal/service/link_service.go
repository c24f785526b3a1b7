package service

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/SergeiKhy/shorturls/internal/metrics"
	"github.com/SergeiKhy/shorturls/internal/models"
	"github.com/SergeiKhy/shorturls/internal/repository"
	"go.uber.org/zap"
)

// LinkService интерфейс сервиса ссылок
type LinkService interface {
	CreateLink(ctx context.Context, input *models.CreateLinkInput) (*models.URLMapping, error)
	Resolve(ctx context.Context, code, referrer string) (string, error)
	Stats(ctx context.Context, code string) (*models.URLMapping, error)
}

// linkService реализация сервиса ссылок
type linkService struct {
	linkRepo      repository.LinkRepository
	allocator     *Allocator
	defaultExpiry time.Duration
	logger        *zap.Logger
	metrics       *metrics.Metrics
}

// NewLinkService создаёт сервис. defaultExpiry применяется к ссылкам без
// явного срока; ноль означает бессрочные ссылки.
func NewLinkService(
	linkRepo repository.LinkRepository,
	allocator *Allocator,
	defaultExpiry time.Duration,
	logger *zap.Logger,
	m *metrics.Metrics,
) LinkService {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &linkService{
		linkRepo:      linkRepo,
		allocator:     allocator,
		defaultExpiry: defaultExpiry,
		logger:        logger,
		metrics:       m,
	}
}

// CreateLink создаёт новую короткую ссылку
func (s *linkService) CreateLink(ctx context.Context, input *models.CreateLinkInput) (*models.URLMapping, error) {
	if err := validateURL(input.OriginalURL); err != nil {
		s.metrics.LinkCreated(metrics.ResultInvalid)
		return nil, err
	}

	now := time.Now()
	expiresAt := input.Expiry
	if expiresAt == nil && s.defaultExpiry > 0 {
		t := now.Add(s.defaultExpiry)
		expiresAt = &t
	}

	// Код может занять конкурентный запрос между проверкой и вставкой.
	// Для сгенерированного кода это обычная коллизия: повтор тратит тот же
	// бюджет генераций, что и предварительные проверки.
	remaining := s.allocator.MaxAttempts()
	for {
		code, used, err := s.allocator.allocate(ctx, input.CustomCode, remaining)
		if err != nil {
			s.createFailed(input, err)
			return nil, err
		}
		remaining -= used

		link := &models.URLMapping{
			Code:        code,
			OriginalURL: input.OriginalURL,
			CreatedAt:   now,
			ExpiresAt:   expiresAt,
			Clicks:      []models.Click{},
		}

		err = s.linkRepo.Create(ctx, link)
		if err == nil {
			s.metrics.LinkCreated(metrics.ResultOK)
			s.logger.Info("Short link created",
				zap.String("code", link.Code),
				zap.String("original_url", link.OriginalURL),
			)
			return link, nil
		}

		if !errors.Is(err, repository.ErrCodeExists) {
			err = storageError(err)
			s.createFailed(input, err)
			return nil, err
		}

		if input.CustomCode != "" {
			s.createFailed(input, ErrConflict)
			return nil, ErrConflict
		}
		if remaining <= 0 {
			s.createFailed(input, ErrAllocationExhausted)
			return nil, ErrAllocationExhausted
		}

		s.logger.Debug("Generated code taken concurrently, retrying",
			zap.String("code", code),
			zap.Int("remaining_attempts", remaining),
		)
	}
}

// Resolve возвращает исходный URL и записывает клик
func (s *linkService) Resolve(ctx context.Context, code, referrer string) (string, error) {
	target, err := s.linkRepo.Resolve(ctx, code, models.NewVisit(referrer))
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrLinkNotFound):
			s.metrics.Resolved(metrics.ResultNotFound)
			return "", ErrNotFound
		case errors.Is(err, repository.ErrLinkExpired):
			s.metrics.Resolved(metrics.ResultExpired)
			s.logger.Debug("Expired link requested", zap.String("code", code))
			return "", ErrExpired
		default:
			s.metrics.Resolved(metrics.ResultError)
			s.logger.Error("Failed to resolve link", zap.String("code", code), zap.Error(err))
			return "", storageError(err)
		}
	}

	s.metrics.Resolved(metrics.ResultOK)
	return target, nil
}

// Stats возвращает ссылку вместе с историей кликов, в том числе истёкшую
func (s *linkService) Stats(ctx context.Context, code string) (*models.URLMapping, error) {
	link, err := s.linkRepo.Stats(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return nil, ErrNotFound
		}
		s.logger.Error("Failed to load stats", zap.String("code", code), zap.Error(err))
		return nil, storageError(err)
	}

	return link, nil
}

func (s *linkService) createFailed(input *models.CreateLinkInput, err error) {
	switch {
	case errors.Is(err, ErrInvalidFormat):
		s.metrics.LinkCreated(metrics.ResultInvalid)
	case errors.Is(err, ErrConflict):
		s.metrics.LinkCreated(metrics.ResultConflict)
	case errors.Is(err, ErrAllocationExhausted):
		s.metrics.LinkCreated(metrics.ResultExhausted)
		s.logger.Warn("Short code allocation exhausted", zap.String("original_url", input.OriginalURL))
	default:
		s.metrics.LinkCreated(metrics.ResultError)
		s.logger.Error("Failed to create link", zap.String("original_url", input.OriginalURL), zap.Error(err))
	}
}

// validateURL принимает только абсолютные http(s) URL с хостом
func validateURL(raw string) error {
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return ErrInvalidURL
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ErrInvalidURL
	}
	if u.Host == "" {
		return ErrInvalidURL
	}
	return nil
}
