package repository_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/SergeiKhy/shorturls/internal/models"
	"github.com/SergeiKhy/shorturls/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// runLinkRepositoryTests проверяет поведение, общее для всех хранилищ
func runLinkRepositoryTests(t *testing.T, newRepo func(t *testing.T) repository.LinkRepository) {
	t.Run("create and stats", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		link := newLink(nil)
		require.NoError(t, repo.Create(ctx, link))

		stats, err := repo.Stats(ctx, link.Code)
		require.NoError(t, err)
		assert.Equal(t, link.Code, stats.Code)
		assert.Equal(t, link.OriginalURL, stats.OriginalURL)
		assert.WithinDuration(t, link.CreatedAt, stats.CreatedAt, time.Millisecond)
		assert.Nil(t, stats.ExpiresAt)
		assert.Zero(t, stats.TotalClicks)
		assert.Empty(t, stats.Clicks)
	})

	t.Run("duplicate code", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		link := newLink(nil)
		require.NoError(t, repo.Create(ctx, link))

		dup := newLink(nil)
		dup.Code = link.Code
		dup.OriginalURL = "https://other.example.com"
		err := repo.Create(ctx, dup)
		assert.ErrorIs(t, err, repository.ErrCodeExists)

		stats, err := repo.Stats(ctx, link.Code)
		require.NoError(t, err)
		assert.Equal(t, link.OriginalURL, stats.OriginalURL)
	})

	t.Run("exists", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		link := newLink(nil)
		exists, err := repo.Exists(ctx, link.Code)
		require.NoError(t, err)
		assert.False(t, exists)

		require.NoError(t, repo.Create(ctx, link))

		exists, err = repo.Exists(ctx, link.Code)
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("unknown code", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		_, err := repo.Resolve(ctx, "missing0", models.NewVisit(""))
		assert.ErrorIs(t, err, repository.ErrLinkNotFound)

		_, err = repo.Stats(ctx, "missing0")
		assert.ErrorIs(t, err, repository.ErrLinkNotFound)
	})

	t.Run("resolve records clicks in order", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		link := newLink(nil)
		require.NoError(t, repo.Create(ctx, link))

		start := time.Now()
		for i := 0; i < 5; i++ {
			target, err := repo.Resolve(ctx, link.Code, models.NewVisit(fmt.Sprintf("https://ref%d.example.com", i)))
			require.NoError(t, err)
			assert.Equal(t, link.OriginalURL, target)
		}
		end := time.Now()

		stats, err := repo.Stats(ctx, link.Code)
		require.NoError(t, err)
		assert.Equal(t, int64(5), stats.TotalClicks)
		require.Len(t, stats.Clicks, 5)
		for i, click := range stats.Clicks {
			assert.Equal(t, fmt.Sprintf("https://ref%d.example.com", i), click.Source)
			assert.Equal(t, models.UnknownLocation, click.Location)
			// время ставит хранилище; допуск на расхождение часов с контейнером
			assert.WithinRange(t, click.ClickedAt, start.Add(-time.Second), end.Add(time.Second))
		}
		assertChronological(t, stats.Clicks)
	})

	t.Run("missing referrer is a direct visit", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		link := newLink(nil)
		require.NoError(t, repo.Create(ctx, link))

		_, err := repo.Resolve(ctx, link.Code, models.NewVisit(""))
		require.NoError(t, err)

		stats, err := repo.Stats(ctx, link.Code)
		require.NoError(t, err)
		require.Len(t, stats.Clicks, 1)
		assert.Equal(t, models.DirectSource, stats.Clicks[0].Source)
	})

	t.Run("expired link is not mutated", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		expiresAt := time.Now().Add(-time.Millisecond)
		link := newLink(&expiresAt)
		require.NoError(t, repo.Create(ctx, link))

		for i := 0; i < 3; i++ {
			_, err := repo.Resolve(ctx, link.Code, models.NewVisit(""))
			assert.ErrorIs(t, err, repository.ErrLinkExpired)
		}

		stats, err := repo.Stats(ctx, link.Code)
		require.NoError(t, err)
		assert.Zero(t, stats.TotalClicks)
		assert.Empty(t, stats.Clicks)
		require.NotNil(t, stats.ExpiresAt)
	})

	t.Run("concurrent resolves are counted exactly and in order", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		links := make([]*models.URLMapping, 10)
		for i := range links {
			links[i] = newLink(nil)
			require.NoError(t, repo.Create(ctx, links[i]))
		}

		const perLink = 50
		var g errgroup.Group
		for _, link := range links {
			for i := 0; i < perLink; i++ {
				g.Go(func() error {
					_, err := repo.Resolve(ctx, link.Code, models.NewVisit(""))
					return err
				})
			}
		}
		require.NoError(t, g.Wait())

		for _, link := range links {
			stats, err := repo.Stats(ctx, link.Code)
			require.NoError(t, err)
			assert.Equal(t, int64(perLink), stats.TotalClicks)
			assert.Len(t, stats.Clicks, perLink)
			assertChronological(t, stats.Clicks)
		}
	})

	t.Run("no clicks after the expiry boundary", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		// срок считается по часам хранилища, поэтому берём его с запасом
		expiresAt := time.Now().Add(time.Second)
		link := newLink(&expiresAt)
		require.NoError(t, repo.Create(ctx, link))

		var accepted, rejected atomic.Int64
		var g errgroup.Group
		deadline := time.Now().Add(5 * time.Second)
		for i := 0; i < 10; i++ {
			g.Go(func() error {
				for time.Now().Before(deadline) {
					_, err := repo.Resolve(ctx, link.Code, models.NewVisit(""))
					switch {
					case err == nil:
						accepted.Add(1)
					case errors.Is(err, repository.ErrLinkExpired):
						rejected.Add(1)
						return nil
					default:
						return err
					}
					time.Sleep(5 * time.Millisecond)
				}
				return nil
			})
		}
		require.NoError(t, g.Wait())

		assert.Positive(t, accepted.Load())
		assert.Equal(t, int64(10), rejected.Load(), "каждый воркер должен упереться в срок")

		stats, err := repo.Stats(ctx, link.Code)
		require.NoError(t, err)
		require.NotNil(t, stats.ExpiresAt)
		assert.Equal(t, accepted.Load(), stats.TotalClicks)
		assert.Len(t, stats.Clicks, int(accepted.Load()))
		for _, click := range stats.Clicks {
			assert.False(t, click.ClickedAt.After(*stats.ExpiresAt), "клик %s после срока %s", click.ClickedAt, stats.ExpiresAt)
		}
		assertChronological(t, stats.Clicks)

		// после отказа счётчик больше не растёт
		_, err = repo.Resolve(ctx, link.Code, models.NewVisit(""))
		assert.ErrorIs(t, err, repository.ErrLinkExpired)
		after, err := repo.Stats(ctx, link.Code)
		require.NoError(t, err)
		assert.Equal(t, stats.TotalClicks, after.TotalClicks)
	})

	t.Run("concurrent creates have a single winner", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		code := newCode()
		var created, conflicts atomic.Int64
		var g errgroup.Group
		for i := 0; i < 20; i++ {
			g.Go(func() error {
				link := newLink(nil)
				link.Code = code
				link.OriginalURL = fmt.Sprintf("https://example.com/%d", i)
				err := repo.Create(ctx, link)
				switch {
				case err == nil:
					created.Add(1)
				case errors.Is(err, repository.ErrCodeExists):
					conflicts.Add(1)
				default:
					return err
				}
				return nil
			})
		}
		require.NoError(t, g.Wait())

		assert.Equal(t, int64(1), created.Load())
		assert.Equal(t, int64(19), conflicts.Load())
	})
}

// assertChronological проверяет, что порядок вставки совпадает с хронологией
func assertChronological(t *testing.T, clicks []models.Click) {
	t.Helper()
	for i := 1; i < len(clicks); i++ {
		assert.False(t, clicks[i].ClickedAt.Before(clicks[i-1].ClickedAt),
			"клик %d (%s) раньше клика %d (%s)", i, clicks[i].ClickedAt, i-1, clicks[i-1].ClickedAt)
	}
}

func newCode() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
}

func newLink(expiresAt *time.Time) *models.URLMapping {
	code := newCode()
	return &models.URLMapping{
		Code:        code,
		OriginalURL: "https://example.com/" + code,
		CreatedAt:   time.Now(),
		ExpiresAt:   expiresAt,
	}
}
