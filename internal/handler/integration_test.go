package handler_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/SergeiKhy/shorturls/internal/config"
	"github.com/SergeiKhy/shorturls/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupPostgresRouter поднимает PostgreSQL и собирает роутер поверх него
func setupPostgresRouter(t *testing.T) http.Handler {
	t.Helper()
	ctx := context.Background()

	dbContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("shortener"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = dbContainer.Terminate(context.Background())
	})

	dbHost, err := dbContainer.Host(ctx)
	require.NoError(t, err)
	dbPort, err := dbContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	db, err := repository.NewPostgresDB(config.DBConfig{
		Host:     dbHost,
		Port:     dbPort.Port(),
		User:     "user",
		Password: "password",
		Name:     "shortener",
		SSLMode:  "disable",
		MaxConns: 10,
		MinConns: 1,
	})
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.Migrate(ctx))

	return setupRouter(t, repository.NewLinkRepository(db))
}

// TestIntegration_Postgres тестирует API поверх PostgreSQL
func TestIntegration_Postgres(t *testing.T) {
	if testing.Short() {
		t.Skip("Пропускаем интеграционный тест в коротком режиме")
	}

	router := setupPostgresRouter(t)

	tests := []struct {
		name           string
		request        map[string]any
		expectedStatus int
	}{
		{
			name:           "валидный URL",
			request:        map[string]any{"originalUrl": "https://example.com/test"},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "валидный URL с кастомным кодом",
			request:        map[string]any{"originalUrl": "https://example.com/custom", "shortcode": "mycustom"},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "занятый кастомный код",
			request:        map[string]any{"originalUrl": "https://example.com/other", "shortcode": "mycustom"},
			expectedStatus: http.StatusConflict,
		},
		{
			name:           "невалидный URL",
			request:        map[string]any{"originalUrl": "not-a-url"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "невалидный кастомный код",
			request:        map[string]any{"originalUrl": "https://example.com", "shortcode": "my-custom"},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(router, http.MethodPost, "/shorturls", tt.request)
			assert.Equal(t, tt.expectedStatus, w.Code, w.Body.String())
		})
	}

	t.Run("редирект и статистика", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			w := doJSON(router, http.MethodGet, "/mycustom", nil)
			require.Equal(t, http.StatusFound, w.Code)
			assert.Equal(t, "https://example.com/custom", w.Header().Get("Location"))
		}

		stats := getStats(t, router, "mycustom")
		assert.Equal(t, int64(3), stats.TotalClicks)
		assert.Len(t, stats.DetailedClicks, 3)
	})

	t.Run("истёкшая ссылка", func(t *testing.T) {
		created := createShortURL(t, router, map[string]any{
			"originalUrl": "https://example.com/old",
			"expiry":      time.Now().Add(-time.Millisecond),
		})

		w := doJSON(router, http.MethodGet, "/"+created.Shortcode, nil)
		assert.Equal(t, http.StatusGone, w.Code)
		assert.Equal(t, int64(0), getStats(t, router, created.Shortcode).TotalClicks)
	})

	t.Run("health", func(t *testing.T) {
		w := doJSON(router, http.MethodGet, "/health", nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}
