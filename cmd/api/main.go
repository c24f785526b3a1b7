package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SergeiKhy/shorturls/internal/config"
	"github.com/SergeiKhy/shorturls/internal/handler"
	"github.com/SergeiKhy/shorturls/internal/metrics"
	"github.com/SergeiKhy/shorturls/internal/repository"
	"github.com/SergeiKhy/shorturls/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

func main() {
	// Загрузка конфига
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Инициализация логгера
	logger, err := newLogger(cfg.App)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()

	if !cfg.App.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Подключение к хранилищу
	linkRepo, closeStore, err := openStore(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open storage", zap.String("driver", cfg.Storage.Driver), zap.Error(err))
	}
	defer closeStore()

	// Метрики
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	// Инициализация сервиса
	allocator, err := service.NewAllocator(linkRepo, service.AllocatorConfig{
		CodeLength:          cfg.URL.ShortCodeLength,
		CustomCodeMaxLength: cfg.URL.CustomCodeMaxLength,
		MaxAttempts:         cfg.URL.AllocatorMaxAttempts,
	}, m)
	if err != nil {
		logger.Fatal("Failed to create allocator", zap.Error(err))
	}
	linkService := service.NewLinkService(linkRepo, allocator, cfg.URL.DefaultExpiry, logger, m)

	// Настройка роутера
	router := handler.NewRouter(handler.RouterConfig{
		LinkService: linkService,
		Store:       linkRepo,
		Metrics:     m,
		Gatherer:    reg,
		Logger:      logger,
		BaseURL:     cfg.App.BaseURL,
	})

	// Запуск сервера
	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Запуск в горутине
	go func() {
		logger.Info("Server starting",
			zap.String("port", cfg.App.Port),
			zap.String("storage", cfg.Storage.Driver),
			zap.Duration("default_expiry", cfg.URL.DefaultExpiry),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Корректное завершение
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func newLogger(cfg config.AppConfig) (*zap.Logger, error) {
	if cfg.IsDevelopment() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// openStore подключает выбранное хранилище и возвращает функцию закрытия
func openStore(cfg *config.Config, logger *zap.Logger) (repository.LinkRepository, func(), error) {
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		db, err := repository.NewPostgresDB(cfg.DB)
		if err != nil {
			return nil, nil, err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to migrate: %w", err)
		}
		logger.Info("Connected to PostgreSQL")
		return repository.NewLinkRepository(db), db.Close, nil

	case config.DriverRedis:
		redis, err := repository.NewRedisClient(cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Connected to Redis")
		return repository.NewRedisLinkRepository(redis), func() { _ = redis.Close() }, nil

	case config.DriverMemory:
		logger.Warn("Using in-memory storage, data is lost on restart")
		return repository.NewMemoryLinkRepository(), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}
