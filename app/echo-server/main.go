package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"myGreenStorefront/app/echo-server/metrics"
	"myGreenStorefront/app/echo-server/router"
	"myGreenStorefront/business/personalization"
	"myGreenStorefront/internal/repository/memory"
	psqlRepo "myGreenStorefront/internal/repository/postgres"
	redisRepo "myGreenStorefront/internal/repository/redis"
	"myGreenStorefront/internal/rest"
	"myGreenStorefront/pkg/config"
	"myGreenStorefront/pkg/database"
	redisdb "myGreenStorefront/pkg/database/redis"
	"myGreenStorefront/pkg/logger"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

const purgeInterval = time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Init(cfg.App.Environment)
	logger.Info("Starting personalization service", "version", cfg.App.Version, "store", cfg.Personalization.StoreBackend)

	metrics.Init()

	rootCtx, stop := context.WithCancel(context.Background())
	defer stop()

	// Engine defaults and eligibility
	defaults := personalization.DefaultSettings()
	if cfg.Personalization.SettingsFile != "" {
		defaults, err = personalization.LoadSettingsFile(cfg.Personalization.SettingsFile)
		if err != nil {
			logger.Fatal("Failed to load personalization settings", "error", err)
		}
	}

	checker, err := personalization.NewEligibilityChecker(cfg.Personalization.Eligibility)
	if err != nil {
		logger.Fatal("Invalid eligibility rule", "error", err)
	}

	ttl := time.Duration(cfg.Personalization.SessionTTLHours) * time.Hour

	// Storage backend
	var (
		provider personalization.StoreProvider
		db       *gorm.DB
		cleanup  []func() error
	)

	switch cfg.Personalization.StoreBackend {
	case config.BackendRedis:
		client, err := redisdb.NewRedisClient(rootCtx, cfg.Redis)
		if err != nil {
			logger.Fatal("Failed to connect to redis", "error", err)
		}
		cleanup = append(cleanup, func() error { return redisdb.CloseRedisClient(client) })
		provider = redisRepo.NewProvider(client, ttl)

	case config.BackendPostgres:
		db, err = database.InitPostgres(cfg)
		if err != nil {
			logger.Fatal("Failed to connect to database", "error", err)
		}
		logger.Info("Database connected successfully")

		kv := psqlRepo.NewKVRepository(db)
		if err := kv.AutoMigrate(rootCtx); err != nil {
			logger.Fatal("Failed to migrate personalization store", "error", err)
		}
		if ttl > 0 {
			go runPurge(rootCtx, kv, ttl)
		}
		provider = kv

	default:
		provider = memory.NewProvider()
	}

	catalog, err := loadCatalog(cfg, db)
	if err != nil {
		logger.Fatal("Failed to load catalog", "error", err)
	}

	manager := personalization.NewManager(provider,
		personalization.WithDefaults(defaults),
		personalization.WithEligibilityChecker(checker),
	)

	// Init handler
	handler := rest.NewPersonalizationHandler(func(session string) rest.PersonalizationService {
		return manager.ForScope(session)
	}, catalog)

	// Init echo
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(echomiddleware.Recover())
	e.Use(metrics.Middleware())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins:  strings.Split(cfg.Server.CORSOrigins, ","),
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders:  []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, "X-Session-ID"},
		ExposeHeaders: []string{"X-Session-ID"},
	}))

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/healthz", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	// Setup routes
	api := e.Group("/api/v1")
	router.SetupPersonalizationRoutes(api, handler)

	// Goroutine server
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Server.Port)
		logger.Info("Server starting", "address", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	for _, fn := range cleanup {
		if err := fn(); err != nil {
			logger.Error("Failed to close backend", "error", err)
		}
	}

	logger.Info("Server stopped")
}

// loadCatalog prefers an explicit catalog file, then the products table.
func loadCatalog(cfg *config.Config, db *gorm.DB) (personalization.Catalog, error) {
	if path := cfg.Personalization.CatalogFile; path != "" {
		return memory.LoadCatalogFile(path)
	}
	if db != nil {
		return psqlRepo.NewProductRepository(db), nil
	}
	logger.Warn("No catalog configured, recommendations will be empty")
	return memory.NewCatalog(nil), nil
}

// runPurge drops session rows idle for longer than ttl until ctx is done.
func runPurge(ctx context.Context, kv *psqlRepo.KVRepository, ttl time.Duration) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := kv.PurgeBefore(ctx, now.Add(-ttl))
			if err != nil {
				logger.Error("Failed to purge expired sessions", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("Purged expired sessions", "rows", n)
			}
		}
	}
}
