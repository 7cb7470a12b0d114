package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/territory-mapper/internal/census"
	"github.com/stwalsh4118/territory-mapper/internal/config"
	"github.com/stwalsh4118/territory-mapper/internal/database"
	"github.com/stwalsh4118/territory-mapper/internal/handlers"
	"github.com/stwalsh4118/territory-mapper/internal/logger"
	"github.com/stwalsh4118/territory-mapper/internal/metrics"
	"github.com/stwalsh4118/territory-mapper/internal/middleware"
	"github.com/stwalsh4118/territory-mapper/internal/models"
	"github.com/stwalsh4118/territory-mapper/internal/registry"
	"github.com/stwalsh4118/territory-mapper/internal/repository"
	"github.com/stwalsh4118/territory-mapper/internal/services"
	"github.com/stwalsh4118/territory-mapper/internal/statscache"
	"github.com/stwalsh4118/territory-mapper/internal/territory"
)

const (
	shutdownTimeout = 30 * time.Second
)

func main() {
	// Load configuration from environment variables
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	log := logger.New(cfg.Server.Env, cfg.Server.LogLevel)
	log.Info("Starting Territory Mapper API", map[string]interface{}{
		"version":     handlers.APIVersion,
		"environment": cfg.Server.Env,
		"port":        cfg.Server.Port,
		"registry":    cfg.Registry.Source,
	})

	m := metrics.New()
	ctx := context.Background()

	// Unit registry: boundary files held in memory, or PostGIS
	reg, closeRegistry := openRegistry(ctx, cfg, log)
	defer closeRegistry()
	checks := []handlers.Check{{Name: "registry", Pinger: reg}}

	// Census statistics behind the memoizing cache
	client := census.NewClient(cfg.Census, log, m)
	var cacheOpts []statscache.Option
	if cfg.Cache.RedisEnabled {
		rdb := statscache.OpenRedis(cfg.Cache)
		store := statscache.NewRedisStore(rdb)
		defer func() {
			if err := store.Close(); err != nil {
				log.Error("Failed to close Redis client", err, nil)
			}
		}()
		cacheOpts = append(cacheOpts, statscache.WithStore(store, cfg.Cache.TTL))
		log.Info("Redis statistics cache enabled", map[string]interface{}{
			"addr": cfg.Cache.RedisAddr,
			"db":   cfg.Cache.RedisDB,
			"ttl":  cfg.Cache.TTL.String(),
		})
	}
	stats := statscache.New(client, log, m, cacheOpts...)
	if stats.HasStore() {
		checks = append(checks, handlers.Check{Name: "redis", Pinger: stats})
	}

	model := territory.New(stats,
		territory.WithPalette(cfg.Territory.Colors),
		territory.WithLogger(log),
		territory.WithMetrics(m),
	)

	// Initialize service layer
	territoryService := services.NewTerritoryService(model, reg, log)
	unitService := services.NewUnitService(reg, stats, model, log)

	// Setup Gin router
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware in order: RequestID -> Logger -> Metrics -> Recovery -> CORS
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(log))
	router.Use(middleware.Metrics(m))
	router.Use(middleware.Recovery(log, m))
	router.Use(middleware.CORS(cfg.CORS.Origins))

	handlers.RegisterRoutes(router, handlers.Routes{
		Health:      handlers.NewHealthHandler(cfg.Server.Env, cfg.Registry.Source, checks...),
		Territories: handlers.NewTerritoryHandler(territoryService),
		Units:       handlers.NewUnitHandler(unitService, territoryService),
		Metrics:     m.Handler(),
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server listening", map[string]interface{}{
			"port": cfg.Server.Port,
			"addr": srv.Addr,
		})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start", err, nil)
		}
	}()

	// Wait for interrupt signal (SIGINT or SIGTERM)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// Graceful shutdown
	log.Info("Shutting down server...", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", err, map[string]interface{}{
			"timeout": shutdownTimeout.String(),
		})
	}

	log.Info("Server exited", nil)
}

// openRegistry builds the configured unit registry. The returned func releases
// any resources it holds.
func openRegistry(ctx context.Context, cfg *config.Config, log *logger.Logger) (registry.Registry, func()) {
	if cfg.Registry.Source == config.RegistrySourcePostgres {
		db, err := database.NewPostgresPool(ctx, cfg.Database)
		if err != nil {
			log.Fatal("Failed to connect to database", err, map[string]interface{}{
				"host": cfg.Database.Host,
				"port": cfg.Database.Port,
				"name": cfg.Database.Name,
			})
		}
		if err := database.EnsureSchema(ctx, db.Pool); err != nil {
			log.Fatal("Failed to prepare database schema", err, nil)
		}

		log.Info("Database connection established", map[string]interface{}{
			"host":     cfg.Database.Host,
			"port":     cfg.Database.Port,
			"database": cfg.Database.Name,
			"pool_min": cfg.Database.PoolMin,
			"pool_max": cfg.Database.PoolMax,
		})
		return repository.NewUnitRepository(db.Pool), db.Close
	}

	mem := registry.NewMemory()
	load := func(path string, kind models.UnitKind) {
		start := time.Now()
		res, err := registry.LoadFile(path, kind)
		if err != nil {
			log.Fatal("Failed to load boundaries", err, map[string]interface{}{
				"path": path,
				"kind": string(kind),
			})
		}
		if err := mem.Add(res.Units...); err != nil {
			log.Fatal("Failed to register boundaries", err, map[string]interface{}{
				"path": path,
			})
		}
		log.Info("Boundaries loaded", map[string]interface{}{
			"path":     path,
			"kind":     string(kind),
			"units":    len(res.Units),
			"skipped":  res.Skipped,
			"duration": time.Since(start).String(),
		})
	}

	load(cfg.Registry.CountyBoundaries, models.KindCounty)
	for _, path := range cfg.Registry.ZipBoundaries {
		load(path, models.KindZip)
	}
	return mem, func() {}
}
