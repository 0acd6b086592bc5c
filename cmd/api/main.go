package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/quangtmn/visitreg/internal/access"
	"github.com/quangtmn/visitreg/internal/auth"
	"github.com/quangtmn/visitreg/internal/background"
	"github.com/quangtmn/visitreg/internal/cache"
	"github.com/quangtmn/visitreg/internal/config"
	"github.com/quangtmn/visitreg/internal/database"
	"github.com/quangtmn/visitreg/internal/handlers"
	middlewareCustom "github.com/quangtmn/visitreg/internal/middleware"
	"github.com/quangtmn/visitreg/internal/models"
	"github.com/quangtmn/visitreg/internal/repositories"
	"github.com/quangtmn/visitreg/internal/routes"
	"github.com/quangtmn/visitreg/internal/services"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Initialize repositories
	recordRepo := repositories.NewRecordRepository(db)
	statsRepo := repositories.NewStatsRepository(db)
	regionRepo := repositories.NewRegionRepository(db)
	userRepo := repositories.NewUserRepository(db)
	auditRepo := repositories.NewAuditLogRepository(db)

	// Shared query cache; entries are invalidated by store version bumps
	queryCache := cache.NewMemory()

	// Initialize services
	searchService := services.NewSearchService(recordRepo, queryCache, cfg.Query.MaxBatchSize, logger)
	statsService := services.NewStatsService(statsRepo, regionRepo, recordRepo, queryCache, cfg.Query.MaxReportRows, logger)
	importService := services.NewImportService(recordRepo, regionRepo, cfg.Query.MaxBatchSize, logger)
	exportService := services.NewExportService(exportStore{recordRepo}, logger)
	auditService := services.NewAuditService(auditRepo, logger)

	// Initialize handlers
	searchHandler := handlers.NewSearchHandler(searchService, auditService)
	statsHandler := handlers.NewStatsHandler(statsService, regionRepo, auditService)
	recordHandler := handlers.NewRecordHandler(importService, auditService)
	exportHandler := handlers.NewExportHandler(exportService, auditService)

	// Token verification; tokens are issued by the external identity provider
	verifier := auth.NewTokenVerifier(cfg.Auth.JWTSecret)

	// Audit retention sweeper
	cleanupManager := background.NewCleanupManager(auditService, logger, cfg.Audit.SweepInterval, cfg.Audit.Retention)

	// Bootstrap first admin user if configured
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := ensureAdminUser(ctx, userRepo, logger); err != nil {
		logger.Error("failed to ensure admin user", slog.Any("error", err))
	}
	cancel()

	// Setup CORS middleware
	corsConfig := middlewareCustom.DefaultCORSConfig(cfg.Server.AllowedOrigins)

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(corsConfig))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// Register routes
	routes.RegisterRoutes(router, searchHandler, statsHandler, recordHandler, exportHandler, verifier, userRepo)

	// Health check with database
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","database":"up"}`))
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start cleanup task
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

// exportStore adapts the record repository's concrete iterator to the export
// service's cursor interface.
type exportStore struct {
	repo *repositories.RecordRepository
}

func (s exportStore) IterateRecords(ctx context.Context, scope access.Scope, rng models.TimeRange) (services.RecordCursor, error) {
	it, err := s.repo.IterateRecords(ctx, scope, rng)
	if err != nil {
		return nil, err
	}
	return it, nil
}

// ensureAdminUser creates the first admin user row if ADMIN_USER_ID and
// ADMIN_USERNAME are set. The identity itself lives with the external
// provider; this only provisions the role assignment.
func ensureAdminUser(ctx context.Context, userRepo *repositories.UserRepository, logger *slog.Logger) error {
	adminID := os.Getenv("ADMIN_USER_ID")
	adminUsername := os.Getenv("ADMIN_USERNAME")

	if adminID == "" || adminUsername == "" {
		logger.Info("no ADMIN_USER_ID or ADMIN_USERNAME set, skipping admin user creation")
		return nil
	}

	_, err := userRepo.GetByID(ctx, adminID)
	if err == nil {
		logger.Info("admin user already exists")
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to check if admin exists: %w", err)
	}

	// The username is unique; a row provisioned under a different ID must not
	// make startup fail on the insert below.
	if _, err := userRepo.GetByUsername(ctx, adminUsername); err == nil {
		logger.Info("admin username already provisioned under a different id",
			slog.String("username", adminUsername))
		return nil
	} else if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to check admin username: %w", err)
	}

	admin := &models.User{
		ID:       adminID,
		Username: adminUsername,
		Role:     models.RoleAdmin,
	}

	if _, err := userRepo.Create(ctx, admin); err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	logger.Info("admin user created successfully")
	return nil
}
