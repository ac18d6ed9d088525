package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/gescom/gescom/internal/access"
	"github.com/gescom/gescom/internal/app"
	"github.com/gescom/gescom/internal/catalog"
	"github.com/gescom/gescom/internal/commission"
	"github.com/gescom/gescom/internal/observability"
	"github.com/gescom/gescom/internal/personnel"
	"github.com/gescom/gescom/internal/platform/cache"
	"github.com/gescom/gescom/internal/platform/db"
	"github.com/gescom/gescom/internal/sales"
	"github.com/gescom/gescom/internal/shared"
	"github.com/gescom/gescom/internal/stock"
	"github.com/gescom/gescom/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg, "api")

	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	// The gate degrades to direct database reads when redis is down.
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, permission cache disabled", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	accessRepo := access.NewRepository(dbpool)
	accessService := access.NewService(accessRepo, redisClient, cfg.AccessCacheTTL)
	gate := access.Middleware{Service: accessService, Logger: logger}
	accessHandler := access.NewHandler(logger, accessService, gate)

	personnelRepo := personnel.NewRepository(dbpool)
	personnelService := personnel.NewService(personnelRepo)
	personnelHandler := personnel.NewHandler(logger, personnelService, gate)

	stockRepo := stock.NewRepository(dbpool)
	catalogRepo := catalog.NewRepository(dbpool)

	catalogService := catalog.NewService(catalogRepo, stockRepo, auditLogger)
	catalogHandler := catalog.NewHandler(logger, catalogService, gate)

	stockService := stock.NewService(stockRepo, catalogRepo, auditLogger)
	stockHandler := stock.NewHandler(logger, stockService, gate)

	commissionRepo := commission.NewRepository(dbpool)
	commissionService := commission.NewService(commissionRepo, personnelService, auditLogger)
	commissionHandler := commission.NewHandler(logger, commissionService, gate)

	salesRepo := sales.NewRepository(dbpool)
	salesService := sales.NewService(salesRepo, stockService, commissionService, idempotencyStore, auditLogger)
	salesHandler := sales.NewHandler(logger, salesService, gate)

	metrics := observability.NewMetrics()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		AccessHandler:     accessHandler,
		PersonnelHandler:  personnelHandler,
		CatalogHandler:    catalogHandler,
		StockHandler:      stockHandler,
		SalesHandler:      salesHandler,
		CommissionHandler: commissionHandler,
		JobHandler:        jobHandler,
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
