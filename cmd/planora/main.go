package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/planora-app/planora/internal/allocation"
	"github.com/planora-app/planora/internal/app"
	"github.com/planora-app/planora/internal/approval"
	"github.com/planora-app/planora/internal/audit"
	"github.com/planora-app/planora/internal/masterdata"
	"github.com/planora-app/planora/internal/observability"
	"github.com/planora-app/planora/internal/period"
	"github.com/planora-app/planora/internal/platform/cache"
	"github.com/planora-app/planora/internal/platform/db"
	"github.com/planora-app/planora/internal/reconcile"
	"github.com/planora-app/planora/internal/shared"
	"github.com/planora-app/planora/internal/snapshot"
	"github.com/planora-app/planora/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, dashboard cache disabled", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}
	}()

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(pool)
	refs := masterdata.NewRepository(pool)

	dashboardCache := reconcile.NewRedisCache(redisClient, cfg.DashboardCacheTTL, logger)

	periodService := period.NewService(period.NewRepository(pool), auditLogger, logger)
	approvalService := approval.NewService(approval.NewRepository(pool), refs, auditLogger, logger)

	allocationRepo := allocation.NewRepository(pool)
	allocationService := allocation.NewService(allocationRepo, refs, approvalService, auditLogger, dashboardCache, logger)

	reconcileService := reconcile.NewService(period.NewRepository(pool), allocationRepo, refs, dashboardCache, logger)
	reconcileService.WithMetrics(metrics)

	snapshotService := snapshot.NewService(snapshot.NewRepository(pool), period.NewRepository(pool),
		reconcileService, allocationRepo, refs, auditLogger, logger)

	auditService := audit.NewService(audit.NewRepository(pool))

	snapshotHandler := snapshot.NewHandler(logger, snapshotService)
	snapshotHandler.WithIdempotency(shared.NewIdempotencyStore(pool))

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		PeriodHandler:     period.NewHandler(logger, periodService),
		AllocationHandler: allocation.NewHandler(logger, allocationService),
		ApprovalHandler:   approval.NewHandler(logger, approvalService),
		ReconcileHandler:  reconcile.NewHandler(logger, reconcileService),
		SnapshotHandler:   snapshotHandler,
		AuditHandler:      audit.NewHandler(logger, auditService),
		JobHandler:        jobs.NewHandler(inspector, logger),
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logger.Error("http server", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}
