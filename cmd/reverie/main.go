package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/Sharoon166/reverie/internal/app"
	"github.com/Sharoon166/reverie/internal/crm"
	crmhttp "github.com/Sharoon166/reverie/internal/crm/http"
	"github.com/Sharoon166/reverie/internal/kpi"
	"github.com/Sharoon166/reverie/internal/observability"
	"github.com/Sharoon166/reverie/internal/platform/cache"
	"github.com/Sharoon166/reverie/internal/platform/db"
	"github.com/Sharoon166/reverie/internal/quarter"
	quarterhttp "github.com/Sharoon166/reverie/internal/quarter/http"
	"github.com/Sharoon166/reverie/jobs"
)

// closeNotifier invalidates the dashboard cache and queues the close
// notification email after a successful quarter close.
type closeNotifier struct {
	cache    *kpi.Cache
	jobs     *jobs.Client
	notifyTo string
	logger   *slog.Logger
}

func (n closeNotifier) QuarterClosed(ctx context.Context, result quarter.ClosureResult) {
	if err := n.cache.Bump(ctx); err != nil {
		n.logger.Warn("bump kpi cache", slog.Any("error", err))
	}
	if n.jobs == nil {
		return
	}
	if _, err := n.jobs.EnqueueKPIWarmup(ctx, jobs.KPIWarmupPayload{Year: result.ClosedDate.Year()}); err != nil {
		n.logger.Warn("enqueue kpi warmup", slog.Any("error", err))
	}
	if n.notifyTo == "" {
		return
	}
	body := fmt.Sprintf(
		"Quarter %s was closed on %s.\nWithdrawal: %.2f\nRemaining balance carried forward: %.2f\n",
		result.QuarterID, result.ClosedDate.Format(time.RFC1123), result.WithdrawalAmount, result.RemainingBalance,
	)
	if _, err := n.jobs.EnqueueSendEmail(ctx, jobs.SendEmailPayload{
		To:      n.notifyTo,
		Subject: fmt.Sprintf("Quarter %s closed", result.QuarterID),
		Body:    body,
	}); err != nil {
		n.logger.Warn("enqueue close email", slog.Any("error", err))
	}
}

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

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, dashboard caching disabled", slog.Any("error", err))
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

	crmRepo := crm.NewRepository(pool)
	crmService := crm.NewService(crmRepo, logger)
	crmHandler := crmhttp.NewHandler(logger, crmService)

	store := quarter.NewStore(pool)
	aggregator := quarter.NewAggregator(crmRepo, store, logger)
	closer := quarter.NewCloser(crmRepo, store, aggregator, logger)

	kpiCache := kpi.NewCache(redisClient, cfg.KPICacheTTL)

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Warn("init job client", slog.Any("error", err))
		jobClient = nil
	} else {
		defer func() {
			if err := jobClient.Close(); err != nil {
				logger.Warn("job client close", slog.Any("error", err))
			}
		}()
	}
	closer.WithHook(closeNotifier{
		cache:    kpiCache,
		jobs:     jobClient,
		notifyTo: cfg.CloseNotifyTo,
		logger:   logger,
	})

	quarterHandler := quarterhttp.NewHandler(logger, aggregator, store, closer, kpiCache)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, logger)

	metrics := observability.NewMetrics()

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		CRMHandler:     crmHandler,
		QuarterHandler: quarterHandler,
		JobsHandler:    jobsHandler,
		Metrics:        metrics,
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
