package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/Sharoon166/reverie/internal/app"
	"github.com/Sharoon166/reverie/internal/crm"
	jobmetrics "github.com/Sharoon166/reverie/internal/jobs"
	"github.com/Sharoon166/reverie/internal/kpi"
	"github.com/Sharoon166/reverie/internal/platform/cache"
	"github.com/Sharoon166/reverie/internal/platform/db"
	"github.com/Sharoon166/reverie/internal/quarter"
	"github.com/Sharoon166/reverie/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	crmRepo := crm.NewRepository(pool)
	store := quarter.NewStore(pool)
	aggregator := quarter.NewAggregator(crmRepo, store, logger)
	kpiCache := kpi.NewCache(redisClient, cfg.KPICacheTTL)

	metrics := jobmetrics.NewMetrics(nil)
	warmupJob := jobs.NewKPIWarmupJob(aggregator, store, kpiCache, logger, metrics)
	mailJob := jobs.NewMailSendJob(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, logger, metrics)

	warmupTask, err := jobs.NewKPIWarmupTask(jobs.KPIWarmupPayload{})
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskKPIWarmup, Handler: warmupJob.Handle},
			{Type: jobs.TaskTypeSendEmail, Handler: mailJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "45 1 * * *", Task: warmupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
