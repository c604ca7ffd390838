package main

import (
	"context"

	"github.com/robfig/cron/v3"

	"github.com/meterly/api/internal/config"
	"github.com/meterly/api/internal/infra/jobs"
	"github.com/meterly/api/pkg/logger"
)

// Workers bundles the background billing machinery: the asynq worker
// that processes renewal and expiry tasks, and the cron-driven sweeper
// that enqueues them.
type Workers struct {
	jobClient *jobs.Client
	worker    *jobs.Worker
	sweeper   *jobs.Sweeper
	cron      *cron.Cron
}

// WorkerDeps carries everything worker construction needs.
type WorkerDeps struct {
	Config   *config.Config
	Log      *logger.Logger
	Repos    *Repositories
	Services *Services
}

// NewWorkers builds the job client, task worker and sweeper schedule.
func NewWorkers(deps *WorkerDeps) (*Workers, error) {
	cfg := deps.Config
	log := deps.Log

	jobClient, err := jobs.NewClient(jobs.ClientConfig{
		RedisAddr:     cfg.Redis.Addr(),
		RedisPassword: cfg.Redis.Password,
		RedisDB:       cfg.Redis.DB,
	}, log)
	if err != nil {
		return nil, err
	}

	worker := jobs.NewWorker(jobs.WorkerConfig{
		RedisAddr:     cfg.Redis.Addr(),
		RedisPassword: cfg.Redis.Password,
		RedisDB:       cfg.Redis.DB,
		Concurrency:   cfg.Worker.Concurrency,
		Queues:        cfg.Worker.Queues,
	}, deps.Services.Subscription, log)

	sweeper := jobs.NewSweeper(deps.Repos.Subscription, jobClient, jobs.SweeperConfig{
		RenewalLookahead: cfg.Worker.RenewalLookahead,
		GracePeriodDays:  cfg.Billing.GracePeriodDays,
	}, log)

	return &Workers{
		jobClient: jobClient,
		worker:    worker,
		sweeper:   sweeper,
		cron:      cron.New(),
	}, nil
}

// Start launches the task worker and registers the sweep schedules.
func (w *Workers) Start(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	if err := w.worker.Start(); err != nil {
		return err
	}

	if _, err := w.cron.AddFunc(cfg.Worker.RenewalCron, func() {
		if err := w.sweeper.SweepRenewals(ctx); err != nil {
			log.Error("renewal sweep failed", "error", err)
		}
	}); err != nil {
		return err
	}
	if _, err := w.cron.AddFunc(cfg.Worker.ExpiryCron, func() {
		if err := w.sweeper.SweepExpiries(ctx); err != nil {
			log.Error("expiry sweep failed", "error", err)
		}
	}); err != nil {
		return err
	}
	w.cron.Start()

	log.Info("workers started",
		"renewal_cron", cfg.Worker.RenewalCron,
		"expiry_cron", cfg.Worker.ExpiryCron,
		"concurrency", cfg.Worker.Concurrency,
	)
	return nil
}

// Stop halts the sweep schedule, drains in-flight tasks and closes the
// job client.
func (w *Workers) Stop(log *logger.Logger) {
	cronCtx := w.cron.Stop()
	<-cronCtx.Done()

	w.worker.Stop()
	if err := w.jobClient.Close(); err != nil {
		log.Error("failed to close job client", "error", err)
	}
	log.Info("workers stopped")
}
