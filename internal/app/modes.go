package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dkoval/gemwatch/internal/audit"
	"github.com/dkoval/gemwatch/internal/notify"
	"github.com/dkoval/gemwatch/internal/pipeline"
)

// CollectMode runs the ingestion scheduler until cancellation or the
// configured cycle budget.
func (a *App) CollectMode(ctx context.Context, deps *Dependencies) error {
	scheduler := a.buildScheduler(deps)
	if err := scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// NotifyMode runs the floor notifier loop until cancellation.
func (a *App) NotifyMode(ctx context.Context, deps *Dependencies) error {
	notifier := a.buildNotifier(deps)
	if err := notifier.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// AuditMode runs one full on-chain verification pass and exits.
func (a *App) AuditMode(ctx context.Context, deps *Dependencies) error {
	rpc := audit.NewRPCClient(deps.Transport, audit.RPCConfig{
		URL:    a.cfg.Audit.RPCURL,
		APIKey: a.cfg.Audit.APIKey,
		Method: a.cfg.Audit.Method,
	})
	auditor := audit.NewAuditor(rpc, deps.OfferStore, deps.VerifiedStore,
		a.cfg.Audit.RequestDelay.Duration, a.logger)

	verified, failed, err := auditor.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	a.logger.Info("audit pass finished",
		slog.Int("verified", verified),
		slog.Int("failed", failed),
	)
	return nil
}

// FullMode runs ingestion and notification together; either one stopping
// with an error brings down the other.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	scheduler := a.buildScheduler(deps)
	notifier := a.buildNotifier(deps)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return scheduler.Run(gctx) })
	g.Go(func() error { return notifier.Run(gctx) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (a *App) buildScheduler(deps *Dependencies) *pipeline.Scheduler {
	var snapshots *pipeline.Snapshotter
	if deps.BlobWriter != nil {
		snapshots = pipeline.NewSnapshotter(deps.BlobWriter, a.logger)
	}

	collector := pipeline.NewCollector(
		deps.Marketplace,
		deps.Marketplace,
		deps.OfferStore,
		deps.DetailCache,
		deps.DetailTTL,
		snapshots,
		a.cfg.Pipeline.Workers,
		a.logger,
	)
	stats := pipeline.NewStats(time.Now())
	return pipeline.NewScheduler(collector, stats, deps.OfferStore, deps.CycleLock, pipeline.SchedulerConfig{
		Interval:      a.cfg.Pipeline.CycleInterval.Duration,
		Jitter:        a.cfg.Pipeline.CycleJitter,
		MaxCycles:     a.cfg.Pipeline.MaxCycles,
		StatsInterval: a.cfg.Pipeline.StatsInterval.Duration,
	}, a.logger)
}

func (a *App) buildNotifier(deps *Dependencies) *notify.FloorNotifier {
	bot := notify.NewTelegramBot(a.cfg.Notify.BotToken, a.cfg.Notify.APIBase)
	registry := notify.NewRegistry(bot, deps.RecipientStore, a.logger)
	return notify.NewFloorNotifier(
		bot,
		registry,
		deps.OfferStore,
		deps.AlertStore,
		deps.Marketplace.ItemURL,
		notify.FloorNotifierConfig{
			Interval:    a.cfg.Notify.Interval.Duration,
			TrashCount:  a.cfg.Notify.TrashCount,
			HalfFactor:  a.cfg.Notify.HalfFactor,
			SuperFactor: a.cfg.Notify.SuperFactor,
		},
		a.logger,
	)
}
