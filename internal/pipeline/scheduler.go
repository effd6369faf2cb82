package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"

	"github.com/dkoval/gemwatch/internal/domain"
)

// cycleLockKey guards the ingestion cycle across process instances.
const cycleLockKey = "ingest-cycle"

// SchedulerConfig holds the cycle cadence parameters.
type SchedulerConfig struct {
	// Interval is the base sleep between cycles.
	Interval time.Duration
	// Jitter widens each sleep by uniform(0, Interval*Jitter) to avoid
	// aligning with the marketplace's own refresh cadence.
	Jitter float64
	// MaxCycles stops the scheduler after N completed cycles; 0 runs forever.
	MaxCycles int
	// StatsInterval is how often the cumulative stats line is logged.
	StatsInterval time.Duration
}

// TrackedCounter reports how many offers the persistent store holds, for the
// periodic stats line.
type TrackedCounter interface {
	Count(ctx context.Context) (int64, error)
}

// Scheduler drives repeated ingestion cycles until the context is cancelled
// or the configured cycle budget runs out. Cancellation is cooperative: an
// in-flight cycle finishes, and the stop lands at the next sleep boundary.
type Scheduler struct {
	collector *Collector
	stats     *Stats
	counter   TrackedCounter
	lock      domain.LockManager // nil disables cross-instance locking
	cfg       SchedulerConfig
	logger    *slog.Logger
}

// NewScheduler creates a Scheduler around the given collector. counter and
// lock may be nil.
func NewScheduler(collector *Collector, stats *Stats, counter TrackedCounter, lock domain.LockManager, cfg SchedulerConfig, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		collector: collector,
		stats:     stats,
		counter:   counter,
		lock:      lock,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "scheduler")),
	}
}

// Run executes cycles until cancellation or MaxCycles. A failed cycle is
// logged and counted, never fatal; the process is meant to run unattended.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler starting",
		slog.Duration("interval", s.cfg.Interval),
		slog.Float64("jitter", s.cfg.Jitter),
		slog.Int("max_cycles", s.cfg.MaxCycles),
	)

	cycle := 0
	for {
		if ctx.Err() != nil {
			s.logger.Info("scheduler stopped", slog.Int("cycles", cycle))
			return ctx.Err()
		}

		cycle++
		start := time.Now()
		s.logger.Info("cycle starting", slog.Int("cycle", cycle))

		processed, failed, err := s.runLocked(ctx)
		took := time.Since(start)

		s.stats.AddOffers(processed)
		s.stats.AddErrors(failed)
		switch {
		case err != nil && ctx.Err() != nil:
			s.logger.Info("cycle interrupted", slog.Int("cycle", cycle))
			return ctx.Err()
		case err != nil:
			s.stats.AddErrors(1)
			s.logger.Error("cycle failed",
				slog.Int("cycle", cycle),
				slog.String("error", err.Error()),
			)
		default:
			s.logger.Info("cycle complete",
				slog.Int("cycle", cycle),
				slog.Int("processed", processed),
				slog.Int("failed", failed),
				slog.Duration("took", took),
			)
		}
		s.stats.AddCycle(took, time.Now())

		if s.stats.ShouldLog(s.cfg.StatsInterval, time.Now()) {
			s.logStats(ctx)
		}

		if s.cfg.MaxCycles > 0 && cycle >= s.cfg.MaxCycles {
			s.logger.Info("cycle budget reached, stopping", slog.Int("cycles", cycle))
			return nil
		}

		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped", slog.Int("cycles", cycle))
			return ctx.Err()
		case <-time.After(s.sleepFor()):
		}
	}
}

// runLocked runs one cycle under the cross-instance lock when one is
// configured. A held lock means another instance is mid-cycle; this instance
// skips the cycle rather than double-fetching.
func (s *Scheduler) runLocked(ctx context.Context) (processed, failed int, err error) {
	if s.lock == nil {
		return s.collector.RunCycle(ctx)
	}

	ttl := 2 * s.cfg.Interval
	if ttl <= 0 {
		ttl = time.Minute
	}
	unlock, err := s.lock.Acquire(ctx, cycleLockKey, ttl)
	if errors.Is(err, domain.ErrLockHeld) {
		s.logger.Info("cycle skipped, lock held by another instance")
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, err
	}
	defer unlock()

	return s.collector.RunCycle(ctx)
}

// sleepFor returns the jittered inter-cycle delay.
func (s *Scheduler) sleepFor() time.Duration {
	d := s.cfg.Interval
	if s.cfg.Jitter > 0 {
		d += time.Duration(rand.Float64() * s.cfg.Jitter * float64(s.cfg.Interval))
	}
	return d
}

func (s *Scheduler) logStats(ctx context.Context) {
	snap := s.stats.Snapshot(time.Now())

	// -1 marks an unavailable total so the line stays parseable.
	tracked := int64(-1)
	if s.counter != nil {
		n, err := s.counter.Count(ctx)
		if err != nil {
			s.logger.Warn("tracked count unavailable", slog.String("error", err.Error()))
		} else {
			tracked = n
		}
	}

	s.logger.Info("cumulative statistics",
		slog.Duration("uptime", snap.Uptime),
		slog.Int("cycles", snap.CyclesCompleted),
		slog.Int("offers", snap.OffersProcessed),
		slog.Int("errors", snap.ErrorsTotal),
		slog.Int64("tracked_offers", tracked),
		slog.Duration("avg_cycle", snap.AvgCycleTime),
		slog.Duration("last_cycle_took", snap.LastCycleTook),
	)
}
