// Package pipeline drives the ingestion cycles: listing fetch, bounded
// detail fan-out, merge into the store, and the jittered schedule around it.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dkoval/gemwatch/internal/domain"
)

// ListFetcher retrieves the current batch of item summaries. The raw response
// body is passed through for snapshot archival.
type ListFetcher interface {
	FetchListing(ctx context.Context, now time.Time) ([]domain.Offer, []byte, error)
}

// DetailFetcher retrieves and parses one item's detail page.
type DetailFetcher interface {
	FetchDetail(ctx context.Context, tokenAddress string) (domain.Detail, error)
}

// Collector executes one full ingestion cycle.
type Collector struct {
	list      ListFetcher
	detail    DetailFetcher
	store     domain.OfferStore
	cache     domain.DetailCache // nil disables caching
	cacheTTL  time.Duration
	snapshots *Snapshotter // nil disables archival
	workers   int
	logger    *slog.Logger
}

// NewCollector creates a Collector. cache and snapshots may be nil.
func NewCollector(
	list ListFetcher,
	detail DetailFetcher,
	store domain.OfferStore,
	cache domain.DetailCache,
	cacheTTL time.Duration,
	snapshots *Snapshotter,
	workers int,
	logger *slog.Logger,
) *Collector {
	if workers < 1 {
		workers = 1
	}
	return &Collector{
		list:      list,
		detail:    detail,
		store:     store,
		cache:     cache,
		cacheTTL:  cacheTTL,
		snapshots: snapshots,
		workers:   workers,
		logger:    logger.With(slog.String("component", "collector")),
	}
}

// RunCycle fetches the listing, fans out detail fetches with at most
// `workers` in flight, and merges each item into the store as its result
// completes. A single item's failure is logged and counted but never fails
// siblings or the cycle; the item is simply retried next cycle. The returned
// counts are the cycle's throughput metric.
func (c *Collector) RunCycle(ctx context.Context) (processed, failed int, err error) {
	offers, raw, err := c.list.FetchListing(ctx, time.Now().UTC())
	if err != nil {
		return 0, 0, fmt.Errorf("pipeline: listing: %w", err)
	}
	if len(offers) == 0 {
		c.logger.Info("empty listing, nothing to merge")
		return 0, 0, nil
	}

	if c.snapshots != nil {
		if snapErr := c.snapshots.Store(ctx, raw); snapErr != nil {
			c.logger.Warn("snapshot archival failed", slog.String("error", snapErr.Error()))
		}
	}

	var okCount, errCount atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)

	for _, offer := range offers {
		offer := offer
		g.Go(func() error {
			if mergeErr := c.processOffer(gctx, offer); mergeErr != nil {
				if gctx.Err() != nil {
					return nil
				}
				errCount.Add(1)
				c.logger.Warn("offer dropped this cycle",
					slog.String("token", offer.TokenAddress),
					slog.String("error", mergeErr.Error()),
				)
				return nil
			}
			okCount.Add(1)
			return nil
		})
	}

	// Workers never return errors; Wait only surfaces context cancellation.
	_ = g.Wait()
	if ctx.Err() != nil {
		return int(okCount.Load()), int(errCount.Load()), ctx.Err()
	}

	return int(okCount.Load()), int(errCount.Load()), nil
}

// processOffer enriches one listing entry with detail data and upserts it.
// A missing structured block (domain.ErrNoDetail) still merges the listing
// fields; the store's coalescing upsert keeps previously known detail.
func (c *Collector) processOffer(ctx context.Context, offer domain.Offer) error {
	detail, err := c.fetchDetail(ctx, offer.TokenAddress)
	switch {
	case err == nil:
		offer.ApplyDetail(detail)
	case errors.Is(err, domain.ErrNoDetail):
		c.logger.Debug("no detail this cycle", slog.String("token", offer.TokenAddress))
	default:
		return err
	}

	if err := c.store.Upsert(ctx, offer); err != nil {
		return err
	}
	c.logger.Debug("offer merged", slog.String("token", offer.TokenAddress))
	return nil
}

// fetchDetail consults the cache before going to the network and caches
// fresh parses on the way back.
func (c *Collector) fetchDetail(ctx context.Context, tokenAddress string) (domain.Detail, error) {
	if c.cache != nil {
		if d, found, err := c.cache.Get(ctx, tokenAddress); err != nil {
			c.logger.Warn("detail cache read failed", slog.String("error", err.Error()))
		} else if found {
			return d, nil
		}
	}

	d, err := c.detail.FetchDetail(ctx, tokenAddress)
	if err != nil {
		return domain.Detail{}, err
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, tokenAddress, d, c.cacheTTL); err != nil {
			c.logger.Warn("detail cache write failed", slog.String("error", err.Error()))
		}
	}
	return d, nil
}
