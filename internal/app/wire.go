package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	s3blob "github.com/dkoval/gemwatch/internal/blob/s3"
	"github.com/dkoval/gemwatch/internal/cache/redis"
	"github.com/dkoval/gemwatch/internal/config"
	"github.com/dkoval/gemwatch/internal/domain"
	"github.com/dkoval/gemwatch/internal/marketplace"
	"github.com/dkoval/gemwatch/internal/store/postgres"
	"github.com/dkoval/gemwatch/internal/transport"
)

// Dependencies bundles everything the operating modes need. It is built by
// Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Transport   *transport.Client
	Marketplace *marketplace.Client

	OfferStore     domain.OfferStore
	AlertStore     domain.AlertStore
	RecipientStore domain.RecipientStore
	VerifiedStore  *postgres.VerifiedStore

	DetailCache domain.DetailCache // nil when the cache is disabled
	DetailTTL   time.Duration
	CycleLock   domain.LockManager // nil when the cache is disabled
	BlobWriter  domain.BlobWriter  // nil when snapshot archival is disabled
}

// needsIngestion reports whether the mode runs the listing pipeline and
// therefore needs the marketplace-facing pieces.
func needsIngestion(mode string) bool {
	switch mode {
	case "collect", "full":
		return true
	default:
		return false
	}
}

// Wire constructs the concrete dependency implementations from cfg and
// returns them with a cleanup function to call on shutdown.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}
	mode := strings.ToLower(cfg.Mode)

	// Every mode reads or writes the database.
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.OfferStore = postgres.NewOfferStore(pool)
	deps.AlertStore = postgres.NewAlertStore(pool)
	deps.RecipientStore = postgres.NewRecipientStore(pool)
	deps.VerifiedStore = postgres.NewVerifiedStore(pool)

	// One shared HTTP client keeps the rate ceiling global across the
	// listing, detail, and RPC calls.
	proxyURL := ""
	if cfg.Transport.EnableProxy {
		proxyURL = cfg.Transport.ProxyURL
	}
	deps.Transport, err = transport.New(transport.Config{
		ConnectTimeout: cfg.Transport.ConnectTimeout.Duration,
		ReadTimeout:    cfg.Transport.ReadTimeout.Duration,
		RetryAttempts:  cfg.Transport.RetryAttempts,
		RetryBase:      cfg.Transport.RetryBase.Duration,
		RetryMax:       cfg.Transport.RetryMax.Duration,
		RateLimitRPS:   cfg.Transport.RateLimitRPS,
		RateLimitBurst: cfg.Transport.RateLimitBurst,
		ProxyURL:       proxyURL,
		UserAgents:     cfg.Transport.UserAgents,
	}, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: transport: %w", err)
	}

	deps.Marketplace = marketplace.NewClient(marketplace.Config{
		GraphqlURL:        cfg.Marketplace.GraphqlURL,
		SiteURL:           cfg.Marketplace.SiteURL,
		CollectionAddress: cfg.Marketplace.CollectionAddress,
		Count:             cfg.Marketplace.Count,
		Sha256Hash:        cfg.Marketplace.Sha256Hash,
		XGGClient:         cfg.Marketplace.XGGClient,
		SaleKeyPrefix:     cfg.Marketplace.SaleKeyPrefix,
		ItemKeyPrefix:     cfg.Marketplace.ItemKeyPrefix,
		RequestDelayMin:   cfg.Marketplace.RequestDelayMin.Duration,
		RequestDelayMax:   cfg.Marketplace.RequestDelayMax.Duration,
	}, deps.Transport, logger)

	if needsIngestion(mode) && cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })
		deps.DetailCache = redis.NewDetailCache(redisClient)
		deps.DetailTTL = cfg.Redis.DetailTTL.Duration
		deps.CycleLock = redis.NewLockManager(redisClient)
	}

	if needsIngestion(mode) && cfg.Pipeline.SnapshotEnabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		// Fail at startup rather than on the first cycle's upload.
		if err := s3Client.Health(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.BlobWriter = s3blob.NewWriter(s3Client)
	}

	return deps, cleanup, nil
}
