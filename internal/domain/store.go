package domain

import (
	"context"
	"time"
)

// OfferStore is the persistent record-per-item table. Upsert is an idempotent
// keyed merge: the first write sets created_at, every later write refreshes
// updated_at and the observed fields while coalescing detail-only columns.
type OfferStore interface {
	Upsert(ctx context.Context, o Offer) error
	GetByToken(ctx context.Context, tokenAddress string) (Offer, error)
	// TopByEffectivePrice returns up to limit offers with a non-null sale
	// price, ordered ascending by sale_price + sale_fee, ties broken by
	// insertion order.
	TopByEffectivePrice(ctx context.Context, limit int) ([]Offer, error)
	// ListWithSaleContract returns every offer carrying a sale contract
	// address, the input set of the on-chain audit job.
	ListWithSaleContract(ctx context.Context) ([]Offer, error)
	Count(ctx context.Context) (int64, error)
}

// AlertStore persists per-item per-tier alert marks. MarkIfNew is the
// at-most-once decision point: it returns true exactly once per (token, tier).
type AlertStore interface {
	MarkIfNew(ctx context.Context, tokenAddress string, tier AlertTier, at time.Time) (bool, error)
}

// RecipientStore persists the notification target set across restarts.
type RecipientStore interface {
	Add(ctx context.Context, chatID int64, at time.Time) error
	List(ctx context.Context) ([]Recipient, error)
}

// DetailCache is an optional read-through cache for parsed detail payloads,
// used to spare repeated detail-page fetches inside the cache TTL.
type DetailCache interface {
	Get(ctx context.Context, tokenAddress string) (Detail, bool, error)
	Set(ctx context.Context, tokenAddress string, d Detail, ttl time.Duration) error
}

// LockManager serializes ingestion cycles across process instances. Acquire
// returns ErrLockHeld when another instance holds the key.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// BlobWriter stores raw cycle snapshots in an object store. PutMultipart
// uploads the payload in concurrent parts and is meant for payloads too
// large for a single-shot request.
type BlobWriter interface {
	Put(ctx context.Context, path string, data []byte, contentType string) error
	PutMultipart(ctx context.Context, path string, data []byte, contentType string, partSize int64) error
}
