package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dkoval/gemwatch/internal/audit"
)

// VerifiedStore persists the results of the on-chain audit job.
type VerifiedStore struct {
	pool *pgxpool.Pool
}

// NewVerifiedStore creates a new VerifiedStore backed by the given pool.
func NewVerifiedStore(pool *pgxpool.Pool) *VerifiedStore {
	return &VerifiedStore{pool: pool}
}

// Insert appends one verification result. The table is append-only: repeated
// audit runs keep their own rows, timestamped by processed_at.
func (s *VerifiedStore) Insert(ctx context.Context, r audit.Result) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO nft_offers_verified (
			token_address, sale_contract, sale_type, is_complete,
			contract_created_at, marketplace_address, nft_address,
			nft_owner_address, full_price_tons, market_fee_tons,
			royalty_amount_tons, verify, description_error, processed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		r.TokenAddress, r.SaleContract, r.SaleType, r.IsComplete,
		r.ContractCreatedAt, r.MarketplaceAddress, r.NftAddress,
		r.NftOwnerAddress, r.FullPriceTons, r.MarketFeeTons,
		r.RoyaltyAmountTons, r.Verified, r.DescriptionError, r.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert verified row %s: %w", r.SaleContract, err)
	}
	return nil
}
