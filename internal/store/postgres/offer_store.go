package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dkoval/gemwatch/internal/domain"
)

// OfferStore implements domain.OfferStore using PostgreSQL.
type OfferStore struct {
	pool *pgxpool.Pool
}

// NewOfferStore creates a new OfferStore backed by the given connection pool.
func NewOfferStore(pool *pgxpool.Pool) *OfferStore {
	return &OfferStore{pool: pool}
}

// Upsert inserts or merges a single offer keyed by token address. The merge
// runs as one atomic statement: listing columns are overwritten, detail-only
// columns coalesce with the stored value so a cycle without detail data never
// erases known fields, created_at survives the conflict, updated_at moves to
// NOW().
func (s *OfferStore) Upsert(ctx context.Context, o domain.Offer) error {
	const query = `
		INSERT INTO nft_offers (
			token_address, name, sale_contract, sale_price, sale_fee,
			sale_currency, max_offer_price, prev_owners_count,
			last_sale_price, last_sale_date, owner_address,
			royalties_address, royalty_amount, fee_total, full_price,
			currency, sale_type, nft_address, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8,
			$9, $10, $11,
			$12, $13, $14, $15,
			$16, $17, $18, NOW(), NOW()
		)
		ON CONFLICT (token_address) DO UPDATE SET
			name              = EXCLUDED.name,
			sale_contract     = EXCLUDED.sale_contract,
			sale_price        = EXCLUDED.sale_price,
			sale_fee          = EXCLUDED.sale_fee,
			sale_currency     = EXCLUDED.sale_currency,
			max_offer_price   = EXCLUDED.max_offer_price,
			prev_owners_count = EXCLUDED.prev_owners_count,
			last_sale_price   = EXCLUDED.last_sale_price,
			last_sale_date    = EXCLUDED.last_sale_date,
			owner_address     = EXCLUDED.owner_address,
			royalties_address = COALESCE(EXCLUDED.royalties_address, nft_offers.royalties_address),
			royalty_amount    = COALESCE(EXCLUDED.royalty_amount, nft_offers.royalty_amount),
			fee_total         = COALESCE(EXCLUDED.fee_total, nft_offers.fee_total),
			full_price        = COALESCE(EXCLUDED.full_price, nft_offers.full_price),
			currency          = COALESCE(EXCLUDED.currency, nft_offers.currency),
			sale_type         = COALESCE(EXCLUDED.sale_type, nft_offers.sale_type),
			nft_address       = COALESCE(EXCLUDED.nft_address, nft_offers.nft_address),
			updated_at        = NOW()`

	_, err := s.pool.Exec(ctx, query,
		o.TokenAddress, o.Name, o.SaleContract, o.SalePrice, o.SaleFee,
		o.SaleCurrency, o.MaxOfferPrice, o.PrevOwnersCount,
		o.LastSalePrice, o.LastSaleDate, o.OwnerAddress,
		o.RoyaltyAddress, o.RoyaltyAmount, o.FeeTotal, o.FullPrice,
		o.Currency, o.SaleType, o.NftAddress,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert offer %s: %w", o.TokenAddress, err)
	}
	return nil
}

const offerCols = `token_address, name, sale_contract, sale_price, sale_fee,
	sale_currency, max_offer_price, prev_owners_count,
	last_sale_price, last_sale_date, owner_address,
	royalties_address, royalty_amount, fee_total, full_price,
	currency, sale_type, nft_address, created_at, updated_at`

// scanOffer scans a single offer row.
func scanOffer(row pgx.Row) (domain.Offer, error) {
	var o domain.Offer
	err := row.Scan(
		&o.TokenAddress, &o.Name, &o.SaleContract, &o.SalePrice, &o.SaleFee,
		&o.SaleCurrency, &o.MaxOfferPrice, &o.PrevOwnersCount,
		&o.LastSalePrice, &o.LastSaleDate, &o.OwnerAddress,
		&o.RoyaltyAddress, &o.RoyaltyAmount, &o.FeeTotal, &o.FullPrice,
		&o.Currency, &o.SaleType, &o.NftAddress, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return domain.Offer{}, err
	}
	return o, nil
}

// GetByToken retrieves an offer by its token address.
func (s *OfferStore) GetByToken(ctx context.Context, tokenAddress string) (domain.Offer, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+offerCols+` FROM nft_offers WHERE token_address = $1`, tokenAddress)
	o, err := scanOffer(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Offer{}, domain.ErrNotFound
		}
		return domain.Offer{}, fmt.Errorf("postgres: get offer %s: %w", tokenAddress, err)
	}
	return o, nil
}

// TopByEffectivePrice returns up to limit offers with a non-null sale price,
// ordered ascending by sale_price + sale_fee. Ties break by insertion order.
func (s *OfferStore) TopByEffectivePrice(ctx context.Context, limit int) ([]domain.Offer, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+offerCols+`
		   FROM nft_offers
		  WHERE sale_price IS NOT NULL
		  ORDER BY sale_price + COALESCE(sale_fee, 0) ASC, id ASC
		  LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: top offers: %w", err)
	}
	defer rows.Close()

	return collectOffers(rows)
}

// ListWithSaleContract returns every offer carrying a sale contract address.
func (s *OfferStore) ListWithSaleContract(ctx context.Context) ([]domain.Offer, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+offerCols+` FROM nft_offers WHERE sale_contract IS NOT NULL ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list offers with sale contract: %w", err)
	}
	defer rows.Close()

	return collectOffers(rows)
}

// Count returns the total number of tracked offers.
func (s *OfferStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM nft_offers").Scan(&count); err != nil {
		return 0, fmt.Errorf("postgres: count offers: %w", err)
	}
	return count, nil
}

func collectOffers(rows pgx.Rows) ([]domain.Offer, error) {
	var offers []domain.Offer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan offer: %w", err)
		}
		offers = append(offers, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: offer rows: %w", err)
	}
	return offers, nil
}
