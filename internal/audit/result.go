// Package audit re-checks stored offers against the chain: it calls the sale
// contract's getter through an RPC gateway, decodes the returned TVM stack,
// and records whether the on-chain figures match what the marketplace showed.
package audit

import (
	"context"
	"time"
)

// Result is one verification outcome for one sale contract.
type Result struct {
	TokenAddress       string
	SaleContract       string
	SaleType           string
	IsComplete         bool
	ContractCreatedAt  *time.Time
	MarketplaceAddress string
	NftAddress         string
	NftOwnerAddress    string
	FullPriceTons      *float64
	MarketFeeTons      *float64
	RoyaltyAmountTons  *float64
	Verified           bool
	DescriptionError   string
	ProcessedAt        time.Time
}

// ResultWriter persists verification outcomes. Rows are append-only.
type ResultWriter interface {
	Insert(ctx context.Context, r Result) error
}
