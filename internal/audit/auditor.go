package audit

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/dkoval/gemwatch/internal/domain"
)

// priceTolerance absorbs float noise when comparing decoded nanoton amounts
// against stored decimal values.
const priceTolerance = 1e-6

// SaleDataFetcher reads one sale contract's state.
type SaleDataFetcher interface {
	GetSaleData(ctx context.Context, contractAddress string) (SaleData, error)
}

// Auditor walks every stored offer that carries a sale contract and records
// a verification row for each. A row that cannot be fetched or decoded is
// still recorded, unverified, with the failure in the description.
type Auditor struct {
	rpc    SaleDataFetcher
	offers domain.OfferStore
	writer ResultWriter
	delay  time.Duration
	logger *slog.Logger
}

// NewAuditor creates an Auditor over the given fetcher and writer.
func NewAuditor(rpc SaleDataFetcher, offers domain.OfferStore, writer ResultWriter, delay time.Duration, logger *slog.Logger) *Auditor {
	return &Auditor{
		rpc:    rpc,
		offers: offers,
		writer: writer,
		delay:  delay,
		logger: logger.With(slog.String("component", "auditor")),
	}
}

// Run audits the full set once and returns the counts. One contract's
// failure never stops the walk.
func (a *Auditor) Run(ctx context.Context) (verified, failed int, err error) {
	offers, err := a.offers.ListWithSaleContract(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("audit: list offers: %w", err)
	}
	a.logger.Info("audit starting", slog.Int("contracts", len(offers)))

	for i, offer := range offers {
		if ctx.Err() != nil {
			return verified, failed, ctx.Err()
		}
		if i > 0 && a.delay > 0 {
			select {
			case <-ctx.Done():
				return verified, failed, ctx.Err()
			case <-time.After(a.delay):
			}
		}

		result := a.auditOne(ctx, offer)
		if result.Verified {
			verified++
		} else {
			failed++
			a.logger.Warn("offer failed verification",
				slog.String("token", offer.TokenAddress),
				slog.String("reason", result.DescriptionError),
			)
		}
		if err := a.writer.Insert(ctx, result); err != nil {
			return verified, failed, err
		}
	}

	a.logger.Info("audit complete", slog.Int("verified", verified), slog.Int("failed", failed))
	return verified, failed, nil
}

func (a *Auditor) auditOne(ctx context.Context, offer domain.Offer) Result {
	result := Result{
		TokenAddress: offer.TokenAddress,
		ProcessedAt:  time.Now().UTC(),
	}
	if offer.SaleContract != nil {
		result.SaleContract = *offer.SaleContract
	}

	data, err := a.rpc.GetSaleData(ctx, result.SaleContract)
	if err != nil {
		result.DescriptionError = err.Error()
		return result
	}

	result.SaleType = data.SaleType
	result.IsComplete = data.IsComplete
	if data.CreatedAt > 0 {
		t := time.Unix(data.CreatedAt, 0).UTC()
		result.ContractCreatedAt = &t
	}
	result.MarketplaceAddress = data.MarketplaceAddress
	result.NftAddress = data.NftAddress
	result.NftOwnerAddress = data.NftOwnerAddress

	fullPrice := truncate2(float64(data.FullPriceNano) / domain.NanotonsPerTon)
	fee := float64(data.MarketFeeNano) / domain.NanotonsPerTon
	royalty := float64(data.RoyaltyAmountNano) / domain.NanotonsPerTon
	result.FullPriceTons = &fullPrice
	result.MarketFeeTons = &fee
	result.RoyaltyAmountTons = &royalty

	var mismatches []string
	if data.IsComplete {
		mismatches = append(mismatches, "sale already complete")
	}
	if offer.NftAddress != nil && data.NftAddress != *offer.NftAddress {
		mismatches = append(mismatches, fmt.Sprintf("nft address %s != %s", data.NftAddress, *offer.NftAddress))
	}
	if offer.OwnerAddress != "" && data.NftOwnerAddress != offer.OwnerAddress {
		mismatches = append(mismatches, fmt.Sprintf("owner %s != %s", data.NftOwnerAddress, offer.OwnerAddress))
	}
	// The full price is truncated on both sides; fees and royalties are
	// compared as stored.
	truncatedStored := offer.FullPrice
	if truncatedStored != nil {
		v := truncate2(*truncatedStored)
		truncatedStored = &v
	}
	mismatches = appendPriceMismatch(mismatches, "full price", fullPrice, truncatedStored)
	mismatches = appendPriceMismatch(mismatches, "market fee", fee, offer.FeeTotal)
	mismatches = appendPriceMismatch(mismatches, "royalty", royalty, offer.RoyaltyAmount)

	if len(mismatches) > 0 {
		result.DescriptionError = strings.Join(mismatches, "; ")
		return result
	}
	result.Verified = true
	return result
}

func appendPriceMismatch(mismatches []string, label string, chain float64, stored *float64) []string {
	if stored == nil {
		return mismatches
	}
	if math.Abs(chain-*stored) > priceTolerance {
		return append(mismatches, fmt.Sprintf("%s %v != %v", label, chain, *stored))
	}
	return mismatches
}

// truncate2 drops everything past two decimal places without rounding.
func truncate2(v float64) float64 {
	return math.Trunc(v*100) / 100
}
