package audit

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkoval/gemwatch/internal/domain"
)

type fakeSaleData struct {
	data map[string]SaleData
	errs map[string]error
}

func (f *fakeSaleData) GetSaleData(ctx context.Context, contract string) (SaleData, error) {
	if err, ok := f.errs[contract]; ok {
		return SaleData{}, err
	}
	return f.data[contract], nil
}

type captureWriter struct {
	results []Result
}

func (w *captureWriter) Insert(ctx context.Context, r Result) error {
	w.results = append(w.results, r)
	return nil
}

type auditOfferStore struct {
	offers []domain.Offer
}

func (s *auditOfferStore) Upsert(ctx context.Context, o domain.Offer) error { return nil }
func (s *auditOfferStore) GetByToken(ctx context.Context, token string) (domain.Offer, error) {
	return domain.Offer{}, domain.ErrNotFound
}
func (s *auditOfferStore) TopByEffectivePrice(ctx context.Context, limit int) ([]domain.Offer, error) {
	return nil, nil
}
func (s *auditOfferStore) ListWithSaleContract(ctx context.Context) ([]domain.Offer, error) {
	return s.offers, nil
}
func (s *auditOfferStore) Count(ctx context.Context) (int64, error) {
	return int64(len(s.offers)), nil
}

func auditOffer(token, contract string, fullPrice, fee, royalty float64) domain.Offer {
	c := contract
	nft := "EQnft-" + token
	return domain.Offer{
		TokenAddress:  token,
		SaleContract:  &c,
		NftAddress:    &nft,
		FullPrice:     &fullPrice,
		FeeTotal:      &fee,
		RoyaltyAmount: &royalty,
	}
}

func matchingSaleData(token string) SaleData {
	return SaleData{
		SaleType:          "FIXP",
		NftAddress:        "EQnft-" + token,
		FullPriceNano:     3_500_000_000,
		MarketFeeNano:     175_000_000,
		RoyaltyAmountNano: 250_000_000,
	}
}

func TestAuditorVerifiesMatchingOffer(t *testing.T) {
	store := &auditOfferStore{offers: []domain.Offer{
		auditOffer("t1", "EQsale1", 3.5, 0.175, 0.25),
	}}
	rpc := &fakeSaleData{data: map[string]SaleData{"EQsale1": matchingSaleData("t1")}}
	writer := &captureWriter{}

	a := NewAuditor(rpc, store, writer, 0, slog.Default())
	verified, failed, err := a.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, verified)
	assert.Equal(t, 0, failed)
	require.Len(t, writer.results, 1)

	r := writer.results[0]
	assert.True(t, r.Verified)
	assert.Empty(t, r.DescriptionError)
	assert.Equal(t, "t1", r.TokenAddress)
	assert.Equal(t, "EQsale1", r.SaleContract)
	assert.Equal(t, "FIXP", r.SaleType)
	require.NotNil(t, r.FullPriceTons)
	assert.InDelta(t, 3.5, *r.FullPriceTons, 1e-9)
}

func TestAuditorRecordsPriceMismatch(t *testing.T) {
	store := &auditOfferStore{offers: []domain.Offer{
		auditOffer("t1", "EQsale1", 9.99, 0.175, 0.25),
	}}
	rpc := &fakeSaleData{data: map[string]SaleData{"EQsale1": matchingSaleData("t1")}}
	writer := &captureWriter{}

	a := NewAuditor(rpc, store, writer, 0, slog.Default())
	verified, failed, err := a.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, verified)
	assert.Equal(t, 1, failed)
	require.Len(t, writer.results, 1)
	assert.False(t, writer.results[0].Verified)
	assert.Contains(t, writer.results[0].DescriptionError, "full price")
}

func TestAuditorRecordsCompletedSale(t *testing.T) {
	data := matchingSaleData("t1")
	data.IsComplete = true
	store := &auditOfferStore{offers: []domain.Offer{
		auditOffer("t1", "EQsale1", 3.5, 0.175, 0.25),
	}}
	rpc := &fakeSaleData{data: map[string]SaleData{"EQsale1": data}}
	writer := &captureWriter{}

	a := NewAuditor(rpc, store, writer, 0, slog.Default())
	_, failed, err := a.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, failed)
	assert.Contains(t, writer.results[0].DescriptionError, "complete")
}

func TestAuditorKeepsWalkingAfterRPCError(t *testing.T) {
	store := &auditOfferStore{offers: []domain.Offer{
		auditOffer("t1", "EQsale1", 3.5, 0.175, 0.25),
		auditOffer("t2", "EQsale2", 3.5, 0.175, 0.25),
	}}
	rpc := &fakeSaleData{
		data: map[string]SaleData{"EQsale2": matchingSaleData("t2")},
		errs: map[string]error{"EQsale1": errors.New("gateway timeout")},
	}
	writer := &captureWriter{}

	a := NewAuditor(rpc, store, writer, 0, slog.Default())
	verified, failed, err := a.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, verified)
	assert.Equal(t, 1, failed)
	require.Len(t, writer.results, 2)
	assert.Contains(t, writer.results[0].DescriptionError, "gateway timeout")
	assert.True(t, writer.results[1].Verified)
}

func TestTruncate2(t *testing.T) {
	assert.InDelta(t, 3.51, truncate2(3.519), 1e-9)
	assert.InDelta(t, 3.5, truncate2(3.5), 1e-9)
}
