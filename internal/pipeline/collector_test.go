package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkoval/gemwatch/internal/domain"
)

type fakeList struct {
	mu      sync.Mutex
	calls   int
	offers  []domain.Offer
	raw     []byte
	listErr error
}

func (f *fakeList) FetchListing(ctx context.Context, now time.Time) ([]domain.Offer, []byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.offers, f.raw, f.listErr
}

func (f *fakeList) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeDetail struct {
	mu      sync.Mutex
	details map[string]domain.Detail
	errs    map[string]error
	calls   map[string]int
}

func (f *fakeDetail) FetchDetail(ctx context.Context, token string) (domain.Detail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[token]++
	if err, ok := f.errs[token]; ok {
		return domain.Detail{}, err
	}
	return f.details[token], nil
}

type fakeStore struct {
	mu       sync.Mutex
	upserted map[string]domain.Offer
}

func (f *fakeStore) Upsert(ctx context.Context, o domain.Offer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upserted == nil {
		f.upserted = map[string]domain.Offer{}
	}
	f.upserted[o.TokenAddress] = o
	return nil
}

func (f *fakeStore) GetByToken(ctx context.Context, token string) (domain.Offer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.upserted[token]
	if !ok {
		return domain.Offer{}, domain.ErrNotFound
	}
	return o, nil
}

func (f *fakeStore) TopByEffectivePrice(ctx context.Context, limit int) ([]domain.Offer, error) {
	return nil, nil
}

func (f *fakeStore) ListWithSaleContract(ctx context.Context) ([]domain.Offer, error) {
	return nil, nil
}

func (f *fakeStore) Count(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.upserted)), nil
}

type memCache struct {
	mu   sync.Mutex
	data map[string]domain.Detail
	sets int
	gets int
}

func (m *memCache) Get(ctx context.Context, token string) (domain.Detail, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	d, ok := m.data[token]
	return d, ok, nil
}

func (m *memCache) Set(ctx context.Context, token string, d domain.Detail, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = map[string]domain.Detail{}
	}
	m.data[token] = d
	m.sets++
	return nil
}

func listingOffers(tokens ...string) []domain.Offer {
	out := make([]domain.Offer, 0, len(tokens))
	for _, tok := range tokens {
		price := 1.0
		out = append(out, domain.Offer{TokenAddress: tok, SalePrice: &price})
	}
	return out
}

func TestRunCycleFailureIsolation(t *testing.T) {
	list := &fakeList{offers: listingOffers("t1", "t2", "t3", "t4", "t5")}
	detail := &fakeDetail{
		errs: map[string]error{"t3": errors.New("connection reset")},
	}
	store := &fakeStore{}

	c := NewCollector(list, detail, store, nil, 0, nil, 2, slog.Default())
	processed, failed, err := c.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, processed)
	assert.Equal(t, 1, failed)
	assert.Len(t, store.upserted, 4)
	assert.NotContains(t, store.upserted, "t3")
}

func TestRunCycleNoDetailStillMerges(t *testing.T) {
	list := &fakeList{offers: listingOffers("t1")}
	detail := &fakeDetail{
		errs: map[string]error{"t1": domain.ErrNoDetail},
	}
	store := &fakeStore{}

	c := NewCollector(list, detail, store, nil, 0, nil, 2, slog.Default())
	processed, failed, err := c.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, processed)
	assert.Equal(t, 0, failed)
	require.Contains(t, store.upserted, "t1")
	assert.Nil(t, store.upserted["t1"].NftAddress)
}

func TestRunCycleAppliesDetail(t *testing.T) {
	nft := "EQnft"
	list := &fakeList{offers: listingOffers("t1")}
	detail := &fakeDetail{
		details: map[string]domain.Detail{"t1": {NftAddress: &nft}},
	}
	store := &fakeStore{}

	c := NewCollector(list, detail, store, nil, 0, nil, 1, slog.Default())
	_, _, err := c.RunCycle(context.Background())
	require.NoError(t, err)

	require.Contains(t, store.upserted, "t1")
	require.NotNil(t, store.upserted["t1"].NftAddress)
	assert.Equal(t, "EQnft", *store.upserted["t1"].NftAddress)
}

func TestRunCycleListingFailurePropagates(t *testing.T) {
	list := &fakeList{listErr: errors.New("boom")}
	c := NewCollector(list, &fakeDetail{}, &fakeStore{}, nil, 0, nil, 2, slog.Default())

	_, _, err := c.RunCycle(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listing")
}

func TestFetchDetailUsesCache(t *testing.T) {
	nft := "EQnft"
	list := &fakeList{offers: listingOffers("t1")}
	detail := &fakeDetail{
		details: map[string]domain.Detail{"t1": {NftAddress: &nft}},
	}
	cache := &memCache{}
	store := &fakeStore{}

	c := NewCollector(list, detail, store, cache, time.Minute, nil, 1, slog.Default())

	// First cycle goes to the network and populates the cache.
	_, _, err := c.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, detail.calls["t1"])
	assert.Equal(t, 1, cache.sets)

	// Second cycle is served from the cache.
	_, _, err = c.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, detail.calls["t1"])
}

func TestRunCycleEmptyListing(t *testing.T) {
	list := &fakeList{}
	c := NewCollector(list, &fakeDetail{}, &fakeStore{}, nil, 0, nil, 2, slog.Default())

	processed, failed, err := c.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Zero(t, processed)
	assert.Zero(t, failed)
}
