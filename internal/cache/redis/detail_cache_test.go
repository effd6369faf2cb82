package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkoval/gemwatch/internal/domain"
)

func testCache(t *testing.T) (*DetailCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := New(context.Background(), ClientConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return NewDetailCache(client), mr
}

func TestDetailCacheRoundTrip(t *testing.T) {
	cache, _ := testCache(t)
	ctx := context.Background()

	nft := "EQnft"
	amount := 0.25
	in := domain.Detail{NftAddress: &nft, RoyaltyAmount: &amount}

	require.NoError(t, cache.Set(ctx, "EQitem1", in, time.Minute))

	out, found, err := cache.Get(ctx, "EQitem1")
	require.NoError(t, err)
	require.True(t, found)
	require.NotNil(t, out.NftAddress)
	assert.Equal(t, "EQnft", *out.NftAddress)
	require.NotNil(t, out.RoyaltyAmount)
	assert.InDelta(t, 0.25, *out.RoyaltyAmount, 1e-9)
}

func TestDetailCacheMiss(t *testing.T) {
	cache, _ := testCache(t)

	_, found, err := cache.Get(context.Background(), "absent")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDetailCacheExpiry(t *testing.T) {
	cache, mr := testCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "EQitem1", domain.Detail{}, time.Minute))
	mr.FastForward(2 * time.Minute)

	_, found, err := cache.Get(ctx, "EQitem1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDetailCacheCorruptEntryIsMiss(t *testing.T) {
	cache, mr := testCache(t)

	require.NoError(t, mr.Set("detail:EQitem1", "not-json"))
	_, found, err := cache.Get(context.Background(), "EQitem1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestLockManagerMutualExclusion(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := New(context.Background(), ClientConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	lm := NewLockManager(client)
	ctx := context.Background()

	unlock, err := lm.Acquire(ctx, "cycle", time.Minute)
	require.NoError(t, err)

	_, err = lm.Acquire(ctx, "cycle", time.Minute)
	assert.True(t, errors.Is(err, domain.ErrLockHeld))

	unlock()
	unlock() // safe to call twice

	unlock2, err := lm.Acquire(ctx, "cycle", time.Minute)
	require.NoError(t, err)
	unlock2()
}
