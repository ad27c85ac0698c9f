package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/bitcoin-sv/brc20indexer/indexermodel"
	"github.com/bitcoin-sv/brc20indexer/stores/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	calls   int
	deploys map[string]*indexermodel.Deploy
}

func (f *fakeStore) GetBalance(address, ticker string) (string, error) { return "0", nil }
func (f *fakeStore) GetTotalMinted(ticker string) (string, error)      { return "0", nil }
func (f *fakeStore) GetDeployRecord(ticker string) (*indexermodel.Deploy, error) {
	f.calls++
	return f.deploys[ticker], nil
}

func TestLocalCacheRoundTrip(t *testing.T) {
	c := cache.NewLocal()
	defer c.Stop()
	ctx := context.Background()

	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)

	c.Set(ctx, "k", "v", time.Minute)
	v, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "v", v)

	c.Delete(ctx, "k")
	_, ok = c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestCachedStoreServesDeployFromCacheOnSecondCall(t *testing.T) {
	store := &fakeStore{deploys: map[string]*indexermodel.Deploy{
		"ORDI": {Ticker: "ORDI", MaxSupply: "1000", RemainingSupply: "400"},
	}}
	local := cache.NewLocal()
	defer local.Stop()
	cached := cache.NewCachedStore(store, local, time.Minute)

	d1, err := cached.GetDeployRecord("ORDI")
	require.NoError(t, err)
	require.NotNil(t, d1)
	assert.Equal(t, 1, store.calls)

	d2, err := cached.GetDeployRecord("ORDI")
	require.NoError(t, err)
	require.NotNil(t, d2)
	assert.Equal(t, 1, store.calls, "second lookup should be served from cache, not the underlying store")

	minted, err := cached.GetTotalMinted("ORDI")
	require.NoError(t, err)
	assert.Equal(t, "600", minted)
}

func TestCachedStoreCachesMissWithoutPanicking(t *testing.T) {
	store := &fakeStore{deploys: map[string]*indexermodel.Deploy{}}
	local := cache.NewLocal()
	defer local.Stop()
	cached := cache.NewCachedStore(store, local, time.Minute)

	d, err := cached.GetDeployRecord("GHOST")
	require.NoError(t, err)
	assert.Nil(t, d)
	assert.Equal(t, 1, store.calls)

	d, err = cached.GetDeployRecord("GHOST")
	require.NoError(t, err)
	assert.Nil(t, d)
	assert.Equal(t, 1, store.calls)
}
