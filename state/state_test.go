package state_test

import (
	"testing"

	"github.com/bitcoin-sv/brc20indexer/indexermodel"
	"github.com/bitcoin-sv/brc20indexer/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	balances map[string]string
	minted   map[string]string
	deploys  map[string]*indexermodel.Deploy
	reads    int
}

func (f *fakeStore) GetBalance(address, ticker string) (string, error) {
	f.reads++
	return f.balances[address+"/"+ticker], nil
}

func (f *fakeStore) GetTotalMinted(ticker string) (string, error) {
	return f.minted[ticker], nil
}

func (f *fakeStore) GetDeployRecord(ticker string) (*indexermodel.Deploy, error) {
	return f.deploys[ticker], nil
}

func TestContextCachesOnMiss(t *testing.T) {
	store := &fakeStore{balances: map[string]string{"addr1/ORDI": "500"}}
	st := state.New(100)
	ctx := state.NewContext(st, store)

	bal, err := ctx.GetBalance("addr1", "ordi")
	require.NoError(t, err)
	assert.Equal(t, "500", bal)
	assert.Equal(t, 1, store.reads)

	bal2, err := ctx.GetBalance("addr1", "ORDI")
	require.NoError(t, err)
	assert.Equal(t, "500", bal2)
	assert.Equal(t, 1, store.reads, "second read should come from intermediate state, not the store")
}

func TestContextDefaultsToZero(t *testing.T) {
	store := &fakeStore{}
	st := state.New(1)
	ctx := state.NewContext(st, store)

	bal, err := ctx.GetBalance("unknown", "ORDI")
	require.NoError(t, err)
	assert.Equal(t, "0", bal)
}

func TestApplyMutationsInOrder(t *testing.T) {
	st := state.New(1)
	staged := state.Staged{
		Mutations: []state.Mutation{
			state.SetBalance("addr1", "ordi", "100"),
			state.SetBalance("addr1", "ordi", "200"),
		},
	}
	state.Apply(st, staged)

	store := &fakeStore{}
	ctx := state.NewContext(st, store)
	bal, err := ctx.GetBalance("addr1", "ORDI")
	require.NoError(t, err)
	assert.Equal(t, "200", bal)
}

func TestAppendScratchList(t *testing.T) {
	st := state.New(1)
	key := state.ScratchKeyPoissonParticipants(1)
	state.Apply(st, state.Staged{Mutations: []state.Mutation{
		state.AppendScratchList(key, "a"),
		state.AppendScratchList(key, "b"),
	}})

	store := &fakeStore{}
	ctx := state.NewContext(st, store)
	v, ok := ctx.GetScratch(key)
	require.True(t, ok)
	assert.Equal(t, []any{"a", "b"}, v)
}

func TestPutDeployVisibleImmediately(t *testing.T) {
	st := state.New(1)
	d := &indexermodel.Deploy{Ticker: "ORDI", MaxSupply: "21000000", RemainingSupply: "21000000"}
	state.Apply(st, state.Staged{Mutations: []state.Mutation{state.PutDeploy(d)}})

	store := &fakeStore{}
	ctx := state.NewContext(st, store)
	got, err := ctx.GetDeployRecord("ordi")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "21000000", got.MaxSupply)
}
