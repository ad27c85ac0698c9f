package sql_test

import (
	"net/url"
	"testing"
	"time"

	"github.com/bitcoin-sv/brc20indexer/indexermodel"
	"github.com/bitcoin-sv/brc20indexer/state"
	sqlstore "github.com/bitcoin-sv/brc20indexer/stores/sql"
	"github.com/bitcoin-sv/brc20indexer/ulogger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *sqlstore.Store {
	t.Helper()
	u, err := url.Parse("sqlitememory://test")
	require.NoError(t, err)
	store, err := sqlstore.New(ulogger.NewTest(), u)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestGetBalanceDefaultsToZero(t *testing.T) {
	store := newTestStore(t)
	bal, err := store.GetBalance("addr1", "ORDI")
	require.NoError(t, err)
	assert.Equal(t, "0", bal)
}

func TestGetDeployRecordMissingReturnsNil(t *testing.T) {
	store := newTestStore(t)
	d, err := store.GetDeployRecord("ORDI")
	require.NoError(t, err)
	assert.Nil(t, d)
}

func TestCommitBlockPersistsBalanceAndDeploy(t *testing.T) {
	store := newTestStore(t)

	st := state.New(100)
	deploy := &indexermodel.Deploy{
		Ticker: "ORDI", MaxSupply: "1000", RemainingSupply: "1000",
		DeployTxID: "tx1", DeployHeight: 100, DeployTimestamp: time.Unix(0, 0), DeployerAddress: "deployer",
	}
	state.Apply(st, state.Staged{
		NewEntities: []any{deploy},
		Mutations:   []state.Mutation{state.PutDeploy(deploy), state.SetBalance("addr1", "ORDI", "500")},
	})

	err := store.CommitBlock(sqlstore.CommitInput{
		Height: 100, BlockHash: "hash100", Timestamp: time.Unix(0, 0),
		TxCount: 1, OpsFound: 1, OpsValid: 1,
		State: st,
	})
	require.NoError(t, err)

	bal, err := store.GetBalance("addr1", "ORDI")
	require.NoError(t, err)
	assert.Equal(t, "500", bal)

	d, err := store.GetDeployRecord("ORDI")
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, "1000", d.MaxSupply)
}

func TestCommitBlockTwiceAtSameHeightIsDuplicate(t *testing.T) {
	store := newTestStore(t)

	in := sqlstore.CommitInput{Height: 5, BlockHash: "hashA", Timestamp: time.Unix(0, 0)}
	require.NoError(t, store.CommitBlock(in))

	err := store.CommitBlock(in)
	require.Error(t, err)
	assert.ErrorIs(t, err, sqlstore.ErrBlockAlreadyProcessed)
}

func TestGetActiveVaultsAndPositionsEmpty(t *testing.T) {
	store := newTestStore(t)

	vaults, err := store.GetActiveVaults()
	require.NoError(t, err)
	assert.Empty(t, vaults)

	positions, err := store.GetActivePositionsUnlockingAt(10)
	require.NoError(t, err)
	assert.Empty(t, positions)
}

func TestGetTotalSupplySumsCanonicalBalancesOnly(t *testing.T) {
	store := newTestStore(t)

	st := state.New(10)
	state.Apply(st, state.Staged{
		Mutations: []state.Mutation{
			state.SetBalance("addr1", "ORDI", "500"),
			state.SetBalance("addr2", "ORDI", "250"),
			state.SetBalance("addr3", "ORDI", "not-a-number"),
		},
	})
	require.NoError(t, store.CommitBlock(sqlstore.CommitInput{
		Height: 10, BlockHash: "hash10", Timestamp: time.Unix(0, 0), State: st,
	}))

	total, err := store.GetTotalSupply("ORDI")
	require.NoError(t, err)
	assert.Equal(t, "750", total)
}

func TestGetTotalSupplyConservedAcrossTransfer(t *testing.T) {
	store := newTestStore(t)

	st1 := state.New(1)
	state.Apply(st1, state.Staged{Mutations: []state.Mutation{state.SetBalance("addr1", "ORDI", "1000")}})
	require.NoError(t, store.CommitBlock(sqlstore.CommitInput{Height: 1, BlockHash: "h1", Timestamp: time.Unix(0, 0), State: st1}))

	before, err := store.GetTotalSupply("ORDI")
	require.NoError(t, err)
	assert.Equal(t, "1000", before)

	st2 := state.New(2)
	state.Apply(st2, state.Staged{Mutations: []state.Mutation{
		state.SetBalance("addr1", "ORDI", "600"),
		state.SetBalance("addr2", "ORDI", "400"),
	}})
	require.NoError(t, store.CommitBlock(sqlstore.CommitInput{Height: 2, BlockHash: "h2", Timestamp: time.Unix(0, 0), State: st2}))

	after, err := store.GetTotalSupply("ORDI")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}
