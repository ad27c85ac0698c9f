package poisson_test

import (
	"testing"

	"github.com/bitcoin-sv/brc20indexer/indexermodel"
	"github.com/bitcoin-sv/brc20indexer/opi"
	"github.com/bitcoin-sv/brc20indexer/opi/poisson"
	"github.com/bitcoin-sv/brc20indexer/opparser"
	"github.com/bitcoin-sv/brc20indexer/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	deploys  map[string]*indexermodel.Deploy
	balances map[string]string
}

func (f *fakeStore) GetBalance(address, ticker string) (string, error) {
	return f.balances[address+"/"+ticker], nil
}
func (f *fakeStore) GetTotalMinted(ticker string) (string, error) { return "", nil }
func (f *fakeStore) GetDeployRecord(ticker string) (*indexermodel.Deploy, error) {
	return f.deploys[ticker], nil
}

func TestProcessOpRejectsMissingPattern(t *testing.T) {
	store := &fakeStore{deploys: map[string]*indexermodel.Deploy{"FLOODFISH": {Ticker: "FLOODFISH"}}}
	sctx := state.NewContext(state.New(100), store)
	p := poisson.NewFactory()()

	result, _, err := p.ProcessOp(&opparser.Operation{}, opi.TxInfo{Sender: "addr1", RawPayload: []byte("hello")}, sctx)
	require.NoError(t, err)
	assert.False(t, result.IsValid)
}

func TestProcessOpRegistersParticipation(t *testing.T) {
	store := &fakeStore{deploys: map[string]*indexermodel.Deploy{"FLOODFISH": {Ticker: "FLOODFISH"}}}
	st := state.New(100)
	sctx := state.NewContext(st, store)
	p := poisson.NewFactory()()

	result, staged, err := p.ProcessOp(&opparser.Operation{}, opi.TxInfo{
		Sender: "addr1", TxID: "tx1", BlockHeight: 100, RawPayload: []byte(poisson.FishPattern),
	}, sctx)
	require.NoError(t, err)
	assert.True(t, result.IsValid)
	require.Len(t, staged.Mutations, 1)

	state.Apply(st, staged)
	key := state.ScratchKeyPoissonParticipants(100)
	v, ok := sctx.GetScratch(key)
	require.True(t, ok)
	assert.Len(t, v, 1)
}

func TestOnBlockEndSplitsRewardProportionally(t *testing.T) {
	store := &fakeStore{deploys: map[string]*indexermodel.Deploy{"FLOODFISH": {Ticker: "FLOODFISH"}}}
	st := state.New(100)
	sctx := state.NewContext(st, store)
	p := poisson.NewFactory()()

	alice := opi.TxInfo{Sender: "alice", TxID: "tx1", BlockHeight: 100, RawPayload: []byte(poisson.FishPattern)}
	bob := opi.TxInfo{Sender: "bob", TxID: "tx2", BlockHeight: 100, RawPayload: []byte(poisson.FishPattern)}

	for _, tx := range []opi.TxInfo{alice, alice, alice, bob, bob} {
		_, staged, err := p.ProcessOp(&opparser.Operation{}, tx, sctx)
		require.NoError(t, err)
		state.Apply(st, staged)
	}

	logEntries := []*indexermodel.OperationLogEntry{
		{TxID: "tx1", OperationKind: indexermodel.OpPoisson},
		{TxID: "tx2", OperationKind: indexermodel.OpPoisson},
	}

	hook := p.(opi.BlockEndHook)
	blockStaged, err := hook.OnBlockEnd(opi.BlockEndInfo{Height: 100, LogEntries: logEntries}, sctx)
	require.NoError(t, err)
	state.Apply(st, blockStaged)

	aliceBal, err := sctx.GetBalance("alice", poisson.Ticker)
	require.NoError(t, err)
	bobBal, err := sctx.GetBalance("bob", poisson.Ticker)
	require.NoError(t, err)
	assert.Equal(t, "1875", aliceBal) // 3/5 * 3125
	assert.Equal(t, "1250", bobBal)   // 2/5 * 3125
}
