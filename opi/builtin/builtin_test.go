package builtin_test

import (
	"testing"
	"time"

	"github.com/bitcoin-sv/brc20indexer/brconfig"
	"github.com/bitcoin-sv/brc20indexer/indexermodel"
	"github.com/bitcoin-sv/brc20indexer/opi"
	"github.com/bitcoin-sv/brc20indexer/opi/builtin"
	"github.com/bitcoin-sv/brc20indexer/opparser"
	"github.com/bitcoin-sv/brc20indexer/state"
	"github.com/bitcoin-sv/brc20indexer/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	balances map[string]string
	minted   map[string]string
	deploys  map[string]*indexermodel.Deploy
}

func (f *fakeStore) GetBalance(address, ticker string) (string, error) {
	return f.balances[address+"/"+ticker], nil
}
func (f *fakeStore) GetTotalMinted(ticker string) (string, error) { return f.minted[ticker], nil }
func (f *fakeStore) GetDeployRecord(ticker string) (*indexermodel.Deploy, error) {
	return f.deploys[ticker], nil
}

func testCfg() *brconfig.Config {
	return &brconfig.Config{OpReturnFirstPositionThreshold: 780000}
}

func TestDeployProcessorCreatesDeploy(t *testing.T) {
	store := &fakeStore{deploys: map[string]*indexermodel.Deploy{}}
	sctx := state.NewContext(state.New(1), store)
	v := validator.New(testCfg(), nil)
	p := builtin.NewDeployFactory(v)()

	op := &opparser.Operation{Ticker: "ORDI", MaxSupply: "21000000"}
	result, staged, err := p.ProcessOp(op, opi.TxInfo{TxID: "tx1", BlockHeight: 1, Timestamp: time.Now(), Sender: "deployer"}, sctx)
	require.NoError(t, err)
	assert.True(t, result.IsValid)
	require.Len(t, staged.NewEntities, 1)
	require.Len(t, staged.Mutations, 1)

	d := staged.NewEntities[0].(*indexermodel.Deploy)
	assert.Equal(t, "ORDI", d.Ticker)
	assert.Equal(t, "21000000", d.RemainingSupply)
}

func TestMintProcessorCreditsBalance(t *testing.T) {
	st := state.New(1)
	store := &fakeStore{
		deploys:  map[string]*indexermodel.Deploy{"ORDI": {Ticker: "ORDI", MaxSupply: "21000000", RemainingSupply: "21000000"}},
		balances: map[string]string{"addr1/ORDI": "100"},
	}
	sctx := state.NewContext(st, store)
	v := validator.New(testCfg(), nil)
	p := builtin.NewMintFactory(v)()

	op := &opparser.Operation{Ticker: "ORDI", Amount: "50"}
	result, staged, err := p.ProcessOp(op, opi.TxInfo{Recipient: "addr1", HasStandardOutput: true}, sctx)
	require.NoError(t, err)
	assert.True(t, result.IsValid)

	state.Apply(st, staged)
	newCtx := state.NewContext(st, store)
	bal, err := newCtx.GetBalance("addr1", "ORDI")
	require.NoError(t, err)
	assert.Equal(t, "150", bal)
	minted, err := newCtx.GetTotalMinted("ORDI")
	require.NoError(t, err)
	assert.Equal(t, "50", minted)
	deploy, err := newCtx.GetDeployRecord("ORDI")
	require.NoError(t, err)
	assert.Equal(t, "20999950", deploy.RemainingSupply)
}

func TestTransferProcessorMovesBalance(t *testing.T) {
	st := state.New(1)
	store := &fakeStore{
		deploys:  map[string]*indexermodel.Deploy{"ORDI": {Ticker: "ORDI", MaxSupply: "21000000"}},
		balances: map[string]string{"addr1/ORDI": "500"},
	}
	sctx := state.NewContext(st, store)
	v := validator.New(testCfg(), nil)
	p := builtin.NewTransferFactory(v)()

	op := &opparser.Operation{Ticker: "ORDI", Amount: "200"}
	result, staged, err := p.ProcessOp(op, opi.TxInfo{Sender: "addr1", Recipient: "addr2", HasStandardOutput: true, IsOpReturnFirst: true}, sctx)
	require.NoError(t, err)
	assert.True(t, result.IsValid)

	state.Apply(st, staged)
	newCtx := state.NewContext(st, store)
	sBal, err := newCtx.GetBalance("addr1", "ORDI")
	require.NoError(t, err)
	rBal, err := newCtx.GetBalance("addr2", "ORDI")
	require.NoError(t, err)
	assert.Equal(t, "300", sBal)
	assert.Equal(t, "200", rBal)
}

func TestMintProcessorInvalidTickerNotDeployed(t *testing.T) {
	store := &fakeStore{}
	sctx := state.NewContext(state.New(1), store)
	v := validator.New(testCfg(), nil)
	p := builtin.NewMintFactory(v)()

	op := &opparser.Operation{Ticker: "GHOST", Amount: "1"}
	result, _, err := p.ProcessOp(op, opi.TxInfo{Recipient: "addr1", HasStandardOutput: true}, sctx)
	require.NoError(t, err)
	assert.False(t, result.IsValid)
}
