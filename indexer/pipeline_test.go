package indexer_test

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/bitcoin-sv/brc20indexer/brconfig"
	"github.com/bitcoin-sv/brc20indexer/btcscript"
	"github.com/bitcoin-sv/brc20indexer/indexer"
	"github.com/bitcoin-sv/brc20indexer/indexermodel"
	"github.com/bitcoin-sv/brc20indexer/opi"
	"github.com/bitcoin-sv/brc20indexer/opi/builtin"
	sqlstore "github.com/bitcoin-sv/brc20indexer/stores/sql"
	"github.com/bitcoin-sv/brc20indexer/ulogger"
	"github.com/bitcoin-sv/brc20indexer/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPipeline(t *testing.T) (*indexer.Pipeline, *sqlstore.Store) {
	t.Helper()
	u, err := url.Parse("sqlitememory://test")
	require.NoError(t, err)
	store, err := sqlstore.New(ulogger.NewTest(), u)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	cfg := &brconfig.Config{OpReturnFirstPositionThreshold: 780000, MaxReorgDepth: 6, BitcoinGenesisTimestamp: 1231006505}
	v := validator.New(cfg, nil)

	reg := opi.NewRegistry()
	reg.Register("deploy", builtin.NewDeployFactory(v))
	reg.Register("mint", builtin.NewMintFactory(v))
	reg.Register("transfer", builtin.NewTransferFactory(v))

	p := indexer.New(cfg, store, reg, ulogger.NewTest(), nil, nil)
	return p, store
}

// opReturnOutput builds a standalone OP_RETURN output carrying payload as a
// single data push, the shape btcscript.ExtractUnspendablePayload expects.
func opReturnOutput(payload string) btcscript.Output {
	script := append([]byte{0x6a, byte(len(payload))}, []byte(payload)...)
	return btcscript.Output{Script: script}
}

// standardOutput fabricates a decoded standard output at a given address
// without needing to actually encode a locking script, relying on the
// node-RPC contract's optional pre-decoded address list (§6).
func standardOutput(address string) btcscript.Output {
	return btcscript.Output{DecodedType: "p2pkh", DecodedAddresses: []string{address}}
}

func TestProcessBlockDeployMintTransfer(t *testing.T) {
	p, store := newTestPipeline(t)
	ts := time.Unix(1600000000, 0).UTC()

	deployBlock := indexermodel.RPCBlock{
		Height: 1, Hash: "h1", PrevHash: "h0", Timestamp: ts,
		Txs: []indexermodel.RPCTx{
			{
				TxID: "tx-deploy", Index: 0,
				Inputs:  []btcscript.Input{{PrevOutAddress: "deployer"}},
				Outputs: []btcscript.Output{opReturnOutput(`{"p":"brc-20","op":"deploy","tick":"ordi","max":"1000"}`)},
			},
		},
	}
	out, err := p.ProcessBlock(context.Background(), deployBlock)
	require.NoError(t, err)
	assert.Equal(t, indexer.StatusCommitted, out.Status)
	assert.Equal(t, 1, out.OpsFound)
	assert.Equal(t, 1, out.OpsValid)

	mintBlock := indexermodel.RPCBlock{
		Height: 2, Hash: "h2", PrevHash: "h1", Timestamp: ts.Add(10 * time.Minute),
		Txs: []indexermodel.RPCTx{
			{
				TxID: "tx-mint", Index: 0,
				Inputs: []btcscript.Input{{PrevOutAddress: "minter"}},
				Outputs: []btcscript.Output{
					opReturnOutput(`{"p":"brc-20","op":"mint","tick":"ordi","amt":"300"}`),
					standardOutput("addr1"),
				},
			},
		},
	}
	out, err = p.ProcessBlock(context.Background(), mintBlock)
	require.NoError(t, err)
	assert.Equal(t, indexer.StatusCommitted, out.Status)
	assert.Equal(t, 1, out.OpsValid)

	bal, err := store.GetBalance("addr1", "ORDI")
	require.NoError(t, err)
	assert.Equal(t, "300", bal)

	transferBlock := indexermodel.RPCBlock{
		Height: 3, Hash: "h3", PrevHash: "h2", Timestamp: ts.Add(20 * time.Minute),
		Txs: []indexermodel.RPCTx{
			{
				TxID: "tx-transfer", Index: 0,
				Inputs: []btcscript.Input{{PrevOutAddress: "addr1"}},
				Outputs: []btcscript.Output{
					opReturnOutput(`{"p":"brc-20","op":"transfer","tick":"ordi","amt":"100"}`),
					standardOutput("addr2"),
				},
			},
		},
	}
	out, err = p.ProcessBlock(context.Background(), transferBlock)
	require.NoError(t, err)
	assert.Equal(t, indexer.StatusCommitted, out.Status)
	assert.Equal(t, 1, out.OpsValid)

	senderBal, err := store.GetBalance("addr1", "ORDI")
	require.NoError(t, err)
	recipientBal, err := store.GetBalance("addr2", "ORDI")
	require.NoError(t, err)
	assert.Equal(t, "200", senderBal)
	assert.Equal(t, "100", recipientBal)

	deploy, err := store.GetDeployRecord("ORDI")
	require.NoError(t, err)
	assert.Equal(t, "700", deploy.RemainingSupply)
}

func TestProcessBlockSameHeightSameHashIsDuplicate(t *testing.T) {
	p, _ := newTestPipeline(t)
	ts := time.Unix(1600000000, 0).UTC()

	block := indexermodel.RPCBlock{Height: 1, Hash: "h1", PrevHash: "h0", Timestamp: ts}
	out, err := p.ProcessBlock(context.Background(), block)
	require.NoError(t, err)
	assert.Equal(t, indexer.StatusCommitted, out.Status)

	out, err = p.ProcessBlock(context.Background(), block)
	require.NoError(t, err)
	assert.Equal(t, indexer.StatusDuplicate, out.Status)
}

func TestProcessBlockSameHeightDifferentHashReorgs(t *testing.T) {
	p, store := newTestPipeline(t)
	ts := time.Unix(1600000000, 0).UTC()

	first := indexermodel.RPCBlock{Height: 1, Hash: "h1", PrevHash: "h0", Timestamp: ts}
	_, err := p.ProcessBlock(context.Background(), first)
	require.NoError(t, err)

	competing := indexermodel.RPCBlock{Height: 1, Hash: "h1-fork", PrevHash: "h0", Timestamp: ts}
	out, err := p.ProcessBlock(context.Background(), competing)
	require.NoError(t, err)
	assert.Equal(t, indexer.StatusReorged, out.Status)

	committed, err := store.GetProcessedBlock(1)
	require.NoError(t, err)
	require.NotNil(t, committed)
	assert.Equal(t, "h1-fork", committed.BlockHash)
}

func TestProcessBlockParentHashMismatchWithoutChainLookupIsFatal(t *testing.T) {
	p, _ := newTestPipeline(t)
	ts := time.Unix(1600000000, 0).UTC()

	require.NoError(t, func() error {
		_, err := p.ProcessBlock(context.Background(), indexermodel.RPCBlock{Height: 1, Hash: "h1", PrevHash: "h0", Timestamp: ts})
		return err
	}())

	_, err := p.ProcessBlock(context.Background(), indexermodel.RPCBlock{Height: 2, Hash: "h2", PrevHash: "wrong-parent", Timestamp: ts.Add(time.Minute)})
	require.Error(t, err)
}
