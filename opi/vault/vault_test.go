package vault_test

import (
	"testing"

	"github.com/bitcoin-sv/brc20indexer/indexermodel"
	"github.com/bitcoin-sv/brc20indexer/opi"
	"github.com/bitcoin-sv/brc20indexer/opi/vault"
	"github.com/bitcoin-sv/brc20indexer/opparser"
	"github.com/bitcoin-sv/brc20indexer/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	balances map[string]string
	vaults   []*indexermodel.Vault
}

func (f *fakeStore) GetBalance(address, ticker string) (string, error) {
	return f.balances[address+"/"+ticker], nil
}
func (f *fakeStore) GetTotalMinted(ticker string) (string, error) { return "", nil }
func (f *fakeStore) GetDeployRecord(ticker string) (*indexermodel.Deploy, error) {
	return nil, nil
}
func (f *fakeStore) GetActiveVaults() ([]*indexermodel.Vault, error) { return f.vaults, nil }

func TestProcessOpCreatesVault(t *testing.T) {
	store := &fakeStore{}
	sctx := state.NewContext(state.New(1), store)
	p := vault.NewFactory(store)()

	op := &opparser.Operation{
		Kind: opparser.KindOther,
		Raw: map[string]any{
			"p2tr_address":       "bc1paddr",
			"owner_address":      "bc1powner",
			"w_proof_commitment": "deadbeef",
			"collateral_sats":    "100000",
			"remaining_blocks":   "10",
		},
	}
	result, staged, err := p.ProcessOp(op, opi.TxInfo{TxID: "tx1", BlockHeight: 5}, sctx)
	require.NoError(t, err)
	assert.True(t, result.IsValid)
	require.Len(t, staged.NewEntities, 1)
	v := staged.NewEntities[0].(*indexermodel.Vault)
	assert.Equal(t, "bc1paddr", v.P2TRAddress)
	assert.Equal(t, indexermodel.VaultActive, v.Status)
}

func TestOnBlockEndAbandonsAtZero(t *testing.T) {
	remaining := uint32(1)
	v := &indexermodel.Vault{P2TRAddress: "v1", Status: indexermodel.VaultActive, RemainingBlocks: &remaining}
	store := &fakeStore{vaults: []*indexermodel.Vault{v}}
	sctx := state.NewContext(state.New(1), store)
	p := vault.NewFactory(store)()

	hook := p.(opi.BlockEndHook)
	staged, err := hook.OnBlockEnd(opi.BlockEndInfo{Height: 1}, sctx)
	require.NoError(t, err)
	require.Len(t, staged.UpdatedEntities, 1)
	updated := staged.UpdatedEntities[0].(*indexermodel.Vault)
	assert.Equal(t, uint32(0), *updated.RemainingBlocks)
	assert.Equal(t, indexermodel.VaultAbandoned, updated.Status)
}
