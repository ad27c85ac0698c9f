// Package vault implements the sovereign-vault (W-protocol) extension,
// grounded on src/models/vault.py's Vault model and VaultStatus enum. A
// vault is created at Taproot reveal (the "vault" registered op carrying
// the reveal transaction's metadata) and its remaining_blocks countdown is
// decremented on every subsequent block via OnBlockEnd, matching the
// Python docstring: "indexer decrements this on each new block... When it
// reaches 0, status becomes ABANDONED". Status transitions run through
// github.com/looplab/fsm the same way the teacher's blockchain service
// drives its own service-lifecycle FSM (services/blockchain/Server.go).
package vault

import (
	"context"
	"strconv"

	"github.com/bitcoin-sv/brc20indexer/indexermodel"
	"github.com/bitcoin-sv/brc20indexer/opi"
	"github.com/bitcoin-sv/brc20indexer/opparser"
	"github.com/bitcoin-sv/brc20indexer/state"
	"github.com/looplab/fsm"
)

// NewLifecycle returns an *fsm.FSM seeded at cur's status, with the
// transitions spec.md §3's Vault lifecycle allows.
func NewLifecycle(cur indexermodel.VaultStatus) *fsm.FSM {
	return fsm.NewFSM(
		string(cur),
		fsm.Events{
			{Name: "abandon", Src: []string{string(indexermodel.VaultActive)}, Dst: string(indexermodel.VaultAbandoned)},
			{Name: "recycle", Src: []string{string(indexermodel.VaultAbandoned)}, Dst: string(indexermodel.VaultRecycled)},
			{Name: "recover", Src: []string{string(indexermodel.VaultActive), string(indexermodel.VaultAbandoned)}, Dst: string(indexermodel.VaultSovereignRecovery)},
			{Name: "close", Src: []string{string(indexermodel.VaultActive), string(indexermodel.VaultRecycled), string(indexermodel.VaultSovereignRecovery)}, Dst: string(indexermodel.VaultClosed)},
		},
		fsm.Callbacks{},
	)
}

// Store is the read surface the vault processor needs: finding the active
// vaults whose countdown must advance this block.
type Store interface {
	GetActiveVaults() ([]*indexermodel.Vault, error)
}

// Processor handles the "vault" registered op (reveal) and implements
// opi.BlockEndHook for the remaining_blocks countdown.
type Processor struct {
	Store Store
}

// NewFactory returns an opi.Factory producing a vault Processor bound to store.
func NewFactory(store Store) opi.Factory {
	return func() opi.Processor { return &Processor{Store: store} }
}

// wireVault is the shape a reveal transaction's payload carries.
type wireVault struct {
	P2TRAddress      string `json:"p2tr_address"`
	OwnerAddress     string `json:"owner_address"`
	CollateralSats   uint64 `json:"collateral_sats"`
	RemainingBlocks  uint32 `json:"remaining_blocks"`
	WProofCommitment string `json:"w_proof_commitment"`
}

func (p *Processor) ProcessOp(op *opparser.Operation, tx opi.TxInfo, sctx *state.Context) (opi.Result, state.Staged, error) {
	if op.Kind != opparser.KindOther || op.Raw == nil {
		return opi.Invalid(indexermodel.OpUnknown, 0, "not a vault reveal operation"), state.Staged{}, nil
	}

	p2tr, _ := op.Raw["p2tr_address"].(string)
	owner, _ := op.Raw["owner_address"].(string)
	commitment, _ := op.Raw["w_proof_commitment"].(string)
	if p2tr == "" || owner == "" || commitment == "" {
		return opi.Invalid(indexermodel.OpUnknown, 0, "vault reveal missing required fields"), state.Staged{}, nil
	}

	collateral := toUint64(op.Raw["collateral_sats"])
	remaining := uint32(toUint64(op.Raw["remaining_blocks"]))

	v := &indexermodel.Vault{
		P2TRAddress:      p2tr,
		OwnerAddress:     owner,
		CollateralSats:   collateral,
		RemainingBlocks:  &remaining,
		WProofCommitment: commitment,
		Status:           indexermodel.VaultActive,
		RevealTxID:       tx.TxID,
		RevealHeight:     tx.BlockHeight,
	}

	return opi.Valid(indexermodel.OpUnknown, "", ""), state.Staged{NewEntities: []any{v}}, nil
}

func toUint64(v any) uint64 {
	switch t := v.(type) {
	case string:
		n, _ := strconv.ParseUint(t, 10, 64)
		return n
	case float64:
		return uint64(t)
	default:
		return 0
	}
}

// OnBlockEnd decrements every active vault's remaining_blocks by one,
// transitioning to abandoned at zero.
func (p *Processor) OnBlockEnd(info opi.BlockEndInfo, sctx *state.Context) (state.Staged, error) {
	if p.Store == nil {
		return state.Staged{}, nil
	}
	vaults, err := p.Store.GetActiveVaults()
	if err != nil {
		return state.Staged{}, err
	}
	if len(vaults) == 0 {
		return state.Staged{}, nil
	}

	updated := make([]any, 0, len(vaults))
	for _, v := range vaults {
		if v.RemainingBlocks == nil {
			continue
		}
		remaining := *v.RemainingBlocks
		if remaining > 0 {
			remaining--
		}
		v.RemainingBlocks = &remaining
		if remaining == 0 {
			machine := NewLifecycle(v.Status)
			if err := machine.Event(context.Background(), "abandon"); err == nil {
				v.Status = indexermodel.VaultAbandoned
			}
		}
		updated = append(updated, v)
	}

	return state.Staged{UpdatedEntities: updated}, nil
}
