// Package swap implements the timelocked swap-pool extension's "swap.init"
// operation, grounded directly on the Python original's
// src/opi/operations/swap/processor.py: lock an amount of src_ticker from
// the sender's balance, credit it back into the deploy's remaining_supply
// bookkeeping (it is still backed supply, just pool-locked rather than
// held by an address), and create an active SwapPosition record.
package swap

import (
	"sort"
	"strings"

	"github.com/bitcoin-sv/brc20indexer/amount"
	"github.com/bitcoin-sv/brc20indexer/indexermodel"
	"github.com/bitcoin-sv/brc20indexer/opi"
	"github.com/bitcoin-sv/brc20indexer/opparser"
	"github.com/bitcoin-sv/brc20indexer/state"
)

// Processor handles swap.init operations dispatched through the registry
// under the "swap" op name.
type Processor struct{}

// NewFactory returns an opi.Factory producing a swap Processor.
func NewFactory() opi.Factory {
	return func() opi.Processor { return &Processor{} }
}

func (p *Processor) ProcessOp(op *opparser.Operation, tx opi.TxInfo, sctx *state.Context) (opi.Result, state.Staged, error) {
	if op.Kind != opparser.KindSwapInit {
		return opi.Invalid(indexermodel.OpSwapInit, 0, "not a swap.init operation"), state.Staged{}, nil
	}
	if tx.Sender == "" {
		return opi.Invalid(indexermodel.OpSwapInit, 0, "missing sender address"), state.Staged{}, nil
	}

	deploySrc, err := sctx.GetDeployRecord(op.SrcTicker)
	if err != nil {
		return opi.Result{}, state.Staged{}, err
	}
	if deploySrc == nil {
		return opi.Invalid(indexermodel.OpSwapInit, 0, "ticker "+op.SrcTicker+" not deployed"), state.Staged{}, nil
	}
	deployDst, err := sctx.GetDeployRecord(op.DstTicker)
	if err != nil {
		return opi.Result{}, state.Staged{}, err
	}
	if deployDst == nil {
		return opi.Invalid(indexermodel.OpSwapInit, 0, "ticker "+op.DstTicker+" not deployed"), state.Staged{}, nil
	}

	currentBalance, err := sctx.GetBalance(tx.Sender, op.SrcTicker)
	if err != nil {
		return opi.Result{}, state.Staged{}, err
	}
	sufficient, err := amount.GreaterEqual(currentBalance, op.Amount)
	if err != nil {
		return opi.Result{}, state.Staged{}, err
	}
	if !sufficient {
		return opi.Invalid(indexermodel.OpSwapInit, 0, "insufficient balance for swap.init"), state.Staged{}, nil
	}

	newSenderBalance, err := amount.Subtract(currentBalance, op.Amount)
	if err != nil {
		return opi.Result{}, state.Staged{}, err
	}
	newRemaining, err := amount.Add(deploySrc.RemainingSupply, op.Amount)
	if err != nil {
		return opi.Result{}, state.Staged{}, err
	}

	pool := PoolID(op.SrcTicker, op.DstTicker)
	lockStart := tx.BlockHeight
	position := &indexermodel.SwapPosition{
		OwnerAddress:     tx.Sender,
		PoolID:           pool,
		SrcTicker:        op.SrcTicker,
		DstTicker:        op.DstTicker,
		AmountLocked:     op.Amount,
		LockDurationBlks: uint32(op.LockBlocks),
		LockStartHeight:  lockStart,
		UnlockHeight:     lockStart + uint32(op.LockBlocks),
		Status:           indexermodel.SwapActive,
		InitTxID:         tx.TxID,
	}

	staged := state.Staged{
		NewEntities: []any{position},
		Mutations: []state.Mutation{
			state.SetBalance(tx.Sender, op.SrcTicker, newSenderBalance),
			state.SetRemainingSupply(op.SrcTicker, newRemaining),
		},
	}

	return opi.Valid(indexermodel.OpSwapInit, op.SrcTicker, op.Amount), staged, nil
}

// PoolID builds the canonical alphabetical pool identifier spec.md §3
// requires: "-".join(sorted([src, dst])) in the Python original.
func PoolID(src, dst string) string {
	pair := []string{strings.ToUpper(src), strings.ToUpper(dst)}
	sort.Strings(pair)
	return pair[0] + "-" + pair[1]
}
