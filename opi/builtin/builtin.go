// Package builtin implements spec.md §4.7's deploy/mint/transfer
// processors: the same Processor interface registered extensions use, per
// "the pipeline does not special-case them beyond ordering".
package builtin

import (
	"context"

	"github.com/bitcoin-sv/brc20indexer/amount"
	"github.com/bitcoin-sv/brc20indexer/indexermodel"
	"github.com/bitcoin-sv/brc20indexer/opi"
	"github.com/bitcoin-sv/brc20indexer/opparser"
	"github.com/bitcoin-sv/brc20indexer/state"
	"github.com/bitcoin-sv/brc20indexer/validator"
)

// DeployProcessor handles "deploy" operations.
type DeployProcessor struct {
	Validator *validator.Validator
}

// NewDeployFactory returns an opi.Factory producing a DeployProcessor bound
// to v.
func NewDeployFactory(v *validator.Validator) opi.Factory {
	return func() opi.Processor { return &DeployProcessor{Validator: v} }
}

func (p *DeployProcessor) ProcessOp(op *opparser.Operation, tx opi.TxInfo, sctx *state.Context) (opi.Result, state.Staged, error) {
	outcome, err := p.Validator.ValidateDeploy(context.Background(), tx.BlockHeight, op, sctx)
	if err != nil {
		return opi.Result{}, state.Staged{}, err
	}
	if !outcome.Valid {
		return opi.Invalid(indexermodel.OpDeploy, outcome.Code, outcome.Message), state.Staged{}, nil
	}

	var limitPerOp *string
	if op.LimitPerOp != "" {
		l := op.LimitPerOp
		limitPerOp = &l
	}
	deploy := &indexermodel.Deploy{
		Ticker:          op.Ticker,
		MaxSupply:       op.MaxSupply,
		RemainingSupply: op.MaxSupply,
		LimitPerOp:      limitPerOp,
		DeployTxID:      tx.TxID,
		DeployHeight:    tx.BlockHeight,
		DeployTimestamp: tx.Timestamp,
		DeployerAddress: tx.Sender,
	}

	staged := state.Staged{
		NewEntities: []any{deploy},
		Mutations:   []state.Mutation{state.PutDeploy(deploy)},
	}
	return opi.Valid(indexermodel.OpDeploy, op.Ticker, op.MaxSupply), staged, nil
}

// MintProcessor handles "mint" operations.
type MintProcessor struct {
	Validator *validator.Validator
}

func NewMintFactory(v *validator.Validator) opi.Factory {
	return func() opi.Processor { return &MintProcessor{Validator: v} }
}

func (p *MintProcessor) ProcessOp(op *opparser.Operation, tx opi.TxInfo, sctx *state.Context) (opi.Result, state.Staged, error) {
	outcome, err := p.Validator.ValidateMint(tx.BlockHeight, op, tx.HasStandardOutput, tx.IsOpReturnFirst, sctx)
	if err != nil {
		return opi.Result{}, state.Staged{}, err
	}
	if !outcome.Valid {
		return opi.Invalid(indexermodel.OpMint, outcome.Code, outcome.Message), state.Staged{}, nil
	}

	newBalance, err := creditBalance(sctx, tx.Recipient, op.Ticker, op.Amount)
	if err != nil {
		return opi.Result{}, state.Staged{}, err
	}
	newTotalMinted, err := addTotalMinted(sctx, op.Ticker, op.Amount)
	if err != nil {
		return opi.Result{}, state.Staged{}, err
	}
	// GetTotalMinted is derived as max_supply - remaining_supply (§3), so a
	// mint must debit remaining_supply by the same amount it credits
	// total_minted, or the mint vanishes from the persisted deploy row the
	// next time total_minted is computed from a cold load.
	deploy, err := sctx.GetDeployRecord(op.Ticker)
	if err != nil {
		return opi.Result{}, state.Staged{}, err
	}
	newRemaining, err := amount.Subtract(deploy.RemainingSupply, op.Amount)
	if err != nil {
		return opi.Result{}, state.Staged{}, err
	}

	staged := state.Staged{
		Mutations: []state.Mutation{
			state.SetBalance(tx.Recipient, op.Ticker, newBalance),
			state.AddTotalMinted(op.Ticker, newTotalMinted),
			state.SetRemainingSupply(op.Ticker, newRemaining),
		},
	}
	return opi.Valid(indexermodel.OpMint, op.Ticker, op.Amount), staged, nil
}

// TransferProcessor handles "transfer" operations (both simple and
// marketplace shapes; the classifier has already resolved sender/recipient
// before the pipeline invokes this processor).
type TransferProcessor struct {
	Validator *validator.Validator
}

func NewTransferFactory(v *validator.Validator) opi.Factory {
	return func() opi.Processor { return &TransferProcessor{Validator: v} }
}

func (p *TransferProcessor) ProcessOp(op *opparser.Operation, tx opi.TxInfo, sctx *state.Context) (opi.Result, state.Staged, error) {
	outcome, err := p.Validator.ValidateTransfer(tx.BlockHeight, op, tx.Sender, tx.HasStandardOutput, tx.IsMarketplace, tx.IsOpReturnFirst, sctx)
	if err != nil {
		return opi.Result{}, state.Staged{}, err
	}
	if !outcome.Valid {
		return opi.Invalid(indexermodel.OpTransfer, outcome.Code, outcome.Message), state.Staged{}, nil
	}

	newSenderBalance, err := debitBalance(sctx, tx.Sender, op.Ticker, op.Amount)
	if err != nil {
		return opi.Result{}, state.Staged{}, err
	}
	newRecipientBalance, err := creditBalance(sctx, tx.Recipient, op.Ticker, op.Amount)
	if err != nil {
		return opi.Result{}, state.Staged{}, err
	}

	staged := state.Staged{
		Mutations: []state.Mutation{
			state.SetBalance(tx.Sender, op.Ticker, newSenderBalance),
			state.SetBalance(tx.Recipient, op.Ticker, newRecipientBalance),
		},
	}
	return opi.Valid(indexermodel.OpTransfer, op.Ticker, op.Amount), staged, nil
}
