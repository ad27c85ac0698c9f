package builtin

import (
	"github.com/bitcoin-sv/brc20indexer/amount"
	"github.com/bitcoin-sv/brc20indexer/state"
)

// creditBalance returns address's ticker balance after adding delta,
// reading the current value through sctx (its read-through-cache, never
// mutated directly here - the mutation is applied later by the pipeline).
func creditBalance(sctx *state.Context, address, ticker, delta string) (string, error) {
	current, err := sctx.GetBalance(address, ticker)
	if err != nil {
		return "", err
	}
	return amount.Add(current, delta)
}

// debitBalance returns address's ticker balance after subtracting delta.
// Callers must have already validated sufficiency (validator.ValidateTransfer).
func debitBalance(sctx *state.Context, address, ticker, delta string) (string, error) {
	current, err := sctx.GetBalance(address, ticker)
	if err != nil {
		return "", err
	}
	return amount.Subtract(current, delta)
}

// addTotalMinted returns ticker's cumulative minted total after adding delta.
func addTotalMinted(sctx *state.Context, ticker, delta string) (string, error) {
	current, err := sctx.GetTotalMinted(ticker)
	if err != nil {
		return "", err
	}
	return amount.Add(current, delta)
}
