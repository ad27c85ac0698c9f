// Package validator implements §4.4: consensus validation of a normalized
// operation against committed state plus the in-block intermediate state.
// It is the direct Go counterpart of the Python original's
// BRC20Validator.validate_deploy/validate_mint/validate_transfer
// (src/services/validator.py), restructured around the teacher's pattern of
// a stateless struct whose methods take an explicit context rather than
// hidden global state (services/validator/Validator.Validate).
package validator

import (
	"context"
	"strings"
	"time"

	"github.com/bitcoin-sv/brc20indexer/amount"
	"github.com/bitcoin-sv/brc20indexer/brconfig"
	"github.com/bitcoin-sv/brc20indexer/errors"
	"github.com/bitcoin-sv/brc20indexer/opparser"
	"github.com/bitcoin-sv/brc20indexer/state"
)

// LegacyOracle is the out-of-scope external collaborator spec.md §4.4
// references: "if a legacy-token oracle is configured and returns a
// conflicting prior deploy". Implemented by stores/legacyoracle.
type LegacyOracle interface {
	// CheckTokenExists returns the legacy deploy height for ticker, or
	// found=false if the oracle has no record of it. Any transport/decode
	// error is returned so the validator can fail open, matching the
	// Python original's try/except around legacy_token_service.
	CheckTokenExists(ctx context.Context, ticker string) (height uint32, found bool, err error)
}

// Validator enforces spec.md §4.4's rules. It holds no mutable state of its
// own; every call is a pure function of its arguments plus the read-only
// state.Context.
type Validator struct {
	cfg    *brconfig.Config
	oracle LegacyOracle // nil when no legacy oracle is configured
}

// New constructs a Validator. oracle may be nil.
func New(cfg *brconfig.Config, oracle LegacyOracle) *Validator {
	return &Validator{cfg: cfg, oracle: oracle}
}

// Outcome is the validator's verdict: valid, or invalid with a reason code.
type Outcome struct {
	Valid   bool
	Code    errors.ERR
	Message string
}

func invalid(code errors.ERR, format string, args ...any) Outcome {
	return Outcome{Valid: false, Code: code, Message: errors.New(code, format, args...).Error()}
}

func ok() Outcome {
	return Outcome{Valid: true}
}

// ValidateDeploy enforces spec.md §4.4's deploy rules.
func (v *Validator) ValidateDeploy(ctx context.Context, blockHeight uint32, op *opparser.Operation, sctx *state.Context) (Outcome, error) {
	existing, err := sctx.GetDeployRecord(op.Ticker)
	if err != nil {
		return Outcome{}, err
	}
	if existing != nil {
		return invalid(errors.ERR_TICKER_ALREADY_EXISTS, "ticker already deployed: %s", op.Ticker), nil
	}

	if !amount.InRange(op.MaxSupply) {
		return invalid(errors.ERR_INVALID_AMOUNT, "invalid max_supply: %s", op.MaxSupply), nil
	}
	if op.LimitPerOp != "" && !amount.InRange(op.LimitPerOp) {
		return invalid(errors.ERR_INVALID_AMOUNT, "invalid limit_per_op: %s", op.LimitPerOp), nil
	}

	if v.oracle != nil {
		legacyHeight, found, err := v.oracle.CheckTokenExists(ctx, op.Ticker)
		if err != nil {
			// Fail open: an oracle that cannot be reached does not block
			// deploys, matching the Python original's except-clause behavior.
			found = false
		}
		if found && legacyHeight <= blockHeight {
			return invalid(errors.ERR_LEGACY_TOKEN_EXISTS, "ticker %s already deployed at or before height %d by the legacy service", op.Ticker, legacyHeight), nil
		}
	}

	return ok(), nil
}

// ValidateMint enforces spec.md §4.4's mint rules, including the
// must-use-live-intermediate-total_minted requirement so that several
// mints in one block compose correctly.
func (v *Validator) ValidateMint(blockHeight uint32, op *opparser.Operation, hasStandardOutput, isOpReturnFirst bool, sctx *state.Context) (Outcome, error) {
	deploy, err := sctx.GetDeployRecord(op.Ticker)
	if err != nil {
		return Outcome{}, err
	}
	if deploy == nil {
		return invalid(errors.ERR_TICKER_NOT_DEPLOYED, "ticker not deployed: %s", op.Ticker), nil
	}
	if !amount.InRange(op.Amount) {
		return invalid(errors.ERR_INVALID_AMOUNT, "invalid mint amount: %s", op.Amount), nil
	}
	if !hasStandardOutput {
		return invalid(errors.ERR_NO_STANDARD_OUTPUT, "mint requires a resolvable token-allocation output"), nil
	}
	if blockHeight >= v.cfg.OpReturnFirstPositionThreshold && !isOpReturnFirst {
		return invalid(errors.ERR_OP_RETURN_NOT_FIRST, "unspendable-data output must be at index 0 at or above height %d", v.cfg.OpReturnFirstPositionThreshold), nil
	}

	if deploy.LimitPerOp != nil && *deploy.LimitPerOp != "" {
		exceeds, err := amount.GreaterThan(op.Amount, *deploy.LimitPerOp)
		if err != nil {
			return Outcome{}, err
		}
		if exceeds {
			return invalid(errors.ERR_EXCEEDS_MINT_LIMIT, "mint amount %s exceeds limit_per_op %s", op.Amount, *deploy.LimitPerOp), nil
		}
	}

	totalMinted, err := sctx.GetTotalMinted(op.Ticker)
	if err != nil {
		return Outcome{}, err
	}
	totalAfter, err := amount.Add(totalMinted, op.Amount)
	if err != nil {
		return Outcome{}, err
	}
	overMax, err := amount.GreaterThan(totalAfter, deploy.MaxSupply)
	if err != nil {
		return Outcome{}, err
	}
	if overMax {
		excess, err := amount.Excess(totalAfter, deploy.MaxSupply)
		if err != nil {
			return Outcome{}, err
		}
		return invalid(errors.ERR_EXCEEDS_MAX_SUPPLY, "mint would exceed max_supply %s by %s", deploy.MaxSupply, excess), nil
	}

	return ok(), nil
}

// ValidateTransfer enforces spec.md §4.4's transfer rules. isMarketplace
// exempts the op-return-position check; isOpReturnFirst is the pipeline's
// position check result (payload output at index 0) for the
// non-marketplace case.
func (v *Validator) ValidateTransfer(blockHeight uint32, op *opparser.Operation, sender string, hasStandardOutput, isMarketplace, isOpReturnFirst bool, sctx *state.Context) (Outcome, error) {
	deploy, err := sctx.GetDeployRecord(op.Ticker)
	if err != nil {
		return Outcome{}, err
	}
	if deploy == nil {
		return invalid(errors.ERR_TICKER_NOT_DEPLOYED, "ticker not deployed: %s", op.Ticker), nil
	}
	if !amount.InRange(op.Amount) {
		return invalid(errors.ERR_INVALID_AMOUNT, "invalid transfer amount: %s", op.Amount), nil
	}
	if !hasStandardOutput {
		return invalid(errors.ERR_NO_STANDARD_OUTPUT, "transfer requires a resolvable token-allocation output"), nil
	}
	if !isMarketplace && blockHeight >= v.cfg.OpReturnFirstPositionThreshold && !isOpReturnFirst {
		return invalid(errors.ERR_OP_RETURN_NOT_FIRST, "unspendable-data output must be at index 0 at or above height %d", v.cfg.OpReturnFirstPositionThreshold), nil
	}

	senderBalance, err := sctx.GetBalance(sender, op.Ticker)
	if err != nil {
		return Outcome{}, err
	}
	sufficient, err := amount.GreaterEqual(senderBalance, op.Amount)
	if err != nil {
		return Outcome{}, err
	}
	if !sufficient {
		return invalid(errors.ERR_INSUFFICIENT_BALANCE, "sender %s balance %s insufficient for transfer of %s", sender, senderBalance, op.Amount), nil
	}

	return ok(), nil
}

// ValidateTimestamp enforces spec.md §4.8 step 1: the block's timestamp
// must be a non-negative integer, not before genesis, and not unreasonably
// far in the future.
func ValidateTimestamp(cfg *brconfig.Config, ts time.Time) error {
	genesis := time.Unix(cfg.BitcoinGenesisTimestamp, 0).UTC()
	if ts.Before(genesis) {
		return errors.NewInvalidArgumentError("block timestamp %s predates genesis %s", ts, genesis)
	}
	maxFuture := time.Now().UTC().Add(2 * time.Hour)
	if ts.After(maxFuture) {
		return errors.NewInvalidArgumentError("block timestamp %s is too far in the future", ts)
	}
	return nil
}

// NormalizeTicker upper-cases a ticker the way every validation rule
// expects it, per spec.md §3's case-folding invariant.
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}
