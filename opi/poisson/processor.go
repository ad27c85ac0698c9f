// Package poisson implements the "floodfish" participative-mint extension,
// grounded directly on the Python original's
// src/opi/operations/poisson_opi/processor.py: every transaction whose
// unspendable-data payload contains the literal fish glyph "<o()))><"
// registers a participation; at block end, the block's total reward is
// split across every participant, with a special case when the block was
// mined by the Ocean pool.
//
// Amounts in this repo are canonical non-negative integer strings (no
// fractional component, per amount.IsValid); the reward is therefore
// expressed in whole "millifloodfish" units (RewardPerBlock = 3125, i.e.
// the original's Decimal("3.125") scaled by 1000) rather than ported as a
// literal decimal, so FLOODFISH's deploy record must use the same scale.
package poisson

import (
	"bytes"
	"strconv"
	"time"

	"github.com/bitcoin-sv/brc20indexer/amount"
	"github.com/bitcoin-sv/brc20indexer/btcscript"
	"github.com/bitcoin-sv/brc20indexer/indexermodel"
	"github.com/bitcoin-sv/brc20indexer/opi"
	"github.com/bitcoin-sv/brc20indexer/opparser"
	"github.com/bitcoin-sv/brc20indexer/state"
)

const (
	// Ticker is the ticker this OPI mints against; it must be deployed
	// like any other ticker before participations are accepted.
	Ticker = "FLOODFISH"
	// RewardPerBlock is the total reward shared across one block's
	// participations in "millifloodfish" integer units (scaled 3.125).
	RewardPerBlock = 3125
	// OceanPoolIdentifier is the case-insensitive substring looked for in
	// any coinbase output's locking script; spec.md's open question
	// confirms this heuristic "as-is".
	OceanPoolIdentifier = "ocean"
	// FishPattern is the literal inscription that marks a participation.
	FishPattern = "<o()))><"
)

type participant struct {
	Address   string
	TxID      string
	TxIndex   int
	Timestamp time.Time
}

// Processor handles "poisson" operations dispatched through the registry.
type Processor struct{}

// NewFactory returns an opi.Factory producing a poisson Processor.
func NewFactory() opi.Factory {
	return func() opi.Processor { return &Processor{} }
}

func (p *Processor) ProcessOp(op *opparser.Operation, tx opi.TxInfo, sctx *state.Context) (opi.Result, state.Staged, error) {
	if !bytes.Contains(tx.RawPayload, []byte(FishPattern)) {
		return opi.Invalid(indexermodel.OpPoisson, 0, "payload must contain "+FishPattern), state.Staged{}, nil
	}
	if tx.Sender == "" {
		return opi.Invalid(indexermodel.OpPoisson, 0, "cannot determine sender address"), state.Staged{}, nil
	}

	deploy, err := sctx.GetDeployRecord(Ticker)
	if err != nil {
		return opi.Result{}, state.Staged{}, err
	}
	if deploy == nil {
		return opi.Invalid(indexermodel.OpPoisson, 0, "ticker "+Ticker+" not deployed, deploy it first"), state.Staged{}, nil
	}

	key := state.ScratchKeyPoissonParticipants(tx.BlockHeight)
	entry := participant{Address: tx.Sender, TxID: tx.TxID, TxIndex: tx.TxIndex, Timestamp: tx.Timestamp}

	staged := state.Staged{
		Mutations: []state.Mutation{state.AppendScratchList(key, entry)},
	}
	// Amount is finalized at block end; the operation log records "0" for
	// now and poisson's OnBlockEnd patches it once every participant in
	// the block is known.
	return opi.Valid(indexermodel.OpPoisson, Ticker, amount.Zero), staged, nil
}

// OnBlockEnd implements opi.BlockEndHook: it sums the block's
// participations, detects an Ocean-pool-mined block, computes each
// participant's reward, stages balance credits, and patches each
// participation's operation-log amount in place.
func (p *Processor) OnBlockEnd(info opi.BlockEndInfo, sctx *state.Context) (state.Staged, error) {
	key := state.ScratchKeyPoissonParticipants(info.Height)
	raw, ok := sctx.GetScratch(key)
	if !ok {
		return state.Staged{}, nil
	}
	list, _ := raw.([]any)
	if len(list) == 0 {
		return state.Staged{}, nil
	}

	participants := make([]participant, 0, len(list))
	for _, v := range list {
		if pt, ok := v.(participant); ok {
			participants = append(participants, pt)
		}
	}
	total := len(participants)
	if total == 0 {
		return state.Staged{}, nil
	}

	isOcean := detectOceanPool(info.CoinbaseOutputs)

	byAddress := make(map[string][]participant)
	for _, pt := range participants {
		byAddress[pt.Address] = append(byAddress[pt.Address], pt)
	}

	var mutations []state.Mutation
	for address, addrParticipations := range byAddress {
		var totalRewardForAddress int64
		if isOcean {
			// Ocean bonus: every participation earns the full block
			// reward, uncapped - multiple participations compound rather
			// than being capped, matching the original implementation's
			// actual (not its stale docstring's) behavior.
			totalRewardForAddress = RewardPerBlock * int64(len(addrParticipations))
		} else {
			totalRewardForAddress = (RewardPerBlock * int64(len(addrParticipations))) / int64(total)
		}
		rewardStr := strconv.FormatInt(totalRewardForAddress, 10)

		currentBalance, err := sctx.GetBalance(address, Ticker)
		if err != nil {
			return state.Staged{}, err
		}
		newBalance, err := amount.Add(currentBalance, rewardStr)
		if err != nil {
			return state.Staged{}, err
		}
		mutations = append(mutations, state.SetBalance(address, Ticker, newBalance))

		perParticipation := totalRewardForAddress / int64(len(addrParticipations))
		for _, pt := range addrParticipations {
			patchLogAmount(info.LogEntries, pt.TxID, strconv.FormatInt(perParticipation, 10))
		}
	}

	mutations = append(mutations, state.PutScratch(key, nil))
	return state.Staged{Mutations: mutations}, nil
}

func patchLogAmount(entries []*indexermodel.OperationLogEntry, txid, newAmount string) {
	for _, e := range entries {
		if e.TxID == txid && e.OperationKind == indexermodel.OpPoisson {
			e.Amount = &newAmount
			return
		}
	}
}

// detectOceanPool reports whether any coinbase output's locking script
// contains the Ocean pool identifier, case-insensitively.
func detectOceanPool(coinbaseOutputs []btcscript.Output) bool {
	for _, out := range coinbaseOutputs {
		if bytes.Contains(bytes.ToLower(out.Script), []byte(OceanPoolIdentifier)) {
			return true
		}
	}
	return false
}
