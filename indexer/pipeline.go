// Package indexer implements spec.md §4.8's block pipeline and §4.9's
// reorg controller: the component that actually drives a block through
// extraction, parsing, classification, validation, processing, and atomic
// commit, wiring together every other package in this repo. Grounded on
// the teacher's block-assembly/validation services' Server.go main loops
// (services/blockvalidation, services/blockassembly), restructured around
// this repo's pure-function processor/registry model rather than a gRPC
// service surface.
package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bitcoin-sv/brc20indexer/brconfig"
	"github.com/bitcoin-sv/brc20indexer/btcscript"
	"github.com/bitcoin-sv/brc20indexer/classifier"
	"github.com/bitcoin-sv/brc20indexer/errors"
	"github.com/bitcoin-sv/brc20indexer/indexermodel"
	"github.com/bitcoin-sv/brc20indexer/opi"
	"github.com/bitcoin-sv/brc20indexer/opparser"
	sqlstore "github.com/bitcoin-sv/brc20indexer/stores/sql"
	"github.com/bitcoin-sv/brc20indexer/state"
	"github.com/bitcoin-sv/brc20indexer/ulogger"
	"github.com/bitcoin-sv/brc20indexer/validator"
	"github.com/prometheus/client_golang/prometheus"
)

// AuditPublisher streams every committed operation-log entry to an
// external audit sink (stores/kafka's sarama producer, §6's domain stack).
// Publishing is best-effort: a publish failure is logged and swallowed,
// never escalated to a block-processing error, per §7's transient-
// infrastructure policy.
type AuditPublisher interface {
	PublishOperation(entry *indexermodel.OperationLogEntry) error
}

// Status is the outcome of one ProcessBlock call.
type Status string

const (
	StatusCommitted Status = "committed"
	StatusDuplicate Status = "duplicate"
	StatusReorged   Status = "reorged"
)

// Outcome summarizes what ProcessBlock did, for the caller's cursor logic.
type Outcome struct {
	Status         Status
	OpsFound       int
	OpsValid       int
	RollbackHeight uint32 // meaningful only when Status == StatusReorged
}

// Pipeline drives one block at a time through §4.8's steps. It is the
// sole writer spec.md §5 describes: callers must serialize ProcessBlock
// calls by ascending height themselves.
type Pipeline struct {
	cfg         *brconfig.Config
	store       *sqlstore.Store
	reads       state.PersistentStore // read path for state.Context; defaults to store
	registry    *opi.Registry
	logger      ulogger.Logger
	audit       AuditPublisher // optional
	chainLookup ChainLookup    // optional, used only for deep-reorg ancestor scans
}

// New constructs a Pipeline. audit and chainLookup may both be nil.
func New(cfg *brconfig.Config, store *sqlstore.Store, registry *opi.Registry, logger ulogger.Logger, audit AuditPublisher, chainLookup ChainLookup) *Pipeline {
	initPrometheusMetrics()
	return &Pipeline{cfg: cfg, store: store, reads: store, registry: registry, logger: logger, audit: audit, chainLookup: chainLookup}
}

// WithReadStore swaps the PersistentStore consulted while building each
// block's state.Context, letting a caller layer stores/cache's best-effort
// TTL cache (§6) in front of deploy-record lookups without changing how
// commits or reorg rollbacks are written. Passing nil restores the default
// of reading directly from store.
func (p *Pipeline) WithReadStore(reads state.PersistentStore) *Pipeline {
	if reads == nil {
		reads = p.store
	}
	p.reads = reads
	return p
}

// ProcessBlock runs §4.9's reorg check followed by spec.md §4.8's per-block
// loop, and commits atomically. Callers must feed blocks in ascending
// height order; ProcessBlock does not itself fetch from a node.
func (p *Pipeline) ProcessBlock(ctx context.Context, block indexermodel.RPCBlock) (Outcome, error) {
	timer := prometheus.NewTimer(prometheusIndexerProcessBlock)
	defer timer.ObserveDuration()

	out, err := p.processBlock(ctx, block)
	if err == nil {
		switch out.Status {
		case StatusCommitted:
			prometheusIndexerBlocksProcessed.Inc()
			prometheusIndexerOpsFound.Add(float64(out.OpsFound))
			prometheusIndexerOpsValid.Add(float64(out.OpsValid))
		case StatusReorged:
			prometheusIndexerBlocksReorged.Inc()
		}
	}
	return out, err
}

func (p *Pipeline) processBlock(ctx context.Context, block indexermodel.RPCBlock) (Outcome, error) {
	if err := validator.ValidateTimestamp(p.cfg, block.Timestamp); err != nil {
		return Outcome{}, err
	}

	if block.Height > 0 {
		parent, err := p.store.GetProcessedBlock(block.Height - 1)
		if err != nil {
			return Outcome{}, err
		}
		if parent != nil && parent.BlockHash != block.PrevHash {
			ancestor, ferr := p.findCommonAncestor(ctx, block)
			if ferr != nil {
				return Outcome{}, ferr
			}
			if err := p.store.RollbackAboveHeight(ancestor); err != nil {
				return Outcome{}, err
			}
			p.logger.Warnf("reorg at height %d: parent hash mismatch, rolled back to height %d", block.Height, ancestor)
			return Outcome{Status: StatusReorged, RollbackHeight: ancestor}, nil
		}
	}

	existing, err := p.store.GetProcessedBlock(block.Height)
	if err != nil {
		return Outcome{}, err
	}
	if existing != nil {
		if existing.BlockHash == block.Hash {
			return Outcome{Status: StatusDuplicate}, nil
		}
		if block.Height == 0 {
			return Outcome{}, errors.NewReorgTooDeepError("cannot roll back below genesis at height 0")
		}
		if err := p.store.RollbackAboveHeight(block.Height - 1); err != nil {
			return Outcome{}, err
		}
		p.logger.Warnf("reorg at height %d: same-height hash mismatch, rolled back", block.Height)

		if _, err := p.commitBlock(ctx, block); err != nil {
			return Outcome{}, err
		}
		return Outcome{Status: StatusReorged, RollbackHeight: block.Height - 1}, nil
	}

	return p.commitBlock(ctx, block)
}

// commitBlock implements §4.8 steps 2-4 once the reorg check above has
// cleared the way: process every transaction in order, run block-end
// hooks, then commit everything in one transaction.
func (p *Pipeline) commitBlock(ctx context.Context, block indexermodel.RPCBlock) (Outcome, error) {
	st := state.New(block.Height)
	sctx := state.NewContext(st, p.reads)

	var logEntries []*indexermodel.OperationLogEntry
	var newEntities, updatedEntities []any
	opsFound, opsValid := 0, 0

	for _, tx := range block.Txs {
		select {
		case <-ctx.Done():
			return Outcome{}, ctx.Err()
		default:
		}

		payload, voutIdx, found := btcscript.ExtractUnspendablePayload(tx.Outputs)
		if !found {
			continue
		}
		opsFound++

		entry, staged, perr := p.processTx(tx, voutIdx, payload, block, sctx)
		if perr != nil {
			return Outcome{}, perr
		}
		if entry.IsValid {
			state.Apply(st, staged)
			newEntities = append(newEntities, staged.NewEntities...)
			updatedEntities = append(updatedEntities, staged.UpdatedEntities...)
			opsValid++
		}
		logEntries = append(logEntries, entry)
	}

	for _, hook := range p.registry.BlockEndHooks() {
		staged, herr := hook.OnBlockEnd(opi.BlockEndInfo{
			Height:          block.Height,
			BlockHash:       block.Hash,
			CoinbaseOutputs: coinbaseOutputs(block),
			LogEntries:      logEntries,
		}, sctx)
		if herr != nil {
			return Outcome{}, herr
		}
		state.Apply(st, staged)
		newEntities = append(newEntities, staged.NewEntities...)
		updatedEntities = append(updatedEntities, staged.UpdatedEntities...)
	}

	in := sqlstore.CommitInput{
		Height: block.Height, BlockHash: block.Hash, Timestamp: block.Timestamp,
		TxCount: len(block.Txs), OpsFound: opsFound, OpsValid: opsValid,
		State: st, NewEntities: newEntities, UpdatedEntities: updatedEntities, LogEntries: logEntries,
	}
	if err := p.store.CommitBlock(in); err != nil {
		if errors.Is(err, sqlstore.ErrBlockAlreadyProcessed) {
			// A concurrent writer won the race for this height (§4.9's
			// "same-height" case reached via the unique-constraint trigger
			// rather than our pre-check above); treat it as a no-op.
			return Outcome{Status: StatusDuplicate}, nil
		}
		return Outcome{}, err
	}

	p.invalidateTouchedTickers(logEntries)

	if p.audit != nil {
		for _, entry := range logEntries {
			if perr := p.audit.PublishOperation(entry); perr != nil {
				p.logger.Warnf("audit publish failed for tx %s vout %d: %v", entry.TxID, entry.VoutIndex, perr)
			}
		}
	}

	return Outcome{Status: StatusCommitted, OpsFound: opsFound, OpsValid: opsValid}, nil
}

// tickerInvalidator is implemented by stores/cache.CachedStore. Checking
// for it with a type assertion keeps this package free of a hard
// dependency on the cache package, which is entirely optional per §6.
type tickerInvalidator interface {
	InvalidateTicker(ticker string)
}

// invalidateTouchedTickers drops any cached deploy record a just-committed
// block changed, so the next block's reads see this block's effect
// immediately instead of waiting out the cache's TTL - load-bearing for
// deploy/mint ordering since a stale remaining_supply could let a later
// mint over-issue.
func (p *Pipeline) invalidateTouchedTickers(logEntries []*indexermodel.OperationLogEntry) {
	invalidator, ok := p.reads.(tickerInvalidator)
	if !ok {
		return
	}
	seen := make(map[string]bool)
	for _, entry := range logEntries {
		if !entry.IsValid || entry.Ticker == nil || *entry.Ticker == "" {
			continue
		}
		if entry.OperationKind != indexermodel.OpDeploy && entry.OperationKind != indexermodel.OpMint && entry.OperationKind != indexermodel.OpSwapInit {
			continue
		}
		if seen[*entry.Ticker] {
			continue
		}
		seen[*entry.Ticker] = true
		invalidator.InvalidateTicker(*entry.Ticker)
	}
}

// processTx implements §4.8 step 2 for one transaction: extract (already
// done by the caller), parse, classify, validate via the dispatched
// processor, and build the operation-log entry. It never mutates sctx
// itself; mutations are returned in staged for the caller to apply only
// when the entry is valid.
func (p *Pipeline) processTx(tx indexermodel.RPCTx, voutIdx int, payload []byte, block indexermodel.RPCBlock, sctx *state.Context) (*indexermodel.OperationLogEntry, state.Staged, error) {
	base := &indexermodel.OperationLogEntry{
		TxID: tx.TxID, VoutIndex: voutIdx, BlockHeight: block.Height, BlockHash: block.Hash,
		TxIndex: tx.Index, Timestamp: block.Timestamp, RawPayload: payload, OperationKind: indexermodel.OpUnknown,
	}

	op, perr := opparser.Parse(payload)
	if perr != nil {
		code, msg := errCodeAndMessage(perr, errors.ERR_INVALID_JSON)
		base.IsValid = false
		base.ErrorCode = &code
		base.ErrorMessage = &msg
		return base, state.Staged{}, nil
	}

	kind, opName := resolveOpName(op)
	base.OperationKind = kind
	if parsed, merr := json.Marshal(op); merr == nil {
		base.ParsedPayload = parsed
	}

	txInfo := opi.TxInfo{
		TxID: tx.TxID, TxIndex: tx.Index, VoutIndex: voutIdx,
		BlockHeight: block.Height, BlockHash: block.Hash, Timestamp: block.Timestamp,
		RawPayload: payload, IsOpReturnFirst: voutIdx == 0,
	}

	switch op.Kind {
	case opparser.KindTransfer:
		cls := classifier.Classify(tx.Inputs, tx.Outputs)
		if cls.Shape == classifier.ShapeInvalidMarket {
			code := errors.ERR_INVALID_MARKETPLACE.String()
			msg := "marketplace transfer shape is incomplete or unrecognized"
			base.IsValid = false
			base.ErrorCode = &code
			base.ErrorMessage = &msg
			base.Ticker = strPtr(op.Ticker)
			base.Amount = strPtr(op.Amount)
			return base, state.Staged{}, nil
		}
		txInfo.Sender = cls.Sender
		txInfo.Recipient = cls.Recipient
		txInfo.IsMarketplace = cls.Shape == classifier.ShapeMarketplace
		txInfo.HasStandardOutput = cls.Recipient != ""
		base.IsMarketplace = txInfo.IsMarketplace
	case opparser.KindMint:
		if len(tx.Inputs) > 0 {
			txInfo.Sender = tx.Inputs[0].PrevOutAddress
		}
		recipient, ok := btcscript.OutputAfterPayloadAddress(tx.Outputs)
		txInfo.Recipient = recipient
		txInfo.HasStandardOutput = ok
	default:
		if len(tx.Inputs) > 0 {
			txInfo.Sender = tx.Inputs[0].PrevOutAddress
		}
		if recipient, ok := btcscript.OutputAfterPayloadAddress(tx.Outputs); ok {
			txInfo.Recipient = recipient
			txInfo.HasStandardOutput = true
		}
	}

	processor, ok := p.registry.Get(opName)
	if !ok {
		code := errors.ERR_UNKNOWN_OP.String()
		msg := fmt.Sprintf("no processor registered for op %q", opName)
		base.IsValid = false
		base.ErrorCode = &code
		base.ErrorMessage = &msg
		return base, state.Staged{}, nil
	}

	result, staged, err := processor.ProcessOp(op, txInfo, sctx)
	if err != nil {
		return nil, state.Staged{}, err
	}

	base.IsValid = result.IsValid
	base.OperationKind = result.OperationType
	base.Ticker = strPtr(result.Ticker)
	base.Amount = strPtr(result.Amount)
	base.FromAddress = strPtr(txInfo.Sender)
	base.ToAddress = strPtr(txInfo.Recipient)
	if !result.IsValid {
		code := result.ErrorCode.String()
		msg := result.ErrorMessage
		base.ErrorCode = &code
		base.ErrorMessage = &msg
	}

	return base, staged, nil
}

// resolveOpName maps a parsed operation to the registry key the pipeline
// dispatches on. Built-ins use their opparser.Kind directly; anything else
// (swap/poisson/vault and future extensions) dispatches on the wire
// payload's own "op" field, lower-cased.
func resolveOpName(op *opparser.Operation) (indexermodel.OperationKind, string) {
	switch op.Kind {
	case opparser.KindDeploy:
		return indexermodel.OpDeploy, "deploy"
	case opparser.KindMint:
		return indexermodel.OpMint, "mint"
	case opparser.KindTransfer:
		return indexermodel.OpTransfer, "transfer"
	case opparser.KindSwapInit:
		return indexermodel.OpSwapInit, "swap"
	default:
		name, _ := op.Raw["op"].(string)
		return indexermodel.OpUnknown, strings.ToLower(name)
	}
}

// errCodeAndMessage unwraps a parse-layer *errors.Error into the string
// code/message pair an operation-log row stores, falling back to fallback
// when perr is not one of this repo's own error values.
func errCodeAndMessage(perr error, fallback errors.ERR) (string, string) {
	var appErr *errors.Error
	if errors.As(perr, &appErr) {
		return appErr.Code.String(), appErr.Message
	}
	return fallback.String(), perr.Error()
}

// coinbaseOutputs returns the coinbase transaction's outputs (tx index 0),
// for extensions that inspect the coinbase script (poisson's Ocean-pool
// detection).
func coinbaseOutputs(block indexermodel.RPCBlock) []btcscript.Output {
	for _, tx := range block.Txs {
		if tx.Index == 0 {
			return tx.Outputs
		}
	}
	if len(block.Txs) > 0 {
		return block.Txs[0].Outputs
	}
	return nil
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
