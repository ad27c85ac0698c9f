// Package opi implements §4.7: the processor runtime and registry. A
// registry maps an operation name to a processor factory; built-in
// deploy/mint/transfer processors are registered the same way extensions
// are, so the pipeline never special-cases them beyond ordering. This
// mirrors the Python original's OPIRegistry/BaseProcessor
// (src/opi/registry.py, src/opi/base_opi.py), restructured around Go
// interfaces and factory functions instead of abstract base classes.
package opi

import (
	"time"

	"github.com/bitcoin-sv/brc20indexer/btcscript"
	"github.com/bitcoin-sv/brc20indexer/errors"
	"github.com/bitcoin-sv/brc20indexer/indexermodel"
	"github.com/bitcoin-sv/brc20indexer/opparser"
	"github.com/bitcoin-sv/brc20indexer/state"
)

// TxInfo carries everything about the enclosing transaction a processor
// needs beyond the normalized operation itself: identity, position,
// timing, and the classifier's resolved sender/recipient and shape flags.
type TxInfo struct {
	TxID              string
	TxIndex           int
	VoutIndex         int
	BlockHeight       uint32
	BlockHash         string
	Timestamp         time.Time
	Sender            string
	Recipient         string
	IsMarketplace     bool
	HasStandardOutput bool
	IsOpReturnFirst   bool
	RawPayload        []byte
}

// Result is a processor's verdict plus the fields the operation log needs,
// spec.md §4.7.
type Result struct {
	OperationFound bool
	IsValid        bool
	ErrorCode      errors.ERR
	ErrorMessage   string
	OperationType  indexermodel.OperationKind
	Ticker         string
	Amount         string
}

// Invalid builds a Result for a validation failure, carrying the error code
// and message into the operation log.
func Invalid(opType indexermodel.OperationKind, code errors.ERR, message string) Result {
	return Result{OperationFound: true, IsValid: false, ErrorCode: code, ErrorMessage: message, OperationType: opType}
}

// Valid builds a Result for a successfully processed operation.
func Valid(opType indexermodel.OperationKind, ticker, amount string) Result {
	return Result{OperationFound: true, IsValid: true, OperationType: opType, Ticker: ticker, Amount: amount}
}

// Processor is the single-method handle spec.md §4.7 describes: given the
// normalized operation, the enclosing transaction's info, and a read-only
// state.Context, it returns a verdict plus staged entities/mutations. It
// must never mutate sctx directly.
type Processor interface {
	ProcessOp(op *opparser.Operation, tx TxInfo, sctx *state.Context) (Result, state.Staged, error)
}

// BlockEndInfo bundles what an on_block_end hook needs beyond the
// read-only state.Context, spec.md §4.7's
// "on_block_end(height, block_hash, block_data, intermediate_state, tx)".
// LogEntries are the operation-log rows assembled so far this block - not
// yet committed - so a hook (e.g. poisson) can patch an entry's amount
// in place before the pipeline's final commit.
type BlockEndInfo struct {
	Height          uint32
	BlockHash       string
	CoinbaseOutputs []btcscript.Output
	LogEntries      []*indexermodel.OperationLogEntry
}

// BlockEndHook is implemented by extensions needing block-end work, spec.md
// §4.7 (e.g. the poisson reward distribution, the vault remaining_blocks
// countdown).
type BlockEndHook interface {
	OnBlockEnd(info BlockEndInfo, sctx *state.Context) (state.Staged, error)
}

// Factory builds a fresh Processor instance. Processors are stateless
// between calls (any per-block accumulation goes through state.Context's
// scratch), so a factory typically just returns a zero-value struct.
type Factory func() Processor
