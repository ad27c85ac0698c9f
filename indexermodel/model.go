// Package indexermodel holds the persisted and wire-level types described
// in spec.md §3 and §6: deploy records, balances, the operation log,
// processed-block markers, the swap/vault extension state, and the
// node-RPC input contract the block pipeline consumes.
package indexermodel

import "time"

// OperationKind is the recognized shape of a parsed operation, per
// spec.md §2.3 and §4.3.
type OperationKind string

const (
	OpDeploy   OperationKind = "deploy"
	OpMint     OperationKind = "mint"
	OpTransfer OperationKind = "transfer"
	OpSwapInit OperationKind = "swap_init"
	OpPoisson  OperationKind = "poisson"
	OpUnknown  OperationKind = "unknown"
)

// Deploy is the per-ticker deploy record, spec.md §3.
type Deploy struct {
	ID              int64
	Ticker          string // upper-case canonical
	MaxSupply       string // canonical decimal string
	RemainingSupply string // canonical decimal string
	LimitPerOp      *string
	DeployTxID      string
	DeployHeight    uint32
	DeployTimestamp time.Time
	DeployerAddress string
}

// Balance is a (address, ticker) row, spec.md §3. A missing row means 0;
// callers should never persist an explicit zero-value row except when one
// already exists and is being decremented to zero.
type Balance struct {
	Address string
	Ticker  string // upper-case canonical
	Balance string // canonical decimal string
}

// OperationLogEntry is the append-only audit trail of every recognized
// candidate output, valid or invalid, spec.md §3.
type OperationLogEntry struct {
	ID              int64
	TxID            string
	VoutIndex       int
	OperationKind   OperationKind
	Ticker          *string
	Amount          *string
	FromAddress     *string
	ToAddress       *string
	BlockHeight     uint32
	BlockHash       string
	TxIndex         int
	Timestamp       time.Time
	IsValid         bool
	ErrorCode       *string
	ErrorMessage    *string
	RawPayload      []byte
	ParsedPayload   []byte // JSON-encoded normalized operation, if parsed
	IsMarketplace   bool
	IsMultiTransfer bool
}

// ProcessedBlock is the per-height commit marker, spec.md §3. Its
// (height) primary key is the concurrency guard the reorg controller relies
// on (§4.9): a second commit attempt at the same height either detects a
// duplicate or a reorg, never a silent second row.
type ProcessedBlock struct {
	Height    uint32
	BlockHash string
	Timestamp time.Time
	TxCount   int
	OpsFound  int
	OpsValid  int
}

// SwapPositionStatus is the lifecycle state of a timelocked swap position.
type SwapPositionStatus string

const (
	SwapActive  SwapPositionStatus = "active"
	SwapExpired SwapPositionStatus = "expired"
	SwapClosed  SwapPositionStatus = "closed"
)

// SwapPosition is a timelocked swap-pool lock created by swap.init,
// spec.md §3.
type SwapPosition struct {
	ID               int64
	OwnerAddress     string
	PoolID           string // canonical alphabetical "SRC-DST"
	SrcTicker        string
	DstTicker        string
	AmountLocked     string
	LockDurationBlks uint32
	LockStartHeight  uint32
	UnlockHeight     uint32
	Status           SwapPositionStatus
	InitTxID         string
}

// VaultStatus is the lifecycle state of a sovereign vault contract.
type VaultStatus string

const (
	VaultActive            VaultStatus = "active"
	VaultAbandoned         VaultStatus = "abandoned"
	VaultRecycled          VaultStatus = "recycled"
	VaultSovereignRecovery VaultStatus = "sovereign_recovery"
	VaultClosed            VaultStatus = "closed"
)

// Vault is a sovereign-vault (W-protocol) contract, spec.md §3.
type Vault struct {
	ID                int64
	P2TRAddress       string
	OwnerAddress      string
	CollateralSats    uint64
	RemainingBlocks   *uint32
	WProofCommitment  string
	Status            VaultStatus
	RevealTxID        string
	RevealHeight      uint32
	ClosingTxID       *string
	ClosingHeight     *uint32
}
