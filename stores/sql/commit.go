package sql

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/bitcoin-sv/brc20indexer/errors"
	"github.com/bitcoin-sv/brc20indexer/indexermodel"
	"github.com/bitcoin-sv/brc20indexer/state"
)

// CommitInput bundles one block's worth of staged state for an atomic
// commit, grounded on the teacher's StoreBlock.go: one transaction writes
// the block marker and every entity the block touched, or none of it does.
type CommitInput struct {
	Height          uint32
	BlockHash       string
	Timestamp       time.Time
	TxCount         int
	OpsFound        int
	OpsValid        int
	State           *state.IntermediateState
	NewEntities     []any
	UpdatedEntities []any
	LogEntries      []*indexermodel.OperationLogEntry
}

// ErrBlockAlreadyProcessed is returned by CommitBlock when a row already
// exists at Height. The reorg controller (indexer package) compares the
// incoming block's hash against the stored one to tell an already-processed
// duplicate from a reorg, per spec.md §4.9.
var ErrBlockAlreadyProcessed = errors.New(errors.ERR_BLOCK_EXISTS, "block already processed at this height")

// CommitBlock persists a processed block in one transaction: the
// processed_blocks marker, every changed balance and deploy, any
// newly-created or updated extension entities, and the operation log.
func (s *Store) CommitBlock(in CommitInput) error {
	tx, err := s.db.Begin()
	if err != nil {
		return errors.NewStorageError("begin commit tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	insertBlock := fmt.Sprintf(`INSERT INTO processed_blocks (height, block_hash, timestamp, tx_count, ops_found, ops_valid)
		VALUES (%s, %s, %s, %s, %s, %s)`,
		s.placeholder(1), s.placeholder(2), s.placeholder(3), s.placeholder(4), s.placeholder(5), s.placeholder(6))
	if _, err := tx.Exec(insertBlock, in.Height, in.BlockHash, in.Timestamp, in.TxCount, in.OpsFound, in.OpsValid); err != nil {
		if IsDuplicateKeyError(err) {
			return ErrBlockAlreadyProcessed
		}
		return errors.NewStorageError("insert processed block: %w", err)
	}

	if in.State != nil {
		balances, _, deploys := in.State.Snapshot()
		if err := s.upsertBalances(tx, balances); err != nil {
			return err
		}
		if err := s.upsertDeploys(tx, deploys); err != nil {
			return err
		}
	}

	for _, e := range in.NewEntities {
		if err := s.insertEntity(tx, e); err != nil {
			return err
		}
	}
	for _, e := range in.UpdatedEntities {
		if err := s.updateEntity(tx, e); err != nil {
			return err
		}
	}
	for _, entry := range in.LogEntries {
		if err := s.insertLogEntry(tx, entry); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewStorageError("commit block tx: %w", err)
	}
	return nil
}

func (s *Store) upsertBalances(tx *sql.Tx, balances map[string]map[string]string) error {
	for address, byTicker := range balances {
		for ticker, bal := range byTicker {
			query := fmt.Sprintf(`INSERT INTO balances (address, ticker, balance) VALUES (%s, %s, %s)
				ON CONFLICT (address, ticker) DO UPDATE SET balance = excluded.balance`,
				s.placeholder(1), s.placeholder(2), s.placeholder(3))
			if _, err := tx.Exec(query, address, ticker, bal); err != nil {
				return errors.NewStorageError("upsert balance: %w", err)
			}
		}
	}
	return nil
}

func (s *Store) upsertDeploys(tx *sql.Tx, deploys map[string]*indexermodel.Deploy) error {
	for _, d := range deploys {
		query := fmt.Sprintf(`INSERT INTO deploys (ticker, max_supply, remaining_supply, limit_per_op, deploy_txid, deploy_height, deploy_timestamp, deployer_address)
			VALUES (%s, %s, %s, %s, %s, %s, %s, %s)
			ON CONFLICT (ticker) DO UPDATE SET remaining_supply = excluded.remaining_supply`,
			s.placeholder(1), s.placeholder(2), s.placeholder(3), s.placeholder(4), s.placeholder(5), s.placeholder(6), s.placeholder(7), s.placeholder(8))
		if _, err := tx.Exec(query, d.Ticker, d.MaxSupply, d.RemainingSupply, d.LimitPerOp, d.DeployTxID, d.DeployHeight, d.DeployTimestamp, d.DeployerAddress); err != nil {
			return errors.NewStorageError("upsert deploy %s: %w", d.Ticker, err)
		}
	}
	return nil
}

func (s *Store) insertEntity(tx *sql.Tx, e any) error {
	switch v := e.(type) {
	case *indexermodel.Deploy:
		return nil // handled via upsertDeploys from the block's Snapshot
	case *indexermodel.SwapPosition:
		query := fmt.Sprintf(`INSERT INTO swap_positions (owner_address, pool_id, src_ticker, dst_ticker, amount_locked, lock_duration_blocks, lock_start_height, unlock_height, status, init_txid)
			VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s, %s)`,
			s.placeholder(1), s.placeholder(2), s.placeholder(3), s.placeholder(4), s.placeholder(5), s.placeholder(6), s.placeholder(7), s.placeholder(8), s.placeholder(9), s.placeholder(10))
		_, err := tx.Exec(query, v.OwnerAddress, v.PoolID, v.SrcTicker, v.DstTicker, v.AmountLocked, v.LockDurationBlks, v.LockStartHeight, v.UnlockHeight, v.Status, v.InitTxID)
		if err != nil {
			return errors.NewStorageError("insert swap position: %w", err)
		}
		return nil
	case *indexermodel.Vault:
		query := fmt.Sprintf(`INSERT INTO vaults (p2tr_address, owner_address, collateral_sats, remaining_blocks, w_proof_commitment, status, reveal_txid, reveal_height)
			VALUES (%s, %s, %s, %s, %s, %s, %s, %s)`,
			s.placeholder(1), s.placeholder(2), s.placeholder(3), s.placeholder(4), s.placeholder(5), s.placeholder(6), s.placeholder(7), s.placeholder(8))
		_, err := tx.Exec(query, v.P2TRAddress, v.OwnerAddress, v.CollateralSats, v.RemainingBlocks, v.WProofCommitment, v.Status, v.RevealTxID, v.RevealHeight)
		if err != nil {
			return errors.NewStorageError("insert vault: %w", err)
		}
		return nil
	default:
		return errors.NewStorageError("unknown new entity type %T", e)
	}
}

func (s *Store) updateEntity(tx *sql.Tx, e any) error {
	switch v := e.(type) {
	case *indexermodel.SwapPosition:
		query := fmt.Sprintf(`UPDATE swap_positions SET status = %s WHERE init_txid = %s`, s.placeholder(1), s.placeholder(2))
		_, err := tx.Exec(query, v.Status, v.InitTxID)
		if err != nil {
			return errors.NewStorageError("update swap position: %w", err)
		}
		return nil
	case *indexermodel.Vault:
		query := fmt.Sprintf(`UPDATE vaults SET remaining_blocks = %s, status = %s WHERE p2tr_address = %s`,
			s.placeholder(1), s.placeholder(2), s.placeholder(3))
		_, err := tx.Exec(query, v.RemainingBlocks, v.Status, v.P2TRAddress)
		if err != nil {
			return errors.NewStorageError("update vault: %w", err)
		}
		return nil
	default:
		return errors.NewStorageError("unknown updated entity type %T", e)
	}
}

func (s *Store) insertLogEntry(tx *sql.Tx, e *indexermodel.OperationLogEntry) error {
	query := fmt.Sprintf(`INSERT INTO operation_log
		(txid, vout_index, operation_kind, ticker, amount, from_address, to_address, block_height, block_hash, tx_index, timestamp, is_valid, error_code, error_message, raw_payload, parsed_payload, is_marketplace, is_multi_transfer)
		VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s)`,
		s.placeholder(1), s.placeholder(2), s.placeholder(3), s.placeholder(4), s.placeholder(5), s.placeholder(6),
		s.placeholder(7), s.placeholder(8), s.placeholder(9), s.placeholder(10), s.placeholder(11), s.placeholder(12),
		s.placeholder(13), s.placeholder(14), s.placeholder(15), s.placeholder(16), s.placeholder(17), s.placeholder(18))
	_, err := tx.Exec(query, e.TxID, e.VoutIndex, e.OperationKind, e.Ticker, e.Amount, e.FromAddress, e.ToAddress,
		e.BlockHeight, e.BlockHash, e.TxIndex, e.Timestamp, e.IsValid, e.ErrorCode, e.ErrorMessage,
		e.RawPayload, e.ParsedPayload, e.IsMarketplace, e.IsMultiTransfer)
	if err != nil {
		return errors.NewStorageError("insert operation log entry: %w", err)
	}
	return nil
}
