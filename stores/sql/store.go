package sql

import (
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	"github.com/bitcoin-sv/brc20indexer/amount"
	"github.com/bitcoin-sv/brc20indexer/errors"
	"github.com/bitcoin-sv/brc20indexer/indexermodel"
	"github.com/bitcoin-sv/brc20indexer/ulogger"
	"github.com/lib/pq"
	"modernc.org/sqlite"
)

// Store is the indexer's persistence layer over Postgres or sqlite. It
// implements state.PersistentStore, swap.PositionStore and vault.Store so
// the pipeline and the extension processors all read through one backend,
// grounded on the teacher's stores/utxo/sql/sql.go Store/New pattern.
type Store struct {
	db     *sql.DB
	engine Engine
	logger ulogger.Logger
}

// New opens storeURL and creates the schema if it does not already exist.
func New(logger ulogger.Logger, storeURL *url.URL) (*Store, error) {
	db, engine, err := initSQLDB(logger, storeURL)
	if err != nil {
		return nil, err
	}

	s := &Store{db: db, engine: engine, logger: logger}
	if err := s.createSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) createSchema() error {
	switch s.engine {
	case Postgres:
		return createPostgresSchema(s.db)
	default:
		return createSqliteSchema(s.db)
	}
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) placeholder(n int) string {
	if s.engine == Postgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// GetBalance implements state.PersistentStore.
func (s *Store) GetBalance(address, ticker string) (string, error) {
	query := fmt.Sprintf("SELECT balance FROM balances WHERE address = %s AND ticker = %s", s.placeholder(1), s.placeholder(2))
	var bal string
	err := s.db.QueryRow(query, address, ticker).Scan(&bal)
	if err == sql.ErrNoRows {
		return amount.Zero, nil
	}
	if err != nil {
		return "", errors.NewStorageError("get balance: %w", err)
	}
	return bal, nil
}

// GetTotalMinted implements state.PersistentStore. Total minted is derived
// from the deploy's max_supply minus its remaining_supply: the indexer
// never persists a separate running total, following spec.md §3's Deploy
// shape (max_supply, remaining_supply) rather than inventing a new column.
func (s *Store) GetTotalMinted(ticker string) (string, error) {
	deploy, err := s.GetDeployRecord(ticker)
	if err != nil {
		return "", err
	}
	if deploy == nil {
		return amount.Zero, nil
	}
	return amount.Subtract(deploy.MaxSupply, deploy.RemainingSupply)
}

// GetDeployRecord implements state.PersistentStore.
func (s *Store) GetDeployRecord(ticker string) (*indexermodel.Deploy, error) {
	query := fmt.Sprintf(`SELECT id, ticker, max_supply, remaining_supply, limit_per_op, deploy_txid, deploy_height, deploy_timestamp, deployer_address
		FROM deploys WHERE ticker = %s`, s.placeholder(1))
	row := s.db.QueryRow(query, ticker)

	var d indexermodel.Deploy
	var limitPerOp sql.NullString
	if err := row.Scan(&d.ID, &d.Ticker, &d.MaxSupply, &d.RemainingSupply, &limitPerOp, &d.DeployTxID, &d.DeployHeight, &d.DeployTimestamp, &d.DeployerAddress); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, errors.NewStorageError("get deploy record: %w", err)
	}
	if limitPerOp.Valid {
		d.LimitPerOp = &limitPerOp.String
	}
	return &d, nil
}

// GetActivePositionsUnlockingAt implements swap.PositionStore.
func (s *Store) GetActivePositionsUnlockingAt(height uint32) ([]*indexermodel.SwapPosition, error) {
	query := fmt.Sprintf(`SELECT id, owner_address, pool_id, src_ticker, dst_ticker, amount_locked, lock_duration_blocks, lock_start_height, unlock_height, status, init_txid
		FROM swap_positions WHERE status = %s AND unlock_height = %s`, s.placeholder(1), s.placeholder(2))
	rows, err := s.db.Query(query, string(indexermodel.SwapActive), height)
	if err != nil {
		return nil, errors.NewStorageError("get active swap positions: %w", err)
	}
	defer rows.Close()

	var positions []*indexermodel.SwapPosition
	for rows.Next() {
		var p indexermodel.SwapPosition
		if err := rows.Scan(&p.ID, &p.OwnerAddress, &p.PoolID, &p.SrcTicker, &p.DstTicker, &p.AmountLocked, &p.LockDurationBlks, &p.LockStartHeight, &p.UnlockHeight, &p.Status, &p.InitTxID); err != nil {
			return nil, errors.NewStorageError("scan swap position: %w", err)
		}
		positions = append(positions, &p)
	}
	return positions, rows.Err()
}

// GetActiveVaults implements vault.Store.
func (s *Store) GetActiveVaults() ([]*indexermodel.Vault, error) {
	query := fmt.Sprintf(`SELECT id, p2tr_address, owner_address, collateral_sats, remaining_blocks, w_proof_commitment, status, reveal_txid, reveal_height, closing_txid, closing_height
		FROM vaults WHERE status = %s`, s.placeholder(1))
	rows, err := s.db.Query(query, string(indexermodel.VaultActive))
	if err != nil {
		return nil, errors.NewStorageError("get active vaults: %w", err)
	}
	defer rows.Close()

	var vaults []*indexermodel.Vault
	for rows.Next() {
		var v indexermodel.Vault
		var remaining sql.NullInt64
		var closingTxID sql.NullString
		var closingHeight sql.NullInt64
		if err := rows.Scan(&v.ID, &v.P2TRAddress, &v.OwnerAddress, &v.CollateralSats, &remaining, &v.WProofCommitment, &v.Status, &v.RevealTxID, &v.RevealHeight, &closingTxID, &closingHeight); err != nil {
			return nil, errors.NewStorageError("scan vault: %w", err)
		}
		if remaining.Valid {
			r := uint32(remaining.Int64)
			v.RemainingBlocks = &r
		}
		if closingTxID.Valid {
			v.ClosingTxID = &closingTxID.String
		}
		if closingHeight.Valid {
			h := uint32(closingHeight.Int64)
			v.ClosingHeight = &h
		}
		vaults = append(vaults, &v)
	}
	return vaults, rows.Err()
}

// GetProcessedBlock returns the processed-block marker at height, or nil if
// no block has been committed there. The reorg controller uses this to
// compare the stored hash against an incoming block's hash.
func (s *Store) GetProcessedBlock(height uint32) (*indexermodel.ProcessedBlock, error) {
	query := fmt.Sprintf(`SELECT height, block_hash, timestamp, tx_count, ops_found, ops_valid FROM processed_blocks WHERE height = %s`, s.placeholder(1))
	var b indexermodel.ProcessedBlock
	err := s.db.QueryRow(query, height).Scan(&b.Height, &b.BlockHash, &b.Timestamp, &b.TxCount, &b.OpsFound, &b.OpsValid)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewStorageError("get processed block: %w", err)
	}
	return &b, nil
}

// sqliteConstraintCode is SQLITE_CONSTRAINT, the primary result code
// modernc.org/sqlite reports for a UNIQUE/PRIMARY KEY violation.
const sqliteConstraintCode = 19

// IsDuplicateKeyError reports whether err is a unique/primary-key
// constraint violation, covering both drivers this store supports: the
// Postgres errcode 23505 (lib/pq) and sqlite's SQLITE_CONSTRAINT result
// code, grounded on the teacher's StoreBlock.go duplicate-height detection,
// which checks the same two error shapes.
func IsDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xff == sqliteConstraintCode
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
