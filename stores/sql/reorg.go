package sql

import (
	"database/sql"
	"fmt"

	"github.com/bitcoin-sv/brc20indexer/amount"
	"github.com/bitcoin-sv/brc20indexer/errors"
	"github.com/bitcoin-sv/brc20indexer/indexermodel"
)

// logRow is the subset of an operation_log row the reorg controller needs
// to replay balance-affecting operations, ordered by (block_height,
// tx_index, vout_index) per spec.md §4.8's determinism rule.
type logRow struct {
	OperationKind indexermodel.OperationKind
	Ticker        *string
	Amount        *string
	FromAddress   *string
	ToAddress     *string
}

// RollbackAboveHeight implements spec.md §4.9's reorg rollback: every
// processed_blocks marker, operation_log entry, and extension entity
// created at a height strictly greater than height is deleted, then
// balances and deploys' remaining_supply are recomputed from the
// surviving operation log - never from the (now possibly stale)
// intermediate-state snapshot of a discarded block.
func (s *Store) RollbackAboveHeight(height uint32) error {
	tx, err := s.db.Begin()
	if err != nil {
		return errors.NewStorageError("begin rollback tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	deletes := []string{
		"DELETE FROM operation_log WHERE block_height > %s",
		"DELETE FROM processed_blocks WHERE height > %s",
		"DELETE FROM deploys WHERE deploy_height > %s",
		"DELETE FROM swap_positions WHERE lock_start_height > %s",
		"DELETE FROM vaults WHERE reveal_height > %s",
	}
	for _, stmt := range deletes {
		if _, err := tx.Exec(fmt.Sprintf(stmt, s.placeholder(1)), height); err != nil {
			return errors.NewStorageError("rollback above height %d: %w", height, err)
		}
	}

	if err := s.recomputeFromLog(tx, height); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.NewStorageError("commit rollback tx: %w", err)
	}
	return nil
}

// recomputeFromLog rebuilds the balances table and every surviving
// deploy's remaining_supply by replaying the valid operation log up to and
// including height, in (block_height, tx_index, vout_index) order -
// spec.md §4.9's "recomputing balance totals from the surviving operation
// log" step. It never trusts the pre-reorg balances/deploys rows directly,
// since those may reflect operations from the discarded fork.
func (s *Store) recomputeFromLog(tx *sql.Tx, height uint32) error {
	maxSupply := make(map[string]string)
	rows, err := tx.Query("SELECT ticker, max_supply FROM deploys")
	if err != nil {
		return errors.NewStorageError("recompute: load deploys: %w", err)
	}
	for rows.Next() {
		var ticker, max string
		if err := rows.Scan(&ticker, &max); err != nil {
			rows.Close()
			return errors.NewStorageError("recompute: scan deploy: %w", err)
		}
		maxSupply[ticker] = max
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return errors.NewStorageError("recompute: deploys: %w", err)
	}
	rows.Close()

	remaining := make(map[string]string, len(maxSupply))
	for ticker, max := range maxSupply {
		remaining[ticker] = max
	}
	balances := make(map[string]map[string]string)

	logQuery := fmt.Sprintf(`SELECT operation_kind, ticker, amount, from_address, to_address
		FROM operation_log WHERE is_valid = %s AND block_height <= %s
		ORDER BY block_height, tx_index, vout_index`, s.placeholder(1), s.placeholder(2))
	logRows, err := tx.Query(logQuery, true, height)
	if err != nil {
		return errors.NewStorageError("recompute: load operation log: %w", err)
	}
	defer logRows.Close()

	for logRows.Next() {
		var r logRow
		var kind string
		var ticker, amt, from, to sql.NullString
		if err := logRows.Scan(&kind, &ticker, &amt, &from, &to); err != nil {
			return errors.NewStorageError("recompute: scan operation log row: %w", err)
		}
		r.OperationKind = indexermodel.OperationKind(kind)
		if ticker.Valid {
			r.Ticker = &ticker.String
		}
		if amt.Valid {
			r.Amount = &amt.String
		}
		if from.Valid {
			r.FromAddress = &from.String
		}
		if to.Valid {
			r.ToAddress = &to.String
		}
		if err := applyLogRow(r, balances, remaining); err != nil {
			return err
		}
	}
	if err := logRows.Err(); err != nil {
		return errors.NewStorageError("recompute: operation log: %w", err)
	}

	if _, err := tx.Exec("DELETE FROM balances"); err != nil {
		return errors.NewStorageError("recompute: clear balances: %w", err)
	}
	for address, byTicker := range balances {
		for ticker, bal := range byTicker {
			if bal == amount.Zero {
				continue
			}
			query := fmt.Sprintf(`INSERT INTO balances (address, ticker, balance) VALUES (%s, %s, %s)`,
				s.placeholder(1), s.placeholder(2), s.placeholder(3))
			if _, err := tx.Exec(query, address, ticker, bal); err != nil {
				return errors.NewStorageError("recompute: insert balance: %w", err)
			}
		}
	}

	for ticker, r := range remaining {
		query := fmt.Sprintf(`UPDATE deploys SET remaining_supply = %s WHERE ticker = %s`, s.placeholder(1), s.placeholder(2))
		if _, err := tx.Exec(query, r, ticker); err != nil {
			return errors.NewStorageError("recompute: update remaining_supply: %w", err)
		}
	}

	return nil
}

// applyLogRow folds one surviving log entry's balance/supply effect into
// balances/remaining, mirroring exactly the mutations each builtin/
// extension processor applies during normal forward processing (spec.md
// §4.7/§4.8): mint credits the recipient and debits remaining_supply,
// transfer moves balance from sender to recipient, swap.init debits the
// sender and credits remaining_supply back, poisson credits the
// participant. Deploy/vault/unknown rows have no balance effect here.
func applyLogRow(r logRow, balances map[string]map[string]string, remaining map[string]string) error {
	if r.Ticker == nil || r.Amount == nil {
		return nil
	}
	ticker := *r.Ticker
	amt := *r.Amount

	credit := func(address string) error {
		if address == "" {
			return nil
		}
		if balances[address] == nil {
			balances[address] = make(map[string]string)
		}
		cur, ok := balances[address][ticker]
		if !ok {
			cur = amount.Zero
		}
		next, err := amount.Add(cur, amt)
		if err != nil {
			return err
		}
		balances[address][ticker] = next
		return nil
	}
	debit := func(address string) error {
		if address == "" {
			return nil
		}
		if balances[address] == nil {
			balances[address] = make(map[string]string)
		}
		cur, ok := balances[address][ticker]
		if !ok {
			cur = amount.Zero
		}
		next, err := amount.Subtract(cur, amt)
		if err != nil {
			// A malformed/partial fork replay should never panic the
			// rollback; clamp at zero and let supply-conservation tests
			// catch a genuine invariant violation upstream.
			next = amount.Zero
		}
		balances[address][ticker] = next
		return nil
	}

	switch r.OperationKind {
	case indexermodel.OpMint:
		if r.ToAddress != nil {
			if err := credit(*r.ToAddress); err != nil {
				return err
			}
		}
		if cur, ok := remaining[ticker]; ok {
			if next, err := amount.Subtract(cur, amt); err == nil {
				remaining[ticker] = next
			}
		}
	case indexermodel.OpTransfer:
		if r.FromAddress != nil {
			if err := debit(*r.FromAddress); err != nil {
				return err
			}
		}
		if r.ToAddress != nil {
			if err := credit(*r.ToAddress); err != nil {
				return err
			}
		}
	case indexermodel.OpSwapInit:
		if r.FromAddress != nil {
			if err := debit(*r.FromAddress); err != nil {
				return err
			}
		}
		if cur, ok := remaining[ticker]; ok {
			if next, err := amount.Add(cur, amt); err == nil {
				remaining[ticker] = next
			}
		}
	case indexermodel.OpPoisson:
		if r.FromAddress != nil {
			if err := credit(*r.FromAddress); err != nil {
				return err
			}
		}
	}
	return nil
}
