package sql

import (
	"fmt"

	"github.com/bitcoin-sv/brc20indexer/amount"
	"github.com/bitcoin-sv/brc20indexer/errors"
)

// canonicalIntegerPattern is the cross-dialect predicate spec.md §6
// requires when aggregating supply: only balance rows shaped like a
// canonical non-negative integer are summed, so a corrupted or
// legacy-shaped row can never silently skew the aggregate. Grounded on
// src/services/token_supply_service.py's _calculate_universal_supply and
// src/services/validator.py's get_total_minted, both of which filter on
// exactly this pattern before summing.
const canonicalIntegerPattern = `^[0-9]+$`

// regexOperator returns the SQL text for this engine's regex-match
// operator: Postgres's native `~`, or sqlite's `REGEXP`, which dispatches
// to the "regexp" scalar function registered in registerSqliteRegexp.
func (s *Store) regexOperator() string {
	if s.engine == Postgres {
		return "~"
	}
	return "REGEXP"
}

// GetTotalSupply implements spec.md §6's regex-filtered supply
// aggregation: sum every balance row for ticker whose value matches
// canonicalIntegerPattern. Summation happens in Go over amount's
// math/big-backed arithmetic rather than in a SQL SUM, so a balance
// anywhere near §4.1's 10^27 ceiling never round-trips through a
// floating-point aggregate the way the Python original's
// func.sum(cast(..., Numeric)) effectively would once read back as float.
func (s *Store) GetTotalSupply(ticker string) (string, error) {
	query := fmt.Sprintf(`SELECT balance FROM balances WHERE ticker = %s AND balance %s %s`,
		s.placeholder(1), s.regexOperator(), s.placeholder(2))
	rows, err := s.db.Query(query, ticker, canonicalIntegerPattern)
	if err != nil {
		return "", errors.NewStorageError("get total supply: %w", err)
	}
	defer rows.Close()

	total := amount.Zero
	for rows.Next() {
		var bal string
		if err := rows.Scan(&bal); err != nil {
			return "", errors.NewStorageError("scan balance for total supply: %w", err)
		}
		total, err = amount.Add(total, bal)
		if err != nil {
			return "", errors.NewStorageError("accumulate total supply for %s: %w", ticker, err)
		}
	}
	if err := rows.Err(); err != nil {
		return "", errors.NewStorageError("get total supply: %w", err)
	}
	return total, nil
}
