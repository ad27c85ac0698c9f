// Package amount implements §4.1: arbitrary-precision non-negative integer
// arithmetic over canonical decimal strings. Every protocol-level balance
// credit/debit and supply comparison in this repo goes through here instead
// of through float64, per spec.md's explicit "never use binary floating
// point" instruction - the teacher repo has no decimal dependency of its
// own (Bitcoin satoshi amounts fit in an int64), so this package is built on
// math/big rather than adopting a third-party decimal library; see
// DESIGN.md for why github.com/shopspring/decimal was not pulled in.
package amount

import (
	"math/big"
	"strings"

	"github.com/bitcoin-sv/brc20indexer/errors"
)

// MaxAmount is the hard protocol limit on any single amount field, per
// spec.md §4.3 ("amount ≤ 10^27").
var MaxAmount = mustBig("1000000000000000000000000000")

func mustBig(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("amount: invalid literal " + s)
	}
	return v
}

// IsValid reports whether s is a canonical non-negative integer: digits
// only, no sign, no exponent, and no leading zero unless s is exactly "0".
func IsValid(s string) bool {
	if s == "" {
		return false
	}
	if s == "0" {
		return true
	}
	if s[0] == '0' {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// InRange reports whether s is valid and does not exceed MaxAmount.
func InRange(s string) bool {
	if !IsValid(s) {
		return false
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return false
	}
	return v.Cmp(MaxAmount) <= 0
}

// Compare returns -1, 0, or 1 as a is less than, equal to, or greater than
// b. Both inputs must already be canonical (callers pass already-validated
// strings, per spec.md §4.1).
func Compare(a, b string) (int, error) {
	av, bv, err := parsePair(a, b)
	if err != nil {
		return 0, err
	}
	return av.Cmp(bv), nil
}

// GreaterThan reports whether a > b.
func GreaterThan(a, b string) (bool, error) {
	c, err := Compare(a, b)
	return c > 0, err
}

// GreaterEqual reports whether a >= b.
func GreaterEqual(a, b string) (bool, error) {
	c, err := Compare(a, b)
	return c >= 0, err
}

// Add returns the canonical decimal string for a+b.
func Add(a, b string) (string, error) {
	av, bv, err := parsePair(a, b)
	if err != nil {
		return "", err
	}
	return new(big.Int).Add(av, bv).String(), nil
}

// Subtract returns the canonical decimal string for a-b. It fails with
// ERR_INVALID_AMOUNT when a < b, since the type only represents
// non-negative amounts.
func Subtract(a, b string) (string, error) {
	av, bv, err := parsePair(a, b)
	if err != nil {
		return "", err
	}
	if av.Cmp(bv) < 0 {
		return "", errors.New(errors.ERR_INVALID_AMOUNT, "subtraction underflow: %s - %s", a, b)
	}
	return new(big.Int).Sub(av, bv).String(), nil
}

// Excess returns the canonical decimal string for max(0, a-b), used to
// compute the diagnostic "excess" figure in EXCEEDS_MAX_SUPPLY errors
// (spec.md §8 S2).
func Excess(a, b string) (string, error) {
	av, bv, err := parsePair(a, b)
	if err != nil {
		return "", err
	}
	d := new(big.Int).Sub(av, bv)
	if d.Sign() < 0 {
		return "0", nil
	}
	return d.String(), nil
}

// Zero is the canonical zero value.
const Zero = "0"

func parsePair(a, b string) (*big.Int, *big.Int, error) {
	av, err := parseCanonical(a)
	if err != nil {
		return nil, nil, err
	}
	bv, err := parseCanonical(b)
	if err != nil {
		return nil, nil, err
	}
	return av, bv, nil
}

func parseCanonical(s string) (*big.Int, error) {
	if !IsValid(s) {
		return nil, errors.New(errors.ERR_INVALID_AMOUNT, "not a canonical non-negative integer: %q", s)
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, errors.New(errors.ERR_INVALID_AMOUNT, "failed to parse amount: %q", s)
	}
	return v, nil
}

// Normalize strips any surrounding whitespace a node/wallet might have
// inserted around an amount field before validation; it does not otherwise
// rewrite the string (no leading-zero stripping - that would silently
// accept non-canonical input, which the protocol rejects outright).
func Normalize(s string) string {
	return strings.TrimSpace(s)
}
