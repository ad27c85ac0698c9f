package amount_test

import (
	"testing"

	"github.com/bitcoin-sv/brc20indexer/amount"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValid(t *testing.T) {
	cases := map[string]bool{
		"0":           true,
		"1":           true,
		"1000000":     true,
		"":            false,
		"01":          false,
		"-1":          false,
		"1.5":         false,
		"1e10":        false,
		"abc":         false,
		"00":          false,
		"9999999999999999999999999999999999999999": true,
	}
	for input, want := range cases {
		assert.Equalf(t, want, amount.IsValid(input), "input %q", input)
	}
}

func TestAddSubtract(t *testing.T) {
	sum, err := amount.Add("500", "200")
	require.NoError(t, err)
	assert.Equal(t, "700", sum)

	diff, err := amount.Subtract("700", "200")
	require.NoError(t, err)
	assert.Equal(t, "500", diff)

	_, err = amount.Subtract("100", "200")
	require.Error(t, err)
}

func TestCompare(t *testing.T) {
	c, err := amount.Compare("100", "200")
	require.NoError(t, err)
	assert.Equal(t, -1, c)

	c, err = amount.Compare("200", "200")
	require.NoError(t, err)
	assert.Equal(t, 0, c)

	gt, err := amount.GreaterThan("300", "200")
	require.NoError(t, err)
	assert.True(t, gt)
}

func TestExcess(t *testing.T) {
	// S2: committed total_minted=20999624, max=21000000, mint 1000 -> excess 624
	totalAfter, err := amount.Add("20999624", "1000")
	require.NoError(t, err)
	excess, err := amount.Excess(totalAfter, "21000000")
	require.NoError(t, err)
	assert.Equal(t, "624", excess)
}

func TestInRange(t *testing.T) {
	assert.True(t, amount.InRange("1000000000000000000000000000"))
	assert.False(t, amount.InRange("1000000000000000000000000001"))
	assert.False(t, amount.InRange("-1"))
}
