package opparser_test

import (
	"testing"

	"github.com/bitcoin-sv/brc20indexer/opparser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDeploy(t *testing.T) {
	op, err := opparser.Parse([]byte(`{"p":"brc-20","op":"deploy","tick":"ordi","max":"21000000","lim":"1000"}`))
	require.NoError(t, err)
	assert.Equal(t, opparser.KindDeploy, op.Kind)
	assert.Equal(t, "ORDI", op.Ticker)
	assert.Equal(t, "21000000", op.MaxSupply)
	assert.Equal(t, "1000", op.LimitPerOp)
}

func TestParseDeployAliasFields(t *testing.T) {
	op, err := opparser.Parse([]byte(`{"p":"brc-20","op":"deploy","tick":"ordi","m":"21000000","l":"1000"}`))
	require.NoError(t, err)
	assert.Equal(t, "21000000", op.MaxSupply)
	assert.Equal(t, "1000", op.LimitPerOp)
}

func TestParseMint(t *testing.T) {
	op, err := opparser.Parse([]byte(`{"p":"brc-20","op":"mint","tick":"ordi","amt":"1000"}`))
	require.NoError(t, err)
	assert.Equal(t, opparser.KindMint, op.Kind)
	assert.Equal(t, "ORDI", op.Ticker)
	assert.Equal(t, "1000", op.Amount)
}

func TestParseTransfer(t *testing.T) {
	op, err := opparser.Parse([]byte(`{"p":"brc-20","op":"transfer","tick":"ordi","amt":"500"}`))
	require.NoError(t, err)
	assert.Equal(t, opparser.KindTransfer, op.Kind)
	assert.Equal(t, "500", op.Amount)
}

func TestParseSwapInit(t *testing.T) {
	op, err := opparser.Parse([]byte(`{"p":"brc-20","op":"swap","init":"ORDI,SATS","amt":"100","lock":"1000"}`))
	require.NoError(t, err)
	assert.Equal(t, opparser.KindSwapInit, op.Kind)
	assert.Equal(t, "ORDI", op.SrcTicker)
	assert.Equal(t, "SATS", op.DstTicker)
	assert.Equal(t, int64(1000), op.LockBlocks)
}

func TestParseSwapInitRejectsBadInitField(t *testing.T) {
	_, err := opparser.Parse([]byte(`{"op":"swap","init":"ORDI","amt":"100","lock":"1000"}`))
	assert.Error(t, err)
}

func TestParseOtherPassthrough(t *testing.T) {
	op, err := opparser.Parse([]byte(`{"p":"brc-20","op":"poisson","fish":"<o()))><"}`))
	require.NoError(t, err)
	assert.Equal(t, opparser.KindOther, op.Kind)
	assert.Equal(t, "poisson", op.Raw["op"])
}

func TestParseMissingOp(t *testing.T) {
	_, err := opparser.Parse([]byte(`{"tick":"ordi"}`))
	assert.Error(t, err)
}

func TestParseInvalidJSON(t *testing.T) {
	_, err := opparser.Parse([]byte(`not json`))
	assert.Error(t, err)
}

func TestParseDeployRejectsOutOfRangeSupply(t *testing.T) {
	_, err := opparser.Parse([]byte(`{"op":"deploy","tick":"ordi","max":"99999999999999999999999999999"}`))
	assert.Error(t, err)
}

func TestParseSwapInitRejectsLockOverflow(t *testing.T) {
	_, err := opparser.Parse([]byte(`{"op":"swap","init":"A,B","amt":"1","lock":"99999999999999999"}`))
	assert.Error(t, err)
}
