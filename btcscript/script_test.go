package btcscript_test

import (
	"testing"

	"github.com/bitcoin-sv/brc20indexer/btcscript"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func opReturnScript(payload []byte) []byte {
	script := []byte{0x6a} // OP_RETURN
	script = append(script, pushData(payload)...)
	return script
}

func pushData(data []byte) []byte {
	if len(data) <= 0x4b {
		return append([]byte{byte(len(data))}, data...)
	}
	panic("test helper only supports small pushes")
}

func p2pkhScript(hash []byte) []byte {
	s := []byte{0x76, 0xa9, byte(len(hash))}
	s = append(s, hash...)
	s = append(s, 0x88, 0xac)
	return s
}

func TestExtractUnspendablePayload(t *testing.T) {
	payload := []byte(`{"p":"brc-20","op":"mint"}`)
	outputs := []btcscript.Output{
		{Script: p2pkhScript(make([]byte, 20))},
		{Script: opReturnScript(payload)},
	}

	got, idx, found := btcscript.ExtractUnspendablePayload(outputs)
	require.True(t, found)
	assert.Equal(t, 1, idx)
	assert.Equal(t, payload, got)
}

func TestExtractUnspendablePayloadWithPositionCheck(t *testing.T) {
	payload := []byte("hello")
	outputs := []btcscript.Output{
		{Script: p2pkhScript(make([]byte, 20))},
		{Script: opReturnScript(payload)},
	}

	_, _, found := btcscript.ExtractUnspendablePayloadWithPositionCheck(outputs)
	assert.False(t, found, "payload not at index 0")

	outputs2 := []btcscript.Output{
		{Script: opReturnScript(payload)},
		{Script: p2pkhScript(make([]byte, 20))},
	}
	got, idx, found := btcscript.ExtractUnspendablePayloadWithPositionCheck(outputs2)
	require.True(t, found)
	assert.Equal(t, 0, idx)
	assert.Equal(t, payload, got)
}

func TestOutputAfterPayloadAddress(t *testing.T) {
	hash := make([]byte, 20)
	hash[0] = 0xAB
	outputs := []btcscript.Output{
		{Script: opReturnScript([]byte("x"))},
		{Script: p2pkhScript(hash)},
	}

	addr, ok := btcscript.OutputAfterPayloadAddress(outputs)
	require.True(t, ok)
	assert.NotEmpty(t, addr)
}

func TestDecodeAddressPrefersPreDecoded(t *testing.T) {
	out := btcscript.Output{
		Script:           p2pkhScript(make([]byte, 20)),
		DecodedAddresses: []string{"1PreDecodedAddress"},
	}
	addr, ok := btcscript.DecodeAddress(out)
	require.True(t, ok)
	assert.Equal(t, "1PreDecodedAddress", addr)
}

func TestIsStandardOutput(t *testing.T) {
	assert.True(t, btcscript.IsStandardOutput(p2pkhScript(make([]byte, 20))))
	assert.False(t, btcscript.IsStandardOutput(opReturnScript([]byte("x"))))
}

func TestIsUnspendableDataOutputWithOpFalsePrefix(t *testing.T) {
	script := append([]byte{0x00, 0x6a}, pushData([]byte("ord"))...)
	assert.True(t, btcscript.IsUnspendableDataOutput(script))
}
