package classifier_test

import (
	"testing"

	"github.com/bitcoin-sv/brc20indexer/btcscript"
	"github.com/bitcoin-sv/brc20indexer/classifier"
	"github.com/stretchr/testify/assert"
)

func p2pkhScript(hash []byte) []byte {
	s := []byte{0x76, 0xa9, byte(len(hash))}
	s = append(s, hash...)
	s = append(s, 0x88, 0xac)
	return s
}

func opReturnScript(payload []byte) []byte {
	script := []byte{0x6a}
	script = append(script, byte(len(payload)))
	script = append(script, payload...)
	return script
}

func TestClassifySimpleTransfer(t *testing.T) {
	inputs := []btcscript.Input{{PrevOutAddress: "1Sender"}}
	outputs := []btcscript.Output{
		{Script: opReturnScript([]byte("x"))},
		{Script: p2pkhScript(make([]byte, 20)), DecodedAddresses: []string{"1Recipient"}},
	}

	result := classifier.Classify(inputs, outputs)
	assert.Equal(t, classifier.ShapeSimple, result.Shape)
	assert.Equal(t, "1Sender", result.Sender)
	assert.Equal(t, "1Recipient", result.Recipient)
}

func TestClassifyMarketplaceTransfer(t *testing.T) {
	inputs := []btcscript.Input{
		{PrevOutAddress: "1Seller", Witness: [][]byte{{0x30, 0x44, 0x02, 0x83}}},
		{PrevOutAddress: "1Buyer", Witness: [][]byte{{0x30, 0x44, 0x02, 0x83}}},
	}
	outputs := []btcscript.Output{
		{Script: opReturnScript([]byte("x"))},
		{Script: p2pkhScript(make([]byte, 20)), DecodedAddresses: []string{"1Recipient"}},
	}

	result := classifier.Classify(inputs, outputs)
	assert.Equal(t, classifier.ShapeMarketplace, result.Shape)
	assert.Equal(t, "1Seller", result.Sender)
	assert.Equal(t, "1Recipient", result.Recipient)
}

func TestClassifyInvalidMarketplaceSingleSighash(t *testing.T) {
	inputs := []btcscript.Input{
		{PrevOutAddress: "1Seller", Witness: [][]byte{{0x30, 0x44, 0x02, 0x83}}},
		{PrevOutAddress: "1Other"},
	}
	outputs := []btcscript.Output{
		{Script: opReturnScript([]byte("x"))},
	}

	result := classifier.Classify(inputs, outputs)
	assert.Equal(t, classifier.ShapeInvalidMarket, result.Shape)
}

func TestClassifyNoInputsIsInvalid(t *testing.T) {
	result := classifier.Classify(nil, nil)
	assert.Equal(t, classifier.ShapeInvalidMarket, result.Shape)
}
