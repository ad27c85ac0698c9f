// Package btcscript implements §4.2: recognizing the unspendable-data
// output shape, extracting its embedded payload, and decoding standard
// output scripts into canonical addresses. The teacher repo (a BSV node)
// only ever deals with P2PKH/P2SH locking scripts through
// github.com/libsv/go-bt/v2/bscript, which predates segwit/taproot; BRC-20
// lives on mainnet Bitcoin, so this package parses opcodes directly against
// the standard Bitcoin Script opcode table and encodes addresses with
// btcutil's base58/bech32 helpers, the same helpers the rest of the
// retrieval pack's Bitcoin-adjacent repos (e.g. the bech32 segwit address
// codec) reach for.
package btcscript

import (
	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/btcsuite/btcd/btcutil/bech32"
)

// Output is the subset of a transaction output the decoder needs. It
// mirrors the node-RPC contract of spec.md §6: script bytes, plus whatever
// pre-decoded hints the node already computed.
type Output struct {
	Script           []byte
	DecodedType      string
	DecodedAddresses []string
}

// Input is the subset of a transaction input the classifier (§4.5) needs.
type Input struct {
	PrevOutAddress string
	Witness        [][]byte
}

const (
	opFALSE       = 0x00
	opPUSHDATA1   = 0x4c
	opPUSHDATA2   = 0x4d
	opPUSHDATA4   = 0x4e
	opRETURN      = 0x6a
	opDUP         = 0x76
	opEQUAL       = 0x87
	opEQUALVERIFY = 0x88
	opHASH160     = 0xa9
	opCHECKSIG    = 0xac
	op1           = 0x51
)

// scriptOp is one decoded item of a script: either an opcode or a data push.
type scriptOp struct {
	opcode byte
	data   []byte // non-nil for a push
}

// parseScript decodes a script into its sequence of opcodes/pushes. It
// never fails: a script with a truncated push is decoded up to the point of
// truncation, mirroring how a node presents whatever bytes it has.
func parseScript(script []byte) []scriptOp {
	var ops []scriptOp
	i := 0
	for i < len(script) {
		b := script[i]
		i++
		switch {
		case b >= 1 && b <= 0x4b:
			n := int(b)
			if i+n > len(script) {
				return ops
			}
			ops = append(ops, scriptOp{opcode: b, data: script[i : i+n]})
			i += n
		case b == opPUSHDATA1:
			if i+1 > len(script) {
				return ops
			}
			n := int(script[i])
			i++
			if i+n > len(script) {
				return ops
			}
			ops = append(ops, scriptOp{opcode: b, data: script[i : i+n]})
			i += n
		case b == opPUSHDATA2:
			if i+2 > len(script) {
				return ops
			}
			n := int(script[i]) | int(script[i+1])<<8
			i += 2
			if i+n > len(script) {
				return ops
			}
			ops = append(ops, scriptOp{opcode: b, data: script[i : i+n]})
			i += n
		case b == opPUSHDATA4:
			if i+4 > len(script) {
				return ops
			}
			n := int(script[i]) | int(script[i+1])<<8 | int(script[i+2])<<16 | int(script[i+3])<<24
			i += 4
			if i+n > len(script) {
				return ops
			}
			ops = append(ops, scriptOp{opcode: b, data: script[i : i+n]})
			i += n
		default:
			ops = append(ops, scriptOp{opcode: b})
		}
	}
	return ops
}

// IsUnspendableDataOutput reports whether script is the unspendable-data
// shape: OP_RETURN, optionally preceded by OP_FALSE (the "envelope" form
// used by inscription-carrying protocols).
func IsUnspendableDataOutput(script []byte) bool {
	ops := parseScript(script)
	if len(ops) == 0 {
		return false
	}
	if ops[0].opcode == opFALSE {
		return len(ops) > 1 && ops[1].opcode == opRETURN && ops[1].data == nil
	}
	return ops[0].opcode == opRETURN && ops[0].data == nil
}

// payloadOf concatenates every data push following the OP_RETURN (and its
// optional OP_FALSE prefix) into a single byte slice: this is the payload
// the operation parser (§4.3) consumes.
func payloadOf(script []byte) []byte {
	ops := parseScript(script)
	start := 0
	if len(ops) > 0 && ops[0].opcode == opFALSE {
		start = 1
	}
	if start >= len(ops) || ops[start].opcode != opRETURN {
		return nil
	}
	var payload []byte
	for _, op := range ops[start+1:] {
		if op.data != nil {
			payload = append(payload, op.data...)
		}
	}
	return payload
}

// ExtractUnspendablePayload returns the first unspendable-data output's
// payload and its output index, per spec.md §4.2.
func ExtractUnspendablePayload(outputs []Output) (payload []byte, index int, found bool) {
	for idx, out := range outputs {
		if IsUnspendableDataOutput(out.Script) {
			return payloadOf(out.Script), idx, true
		}
	}
	return nil, 0, false
}

// ExtractUnspendablePayloadWithPositionCheck behaves like
// ExtractUnspendablePayload but only succeeds when the unspendable-data
// output is at index 0, per spec.md §4.2/§4.4.
func ExtractUnspendablePayloadWithPositionCheck(outputs []Output) (payload []byte, index int, found bool) {
	if len(outputs) == 0 {
		return nil, 0, false
	}
	if !IsUnspendableDataOutput(outputs[0].Script) {
		return nil, 0, false
	}
	return payloadOf(outputs[0].Script), 0, true
}

// OutputAfterPayloadAddress returns the decoded address of the output
// immediately following the unspendable-data output, skipping over a
// second unspendable-data output if one immediately follows, per spec.md
// §4.2. This is the token-allocation output.
func OutputAfterPayloadAddress(outputs []Output) (string, bool) {
	_, index, found := ExtractUnspendablePayload(outputs)
	if !found {
		return "", false
	}
	for i := index + 1; i < len(outputs); i++ {
		if IsUnspendableDataOutput(outputs[i].Script) {
			continue
		}
		return DecodeAddress(outputs[i])
	}
	return "", false
}

// IsStandardOutput reports whether script is one of P2PKH, P2SH, P2WPKH,
// P2WSH, or P2TR.
func IsStandardOutput(script []byte) bool {
	_, ok := classify(script)
	return ok
}

// DecodeAddress returns the canonical address for a standard output,
// preferring the node's pre-decoded address list (§6's node-RPC contract
// allows an "optional pre-decoded address list") and falling back to
// decoding the script bytes ourselves.
func DecodeAddress(out Output) (string, bool) {
	if len(out.DecodedAddresses) > 0 && out.DecodedAddresses[0] != "" {
		return out.DecodedAddresses[0], true
	}
	return DecodeAddressFromScript(out.Script)
}

type scriptShape int

const (
	shapeP2PKH scriptShape = iota
	shapeP2SH
	shapeP2WPKH
	shapeP2WSH
	shapeP2TR
)

// classify returns the recognized standard shape of script, or ok=false if
// none of P2PKH/P2SH/P2WPKH/P2WSH/P2TR match.
func classify(script []byte) (scriptShape, bool) {
	ops := parseScript(script)

	// P2PKH: OP_DUP OP_HASH160 <20 bytes> OP_EQUALVERIFY OP_CHECKSIG
	if len(ops) == 5 &&
		ops[0].opcode == opDUP && ops[0].data == nil &&
		ops[1].opcode == opHASH160 && ops[1].data == nil &&
		ops[2].data != nil && len(ops[2].data) == 20 &&
		ops[3].opcode == opEQUALVERIFY && ops[3].data == nil &&
		ops[4].opcode == opCHECKSIG && ops[4].data == nil {
		return shapeP2PKH, true
	}

	// P2SH: OP_HASH160 <20 bytes> OP_EQUAL
	if len(ops) == 3 &&
		ops[0].opcode == opHASH160 && ops[0].data == nil &&
		ops[1].data != nil && len(ops[1].data) == 20 &&
		ops[2].opcode == opEQUAL && ops[2].data == nil {
		return shapeP2SH, true
	}

	// P2WPKH: OP_0 <20 bytes>
	if len(ops) == 2 && ops[0].opcode == opFALSE && ops[0].data == nil &&
		ops[1].data != nil && len(ops[1].data) == 20 {
		return shapeP2WPKH, true
	}

	// P2WSH: OP_0 <32 bytes>
	if len(ops) == 2 && ops[0].opcode == opFALSE && ops[0].data == nil &&
		ops[1].data != nil && len(ops[1].data) == 32 {
		return shapeP2WSH, true
	}

	// P2TR: OP_1 <32 bytes>
	if len(ops) == 2 && ops[0].opcode == op1 && ops[0].data == nil &&
		ops[1].data != nil && len(ops[1].data) == 32 {
		return shapeP2TR, true
	}

	return 0, false
}

// addressParams pins the version bytes/hrp this decoder targets: mainnet
// Bitcoin, since that is where BRC-20 lives.
const (
	mainnetP2PKHVersion = 0x00
	mainnetP2SHVersion  = 0x05
	mainnetBech32HRP    = "bc"
)

// DecodeAddressFromScript decodes script into its canonical address form
// (base58check for P2PKH/P2SH, bech32/bech32m for P2WPKH/P2WSH/P2TR), or
// returns ok=false when the script is not a recognized standard shape.
func DecodeAddressFromScript(script []byte) (string, bool) {
	shape, ok := classify(script)
	if !ok {
		return "", false
	}
	ops := parseScript(script)

	switch shape {
	case shapeP2PKH:
		return base58CheckEncode(mainnetP2PKHVersion, ops[2].data), true
	case shapeP2SH:
		return base58CheckEncode(mainnetP2SHVersion, ops[1].data), true
	case shapeP2WPKH, shapeP2WSH:
		return segwitAddress(0, ops[1].data), true
	case shapeP2TR:
		return segwitAddress(1, ops[1].data), true
	}
	return "", false
}

func base58CheckEncode(version byte, hash []byte) string {
	return base58.CheckEncode(hash, version)
}

func segwitAddress(witnessVersion byte, program []byte) string {
	converted, err := bech32.ConvertBits(program, 8, 5, true)
	if err != nil {
		return ""
	}
	data := append([]byte{witnessVersion}, converted...)
	if witnessVersion == 0 {
		encoded, err := bech32.Encode(mainnetBech32HRP, data)
		if err != nil {
			return ""
		}
		return encoded
	}
	encoded, err := bech32.EncodeM(mainnetBech32HRP, data)
	if err != nil {
		return ""
	}
	return encoded
}
