package indexermodel

import (
	"time"

	"github.com/bitcoin-sv/brc20indexer/btcscript"
)

// RPCBlock is the node-RPC input contract of spec.md §6: a canonical block
// as the (out-of-scope) node client hands it to the pipeline, already
// connected to its parent by height and hash. The pipeline never talks to
// a node itself — it only consumes this shape, grounded on the teacher's
// model.Block wire struct (model/Block.go) trimmed to what the pipeline
// actually needs.
type RPCBlock struct {
	Height    uint32
	Hash      string
	PrevHash  string
	Timestamp time.Time
	Txs       []RPCTx // coinbase first, then in block order
}

// RPCTx is one transaction within an RPCBlock.
type RPCTx struct {
	TxID    string
	Index   int // position within the block, coinbase = 0
	Inputs  []btcscript.Input
	Outputs []btcscript.Output
}
