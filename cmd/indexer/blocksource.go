package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/bitcoin-sv/brc20indexer/indexermodel"
)

// BlockSource is the node-RPC collaborator spec.md §6 describes: "the
// pipeline requests verbose block payloads... The indexer must not depend
// on any field beyond these." It is intentionally the only seam this
// entrypoint defines for that out-of-scope component — everything else in
// this package wires packages that ARE in scope.
type BlockSource interface {
	// GetBlock returns the block at height, or found=false if the source
	// has nothing there yet (e.g. the node hasn't mined it).
	GetBlock(ctx context.Context, height uint32) (block indexermodel.RPCBlock, found bool, err error)
}

// fileBlockSource replays a newline-delimited JSON file of RPCBlock
// records for local development and integration testing, standing in for
// the live node-RPC client spec.md places out of scope. Each line is
// indexed by its own Height field; lines may arrive in any order since the
// whole file is loaded up front.
type fileBlockSource struct {
	byHeight map[uint32]indexermodel.RPCBlock
}

// newFileBlockSource reads path, a file of one JSON-encoded RPCBlock per
// line, grounded on the same encoding/json-over-io.Reader style
// stores/legacyoracle/http.go uses to decode its HTTP responses.
func newFileBlockSource(path string) (*fileBlockSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening blocks file: %w", err)
	}
	defer f.Close()

	src := &fileBlockSource{byHeight: make(map[uint32]indexermodel.RPCBlock)}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var block indexermodel.RPCBlock
		if err := json.Unmarshal(line, &block); err != nil {
			return nil, fmt.Errorf("decoding block line: %w", err)
		}
		src.byHeight[block.Height] = block
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning blocks file: %w", err)
	}

	return src, nil
}

func (s *fileBlockSource) GetBlock(_ context.Context, height uint32) (indexermodel.RPCBlock, bool, error) {
	block, ok := s.byHeight[height]
	return block, ok, nil
}
