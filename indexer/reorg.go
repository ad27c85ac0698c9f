package indexer

import (
	"context"

	"github.com/bitcoin-sv/brc20indexer/errors"
	"github.com/bitcoin-sv/brc20indexer/indexermodel"
)

// ChainLookup is the out-of-scope node-RPC collaborator spec.md §6
// describes as the pipeline's only blocking dependency besides the store:
// given a height, it returns the hash the live chain actually has there.
// It is consulted only when a parent-hash mismatch is detected and the
// pipeline must walk further back than one block to find the common
// ancestor; ProcessBlock never calls it on the non-reorg path.
type ChainLookup interface {
	BlockHashAtHeight(ctx context.Context, height uint32) (hash string, found bool, err error)
}

// findCommonAncestor implements §4.9's "common-ancestor scan compares
// (height, block_hash) pairs walking backward", bounded by
// cfg.MaxReorgDepth. block's own PrevHash disagreeing with the stored
// block at height-1 is the entry condition; from there this walks further
// back only if the mismatch turns out to run deeper than one block.
//
// Without a configured ChainLookup the pipeline has no way to learn what
// the live chain's hash was at any height below the one it already
// rejected, so a mismatch immediately surfaces as ERR_REORG_TOO_DEEP
// rather than guessing - per §7, a reorg the pipeline cannot resolve is a
// fatal error, not a best-effort one.
func (p *Pipeline) findCommonAncestor(ctx context.Context, block indexermodel.RPCBlock) (uint32, error) {
	height := block.Height
	wantParentHash := block.PrevHash

	for depth := uint32(0); depth <= p.cfg.MaxReorgDepth; depth++ {
		if height == 0 {
			return 0, nil
		}
		parentHeight := height - 1
		stored, err := p.store.GetProcessedBlock(parentHeight)
		if err != nil {
			return 0, err
		}
		if stored == nil {
			// Nothing committed at this height yet: it can't be the
			// diverging point, so it's a safe ancestor to roll back to.
			return parentHeight, nil
		}
		if stored.BlockHash == wantParentHash {
			return parentHeight, nil
		}

		if p.chainLookup == nil {
			return 0, errors.NewReorgTooDeepError(
				"reorg at height %d: stored hash at height %d does not match and no chain lookup is configured to resolve the common ancestor",
				block.Height, parentHeight)
		}
		if parentHeight == 0 {
			return 0, nil
		}
		grandparentHash, found, err := p.chainLookup.BlockHashAtHeight(ctx, parentHeight-1)
		if err != nil {
			return 0, err
		}
		if !found {
			return 0, errors.NewReorgTooDeepError(
				"reorg at height %d: chain lookup has no hash for height %d", block.Height, parentHeight-1)
		}
		wantParentHash = grandparentHash
		height = parentHeight
	}

	return 0, errors.NewReorgTooDeepError("reorg at height %d exceeds max_reorg_depth=%d", block.Height, p.cfg.MaxReorgDepth)
}
