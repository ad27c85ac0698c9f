package swap

import (
	"github.com/bitcoin-sv/brc20indexer/indexermodel"
	"github.com/bitcoin-sv/brc20indexer/opi"
	"github.com/bitcoin-sv/brc20indexer/state"
)

// PositionStore is the read surface OnBlockEnd needs to find positions
// crossing their unlock height this block, implemented by stores/sql.
type PositionStore interface {
	GetActivePositionsUnlockingAt(height uint32) ([]*indexermodel.SwapPosition, error)
}

// BlockEndProcessor wraps Processor with the PositionStore dependency
// OnBlockEnd needs; registered instead of the plain Processor when a store
// is available.
type BlockEndProcessor struct {
	Processor
	Store PositionStore
}

// NewBlockEndFactory returns an opi.Factory whose Processor also implements
// opi.BlockEndHook.
func NewBlockEndFactory(store PositionStore) opi.Factory {
	return func() opi.Processor { return &BlockEndProcessor{Store: store} }
}

// OnBlockEnd transitions every active position whose unlock_height equals
// the current block height to expired, per spec.md §3's swap-position
// lifecycle.
func (b *BlockEndProcessor) OnBlockEnd(info opi.BlockEndInfo, sctx *state.Context) (state.Staged, error) {
	if b.Store == nil {
		return state.Staged{}, nil
	}
	positions, err := b.Store.GetActivePositionsUnlockingAt(info.Height)
	if err != nil {
		return state.Staged{}, err
	}
	if len(positions) == 0 {
		return state.Staged{}, nil
	}
	updated := make([]any, 0, len(positions))
	for _, pos := range positions {
		pos.Status = indexermodel.SwapExpired
		updated = append(updated, pos)
	}
	return state.Staged{UpdatedEntities: updated}, nil
}
