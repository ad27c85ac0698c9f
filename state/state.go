// Package state implements §4.6: the per-block intermediate state and the
// read-only Context processors see. This is the "Security Contract" from
// the Python original (src/opi/contracts.py): a processor never mutates
// state directly, it returns mutation closures that the pipeline applies
// in order, so no processor can observe a partial effect of an operation
// that hasn't committed yet.
package state

import (
	"fmt"
	"strings"

	"github.com/bitcoin-sv/brc20indexer/amount"
	"github.com/bitcoin-sv/brc20indexer/indexermodel"
)

type balanceKey struct {
	Address string
	Ticker  string
}

// IntermediateState is the per-block staging area of spec.md §3/§4.6:
// balance deltas, newly loaded or newly created deploy records, cumulative
// minted counters, and opaque per-operation scratch (e.g. the poisson OPI's
// in-block participation list). Only mutation callbacks applied by the
// pipeline may write to it; everything else only reads through a Context.
type IntermediateState struct {
	BlockHeight uint32

	balances    map[balanceKey]string
	totalMinted map[string]string
	deploys     map[string]*indexermodel.Deploy
	scratch     map[string]any
}

// New returns an empty IntermediateState for the given block height.
func New(blockHeight uint32) *IntermediateState {
	return &IntermediateState{
		BlockHeight: blockHeight,
		balances:    make(map[balanceKey]string),
		totalMinted: make(map[string]string),
		deploys:     make(map[string]*indexermodel.Deploy),
		scratch:     make(map[string]any),
	}
}

// PersistentStore is the read-through collaborator backing a Context: the
// committed-to-disk view a cache miss falls back to. Implemented by
// stores/sql.
type PersistentStore interface {
	GetBalance(address, ticker string) (string, error)
	GetTotalMinted(ticker string) (string, error)
	GetDeployRecord(ticker string) (*indexermodel.Deploy, error)
}

// Mutation is a pure function from one intermediate state to its next,
// spec.md §4.6's "mutations as first-class values". The pipeline applies a
// processor's returned mutations in order after validating the operation;
// a mutation must never be applied speculatively ahead of validation.
type Mutation func(*IntermediateState)

// Staged is what a processor returns per spec.md §4.7: new entities to
// persist plus the mutations that move intermediate state forward.
// UpdatedEntities carries existing rows (e.g. a SwapPosition transitioning
// to expired, a Vault's remaining_blocks countdown) that the commit step
// must persist as updates rather than inserts.
type Staged struct {
	NewEntities     []any
	UpdatedEntities []any
	Mutations       []Mutation
}

// SetBalance returns a Mutation that sets the given address/ticker balance
// to newBalance. There is no signed-delta form: since amounts are
// non-negative strings, callers compute the new balance with the amount
// package (amount.Add for a credit, amount.Subtract for a debit) and stage
// one SetBalance per affected address.
func SetBalance(address, ticker, newBalance string) Mutation {
	ticker = strings.ToUpper(ticker)
	return func(s *IntermediateState) {
		s.balances[balanceKey{address, ticker}] = newBalance
	}
}

// AddTotalMinted returns a Mutation that sets total_minted(ticker) to
// newTotal, the already-computed committed+delta figure (spec.md §4.4: the
// check, and therefore the mutation, must use the live intermediate value).
func AddTotalMinted(ticker, newTotal string) Mutation {
	ticker = strings.ToUpper(ticker)
	return func(s *IntermediateState) {
		s.totalMinted[ticker] = newTotal
	}
}

// SetRemainingSupply returns a Mutation that updates a deploy record's
// remaining_supply field in place (used by mint to debit the minted amount,
// and by the swap extension to credit a pool-locked amount back against
// supply bookkeeping).
func SetRemainingSupply(ticker, newRemaining string) Mutation {
	ticker = strings.ToUpper(ticker)
	return func(s *IntermediateState) {
		if d, ok := s.deploys[ticker]; ok {
			d.RemainingSupply = newRemaining
		}
	}
}

// PutDeploy returns a Mutation that registers a brand-new deploy record,
// making it immediately visible to later operations in the same block.
func PutDeploy(d *indexermodel.Deploy) Mutation {
	ticker := strings.ToUpper(d.Ticker)
	return func(s *IntermediateState) {
		s.deploys[ticker] = d
	}
}

// PutScratch returns a Mutation that stores an arbitrary extension-owned
// value under key, the escape hatch spec.md §4.6 calls "opaque per-operation
// scratch" (e.g. the poisson OPI's per-block participation list).
func PutScratch(key string, value any) Mutation {
	return func(s *IntermediateState) {
		s.scratch[key] = value
	}
}

// AppendScratchList returns a Mutation that appends value to the []any
// slice stored under key, creating it if absent. This is how the poisson
// extension accumulates participations across many transactions in the
// same block.
func AppendScratchList(key string, value any) Mutation {
	return func(s *IntermediateState) {
		list, _ := s.scratch[key].([]any)
		s.scratch[key] = append(list, value)
	}
}

// Context is the read-only, sandboxed view of an IntermediateState that
// processors receive, spec.md §4.6. Every lookup reads the in-block map
// first, falls back to the persistent store on miss, and caches the result
// back into the map - the same read-through-then-cache behavior as the
// Python original's Context.get_balance/get_total_minted/get_deploy_record.
type Context struct {
	state *IntermediateState
	store PersistentStore
}

// NewContext builds a Context over state, reading through to store on miss.
func NewContext(state *IntermediateState, store PersistentStore) *Context {
	return &Context{state: state, store: store}
}

// GetBalance returns address's ticker balance, defaulting to "0" when
// neither the intermediate state nor the persistent store has a row.
func (c *Context) GetBalance(address, ticker string) (string, error) {
	ticker = strings.ToUpper(ticker)
	key := balanceKey{address, ticker}
	if v, ok := c.state.balances[key]; ok {
		return v, nil
	}
	v, err := c.store.GetBalance(address, ticker)
	if err != nil {
		return "", err
	}
	if v == "" {
		v = amount.Zero
	}
	c.state.balances[key] = v
	return v, nil
}

// GetTotalMinted returns ticker's cumulative minted amount, defaulting to
// "0" on a cold lookup.
func (c *Context) GetTotalMinted(ticker string) (string, error) {
	ticker = strings.ToUpper(ticker)
	if v, ok := c.state.totalMinted[ticker]; ok {
		return v, nil
	}
	v, err := c.store.GetTotalMinted(ticker)
	if err != nil {
		return "", err
	}
	if v == "" {
		v = amount.Zero
	}
	c.state.totalMinted[ticker] = v
	return v, nil
}

// GetDeployRecord returns ticker's deploy record, or nil if the ticker has
// never been deployed.
func (c *Context) GetDeployRecord(ticker string) (*indexermodel.Deploy, error) {
	ticker = strings.ToUpper(ticker)
	if d, ok := c.state.deploys[ticker]; ok {
		return d, nil
	}
	d, err := c.store.GetDeployRecord(ticker)
	if err != nil {
		return nil, err
	}
	if d != nil {
		c.state.deploys[ticker] = d
	}
	return d, nil
}

// GetScratch returns the extension-owned value stored under key, if any.
func (c *Context) GetScratch(key string) (any, bool) {
	v, ok := c.state.scratch[key]
	return v, ok
}

// BlockHeight returns the height of the block currently being processed.
func (c *Context) BlockHeight() uint32 {
	return c.state.BlockHeight
}

// Apply runs every mutation in staged against state, in order. Called only
// by the block pipeline, never by a processor.
func Apply(s *IntermediateState, staged Staged) {
	for _, m := range staged.Mutations {
		m(s)
	}
}

// Snapshot returns every (address, ticker) -> balance pair staged this
// block, for the pipeline's final commit step.
func (s *IntermediateState) Snapshot() (balances map[string]map[string]string, totalMinted map[string]string, deploys map[string]*indexermodel.Deploy) {
	balances = make(map[string]map[string]string)
	for k, v := range s.balances {
		if balances[k.Address] == nil {
			balances[k.Address] = make(map[string]string)
		}
		balances[k.Address][k.Ticker] = v
	}
	totalMinted = make(map[string]string, len(s.totalMinted))
	for k, v := range s.totalMinted {
		totalMinted[k] = v
	}
	deploys = make(map[string]*indexermodel.Deploy, len(s.deploys))
	for k, v := range s.deploys {
		deploys[k] = v
	}
	return balances, totalMinted, deploys
}

// ScratchKeyPoissonParticipants builds the scratch key the poisson
// extension uses to accumulate one block's worth of participations,
// grounded on the Python original's f"poisson_participations_{block_height}"
// naming.
func ScratchKeyPoissonParticipants(blockHeight uint32) string {
	return fmt.Sprintf("poisson_participations_%d", blockHeight)
}
