// Package adversary implements the protocol-valid but strategically
// dishonest node variants spec.md describes: a selfish miner that
// withholds its own blocks to keep a private lead, and a double-spend
// miner/colluding-SPV/vendor trio that reverses a payment by racing a
// hidden fork. Both miner variants are built by embedding a plain
// miner.Miner and injecting a custom planner/publisher, rather than by
// subclassing it -- see the note on miner.Miner's plan/publish fields.
package adversary

import (
	"crypto/ecdsa"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/coinmesh/ledgerd/internal/chain"
	"github.com/coinmesh/ledgerd/internal/mempool"
	"github.com/coinmesh/ledgerd/internal/miner"
	"github.com/coinmesh/ledgerd/internal/netnode"
)

// releaseThreshold is the withheld-block count at which a selfish
// miner starts giving ground: at or above it, a foreign block makes it
// release two of its own; below it, a foreign block makes it release
// everything. Matches original_source/src/selfish.py's push_blocks(2)
// at qlen >= 3.
const releaseThreshold = 3

// SelfishMiner behaves exactly like an honest miner except for what it
// does with a block it successfully mines: instead of broadcasting,
// it enqueues the block into a private FIFO, releasing from the front
// only when a foreign block arrives.
type SelfishMiner struct {
	*miner.Miner

	mu       sync.Mutex
	withheld []*chain.Block
}

// NewSelfishMiner returns a selfish miner wired to withhold its own
// blocks instead of broadcasting them.
func NewSelfishMiner(priv *ecdsa.PrivateKey, pub string, store *chain.Store, pool *mempool.Engine, peers *netnode.Peers, logger *zap.Logger) *SelfishMiner {
	sm := &SelfishMiner{}
	sm.Miner = miner.New(priv, pub, store, pool, peers, logger)
	sm.Miner.SetPublisher(sm.withhold)
	return sm
}

func (sm *SelfishMiner) withhold(block *chain.Block) {
	sm.mu.Lock()
	sm.withheld = append(sm.withheld, block)
	sm.mu.Unlock()
}

// PushBlocks releases the oldest num withheld blocks onto the network
// in order.
func (sm *SelfishMiner) PushBlocks(num int) error {
	sm.mu.Lock()
	if num > len(sm.withheld) {
		sm.mu.Unlock()
		return fmt.Errorf("adversary: only %d blocks withheld, cannot push %d", len(sm.withheld), num)
	}
	toPush := make([]*chain.Block, num)
	copy(toPush, sm.withheld[:num])
	sm.withheld = sm.withheld[num:]
	sm.mu.Unlock()

	for _, b := range toPush {
		sm.Miner.PublishBlock(b)
	}
	return nil
}

// WithheldCount reports how many blocks are currently sitting in the
// private queue.
func (sm *SelfishMiner) WithheldCount() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return len(sm.withheld)
}

// Dispatch shadows the embedded Miner.Dispatch: on receiving a foreign
// block it first decides how much of its private lead to give up
// (release two at or above the threshold, everything below it),
// then hands the frame to the honest dispatch logic to integrate the
// foreign block and stand mining down and back up.
func (sm *SelfishMiner) Dispatch(tag netnode.Tag, body []byte) ([]byte, bool) {
	if tag == netnode.TagBlock {
		qlen := sm.WithheldCount()
		switch {
		case qlen >= releaseThreshold:
			if err := sm.PushBlocks(2); err != nil {
				sm.Miner.Logger().Error("push blocks", zap.Error(err))
			}
		case qlen != 0:
			if err := sm.PushBlocks(qlen); err != nil {
				sm.Miner.Logger().Error("push blocks", zap.Error(err))
			}
		}
	}
	return sm.Miner.Dispatch(tag, body)
}
