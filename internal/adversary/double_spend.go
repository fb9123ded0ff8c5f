package adversary

import (
	"crypto/ecdsa"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/coinmesh/ledgerd/internal/chain"
	"github.com/coinmesh/ledgerd/internal/chainjson"
	"github.com/coinmesh/ledgerd/internal/mempool"
	"github.com/coinmesh/ledgerd/internal/miner"
	"github.com/coinmesh/ledgerd/internal/netnode"
)

// Mode is the double-spend miner's three-state progression: mine
// honestly until the payment to the colluding SPV client lands
// (Init), then build a private fork from that point onward (Fork),
// then, once the colluding SPV client's refund back to this miner is
// seen, race to overtake the public chain and erase the vendor's
// payment (Fire).
type Mode int

const (
	ModeInit Mode = iota
	ModeFork
	ModeFire
)

// DoubleSpendMiner mines honestly until it spots its own payment to a
// colluding SPV client land on the public chain, then privately forks
// from that block to build an alternate history that never pays the
// vendor, releasing the fork only once it has overtaken the public
// chain's lead since the fork point.
type DoubleSpendMiner struct {
	*miner.Miner

	colludingSPVPub string
	vendorPub       string

	mu                   sync.Mutex
	mode                 Mode
	privateTip           string
	withheld             []*chain.Block
	publicCountSinceFork int
}

// NewDoubleSpendMiner returns a double-spend miner that will fork away
// from any block paying colludingSPVPub and, once it sees the refund
// transaction from colludingSPVPub back to itself, race to bury the
// vendor's payment. colludingSPVPub and vendorPub may be left empty:
// the miner then resolves them itself from the rendezvous-announced
// peer roles the first time it needs them, the same way the original
// demo's DoubleSpendMiner.find_peer looked its accomplices up by class
// name instead of being told their keys in advance. This is what lets
// every adversary role be launched the same flagless way as an honest
// node (a single port argument) while still finding each other.
func NewDoubleSpendMiner(priv *ecdsa.PrivateKey, pub string, store *chain.Store, pool *mempool.Engine, peers *netnode.Peers, colludingSPVPub, vendorPub string, logger *zap.Logger) *DoubleSpendMiner {
	dm := &DoubleSpendMiner{colludingSPVPub: colludingSPVPub, vendorPub: vendorPub}
	dm.Miner = miner.New(priv, pub, store, pool, peers, logger)
	dm.Miner.SetPlanner(dm.plan)
	dm.Miner.SetPublisher(dm.publish)
	return dm
}

// resolveAccomplices fills in colludingSPVPub/vendorPub from the peer
// registry by role, if they were not supplied up front, and caches the
// result. Returns ("", "") fields left blank if the corresponding role
// has not announced itself to the rendezvous yet; callers simply find
// no match against an empty string and try again on the next message.
func (dm *DoubleSpendMiner) resolveAccomplices() (colludingSPVPub, vendorPub string) {
	dm.mu.Lock()
	colludingSPVPub, vendorPub = dm.colludingSPVPub, dm.vendorPub
	dm.mu.Unlock()
	if colludingSPVPub != "" && vendorPub != "" {
		return colludingSPVPub, vendorPub
	}

	if colludingSPVPub == "" {
		if found := dm.Peers().ByRole(netnode.RoleDoubleSpendSPV); len(found) > 0 {
			colludingSPVPub = found[0].PubKey
		}
	}
	if vendorPub == "" {
		if found := dm.Peers().ByRole(netnode.RoleVendor); len(found) > 0 {
			vendorPub = found[0].PubKey
		}
	}

	dm.mu.Lock()
	dm.colludingSPVPub, dm.vendorPub = colludingSPVPub, vendorPub
	dm.mu.Unlock()
	return colludingSPVPub, vendorPub
}

func (dm *DoubleSpendMiner) plan() (string, []*chain.Transaction, error) {
	dm.mu.Lock()
	mode := dm.mode
	privateTip := dm.privateTip
	withheldLen := len(dm.withheld)
	dm.mu.Unlock()

	var prevHash string
	if mode != ModeInit && withheldLen > 0 {
		dm.mu.Lock()
		last := dm.withheld[len(dm.withheld)-1]
		dm.mu.Unlock()
		hash, err := last.Header.Hash()
		if err != nil {
			return "", nil, fmt.Errorf("adversary: hash withheld tip: %w", err)
		}
		prevHash = hash
	} else if mode != ModeInit {
		prevHash = privateTip
	} else {
		_, tipHash, err := dm.Pool().Update()
		if err != nil {
			return "", nil, fmt.Errorf("adversary: update: %w", err)
		}
		prevHash = tipHash
	}

	gathered, err := dm.Pool().Gather(dm.PubKey())
	if err != nil {
		return "", nil, fmt.Errorf("adversary: gather: %w", err)
	}
	return prevHash, gathered, nil
}

func (dm *DoubleSpendMiner) publish(block *chain.Block) {
	dm.mu.Lock()
	mode := dm.mode
	switch mode {
	case ModeFork:
		dm.withheld = append(dm.withheld, block)
		dm.mu.Unlock()
		return
	case ModeFire:
		dm.withheld = append(dm.withheld, block)
		fire := len(dm.withheld) > dm.publicCountSinceFork
		dm.mu.Unlock()
		if fire {
			dm.pushAll()
		}
		return
	default:
		dm.mu.Unlock()
		dm.Miner.PublishBlock(block)
	}
}

// pushAll releases every withheld block onto the network in order and
// resets the miner to honest mining.
func (dm *DoubleSpendMiner) pushAll() {
	dm.mu.Lock()
	toPush := dm.withheld
	dm.withheld = nil
	dm.mode = ModeInit
	dm.publicCountSinceFork = 0
	dm.mu.Unlock()

	for _, b := range toPush {
		dm.Miner.PublishBlock(b)
	}
}

// Dispatch shadows the embedded Miner.Dispatch for the two tags whose
// handling depends on fork state: a block may flip Init to Fork (it
// carries the payment to the colluding SPV client) or grow the public
// lead to outrace in Fork, and a transaction may flip Fork to Fire (it
// is the colluding SPV client's refund) or must never reach the
// mempool at all (it is the colluding SPV client paying the vendor).
func (dm *DoubleSpendMiner) Dispatch(tag netnode.Tag, body []byte) ([]byte, bool) {
	switch tag {
	case netnode.TagBlock:
		dm.handleBlock(body)
		return nil, false
	case netnode.TagTransaction:
		dm.handleTransaction(body)
		return nil, false
	default:
		return dm.Miner.Dispatch(tag, body)
	}
}

func (dm *DoubleSpendMiner) handleBlock(body []byte) {
	var b netnode.BlockBody
	if err := chainjson.Unmarshal(body, &b); err != nil {
		dm.Miner.Logger().Debug("dropping malformed block message", zap.Error(err))
		return
	}
	block, err := chain.BlockFromJSON(b.BlkJSON)
	if err != nil {
		dm.Miner.Logger().Debug("dropping unparseable block", zap.Error(err))
		return
	}

	colludingSPVPub, _ := dm.resolveAccomplices()

	dm.mu.Lock()
	switch dm.mode {
	case ModeInit:
		for _, tx := range block.Transactions {
			if tx.Sender == dm.PubKey() && tx.Receiver == colludingSPVPub && colludingSPVPub != "" {
				dm.mode = ModeFork
				hash, herr := block.Header.Hash()
				if herr == nil {
					dm.privateTip = hash
				}
				break
			}
		}
	case ModeFork:
		dm.publicCountSinceFork++
	}
	dm.mu.Unlock()

	dm.Miner.StopMining()
	defer dm.Miner.ResumeMining()
	if err := dm.Miner.Integrate(block); err != nil {
		dm.Miner.Logger().Debug("rejected foreign block", zap.Error(err))
		return
	}

	dm.mu.Lock()
	fire := dm.mode == ModeFire && len(dm.withheld) > dm.publicCountSinceFork
	dm.mu.Unlock()
	if fire {
		dm.pushAll()
	}
}

func (dm *DoubleSpendMiner) handleTransaction(body []byte) {
	var t netnode.TransactionBody
	if err := chainjson.Unmarshal(body, &t); err != nil {
		dm.Miner.Logger().Debug("dropping malformed transaction message", zap.Error(err))
		return
	}
	tx, err := chain.FromJSON(t.TxJSON)
	if err != nil {
		dm.Miner.Logger().Debug("dropping unparseable transaction", zap.Error(err))
		return
	}

	colludingSPVPub, vendorPub := dm.resolveAccomplices()

	dm.mu.Lock()
	if dm.mode == ModeFork && colludingSPVPub != "" && tx.Sender == colludingSPVPub && tx.Receiver == dm.PubKey() {
		dm.mode = ModeFire
	}
	dm.mu.Unlock()

	if colludingSPVPub != "" && vendorPub != "" && tx.Sender == colludingSPVPub && tx.Receiver == vendorPub {
		return
	}
	if err := dm.Pool().AddTransaction(tx); err != nil {
		dm.Miner.Logger().Debug("rejected transaction", zap.Error(err))
	}
}

// Mode reports the miner's current fork-state, mostly for tests and
// demo wiring.
func (dm *DoubleSpendMiner) Mode() Mode {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return dm.mode
}
