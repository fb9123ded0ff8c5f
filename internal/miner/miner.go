// Package miner is the control loop that turns a chain store and a
// mempool engine into a node that actually produces blocks: gather a
// candidate transaction set, mine against the current best tip,
// integrate and broadcast the result, and cooperatively stand down the
// moment a foreign block arrives.
//
// Both what to mine on top of and what happens to a freshly mined
// block are pluggable (plan/publish function fields), not virtual
// methods: Go embedding does not give a base type's own method calls a
// way to see an overriding method on whatever wraps it, so the
// adversary variants that need different behavior here inject a
// closure instead, the same way the teacher's work.Generator takes
// payoutsFn/prevShareHashFn callbacks rather than being subclassed.
package miner

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/coinmesh/ledgerd/internal/chain"
	"github.com/coinmesh/ledgerd/internal/chainjson"
	"github.com/coinmesh/ledgerd/internal/mempool"
	"github.com/coinmesh/ledgerd/internal/metrics"
	"github.com/coinmesh/ledgerd/internal/netnode"
)

// Miner owns one identity's view of the chain and mempool and drives
// the create-block loop against it.
type Miner struct {
	logger *zap.Logger

	priv *ecdsa.PrivateKey
	pub  string

	store       *chain.Store
	pool        *mempool.Engine
	peers       *netnode.Peers
	broadcaster *netnode.Broadcaster

	// plan decides what a new block should build on top of and which
	// transactions it should carry. publish decides what happens to a
	// successfully mined block. Both default to the honest behavior and
	// are overridden by the adversary variants.
	plan    func() (prevHash string, gathered []*chain.Transaction, err error)
	publish func(block *chain.Block)

	// stopMu guards cancel/ctx, the cooperative-cancellation pair a
	// foreign block uses to interrupt an in-flight mining attempt.
	// Matches spec.md's single-producer/multi-consumer stop_mine flag,
	// expressed as a context the listener cancels (StopMining) and
	// replaces with a fresh one once the foreign block has been
	// integrated (ResumeMining).
	stopMu sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// New returns a miner identified by (priv, pub), operating over store
// and pool, broadcasting through peers.
func New(priv *ecdsa.PrivateKey, pub string, store *chain.Store, pool *mempool.Engine, peers *netnode.Peers, logger *zap.Logger) *Miner {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Miner{
		logger:      logger,
		priv:        priv,
		pub:         pub,
		store:       store,
		pool:        pool,
		peers:       peers,
		broadcaster: netnode.NewBroadcaster(logger),
		ctx:         ctx,
		cancel:      cancel,
	}
	m.plan = m.defaultPlan
	m.publish = m.PublishBlock
	return m
}

// PubKey returns the miner's public identifier.
func (m *Miner) PubKey() string { return m.pub }

// Logger returns the miner's logger, so adversary variants that embed
// a Miner can log through the same sink without holding their own.
func (m *Miner) Logger() *zap.Logger { return m.logger }

// Pool returns the mempool engine backing this miner.
func (m *Miner) Pool() *mempool.Engine { return m.pool }

// Store returns the chain store backing this miner.
func (m *Miner) Store() *chain.Store { return m.store }

// Peers returns the peer registry this miner broadcasts through.
func (m *Miner) Peers() *netnode.Peers { return m.peers }

// SetPlanner overrides what a new block builds on top of and which
// transactions it carries, in place of the default resolve-best-tip,
// gather-pending behavior.
func (m *Miner) SetPlanner(fn func() (prevHash string, gathered []*chain.Transaction, err error)) {
	m.plan = fn
}

// SetPublisher overrides what happens to a block once it's
// successfully mined, in place of the default broadcast-to-everyone
// behavior.
func (m *Miner) SetPublisher(fn func(block *chain.Block)) {
	m.publish = fn
}

func (m *Miner) defaultPlan() (string, []*chain.Transaction, error) {
	_, tipHash, err := m.pool.Update()
	if err != nil {
		return "", nil, fmt.Errorf("miner: update: %w", err)
	}
	gathered, err := m.pool.Gather(m.pub)
	if err != nil {
		return "", nil, fmt.Errorf("miner: gather: %w", err)
	}
	return tipHash, gathered, nil
}

func (m *Miner) attemptContext() context.Context {
	m.stopMu.Lock()
	defer m.stopMu.Unlock()
	return m.ctx
}

// StopMining cancels whatever mining attempt is in flight. Called the
// instant a foreign block arrives.
func (m *Miner) StopMining() {
	m.stopMu.Lock()
	defer m.stopMu.Unlock()
	m.cancel()
}

// ResumeMining clears stop_mine so the next CreateBlock call starts a
// fresh, uncancelled attempt. Called once the foreign block that
// triggered StopMining has been integrated.
func (m *Miner) ResumeMining() {
	m.stopMu.Lock()
	defer m.stopMu.Unlock()
	m.ctx, m.cancel = context.WithCancel(context.Background())
}

// CreateBlock runs one full create_block cycle: ask the planner what
// to build on top of, mine against it, and on success integrate and
// publish the block. It returns (nil, nil) if mining was cancelled by
// a foreign block arriving mid-attempt.
func (m *Miner) CreateBlock() (*chain.Block, error) {
	prevHash, gathered, err := m.plan()
	if err != nil {
		return nil, err
	}
	return m.mineAndIntegrate(prevHash, gathered)
}

func (m *Miner) mineAndIntegrate(prevHash string, gathered []*chain.Transaction) (*chain.Block, error) {
	block, err := chain.Mine(m.attemptContext(), prevHash, gathered)
	if err != nil {
		return nil, fmt.Errorf("miner: mine: %w", err)
	}
	if block == nil {
		return nil, nil
	}

	if err := m.store.Add(block); err != nil {
		return nil, fmt.Errorf("miner: add mined block: %w", err)
	}
	if err := m.pool.MergeAdded(gathered); err != nil {
		return nil, fmt.Errorf("miner: merge added: %w", err)
	}

	m.publish(block)

	metrics.BlocksMined.Inc()
	m.logger.Info("mined a block", zap.Int("transactions", len(block.Transactions)))
	return block, nil
}

// Integrate adds a foreign, already-parsed block to the store and
// refreshes the mempool engine's derived state from it.
func (m *Miner) Integrate(block *chain.Block) error {
	if err := m.store.Add(block); err != nil {
		return fmt.Errorf("miner: add block: %w", err)
	}
	if _, _, err := m.pool.Update(); err != nil {
		return fmt.Errorf("miner: update after block: %w", err)
	}
	return nil
}

// IntegrateBlockJSON parses and integrates a foreign block's canonical
// JSON encoding, returning the parsed block for callers that need to
// inspect it.
func (m *Miner) IntegrateBlockJSON(blkJSON string) (*chain.Block, error) {
	block, err := chain.BlockFromJSON(blkJSON)
	if err != nil {
		return nil, fmt.Errorf("miner: parse block: %w", err)
	}
	if err := m.Integrate(block); err != nil {
		return nil, err
	}
	return block, nil
}

// PublishBlock sends the full block (tag b, for other miners) and its
// header alone (tag h, for SPV clients) to every known peer. This is
// the honest default publisher; adversary variants substitute a
// withholding publisher and call this directly once they decide to
// release a block.
func (m *Miner) PublishBlock(block *chain.Block) {
	blkJSON, err := block.JSON()
	if err != nil {
		m.logger.Error("marshal mined block", zap.Error(err))
		return
	}
	blockBody, err := chainjson.Marshal(netnode.BlockBody{BlkJSON: blkJSON})
	if err != nil {
		m.logger.Error("marshal block body", zap.Error(err))
		return
	}
	headerBody, err := chainjson.Marshal(block.Header)
	if err != nil {
		m.logger.Error("marshal header body", zap.Error(err))
		return
	}

	targets := m.peers.All()
	m.broadcaster.FireAndForget(targets, netnode.TagBlock, blockBody)
	m.broadcaster.FireAndForget(targets, netnode.TagHeader, headerBody)
}

// CreateTransaction signs a new transaction from this miner to
// receiver, admits it locally, and broadcasts it with tag t.
func (m *Miner) CreateTransaction(receiver string, amount int64, comment string) (*chain.Transaction, error) {
	tx, err := chain.New(m.pub, receiver, amount, comment, m.priv)
	if err != nil {
		return nil, fmt.Errorf("miner: create transaction: %w", err)
	}
	if err := m.pool.AddTransaction(tx); err != nil {
		return nil, fmt.Errorf("miner: add own transaction: %w", err)
	}

	txJSON, err := tx.JSON()
	if err != nil {
		return nil, fmt.Errorf("miner: %w", err)
	}
	body, err := chainjson.Marshal(netnode.TransactionBody{TxJSON: txJSON})
	if err != nil {
		return nil, fmt.Errorf("miner: %w", err)
	}
	m.broadcaster.FireAndForget(m.peers.All(), netnode.TagTransaction, body)
	metrics.TransactionsBroadcast.Inc()
	return tx, nil
}

// GetBalance returns self's current best-fork balance.
func (m *Miner) GetBalance() (int64, error) {
	return m.pool.GetBalance(m.pub)
}

// Run repeatedly calls CreateBlock until ctx is cancelled, matching
// the original's bare "while True: miner.create_block()" outer loop.
// A cancelled attempt (foreign block arrived) is not an error; the
// loop just starts again on the new tip.
func (m *Miner) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if _, err := m.CreateBlock(); err != nil {
			m.logger.Error("create block", zap.Error(err))
		}
	}
}
