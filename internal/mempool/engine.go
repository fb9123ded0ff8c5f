// Package mempool is the miner-side account engine: it tracks every
// signature-verified transaction a node has seen, the subset already
// committed on the best fork, and the balance map derived from that
// fork, and it selects a feasible candidate subset for a new block.
package mempool

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/coinmesh/ledgerd/internal/chain"
	"github.com/coinmesh/ledgerd/internal/metrics"
)

// Engine holds the three pieces of derived, refreshable state a miner
// needs before it can build a candidate block. Each map has its own
// lock, matching the spec's all_tx_lock / added_tx_lock / balance_lock;
// Update acquires added_tx_lock then balance_lock, in that order,
// after resolving the chain (chain_lock is internal to chain.Store).
// all_tx_lock is always acquired alone or as the innermost lock.
type Engine struct {
	store *chain.Store

	allTxMu sync.RWMutex
	allTx   map[string]*chain.Transaction // keyed by canonical JSON

	addedTxMu sync.RWMutex
	addedTx   map[string]*chain.Transaction

	balanceMu sync.RWMutex
	balance   map[string]int64

	lastTipMu sync.Mutex
	lastTip   string
}

// NewEngine returns an engine backed by store, with empty derived state
// until the first Update.
func NewEngine(store *chain.Store) *Engine {
	return &Engine{
		store:   store,
		allTx:   make(map[string]*chain.Transaction),
		addedTx: make(map[string]*chain.Transaction),
		balance: make(map[string]int64),
	}
}

// AddTransaction verifies tx's signature and admits it to all_tx. A
// transaction already present (by JSON-string identity) is dropped
// silently, matching the spec's idempotence requirement.
func (e *Engine) AddTransaction(tx *chain.Transaction) error {
	if err := tx.Validate(); err != nil {
		return fmt.Errorf("mempool: %w", err)
	}
	if !tx.VerifySignature() {
		return fmt.Errorf("mempool: transaction signature invalid")
	}
	j, err := tx.JSON()
	if err != nil {
		return fmt.Errorf("mempool: %w", err)
	}

	e.allTxMu.Lock()
	defer e.allTxMu.Unlock()
	if _, exists := e.allTx[j]; exists {
		return nil
	}
	e.allTx[j] = tx
	return nil
}

// Update resolves the current best fork and rebuilds added_tx and the
// balance map from it. It returns the resolved tip block, for miners
// that need it as the parent of their next mining attempt.
func (e *Engine) Update() (*chain.Block, string, error) {
	tip, tipHash, err := e.store.Resolve()
	if err != nil {
		return nil, "", fmt.Errorf("mempool: resolve: %w", err)
	}
	e.recordTip(tipHash)

	txs, err := e.store.TransactionsOnFork(tipHash)
	if err != nil {
		return nil, "", fmt.Errorf("mempool: transactions on fork: %w", err)
	}
	added := make(map[string]*chain.Transaction, len(txs))
	for _, tx := range txs {
		j, err := tx.JSON()
		if err != nil {
			return nil, "", fmt.Errorf("mempool: %w", err)
		}
		added[j] = tx
	}

	balance, err := e.store.BalanceOnFork(tipHash)
	if err != nil {
		return nil, "", fmt.Errorf("mempool: balance on fork: %w", err)
	}

	e.addedTxMu.Lock()
	e.addedTx = added
	e.addedTxMu.Unlock()

	e.balanceMu.Lock()
	e.balance = balance
	e.balanceMu.Unlock()

	metrics.ChainTips.Set(float64(e.store.TipCount()))
	metrics.MempoolPending.Set(float64(len(e.Pending())))
	if length, ok := e.store.TipLength(tipHash); ok {
		metrics.ChainHeight.Set(float64(length))
	}

	return tip, tipHash, nil
}

// recordTip tracks the resolved tip across calls and bumps the
// fork-switch counter the moment it changes to something other than
// what the previous Update resolved.
func (e *Engine) recordTip(tipHash string) {
	e.lastTipMu.Lock()
	defer e.lastTipMu.Unlock()
	if e.lastTip != "" && e.lastTip != tipHash {
		metrics.ForkSwitches.Inc()
	}
	e.lastTip = tipHash
}

// Pending returns all_tx \ added_tx: transactions seen but not yet
// committed on the best fork.
func (e *Engine) Pending() []*chain.Transaction {
	e.addedTxMu.RLock()
	defer e.addedTxMu.RUnlock()
	e.allTxMu.RLock()
	defer e.allTxMu.RUnlock()

	var pending []*chain.Transaction
	for j, tx := range e.allTx {
		if _, onFork := e.addedTx[j]; !onFork {
			pending = append(pending, tx)
		}
	}
	return pending
}

// GetBalance returns the current best-fork balance of identifier,
// refreshing first so the answer reflects the latest resolved chain.
func (e *Engine) GetBalance(identifier string) (int64, error) {
	if _, _, err := e.Update(); err != nil {
		return 0, err
	}
	e.balanceMu.RLock()
	defer e.balanceMu.RUnlock()
	return e.balance[identifier], nil
}

// MergeAdded folds txs into added_tx directly, used by a miner right
// after it successfully mines and adds a block, so the next Pending()
// call does not re-offer transactions that just got committed.
func (e *Engine) MergeAdded(txs []*chain.Transaction) error {
	e.addedTxMu.Lock()
	defer e.addedTxMu.Unlock()
	for _, tx := range txs {
		j, err := tx.JSON()
		if err != nil {
			return fmt.Errorf("mempool: %w", err)
		}
		e.addedTx[j] = tx
	}
	return nil
}

// Gather builds the candidate transaction list for a new block: a
// fresh coinbase paying selfPub, followed by a sample of pending
// transactions that simulates cleanly against the current balance
// snapshot. The whole pending set is tried first; on failure the
// sample size shrinks by one and a new sample is drawn uniformly
// without replacement, until a valid (possibly empty) sample is found
// -- this converges without a full conflict resolver, but since only
// one sample is drawn per size the result is not always the largest
// feasible subset.
func (e *Engine) Gather(selfPub string) ([]*chain.Transaction, error) {
	coinbase, err := chain.NewCoinbase(selfPub)
	if err != nil {
		return nil, fmt.Errorf("mempool: %w", err)
	}

	pending := e.Pending()

	e.balanceMu.RLock()
	snapshot := make(map[string]int64, len(e.balance))
	for k, v := range e.balance {
		snapshot[k] = v
	}
	e.balanceMu.RUnlock()

	for n := len(pending); n >= 0; n-- {
		sample := sampleWithoutReplacement(pending, n)
		if feasible(snapshot, sample) {
			return append([]*chain.Transaction{coinbase}, sample...), nil
		}
	}
	return []*chain.Transaction{coinbase}, nil
}

func sampleWithoutReplacement(pending []*chain.Transaction, n int) []*chain.Transaction {
	if n >= len(pending) {
		out := make([]*chain.Transaction, len(pending))
		copy(out, pending)
		return out
	}
	perm := rand.Perm(len(pending))
	out := make([]*chain.Transaction, n)
	for i := 0; i < n; i++ {
		out[i] = pending[perm[i]]
	}
	return out
}

// feasible simulates applying txs to a copy of balance, in order,
// returning false the moment any sender would go negative.
func feasible(balance map[string]int64, txs []*chain.Transaction) bool {
	working := make(map[string]int64, len(balance))
	for k, v := range balance {
		working[k] = v
	}
	for _, tx := range txs {
		if working[tx.Sender]-tx.Amount < 0 {
			return false
		}
		working[tx.Sender] -= tx.Amount
		working[tx.Receiver] += tx.Amount
	}
	return true
}
