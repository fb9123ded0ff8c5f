package chain

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/coinmesh/ledgerd/internal/merkle"
)

// Store is the content-addressed block DAG: every block ever accepted,
// keyed by header hash, plus the set of current tips (blocks with no
// known child) and their chain length from genesis. Guards access with
// a single RWMutex -- the spec's chain_lock -- held only for the
// duration of a map operation.
type Store struct {
	mu          sync.RWMutex
	blocks      map[string]*Block
	tips        map[string]int
	genesisHash string
}

// NewStore returns a store seeded with the genesis block as its sole
// tip.
func NewStore() (*Store, error) {
	g := Genesis()
	hash, err := g.Header.Hash()
	if err != nil {
		return nil, fmt.Errorf("chain: hash genesis: %w", err)
	}
	return &Store{
		blocks:      map[string]*Block{hash: g},
		tips:        map[string]int{hash: 0},
		genesisHash: hash,
	}, nil
}

// GenesisHash returns the header hash of the store's genesis block.
func (s *Store) GenesisHash() string {
	return s.genesisHash
}

// TipCount reports how many competing chain tips are currently known.
func (s *Store) TipCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tips)
}

// TipLength reports the chain length from genesis of a known tip.
func (s *Store) TipLength(hash string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	length, ok := s.tips[hash]
	return length, ok
}

// Get returns the stored block with the given header hash.
func (s *Store) Get(hash string) (*Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blocks[hash]
	if !ok {
		return nil, ErrBlockNotFound
	}
	return b, nil
}

// Has reports whether hash is present in the store.
func (s *Store) Has(hash string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.blocks[hash]
	return ok
}

// Add verifies block against the store and, if valid, inserts it. If
// block is already present it is a no-op (add is idempotent by content
// identity). If block's parent is a current tip, the tip is promoted in
// place; otherwise a new fork is registered, with its length computed
// by walking back to genesis.
func (s *Store) Add(block *Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	hash, err := block.Header.Hash()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBlock, err)
	}
	if _, exists := s.blocks[hash]; exists {
		return nil
	}

	if err := s.verifyLocked(block); err != nil {
		return err
	}

	s.blocks[hash] = block
	if length, isTip := s.tips[block.Header.PrevHash]; isTip {
		delete(s.tips, block.Header.PrevHash)
		s.tips[hash] = length + 1
		return nil
	}

	length, err := s.chainLengthLocked(block.Header.PrevHash)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBlock, err)
	}
	s.tips[hash] = length + 1
	return nil
}

// verifyLocked checks a candidate block against its parent and the
// fork it would extend. Callers must hold s.mu.
func (s *Store) verifyLocked(block *Block) error {
	prev, ok := s.blocks[block.Header.PrevHash]
	if !ok {
		return fmt.Errorf("%w: unknown prev_hash", ErrInvalidBlock)
	}
	if err := prev.Validate(); err != nil {
		return fmt.Errorf("%w: parent invalid: %v", ErrInvalidBlock, err)
	}
	if block.Header.Timestamp <= prev.Header.Timestamp {
		return fmt.Errorf("%w: timestamp does not exceed parent", ErrInvalidBlock)
	}
	if err := block.Validate(); err != nil {
		return err
	}

	existing, err := s.transactionSetLocked(block.Header.PrevHash)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBlock, err)
	}
	for _, tx := range block.Transactions {
		j, err := tx.JSON()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidBlock, err)
		}
		if _, replayed := existing[j]; replayed {
			return fmt.Errorf("%w: transaction replayed on fork", ErrInvalidBlock)
		}
	}
	return nil
}

func (s *Store) transactionSetLocked(tipHash string) (map[string]struct{}, error) {
	set := make(map[string]struct{})
	cur := tipHash
	for cur != s.genesisHash {
		b, ok := s.blocks[cur]
		if !ok {
			return nil, fmt.Errorf("broken fork at %s", cur)
		}
		for _, tx := range b.Transactions {
			j, err := tx.JSON()
			if err != nil {
				return nil, err
			}
			set[j] = struct{}{}
		}
		cur = b.Header.PrevHash
	}
	return set, nil
}

func (s *Store) chainLengthLocked(tipHash string) (int, error) {
	length := 0
	cur := tipHash
	for cur != s.genesisHash {
		b, ok := s.blocks[cur]
		if !ok {
			return 0, fmt.Errorf("broken fork at %s", cur)
		}
		cur = b.Header.PrevHash
		length++
	}
	return length, nil
}

// Resolve returns the tip block of the current best fork: the tip with
// the greatest length, ties broken by the greatest summed header-hash
// (interpreted as an integer) along the path from genesis, ties on that
// broken by the lexicographically smallest hash for full determinism.
func (s *Store) Resolve() (*Block, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.tips) == 0 {
		return nil, "", fmt.Errorf("chain: no tips")
	}

	bestHash := ""
	bestLength := -1
	for hash, length := range s.tips {
		if length > bestLength {
			bestLength, bestHash = length, hash
		}
	}

	var candidates []string
	for hash, length := range s.tips {
		if length == bestLength {
			candidates = append(candidates, hash)
		}
	}
	if len(candidates) == 1 {
		return s.blocks[candidates[0]], candidates[0], nil
	}

	bestHash = ""
	var bestPow *big.Int
	for _, hash := range candidates {
		pow, err := s.chainPowLocked(hash)
		if err != nil {
			return nil, "", err
		}
		switch {
		case bestPow == nil:
			bestPow, bestHash = pow, hash
		case pow.Cmp(bestPow) > 0:
			bestPow, bestHash = pow, hash
		case pow.Cmp(bestPow) == 0 && hash < bestHash:
			bestHash = hash
		}
	}
	return s.blocks[bestHash], bestHash, nil
}

func (s *Store) chainPowLocked(tipHash string) (*big.Int, error) {
	sum := new(big.Int)
	cur := tipHash
	for cur != s.genesisHash {
		b, ok := s.blocks[cur]
		if !ok {
			return nil, fmt.Errorf("broken fork at %s", cur)
		}
		n, ok := new(big.Int).SetString(cur, 16)
		if !ok {
			return nil, fmt.Errorf("chain: hash %s is not a valid hex integer", cur)
		}
		sum.Add(sum, n)
		cur = b.Header.PrevHash
	}
	return sum, nil
}

// BlocksOnFork returns the blocks on the fork ending at tipHash, in
// order from the tip back to (excluding) genesis.
func (s *Store) BlocksOnFork(tipHash string) ([]*Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.blocksOnForkLocked(tipHash)
}

func (s *Store) blocksOnForkLocked(tipHash string) ([]*Block, error) {
	var blocks []*Block
	cur := tipHash
	for cur != s.genesisHash {
		b, ok := s.blocks[cur]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrBlockNotFound, cur)
		}
		blocks = append(blocks, b)
		cur = b.Header.PrevHash
	}
	return blocks, nil
}

// blocksOnForkAscendingLocked returns the same fork in chronological
// order, genesis-first, for replay-order operations like balance
// reconstruction.
func (s *Store) blocksOnForkAscendingLocked(tipHash string) ([]*Block, error) {
	descending, err := s.blocksOnForkLocked(tipHash)
	if err != nil {
		return nil, err
	}
	ascending := make([]*Block, len(descending))
	for i, b := range descending {
		ascending[len(descending)-1-i] = b
	}
	return ascending, nil
}

// TransactionsOnFork returns the concatenation of every block's
// transaction list on the fork ending at tipHash, in chronological
// (genesis-to-tip, block, then intra-block) order.
func (s *Store) TransactionsOnFork(tipHash string) ([]*Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	blocks, err := s.blocksOnForkAscendingLocked(tipHash)
	if err != nil {
		return nil, err
	}
	var txs []*Transaction
	for _, b := range blocks {
		txs = append(txs, b.Transactions...)
	}
	return txs, nil
}

// BalanceOnFork reconstructs the account balance map by replaying the
// fork ending at tipHash from genesis: coinbase transactions credit
// their receiver; other transactions debit the sender and credit the
// receiver. Returns ErrInconsistentFork if any intermediate balance
// would go negative.
func (s *Store) BalanceOnFork(tipHash string) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	blocks, err := s.blocksOnForkAscendingLocked(tipHash)
	if err != nil {
		return nil, err
	}

	balance := make(map[string]int64)
	for _, b := range blocks {
		for i, tx := range b.Transactions {
			if i == 0 {
				balance[tx.Receiver] += tx.Amount
				continue
			}
			if balance[tx.Sender]-tx.Amount < 0 {
				return nil, fmt.Errorf("%w: %s would go negative", ErrInconsistentFork, tx.Sender)
			}
			balance[tx.Sender] -= tx.Amount
			balance[tx.Receiver] += tx.Amount
		}
	}
	return balance, nil
}

// TransactionProofOnFork walks the fork ending at tipHash from genesis
// forward and returns the header hash and Merkle inclusion proof of the
// first block containing a transaction whose Hash equals txHash.
func (s *Store) TransactionProofOnFork(txHash, tipHash string) (string, []merkle.ProofStep, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	blocks, err := s.blocksOnForkAscendingLocked(tipHash)
	if err != nil {
		return "", nil, err
	}
	for _, b := range blocks {
		for _, tx := range b.Transactions {
			h, err := tx.Hash()
			if err != nil {
				return "", nil, err
			}
			if h != txHash {
				continue
			}
			blockHash, err := b.Header.Hash()
			if err != nil {
				return "", nil, err
			}
			proof, err := b.TransactionProof(txHash)
			if err != nil {
				return "", nil, err
			}
			return blockHash, proof, nil
		}
	}
	return "", nil, ErrTransactionNotFound
}
