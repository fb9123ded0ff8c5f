package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/coinmesh/ledgerd/internal/chainjson"
	"github.com/coinmesh/ledgerd/internal/crypto"
	"github.com/coinmesh/ledgerd/internal/merkle"
	"github.com/coinmesh/ledgerd/pkg/util"
)

// Reward is the fixed coinbase amount paid to a block's miner.
const Reward int64 = 100

// Target is the fixed proof-of-work difficulty threshold: a header is
// valid iff its hash, read as a hex big-endian integer, is strictly
// less than this value. There is no difficulty adjustment.
var Target = mustHexBig(strings.Repeat("0", 4) + "1" + strings.Repeat("f", 59))

func mustHexBig(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 16)
	if !ok {
		panic("chain: invalid TARGET constant")
	}
	return n
}

const hashHexLen = 64

var (
	genesisPrevHash = strings.Repeat("0", hashHexLen)
	genesisRoot     = strings.Repeat("f", hashHexLen)
	genesisNonce    = strings.Repeat("0", crypto.NonceLen)
	genesisTime     = 1337.0
)

// BlockHeader is the committed, hashable summary of a block. Field
// order is fixed: prev_hash, merkle_root, timestamp, nonce.
type BlockHeader struct {
	PrevHash   string  `json:"prev_hash"`
	MerkleRoot string  `json:"merkle_root"`
	Timestamp  float64 `json:"timestamp"`
	Nonce      string  `json:"nonce"`
}

// Hash returns the single-SHA256 hex digest of the header's canonical
// JSON encoding.
func (h BlockHeader) Hash() (string, error) {
	b, err := chainjson.Marshal(h)
	if err != nil {
		return "", fmt.Errorf("chain: marshal header: %w", err)
	}
	return util.Hash1(b), nil
}

// MeetsTarget reports whether the header's hash satisfies the
// proof-of-work predicate.
func (h BlockHeader) MeetsTarget() (bool, error) {
	hash, err := h.Hash()
	if err != nil {
		return false, err
	}
	return util.HashLessThanTarget(hash, Target)
}

func (h BlockHeader) validate() error {
	if err := util.CheckHexLen("prev_hash", h.PrevHash, hashHexLen); err != nil {
		return err
	}
	if err := util.CheckHexLen("merkle_root", h.MerkleRoot, hashHexLen); err != nil {
		return err
	}
	if err := util.CheckHexLen("nonce", h.Nonce, crypto.NonceLen); err != nil {
		return err
	}
	return nil
}

// Block is an immutable pair of a header and its ordered transaction
// list.
type Block struct {
	Header       BlockHeader    `json:"header"`
	Transactions []*Transaction `json:"transactions"`
}

// Genesis returns the fixed, well-known sentinel block every chain
// store is seeded with. It bypasses proof-of-work verification.
func Genesis() *Block {
	return &Block{
		Header: BlockHeader{
			PrevHash:   genesisPrevHash,
			MerkleRoot: genesisRoot,
			Timestamp:  genesisTime,
			Nonce:      genesisNonce,
		},
		Transactions: nil,
	}
}

// IsGenesis reports whether b is exactly the genesis sentinel.
func (b *Block) IsGenesis() bool {
	g := Genesis().Header
	return b.Header.PrevHash == g.PrevHash &&
		b.Header.MerkleRoot == g.MerkleRoot &&
		b.Header.Timestamp == g.Timestamp &&
		b.Header.Nonce == g.Nonce
}

// merkleTree builds the Merkle tree over b.Transactions, leaves being
// each transaction's canonical JSON string.
func (b *Block) merkleTree() (*merkle.Tree, error) {
	leaves := make([]string, len(b.Transactions))
	for i, tx := range b.Transactions {
		j, err := tx.JSON()
		if err != nil {
			return nil, err
		}
		leaves[i] = j
	}
	return merkle.New(leaves)
}

// Mine searches for a header satisfying the proof-of-work predicate
// over prevHash and transactions, using a freshly randomized nonce on
// every attempt (never an incrementing counter, so that multiple
// miners on one host never collide). It returns nil, nil if ctx is
// cancelled before a solution is found; the cancellation signal is
// checked once per attempt.
func Mine(ctx context.Context, prevHash string, transactions []*Transaction) (*Block, error) {
	tree, err := (&Block{Transactions: transactions}).merkleTree()
	if err != nil {
		return nil, fmt.Errorf("chain: mine: %w", err)
	}
	header := BlockHeader{
		PrevHash:   prevHash,
		MerkleRoot: tree.Root(),
		Timestamp:  float64(time.Now().UTC().UnixNano()) / 1e9,
	}

	for {
		select {
		case <-ctx.Done():
			return nil, nil
		default:
		}

		nonce, err := crypto.RandomNonce()
		if err != nil {
			return nil, fmt.Errorf("chain: mine: %w", err)
		}
		header.Nonce = nonce

		ok, err := header.MeetsTarget()
		if err != nil {
			return nil, fmt.Errorf("chain: mine: %w", err)
		}
		if ok {
			return &Block{Header: header, Transactions: transactions}, nil
		}
	}
}

// Validate checks a non-genesis block's self-contained invariants:
// well-formed header, correct Merkle root, proof-of-work, a non-empty,
// pairwise-distinct transaction list whose first element is a
// well-formed coinbase and whose remaining elements carry valid
// signatures.
func (b *Block) Validate() error {
	if b.IsGenesis() {
		return nil
	}
	if err := b.Header.validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBlock, err)
	}
	if len(b.Transactions) == 0 {
		return fmt.Errorf("%w: block has no transactions", ErrInvalidBlock)
	}

	tree, err := b.merkleTree()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBlock, err)
	}
	if tree.Root() != b.Header.MerkleRoot {
		return fmt.Errorf("%w: merkle root mismatch", ErrInvalidBlock)
	}

	meets, err := b.Header.MeetsTarget()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBlock, err)
	}
	if !meets {
		return fmt.Errorf("%w: header hash does not meet target", ErrInvalidBlock)
	}

	seen := make(map[string]struct{}, len(b.Transactions))
	for i, tx := range b.Transactions {
		j, err := tx.JSON()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidBlock, err)
		}
		if _, dup := seen[j]; dup {
			return fmt.Errorf("%w: duplicate transaction in block", ErrInvalidBlock)
		}
		seen[j] = struct{}{}

		if i == 0 {
			if tx.Sender != tx.Receiver {
				return fmt.Errorf("%w: coinbase sender/receiver mismatch", ErrInvalidBlock)
			}
			if tx.Amount != Reward {
				return fmt.Errorf("%w: coinbase amount != REWARD", ErrInvalidBlock)
			}
			continue
		}

		if err := tx.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidBlock, err)
		}
		if !tx.VerifySignature() {
			return fmt.Errorf("%w: transaction signature invalid", ErrInvalidBlock)
		}
	}
	return nil
}

// TransactionProof returns the Merkle inclusion proof for the
// transaction in b whose Hash equals txHash.
func (b *Block) TransactionProof(txHash string) ([]merkle.ProofStep, error) {
	tree, err := b.merkleTree()
	if err != nil {
		return nil, err
	}
	for _, tx := range b.Transactions {
		h, err := tx.Hash()
		if err != nil {
			return nil, err
		}
		if h == txHash {
			j, err := tx.JSON()
			if err != nil {
				return nil, err
			}
			return tree.Proof(j)
		}
	}
	return nil, fmt.Errorf("chain: transaction %s not in block", txHash)
}

// JSON returns the block's canonical JSON encoding, the wire
// representation of a "b" message body.
func (b *Block) JSON() (string, error) {
	data, err := chainjson.Marshal(b)
	if err != nil {
		return "", fmt.Errorf("chain: marshal block: %w", err)
	}
	return string(data), nil
}

// BlockFromJSON parses a block from its canonical JSON encoding.
func BlockFromJSON(s string) (*Block, error) {
	var b Block
	if err := chainjson.Unmarshal([]byte(s), &b); err != nil {
		return nil, fmt.Errorf("chain: unmarshal block: %w", err)
	}
	return &b, nil
}
