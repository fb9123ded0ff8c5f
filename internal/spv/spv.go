// Package spv implements the lightweight client: it keeps only block
// headers and its own transactions, and leans on quorum-voted replies
// from full miners for anything it can't verify locally.
package spv

import (
	"crypto/ecdsa"
	"fmt"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/coinmesh/ledgerd/internal/chain"
	"github.com/coinmesh/ledgerd/internal/chainjson"
	"github.com/coinmesh/ledgerd/internal/merkle"
	"github.com/coinmesh/ledgerd/internal/metrics"
	"github.com/coinmesh/ledgerd/internal/netnode"
)

// Client is a header-only node. It never holds a chain store or
// mempool: `headers` is the entire local view of history, and
// `ownTx` is only the transactions that involve this identity.
type Client struct {
	logger *zap.Logger

	priv *ecdsa.PrivateKey
	pub  string

	peers       *netnode.Peers
	broadcaster *netnode.Broadcaster

	headersMu sync.RWMutex
	headers   map[string]chain.BlockHeader // keyed by header hash

	txMu  sync.RWMutex
	ownTx map[string]*chain.Transaction // keyed by transaction hash
}

// New returns a client seeded with the genesis header, the one header
// every node agrees on without having to receive it.
func New(priv *ecdsa.PrivateKey, pub string, peers *netnode.Peers, logger *zap.Logger) (*Client, error) {
	genesisHash, err := chain.Genesis().Header.Hash()
	if err != nil {
		return nil, fmt.Errorf("spv: genesis hash: %w", err)
	}
	return &Client{
		logger:      logger,
		priv:        priv,
		pub:         pub,
		peers:       peers,
		broadcaster: netnode.NewBroadcaster(logger),
		headers:     map[string]chain.BlockHeader{genesisHash: chain.Genesis().Header},
		ownTx:       make(map[string]*chain.Transaction),
	}, nil
}

// PubKey returns the client's public identifier.
func (c *Client) PubKey() string { return c.pub }

// Logger returns the client's logger, so types embedding a Client can
// log through the same sink without holding their own.
func (c *Client) Logger() *zap.Logger { return c.logger }

// Peers returns the peer registry this client broadcasts through.
func (c *Client) Peers() *netnode.Peers { return c.peers }

// Headers returns a snapshot of every header known locally.
func (c *Client) Headers() []chain.BlockHeader {
	c.headersMu.RLock()
	defer c.headersMu.RUnlock()
	out := make([]chain.BlockHeader, 0, len(c.headers))
	for _, h := range c.headers {
		out = append(out, h)
	}
	return out
}

// Transactions returns a snapshot of every transaction involving this
// identity that the client has seen.
func (c *Client) Transactions() []*chain.Transaction {
	c.txMu.RLock()
	defer c.txMu.RUnlock()
	out := make([]*chain.Transaction, 0, len(c.ownTx))
	for _, tx := range c.ownTx {
		out = append(out, tx)
	}
	return out
}

// AddHeader admits header if its proof-of-work is valid and its
// parent is already known; otherwise it is rejected, never silently
// accepted partway.
func (c *Client) AddHeader(header chain.BlockHeader) error {
	hash, err := header.Hash()
	if err != nil {
		return fmt.Errorf("spv: header hash: %w", err)
	}
	meets, err := header.MeetsTarget()
	if err != nil {
		return fmt.Errorf("spv: header target check: %w", err)
	}
	if !meets {
		return fmt.Errorf("spv: header does not meet target")
	}

	c.headersMu.Lock()
	defer c.headersMu.Unlock()
	if _, known := c.headers[header.PrevHash]; !known {
		return fmt.Errorf("spv: unknown parent header")
	}
	c.headers[hash] = header
	return nil
}

// AddTransaction admits a signature-valid transaction into own_tx only
// if it involves this identity as sender or receiver; anything else is
// silently discarded, matching the original's "does not concern us".
func (c *Client) AddTransaction(txJSON string) error {
	tx, err := chain.FromJSON(txJSON)
	if err != nil {
		return fmt.Errorf("spv: parse transaction: %w", err)
	}
	if !tx.VerifySignature() {
		return fmt.Errorf("spv: transaction signature invalid")
	}
	if tx.Sender != c.pub && tx.Receiver != c.pub {
		return nil
	}
	hash, err := tx.Hash()
	if err != nil {
		return fmt.Errorf("spv: %w", err)
	}
	c.txMu.Lock()
	c.ownTx[hash] = tx
	c.txMu.Unlock()
	return nil
}

// CreateTransaction signs a new transaction from this identity,
// records it in own_tx immediately (it obviously involves us), and
// broadcasts it with tag t.
func (c *Client) CreateTransaction(receiver string, amount int64, comment string) (*chain.Transaction, error) {
	tx, err := chain.New(c.pub, receiver, amount, comment, c.priv)
	if err != nil {
		return nil, fmt.Errorf("spv: create transaction: %w", err)
	}
	hash, err := tx.Hash()
	if err != nil {
		return nil, fmt.Errorf("spv: %w", err)
	}
	c.txMu.Lock()
	c.ownTx[hash] = tx
	c.txMu.Unlock()

	txJSON, err := tx.JSON()
	if err != nil {
		return nil, fmt.Errorf("spv: %w", err)
	}
	body, err := chainjson.Marshal(netnode.TransactionBody{TxJSON: txJSON})
	if err != nil {
		return nil, fmt.Errorf("spv: %w", err)
	}
	c.broadcaster.FireAndForget(c.peers.All(), netnode.TagTransaction, body)
	metrics.TransactionsBroadcast.Inc()
	return tx, nil
}

// RequestBalance asks every known peer for this identity's balance and
// returns the modal reply, discarding SPV stub replies.
func (c *Client) RequestBalance() (int64, error) {
	body, err := chainjson.Marshal(netnode.BalanceRequestBody{Identifier: c.pub})
	if err != nil {
		return 0, fmt.Errorf("spv: %w", err)
	}
	replies := c.broadcaster.Request(c.peers.All(), netnode.TagBalanceRequest, body)
	raw, ok := majorityReply(replies)
	if !ok {
		return 0, fmt.Errorf("spv: no balance replies")
	}
	bal, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("spv: malformed balance reply %q: %w", raw, err)
	}
	return bal, nil
}

// VerifyTransactionProof asks every known peer for an inclusion proof
// of txHash, takes the modal reply, and verifies it locally. The reply
// is only trusted if both the claimed block and the claimed current
// tip are headers this client already knows independently -- a lone
// eclipsed peer forging both would have to have fed us a matching fake
// header earlier too.
func (c *Client) VerifyTransactionProof(txHash string) (bool, error) {
	body, err := chainjson.Marshal(netnode.ProofRequestBody{TxHash: txHash})
	if err != nil {
		return false, fmt.Errorf("spv: %w", err)
	}
	replies := c.broadcaster.Request(c.peers.All(), netnode.TagProofRequest, body)
	raw, ok := majorityReply(replies)
	if !ok {
		return false, fmt.Errorf("spv: no proof replies")
	}

	var reply netnode.ProofReplyBody
	if err := chainjson.Unmarshal(raw, &reply); err != nil {
		return false, fmt.Errorf("spv: unmarshal proof reply: %w", err)
	}
	if reply.BlockHash == "" || reply.LastBlockHash == "" {
		return false, nil
	}

	c.headersMu.RLock()
	blkHeader, blkKnown := c.headers[reply.BlockHash]
	_, lastKnown := c.headers[reply.LastBlockHash]
	c.headersMu.RUnlock()
	if !blkKnown || !lastKnown {
		return false, fmt.Errorf("spv: proof reply cites an unknown header")
	}

	c.txMu.RLock()
	tx, known := c.ownTx[txHash]
	c.txMu.RUnlock()
	if !known {
		return false, fmt.Errorf("spv: unknown transaction %s", txHash)
	}
	txJSON, err := tx.JSON()
	if err != nil {
		return false, fmt.Errorf("spv: %w", err)
	}

	steps := make([]merkle.ProofStep, len(reply.Proof))
	for i, s := range reply.Proof {
		steps[i] = merkle.ProofStep{SiblingHash: s.SiblingHash, Direction: merkle.Direction(s.Direction)}
	}
	return merkle.VerifyProof(txJSON, steps, blkHeader.MerkleRoot), nil
}

// majorityReply picks the most common reply body among replies,
// discarding any SPVStubReply stub. It returns false if nothing but
// stubs came back.
func majorityReply(replies []netnode.Reply) ([]byte, bool) {
	counts := make(map[string]int)
	var order []string
	for _, r := range replies {
		s := string(r.Body)
		if s == netnode.SPVStubReply {
			continue
		}
		if _, seen := counts[s]; !seen {
			order = append(order, s)
		}
		counts[s]++
	}
	if len(order) == 0 {
		return nil, false
	}
	best := order[0]
	for _, s := range order[1:] {
		if counts[s] > counts[best] {
			best = s
		}
	}
	return []byte(best), true
}
