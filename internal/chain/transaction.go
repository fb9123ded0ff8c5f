// Package chain implements the signed transaction and block types and
// the content-addressed chain store that tracks forks and resolves the
// best one.
package chain

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/coinmesh/ledgerd/internal/chainjson"
	"github.com/coinmesh/ledgerd/internal/crypto"
	"github.com/coinmesh/ledgerd/pkg/util"
)

// Transaction is a signed value transfer. Field order is the canonical
// wire order: every node must encode it the same way, since the
// encoding is what gets hashed and signed.
type Transaction struct {
	Sender    string `json:"sender"`
	Receiver  string `json:"receiver"`
	Amount    int64  `json:"amount"`
	Comment   string `json:"comment"`
	Nonce     string `json:"nonce"`
	Signature string `json:"signature,omitempty"`
}

// New builds and signs a transaction from sender to receiver.
func New(sender, receiver string, amount int64, comment string, priv *ecdsa.PrivateKey) (*Transaction, error) {
	nonce, err := crypto.RandomNonce()
	if err != nil {
		return nil, err
	}
	tx := &Transaction{
		Sender:   sender,
		Receiver: receiver,
		Amount:   amount,
		Comment:  comment,
		Nonce:    nonce,
	}
	if err := tx.Sign(priv); err != nil {
		return nil, err
	}
	return tx, nil
}

// NewCoinbase builds the mandatory, unsigned first transaction of a
// block: it pays REWARD from the miner to itself.
func NewCoinbase(minerPub string) (*Transaction, error) {
	nonce, err := crypto.RandomNonce()
	if err != nil {
		return nil, err
	}
	return &Transaction{
		Sender:   minerPub,
		Receiver: minerPub,
		Amount:   Reward,
		Comment:  "coinbase",
		Nonce:    nonce,
	}, nil
}

// signingPayload returns the canonical JSON of every field except the
// signature -- the message that gets signed and, on the other side,
// re-derived before calling crypto.Verify.
func (t *Transaction) signingPayload() ([]byte, error) {
	unsigned := *t
	unsigned.Signature = ""
	return chainjson.Marshal(unsigned)
}

// Sign computes and sets the transaction's signature. It is an error to
// sign a transaction that already has one: a transaction is immutable
// once signed.
func (t *Transaction) Sign(priv *ecdsa.PrivateKey) error {
	if t.Signature != "" {
		return fmt.Errorf("chain: transaction is already signed")
	}
	payload, err := t.signingPayload()
	if err != nil {
		return fmt.Errorf("chain: marshal transaction for signing: %w", err)
	}
	sig, err := crypto.Sign(payload, priv)
	if err != nil {
		return err
	}
	t.Signature = sig
	return nil
}

// VerifySignature reports whether t.Signature is a valid signature over
// t's other fields under t.Sender.
func (t *Transaction) VerifySignature() bool {
	payload, err := t.signingPayload()
	if err != nil {
		return false
	}
	return crypto.Verify(t.Signature, payload, t.Sender)
}

// Validate checks the structural invariants from the data model:
// positive amount and exact field widths. It does not check the
// signature; callers that need a fully verified transaction should also
// call VerifySignature.
func (t *Transaction) Validate() error {
	if t.Amount <= 0 {
		return fmt.Errorf("chain: transaction amount must be positive, got %d", t.Amount)
	}
	if err := util.CheckHexLen("sender", t.Sender, crypto.KeyLen); err != nil {
		return err
	}
	if err := util.CheckHexLen("receiver", t.Receiver, crypto.KeyLen); err != nil {
		return err
	}
	if err := util.CheckHexLen("nonce", t.Nonce, crypto.NonceLen); err != nil {
		return err
	}
	if err := util.CheckHexLen("signature", t.Signature, crypto.SigLen); err != nil {
		return err
	}
	return nil
}

// JSON returns the transaction's canonical JSON encoding, the form used
// both as a Merkle leaf and as the wire representation of a "t" message.
func (t *Transaction) JSON() (string, error) {
	b, err := chainjson.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("chain: marshal transaction: %w", err)
	}
	return string(b), nil
}

// Hash returns the single-SHA256 hex digest of t's canonical JSON, the
// identifier used in proof requests and mempool membership.
func (t *Transaction) Hash() (string, error) {
	j, err := t.JSON()
	if err != nil {
		return "", err
	}
	return util.Hash1([]byte(j)), nil
}

// Equal reports whether two transactions are identical by JSON-string
// equality, the data model's definition of transaction equality.
func (t *Transaction) Equal(other *Transaction) bool {
	a, errA := t.JSON()
	b, errB := other.JSON()
	if errA != nil || errB != nil {
		return false
	}
	return a == b
}

// FromJSON parses a transaction from its canonical JSON encoding.
func FromJSON(s string) (*Transaction, error) {
	var t Transaction
	if err := chainjson.Unmarshal([]byte(s), &t); err != nil {
		return nil, fmt.Errorf("chain: unmarshal transaction: %w", err)
	}
	return &t, nil
}
